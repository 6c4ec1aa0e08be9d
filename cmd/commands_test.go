package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/IRL-CT/robotability/internal/config"
)

const testSidewalks = `,score,geometry
0,1.5,"LINESTRING (988000 212000, 988050 212000)"
1,3.5,"LINESTRING (988000 212100, 988050 212100)"
`

// writeDataDir writes a sidewalk CSV, a one-block shapefile and a config.yaml
// pointing at them, and returns the directory.
func writeDataDir(t *testing.T) string {
	t.Helper()
	dir := chdirTemp(t)

	csvPath := filepath.Join(dir, "scores.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte(testSidewalks), 0644))

	shpPath := filepath.Join(dir, "blocks.shp")
	w, err := shp.Create(shpPath, shp.POLYGON)
	require.NoError(t, err)
	require.NoError(t, w.SetFields([]shp.Field{shp.StringField("BoroName", 32)}))
	for i, boro := range []string{"Manhattan", "Nassau"} {
		x := 987000.0 + float64(i)*1000
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{{
			{X: x, Y: 211000}, {X: x, Y: 211500}, {X: x + 500, Y: 211500}, {X: x + 500, Y: 211000}, {X: x, Y: 211000},
		}}))
		row := w.Write(&poly)
		require.NoError(t, w.WriteAttribute(int(row), 0, boro))
	}
	w.Close()
	// go-shp's Create drops the extension dot, so SetFields writes "<base>dbf".
	require.NoError(t, os.Rename(filepath.Join(dir, "blocksdbf"), filepath.Join(dir, "blocks.dbf")))

	cfgYAML := fmt.Sprintf("data:\n  sidewalks_path: %s\n  boundaries_path: %s\nlog:\n  level: error\n", csvPath, shpPath)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(cfgYAML), 0644))
	return dir
}

func TestConfigCommand_PrintsYAML(t *testing.T) {
	chdirTemp(t)

	out, err := execute(t, "config")
	require.NoError(t, err)

	var got config.Config
	require.NoError(t, yaml.Unmarshal([]byte(out), &got))
	assert.Equal(t, "data/score_by_sidewalk.csv", got.Data.SidewalksPath)
	assert.Equal(t, 15, got.Beacon.Rings)
	assert.Equal(t, 8080, got.Server.Port)
}

type featureCollection struct {
	Type     string `json:"type"`
	Features []struct {
		Properties map[string]any `json:"properties"`
	} `json:"features"`
}

func TestBeaconsCommand(t *testing.T) {
	chdirTemp(t)

	out, err := execute(t, "beacons", "--site", "Jackson Heights, Queens")
	require.NoError(t, err)

	var fc featureCollection
	require.NoError(t, json.Unmarshal([]byte(out), &fc))
	assert.Equal(t, "FeatureCollection", fc.Type)
	require.Len(t, fc.Features, 15)
	for _, f := range fc.Features {
		assert.Equal(t, "Jackson Heights, Queens", f.Properties["name"])
		assert.Equal(t, 3.0, f.Properties["id"])
	}
}

func TestBeaconsCommand_AllSites(t *testing.T) {
	chdirTemp(t)

	out, err := execute(t, "beacons")
	require.NoError(t, err)

	var fc featureCollection
	require.NoError(t, json.Unmarshal([]byte(out), &fc))
	assert.Len(t, fc.Features, 4*15)
}

func TestBeaconsCommand_UnknownSite(t *testing.T) {
	chdirTemp(t)

	_, err := execute(t, "beacons", "--site", "Hoboken")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown deployment")
}

func TestComposeCommand(t *testing.T) {
	writeDataDir(t)

	out, err := execute(t, "compose", "--layers", "cbs,Deployment Locations")
	require.NoError(t, err)

	var msg struct {
		Data   map[string]featureCollection `json:"data"`
		Colors [][3]int                     `json:"colors"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &msg))
	assert.Len(t, msg.Colors, 11)
	require.Len(t, msg.Data, 2)
	assert.Len(t, msg.Data["cbs"].Features, 1)
	assert.Equal(t, "Manhattan", msg.Data["cbs"].Features[0].Properties["BoroName"])
	assert.Len(t, msg.Data["deployments"].Features, 4*15)
}

func TestComposeCommand_ToFile(t *testing.T) {
	dir := writeDataDir(t)
	target := filepath.Join(dir, "payload.json")

	_, err := execute(t, "compose", "--out", target)
	require.NoError(t, err)

	raw, err := os.ReadFile(target)
	require.NoError(t, err)
	var msg struct {
		Data map[string]featureCollection `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Len(t, msg.Data, 3)
	scores := []any{}
	for _, f := range msg.Data["sidewalks"].Features {
		scores = append(scores, f.Properties["score"])
	}
	assert.Equal(t, []any{0.0, 1.0}, scores)
}

func TestComposeCommand_MissingData(t *testing.T) {
	chdirTemp(t)

	_, err := execute(t, "compose")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load dataset")
}

func TestBuildHandler(t *testing.T) {
	c := &config.Config{
		Server: config.ServerConfig{StaticDir: t.TempDir(), MessageRate: 5, MessageBurst: 5},
	}
	h, err := buildHandler(c, prometheus.NewRegistry())
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
	assert.Contains(t, rec.Body.String(), "robotability_sessions_active")
}

func TestNewLimiter(t *testing.T) {
	assert.Nil(t, newLimiter(config.ServerConfig{}))

	l := newLimiter(config.ServerConfig{MessageRate: 2})
	require.NotNil(t, l)
	assert.Equal(t, 1, l.Burst())

	l = newLimiter(config.ServerConfig{MessageRate: 2, MessageBurst: 8})
	assert.Equal(t, 8, l.Burst())
}
