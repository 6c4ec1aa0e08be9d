package session

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/IRL-CT/robotability/internal/beacon"
	"github.com/IRL-CT/robotability/internal/dataset"
	"github.com/IRL-CT/robotability/internal/layers"
	"github.com/IRL-CT/robotability/internal/model"
	"github.com/IRL-CT/robotability/internal/monitoring"
	"github.com/IRL-CT/robotability/internal/projection"
)

type recorder struct {
	sent []Envelope
	err  error
}

func (r *recorder) Send(_ context.Context, env Envelope) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, env)
	return nil
}

func (r *recorder) types() []string {
	out := make([]string, len(r.sent))
	for i, e := range r.sent {
		out[i] = e.Type
	}
	return out
}

func (r *recorder) last() Envelope { return r.sent[len(r.sent)-1] }

func testLoader(t *testing.T, proj *projection.Projector) dataset.Loader {
	t.Helper()
	features, err := beacon.NewGenerator(proj, beacon.Config{}).Features(model.DefaultSites())
	require.NoError(t, err)
	return func(context.Context) (*dataset.Data, error) {
		return &dataset.Data{Deployments: features}, nil
	}
}

func newTestSession(t *testing.T, load dataset.Loader) (*Session, *recorder, *monitoring.Metrics) {
	t.Helper()
	proj := projection.NewLongIsland()
	if load == nil {
		load = testLoader(t, proj)
	}
	m, err := monitoring.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	out := &recorder{}
	s := New(out, Options{
		Dataset:  dataset.WithLoader(load),
		Composer: layers.NewComposer(proj),
		Sites:    model.DefaultSites(),
		Metrics:  m,
	})
	return s, out, m
}

func envelope(t *testing.T, kind string, v any) Envelope {
	t.Helper()
	env, err := NewEnvelope(kind, v)
	require.NoError(t, err)
	return env
}

func decodeLayers(t *testing.T, env Envelope) map[string]json.RawMessage {
	t.Helper()
	require.Equal(t, TypeUpdateLayers, env.Type)
	var body struct {
		Data   map[string]json.RawMessage `json:"data"`
		Colors [][3]int                   `json:"colors"`
	}
	require.NoError(t, json.Unmarshal(env.Message, &body))
	assert.Len(t, body.Colors, 11)
	return body.Data
}

func TestStart_PushesDefaultView(t *testing.T) {
	s, out, _ := newTestSession(t, nil)

	require.NoError(t, s.Start(context.Background()))
	require.Equal(t, []string{TypeUpdateLayers, TypeFlyTo}, out.types())

	data := decodeLayers(t, out.sent[0])
	assert.Contains(t, data, "sidewalks")
	assert.Contains(t, data, "cbs")
	assert.Contains(t, data, "deployments")

	var fly FlyTo
	require.NoError(t, out.sent[1].Decode(&fly))
	assert.InDelta(t, -73.887267, fly.Longitude, 1e-9)
	assert.InDelta(t, 40.738536, fly.Latitude, 1e-9)
	assert.Equal(t, float64(FlyToZoom), fly.Zoom)
}

func TestStart_LoadFailure(t *testing.T) {
	s, out, m := newTestSession(t, func(context.Context) (*dataset.Data, error) {
		return nil, errors.New("open data/score_by_sidewalk.csv: no such file")
	})

	err := s.Start(context.Background())
	require.Error(t, err)
	require.Equal(t, []string{TypeError}, out.types())

	var msg ErrorMessage
	require.NoError(t, out.last().Decode(&msg))
	assert.Contains(t, msg.Error, "no such file")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DatasetLoads.WithLabelValues("error")))
}

func TestStart_SharedDatasetCountsOneLoad(t *testing.T) {
	proj := projection.NewLongIsland()
	m, err := monitoring.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	opts := Options{
		Dataset:  dataset.WithLoader(testLoader(t, proj)),
		Composer: layers.NewComposer(proj),
		Sites:    model.DefaultSites(),
		Metrics:  m,
	}

	for range 3 {
		out := &recorder{}
		require.NoError(t, New(out, opts).Start(context.Background()))
		assert.Equal(t, []string{TypeUpdateLayers, TypeFlyTo}, out.types())
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DatasetLoads.WithLabelValues("ok")))
}

func TestHandle_SetLayers(t *testing.T) {
	tests := []struct {
		name   string
		layers []string
		want   []string
	}{
		{"labels", []string{"Sidewalk Scores"}, []string{"sidewalks"}},
		{"keys", []string{"cbs", "deployments"}, []string{"cbs", "deployments"}},
		{"unknown ignored", []string{"Traffic", "Deployment Locations"}, []string{"deployments"}},
		{"none", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, out, _ := newTestSession(t, nil)
			require.NoError(t, s.Start(context.Background()))

			err := s.Handle(context.Background(), envelope(t, TypeSetLayers, SetLayers{Layers: tt.layers}))
			require.NoError(t, err)

			data := decodeLayers(t, out.last())
			keys := make([]string, 0, len(data))
			for k := range data {
				keys = append(keys, k)
			}
			assert.ElementsMatch(t, tt.want, keys)
		})
	}
}

func TestHandle_SelectDeployment(t *testing.T) {
	s, out, _ := newTestSession(t, nil)
	require.NoError(t, s.Start(context.Background()))

	err := s.Handle(context.Background(), envelope(t, TypeSelectDeployment, SelectDeployment{Name: "Herald Square, Manhattan"}))
	require.NoError(t, err)

	var fly FlyTo
	require.Equal(t, TypeFlyTo, out.last().Type)
	require.NoError(t, out.last().Decode(&fly))
	site, _ := model.DefaultSites().Lookup("Herald Square, Manhattan")
	assert.Equal(t, site.Coordinate.Longitude, fly.Longitude)
	assert.Equal(t, site.Coordinate.Latitude, fly.Latitude)
}

func TestHandle_UnknownDeploymentIgnored(t *testing.T) {
	s, out, m := newTestSession(t, nil)
	require.NoError(t, s.Start(context.Background()))
	before := len(out.sent)

	err := s.Handle(context.Background(), envelope(t, TypeSelectDeployment, SelectDeployment{Name: "Atlantis"}))
	require.NoError(t, err)
	assert.Len(t, out.sent, before)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnknownSites))
}

func TestHandle_BadMessage(t *testing.T) {
	s, out, _ := newTestSession(t, nil)

	err := s.Handle(context.Background(), Envelope{Type: TypeSetLayers, Message: json.RawMessage(`{"layers": 7}`)})
	require.NoError(t, err)
	assert.Equal(t, TypeError, out.last().Type)

	err = s.Handle(context.Background(), Envelope{Type: TypeSelectDeployment})
	require.NoError(t, err)
	assert.Equal(t, TypeError, out.last().Type)
}

func TestHandle_UnknownTypeIgnored(t *testing.T) {
	s, out, _ := newTestSession(t, nil)

	require.NoError(t, s.Handle(context.Background(), Envelope{Type: "resize"}))
	assert.Empty(t, out.sent)
}

func TestHandle_ComposeFailureKeepsSession(t *testing.T) {
	calls := 0
	proj := projection.NewLongIsland()
	good := testLoader(t, proj)
	s, out, m := newTestSession(t, func(ctx context.Context) (*dataset.Data, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("transient read error")
		}
		return good(ctx)
	})

	// The first recomposition sees the load failure and reports it.
	err := s.Handle(context.Background(), envelope(t, TypeSetLayers, SetLayers{Layers: []string{"cbs"}}))
	require.NoError(t, err)
	assert.Equal(t, TypeError, out.last().Type)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ComposeFailures))

	// The next one succeeds on the same session.
	err = s.Handle(context.Background(), envelope(t, TypeSetLayers, SetLayers{Layers: []string{"cbs"}}))
	require.NoError(t, err)
	data := decodeLayers(t, out.last())
	assert.Contains(t, data, "cbs")
}

func TestHandle_SendFailure(t *testing.T) {
	s, out, _ := newTestSession(t, nil)
	out.err = errors.New("broken pipe")

	err := s.Handle(context.Background(), envelope(t, TypeSelectDeployment, SelectDeployment{Name: "Elmhurst, Queens"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken pipe")
}

func TestHandle_Throttled(t *testing.T) {
	s, _, _ := newTestSession(t, nil)
	s.opts.Limiter = rate.NewLimiter(rate.Limit(0.001), 1)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Handle(ctx, Envelope{Type: "noop"}))

	cancel()
	assert.Error(t, s.Handle(ctx, Envelope{Type: "noop"}))
}

func TestSession_IDsAreUnique(t *testing.T) {
	a, _, _ := newTestSession(t, nil)
	b, _, _ := newTestSession(t, nil)
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
	assert.Len(t, a.Selection(), len(layers.All()))
}

func TestReject(t *testing.T) {
	s, out, _ := newTestSession(t, nil)

	require.NoError(t, s.Reject(context.Background(), errors.New("unexpected end of JSON input")))
	var msg ErrorMessage
	require.NoError(t, out.last().Decode(&msg))
	assert.Equal(t, "malformed message: unexpected end of JSON input", msg.Error)
}
