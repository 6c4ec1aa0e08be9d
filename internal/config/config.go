package config

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/IRL-CT/robotability/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Data   DataConfig   `yaml:"data" mapstructure:"data"`
	Beacon BeaconConfig `yaml:"beacon" mapstructure:"beacon"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// DataConfig locates the input files and controls load-time simplification.
type DataConfig struct {
	SidewalksPath  string `yaml:"sidewalks_path" mapstructure:"sidewalks_path"`
	BoundariesPath string `yaml:"boundaries_path" mapstructure:"boundaries_path"`
	BoundariesCRS  string `yaml:"boundaries_crs" mapstructure:"boundaries_crs"`
	BoroughField   string `yaml:"borough_field" mapstructure:"borough_field"`
	// Boroughs may narrow the five-borough allow-list but not extend it.
	Boroughs          []string `yaml:"boroughs" mapstructure:"boroughs"`
	SidewalkTolerance float64  `yaml:"sidewalk_tolerance" mapstructure:"sidewalk_tolerance"`
	BoundaryTolerance float64  `yaml:"boundary_tolerance" mapstructure:"boundary_tolerance"`
}

// BeaconConfig shapes the deployment beacons, in planar CRS units.
type BeaconConfig struct {
	Rings    int     `yaml:"rings" mapstructure:"rings"`
	Radius   float64 `yaml:"radius" mapstructure:"radius"`
	Height   float64 `yaml:"height" mapstructure:"height"`
	Segments int     `yaml:"segments" mapstructure:"segments"`
}

// ServerConfig configures the HTTP and websocket server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
	// StaticDir serves a built copy of the browser client at /. The client
	// is deployed separately, so it is empty by default and only the API,
	// websocket and videos are served.
	StaticDir      string   `yaml:"static_dir" mapstructure:"static_dir"`
	VideoDir       string   `yaml:"video_dir" mapstructure:"video_dir"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	// MessageRate is the sustained inbound messages per second per session.
	MessageRate  float64 `yaml:"message_rate" mapstructure:"message_rate"`
	MessageBurst int     `yaml:"message_burst" mapstructure:"message_burst"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads config.yaml from the working directory, if present, and the
// environment.
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom is Load with an explicit config file. An empty path searches the
// working directory and tolerates a missing file; a named file must exist.
func LoadFrom(path string) (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("ROBOTABILITY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("data.sidewalks_path", "data/score_by_sidewalk.csv")
	v.SetDefault("data.boundaries_path", "data/nycb2020_24c/nycb2020.shp")
	v.SetDefault("data.boundaries_crs", "EPSG:2263")
	v.SetDefault("data.borough_field", "BoroName")
	v.SetDefault("data.boroughs", model.Boroughs)
	v.SetDefault("data.sidewalk_tolerance", 2.0)
	v.SetDefault("data.boundary_tolerance", 5.0)
	v.SetDefault("beacon.rings", 15)
	v.SetDefault("beacon.radius", 400.0)
	v.SetDefault("beacon.height", 150.0)
	v.SetDefault("beacon.segments", 16)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.static_dir", "")
	v.SetDefault("server.video_dir", "videos")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.message_rate", 10.0)
	v.SetDefault("server.message_burst", 20)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional unless named)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the dashboard cannot run with. Every problem is
// reported in one error.
func (c *Config) Validate() error {
	var errs []string

	if c.Data.SidewalksPath == "" {
		errs = append(errs, "data.sidewalks_path is required")
	}
	if c.Data.BoundariesPath == "" {
		errs = append(errs, "data.boundaries_path is required")
	}
	for _, b := range c.Data.Boroughs {
		if !model.IsBorough(b) {
			errs = append(errs, fmt.Sprintf("data.boroughs: %q is not a New York City borough", b))
		}
	}
	if c.Data.SidewalkTolerance < 0 || c.Data.BoundaryTolerance < 0 {
		errs = append(errs, "data tolerances must be >= 0")
	}
	if c.Beacon.Rings < 1 {
		errs = append(errs, "beacon.rings must be >= 1")
	}
	if c.Beacon.Segments < 1 {
		errs = append(errs, "beacon.segments must be >= 1")
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 0 and 65535")
	}
	if c.Server.MessageRate < 0 {
		errs = append(errs, "server.message_rate must be >= 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
