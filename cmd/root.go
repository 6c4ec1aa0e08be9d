package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/IRL-CT/robotability/internal/config"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	cfg *config.Config

	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:     "robotability",
	Short:   "Sidewalk robotability map dashboard",
	Long:    "Serves normalized sidewalk robotability scores, census block boundaries and robot deployment beacons to a browser map client.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.LoadFrom(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		applyLogOverrides(cmd, c)
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		zap.L().Debug("config loaded",
			zap.String("command", cmd.Name()),
			zap.String("file", configPath),
			zap.String("version", version),
		)

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

// applyLogOverrides lets --log-level and --log-format win over file and
// environment settings.
func applyLogOverrides(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		c.Log.Level = logLevel
	}
	if flags.Changed("log-format") {
		c.Log.Format = logFormat
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "config file (default ./config.yaml if present)")
	pf.StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	pf.StringVar(&logFormat, "log-format", "", "log format override (json or console)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
