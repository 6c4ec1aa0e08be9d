package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/IRL-CT/robotability/internal/config"
	"github.com/IRL-CT/robotability/internal/monitoring"
	"github.com/IRL-CT/robotability/internal/server"
	"github.com/IRL-CT/robotability/internal/session"
)

var servePort int

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the map dashboard server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		handler, err := buildHandler(cfg, prometheus.NewRegistry())
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			// Websocket sessions end when ctx is cancelled.
			BaseContext: func(net.Listener) context.Context { return ctx },
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		if cfg.Server.StaticDir == "" {
			zap.L().Info("server.static_dir not set, serving API only")
		}
		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.String("static_dir", cfg.Server.StaticDir),
			zap.String("video_dir", cfg.Server.VideoDir),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// buildHandler wires metrics, the session factory and the router.
func buildHandler(c *config.Config, reg *prometheus.Registry) (http.Handler, error) {
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := monitoring.NewMetrics(reg)
	if err != nil {
		return nil, eris.Wrap(err, "register metrics")
	}

	env := newAppEnv(c)
	srv := server.New(server.Options{
		StaticDir:      c.Server.StaticDir,
		VideoDir:       c.Server.VideoDir,
		AllowedOrigins: c.Server.AllowedOrigins,
		Sites:          env.Sites,
		Metrics:        metrics,
		NewSession: func(out session.Sender) *session.Session {
			return session.New(out, session.Options{
				Dataset:  env.newDataset(),
				Composer: env.Composer,
				Sites:    env.Sites,
				Metrics:  metrics,
				Limiter:  newLimiter(c.Server),
			})
		},
	})
	return srv.Handler(), nil
}

// newLimiter returns nil when throttling is disabled.
func newLimiter(c config.ServerConfig) *rate.Limiter {
	if c.MessageRate <= 0 {
		return nil
	}
	burst := c.MessageBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(c.MessageRate), burst)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
