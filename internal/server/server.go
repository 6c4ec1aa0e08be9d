// Package server exposes the dashboard over HTTP: static client files,
// deployment videos, a small read-only API, metrics, and the websocket
// endpoint that drives one session per connected client.
package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/IRL-CT/robotability/internal/model"
	"github.com/IRL-CT/robotability/internal/monitoring"
	"github.com/IRL-CT/robotability/internal/session"
)

// SessionFactory builds a fresh session for one connection.
type SessionFactory func(out session.Sender) *session.Session

// Options configures the server.
type Options struct {
	StaticDir      string
	VideoDir       string
	AllowedOrigins []string
	Sites          model.Sites
	Colors         []model.RGB
	Metrics        *monitoring.Metrics
	NewSession     SessionFactory
}

// Server routes dashboard requests.
type Server struct {
	opts     Options
	upgrader websocket.Upgrader
	router   chi.Router
}

// New builds the router.
func New(opts Options) *Server {
	if opts.Colors == nil {
		opts.Colors = model.ScoreColors
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{opts: opts}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ws", s.handleWebsocket)

	r.Route("/api", func(r chi.Router) {
		r.Get("/deployments", s.handleDeployments)
		r.Get("/legend", s.handleLegend)
	})

	if s.opts.Metrics != nil {
		r.Handle("/metrics", s.opts.Metrics.Handler())
	}
	if s.opts.VideoDir != "" {
		r.Handle("/videos/*", http.StripPrefix("/videos/", http.FileServer(http.Dir(s.opts.VideoDir))))
	}
	if s.opts.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.opts.StaticDir)))
	}
	return r
}

type deployment struct {
	ID        int     `json:"id"`
	Name      string  `json:"name"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Video     string  `json:"video"`
}

func (s *Server) handleDeployments(w http.ResponseWriter, r *http.Request) {
	out := make([]deployment, 0, len(s.opts.Sites))
	for _, site := range s.opts.Sites {
		out = append(out, deployment{
			ID:        site.ID,
			Name:      site.Name,
			Latitude:  site.Coordinate.Latitude,
			Longitude: site.Coordinate.Longitude,
			Video:     site.Video,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLegend(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"colors": s.opts.Colors,
		"low":    "Low",
		"high":   "High",
	})
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.opts.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	zap.L().Warn("rejecting websocket origin", zap.String("origin", origin))
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response failed", zap.Error(err))
	}
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		zap.L().Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
