// Package session drives one connected map client: it owns the client's
// dataset, recomposes layers when the selection changes, and pushes
// updates back over the transport.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/IRL-CT/robotability/internal/dataset"
	"github.com/IRL-CT/robotability/internal/layers"
	"github.com/IRL-CT/robotability/internal/model"
	"github.com/IRL-CT/robotability/internal/monitoring"
)

// Sender delivers messages to the client.
type Sender interface {
	Send(ctx context.Context, env Envelope) error
}

// Options configures a session.
type Options struct {
	Dataset  *dataset.Dataset
	Composer *layers.Composer
	Sites    model.Sites
	Colors   []model.RGB
	Metrics  *monitoring.Metrics
	// Limiter throttles inbound messages. Nil means unlimited.
	Limiter *rate.Limiter
}

// Session is the view controller for one client. Its methods must be
// called from a single goroutine.
type Session struct {
	id        string
	opts      Options
	out       Sender
	log       *zap.Logger
	selection layers.Selection
}

// New creates a session that writes to out.
func New(out Sender, opts Options) *Session {
	if opts.Colors == nil {
		opts.Colors = model.ScoreColors
	}
	id := uuid.NewString()
	return &Session{
		id:        id,
		opts:      opts,
		out:       out,
		log:       zap.L().With(zap.String("component", "session"), zap.String("session_id", id)),
		selection: layers.DefaultSelection(),
	}
}

// ID returns the session identifier used in logs.
func (s *Session) ID() string { return s.id }

// Selection returns the currently enabled layers.
func (s *Session) Selection() layers.Selection { return s.selection }

// Start loads the dataset and pushes the initial view: every layer enabled
// and the camera over the first deployment. A load failure is reported to
// the client and returned; the session cannot continue without data.
func (s *Session) Start(ctx context.Context) error {
	start := time.Now()
	cached := s.opts.Dataset.Loaded()
	_, err := s.opts.Dataset.EnsureLoaded(ctx)
	if !cached {
		s.opts.Metrics.ObserveLoad(time.Since(start), err)
	}
	if err != nil {
		s.log.Error("dataset load failed", zap.Error(err))
		_ = s.sendError(ctx, "dataset unavailable: "+err.Error())
		return eris.Wrap(err, "session: load dataset")
	}

	if err := s.pushLayers(ctx); err != nil {
		return err
	}
	if len(s.opts.Sites) > 0 {
		return s.FlyTo(ctx, s.opts.Sites[0].Name)
	}
	return nil
}

// Handle dispatches one inbound message. Only transport failures are
// returned; bad input and composition errors are logged and reported to the
// client so a single broken update does not end the session.
func (s *Session) Handle(ctx context.Context, env Envelope) error {
	if s.opts.Limiter != nil {
		if err := s.opts.Limiter.Wait(ctx); err != nil {
			return eris.Wrap(err, "session: throttle")
		}
	}
	s.opts.Metrics.CountMessage(monitoring.Inbound, env.Type)

	switch env.Type {
	case TypeSetLayers:
		var msg SetLayers
		if err := env.Decode(&msg); err != nil {
			s.log.Warn("bad setLayers message", zap.Error(err))
			return s.sendError(ctx, err.Error())
		}
		return s.SetLayers(ctx, msg.Layers)

	case TypeSelectDeployment:
		var msg SelectDeployment
		if err := env.Decode(&msg); err != nil {
			s.log.Warn("bad selectDeployment message", zap.Error(err))
			return s.sendError(ctx, err.Error())
		}
		return s.FlyTo(ctx, msg.Name)

	default:
		s.log.Warn("ignoring unknown message type", zap.String("type", env.Type))
		return nil
	}
}

// SetLayers replaces the selection and pushes a freshly composed payload.
func (s *Session) SetLayers(ctx context.Context, names []string) error {
	s.selection = layers.ParseSelection(names)
	s.log.Debug("layer selection changed",
		zap.Strings("requested", names),
		zap.Any("enabled", s.selection.Layers()),
	)
	return s.pushLayers(ctx)
}

// FlyTo moves the client camera to the named deployment. Unknown names are
// logged and otherwise ignored.
func (s *Session) FlyTo(ctx context.Context, name string) error {
	site, ok := s.opts.Sites.Lookup(name)
	if !ok {
		s.opts.Metrics.UnknownSite()
		s.log.Warn("fly-to for unknown deployment", zap.String("name", name))
		return nil
	}
	return s.send(ctx, TypeFlyTo, FlyTo{
		Longitude: site.Coordinate.Longitude,
		Latitude:  site.Coordinate.Latitude,
		Zoom:      FlyToZoom,
	})
}

// Reject reports an inbound frame that could not be read as an envelope.
func (s *Session) Reject(ctx context.Context, err error) error {
	s.log.Warn("rejecting inbound frame", zap.Error(err))
	return s.sendError(ctx, "malformed message: "+err.Error())
}

func (s *Session) pushLayers(ctx context.Context) error {
	start := time.Now()
	payload, err := s.compose(ctx)
	s.opts.Metrics.ObserveCompose(time.Since(start), err)
	if err != nil {
		s.log.Error("compose failed", zap.Error(err))
		return s.sendError(ctx, "could not update layers: "+err.Error())
	}

	s.log.Debug("layers composed",
		zap.Any("layers", payload.Layers()),
		zap.Int("features", payload.FeatureCount()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return s.send(ctx, TypeUpdateLayers, UpdateLayers{Data: payload, Colors: s.opts.Colors})
}

func (s *Session) compose(ctx context.Context) (payload *layers.Payload, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("session: compose panicked: %v", r)
		}
	}()

	data, err := s.opts.Dataset.EnsureLoaded(ctx)
	if err != nil {
		return nil, err
	}
	return s.opts.Composer.Compose(data, s.selection)
}

func (s *Session) sendError(ctx context.Context, msg string) error {
	return s.send(ctx, TypeError, ErrorMessage{Error: msg})
}

func (s *Session) send(ctx context.Context, kind string, v any) error {
	env, err := NewEnvelope(kind, v)
	if err != nil {
		return err
	}
	if err := s.out.Send(ctx, env); err != nil {
		return eris.Wrapf(err, "session: send %s", kind)
	}
	s.opts.Metrics.CountMessage(monitoring.Outbound, kind)
	return nil
}
