package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/IRL-CT/robotability/internal/session"
)

const (
	writeWait    = 10 * time.Second
	maxFrameSize = 64 * 1024
)

// wsSender writes envelopes to a websocket. The session serializes calls.
type wsSender struct {
	conn *websocket.Conn
}

func (s *wsSender) Send(ctx context.Context, env session.Envelope) error {
	deadline := time.Now().Add(writeWait)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return eris.Wrap(err, "websocket: set write deadline")
	}
	return s.conn.WriteJSON(env)
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		zap.L().Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	conn.SetReadLimit(maxFrameSize)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		// Unblocks the read loop on shutdown.
		<-ctx.Done()
		conn.Close()
	}()

	s.opts.Metrics.SessionOpened()
	defer s.opts.Metrics.SessionClosed()

	sess := s.opts.NewSession(&wsSender{conn: conn})
	log := zap.L().With(zap.String("session_id", sess.ID()), zap.String("remote", r.RemoteAddr))
	log.Info("session opened")
	defer log.Info("session closed")

	if err := sess.Start(ctx); err != nil {
		log.Error("session start failed", zap.Error(err))
		closeWith(conn, websocket.CloseInternalServerErr, "dataset unavailable")
		return
	}

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && ctx.Err() == nil {
				log.Warn("websocket read failed", zap.Error(err))
			}
			return
		}

		var env session.Envelope
		if err := json.Unmarshal(frame, &env); err != nil {
			if err := sess.Reject(ctx, err); err != nil {
				log.Warn("websocket write failed", zap.Error(err))
				return
			}
			continue
		}
		if err := sess.Handle(ctx, env); err != nil {
			log.Warn("session ended", zap.Error(err))
			return
		}
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	msg := websocket.FormatCloseMessage(code, text)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
