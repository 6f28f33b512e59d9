package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/internal/authclient"
	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/internal/match"
	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/internal/msgcat"
	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/internal/obslog"
	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/internal/presence"
	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/pkg/matchdto"
)

// TokenVerifier resolves a bearer token to an identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (matchdto.Identity, error)
}

// Server upgrades websocket connections and routes their events to the
// match engine and presence guard.
type Server struct {
	hub        *Hub
	engine     *match.Engine
	guard      *presence.Guard
	verifier   TokenVerifier
	cat        *msgcat.Catalog
	maxChatLen int
}

func NewServer(hub *Hub, engine *match.Engine, guard *presence.Guard, verifier TokenVerifier, cat *msgcat.Catalog, maxChatLen int) *Server {
	if maxChatLen <= 0 {
		maxChatLen = 500
	}
	return &Server{
		hub:        hub,
		engine:     engine,
		guard:      guard,
		verifier:   verifier,
		cat:        cat,
		maxChatLen: maxChatLen,
	}
}

// Handler returns the http mux with the websocket endpoint and health check.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}

func bearerToken(r *http.Request) string {
	if t := strings.TrimSpace(r.URL.Query().Get("token")); t != "" {
		return t
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	identity, err := s.verifier.Verify(r.Context(), bearerToken(r))
	if err != nil {
		if errors.Is(err, authclient.ErrUnauthorized) {
			http.Error(w, s.cat.MustRender("auth.unauthorized", nil), http.StatusUnauthorized)
			return
		}
		obslog.L().Error("ws_auth_error", zap.Error(err))
		http.Error(w, "auth unavailable", http.StatusBadGateway)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // cross-origin SPA clients
	})
	if err != nil {
		obslog.L().Warn("ws_accept_error", zap.Error(err))
		return
	}

	c := newClient(uuid.NewString(), identity, conn)
	s.hub.Register(c)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go c.writePump(ctx)

	obslog.L().Info("ws_connect",
		zap.String("conn_id", c.ID),
		zap.String("user_id", identity.ID),
	)

	s.readLoop(ctx, c)

	s.hub.Unregister(c)
	c.Close(websocket.StatusNormalClosure, "bye")
	if err := s.guard.Remove(context.Background(), identity.ID, c.ID); err != nil {
		obslog.L().Warn("presence_remove_error", zap.String("user_id", identity.ID), zap.Error(err))
	}
	obslog.L().Info("ws_disconnect",
		zap.String("conn_id", c.ID),
		zap.String("user_id", identity.ID),
	)
}

func (s *Server) readLoop(ctx context.Context, c *Client) {
	for {
		_, raw, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		var env Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			c.Emit(EvError, errorPayload{Message: s.cat.MustRender("request.malformed", nil)})
			continue
		}
		s.dispatch(ctx, c, env)
		if err := s.guard.Touch(ctx, c.Identity.ID, c.ID); err != nil {
			obslog.L().Warn("presence_touch_error", zap.String("user_id", c.Identity.ID), zap.Error(err))
		}
	}
}
