package ws

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/internal/game"
	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/internal/match"
	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/internal/obslog"
	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/internal/presence"
	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/pkg/matchdto"
)

func (s *Server) dispatch(ctx context.Context, c *Client, env Envelope) {
	switch env.Event {
	case EvDeviceCheck:
		s.onDeviceCheck(ctx, c, env.Data)
	case EvGameCreate:
		s.onCreate(ctx, c, env.Data)
	case EvJoinGame:
		s.onJoin(ctx, c, env.Data)
	case EvGameMove:
		s.onMove(ctx, c, env.Data)
	case EvGameForfeit:
		s.onForfeit(ctx, c, env.Data)
	case EvOfferDraw:
		s.onOfferDraw(ctx, c, env.Data)
	case EvAcceptDraw:
		s.onAcceptDraw(ctx, c, env.Data)
	case EvDeclineDraw:
		s.onDeclineDraw(ctx, c, env.Data)
	case EvSpectate:
		s.onSpectate(ctx, c, env.Data)
	case EvSendMessage:
		s.onChat(ctx, c, env.Data)
	case EvLeaveGame:
		s.onLeave(ctx, c, env.Data)
	default:
		c.Emit(EvError, errorPayload{Message: s.cat.MustRender("request.malformed", nil)})
	}
}

// fail sends the failure to the offending caller only. State-change events
// never reach the room for a rejected operation.
func (s *Server) fail(c *Client, err error) {
	c.Emit(EvError, errorPayload{Message: s.errMessage(err)})
}

func (s *Server) errMessage(err error) string {
	switch {
	case errors.Is(err, match.ErrMatchNotFound):
		return s.cat.MustRender("match.not_found", nil)
	case errors.Is(err, match.ErrMatchFull):
		return s.cat.MustRender("match.full", nil)
	case errors.Is(err, match.ErrMatchFinished):
		return s.cat.MustRender("match.finished", nil)
	case errors.Is(err, match.ErrMatchNotActive):
		return s.cat.MustRender("match.not_active", nil)
	case errors.Is(err, match.ErrNotYourTurn):
		return s.cat.MustRender("match.not_your_turn", nil)
	case errors.Is(err, match.ErrIllegalMove):
		return s.cat.MustRender("match.illegal_move", nil)
	case errors.Is(err, match.ErrNotInMatch):
		return s.cat.MustRender("match.not_in_match", nil)
	case errors.Is(err, match.ErrNotInvited):
		return s.cat.MustRender("match.not_invited", nil)
	case errors.Is(err, match.ErrNoDrawOffer):
		return s.cat.MustRender("match.no_draw_offer", nil)
	case errors.Is(err, match.ErrEmptyMessage):
		return s.cat.MustRender("chat.empty", nil)
	case errors.Is(err, match.ErrConflict):
		return s.cat.MustRender("match.conflict", nil)
	default:
		obslog.L().Error("ws_handler_error", zap.Error(err))
		return s.cat.MustRender("request.malformed", nil)
	}
}

func decode[T any](s *Server, c *Client, raw json.RawMessage, out *T) bool {
	if err := json.Unmarshal(raw, out); err != nil {
		c.Emit(EvError, errorPayload{Message: s.cat.MustRender("request.malformed", nil)})
		return false
	}
	return true
}

func (s *Server) onDeviceCheck(ctx context.Context, c *Client, raw json.RawMessage) {
	var p deviceCheckPayload
	if !decode(s, c, raw, &p) {
		return
	}
	decision, existing, err := s.guard.CheckDevice(ctx, c.Identity.ID, p.DeviceID, c.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	switch decision {
	case presence.DecisionOtherDevice:
		// the resident device keeps the session; this connection must go
		if existing != nil {
			if holder := s.hub.ClientByConn(existing.ConnID); holder != nil {
				holder.Emit(EvDeviceNotification, matchdto.DeviceNotification{
					Message:   s.cat.MustRender("auth.device_in_use", nil),
					Timestamp: time.Now(),
				})
			}
		}
		c.Emit(EvError, errorPayload{Message: s.cat.MustRender("auth.device_in_use", nil)})
		c.Close(websocket.StatusPolicyViolation, "device in use")
	case presence.DecisionSameDevice:
		if existing != nil && existing.ConnID != c.ID {
			if old := s.hub.ClientByConn(existing.ConnID); old != nil {
				old.Emit(EvForceLogout, errorPayload{Message: s.cat.MustRender("auth.force_logout", nil)})
				old.Close(websocket.StatusNormalClosure, "superseded")
			}
		}
	}
}

func (s *Server) onCreate(ctx context.Context, c *Client, raw json.RawMessage) {
	var p createPayload
	if !decode(s, c, raw, &p) {
		return
	}
	gt, err := game.ParseType(p.GameType)
	if err != nil {
		c.Emit(EvError, errorPayload{Message: s.cat.MustRender("match.unknown_type", map[string]any{"Type": p.GameType})})
		return
	}
	m, err := s.engine.Create(ctx, c.Identity, gt, p.OpponentID)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.hub.Join(c, matchRoom(m.ID))
	snap, err := match.Snapshot(m)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Emit(EvGameCreated, snap)
	c.Emit(EvGameState, snap)
	if m.Status == match.StatusPending && m.InvitedID != "" {
		s.hub.SendToUser(m.InvitedID, EvGameInvited, invitePayload{
			GameID:   m.ID,
			GameType: string(m.GameType),
			FromID:   c.Identity.ID,
			FromName: c.Identity.Username,
		})
	}
}

func (s *Server) onJoin(ctx context.Context, c *Client, raw json.RawMessage) {
	var p gameRefPayload
	if !decode(s, c, raw, &p) {
		return
	}
	m, err := s.engine.Join(ctx, p.GameID, c.Identity)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.hub.Join(c, matchRoom(m.ID))

	snap, err := match.Snapshot(m)
	if err != nil {
		s.fail(c, err)
		return
	}
	// full state only to the joiner; the room gets the delta and head count
	c.Emit(EvGameState, snap)
	upd, err := match.Update(m)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.broadcastBoth(m.ID, EvGameUpdated, upd)
	s.broadcastBoth(m.ID, EvPlayerCount, playerCountPayload{GameID: m.ID, Count: len(m.Players)})
}

// broadcastBoth sends to the player room and the spectator room.
func (s *Server) broadcastBoth(matchID, event string, data any) {
	s.hub.Broadcast(matchRoom(matchID), event, data)
	s.hub.Broadcast(spectatorRoom(matchID), event, data)
}

func (s *Server) gameOver(m *match.Match, forfeiterID string) matchdto.GameOver {
	out := matchdto.GameOver{IsDraw: m.Winner == ""}
	if w := m.PlayerByID(m.Winner); w != nil {
		out.Winner = &matchdto.WinnerRef{UserID: w.ID, Username: w.Username}
	}
	if f := m.PlayerByID(forfeiterID); f != nil {
		out.Forfeit = true
		out.Forfeiter = &matchdto.WinnerRef{UserID: f.ID, Username: f.Username}
	}
	return out
}

func (s *Server) onMove(ctx context.Context, c *Client, raw json.RawMessage) {
	var p movePayload
	if !decode(s, c, raw, &p) {
		return
	}
	m, err := s.engine.ApplyMove(ctx, p.GameID, c.Identity.ID, p.Move)
	if err != nil {
		s.fail(c, err)
		return
	}
	upd, err := match.Update(m)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.broadcastBoth(m.ID, EvGameUpdated, upd)
	if m.Status.Terminal() {
		s.broadcastBoth(m.ID, EvGameOver, s.gameOver(m, ""))
	}
}

func (s *Server) onForfeit(ctx context.Context, c *Client, raw json.RawMessage) {
	var p gameRefPayload
	if !decode(s, c, raw, &p) {
		return
	}
	m, err := s.engine.Resign(ctx, p.GameID, c.Identity.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.broadcastBoth(m.ID, EvGameForfeited, matchdto.Forfeited{Winner: m.Winner})
	s.broadcastBoth(m.ID, EvGameOver, s.gameOver(m, c.Identity.ID))
}

func (s *Server) onOfferDraw(ctx context.Context, c *Client, raw json.RawMessage) {
	var p gameRefPayload
	if !decode(s, c, raw, &p) {
		return
	}
	m, done, err := s.engine.OfferDraw(ctx, p.GameID, c.Identity.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	if done {
		s.broadcastBoth(m.ID, EvGameOver, s.gameOver(m, ""))
		return
	}
	s.broadcastBoth(m.ID, EvDrawOffered, matchdto.DrawOffer{Player: c.Identity.ID})
}

func (s *Server) onAcceptDraw(ctx context.Context, c *Client, raw json.RawMessage) {
	var p gameRefPayload
	if !decode(s, c, raw, &p) {
		return
	}
	m, err := s.engine.AcceptDraw(ctx, p.GameID, c.Identity.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.broadcastBoth(m.ID, EvDrawAccepted, matchdto.DrawOffer{Player: c.Identity.ID})
	s.broadcastBoth(m.ID, EvGameOver, s.gameOver(m, ""))
}

func (s *Server) onDeclineDraw(ctx context.Context, c *Client, raw json.RawMessage) {
	var p gameRefPayload
	if !decode(s, c, raw, &p) {
		return
	}
	m, err := s.engine.DeclineDraw(ctx, p.GameID, c.Identity.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.broadcastBoth(m.ID, EvDrawDeclined, matchdto.DrawOffer{Player: c.Identity.ID})
}

func (s *Server) onSpectate(ctx context.Context, c *Client, raw json.RawMessage) {
	var p gameRefPayload
	if !decode(s, c, raw, &p) {
		return
	}
	m, err := s.engine.Spectate(ctx, p.GameID, c.Identity.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.hub.Join(c, spectatorRoom(m.ID))
	snap, err := match.Snapshot(m)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.Emit(EvGameState, snap)
	s.broadcastBoth(m.ID, EvSpectatorJoined, spectatorJoinedPayload{
		GameID:   m.ID,
		UserID:   c.Identity.ID,
		Username: c.Identity.Username,
	})
}

func (s *Server) onChat(ctx context.Context, c *Client, raw json.RawMessage) {
	var p chatPayload
	if !decode(s, c, raw, &p) {
		return
	}
	if len(p.Message) > s.maxChatLen {
		c.Emit(EvError, errorPayload{Message: s.cat.MustRender("chat.too_long", map[string]any{"Limit": s.maxChatLen})})
		return
	}
	_, msg, err := s.engine.AppendChat(ctx, p.GameID, c.Identity, p.Message)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.broadcastBoth(p.GameID, EvNewMessage, matchdto.ChatView{
		Username:  msg.Username,
		Message:   msg.Text,
		Timestamp: msg.At,
	})
}

func (s *Server) onLeave(_ context.Context, c *Client, raw json.RawMessage) {
	var p gameRefPayload
	if !decode(s, c, raw, &p) {
		return
	}
	s.hub.Leave(c, matchRoom(p.GameID))
	s.hub.Leave(c, spectatorRoom(p.GameID))
	s.hub.Broadcast(matchRoom(p.GameID), EvPlayerCount, playerCountPayload{
		GameID: p.GameID,
		Count:  s.hub.RoomSize(matchRoom(p.GameID)),
	})
}
