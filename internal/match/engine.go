package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/internal/game"
	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/internal/obslog"
	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/pkg/matchdto"
)

// ResultKind is the per-player outcome reported to the stats collaborator.
type ResultKind string

const (
	ResultWin  ResultKind = "win"
	ResultLoss ResultKind = "loss"
	ResultDraw ResultKind = "draw"
)

// Recorder receives terminal-transition side effects. Failures are logged
// and never roll back a committed completion.
type Recorder interface {
	RecordResult(ctx context.Context, userID string, result ResultKind) error
	ArchiveMatch(ctx context.Context, m *Match) error
}

// Engine is the authoritative match state machine. Every mutating operation
// on one match id is serialized: a per-match mutex inside the process, and
// the store's WATCH/version check across processes. A conflict that slips
// past the mutex is retried a bounded number of times.
type Engine struct {
	store   *Store
	retries int

	mu    sync.Mutex
	locks map[string]*sync.Mutex

	stats Recorder
}

func NewEngine(store *Store) *Engine {
	return &Engine{store: store, retries: 3, locks: make(map[string]*sync.Mutex)}
}

// AttachStats wires the stats collaborator for completed matches.
func (e *Engine) AttachStats(r Recorder) {
	if e != nil {
		e.stats = r
	}
}

// SetConflictRetries overrides the retry budget for store conflicts.
func (e *Engine) SetConflictRetries(n int) {
	if e != nil && n > 0 {
		e.retries = n
	}
}

func (e *Engine) lockFor(id string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	return l
}

// errNoChange aborts a mutation without writing; the operation is an
// idempotent no-op (re-join, duplicate spectate, repeated draw offer).
var errNoChange = errors.New("no change")

// mutate runs fn under the match's mutex with conflict retries.
func (e *Engine) mutate(ctx context.Context, id string, fn func(*Match) error) (*Match, error) {
	l := e.lockFor(id)
	l.Lock()
	defer l.Unlock()

	for attempt := 0; attempt <= e.retries; attempt++ {
		m, err := e.store.UpdateTx(ctx, id, fn)
		if errors.Is(err, ErrConflict) {
			obslog.L().Warn("match_conflict_retry", zap.String("match_id", id), zap.Int("attempt", attempt+1))
			continue
		}
		if errors.Is(err, errNoChange) {
			return e.store.Load(ctx, id)
		}
		return m, err
	}
	return nil, ErrConflict
}

// Create opens a new match. With no opponent the match waits in the open
// lobby; with an invited opponent it is pending until that identity joins.
func (e *Engine) Create(ctx context.Context, creator matchdto.Identity, gameType game.Type, opponentID string) (*Match, error) {
	if strings.TrimSpace(creator.ID) == "" {
		return nil, fmt.Errorf("invalid creator identity")
	}
	rules, err := game.ForType(gameType)
	if err != nil {
		return nil, err
	}
	board, err := rules.InitialBoard()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	m := &Match{
		ID:       uuid.NewString(),
		GameType: gameType,
		Status:   StatusWaiting,
		Players: []Player{{
			ID:       creator.ID,
			Username: creator.Username,
			Mark:     rules.Marks()[0],
		}},
		Board:      board,
		MoveLog:    []MoveRecord{},
		Spectators: []string{},
		ChatLog:    []ChatMessage{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	opponentID = strings.TrimSpace(opponentID)
	if opponentID != "" {
		if opponentID == creator.ID {
			return nil, fmt.Errorf("cannot invite yourself")
		}
		m.Status = StatusPending
		m.InvitedID = opponentID
	}

	if err := e.store.Create(ctx, m); err != nil {
		return nil, err
	}
	if err := e.store.IndexPlayer(ctx, creator.ID, m.ID); err != nil {
		return nil, err
	}
	if opponentID != "" {
		_ = e.store.IndexPlayer(ctx, opponentID, m.ID)
	} else {
		_ = e.store.AddLobby(ctx, m.ID)
	}

	obslog.L().Info("match_create",
		zap.String("match_id", m.ID),
		zap.String("game_type", string(gameType)),
		zap.String("creator_id", creator.ID),
		zap.String("status", string(m.Status)),
	)
	return m, nil
}

// Join seats the second player and starts play: status becomes active, the
// creator holds the first turn, startedAt is stamped. Re-joining as an
// existing player is an idempotent no-op.
func (e *Engine) Join(ctx context.Context, matchID string, joiner matchdto.Identity) (*Match, error) {
	seated := false
	m, err := e.mutate(ctx, matchID, func(m *Match) error {
		seated = false
		if m.Status.Terminal() {
			return ErrMatchFinished
		}
		if m.PlayerByID(joiner.ID) != nil {
			return errNoChange
		}
		if len(m.Players) >= 2 || m.Status == StatusActive {
			return ErrMatchFull
		}
		if m.Status == StatusPending && m.InvitedID != joiner.ID {
			return ErrNotInvited
		}
		rules, err := game.ForType(m.GameType)
		if err != nil {
			return err
		}
		m.Players = append(m.Players, Player{
			ID:       joiner.ID,
			Username: joiner.Username,
			Mark:     rules.Marks()[1],
		})
		now := time.Now()
		m.Status = StatusActive
		m.CurrentTurn = m.Players[0].ID
		m.StartedAt = &now
		m.InvitedID = ""
		seated = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	// an idempotent re-join must not delist a still-open match
	if seated {
		_ = e.store.RemoveLobby(ctx, matchID)
		_ = e.store.IndexPlayer(ctx, joiner.ID, matchID)
	}

	obslog.L().Info("match_join",
		zap.String("match_id", matchID),
		zap.String("joiner_id", joiner.ID),
		zap.String("status", string(m.Status)),
	)
	return m, nil
}

// ApplyMove validates and applies one move. Check order: match exists,
// status active, actor holds the turn, rules accept the move. On a win the
// actor's seat becomes the winner; on a draw the match completes with no
// winner; otherwise the turn flips.
func (e *Engine) ApplyMove(ctx context.Context, matchID, actorID string, mv json.RawMessage) (*Match, error) {
	m, err := e.mutate(ctx, matchID, func(m *Match) error {
		if m.Status.Terminal() {
			return ErrMatchFinished
		}
		if m.Status != StatusActive {
			return ErrMatchNotActive
		}
		p := m.PlayerByID(actorID)
		if p == nil {
			return ErrNotInMatch
		}
		if m.CurrentTurn != actorID {
			return ErrNotYourTurn
		}
		rules, err := game.ForType(m.GameType)
		if err != nil {
			return err
		}
		board, out, err := rules.ApplyMove(m.Board, mv, p.Mark)
		if err != nil {
			var rv *game.RuleViolation
			if errors.As(err, &rv) {
				return fmt.Errorf("%w: %s", ErrIllegalMove, rv.Reason)
			}
			return err
		}

		m.Board = board
		m.MoveLog = append(m.MoveLog, MoveRecord{Player: actorID, Move: mv, AppliedAt: time.Now()})
		m.DrawOfferBy = ""

		switch out.Kind {
		case game.OutcomeWin:
			w := m.PlayerByMark(out.Winner)
			if w == nil {
				return fmt.Errorf("no seat holds winning mark %q", out.Winner)
			}
			e.complete(m, w.ID)
		case game.OutcomeDraw:
			e.complete(m, "")
		default:
			m.CurrentTurn = m.Opponent(actorID).ID
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	obslog.L().Info("match_move",
		zap.String("match_id", matchID),
		zap.String("actor_id", actorID),
		zap.Int("moves", len(m.MoveLog)),
		zap.String("status", string(m.Status)),
	)
	if m.Status == StatusCompleted {
		e.recordCompletion(ctx, m)
	}
	return m, nil
}

// Resign ends an active match in the opponent's favor.
func (e *Engine) Resign(ctx context.Context, matchID, actorID string) (*Match, error) {
	m, err := e.mutate(ctx, matchID, func(m *Match) error {
		if m.Status.Terminal() {
			return ErrMatchFinished
		}
		if m.Status != StatusActive {
			return ErrMatchNotActive
		}
		if m.PlayerByID(actorID) == nil {
			return ErrNotInMatch
		}
		e.complete(m, m.Opponent(actorID).ID)
		return nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("match_resign",
		zap.String("match_id", matchID),
		zap.String("resigner_id", actorID),
		zap.String("winner_id", m.Winner),
	)
	e.recordCompletion(ctx, m)
	return m, nil
}

// OfferDraw records a standing draw offer. An offer from the player on the
// other side of an existing offer completes the match as a draw; repeating
// one's own offer is a no-op. The returned bool reports completion.
func (e *Engine) OfferDraw(ctx context.Context, matchID, actorID string) (*Match, bool, error) {
	m, err := e.mutate(ctx, matchID, func(m *Match) error {
		if m.Status.Terminal() {
			return ErrMatchFinished
		}
		if m.Status != StatusActive {
			return ErrMatchNotActive
		}
		if m.PlayerByID(actorID) == nil {
			return ErrNotInMatch
		}
		if m.DrawOfferBy == actorID {
			return errNoChange
		}
		if m.DrawOfferBy != "" {
			e.complete(m, "")
			return nil
		}
		m.DrawOfferBy = actorID
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	done := m.Status == StatusCompleted
	obslog.L().Info("match_draw_offer",
		zap.String("match_id", matchID),
		zap.String("actor_id", actorID),
		zap.Bool("completed", done),
	)
	if done {
		e.recordCompletion(ctx, m)
	}
	return m, done, nil
}

// AcceptDraw completes the match as a draw; requires a standing offer from
// the other player.
func (e *Engine) AcceptDraw(ctx context.Context, matchID, actorID string) (*Match, error) {
	m, err := e.mutate(ctx, matchID, func(m *Match) error {
		if m.Status.Terminal() {
			return ErrMatchFinished
		}
		if m.Status != StatusActive {
			return ErrMatchNotActive
		}
		if m.PlayerByID(actorID) == nil {
			return ErrNotInMatch
		}
		if m.DrawOfferBy == "" || m.DrawOfferBy == actorID {
			return ErrNoDrawOffer
		}
		e.complete(m, "")
		return nil
	})
	if err != nil {
		return nil, err
	}
	obslog.L().Info("match_draw_accept", zap.String("match_id", matchID), zap.String("actor_id", actorID))
	e.recordCompletion(ctx, m)
	return m, nil
}

// DeclineDraw clears a standing offer from the other player.
func (e *Engine) DeclineDraw(ctx context.Context, matchID, actorID string) (*Match, error) {
	return e.mutate(ctx, matchID, func(m *Match) error {
		if m.Status.Terminal() {
			return ErrMatchFinished
		}
		if m.Status != StatusActive {
			return ErrMatchNotActive
		}
		if m.PlayerByID(actorID) == nil {
			return ErrNotInMatch
		}
		if m.DrawOfferBy == "" || m.DrawOfferBy == actorID {
			return ErrNoDrawOffer
		}
		m.DrawOfferBy = ""
		return nil
	})
}

// Cancel aborts a match that has not started. Active matches can only end
// by play, resignation or agreed draw.
func (e *Engine) Cancel(ctx context.Context, matchID, actorID string) (*Match, error) {
	m, err := e.mutate(ctx, matchID, func(m *Match) error {
		if m.Status.Terminal() {
			return ErrMatchFinished
		}
		if m.Status != StatusWaiting && m.Status != StatusPending {
			return ErrMatchNotActive
		}
		if m.PlayerByID(actorID) == nil {
			return ErrNotInMatch
		}
		now := time.Now()
		m.Status = StatusCancelled
		m.EndedAt = &now
		m.CurrentTurn = ""
		return nil
	})
	if err != nil {
		return nil, err
	}
	_ = e.store.RemoveLobby(ctx, matchID)
	obslog.L().Info("match_cancel", zap.String("match_id", matchID), zap.String("actor_id", actorID))
	return m, nil
}

// Spectate adds an identity to the spectator set; duplicates are no-ops and
// spectating never changes the match outcome.
func (e *Engine) Spectate(ctx context.Context, matchID, userID string) (*Match, error) {
	return e.mutate(ctx, matchID, func(m *Match) error {
		if m.HasSpectator(userID) || m.PlayerByID(userID) != nil {
			return errNoChange
		}
		m.Spectators = append(m.Spectators, userID)
		return nil
	})
}

// AppendChat appends one chat line to the transcript.
func (e *Engine) AppendChat(ctx context.Context, matchID string, author matchdto.Identity, text string) (*Match, *ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil, ErrEmptyMessage
	}
	var msg ChatMessage
	m, err := e.mutate(ctx, matchID, func(m *Match) error {
		msg = ChatMessage{Author: author.ID, Username: author.Username, Text: text, At: time.Now()}
		m.ChatLog = append(m.ChatLog, msg)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return m, &msg, nil
}

// Get loads a match snapshot.
func (e *Engine) Get(ctx context.Context, matchID string) (*Match, error) {
	return e.store.Load(ctx, matchID)
}

// ListWaiting returns matches open to any joiner.
func (e *Engine) ListWaiting(ctx context.Context) ([]*Match, error) {
	return e.store.ListLobby(ctx)
}

// ActiveMatchForUser returns the user's most recently touched active match,
// or nil.
func (e *Engine) ActiveMatchForUser(ctx context.Context, userID string) (*Match, error) {
	list, err := e.store.MatchesByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, m := range list {
		if m.Status == StatusActive {
			return m, nil
		}
	}
	return nil, nil
}

// complete performs the single terminal transition into completed. winnerID
// empty means a draw. Winner, endedAt and seat flags are set exactly once.
func (e *Engine) complete(m *Match, winnerID string) {
	now := time.Now()
	m.Status = StatusCompleted
	m.EndedAt = &now
	m.CurrentTurn = ""
	m.DrawOfferBy = ""
	if winnerID != "" {
		m.Winner = winnerID
		if w := m.PlayerByID(winnerID); w != nil {
			w.IsWinner = true
			w.Score = 1
		}
	}
}

// recordCompletion pushes stats and the archive record downstream. Both are
// best effort: the committed completion is the source of truth.
func (e *Engine) recordCompletion(ctx context.Context, m *Match) {
	if e.stats == nil || m.Status != StatusCompleted {
		return
	}
	for _, p := range m.Players {
		result := ResultDraw
		if m.Winner != "" {
			result = ResultLoss
			if p.ID == m.Winner {
				result = ResultWin
			}
		}
		if err := e.stats.RecordResult(ctx, p.ID, result); err != nil {
			obslog.L().Error("stats_record_error",
				zap.String("match_id", m.ID),
				zap.String("user_id", p.ID),
				zap.Error(err),
			)
		}
	}
	if err := e.stats.ArchiveMatch(ctx, m); err != nil {
		obslog.L().Error("match_archive_error", zap.String("match_id", m.ID), zap.Error(err))
	}
}
