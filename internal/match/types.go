package match

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/internal/game"
)

// Status is the match lifecycle state. Transitions are monotonic:
// waiting|pending -> active -> completed, with cancelled reachable only
// before play starts.
type Status string

const (
	StatusWaiting   Status = "waiting"
	StatusPending   Status = "pending"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further mutation is permitted.
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusCancelled }

// Player is one seat in a match.
type Player struct {
	ID       string    `json:"id"`
	Username string    `json:"username"`
	Mark     game.Mark `json:"mark"`
	Score    int       `json:"score"`
	IsWinner bool      `json:"is_winner"`
}

// MoveRecord is one applied move. The move log is append-only and replaying
// it through the rules from the initial board reproduces the board exactly.
type MoveRecord struct {
	Player    string          `json:"player"`
	Move      json.RawMessage `json:"move"`
	AppliedAt time.Time       `json:"applied_at"`
}

// ChatMessage is one in-match chat line, append-only.
type ChatMessage struct {
	Author   string    `json:"author"`
	Username string    `json:"username"`
	Text     string    `json:"text"`
	At       time.Time `json:"at"`
}

// Match is the persisted state of one contest. It is owned by the Engine:
// no other component mutates board, status or turn.
type Match struct {
	ID       string    `json:"id"`
	GameType game.Type `json:"game_type"`
	Status   Status    `json:"status"`

	Players   []Player `json:"players"`
	InvitedID string   `json:"invited_id,omitempty"`

	Board       json.RawMessage `json:"board"`
	CurrentTurn string          `json:"current_turn,omitempty"`
	Winner      string          `json:"winner,omitempty"`
	DrawOfferBy string          `json:"draw_offer_by,omitempty"`

	MoveLog    []MoveRecord  `json:"move_log"`
	Spectators []string      `json:"spectators"`
	ChatLog    []ChatMessage `json:"chat_log"`

	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	StartedAt *time.Time `json:"started_at,omitempty"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`

	// Version counts applied mutations; the store checks it inside WATCH so a
	// racing writer can never overwrite a state it did not read.
	Version int64 `json:"version"`
}

// PlayerByID returns the seat for an identity, or nil.
func (m *Match) PlayerByID(id string) *Player {
	for i := range m.Players {
		if m.Players[i].ID == id {
			return &m.Players[i]
		}
	}
	return nil
}

// PlayerByMark returns the seat holding a role mark, or nil.
func (m *Match) PlayerByMark(mark game.Mark) *Player {
	for i := range m.Players {
		if m.Players[i].Mark == mark {
			return &m.Players[i]
		}
	}
	return nil
}

// Opponent returns the other seat, or nil while the match has one player.
func (m *Match) Opponent(id string) *Player {
	for i := range m.Players {
		if m.Players[i].ID != id {
			return &m.Players[i]
		}
	}
	return nil
}

// HasSpectator reports whether an identity already spectates.
func (m *Match) HasSpectator(id string) bool {
	for _, s := range m.Spectators {
		if s == id {
			return true
		}
	}
	return false
}

// Operational failures, reported to the offending caller only.
var (
	ErrMatchNotFound  = errors.New("match not found")
	ErrMatchFull      = errors.New("match already has two players")
	ErrMatchFinished  = errors.New("match already finished")
	ErrMatchNotActive = errors.New("match not active")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrIllegalMove    = errors.New("illegal move")
	ErrNotInMatch     = errors.New("not a player in this match")
	ErrNotInvited     = errors.New("match is awaiting a specific opponent")
	ErrNoDrawOffer    = errors.New("no draw offer to act on")
	ErrEmptyMessage   = errors.New("empty chat message")
	ErrConflict       = errors.New("concurrent update conflict")
)
