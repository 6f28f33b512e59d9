package game

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Type tags the rule set a match plays under.
type Type string

const (
	TypeTicTacToe Type = "tic-tac-toe"
	TypeChess     Type = "chess"
)

// ParseType normalizes a client-supplied game type string.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "tic-tac-toe", "tictactoe", "ttt":
		return TypeTicTacToe, nil
	case "chess":
		return TypeChess, nil
	}
	return "", fmt.Errorf("unsupported game type: %q", s)
}

// Mark is the role token a player acts as ("X"/"O", "white"/"black").
// Rules speak only in marks; player identity is the engine's concern.
type Mark string

// Outcome is the terminal status after a move was applied.
type Outcome struct {
	Kind   OutcomeKind `json:"kind"`
	Winner Mark        `json:"winner,omitempty"`
}

type OutcomeKind string

const (
	OutcomeOngoing OutcomeKind = "ongoing"
	OutcomeWin     OutcomeKind = "win"
	OutcomeDraw    OutcomeKind = "draw"
)

// RuleViolation is an expected rejection of a candidate move: out of range,
// occupied cell, illegal piece movement. Turn order is never checked here.
type RuleViolation struct {
	Reason string
}

func (e *RuleViolation) Error() string { return e.Reason }

func violationf(format string, args ...any) error {
	return &RuleViolation{Reason: fmt.Sprintf(format, args...)}
}

// Rules is the pure per-game-type move pipeline. Board and move documents are
// opaque JSON owned by the implementation; nothing else mutates a board.
type Rules interface {
	Type() Type
	// Marks returns the two role marks in join order: creator first.
	Marks() [2]Mark
	InitialBoard() (json.RawMessage, error)
	// ApplyMove validates mv against board for the acting mark and returns the
	// next board plus outcome. Rejections are *RuleViolation.
	ApplyMove(board, mv json.RawMessage, mark Mark) (json.RawMessage, Outcome, error)
	// View converts a board document into the shape clients render.
	View(board json.RawMessage) (any, error)
}

// ForType selects the rule set for a game type.
func ForType(t Type) (Rules, error) {
	switch t {
	case TypeTicTacToe:
		return TicTacToe{}, nil
	case TypeChess:
		return Chess{}, nil
	}
	return nil, fmt.Errorf("no rules registered for game type %q", t)
}
