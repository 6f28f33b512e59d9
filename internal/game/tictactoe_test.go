package game

import (
	"encoding/json"
	"errors"
	"testing"
)

func tttMovePayload(pos int) json.RawMessage {
	raw, _ := json.Marshal(tttMove{Position: pos})
	return raw
}

func mustApply(t *testing.T, r Rules, board json.RawMessage, pos int, mark Mark) (json.RawMessage, Outcome) {
	t.Helper()
	next, out, err := r.ApplyMove(board, tttMovePayload(pos), mark)
	if err != nil {
		t.Fatalf("ApplyMove(%d, %s): %v", pos, mark, err)
	}
	return next, out
}

func TestTicTacToeInitialBoard(t *testing.T) {
	r := TicTacToe{}
	board, err := r.InitialBoard()
	if err != nil {
		t.Fatalf("InitialBoard: %v", err)
	}
	var b []*string
	if err := json.Unmarshal(board, &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(b) != 9 {
		t.Fatalf("expected 9 cells, got %d", len(b))
	}
	for i, c := range b {
		if c != nil {
			t.Fatalf("cell %d not empty: %q", i, *c)
		}
	}
}

func TestTicTacToeRowWin(t *testing.T) {
	r := TicTacToe{}
	board, _ := r.InitialBoard()

	// X: 0, O: 4, X: 1, O: 8, X: 2 -> win on row [0,1,2]
	board, out := mustApply(t, r, board, 0, "X")
	board, out = mustApply(t, r, board, 4, "O")
	board, out = mustApply(t, r, board, 1, "X")
	board, out = mustApply(t, r, board, 8, "O")
	board, out = mustApply(t, r, board, 2, "X")

	if out.Kind != OutcomeWin || out.Winner != "X" {
		t.Fatalf("expected X win, got %+v", out)
	}
	var b []*string
	if err := json.Unmarshal(board, &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := []any{"X", "X", "X", nil, "O", nil, nil, nil, "O"}
	for i, w := range want {
		switch v := w.(type) {
		case string:
			if b[i] == nil || *b[i] != v {
				t.Fatalf("cell %d: want %q, got %v", i, v, b[i])
			}
		case nil:
			if b[i] != nil {
				t.Fatalf("cell %d: want empty, got %q", i, *b[i])
			}
		}
	}
}

func TestTicTacToeDraw(t *testing.T) {
	r := TicTacToe{}
	board, _ := r.InitialBoard()

	// X O X / X O O / O X X fills the board without a line.
	seq := []struct {
		pos  int
		mark Mark
	}{
		{0, "X"}, {1, "O"}, {2, "X"},
		{4, "O"}, {3, "X"}, {5, "O"},
		{7, "X"}, {6, "O"}, {8, "X"},
	}
	var out Outcome
	for _, s := range seq {
		board, out = mustApply(t, r, board, s.pos, s.mark)
	}
	if out.Kind != OutcomeDraw {
		t.Fatalf("expected draw, got %+v", out)
	}
	if out.Winner != "" {
		t.Fatalf("draw must not have a winner, got %q", out.Winner)
	}
}

func TestTicTacToeOccupiedCell(t *testing.T) {
	r := TicTacToe{}
	board, _ := r.InitialBoard()
	board, _ = mustApply(t, r, board, 4, "X")

	_, _, err := r.ApplyMove(board, tttMovePayload(4), "O")
	var rv *RuleViolation
	if !errors.As(err, &rv) {
		t.Fatalf("expected RuleViolation, got %v", err)
	}
}

func TestTicTacToeOutOfRange(t *testing.T) {
	r := TicTacToe{}
	board, _ := r.InitialBoard()
	for _, pos := range []int{-1, 9, 100} {
		_, _, err := r.ApplyMove(board, tttMovePayload(pos), "X")
		var rv *RuleViolation
		if !errors.As(err, &rv) {
			t.Fatalf("position %d: expected RuleViolation, got %v", pos, err)
		}
	}
}

func TestTicTacToeOngoing(t *testing.T) {
	r := TicTacToe{}
	board, _ := r.InitialBoard()
	_, out := mustApply(t, r, board, 0, "X")
	if out.Kind != OutcomeOngoing {
		t.Fatalf("expected ongoing, got %+v", out)
	}
}

func TestParseType(t *testing.T) {
	if tt, err := ParseType("TicTacToe"); err != nil || tt != TypeTicTacToe {
		t.Fatalf("ParseType(TicTacToe): %v %v", tt, err)
	}
	if tt, err := ParseType(" chess "); err != nil || tt != TypeChess {
		t.Fatalf("ParseType(chess): %v %v", tt, err)
	}
	if _, err := ParseType("checkers"); err == nil {
		t.Fatalf("expected error for unsupported type")
	}
}
