package game

import (
	"encoding/json"
)

// TicTacToe implements Rules for a 3x3 board stored as an array of 9 cells,
// null for empty, "X"/"O" for placed marks.
type TicTacToe struct{}

func (TicTacToe) Type() Type { return TypeTicTacToe }

func (TicTacToe) Marks() [2]Mark { return [2]Mark{"X", "O"} }

func (TicTacToe) InitialBoard() (json.RawMessage, error) {
	return json.Marshal(make(tttBoard, 9))
}

type tttBoard []*string

type tttMove struct {
	Position int `json:"position"`
}

func (t TicTacToe) ApplyMove(board, mv json.RawMessage, mark Mark) (json.RawMessage, Outcome, error) {
	var b tttBoard
	if err := json.Unmarshal(board, &b); err != nil {
		return nil, Outcome{}, err
	}
	if len(b) != 9 {
		return nil, Outcome{}, violationf("malformed board")
	}
	var m tttMove
	if err := json.Unmarshal(mv, &m); err != nil {
		return nil, Outcome{}, violationf("invalid move payload")
	}
	if m.Position < 0 || m.Position > 8 {
		return nil, Outcome{}, violationf("position %d out of range", m.Position)
	}
	if b[m.Position] != nil {
		return nil, Outcome{}, violationf("position %d already occupied", m.Position)
	}

	s := string(mark)
	b[m.Position] = &s

	out := Outcome{Kind: OutcomeOngoing}
	if tttWins(b, s) {
		out = Outcome{Kind: OutcomeWin, Winner: mark}
	} else if tttFull(b) {
		out = Outcome{Kind: OutcomeDraw}
	}

	next, err := json.Marshal(b)
	if err != nil {
		return nil, Outcome{}, err
	}
	return next, out, nil
}

func (TicTacToe) View(board json.RawMessage) (any, error) {
	var b tttBoard
	if err := json.Unmarshal(board, &b); err != nil {
		return nil, err
	}
	return b, nil
}

var tttLines = [8][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8}, // rows
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8}, // cols
	{0, 4, 8}, {2, 4, 6}, // diagonals
}

func tttWins(b tttBoard, s string) bool {
	for _, line := range tttLines {
		if cellIs(b[line[0]], s) && cellIs(b[line[1]], s) && cellIs(b[line[2]], s) {
			return true
		}
	}
	return false
}

func cellIs(c *string, s string) bool { return c != nil && *c == s }

func tttFull(b tttBoard) bool {
	for _, c := range b {
		if c == nil {
			return false
		}
	}
	return true
}
