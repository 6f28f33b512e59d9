package game

import (
	"encoding/json"
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
)

// Chess implements Rules on top of corentings/chess. The board document keeps
// the move list as the source of truth; the FEN is maintained for presentation
// and every apply reconstructs from the start position, since replaying on top
// of a cached FEN can double-apply moves.
type Chess struct{}

func (Chess) Type() Type { return TypeChess }

func (Chess) Marks() [2]Mark { return [2]Mark{"white", "black"} }

type chessBoard struct {
	FEN      string   `json:"fen"`
	MovesUCI []string `json:"moves_uci"`
	MovesSAN []string `json:"moves_san"`
}

type chessSquare struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type chessMove struct {
	From      *chessSquare `json:"from,omitempty"`
	To        *chessSquare `json:"to,omitempty"`
	UCI       string       `json:"uci,omitempty"`
	Promotion string       `json:"promotion,omitempty"`
}

func (Chess) InitialBoard() (json.RawMessage, error) {
	g := nchess.NewGame()
	return json.Marshal(chessBoard{
		FEN:      g.FEN(),
		MovesUCI: []string{},
		MovesSAN: []string{},
	})
}

func (c Chess) ApplyMove(board, mv json.RawMessage, mark Mark) (json.RawMessage, Outcome, error) {
	var b chessBoard
	if err := json.Unmarshal(board, &b); err != nil {
		return nil, Outcome{}, err
	}
	var m chessMove
	if err := json.Unmarshal(mv, &m); err != nil {
		return nil, Outcome{}, violationf("invalid move payload")
	}

	gm := reconstruct(b.MovesUCI)
	if gm == nil {
		return nil, Outcome{}, fmt.Errorf("failed to reconstruct game from %d moves", len(b.MovesUCI))
	}
	pos := gm.Position()

	uci, err := m.uciString()
	if err != nil {
		return nil, Outcome{}, err
	}

	// Decode only parses the coordinates; legality is checked by the game
	// accepting the move. A rejected move must leave gm untouched.
	notation := nchess.UCINotation{}
	apply := func(u string) *nchess.Move {
		mv, derr := notation.Decode(pos, u)
		if derr != nil {
			return nil
		}
		if gm.Move(mv, nil) != nil {
			return nil
		}
		return mv
	}
	move := apply(uci)
	if move == nil && m.Promotion == "" && len(uci) == 4 {
		// a bare from/to reaching the last rank needs a promotion piece;
		// default to queen like the clients do
		if mv := apply(uci + "q"); mv != nil {
			move = mv
			uci += "q"
		}
	}
	if move == nil {
		return nil, Outcome{}, violationf("illegal move %s", uci)
	}

	san := nchess.AlgebraicNotation{}.Encode(pos, move)

	b.MovesUCI = append(b.MovesUCI, uci)
	b.MovesSAN = append(b.MovesSAN, san)
	b.FEN = gm.FEN()

	out := Outcome{Kind: OutcomeOngoing}
	switch gm.Outcome() {
	case nchess.WhiteWon:
		out = Outcome{Kind: OutcomeWin, Winner: "white"}
	case nchess.BlackWon:
		out = Outcome{Kind: OutcomeWin, Winner: "black"}
	case nchess.Draw:
		out = Outcome{Kind: OutcomeDraw}
	}

	next, err := json.Marshal(b)
	if err != nil {
		return nil, Outcome{}, err
	}
	return next, out, nil
}

// ChessView is the wire shape for a chess board: the 8x8 grid row 0 = rank 8,
// uppercase white, lowercase black, matching the SPA's renderer.
type ChessView struct {
	Board    [8][8]*string `json:"board"`
	FEN      string        `json:"fen"`
	MovesUCI []string      `json:"movesUci"`
	MovesSAN []string      `json:"movesSan"`
}

func (Chess) View(board json.RawMessage) (any, error) {
	var b chessBoard
	if err := json.Unmarshal(board, &b); err != nil {
		return nil, err
	}
	grid, err := gridFromFEN(b.FEN)
	if err != nil {
		return nil, err
	}
	return ChessView{Board: grid, FEN: b.FEN, MovesUCI: b.MovesUCI, MovesSAN: b.MovesSAN}, nil
}

func (m chessMove) uciString() (string, error) {
	if m.UCI != "" {
		return strings.ToLower(strings.TrimSpace(m.UCI)), nil
	}
	if m.From == nil || m.To == nil {
		return "", violationf("move needs from and to squares")
	}
	for _, sq := range []*chessSquare{m.From, m.To} {
		if sq.Row < 0 || sq.Row > 7 || sq.Col < 0 || sq.Col > 7 {
			return "", violationf("square out of range")
		}
	}
	uci := squareName(*m.From) + squareName(*m.To)
	if p := strings.ToLower(strings.TrimSpace(m.Promotion)); p != "" {
		uci += p
	}
	return uci, nil
}

// squareName maps grid coordinates (row 0 = rank 8) to algebraic squares.
func squareName(sq chessSquare) string {
	return string(rune('a'+sq.Col)) + string(rune('8'-sq.Row))
}

func reconstruct(moves []string) *nchess.Game {
	gm := nchess.NewGame()
	for _, mv := range moves {
		if err := gm.PushNotationMove(mv, nchess.UCINotation{}, nil); err != nil {
			return nil
		}
	}
	return gm
}

// gridFromFEN expands the piece-placement field of a FEN string.
func gridFromFEN(fen string) ([8][8]*string, error) {
	var grid [8][8]*string
	placement := strings.SplitN(strings.TrimSpace(fen), " ", 2)[0]
	ranks := strings.Split(placement, "/")
	if len(ranks) != 8 {
		return grid, fmt.Errorf("malformed fen: %q", fen)
	}
	for row, rank := range ranks {
		col := 0
		for _, r := range rank {
			if col > 7 {
				return grid, fmt.Errorf("malformed fen rank: %q", rank)
			}
			if r >= '1' && r <= '8' {
				col += int(r - '0')
				continue
			}
			piece := string(r)
			grid[row][col] = &piece
			col++
		}
	}
	return grid, nil
}
