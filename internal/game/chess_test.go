package game

import (
	"encoding/json"
	"errors"
	"testing"
)

func chessMovePayload(fromRow, fromCol, toRow, toCol int) json.RawMessage {
	raw, _ := json.Marshal(chessMove{
		From: &chessSquare{Row: fromRow, Col: fromCol},
		To:   &chessSquare{Row: toRow, Col: toCol},
	})
	return raw
}

func uciPayload(uci string) json.RawMessage {
	raw, _ := json.Marshal(chessMove{UCI: uci})
	return raw
}

func TestChessInitialBoard(t *testing.T) {
	r := Chess{}
	board, err := r.InitialBoard()
	if err != nil {
		t.Fatalf("InitialBoard: %v", err)
	}
	view, err := r.View(board)
	if err != nil {
		t.Fatalf("View: %v", err)
	}
	cv := view.(ChessView)
	if cv.Board[0][0] == nil || *cv.Board[0][0] != "r" {
		t.Fatalf("expected black rook at a8, got %v", cv.Board[0][0])
	}
	if cv.Board[7][4] == nil || *cv.Board[7][4] != "K" {
		t.Fatalf("expected white king at e1, got %v", cv.Board[7][4])
	}
	if cv.Board[4][4] != nil {
		t.Fatalf("expected empty e4, got %q", *cv.Board[4][4])
	}
}

func TestChessApplyCoordinateMove(t *testing.T) {
	r := Chess{}
	board, _ := r.InitialBoard()

	// e2 (row 6, col 4) to e4 (row 4, col 4)
	board, out, err := r.ApplyMove(board, chessMovePayload(6, 4, 4, 4), "white")
	if err != nil {
		t.Fatalf("ApplyMove e2e4: %v", err)
	}
	if out.Kind != OutcomeOngoing {
		t.Fatalf("expected ongoing, got %+v", out)
	}
	var b chessBoard
	if err := json.Unmarshal(board, &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(b.MovesUCI) != 1 || b.MovesUCI[0] != "e2e4" {
		t.Fatalf("expected moves [e2e4], got %v", b.MovesUCI)
	}
	if len(b.MovesSAN) != 1 || b.MovesSAN[0] != "e4" {
		t.Fatalf("expected SAN [e4], got %v", b.MovesSAN)
	}
}

func TestChessIllegalMove(t *testing.T) {
	r := Chess{}
	board, _ := r.InitialBoard()

	// moving from an empty square
	_, _, err := r.ApplyMove(board, chessMovePayload(4, 4, 3, 4), "white")
	var rv *RuleViolation
	if !errors.As(err, &rv) {
		t.Fatalf("expected RuleViolation for empty source, got %v", err)
	}

	// a knight cannot reach e4 from g1
	_, _, err = r.ApplyMove(board, uciPayload("g1e4"), "white")
	if !errors.As(err, &rv) {
		t.Fatalf("expected RuleViolation for illegal knight move, got %v", err)
	}
}

func TestChessRejectedMoveLeavesBoardPlayable(t *testing.T) {
	r := Chess{}
	board, _ := r.InitialBoard()

	// pushing from the empty e4 square parses as UCI but is not a legal move
	_, _, err := r.ApplyMove(board, chessMovePayload(4, 4, 3, 4), "white")
	var rv *RuleViolation
	if !errors.As(err, &rv) {
		t.Fatalf("expected RuleViolation, got %v", err)
	}

	// the board document must be untouched: no logged move, FEN unchanged,
	// and a legal move still applies cleanly afterwards
	next, out, err := r.ApplyMove(board, uciPayload("e2e4"), "white")
	if err != nil {
		t.Fatalf("legal move after rejection: %v", err)
	}
	if out.Kind != OutcomeOngoing {
		t.Fatalf("expected ongoing, got %+v", out)
	}
	var b chessBoard
	if err := json.Unmarshal(next, &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(b.MovesUCI) != 1 || b.MovesUCI[0] != "e2e4" {
		t.Fatalf("expected move log [e2e4], got %v", b.MovesUCI)
	}
	if reconstruct(b.MovesUCI) == nil {
		t.Fatal("move log no longer replays")
	}
}

func TestChessSquareOutOfRange(t *testing.T) {
	r := Chess{}
	board, _ := r.InitialBoard()
	_, _, err := r.ApplyMove(board, chessMovePayload(6, 4, -1, 9), "white")
	var rv *RuleViolation
	if !errors.As(err, &rv) {
		t.Fatalf("expected RuleViolation, got %v", err)
	}
}

func TestChessFoolsMateCheckmate(t *testing.T) {
	r := Chess{}
	board, _ := r.InitialBoard()

	moves := []struct {
		uci  string
		mark Mark
	}{
		{"f2f3", "white"},
		{"e7e5", "black"},
		{"g2g4", "white"},
		{"d8h4", "black"},
	}
	var out Outcome
	var err error
	for _, m := range moves {
		board, out, err = r.ApplyMove(board, uciPayload(m.uci), m.mark)
		if err != nil {
			t.Fatalf("ApplyMove %s: %v", m.uci, err)
		}
	}
	if out.Kind != OutcomeWin || out.Winner != "black" {
		t.Fatalf("expected black checkmate win, got %+v", out)
	}
}

func TestChessReplayDeterminism(t *testing.T) {
	r := Chess{}
	board, _ := r.InitialBoard()

	for _, uci := range []string{"e2e4", "e7e5", "g1f3", "b8c6"} {
		var err error
		mark := Mark("white")
		var b chessBoard
		_ = json.Unmarshal(board, &b)
		if len(b.MovesUCI)%2 == 1 {
			mark = "black"
		}
		board, _, err = r.ApplyMove(board, uciPayload(uci), mark)
		if err != nil {
			t.Fatalf("ApplyMove %s: %v", uci, err)
		}
	}

	var b chessBoard
	if err := json.Unmarshal(board, &b); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	// replaying the move log from the start position must land on the same FEN
	gm := reconstruct(b.MovesUCI)
	if gm == nil {
		t.Fatal("reconstruct failed")
	}
	if gm.FEN() != b.FEN {
		t.Fatalf("replay mismatch:\n  stored %s\n  replay %s", b.FEN, gm.FEN())
	}
}

func TestSquareName(t *testing.T) {
	cases := map[string]chessSquare{
		"a8": {Row: 0, Col: 0},
		"h1": {Row: 7, Col: 7},
		"e2": {Row: 6, Col: 4},
	}
	for want, sq := range cases {
		if got := squareName(sq); got != want {
			t.Fatalf("squareName(%+v) = %q, want %q", sq, got, want)
		}
	}
}
