package match

import (
	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/internal/game"
	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/pkg/matchdto"
)

// Snapshot builds the full wire state of a match. The board is rendered
// through the rules' View so clients never see the internal board document.
func Snapshot(m *Match) (matchdto.Snapshot, error) {
	rules, err := game.ForType(m.GameType)
	if err != nil {
		return matchdto.Snapshot{}, err
	}
	view, err := rules.View(m.Board)
	if err != nil {
		return matchdto.Snapshot{}, err
	}

	players := make([]matchdto.PlayerView, 0, len(m.Players))
	for _, p := range m.Players {
		players = append(players, matchdto.PlayerView{
			UserID:   p.ID,
			Username: p.Username,
			Mark:     string(p.Mark),
			Score:    p.Score,
			IsWinner: p.IsWinner,
		})
	}
	chat := make([]matchdto.ChatView, 0, len(m.ChatLog))
	for _, c := range m.ChatLog {
		chat = append(chat, matchdto.ChatView{Username: c.Username, Message: c.Text, Timestamp: c.At})
	}

	return matchdto.Snapshot{
		ID:          m.ID,
		GameType:    string(m.GameType),
		Status:      string(m.Status),
		Players:     players,
		Board:       view,
		CurrentTurn: m.CurrentTurn,
		Winner:      m.Winner,
		DrawOfferBy: m.DrawOfferBy,
		Spectators:  append([]string{}, m.Spectators...),
		Moves:       len(m.MoveLog),
		Chat:        chat,
		StartedAt:   m.StartedAt,
		EndedAt:     m.EndedAt,
	}, nil
}

// Update builds the incremental payload broadcast after an applied move.
func Update(m *Match) (matchdto.Update, error) {
	rules, err := game.ForType(m.GameType)
	if err != nil {
		return matchdto.Update{}, err
	}
	view, err := rules.View(m.Board)
	if err != nil {
		return matchdto.Update{}, err
	}
	return matchdto.Update{
		Board:         view,
		CurrentTurn:   m.CurrentTurn,
		CurrentPlayer: m.CurrentTurn,
		Winner:        m.Winner,
		Status:        string(m.Status),
	}, nil
}
