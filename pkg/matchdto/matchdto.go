// Package matchdto holds the wire shapes shared by the realtime server and
// its clients. Field names follow the SPA's existing payload contract.
package matchdto

import "time"

// Identity is an authenticated account as returned by the token verifier.
type Identity struct {
	ID       string `json:"userId"`
	Username string `json:"username"`
}

// PlayerView is one seat in a snapshot.
type PlayerView struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Mark     string `json:"mark"`
	Score    int    `json:"score"`
	IsWinner bool   `json:"isWinner"`
}

// Snapshot is the full match state sent on join/spectate ("game-state").
type Snapshot struct {
	ID          string        `json:"id"`
	GameType    string        `json:"gameType"`
	Status      string        `json:"status"`
	Players     []PlayerView  `json:"players"`
	Board       any           `json:"board"`
	CurrentTurn string        `json:"currentTurn,omitempty"`
	Winner      string        `json:"winner,omitempty"`
	DrawOfferBy string        `json:"drawOfferBy,omitempty"`
	Spectators  []string      `json:"spectators"`
	Moves       int           `json:"moves"`
	Chat        []ChatView    `json:"chat"`
	StartedAt   *time.Time    `json:"startedAt,omitempty"`
	EndedAt     *time.Time    `json:"endedAt,omitempty"`
}

// ChatView is one chat line in a snapshot or "new-message" event.
type ChatView struct {
	Username  string    `json:"username"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Update is the incremental "game:updated" payload after an applied move.
type Update struct {
	Board       any    `json:"board"`
	CurrentTurn string `json:"currentTurn,omitempty"`
	// CurrentPlayer mirrors CurrentTurn under the name older clients read.
	CurrentPlayer string `json:"currentPlayer,omitempty"`
	Winner        string `json:"winner,omitempty"`
	Status        string `json:"status"`
}

// WinnerRef names the winning side in terminal events.
type WinnerRef struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// GameOver is the "game-over" payload on any terminal transition.
type GameOver struct {
	Winner    *WinnerRef `json:"winner"`
	IsDraw    bool       `json:"isDraw"`
	Forfeit   bool       `json:"forfeit,omitempty"`
	Forfeiter *WinnerRef `json:"forfeiter,omitempty"`
}

// Forfeited is the "game:forfeited" payload.
type Forfeited struct {
	Winner string `json:"winner"`
}

// DrawOffer is the "game:draw-offered" payload.
type DrawOffer struct {
	Player string `json:"player"`
}

// DeviceNotification is sent to the resident device when another device
// attempts to log in with the same account.
type DeviceNotification struct {
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
