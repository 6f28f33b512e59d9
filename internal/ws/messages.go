package ws

import "encoding/json"

// Client to server events.
const (
	EvDeviceCheck = "auth:device:check"
	EvGameCreate  = "game:create"
	EvJoinGame    = "join-game"
	EvGameMove    = "game:move"
	EvGameForfeit = "game:forfeit"
	EvOfferDraw   = "game:offer-draw"
	EvAcceptDraw  = "game:accept-draw"
	EvDeclineDraw = "game:decline-draw"
	EvSpectate    = "spectate"
	EvSendMessage = "send-message"
	EvLeaveGame   = "leave-game"
)

// Server to client events.
const (
	EvGameState          = "game-state"
	EvGameCreated        = "game:created"
	EvGameInvited        = "game:invited"
	EvGameUpdated        = "game:updated"
	EvGameForfeited      = "game:forfeited"
	EvGameOver           = "game-over"
	EvPlayerCount        = "game:playerCount"
	EvSpectatorJoined    = "spectator-joined"
	EvNewMessage         = "new-message"
	EvDrawOffered        = "game:draw-offered"
	EvDrawAccepted       = "game:draw-accepted"
	EvDrawDeclined       = "game:draw-declined"
	EvForceLogout        = "auth:force:logout"
	EvDeviceNotification = "auth:device:notification"
	EvError              = "error"
)

// Envelope frames every message in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type deviceCheckPayload struct {
	DeviceID string `json:"deviceId"`
}

type createPayload struct {
	GameType   string `json:"gameType"`
	OpponentID string `json:"opponentId,omitempty"`
}

type gameRefPayload struct {
	GameID string `json:"gameId"`
}

type movePayload struct {
	GameID string          `json:"gameId"`
	Move   json.RawMessage `json:"move"`
}

type chatPayload struct {
	GameID  string `json:"gameId"`
	Message string `json:"message"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type playerCountPayload struct {
	GameID string `json:"gameId"`
	Count  int    `json:"count"`
}

type invitePayload struct {
	GameID   string `json:"gameId"`
	GameType string `json:"gameType"`
	FromID   string `json:"fromUserId"`
	FromName string `json:"fromUsername"`
}

type spectatorJoinedPayload struct {
	GameID   string `json:"gameId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}
