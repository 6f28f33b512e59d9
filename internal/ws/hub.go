package ws

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/internal/obslog"
	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/pkg/matchdto"
)

const sendBuffer = 32

func matchRoom(matchID string) string     { return "match:" + matchID }
func spectatorRoom(matchID string) string { return "match:" + matchID + ":spectators" }
func userRoom(userID string) string       { return "user:" + userID }

// Client is one live websocket connection with its writer goroutine. All
// outbound traffic goes through the send channel; a slow reader drops
// messages rather than blocking a broadcast.
type Client struct {
	ID       string
	Identity matchdto.Identity

	conn *websocket.Conn
	send chan []byte

	closed    chan struct{}
	closeOnce sync.Once
}

func newClient(id string, identity matchdto.Identity, conn *websocket.Conn) *Client {
	return &Client{
		ID:       id,
		Identity: identity,
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		closed:   make(chan struct{}),
	}
}

// Emit queues one event for this connection only.
func (c *Client) Emit(event string, data any) {
	raw, err := encodeEnvelope(event, data)
	if err != nil {
		obslog.L().Error("ws_encode_error", zap.String("event", event), zap.Error(err))
		return
	}
	c.enqueue(event, raw)
}

func (c *Client) enqueue(event string, raw []byte) {
	select {
	case <-c.closed:
	case c.send <- raw:
	default:
		obslog.L().Warn("ws_send_buffer_full",
			zap.String("conn_id", c.ID),
			zap.String("user_id", c.Identity.ID),
			zap.String("event", event),
		)
	}
}

// Close tears the connection down. Safe to call from any goroutine and more
// than once.
func (c *Client) Close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		close(c.closed)
		if c.conn != nil {
			_ = c.conn.Close(code, reason)
		}
	})
}

// writePump drains the send channel onto the wire until the client closes.
func (c *Client) writePump(ctx context.Context) {
	for {
		select {
		case <-c.closed:
			return
		case <-ctx.Done():
			return
		case raw := <-c.send:
			if err := c.conn.Write(ctx, websocket.MessageText, raw); err != nil {
				c.Close(websocket.StatusGoingAway, "write failed")
				return
			}
		}
	}
}

func encodeEnvelope(event string, data any) ([]byte, error) {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		raw = b
	}
	return json.Marshal(Envelope{Event: event, Data: raw})
}

// Hub tracks connections and their room memberships. Rooms are plain string
// keys: one per match, one per match's spectators, one per user.
type Hub struct {
	mu          sync.RWMutex
	rooms       map[string]map[*Client]struct{}
	clientRooms map[*Client]map[string]struct{}
	byConn      map[string]*Client
}

func NewHub() *Hub {
	return &Hub{
		rooms:       make(map[string]map[*Client]struct{}),
		clientRooms: make(map[*Client]map[string]struct{}),
		byConn:      make(map[string]*Client),
	}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.byConn[c.ID] = c
	h.clientRooms[c] = make(map[string]struct{})
	h.mu.Unlock()
	h.Join(c, userRoom(c.Identity.ID))
}

// Unregister removes the client from every room and forgets the connection.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for room := range h.clientRooms[c] {
		h.leaveLocked(c, room)
	}
	delete(h.clientRooms, c)
	delete(h.byConn, c.ID)
}

func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clientRooms[c]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	h.clientRooms[c][room] = struct{}{}
}

func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
	if rooms, ok := h.clientRooms[c]; ok {
		delete(rooms, room)
	}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Broadcast sends one event to every member of a room.
func (h *Hub) Broadcast(room, event string, data any) {
	raw, err := encodeEnvelope(event, data)
	if err != nil {
		obslog.L().Error("ws_encode_error", zap.String("event", event), zap.Error(err))
		return
	}
	h.mu.RLock()
	members := make([]*Client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		members = append(members, c)
	}
	h.mu.RUnlock()
	for _, c := range members {
		c.enqueue(event, raw)
	}
}

// SendToUser delivers an event to every live connection of one user.
func (h *Hub) SendToUser(userID, event string, data any) {
	h.Broadcast(userRoom(userID), event, data)
}

// ClientByConn returns the connection with this id, or nil.
func (h *Hub) ClientByConn(connID string) *Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.byConn[connID]
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}
