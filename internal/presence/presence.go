// Package presence enforces the single-device policy: one live realtime
// session per user. Sessions live in Redis under a TTL so a crashed server
// never strands a user in a logged-in state.
package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/internal/obslog"
)

const sessionKeyPrefix = "presence:session:"

// Session is the record of one live connection for a user.
type Session struct {
	DeviceID string    `json:"device_id"`
	ConnID   string    `json:"conn_id"`
	SeenAt   time.Time `json:"seen_at"`
}

// Decision is the outcome of a device check.
type Decision int

const (
	// DecisionNew grants the session; the user had no live session.
	DecisionNew Decision = iota
	// DecisionSameDevice grants the session; the same device reconnected
	// and the old connection should be replaced.
	DecisionSameDevice
	// DecisionOtherDevice denies the session; a different device holds it.
	DecisionOtherDevice
)

var ErrNoSession = errors.New("no live session")

// Guard owns session records for connected users.
type Guard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewGuard(rdb *redis.Client, ttl time.Duration) *Guard {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Guard{rdb: rdb, ttl: ttl}
}

func sessionKey(userID string) string { return sessionKeyPrefix + userID }

// CheckDevice decides whether a connection from deviceID may hold the
// user's session, and on grant records it. The read-decide-write runs
// inside a WATCH transaction so two racing first-time checks can never
// both be granted; a lost race re-reads and decides again. When a
// different device already holds the session the existing record is
// returned so the caller can notify it.
func (g *Guard) CheckDevice(ctx context.Context, userID, deviceID, connID string) (Decision, *Session, error) {
	key := sessionKey(userID)

	for attempt := 0; attempt < 3; attempt++ {
		var decision Decision
		var existing *Session

		err := g.rdb.Watch(ctx, func(tx *redis.Tx) error {
			decision = DecisionNew
			existing = nil

			raw, err := tx.Get(ctx, key).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return fmt.Errorf("presence load: %w", err)
			}
			if err == nil {
				var s Session
				if jerr := json.Unmarshal([]byte(raw), &s); jerr != nil {
					return fmt.Errorf("presence decode: %w", jerr)
				}
				existing = &s
				if s.DeviceID != deviceID {
					decision = DecisionOtherDevice
					return nil
				}
				decision = DecisionSameDevice
			}

			payload, err := json.Marshal(&Session{DeviceID: deviceID, ConnID: connID, SeenAt: time.Now()})
			if err != nil {
				return fmt.Errorf("presence encode: %w", err)
			}
			pipe := tx.TxPipeline()
			pipe.Set(ctx, key, payload, g.ttl)
			_, err = pipe.Exec(ctx)
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return DecisionOtherDevice, nil, err
		}

		if decision == DecisionOtherDevice {
			obslog.L().Info("presence_device_denied",
				zap.String("user_id", userID),
				zap.String("holder_device", existing.DeviceID),
			)
			return decision, existing, nil
		}
		obslog.L().Info("presence_session_granted",
			zap.String("user_id", userID),
			zap.String("device_id", deviceID),
		)
		return decision, existing, nil
	}
	return DecisionOtherDevice, nil, errors.New("presence session contention")
}

// Touch refreshes the TTL and seen time of a live session. Touching a
// session held by another connection is a no-op.
func (g *Guard) Touch(ctx context.Context, userID, connID string) error {
	key := sessionKey(userID)
	s, err := g.load(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil
		}
		return err
	}
	if s.ConnID != connID {
		return nil
	}
	s.SeenAt = time.Now()
	return g.save(ctx, key, s)
}

// Remove drops the session if connID still holds it. Removing an absent or
// superseded session is a no-op, so disconnects are safe to process late.
func (g *Guard) Remove(ctx context.Context, userID, connID string) error {
	key := sessionKey(userID)
	s, err := g.load(ctx, key)
	if err != nil {
		if errors.Is(err, ErrNoSession) {
			return nil
		}
		return err
	}
	if s.ConnID != connID {
		return nil
	}
	return g.rdb.Del(ctx, key).Err()
}

// Lookup returns the user's live session, or ErrNoSession.
func (g *Guard) Lookup(ctx context.Context, userID string) (*Session, error) {
	return g.load(ctx, sessionKey(userID))
}

func (g *Guard) load(ctx context.Context, key string) (*Session, error) {
	raw, err := g.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("presence load: %w", err)
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("presence decode: %w", err)
	}
	return &s, nil
}

func (g *Guard) save(ctx context.Context, key string, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("presence encode: %w", err)
	}
	if err := g.rdb.Set(ctx, key, raw, g.ttl).Err(); err != nil {
		return fmt.Errorf("presence save: %w", err)
	}
	return nil
}
