package match

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store keeps matches as JSON blobs in Redis: one key per match plus index
// sets for per-user lookups and the waiting-lobby listing. Every mutation
// goes through a WATCH transaction so a concurrent writer fails the EXEC
// instead of clobbering state.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewStore(rdb *redis.Client, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Store{rdb: rdb, ttl: ttl}
}

// NewStoreFromURL dials Redis and pings it before returning a store.
func NewStoreFromURL(redisURL string, ttl time.Duration) (*Store, error) {
	opts, err := parseRedisURL(redisURL)
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewStore(rdb, ttl), nil
}

// Client exposes the underlying connection for collaborators that share it.
func (s *Store) Client() *redis.Client {
	return s.rdb
}

func (s *Store) Close() error {
	if s == nil || s.rdb == nil {
		return nil
	}
	return s.rdb.Close()
}

func (s *Store) matchKey(id string) string    { return "match:" + strings.TrimSpace(id) }
func (s *Store) userIdxKey(uid string) string { return "match:index:user:" + strings.TrimSpace(uid) }
func (s *Store) lobbyKey() string             { return "match:lobby" }

// Create stores a brand-new match. The key must not exist yet.
func (s *Store) Create(ctx context.Context, m *Match) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return err
	}
	ok, err := s.rdb.SetNX(ctx, s.matchKey(m.ID), raw, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("match id collision: %s", m.ID)
	}
	return nil
}

// Load returns the match, ErrMatchNotFound when the key is missing or expired.
func (s *Store) Load(ctx context.Context, id string) (*Match, error) {
	raw, err := s.rdb.Get(ctx, s.matchKey(id)).Bytes()
	if err == redis.Nil {
		return nil, ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}
	var m Match
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// UpdateTx runs mutate against the current state inside a WATCH transaction.
// A version check guards against the window between Get and EXEC; any
// concurrent write fails the EXEC with redis.TxFailedErr, surfaced as
// ErrConflict for the engine's retry loop. Errors returned by mutate abort
// without writing.
func (s *Store) UpdateTx(ctx context.Context, id string, mutate func(*Match) error) (*Match, error) {
	key := s.matchKey(id)
	var out *Match
	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrMatchNotFound
		}
		if err != nil {
			return err
		}
		var m Match
		if err := json.Unmarshal(raw, &m); err != nil {
			return err
		}
		readVersion := m.Version
		if err := mutate(&m); err != nil {
			return err
		}
		if m.Version != readVersion {
			return fmt.Errorf("mutate must not touch the version counter")
		}
		m.Version++
		m.UpdatedAt = time.Now()
		newRaw, err := json.Marshal(&m)
		if err != nil {
			return err
		}
		pipe := tx.TxPipeline()
		pipe.Set(ctx, key, newRaw, s.ttl)
		if _, err := pipe.Exec(ctx); err != nil {
			return err
		}
		out = &m
		return nil
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// IndexPlayer adds a match to a user's index set, refreshing its TTL so the
// index can never outlive the matches it points at.
func (s *Store) IndexPlayer(ctx context.Context, userID, matchID string) error {
	if strings.TrimSpace(userID) == "" {
		return nil
	}
	key := s.userIdxKey(userID)
	if err := s.rdb.SAdd(ctx, key, matchID).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, key, s.ttl).Err()
}

// MatchesByUser loads every indexed match for a user, most recent first.
func (s *Store) MatchesByUser(ctx context.Context, userID string) ([]*Match, error) {
	ids, err := s.rdb.SMembers(ctx, s.userIdxKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	var list []*Match
	for _, id := range ids {
		m, lerr := s.Load(ctx, id)
		if lerr != nil {
			continue
		}
		list = append(list, m)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].UpdatedAt.After(list[j].UpdatedAt) })
	return list, nil
}

// AddLobby registers a waiting match in the open-lobby index.
func (s *Store) AddLobby(ctx context.Context, matchID string) error {
	if err := s.rdb.SAdd(ctx, s.lobbyKey(), matchID).Err(); err != nil {
		return err
	}
	return s.rdb.Expire(ctx, s.lobbyKey(), s.ttl).Err()
}

// RemoveLobby takes a match out of the open-lobby index; idempotent.
func (s *Store) RemoveLobby(ctx context.Context, matchID string) error {
	return s.rdb.SRem(ctx, s.lobbyKey(), matchID).Err()
}

// ListLobby returns matches still open to any joiner. Entries whose match
// expired or moved on are skipped and pruned.
func (s *Store) ListLobby(ctx context.Context) ([]*Match, error) {
	ids, err := s.rdb.SMembers(ctx, s.lobbyKey()).Result()
	if err != nil {
		return nil, err
	}
	var out []*Match
	for _, id := range ids {
		m, lerr := s.Load(ctx, id)
		if lerr != nil || m.Status != StatusWaiting {
			_ = s.rdb.SRem(ctx, s.lobbyKey(), id).Err()
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func parseRedisURL(raw string) (*redis.Options, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "redis" && u.Scheme != "rediss" {
		return nil, fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	db := 0
	if p := strings.TrimPrefix(u.Path, "/"); p != "" {
		if n, err := strconv.Atoi(p); err == nil {
			db = n
		}
	}
	pass, _ := u.User.Password()
	return &redis.Options{Addr: u.Host, Password: pass, DB: db}, nil
}
