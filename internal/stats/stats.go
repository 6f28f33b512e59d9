// Package stats persists per-user standings and finished-match archive rows
// in Postgres. Writes are idempotent upserts so a replayed completion never
// double-counts.
package stats

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/MehulChauhan-07/TakTix-Gaming-Platform/internal/match"
)

// Rating deltas per result. A loss never drops the rating below zero.
const (
	winPoints  = 25
	lossPoints = 20
	drawPoints = 5
)

type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(16)
	db.SetMaxIdleConns(8)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// RecordResult folds one match result into the user's standings row.
func (r *Repository) RecordResult(ctx context.Context, userID string, result match.ResultKind) error {
	if r == nil || r.db == nil {
		return nil
	}
	var wins, losses, draws, delta int
	switch result {
	case match.ResultWin:
		wins, delta = 1, winPoints
	case match.ResultLoss:
		losses, delta = 1, -lossPoints
	case match.ResultDraw:
		draws, delta = 1, drawPoints
	default:
		return fmt.Errorf("unknown result %q", result)
	}

	q := `INSERT INTO user_stats (user_id, games_played, wins, losses, draws, rating, updated_at)
	  VALUES ($1, 1, $2, $3, $4, GREATEST($5, 0), NOW())
	  ON CONFLICT (user_id) DO UPDATE SET
	    games_played = user_stats.games_played + 1,
	    wins         = user_stats.wins + EXCLUDED.wins,
	    losses       = user_stats.losses + EXCLUDED.losses,
	    draws        = user_stats.draws + EXCLUDED.draws,
	    rating       = GREATEST(user_stats.rating + $5, 0),
	    updated_at   = NOW()`

	_, err := r.db.ExecContext(ctx, q, userID, wins, losses, draws, delta)
	return err
}

// ArchiveMatch upserts the finished match into the archive, keyed by match
// id. Replays overwrite with identical data.
func (r *Repository) ArchiveMatch(ctx context.Context, m *match.Match) error {
	if r == nil || r.db == nil || m == nil {
		return nil
	}
	moveLogRaw, err := json.Marshal(m.MoveLog)
	if err != nil {
		return fmt.Errorf("encode move log: %w", err)
	}

	var p1ID, p1Name, p2ID, p2Name string
	if len(m.Players) > 0 {
		p1ID, p1Name = m.Players[0].ID, m.Players[0].Username
	}
	if len(m.Players) > 1 {
		p2ID, p2Name = m.Players[1].ID, m.Players[1].Username
	}

	var duration int64
	if m.StartedAt != nil && m.EndedAt != nil {
		duration = m.EndedAt.Sub(*m.StartedAt).Milliseconds()
		if duration < 0 {
			duration = 0
		}
	}

	q := `INSERT INTO match_archive (
	    match_id, game_type, status,
	    player1_id, player1_name, player2_id, player2_name,
	    winner_id, move_count, move_log, board,
	    started_at, ended_at, duration_ms
	  ) VALUES (
	    $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14
	  ) ON CONFLICT (match_id) DO UPDATE SET
	    status=EXCLUDED.status,
	    winner_id=EXCLUDED.winner_id,
	    move_count=EXCLUDED.move_count,
	    move_log=EXCLUDED.move_log,
	    board=EXCLUDED.board,
	    started_at=EXCLUDED.started_at,
	    ended_at=EXCLUDED.ended_at,
	    duration_ms=EXCLUDED.duration_ms`

	_, err = r.db.ExecContext(ctx, q,
		m.ID, string(m.GameType), string(m.Status),
		p1ID, p1Name, p2ID, p2Name,
		nullable(m.Winner), len(m.MoveLog), string(moveLogRaw), string(m.Board),
		m.StartedAt, m.EndedAt, duration,
	)
	return err
}

// Standing is one user's row on the leaderboard.
type Standing struct {
	UserID      string    `json:"userId"`
	GamesPlayed int       `json:"gamesPlayed"`
	Wins        int       `json:"wins"`
	Losses      int       `json:"losses"`
	Draws       int       `json:"draws"`
	Rating      int       `json:"rating"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// StandingFor returns the user's current standings row, or nil.
func (r *Repository) StandingFor(ctx context.Context, userID string) (*Standing, error) {
	if r == nil || r.db == nil {
		return nil, nil
	}
	q := `SELECT user_id, games_played, wins, losses, draws, rating, updated_at
	  FROM user_stats WHERE user_id = $1`
	var s Standing
	err := r.db.QueryRowContext(ctx, q, userID).Scan(
		&s.UserID, &s.GamesPlayed, &s.Wins, &s.Losses, &s.Draws, &s.Rating, &s.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func nullable(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}
