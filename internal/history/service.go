package history

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/kaiwen7/typebattle-backend/internal/room"
	rdbPkg "github.com/kaiwen7/typebattle-backend/pkg/redis"
	"github.com/redis/go-redis/v9"
)

const (
	leaderboardKey      = "leaderboard:wins"
	notificationChannel = "notifications"
)

// Service persists finished battles to Postgres and keeps a win
// leaderboard in Redis. Either backend may be absent; recording then
// degrades to whatever is configured.
type Service struct {
	db  *sql.DB
	rdb *redis.Client
}

func NewService(db *sql.DB, rdb *redis.Client) *Service {
	return &Service{
		db:  db,
		rdb: rdb,
	}
}

// EnsureSchema creates the matches table if it does not exist.
func (s *Service) EnsureSchema() error {
	if s.db == nil {
		return nil
	}
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS matches (
			id TEXT PRIMARY KEY,
			difficulty TEXT NOT NULL,
			article_id TEXT,
			winner TEXT,
			player1_id TEXT,
			player1_name TEXT,
			player1_wpm INT,
			player1_accuracy DOUBLE PRECISION,
			player2_id TEXT,
			player2_name TEXT,
			player2_wpm INT,
			player2_accuracy DOUBLE PRECISION,
			started_at BIGINT,
			finished_at BIGINT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`)
	if err != nil {
		return fmt.Errorf("failed to create matches table: %w", err)
	}
	return nil
}

// RecordMatch stores a finished room, bumps the winner's leaderboard
// entry and publishes a match-finished notification.
func (s *Service) RecordMatch(r *room.Room) error {
	if r == nil || r.State != room.StateFinished {
		return fmt.Errorf("room is not finished")
	}

	if s.db != nil {
		if err := s.insertMatch(r); err != nil {
			return err
		}
	}

	if s.rdb != nil {
		if r.Winner != "" && r.Winner != room.WinnerTie {
			if err := s.rdb.ZIncrBy(rdbPkg.Ctx, leaderboardKey, 1, r.Winner).Err(); err != nil {
				log.Printf("Failed to update leaderboard for %s: %v", r.Winner, err)
			}
		}
		s.publishFinished(r)
	}

	return nil
}

func (s *Service) insertMatch(r *room.Room) error {
	type side struct {
		id, name string
		wpm      int
		accuracy float64
	}
	var sides [2]side
	for i, p := range r.Players {
		if i >= 2 {
			break
		}
		sides[i].id = p.ID
		sides[i].name = p.Name
		if p.Result != nil {
			sides[i].wpm = p.Result.WPM
			sides[i].accuracy = p.Result.Accuracy
		}
	}

	articleID := ""
	if r.Article != nil {
		articleID = r.Article.ID
	}

	_, err := s.db.Exec(`
		INSERT INTO matches (
			id, difficulty, article_id, winner,
			player1_id, player1_name, player1_wpm, player1_accuracy,
			player2_id, player2_name, player2_wpm, player2_accuracy,
			started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING`,
		r.ID, string(r.Difficulty), articleID, r.Winner,
		sides[0].id, sides[0].name, sides[0].wpm, sides[0].accuracy,
		sides[1].id, sides[1].name, sides[1].wpm, sides[1].accuracy,
		r.StartedAt, r.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert match: %w", err)
	}
	return nil
}

func (s *Service) publishFinished(r *room.Room) {
	notification := struct {
		Type   string `json:"type"`
		RoomID string `json:"roomId"`
		Winner string `json:"winner"`
	}{
		Type:   "match-finished",
		RoomID: r.ID,
		Winner: r.Winner,
	}
	payload, err := json.Marshal(notification)
	if err != nil {
		log.Printf("Failed to marshal match notification: %v", err)
		return
	}
	if err := s.rdb.Publish(rdbPkg.Ctx, notificationChannel, payload).Err(); err != nil {
		log.Printf("Failed to publish match notification: %v", err)
	}
}

type LeaderboardEntry struct {
	PlayerID string `json:"player_id"`
	Wins     int64  `json:"wins"`
}

func (s *Service) GetLeaderboard(limit int) ([]LeaderboardEntry, error) {
	if s.rdb == nil {
		return nil, fmt.Errorf("leaderboard is not configured")
	}

	scores, err := s.rdb.ZRevRangeWithScores(rdbPkg.Ctx, leaderboardKey, 0, int64(limit)-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}

	entries := make([]LeaderboardEntry, 0, len(scores))
	for _, z := range scores {
		id, _ := z.Member.(string)
		entries = append(entries, LeaderboardEntry{
			PlayerID: id,
			Wins:     int64(z.Score),
		})
	}
	return entries, nil
}

type MatchRecord struct {
	ID         string `json:"id"`
	Difficulty string `json:"difficulty"`
	ArticleID  string `json:"article_id"`
	Winner     string `json:"winner"`
	Player1ID  string `json:"player1_id"`
	Player1WPM int    `json:"player1_wpm"`
	Player2ID  string `json:"player2_id"`
	Player2WPM int    `json:"player2_wpm"`
	StartedAt  int64  `json:"started_at"`
	FinishedAt int64  `json:"finished_at"`
	CreatedAt  string `json:"created_at"`
}

func (s *Service) RecentMatches(playerID string, limit int) ([]MatchRecord, error) {
	if s.db == nil {
		return nil, fmt.Errorf("match history is not configured")
	}

	rows, err := s.db.Query(`
		SELECT id, difficulty, article_id, winner,
		       player1_id, player1_wpm, player2_id, player2_wpm,
		       started_at, finished_at, created_at
		FROM matches
		WHERE player1_id = $1 OR player2_id = $1
		ORDER BY finished_at DESC
		LIMIT $2`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	defer rows.Close()

	var matches []MatchRecord
	for rows.Next() {
		var m MatchRecord
		var created time.Time
		if err := rows.Scan(&m.ID, &m.Difficulty, &m.ArticleID, &m.Winner,
			&m.Player1ID, &m.Player1WPM, &m.Player2ID, &m.Player2WPM,
			&m.StartedAt, &m.FinishedAt, &created); err != nil {
			return nil, err
		}
		m.CreatedAt = created.Format(time.RFC3339)
		matches = append(matches, m)
	}
	return matches, rows.Err()
}
