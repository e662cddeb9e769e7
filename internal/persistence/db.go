// Package persistence provides SQLite-based storage of finished episodes.
package persistence

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/bountyhunter/internal/agents"
	"github.com/talgya/bountyhunter/internal/engine"
)

// DB wraps a SQLite connection for episode persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS episodes (
		id TEXT PRIMARY KEY,
		episode INTEGER NOT NULL,
		seed INTEGER NOT NULL,
		winner INTEGER NOT NULL,
		ticks INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		ended_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS episode_agents (
		episode_id TEXT NOT NULL REFERENCES episodes(id),
		agent_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		stash REAL NOT NULL,
		pocket REAL NOT NULL,
		dead INTEGER NOT NULL,
		PRIMARY KEY (episode_id, agent_id)
	);

	CREATE TABLE IF NOT EXISTS run_meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_episodes_ended ON episodes(ended_at);
	CREATE INDEX IF NOT EXISTS idx_episodes_winner ON episodes(winner);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Episode is a stored episode row. Times are kept as unix milliseconds.
type Episode struct {
	ID        string `db:"id" json:"id"`
	Episode   int    `db:"episode" json:"episode"`
	Seed      int64  `db:"seed" json:"seed"`
	Winner    int    `db:"winner" json:"winner"`
	Ticks     int64  `db:"ticks" json:"ticks"`
	StartedMs int64  `db:"started_at" json:"started_at_ms"`
	EndedMs   int64  `db:"ended_at" json:"ended_at_ms"`

	Agents []EpisodeAgent `db:"-" json:"agents"`
}

// Started returns the wall-clock start of the episode.
func (e Episode) Started() time.Time { return fromMillis(e.StartedMs) }

// Ended returns the wall-clock end of the episode.
func (e Episode) Ended() time.Time { return fromMillis(e.EndedMs) }

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// EpisodeAgent is one agent's final state in a stored episode.
type EpisodeAgent struct {
	EpisodeID string  `db:"episode_id" json:"-"`
	AgentID   int     `db:"agent_id" json:"agent_id"`
	Kind      string  `db:"kind" json:"kind"`
	Stash     float64 `db:"stash" json:"stash"`
	Pocket    float64 `db:"pocket" json:"pocket"`
	Dead      bool    `db:"dead" json:"dead"`
}

// SaveEpisode writes a finished episode and its agents in one transaction.
func (db *DB) SaveEpisode(r engine.EpisodeResult) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO episodes
		(id, episode, seed, winner, ticks, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Episode, r.Seed, int(r.Winner), int64(r.Ticks), toMillis(r.StartedAt), toMillis(r.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("insert episode %s: %w", r.ID, err)
	}

	stmt, err := tx.Preparex(`INSERT INTO episode_agents
		(episode_id, agent_id, kind, stash, pocket, dead)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range r.Agents {
		dead := 0
		if a.Observation.Dead {
			dead = 1
		}
		_, err := stmt.Exec(r.ID, int(a.ID), a.Kind, a.Observation.StashLoad, a.Observation.PocketLoad, dead)
		if err != nil {
			return fmt.Errorf("insert agent %d of episode %s: %w", a.ID, r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("episode saved", "id", r.ID, "episode", r.Episode, "winner", r.Winner)
	return nil
}

// RecentEpisodes returns the most recent N episodes, newest first, with
// their agents.
func (db *DB) RecentEpisodes(limit int) ([]Episode, error) {
	var episodes []Episode
	err := db.conn.Select(&episodes,
		`SELECT id, episode, seed, winner, ticks, started_at, ended_at
		 FROM episodes ORDER BY ended_at DESC, rowid DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}

	for i := range episodes {
		err := db.conn.Select(&episodes[i].Agents,
			`SELECT episode_id, agent_id, kind, stash, pocket, dead
			 FROM episode_agents WHERE episode_id = ? ORDER BY agent_id`,
			episodes[i].ID,
		)
		if err != nil {
			return nil, fmt.Errorf("load agents of episode %s: %w", episodes[i].ID, err)
		}
	}
	return episodes, nil
}

// WinCounts returns the number of episodes won per agent id.
func (db *DB) WinCounts() (map[agents.ID]int, error) {
	var rows []struct {
		Winner int `db:"winner"`
		Wins   int `db:"wins"`
	}
	err := db.conn.Select(&rows,
		"SELECT winner, COUNT(*) AS wins FROM episodes WHERE winner >= 0 GROUP BY winner",
	)
	if err != nil {
		return nil, err
	}
	counts := make(map[agents.ID]int, len(rows))
	for _, r := range rows {
		counts[agents.ID(r.Winner)] = r.Wins
	}
	return counts, nil
}

// SaveMeta stores a key-value pair in run metadata.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO run_meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM run_meta WHERE key = ?", key)
	return value, err
}
