package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/brensch/hypersonic/arena"
)

// Index is a sqlite table of match results, queryable across contests.
type Index struct {
	db *sql.DB
}

func OpenIndex(path string) (*Index, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// one writer; the contest records from many goroutines
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		`CREATE TABLE IF NOT EXISTS matches (
			id          TEXT PRIMARY KEY,
			contest_id  TEXT NOT NULL,
			map         TEXT NOT NULL,
			side_a      TEXT NOT NULL,
			side_b      TEXT NOT NULL,
			a_id        INTEGER NOT NULL,
			b_id        INTEGER NOT NULL,
			winner      TEXT NOT NULL,
			reason      TEXT NOT NULL,
			rounds      INTEGER NOT NULL,
			boxes_a     INTEGER NOT NULL,
			boxes_b     INTEGER NOT NULL,
			digest      TEXT NOT NULL,
			elapsed_ms  INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		"CREATE INDEX IF NOT EXISTS matches_contest ON matches(contest_id);",
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init sqlite: %w", err)
		}
	}
	return &Index{db: db}, nil
}

func (ix *Index) Close() error {
	return ix.db.Close()
}

// RecordMatch stores one result. Recording the same match twice replaces it.
func (ix *Index) RecordMatch(ctx context.Context, contestID string, r arena.MatchResult) error {
	_, err := ix.db.ExecContext(ctx, `INSERT OR REPLACE INTO matches
		(id, contest_id, map, side_a, side_b, a_id, b_id, winner, reason, rounds, boxes_a, boxes_b, digest, elapsed_ms, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, contestID, r.Map, r.A, r.B, r.AID, r.BID, r.Winner, r.Reason, r.Rounds,
		r.BoxesA, r.BoxesB, r.Digest, r.Elapsed.Milliseconds(), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert match %s: %w", r.ID, err)
	}
	return nil
}

// Standings aggregates a contest's recorded matches.
func (ix *Index) Standings(ctx context.Context, contestID string) ([]arena.Standing, error) {
	rows, err := ix.db.QueryContext(ctx, `
		SELECT name, COUNT(*), SUM(win), SUM(loss), SUM(draw), SUM(rounds) FROM (
			SELECT side_a AS name,
			       winner = side_a AS win,
			       (winner <> '' AND winner <> side_a) AS loss,
			       winner = '' AS draw,
			       rounds
			FROM matches WHERE contest_id = ?
			UNION ALL
			SELECT side_b, winner = side_b, (winner <> '' AND winner <> side_b), winner = '', rounds
			FROM matches WHERE contest_id = ?
		) GROUP BY name`, contestID, contestID)
	if err != nil {
		return nil, fmt.Errorf("query standings: %w", err)
	}
	defer rows.Close()

	var out []arena.Standing
	for rows.Next() {
		var s arena.Standing
		if err := rows.Scan(&s.Name, &s.Played, &s.Wins, &s.Losses, &s.Draws, &s.TotalRounds); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	arena.SortStandings(out)
	return out, nil
}

// Contests maps every recorded contest id to its match count.
func (ix *Index) Contests(ctx context.Context) (map[string]int, error) {
	rows, err := ix.db.QueryContext(ctx, `SELECT contest_id, COUNT(*) FROM matches GROUP BY contest_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}
