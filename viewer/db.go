package main

import (
	"context"
	"database/sql"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
)

// DBCache keeps a DuckDB view over the archive directories and reopens it
// periodically so new matches show up.
type DBCache struct {
	roots       []string
	refreshRate time.Duration
	log         *slog.Logger

	mu          sync.RWMutex
	db          *sql.DB
	lastRefresh time.Time

	// rebuilt only when the view is reopened
	matchesIndex []MatchSummary
}

func NewDBCache(roots []string, refreshRate time.Duration, log *slog.Logger) *DBCache {
	return &DBCache{
		roots:       roots,
		refreshRate: refreshRate,
		log:         log,
	}
}

// Get returns the cached connection, reopening it when stale.
func (c *DBCache) Get() (*sql.DB, error) {
	c.mu.RLock()
	if c.db != nil && time.Since(c.lastRefresh) < c.refreshRate {
		db := c.db
		c.mu.RUnlock()
		return db, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db != nil && time.Since(c.lastRefresh) < c.refreshRate {
		return c.db, nil
	}
	return c.refreshLocked()
}

// Refresh forces the view to be reopened.
func (c *DBCache) Refresh() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.refreshLocked()
	return err
}

func (c *DBCache) refreshLocked() (*sql.DB, error) {
	start := time.Now()
	newDB, err := openDuckDBWithGlobs(c.roots)
	if err != nil {
		return nil, err
	}
	if c.db != nil {
		_ = c.db.Close()
	}
	c.db = newDB
	c.lastRefresh = time.Now()
	c.matchesIndex = nil
	c.log.Debug("db cache refreshed", "elapsed", time.Since(start))
	return c.db, nil
}

// MatchesIndex returns every archived match, sorted by id.
func (c *DBCache) MatchesIndex(ctx context.Context) ([]MatchSummary, error) {
	c.mu.RLock()
	if c.matchesIndex != nil && c.db != nil {
		idx := c.matchesIndex
		c.mu.RUnlock()
		return idx, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.matchesIndex != nil && c.db != nil {
		return c.matchesIndex, nil
	}
	if c.db == nil {
		if _, err := c.refreshLocked(); err != nil {
			return nil, err
		}
	}
	matches, err := queryAllMatches(ctx, c.db, c.roots)
	if err != nil {
		return nil, err
	}
	c.matchesIndex = matches
	return matches, nil
}

func (c *DBCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.db == nil {
		return nil
	}
	err := c.db.Close()
	c.db = nil
	return err
}

func openDuckDBWithGlobs(roots []string) (*sql.DB, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, err
	}
	_, _ = db.Exec("PRAGMA threads=4")

	globs := make([]string, 0, len(roots))
	for _, root := range roots {
		root = strings.TrimSpace(root)
		// read_parquet fails on a glob that matches nothing
		if root == "" || !hasArchives(root) {
			continue
		}
		globs = append(globs, "'"+escapeSQLString(filepath.Join(root, "**", "*.parquet"))+"'")
	}

	if len(globs) == 0 {
		_, err := db.Exec(`CREATE OR REPLACE VIEW rounds AS
			SELECT * FROM (
				SELECT
					NULL::VARCHAR AS match_id,
					NULL::VARCHAR AS map,
					NULL::INTEGER AS round,
					NULL::INTEGER AS width,
					NULL::INTEGER AS height,
					NULL::STRUCT(id INTEGER, side VARCHAR, alive BOOLEAN, boxes INTEGER)[] AS agents,
					NULL::VARCHAR AS digest,
					NULL::VARCHAR AS filename
			) WHERE 1=0`)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	// in-flight files end in .tmp, so the glob never sees them
	sqlText := `CREATE OR REPLACE VIEW rounds AS
		SELECT * FROM read_parquet([` + strings.Join(globs, ",") + `], filename=true, union_by_name=true)`
	if _, err := db.Exec(sqlText); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func hasArchives(root string) bool {
	found := false
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() && d.Name() == "tmp" {
			return filepath.SkipDir
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), ".parquet") {
			found = true
			return fs.SkipAll
		}
		return nil
	})
	return found
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func queryAllMatches(ctx context.Context, db *sql.DB, roots []string) ([]MatchSummary, error) {
	rows, err := db.QueryContext(ctx, `SELECT
			match_id,
			MIN(map)::VARCHAR,
			MIN(round)::INTEGER,
			MAX(round)::INTEGER,
			COUNT(*)::INTEGER,
			MIN(width)::INTEGER,
			MIN(height)::INTEGER,
			MIN(filename)::VARCHAR,
			arg_max(digest, round)::VARCHAR,
			arg_max(agents, round)
		FROM rounds
		GROUP BY match_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MatchSummary
	for rows.Next() {
		var m MatchSummary
		var file string
		var agents any
		if err := rows.Scan(&m.MatchID, &m.Map, &m.MinRound, &m.MaxRound, &m.RoundCount, &m.Width, &m.Height, &file, &m.Digest, &agents); err != nil {
			return nil, err
		}
		m.SourceFile = makeRelativeToRoots(file, roots)
		m.Results = formatResults(asAgents(agents))
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchID < out[j].MatchID })
	return out, nil
}

// matchFile returns the archive file holding matchID, or sql.ErrNoRows.
func matchFile(ctx context.Context, db *sql.DB, matchID string) (string, error) {
	var file string
	err := db.QueryRowContext(ctx, `SELECT filename::VARCHAR FROM rounds WHERE match_id = ? LIMIT 1`, matchID).Scan(&file)
	return file, err
}

func makeRelativeToRoots(filename string, roots []string) string {
	for _, root := range roots {
		if rel, err := filepath.Rel(root, filename); err == nil && !strings.HasPrefix(rel, "..") {
			return rel
		}
	}
	return filename
}

// paginateMatches sorts a copy of the index and returns one page of it.
func paginateMatches(matches []MatchSummary, limit, offset int, sortKey, sortDir string) []MatchSummary {
	sorted := make([]MatchSummary, len(matches))
	copy(sorted, matches)

	desc := strings.EqualFold(sortDir, "desc")
	less := func(i, j int) bool { return sorted[i].MatchID < sorted[j].MatchID }
	switch sortKey {
	case "map":
		less = func(i, j int) bool {
			if sorted[i].Map != sorted[j].Map {
				return sorted[i].Map < sorted[j].Map
			}
			return sorted[i].MatchID < sorted[j].MatchID
		}
	case "rounds":
		less = func(i, j int) bool {
			if sorted[i].RoundCount != sorted[j].RoundCount {
				return sorted[i].RoundCount < sorted[j].RoundCount
			}
			return sorted[i].MatchID < sorted[j].MatchID
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if desc {
			return less(j, i)
		}
		return less(i, j)
	})

	if offset >= len(sorted) {
		return []MatchSummary{}
	}
	end := len(sorted)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return sorted[offset:end]
}
