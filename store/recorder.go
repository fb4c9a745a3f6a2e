package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/brensch/hypersonic/arena"
)

// Recorder fans contest output out to the archive, the index and the replay
// log. Any of the three may be left unset.
type Recorder struct {
	ContestID  string
	ArchiveDir string
	Index      *Index
	Replay     *ReplayWriter
	Log        *slog.Logger

	mu      sync.Mutex
	pending map[string][]ArchiveRoundRow
}

var _ arena.Recorder = (*Recorder)(nil)

func (r *Recorder) RecordRound(rec arena.RoundRecord) error {
	if r.Replay != nil {
		if err := r.Replay.WriteFrame(FrameFromRecord(rec)); err != nil {
			return fmt.Errorf("replay frame: %w", err)
		}
	}
	if r.ArchiveDir == "" {
		return nil
	}
	row := ArchiveRow(rec)
	r.mu.Lock()
	if r.pending == nil {
		r.pending = map[string][]ArchiveRoundRow{}
	}
	r.pending[rec.MatchID] = append(r.pending[rec.MatchID], row)
	r.mu.Unlock()
	return nil
}

// RecordMatch flushes the match's buffered rounds to parquet and indexes the
// result.
func (r *Recorder) RecordMatch(res arena.MatchResult) error {
	r.mu.Lock()
	rows := r.pending[res.ID]
	delete(r.pending, res.ID)
	r.mu.Unlock()

	if r.ArchiveDir != "" && len(rows) > 0 {
		path, err := WriteMatchParquetAtomic(r.ArchiveDir, res.ID, rows)
		if err != nil {
			return err
		}
		if r.Log != nil {
			r.Log.Debug("archived match", "match", res.ID, "path", path, "rounds", len(rows))
		}
	}
	if r.Index != nil {
		if err := r.Index.RecordMatch(context.Background(), r.ContestID, res); err != nil {
			return err
		}
	}
	return nil
}

// Pending reports how many matches still have unflushed rounds.
func (r *Recorder) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
