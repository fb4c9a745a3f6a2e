package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brensch/hypersonic/arena"
	"github.com/brensch/hypersonic/game"
)

type scripted func(s *game.State) game.Action

func (f scripted) Decide(_ context.Context, s *game.State) game.Action {
	return f(s)
}

var camper = scripted(func(*game.State) game.Action { return game.Stay })

// escaper bombs its corner on GRID_1 and steps out of the blast.
var escaper = scripted(func(s *game.State) game.Action {
	you, _ := s.You()
	script := []game.Action{game.BombDown, game.MoveDown, game.MoveRight}
	if you.Pos.X >= s.Grid.Width/2 {
		script = []game.Action{game.BombUp, game.MoveUp, game.MoveLeft}
	}
	if s.Round < len(script) {
		return script[s.Round]
	}
	return game.Stay
})

// playRecorded plays escaper against camper on GRID_1 into rec.
func playRecorded(t *testing.T, rec *Recorder, id string) arena.MatchResult {
	t.Helper()
	maps, err := arena.LookupMaps("GRID_1")
	require.NoError(t, err)

	res, err := arena.PlayMatch(context.Background(), arena.MatchSpec{
		ID:        id,
		Map:       maps[0],
		A:         arena.Side{Name: "escaper", Decider: escaper},
		B:         arena.Side{Name: "camper", Decider: camper},
		MaxRounds: 20,
		Sink:      rec,
	})
	require.NoError(t, err)
	require.NoError(t, rec.RecordMatch(res))
	return res
}

func TestRecorderArchive(t *testing.T) {
	dir := t.TempDir()
	rec := &Recorder{ContestID: "c1", ArchiveDir: dir}
	res := playRecorded(t, rec, "m1")
	require.Equal(t, "escaper", res.Winner)
	require.Equal(t, 0, rec.Pending())

	path := filepath.Join(dir, "match_m1.parquet")
	rows, err := ReadMatchParquet(path)
	require.NoError(t, err)
	require.Len(t, rows, 21)

	first := rows[0]
	require.Equal(t, int32(-1), first.Round)
	require.Equal(t, "GRID_1", first.Map)
	require.Equal(t, int32(13), first.Width)
	require.Equal(t, int32(11), first.Height)
	require.Len(t, first.Cells, 13*11)
	require.Len(t, first.Agents, 2)
	for _, a := range first.Agents {
		require.True(t, a.Alive)
		require.Equal(t, int32(-1), a.Action)
	}

	bombed := rows[1]
	require.Len(t, bombed.BombOwner, 1)
	require.Equal(t, int32(game.BombFuse), bombed.BombFuse[0])

	last := rows[len(rows)-1]
	require.Equal(t, int32(19), last.Round)
	require.Equal(t, res.Digest, last.Digest)
	for _, a := range last.Agents {
		if a.Side == "escaper" {
			require.Equal(t, int32(res.BoxesA), a.Boxes)
			require.Equal(t, int32(game.Stay), a.Action)
		}
	}

	entries, err := os.ReadDir(filepath.Join(dir, "tmp"))
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestWriteMatchParquetNeedsID(t *testing.T) {
	_, err := WriteMatchParquetAtomic(t.TempDir(), "", nil)
	require.Error(t, err)
}

func TestIndexStandings(t *testing.T) {
	ix, err := OpenIndex(filepath.Join(t.TempDir(), "db", "index.sqlite"))
	require.NoError(t, err)
	defer ix.Close()

	ctx := context.Background()
	results := []arena.MatchResult{
		{ID: "a", Map: "GRID_1", A: "x", B: "y", Winner: "x", Reason: arena.ReasonLastStanding, Rounds: 10},
		{ID: "b", Map: "GRID_1", A: "y", B: "x", Winner: "x", Reason: arena.ReasonBoxes, Rounds: 20},
		{ID: "c", Map: "GRID_2", A: "x", B: "z", Reason: arena.ReasonDraw, Rounds: 30},
		{ID: "d", Map: "GRID_2", A: "y", B: "z", Winner: "z", Rounds: 40},
	}
	for _, r := range results {
		require.NoError(t, ix.RecordMatch(ctx, "c1", r))
	}
	// re-recording replaces
	require.NoError(t, ix.RecordMatch(ctx, "c1", results[0]))
	require.NoError(t, ix.RecordMatch(ctx, "c2", arena.MatchResult{ID: "e", A: "x", B: "y", Winner: "y"}))

	got, err := ix.Standings(ctx, "c1")
	require.NoError(t, err)
	require.Equal(t, arena.Standings(results), got)
	require.Equal(t, "x", got[0].Name)
	require.Equal(t, 2, got[0].Wins)
	require.Equal(t, 1, got[0].Draws)

	contests, err := ix.Contests(ctx)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"c1": 4, "c2": 1}, contests)
}

func TestOpenIndexEmptyPath(t *testing.T) {
	_, err := OpenIndex("")
	require.Error(t, err)
}

func TestReplayRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replay.jsonl.zst")
	w, err := NewReplayWriter(path)
	require.NoError(t, err)

	rec := &Recorder{Replay: w}
	first := playRecorded(t, rec, "m1")
	second := playRecorded(t, rec, "m2")
	require.NoError(t, w.Close())

	frames, err := ReadReplay(path)
	require.NoError(t, err)
	require.Len(t, frames, 42)
	require.Equal(t, first.Digest, frames[20].Digest)
	require.Equal(t, second.Digest, frames[41].Digest)
	require.Len(t, frames[1].Actions, 2)
	require.Contains(t, frames[1].Actions, "stay")
	require.Equal(t, -1, frames[21].Round)
	require.Equal(t, "m2", frames[21].MatchID)

	n, err := VerifyReplay(frames)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestVerifyReplayDetectsTampering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replay.jsonl.zst")
	w, err := NewReplayWriter(path)
	require.NoError(t, err)
	playRecorded(t, &Recorder{Replay: w}, "m1")
	require.NoError(t, w.Close())

	frames, err := ReadReplay(path)
	require.NoError(t, err)

	tampered := append([]Frame(nil), frames...)
	tampered[3].Actions = []string{"up", "up"}
	_, err = VerifyReplay(tampered)
	require.True(t, errors.Is(err, ErrReplayDiverged), "got %v", err)

	_, err = VerifyReplay(frames[1:])
	require.True(t, errors.Is(err, ErrReplayDiverged), "got %v", err)
}

func TestFrameState(t *testing.T) {
	maps, err := arena.LookupMaps("GRID_2")
	require.NoError(t, err)
	ref := arena.NewReferee(maps[0], false, 0)
	s := ref.State()

	f := FrameFromRecord(arena.RoundRecord{MatchID: "m", Round: -1, State: s, Digest: ref.Digest()})
	require.Nil(t, f.Actions)
	got, err := f.State()
	require.NoError(t, err)
	require.Equal(t, ref.Digest(), got.Digest())
}

func TestCompactArchives(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in")
	rec := &Recorder{ArchiveDir: in}
	playRecorded(t, rec, "m1")
	playRecorded(t, rec, "m2")
	playRecorded(t, rec, "m3")

	out := filepath.Join(t.TempDir(), "out")
	stats, err := CompactArchives(in, out, 2)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Inputs)
	require.Equal(t, 2, stats.Shards)
	require.Equal(t, int64(63), stats.Rows)
	require.Len(t, stats.Written, 2)

	first, err := ReadMatchParquet(stats.Written[0])
	require.NoError(t, err)
	require.Len(t, first, 42)
	require.Equal(t, "m1", first[0].MatchID)
	require.Equal(t, "m2", first[41].MatchID)

	// shards are not picked up again as inputs of themselves
	_, err = CompactArchives(out, out, 2)
	require.Error(t, err)

	empty, err := CompactArchives(t.TempDir(), filepath.Join(t.TempDir(), "x"), 2)
	require.NoError(t, err)
	require.Zero(t, empty.Shards)
}
