package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/brensch/hypersonic/arena"
	"github.com/brensch/hypersonic/store"
)

const smallContest = `
profiles:
  - name: greedy
    kind: greedy
    horizon: 9
  - name: wanderer
    kind: greedy
    evaluator: explorer
    horizon: 3
contest:
  grids: [GRID_1]
  replicates: 2
  game_pool: 1
  match_pool: 2
  max_rounds: 12
  round_budget: 50ms
  seed: 5
`

func TestBuildAndRun(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "contest.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(smallContest), 0o644))

	opts := options{
		ConfigPath: cfgPath,
		OutDir:     filepath.Join(dir, "archive"),
		DBPath:     filepath.Join(dir, "index.sqlite"),
		Replays:    filepath.Join(dir, "replay.jsonl.zst"),
		Replicates: 3,
	}
	c, cleanup, err := build(opts, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	require.Equal(t, 3, c.Replicates)
	require.Equal(t, 2, c.MatchPool)
	require.Equal(t, int64(5), c.Seed)
	require.Len(t, c.Entrants, 2)
	require.Equal(t, 3, c.TotalMatches())

	results, err := c.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3)

	rec := c.Recorder.(*store.Recorder)
	fromIndex, err := rec.Index.Standings(context.Background(), c.ID)
	require.NoError(t, err)
	require.Equal(t, arena.Standings(results), fromIndex)
	cleanup()

	for _, r := range results {
		rows, err := store.ReadMatchParquet(filepath.Join(opts.OutDir, "match_"+r.ID+".parquet"))
		require.NoError(t, err)
		require.Len(t, rows, r.Rounds+1)
	}

	frames, err := store.ReadReplay(opts.Replays)
	require.NoError(t, err)
	n, err := store.VerifyReplay(frames)
	require.NoError(t, err)
	require.Equal(t, 3, n)
}

func TestRunClosesStoresWhenInterrupted(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "contest.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(smallContest), 0o644))

	opts := options{
		ConfigPath: cfgPath,
		DBPath:     filepath.Join(dir, "index.sqlite"),
		Replays:    filepath.Join(dir, "replay.jsonl.zst"),
		Replicates: 3,
	}
	log := slog.New(slog.DiscardHandler)
	c, cleanup, err := build(opts, log)
	require.NoError(t, err)

	// stop after the first match, as a SIGINT would
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c.OnResult = func(arena.MatchResult) { cancel() }

	var out bytes.Buffer
	err = run(ctx, cancel, c, cleanup, false, log, &out)
	require.ErrorIs(t, err, context.Canceled)
	require.Contains(t, out.String(), "contest "+c.ID)

	frames, err := store.ReadReplay(opts.Replays)
	require.NoError(t, err)
	require.NotEmpty(t, frames)
	n, err := store.VerifyReplay(frames)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 1)

	ix, err := store.OpenIndex(opts.DBPath)
	require.NoError(t, err)
	defer ix.Close()
	standings, err := ix.Standings(context.Background(), c.ID)
	require.NoError(t, err)
	require.NotEmpty(t, standings)
}

func TestBuildWithoutStores(t *testing.T) {
	c, cleanup, err := build(options{}, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	defer cleanup()
	require.Nil(t, c.Recorder)
	require.Len(t, c.Maps, len(arena.Grids))
	require.Len(t, c.Entrants, 3)
}

func TestPrintStandings(t *testing.T) {
	var b bytes.Buffer
	printStandings(&b, "c1", []arena.Standing{
		{Name: "alpha", Played: 4, Wins: 3, Losses: 1, TotalRounds: 400},
		{Name: "beta", Played: 4, Wins: 1, Losses: 3, TotalRounds: 400},
	}, 1234)
	out := b.String()
	t.Logf("\n%s", out)
	require.Contains(t, out, "contest c1: 1,234 matches")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	require.True(t, strings.HasPrefix(lines[3], "1st"), lines[3])
	require.Contains(t, lines[3], "75.0%")
	require.True(t, strings.HasPrefix(lines[4], "2nd"), lines[4])
}

func TestModelUpdate(t *testing.T) {
	updates := make(chan tea.Msg, 4)
	m := initialModel("c1", 3, updates)

	next, cmd := m.Update(arena.MatchResult{Map: "GRID_1", A: "a", B: "b", Winner: "a", Reason: arena.ReasonBoxes, Rounds: 200})
	require.NotNil(t, cmd)
	m = next.(model)
	next, _ = m.Update(arena.MatchResult{Map: "GRID_2", A: "a", B: "b", Reason: arena.ReasonDraw, Rounds: 100})
	m = next.(model)

	require.Equal(t, 2, m.played)
	require.Equal(t, 1, m.draws)
	require.Equal(t, int64(300), m.rounds)
	require.Equal(t, map[string]int{"a": 1}, m.wins)
	require.Len(t, m.recent, 2)
	require.Contains(t, m.recent[0], "draw")

	view := m.View()
	require.Contains(t, view, "Matches:        2 / 3")
	require.Contains(t, view, "Press q to quit.")

	next, cmd = m.Update(contestDoneMsg{})
	m = next.(model)
	require.True(t, m.done)
	require.NotNil(t, cmd)
	require.Contains(t, m.View(), "Done.")

	_, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
}

func TestModelDrainsResultsBeforeDone(t *testing.T) {
	updates := make(chan tea.Msg, 3)
	updates <- arena.MatchResult{Map: "GRID_1", A: "a", B: "b", Winner: "a", Rounds: 10}
	updates <- arena.MatchResult{Map: "GRID_1", A: "b", B: "a", Winner: "a", Rounds: 12}
	updates <- contestDoneMsg{}
	close(updates)

	var m tea.Model = initialModel("c1", 2, updates)
	cmd := waitForResult(updates)
	for !m.(model).done {
		require.NotNil(t, cmd)
		m, cmd = m.Update(cmd())
	}
	require.Equal(t, 2, m.(model).played)
	require.Contains(t, m.View(), "Matches:        2 / 2")

	// once closed the wait returns instead of blocking
	require.Nil(t, waitForResult(updates)())
}
