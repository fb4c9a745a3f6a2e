package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brensch/hypersonic/arena"
	"github.com/brensch/hypersonic/game"
	"github.com/brensch/hypersonic/store"
)

type stayer struct{}

func (stayer) Decide(context.Context, *game.State) game.Action { return game.Stay }

func newTestServer(t *testing.T) (*Server, *http.ServeMux, string) {
	t.Helper()
	dir := t.TempDir()
	ix, err := store.OpenIndex(filepath.Join(dir, "index.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ix.Close() })

	srv := NewServer([]string{dir}, ix, slog.New(slog.DiscardHandler))
	t.Cleanup(func() { _ = srv.Close() })
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	return srv, mux, dir
}

func get(t *testing.T, mux *http.ServeMux, path string, into any) int {
	t.Helper()
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	if rr.Code == http.StatusOK && into != nil {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), into))
	}
	return rr.Code
}

func TestMatchesFromArchive(t *testing.T) {
	srv, mux, dir := newTestServer(t)

	maps, err := arena.LookupMaps("GRID_4")
	require.NoError(t, err)
	rec := &store.Recorder{ContestID: "c1", ArchiveDir: dir, Index: srv.index}
	res, err := arena.PlayMatch(context.Background(), arena.MatchSpec{
		ID:        "m1",
		Map:       maps[0],
		A:         arena.Side{Name: "left", Decider: stayer{}},
		B:         arena.Side{Name: "right", Decider: stayer{}},
		MaxRounds: 3,
		Sink:      rec,
	})
	require.NoError(t, err)
	require.NoError(t, rec.RecordMatch(res))

	var list MatchesResponse
	require.Equal(t, http.StatusOK, get(t, mux, "/api/matches", &list))
	require.Equal(t, int64(1), list.Total)
	m := list.Matches[0]
	require.Equal(t, "m1", m.MatchID)
	require.Equal(t, "GRID_4", m.Map)
	require.Equal(t, int32(-1), m.MinRound)
	require.Equal(t, int32(2), m.MaxRound)
	require.Equal(t, int32(4), m.RoundCount)
	require.Equal(t, res.Digest, m.Digest)
	require.Equal(t, "match_m1.parquet", m.SourceFile)
	require.Contains(t, m.Results, "left:alive:0")
	require.Contains(t, m.Results, "right:alive:0")

	var rounds []store.ArchiveRoundRow
	require.Equal(t, http.StatusOK, get(t, mux, "/api/matches/m1/rounds", &rounds))
	require.Len(t, rounds, 4)

	require.Equal(t, http.StatusNotFound, get(t, mux, "/api/matches/nope/rounds", nil))
	require.Equal(t, http.StatusNotFound, get(t, mux, "/api/matches/m1", nil))

	var standings []arena.Standing
	require.Equal(t, http.StatusOK, get(t, mux, "/api/standings?contest=c1", &standings))
	require.Len(t, standings, 2)
	require.Equal(t, 1, standings[0].Draws)
	require.Equal(t, http.StatusBadRequest, get(t, mux, "/api/standings", nil))

	var contests map[string]int
	require.Equal(t, http.StatusOK, get(t, mux, "/api/contests", &contests))
	require.Equal(t, map[string]int{"c1": 1}, contests)
}

func TestEmptyArchive(t *testing.T) {
	_, mux, _ := newTestServer(t)
	var list MatchesResponse
	require.Equal(t, http.StatusOK, get(t, mux, "/api/matches", &list))
	require.Zero(t, list.Total)
}

func TestSimulate(t *testing.T) {
	_, mux, _ := newTestServer(t)

	maps, err := arena.LookupMaps("GRID_1")
	require.NoError(t, err)
	ref := arena.NewReferee(maps[0], false, 0)
	start := store.FrameFromRecord(arena.RoundRecord{MatchID: "m", Map: "GRID_1", Round: -1, State: ref.State(), Digest: ref.Digest()})

	body, err := json.Marshal(SimulateRequest{Frame: start, Actions: []string{"bomb+down", "up"}})
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/simulate", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var next store.Frame
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &next))
	require.Equal(t, 0, next.Round)
	require.Equal(t, []string{"bomb+down", "up"}, next.Actions)
	require.Len(t, next.Bombs, 1)
	require.Equal(t, game.Cell{X: 0, Y: 0}, next.Bombs[0].Pos)

	require.NoError(t, ref.Step([2]game.Action{game.BombDown, game.MoveUp}))
	require.Equal(t, ref.Digest(), next.Digest)

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/simulate", bytes.NewReader([]byte(`{"actions":["jump"]}`))))
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/simulate", nil))
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestPaginateMatches(t *testing.T) {
	matches := []MatchSummary{
		{MatchID: "a", Map: "GRID_2", RoundCount: 30},
		{MatchID: "b", Map: "GRID_1", RoundCount: 10},
		{MatchID: "c", Map: "GRID_1", RoundCount: 20},
	}
	ids := func(ms []MatchSummary) []string {
		var out []string
		for _, m := range ms {
			out = append(out, m.MatchID)
		}
		return out
	}
	require.Equal(t, []string{"a", "b", "c"}, ids(paginateMatches(matches, 0, 0, "", "")))
	require.Equal(t, []string{"b", "c", "a"}, ids(paginateMatches(matches, 0, 0, "map", "")))
	require.Equal(t, []string{"a", "c"}, ids(paginateMatches(matches, 2, 0, "rounds", "desc")))
	require.Equal(t, []string{"c"}, ids(paginateMatches(matches, 1, 1, "", "")))
	require.Empty(t, paginateMatches(matches, 10, 5, "", ""))
	require.Equal(t, "a", matches[0].MatchID)
}
