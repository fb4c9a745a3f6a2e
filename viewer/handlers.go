package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/brensch/hypersonic/arena"
	"github.com/brensch/hypersonic/game"
	"github.com/brensch/hypersonic/rules"
	"github.com/brensch/hypersonic/store"
)

// Server holds shared state for HTTP handlers.
type Server struct {
	roots   []string
	dbCache *DBCache
	// index is optional; standings endpoints answer 404 without it
	index *store.Index
	log   *slog.Logger
}

func NewServer(roots []string, index *store.Index, log *slog.Logger) *Server {
	return &Server{
		roots:   roots,
		dbCache: NewDBCache(roots, 30*time.Second, log),
		index:   index,
		log:     log,
	}
}

func (s *Server) Close() error {
	return s.dbCache.Close()
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/matches", s.handleMatches)
	mux.HandleFunc("/api/matches/", s.handleMatchRounds)
	mux.HandleFunc("/api/contests", s.handleContests)
	mux.HandleFunc("/api/standings", s.handleStandings)
	mux.HandleFunc("/api/simulate", s.handleSimulate)
}

func (s *Server) handleMatches(w http.ResponseWriter, r *http.Request) {
	withCORS(w, r)
	if r.Method == http.MethodOptions {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	// pick up matches archived since the last request
	if err := s.dbCache.Refresh(); err != nil {
		http.Error(w, fmt.Sprintf("failed to refresh db: %v", err), http.StatusInternalServerError)
		return
	}
	index, err := s.dbCache.MatchesIndex(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	limit := parseIntQuery(r, "limit", 1000)
	offset := parseIntQuery(r, "offset", 0)
	sortKey := strings.TrimSpace(r.URL.Query().Get("sort"))
	sortDir := strings.TrimSpace(r.URL.Query().Get("dir"))
	writeJSON(w, MatchesResponse{
		Total:   int64(len(index)),
		Matches: paginateMatches(index, limit, offset, sortKey, sortDir),
	})
}

// handleMatchRounds serves /api/matches/{id}/rounds.
func (s *Server) handleMatchRounds(w http.ResponseWriter, r *http.Request) {
	withCORS(w, r)
	if r.Method == http.MethodOptions {
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/api/matches/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "rounds" {
		http.NotFound(w, r)
		return
	}
	matchID, err := url.PathUnescape(parts[0])
	if err != nil {
		http.Error(w, "bad match id", http.StatusBadRequest)
		return
	}

	db, err := s.dbCache.Get()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	file, err := matchFile(r.Context(), db, matchID)
	if errors.Is(err, sql.ErrNoRows) {
		http.NotFound(w, r)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	rows, err := store.ReadMatchParquet(file)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// compacted shards hold many matches
	out := rows[:0]
	for _, row := range rows {
		if row.MatchID == matchID {
			out = append(out, row)
		}
	}
	writeJSON(w, out)
}

func (s *Server) handleContests(w http.ResponseWriter, r *http.Request) {
	withCORS(w, r)
	if r.Method == http.MethodOptions {
		return
	}
	if s.index == nil {
		http.Error(w, "no results index", http.StatusNotFound)
		return
	}
	contests, err := s.index.Contests(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, contests)
}

func (s *Server) handleStandings(w http.ResponseWriter, r *http.Request) {
	withCORS(w, r)
	if r.Method == http.MethodOptions {
		return
	}
	if s.index == nil {
		http.Error(w, "no results index", http.StatusNotFound)
		return
	}
	contestID := strings.TrimSpace(r.URL.Query().Get("contest"))
	if contestID == "" {
		http.Error(w, "contest is required", http.StatusBadRequest)
		return
	}
	standings, err := s.index.Standings(r.Context(), contestID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if standings == nil {
		standings = []arena.Standing{}
	}
	writeJSON(w, standings)
}

// handleSimulate plays one round from a posted frame. Agents listed as dead
// in the frame are removed before stepping.
func (s *Server) handleSimulate(w http.ResponseWriter, r *http.Request) {
	withCORS(w, r)
	if r.Method == http.MethodOptions {
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req SimulateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json", http.StatusBadRequest)
		return
	}
	next, err := simulate(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, next)
}

func simulate(req SimulateRequest) (store.Frame, error) {
	st, err := req.Frame.State()
	if err != nil {
		return store.Frame{}, err
	}
	dead := map[int]bool{}
	for _, id := range req.Frame.Dead {
		dead[id] = true
	}
	alive := st.Agents[:0]
	for _, a := range st.Agents {
		if !dead[a.ID] {
			alive = append(alive, a)
		}
	}
	st.Agents = alive

	e := rules.New(st)
	byID := map[int]game.Action{}
	for id, name := range req.Actions {
		a, err := game.ParseAction(name)
		if err != nil {
			return store.Frame{}, err
		}
		byID[id] = a
	}
	actions := make([]game.Action, 0, len(st.Agents))
	played := make([]arena.AgentAction, 0, len(st.Agents))
	for _, a := range st.Agents {
		act, ok := byID[a.ID]
		if !ok {
			act = game.Stay
		}
		actions = append(actions, act)
		played = append(played, arena.AgentAction{AgentID: a.ID, Action: act})
	}
	if err := e.Step(actions...); err != nil {
		return store.Frame{}, err
	}

	rec := arena.RoundRecord{
		MatchID: req.Frame.MatchID,
		Map:     req.Frame.Map,
		Round:   req.Frame.Round + 1,
		Sides:   req.Frame.Sides,
		Actions: played,
		Dead:    req.Frame.Dead,
		Boxes:   req.Frame.Boxes,
		State:   e.State(),
		Digest:  e.Digest(),
	}
	for _, a := range st.Agents {
		if d, _ := e.IsDead(a.ID); d {
			rec.Dead = append(rec.Dead, a.ID)
		}
		if n, _ := e.BoxesDestroyed(a.ID); a.ID >= 0 && a.ID < len(rec.Boxes) {
			rec.Boxes[a.ID] += n
		}
	}
	return store.FrameFromRecord(rec), nil
}
