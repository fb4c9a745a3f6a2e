// Command debuggame plays a single match between two profiles, printing each
// round as it goes, and archives it for the viewer.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brensch/hypersonic/arena"
	"github.com/brensch/hypersonic/config"
	"github.com/brensch/hypersonic/logging"
	"github.com/brensch/hypersonic/store"
)

type options struct {
	ConfigPath string
	A, B       string
	Map        string
	Seed       int64
	MaxRounds  int
	Budget     time.Duration
	OutDir     string
	Boards     bool
	Frontend   string
}

func main() {
	var opts options
	flag.StringVar(&opts.ConfigPath, "config", "", "YAML config with planner profiles (built-in defaults when empty)")
	flag.StringVar(&opts.A, "a", "block-aware", "Profile for side A")
	flag.StringVar(&opts.B, "b", "greedy", "Profile for side B")
	flag.StringVar(&opts.Map, "map", "GRID_1", "Built-in map name")
	flag.Int64Var(&opts.Seed, "seed", 1, "Match seed")
	flag.IntVar(&opts.MaxRounds, "max-rounds", arena.DefaultMaxRounds, "Round limit")
	flag.DurationVar(&opts.Budget, "budget", 100*time.Millisecond, "Decision time per round")
	flag.StringVar(&opts.OutDir, "out-dir", filepath.Join("debug_games"), "Output directory for the archive and replay")
	flag.BoolVar(&opts.Boards, "boards", false, "Print the board after every round")
	flag.StringVar(&opts.Frontend, "frontend", "http://localhost:5173", "Viewer front end base URL")
	flag.Parse()

	log := logging.New(os.Stderr, slog.LevelInfo, true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	res, err := run(ctx, opts, os.Stdout, log)
	if err != nil {
		log.Error("debug game failed", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Printf("  Debug match ready! Open in browser:\n")
	fmt.Printf("  %s/matches/%s\n", opts.Frontend, res.ID)
	fmt.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println()
}

func run(ctx context.Context, opts options, out io.Writer, log *slog.Logger) (arena.MatchResult, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return arena.MatchResult{}, err
	}
	maps, err := arena.LookupMaps(opts.Map)
	if err != nil {
		return arena.MatchResult{}, err
	}
	var sides [2]arena.Side
	for i, name := range []string{opts.A, opts.B} {
		p, ok := cfg.Profile(name)
		if !ok {
			return arena.MatchResult{}, fmt.Errorf("%w: no profile %q", config.ErrInvalid, name)
		}
		d, err := p.NewDecider(opts.Seed*2+int64(i)+1, log)
		if err != nil {
			return arena.MatchResult{}, err
		}
		// both sides may share a profile; keep their names apart
		sides[i] = arena.Side{Name: fmt.Sprintf("%s/%c", name, 'A'+i), Decider: d}
	}

	replayPath := filepath.Join(opts.OutDir, "replay.jsonl.zst")
	replay, err := store.NewReplayWriter(replayPath)
	if err != nil {
		return arena.MatchResult{}, err
	}
	rec := &store.Recorder{ArchiveDir: opts.OutDir, Replay: replay, Log: log}

	matchID := uuid.NewString()
	log.Info("generating debug match", "match", matchID, "a", sides[0].Name, "b", sides[1].Name, "map", opts.Map)
	res, err := arena.PlayMatch(ctx, arena.MatchSpec{
		ID:          matchID,
		Map:         maps[0],
		A:           sides[0],
		B:           sides[1],
		Seed:        opts.Seed,
		MaxRounds:   opts.MaxRounds,
		RoundBudget: opts.Budget,
		Sink:        &progress{next: rec, out: out, boards: opts.Boards},
		Log:         log,
	})
	if err == nil {
		err = rec.RecordMatch(res)
	}
	if cerr := replay.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return res, err
	}

	winner := res.Winner
	if res.Draw() {
		winner = "draw"
	}
	log.Info("match complete", "rounds", res.Rounds, "winner", winner, "reason", res.Reason)
	log.Info("debug match written", "archive", filepath.Join(opts.OutDir, "match_"+res.ID+".parquet"), "replay", replayPath)
	return res, nil
}

// progress prints one line per round before passing the record on.
type progress struct {
	next   arena.RoundSink
	out    io.Writer
	boards bool
}

func (p *progress) RecordRound(r arena.RoundRecord) error {
	if r.Round >= 0 {
		moves := make([]string, 0, len(r.Actions))
		for _, a := range r.Actions {
			moves = append(moves, fmt.Sprintf("%s→%s", a.Side, a.Action))
		}
		alive := len(r.State.Agents) - len(r.Dead)
		fmt.Fprintf(p.out, "  Round %3d | %d alive | boxes %d-%d | %s\n", r.Round, alive, r.Boxes[0], r.Boxes[1], strings.Join(moves, ", "))
	}
	if p.boards {
		fmt.Fprintln(p.out, r.State.Dump())
	}
	return p.next.RecordRound(r)
}
