// Command contest plays a round robin between planner profiles on the
// built-in maps and prints the standings.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/brensch/hypersonic/arena"
	"github.com/brensch/hypersonic/config"
	"github.com/brensch/hypersonic/logging"
	"github.com/brensch/hypersonic/planner"
	"github.com/brensch/hypersonic/store"
)

type options struct {
	ConfigPath string
	OutDir     string
	DBPath     string
	Replays    string
	Replicates int
	GamePool   int
	MatchPool  int
	Seed       int64
	TUI        bool
}

func main() {
	var opts options
	flag.StringVar(&opts.ConfigPath, "config", getEnvOrDefault("CONTEST_CONFIG", ""), "YAML config with profiles and contest settings")
	flag.StringVar(&opts.OutDir, "out-dir", getEnvOrDefault("CONTEST_OUT_DIR", "data/contests"), "Directory for per-match parquet archives (empty disables)")
	flag.StringVar(&opts.DBPath, "db", getEnvOrDefault("CONTEST_DB", "data/contests/index.sqlite"), "SQLite results index (empty disables)")
	flag.StringVar(&opts.Replays, "replays", getEnvOrDefault("CONTEST_REPLAYS", ""), "zstd JSONL replay log path (empty disables)")
	flag.IntVar(&opts.Replicates, "replicates", getEnvIntOrDefault("CONTEST_REPLICATES", 0), "Matches per pairing and map (0 keeps the config value)")
	flag.IntVar(&opts.GamePool, "game-pool", getEnvIntOrDefault("CONTEST_GAME_POOL", 0), "Games played at once (0 keeps the config value)")
	flag.IntVar(&opts.MatchPool, "match-pool", getEnvIntOrDefault("CONTEST_MATCH_POOL", 0), "Replicates of one game played at once (0 keeps the config value)")
	flag.Int64Var(&opts.Seed, "seed", 0, "Contest seed (0 keeps the config value)")
	flag.BoolVar(&opts.TUI, "tui", false, "Show live progress instead of logs")
	logLevel := flag.String("log-level", getEnvOrDefault("CONTEST_LOG_LEVEL", "info"), "debug, info, warn or error")
	flag.Parse()

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(sigCtx)
	defer cancel()

	// the TUI owns the terminal, so logs go to a file next to the archives
	var logOut io.Writer = os.Stderr
	if opts.TUI {
		logOut = io.Discard
		if opts.OutDir != "" {
			if err := os.MkdirAll(opts.OutDir, 0o755); err == nil {
				if f, err := os.OpenFile(filepath.Join(opts.OutDir, "contest.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
					defer f.Close()
					logOut = f
				}
			}
		}
	}
	log := logging.New(logOut, level, !opts.TUI)

	c, cleanup, err := build(opts, log)
	if err != nil {
		log.Error("contest setup failed", "error", err)
		os.Exit(1)
	}
	if err := run(ctx, cancel, c, cleanup, opts.TUI, log, os.Stdout); err != nil {
		os.Exit(1)
	}
}

// run plays the contest and prints the standings. cleanup runs before run
// returns, so the stores are flushed even when the contest was interrupted.
func run(ctx context.Context, cancel context.CancelFunc, c *arena.Contest, cleanup func(), tui bool, log *slog.Logger, out io.Writer) error {
	defer cleanup()

	var (
		results []arena.MatchResult
		err     error
	)
	if tui {
		results, err = runWithTUI(ctx, cancel, c)
	} else {
		total := c.TotalMatches()
		done := 0
		next := c.OnResult
		c.OnResult = func(r arena.MatchResult) {
			done++
			log.Info("match finished",
				"progress", fmt.Sprintf("%s/%s", humanize.Comma(int64(done)), humanize.Comma(int64(total))),
				"map", r.Map,
				"a", r.A,
				"b", r.B,
				"winner", r.Winner,
				"reason", r.Reason,
				"rounds", r.Rounds,
			)
			if next != nil {
				next(r)
			}
		}
		results, err = c.Run(ctx)
	}
	if err != nil {
		log.Error("contest stopped", "error", err, "matches", len(results))
	}

	standings := arena.Standings(results)
	if rec, ok := c.Recorder.(*store.Recorder); ok && rec.Index != nil {
		if s, qerr := rec.Index.Standings(context.Background(), c.ID); qerr == nil {
			standings = s
		} else {
			log.Warn("index standings unavailable", "error", qerr)
		}
	}
	printStandings(out, c.ID, standings, len(results))
	return err
}

// build turns the config and flags into a ready contest. cleanup closes the
// stores and must run after the contest finishes.
func build(opts options, log *slog.Logger) (*arena.Contest, func(), error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, nil, err
	}
	cc := cfg.Contest
	if opts.Replicates > 0 {
		cc.Replicates = opts.Replicates
	}
	if opts.GamePool > 0 {
		cc.GamePool = opts.GamePool
	}
	if opts.MatchPool > 0 {
		cc.MatchPool = opts.MatchPool
	}
	if opts.Seed != 0 {
		cc.Seed = opts.Seed
	}

	maps, err := arena.LookupMaps(cc.Grids...)
	if err != nil {
		return nil, nil, err
	}

	var entrants []arena.Entrant
	for _, p := range cfg.Entrants() {
		entrants = append(entrants, arena.Entrant{
			Name: p.Name,
			New: func(seed int64) (planner.Decider, error) {
				return p.NewDecider(seed, log)
			},
		})
	}

	c := &arena.Contest{
		ID:          uuid.NewString(),
		Entrants:    entrants,
		Maps:        maps,
		Replicates:  cc.Replicates,
		GamePool:    cc.GamePool,
		MatchPool:   cc.MatchPool,
		MaxRounds:   cc.MaxRounds,
		RoundBudget: cc.RoundBudget,
		Seed:        cc.Seed,
		Logger:      log,
	}

	rec := &store.Recorder{ContestID: c.ID, ArchiveDir: opts.OutDir, Log: log}
	cleanup := func() {
		if rec.Replay != nil {
			if err := rec.Replay.Close(); err != nil {
				log.Warn("close replay log", "error", err)
			}
		}
		if rec.Index != nil {
			_ = rec.Index.Close()
		}
	}
	if opts.DBPath != "" {
		ix, err := store.OpenIndex(opts.DBPath)
		if err != nil {
			return nil, nil, fmt.Errorf("open index: %w", err)
		}
		rec.Index = ix
	}
	if opts.Replays != "" {
		w, err := store.NewReplayWriter(opts.Replays)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("open replay log: %w", err)
		}
		rec.Replay = w
	}
	if rec.ArchiveDir != "" || rec.Index != nil || rec.Replay != nil {
		c.Recorder = rec
	}
	return c, cleanup, nil
}

func printStandings(w io.Writer, contestID string, standings []arena.Standing, matches int) {
	fmt.Fprintf(w, "contest %s: %s matches\n\n", contestID, humanize.Comma(int64(matches)))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "place\tprofile\tplayed\twins\tlosses\tdraws\twin rate\tavg rounds")
	for i, s := range standings {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%.1f%%\t%.1f\n",
			humanize.Ordinal(i+1), s.Name, s.Played, s.Wins, s.Losses, s.Draws, 100*s.WinRate(), s.AvgRounds())
	}
	_ = tw.Flush()
}

// runWithTUI plays the contest behind a live progress view. Quitting the
// view cancels the contest.
func runWithTUI(ctx context.Context, cancel context.CancelFunc, c *arena.Contest) ([]arena.MatchResult, error) {
	// one slot per match plus the done message, so no send ever blocks
	updates := make(chan tea.Msg, c.TotalMatches()+1)
	c.OnResult = func(r arena.MatchResult) {
		select {
		case updates <- r:
		default:
		}
	}

	p := tea.NewProgram(initialModel(c.ID, c.TotalMatches(), updates))
	type outcome struct {
		results []arena.MatchResult
		err     error
	}
	finished := make(chan outcome, 1)
	go func() {
		results, err := c.Run(ctx)
		updates <- contestDoneMsg{err: err}
		close(updates)
		finished <- outcome{results, err}
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-finished
		return nil, err
	}
	cancel()
	out := <-finished
	return out.results, out.err
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}
