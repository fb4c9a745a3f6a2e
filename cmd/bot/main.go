// Command bot plays one game over stdin/stdout: it reads the header and a
// snapshot per round, and answers each round with one command line.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/brensch/hypersonic/config"
	"github.com/brensch/hypersonic/game"
	"github.com/brensch/hypersonic/logging"
	"github.com/brensch/hypersonic/planner"
	"github.com/brensch/hypersonic/protocol"
)

func main() {
	budget := flag.Duration("budget", getEnvDurationOrDefault("BOT_BUDGET", 90*time.Millisecond), "Time allowed to decide each round")
	profileName := flag.String("profile", getEnvOrDefault("BOT_PROFILE", "block-aware"), "Planner profile to play with")
	configPath := flag.String("config", getEnvOrDefault("BOT_CONFIG", ""), "YAML config with planner profiles (built-in defaults when empty)")
	seed := flag.Int64("seed", getEnvInt64OrDefault("BOT_SEED", 0), "Planner seed (0 seeds from the clock)")
	logLevel := flag.String("log-level", getEnvOrDefault("BOT_LOG_LEVEL", "info"), "debug, info, warn or error")
	prettyLogs := flag.Bool("pretty-logs", false, "Indented JSON logs on stderr")
	flag.Parse()

	level, err := logging.ParseLevel(*logLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	// stdout carries commands; logs go to stderr
	log := logging.New(os.Stderr, level, *prettyLogs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Stdin, os.Stdout, *configPath, *profileName, *seed, *budget, log); err != nil {
		log.Error("bot stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, in io.Reader, out io.Writer, configPath, profileName string, seed int64, budget time.Duration, log *slog.Logger) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	profile, ok := cfg.Profile(profileName)
	if !ok {
		return fmt.Errorf("%w: no profile %q", config.ErrInvalid, profileName)
	}
	decider, err := profile.NewDecider(seed, log)
	if err != nil {
		return err
	}

	r := protocol.NewReader(in)
	w := protocol.NewWriter(out)
	h, err := r.ReadHeader()
	if err != nil {
		return err
	}
	log.Info("game starting", "width", h.Width, "height", h.Height, "id", h.MyID, "profile", profile.Name)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		s, err := r.ReadRound(h)
		if errors.Is(err, io.EOF) {
			log.Info("feed closed")
			return nil
		}
		if err != nil {
			return err
		}

		start := time.Now()
		a := decide(ctx, decider, s, budget, log)
		you, _ := s.You()
		cmd := protocol.FormatAction(a, you.Pos, h.Width, h.Height, "")
		if err := w.WriteCommand(cmd); err != nil {
			return fmt.Errorf("write command: %w", err)
		}
		log.Debug("round played", "round", s.Round, "action", a.String(), "elapsed", time.Since(start))
	}
}

func decide(ctx context.Context, d planner.Decider, s *game.State, budget time.Duration, log *slog.Logger) game.Action {
	rctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	p, ok := d.(*planner.Planner)
	if !ok {
		return d.Decide(rctx, s)
	}
	a, res := p.Plan(rctx, s)
	log.Debug("plan",
		"round", s.Round,
		"fitness", res.Best.Fitness,
		"generations", res.Generations,
		"evaluations", res.Evaluations,
		"interrupted", res.Interrupted,
	)
	return a
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt64OrDefault(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDurationOrDefault(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
