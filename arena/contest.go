package arena

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/brensch/hypersonic/planner"
)

var ErrNoEntrants = errors.New("contest needs at least two entrants")

// Entrant builds a fresh decider per match; deciders are never shared
// between concurrent matches.
type Entrant struct {
	Name string
	New  func(seed int64) (planner.Decider, error)
}

// Recorder persists contest output. RecordRound may be called from several
// matches at once.
type Recorder interface {
	RoundSink
	RecordMatch(res MatchResult) error
}

// Game is one pairing on one map, played Replicates times.
type Game struct {
	Map  Map
	A, B Entrant
}

// Contest is a round robin of every entrant pair on every map.
type Contest struct {
	ID          string
	Entrants    []Entrant
	Maps        []Map
	Replicates  int
	GamePool    int
	MatchPool   int
	MaxRounds   int
	RoundBudget time.Duration
	Seed        int64
	Recorder    Recorder
	// OnResult is called once per finished match, never concurrently.
	OnResult func(MatchResult)
	Logger   *slog.Logger
}

// Games lists the scheduled pairings in a stable order.
func (c *Contest) Games() []Game {
	var games []Game
	for _, m := range c.Maps {
		for i := 0; i < len(c.Entrants); i++ {
			for j := i + 1; j < len(c.Entrants); j++ {
				games = append(games, Game{Map: m, A: c.Entrants[i], B: c.Entrants[j]})
			}
		}
	}
	return games
}

// TotalMatches is the number of matches Run will play.
func (c *Contest) TotalMatches() int {
	return len(c.Games()) * max(c.Replicates, 1)
}

// Run plays every game, at most GamePool at a time, and the replicates of
// each game at most MatchPool at a time. The first error cancels the rest.
func (c *Contest) Run(ctx context.Context) ([]MatchResult, error) {
	if len(c.Entrants) < 2 {
		return nil, ErrNoEntrants
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	log := c.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With("contest", c.ID)
	seed := c.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	replicates := max(c.Replicates, 1)

	var (
		mu      sync.Mutex
		results []MatchResult
	)

	games := c.Games()
	log.Info("contest starting", "games", len(games), "matches", len(games)*replicates)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.GamePool, 1))
	for gi, game := range games {
		g.Go(func() error {
			mg, mctx := errgroup.WithContext(gctx)
			mg.SetLimit(max(c.MatchPool, 1))
			for rep := 0; rep < replicates; rep++ {
				matchSeed := seed + int64(gi)*7919 + int64(rep)*104729
				mg.Go(func() error {
					res, err := c.playOne(mctx, game, matchSeed, log)
					if err != nil {
						return fmt.Errorf("%s %s vs %s: %w", game.Map.Name, game.A.Name, game.B.Name, err)
					}
					mu.Lock()
					defer mu.Unlock()
					results = append(results, res)
					if c.Recorder != nil {
						if err := c.Recorder.RecordMatch(res); err != nil {
							return fmt.Errorf("record match %s: %w", res.ID, err)
						}
					}
					if c.OnResult != nil {
						c.OnResult(res)
					}
					return nil
				})
			}
			return mg.Wait()
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}

	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	log.Info("contest finished", "matches", len(results))
	return results, nil
}

func (c *Contest) playOne(ctx context.Context, g Game, seed int64, log *slog.Logger) (MatchResult, error) {
	a, err := g.A.New(seed*2 + 1)
	if err != nil {
		return MatchResult{}, fmt.Errorf("build %s: %w", g.A.Name, err)
	}
	b, err := g.B.New(seed*2 + 2)
	if err != nil {
		return MatchResult{}, fmt.Errorf("build %s: %w", g.B.Name, err)
	}
	spec := MatchSpec{
		ID:          uuid.NewString(),
		Map:         g.Map,
		A:           Side{Name: g.A.Name, Decider: a},
		B:           Side{Name: g.B.Name, Decider: b},
		Seed:        seed,
		MaxRounds:   c.MaxRounds,
		RoundBudget: c.RoundBudget,
		Log:         log,
	}
	if c.Recorder != nil {
		spec.Sink = c.Recorder
	}
	return PlayMatch(ctx, spec)
}

// Standing is one entrant's aggregate record.
type Standing struct {
	Name        string
	Played      int
	Wins        int
	Losses      int
	Draws       int
	TotalRounds int
}

func (s Standing) WinRate() float64 {
	if s.Played == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Played)
}

func (s Standing) AvgRounds() float64 {
	if s.Played == 0 {
		return 0
	}
	return float64(s.TotalRounds) / float64(s.Played)
}

// Standings aggregates results, best first: most wins, then fewest losses,
// then name.
func Standings(results []MatchResult) []Standing {
	byName := map[string]*Standing{}
	get := func(name string) *Standing {
		s, ok := byName[name]
		if !ok {
			s = &Standing{Name: name}
			byName[name] = s
		}
		return s
	}

	for _, r := range results {
		for _, name := range []string{r.A, r.B} {
			s := get(name)
			s.Played++
			s.TotalRounds += r.Rounds
			switch {
			case r.Draw():
				s.Draws++
			case r.Winner == name:
				s.Wins++
			default:
				s.Losses++
			}
		}
	}

	out := make([]Standing, 0, len(byName))
	for _, s := range byName {
		out = append(out, *s)
	}
	SortStandings(out)
	return out
}

// SortStandings orders best first.
func SortStandings(out []Standing) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		if out[i].Losses != out[j].Losses {
			return out[i].Losses < out[j].Losses
		}
		return out[i].Name < out[j].Name
	})
}
