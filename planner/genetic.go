// Package planner chooses an action for the controlled agent by searching
// over fixed-length action sequences replayed on the rules engine.
package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/brensch/hypersonic/game"
	"github.com/brensch/hypersonic/rules"
)

var ErrInvalidConfig = errors.New("invalid planner config")

// Config holds GA parameters.
type Config struct {
	GeneLength    int     `yaml:"gene_length"`
	Population    int     `yaml:"population"`
	Generations   int     `yaml:"generations"`
	CrossoverRate float64 `yaml:"crossover_rate"`
	MutationRate  float64 `yaml:"mutation_rate"`
	// Seed fixes the random source. Zero seeds from the clock.
	Seed int64 `yaml:"seed"`
	// PassiveOpponents keeps opponents in rollouts, always standing still.
	// Otherwise rollouts only track the controlled agent.
	PassiveOpponents bool `yaml:"passive_opponents"`
}

func DefaultConfig() Config {
	return Config{
		GeneLength:    32,
		Population:    40,
		Generations:   5,
		CrossoverRate: 0.7,
		MutationRate:  0.001,
	}
}

func (c Config) Validate() error {
	switch {
	case c.GeneLength < 1:
		return fmt.Errorf("%w: gene_length %d", ErrInvalidConfig, c.GeneLength)
	case c.Population < 2:
		return fmt.Errorf("%w: population %d", ErrInvalidConfig, c.Population)
	case c.Generations < 0:
		return fmt.Errorf("%w: generations %d", ErrInvalidConfig, c.Generations)
	case c.CrossoverRate < 0 || c.CrossoverRate > 1:
		return fmt.Errorf("%w: crossover_rate %v", ErrInvalidConfig, c.CrossoverRate)
	case c.MutationRate < 0 || c.MutationRate > 1:
		return fmt.Errorf("%w: mutation_rate %v", ErrInvalidConfig, c.MutationRate)
	}
	return nil
}

// Result describes one Plan call.
type Result struct {
	Best        Chromosome
	Generations int
	Evaluations int
	// Interrupted is set when ctx ended before the last generation finished.
	Interrupted bool
	Elapsed     time.Duration
}

type Option func(*Planner)

func WithLogger(l *slog.Logger) Option {
	return func(p *Planner) {
		if l != nil {
			p.log = l
		}
	}
}

// Planner is a genetic search over action sequences. It is not safe for
// concurrent use; give each agent its own.
type Planner struct {
	cfg  Config
	eval Evaluator
	rng  *rand.Rand
	log  *slog.Logger
}

// New builds a planner. Non-positive sizes fall back to DefaultConfig values.
func New(cfg Config, eval Evaluator, opts ...Option) *Planner {
	def := DefaultConfig()
	if cfg.GeneLength < 1 {
		cfg.GeneLength = def.GeneLength
	}
	if cfg.Population < 2 {
		cfg.Population = def.Population
	}
	if cfg.Generations < 0 {
		cfg.Generations = 0
	}
	if eval == nil {
		eval = NewBlockAware()
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	p := &Planner{
		cfg:  cfg,
		eval: eval,
		rng:  rand.New(rand.NewSource(seed)),
		log:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Planner) Config() Config {
	return p.cfg
}

// Decide implements Decider.
func (p *Planner) Decide(ctx context.Context, s *game.State) game.Action {
	a, _ := p.Plan(ctx, s)
	return a
}

// Plan runs the search from s and returns the first gene of the fittest
// chromosome of the final generation. If ctx ends early the best chromosome
// evaluated so far is used, and Stay if nothing was evaluated. s is not
// modified.
func (p *Planner) Plan(ctx context.Context, s *game.State) (game.Action, Result) {
	start := time.Now()
	res := Result{}

	base, ok := p.rolloutEngine(s)
	if !ok {
		p.log.Warn("controlled agent missing from state", "you", s.YouID, "round", s.Round)
		res.Elapsed = time.Since(start)
		return game.Stay, res
	}
	you := s.YouID

	var best Chromosome
	haveBest := false
	evaluate := func(c *Chromosome) bool {
		if ctx.Err() != nil {
			res.Interrupted = true
			return false
		}
		c.Fitness = p.eval.Evaluate(base.Clone(), you, c.Genes)
		res.Evaluations++
		if !haveBest || c.Fitness > best.Fitness {
			best = c.Clone()
			haveBest = true
		}
		return true
	}
	finish := func(final []Chromosome) (game.Action, Result) {
		if !res.Interrupted && len(final) > 0 {
			res.Best = fittest(final).Clone()
		} else if haveBest {
			res.Best = best
		}
		res.Elapsed = time.Since(start)
		action := res.Best.First()
		p.log.Debug("plan",
			"round", s.Round,
			"action", action.String(),
			"fitness", res.Best.Fitness,
			"generations", res.Generations,
			"evaluations", res.Evaluations,
			"interrupted", res.Interrupted,
			"elapsed", res.Elapsed,
		)
		return action, res
	}

	pool := make([]Chromosome, 0, p.cfg.Population)
	for i := 0; i < p.cfg.Population; i++ {
		c := randomChromosome(p.rng, p.cfg.GeneLength)
		if !evaluate(&c) {
			return finish(nil)
		}
		pool = append(pool, c)
	}

	for gen := 0; gen < p.cfg.Generations; gen++ {
		remaining := append([]Chromosome(nil), pool...)
		next := make([]Chromosome, 0, len(pool))
		for len(remaining) > 0 {
			a := p.selectMember(&remaining)
			if len(remaining) == 0 {
				// odd population: the last one only mutates
				a.Mutate(p.rng, p.cfg.MutationRate)
				if !evaluate(&a) {
					return finish(nil)
				}
				next = append(next, a)
				break
			}
			b := p.selectMember(&remaining)

			a.Crossover(&b, p.rng, p.cfg.CrossoverRate)
			a.Mutate(p.rng, p.cfg.MutationRate)
			b.Mutate(p.rng, p.cfg.MutationRate)

			if !evaluate(&a) {
				return finish(nil)
			}
			next = append(next, a)
			if !evaluate(&b) {
				return finish(nil)
			}
			next = append(next, b)
		}
		pool = next
		res.Generations++
	}

	return finish(pool)
}

// rolloutEngine builds the relaxed engine every chromosome is replayed on.
func (p *Planner) rolloutEngine(s *game.State) (*rules.Engine, bool) {
	view := s.Clone()
	you, ok := view.You()
	if !ok {
		return nil, false
	}
	if !p.cfg.PassiveOpponents {
		view.Agents = []game.Agent{*you}
	}
	return rules.New(view, rules.WithRelaxed(true)), true
}

// selectMember draws one chromosome with probability proportional to its
// fitness and removes it from pool. Negative fitness counts as zero; when
// nothing has positive fitness the draw is uniform.
func (p *Planner) selectMember(pool *[]Chromosome) Chromosome {
	l := *pool
	total := 0.0
	for _, c := range l {
		if c.Fitness > 0 {
			total += c.Fitness
		}
	}

	pick := len(l) - 1
	if total <= 0 {
		pick = p.rng.Intn(len(l))
	} else {
		slice := total * p.rng.Float64()
		acc := 0.0
		for i, c := range l {
			if c.Fitness <= 0 {
				continue
			}
			acc += c.Fitness
			if acc >= slice {
				pick = i
				break
			}
		}
	}

	c := l[pick]
	*pool = append(l[:pick], l[pick+1:]...)
	return c
}

func fittest(pool []Chromosome) Chromosome {
	best := pool[0]
	for _, c := range pool[1:] {
		if c.Fitness > best.Fitness {
			best = c
		}
	}
	return best
}
