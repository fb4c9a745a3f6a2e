// Package config loads planner profiles and contest settings from YAML.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/brensch/hypersonic/planner"
)

var ErrInvalid = errors.New("invalid config")

// Profile kinds.
const (
	KindGenetic = "genetic"
	KindGreedy  = "greedy"
)

type File struct {
	Profiles []Profile `yaml:"profiles"`
	Contest  Contest   `yaml:"contest"`
}

// Profile is a named way of playing.
type Profile struct {
	Name      string `yaml:"name"`
	Kind      string `yaml:"kind"`
	Evaluator string `yaml:"evaluator"`
	// Weights replaces the evaluator's defaults as a whole when set.
	Weights *planner.Weights `yaml:"weights,omitempty"`
	Genetic planner.Config   `yaml:"genetic"`
	// Horizon is the greedy rollout length.
	Horizon int `yaml:"horizon"`
}

type Contest struct {
	// Profiles lists the entrants by name. Empty enters every profile.
	Profiles []string `yaml:"profiles"`
	// Grids lists built-in map names. Empty plays every map.
	Grids       []string      `yaml:"grids"`
	Replicates  int           `yaml:"replicates"`
	GamePool    int           `yaml:"game_pool"`
	MatchPool   int           `yaml:"match_pool"`
	MaxRounds   int           `yaml:"max_rounds"`
	RoundBudget time.Duration `yaml:"round_budget"`
	Seed        int64         `yaml:"seed"`
}

func DefaultProfile() Profile {
	return Profile{
		Name:      "block-aware",
		Kind:      KindGenetic,
		Evaluator: "block-aware",
		Genetic:   planner.DefaultConfig(),
		Horizon:   9,
	}
}

// UnmarshalYAML fills fields missing from the document with DefaultProfile
// values. The name is never defaulted.
func (p *Profile) UnmarshalYAML(n *yaml.Node) error {
	type raw Profile
	r := raw(DefaultProfile())
	r.Name = ""
	if err := n.Decode(&r); err != nil {
		return err
	}
	*p = Profile(r)
	return nil
}

func defaults() File {
	explorer := DefaultProfile()
	explorer.Name = "explorer"
	explorer.Evaluator = "explorer"
	explorer.Genetic.GeneLength = 16

	greedy := DefaultProfile()
	greedy.Name = "greedy"
	greedy.Kind = KindGreedy

	return File{
		Profiles: []Profile{DefaultProfile(), explorer, greedy},
		Contest: Contest{
			Replicates:  4,
			GamePool:    2,
			MatchPool:   3,
			MaxRounds:   200,
			RoundBudget: 100 * time.Millisecond,
		},
	}
}

// Load reads path, or returns the built-in defaults when path is empty.
func Load(path string) (File, error) {
	cfg := defaults()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	return Parse(b)
}

// Parse decodes a YAML document over the defaults. A document that lists
// profiles replaces the default profiles.
func Parse(b []byte) (File, error) {
	cfg := defaults()
	var doc File
	doc.Contest = cfg.Contest
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	if len(doc.Profiles) == 0 {
		doc.Profiles = cfg.Profiles
	}
	if err := doc.Validate(); err != nil {
		return cfg, err
	}
	return doc, nil
}

func (f File) Validate() error {
	seen := map[string]bool{}
	for i, p := range f.Profiles {
		if p.Name == "" {
			return fmt.Errorf("%w: profile %d has no name", ErrInvalid, i)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: duplicate profile %q", ErrInvalid, p.Name)
		}
		seen[p.Name] = true
		if err := p.Validate(); err != nil {
			return err
		}
	}
	for _, name := range f.Contest.Profiles {
		if !seen[name] {
			return fmt.Errorf("%w: contest entrant %q is not a profile", ErrInvalid, name)
		}
	}
	c := f.Contest
	switch {
	case c.Replicates < 1:
		return fmt.Errorf("%w: replicates %d", ErrInvalid, c.Replicates)
	case c.GamePool < 1 || c.MatchPool < 1:
		return fmt.Errorf("%w: pools %d/%d", ErrInvalid, c.GamePool, c.MatchPool)
	case c.MaxRounds < 1:
		return fmt.Errorf("%w: max_rounds %d", ErrInvalid, c.MaxRounds)
	}
	return nil
}

func (p Profile) Validate() error {
	if _, err := planner.EvaluatorByName(p.Evaluator, p.Weights); err != nil {
		return fmt.Errorf("%w: profile %q: %w", ErrInvalid, p.Name, err)
	}
	switch p.Kind {
	case KindGenetic:
		if err := p.Genetic.Validate(); err != nil {
			return fmt.Errorf("%w: profile %q: %w", ErrInvalid, p.Name, err)
		}
	case KindGreedy:
		if p.Horizon < 1 {
			return fmt.Errorf("%w: profile %q: horizon %d", ErrInvalid, p.Name, p.Horizon)
		}
	default:
		return fmt.Errorf("%w: profile %q: unknown kind %q", ErrInvalid, p.Name, p.Kind)
	}
	return nil
}

// Profile looks up a profile by name.
func (f File) Profile(name string) (Profile, bool) {
	for _, p := range f.Profiles {
		if p.Name == name {
			return p, true
		}
	}
	return Profile{}, false
}

// Entrants returns the profiles entered in the contest, in file order.
func (f File) Entrants() []Profile {
	if len(f.Contest.Profiles) == 0 {
		return f.Profiles
	}
	out := make([]Profile, 0, len(f.Contest.Profiles))
	for _, name := range f.Contest.Profiles {
		if p, ok := f.Profile(name); ok {
			out = append(out, p)
		}
	}
	return out
}

// NewDecider builds a fresh decider for one agent. seed overrides the
// genetic seed when non-zero.
func (p Profile) NewDecider(seed int64, log *slog.Logger) (planner.Decider, error) {
	eval, err := planner.EvaluatorByName(p.Evaluator, p.Weights)
	if err != nil {
		return nil, err
	}
	switch p.Kind {
	case KindGreedy:
		return planner.Greedy{Eval: eval, Horizon: p.Horizon}, nil
	case KindGenetic:
		cfg := p.Genetic
		if seed != 0 {
			cfg.Seed = seed
		}
		return planner.New(cfg, eval, planner.WithLogger(log)), nil
	default:
		return nil, fmt.Errorf("%w: profile %q: unknown kind %q", ErrInvalid, p.Name, p.Kind)
	}
}
