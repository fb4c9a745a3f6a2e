package planner

import (
	"errors"
	"fmt"

	"github.com/brensch/hypersonic/game"
	"github.com/brensch/hypersonic/rules"
)

var ErrUnknownEvaluator = errors.New("unknown evaluator")

// Evaluator scores a gene sequence by replaying it on e, which the caller
// owns and discards afterwards. you is the controlled agent. Higher is better.
type Evaluator interface {
	Evaluate(e *rules.Engine, you int, genes []game.Action) float64
}

// EvaluatorFunc adapts a plain function to Evaluator.
type EvaluatorFunc func(e *rules.Engine, you int, genes []game.Action) float64

func (f EvaluatorFunc) Evaluate(e *rules.Engine, you int, genes []game.Action) float64 {
	return f(e, you, genes)
}

// Weights are the per-term multipliers shared by the built-in evaluators.
// A term an evaluator does not use is ignored.
type Weights struct {
	Alive     float64 `yaml:"alive"`
	BombGain  float64 `yaml:"bomb_gain"`
	RangeGain float64 `yaml:"range_gain"`
	Mobility  float64 `yaml:"mobility"`
	Boxes     float64 `yaml:"boxes"`
	AreaGain  float64 `yaml:"area_gain"`
}

func DefaultBlockAwareWeights() Weights {
	return Weights{Alive: 500, BombGain: 45, RangeGain: 30, Mobility: 10, Boxes: 60}
}

func DefaultExplorerWeights() Weights {
	return Weights{Alive: 500, BombGain: 10, RangeGain: 10, Mobility: 25, AreaGain: 5}
}

// BlockAware rewards survival, pickups, mobility and boxes destroyed.
// Round i of n is weighted n-i; box credit gets an extra +8 so late
// destruction still counts.
type BlockAware struct {
	Weights Weights
}

func NewBlockAware() BlockAware {
	return BlockAware{Weights: DefaultBlockAwareWeights()}
}

func (b BlockAware) Evaluate(e *rules.Engine, you int, genes []game.Action) float64 {
	w := b.Weights
	total := 0.0
	for i, g := range genes {
		before, err := e.Agent(you)
		if err != nil {
			return total
		}
		boxesBefore, _ := e.BoxesDestroyed(you)

		if err := Advance(e, you, g); err != nil {
			return total
		}

		after, _ := e.Agent(you)
		weight := float64(len(genes) - i)

		score := 0.0
		if dead, _ := e.IsDead(you); !dead {
			score += w.Alive
		}
		score += float64(after.BombBudget-before.BombBudget) * w.BombGain
		score += float64(after.Range-before.Range) * w.RangeGain
		mobility, _ := e.Mobility(you)
		score += float64(mobility) * w.Mobility
		score *= weight

		boxesAfter, _ := e.BoxesDestroyed(you)
		score += float64(boxesAfter-boxesBefore) * (weight + 8) * w.Boxes

		total += score
	}
	return total
}

// Explorer rewards survival, pickups, mobility and growth of the reachable
// area. Shrinking area is not penalised.
type Explorer struct {
	Weights Weights
}

func NewExplorer() Explorer {
	return Explorer{Weights: DefaultExplorerWeights()}
}

func (x Explorer) Evaluate(e *rules.Engine, you int, genes []game.Action) float64 {
	w := x.Weights
	total := 0.0
	for i, g := range genes {
		before, err := e.Agent(you)
		if err != nil {
			return total
		}
		areaBefore, _ := e.ReachableArea(you)

		if err := Advance(e, you, g); err != nil {
			return total
		}

		after, _ := e.Agent(you)
		score := 0.0
		if dead, _ := e.IsDead(you); !dead {
			score += w.Alive
		}
		score += float64(after.BombBudget-before.BombBudget) * w.BombGain
		score += float64(after.Range-before.Range) * w.RangeGain
		if area, _ := e.ReachableArea(you); area > areaBefore {
			score += float64(area-areaBefore) * w.AreaGain
		}
		mobility, _ := e.Mobility(you)
		score += float64(mobility) * w.Mobility

		total += score * float64(len(genes)-i)
	}
	return total
}

// EvaluatorByName builds a built-in evaluator. A nil w selects its default weights.
func EvaluatorByName(name string, w *Weights) (Evaluator, error) {
	switch name {
	case "", "block-aware":
		ev := NewBlockAware()
		if w != nil {
			ev.Weights = *w
		}
		return ev, nil
	case "explorer":
		ev := NewExplorer()
		if w != nil {
			ev.Weights = *w
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvaluator, name)
	}
}

// Advance steps e one round with you playing a and every other tracked agent staying.
func Advance(e *rules.Engine, you int, a game.Action) error {
	ids := e.Tracked()
	actions := make([]game.Action, len(ids))
	found := false
	for i, id := range ids {
		if id == you {
			actions[i] = a
			found = true
			continue
		}
		actions[i] = game.Stay
	}
	if !found {
		return fmt.Errorf("%w: %d", rules.ErrUnknownAgent, you)
	}
	return e.Step(actions...)
}
