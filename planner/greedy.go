package planner

import (
	"context"

	"github.com/brensch/hypersonic/game"
	"github.com/brensch/hypersonic/rules"
)

// Decider picks the controlled agent's next action for a round.
type Decider interface {
	Decide(ctx context.Context, s *game.State) game.Action
}

// Greedy is a one-ply search: each action is followed by standing still for
// Horizon-1 rounds and scored with Eval. Ties go to the earlier action in
// game.Actions.
type Greedy struct {
	Eval    Evaluator
	Horizon int
}

// NewGreedy covers a full fuse so the consequences of a bomb are seen.
func NewGreedy(eval Evaluator) Greedy {
	if eval == nil {
		eval = NewBlockAware()
	}
	return Greedy{Eval: eval, Horizon: game.BombFuse + 1}
}

func (g Greedy) Decide(ctx context.Context, s *game.State) game.Action {
	if _, ok := s.You(); !ok {
		return game.Stay
	}
	horizon := g.Horizon
	if horizon < 1 {
		horizon = 1
	}

	view := s.Clone()
	you, _ := view.You()
	view.Agents = []game.Agent{*you}
	base := rules.New(view, rules.WithRelaxed(true))

	best := game.Stay
	bestScore := 0.0
	genes := make([]game.Action, horizon)
	for i, a := range game.Actions {
		if ctx.Err() != nil {
			break
		}
		genes[0] = a
		for j := 1; j < horizon; j++ {
			genes[j] = game.Stay
		}
		score := g.Eval.Evaluate(base.Clone(), s.YouID, genes)
		if i == 0 || score > bestScore {
			best, bestScore = a, score
		}
	}
	return best
}
