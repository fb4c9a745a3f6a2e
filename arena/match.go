// Package arena runs matches between deciders on the built-in maps and
// aggregates contest standings.
package arena

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/brensch/hypersonic/game"
	"github.com/brensch/hypersonic/planner"
	"github.com/brensch/hypersonic/protocol"
)

// Side is one contestant of a match.
type Side struct {
	Name    string
	Decider planner.Decider
}

// AgentAction is what one agent played in a round.
type AgentAction struct {
	AgentID int
	Side    string
	Action  game.Action
}

// RoundRecord is one played round. State is the post-step snapshot, dead
// agents included; sinks must not modify it.
type RoundRecord struct {
	MatchID string
	Map     string
	Round   int
	// Sides holds the side name each agent id plays for.
	Sides   [2]string
	Actions []AgentAction
	Dead    []int
	Boxes   [2]int
	State   *game.State
	Digest  string
}

// RoundSink receives every round of a match as it is played. Round -1
// carries the starting state with no actions.
type RoundSink interface {
	RecordRound(r RoundRecord) error
}

type MatchSpec struct {
	ID   string
	Map  Map
	A, B Side
	// Seed decides which side starts in which corner.
	Seed        int64
	MaxRounds   int
	RoundBudget time.Duration
	Sink        RoundSink
	Log         *slog.Logger
}

type MatchResult struct {
	ID  string
	Map string
	A   string
	B   string
	// AID and BID are the agent ids the sides played as.
	AID int
	BID int
	// Winner is the winning side name, empty for a draw.
	Winner  string
	Reason  string
	Rounds  int
	BoxesA  int
	BoxesB  int
	Digest  string
	Elapsed time.Duration
}

// Draw reports whether nobody won.
func (r MatchResult) Draw() bool {
	return r.Winner == ""
}

// PlayMatch runs one match to completion. Each live agent sees its own feed
// view and gets RoundBudget to decide; its command goes through the wire
// format before the referee applies it.
func PlayMatch(ctx context.Context, spec MatchSpec) (MatchResult, error) {
	start := time.Now()
	log := spec.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With("match", spec.ID, "map", spec.Map.Name)

	rng := rand.New(rand.NewSource(spec.Seed))
	swap := rng.Intn(2) == 1
	ref := NewReferee(spec.Map, swap, spec.MaxRounds)

	sides := [2]Side{spec.A, spec.B}
	if swap {
		sides[0], sides[1] = sides[1], sides[0]
	}
	res := MatchResult{ID: spec.ID, Map: spec.Map.Name, A: spec.A.Name, B: spec.B.Name, AID: 0, BID: 1}
	if swap {
		res.AID, res.BID = 1, 0
	}

	if err := record(spec, ref, sides, -1, nil); err != nil {
		return res, err
	}

	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		var actions [2]game.Action
		played := make([]AgentAction, 0, 2)
		for id := 0; id < 2; id++ {
			actions[id] = game.Stay
			if !ref.Alive(id) {
				continue
			}
			a, err := decide(ctx, ref, id, sides[id].Decider, spec.RoundBudget)
			if err != nil {
				return res, err
			}
			actions[id] = a
			played = append(played, AgentAction{AgentID: id, Side: sides[id].Name, Action: a})
		}

		round := ref.Round()
		if err := ref.Step(actions); err != nil {
			return res, fmt.Errorf("round %d: %w", round, err)
		}
		if err := record(spec, ref, sides, round, played); err != nil {
			return res, err
		}

		out, done := ref.Outcome()
		if !done {
			continue
		}

		res.Rounds = out.Rounds
		res.Reason = out.Reason
		if out.Winner >= 0 {
			res.Winner = sides[out.Winner].Name
		}
		res.BoxesA = ref.Boxes(res.AID)
		res.BoxesB = ref.Boxes(res.BID)
		res.Digest = ref.Digest()
		res.Elapsed = time.Since(start)
		log.Debug("match finished",
			"winner", res.Winner,
			"reason", res.Reason,
			"rounds", res.Rounds,
			"elapsed", res.Elapsed,
		)
		return res, nil
	}
}

func decide(ctx context.Context, ref *Referee, id int, d planner.Decider, budget time.Duration) (game.Action, error) {
	view, err := ref.Observe(id)
	if err != nil {
		return game.Stay, err
	}
	you, _ := view.You()

	rctx, cancel := ctx, context.CancelFunc(func() {})
	if budget > 0 {
		rctx, cancel = context.WithTimeout(ctx, budget)
	}
	a := d.Decide(rctx, view)
	cancel()

	cmd := protocol.FormatAction(a, you.Pos, view.Grid.Width, view.Grid.Height, "")
	return protocol.ParseCommand(cmd.String(), you.Pos)
}

func record(spec MatchSpec, ref *Referee, sides [2]Side, round int, played []AgentAction) error {
	if spec.Sink == nil {
		return nil
	}
	rec := RoundRecord{
		MatchID: spec.ID,
		Map:     spec.Map.Name,
		Round:   round,
		Sides:   [2]string{sides[0].Name, sides[1].Name},
		Actions: played,
		Boxes:   [2]int{ref.Boxes(0), ref.Boxes(1)},
		State:   ref.State(),
		Digest:  ref.Digest(),
	}
	for id := 0; id < 2; id++ {
		if !ref.Alive(id) {
			rec.Dead = append(rec.Dead, id)
		}
	}
	if err := spec.Sink.RecordRound(rec); err != nil {
		return fmt.Errorf("record round %d: %w", round, err)
	}
	return nil
}
