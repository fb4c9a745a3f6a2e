package arena

import (
	"bytes"
	"fmt"

	"github.com/brensch/hypersonic/game"
	"github.com/brensch/hypersonic/protocol"
	"github.com/brensch/hypersonic/rules"
)

// DefaultMaxRounds ends a match that nobody has won.
const DefaultMaxRounds = 200

// Outcome reasons.
const (
	ReasonLastStanding = "last-standing"
	ReasonBoxes        = "boxes"
	ReasonDraw         = "draw"
)

// Outcome is a finished match. Winner is -1 for a draw.
type Outcome struct {
	Winner int
	Reason string
	Rounds int
}

// Referee owns the authoritative engine of a two-agent match.
type Referee struct {
	engine    *rules.Engine
	header    protocol.Header
	maxRounds int
}

// NewReferee places agent 0 in the top-left corner and agent 1 in the
// bottom-right one, or the other way round when swap is set. Both start with
// one bomb and range 3.
func NewReferee(m Map, swap bool, maxRounds int) *Referee {
	g := m.Grid()
	corners := [2]game.Cell{{X: 0, Y: 0}, {X: g.Width - 1, Y: g.Height - 1}}
	if swap {
		corners[0], corners[1] = corners[1], corners[0]
	}
	s := &game.State{Grid: g}
	for id, c := range corners {
		s.Agents = append(s.Agents, game.Agent{
			ID:         id,
			Pos:        c,
			BombsLeft:  game.DefaultBudget,
			BombBudget: game.DefaultBudget,
			Range:      game.DefaultRange,
		})
	}
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}
	return &Referee{
		engine:    rules.New(s),
		header:    protocol.Header{Width: g.Width, Height: g.Height},
		maxRounds: maxRounds,
	}
}

func (r *Referee) Round() int {
	return r.engine.Round()
}

// State is the full authoritative state, dead agents included.
func (r *Referee) State() *game.State {
	return r.engine.State()
}

func (r *Referee) Digest() string {
	return r.engine.Digest()
}

func (r *Referee) Alive(id int) bool {
	dead, err := r.engine.IsDead(id)
	return err == nil && !dead
}

func (r *Referee) Boxes(id int) int {
	n, _ := r.engine.BoxesDestroyed(id)
	return n
}

// Observe is what agent id would read from its feed this round: the state
// goes through the wire format, so dead agents are not listed and the
// budget is re-derived from the board.
func (r *Referee) Observe(id int) (*game.State, error) {
	s := r.engine.State()
	alive := s.Agents[:0]
	for _, a := range s.Agents {
		if r.Alive(a.ID) {
			alive = append(alive, a)
		}
	}
	s.Agents = alive

	h := r.header
	h.MyID = id
	var buf bytes.Buffer
	if err := protocol.EncodeHeader(&buf, h); err != nil {
		return nil, err
	}
	if err := protocol.Encode(&buf, s); err != nil {
		return nil, err
	}
	pr := protocol.NewReader(&buf)
	if _, err := pr.ReadHeader(); err != nil {
		return nil, fmt.Errorf("observe agent %d: %w", id, err)
	}
	view, err := pr.ReadRound(h)
	if err != nil {
		return nil, fmt.Errorf("observe agent %d: %w", id, err)
	}
	view.Round = s.Round
	return view, nil
}

// Step applies one action per agent, in agent id order.
func (r *Referee) Step(actions [2]game.Action) error {
	return r.engine.Step(actions[:]...)
}

// Outcome reports whether the match is over. A sole survivor wins. When both
// are dead or time runs out, more boxes destroyed wins, otherwise it is a draw.
func (r *Referee) Outcome() (Outcome, bool) {
	rounds := r.engine.Round()
	alive0, alive1 := r.Alive(0), r.Alive(1)
	switch {
	case alive0 && !alive1:
		return Outcome{Winner: 0, Reason: ReasonLastStanding, Rounds: rounds}, true
	case alive1 && !alive0:
		return Outcome{Winner: 1, Reason: ReasonLastStanding, Rounds: rounds}, true
	case alive0 && alive1 && rounds < r.maxRounds:
		return Outcome{}, false
	}

	b0, b1 := r.Boxes(0), r.Boxes(1)
	switch {
	case b0 > b1:
		return Outcome{Winner: 0, Reason: ReasonBoxes, Rounds: rounds}, true
	case b1 > b0:
		return Outcome{Winner: 1, Reason: ReasonBoxes, Rounds: rounds}, true
	default:
		return Outcome{Winner: -1, Reason: ReasonDraw, Rounds: rounds}, true
	}
}
