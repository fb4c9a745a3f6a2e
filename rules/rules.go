// Package rules implements the round simulation for the grid bombing game.
//
// An Engine owns a private deep copy of a game.State and advances it one round
// per Step: first all due bombs detonate (chains resolve inside the same step),
// then every agent places its bomb and moves. The simulation is deterministic:
// equal states fed equal actions produce equal digests.
package rules

import (
	"errors"
	"fmt"

	"github.com/brensch/hypersonic/game"
)

var (
	// ErrInvalidArity is returned by Step when the action count does not match the tracked agents.
	ErrInvalidArity = errors.New("invalid action count")
	// ErrInvalidAction is returned by Step for a symbol outside the action vocabulary.
	ErrInvalidAction = errors.New("invalid action")
	// ErrUnknownAgent is returned by queries about an agent the engine does not track.
	ErrUnknownAgent = errors.New("unknown agent")
)

var directions = [4]game.Cell{{Y: -1}, {Y: 1}, {X: -1}, {X: 1}}

type Option func(*Engine)

// WithRelaxed lets dead agents keep acting. Rollouts of a single controlled
// agent use it so an unrelated death does not freeze the plan.
func WithRelaxed(relaxed bool) Option {
	return func(e *Engine) {
		e.relaxed = relaxed
	}
}

type Engine struct {
	state   *game.State
	relaxed bool

	dead  map[int]bool
	boxes map[int]int

	// per-cell index into state.Bombs / state.Items, -1 when empty
	bombAt []int
	itemAt []int
}

// New builds an engine from a snapshot. The snapshot is copied; the caller
// keeps ownership of s.
func New(s *game.State, opts ...Option) *Engine {
	e := &Engine{
		state: s.Clone(),
		dead:  make(map[int]bool, len(s.Agents)),
		boxes: make(map[int]int, len(s.Agents)),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.reindex()
	return e
}

// Clone returns an independent engine with the same state, deaths and counters.
func (e *Engine) Clone() *Engine {
	out := &Engine{
		state:   e.state.Clone(),
		relaxed: e.relaxed,
		dead:    make(map[int]bool, len(e.dead)),
		boxes:   make(map[int]int, len(e.boxes)),
	}
	for id, d := range e.dead {
		out.dead[id] = d
	}
	for id, n := range e.boxes {
		out.boxes[id] = n
	}
	out.reindex()
	return out
}

// Step advances one round. actions[i] is the action of the i-th tracked agent.
func (e *Engine) Step(actions ...game.Action) error {
	if len(actions) != len(e.state.Agents) {
		return fmt.Errorf("%w: got %d actions for %d agents", ErrInvalidArity, len(actions), len(e.state.Agents))
	}
	for i, a := range actions {
		if !a.Valid() {
			return fmt.Errorf("%w: %d for agent %d", ErrInvalidAction, uint8(a), e.state.Agents[i].ID)
		}
	}

	e.detonate()
	e.act(actions)
	e.state.Round++
	return nil
}

// State returns a deep copy of the current state.
func (e *Engine) State() *game.State {
	return e.state.Clone()
}

func (e *Engine) Round() int {
	return e.state.Round
}

func (e *Engine) Digest() string {
	return e.state.Digest()
}

// Tracked returns the ids of the tracked agents in action order.
func (e *Engine) Tracked() []int {
	ids := make([]int, len(e.state.Agents))
	for i, a := range e.state.Agents {
		ids[i] = a.ID
	}
	return ids
}

// Agent returns a copy of the tracked agent.
func (e *Engine) Agent(id int) (game.Agent, error) {
	a, ok := e.state.Agent(id)
	if !ok {
		return game.Agent{}, fmt.Errorf("%w: %d", ErrUnknownAgent, id)
	}
	return *a, nil
}

func (e *Engine) IsDead(id int) (bool, error) {
	if _, ok := e.state.Agent(id); !ok {
		return false, fmt.Errorf("%w: %d", ErrUnknownAgent, id)
	}
	return e.dead[id], nil
}

// BoxesDestroyed is the running count of boxes destroyed by bombs owned by id.
func (e *Engine) BoxesDestroyed(id int) (int, error) {
	if _, ok := e.state.Agent(id); !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownAgent, id)
	}
	return e.boxes[id], nil
}

// Mobility counts the agent's orthogonal neighbours that are free floor.
func (e *Engine) Mobility(id int) (int, error) {
	a, ok := e.state.Agent(id)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownAgent, id)
	}
	return e.FreeNeighbors(a.Pos), nil
}

// ReachableArea is the size of the 4-connected free-floor component holding
// the agent, the agent's own cell included.
func (e *Engine) ReachableArea(id int) (int, error) {
	a, ok := e.state.Agent(id)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownAgent, id)
	}
	return e.ReachableFrom(a.Pos), nil
}

func (e *Engine) FreeNeighbors(c game.Cell) int {
	n := 0
	for _, nb := range c.Neighbors() {
		if e.CanEnter(nb) {
			n++
		}
	}
	return n
}

// ReachableFrom flood-fills from c with an explicit stack. Nothing is cached:
// the board changes every round.
func (e *Engine) ReachableFrom(c game.Cell) int {
	g := e.state.Grid
	if !g.InBounds(c) {
		return 0
	}
	seen := make([]bool, g.Width*g.Height)
	seen[e.idx(c)] = true
	stack := []game.Cell{c}
	count := 0
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		count++
		for _, nb := range cur.Neighbors() {
			if !e.CanEnter(nb) || seen[e.idx(nb)] {
				continue
			}
			seen[e.idx(nb)] = true
			stack = append(stack, nb)
		}
	}
	return count
}

// CanEnter reports whether a move onto c would succeed.
func (e *Engine) CanEnter(c game.Cell) bool {
	g := e.state.Grid
	return g.InBounds(c) && g.At(c) == game.Floor && e.bombAt[e.idx(c)] < 0
}

func (e *Engine) idx(c game.Cell) int {
	return c.Y*e.state.Grid.Width + c.X
}

func (e *Engine) reindex() {
	n := e.state.Grid.Width * e.state.Grid.Height
	if cap(e.bombAt) < n {
		e.bombAt = make([]int, n)
		e.itemAt = make([]int, n)
	}
	e.bombAt = e.bombAt[:n]
	e.itemAt = e.itemAt[:n]
	for i := range e.bombAt {
		e.bombAt[i] = -1
		e.itemAt[i] = -1
	}
	for i, b := range e.state.Bombs {
		if e.state.Grid.InBounds(b.Pos) {
			e.bombAt[e.idx(b.Pos)] = i
		}
	}
	for i, it := range e.state.Items {
		if e.state.Grid.InBounds(it.Pos) {
			e.itemAt[e.idx(it.Pos)] = i
		}
	}
}
