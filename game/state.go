// Package game defines the world state types for the grid bombing game.
//
// These types hold the minimal state needed for rules evaluation and
// planning. The state is designed to be cheaply deep-copied so that every
// planning rollout owns private storage.
package game

import (
	"fmt"
	"strings"
)

const (
	// BombFuse is the number of rounds a freshly placed bomb waits before exploding.
	BombFuse = 8
	// DefaultRange is the explosion range agents start a match with.
	DefaultRange = 3
	// DefaultBudget is the lifetime bomb budget agents start a match with.
	DefaultBudget = 1
)

// Cell is a board coordinate. (0,0) is the top-left corner, y grows downwards.
type Cell struct {
	X int `json:"x"`
	Y int `json:"y"`
}

func (c Cell) Add(d Cell) Cell {
	return Cell{X: c.X + d.X, Y: c.Y + d.Y}
}

// Neighbors returns the four orthogonal neighbours in up, down, left, right order.
func (c Cell) Neighbors() [4]Cell {
	return [4]Cell{
		{X: c.X, Y: c.Y - 1},
		{X: c.X, Y: c.Y + 1},
		{X: c.X - 1, Y: c.Y},
		{X: c.X + 1, Y: c.Y},
	}
}

func (c Cell) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// ItemKind is a power-up type. Values match the feed codes.
type ItemKind uint8

const (
	ExtraRange ItemKind = 1
	ExtraBomb  ItemKind = 2
)

func (k ItemKind) String() string {
	switch k {
	case ExtraRange:
		return "EXTRA_RANGE"
	case ExtraBomb:
		return "EXTRA_BOMB"
	default:
		return fmt.Sprintf("ItemKind(%d)", uint8(k))
	}
}

type Agent struct {
	ID  int  `json:"id"`
	Pos Cell `json:"pos"`
	// BombsLeft is how many bombs the agent may place right now.
	BombsLeft int `json:"bombs_left"`
	// BombBudget is the lifetime number of bombs the agent owns, placed or not.
	BombBudget int `json:"bomb_budget"`
	Range      int `json:"range"`
}

type Bomb struct {
	Owner int  `json:"owner"`
	Pos   Cell `json:"pos"`
	Fuse  int  `json:"fuse"`
	Range int  `json:"range"`
}

type Item struct {
	Pos  Cell     `json:"pos"`
	Kind ItemKind `json:"kind"`
}

// State is a complete world snapshot.
// YouID selects the controlled agent for planning.
type State struct {
	Grid   Grid
	Agents []Agent
	Bombs  []Bomb
	Items  []Item
	YouID  int
	Round  int
}

// Clone performs a deep copy of the state.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}

	out := &State{
		Grid:  s.Grid.Clone(),
		YouID: s.YouID,
		Round: s.Round,
	}

	if len(s.Agents) > 0 {
		out.Agents = make([]Agent, len(s.Agents))
		copy(out.Agents, s.Agents)
	}
	if len(s.Bombs) > 0 {
		out.Bombs = make([]Bomb, len(s.Bombs))
		copy(out.Bombs, s.Bombs)
	}
	if len(s.Items) > 0 {
		out.Items = make([]Item, len(s.Items))
		copy(out.Items, s.Items)
	}

	return out
}

// Agent returns a pointer into s.Agents for the given id.
func (s *State) Agent(id int) (*Agent, bool) {
	for i := range s.Agents {
		if s.Agents[i].ID == id {
			return &s.Agents[i], true
		}
	}
	return nil, false
}

// You returns the controlled agent.
func (s *State) You() (*Agent, bool) {
	return s.Agent(s.YouID)
}

// BombAt reports the index of the bomb on c, if any.
func (s *State) BombAt(c Cell) (int, bool) {
	for i := range s.Bombs {
		if s.Bombs[i].Pos == c {
			return i, true
		}
	}
	return -1, false
}

// ItemAt reports the index of the item on c, if any.
func (s *State) ItemAt(c Cell) (int, bool) {
	for i := range s.Items {
		if s.Items[i].Pos == c {
			return i, true
		}
	}
	return -1, false
}

// Dump renders the board for logs and test failures.
// Agents are letters (A = id 0), bombs '@', items 'r'/'b', other cells use the feed alphabet.
func (s *State) Dump() string {
	if s == nil {
		return "<nil state>"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Round=%d Size=%dx%d You=%d\n", s.Round, s.Grid.Width, s.Grid.Height, s.YouID)
	for _, a := range s.Agents {
		fmt.Fprintf(&b, "Agent %d at %s bombs=%d/%d range=%d\n", a.ID, a.Pos, a.BombsLeft, a.BombBudget, a.Range)
	}
	for _, bomb := range s.Bombs {
		fmt.Fprintf(&b, "Bomb owner=%d at %s fuse=%d range=%d\n", bomb.Owner, bomb.Pos, bomb.Fuse, bomb.Range)
	}

	rows := s.Grid.Rows()
	board := make([][]byte, len(rows))
	for y, row := range rows {
		board[y] = []byte(row)
	}
	for _, it := range s.Items {
		if s.Grid.InBounds(it.Pos) {
			if it.Kind == ExtraRange {
				board[it.Pos.Y][it.Pos.X] = 'r'
			} else {
				board[it.Pos.Y][it.Pos.X] = 'b'
			}
		}
	}
	for _, bomb := range s.Bombs {
		if s.Grid.InBounds(bomb.Pos) {
			board[bomb.Pos.Y][bomb.Pos.X] = '@'
		}
	}
	for _, a := range s.Agents {
		if s.Grid.InBounds(a.Pos) && a.ID >= 0 && a.ID < 26 {
			board[a.Pos.Y][a.Pos.X] = byte('A' + a.ID)
		}
	}
	for _, row := range board {
		b.Write(row)
		b.WriteByte('\n')
	}
	return b.String()
}
