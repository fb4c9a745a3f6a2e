package game

import (
	"errors"
	"fmt"
	"strings"
)

// CellKind is the terrain of one grid cell.
type CellKind uint8

const (
	Floor CellKind = iota
	Block
	BoxEmpty
	BoxRange
	BoxBomb
)

// IsBox reports whether the cell is destructible terrain.
func (k CellKind) IsBox() bool {
	return k == BoxEmpty || k == BoxRange || k == BoxBomb
}

// Content returns the item concealed by a box, if any.
func (k CellKind) Content() (ItemKind, bool) {
	switch k {
	case BoxRange:
		return ExtraRange, true
	case BoxBomb:
		return ExtraBomb, true
	default:
		return 0, false
	}
}

// Code is the feed alphabet symbol for the cell kind.
func (k CellKind) Code() byte {
	switch k {
	case Floor:
		return '.'
	case Block:
		return 'X'
	case BoxEmpty:
		return '0'
	case BoxRange:
		return '1'
	case BoxBomb:
		return '2'
	default:
		return '?'
	}
}

func ParseCellKind(c byte) (CellKind, bool) {
	switch c {
	case '.':
		return Floor, true
	case 'X':
		return Block, true
	case '0':
		return BoxEmpty, true
	case '1':
		return BoxRange, true
	case '2':
		return BoxBomb, true
	default:
		return 0, false
	}
}

var ErrBadGrid = errors.New("bad grid")

// Grid is a fixed-size row-major terrain array.
type Grid struct {
	Width  int
	Height int
	cells  []CellKind
}

// NewGrid returns an all-floor grid.
func NewGrid(width, height int) Grid {
	return Grid{Width: width, Height: height, cells: make([]CellKind, width*height)}
}

// ParseGrid builds a grid from rows in the feed alphabet.
func ParseGrid(rows ...string) (Grid, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return Grid{}, fmt.Errorf("%w: empty", ErrBadGrid)
	}
	g := NewGrid(len(rows[0]), len(rows))
	for y, row := range rows {
		if len(row) != g.Width {
			return Grid{}, fmt.Errorf("%w: row %d has width %d, want %d", ErrBadGrid, y, len(row), g.Width)
		}
		for x := 0; x < len(row); x++ {
			k, ok := ParseCellKind(row[x])
			if !ok {
				return Grid{}, fmt.Errorf("%w: unknown cell %q at (%d,%d)", ErrBadGrid, row[x], x, y)
			}
			g.cells[y*g.Width+x] = k
		}
	}
	return g, nil
}

// MustParseGrid is ParseGrid for literals in tests and built-in maps.
func MustParseGrid(rows ...string) Grid {
	g, err := ParseGrid(rows...)
	if err != nil {
		panic(err)
	}
	return g
}

func (g Grid) InBounds(c Cell) bool {
	return c.X >= 0 && c.X < g.Width && c.Y >= 0 && c.Y < g.Height
}

// At returns the terrain at c. Out-of-bounds cells read as Block.
func (g Grid) At(c Cell) CellKind {
	if !g.InBounds(c) {
		return Block
	}
	return g.cells[c.Y*g.Width+c.X]
}

func (g Grid) Set(c Cell, k CellKind) {
	g.cells[c.Y*g.Width+c.X] = k
}

func (g Grid) Clone() Grid {
	out := Grid{Width: g.Width, Height: g.Height}
	if len(g.cells) > 0 {
		out.cells = make([]CellKind, len(g.cells))
		copy(out.cells, g.cells)
	}
	return out
}

// Boxes counts the destructible cells left.
func (g Grid) Boxes() int {
	n := 0
	for _, k := range g.cells {
		if k.IsBox() {
			n++
		}
	}
	return n
}

// Rows renders the grid in the feed alphabet.
func (g Grid) Rows() []string {
	rows := make([]string, g.Height)
	var b strings.Builder
	for y := 0; y < g.Height; y++ {
		b.Reset()
		for x := 0; x < g.Width; x++ {
			b.WriteByte(g.cells[y*g.Width+x].Code())
		}
		rows[y] = b.String()
	}
	return rows
}

func (g Grid) Equal(o Grid) bool {
	if g.Width != o.Width || g.Height != o.Height || len(g.cells) != len(o.cells) {
		return false
	}
	for i := range g.cells {
		if g.cells[i] != o.cells[i] {
			return false
		}
	}
	return true
}
