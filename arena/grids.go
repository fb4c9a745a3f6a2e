package arena

import (
	"errors"
	"fmt"

	"github.com/brensch/hypersonic/game"
)

var ErrUnknownGrid = errors.New("unknown grid")

// Map is a named starting layout.
type Map struct {
	Name string
	Rows []string
}

func (m Map) Grid() game.Grid {
	return game.MustParseGrid(m.Rows...)
}

// Grids are the built-in 13x11 contest maps. Every one is point-symmetric so
// both corners start equal.
var Grids = []Map{
	{Name: "GRID_1", Rows: []string{
		"..1.......1..",
		".X2X0X.X0X2X.",
		"..2...1...2..",
		"0X.X.X0X.X.X0",
		"..1..2.2..1..",
		".X.X0X.X0X.X.",
		"..1..2.2..1..",
		"0X.X.X0X.X.X0",
		"..2...1...2..",
		".X2X0X.X0X2X.",
		"..1.......1..",
	}},
	{Name: "GRID_2", Rows: []string{
		"..1...0...1..",
		".X1X.X0X.X1X.",
		"..2..202..2..",
		".X1X2X2X2X1X.",
		"..1.20.02.1..",
		"1X.X.X.X.X.X1",
		"..1.20.02.1..",
		".X1X2X2X2X1X.",
		"..2..202..2..",
		".X1X.X0X.X1X.",
		"..1...0...1..",
	}},
	{Name: "GRID_3", Rows: []string{
		"....02.20....",
		".X1X.X.X.X1X.",
		"1021.1.1.1201",
		"1X0X2X.X2X0X1",
		"2.00.2.2.00.2",
		"0X.X.X.X.X.X0",
		"2.00.2.2.00.2",
		"1X0X2X.X2X0X1",
		"1021.1.1.1201",
		".X1X.X.X.X1X.",
		"....02.20....",
	}},
	{Name: "GRID_4", Rows: []string{
		"....21.12....",
		".X.X.X.X.X.X.",
		"0210.....0120",
		".X.X.X.X.X.X.",
		"1...2...2...1",
		".X.X.X.X.X.X.",
		"1...2...2...1",
		".X.X.X.X.X.X.",
		"0210.....0120",
		".X.X.X.X.X.X.",
		"....21.12....",
	}},
	{Name: "GRID_5", Rows: []string{
		"....1.0.1....",
		".X.X2X.X2X.X.",
		".21.02.20.12.",
		"0X1X.X0X.X1X0",
		"..21.....12..",
		".X.X0X.X0X.X.",
		"..21.....12..",
		"0X1X.X0X.X1X0",
		".21.02.20.12.",
		".X.X2X.X2X.X.",
		"....1.0.1....",
	}},
}

// LookupMaps resolves names against Grids. No names selects every map.
func LookupMaps(names ...string) ([]Map, error) {
	if len(names) == 0 {
		return append([]Map(nil), Grids...), nil
	}
	out := make([]Map, 0, len(names))
	for _, name := range names {
		found := false
		for _, m := range Grids {
			if m.Name == name {
				out = append(out, m)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%w: %q", ErrUnknownGrid, name)
		}
	}
	return out, nil
}
