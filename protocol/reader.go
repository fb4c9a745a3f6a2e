// Package protocol speaks the line-oriented game feed: it parses round
// snapshots into game.State and formats the per-round command.
package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/brensch/hypersonic/game"
)

var ErrMalformedSnapshot = errors.New("malformed snapshot")

// Entity type codes on the feed.
const (
	EntityAgent = 0
	EntityBomb  = 1
	EntityItem  = 2
)

// Header is the once-per-match first line.
type Header struct {
	Width  int
	Height int
	MyID   int
}

type Reader struct {
	br     *bufio.Reader
	line   int
	rounds int
}

func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReader(r)}
}

func (r *Reader) ReadHeader() (Header, error) {
	fields, err := r.fields(3)
	if err != nil {
		return Header{}, err
	}
	h := Header{Width: fields[0], Height: fields[1], MyID: fields[2]}
	if h.Width <= 0 || h.Height <= 0 {
		return Header{}, r.malformed("grid size %dx%d", h.Width, h.Height)
	}
	return h, nil
}

// ReadRound parses one round. A clean end of input before the round starts
// returns io.EOF unwrapped.
func (r *Reader) ReadRound(h Header) (*game.State, error) {
	rows := make([]string, h.Height)
	for y := 0; y < h.Height; y++ {
		row, err := r.readLine()
		if err != nil {
			if y == 0 && errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, r.truncated(err)
		}
		if len(row) != h.Width {
			return nil, r.malformed("row %d has width %d, want %d", y, len(row), h.Width)
		}
		rows[y] = row
	}
	grid, err := game.ParseGrid(rows...)
	if err != nil {
		return nil, fmt.Errorf("%w: line %d: %w", ErrMalformedSnapshot, r.line, err)
	}

	count, err := r.fields(1)
	if err != nil {
		return nil, err
	}
	if count[0] < 0 {
		return nil, r.malformed("negative entity count %d", count[0])
	}

	s := &game.State{Grid: grid, YouID: h.MyID, Round: r.rounds}
	for i := 0; i < count[0]; i++ {
		f, err := r.fields(6)
		if err != nil {
			return nil, err
		}
		kind, owner, pos := f[0], f[1], game.Cell{X: f[2], Y: f[3]}
		if !grid.InBounds(pos) {
			return nil, r.malformed("entity at %v is off the grid", pos)
		}
		switch kind {
		case EntityAgent:
			if _, dup := s.Agent(owner); dup {
				return nil, r.malformed("agent %d listed twice", owner)
			}
			s.Agents = append(s.Agents, game.Agent{ID: owner, Pos: pos, BombsLeft: f[4], BombBudget: f[4], Range: f[5]})
		case EntityBomb:
			if _, dup := s.BombAt(pos); dup {
				return nil, r.malformed("two bombs on %v", pos)
			}
			s.Bombs = append(s.Bombs, game.Bomb{Owner: owner, Pos: pos, Fuse: f[4], Range: f[5]})
		case EntityItem:
			item := game.ItemKind(f[4])
			if item != game.ExtraRange && item != game.ExtraBomb {
				return nil, r.malformed("unknown item kind %d", f[4])
			}
			s.Items = append(s.Items, game.Item{Pos: pos, Kind: item})
		default:
			return nil, r.malformed("unknown entity type %d", kind)
		}
	}

	// A bomb on the board is part of its owner's budget.
	for _, b := range s.Bombs {
		if a, ok := s.Agent(b.Owner); ok {
			a.BombBudget++
		}
	}
	sort.Slice(s.Agents, func(i, j int) bool { return s.Agents[i].ID < s.Agents[j].ID })

	if _, ok := s.You(); !ok {
		return nil, r.malformed("controlled agent %d missing", h.MyID)
	}
	r.rounds++
	return s, nil
}

func (r *Reader) readLine() (string, error) {
	for {
		line, err := r.br.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return "", err
		}
		r.line++
		line = strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(line) == "" {
			if err != nil {
				return "", io.EOF
			}
			continue
		}
		return line, nil
	}
}

func (r *Reader) fields(n int) ([]int, error) {
	line, err := r.readLine()
	if err != nil {
		return nil, r.truncated(err)
	}
	parts := strings.Fields(line)
	if len(parts) < n {
		return nil, r.malformed("want %d fields, got %q", n, line)
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		v, err := strconv.Atoi(parts[i])
		if err != nil {
			return nil, r.malformed("field %d of %q: %v", i, line, err)
		}
		out[i] = v
	}
	return out, nil
}

func (r *Reader) malformed(format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrMalformedSnapshot, r.line, fmt.Sprintf(format, args...))
}

func (r *Reader) truncated(err error) error {
	if errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: line %d: unexpected end of input", ErrMalformedSnapshot, r.line)
	}
	return fmt.Errorf("read line %d: %w", r.line+1, err)
}
