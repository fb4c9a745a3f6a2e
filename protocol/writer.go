package protocol

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/brensch/hypersonic/game"
)

var ErrMalformedCommand = errors.New("malformed command")

// Command is the single line a bot writes per round.
type Command struct {
	Bomb    bool
	Target  game.Cell
	Message string
}

func (c Command) String() string {
	verb := "MOVE"
	if c.Bomb {
		verb = "BOMB"
	}
	s := fmt.Sprintf("%s %d %d", verb, c.Target.X, c.Target.Y)
	if msg := strings.TrimSpace(c.Message); msg != "" {
		s += " " + msg
	}
	return s
}

// FormatAction turns an action taken from cell from into a command whose
// target is clamped to a w x h grid.
func FormatAction(a game.Action, from game.Cell, w, h int, msg string) Command {
	t := from.Add(a.Delta())
	t.X = clamp(t.X, 0, w-1)
	t.Y = clamp(t.Y, 0, h-1)
	return Command{Bomb: a.PlacesBomb(), Target: t, Message: msg}
}

// ParseCommand is the referee side of FormatAction: it recovers the action
// an agent standing on from meant. Targets further than one step away are
// read as the direction of the larger offset.
func ParseCommand(line string, from game.Cell) (game.Action, error) {
	parts := strings.Fields(line)
	if len(parts) < 3 {
		return game.Stay, fmt.Errorf("%w: %q", ErrMalformedCommand, line)
	}
	x, errX := strconv.Atoi(parts[1])
	y, errY := strconv.Atoi(parts[2])
	if err := errors.Join(errX, errY); err != nil {
		return game.Stay, fmt.Errorf("%w: %q: %w", ErrMalformedCommand, line, err)
	}

	move := game.Stay
	dx, dy := x-from.X, y-from.Y
	switch {
	case dx == 0 && dy == 0:
	case abs(dx) >= abs(dy) && dx > 0:
		move = game.MoveRight
	case abs(dx) >= abs(dy):
		move = game.MoveLeft
	case dy > 0:
		move = game.MoveDown
	default:
		move = game.MoveUp
	}

	switch strings.ToUpper(parts[0]) {
	case "MOVE":
		return move, nil
	case "BOMB":
		return move + game.BombUp, nil
	default:
		return game.Stay, fmt.Errorf("%w: unknown verb in %q", ErrMalformedCommand, line)
	}
}

type Writer struct {
	bw *bufio.Writer
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{bw: bufio.NewWriter(w)}
}

// WriteCommand writes one line and flushes; the referee waits on it.
func (w *Writer) WriteCommand(c Command) error {
	if _, err := w.bw.WriteString(c.String() + "\n"); err != nil {
		return err
	}
	return w.bw.Flush()
}

// EncodeHeader writes the first line of a feed.
func EncodeHeader(w io.Writer, h Header) error {
	_, err := fmt.Fprintf(w, "%d %d %d\n", h.Width, h.Height, h.MyID)
	return err
}

// Encode writes s as one feed round: agents first, then bombs, then items.
// BombsLeft is what the feed carries for agents; the budget is implied by
// the bombs on the board.
func Encode(w io.Writer, s *game.State) error {
	bw := bufio.NewWriter(w)
	for _, row := range s.Grid.Rows() {
		bw.WriteString(row)
		bw.WriteByte('\n')
	}
	fmt.Fprintf(bw, "%d\n", len(s.Agents)+len(s.Bombs)+len(s.Items))
	for _, a := range s.Agents {
		fmt.Fprintf(bw, "%d %d %d %d %d %d\n", EntityAgent, a.ID, a.Pos.X, a.Pos.Y, a.BombsLeft, a.Range)
	}
	for _, b := range s.Bombs {
		fmt.Fprintf(bw, "%d %d %d %d %d %d\n", EntityBomb, b.Owner, b.Pos.X, b.Pos.Y, b.Fuse, b.Range)
	}
	for _, it := range s.Items {
		fmt.Fprintf(bw, "%d %d %d %d %d %d\n", EntityItem, 0, it.Pos.X, it.Pos.Y, int(it.Kind), 0)
	}
	return bw.Flush()
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
