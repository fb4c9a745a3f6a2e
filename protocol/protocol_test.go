package protocol

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/brensch/hypersonic/game"
)

const feed = `5 3 1
..1..
.X0X.
2....
6
0 0 0 0 1 3
0 1 4 2 0 4
1 1 3 2 5 4
1 1 4 1 2 4
2 0 2 2 1 0
1 0 1 0 8 3
`

func TestReadRound(t *testing.T) {
	r := NewReader(strings.NewReader(feed))
	h, err := r.ReadHeader()
	require.NoError(t, err)
	require.Equal(t, Header{Width: 5, Height: 3, MyID: 1}, h)

	s, err := r.ReadRound(h)
	require.NoError(t, err)
	t.Logf("parsed:\n%s", s.Dump())

	require.Equal(t, []string{"..1..", ".X0X.", "2...."}, s.Grid.Rows())
	require.Equal(t, 1, s.YouID)
	require.Equal(t, 0, s.Round)
	require.Len(t, s.Agents, 2)
	require.Len(t, s.Bombs, 3)
	require.Equal(t, []game.Item{{Pos: game.Cell{X: 2, Y: 2}, Kind: game.ExtraRange}}, s.Items)

	you, ok := s.You()
	require.True(t, ok)
	require.Equal(t, game.Agent{ID: 1, Pos: game.Cell{X: 4, Y: 2}, BombsLeft: 0, BombBudget: 2, Range: 4}, *you)

	other, ok := s.Agent(0)
	require.True(t, ok)
	require.Equal(t, 2, other.BombBudget, "one bomb in hand plus one on the board")

	_, err = r.ReadRound(h)
	require.ErrorIs(t, err, io.EOF)
}

func TestReadRound_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "short row", body: "...\n....\n0\n"},
		{name: "unknown cell", body: "..#.\n....\n0\n"},
		{name: "missing rows", body: "....\n"},
		{name: "missing entities", body: "....\n....\n2\n0 0 0 0 1 3\n"},
		{name: "unknown entity", body: "....\n....\n2\n0 0 0 0 1 3\n7 0 1 1 0 0\n"},
		{name: "unknown item", body: "....\n....\n2\n0 0 0 0 1 3\n2 0 1 1 5 0\n"},
		{name: "off grid", body: "....\n....\n1\n0 0 9 0 1 3\n"},
		{name: "you missing", body: "....\n....\n1\n0 1 0 0 1 3\n"},
		{name: "stacked bombs", body: "....\n....\n3\n0 0 0 0 1 3\n1 0 1 1 3 3\n1 0 1 1 4 3\n"},
		{name: "not a number", body: "....\n....\nx\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := NewReader(strings.NewReader("4 2 0\n" + tc.body))
			h, err := r.ReadHeader()
			require.NoError(t, err)
			_, err = r.ReadRound(h)
			require.ErrorIs(t, err, ErrMalformedSnapshot)
		})
	}
}

func TestReadHeader_Malformed(t *testing.T) {
	for _, in := range []string{"", "13 11\n", "0 11 0\n", "a b c\n"} {
		_, err := NewReader(strings.NewReader(in)).ReadHeader()
		require.ErrorIs(t, err, ErrMalformedSnapshot, "input %q", in)
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	want := &game.State{
		Grid: game.MustParseGrid("..1..", ".X0X.", "2...."),
		Agents: []game.Agent{
			{ID: 0, Pos: game.Cell{X: 0, Y: 0}, BombsLeft: 1, BombBudget: 2, Range: 3},
			{ID: 1, Pos: game.Cell{X: 4, Y: 2}, BombsLeft: 0, BombBudget: 1, Range: 5},
		},
		Bombs: []game.Bomb{
			{Owner: 0, Pos: game.Cell{X: 1, Y: 0}, Fuse: 6, Range: 3},
			{Owner: 1, Pos: game.Cell{X: 4, Y: 1}, Fuse: 2, Range: 5},
		},
		Items: []game.Item{{Pos: game.Cell{X: 2, Y: 2}, Kind: game.ExtraBomb}},
		YouID: 1,
	}

	var buf bytes.Buffer
	require.NoError(t, EncodeHeader(&buf, Header{Width: 5, Height: 3, MyID: 1}))
	require.NoError(t, Encode(&buf, want))

	r := NewReader(&buf)
	h, err := r.ReadHeader()
	require.NoError(t, err)
	got, err := r.ReadRound(h)
	require.NoError(t, err)
	require.Equal(t, want.Digest(), got.Digest(), "want:\n%s\ngot:\n%s", want.Dump(), got.Dump())
}

func TestFormatAction(t *testing.T) {
	tests := []struct {
		action game.Action
		from   game.Cell
		want   string
	}{
		{game.MoveRight, game.Cell{X: 3, Y: 4}, "MOVE 4 4"},
		{game.BombUp, game.Cell{X: 3, Y: 4}, "BOMB 3 3"},
		{game.BombStay, game.Cell{X: 0, Y: 0}, "BOMB 0 0"},
		{game.MoveLeft, game.Cell{X: 0, Y: 2}, "MOVE 0 2"},
		{game.MoveDown, game.Cell{X: 12, Y: 10}, "MOVE 12 10"},
		{game.BombRight, game.Cell{X: 12, Y: 5}, "BOMB 12 5"},
	}
	for _, tc := range tests {
		got := FormatAction(tc.action, tc.from, 13, 11, "").String()
		require.Equal(t, tc.want, got, "%v from %v", tc.action, tc.from)
	}

	require.Equal(t, "MOVE 1 0 going right", FormatAction(game.MoveRight, game.Cell{}, 13, 11, "going right").String())
}

func TestParseCommand(t *testing.T) {
	from := game.Cell{X: 5, Y: 5}
	for _, a := range game.Actions {
		line := FormatAction(a, from, 13, 11, "hi").String()
		got, err := ParseCommand(line, from)
		require.NoError(t, err)
		require.Equal(t, a, got, "line %q", line)
	}

	got, err := ParseCommand("MOVE 12 6", from)
	require.NoError(t, err)
	require.Equal(t, game.MoveRight, got)

	_, err = ParseCommand("JUMP 1 1", from)
	require.True(t, errors.Is(err, ErrMalformedCommand))
	_, err = ParseCommand("MOVE 1", from)
	require.ErrorIs(t, err, ErrMalformedCommand)
}

func TestWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteCommand(Command{Bomb: true, Target: game.Cell{X: 2, Y: 3}}))
	require.NoError(t, w.WriteCommand(Command{Target: game.Cell{X: 1, Y: 1}, Message: "ok"}))
	require.Equal(t, "BOMB 2 3\nMOVE 1 1 ok\n", buf.String())
}
