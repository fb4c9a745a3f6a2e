package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/brensch/hypersonic/config"
	"github.com/brensch/hypersonic/game"
	"github.com/brensch/hypersonic/protocol"
)

const twoRounds = `5 3 0
.....
.X.X.
..1..
2
0 0 0 0 1 3
0 1 4 2 1 3
.....
.X.X.
..1..
2
0 0 1 0 1 3
0 1 4 2 1 3
`

func TestRunAnswersEveryRound(t *testing.T) {
	var out bytes.Buffer
	log := slog.New(slog.DiscardHandler)
	for _, profile := range []string{"greedy", "block-aware"} {
		out.Reset()
		err := run(context.Background(), strings.NewReader(twoRounds), &out, "", profile, 1, 20*time.Millisecond, log)
		require.NoError(t, err, profile)

		lines := strings.Split(strings.TrimSpace(out.String()), "\n")
		require.Len(t, lines, 2, profile)
		for i, from := range []game.Cell{{X: 0, Y: 0}, {X: 1, Y: 0}} {
			_, err := protocol.ParseCommand(lines[i], from)
			require.NoError(t, err, "%s line %d: %q", profile, i, lines[i])
		}
	}
}

func TestRunUnknownProfile(t *testing.T) {
	err := run(context.Background(), strings.NewReader(twoRounds), &bytes.Buffer{}, "", "nope", 1, time.Millisecond, slog.New(slog.DiscardHandler))
	require.True(t, errors.Is(err, config.ErrInvalid), "got %v", err)
}

func TestRunMalformedFeed(t *testing.T) {
	feed := "3 1 0\n...\n1\n7 0 0 0 1 3\n"
	err := run(context.Background(), strings.NewReader(feed), &bytes.Buffer{}, "", "greedy", 1, time.Millisecond, slog.New(slog.DiscardHandler))
	require.True(t, errors.Is(err, protocol.ErrMalformedSnapshot), "got %v", err)
}

func TestEnvDefaults(t *testing.T) {
	t.Setenv("BOT_BUDGET", "40ms")
	t.Setenv("BOT_SEED", "x")
	require.Equal(t, 40*time.Millisecond, getEnvDurationOrDefault("BOT_BUDGET", time.Second))
	require.Equal(t, int64(7), getEnvInt64OrDefault("BOT_SEED", 7))
	require.Equal(t, "d", getEnvOrDefault("BOT_UNSET_KEY", "d"))
}
