package store

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"
)

func TestReplayFramesMatchSchema(t *testing.T) {
	schema, err := jsonschema.Compile(filepath.Join("..", "schemas", "frame.schema.json"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "replay.jsonl.zst")
	w, err := NewReplayWriter(path)
	require.NoError(t, err)
	playRecorded(t, &Recorder{Replay: w}, "m1")
	require.NoError(t, w.Close())

	frames, err := ReadReplay(path)
	require.NoError(t, err)
	require.NotEmpty(t, frames)

	asDoc := func(f Frame) any {
		b, err := json.Marshal(f)
		require.NoError(t, err)
		var v any
		require.NoError(t, json.Unmarshal(b, &v))
		return v
	}
	for _, f := range frames {
		require.NoError(t, schema.Validate(asDoc(f)), "round %d", f.Round)
	}

	bad := frames[1]
	bad.Digest = "not-a-digest"
	require.Error(t, schema.Validate(asDoc(bad)))

	bad = frames[1]
	bad.Actions = []string{"jump", "stay"}
	require.Error(t, schema.Validate(asDoc(bad)))

	// every key in a frame, nested ones included, is snake_case
	doc := asDoc(frames[1]).(map[string]any)
	agent := doc["agents"].([]any)[0].(map[string]any)
	require.Contains(t, agent, "bombs_left")
	require.NotContains(t, agent, "BombsLeft")
	require.Contains(t, agent["pos"], "x")
	bomb := doc["bombs"].([]any)[0].(map[string]any)
	require.Contains(t, bomb, "fuse")

	agent["BombsLeft"] = agent["bombs_left"]
	require.Error(t, schema.Validate(doc))
}
