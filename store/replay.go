package store

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/brensch/hypersonic/arena"
	"github.com/brensch/hypersonic/game"
	"github.com/brensch/hypersonic/rules"
)

var ErrReplayDiverged = errors.New("replay diverged")

// Frame is one line of the replay log.
type Frame struct {
	MatchID string       `json:"match_id"`
	Map     string       `json:"map"`
	Round   int          `json:"round"`
	Sides   [2]string    `json:"sides"`
	Grid    []string     `json:"grid"`
	Agents  []game.Agent `json:"agents"`
	Bombs   []game.Bomb  `json:"bombs,omitempty"`
	Items   []game.Item  `json:"items,omitempty"`
	Actions []string     `json:"actions,omitempty"`
	Dead    []int        `json:"dead,omitempty"`
	Boxes   [2]int       `json:"boxes"`
	Digest  string       `json:"digest"`
}

// FrameFromRecord converts a round record. Actions is indexed by agent id;
// agents that did not act are logged as "stay".
func FrameFromRecord(rec arena.RoundRecord) Frame {
	s := rec.State
	f := Frame{
		MatchID: rec.MatchID,
		Map:     rec.Map,
		Round:   rec.Round,
		Sides:   rec.Sides,
		Grid:    s.Grid.Rows(),
		Agents:  s.Agents,
		Bombs:   s.Bombs,
		Items:   s.Items,
		Dead:    rec.Dead,
		Boxes:   rec.Boxes,
		Digest:  rec.Digest,
	}
	if len(rec.Actions) > 0 {
		n := 0
		for _, a := range s.Agents {
			n = max(n, a.ID+1)
		}
		for _, a := range rec.Actions {
			n = max(n, a.AgentID+1)
		}
		f.Actions = make([]string, n)
		for i := range f.Actions {
			f.Actions[i] = game.Stay.String()
		}
		for _, a := range rec.Actions {
			if a.AgentID >= 0 && a.AgentID < len(f.Actions) {
				f.Actions[a.AgentID] = a.Action.String()
			}
		}
	}
	return f
}

// State rebuilds the snapshot the frame was taken from.
func (f Frame) State() (*game.State, error) {
	g, err := game.ParseGrid(f.Grid...)
	if err != nil {
		return nil, fmt.Errorf("frame %s/%d: %w", f.MatchID, f.Round, err)
	}
	s := &game.State{
		Grid:   g,
		Agents: f.Agents,
		Bombs:  f.Bombs,
		Items:  f.Items,
		Round:  f.Round + 1,
	}
	return s.Clone(), nil
}

// ReplayWriter appends frames to a zstd compressed JSONL file. It is safe
// for concurrent use.
type ReplayWriter struct {
	mu sync.Mutex
	f  *os.File
	zw *zstd.Encoder
	bw *bufio.Writer
}

func NewReplayWriter(path string) (*ReplayWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	zw, err := zstd.NewWriter(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &ReplayWriter{f: f, zw: zw, bw: bufio.NewWriterSize(zw, 64*1024)}, nil
}

func (w *ReplayWriter) WriteFrame(fr Frame) error {
	b, err := json.Marshal(fr)
	if err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.bw.Write(b); err != nil {
		return err
	}
	return w.bw.WriteByte('\n')
}

func (w *ReplayWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	err := w.bw.Flush()
	if cerr := w.zw.Close(); err == nil {
		err = cerr
	}
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// ReadReplay loads every frame of a replay log in file order.
func ReadReplay(path string) ([]Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var out []Frame
	dec := json.NewDecoder(zr)
	for {
		var fr Frame
		if err := dec.Decode(&fr); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, fmt.Errorf("decode frame %d: %w", len(out), err)
		}
		out = append(out, fr)
	}
}

// VerifyReplay re-simulates every match in frames from its starting frame
// and checks each logged digest. Frames of one match must be in round order
// but matches may interleave.
func VerifyReplay(frames []Frame) (int, error) {
	engines := map[string]*rules.Engine{}
	for _, fr := range frames {
		if fr.Round < 0 {
			s, err := fr.State()
			if err != nil {
				return len(engines), err
			}
			e := rules.New(s)
			if e.Digest() != fr.Digest {
				return len(engines), fmt.Errorf("%w: match %s start digest", ErrReplayDiverged, fr.MatchID)
			}
			engines[fr.MatchID] = e
			continue
		}

		e, ok := engines[fr.MatchID]
		if !ok {
			return len(engines), fmt.Errorf("%w: match %s has no starting frame", ErrReplayDiverged, fr.MatchID)
		}
		if e.Round() != fr.Round {
			return len(engines), fmt.Errorf("%w: match %s expected round %d, got %d", ErrReplayDiverged, fr.MatchID, e.Round(), fr.Round)
		}
		actions := make([]game.Action, len(e.Tracked()))
		for i := range actions {
			actions[i] = game.Stay
			if i < len(fr.Actions) {
				a, err := game.ParseAction(fr.Actions[i])
				if err != nil {
					return len(engines), fmt.Errorf("match %s round %d: %w", fr.MatchID, fr.Round, err)
				}
				actions[i] = a
			}
		}
		if err := e.Step(actions...); err != nil {
			return len(engines), fmt.Errorf("match %s round %d: %w", fr.MatchID, fr.Round, err)
		}
		if e.Digest() != fr.Digest {
			return len(engines), fmt.Errorf("%w: match %s round %d", ErrReplayDiverged, fr.MatchID, fr.Round)
		}
	}
	return len(engines), nil
}
