// Package store persists contest output: a parquet archive per match, a
// sqlite index of results and a compressed JSONL replay log.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"

	"github.com/brensch/hypersonic/arena"
	"github.com/brensch/hypersonic/game"
)

const archiveSchema = "archive_round_v1"

// ArchiveRoundRow is one played round of a match, optimized for long-term
// storage: one row per round with agents, bombs and items nested.
//
// Round -1 is the starting position.
type ArchiveRoundRow struct {
	MatchID string `parquet:"match_id,dict"`
	Map     string `parquet:"map,dict"`
	Round   int32  `parquet:"round"`
	Width   int32  `parquet:"width"`
	Height  int32  `parquet:"height"`

	// Cells is the terrain in feed alphabet, row-major.
	Cells string `parquet:"cells"`

	Agents []ArchiveAgent `parquet:"agents"`

	BombOwner []int32 `parquet:"bomb_owner"`
	BombX     []int32 `parquet:"bomb_x"`
	BombY     []int32 `parquet:"bomb_y"`
	BombFuse  []int32 `parquet:"bomb_fuse"`
	BombRange []int32 `parquet:"bomb_range"`

	ItemX    []int32 `parquet:"item_x"`
	ItemY    []int32 `parquet:"item_y"`
	ItemKind []int32 `parquet:"item_kind"`

	Digest string `parquet:"digest"`
}

type ArchiveAgent struct {
	ID         int32  `parquet:"id"`
	Side       string `parquet:"side,dict"`
	Alive      bool   `parquet:"alive"`
	X          int32  `parquet:"x"`
	Y          int32  `parquet:"y"`
	BombsLeft  int32  `parquet:"bombs_left"`
	BombBudget int32  `parquet:"bomb_budget"`
	Range      int32  `parquet:"range"`
	Boxes      int32  `parquet:"boxes"`
	// Action is the game.Action played this round, -1 when the agent did not act.
	Action int32 `parquet:"action"`
}

// ArchiveRow flattens a round record.
func ArchiveRow(rec arena.RoundRecord) ArchiveRoundRow {
	s := rec.State
	row := ArchiveRoundRow{
		MatchID: rec.MatchID,
		Map:     rec.Map,
		Round:   int32(rec.Round),
		Width:   int32(s.Grid.Width),
		Height:  int32(s.Grid.Height),
		Digest:  rec.Digest,
	}
	for _, r := range s.Grid.Rows() {
		row.Cells += r
	}

	dead := map[int]bool{}
	for _, id := range rec.Dead {
		dead[id] = true
	}
	played := map[int]game.Action{}
	for _, a := range rec.Actions {
		played[a.AgentID] = a.Action
	}
	for _, a := range s.Agents {
		aa := ArchiveAgent{
			ID:         int32(a.ID),
			Alive:      !dead[a.ID],
			X:          int32(a.Pos.X),
			Y:          int32(a.Pos.Y),
			BombsLeft:  int32(a.BombsLeft),
			BombBudget: int32(a.BombBudget),
			Range:      int32(a.Range),
			Action:     -1,
		}
		if a.ID >= 0 && a.ID < len(rec.Sides) {
			aa.Side = rec.Sides[a.ID]
			aa.Boxes = int32(rec.Boxes[a.ID])
		}
		if act, ok := played[a.ID]; ok {
			aa.Action = int32(act)
		}
		row.Agents = append(row.Agents, aa)
	}
	for _, b := range s.Bombs {
		row.BombOwner = append(row.BombOwner, int32(b.Owner))
		row.BombX = append(row.BombX, int32(b.Pos.X))
		row.BombY = append(row.BombY, int32(b.Pos.Y))
		row.BombFuse = append(row.BombFuse, int32(b.Fuse))
		row.BombRange = append(row.BombRange, int32(b.Range))
	}
	for _, it := range s.Items {
		row.ItemX = append(row.ItemX, int32(it.Pos.X))
		row.ItemY = append(row.ItemY, int32(it.Pos.Y))
		row.ItemKind = append(row.ItemKind, int32(it.Kind))
	}
	return row
}

// WriteMatchParquetAtomic writes rows into outDir/tmp and then moves the
// file into outDir, so readers never see a partial file.
func WriteMatchParquetAtomic(outDir, matchID string, rows []ArchiveRoundRow) (string, error) {
	if matchID == "" {
		return "", fmt.Errorf("match id is required")
	}
	tmpDir := filepath.Join(outDir, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return "", fmt.Errorf("create tmp dir: %w", err)
	}

	name := "match_" + matchID + ".parquet"
	finalPath := filepath.Join(outDir, name)
	tmpPath := filepath.Join(tmpDir, name+".tmp")
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", archiveSchema),
	); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		_ = os.Remove(tmpPath)
		return "", fmt.Errorf("rename parquet: %w", err)
	}
	return finalPath, nil
}

func ReadMatchParquet(path string) ([]ArchiveRoundRow, error) {
	rows, err := parquet.ReadFile[ArchiveRoundRow](path)
	if err != nil {
		return nil, fmt.Errorf("read parquet %s: %w", path, err)
	}
	return rows, nil
}
