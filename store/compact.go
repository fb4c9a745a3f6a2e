package store

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

type CompactStats struct {
	Inputs int
	Shards int
	Rows   int64
	// Written lists the shard files in order.
	Written []string
}

// CompactArchives merges the archive files under inDir into shards of up to
// perShard inputs each, written atomically into outDir. Inputs are left in
// place.
func CompactArchives(inDir, outDir string, perShard int) (CompactStats, error) {
	var stats CompactStats
	if perShard <= 0 {
		perShard = 100
	}
	absIn, err := filepath.Abs(inDir)
	if err != nil {
		return stats, err
	}
	absOut, err := filepath.Abs(outDir)
	if err != nil {
		return stats, err
	}
	if absIn == absOut {
		return stats, fmt.Errorf("out dir must differ from in dir")
	}

	inputs, err := archiveFiles(absIn)
	if err != nil {
		return stats, err
	}
	stats.Inputs = len(inputs)
	if len(inputs) == 0 {
		return stats, nil
	}

	tmpDir := filepath.Join(absOut, "tmp")
	if err := os.MkdirAll(tmpDir, 0o755); err != nil {
		return stats, fmt.Errorf("create tmp dir: %w", err)
	}

	for start := 0; start < len(inputs); start += perShard {
		end := min(start+perShard, len(inputs))
		name := fmt.Sprintf("shard_%05d.parquet", stats.Shards)
		tmpPath := filepath.Join(tmpDir, name+".tmp")
		finalPath := filepath.Join(absOut, name)

		n, err := writeShard(tmpPath, inputs[start:end])
		if err != nil {
			_ = os.Remove(tmpPath)
			return stats, fmt.Errorf("shard %s: %w", name, err)
		}
		if err := os.Rename(tmpPath, finalPath); err != nil {
			_ = os.Remove(tmpPath)
			return stats, fmt.Errorf("rename shard: %w", err)
		}
		stats.Shards++
		stats.Rows += n
		stats.Written = append(stats.Written, finalPath)
	}
	return stats, nil
}

func archiveFiles(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != root && d.Name() == "tmp" {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasSuffix(strings.ToLower(d.Name()), ".parquet") {
			out = append(out, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(out)
	return out, nil
}

func writeShard(outPath string, inputs []string) (int64, error) {
	outF, err := os.OpenFile(outPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	defer outF.Close()

	writer := parquet.NewGenericWriter[ArchiveRoundRow](
		outF,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
	)
	writer.SetKeyValueMetadata("schema", archiveSchema)

	var rows int64
	buf := make([]ArchiveRoundRow, 512)
	for _, in := range inputs {
		n, err := copyRows(writer, in, buf)
		rows += n
		if err != nil {
			_ = writer.Close()
			return rows, fmt.Errorf("%s: %w", in, err)
		}
	}

	if err := writer.Close(); err != nil {
		return rows, err
	}
	if err := outF.Sync(); err != nil {
		return rows, err
	}
	return rows, outF.Close()
}

func copyRows(w *parquet.GenericWriter[ArchiveRoundRow], path string, buf []ArchiveRoundRow) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	reader := parquet.NewGenericReader[ArchiveRoundRow](f)
	defer reader.Close()

	var total int64
	for {
		n, readErr := reader.Read(buf)
		if n > 0 {
			if _, err := w.Write(buf[:n]); err != nil {
				return total, err
			}
			total += int64(n)
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return total, nil
			}
			return total, readErr
		}
	}
}
