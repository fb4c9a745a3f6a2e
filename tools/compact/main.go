// Command compact merges per-match archive files into larger shards.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/brensch/hypersonic/store"
)

func main() {
	inDir := flag.String("in-dir", "data/contests", "Directory containing per-match archive parquet")
	outDir := flag.String("out-dir", "data/compacted", "Output directory for shards")
	perShard := flag.Int("per-shard", 100, "Input files merged into each shard")
	flag.Parse()

	stats, err := store.CompactArchives(*inDir, *outDir, *perShard)
	if err != nil {
		fmt.Fprintf(os.Stderr, "compact: %v\n", err)
		os.Exit(1)
	}
	if stats.Inputs == 0 {
		fmt.Fprintf(os.Stderr, "no parquet inputs found in %s\n", *inDir)
		os.Exit(2)
	}

	var size uint64
	for _, p := range stats.Written {
		if fi, err := os.Stat(p); err == nil {
			size += uint64(fi.Size())
		}
	}
	fmt.Fprintf(os.Stderr, "done: inputs=%d shards=%d rows=%s size=%s\n",
		stats.Inputs, stats.Shards, humanize.Comma(stats.Rows), humanize.Bytes(size))
}
