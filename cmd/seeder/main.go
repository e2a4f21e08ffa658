package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/refspace/refindex/source/jsonl"
)

var titles = []string{
	"A survey of incremental view maintenance",
	"Content-addressed storage for scientific corpora",
	"Approximate nearest neighbor search at scale",
	"Change data capture without write access",
	"Quantization tradeoffs in dense retrieval",
	"Scheduling periodic scans under drift",
	"Hash-based reconciliation of replicated catalogs",
	"Backoff policies for flaky downstream services",
	"Lazy migration strategies for embedding stores",
	"Partition-local heuristics for sync avoidance",
	"Cursor-based pagination over mutable collections",
	"Orphan detection in derived data stores",
	"Batching effects on embedding throughput",
	"Idempotent pipelines for derived indexes",
	"Cheap consistency checks for read-only sources",
}

var abstractFragments = []string{
	"We study the problem of keeping derived state consistent with a source of record that can only be observed, never hooked.",
	"Experiments across three corpora show that content hashing detects semantically relevant edits with negligible overhead.",
	"The proposed heuristic avoids full scans in the common case while bounding staleness with a periodic safety interval.",
	"Failure isolation at the batch level keeps transient service errors from aborting multi-hour indexing runs.",
	"Per-record exponential backoff prevents poison items from dominating retry traffic.",
	"An int8 quantization scheme reduces storage by a factor of four at a measured recall cost under one percent.",
	"We compare count-based and timestamp-based change signals and characterize the workloads where each fails.",
	"The reconciliation pass converges: repeated runs against an unchanged source perform no further writes.",
	"Results suggest that lazy reindexing on model upgrades amortizes migration cost over normal sync traffic.",
	"A simple cursor protocol suffices when the source orders records stably within a scan.",
}

var (
	outDir     = flag.String("out", "./records", "output directory for JSONL partition files")
	partitions = flag.Int("partitions", 3, "number of partitions to generate")
	perPart    = flag.Int("records", 50, "records per partition")
	seed       = flag.Int64("seed", 42, "random seed")
)

func init() {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})
	slog.SetDefault(slog.New(handler))
	flag.Parse()
}

func makeRecord(rng *rand.Rand, n int, now time.Time) jsonl.Record {
	title := titles[rng.Intn(len(titles))]
	abstract := abstractFragments[rng.Intn(len(abstractFragments))] + " " +
		abstractFragments[rng.Intn(len(abstractFragments))]
	return jsonl.Record{
		ID:       fmt.Sprintf("REC%06d", n),
		Version:  int64(1 + rng.Intn(5)),
		Title:    title,
		Abstract: abstract,
		Modified: now.Add(-time.Duration(rng.Intn(90*24)) * time.Hour).UTC().Truncate(time.Second),
	}
}

func writePartition(path string, rng *rand.Rand, count, offset int, now time.Time) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for i := 0; i < count; i++ {
		if err := enc.Encode(makeRecord(rng, offset+i, now)); err != nil {
			return err
		}
	}
	return w.Flush()
}

func main() {
	if err := os.MkdirAll(*outDir, 0o755); err != nil {
		slog.Error("failed to create output directory", "err", err)
		os.Exit(1)
	}

	rng := rand.New(rand.NewSource(*seed))
	now := time.Now()
	for p := 0; p < *partitions; p++ {
		path := filepath.Join(*outDir, fmt.Sprintf("%d.jsonl", p+1))
		if err := writePartition(path, rng, *perPart, p*(*perPart), now); err != nil {
			slog.Error("failed to write partition", "path", path, "err", err)
			os.Exit(1)
		}
		slog.Info("wrote partition", "path", path, "records", *perPart)
	}
}
