// Copyright 2025 Refspace Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/refspace/refindex"
	"github.com/refspace/refindex/ai"
	"github.com/refspace/refindex/core"
	"github.com/refspace/refindex/indexer"
	"github.com/refspace/refindex/source/jsonl"
)

func main() {
	app := &cli.App{
		Name:  "refindex",
		Usage: "Incremental embedding index over an external record source",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "sync",
				Usage:  "Bring partitions up to date with the record source",
				Action: syncCommand,
				Flags: append(commonFlags(),
					&cli.Int64Flag{
						Name:    "partition",
						Aliases: []string{"p"},
						Usage:   "Partition to sync (default: all partitions in the source)",
						Value:   -1,
					},
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Run a full diff even when the cheap checks pass",
					},
					&cli.IntFlag{
						Name:  "workers",
						Usage: "Number of partitions synced concurrently",
						Value: 4,
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:  "embedding-model",
						Usage: "Embedding model name",
						Value: "embeddinggemma",
					},
					&cli.IntFlag{
						Name:  "dimensions",
						Usage: "Embedding vector width",
						Value: 768,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of records per embedding service call",
						Value: 500,
					},
					&cli.IntFlag{
						Name:  "min-content-length",
						Usage: "Minimum content length for a record to be indexed",
						Value: core.DefaultMinContentLength,
					},
					&cli.DurationFlag{
						Name:  "safety-interval",
						Usage: "Force a full diff when the last one is older than this",
						Value: 7 * 24 * time.Hour,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts per embedding service call",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				),
			},
			{
				Name:   "status",
				Usage:  "Show index state per partition",
				Action: statusCommand,
				Flags:  commonFlags(),
			},
			{
				Name:   "failures",
				Usage:  "List records that failed to index",
				Action: failuresCommand,
				Flags: append(commonFlags(),
					&cli.Int64Flag{
						Name:     "partition",
						Aliases:  []string{"p"},
						Usage:    "Partition to inspect",
						Required: true,
					},
				),
			},
			{
				Name:   "clear-failures",
				Usage:  "Drop failure state, returning permanently failed records to the retry pool",
				Action: clearFailuresCommand,
				Flags: append(commonFlags(),
					&cli.Int64Flag{
						Name:     "partition",
						Aliases:  []string{"p"},
						Usage:    "Partition to clear",
						Required: true,
					},
				),
			},
			{
				Name:   "cleanup",
				Usage:  "Remove index state for partitions missing from the source",
				Action: cleanupCommand,
				Flags:  commonFlags(),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func commonFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to BadgerDB database directory",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "source",
			Aliases:  []string{"s"},
			Usage:    "Directory of JSONL partition files",
			Required: true,
		},
	}
}

// openIndex opens the JSONL source and the index store from common flags.
func openIndex(c *cli.Context, opts ...refindex.Option) (*refindex.Index, *jsonl.Store, error) {
	src, err := jsonl.NewStore(c.String("source"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open record source: %w", err)
	}
	ix, err := refindex.Open(c.String("db"), src, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open index: %w", err)
	}
	return ix, src, nil
}

// progressReporter adapts the sync progress callback to a ProgressTracker.
// The tracker is created on the first callback, once the pass total is known.
type progressReporter struct {
	writer   io.Writer
	interval int
	tracker  *indexer.ProgressTracker
}

func (r *progressReporter) update(processed, total int) {
	if r.tracker == nil {
		r.tracker = indexer.NewProgressTracker(r.writer, total, r.interval)
		r.tracker.Start()
	}
	r.tracker.Update(processed)
}

func (r *progressReporter) finish() {
	if r == nil || r.tracker == nil {
		return
	}
	r.tracker.Finish()
}

func syncCommand(c *cli.Context) error {
	ctx := context.Background()

	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("embedding-host")),
		ai.WithModel(c.String("embedding-model")),
		ai.WithDimensions(c.Int("dimensions")),
	)
	aiConfig.Normalize()
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid embedding configuration: %w", err)
	}

	engineConfig := indexer.DefaultConfig()
	engineConfig.ModelID = aiConfig.Model
	engineConfig.Dimensions = aiConfig.Dimensions
	engineConfig.BatchSize = c.Int("batch-size")
	engineConfig.MinContentLength = c.Int("min-content-length")
	engineConfig.FullDiffSafetyInterval = c.Duration("safety-interval")
	engineConfig.MaxRetries = c.Int("max-retries")
	engineConfig.RetryDelay = c.Duration("retry-delay")
	if err := engineConfig.Validate(); err != nil {
		return fmt.Errorf("invalid engine configuration: %w", err)
	}

	ix, src, err := openIndex(c,
		refindex.WithAIConfig(aiConfig),
		refindex.WithEngineConfig(engineConfig),
	)
	if err != nil {
		return err
	}
	defer ix.Close()

	var partitions []core.PartitionID
	if p := c.Int64("partition"); p >= 0 {
		partitions = []core.PartitionID{core.PartitionID(p)}
	} else {
		partitions, err = src.Partitions()
		if err != nil {
			return fmt.Errorf("failed to list source partitions: %w", err)
		}
	}
	if len(partitions) == 0 {
		fmt.Fprintln(os.Stderr, "nothing to sync: no partitions found")
		return nil
	}

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Source: %s\n", c.String("source"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s (%d dimensions)\n", aiConfig.Model, aiConfig.Dimensions)
	fmt.Fprintf(os.Stderr, "Partitions: %d\n\n", len(partitions))

	opts := &indexer.SyncOptions{Force: c.Bool("force")}
	// Progress output is per partition, so only attach it when syncing one.
	var reporter *progressReporter
	if len(partitions) == 1 {
		reporter = &progressReporter{writer: os.Stderr, interval: engineConfig.ReportInterval}
		opts.OnProgress = reporter.update
	}
	results, err := ix.SyncAll(ctx, partitions, c.Int("workers"), opts)
	reporter.finish()
	for _, result := range results {
		mode := "checked"
		if result.DiffRan {
			mode = "diffed"
		}
		fmt.Printf("partition %d: %s (%s) indexed=%d skipped=%d failed=%d deleted=%d\n",
			result.Partition, mode, result.Reason,
			result.Indexed, result.Skipped, result.Failed, result.Deleted)
	}
	if err != nil {
		return fmt.Errorf("sync finished with errors: %w", err)
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	ctx := context.Background()

	ix, src, err := openIndex(c)
	if err != nil {
		return err
	}
	defer ix.Close()

	partitions, err := src.Partitions()
	if err != nil {
		return fmt.Errorf("failed to list source partitions: %w", err)
	}
	indexed, err := ix.Partitions(ctx)
	if err != nil {
		return err
	}
	seen := make(map[core.PartitionID]bool, len(partitions))
	for _, partition := range partitions {
		seen[partition] = true
	}
	for _, partition := range indexed {
		if !seen[partition] {
			partitions = append(partitions, partition)
		}
	}

	for _, partition := range partitions {
		status, err := ix.Status(ctx, partition)
		if err != nil {
			return err
		}
		lastScan := "never"
		if status.ScanState != nil {
			lastScan = status.ScanState.LastScanAt.Format(time.RFC3339)
		}
		fmt.Printf("partition %d: indexed=%d failures=%d permanent=%d last-scan=%s\n",
			partition, status.IndexedCount, status.FailureCount,
			status.PermanentFailures, lastScan)
	}
	return nil
}

func failuresCommand(c *cli.Context) error {
	ctx := context.Background()

	ix, _, err := openIndex(c)
	if err != nil {
		return err
	}
	defer ix.Close()

	records, err := ix.Failures(ctx, core.PartitionID(c.Int64("partition")))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("no failures")
		return nil
	}
	for _, record := range records {
		fmt.Printf("%s: count=%d next-retry=%s error=%s\n",
			record.ID, record.FailureCount,
			record.NextRetryAfter.Format(time.RFC3339), record.LastError)
	}
	return nil
}

func clearFailuresCommand(c *cli.Context) error {
	ctx := context.Background()

	ix, _, err := openIndex(c)
	if err != nil {
		return err
	}
	defer ix.Close()

	partition := core.PartitionID(c.Int64("partition"))
	if err := ix.ClearFailures(ctx, partition); err != nil {
		return err
	}
	fmt.Printf("cleared failure state for partition %d\n", partition)
	return nil
}

func cleanupCommand(c *cli.Context) error {
	ctx := context.Background()

	ix, src, err := openIndex(c)
	if err != nil {
		return err
	}
	defer ix.Close()

	keep, err := src.Partitions()
	if err != nil {
		return fmt.Errorf("failed to list source partitions: %w", err)
	}
	removed, err := ix.CleanupPartitions(ctx, keep)
	if err != nil {
		return err
	}
	fmt.Printf("removed %d stale partitions\n", removed)

	for _, partition := range keep {
		orphans, err := ix.CleanupOrphans(ctx, partition)
		if err != nil {
			return err
		}
		if orphans > 0 {
			fmt.Printf("partition %d: removed %d orphaned embeddings\n", partition, orphans)
		}
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	// Get log level from flag and normalize to lowercase
	levelStr := strings.ToLower(c.String("log-level"))

	// Map string to slog.Level
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	// Configure slog with the specified level
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
