package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vanshika/tunetraits/internal/generator"
)

func main() {
	cfg := generator.DefaultConfig()
	var (
		respondents    = flag.Int("respondents", cfg.NumRespondents, "number of respondents to generate")
		partialChance  = flag.Float64("partial-chance", cfg.PartialChance, "probability that a respondent skipped a stage")
		snapshotChance = flag.Float64("snapshot-chance", cfg.SnapshotChance, "probability that a respondent connected a streaming account")
		snapshotSize   = flag.Int("snapshot-size", cfg.SnapshotSize, "entries per listening snapshot")
		seed           = flag.Int64("seed", cfg.Seed, "random seed for deterministic generation")
		outputDir      = flag.String("output-dir", "data", "directory to write the respondents file")
		format         = flag.String("format", generator.FormatJSON, "output format: json or yaml")
		writeStdout    = flag.Bool("stdout", false, "write the dataset as JSON to stdout instead of a file")
	)
	flag.Parse()

	genCfg := generator.Config{
		NumRespondents: *respondents,
		PartialChance:  clampProbability(*partialChance),
		SnapshotChance: clampProbability(*snapshotChance),
		SnapshotSize:   *snapshotSize,
		Seed:           *seed,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	dataset, err := generator.New(genCfg).Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		os.Exit(1)
	}

	if *writeStdout {
		if err := json.NewEncoder(os.Stdout).Encode(dataset); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write dataset to stdout: %v\n", err)
			os.Exit(1)
		}
		return
	}

	path, err := generator.WriteDataset(dataset, *outputDir, *format)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to write dataset: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stdout, "Generated %d respondents into %s\n", len(dataset.Respondents), path)
}

func clampProbability(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
