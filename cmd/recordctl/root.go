package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/vanshika/tunetraits/internal/config"
	"github.com/vanshika/tunetraits/internal/domain"
	"github.com/vanshika/tunetraits/internal/logging"
	"github.com/vanshika/tunetraits/internal/repository"
	"github.com/vanshika/tunetraits/internal/scoring"
	"github.com/vanshika/tunetraits/internal/service"
	"github.com/vanshika/tunetraits/internal/store"
)

// storeOpener returns a ready repository and a release func.
type storeOpener func(ctx context.Context) (*repository.Repository, func(), error)

func openConfiguredStore(ctx context.Context) (*repository.Repository, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logger := logging.NewWithWriter(cfg.Logging, os.Stderr)

	client, err := store.Open(ctx, cfg.Store.Options())
	if err != nil {
		return nil, nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}
	retrying := store.WithRetry(client, cfg.Retry.Policy(), logger)
	release := func() { _ = client.Close(context.Background()) }
	return repository.New(retrying, logger), release, nil
}

func newRootCmd(in io.Reader, out io.Writer, open storeOpener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "recordctl",
		Short: "Inspect and edit unified personality and listening records",
		Long: `recordctl talks to the record store configured through the usual
environment variables (STORE_BACKEND, STORE_URI, ...) or CONFIG_FILE.`,
		SilenceUsage: true,
	}
	rootCmd.SetIn(in)
	rootCmd.SetOut(out)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "new-id",
		Short: "Print a fresh anonymous identity",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), domain.NewIdentity())
		},
	})

	scoreCmd := &cobra.Command{
		Use:   "score [answers.json]",
		Short: "Score a Big Five answer set without storing it",
		Long:  "Reads {\"<question>\": <1-5>, ...} from the file or stdin and prints trait scores.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var raw map[string]int
			if err := readJSON(cmd, args, &raw); err != nil {
				return err
			}
			answers, err := domain.ParseAnswers(raw)
			if err != nil {
				return err
			}
			if err := answers.Validate(); err != nil {
				return err
			}
			printScores(cmd.OutOrStdout(), scoring.Evaluate(answers))
			return nil
		},
	}
	rootCmd.AddCommand(scoreCmd)

	rootCmd.AddCommand(&cobra.Command{
		Use:   "get <id>",
		Short: "Print the full record for an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepository(cmd, open, func(ctx context.Context, repo *repository.Repository) error {
				rec, found, err := repo.GetUnifiedRecord(ctx, domain.Identity(args[0]))
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("no record for %s", args[0])
				}
				return writeJSON(cmd.OutOrStdout(), rec)
			})
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "merge <id> <data-type> [payload.json]",
		Short: "Overwrite one section of a record",
		Long:  "Resolves the data type through the section lookup table and replaces that section with the JSON payload read from the file or stdin.",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			var payload any
			if err := readJSON(cmd, args[2:], &payload); err != nil {
				return err
			}
			return withRepository(cmd, open, func(ctx context.Context, repo *repository.Repository) error {
				path, err := repo.MergeDataType(ctx, domain.Identity(args[0]), args[1], payload)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "saved %s for %s\n", path, args[0])
				return nil
			})
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "profile <id>",
		Short: "Print the results summary for an identity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepository(cmd, open, func(ctx context.Context, repo *repository.Repository) error {
				profile, found, err := service.NewCollector(repo, nil).Profile(ctx, domain.Identity(args[0]))
				if err != nil {
					return err
				}
				if !found {
					return fmt.Errorf("no record for %s", args[0])
				}
				return writeJSON(cmd.OutOrStdout(), profile)
			})
		},
	})

	return rootCmd
}

func withRepository(cmd *cobra.Command, open storeOpener, fn func(context.Context, *repository.Repository) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	repo, release, err := open(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(ctx, repo)
}

func readJSON(cmd *cobra.Command, args []string, dst any) error {
	src := cmd.InOrStdin()
	if len(args) > 0 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	}
	if err := json.NewDecoder(src).Decode(dst); err != nil {
		return fmt.Errorf("decode input: %w", err)
	}
	return nil
}

func printScores(w io.Writer, res scoring.Result) {
	for _, trait := range domain.Traits {
		cov := res.Coverage[trait]
		score := res.Scores[trait]
		fmt.Fprintf(w, "%-18s %4.2f  %-9s (%d/%d items)\n", trait, score, scoring.Interpret(score, cov), cov.Answered, cov.Total)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
