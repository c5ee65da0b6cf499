package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/phishguard/internal/database"
	"github.com/nao1215/phishguard/internal/model"
	"github.com/nao1215/phishguard/internal/report"
)

// defaultHistoryLimit is the number of verdicts listed without --limit.
const defaultHistoryLimit = 50

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [url]",
		Short: "List recorded verdicts",
		Long: `History lists the verdicts recorded by watch, newest first.

With a URL argument only the verdicts of that exact URL are listed, and
--latest narrows them to the newest one. --urls lists every URL that has a
recorded verdict, one per line.

Examples:
  # Show the latest verdicts
  phishguard history

  # Show every phishing verdict of the last day as Markdown
  phishguard history --phishing-only --since 24h --limit 0 --markdown

  # Show the verdicts of one URL as JSON
  phishguard history --json https://example.com/login

  # Show the current verdict of one URL
  phishguard history --latest https://example.com/login

  # List every URL seen so far
  phishguard history --urls

  # Drop verdicts older than 30 days
  phishguard history --prune 720h --limit 1`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", defaultHistoryLimit,
		"Maximum number of verdicts to list (0 lists all)")
	cmd.Flags().BoolP("phishing-only", "p", false,
		"List phishing verdicts only")
	cmd.Flags().Duration("since", 0,
		"List verdicts recorded within this duration (e.g., 24h)")
	cmd.Flags().Bool("latest", false,
		"Show only the newest verdict of the given URL")
	cmd.Flags().BoolP("urls", "u", false,
		"List the distinct URLs with a recorded verdict instead of verdicts")
	cmd.Flags().Duration("prune", 0,
		"Delete verdicts older than this duration before listing (e.g., 720h)")
	cmd.Flags().String("db-dir", "",
		"History database directory (default: XDG data directory)")
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .phishguard in current or home directory)")
	addOutputFlags(cmd)

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	filter, err := historyFilter(cmd, args)
	if err != nil {
		return err
	}

	latest, err := cmd.Flags().GetBool("latest")
	if err != nil {
		return err
	}
	if latest && filter.URL == "" {
		return errors.New("--latest requires a URL argument")
	}
	urlsOnly, err := cmd.Flags().GetBool("urls")
	if err != nil {
		return err
	}
	if urlsOnly && filter.URL != "" {
		return errors.New("--urls cannot be combined with a URL argument")
	}

	opts := database.DefaultOptions()
	opts.CreateIfNotExists = false
	db, err := database.Open(cfg.DBDir, opts)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("no verdict history in %s (run phishguard watch first): %w", cfg.DBDir, err)
		}
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	prune, err := cmd.Flags().GetDuration("prune")
	if err != nil {
		return err
	}
	if prune > 0 {
		n, err := db.PruneBefore(cmd.Context(), time.Now().Add(-prune))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Pruned %d verdicts older than %s\n", n, prune)
	}

	out, closeOut, err := openOutput(cmd)
	if err != nil {
		return err
	}
	defer closeOut() //nolint:errcheck // Best effort close of the report file

	if urlsOnly {
		urls, err := db.ListURLs(cmd.Context())
		if err != nil {
			return err
		}
		for _, u := range urls {
			if _, err := fmt.Fprintln(out, u); err != nil {
				return fmt.Errorf("failed to write url list: %w", err)
			}
		}
		return nil
	}

	var records []model.VerdictRecord
	if latest {
		rec, err := db.LatestVerdict(cmd.Context(), filter.URL)
		if err != nil {
			return err
		}
		if rec != nil {
			records = append(records, *rec)
		}
	} else {
		records, err = db.ListVerdicts(cmd.Context(), filter)
		if err != nil {
			return err
		}
	}

	writer, err := newReportWriter(cmd, out)
	if err != nil {
		return err
	}

	if _, err := writer.Write(report.NewHistory(records)); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// historyFilter builds the query from the flags and the optional URL.
func historyFilter(cmd *cobra.Command, args []string) (database.Filter, error) {
	var f database.Filter
	var err error

	if len(args) == 1 {
		f.URL = args[0]
	}

	f.Limit, err = cmd.Flags().GetInt("limit")
	if err != nil {
		return f, err
	}
	if f.Limit < 0 {
		return f, fmt.Errorf("invalid limit %d: must be zero or positive", f.Limit)
	}

	f.PhishingOnly, err = cmd.Flags().GetBool("phishing-only")
	if err != nil {
		return f, err
	}

	since, err := cmd.Flags().GetDuration("since")
	if err != nil {
		return f, err
	}
	if since < 0 {
		return f, fmt.Errorf("invalid since %s: must be positive", since)
	}
	if since > 0 {
		f.Since = time.Now().Add(-since)
	}

	return f, nil
}
