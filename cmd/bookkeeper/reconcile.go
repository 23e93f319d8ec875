package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ContrejfC/ai-bookkeeper/internal/cli"
	"github.com/ContrejfC/ai-bookkeeper/internal/match"
)

func reconcileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reconcile <left.json> <right.json>",
		Short: "Fuzzy-match two pools of records",
		Long: `Match each record in the left pool against the right pool, such as
linking scanned documents to bank transactions. Scores combine name,
amount, and date similarity; results land in match, review, or no-match
bands.`,
		Args: cobra.ExactArgs(2),
		RunE: runReconcile,
	}

	// Flags
	cmd.Flags().Float64("amount-tolerance", 0, "Absolute amount tolerance in currency units")
	cmd.Flags().Int("date-window", 0, "Date window in days")
	cmd.Flags().Float64("name-floor", 0, "Minimum name similarity for a counterpart to qualify")
	cmd.Flags().String("format", "table", "Output format (table, json)")

	_ = viper.BindPFlag("reconcile.amount_tolerance", cmd.Flags().Lookup("amount-tolerance"))
	_ = viper.BindPFlag("reconcile.date_window", cmd.Flags().Lookup("date-window"))
	_ = viper.BindPFlag("reconcile.name_floor", cmd.Flags().Lookup("name-floor"))

	return cmd
}

func runReconcile(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	left, err := loadRecords(args[0])
	if err != nil {
		return err
	}
	right, err := loadRecords(args[1])
	if err != nil {
		return err
	}

	config := match.DefaultConfig()
	if v := viper.GetFloat64("reconcile.amount_tolerance"); v > 0 {
		config.AmountTolerance = v
	}
	if v := viper.GetInt("reconcile.date_window"); v > 0 {
		config.DateWindowDays = v
	}
	if v := viper.GetFloat64("reconcile.name_floor"); v > 0 {
		config.NameFloor = v
	}

	slog.Info(cli.FormatTitle(fmt.Sprintf("Reconciling %d record(s) against a pool of %d...", len(left), len(right))))

	bar := cli.NewProgressBar(len(left), "Reconciling records...", os.Stderr)

	results := make([]match.Result, 0, len(left))
	var matched, review, unmatched int
	for _, record := range left {
		result, err := match.Match(record, right, config)
		if err != nil {
			return fmt.Errorf("failed to match record %s: %w", record.ID, err)
		}
		results = append(results, result)

		switch result.Outcome {
		case match.OutcomeMatch:
			matched++
		case match.OutcomeReview:
			review++
		default:
			unmatched++
		}

		if err := bar.Add(1); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	}

	if format == "json" {
		return printJSON(results)
	}

	for _, result := range results {
		fmt.Println(cli.FormatMatch(result))
	}

	fmt.Println(cli.RenderBox("Reconciliation",
		fmt.Sprintf("Matched: %d\nNeeds review: %d\nUnmatched: %d", matched, review, unmatched)))

	return nil
}
