package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ContrejfC/ai-bookkeeper/internal/cli"
	"github.com/ContrejfC/ai-bookkeeper/internal/model"
	"github.com/ContrejfC/ai-bookkeeper/internal/service"
)

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Query the append-only decision log",
		Long: `List decisions from the audit log, newest first. Every pipeline run
appends here, including records held for review, so the log answers
"why wasn't this auto-posted?" for any record.`,
		RunE: runAudit,
	}

	// Flags
	cmd.Flags().String("tenant", "", "Filter by tenant id")
	cmd.Flags().String("reason", "", "Filter by reason code (below_threshold, cold_start, imbalance, budget_fallback, no_candidate)")
	cmd.Flags().String("since", "", "Only decisions at or after this time (RFC3339 or 2006-01-02)")
	cmd.Flags().String("until", "", "Only decisions before this time (RFC3339 or 2006-01-02)")
	cmd.Flags().Int("limit", 100, "Maximum rows to return")
	cmd.Flags().String("format", "table", "Output format (table, json)")

	return cmd
}

func runAudit(cmd *cobra.Command, _ []string) error {
	tenantID, _ := cmd.Flags().GetString("tenant")
	reason, _ := cmd.Flags().GetString("reason")
	since, _ := cmd.Flags().GetString("since")
	until, _ := cmd.Flags().GetString("until")
	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("format")

	filter := service.DecisionFilter{
		TenantID: tenantID,
		Reason:   model.ReasonCode(reason),
		Limit:    limit,
	}

	var err error
	if filter.Start, err = parseTimeFlag(since); err != nil {
		return fmt.Errorf("invalid --since: %w", err)
	}
	if filter.End, err = parseTimeFlag(until); err != nil {
		return fmt.Errorf("invalid --until: %w", err)
	}

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	decisions, err := store.ListDecisions(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list decisions: %w", err)
	}

	if format == "json" {
		return printJSON(decisions)
	}

	if len(decisions) == 0 {
		fmt.Println(cli.SubtleStyle.Render("No decisions match the filter."))
		return nil
	}

	header := fmt.Sprintf("%-20s  %-12s  %-20s  %-10s  %5s  %-16s  %s",
		"DECIDED AT", "TENANT", "RECORD", "TIER", "PROB", "REASON", "LABEL")
	fmt.Println(cli.TableHeaderStyle.Render(header))
	for _, d := range decisions {
		outcome := string(d.Reason)
		if d.Eligible {
			outcome = "auto_posted"
		}
		fmt.Printf("%-20s  %-12s  %-20s  %-10s  %.3f  %-16s  %s\n",
			d.DecidedAt.Format("2006-01-02 15:04:05"),
			d.TenantID,
			d.RecordID,
			d.Tier,
			d.Probability,
			outcome,
			d.Label)
	}

	return nil
}

// parseTimeFlag accepts RFC3339 timestamps or bare dates.
func parseTimeFlag(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil //nolint:nilnil // Absent flag means no bound
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized time %q", value)
}
