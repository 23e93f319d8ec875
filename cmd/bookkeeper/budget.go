package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ContrejfC/ai-bookkeeper/internal/cli"
)

func budgetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "budget",
		Short: "Inspect or reset generative-tier spend",
	}

	cmd.AddCommand(budgetShowCmd())
	cmd.AddCommand(budgetResetCmd())

	return cmd
}

func budgetShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a tenant's spend and fallback state",
		RunE:  runBudgetShow,
	}
	cmd.Flags().String("tenant", "", "Tenant id (required)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func budgetResetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Reset a tenant's spend counters and clear fallback mode",
		Long: `Zero the tenant's accrued spend and clear budget fallback. Fallback
never clears on its own; this command is the only way out once the cap
has been exceeded.`,
		RunE: runBudgetReset,
	}
	cmd.Flags().String("tenant", "", "Tenant id (required)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func runBudgetShow(cmd *cobra.Command, _ []string) error {
	tenantID, _ := cmd.Flags().GetString("tenant")

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	state, err := store.GetBudgetState(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to get budget state: %w", err)
	}

	capText := "unlimited"
	if state.SpendCap > 0 {
		capText = fmt.Sprintf("$%.2f", state.SpendCap)
	}
	content := fmt.Sprintf("Spend accrued: $%.4f\nSpend cap: %s\nCalls: %d\nAverage cost: $%.4f",
		state.SpendAccrued, capText, state.CallCount, state.AverageCost())
	if state.FallbackActive {
		content += "\n" + cli.FormatWarning("Budget fallback ACTIVE; generative tier is skipped")
	}

	fmt.Println(cli.RenderBox(fmt.Sprintf("Budget: %s", tenantID), content))
	return nil
}

func runBudgetReset(cmd *cobra.Command, _ []string) error {
	tenantID, _ := cmd.Flags().GetString("tenant")

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := cmd.Context()
	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if err := store.ResetBudget(ctx, tenantID); err != nil {
		return fmt.Errorf("failed to reset budget: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Budget reset for %s", tenantID)))
	return nil
}
