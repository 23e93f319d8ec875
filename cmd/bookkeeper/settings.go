package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ContrejfC/ai-bookkeeper/internal/cli"
	"github.com/ContrejfC/ai-bookkeeper/internal/model"
)

func settingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Manage per-tenant decision configuration",
	}

	cmd.AddCommand(settingsShowCmd())
	cmd.AddCommand(settingsSetCmd())

	return cmd
}

func settingsShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a tenant's effective settings",
		RunE:  runSettingsShow,
	}
	cmd.Flags().String("tenant", "", "Tenant id (required)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func settingsSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Update a tenant's settings",
		Long: fmt.Sprintf(`Update per-tenant decision configuration. Thresholds outside
[%.2f, %.2f] are clamped when read back; a budget cap of 0 means
unlimited generative spend.`, model.MinThreshold, model.MaxThreshold),
		RunE: runSettingsSet,
	}

	cmd.Flags().String("tenant", "", "Tenant id (required)")
	cmd.Flags().Float64("threshold", model.DefaultThreshold, "Auto-post probability threshold")
	cmd.Flags().Float64("budget-cap", 0, "Generative spend cap in dollars (0 = unlimited)")
	cmd.Flags().Int("cold-start", model.DefaultColdStart, "Consistent prior labels required before auto-posting")
	cmd.Flags().String("clearing-account", "clearing", "Account for the balancing line of posted entries")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
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

	settings, err := store.GetTenantSettings(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	capText := "unlimited"
	if settings.BudgetCap > 0 {
		capText = fmt.Sprintf("$%.2f", settings.BudgetCap)
	}
	content := fmt.Sprintf("Threshold: %.2f\nBudget cap: %s\nCold-start minimum: %d\nClearing account: %s",
		settings.Threshold, capText, settings.ColdStartMin, settings.ClearingAccount)
	fmt.Println(cli.RenderBox(fmt.Sprintf("Settings: %s", tenantID), content))
	return nil
}

func runSettingsSet(cmd *cobra.Command, _ []string) error {
	tenantID, _ := cmd.Flags().GetString("tenant")
	threshold, _ := cmd.Flags().GetFloat64("threshold")
	budgetCap, _ := cmd.Flags().GetFloat64("budget-cap")
	coldStart, _ := cmd.Flags().GetInt("cold-start")
	clearing, _ := cmd.Flags().GetString("clearing-account")

	settings := &model.TenantSettings{
		TenantID:        tenantID,
		Threshold:       threshold,
		BudgetCap:       budgetCap,
		ColdStartMin:    coldStart,
		ClearingAccount: clearing,
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

	if err := store.SaveTenantSettings(ctx, settings); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}

	if clamped := model.ClampThreshold(threshold); clamped != threshold {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("Threshold %.2f is outside [%.2f, %.2f] and will be clamped to %.2f",
			threshold, model.MinThreshold, model.MaxThreshold, clamped)))
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Settings saved for %s", tenantID)))
	return nil
}
