package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ContrejfC/ai-bookkeeper/internal/cli"
	"github.com/ContrejfC/ai-bookkeeper/internal/model"
)

func rulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage deterministic labeling rules",
	}

	cmd.AddCommand(rulesListCmd())
	cmd.AddCommand(rulesAddCmd())

	return cmd
}

func rulesListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a tenant's active rules in priority order",
		RunE:  runRulesList,
	}
	cmd.Flags().String("tenant", "", "Tenant id (required)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func rulesAddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a labeling rule",
		Long: `Add a counterparty pattern rule. Patterns are case-insensitive regular
expressions matched against the normalized counterparty name, with
optional amount bounds. Higher priority rules are tried first.`,
		RunE: runRulesAdd,
	}

	cmd.Flags().String("tenant", "", "Tenant id (required)")
	cmd.Flags().String("name", "", "Human-readable rule name (required)")
	cmd.Flags().String("pattern", "", "Counterparty regex (required)")
	cmd.Flags().String("label", "", "Label to assign on match (required)")
	cmd.Flags().Int("priority", 0, "Rule priority; higher wins")
	cmd.Flags().Float64("amount-min", 0, "Minimum amount, inclusive")
	cmd.Flags().Float64("amount-max", 0, "Maximum amount, inclusive")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("pattern")
	_ = cmd.MarkFlagRequired("label")

	return cmd
}

func runRulesList(cmd *cobra.Command, _ []string) error {
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

	rules, err := store.GetRules(ctx, tenantID)
	if err != nil {
		return fmt.Errorf("failed to list rules: %w", err)
	}

	if len(rules) == 0 {
		fmt.Println(cli.SubtleStyle.Render("No rules defined."))
		return nil
	}

	header := fmt.Sprintf("%4s  %8s  %-24s  %-30s  %-20s  %s",
		"ID", "PRIORITY", "NAME", "PATTERN", "LABEL", "USES")
	fmt.Println(cli.TableHeaderStyle.Render(header))
	for _, rule := range rules {
		fmt.Printf("%4d  %8d  %-24s  %-30s  %-20s  %d\n",
			rule.ID, rule.Priority, rule.Name, rule.CounterpartyRegex, rule.Label, rule.UseCount)
	}

	return nil
}

func runRulesAdd(cmd *cobra.Command, _ []string) error {
	tenantID, _ := cmd.Flags().GetString("tenant")
	name, _ := cmd.Flags().GetString("name")
	pattern, _ := cmd.Flags().GetString("pattern")
	label, _ := cmd.Flags().GetString("label")
	priority, _ := cmd.Flags().GetInt("priority")

	rule := &model.Rule{
		TenantID:          tenantID,
		Name:              name,
		CounterpartyRegex: pattern,
		Label:             label,
		Priority:          priority,
		IsActive:          true,
	}
	if cmd.Flags().Changed("amount-min") {
		v, _ := cmd.Flags().GetFloat64("amount-min")
		rule.AmountMin = &v
	}
	if cmd.Flags().Changed("amount-max") {
		v, _ := cmd.Flags().GetFloat64("amount-max")
		rule.AmountMax = &v
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

	if err := store.SaveRule(ctx, rule); err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Added rule %q for %s", name, tenantID)))
	return nil
}
