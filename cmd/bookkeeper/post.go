package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ContrejfC/ai-bookkeeper/internal/cli"
	"github.com/ContrejfC/ai-bookkeeper/internal/common"
	"github.com/ContrejfC/ai-bookkeeper/internal/model"
	"github.com/ContrejfC/ai-bookkeeper/internal/sink"
)

func postCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "post <payload.json>",
		Short: "Post one ledger payload with at-most-once semantics",
		Long: `Commit a balanced ledger payload to the configured accounting system.
Re-posting a payload with identical content, in any line order, returns
the original external id without a second external call.

With --dry-run, the payload is validated and its content digest printed
without touching the ledger.`,
		Args: cobra.ExactArgs(1),
		RunE: runPost,
	}

	// Flags
	cmd.Flags().String("tenant", "", "Tenant id (required)")
	cmd.Flags().Bool("dry-run", false, "Validate and print the digest without posting")
	_ = cmd.MarkFlagRequired("tenant")

	return cmd
}

func runPost(cmd *cobra.Command, args []string) error {
	tenantID, _ := cmd.Flags().GetString("tenant")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	ctx := cmd.Context()

	var payload model.LedgerPayload
	if err := decodeJSONFile(args[0], &payload); err != nil {
		return err
	}

	if !payload.Balanced() {
		return fmt.Errorf("%w: debits %.2f, credits %.2f",
			sink.ErrUnbalancedPayload, payload.TotalDebit(), payload.TotalCredit())
	}

	if dryRun {
		fmt.Println(cli.FormatSuccess("Payload is balanced"))
		fmt.Printf("digest: %s\n", sink.Digest(payload))
		return nil
	}

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	poster, err := sink.NewHTTPPoster(
		viper.GetString("ledger.base_url"),
		sink.WithAPIKey(viper.GetString("ledger.api_key")),
	)
	if err != nil {
		return common.NewUserError("posting requires ledger.base_url to be configured", err)
	}

	result, err := sink.New(store, poster).Post(ctx, tenantID, payload)
	if err != nil {
		return err
	}

	if result.Duplicate {
		fmt.Println(cli.FormatWarning(fmt.Sprintf("Already posted as %s (digest %s)", result.ExternalID, result.Digest)))
		return nil
	}

	fmt.Println(cli.FormatSuccess(fmt.Sprintf("Posted as %s (digest %s)", result.ExternalID, result.Digest)))
	return nil
}
