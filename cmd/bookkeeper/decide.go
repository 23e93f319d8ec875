package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ContrejfC/ai-bookkeeper/internal/cli"
	"github.com/ContrejfC/ai-bookkeeper/internal/common"
	"github.com/ContrejfC/ai-bookkeeper/internal/engine"
	"github.com/ContrejfC/ai-bookkeeper/internal/llm"
	"github.com/ContrejfC/ai-bookkeeper/internal/memory"
	"github.com/ContrejfC/ai-bookkeeper/internal/model"
	"github.com/ContrejfC/ai-bookkeeper/internal/rules"
	"github.com/ContrejfC/ai-bookkeeper/internal/sink"
)

func decideCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decide <records.json>",
		Short: "Run records through the decision pipeline",
		Long: `Decide labels for a batch of records using the tiered pipeline:
deterministic rules first, then labeled history, then the generative
classifier. Every decision is appended to the audit log.

With --post, eligible decisions are committed to the configured ledger
with at-most-once semantics.`,
		Args: cobra.ExactArgs(1),
		RunE: runDecide,
	}

	// Flags
	cmd.Flags().Bool("post", false, "Post eligible decisions to the configured ledger")
	cmd.Flags().Bool("offline", false, "Skip the generative tier entirely")

	return cmd
}

// disabledGenerative stands in for the generative tier when it is not
// configured. It never produces a candidate.
type disabledGenerative struct{}

func (disabledGenerative) Infer(_ context.Context, _ model.Record) (*model.Candidate, error) {
	return nil, nil //nolint:nilnil // No candidate is a valid result
}

func runDecide(cmd *cobra.Command, args []string) error {
	post, _ := cmd.Flags().GetBool("post")
	offline, _ := cmd.Flags().GetBool("offline")
	ctx := cmd.Context()

	records, err := loadRecords(args[0])
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return common.NewUserError(fmt.Sprintf("%s contains no records", args[0]), common.ErrNoRecords)
	}
	if deduped := model.DeduplicateRecords(records); len(deduped) < len(records) {
		slog.Warn("Dropped duplicate records from input",
			"dropped", len(records)-len(deduped),
			"kept", len(deduped))
		records = deduped
	}

	store, err := openStorage()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	generative, cleanup, err := buildGenerativeTier(offline)
	if err != nil {
		return err
	}
	defer cleanup()

	var opts []engine.Option
	if post {
		poster, posterErr := sink.NewHTTPPoster(
			viper.GetString("ledger.base_url"),
			sink.WithAPIKey(viper.GetString("ledger.api_key")),
		)
		if posterErr != nil {
			return common.NewUserError("posting requires ledger.base_url to be configured", posterErr)
		}
		opts = append(opts, engine.WithPoster(sink.New(store, poster)))
	}

	eng := engine.New(store,
		rules.NewProvider(store),
		memory.NewProvider(store),
		generative,
		loadCalibrator(),
		opts...)

	slog.Info(cli.FormatTitle(fmt.Sprintf("Deciding %d record(s)...", len(records))))

	var eligible, held, posted, duplicates, failed int
	for _, record := range records {
		outcome, err := processWithRetry(ctx, eng, record)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// One bad record must not abort the batch.
			common.LogError(err, "Failed to process record", common.Fields{
				"tenant_id": record.TenantID,
				"record_id": record.ID,
				"retryable": common.IsRetryable(err),
			})
			failed++
			continue
		}

		fmt.Println(cli.FormatDecision(outcome.Decision))

		if outcome.Decision.Eligible {
			eligible++
		} else {
			held++
		}
		if outcome.Post != nil {
			if outcome.Post.Duplicate {
				duplicates++
			} else {
				posted++
			}
		}
	}

	summary := fmt.Sprintf("Eligible: %d\nHeld for review: %d", eligible, held)
	if post {
		summary += fmt.Sprintf("\nPosted: %d\nDuplicates skipped: %d", posted, duplicates)
	}
	if failed > 0 {
		summary += fmt.Sprintf("\nFailed: %d", failed)
	}
	fmt.Println(cli.RenderBox("Decision run", summary))

	if failed > 0 {
		return fmt.Errorf("%d record(s) failed to process", failed)
	}
	return nil
}

// processWithRetry runs one record through the engine, retrying once when the
// failure was transient. The engine and sink never loop internally, so this
// batch edge is the only retry site; a repeated run is safe because posting
// dedups on the payload digest.
func processWithRetry(ctx context.Context, eng *engine.Engine, record model.Record) (*engine.Outcome, error) {
	var outcome *engine.Outcome
	err := common.WithRetry(ctx, func() error {
		result, processErr := eng.Process(ctx, record)
		if processErr != nil {
			if !transientProcessError(processErr) {
				return &common.RetryableError{Err: processErr, Retryable: false}
			}
			return processErr
		}
		outcome = result
		return nil
	}, common.RetryOptions{
		MaxAttempts:  2,
		InitialDelay: time.Second,
		MaxDelay:     10 * time.Second,
	})
	return outcome, err
}

// transientProcessError reports whether a pipeline failure is worth one more
// attempt.
func transientProcessError(err error) bool {
	return common.IsRetryable(err) ||
		errors.Is(err, sink.ErrUpstreamUnavailable) ||
		errors.Is(err, sink.ErrRateLimited)
}

// buildGenerativeTier wires the third tier from configuration. Without an API
// key the tier is disabled and records fall through to "no candidate".
func buildGenerativeTier(offline bool) (engine.GenerativeProvider, func(), error) {
	noop := func() {}

	if offline {
		slog.Info("Generative tier disabled (--offline)")
		return disabledGenerative{}, noop, nil
	}

	apiKey := viper.GetString("llm.api_key")
	if apiKey == "" {
		slog.Warn("No llm.api_key configured; generative tier disabled")
		return disabledGenerative{}, noop, nil
	}

	var clientOpts []llm.OpenAIOption
	if m := viper.GetString("llm.model"); m != "" {
		clientOpts = append(clientOpts, llm.WithModel(m))
	}
	if u := viper.GetString("llm.base_url"); u != "" {
		clientOpts = append(clientOpts, llm.WithBaseURL(u))
	}

	client, err := llm.NewOpenAIClient(apiKey, clientOpts...)
	if err != nil {
		return nil, noop, fmt.Errorf("failed to create llm client: %w", err)
	}

	provider := llm.NewProvider(client)
	return provider, provider.Close, nil
}
