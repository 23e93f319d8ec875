package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ContrejfC/ai-bookkeeper/internal/model"
)

// Validation errors.
var (
	ErrNilContext       = errors.New("context cannot be nil")
	ErrEmptyString      = errors.New("string parameter cannot be empty")
	ErrNilParameter     = errors.New("parameter cannot be nil")
	ErrInvalidDateRange = errors.New("start date must be before end date")
	ErrInvalidDecision  = errors.New("invalid decision")
	ErrInvalidExample   = errors.New("invalid labeled example")
	ErrInvalidRule      = errors.New("invalid rule")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateDecision validates a decision before it enters the audit log.
func validateDecision(decision *model.Decision) error {
	if decision == nil {
		return fmt.Errorf("%w: decision", ErrNilParameter)
	}
	if decision.ID == "" {
		return fmt.Errorf("%w: missing ID", ErrInvalidDecision)
	}
	if decision.TenantID == "" {
		return fmt.Errorf("%w: missing tenant ID", ErrInvalidDecision)
	}
	if decision.RecordID == "" {
		return fmt.Errorf("%w: missing record ID", ErrInvalidDecision)
	}
	if decision.Probability < 0 || decision.Probability > 1 {
		return fmt.Errorf("%w: probability %v out of [0,1]", ErrInvalidDecision, decision.Probability)
	}
	if !decision.Eligible && decision.Reason == model.ReasonNone {
		return fmt.Errorf("%w: ineligible decision requires a reason", ErrInvalidDecision)
	}
	return nil
}

// validateExample validates a labeled example.
func validateExample(example *model.LabeledExample) error {
	if example == nil {
		return fmt.Errorf("%w: example", ErrNilParameter)
	}
	if example.TenantID == "" {
		return fmt.Errorf("%w: missing tenant ID", ErrInvalidExample)
	}
	if example.RecordID == "" {
		return fmt.Errorf("%w: missing record ID", ErrInvalidExample)
	}
	if example.Label == "" {
		return fmt.Errorf("%w: missing label", ErrInvalidExample)
	}
	return nil
}

// validateRule validates a pattern rule.
func validateRule(rule *model.Rule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if rule.TenantID == "" {
		return fmt.Errorf("%w: missing tenant ID", ErrInvalidRule)
	}
	if rule.CounterpartyRegex == "" {
		return fmt.Errorf("%w: missing counterparty pattern", ErrInvalidRule)
	}
	if rule.Label == "" {
		return fmt.Errorf("%w: missing label", ErrInvalidRule)
	}
	return nil
}
