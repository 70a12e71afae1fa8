package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	outboxDomain "github.com/allisson/orderflow/internal/outbox/domain"
	sagaDomain "github.com/allisson/orderflow/internal/saga/domain"
	"github.com/allisson/orderflow/internal/scheduler"
)

// OutboxCounter reports outbox events per status.
type OutboxCounter interface {
	CountByStatus(ctx context.Context) (map[outboxDomain.OutboxEventStatus]int64, error)
}

// SagaCounter reports sagas per status.
type SagaCounter interface {
	Statistics(ctx context.Context) (map[sagaDomain.SagaStatus]int64, error)
}

// RunRecoverSagas resumes stale sagas and purges finished ones past retention.
//
// Requirements: Database must be migrated and accessible.
func RunRecoverSagas(
	ctx context.Context,
	recoverer scheduler.SagaRecoverer,
	logger *slog.Logger,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	logger.Info("recovering stale sagas")

	result, err := recoverer.ResumeStale(ctx)
	if err != nil {
		return fmt.Errorf("failed to resume stale sagas: %w", err)
	}

	deleted, err := recoverer.Cleanup(ctx)
	if err != nil {
		return fmt.Errorf("failed to cleanup sagas: %w", err)
	}

	if format == FormatJSON {
		return writeJSON(writer, map[string]any{
			"recovery": result,
			"deleted":  deleted,
		})
	}

	_, _ = fmt.Fprintf(writer, "Recovery: found=%d resumed=%d skipped=%d failed=%d\n",
		result.Found, result.Resumed, result.Skipped, result.Failed)
	_, _ = fmt.Fprintf(writer, "Cleanup: deleted %d finished saga(s)\n", deleted)
	return nil
}

// RunStats prints outbox event and saga counts per status.
//
// Requirements: Database must be migrated and accessible.
func RunStats(
	ctx context.Context,
	outbox OutboxCounter,
	sagas SagaCounter,
	writer io.Writer,
	format string,
) error {
	if err := validateFormat(format); err != nil {
		return err
	}

	outboxCounts, err := outbox.CountByStatus(ctx)
	if err != nil {
		return fmt.Errorf("failed to count outbox events: %w", err)
	}
	sagaCounts, err := sagas.Statistics(ctx)
	if err != nil {
		return fmt.Errorf("failed to count sagas: %w", err)
	}

	if format == FormatJSON {
		return writeJSON(writer, map[string]any{
			"outbox_events": outboxCounts,
			"sagas":         sagaCounts,
		})
	}

	_, _ = fmt.Fprintln(writer, "Outbox events:")
	for _, status := range outboxDomain.AllStatuses {
		_, _ = fmt.Fprintf(writer, "  %-12s %d\n", status, outboxCounts[status])
	}
	_, _ = fmt.Fprintln(writer, "Sagas:")
	for _, status := range sagaDomain.AllSagaStatuses {
		_, _ = fmt.Fprintf(writer, "  %-12s %d\n", status, sagaCounts[status])
	}
	return nil
}
