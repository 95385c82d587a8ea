package nats

import (
	"context"
	"errors"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/interview-rag-assistant/internal/core/domain"
	"github.com/kirillkom/interview-rag-assistant/internal/infrastructure/resilience"
)

// linkErrors are connection states a reconnect can clear.
var linkErrors = []error{
	nats.ErrNoServers,
	nats.ErrTimeout,
	nats.ErrConnectionClosed,
	nats.ErrDisconnected,
	nats.ErrConnectionReconnecting,
	nats.ErrReconnectBufExceeded,
	nats.ErrStaleConnection,
}

// rejectedJobErrors mean this job can never be published as encoded.
var rejectedJobErrors = []error{
	nats.ErrMaxPayload,
	nats.ErrBadSubject,
}

// classifyPublishError keeps rejected jobs and caller cancellation out of the
// breaker window and retries only link failures.
func classifyPublishError(err error) resilience.ErrorClassification {
	switch {
	case err == nil,
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded),
		matchesAny(err, rejectedJobErrors):
		return resilience.ErrorClassification{}
	case resilience.IsCircuitOpen(err), matchesAny(err, linkErrors):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	}
	return resilience.ErrorClassification{RecordFailure: true}
}

// publishError maps a failed publish onto the kinds the upload handler reports.
func publishError(err error) error {
	switch {
	case err == nil, domain.IsKind(err, domain.ErrTemporary):
		return err
	case matchesAny(err, rejectedJobErrors):
		return domain.WrapError(domain.ErrInvalidInput, "publish ingestion job", err)
	case classifyPublishError(err).Retryable:
		return domain.WrapError(domain.ErrTemporary, "publish ingestion job", err)
	}
	return err
}

func matchesAny(err error, targets []error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
