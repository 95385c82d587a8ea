package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/interview-rag-assistant/internal/core/domain"
	"github.com/kirillkom/interview-rag-assistant/internal/infrastructure/resilience"
)

const workerQueueGroup = "workers"

const (
	drainTimeout      = 6 * time.Minute
	drainPollInterval = 50 * time.Millisecond
)

type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("interview-rag-assistant"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishIngestionJob(ctx context.Context, job domain.IngestionJob) error {
	payload, err := encodeJob(job)
	if err != nil {
		return err
	}

	err = q.executor.Execute(ctx, "nats.publish", func(_ context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}, classifyPublishError)
	return publishError(err)
}

// SubscribeIngestionJobs blocks until ctx is done, then drains the subscription
// and waits up to drainTimeout for buffered jobs to finish. Malformed messages
// are logged and skipped.
func (q *Queue) SubscribeIngestionJobs(ctx context.Context, handler func(context.Context, domain.IngestionJob) error) error {
	jobCtx := context.WithoutCancel(ctx)
	sub, err := q.conn.QueueSubscribe(q.subject, workerQueueGroup, func(msg *nats.Msg) {
		q.handleMessage(jobCtx, msg, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if !waitDrained(sub, drainTimeout) {
		q.logger.Warn("ingestion_drain_timeout", "subject", q.subject, "timeout", drainTimeout)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

// handleMessage runs one delivery. ctx must outlive the shutdown signal so a
// draining subscription can finish the job.
func (q *Queue) handleMessage(ctx context.Context, msg *nats.Msg, handler func(context.Context, domain.IngestionJob) error) {
	job, err := decodeJob(msg.Data)
	if err != nil {
		q.logger.Error("ingestion_job_malformed", "subject", msg.Subject, "error", err)
		return
	}
	if err := handler(ctx, job); err != nil {
		q.logger.Error("ingestion_job_failed", "job_id", job.ID, "source", job.Source, "error", err)
	}
}

func waitDrained(sub *nats.Subscription, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for sub.IsValid() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(drainPollInterval)
	}
	return true
}

func encodeJob(job domain.IngestionJob) ([]byte, error) {
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("encode ingestion job: %w", err)
	}
	return payload, nil
}

func decodeJob(data []byte) (domain.IngestionJob, error) {
	var job domain.IngestionJob
	if err := json.Unmarshal(data, &job); err != nil {
		return domain.IngestionJob{}, fmt.Errorf("decode ingestion job: %w", err)
	}
	if job.ID == "" || job.StorageKey == "" {
		return domain.IngestionJob{}, errors.New("decode ingestion job: missing id or storage key")
	}
	return job, nil
}
