package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/tenant-rag/internal/core/domain"
	"github.com/kirillkom/tenant-rag/internal/core/ports"
	"github.com/kirillkom/tenant-rag/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
)

const attemptHeader = "Rag-Cleanup-Attempt"

// Queue carries orphan cleanup jobs over a NATS subject as JSON.
type Queue struct {
	conn          *nats.Conn
	subject       string
	executor      *resilience.Executor
	maxDeliveries int
	redeliverWait time.Duration
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
	// MaxDeliveries bounds how many times a failed job is handed back to the subscribers.
	MaxDeliveries int
	RedeliverWait time.Duration
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

	conn, err := nats.Connect(
		url,
		nats.Name("tenant-rag"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return newQueue(conn, subject, options), nil
}

func newQueue(conn *nats.Conn, subject string, options Options) *Queue {
	maxDeliveries := options.MaxDeliveries
	if maxDeliveries <= 0 {
		maxDeliveries = 5
	}
	redeliverWait := options.RedeliverWait
	if redeliverWait <= 0 {
		redeliverWait = 5 * time.Second
	}
	return &Queue{
		conn:          conn,
		subject:       subject,
		executor:      options.ResilienceExecutor,
		maxDeliveries: maxDeliveries,
		redeliverWait: redeliverWait,
	}
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishCleanup(ctx context.Context, job ports.CleanupJob) error {
	payload, err := encodeJob(job)
	if err != nil {
		return err
	}
	return q.publish(ctx, payload, 1)
}

func (q *Queue) publish(ctx context.Context, payload []byte, attempt int) error {
	msg := nats.NewMsg(q.subject)
	msg.Data = payload
	msg.Header.Set(attemptHeader, strconv.Itoa(attempt))

	call := func(_ context.Context) error {
		if err := q.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return publishError(err)
	}
	return nil
}

// SubscribeCleanup blocks until ctx is done. A job whose handler fails is republished after
// RedeliverWait until MaxDeliveries is reached, then dropped with an error log.
func (q *Queue) SubscribeCleanup(ctx context.Context, handler func(context.Context, ports.CleanupJob) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, "workers", func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		job, err := decodeJob(msg.Data)
		if err != nil {
			slog.Error("cleanup_job_malformed", "subject", msg.Subject, "error", err)
			return
		}
		attempt := attemptOf(msg.Header)

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, job); err != nil {
			q.redeliver(ctx, msg.Data, job, attempt, err)
		}
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
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) redeliver(ctx context.Context, payload []byte, job ports.CleanupJob, attempt int, cause error) {
	if attempt >= q.maxDeliveries {
		slog.Error("cleanup_job_dropped",
			"tenant_id", job.TenantID,
			"chunk_count", len(job.ChunkIDs),
			"reason", job.Reason,
			"attempt", attempt,
			"error", cause,
		)
		return
	}
	slog.Warn("cleanup_job_failed",
		"tenant_id", job.TenantID,
		"chunk_count", len(job.ChunkIDs),
		"attempt", attempt,
		"retry_in", q.redeliverWait.String(),
		"error", cause,
	)
	time.AfterFunc(q.redeliverWait, func() {
		if ctx.Err() != nil {
			return
		}
		if err := q.publish(context.WithoutCancel(ctx), payload, attempt+1); err != nil {
			slog.Error("cleanup_job_republish_failed", "tenant_id", job.TenantID, "error", err)
		}
	})
}

func encodeJob(job ports.CleanupJob) ([]byte, error) {
	if strings.TrimSpace(job.TenantID) == "" || len(job.ChunkIDs) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "encode cleanup job", errors.New("tenant id and chunk ids are required"))
	}
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal cleanup job: %w", err)
	}
	return payload, nil
}

func decodeJob(data []byte) (ports.CleanupJob, error) {
	var job ports.CleanupJob
	if err := json.Unmarshal(data, &job); err != nil {
		return ports.CleanupJob{}, fmt.Errorf("unmarshal cleanup job: %w", err)
	}
	if strings.TrimSpace(job.TenantID) == "" || len(job.ChunkIDs) == 0 {
		return ports.CleanupJob{}, domain.WrapError(domain.ErrInvalidInput, "decode cleanup job", errors.New("tenant id and chunk ids are required"))
	}
	return job, nil
}

func attemptOf(header nats.Header) int {
	if header == nil {
		return 1
	}
	attempt, err := strconv.Atoi(header.Get(attemptHeader))
	if err != nil || attempt < 1 {
		return 1
	}
	return attempt
}
