package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/ebook-catalog/internal/core/domain"
	"github.com/kirillkom/ebook-catalog/internal/infrastructure/resilience"
)

const (
	EventBookCataloged = "book_cataloged"
	HeaderRunID        = "Catalog-Run-Id"
)

// BookCatalogedEvent is the JSON payload sent for every appended record.
type BookCatalogedEvent struct {
	Event       string            `json:"event"`
	RunID       string            `json:"run_id"`
	CatalogedAt time.Time         `json:"cataloged_at"`
	Book        domain.BookRecord `json:"book"`
}

type conn interface {
	PublishMsg(msg *nats.Msg) error
	FlushWithContext(ctx context.Context) error
	Close()
}

type Publisher struct {
	conn     conn
	subject  string
	executor *resilience.Executor
	now      func() time.Time
}

type Options struct {
	ConnectTimeout     time.Duration
	ReconnectWait      time.Duration
	MaxReconnects      int
	ResilienceExecutor *resilience.Executor
}

func NewPublisher(url, subject string, options Options) (*Publisher, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 5
	}

	nc, err := nats.Connect(
		url,
		nats.Name("ebook-catalog"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			slog.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, wrapTemporaryIfNeeded(fmt.Errorf("connect nats: %w", err))
	}
	return newPublisher(nc, subject, options.ResilienceExecutor), nil
}

func newPublisher(c conn, subject string, executor *resilience.Executor) *Publisher {
	return &Publisher{
		conn:     c,
		subject:  subject,
		executor: executor,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

// PublishBooksCataloged sends one message per record and flushes once at the end.
// Nats-Msg-Id carries the filepath so JetStream streams can drop redeliveries.
func (p *Publisher) PublishBooksCataloged(ctx context.Context, runID string, records []domain.BookRecord) error {
	if len(records) == 0 {
		return nil
	}
	catalogedAt := p.now()
	for _, rec := range records {
		msg, err := encodeEvent(p.subject, runID, catalogedAt, rec)
		if err != nil {
			return err
		}
		if err := p.execute(ctx, "nats.publish", func(context.Context) error {
			if err := p.conn.PublishMsg(msg); err != nil {
				return fmt.Errorf("nats publish: %w", err)
			}
			return nil
		}); err != nil {
			return wrapTemporaryIfNeeded(err)
		}
	}
	if err := p.execute(ctx, "nats.flush", func(ctx context.Context) error {
		if err := p.conn.FlushWithContext(ctx); err != nil {
			return fmt.Errorf("nats flush: %w", err)
		}
		return nil
	}); err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	slog.Info("catalog_events_published", "subject", p.subject, "count", len(records), "run_id", runID)
	return nil
}

func (p *Publisher) execute(ctx context.Context, operation string, call func(context.Context) error) error {
	if p.executor == nil {
		return call(ctx)
	}
	return p.executor.Execute(ctx, operation, call, classifyNATSError)
}

func encodeEvent(subject, runID string, catalogedAt time.Time, rec domain.BookRecord) (*nats.Msg, error) {
	payload, err := json.Marshal(BookCatalogedEvent{
		Event:       EventBookCataloged,
		RunID:       runID,
		CatalogedAt: catalogedAt,
		Book:        rec,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", EventBookCataloged, err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = payload
	msg.Header.Set(HeaderRunID, runID)
	msg.Header.Set(nats.MsgIdHdr, rec.Filepath)
	return msg, nil
}
