package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/apptslot/libs/kafkax"
	otelx "github.com/md-rashed-zaman/apptslot/libs/otel"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// TxBeginner is satisfied by *db.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

type PublisherConfig struct {
	PollEvery time.Duration
	BatchSize int
	// OnPublished, if set, is told how many events each successful batch relayed.
	OnPublished func(n int)
}

// Publisher relays committed outbox rows to Kafka. Delivery is at least once:
// rows are marked only after the broker accepted them.
type Publisher struct {
	db     TxBeginner
	repo   *Repository
	writer MessageWriter
	logger *slog.Logger
	cfg    PublisherConfig
}

func NewPublisher(db TxBeginner, repo *Repository, writer MessageWriter, logger *slog.Logger, cfg PublisherConfig) *Publisher {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &Publisher{db: db, repo: repo, writer: writer, logger: logger, cfg: cfg}
}

func (p *Publisher) Run(ctx context.Context) {
	if p.writer == nil {
		p.logger.Warn("outbox publisher disabled (no kafka brokers configured)")
		return
	}
	ticker := time.NewTicker(p.cfg.PollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.PublishBatch(ctx)
			if err != nil {
				p.logger.Error("outbox publish failed", "err", err)
				continue
			}
			if n > 0 {
				p.logger.Debug("outbox batch published", "count", n)
			}
		}
	}
}

func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	tx, err := p.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	records, err := p.repo.FetchUnpublished(ctx, tx, p.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, tx.Commit(ctx)
	}

	msgs := make([]kafka.Message, len(records))
	ids := make([]int64, len(records))
	for i, rec := range records {
		msgs[i] = Message(ctx, rec)
		ids[i] = rec.ID
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, err
	}
	if err := p.repo.MarkPublished(ctx, tx, ids); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	if p.cfg.OnPublished != nil {
		p.cfg.OnPublished(len(records))
	}
	return len(records), nil
}

// Message builds the Kafka record for rec, restoring the trace context that
// was active when the row was written.
func Message(ctx context.Context, rec Record) kafka.Message {
	msgCtx := otelx.ContextWithTraceContext(ctx, rec.Traceparent, rec.Tracestate)
	meta := kafkax.EventMeta{
		EventID:     rec.Event.EventID,
		EventType:   rec.Event.EventType,
		AggregateID: rec.Event.AggregateID,
	}
	return kafka.Message{
		Topic:   rec.Event.EventType,
		Key:     []byte(rec.Event.AggregateID),
		Value:   rec.Event.Payload,
		Headers: kafkax.InjectTraceHeaders(msgCtx, meta.Headers()),
		Time:    rec.CreatedAt,
	}
}
