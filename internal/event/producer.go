package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/elfernagomez/doya-management/internal/domain"
	pkgkafka "github.com/elfernagomez/doya-management/pkg/kafka"
)

// Kafka topics for order draft domain events.
var (
	TopicDraftChanged   = pkgkafka.Topic("orderdraft", "changed")
	TopicDraftSaved     = pkgkafka.Topic("orderdraft", "saved")
	TopicDraftDiscarded = pkgkafka.Topic("orderdraft", "discarded")
)

// Aggregate type constant.
const AggregateTypeOrderDraft = "order_draft"

// Source identifier for events originating from the draft service.
const SourceDraftService = "draft-service"

// DraftChangedData is the payload for an orderdraft.changed event. It carries
// the full snapshot so consumers never have to re-read the store.
type DraftChangedData struct {
	Snapshot domain.Snapshot `json:"snapshot"`
}

// DraftSavedData is the payload for an orderdraft.saved event.
type DraftSavedData struct {
	Snapshot       domain.Snapshot `json:"snapshot"`
	PersistedCount int             `json:"persisted_count"`
	DeletedCount   int             `json:"deleted_count"`
}

// DraftDiscardedData is the payload for an orderdraft.discarded event.
type DraftDiscardedData struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id,omitempty"`
}

// Producer publishes order draft domain events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer for the draft service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishDraftChanged publishes an orderdraft.changed event.
func (p *Producer) PublishDraftChanged(ctx context.Context, snapshot domain.Snapshot) error {
	data := DraftChangedData{Snapshot: snapshot}

	event, err := pkgkafka.NewEvent(TopicDraftChanged, snapshot.OrderID, AggregateTypeOrderDraft, SourceDraftService, data)
	if err != nil {
		return fmt.Errorf("create orderdraft.changed event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicDraftChanged, event); err != nil {
		return fmt.Errorf("publish orderdraft.changed event: %w", err)
	}

	p.logger.DebugContext(ctx, "published orderdraft.changed event",
		slog.String("order_id", snapshot.OrderID),
		slog.Int("item_count", len(snapshot.Items)),
	)

	return nil
}

// PublishDraftSaved publishes an orderdraft.saved event.
func (p *Producer) PublishDraftSaved(ctx context.Context, snapshot domain.Snapshot, persisted, deleted int) error {
	data := DraftSavedData{
		Snapshot:       snapshot,
		PersistedCount: persisted,
		DeletedCount:   deleted,
	}

	event, err := pkgkafka.NewEvent(TopicDraftSaved, snapshot.OrderID, AggregateTypeOrderDraft, SourceDraftService, data)
	if err != nil {
		return fmt.Errorf("create orderdraft.saved event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicDraftSaved, event); err != nil {
		return fmt.Errorf("publish orderdraft.saved event: %w", err)
	}

	p.logger.DebugContext(ctx, "published orderdraft.saved event",
		slog.String("order_id", snapshot.OrderID),
		slog.Int("persisted_count", persisted),
		slog.Int("deleted_count", deleted),
	)

	return nil
}

// PublishDraftDiscarded publishes an orderdraft.discarded event.
func (p *Producer) PublishDraftDiscarded(ctx context.Context, orderID, userID string) error {
	data := DraftDiscardedData{OrderID: orderID, UserID: userID}

	event, err := pkgkafka.NewEvent(TopicDraftDiscarded, orderID, AggregateTypeOrderDraft, SourceDraftService, data)
	if err != nil {
		return fmt.Errorf("create orderdraft.discarded event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicDraftDiscarded, event); err != nil {
		return fmt.Errorf("publish orderdraft.discarded event: %w", err)
	}

	p.logger.DebugContext(ctx, "published orderdraft.discarded event",
		slog.String("order_id", orderID),
	)

	return nil
}
