package models

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"gorm.io/gorm"
)

// OrderEvent is the realtime message staff devices receive.
type OrderEvent struct {
	Type      string    `json:"type"`
	OrderId   string    `json:"orderId"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderNotifier receives events after the order transaction committed.
// Implementations must not block the caller and must swallow delivery errors.
type OrderNotifier interface {
	Notify(ctx context.Context, role string, event OrderEvent)
}

// OrderEventRecord is the transactional outbox row for an OrderEvent.
type OrderEventRecord struct {
	ID      int    `gorm:"primary_key;index:idx_order_event_dispatch,priority:3" json:"id"`
	EventId string `gorm:"size:36;not null;uniqueIndex" json:"event_id"`
	Role    string `gorm:"size:32;not null" json:"role"`
	OrderId string `gorm:"size:36;not null;index" json:"order_id"`
	// EventType mirrors Payload.type for filtering without decoding.
	EventType        string     `gorm:"size:50;not null" json:"event_type"`
	Payload          []byte     `gorm:"not null" json:"payload"`
	OccurredAt       time.Time  `gorm:"not null" json:"occurred_at"`
	PublishStatus    string     `gorm:"size:20;index;not null;default:'PENDING';index:idx_order_event_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `json:"published_at"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index;index:idx_order_event_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	ExternalId       *string    `gorm:"size:255" json:"external_id"`
	CorrelationId    string     `gorm:"size:64;index" json:"correlation_id"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// AppendOrderEvent writes the event through tx so it commits or rolls back
// with the order change that caused it.
func AppendOrderEvent(ctx context.Context, tx *gorm.DB, role string, event OrderEvent) (*OrderEventRecord, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	record := OrderEventRecord{
		EventId:       uuid.NewString(),
		Role:          role,
		OrderId:       event.OrderId,
		EventType:     event.Type,
		Payload:       payload,
		OccurredAt:    event.Timestamp,
		PublishStatus: OutboxPublishStatusPending,
		CorrelationId: correlationIdFromContextOrNew(ctx),
	}
	if err := tx.Create(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func ConvertToOrderEventMessage(record OrderEventRecord) config.OrderEventMessage {
	return config.OrderEventMessage{
		EventId:       record.EventId,
		Role:          record.Role,
		OrderId:       record.OrderId,
		EventType:     record.EventType,
		Payload:       json.RawMessage(record.Payload),
		OccurredAt:    record.OccurredAt,
		CorrelationId: record.CorrelationId,
	}
}

func correlationIdFromContextOrNew(ctx context.Context) string {
	if ctx != nil {
		if v, ok := utils.GetCorrelationIdFromContext(ctx); ok && v != "" {
			return v
		}
	}
	return uuid.NewString()
}
