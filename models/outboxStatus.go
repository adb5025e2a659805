package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"gorm.io/gorm"
)

// OrderEventStatus is the operator view of one outbox row.
type OrderEventStatus struct {
	RecordId         int        `json:"record_id"`
	EventId          string     `json:"event_id"`
	OrderId          string     `json:"order_id"`
	EventType        string     `json:"event_type"`
	Role             string     `json:"role"`
	PublishStatus    string     `json:"publish_status"`
	PublishAttempts  int        `json:"publish_attempts"`
	NextAttemptAt    *time.Time `json:"next_attempt_at"`
	LastPublishError *string    `json:"last_publish_error"`
	ExternalId       *string    `json:"external_id"`
	CreatedAt        time.Time  `json:"created_at"`
	PublishedAt      *time.Time `json:"published_at"`
}

func orderEventStatusOf(rec *OrderEventRecord) *OrderEventStatus {
	return &OrderEventStatus{
		RecordId:         rec.ID,
		EventId:          rec.EventId,
		OrderId:          rec.OrderId,
		EventType:        rec.EventType,
		Role:             rec.Role,
		PublishStatus:    rec.PublishStatus,
		PublishAttempts:  rec.PublishAttempts,
		NextAttemptAt:    rec.NextAttemptAt,
		LastPublishError: rec.LastPublishError,
		ExternalId:       rec.ExternalId,
		CreatedAt:        rec.CreatedAt,
		PublishedAt:      rec.PublishedAt,
	}
}

// GetOrderEventStatus returns the latest outbox row of an order.
func GetOrderEventStatus(ctx context.Context, orderId string) (*OrderEventStatus, error) {
	var rec OrderEventRecord
	err := config.GetDB().WithContext(ctx).
		Where("order_id = ?", orderId).
		Order("id DESC").
		First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		return nil, utils.NotFound("no order event for order %s", orderId)
	}
	if err != nil {
		return nil, err
	}
	return orderEventStatusOf(&rec), nil
}

// OrderEventBacklog counts outbox rows per publish status.
func OrderEventBacklog(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		PublishStatus string
		Total         int64
	}
	err := config.GetDB().WithContext(ctx).
		Model(&OrderEventRecord{}).
		Select("publish_status, COUNT(*) AS total").
		Group("publish_status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	backlog := map[string]int64{
		OutboxPublishStatusPending:    0,
		OutboxPublishStatusProcessing: 0,
		OutboxPublishStatusSent:       0,
		OutboxPublishStatusFailed:     0,
		OutboxPublishStatusDead:       0,
	}
	for _, r := range rows {
		backlog[r.PublishStatus] = r.Total
	}
	return backlog, nil
}
