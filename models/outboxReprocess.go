package models

import (
	"context"
	"time"

	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/utils"
)

// ReplayOrderEvent re-queues a DEAD or FAILED row with a fresh attempt budget.
func ReplayOrderEvent(ctx context.Context, recordId int) (*OrderEventStatus, error) {
	now := time.Now().UTC()
	db := config.GetDB().WithContext(ctx)

	res := db.Model(&OrderEventRecord{}).
		Where("id = ? AND publish_status IN ?", recordId,
			[]string{OutboxPublishStatusDead, OutboxPublishStatusFailed}).
		Updates(map[string]interface{}{
			"publish_status":     OutboxPublishStatusFailed,
			"publish_attempts":   0,
			"next_attempt_at":    &now,
			"locked_at":          nil,
			"locked_by":          nil,
			"last_publish_error": nil,
		})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, utils.NotFound("no DEAD or FAILED order event with id %d", recordId)
	}

	var rec OrderEventRecord
	if err := db.First(&rec, recordId).Error; err != nil {
		return nil, err
	}
	return orderEventStatusOf(&rec), nil
}
