package workflow_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/models"
	"github.com/mmdatafocus/kitchen_backend/workflow"
	"gorm.io/gorm"
)

func appendConfirmed(t *testing.T, db *gorm.DB, orderId string) *models.OrderEventRecord {
	t.Helper()
	rec, err := models.AppendOrderEvent(context.Background(), db, models.RoleAdmin, models.OrderEvent{
		Type:      models.EventTypeOrderConfirmed,
		OrderId:   orderId,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("AppendOrderEvent: %v", err)
	}
	return rec
}

func loadRecord(t *testing.T, db *gorm.DB, id int) models.OrderEventRecord {
	t.Helper()
	var rec models.OrderEventRecord
	if err := db.First(&rec, id).Error; err != nil {
		t.Fatalf("load record %d: %v", id, err)
	}
	return rec
}

func newDispatcher(db *gorm.DB, publisher workflow.OrderEventPublisher) *workflow.OrderEventDispatcher {
	d := workflow.NewOrderEventDispatcher(db, config.GetLogger(), publisher)
	d.InitialBackoff = time.Minute
	return d
}

func TestOrderEventDispatcher_PublishesPendingRows(t *testing.T) {
	db := openTestDB(t)
	rec := appendConfirmed(t, db, "order-1")
	publisher := &fakePublisher{externalId: "msg-1"}

	if sent := newDispatcher(db, publisher).DispatchOnce(context.Background()); sent != 1 {
		t.Fatalf("expected 1 sent, got %d", sent)
	}

	msgs := publisher.messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 publish, got %d", len(msgs))
	}
	if msgs[0].Role != models.RoleAdmin || msgs[0].OrderId != "order-1" || msgs[0].EventId != rec.EventId {
		t.Fatalf("unexpected message %+v", msgs[0])
	}
	var payload models.OrderEvent
	if err := json.Unmarshal(msgs[0].Payload, &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.Type != models.EventTypeOrderConfirmed || payload.OrderId != "order-1" {
		t.Fatalf("unexpected payload %+v", payload)
	}

	got := loadRecord(t, db, rec.ID)
	if got.PublishStatus != models.OutboxPublishStatusSent || got.PublishAttempts != 1 {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.ExternalId == nil || *got.ExternalId != "msg-1" || got.PublishedAt == nil || got.LockedBy != nil {
		t.Fatalf("unexpected record %+v", got)
	}

	// sent rows are never picked up again
	if sent := newDispatcher(db, publisher).DispatchOnce(context.Background()); sent != 0 {
		t.Fatalf("expected nothing left to send, got %d", sent)
	}
	if n := len(publisher.messages()); n != 1 {
		t.Fatalf("expected no republish, got %d publishes", n)
	}
}

func TestOrderEventDispatcher_FailedPublishBacksOff(t *testing.T) {
	db := openTestDB(t)
	rec := appendConfirmed(t, db, "order-2")
	publisher := &fakePublisher{err: errBrokerDown}
	d := newDispatcher(db, publisher)

	before := time.Now().UTC()
	if sent := d.DispatchOnce(context.Background()); sent != 0 {
		t.Fatalf("expected 0 sent, got %d", sent)
	}
	got := loadRecord(t, db, rec.ID)
	if got.PublishStatus != models.OutboxPublishStatusFailed || got.PublishAttempts != 1 {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.LastPublishError == nil || *got.LastPublishError != errBrokerDown.Error() {
		t.Fatalf("expected the publish error to be kept, got %v", got.LastPublishError)
	}
	if got.NextAttemptAt == nil || got.NextAttemptAt.Before(before.Add(50*time.Second)) {
		t.Fatalf("expected a retry about a minute out, got %v", got.NextAttemptAt)
	}

	// not due yet
	publisher.setErr(nil)
	if sent := d.DispatchOnce(context.Background()); sent != 0 {
		t.Fatalf("a backed off row must wait, got %d sent", sent)
	}
	if n := len(publisher.messages()); n != 1 {
		t.Fatalf("expected 1 publish attempt so far, got %d", n)
	}

	// once due it goes out
	past := time.Now().UTC().Add(-time.Second)
	if err := db.Model(&models.OrderEventRecord{}).Where("id = ?", rec.ID).Update("next_attempt_at", &past).Error; err != nil {
		t.Fatalf("rewind next_attempt_at: %v", err)
	}
	if sent := d.DispatchOnce(context.Background()); sent != 1 {
		t.Fatalf("expected the retry to be sent, got %d", sent)
	}
	got = loadRecord(t, db, rec.ID)
	if got.PublishStatus != models.OutboxPublishStatusSent || got.PublishAttempts != 2 {
		t.Fatalf("unexpected record after retry %+v", got)
	}
}

func TestOrderEventDispatcher_DeadAfterMaxAttemptsThenReplay(t *testing.T) {
	db := openTestDB(t)
	rec := appendConfirmed(t, db, "order-3")
	publisher := &fakePublisher{err: errBrokerDown}
	d := newDispatcher(db, publisher)
	d.MaxAttempts = 1

	d.DispatchOnce(context.Background())
	got := loadRecord(t, db, rec.ID)
	if got.PublishStatus != models.OutboxPublishStatusDead {
		t.Fatalf("expected DEAD after the last attempt, got %s", got.PublishStatus)
	}
	if got.NextAttemptAt != nil {
		t.Fatalf("a DEAD row has no next attempt, got %v", got.NextAttemptAt)
	}

	if _, err := models.ReplayOrderEvent(context.Background(), rec.ID); err != nil {
		t.Fatalf("ReplayOrderEvent: %v", err)
	}
	publisher.setErr(nil)
	time.Sleep(10 * time.Millisecond)
	if sent := d.DispatchOnce(context.Background()); sent != 1 {
		t.Fatalf("expected the replayed row to be sent, got %d", sent)
	}
	got = loadRecord(t, db, rec.ID)
	if got.PublishStatus != models.OutboxPublishStatusSent || got.PublishAttempts != 1 {
		t.Fatalf("unexpected record after replay %+v", got)
	}
}

func TestOrderEventDispatcher_RecoversStaleProcessingRows(t *testing.T) {
	db := openTestDB(t)
	rec := appendConfirmed(t, db, "order-4")
	stale := time.Now().UTC().Add(-time.Hour)
	owner := "crashed-dispatcher"
	if err := db.Model(&models.OrderEventRecord{}).Where("id = ?", rec.ID).Updates(map[string]interface{}{
		"publish_status":   models.OutboxPublishStatusProcessing,
		"publish_attempts": 1,
		"locked_at":        &stale,
		"locked_by":        &owner,
	}).Error; err != nil {
		t.Fatalf("mark processing: %v", err)
	}

	publisher := &fakePublisher{}
	if sent := newDispatcher(db, publisher).DispatchOnce(context.Background()); sent != 1 {
		t.Fatalf("expected the stale row to be re-sent, got %d", sent)
	}
	if got := loadRecord(t, db, rec.ID); got.PublishStatus != models.OutboxPublishStatusSent {
		t.Fatalf("expected SENT, got %s", got.PublishStatus)
	}
}
