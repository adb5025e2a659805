package models

import (
	"context"
	"errors"
	"time"

	"github.com/bsm/redislock"
	"github.com/google/uuid"
	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type Order struct {
	ID            string       `gorm:"primaryKey;size:36" json:"id"`
	EatingTableId string       `gorm:"size:36;not null;index" json:"eatingTableId"`
	Status        OrderStatus  `gorm:"size:32;not null;default:'INITIALIZED';index" json:"status"`
	CreatedAt     time.Time    `gorm:"index" json:"createdAt"`
	UpdatedAt     time.Time    `gorm:"autoUpdateTime" json:"updatedAt"`
	Lines         []*OrderLine `gorm:"foreignKey:OrderId" json:"lines,omitempty"`
}

type NewOrder struct {
	EatingTableId string       `json:"eatingTableId" binding:"required"`
	Status        *OrderStatus `json:"status"`
}

type UpdateOrderInput struct {
	EatingTableId *string      `json:"eatingTableId"`
	Status        *OrderStatus `json:"status"`
}

type OrderFilter struct {
	Status        OrderStatus
	EatingTableId string
	From          *time.Time
	To            *time.Time
	// After is a cursor from NextCursor; it takes precedence over Offset.
	After  string
	Limit  int
	Offset int
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// OrderLifecycle owns every order and order-line mutation. Writes happen in
// one transaction; the CONFIRMED notification is sent only after commit,
// either straight to Notifier or through the outbox when UseOutbox is set.
type OrderLifecycle struct {
	DB       *gorm.DB
	Notifier OrderNotifier
	// Locker serializes mutations of one order across instances. nil disables it.
	Locker    *redislock.Client
	Logger    *logrus.Logger
	LockTTL   time.Duration
	Strict    bool
	UseOutbox bool
	Now       func() time.Time
}

func NewOrderLifecycle(notifier OrderNotifier) *OrderLifecycle {
	settings := config.LoadSettings()
	return &OrderLifecycle{
		DB:        config.GetDB(),
		Notifier:  notifier,
		Locker:    config.GetRedisLock(),
		Logger:    config.GetLogger(),
		LockTTL:   settings.OrderLockTTL,
		Strict:    config.StrictOrderTransitions(),
		UseOutbox: config.NotifyOutboxEnabled(),
		Now:       time.Now,
	}
}

func (lc *OrderLifecycle) now() time.Time {
	if lc.Now == nil {
		return time.Now().UTC()
	}
	return lc.Now().UTC()
}

func (lc *OrderLifecycle) logger() *logrus.Logger {
	if lc.Logger == nil {
		return config.GetLogger()
	}
	return lc.Logger
}

// lockOrder takes lock:order:<id>. A lock held by someone else is a Conflict;
// any other redis failure is logged and the mutation goes ahead unlocked.
func (lc *OrderLifecycle) lockOrder(ctx context.Context, orderId string) (func(), error) {
	if lc.Locker == nil {
		return func() {}, nil
	}
	ttl := lc.LockTTL
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	lock, err := lc.Locker.Obtain(ctx, "lock:order:"+orderId, ttl, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		return nil, utils.Conflict("order %s is being modified by another request", orderId)
	}
	if err != nil {
		config.LogError(lc.logger(), "OrderLifecycle", "lockOrder", "obtain order lock", orderId, err)
		return func() {}, nil
	}
	return func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			config.LogError(lc.logger(), "OrderLifecycle", "lockOrder", "release order lock", orderId, err)
		}
	}, nil
}

func (lc *OrderLifecycle) confirmedEvent(orderId string) OrderEvent {
	return OrderEvent{Type: EventTypeOrderConfirmed, OrderId: orderId, Timestamp: lc.now()}
}

// notifyConfirmed runs after commit. It never fails the caller.
func (lc *OrderLifecycle) notifyConfirmed(ctx context.Context, orderId string) {
	if lc.UseOutbox || lc.Notifier == nil {
		return
	}
	lc.Notifier.Notify(context.WithoutCancel(ctx), RoleAdmin, lc.confirmedEvent(orderId))
}

func (lc *OrderLifecycle) recordConfirmed(ctx context.Context, tx *gorm.DB, orderId string) error {
	if !lc.UseOutbox {
		return nil
	}
	_, err := AppendOrderEvent(ctx, tx, RoleAdmin, lc.confirmedEvent(orderId))
	return err
}

func (lc *OrderLifecycle) CreateOrder(ctx context.Context, input *NewOrder) (*Order, error) {
	status := utils.DereferencePtr(input.Status, OrderStatusInitialized)
	if !status.IsValid() {
		return nil, utils.Validation("invalid order status %q", status)
	}

	order := Order{
		EatingTableId: input.EatingTableId,
		Status:        status,
		CreatedAt:     lc.now(),
	}
	err := lc.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := utils.ValidateResourceId[EatingTable](ctx, tx, input.EatingTableId); err != nil {
			return err
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		if status == OrderStatusConfirmed {
			return lc.recordConfirmed(ctx, tx, order.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if status == OrderStatusConfirmed {
		lc.notifyConfirmed(ctx, order.ID)
	}
	if status == OrderStatusPaid {
		InvalidateSalesReports(ctx)
	}
	return &order, nil
}

// UpdateOrder applies the given fields. Without Strict any status is
// accepted; with it only CanTransition moves are. Setting the status to
// CONFIRMED notifies ADMIN once the change is committed.
func (lc *OrderLifecycle) UpdateOrder(ctx context.Context, id string, input *UpdateOrderInput) (*Order, error) {
	if input.Status != nil && !input.Status.IsValid() {
		return nil, utils.Validation("invalid order status %q", *input.Status)
	}

	unlock, err := lc.lockOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	confirmed := input.Status != nil && *input.Status == OrderStatusConfirmed
	touchesPaid := false
	err = lc.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := utils.FetchModelTx[Order](tx, id)
		if err != nil {
			return err
		}
		touchesPaid = order.Status == OrderStatusPaid || (input.Status != nil && *input.Status == OrderStatusPaid)

		updates := map[string]interface{}{}
		if input.Status != nil {
			if lc.Strict && !CanTransition(order.Status, *input.Status) {
				return utils.Validation("order %s cannot move from %s to %s", order.ID, order.Status, *input.Status)
			}
			updates["Status"] = *input.Status
		}
		if input.EatingTableId != nil {
			if err := utils.ValidateResourceId[EatingTable](ctx, tx, *input.EatingTableId); err != nil {
				return err
			}
			updates["EatingTableId"] = *input.EatingTableId
		}
		if len(updates) > 0 {
			if err := tx.Model(order).Updates(updates).Error; err != nil {
				return err
			}
		}
		if confirmed {
			return lc.recordConfirmed(ctx, tx, order.ID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if confirmed {
		lc.notifyConfirmed(ctx, id)
	}
	if touchesPaid {
		InvalidateSalesReports(ctx)
	}
	return lc.GetOrder(ctx, id)
}

// DeleteOrder removes the order with all its lines.
func (lc *OrderLifecycle) DeleteOrder(ctx context.Context, id string) (*Order, error) {
	unlock, err := lc.lockOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	db := lc.DB.WithContext(ctx)
	tx := db.Begin()
	order, err := utils.FetchModelTx[Order](tx, id, "Lines")
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Where("order_id = ?", id).Delete(&OrderLine{}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Delete(order).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	if order.Status == OrderStatusPaid {
		InvalidateSalesReports(ctx)
	}
	return order, nil
}

func (lc *OrderLifecycle) GetOrder(ctx context.Context, id string) (*Order, error) {
	return utils.FetchModelTx[Order](lc.DB.WithContext(ctx), id, "Lines")
}

func (lc *OrderLifecycle) ListOrders(ctx context.Context, filter OrderFilter) ([]*Order, error) {
	q := lc.DB.WithContext(ctx).Model(&Order{})
	if filter.Status != "" {
		if !filter.Status.IsValid() {
			return nil, utils.Validation("invalid order status %q", filter.Status)
		}
		q = q.Where("status = ?", filter.Status)
	}
	if filter.EatingTableId != "" {
		q = q.Where("eating_table_id = ?", filter.EatingTableId)
	}
	if filter.From != nil {
		q = q.Where("created_at >= ?", filter.From.UTC())
	}
	if filter.To != nil {
		q = q.Where("created_at < ?", filter.To.UTC())
	}
	limit, offset := utils.ClampLimit(filter.Limit, filter.Offset)
	if filter.After != "" {
		createdAt, id, err := DecodeCompositeCursor(filter.After)
		if err != nil {
			return nil, err
		}
		q = q.Where("created_at < ? OR (created_at = ? AND id > ?)", createdAt, createdAt, id)
		offset = 0
	}

	var results []*Order
	if err := q.Order("created_at DESC").Order("id").Limit(limit).Offset(offset).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
