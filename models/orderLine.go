package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderLine is one sold item. Price is a snapshot taken when the line was
// created so later catalog price changes do not move historical revenue.
type OrderLine struct {
	ID           string          `gorm:"primaryKey;size:36" json:"id"`
	OrderId      string          `gorm:"size:36;not null;index" json:"orderId"`
	MenuItemId   string          `gorm:"size:36;not null;index" json:"menuItemId"`
	ParentLineId *string         `gorm:"size:36;index" json:"parentLineId"`
	Quantity     int             `gorm:"not null" json:"quantity"`
	Price        decimal.Decimal `gorm:"type:decimal(20,4);not null;default:0" json:"price"`
	CreatedAt    time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (l *OrderLine) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// Placement rebuilds the typed placement from the stored parent pointer.
func (l OrderLine) Placement() LinePlacement {
	return PlacementFor(l.ParentLineId)
}

// LinePlacement says where a line hangs: directly on the order, or under a
// primary line as a supplement or option.
type LinePlacement interface {
	parentLineId() *string
}

// PrimaryLine is a directly sold item.
type PrimaryLine struct{}

// AttachedLine is a supplement or option bundled under ParentLineId.
type AttachedLine struct {
	ParentLineId string
}

func (PrimaryLine) parentLineId() *string { return nil }

func (a AttachedLine) parentLineId() *string {
	id := a.ParentLineId
	return &id
}

func PlacementFor(parentLineId *string) LinePlacement {
	if parentLineId == nil || *parentLineId == "" {
		return PrimaryLine{}
	}
	return AttachedLine{ParentLineId: *parentLineId}
}

type NewOrderLine struct {
	OrderId      string           `json:"orderId" binding:"required"`
	MenuItemId   string           `json:"menuItemId" binding:"required"`
	ParentLineId *string          `json:"parentLineId"`
	Quantity     int              `json:"quantity"`
	Price        *decimal.Decimal `json:"price"`
}

func validateLineQuantity(quantity int) error {
	if quantity <= 0 {
		return utils.Validation("quantity must be a positive integer")
	}
	return nil
}

// CreateOrderLine adds a line to a non-terminal order. Attached lines must
// point at a primary line of the same order and carry a SUPPLEMENT or OPTION item.
func (lc *OrderLifecycle) CreateOrderLine(ctx context.Context, input *NewOrderLine) (*OrderLine, error) {
	if err := validateLineQuantity(input.Quantity); err != nil {
		return nil, err
	}
	if input.Price != nil && input.Price.IsNegative() {
		return nil, utils.Validation("price must not be negative")
	}

	unlock, err := lc.lockOrder(ctx, input.OrderId)
	if err != nil {
		return nil, err
	}
	defer unlock()

	placement := PlacementFor(input.ParentLineId)
	var line OrderLine
	err = lc.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		order, err := utils.FetchModelTx[Order](tx, input.OrderId)
		if err != nil {
			return err
		}
		if order.Status.IsTerminal() {
			return utils.Validation("order %s is %s and cannot take new lines", order.ID, order.Status)
		}
		item, err := utils.FetchModelTx[MenuItem](tx, input.MenuItemId)
		if err != nil {
			return err
		}
		if attached, ok := placement.(AttachedLine); ok {
			if err := validateAttachment(tx, order.ID, attached, item); err != nil {
				return err
			}
		}

		line = OrderLine{
			OrderId:      order.ID,
			MenuItemId:   item.ID,
			ParentLineId: placement.parentLineId(),
			Quantity:     input.Quantity,
			Price:        utils.DereferencePtr(input.Price, utils.DereferencePtr(item.Price)),
		}
		return tx.Create(&line).Error
	})
	if err != nil {
		return nil, err
	}
	return &line, nil
}

func validateAttachment(tx *gorm.DB, orderId string, attached AttachedLine, item *MenuItem) error {
	if !item.IsAttachable() {
		return utils.Validation("menu item %s must be tagged SUPPLEMENT or OPTION to be attached", item.ID)
	}
	parent, err := utils.FetchModelTx[OrderLine](tx, attached.ParentLineId)
	if err != nil {
		return err
	}
	if parent.OrderId != orderId {
		return utils.Validation("parent line %s belongs to another order", parent.ID)
	}
	if parent.ParentLineId != nil {
		return utils.Validation("parent line %s is itself attached", parent.ID)
	}
	return nil
}

func (lc *OrderLifecycle) UpdateOrderLineQuantity(ctx context.Context, id string, quantity int) (*OrderLine, error) {
	if err := validateLineQuantity(quantity); err != nil {
		return nil, err
	}
	line, err := utils.FetchModelTx[OrderLine](lc.DB.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}

	unlock, err := lc.lockOrder(ctx, line.OrderId)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return lc.setLineQuantity(ctx, line.OrderId, id, quantity)
}

// setLineQuantity runs under the order lock. The line is read again inside
// the transaction since it may have gone while the lock was awaited.
func (lc *OrderLifecycle) setLineQuantity(ctx context.Context, orderId string, id string, quantity int) (*OrderLine, error) {
	var line *OrderLine
	err := lc.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if line, err = editableLine(tx, orderId, id); err != nil {
			return err
		}
		return tx.Model(line).Updates(map[string]interface{}{"Quantity": quantity}).Error
	})
	if err != nil {
		return nil, err
	}
	line.Quantity = quantity
	return line, nil
}

// DeleteOrderLine removes the line and anything attached to it.
func (lc *OrderLifecycle) DeleteOrderLine(ctx context.Context, id string) (*OrderLine, error) {
	line, err := utils.FetchModelTx[OrderLine](lc.DB.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}

	unlock, err := lc.lockOrder(ctx, line.OrderId)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return lc.removeLine(ctx, line.OrderId, id)
}

func (lc *OrderLifecycle) removeLine(ctx context.Context, orderId string, id string) (*OrderLine, error) {
	var line *OrderLine
	err := lc.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if line, err = editableLine(tx, orderId, id); err != nil {
			return err
		}
		if err := tx.Where("parent_line_id = ?", line.ID).Delete(&OrderLine{}).Error; err != nil {
			return err
		}
		return tx.Delete(line).Error
	})
	if err != nil {
		return nil, err
	}
	return line, nil
}

// editableLine loads a line of a still editable order inside tx.
func editableLine(tx *gorm.DB, orderId string, id string) (*OrderLine, error) {
	order, err := utils.FetchModelTx[Order](tx, orderId)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, utils.Validation("order %s is %s and its lines cannot change", order.ID, order.Status)
	}
	line, err := utils.FetchModelTx[OrderLine](tx, id)
	if err != nil {
		return nil, err
	}
	if line.OrderId != orderId {
		return nil, utils.NotFound("OrderLine %s not found", id)
	}
	return line, nil
}

func (lc *OrderLifecycle) ListOrderLines(ctx context.Context, orderId string) ([]*OrderLine, error) {
	if err := utils.ValidateResourceId[Order](ctx, lc.DB, orderId); err != nil {
		return nil, err
	}
	var lines []*OrderLine
	if err := lc.DB.WithContext(ctx).Where("order_id = ?", orderId).
		Order("created_at").Order("id").Find(&lines).Error; err != nil {
		return nil, err
	}
	return lines, nil
}
