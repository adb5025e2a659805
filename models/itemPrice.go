package models

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ItemPrice is a recorded selling or buying price for a menu item.
type ItemPrice struct {
	ID          string           `gorm:"primaryKey;size:36" json:"id"`
	MenuItemId  string           `gorm:"size:36;not null;index" json:"menuItemId"`
	PriceType   PriceType        `gorm:"size:10;not null;index" json:"priceType"`
	PriceValue  decimal.Decimal  `gorm:"type:decimal(20,4);not null" json:"priceValue"`
	UnitValue   *decimal.Decimal `gorm:"type:decimal(20,4)" json:"unitValue"`
	Multiplier  decimal.Decimal  `gorm:"type:decimal(20,4);not null;default:1" json:"multiplier"`
	Description *string          `gorm:"type:text" json:"description"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time        `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewItemPrice struct {
	MenuItemId  string           `json:"menuItemId" binding:"required"`
	PriceType   PriceType        `json:"priceType" binding:"required"`
	PriceValue  decimal.Decimal  `json:"priceValue"`
	UnitValue   *decimal.Decimal `json:"unitValue"`
	Multiplier  *decimal.Decimal `json:"multiplier"`
	Description *string          `json:"description"`
}

func (p *ItemPrice) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

func CreateItemPrice(ctx context.Context, input *NewItemPrice) (*ItemPrice, error) {
	if !input.PriceType.IsValid() {
		return nil, utils.Validation("priceType must be selling or buying")
	}
	if input.PriceValue.IsNegative() {
		return nil, utils.Validation("priceValue must not be negative")
	}
	multiplier := utils.DereferencePtr(input.Multiplier, decimal.NewFromInt(1))
	if !multiplier.IsPositive() {
		return nil, utils.Validation("multiplier must be greater than zero")
	}
	db := config.GetDB()
	if err := utils.ValidateResourceId[MenuItem](ctx, db, input.MenuItemId); err != nil {
		return nil, err
	}

	price := ItemPrice{
		MenuItemId:  input.MenuItemId,
		PriceType:   input.PriceType,
		PriceValue:  input.PriceValue,
		UnitValue:   input.UnitValue,
		Multiplier:  multiplier,
		Description: input.Description,
	}
	if err := db.WithContext(ctx).Create(&price).Error; err != nil {
		return nil, err
	}
	return &price, nil
}

func DeleteItemPrice(ctx context.Context, id string) (*ItemPrice, error) {
	price, err := utils.FetchModel[ItemPrice](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := config.GetDB().WithContext(ctx).Delete(price).Error; err != nil {
		return nil, err
	}
	return price, nil
}

// ListItemPrices returns the newest prices first; an empty priceType lists both kinds.
func ListItemPrices(ctx context.Context, menuItemId string, priceType PriceType) ([]*ItemPrice, error) {
	q := config.GetDB().WithContext(ctx).Where("menu_item_id = ?", menuItemId)
	if priceType != "" {
		if !priceType.IsValid() {
			return nil, utils.Validation("priceType must be selling or buying")
		}
		q = q.Where("price_type = ?", priceType)
	}
	var results []*ItemPrice
	if err := q.Order("created_at DESC").Order("id").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
