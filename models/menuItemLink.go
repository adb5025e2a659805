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

// MenuItemLink is a composition edge: producing ProducedMenuItemsQuantity
// units of the parent consumes Quantity units of the sub item.
type MenuItemLink struct {
	ID                        string          `gorm:"primaryKey;size:36" json:"id"`
	ParentMenuItemId          string          `gorm:"size:36;not null;uniqueIndex:idx_menu_item_link_pair,priority:1" json:"parentMenuItemId"`
	SubMenuItemId             string          `gorm:"size:36;not null;index;uniqueIndex:idx_menu_item_link_pair,priority:2" json:"subMenuItemId"`
	Quantity                  decimal.Decimal `gorm:"type:decimal(20,6);not null" json:"quantity"`
	ProducedMenuItemsQuantity decimal.Decimal `gorm:"type:decimal(20,6);not null;default:1" json:"producedMenuItemsQuantity"`
	CreatedAt                 time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt                 time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewMenuItemLink struct {
	ParentMenuItemId          string           `json:"parentMenuItemId" binding:"required"`
	SubMenuItemId             string           `json:"subMenuItemId" binding:"required"`
	Quantity                  decimal.Decimal  `json:"quantity"`
	ProducedMenuItemsQuantity *decimal.Decimal `json:"producedMenuItemsQuantity"`
}

type UpdateMenuItemLinkInput struct {
	Quantity                  *decimal.Decimal `json:"quantity"`
	ProducedMenuItemsQuantity *decimal.Decimal `json:"producedMenuItemsQuantity"`
}

// MenuItemLinkDetail is a link joined with the item on its far side.
type MenuItemLinkDetail struct {
	MenuItemLink
	Item *MenuItem `json:"item"`
}

func (l *MenuItemLink) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}

// Yield is the batch size, treating a missing or non-positive value as 1.
func (l MenuItemLink) Yield() decimal.Decimal {
	if !l.ProducedMenuItemsQuantity.IsPositive() {
		return decimal.NewFromInt(1)
	}
	return l.ProducedMenuItemsQuantity
}

func validateLinkQuantities(quantity decimal.Decimal, yield *decimal.Decimal) error {
	if !quantity.IsPositive() {
		return utils.Validation("quantity must be greater than zero")
	}
	if yield != nil && !yield.IsPositive() {
		return utils.Validation("producedMenuItemsQuantity must be greater than zero")
	}
	return nil
}

func CreateMenuItemLink(ctx context.Context, input *NewMenuItemLink) (*MenuItemLink, error) {
	if input.ParentMenuItemId == input.SubMenuItemId {
		return nil, utils.Validation("a menu item cannot be composed of itself")
	}
	if err := validateLinkQuantities(input.Quantity, input.ProducedMenuItemsQuantity); err != nil {
		return nil, err
	}

	db := config.GetDB()
	link := MenuItemLink{
		ParentMenuItemId:          input.ParentMenuItemId,
		SubMenuItemId:             input.SubMenuItemId,
		Quantity:                  input.Quantity,
		ProducedMenuItemsQuantity: utils.DereferencePtr(input.ProducedMenuItemsQuantity, decimal.NewFromInt(1)),
	}

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := utils.ValidateResourceId[MenuItem](ctx, tx, input.ParentMenuItemId); err != nil {
			return err
		}
		if err := utils.ValidateResourceId[MenuItem](ctx, tx, input.SubMenuItemId); err != nil {
			return err
		}
		var count int64
		if err := tx.Model(&MenuItemLink{}).
			Where("parent_menu_item_id = ? AND sub_menu_item_id = ?", input.ParentMenuItemId, input.SubMenuItemId).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return utils.Conflict("sub menu item is already linked to this parent")
		}
		if err := tx.Create(&link).Error; err != nil {
			// lost a race with a concurrent insert of the same pair
			if utils.IsDuplicateKeyError(err) {
				return utils.Conflict("sub menu item is already linked to this parent")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	InvalidateSalesReports(ctx)
	return &link, nil
}

func UpdateMenuItemLink(ctx context.Context, id string, input *UpdateMenuItemLinkInput) (*MenuItemLink, error) {
	link, err := utils.FetchModel[MenuItemLink](ctx, id)
	if err != nil {
		return nil, err
	}
	quantity := utils.DereferencePtr(input.Quantity, link.Quantity)
	if err := validateLinkQuantities(quantity, input.ProducedMenuItemsQuantity); err != nil {
		return nil, err
	}

	updates := map[string]interface{}{"Quantity": quantity}
	if input.ProducedMenuItemsQuantity != nil {
		updates["ProducedMenuItemsQuantity"] = *input.ProducedMenuItemsQuantity
	}
	if err := config.GetDB().WithContext(ctx).Model(link).Updates(updates).Error; err != nil {
		return nil, err
	}
	InvalidateSalesReports(ctx)
	return utils.FetchModel[MenuItemLink](ctx, id)
}

func DeleteMenuItemLink(ctx context.Context, id string) (*MenuItemLink, error) {
	link, err := utils.FetchModel[MenuItemLink](ctx, id)
	if err != nil {
		return nil, err
	}
	if err := config.GetDB().WithContext(ctx).Delete(link).Error; err != nil {
		return nil, err
	}
	InvalidateSalesReports(ctx)
	return link, nil
}

// ListSubMenuItems returns the direct components of parentId with their items.
func ListSubMenuItems(ctx context.Context, parentId string) ([]*MenuItemLinkDetail, error) {
	return listLinkDetails(ctx, "parent_menu_item_id = ?", parentId, func(l MenuItemLink) string { return l.SubMenuItemId })
}

// ListMenuItemUsages returns the links where subId is a component, joined with the parents.
func ListMenuItemUsages(ctx context.Context, subId string) ([]*MenuItemLinkDetail, error) {
	return listLinkDetails(ctx, "sub_menu_item_id = ?", subId, func(l MenuItemLink) string { return l.ParentMenuItemId })
}

func listLinkDetails(ctx context.Context, cond string, id string, farSide func(MenuItemLink) string) ([]*MenuItemLinkDetail, error) {
	db := config.GetDB().WithContext(ctx)

	var links []MenuItemLink
	if err := db.Where(cond, id).Order("created_at").Order("id").Find(&links).Error; err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return []*MenuItemLinkDetail{}, nil
	}

	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, farSide(l))
	}
	var items []*MenuItem
	if err := db.Unscoped().Where("id IN ?", utils.UniqueSlice(ids)).Find(&items).Error; err != nil {
		return nil, err
	}
	byId := make(map[string]*MenuItem, len(items))
	for _, it := range items {
		byId[it.ID] = it
	}

	results := make([]*MenuItemLinkDetail, 0, len(links))
	for _, l := range links {
		results = append(results, &MenuItemLinkDetail{MenuItemLink: l, Item: byId[farSide(l)]})
	}
	return results, nil
}
