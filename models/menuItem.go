package models

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MenuItem is any catalog entry: something sold, an intermediate recipe or a
// raw material. Tags are not exclusive.
type MenuItem struct {
	ID                        string                       `gorm:"primaryKey;size:36" json:"id"`
	Name                      string                       `gorm:"size:255;not null;index" json:"name"`
	Variant                   *string                      `gorm:"size:100" json:"variant"`
	Tags                      datatypes.JSONSlice[ItemTag] `json:"tags"`
	IsAvailable               *bool                        `gorm:"not null;default:true" json:"isAvailable"`
	CategoryId                *string                      `gorm:"size:36;index" json:"categoryId"`
	Price                     *decimal.Decimal             `gorm:"type:decimal(20,4)" json:"price"`
	Cost                      *decimal.Decimal             `gorm:"type:decimal(20,4)" json:"cost"`
	AveragePrice              *decimal.Decimal             `gorm:"type:decimal(20,4)" json:"averagePrice"`
	StockQuantity             decimal.Decimal              `gorm:"type:decimal(20,4);not null;default:0" json:"stockQuantity"`
	InHouseStockQuantity      *decimal.Decimal             `gorm:"type:decimal(20,4)" json:"inHouseStockQuantity"`
	InShopStockQuantity       *decimal.Decimal             `gorm:"type:decimal(20,4)" json:"inShopStockQuantity"`
	ProducedQuantityPerRecipe *decimal.Decimal             `gorm:"type:decimal(20,4)" json:"producedQuantityPerRecipe"`
	Unit                      *Unit                        `gorm:"size:20" json:"unit"`
	Image                     *string                      `gorm:"size:512" json:"image"`
	ThumbnailImage            *string                      `gorm:"size:512" json:"thumbnailImage"`
	Description               *string                      `gorm:"type:text" json:"description"`
	CreatedAt                 time.Time                    `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt                 time.Time                    `gorm:"autoUpdateTime" json:"updatedAt"`
	DeletedAt                 gorm.DeletedAt               `gorm:"index" json:"-"`
}

type NewMenuItem struct {
	Name                      string           `json:"name" binding:"required"`
	Variant                   *string          `json:"variant"`
	Tags                      []ItemTag        `json:"tags" binding:"required,min=1"`
	IsAvailable               *bool            `json:"isAvailable"`
	CategoryId                *string          `json:"categoryId"`
	Price                     *decimal.Decimal `json:"price"`
	Cost                      *decimal.Decimal `json:"cost"`
	AveragePrice              *decimal.Decimal `json:"averagePrice"`
	StockQuantity             *decimal.Decimal `json:"stockQuantity"`
	InHouseStockQuantity      *decimal.Decimal `json:"inHouseStockQuantity"`
	InShopStockQuantity       *decimal.Decimal `json:"inShopStockQuantity"`
	ProducedQuantityPerRecipe *decimal.Decimal `json:"producedQuantityPerRecipe"`
	Unit                      *Unit            `json:"unit"`
	Description               *string          `json:"description"`
}

type MenuItemFilter struct {
	Search      string
	Tag         ItemTag
	CategoryId  string
	IsAvailable *bool
	Limit       int
	Offset      int
}

func (item *MenuItem) BeforeCreate(tx *gorm.DB) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	return nil
}

func (item MenuItem) HasTag(tag ItemTag) bool {
	for _, t := range item.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

func (item MenuItem) IsRawMaterial() bool {
	return item.HasTag(ItemTagRawMaterial)
}

// IsAttachable reports whether the item may hang off a primary order line.
func (item MenuItem) IsAttachable() bool {
	return item.HasTag(ItemTagSupplement) || item.HasTag(ItemTagOption)
}

// validate input for both create & update. (id = "" for create)
func (input *NewMenuItem) validate(ctx context.Context, db *gorm.DB) error {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return utils.Validation("name is required")
	}
	if len(input.Tags) == 0 {
		return utils.Validation("at least one tag is required")
	}
	for _, t := range input.Tags {
		if !t.IsValid() {
			return utils.Validation("invalid tag %q", t)
		}
	}
	input.Tags = utils.UniqueSlice(input.Tags)
	if input.Unit != nil && !input.Unit.IsValid() {
		return utils.Validation("invalid unit %q", *input.Unit)
	}
	for _, t := range input.Tags {
		if t == ItemTagRawMaterial && input.Unit == nil {
			return utils.Validation("unit is required for raw materials")
		}
	}
	for name, v := range map[string]*decimal.Decimal{
		"price":        input.Price,
		"cost":         input.Cost,
		"averagePrice": input.AveragePrice,
	} {
		if v != nil && v.IsNegative() {
			return utils.Validation("%s must not be negative", name)
		}
	}
	if input.ProducedQuantityPerRecipe != nil && !input.ProducedQuantityPerRecipe.IsPositive() {
		return utils.Validation("producedQuantityPerRecipe must be greater than zero")
	}
	if input.CategoryId != nil && *input.CategoryId != "" {
		if err := utils.ValidateResourceId[Category](ctx, db, *input.CategoryId); err != nil {
			return err
		}
	}
	return nil
}

func CreateMenuItem(ctx context.Context, input *NewMenuItem) (*MenuItem, error) {
	db := config.GetDB()
	if err := input.validate(ctx, db); err != nil {
		return nil, err
	}

	item := MenuItem{
		Name:                      input.Name,
		Variant:                   input.Variant,
		Tags:                      datatypes.NewJSONSlice(input.Tags),
		IsAvailable:               utils.NewTrue(),
		CategoryId:                input.CategoryId,
		Price:                     input.Price,
		Cost:                      input.Cost,
		AveragePrice:              input.AveragePrice,
		StockQuantity:             utils.DereferencePtr(input.StockQuantity, decimal.Zero),
		InHouseStockQuantity:      input.InHouseStockQuantity,
		InShopStockQuantity:       input.InShopStockQuantity,
		ProducedQuantityPerRecipe: input.ProducedQuantityPerRecipe,
		Unit:                      input.Unit,
		Description:               input.Description,
	}
	if input.IsAvailable != nil {
		item.IsAvailable = input.IsAvailable
	}

	if err := db.WithContext(ctx).Create(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

func UpdateMenuItem(ctx context.Context, id string, input *NewMenuItem) (*MenuItem, error) {
	db := config.GetDB()
	if err := input.validate(ctx, db); err != nil {
		return nil, err
	}
	item, err := utils.FetchModel[MenuItem](ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"Name":                      input.Name,
		"Variant":                   input.Variant,
		"Tags":                      datatypes.NewJSONSlice(input.Tags),
		"CategoryId":                input.CategoryId,
		"Price":                     input.Price,
		"Cost":                      input.Cost,
		"AveragePrice":              input.AveragePrice,
		"InHouseStockQuantity":      input.InHouseStockQuantity,
		"InShopStockQuantity":       input.InShopStockQuantity,
		"ProducedQuantityPerRecipe": input.ProducedQuantityPerRecipe,
		"Unit":                      input.Unit,
		"Description":               input.Description,
	}
	if input.IsAvailable != nil {
		updates["IsAvailable"] = input.IsAvailable
	}
	if input.StockQuantity != nil {
		updates["StockQuantity"] = *input.StockQuantity
	}
	if err := db.WithContext(ctx).Model(item).Updates(updates).Error; err != nil {
		return nil, err
	}
	// tags, yields and average prices feed the consumption report
	InvalidateSalesReports(ctx)
	return utils.FetchModel[MenuItem](ctx, id)
}

// SetMenuItemImages stores the public urls of an uploaded image and its thumbnail.
func SetMenuItemImages(ctx context.Context, id string, imageURL string, thumbnailURL string) (*MenuItem, error) {
	item, err := utils.FetchModel[MenuItem](ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	err = db.WithContext(ctx).Model(item).Updates(map[string]interface{}{
		"Image":          imageURL,
		"ThumbnailImage": thumbnailURL,
	}).Error
	if err != nil {
		return nil, err
	}
	item.Image = &imageURL
	item.ThumbnailImage = &thumbnailURL
	return item, nil
}

// DeleteMenuItem soft deletes; composition links and past order lines keep
// pointing at the row so historical reports still resolve.
func DeleteMenuItem(ctx context.Context, id string) (*MenuItem, error) {
	item, err := utils.FetchModel[MenuItem](ctx, id)
	if err != nil {
		return nil, err
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Delete(item).Error; err != nil {
		return nil, err
	}
	InvalidateSalesReports(ctx)
	return item, nil
}

func GetMenuItem(ctx context.Context, id string) (*MenuItem, error) {
	return utils.FetchModel[MenuItem](ctx, id)
}

func ListMenuItems(ctx context.Context, filter MenuItemFilter) ([]*MenuItem, error) {
	db := config.GetDB()
	limit, offset := utils.ClampLimit(filter.Limit, filter.Offset)

	dbCtx := db.WithContext(ctx)
	if s := strings.TrimSpace(filter.Search); s != "" {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+s+"%")
	}
	if filter.Tag != "" {
		if !filter.Tag.IsValid() {
			return nil, utils.Validation("invalid tag %q", filter.Tag)
		}
		dbCtx = dbCtx.Where(datatypes.JSONArrayQuery("tags").Contains(string(filter.Tag)))
	}
	if filter.CategoryId != "" {
		dbCtx = dbCtx.Where("category_id = ?", filter.CategoryId)
	}
	if filter.IsAvailable != nil {
		dbCtx = dbCtx.Where("is_available = ?", *filter.IsAvailable)
	}

	var results []*MenuItem
	err := dbCtx.Order("name").Order("id").Limit(limit).Offset(offset).Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
