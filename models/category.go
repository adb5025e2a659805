package models

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"gorm.io/gorm"
)

type Category struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Name       string    `gorm:"size:100;not null;index" json:"name"`
	IsUnlisted *bool     `gorm:"not null;default:false" json:"isUnlisted"`
	IconName   *string   `gorm:"size:100" json:"iconName"`
	Index      *int      `gorm:"column:sort_index" json:"index"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewCategory struct {
	Name       string  `json:"name" binding:"required"`
	IsUnlisted *bool   `json:"isUnlisted"`
	IconName   *string `json:"iconName"`
	Index      *int    `json:"index"`
}

func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func (input *NewCategory) validate(ctx context.Context, id string) error {
	input.Name = strings.TrimSpace(input.Name)
	if input.Name == "" {
		return utils.Validation("name is required")
	}
	return utils.ValidateUnique[Category](ctx, config.GetDB(), "name", input.Name, id)
}

func CreateCategory(ctx context.Context, input *NewCategory) (*Category, error) {
	if err := input.validate(ctx, ""); err != nil {
		return nil, err
	}
	category := Category{
		Name:       input.Name,
		IsUnlisted: input.IsUnlisted,
		IconName:   input.IconName,
		Index:      input.Index,
	}
	if category.IsUnlisted == nil {
		category.IsUnlisted = utils.NewFalse()
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func UpdateCategory(ctx context.Context, id string, input *NewCategory) (*Category, error) {
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}
	category, err := utils.FetchModel[Category](ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"Name":     input.Name,
		"IconName": input.IconName,
		"Index":    input.Index,
	}
	if input.IsUnlisted != nil {
		updates["IsUnlisted"] = input.IsUnlisted
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(category).Updates(updates).Error; err != nil {
		return nil, err
	}
	return utils.FetchModel[Category](ctx, id)
}

// DeleteCategory detaches menu items before removing the row.
func DeleteCategory(ctx context.Context, id string) (*Category, error) {
	db := config.GetDB()
	result, err := utils.FetchModel[Category](ctx, id)
	if err != nil {
		return nil, err
	}

	tx := db.WithContext(ctx).Begin()
	if err := tx.Unscoped().Model(&MenuItem{}).Where("category_id = ?", id).Update("category_id", nil).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Delete(result).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	return result, tx.Commit().Error
}

func GetCategory(ctx context.Context, id string) (*Category, error) {
	return utils.FetchModel[Category](ctx, id)
}

func ListCategories(ctx context.Context, search string, includeUnlisted bool) ([]*Category, error) {
	db := config.GetDB()
	var results []*Category

	dbCtx := db.WithContext(ctx)
	if s := strings.TrimSpace(search); s != "" {
		dbCtx = dbCtx.Where("name LIKE ?", "%"+s+"%")
	}
	if !includeUnlisted {
		dbCtx = dbCtx.Where("is_unlisted = ?", false)
	}
	err := dbCtx.Order("sort_index").Order("name").Find(&results).Error
	if err != nil {
		return nil, err
	}
	return results, nil
}
