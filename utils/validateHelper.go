package utils

import (
	"context"

	"gorm.io/gorm"
)

// check if id exists, return a NotFound error naming the model otherwise
func ValidateResourceId[T any](ctx context.Context, tx *gorm.DB, id string) error {
	var count int64
	var model T
	if err := tx.WithContext(ctx).Model(&model).Where("id = ?", id).Count(&count).Error; err != nil {
		return err
	}
	if count <= 0 {
		return NotFound("%s %s not found", modelName[T](), id)
	}
	return nil
}

// ValidateUnique fails with Conflict when another row already holds value in column.
func ValidateUnique[T any](ctx context.Context, tx *gorm.DB, column string, value interface{}, exceptId string) error {
	var count int64
	var model T
	q := tx.WithContext(ctx).Model(&model).Where(column+" = ?", value)
	if exceptId != "" {
		q = q.Where("id <> ?", exceptId)
	}
	if err := q.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return Conflict("%s with %s %v already exists", modelName[T](), column, value)
	}
	return nil
}
