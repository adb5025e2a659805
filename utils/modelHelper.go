package utils

import (
	"context"
	"errors"
	"reflect"

	"github.com/mmdatafocus/kitchen_backend/config"
	"gorm.io/gorm"
)

/* DB fetching */

// fetch model from db
// (returns a NotFound AppError when the id does not exist)
func FetchModel[T any](ctx context.Context, id string, associations ...string) (*T, error) {
	return FetchModelTx[T](config.GetDB().WithContext(ctx), id, associations...)
}

// FetchModelTx is FetchModel inside an open transaction.
func FetchModelTx[T any](tx *gorm.DB, id string, associations ...string) (*T, error) {
	q := tx
	for _, field := range associations {
		q = q.Preload(field)
	}
	var result T
	err := q.Where("id = ?", id).Take(&result).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("%s %s not found", modelName[T](), id)
		}
		return nil, err
	}
	return &result, nil
}

func modelName[T any]() string {
	var zero T
	t := reflect.TypeOf(zero)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}
