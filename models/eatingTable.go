package models

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"gorm.io/gorm"
)

type EatingTable struct {
	ID         string          `gorm:"primaryKey;size:36" json:"id"`
	Name       *string         `gorm:"size:100" json:"name"`
	Type       EatingTableType `gorm:"size:20;not null;default:'TAKEAWAY'" json:"type"`
	IsActive   *bool           `gorm:"not null;default:true" json:"isActive"`
	OrderIndex int             `gorm:"not null;default:0;index" json:"orderIndex"`
	CreatedAt  time.Time       `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt  time.Time       `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewEatingTable struct {
	Name       *string         `json:"name"`
	Type       EatingTableType `json:"type"`
	IsActive   *bool           `json:"isActive"`
	OrderIndex *int            `json:"orderIndex"`
}

type EatingTableFilter struct {
	Search   string
	Type     EatingTableType
	IsActive *bool
	Limit    int
	Offset   int
}

func (t *EatingTable) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}

func (input *NewEatingTable) validate() error {
	if input.Type == "" {
		input.Type = EatingTableTypeTakeaway
	}
	if !input.Type.IsValid() {
		return utils.Validation("invalid eating table type %q", input.Type)
	}
	if input.OrderIndex != nil && *input.OrderIndex < 0 {
		return utils.Validation("orderIndex must not be negative")
	}
	return nil
}

// CreateEatingTable appends the table at the end of the floor order unless an
// index is given.
func CreateEatingTable(ctx context.Context, input *NewEatingTable) (*EatingTable, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	db := config.GetDB()

	table := EatingTable{
		Name:     input.Name,
		Type:     input.Type,
		IsActive: input.IsActive,
	}
	if table.IsActive == nil {
		table.IsActive = utils.NewTrue()
	}
	if input.OrderIndex != nil {
		table.OrderIndex = *input.OrderIndex
	} else {
		var maxIndex sql.NullInt64
		if err := db.WithContext(ctx).Model(&EatingTable{}).Select("MAX(order_index)").Row().Scan(&maxIndex); err != nil {
			return nil, err
		}
		if maxIndex.Valid {
			table.OrderIndex = int(maxIndex.Int64) + 1
		}
	}

	if err := db.WithContext(ctx).Create(&table).Error; err != nil {
		return nil, err
	}
	return &table, nil
}

func UpdateEatingTable(ctx context.Context, id string, input *NewEatingTable) (*EatingTable, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	table, err := utils.FetchModel[EatingTable](ctx, id)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{
		"Name": input.Name,
		"Type": input.Type,
	}
	if input.IsActive != nil {
		updates["IsActive"] = input.IsActive
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Model(table).Updates(updates).Error; err != nil {
		return nil, err
	}
	if input.OrderIndex != nil && *input.OrderIndex != table.OrderIndex {
		if _, err := ReorderEatingTable(ctx, id, *input.OrderIndex); err != nil {
			return nil, err
		}
	}
	return utils.FetchModel[EatingTable](ctx, id)
}

// DeleteEatingTable refuses while orders still reference the table.
func DeleteEatingTable(ctx context.Context, id string) (*EatingTable, error) {
	db := config.GetDB()
	table, err := utils.FetchModel[EatingTable](ctx, id)
	if err != nil {
		return nil, err
	}
	var count int64
	if err := db.WithContext(ctx).Model(&Order{}).Where("eating_table_id = ?", id).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, utils.Conflict("eating table has orders")
	}
	if err := db.WithContext(ctx).Delete(table).Error; err != nil {
		return nil, err
	}
	return table, nil
}

func GetEatingTable(ctx context.Context, id string) (*EatingTable, error) {
	return utils.FetchModel[EatingTable](ctx, id)
}

func ListEatingTables(ctx context.Context, filter EatingTableFilter) ([]*EatingTable, error) {
	return listEatingTables(config.GetDB().WithContext(ctx), filter)
}

func listEatingTables(tx *gorm.DB, filter EatingTableFilter) ([]*EatingTable, error) {
	limit, offset := utils.ClampLimit(filter.Limit, filter.Offset)
	q := tx
	if s := strings.TrimSpace(filter.Search); s != "" {
		q = q.Where("name LIKE ?", "%"+s+"%")
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.IsActive != nil {
		q = q.Where("is_active = ?", *filter.IsActive)
	}
	var results []*EatingTable
	if err := q.Order("order_index").Order("id").Limit(limit).Offset(offset).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ReorderEatingTable moves a table to newIndex and shifts the tables in
// between by one so indices stay dense.
func ReorderEatingTable(ctx context.Context, id string, newIndex int) ([]*EatingTable, error) {
	if newIndex < 0 {
		return nil, utils.Validation("orderIndex must not be negative")
	}
	db := config.GetDB()

	var results []*EatingTable
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		table, err := utils.FetchModelTx[EatingTable](tx, id)
		if err != nil {
			return err
		}
		oldIndex := table.OrderIndex

		switch {
		case newIndex > oldIndex:
			err = tx.Model(&EatingTable{}).
				Where("id <> ? AND order_index > ? AND order_index <= ?", id, oldIndex, newIndex).
				Update("order_index", gorm.Expr("order_index - 1")).Error
		case newIndex < oldIndex:
			err = tx.Model(&EatingTable{}).
				Where("id <> ? AND order_index >= ? AND order_index < ?", id, newIndex, oldIndex).
				Update("order_index", gorm.Expr("order_index + 1")).Error
		}
		if err != nil {
			return err
		}
		if err := tx.Model(table).Update("order_index", newIndex).Error; err != nil {
			return err
		}
		results, err = listEatingTables(tx, EatingTableFilter{Limit: 500})
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
