package models_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// openTestDB installs a fresh migrated sqlite store as the global handle.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "kitchen.db")), config.GormConfig())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	prev := config.GetDB()
	config.SetDB(db)
	t.Cleanup(func() {
		config.SetDB(prev)
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

type notifyCall struct {
	role  string
	event models.OrderEvent
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []notifyCall
}

func (n *recordingNotifier) Notify(_ context.Context, role string, event models.OrderEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, notifyCall{role: role, event: event})
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

func mustCreateTable(t *testing.T, ctx context.Context) *models.EatingTable {
	t.Helper()
	name := "T1"
	table, err := models.CreateEatingTable(ctx, &models.NewEatingTable{Name: &name, Type: models.EatingTableTypeTakeaway})
	if err != nil {
		t.Fatalf("CreateEatingTable: %v", err)
	}
	return table
}

func mustCreateItem(t *testing.T, ctx context.Context, name string, price int64, tags ...models.ItemTag) *models.MenuItem {
	t.Helper()
	p := decimal.NewFromInt(price)
	input := &models.NewMenuItem{Name: name, Tags: tags, Price: &p}
	for _, tag := range tags {
		if tag == models.ItemTagRawMaterial {
			unit := models.UnitGramme
			input.Unit = &unit
		}
	}
	item, err := models.CreateMenuItem(ctx, input)
	if err != nil {
		t.Fatalf("CreateMenuItem(%s): %v", name, err)
	}
	return item
}

func statusPtr(s models.OrderStatus) *models.OrderStatus {
	return &s
}
