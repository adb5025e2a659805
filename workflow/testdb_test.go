package workflow_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/models"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "workflow.db")), config.GormConfig())
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

// fakePublisher records every message and fails while err is set.
type fakePublisher struct {
	mu         sync.Mutex
	err        error
	externalId string
	published  []config.OrderEventMessage
}

func (p *fakePublisher) Publish(_ context.Context, msg config.OrderEventMessage) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, msg)
	if p.err != nil {
		return "", p.err
	}
	return p.externalId, nil
}

func (p *fakePublisher) setErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.err = err
}

func (p *fakePublisher) messages() []config.OrderEventMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]config.OrderEventMessage(nil), p.published...)
}

var errBrokerDown = errors.New("broker down")
