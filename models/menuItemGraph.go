package models

import (
	"context"
	"errors"
	"sort"

	"gorm.io/gorm"
)

// MenuItemGraph is the read view of the catalog the BOM resolver walks.
// Item returns (nil, nil) when the id is unknown; soft-deleted items are
// still visible so old orders keep resolving.
type MenuItemGraph interface {
	Item(ctx context.Context, id string) (*MenuItem, error)
	Children(ctx context.Context, id string) ([]MenuItemLink, error)
}

// StoreGraph answers every lookup with a query. Good for single-item
// explosions; reports use a GraphSnapshot instead.
type StoreGraph struct {
	DB *gorm.DB
}

func NewStoreGraph(db *gorm.DB) *StoreGraph {
	return &StoreGraph{DB: db}
}

func (g *StoreGraph) Item(ctx context.Context, id string) (*MenuItem, error) {
	var item MenuItem
	err := g.DB.WithContext(ctx).Unscoped().Where("id = ?", id).Take(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (g *StoreGraph) Children(ctx context.Context, id string) ([]MenuItemLink, error) {
	var links []MenuItemLink
	err := g.DB.WithContext(ctx).Where("parent_menu_item_id = ?", id).Order("id").Find(&links).Error
	return links, err
}

// GraphSnapshot is an in-memory copy of the whole composition graph.
type GraphSnapshot struct {
	items    map[string]*MenuItem
	children map[string][]MenuItemLink
}

// NewGraphSnapshot builds a snapshot from already loaded rows.
func NewGraphSnapshot(items []*MenuItem, links []MenuItemLink) *GraphSnapshot {
	g := &GraphSnapshot{
		items:    make(map[string]*MenuItem, len(items)),
		children: make(map[string][]MenuItemLink),
	}
	for _, it := range items {
		g.items[it.ID] = it
	}
	for _, l := range links {
		g.children[l.ParentMenuItemId] = append(g.children[l.ParentMenuItemId], l)
	}
	for parent := range g.children {
		edges := g.children[parent]
		sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })
	}
	return g
}

// LoadGraphSnapshot reads every item and link through tx. Run it inside the
// report's read transaction so items and links come from one point in time.
func LoadGraphSnapshot(ctx context.Context, tx *gorm.DB) (*GraphSnapshot, error) {
	var items []*MenuItem
	if err := tx.WithContext(ctx).Unscoped().
		Select("id", "name", "variant", "tags", "unit", "average_price", "price", "deleted_at").
		Find(&items).Error; err != nil {
		return nil, err
	}
	var links []MenuItemLink
	if err := tx.WithContext(ctx).Find(&links).Error; err != nil {
		return nil, err
	}
	return NewGraphSnapshot(items, links), nil
}

func (g *GraphSnapshot) Item(_ context.Context, id string) (*MenuItem, error) {
	return g.items[id], nil
}

func (g *GraphSnapshot) Children(_ context.Context, id string) ([]MenuItemLink, error) {
	return g.children[id], nil
}

func (g *GraphSnapshot) ItemCount() int {
	return len(g.items)
}
