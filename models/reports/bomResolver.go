package reports

import (
	"context"

	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/models"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// BOMResolver explodes a menu item into the raw materials it consumes.
type BOMResolver struct {
	Graph  models.MenuItemGraph
	Logger *logrus.Logger
}

func NewBOMResolver(graph models.MenuItemGraph) *BOMResolver {
	return &BOMResolver{Graph: graph, Logger: config.GetLogger()}
}

// Resolve returns raw material id -> quantity consumed by producing quantity
// units of itemId. visited holds the ids on the current path from the root;
// pass nil at the top. Each branch gets its own copy, so an item shared by
// two recipes is counted twice while a cycle on one path is cut.
func (r *BOMResolver) Resolve(ctx context.Context, itemId string, quantity decimal.Decimal, visited map[string]struct{}) (map[string]decimal.Decimal, error) {
	result := map[string]decimal.Decimal{}
	if err := r.resolve(ctx, itemId, quantity, decimal.NewFromInt(1), visited, result); err != nil {
		return nil, err
	}
	return result, nil
}

// resolve walks with the path quantity kept as numerator/yields so the only
// rounding division happens once per raw material reached.
func (r *BOMResolver) resolve(ctx context.Context, itemId string, numerator, yields decimal.Decimal, visited map[string]struct{}, result map[string]decimal.Decimal) error {
	item, err := r.Graph.Item(ctx, itemId)
	if err != nil {
		return err
	}
	if item == nil {
		r.logDangling(itemId)
		return nil
	}
	if item.IsRawMaterial() {
		qty := numerator
		if !yields.Equal(decimal.NewFromInt(1)) {
			qty = numerator.Div(yields)
		}
		result[itemId] = result[itemId].Add(qty)
		return nil
	}

	edges, err := r.Graph.Children(ctx, itemId)
	if err != nil {
		return err
	}
	if len(edges) == 0 {
		return nil
	}

	branch := make(map[string]struct{}, len(visited)+1)
	for id := range visited {
		branch[id] = struct{}{}
	}
	branch[itemId] = struct{}{}

	for _, edge := range edges {
		if _, seen := branch[edge.SubMenuItemId]; seen {
			r.logger().WithFields(logrus.Fields{
				"parent": itemId,
				"child":  edge.SubMenuItemId,
			}).Debug("bom cycle skipped")
			continue
		}
		err := r.resolve(ctx, edge.SubMenuItemId, numerator.Mul(edge.Quantity), yields.Mul(edge.Yield()), branch, result)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *BOMResolver) logger() *logrus.Logger {
	if r.Logger == nil {
		return config.GetLogger()
	}
	return r.Logger
}

// a link pointing at an item that no longer exists contributes nothing
func (r *BOMResolver) logDangling(itemId string) {
	r.logger().WithFields(logrus.Fields{
		"module":   "reports",
		"funcName": "BOMResolver.Resolve",
		"item_id":  itemId,
	}).Warn("menu item not found")
}
