package reports

import (
	"context"

	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/models"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/shopspring/decimal"
)

// ExplodeMenuItem lists the raw materials consumed by producing quantity
// units of one menu item, straight from the store.
func ExplodeMenuItem(ctx context.Context, itemId string, quantity decimal.Decimal) ([]*RawMaterialConsumption, error) {
	if !quantity.IsPositive() {
		return nil, utils.Validation("quantity must be greater than zero")
	}
	graph := models.NewStoreGraph(config.GetDB())
	item, err := graph.Item(ctx, itemId)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, utils.NotFound("MenuItem %s not found", itemId)
	}

	used, err := NewBOMResolver(graph).Resolve(ctx, itemId, quantity, nil)
	if err != nil {
		return nil, err
	}
	return consumptionRows(ctx, graph, used), nil
}
