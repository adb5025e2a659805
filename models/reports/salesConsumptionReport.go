package reports

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/models"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("kitchen-backend/reports")

type ItemSales struct {
	MenuItemId string          `json:"menuItemId"`
	Name       string          `json:"name"`
	Variant    *string         `json:"variant"`
	Quantity   int64           `json:"quantity"`
	Revenue    decimal.Decimal `json:"revenue"`
}

type RawMaterialConsumption struct {
	MenuItemId   string           `json:"menuItemId"`
	Name         string           `json:"name"`
	Unit         *models.Unit     `json:"unit"`
	Quantity     decimal.Decimal  `json:"quantity"`
	AveragePrice *decimal.Decimal `json:"averagePrice"`
	// EstimatedCost is Quantity x AveragePrice, nil when no average price is known.
	EstimatedCost *decimal.Decimal `json:"estimatedCost"`
}

type SalesConsumptionReport struct {
	From                   time.Time                 `json:"from"`
	To                     time.Time                 `json:"to"`
	TotalRevenue           decimal.Decimal           `json:"totalRevenue"`
	OrderCount             int64                     `json:"orderCount"`
	PerItemSales           []*ItemSales              `json:"perItemSales"`
	PerSupplementSales     []*ItemSales              `json:"perSupplementSales"`
	RawMaterialConsumption []*RawMaterialConsumption `json:"rawMaterialConsumption"`

	catalogItems int
}

// SalesAggregator builds the paid-sales and ingredient drawdown report.
type SalesAggregator struct {
	DB     *gorm.DB
	Logger *logrus.Logger
}

func NewSalesAggregator() *SalesAggregator {
	return &SalesAggregator{DB: config.GetDB(), Logger: config.GetLogger()}
}

// Aggregate covers PAID orders created within [start, end], both ends included.
func (a *SalesAggregator) Aggregate(ctx context.Context, start, end time.Time) (*SalesConsumptionReport, error) {
	start, end = start.UTC(), end.UTC()
	if end.Before(start) {
		return nil, utils.Validation("end must not be before start")
	}

	ctx, span := tracer.Start(ctx, "reports.SalesAggregator.Aggregate", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()
	started := time.Now()
	defer logSlowReport(ctx, "sales_consumption_report", started, map[string]any{
		"from": start.Format(time.RFC3339Nano),
		"to":   end.Format(time.RFC3339Nano),
	})

	if reportCacheEnabled() {
		key := fmt.Sprintf(models.SalesReportCachePrefix+"%s:%s", start.Format(time.RFC3339Nano), end.Format(time.RFC3339Nano))
		var cached SalesConsumptionReport
		if ok, err := cacheGet(key, &cached); err == nil && ok {
			annotateSpan(span, &cached, true)
			return &cached, nil
		}
		report, err := a.aggregate(ctx, start, end)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if err := cacheSet(key, report, reportCacheTTL()); err != nil {
			config.LogError(a.logger(), "reports", "Aggregate", "cache report", key, err)
		}
		annotateSpan(span, report, false)
		return report, nil
	}

	report, err := a.aggregate(ctx, start, end)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	annotateSpan(span, report, false)
	return report, nil
}

// catalog_items is unknown for a report read back from the cache.
func annotateSpan(span trace.Span, report *SalesConsumptionReport, cacheHit bool) {
	span.SetAttributes(
		attribute.Bool("cache_hit", cacheHit),
		attribute.Int64("orders", report.OrderCount),
		attribute.Int("raw_materials", len(report.RawMaterialConsumption)),
	)
	if !cacheHit {
		span.SetAttributes(attribute.Int("catalog_items", report.catalogItems))
	}
}

func (a *SalesAggregator) logger() *logrus.Logger {
	if a.Logger == nil {
		return config.GetLogger()
	}
	return a.Logger
}

// orders, lines and the catalog graph are read in one transaction so the
// report sees a single point in time
func (a *SalesAggregator) aggregate(ctx context.Context, start, end time.Time) (*SalesConsumptionReport, error) {
	var (
		orderCount int64
		lines      []models.OrderLine
		graph      *models.GraphSnapshot
	)
	paidOrders := func(tx *gorm.DB) *gorm.DB {
		return tx.Model(&models.Order{}).
			Where("status = ? AND created_at >= ? AND created_at <= ?", models.OrderStatusPaid, start, end)
	}

	db := a.DB.WithContext(ctx)
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := paidOrders(tx).Count(&orderCount).Error; err != nil {
			return err
		}
		if err := tx.Where("order_id IN (?)", paidOrders(tx).Select("id")).
			Order("id").Find(&lines).Error; err != nil {
			return err
		}
		var err error
		graph, err = models.LoadGraphSnapshot(ctx, tx)
		return err
	}, snapshotTxOptions(db)...)
	if err != nil {
		return nil, err
	}

	report := &SalesConsumptionReport{
		From:         start,
		To:           end,
		TotalRevenue: decimal.Zero,
		OrderCount:   orderCount,
		catalogItems: graph.ItemCount(),
	}
	itemSales := map[string]*ItemSales{}
	supplementSales := map[string]*ItemSales{}
	consumed := map[string]decimal.Decimal{}
	resolver := &BOMResolver{Graph: graph, Logger: a.logger()}

	for _, line := range lines {
		qty := decimal.NewFromInt(int64(line.Quantity))
		revenue := line.Price.Mul(qty)
		report.TotalRevenue = report.TotalRevenue.Add(revenue)

		item, _ := graph.Item(ctx, line.MenuItemId)
		if item == nil {
			a.logger().WithFields(logrus.Fields{
				"order_line_id": line.ID,
				"menu_item_id":  line.MenuItemId,
			}).Warn("sold menu item not found")
			continue
		}
		if item.HasTag(models.ItemTagPrimaryItem) {
			addSales(itemSales, item, line.Quantity, revenue)
		}
		if item.IsAttachable() {
			addSales(supplementSales, item, line.Quantity, revenue)
		}

		used, err := resolver.Resolve(ctx, line.MenuItemId, qty, nil)
		if err != nil {
			return nil, err
		}
		for id, q := range used {
			consumed[id] = consumed[id].Add(q)
		}
	}

	report.PerItemSales = sortedSales(itemSales)
	report.PerSupplementSales = sortedSales(supplementSales)
	report.RawMaterialConsumption = consumptionRows(ctx, graph, consumed)
	return report, nil
}

// sqlite has no isolation levels to ask for
func snapshotTxOptions(db *gorm.DB) []*sql.TxOptions {
	switch db.Dialector.Name() {
	case "mysql", "postgres":
		return []*sql.TxOptions{{Isolation: sql.LevelRepeatableRead, ReadOnly: true}}
	}
	return nil
}

func addSales(bucket map[string]*ItemSales, item *models.MenuItem, quantity int, revenue decimal.Decimal) {
	row, ok := bucket[item.ID]
	if !ok {
		row = &ItemSales{MenuItemId: item.ID, Name: item.Name, Variant: item.Variant, Revenue: decimal.Zero}
		bucket[item.ID] = row
	}
	row.Quantity += int64(quantity)
	row.Revenue = row.Revenue.Add(revenue)
}

func sortedSales(bucket map[string]*ItemSales) []*ItemSales {
	rows := make([]*ItemSales, 0, len(bucket))
	for _, row := range bucket {
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].Revenue.Cmp(rows[j].Revenue); c != 0 {
			return c > 0
		}
		if rows[i].Name != rows[j].Name {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].MenuItemId < rows[j].MenuItemId
	})
	return rows
}

func consumptionRows(ctx context.Context, graph models.MenuItemGraph, consumed map[string]decimal.Decimal) []*RawMaterialConsumption {
	rows := make([]*RawMaterialConsumption, 0, len(consumed))
	for id, qty := range consumed {
		row := &RawMaterialConsumption{MenuItemId: id, Quantity: qty}
		if item, _ := graph.Item(ctx, id); item != nil {
			row.Name = item.Name
			row.Unit = item.Unit
			row.AveragePrice = item.AveragePrice
			if item.AveragePrice != nil {
				cost := qty.Mul(*item.AveragePrice)
				row.EstimatedCost = &cost
			}
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].Quantity.Cmp(rows[j].Quantity); c != 0 {
			return c > 0
		}
		if rows[i].Name != rows[j].Name {
			return rows[i].Name < rows[j].Name
		}
		return rows[i].MenuItemId < rows[j].MenuItemId
	})
	return rows
}
