package reports_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/models"
	"github.com/mmdatafocus/kitchen_backend/models/reports"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "reports.db")), config.GormConfig())
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

type kitchenFixture struct {
	itemX, supplementY, flour, egg *models.MenuItem
}

func seedKitchen(t *testing.T, ctx context.Context) kitchenFixture {
	t.Helper()
	create := func(input *models.NewMenuItem) *models.MenuItem {
		it, err := models.CreateMenuItem(ctx, input)
		if err != nil {
			t.Fatalf("CreateMenuItem(%s): %v", input.Name, err)
		}
		return it
	}
	dec := func(s string) *decimal.Decimal {
		d := decimal.RequireFromString(s)
		return &d
	}
	kg := models.UnitKg
	portion := models.UnitPortion

	f := kitchenFixture{
		itemX:       create(&models.NewMenuItem{Name: "ItemX", Tags: []models.ItemTag{models.ItemTagPrimaryItem, models.ItemTagComposedRecipe}, Price: dec("10")}),
		supplementY: create(&models.NewMenuItem{Name: "SupplementY", Tags: []models.ItemTag{models.ItemTagSupplement}, Price: dec("3")}),
		flour:       create(&models.NewMenuItem{Name: "Flour", Tags: []models.ItemTag{models.ItemTagRawMaterial}, Unit: &kg, AveragePrice: dec("2")}),
		egg:         create(&models.NewMenuItem{Name: "Egg", Tags: []models.ItemTag{models.ItemTagRawMaterial}, Unit: &portion}),
	}
	for _, l := range []models.NewMenuItemLink{
		{ParentMenuItemId: f.itemX.ID, SubMenuItemId: f.flour.ID, Quantity: decimal.RequireFromString("0.2")},
		{ParentMenuItemId: f.itemX.ID, SubMenuItemId: f.egg.ID, Quantity: decimal.NewFromInt(1)},
		{ParentMenuItemId: f.supplementY.ID, SubMenuItemId: f.egg.ID, Quantity: decimal.NewFromInt(1)},
	} {
		l := l
		if _, err := models.CreateMenuItemLink(ctx, &l); err != nil {
			t.Fatalf("CreateMenuItemLink: %v", err)
		}
	}
	return f
}

func TestSalesAggregator_PaidOrdersOnly(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	f := seedKitchen(t, ctx)

	name := "T1"
	table, err := models.CreateEatingTable(ctx, &models.NewEatingTable{Name: &name})
	if err != nil {
		t.Fatalf("CreateEatingTable: %v", err)
	}

	soldAt := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	lc := &models.OrderLifecycle{DB: db, Now: func() time.Time { return soldAt }}
	paid := models.OrderStatusPaid

	order, err := lc.CreateOrder(ctx, &models.NewOrder{EatingTableId: table.ID})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	primary, err := lc.CreateOrderLine(ctx, &models.NewOrderLine{OrderId: order.ID, MenuItemId: f.itemX.ID, Quantity: 2})
	if err != nil {
		t.Fatalf("CreateOrderLine ItemX: %v", err)
	}
	if _, err := lc.CreateOrderLine(ctx, &models.NewOrderLine{OrderId: order.ID, MenuItemId: f.supplementY.ID, ParentLineId: &primary.ID, Quantity: 1}); err != nil {
		t.Fatalf("CreateOrderLine SupplementY: %v", err)
	}
	if _, err := lc.UpdateOrder(ctx, order.ID, &models.UpdateOrderInput{Status: &paid}); err != nil {
		t.Fatalf("UpdateOrder PAID: %v", err)
	}

	// an open order in the same window is not a sale
	open, err := lc.CreateOrder(ctx, &models.NewOrder{EatingTableId: table.ID})
	if err != nil {
		t.Fatalf("CreateOrder open: %v", err)
	}
	if _, err := lc.CreateOrderLine(ctx, &models.NewOrderLine{OrderId: open.ID, MenuItemId: f.itemX.ID, Quantity: 5}); err != nil {
		t.Fatalf("CreateOrderLine open: %v", err)
	}

	from := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 1, 10, 23, 59, 59, 0, time.UTC)
	aggregator := &reports.SalesAggregator{DB: db, Logger: config.GetLogger()}
	report, err := aggregator.Aggregate(ctx, from, to)
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}

	if report.OrderCount != 1 {
		t.Fatalf("expected 1 paid order, got %d", report.OrderCount)
	}
	if !report.TotalRevenue.Equal(decimal.NewFromInt(23)) {
		t.Fatalf("expected revenue 23, got %s", report.TotalRevenue)
	}
	if len(report.PerItemSales) != 1 || report.PerItemSales[0].MenuItemId != f.itemX.ID || report.PerItemSales[0].Quantity != 2 {
		t.Fatalf("unexpected item sales %+v", report.PerItemSales)
	}
	if len(report.PerSupplementSales) != 1 || report.PerSupplementSales[0].MenuItemId != f.supplementY.ID ||
		!report.PerSupplementSales[0].Revenue.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("unexpected supplement sales %+v", report.PerSupplementSales)
	}

	rows := report.RawMaterialConsumption
	if len(rows) != 2 {
		t.Fatalf("expected 2 raw materials, got %d", len(rows))
	}
	if rows[0].MenuItemId != f.egg.ID || !rows[0].Quantity.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected 3 eggs first, got %+v", rows[0])
	}
	if rows[0].EstimatedCost != nil {
		t.Fatalf("egg has no average price, got cost %s", rows[0].EstimatedCost)
	}
	if rows[1].MenuItemId != f.flour.ID || !rows[1].Quantity.Equal(decimal.RequireFromString("0.4")) {
		t.Fatalf("expected 0.4 flour second, got %+v", rows[1])
	}
	if rows[1].EstimatedCost == nil || !rows[1].EstimatedCost.Equal(decimal.RequireFromString("0.8")) {
		t.Fatalf("expected flour cost 0.8, got %v", rows[1].EstimatedCost)
	}

	again, err := aggregator.Aggregate(ctx, from, to)
	if err != nil {
		t.Fatalf("Aggregate again: %v", err)
	}
	if again.OrderCount != report.OrderCount || !again.TotalRevenue.Equal(report.TotalRevenue) ||
		len(again.RawMaterialConsumption) != len(report.RawMaterialConsumption) {
		t.Fatalf("a second run over the same data must match: %+v vs %+v", again, report)
	}

	empty, err := aggregator.Aggregate(ctx, from.AddDate(0, 0, 1), to.AddDate(0, 0, 1))
	if err != nil {
		t.Fatalf("Aggregate empty window: %v", err)
	}
	if empty.OrderCount != 0 || !empty.TotalRevenue.IsZero() || len(empty.RawMaterialConsumption) != 0 {
		t.Fatalf("expected an empty report, got %+v", empty)
	}

	if _, err := aggregator.Aggregate(ctx, to, from); utils.ErrorKindOf(err) != utils.KindValidation {
		t.Fatalf("expected Validation for a reversed window, got %v", err)
	}
}

func TestExplodeMenuItem(t *testing.T) {
	openTestDB(t)
	ctx := context.Background()
	f := seedKitchen(t, ctx)

	rows, err := reports.ExplodeMenuItem(ctx, f.itemX.ID, decimal.NewFromInt(3))
	if err != nil {
		t.Fatalf("ExplodeMenuItem: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 raw materials, got %d", len(rows))
	}
	if rows[0].MenuItemId != f.egg.ID || !rows[0].Quantity.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("expected 3 eggs first, got %+v", rows[0])
	}
	if rows[1].MenuItemId != f.flour.ID || !rows[1].Quantity.Equal(decimal.RequireFromString("0.6")) {
		t.Fatalf("expected 0.6 flour, got %+v", rows[1])
	}

	if _, err := reports.ExplodeMenuItem(ctx, "missing", decimal.NewFromInt(1)); utils.ErrorKindOf(err) != utils.KindNotFound {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if _, err := reports.ExplodeMenuItem(ctx, f.itemX.ID, decimal.Zero); utils.ErrorKindOf(err) != utils.KindValidation {
		t.Fatalf("expected Validation for zero quantity, got %v", err)
	}
}

func findSales(rows []*reports.ItemSales, id string) *reports.ItemSales {
	for _, r := range rows {
		if r.MenuItemId == id {
			return r
		}
	}
	return nil
}

// sellWithSupplement records a PAID order of main x mainQty with one sup
// attached to it, and returns the report for that day.
func sellWithSupplement(t *testing.T, db *gorm.DB, main, sup *models.MenuItem, mainQty int) *reports.SalesConsumptionReport {
	t.Helper()
	ctx := context.Background()
	name := "T1"
	table, err := models.CreateEatingTable(ctx, &models.NewEatingTable{Name: &name})
	if err != nil {
		t.Fatalf("CreateEatingTable: %v", err)
	}
	soldAt := time.Date(2026, 2, 3, 19, 30, 0, 0, time.UTC)
	lc := &models.OrderLifecycle{DB: db, Now: func() time.Time { return soldAt }}

	order, err := lc.CreateOrder(ctx, &models.NewOrder{EatingTableId: table.ID})
	if err != nil {
		t.Fatalf("CreateOrder: %v", err)
	}
	primary, err := lc.CreateOrderLine(ctx, &models.NewOrderLine{OrderId: order.ID, MenuItemId: main.ID, Quantity: mainQty})
	if err != nil {
		t.Fatalf("CreateOrderLine %s: %v", main.Name, err)
	}
	if _, err := lc.CreateOrderLine(ctx, &models.NewOrderLine{OrderId: order.ID, MenuItemId: sup.ID, ParentLineId: &primary.ID, Quantity: 1}); err != nil {
		t.Fatalf("CreateOrderLine %s: %v", sup.Name, err)
	}
	paid := models.OrderStatusPaid
	if _, err := lc.UpdateOrder(ctx, order.ID, &models.UpdateOrderInput{Status: &paid}); err != nil {
		t.Fatalf("UpdateOrder PAID: %v", err)
	}

	from := time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC)
	report, err := (&reports.SalesAggregator{DB: db, Logger: config.GetLogger()}).Aggregate(ctx, from, from.Add(24*time.Hour-time.Nanosecond))
	if err != nil {
		t.Fatalf("Aggregate: %v", err)
	}
	return report
}

func TestSalesAggregator_PrimaryAndAttachedSupplement(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	price := func(v int64) *decimal.Decimal {
		d := decimal.NewFromInt(v)
		return &d
	}
	itemX, err := models.CreateMenuItem(ctx, &models.NewMenuItem{Name: "ItemX", Tags: []models.ItemTag{models.ItemTagPrimaryItem}, Price: price(500)})
	if err != nil {
		t.Fatalf("CreateMenuItem ItemX: %v", err)
	}
	supY, err := models.CreateMenuItem(ctx, &models.NewMenuItem{Name: "SupplementY", Tags: []models.ItemTag{models.ItemTagSupplement}, Price: price(100)})
	if err != nil {
		t.Fatalf("CreateMenuItem SupplementY: %v", err)
	}

	report := sellWithSupplement(t, db, itemX, supY, 3)

	if len(report.PerItemSales) != 1 {
		t.Fatalf("expected only ItemX in item sales, got %+v", report.PerItemSales)
	}
	if got := report.PerItemSales[0]; got.MenuItemId != itemX.ID || got.Quantity != 3 || !got.Revenue.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("expected {ItemX 3 1500}, got %+v", got)
	}
	if len(report.PerSupplementSales) != 1 {
		t.Fatalf("expected only SupplementY in supplement sales, got %+v", report.PerSupplementSales)
	}
	if got := report.PerSupplementSales[0]; got.MenuItemId != supY.ID || got.Quantity != 1 || !got.Revenue.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected {SupplementY 1 100}, got %+v", got)
	}
	if !report.TotalRevenue.Equal(decimal.NewFromInt(1600)) {
		t.Fatalf("expected total revenue 1600, got %s", report.TotalRevenue)
	}
}

func TestSalesAggregator_ItemTaggedPrimaryAndSupplementCountsInBoth(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	price := func(v int64) *decimal.Decimal {
		d := decimal.NewFromInt(v)
		return &d
	}
	itemX, err := models.CreateMenuItem(ctx, &models.NewMenuItem{Name: "ItemX", Tags: []models.ItemTag{models.ItemTagPrimaryItem}, Price: price(500)})
	if err != nil {
		t.Fatalf("CreateMenuItem ItemX: %v", err)
	}
	fries, err := models.CreateMenuItem(ctx, &models.NewMenuItem{
		Name:  "Fries",
		Tags:  []models.ItemTag{models.ItemTagSupplement, models.ItemTagPrimaryItem},
		Price: price(100),
	})
	if err != nil {
		t.Fatalf("CreateMenuItem Fries: %v", err)
	}

	report := sellWithSupplement(t, db, itemX, fries, 3)

	if len(report.PerItemSales) != 2 {
		t.Fatalf("expected ItemX and Fries in item sales, got %+v", report.PerItemSales)
	}
	if got := findSales(report.PerItemSales, itemX.ID); got == nil || got.Quantity != 3 || !got.Revenue.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("expected {ItemX 3 1500}, got %+v", got)
	}
	asItem := findSales(report.PerItemSales, fries.ID)
	asSupplement := findSales(report.PerSupplementSales, fries.ID)
	if asItem == nil || asSupplement == nil {
		t.Fatalf("expected Fries in both buckets, items=%+v supplements=%+v", report.PerItemSales, report.PerSupplementSales)
	}
	for _, got := range []*reports.ItemSales{asItem, asSupplement} {
		if got.Quantity != 1 || !got.Revenue.Equal(decimal.NewFromInt(100)) {
			t.Fatalf("expected {Fries 1 100}, got %+v", got)
		}
	}
	if len(report.PerSupplementSales) != 1 {
		t.Fatalf("expected only Fries in supplement sales, got %+v", report.PerSupplementSales)
	}
	// revenue is counted once per line, not per bucket
	if !report.TotalRevenue.Equal(decimal.NewFromInt(1600)) {
		t.Fatalf("expected total revenue 1600, got %s", report.TotalRevenue)
	}
}
