package reports

import (
	"io"
	"time"

	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/xuri/excelize/v2"
)

const (
	sheetSummary     = "Summary"
	sheetItems       = "Items"
	sheetSupplements = "Supplements"
	sheetRawMaterial = "Raw materials"
)

// WriteSalesConsumptionExcel renders the report as an xlsx workbook with one
// sheet per section.
func WriteSalesConsumptionExcel(w io.Writer, report *SalesConsumptionReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetSummary); err != nil {
		return err
	}
	summary := [][]interface{}{
		{"From", report.From.Format(time.RFC3339)},
		{"To", report.To.Format(time.RFC3339)},
		{"Paid orders", report.OrderCount},
		{"Total revenue", report.TotalRevenue.InexactFloat64()},
	}
	if err := writeRows(f, sheetSummary, summary); err != nil {
		return err
	}

	for _, section := range []struct {
		sheet string
		rows  []*ItemSales
	}{
		{sheetItems, report.PerItemSales},
		{sheetSupplements, report.PerSupplementSales},
	} {
		if _, err := f.NewSheet(section.sheet); err != nil {
			return err
		}
		rows := [][]interface{}{{"Item", "Variant", "Quantity", "Revenue"}}
		for _, r := range section.rows {
			rows = append(rows, []interface{}{r.Name, utils.DereferencePtr(r.Variant), r.Quantity, r.Revenue.InexactFloat64()})
		}
		if err := writeRows(f, section.sheet, rows); err != nil {
			return err
		}
	}

	if _, err := f.NewSheet(sheetRawMaterial); err != nil {
		return err
	}
	rows := [][]interface{}{{"Raw material", "Unit", "Quantity", "Average price", "Estimated cost"}}
	for _, r := range report.RawMaterialConsumption {
		row := []interface{}{r.Name, "", r.Quantity.InexactFloat64(), nil, nil}
		if r.Unit != nil {
			row[1] = string(*r.Unit)
		}
		if r.AveragePrice != nil {
			row[3] = r.AveragePrice.InexactFloat64()
		}
		if r.EstimatedCost != nil {
			row[4] = r.EstimatedCost.InexactFloat64()
		}
		rows = append(rows, row)
	}
	if err := writeRows(f, sheetRawMaterial, rows); err != nil {
		return err
	}

	return f.Write(w)
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}
	return nil
}
