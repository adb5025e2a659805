// consumption-report writes the sales and raw material consumption workbook
// for a date window without going through the API.
//
// Usage:
//
//	DB_DRIVER=mysql DB_USER=... go run ./cmd/consumption-report -from 2025-01-01 -to 2025-02-01 -out january.xlsx
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mmdatafocus/kitchen_backend/config"
	"github.com/mmdatafocus/kitchen_backend/models/reports"
	"github.com/mmdatafocus/kitchen_backend/utils"
)

func main() {
	from := flag.String("from", "", "Start of the window, inclusive (RFC3339 or YYYY-MM-DD).")
	to := flag.String("to", "", "End of the window, exclusive (RFC3339 or YYYY-MM-DD).")
	out := flag.String("out", "consumption-report.xlsx", "Output workbook path.")
	flag.Parse()

	start, err := utils.ParseTimeParam(*from)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -from: %v\n", err)
		os.Exit(2)
	}
	end, err := utils.ParseTimeParam(*to)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -to: %v\n", err)
		os.Exit(2)
	}
	if !end.After(start) {
		fmt.Fprintln(os.Stderr, "-to must be after -from")
		os.Exit(2)
	}

	config.ConnectDatabaseWithRetry()
	if config.GetDB() == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil)")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	report, err := reports.NewSalesAggregator().Aggregate(ctx, start, end.Add(-time.Nanosecond))
	if err != nil {
		fmt.Fprintf(os.Stderr, "aggregate failed: %v\n", err)
		os.Exit(1)
	}

	f, err := os.Create(*out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create %s: %v\n", *out, err)
		os.Exit(1)
	}
	if err := reports.WriteSalesConsumptionExcel(f, report); err != nil {
		_ = f.Close()
		fmt.Fprintf(os.Stderr, "write workbook: %v\n", err)
		os.Exit(1)
	}
	if err := f.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "close %s: %v\n", *out, err)
		os.Exit(1)
	}

	fmt.Printf("orders=%d revenue=%s items=%d supplements=%d raw_materials=%d -> %s\n",
		report.OrderCount, report.TotalRevenue.StringFixed(2), len(report.PerItemSales),
		len(report.PerSupplementSales), len(report.RawMaterialConsumption), *out)
}
