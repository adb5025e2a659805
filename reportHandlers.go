package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/kitchen_backend/models/reports"
	"github.com/mmdatafocus/kitchen_backend/utils"
	"github.com/shopspring/decimal"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// salesConsumptionHandler serves GET /reports/sales-consumption?from=&to=.
// The window is [from, to); format=xlsx downloads a workbook instead of JSON.
func salesConsumptionHandler(c *gin.Context) {
	from, err := utils.ParseTimeParam(c.Query("from"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from: " + err.Error()})
		return
	}
	to, err := utils.ParseTimeParam(c.Query("to"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to: " + err.Error()})
		return
	}
	if !to.After(from) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to must be after from"})
		return
	}

	report, err := reports.NewSalesAggregator().Aggregate(c.Request.Context(), from, to.Add(-time.Nanosecond))
	if err != nil {
		respondError(c, "salesConsumptionHandler", err)
		return
	}

	if c.Query("format") != "xlsx" {
		c.JSON(http.StatusOK, report)
		return
	}
	filename := fmt.Sprintf("sales-consumption-%s-%s.xlsx", from.Format("20060102"), to.Format("20060102"))
	c.Header("Content-Type", xlsxContentType)
	c.Header("Content-Disposition", "attachment; filename="+filename)
	c.Status(http.StatusOK)
	if err := reports.WriteSalesConsumptionExcel(c.Writer, report); err != nil {
		_ = c.Error(err)
	}
}

// menuItemRawMaterialsHandler serves GET /menu-items/:id/raw-materials?quantity=.
func menuItemRawMaterialsHandler(c *gin.Context) {
	quantity := decimal.NewFromInt(1)
	if v := c.Query("quantity"); v != "" {
		q, err := utils.ParseDecimal(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "quantity: " + err.Error()})
			return
		}
		quantity = q
	}
	rows, err := reports.ExplodeMenuItem(c.Request.Context(), c.Param("id"), quantity)
	if err != nil {
		respondError(c, "menuItemRawMaterialsHandler", err)
		return
	}
	c.JSON(http.StatusOK, rows)
}
