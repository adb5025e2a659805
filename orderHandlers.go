package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/kitchen_backend/models"
	"github.com/mmdatafocus/kitchen_backend/utils"
)

func (a *app) registerOrderRoutes(g *gin.RouterGroup) {
	g.GET("/orders", a.listOrdersHandler)
	g.POST("/orders", a.createOrderHandler)
	g.GET("/orders/:id", a.getOrderHandler)
	g.PUT("/orders/:id", a.updateOrderHandler)
	g.DELETE("/orders/:id", a.deleteOrderHandler)
	g.GET("/orders/:id/lines", a.listOrderLinesHandler)

	g.POST("/order-lines", a.createOrderLineHandler)
	g.PUT("/order-lines/:id", a.updateOrderLineHandler)
	g.DELETE("/order-lines/:id", a.deleteOrderLineHandler)
}

func (a *app) listOrdersHandler(c *gin.Context) {
	filter := models.OrderFilter{
		Status:        models.OrderStatus(c.Query("status")),
		EatingTableId: c.Query("eatingTableId"),
		After:         c.Query("after"),
		Limit:         queryInt(c, "limit"),
		Offset:        queryInt(c, "offset"),
	}
	for key, dest := range map[string]**time.Time{"from": &filter.From, "to": &filter.To} {
		if v := c.Query(key); v != "" {
			t, err := utils.ParseTimeParam(v)
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": key + ": " + err.Error()})
				return
			}
			*dest = &t
		}
	}
	orders, err := a.orders().ListOrders(c.Request.Context(), filter)
	if err != nil {
		respondError(c, "listOrdersHandler", err)
		return
	}
	limit, _ := utils.ClampLimit(filter.Limit, 0)
	if next := models.NextCursor(orders, limit); next != "" {
		c.Header("x-next-cursor", next)
	}
	c.JSON(http.StatusOK, orders)
}

func (a *app) createOrderHandler(c *gin.Context) {
	var input models.NewOrder
	if !bindJSON(c, &input) {
		return
	}
	order, err := a.orders().CreateOrder(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "createOrderHandler", err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (a *app) getOrderHandler(c *gin.Context) {
	order, err := a.orders().GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "getOrderHandler", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (a *app) updateOrderHandler(c *gin.Context) {
	var input models.UpdateOrderInput
	if !bindJSON(c, &input) {
		return
	}
	order, err := a.orders().UpdateOrder(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		respondError(c, "updateOrderHandler", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (a *app) deleteOrderHandler(c *gin.Context) {
	order, err := a.orders().DeleteOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "deleteOrderHandler", err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (a *app) listOrderLinesHandler(c *gin.Context) {
	lines, err := a.orders().ListOrderLines(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "listOrderLinesHandler", err)
		return
	}
	c.JSON(http.StatusOK, lines)
}

func (a *app) createOrderLineHandler(c *gin.Context) {
	var input models.NewOrderLine
	if !bindJSON(c, &input) {
		return
	}
	line, err := a.orders().CreateOrderLine(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "createOrderLineHandler", err)
		return
	}
	c.JSON(http.StatusCreated, line)
}

type updateOrderLineRequest struct {
	Quantity int `json:"quantity"`
}

func (a *app) updateOrderLineHandler(c *gin.Context) {
	var req updateOrderLineRequest
	if !bindJSON(c, &req) {
		return
	}
	line, err := a.orders().UpdateOrderLineQuantity(c.Request.Context(), c.Param("id"), req.Quantity)
	if err != nil {
		respondError(c, "updateOrderLineHandler", err)
		return
	}
	c.JSON(http.StatusOK, line)
}

func (a *app) deleteOrderLineHandler(c *gin.Context) {
	line, err := a.orders().DeleteOrderLine(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "deleteOrderLineHandler", err)
		return
	}
	c.JSON(http.StatusOK, line)
}
