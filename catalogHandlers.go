package main

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/kitchen_backend/models"
)

func registerCatalogRoutes(g *gin.RouterGroup) {
	g.GET("/menu-items", listMenuItemsHandler)
	g.POST("/menu-items", createMenuItemHandler)
	g.GET("/menu-items/:id", getMenuItemHandler)
	g.PUT("/menu-items/:id", updateMenuItemHandler)
	g.DELETE("/menu-items/:id", deleteMenuItemHandler)
	g.POST("/menu-items/:id/image", uploadMenuItemImageHandler())
	g.GET("/menu-items/:id/sub-items", listSubMenuItemsHandler)
	g.GET("/menu-items/:id/usages", listMenuItemUsagesHandler)
	g.GET("/menu-items/:id/raw-materials", menuItemRawMaterialsHandler)
	g.GET("/menu-items/:id/prices", listItemPricesHandler)

	g.POST("/menu-item-links", createMenuItemLinkHandler)
	g.PUT("/menu-item-links/:id", updateMenuItemLinkHandler)
	g.DELETE("/menu-item-links/:id", deleteMenuItemLinkHandler)

	g.POST("/item-prices", createItemPriceHandler)
	g.DELETE("/item-prices/:id", deleteItemPriceHandler)

	g.GET("/categories", listCategoriesHandler)
	g.POST("/categories", createCategoryHandler)
	g.GET("/categories/:id", getCategoryHandler)
	g.PUT("/categories/:id", updateCategoryHandler)
	g.DELETE("/categories/:id", deleteCategoryHandler)

	g.GET("/eating-tables", listEatingTablesHandler)
	g.POST("/eating-tables", createEatingTableHandler)
	g.GET("/eating-tables/:id", getEatingTableHandler)
	g.PUT("/eating-tables/:id", updateEatingTableHandler)
	g.PUT("/eating-tables/:id/reorder", reorderEatingTableHandler)
	g.DELETE("/eating-tables/:id", deleteEatingTableHandler)
}

/* menu items */

func listMenuItemsHandler(c *gin.Context) {
	items, err := models.ListMenuItems(c.Request.Context(), models.MenuItemFilter{
		Search:      c.Query("search"),
		Tag:         models.ItemTag(c.Query("tag")),
		CategoryId:  c.Query("categoryId"),
		IsAvailable: queryBool(c, "isAvailable"),
		Limit:       queryInt(c, "limit"),
		Offset:      queryInt(c, "offset"),
	})
	if err != nil {
		respondError(c, "listMenuItemsHandler", err)
		return
	}
	c.JSON(http.StatusOK, items)
}

func createMenuItemHandler(c *gin.Context) {
	var input models.NewMenuItem
	if !bindJSON(c, &input) {
		return
	}
	item, err := models.CreateMenuItem(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "createMenuItemHandler", err)
		return
	}
	c.JSON(http.StatusCreated, item)
}

func getMenuItemHandler(c *gin.Context) {
	item, err := models.GetMenuItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "getMenuItemHandler", err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func updateMenuItemHandler(c *gin.Context) {
	var input models.NewMenuItem
	if !bindJSON(c, &input) {
		return
	}
	item, err := models.UpdateMenuItem(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		respondError(c, "updateMenuItemHandler", err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func deleteMenuItemHandler(c *gin.Context) {
	item, err := models.DeleteMenuItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "deleteMenuItemHandler", err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func listSubMenuItemsHandler(c *gin.Context) {
	links, err := models.ListSubMenuItems(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "listSubMenuItemsHandler", err)
		return
	}
	c.JSON(http.StatusOK, links)
}

func listMenuItemUsagesHandler(c *gin.Context) {
	links, err := models.ListMenuItemUsages(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "listMenuItemUsagesHandler", err)
		return
	}
	c.JSON(http.StatusOK, links)
}

/* composition links */

func createMenuItemLinkHandler(c *gin.Context) {
	var input models.NewMenuItemLink
	if !bindJSON(c, &input) {
		return
	}
	link, err := models.CreateMenuItemLink(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "createMenuItemLinkHandler", err)
		return
	}
	c.JSON(http.StatusCreated, link)
}

func updateMenuItemLinkHandler(c *gin.Context) {
	var input models.UpdateMenuItemLinkInput
	if !bindJSON(c, &input) {
		return
	}
	link, err := models.UpdateMenuItemLink(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		respondError(c, "updateMenuItemLinkHandler", err)
		return
	}
	c.JSON(http.StatusOK, link)
}

func deleteMenuItemLinkHandler(c *gin.Context) {
	link, err := models.DeleteMenuItemLink(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "deleteMenuItemLinkHandler", err)
		return
	}
	c.JSON(http.StatusOK, link)
}

/* item prices */

func listItemPricesHandler(c *gin.Context) {
	prices, err := models.ListItemPrices(c.Request.Context(), c.Param("id"), models.PriceType(c.Query("priceType")))
	if err != nil {
		respondError(c, "listItemPricesHandler", err)
		return
	}
	c.JSON(http.StatusOK, prices)
}

func createItemPriceHandler(c *gin.Context) {
	var input models.NewItemPrice
	if !bindJSON(c, &input) {
		return
	}
	price, err := models.CreateItemPrice(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "createItemPriceHandler", err)
		return
	}
	c.JSON(http.StatusCreated, price)
}

func deleteItemPriceHandler(c *gin.Context) {
	price, err := models.DeleteItemPrice(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "deleteItemPriceHandler", err)
		return
	}
	c.JSON(http.StatusOK, price)
}

/* categories */

func listCategoriesHandler(c *gin.Context) {
	categories, err := models.ListCategories(c.Request.Context(), c.Query("search"), c.Query("includeUnlisted") == "true")
	if err != nil {
		respondError(c, "listCategoriesHandler", err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func createCategoryHandler(c *gin.Context) {
	var input models.NewCategory
	if !bindJSON(c, &input) {
		return
	}
	category, err := models.CreateCategory(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "createCategoryHandler", err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func getCategoryHandler(c *gin.Context) {
	category, err := models.GetCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "getCategoryHandler", err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func updateCategoryHandler(c *gin.Context) {
	var input models.NewCategory
	if !bindJSON(c, &input) {
		return
	}
	category, err := models.UpdateCategory(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		respondError(c, "updateCategoryHandler", err)
		return
	}
	c.JSON(http.StatusOK, category)
}

func deleteCategoryHandler(c *gin.Context) {
	category, err := models.DeleteCategory(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "deleteCategoryHandler", err)
		return
	}
	c.JSON(http.StatusOK, category)
}

/* eating tables */

func listEatingTablesHandler(c *gin.Context) {
	tables, err := models.ListEatingTables(c.Request.Context(), models.EatingTableFilter{
		Search:   c.Query("search"),
		Type:     models.EatingTableType(c.Query("type")),
		IsActive: queryBool(c, "isActive"),
		Limit:    queryInt(c, "limit"),
		Offset:   queryInt(c, "offset"),
	})
	if err != nil {
		respondError(c, "listEatingTablesHandler", err)
		return
	}
	c.JSON(http.StatusOK, tables)
}

func createEatingTableHandler(c *gin.Context) {
	var input models.NewEatingTable
	if !bindJSON(c, &input) {
		return
	}
	table, err := models.CreateEatingTable(c.Request.Context(), &input)
	if err != nil {
		respondError(c, "createEatingTableHandler", err)
		return
	}
	c.JSON(http.StatusCreated, table)
}

func getEatingTableHandler(c *gin.Context) {
	table, err := models.GetEatingTable(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "getEatingTableHandler", err)
		return
	}
	c.JSON(http.StatusOK, table)
}

func updateEatingTableHandler(c *gin.Context) {
	var input models.NewEatingTable
	if !bindJSON(c, &input) {
		return
	}
	table, err := models.UpdateEatingTable(c.Request.Context(), c.Param("id"), &input)
	if err != nil {
		respondError(c, "updateEatingTableHandler", err)
		return
	}
	c.JSON(http.StatusOK, table)
}

type reorderRequest struct {
	Index *int `json:"index" binding:"required"`
}

func reorderEatingTableHandler(c *gin.Context) {
	var req reorderRequest
	if !bindJSON(c, &req) {
		return
	}
	tables, err := models.ReorderEatingTable(c.Request.Context(), c.Param("id"), *req.Index)
	if err != nil {
		respondError(c, "reorderEatingTableHandler", err)
		return
	}
	c.JSON(http.StatusOK, tables)
}

func deleteEatingTableHandler(c *gin.Context) {
	table, err := models.DeleteEatingTable(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "deleteEatingTableHandler", err)
		return
	}
	c.JSON(http.StatusOK, table)
}
