package inventory

import (
	"net/http"
	"strconv"
	"time"

	"resourcehive/internal/activity"
	"resourcehive/pkg/apperrors"
	"resourcehive/pkg/models"
	"resourcehive/pkg/security"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type InventoryHandler struct {
	service    *InventoryService
	supplies   *SupplyRepository
	properties *PropertyRepository
	categories *CategoryRepository
	recorder   *activity.Recorder
}

func NewInventoryHandler(
	service *InventoryService,
	supplies *SupplyRepository,
	properties *PropertyRepository,
	categories *CategoryRepository,
	recorder *activity.Recorder,
) *InventoryHandler {
	return &InventoryHandler{
		service:    service,
		supplies:   supplies,
		properties: properties,
		categories: categories,
		recorder:   recorder,
	}
}

func (h *InventoryHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/supplies", h.ListSupplies)
	router.GET("/supplies/:id", h.GetSupply)
	router.GET("/supplies/:id/history", h.GetSupplyHistory)
	router.GET("/supplies/lookup", h.LookupSupplyByBarcode)
	router.POST("/supplies", h.CreateSupply)
	router.PATCH("/supplies/:id", h.UpdateSupply)
	router.POST("/supplies/:id/adjust", h.AdjustSupplyQuantity)
	router.POST("/supplies/:id/adjust-reserved", h.AdjustReservedQuantity)
	router.POST("/supplies/:id/bad-stock", h.ReportBadStock)
	router.POST("/supplies/:id/archive", h.ArchiveSupply)
	router.POST("/supplies/:id/unarchive", h.UnarchiveSupply)
	router.DELETE("/supplies/:id", h.DeleteSupply)

	router.GET("/properties", h.ListProperties)
	router.GET("/properties/:id", h.GetProperty)
	router.GET("/properties/:id/history", h.GetPropertyHistory)
	router.POST("/properties", h.CreateProperty)
	router.PATCH("/properties/:id/condition", h.SetPropertyCondition)
	router.PATCH("/properties/:id/number", h.RenumberProperty)
	router.POST("/properties/:id/archive", h.ArchiveProperty)
	router.POST("/properties/:id/unarchive", h.UnarchiveProperty)
	router.DELETE("/properties/:id", h.DeleteProperty)

	router.GET("/supply-categories", h.ListSupplyCategories)
	router.POST("/supply-categories", h.CreateSupplyCategory)
	router.DELETE("/supply-categories/:id", h.DeleteSupplyCategory)
	router.GET("/supply-categories/:id/subcategories", h.ListSubcategories)
	router.POST("/supply-categories/:id/subcategories", h.CreateSubcategory)
	router.GET("/property-categories", h.ListPropertyCategories)
	router.POST("/property-categories", h.CreatePropertyCategory)
	router.DELETE("/property-categories/:id", h.DeletePropertyCategory)
}

func (h *InventoryHandler) ListSupplies(c *gin.Context) {
	includeArchived := c.Query("include_archived") == "true"

	supplies, err := h.supplies.GetSupplies(includeArchived)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, supplies)
}

func (h *InventoryHandler) GetSupply(c *gin.Context) {
	supplyID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid supply ID"})
		return
	}

	supply, err := h.supplies.GetSupply(supplyID)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, supply)
}

func (h *InventoryHandler) GetSupplyHistory(c *gin.Context) {
	supplyID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid supply ID"})
		return
	}

	history, err := h.recorder.GetSupplyHistory(supplyID)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, history)
}

// LookupSupplyByBarcode serves the scanner AJAX flow with the envelope the
// frontend expects.
func (h *InventoryHandler) LookupSupplyByBarcode(c *gin.Context) {
	barcode := c.Query("barcode")
	if barcode == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Barcode is required"})
		return
	}

	supply, err := h.supplies.GetSupplyByBarcode(barcode)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"success": false, "error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "supply": supply})
}

type createSupplyRequest struct {
	Barcode          string `json:"barcode"`
	Name             string `json:"supply_name" binding:"required"`
	Description      string `json:"description"`
	Unit             string `json:"unit"`
	CategoryID       *int   `json:"category_id"`
	SubcategoryID    *int   `json:"subcategory_id"`
	DateReceived     string `json:"date_received"`
	ExpirationDate   string `json:"expiration_date"`
	CurrentQuantity  int    `json:"current_quantity"`
	MinimumThreshold int    `json:"minimum_threshold"`
}

func (h *InventoryHandler) CreateSupply(c *gin.Context) {
	var req createSupplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	supply := models.Supply{
		Barcode:     req.Barcode,
		Name:        req.Name,
		Description: req.Description,
		Unit:        req.Unit,
		Quantity: &models.SupplyQuantity{
			CurrentQuantity:  req.CurrentQuantity,
			MinimumThreshold: req.MinimumThreshold,
		},
	}
	if req.CategoryID != nil {
		supply.Category = &models.SupplyCategory{ID: *req.CategoryID}
	}
	if req.SubcategoryID != nil {
		supply.Subcategory = &models.Subcategory{ID: *req.SubcategoryID}
	}
	if req.DateReceived != "" {
		received, err := time.Parse("2006-01-02", req.DateReceived)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date_received format, expected YYYY-MM-DD"})
			return
		}
		supply.DateReceived = received
	} else {
		supply.DateReceived = time.Now()
	}
	if req.ExpirationDate != "" {
		expiration, err := time.Parse("2006-01-02", req.ExpirationDate)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid expiration_date format, expected YYYY-MM-DD"})
			return
		}
		supply.ExpirationDate = &expiration
	}

	created, err := h.service.CreateSupply(security.GetUserID(c), &supply)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (h *InventoryHandler) UpdateSupply(c *gin.Context) {
	supplyID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid supply ID"})
		return
	}

	var req struct {
		Fields  map[string]string `json:"fields" binding:"required"`
		Remarks string            `json:"remarks"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	updated, err := h.service.UpdateSupply(security.GetUserID(c), supplyID, req.Fields, req.Remarks)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// AdjustSupplyQuantity is the quantity-adjust AJAX endpoint.
func (h *InventoryHandler) AdjustSupplyQuantity(c *gin.Context) {
	supplyID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid supply ID"})
		return
	}

	var req struct {
		Delta  int    `json:"delta" binding:"required"`
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request payload"})
		return
	}

	quantity, err := h.service.AdjustCurrent(security.GetUserID(c), supplyID, req.Delta, req.Reason)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"success": false, "error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"current_quantity":   quantity.CurrentQuantity,
		"reserved_quantity":  quantity.ReservedQuantity,
		"available_quantity": quantity.AvailableQuantity(),
		"status":             quantity.StockStatus(),
	})
}

func (h *InventoryHandler) AdjustReservedQuantity(c *gin.Context) {
	supplyID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid supply ID"})
		return
	}

	var req struct {
		Delta  int    `json:"delta" binding:"required"`
		Reason string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request payload"})
		return
	}

	quantity, err := h.service.AdjustReserved(security.GetUserID(c), supplyID, req.Delta, req.Reason)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"success": false, "error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":            true,
		"current_quantity":   quantity.CurrentQuantity,
		"reserved_quantity":  quantity.ReservedQuantity,
		"available_quantity": quantity.AvailableQuantity(),
		"status":             quantity.StockStatus(),
	})
}

func (h *InventoryHandler) ReportBadStock(c *gin.Context) {
	supplyID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid supply ID"})
		return
	}

	var req struct {
		Quantity int    `json:"quantity" binding:"required"`
		Reason   string `json:"reason" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	if err := h.service.ReportBadStock(security.GetUserID(c), supplyID, req.Quantity, req.Reason); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Bad stock recorded"})
}

func (h *InventoryHandler) DeleteSupply(c *gin.Context) {
	h.archiveAction(c, func(actorID, id int) error { return h.service.DeleteArchivedSupply(actorID, id) })
}

func (h *InventoryHandler) DeleteProperty(c *gin.Context) {
	h.archiveAction(c, func(actorID, id int) error { return h.service.DeleteArchivedProperty(actorID, id) })
}

func (h *InventoryHandler) ArchiveSupply(c *gin.Context) {
	h.archiveAction(c, func(actorID, id int) error { return h.service.ArchiveSupply(actorID, id) })
}

func (h *InventoryHandler) UnarchiveSupply(c *gin.Context) {
	h.archiveAction(c, func(actorID, id int) error { return h.service.UnarchiveSupply(actorID, id) })
}

func (h *InventoryHandler) ArchiveProperty(c *gin.Context) {
	h.archiveAction(c, func(actorID, id int) error { return h.service.ArchiveProperty(actorID, id) })
}

func (h *InventoryHandler) UnarchiveProperty(c *gin.Context) {
	h.archiveAction(c, func(actorID, id int) error { return h.service.UnarchiveProperty(actorID, id) })
}

func (h *InventoryHandler) archiveAction(c *gin.Context, action func(actorID, id int) error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid ID"})
		return
	}

	if err := action(security.GetUserID(c), id); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "OK"})
}

func (h *InventoryHandler) ListProperties(c *gin.Context) {
	includeArchived := c.Query("include_archived") == "true"

	properties, err := h.properties.GetProperties(includeArchived)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, properties)
}

func (h *InventoryHandler) GetProperty(c *gin.Context) {
	propertyID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property ID"})
		return
	}

	property, err := h.properties.GetProperty(propertyID)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, property)
}

func (h *InventoryHandler) GetPropertyHistory(c *gin.Context) {
	propertyID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property ID"})
		return
	}

	history, err := h.recorder.GetPropertyHistory(propertyID)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, history)
}

type createPropertyRequest struct {
	PropertyNumber           string `json:"property_number"`
	SerialNumber             string `json:"serial_number"`
	Name                     string `json:"property_name" binding:"required"`
	Description              string `json:"description"`
	CategoryID               *int   `json:"category_id"`
	Location                 string `json:"location"`
	AccountablePerson        string `json:"accountable_person"`
	Unit                     string `json:"unit"`
	UnitValue                string `json:"unit_value"`
	YearAcquired             int    `json:"year_acquired"`
	OverallQuantity          int    `json:"overall_quantity"`
	Quantity                 int    `json:"quantity"`
	QuantityPerPhysicalCount int    `json:"quantity_per_physical_count"`
	Condition                string `json:"condition"`
}

func (h *InventoryHandler) CreateProperty(c *gin.Context) {
	var req createPropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	unitValue := decimal.Zero
	if req.UnitValue != "" {
		parsed, err := decimal.NewFromString(req.UnitValue)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid unit_value"})
			return
		}
		unitValue = parsed
	}

	property := models.Property{
		PropertyNumber:           req.PropertyNumber,
		SerialNumber:             req.SerialNumber,
		Name:                     req.Name,
		Description:              req.Description,
		Location:                 req.Location,
		AccountablePerson:        req.AccountablePerson,
		Unit:                     req.Unit,
		UnitValue:                unitValue,
		YearAcquired:             req.YearAcquired,
		OverallQuantity:          req.OverallQuantity,
		Quantity:                 req.Quantity,
		QuantityPerPhysicalCount: req.QuantityPerPhysicalCount,
		Condition:                req.Condition,
	}
	if req.CategoryID != nil {
		property.Category = &models.PropertyCategory{ID: *req.CategoryID}
	}

	created, err := h.service.CreateProperty(security.GetUserID(c), &property)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (h *InventoryHandler) SetPropertyCondition(c *gin.Context) {
	propertyID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property ID"})
		return
	}

	var req struct {
		Condition string `json:"condition" binding:"required"`
		Remarks   string `json:"remarks"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	property, err := h.service.SetPropertyCondition(security.GetUserID(c), propertyID, req.Condition, req.Remarks)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, property)
}

func (h *InventoryHandler) RenumberProperty(c *gin.Context) {
	propertyID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property ID"})
		return
	}

	var req struct {
		PropertyNumber string `json:"property_number" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload", "details": err.Error()})
		return
	}

	property, err := h.service.RenumberProperty(security.GetUserID(c), propertyID, req.PropertyNumber)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, property)
}

func (h *InventoryHandler) ListSupplyCategories(c *gin.Context) {
	categories, err := h.categories.GetSupplyCategories()
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *InventoryHandler) CreateSupplyCategory(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	category, err := h.service.CreateSupplyCategory(security.GetUserID(c), req.Name)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusCreated, category)
}

func (h *InventoryHandler) DeleteSupplyCategory(c *gin.Context) {
	categoryID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category ID"})
		return
	}

	if err := h.service.DeleteSupplyCategory(security.GetUserID(c), categoryID); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Category deleted"})
}

func (h *InventoryHandler) ListSubcategories(c *gin.Context) {
	categoryID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category ID"})
		return
	}

	subcategories, err := h.categories.GetSubcategories(categoryID)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, subcategories)
}

func (h *InventoryHandler) CreateSubcategory(c *gin.Context) {
	categoryID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category ID"})
		return
	}

	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	subcategory, err := h.service.CreateSubcategory(security.GetUserID(c), categoryID, req.Name)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusCreated, subcategory)
}

func (h *InventoryHandler) ListPropertyCategories(c *gin.Context) {
	categories, err := h.categories.GetPropertyCategories()
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (h *InventoryHandler) CreatePropertyCategory(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	category, err := h.service.CreatePropertyCategory(security.GetUserID(c), req.Name)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusCreated, category)
}

func (h *InventoryHandler) DeletePropertyCategory(c *gin.Context) {
	categoryID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid category ID"})
		return
	}

	if err := h.service.DeletePropertyCategory(security.GetUserID(c), categoryID); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Category deleted"})
}
