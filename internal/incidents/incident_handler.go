package incidents

import (
	"net/http"
	"strconv"

	"resourcehive/pkg/apperrors"
	"resourcehive/pkg/security"

	"github.com/gin-gonic/gin"
)

type IncidentHandler struct {
	service *IncidentService
}

func NewIncidentHandler(service *IncidentService) *IncidentHandler {
	return &IncidentHandler{service: service}
}

func (h *IncidentHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/damage-reports", h.ReportDamage)
	router.GET("/damage-reports", h.ListDamageReports)
	router.POST("/damage-reports/:id/resolve", h.ResolveDamage)

	router.POST("/lost-items", h.ReportLost)
	router.GET("/lost-items", h.ListLostItems)
	router.POST("/lost-items/:id/resolve", h.ResolveLost)
}

type reportRequest struct {
	PropertyID  int    `json:"property_id" binding:"required"`
	Description string `json:"description" binding:"required"`
}

type resolveRequest struct {
	Resolution string `json:"resolution" binding:"required"`
	Remarks    string `json:"remarks"`
}

func (h *IncidentHandler) ReportDamage(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	report, err := h.service.ReportDamage(security.GetUserID(c), req.PropertyID, req.Description)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusCreated, report)
}

func (h *IncidentHandler) ListDamageReports(c *gin.Context) {
	reports, err := h.service.ListDamageReports(security.GetUserID(c), c.Query("status"))
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, reports)
}

func (h *IncidentHandler) ResolveDamage(c *gin.Context) {
	reportID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report ID"})
		return
	}

	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	report, err := h.service.ResolveDamage(security.GetUserID(c), reportID, req.Resolution, req.Remarks)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h *IncidentHandler) ReportLost(c *gin.Context) {
	var req reportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	item, err := h.service.ReportLost(security.GetUserID(c), req.PropertyID, req.Description)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusCreated, item)
}

func (h *IncidentHandler) ListLostItems(c *gin.Context) {
	items, err := h.service.ListLostItems(security.GetUserID(c), c.Query("status"))
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, items)
}

func (h *IncidentHandler) ResolveLost(c *gin.Context) {
	itemID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid report ID"})
		return
	}

	var req resolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	item, err := h.service.ResolveLost(security.GetUserID(c), itemID, req.Resolution, req.Remarks)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, item)
}
