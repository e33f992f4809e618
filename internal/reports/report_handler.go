package reports

import (
	"net/http"
	"strconv"
	"time"

	"resourcehive/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	reports *ReportRepository
	// exporter is nil when Google Sheets export is not configured.
	exporter *SheetsExporter
}

func NewReportHandler(reports *ReportRepository, exporter *SheetsExporter) *ReportHandler {
	return &ReportHandler{reports: reports, exporter: exporter}
}

func (h *ReportHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/reports/top-supplies", h.TopSupplies)
	router.GET("/reports/departments", h.Departments)
	router.GET("/reports/completed", h.Completed)
	router.GET("/reports/supplies/:id/timeline", h.SupplyTimeline)
	router.GET("/reports/users/:id/summary", h.UserSummary)
	router.POST("/reports/export/top-supplies", h.ExportTopSupplies)
	router.POST("/reports/export/departments", h.ExportDepartments)
}

// window parses ?days=N into a [from, to] range, defaulting to 30 days.
func window(c *gin.Context) (time.Time, time.Time) {
	days := 30
	if raw := c.Query("days"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			days = parsed
		}
	}

	to := time.Now()
	return to.AddDate(0, 0, -days), to
}

func (h *ReportHandler) TopSupplies(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	from, to := window(c)

	rows, err := h.reports.TopRequestedSupplies(from, to, limit)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, rows)
}

func (h *ReportHandler) Departments(c *gin.Context) {
	from, to := window(c)

	rows, err := h.reports.RequestsByDepartment(from, to)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, rows)
}

func (h *ReportHandler) Completed(c *gin.Context) {
	from, to := window(c)

	tally, err := h.reports.CompletedTallies(from, to)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, tally)
}

func (h *ReportHandler) SupplyTimeline(c *gin.Context) {
	supplyID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid supply ID"})
		return
	}
	from, to := window(c)

	entries, err := h.reports.SupplyQuantityTimeline(supplyID, from, to)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, entries)
}

func (h *ReportHandler) ExportTopSupplies(c *gin.Context) {
	if h.exporter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Sheets export is not configured"})
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	from, to := window(c)

	rows, err := h.exporter.ExportTopSupplies(c.Request.Context(), from, to, limit)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rows_exported": rows})
}

func (h *ReportHandler) ExportDepartments(c *gin.Context) {
	if h.exporter == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Google Sheets export is not configured"})
		return
	}

	from, to := window(c)

	rows, err := h.exporter.ExportDepartments(c.Request.Context(), from, to)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"rows_exported": rows})
}

func (h *ReportHandler) UserSummary(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	summary, err := h.reports.UserSummary(userID)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, summary)
}
