package activity

import (
	"net/http"
	"strconv"

	"resourcehive/pkg/apperrors"

	"github.com/gin-gonic/gin"
)

type ActivityHandler struct {
	recorder *Recorder
}

func NewActivityHandler(recorder *Recorder) *ActivityHandler {
	return &ActivityHandler{recorder: recorder}
}

func (h *ActivityHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/activity-logs", h.List)
}

func (h *ActivityHandler) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))

	logs, err := h.recorder.GetActivityLogs(limit)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, logs)
}
