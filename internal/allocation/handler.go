package allocation

import (
	"net/http"
	"strconv"

	"resourcehive/pkg/apperrors"
	"resourcehive/pkg/roles"
	"resourcehive/pkg/security"

	"github.com/gin-gonic/gin"
)

type RequestHandler struct {
	supplies     *SupplyRequestService
	borrows      *BorrowRequestService
	reservations *ReservationService
}

func NewRequestHandler(supplies *SupplyRequestService, borrows *BorrowRequestService, reservations *ReservationService) *RequestHandler {
	return &RequestHandler{
		supplies:     supplies,
		borrows:      borrows,
		reservations: reservations,
	}
}

func (h *RequestHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/supply-requests", h.SubmitSupplyBatch)
	router.GET("/supply-requests", h.ListSupplyBatches)
	router.GET("/supply-requests/:id", h.GetSupplyBatch)
	router.POST("/supply-requests/:id/items/:itemID/approve", h.ApproveSupplyItem)
	router.POST("/supply-requests/:id/items/:itemID/reject", h.RejectSupplyItem)
	router.POST("/supply-requests/:id/items/:itemID/claim", h.ClaimSupplyItem)
	router.POST("/supply-requests/:id/claim", h.ClaimSupplyBatch)
	router.POST("/supply-requests/:id/void", h.VoidSupplyBatch)

	router.POST("/borrow-requests", h.SubmitBorrowBatch)
	router.GET("/borrow-requests", h.ListBorrowBatches)
	router.GET("/borrow-requests/:id", h.GetBorrowBatch)
	router.POST("/borrow-requests/:id/items/:itemID/approve", h.ApproveBorrowItem)
	router.POST("/borrow-requests/:id/items/:itemID/reject", h.RejectBorrowItem)
	router.POST("/borrow-requests/:id/items/:itemID/return", h.ReturnBorrowItem)
	router.POST("/borrow-requests/:id/claim", h.ClaimBorrowBatch)
	router.POST("/borrow-requests/:id/return", h.ReturnBorrowBatch)
	router.POST("/borrow-requests/:id/void", h.VoidBorrowBatch)

	router.POST("/reservations", h.SubmitReservationBatch)
	router.GET("/reservations", h.ListReservationBatches)
	router.GET("/reservations/:id", h.GetReservationBatch)
	router.POST("/reservations/:id/items/:itemID/approve", h.ApproveReservationItem)
	router.POST("/reservations/:id/items/:itemID/reject", h.RejectReservationItem)
	router.POST("/reservations/:id/void", h.VoidReservationBatch)
}

// listScope resolves whose batches to list: plain users only ever see their
// own; admins see everything unless they ask for one user.
func listScope(c *gin.Context) int {
	if security.GetRole(c) == roles.User {
		return security.GetUserID(c)
	}
	if raw := c.Query("user_id"); raw != "" {
		if userID, err := strconv.Atoi(raw); err == nil {
			return userID
		}
	}
	if c.Query("mine") == "true" {
		return security.GetUserID(c)
	}
	return 0
}

func pathIDs(c *gin.Context) (int, int, bool) {
	batchID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid batch ID"})
		return 0, 0, false
	}

	itemID := 0
	if raw := c.Param("itemID"); raw != "" {
		itemID, err = strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid item ID"})
			return 0, 0, false
		}
	}

	return batchID, itemID, true
}

type submitSupplyRequest struct {
	Purpose string            `json:"purpose" binding:"required"`
	Items   []SupplyItemInput `json:"items" binding:"required"`
}

type decisionRequest struct {
	ApprovedQuantity int    `json:"approved_quantity"`
	Remarks          string `json:"remarks"`
}

type voidRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *RequestHandler) SubmitSupplyBatch(c *gin.Context) {
	var req submitSupplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	batch, err := h.supplies.Submit(security.GetUserID(c), req.Purpose, req.Items)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusCreated, batch)
}

func (h *RequestHandler) ListSupplyBatches(c *gin.Context) {
	batches, err := h.supplies.ListBatches(listScope(c), c.Query("status"))
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, batches)
}

func (h *RequestHandler) GetSupplyBatch(c *gin.Context) {
	batchID, _, ok := pathIDs(c)
	if !ok {
		return
	}

	batch, err := h.supplies.GetBatch(batchID)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}
	if security.GetRole(c) == roles.User && batch.UserID != security.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only view your own requests"})
		return
	}

	c.JSON(http.StatusOK, batch)
}

func (h *RequestHandler) ApproveSupplyItem(c *gin.Context) {
	batchID, itemID, ok := pathIDs(c)
	if !ok {
		return
	}

	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	if err := h.supplies.ApproveItem(security.GetUserID(c), batchID, itemID, req.ApprovedQuantity, req.Remarks); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *RequestHandler) RejectSupplyItem(c *gin.Context) {
	batchID, itemID, ok := pathIDs(c)
	if !ok {
		return
	}

	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	if err := h.supplies.RejectItem(security.GetUserID(c), batchID, itemID, req.Remarks); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *RequestHandler) ClaimSupplyBatch(c *gin.Context) {
	batchID, _, ok := pathIDs(c)
	if !ok {
		return
	}

	if err := h.supplies.ClaimBatch(security.GetUserID(c), batchID); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *RequestHandler) ClaimSupplyItem(c *gin.Context) {
	batchID, itemID, ok := pathIDs(c)
	if !ok {
		return
	}

	if err := h.supplies.ClaimItem(security.GetUserID(c), batchID, itemID); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *RequestHandler) VoidSupplyBatch(c *gin.Context) {
	batchID, _, ok := pathIDs(c)
	if !ok {
		return
	}

	var req voidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A reason is required to void a request"})
		return
	}

	if err := h.supplies.VoidBatch(security.GetUserID(c), batchID, req.Reason); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type submitBorrowRequest struct {
	Purpose             string            `json:"purpose" binding:"required"`
	Items               []BorrowItemInput `json:"items" binding:"required"`
	SourceReservationID int               `json:"source_reservation_id"`
}

func (h *RequestHandler) SubmitBorrowBatch(c *gin.Context) {
	var req submitBorrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	batch, err := h.borrows.Submit(security.GetUserID(c), req.Purpose, req.Items, req.SourceReservationID)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusCreated, batch)
}

func (h *RequestHandler) ListBorrowBatches(c *gin.Context) {
	batches, err := h.borrows.ListBatches(listScope(c), c.Query("status"))
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, batches)
}

func (h *RequestHandler) GetBorrowBatch(c *gin.Context) {
	batchID, _, ok := pathIDs(c)
	if !ok {
		return
	}

	batch, err := h.borrows.GetBatch(batchID)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}
	if security.GetRole(c) == roles.User && batch.UserID != security.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only view your own requests"})
		return
	}

	c.JSON(http.StatusOK, batch)
}

func (h *RequestHandler) ApproveBorrowItem(c *gin.Context) {
	batchID, itemID, ok := pathIDs(c)
	if !ok {
		return
	}

	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	if err := h.borrows.ApproveItem(security.GetUserID(c), batchID, itemID, req.ApprovedQuantity, req.Remarks); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *RequestHandler) RejectBorrowItem(c *gin.Context) {
	batchID, itemID, ok := pathIDs(c)
	if !ok {
		return
	}

	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	if err := h.borrows.RejectItem(security.GetUserID(c), batchID, itemID, req.Remarks); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *RequestHandler) ClaimBorrowBatch(c *gin.Context) {
	batchID, _, ok := pathIDs(c)
	if !ok {
		return
	}

	if err := h.borrows.ClaimBatch(security.GetUserID(c), batchID); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *RequestHandler) ReturnBorrowBatch(c *gin.Context) {
	batchID, _, ok := pathIDs(c)
	if !ok {
		return
	}

	if err := h.borrows.ReturnBatch(security.GetUserID(c), batchID); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *RequestHandler) ReturnBorrowItem(c *gin.Context) {
	batchID, itemID, ok := pathIDs(c)
	if !ok {
		return
	}

	if err := h.borrows.ReturnItem(security.GetUserID(c), batchID, itemID); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *RequestHandler) VoidBorrowBatch(c *gin.Context) {
	batchID, _, ok := pathIDs(c)
	if !ok {
		return
	}

	var req voidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A reason is required to void a request"})
		return
	}

	if err := h.borrows.VoidBatch(security.GetUserID(c), batchID, req.Reason); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

type submitReservationRequest struct {
	Purpose string                 `json:"purpose" binding:"required"`
	Items   []ReservationItemInput `json:"items" binding:"required"`
}

func (h *RequestHandler) SubmitReservationBatch(c *gin.Context) {
	var req submitReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	batch, err := h.reservations.Submit(security.GetUserID(c), req.Purpose, req.Items)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusCreated, batch)
}

func (h *RequestHandler) ListReservationBatches(c *gin.Context) {
	batches, err := h.reservations.ListBatches(listScope(c), c.Query("status"))
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, batches)
}

func (h *RequestHandler) GetReservationBatch(c *gin.Context) {
	batchID, _, ok := pathIDs(c)
	if !ok {
		return
	}

	batch, err := h.reservations.GetBatch(batchID)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}
	if security.GetRole(c) == roles.User && batch.UserID != security.GetUserID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only view your own reservations"})
		return
	}

	c.JSON(http.StatusOK, batch)
}

func (h *RequestHandler) ApproveReservationItem(c *gin.Context) {
	batchID, itemID, ok := pathIDs(c)
	if !ok {
		return
	}

	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	if err := h.reservations.ApproveItem(security.GetUserID(c), batchID, itemID, req.Remarks); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *RequestHandler) RejectReservationItem(c *gin.Context) {
	batchID, itemID, ok := pathIDs(c)
	if !ok {
		return
	}

	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	if err := h.reservations.RejectItem(security.GetUserID(c), batchID, itemID, req.Remarks); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (h *RequestHandler) VoidReservationBatch(c *gin.Context) {
	batchID, _, ok := pathIDs(c)
	if !ok {
		return
	}

	var req voidRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "A reason is required to void a reservation"})
		return
	}

	if err := h.reservations.VoidBatch(security.GetUserID(c), batchID, req.Reason); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
