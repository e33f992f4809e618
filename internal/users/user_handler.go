package users

import (
	"net/http"
	"strconv"

	"resourcehive/pkg/apperrors"
	"resourcehive/pkg/models"
	"resourcehive/pkg/security"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	service *UserService
}

func NewUserHandler(service *UserService) *UserHandler {
	return &UserHandler{service: service}
}

func (h *UserHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/users", h.ListUsers)
	router.POST("/users", h.CreateUser)
	router.GET("/users/:id", h.GetUser)
	router.PATCH("/users/:id", h.UpdateUser)
	router.GET("/users/:id/permissions", h.GetPermissions)
	router.PUT("/users/:id/permissions", h.SetPermissions)
}

func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.service.List(security.GetUserID(c))
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, users)
}

func (h *UserHandler) CreateUser(c *gin.Context) {
	var req models.CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	user, err := h.service.Create(security.GetUserID(c), &req)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) GetUser(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	user, err := h.service.Get(security.GetUserID(c), userID)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, user)
}

func (h *UserHandler) UpdateUser(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	var req models.UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}

	user, err := h.service.Update(security.GetUserID(c), userID, &req)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, user)
}

// GetPermissions backs the permission editor; its envelope follows the AJAX
// contract.
func (h *UserHandler) GetPermissions(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid user ID"})
		return
	}

	granted, err := h.service.GetPermissions(security.GetUserID(c), userID)
	if err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"success": false, "error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "permissions": granted})
}

func (h *UserHandler) SetPermissions(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid user ID"})
		return
	}

	var req struct {
		Codenames []string `json:"codenames"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request payload"})
		return
	}

	if err := h.service.SetPermissions(security.GetUserID(c), userID, req.Codenames); err != nil {
		c.JSON(apperrors.HTTPStatus(err), gin.H{"success": false, "error": apperrors.UserMessage(err)})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
