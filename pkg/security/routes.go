package security

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

func (a *Authenticator) RegisterRoutes(router *gin.Engine) {
	router.POST("/auth", a.LoginEndpoint)
	router.POST("/auth/password-reset", a.RequestPasswordResetEndpoint)
	router.POST("/auth/password-reset/confirm", a.ResetPasswordEndpoint)
}

// LoginEndpoint authenticates and returns a token bound to the user's new
// single session.
func (a *Authenticator) LoginEndpoint(c *gin.Context) {
	var req struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request payload"})
		return
	}

	token, user, err := a.Login(req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid username or password"})
		case errors.Is(err, ErrAccountDisabled):
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Your account is disabled"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"fullname": user.Fullname,
			"role":     user.Role,
		},
	})
}

// RequestPasswordResetEndpoint always answers OK so the endpoint cannot be
// used to probe which addresses have accounts.
func (a *Authenticator) RequestPasswordResetEndpoint(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "A valid email address is required"})
		return
	}

	if err := a.RequestPasswordReset(req.Email); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "If the address is registered, a reset code has been sent",
	})
}

func (a *Authenticator) ResetPasswordEndpoint(c *gin.Context) {
	var req struct {
		Token       string `json:"token" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid request payload"})
		return
	}

	if err := a.ResetPassword(req.Token, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, ErrResetTokenInvalid):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Reset code is invalid or expired"})
		case errors.Is(err, ErrPasswordTooShort):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Password must be at least 8 characters"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Internal server error"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Password updated"})
}

// LogoutEndpoint removes the caller's session row, invalidating the token.
func (a *Authenticator) LogoutEndpoint(c *gin.Context) {
	userID := GetUserID(c)
	if userID == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Not authenticated"})
		return
	}

	if err := a.Logout(userID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Failed to log out"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true})
}
