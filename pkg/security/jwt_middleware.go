package security

import (
	"net/http"
	"strings"

	"resourcehive/pkg/roles"

	"github.com/gin-gonic/gin"
)

// JWTMiddleware validates the token and checks that its session key is still
// the user's live session. A token whose session row was replaced by a newer
// login is rejected here.
func (a *Authenticator) JWTMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Authorization header missing"})
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := a.parseToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid token"})
			return
		}

		userIDFloat, ok := claims["userID"].(float64)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid token claims"})
			return
		}
		userID := int(userIDFloat)

		sessionKey, ok := claims["sid"].(string)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Invalid token claims"})
			return
		}

		valid, err := a.sessions.IsValid(userID, sessionKey)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"success": false, "error": "Unable to verify session"})
			return
		}
		if !valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "error": "Session is no longer valid"})
			return
		}

		c.Set("userID", userID)
		c.Set("role", claims["role"])
		c.Set("username", claims["username"])
		c.Next()
	}
}

// Authorize ensures the caller's role sits at or above the required level.
func Authorize(requiredRole roles.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		roleValue, exists := c.Get("role")
		if !exists {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "Forbidden: insufficient permissions"})
			return
		}

		userRole, ok := roleValue.(string)
		if !ok || !roles.Role(userRole).HasAtLeast(requiredRole) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "error": "Forbidden: insufficient permissions"})
			return
		}

		c.Next()
	}
}

// GetUserID returns the authenticated caller's id, or 0 outside the
// middleware chain.
func GetUserID(c *gin.Context) int {
	value, exists := c.Get("userID")
	if !exists {
		return 0
	}
	userID, ok := value.(int)
	if !ok {
		return 0
	}
	return userID
}

func GetRole(c *gin.Context) roles.Role {
	value, exists := c.Get("role")
	if !exists {
		return ""
	}
	role, ok := value.(string)
	if !ok {
		return ""
	}
	return roles.Role(role)
}
