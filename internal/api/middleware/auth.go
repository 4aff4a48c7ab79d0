package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/Marga-Ghale/ora-workspace-engine/internal/auth"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/logging"
	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates bearer tokens and sets the user id in context
func AuthMiddleware(jwtSecret string) gin.HandlerFunc {
	log := logging.For("auth")
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.WithField("path", c.Request.URL.Path).Debug("Missing Authorization header")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		// Extract token from "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			log.WithField("path", c.Request.URL.Path).Debug("Invalid Authorization header format")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header format"})
			return
		}

		userID, err := auth.UserIDFromToken(parts[1], jwtSecret)
		if err != nil {
			log.WithError(err).WithField("path", c.Request.URL.Path).Info("Rejected token")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set("userID", userID)
		c.Next()
	}
}

// RequestLogger logs every request once it completes
func RequestLogger() gin.HandlerFunc {
	log := logging.For("http")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		entry := log.WithFields(map[string]interface{}{
			"method":   method,
			"path":     path,
			"status":   status,
			"duration": time.Since(start).String(),
			"userId":   c.GetString("userID"),
		})
		for _, e := range c.Errors {
			entry.WithError(e.Err).Error("Request error")
		}

		switch {
		case status >= 500:
			entry.Error("Request failed")
		case status >= 400:
			entry.Warn("Request rejected")
		default:
			entry.Info("Request handled")
		}
	}
}

// GetUserID extracts user ID from gin context
func GetUserID(c *gin.Context) string {
	return c.GetString("userID")
}

// RequireUserID writes a 401 and returns false if no user is authenticated
func RequireUserID(c *gin.Context) (string, bool) {
	userID := GetUserID(c)
	if userID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return "", false
	}
	return userID, true
}
