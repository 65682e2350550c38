package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Typed context keys
type contextKey string

const (
	SessionIDKey contextKey = "sessionID"
	UserIDKey    contextKey = "userID"
)

// Identity headers. Authentication lives upstream; this service trusts the
// identifiers the gateway forwards.
const (
	SessionIDHeader = "X-Session-ID"
	UserIDHeader    = "X-User-ID"
)

// CORSMiddleware handles CORS headers
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Session-ID, X-User-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// SecurityMiddleware adds security headers
func SecurityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("X-Content-Type-Options", "nosniff")
		c.Writer.Header().Set("X-Frame-Options", "DENY")
		c.Writer.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		c.Next()
	}
}

// IdentityMiddleware extracts the session and optional user identity from
// request headers. A missing session ID gets a fresh one so downstream
// scoring always has a session to key on.
func IdentityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID := c.GetHeader(SessionIDHeader)
		if sessionID == "" {
			sessionID = uuid.NewString()
			c.Writer.Header().Set(SessionIDHeader, sessionID)
		}
		c.Set(string(SessionIDKey), sessionID)

		if userID := c.GetHeader(UserIDHeader); userID != "" {
			c.Set(string(UserIDKey), userID)
		}

		c.Next()
	}
}

// GetSessionID returns the session identifier set by IdentityMiddleware.
func GetSessionID(c *gin.Context) string {
	if v, exists := c.Get(string(SessionIDKey)); exists {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetUserID returns the authenticated user ID, or nil for anonymous requests.
func GetUserID(c *gin.Context) *string {
	if v, exists := c.Get(string(UserIDKey)); exists {
		if s, ok := v.(string); ok && s != "" {
			return &s
		}
	}
	return nil
}
