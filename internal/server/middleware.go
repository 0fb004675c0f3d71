package server

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Veraticus/dialin/internal/auth"
)

const (
	clientIDHeader = "X-Client-ID"
	guestUser      = "guest"
	userKey        = "dialin.user"
)

// identify resolves the caller's user key from a bearer token. A missing
// token is allowed here; an invalid one is rejected. In guest mode every
// caller is the guest user.
func (s *Server) identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.GuestMode() {
			c.Set(userKey, guestUser)
			c.Next()
			return
		}

		token := bearerToken(c)
		if token == "" {
			c.Next()
			return
		}

		user, err := auth.Verify(s.secret, token)
		if err != nil {
			s.logger.Debug("rejected bearer token", "error", err)
			abortError(c, http.StatusUnauthorized, "missing or invalid token")
			return
		}
		c.Set(userKey, user)
		c.Next()
	}
}

// requireUser rejects requests that identify did not resolve to a user.
func (s *Server) requireUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUser(c) == "" {
			abortError(c, http.StatusUnauthorized, "missing or invalid token")
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) string {
	return c.GetString(userKey)
}

// clientKey identifies the caller for in-flight request tracking.
func clientKey(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetHeader(clientIDHeader)); id != "" {
		return "client:" + id
	}
	if user := currentUser(c); user != "" && user != guestUser {
		return "user:" + user
	}
	return "ip:" + c.ClientIP()
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		fields := []any{
			"method", c.Request.Method,
			"path", path,
			"status", status,
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if user := currentUser(c); user != "" {
			fields = append(fields, "user", user)
		}

		switch {
		case status >= 500:
			logger.Error("http request", fields...)
		case status >= 400:
			logger.Warn("http request", fields...)
		default:
			logger.Debug("http request", fields...)
		}
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func abortError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, errorResponse{Error: msg})
}
