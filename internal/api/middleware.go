package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"todo-planner/internal/logging"
	"todo-planner/internal/model"
	"todo-planner/internal/repository"
)

const (
	headerRequestID = "X-Request-ID"
	// headerSubject carries the user id asserted by the upstream authenticator.
	headerSubject = "X-Auth-Subject"
	userKey       = "user"
)

// RequestID tags the request logger with the incoming or a generated request id.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(headerRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		ctx := logging.With(c.Request.Context(), "request_id", id)
		c.Request = c.Request.WithContext(ctx)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logging.FromContext(c.Request.Context()).Info("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}

// Identity resolves the authenticated subject to a user record.
func Identity(users *repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		subject := strings.TrimSpace(c.GetHeader(headerSubject))
		if subject == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		user, err := users.UpsertByExternalID(ctx, subject)
		if err != nil {
			logging.FromContext(ctx).Error("resolve user failed", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Internal error"})
			return
		}
		c.Request = c.Request.WithContext(logging.With(ctx, "user_id", user.ID))
		c.Set(userKey, user)
		c.Next()
	}
}

// RequireOperator lets through only users whose auth subject is listed in operators.
func RequireOperator(operators []string) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(operators))
	for _, subject := range operators {
		allowed[subject] = struct{}{}
	}
	return func(c *gin.Context) {
		user := currentUser(c)
		if user == nil || user.ExternalID == nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}
		if _, ok := allowed[*user.ExternalID]; !ok {
			logging.FromContext(c.Request.Context()).Warn("operator route denied", "subject", *user.ExternalID, "path", c.FullPath())
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden"})
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) *model.User {
	user, _ := c.MustGet(userKey).(*model.User)
	return user
}
