package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// CorrelationIDHeader carries the correlation id in both directions
	CorrelationIDHeader = "X-Correlation-ID"

	// CorrelationIDKey is the gin context key of the correlation id
	CorrelationIDKey = "correlation_id"

	maxCorrelationIDLength = 128
)

type correlationIDCtxKey struct{}

// CorrelationID tags every request with an id that is echoed back, logged and
// forwarded on reconcile requests. Client ids that are too long are replaced.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(CorrelationIDHeader)
		if correlationID == "" || len(correlationID) > maxCorrelationIDLength {
			correlationID = uuid.New().String()
		}

		c.Header(CorrelationIDHeader, correlationID)
		c.Set(CorrelationIDKey, correlationID)
		c.Request = c.Request.WithContext(WithCorrelationID(c.Request.Context(), correlationID))

		c.Next()
	}
}

// GetCorrelationID returns the request's correlation id, or "" outside the
// middleware.
func GetCorrelationID(c *gin.Context) string {
	return c.GetString(CorrelationIDKey)
}

func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationIDCtxKey{}, correlationID)
}

// CorrelationIDFromContext lets services below the handlers read the id.
func CorrelationIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(correlationIDCtxKey{}).(string)
	return id
}
