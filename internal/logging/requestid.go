package logging

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// RequestIDHeader carries the request id in and out of the console.
const RequestIDHeader = "X-Request-Id"

const (
	ginRequestIDKey    = "__request_id__"
	maxRequestIDLength = 64
)

type requestIDKey struct{}

// GenerateRequestID returns a short random id: the first eight hex digits of a UUIDv4.
func GenerateRequestID() string {
	return uuid.NewString()[:8]
}

// requestIDFromHeader accepts an id set by a fronting proxy when it is short and made of
// URL-safe characters, and generates a fresh one otherwise.
func requestIDFromHeader(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || len(value) > maxRequestIDLength {
		return GenerateRequestID()
	}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return GenerateRequestID()
		}
	}
	return value
}

// WithRequestID attaches requestID to ctx so that code below the handler can log with it.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// GetRequestID returns the id attached by WithRequestID.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	requestID, _ := ctx.Value(requestIDKey{}).(string)
	return requestID
}

func setGinRequestID(c *gin.Context, requestID string) {
	c.Set(ginRequestIDKey, requestID)
	c.Request = c.Request.WithContext(WithRequestID(c.Request.Context(), requestID))
	c.Header(RequestIDHeader, requestID)
}

// GetGinRequestID returns the id assigned by GinLogrusLogger.
func GetGinRequestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(ginRequestIDKey)
}
