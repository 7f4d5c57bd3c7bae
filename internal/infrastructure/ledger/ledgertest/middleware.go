package ledgertest

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	appctx "github.com/jecaicedo27/toppingfrozen-sub005/internal/core/context"
	"github.com/jecaicedo27/toppingfrozen-sub005/internal/infrastructure/ledger"
	"github.com/jecaicedo27/toppingfrozen-sub005/pkg/logger"
)

// HeaderRequestID carries the caller's request id.
const HeaderRequestID = ledger.HeaderRequestID

// recovery turns handler panics into a ledger-style 500.
func recovery(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.WithContext(c.Request.Context()).Errorw("panic recovered",
					"error", err,
					"stack", string(debug.Stack()))
				c.AbortWithStatusJSON(http.StatusInternalServerError,
					errorBody(http.StatusInternalServerError, "internal_error", fmt.Sprintf("%v", err)))
			}
		}()
		c.Next()
	}
}

// trace attaches a request id to the context and echoes it back.
func trace() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		tc := &appctx.TraceContext{
			TraceID:   uuid.New().String(),
			RequestID: requestID,
		}
		c.Request = c.Request.WithContext(appctx.WithTrace(c.Request.Context(), tc))
		c.Header(HeaderRequestID, requestID)
		c.Next()
	}
}

// requestLog logs every request with timing and status.
func requestLog(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithContext(c.Request.Context()).Debugw("ledger request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"query", c.Request.URL.RawQuery,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds())
	}
}

// auth rejects requests without the expected bearer token or partner id.
func (s *Server) auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		token, partner := s.token, s.partnerID
		s.mu.Unlock()

		if token != "" {
			got := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
			if got != token {
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					errorBody(http.StatusUnauthorized, "invalid_token", "The access token is invalid or expired"))
				return
			}
		}
		if partner != "" && c.GetHeader("Partner-Id") != partner {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				errorBody(http.StatusUnauthorized, "invalid_partner", "Partner-Id header missing or unknown"))
			return
		}
		c.Next()
	}
}

// throttle answers 429 while injected rate-limit responses remain.
func (s *Server) throttle() gin.HandlerFunc {
	return func(c *gin.Context) {
		s.mu.Lock()
		s.requests[c.Request.Method+" "+c.FullPath()]++
		limited := s.rateLimitLeft > 0
		if limited {
			s.rateLimitLeft--
		}
		retryAfter := s.retryAfter
		s.mu.Unlock()

		if limited {
			if retryAfter != "" {
				c.Header("Retry-After", retryAfter)
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests,
				errorBody(http.StatusTooManyRequests, "too_many_requests", "Rate limit exceeded"))
			return
		}
		c.Next()
	}
}
