package server

import (
	"context"
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/labdesk/internal/ratelimit"
	"go.uber.org/zap"
)

type formLimiter interface {
	Allow(ctx context.Context, client string) (*ratelimit.Result, error)
}

// RateLimited throttles per client IP. Limiter failures let the request through.
func (s *Server) RateLimited() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}
		res, err := s.limiter.Allow(c.Request.Context(), c.ClientIP())
		if err != nil {
			s.log.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}
		if !res.Allowed {
			if res.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(math.Ceil(res.RetryAfter.Seconds()))))
			}
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
