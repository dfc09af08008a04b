package v1

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"
	mgin "github.com/ulule/limiter/v3/drivers/middleware/gin"
)

// NewRateLimitMiddleware ограничивает частоту запросов с одного IP.
// rate в формате ulule/limiter, например "30-M".
func NewRateLimitMiddleware(rate string, store limiter.Store, log *logrus.Logger) (gin.HandlerFunc, error) {
	r, err := limiter.NewRateFromFormatted(rate)
	if err != nil {
		return nil, fmt.Errorf("invalid rate limit %q: %w", rate, err)
	}

	return mgin.NewMiddleware(limiter.New(store, r),
		mgin.WithLimitReachedHandler(func(c *gin.Context) {
			log.WithField("client_ip", c.ClientIP()).Warn("Rate limit exceeded")
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
		}),
		mgin.WithErrorHandler(func(c *gin.Context, err error) {
			// Хранилище лимитов недоступно: заявку не блокируем
			log.WithError(err).Error("Rate limiter store failed")
			c.Next()
		}),
	), nil
}
