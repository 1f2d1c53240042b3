package errreport

import (
	"github.com/gin-gonic/gin"
	"github.com/rollbar/rollbar-go"
	"go.uber.org/zap"
)

// Reporter forwards server-side request failures to Rollbar.
type Reporter struct {
	client *rollbar.Client
	logger *zap.Logger
}

// NewRollbarReporter returns nil when token is empty so callers can skip wiring.
func NewRollbarReporter(token, env, version, host string, logger *zap.Logger) *Reporter {
	if token == "" {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := rollbar.New(token, env, version, host, "")
	return &Reporter{client: client, logger: logger}
}

// Middleware reports errors attached to the gin context by handlers once the
// response status is 5xx.
func (r *Reporter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if r == nil || c.Writer.Status() < 500 {
			return
		}
		for _, ginErr := range c.Errors {
			r.client.ErrorWithExtras(rollbar.ERR, ginErr.Err, map[string]interface{}{
				"path":   c.FullPath(),
				"method": c.Request.Method,
				"status": c.Writer.Status(),
			})
		}
	}
}

// Close flushes pending reports.
func (r *Reporter) Close() {
	if r == nil {
		return
	}
	if err := r.client.Close(); err != nil {
		r.logger.Warn("rollbar close failed", zap.Error(err))
	}
}
