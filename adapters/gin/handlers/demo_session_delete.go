package handlers

import (
	"context"
	"net/http"

	"github.com/PaulFidika/demogate/adapters/ginutil"
	"github.com/PaulFidika/demogate/metrics"
	"github.com/PaulFidika/demogate/ratelimit"
	"github.com/PaulFidika/demogate/session"
	"github.com/gin-gonic/gin"
)

// SessionResetter drops and reloads a device's demo session.
type SessionResetter interface {
	SessionLoader
	Reset(ctx context.Context, deviceID string) error
}

// HandleDemoSessionDELETE handles DELETE /demo/session
//
// Discards the device's session; the response is the fresh session that
// replaces it.
func HandleDemoSessionDELETE(store SessionResetter, m *metrics.Metrics, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ratelimit.BucketSession) {
			ginutil.TooMany(c)
			return
		}
		dev := ginutil.DeviceID(c)
		if err := store.Reset(c.Request.Context(), dev); err != nil {
			ginutil.ServerErrWithLog(c, "session_unavailable", err, "failed to reset demo session")
			return
		}
		m.RecordReset()
		sess, err := store.Load(c.Request.Context(), dev)
		if err != nil {
			ginutil.ServerErrWithLog(c, "session_unavailable", err, "failed to load demo session")
			return
		}
		body := session.Record(sess)
		body["deviceId"] = dev
		c.JSON(http.StatusOK, body)
	}
}
