package handlers

import (
	"context"
	"net/http"

	"github.com/PaulFidika/demogate/adapters/ginutil"
	"github.com/PaulFidika/demogate/ratelimit"
	"github.com/PaulFidika/demogate/session"
	"github.com/gin-gonic/gin"
)

// SessionLoader reads a device's demo session.
type SessionLoader interface {
	Load(ctx context.Context, deviceID string) (session.Session, error)
}

// HandleDemoSessionGET handles GET /demo/session
//
// The body is the persisted record plus the device id, so the dashboard can
// render the remaining-generations badge.
func HandleDemoSessionGET(store SessionLoader, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ratelimit.BucketSession) {
			ginutil.TooMany(c)
			return
		}
		sess, err := store.Load(c.Request.Context(), ginutil.DeviceID(c))
		if err != nil {
			ginutil.ServerErrWithLog(c, "session_unavailable", err, "failed to load demo session")
			return
		}
		body := session.Record(sess)
		body["deviceId"] = ginutil.DeviceID(c)
		c.JSON(http.StatusOK, body)
	}
}
