package handlers

import (
	"errors"
	"net/http"

	"github.com/PaulFidika/demogate/adapters/ginutil"
	"github.com/PaulFidika/demogate/features"
	"github.com/PaulFidika/demogate/quota"
	"github.com/PaulFidika/demogate/ratelimit"
	"github.com/PaulFidika/demogate/session"
	"github.com/gin-gonic/gin"
)

// HandleDemoFeatureConsumePOST handles POST /demo/features/:feature/consume
//
// Clients that call the generation providers themselves report each
// successful generation here. The count floors at zero.
func HandleDemoFeatureConsumePOST(g *quota.Gate, rl ginutil.RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ratelimit.BucketConsume) {
			ginutil.TooMany(c)
			return
		}
		sess, err := g.Consume(c.Request.Context(), ginutil.DeviceID(c), c.Param("feature"))
		if errors.Is(err, features.ErrNotFound) {
			ginutil.NotFound(c, "unknown_feature")
			return
		}
		if err != nil {
			ginutil.ServerErrWithLog(c, "consume_failed", err, "failed to consume demo generation")
			return
		}
		c.JSON(http.StatusOK, session.Record(sess))
	}
}
