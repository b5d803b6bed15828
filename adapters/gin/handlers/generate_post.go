package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/PaulFidika/demogate/adapters/ginutil"
	"github.com/PaulFidika/demogate/generate"
	"github.com/PaulFidika/demogate/ratelimit"
	"github.com/PaulFidika/demogate/session"
	"github.com/gin-gonic/gin"
)

// HandleGeneratePOST handles POST /generate/:feature
//
// Mount it behind demogin.RequireFeature; quota is charged by the runner
// only when the generation succeeds.
func HandleGeneratePOST(r *generate.Runner, rl ginutil.RateLimiter) gin.HandlerFunc {
	type reqBody struct {
		Input map[string]any `json:"input"`
	}
	return func(c *gin.Context) {
		if !ginutil.AllowNamed(c, rl, ratelimit.BucketGenerate) {
			ginutil.TooMany(c)
			return
		}
		var req reqBody
		if c.Request.ContentLength != 0 {
			// An empty chunked body has no length and decodes to io.EOF.
			if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
				ginutil.BadRequest(c, "invalid_request")
				return
			}
		}
		out, err := r.Run(c.Request.Context(), ginutil.DeviceID(c), c.Param("feature"), req.Input)
		if errors.Is(err, generate.ErrNoGenerator) {
			ginutil.NotImplemented(c, "generator_not_configured")
			return
		}
		if err != nil {
			if out.Job.ID == "" {
				ginutil.ServerErrWithLog(c, "generation_failed", err, "generation could not start")
				return
			}
			c.JSON(http.StatusBadGateway, gin.H{"error": "generation_failed", "job": out.Job})
			return
		}
		resp := gin.H{"job": out.Job}
		if out.Session != nil {
			resp["session"] = session.Record(*out.Session)
		}
		c.JSON(http.StatusOK, resp)
	}
}
