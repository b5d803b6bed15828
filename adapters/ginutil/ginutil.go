// Package ginutil holds the JSON error responses and rate-limit helper
// shared by the gin adapter and its handlers.
package ginutil

import (
	"net/http"

	"github.com/PaulFidika/demogate/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Context keys set by the adapter middleware.
const (
	CtxDeviceID = "demogate.device_id"
	CtxClaims   = "demogate.claims"
	CtxLanguage = "demogate.language"
)

// RateLimiter is the limiter used by handlers; nil disables limiting.
type RateLimiter = ratelimit.Limiter

// DeviceID returns the device id attached by DeviceMiddleware.
func DeviceID(c *gin.Context) string { return c.GetString(CtxDeviceID) }

// AllowNamed applies rl to the caller's device for bucket. Limiter errors
// fail open and are logged.
func AllowNamed(c *gin.Context, rl RateLimiter, bucket string) bool {
	if rl == nil {
		return true
	}
	key := DeviceID(c)
	if key == "" {
		key = c.ClientIP()
	}
	ok, err := rl.Allow(c.Request.Context(), bucket, key)
	if err != nil {
		logrus.WithError(err).WithField("bucket", bucket).Warn("rate limiter unavailable")
		return true
	}
	return ok
}

func BadRequest(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": code})
}

func NotFound(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": code})
}

func Unauthorized(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": code})
}

func TooMany(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
}

func NotImplemented(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusNotImplemented, gin.H{"error": code})
}

func ServerErr(c *gin.Context, code string) {
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": code})
}

// ServerErrWithLog logs err before responding with a 500.
func ServerErrWithLog(c *gin.Context, code string, err error, msg string) {
	logrus.WithError(err).WithFields(logrus.Fields{
		"path":      c.FullPath(),
		"device_id": DeviceID(c),
	}).Error(msg)
	ServerErr(c, code)
}
