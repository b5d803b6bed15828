package demogin

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PaulFidika/demogate/adapters/ginutil"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// DeviceConfig controls how the device id is carried between requests.
type DeviceConfig struct {
	HeaderName string
	CookieName string
	MaxAge     time.Duration
	Secure     bool
}

func (c *DeviceConfig) defaulted() DeviceConfig {
	var out DeviceConfig
	if c != nil {
		out = *c
	}
	if strings.TrimSpace(out.HeaderName) == "" {
		out.HeaderName = "X-Device-ID"
	}
	if strings.TrimSpace(out.CookieName) == "" {
		out.CookieName = "demo_device"
	}
	if out.MaxAge <= 0 {
		out.MaxAge = 365 * 24 * time.Hour
	}
	return out
}

var reDeviceID = regexp.MustCompile(`^[A-Za-z0-9_-]{8,64}$`)

func validDeviceID(s string) bool { return reDeviceID.MatchString(s) }

// DeviceMiddleware resolves the caller's device id from the header, then the
// cookie, and mints a new one when neither carries a valid id. The id is
// echoed back as a cookie so the browser keeps its demo session.
func DeviceMiddleware(cfg *DeviceConfig) gin.HandlerFunc {
	dc := cfg.defaulted()
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(dc.HeaderName))
		if !validDeviceID(id) {
			id = ""
			if v, err := c.Cookie(dc.CookieName); err == nil && validDeviceID(v) {
				id = v
			}
		}
		if id == "" {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(dc.CookieName, id, int(dc.MaxAge.Seconds()), "/", "", dc.Secure, true)
		}
		c.Set(ginutil.CtxDeviceID, id)
		c.Header(dc.HeaderName, id)
		c.Next()
	}
}
