package demogin

import (
	"strings"

	"github.com/PaulFidika/demogate/adapters/ginutil"
	jwtkit "github.com/PaulFidika/demogate/jwt"
	demolang "github.com/PaulFidika/demogate/lang"
	"github.com/gin-gonic/gin"
)

// Caller is a unified view of who is making the request: always a device,
// optionally a signed-in user.
type Caller struct {
	DeviceID     string   `json:"device_id"`
	UserID       string   `json:"user_id,omitempty"`
	Email        string   `json:"email,omitempty"`
	Entitlements []string `json:"entitlements,omitempty"`
	Language     string   `json:"language"`

	// Source is "claims" when a verified token was presented, else "device".
	Source string `json:"source"`
}

// Authenticated reports whether a verified token was presented.
func (c Caller) Authenticated() bool { return c.UserID != "" }

// Claims returns the verified token claims attached by AuthOptional.
func Claims(c *gin.Context) (*jwtkit.Claims, bool) {
	v, ok := c.Get(ginutil.CtxClaims)
	if !ok {
		return nil, false
	}
	cl, ok := v.(*jwtkit.Claims)
	return cl, ok && cl != nil
}

// CurrentCaller returns the caller snapshot for handlers.
func CurrentCaller(c *gin.Context) Caller {
	out := Caller{
		DeviceID: ginutil.DeviceID(c),
		Language: demolang.FromContext(c.Request.Context()),
		Source:   "device",
	}
	if cl, ok := Claims(c); ok {
		out.UserID = cl.Subject
		out.Email = cl.Email
		out.Entitlements = cl.Entitlements
		out.Source = "claims"
	}
	return out
}

// AuthOptional verifies a bearer token when one is present and attaches its
// claims. Missing or invalid tokens leave the request anonymous; tier checks
// in RequireFeature decide what that means.
func AuthOptional(v *jwtkit.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		if v != nil {
			if raw := bearerToken(c); raw != "" {
				if cl, err := v.Verify(raw); err == nil {
					c.Set(ginutil.CtxClaims, cl)
				}
			}
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
