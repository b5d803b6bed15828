package demogin

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/PaulFidika/demogate/adapters/ginutil"
	"github.com/PaulFidika/demogate/features"
	demolang "github.com/PaulFidika/demogate/lang"
	"github.com/PaulFidika/demogate/quota"
	"github.com/gin-gonic/gin"
)

// BadgeHeader carries the remaining demo generations on allowed responses.
const BadgeHeader = "X-Demo-Generations-Left"

const ctxStatus = "demogate.status"

// Gate is the subset of *quota.Gate used by the wrapper.
type Gate interface {
	CanUse(ctx context.Context, deviceID, featureID string) (bool, error)
	Status(ctx context.Context, deviceID, featureID string) (quota.Status, error)
	Catalog() *features.Catalog
}

// PromptConfig sets where the upgrade and sign-in prompts point.
type PromptConfig struct {
	UpgradeURL         string
	SignInURL          string
	PremiumEntitlement string
}

func (p *PromptConfig) defaulted() PromptConfig {
	var out PromptConfig
	if p != nil {
		out = *p
	}
	if out.UpgradeURL == "" {
		out.UpgradeURL = "/pricing"
	}
	if out.SignInURL == "" {
		out.SignInURL = "/login"
	}
	if out.PremiumEntitlement == "" {
		out.PremiumEntitlement = "premium"
	}
	return out
}

// GateStatus returns the status computed by RequireFeature, if any.
func GateStatus(c *gin.Context) (quota.Status, bool) {
	v, ok := c.Get(ctxStatus)
	if !ok {
		return quota.Status{}, false
	}
	st, ok := v.(quota.Status)
	return st, ok
}

// RequireFeature guards a route behind featureID's access tier. Demo
// features pass while the device has generations left and otherwise get an
// upgrade prompt. It never consumes quota; the guarded handler does that once
// the work has succeeded.
//
// The feature id is taken from featureID, or from the ":feature" route
// parameter when featureID is empty.
func RequireFeature(g Gate, featureID string, prompts *PromptConfig) gin.HandlerFunc {
	pc := prompts.defaulted()
	return func(c *gin.Context) {
		id := featureID
		if id == "" {
			id = c.Param("feature")
		}
		d, err := g.Catalog().Lookup(id)
		if errors.Is(err, features.ErrNotFound) {
			if featureID == "" {
				ginutil.NotFound(c, "unknown_feature")
				return
			}
			ginutil.ServerErrWithLog(c, "unknown_feature", err, "route guarded by unregistered feature")
			return
		}
		if err != nil {
			ginutil.ServerErrWithLog(c, "feature_lookup_failed", err, "feature lookup failed")
			return
		}

		caller := CurrentCaller(c)
		switch d.Tier {
		case features.Public:
		case features.Authenticated:
			if !caller.Authenticated() {
				signInPrompt(c, d.ID, caller.Language, pc)
				return
			}
		case features.Premium:
			if !caller.Authenticated() {
				signInPrompt(c, d.ID, caller.Language, pc)
				return
			}
			if cl, _ := Claims(c); !cl.Has(pc.PremiumEntitlement) {
				c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
					"error":       "premium_required",
					"feature":     d.ID,
					"message":     demolang.Message(caller.Language, demolang.PremiumOnly),
					"upgrade_url": pc.UpgradeURL,
				})
				return
			}
		case features.Demo:
			ok, err := g.CanUse(c.Request.Context(), caller.DeviceID, d.ID)
			if err != nil {
				ginutil.ServerErrWithLog(c, "quota_unavailable", err, "demo quota check failed")
				return
			}
			if !ok {
				c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
					"error":            "demo_exhausted",
					"feature":          d.ID,
					"generations_left": 0,
					"message":          demolang.Message(caller.Language, demolang.DemoExhausted),
					"upgrade_url":      pc.UpgradeURL,
				})
				return
			}
		}

		st, err := g.Status(c.Request.Context(), caller.DeviceID, d.ID)
		if err != nil {
			ginutil.ServerErrWithLog(c, "quota_unavailable", err, "demo quota status failed")
			return
		}
		if st.GenerationsLeft != nil {
			c.Header(BadgeHeader, strconv.Itoa(*st.GenerationsLeft))
		}
		c.Set(ctxStatus, st)
		c.Next()
	}
}

func signInPrompt(c *gin.Context, feature, language string, pc PromptConfig) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":       "sign_in_required",
		"feature":     feature,
		"message":     demolang.Message(language, demolang.SignInRequired),
		"sign_in_url": pc.SignInURL,
	})
}
