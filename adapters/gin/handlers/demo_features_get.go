package handlers

import (
	"errors"
	"net/http"

	"github.com/PaulFidika/demogate/adapters/ginutil"
	"github.com/PaulFidika/demogate/features"
	"github.com/PaulFidika/demogate/quota"
	"github.com/gin-gonic/gin"
)

// HandleDemoFeaturesGET handles GET /demo/features
func HandleDemoFeaturesGET(g *quota.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		all, err := g.StatusAll(c.Request.Context(), ginutil.DeviceID(c))
		if err != nil {
			ginutil.ServerErrWithLog(c, "quota_unavailable", err, "failed to list feature status")
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": all})
	}
}

// HandleDemoFeatureGET handles GET /demo/features/:feature
func HandleDemoFeatureGET(g *quota.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		st, err := g.Status(c.Request.Context(), ginutil.DeviceID(c), c.Param("feature"))
		if errors.Is(err, features.ErrNotFound) {
			ginutil.NotFound(c, "unknown_feature")
			return
		}
		if err != nil {
			ginutil.ServerErrWithLog(c, "quota_unavailable", err, "failed to load feature status")
			return
		}
		c.JSON(http.StatusOK, st)
	}
}
