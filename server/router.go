// Package server composes the gin engine that fronts the demo gate.
package server

import (
	"net/http"
	"slices"
	"time"

	demogin "github.com/PaulFidika/demogate/adapters/gin"
	"github.com/PaulFidika/demogate/adapters/gin/handlers"
	"github.com/PaulFidika/demogate/adapters/ginutil"
	"github.com/PaulFidika/demogate/generate"
	jwtkit "github.com/PaulFidika/demogate/jwt"
	"github.com/PaulFidika/demogate/metrics"
	"github.com/PaulFidika/demogate/quota"
	"github.com/PaulFidika/demogate/ratelimit"
	"github.com/PaulFidika/demogate/session"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type RouterDeps struct {
	Gate     *quota.Gate
	Sessions *session.Store
	Runner   *generate.Runner
	Limiter  ratelimit.Limiter
	Verifier *jwtkit.Verifier
	Metrics  *metrics.Metrics
	Health   *HealthHandler

	Prompts     demogin.PromptConfig
	Device      demogin.DeviceConfig
	Language    demogin.LanguageConfig
	CORSOrigins []string
	Log         *logrus.Entry
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(dep.Log))
	if c, ok := corsConfig(dep.CORSOrigins); ok {
		r.Use(cors.New(c))
	}

	if dep.Health != nil {
		dep.Health.RegisterRoutes(r)
	}
	if dep.Metrics != nil {
		r.GET("/metrics", gin.WrapH(dep.Metrics.Handler()))
	}

	api := r.Group("")
	api.Use(
		demogin.DeviceMiddleware(&dep.Device),
		demogin.LanguageMiddleware(&dep.Language),
		demogin.AuthOptional(dep.Verifier),
	)

	demo := api.Group("/demo")
	demo.GET("/session", handlers.HandleDemoSessionGET(dep.Sessions, dep.Limiter))
	demo.DELETE("/session", handlers.HandleDemoSessionDELETE(dep.Sessions, dep.Metrics, dep.Limiter))
	demo.GET("/features", handlers.HandleDemoFeaturesGET(dep.Gate))
	demo.GET("/features/:feature", handlers.HandleDemoFeatureGET(dep.Gate))
	demo.POST("/features/:feature/consume", handlers.HandleDemoFeatureConsumePOST(dep.Gate, dep.Limiter))

	if dep.Runner != nil {
		api.POST("/generate/:feature",
			demogin.RequireFeature(dep.Gate, "", &dep.Prompts),
			handlers.HandleGeneratePOST(dep.Runner, dep.Limiter),
		)
		api.GET("/jobs/:id", handlers.HandleJobGET(dep.Runner.Jobs))
	}
	return r
}

func corsConfig(origins []string) (cors.Config, bool) {
	if len(origins) == 0 {
		return cors.Config{}, false
	}
	c := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Device-ID"},
		ExposeHeaders: []string{"X-Device-ID", demogin.BadgeHeader},
		MaxAge:        12 * time.Hour,
	}
	if slices.Contains(origins, "*") {
		c.AllowAllOrigins = true
		return c, true
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c, true
}

func requestLogger(log *logrus.Entry) gin.HandlerFunc {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	log = log.WithField("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := log.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.FullPath(),
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"device_id": ginutil.DeviceID(c),
		})
		switch s := c.Writer.Status(); {
		case s >= 500:
			entry.Error("request failed")
		case s >= 400:
			entry.Info("request rejected")
		default:
			entry.Debug("request served")
		}
	}
}
