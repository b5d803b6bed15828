package handlers

import (
	"net/http"

	"github.com/PaulFidika/demogate/adapters/ginutil"
	"github.com/PaulFidika/demogate/generate"
	"github.com/gin-gonic/gin"
)

// HandleJobGET handles GET /jobs/:id
//
// Jobs are only visible to the device that started them.
func HandleJobGET(jobs *generate.Jobs) gin.HandlerFunc {
	return func(c *gin.Context) {
		j, ok := jobs.Get(c.Param("id"))
		if !ok || j.DeviceID != ginutil.DeviceID(c) {
			ginutil.NotFound(c, "job_not_found")
			return
		}
		c.JSON(http.StatusOK, j.View())
	}
}
