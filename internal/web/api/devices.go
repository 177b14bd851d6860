package api

import (
	"context"
	"net/http"

	"automator/internal/models"
	"automator/internal/web/middleware"
	webModels "automator/internal/web/models"

	"github.com/gin-gonic/gin"
)

// StateReader returns the cached device snapshot
type StateReader interface {
	Snapshot(ctx context.Context) (models.DeviceState, error)
}

// BlockListEditor edits the shared app deny-list
type BlockListEditor interface {
	Add(ctx context.Context, pkg string) error
	Remove(ctx context.Context, pkg string) error
	List() []string
}

func RegisterDeviceRoutes(r *gin.Engine, middleware *middleware.MiddlewareManager, states StateReader, blocklist BlockListEditor) {
	device := r.Group("/device")
	device.Use(middleware.RequireAuth())
	{
		device.GET("/state", func(c *gin.Context) {
			st, err := states.Snapshot(c)
			if err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, st)
		})
	}

	blocked := r.Group("/blocklist")
	blocked.Use(middleware.RequireAuth())
	{
		blocked.GET("", func(c *gin.Context) {
			c.JSON(http.StatusOK, webModels.BlockListResponse{Packages: blocklist.List()})
		})
		blocked.PUT("/:package", func(c *gin.Context) {
			if err := blocklist.Add(c, c.Param("package")); err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, webModels.BlockListResponse{Packages: blocklist.List()})
		})
		blocked.DELETE("/:package", func(c *gin.Context) {
			if err := blocklist.Remove(c, c.Param("package")); err != nil {
				writeError(c, err)
				return
			}
			c.JSON(http.StatusOK, webModels.BlockListResponse{Packages: blocklist.List()})
		})
	}
}
