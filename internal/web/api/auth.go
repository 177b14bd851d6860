package api

import (
	"net/http"

	"automator/auth"
	"automator/internal/web/models"

	"github.com/gin-gonic/gin"
)

func RegisterAuthRoutes(router *gin.Engine, authModule *auth.AuthModule) {
	r := router.Group("/auth")
	{
		r.POST("/token", func(c *gin.Context) {
			var req models.TokenRequest
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			token, err := authModule.LoginWithJWT(c, req.ClientID, req.ClientSecret)
			if err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusOK, gin.H{"token": token})
		})
	}
}
