package http

import (
	"errors"
	"net/http"

	"github.com/MfmRifath/NovaAiTelegram-Bot/internal/usecases"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func SetupRoutes(r *gin.Engine, auth *usecases.AuthUsecase, adminHandler *AdminHandler, middleware *Middleware) {
	r.Use(SecurityHeaders())
	r.Use(RequestSizeLimiter(1 << 20))

	// Health check
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "Bot is running")
	})

	authGroup := r.Group("/api/auth")
	{
		authGroup.POST("/login", func(c *gin.Context) {
			var loginReq struct {
				Password string `json:"password" binding:"required"`
			}
			if err := c.ShouldBindJSON(&loginReq); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
			token, err := auth.Login(loginReq.Password)
			if errors.Is(err, usecases.ErrAdminDisabled) {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Admin API disabled"})
				return
			}
			if err != nil {
				log.WithField("client_ip", c.ClientIP()).Warn("Failed admin login")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"token": token})
		})
	}

	admin := r.Group("/api/admin")
	admin.Use(middleware.AuthRequired())
	admin.Use(middleware.AdminRequired())
	admin.Use(middleware.RateLimitPerUser(5, 10))
	{
		admin.GET("/stats", adminHandler.GetStats)

		admin.GET("/ads", adminHandler.ListAds)
		admin.POST("/ads", adminHandler.CreateAd)
		admin.PATCH("/ads/:id", adminHandler.EditAd)
		admin.POST("/ads/:id/pause", adminHandler.PauseAd)
		admin.POST("/ads/:id/resume", adminHandler.ResumeAd)
		admin.DELETE("/ads/:id", adminHandler.DeleteAd)
		admin.POST("/scheduler/tick", adminHandler.RunTick)

		admin.GET("/accounts/:id", adminHandler.GetAccount)
		admin.POST("/accounts/:id/balance", adminHandler.UpdateBalance)

		admin.PUT("/settings/ai", adminHandler.SetAI)
	}
}
