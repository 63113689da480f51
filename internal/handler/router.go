package handler

import (
	"net/http"
	"time"

	"mememind-backend/internal/config"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func NewRouter(cfg *config.Config, memeHandler *MemeHandler, authHandler *AuthHandler) *gin.Engine {
	router := gin.New()

	router.Use(RequestLogger())
	router.Use(gin.Recovery())

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().Unix(),
		})
	})

	api := router.Group("/api")
	{
		api.GET("/templates", memeHandler.ListTemplates)

		sessions := api.Group("/sessions")
		{
			sessions.POST("", memeHandler.CreateSession)
			sessions.GET("/:session_id", memeHandler.GetSession)
			sessions.DELETE("/:session_id", memeHandler.DeleteSession)
			sessions.PUT("/:session_id/prompt", memeHandler.UpdatePrompt)
			sessions.PUT("/:session_id/template", memeHandler.SelectTemplate)
			sessions.PUT("/:session_id/style", memeHandler.SelectStyle)
			sessions.POST("/:session_id/reset", memeHandler.Reset)
			sessions.POST("/:session_id/generate", RateLimit(cfg.RateLimit), memeHandler.Generate)
			sessions.GET("/:session_id/download", memeHandler.Download)
			sessions.GET("/:session_id/events", memeHandler.StreamSession)
		}

		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/signup", authHandler.Signup)
			auth.GET("/profile/:profile_id", authHandler.GetProfile)
			auth.POST("/logout/:profile_id", authHandler.Logout)
		}
	}

	return router
}
