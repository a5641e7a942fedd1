package app

import (
	"activity_engine/internal/config"
	"activity_engine/internal/middleware"
	"activity_engine/internal/util"
	"activity_engine/pkg/monitoring"

	"github.com/gin-gonic/gin"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		a.registerSessionRoutes(authGroup, c)
		a.registerProgressRoutes(authGroup, c)
	}
}

func (a *App) registerSessionRoutes(rg *gin.RouterGroup, c *controllers) {
	sessions := rg.Group("/sessions")
	{
		sessions.POST("", c.session.CreateSession)
		sessions.GET("/:id", c.session.GetSession)
		sessions.GET("/:id/ws", c.session.HandleWS)

		// 状态流转
		sessions.POST("/:id/start", c.session.Start)
		sessions.POST("/:id/pause", c.session.Pause)
		sessions.POST("/:id/resume", c.session.Resume)
		sessions.POST("/:id/submit", c.session.Submit)
		sessions.POST("/:id/abandon", c.session.Abandon)

		// 作答与导航
		sessions.PUT("/:id/answers/:itemId", c.session.Answer)
		sessions.POST("/:id/step", c.session.SubmitStep)
		sessions.POST("/:id/advance", c.session.Advance)
		sessions.POST("/:id/retreat", c.session.Retreat)
		sessions.POST("/:id/consumed", c.session.Consumed)
		sessions.POST("/:id/recording", c.session.UploadRecording)

		sessions.GET("/:id/result", c.session.GetResult)
	}
}

func (a *App) registerProgressRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/lessons/:id/progress", c.progress.LessonProgress)
	rg.GET("/learners/me/results", c.progress.MyResults)

	// 教师相关接口
	instructor := rg.Group("/classes")
	instructor.Use(middleware.RoleMiddleware(util.RoleInstructor))
	{
		instructor.GET("/:id/progress", c.progress.ClassProgress)
	}
}
