package routes

import (
	"github.com/gin-gonic/gin"

	"todoapi/internal/controller"
	"todoapi/internal/middleware"
	"todoapi/internal/ratelimit"
	"todoapi/internal/store"
)

// Router builds the gin engine. limiter may be nil to disable rate
// limiting (tests, local dev).
func Router(st store.Store, limiter ratelimit.Limiter) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID())

	ctrl := controller.New(st)

	// Health for load balancers and K8s probes
	router.GET("/health", ctrl.Health)
	router.GET("/ready", ctrl.Ready)

	// Public: no auth, but rate limited per client IP
	public := router.Group("")
	public.Use(middleware.RateLimit(limiter))
	{
		public.POST("/login", ctrl.Login)
		public.POST("/refresh", ctrl.Refresh)
	}

	// Protected: bearer token required
	api := router.Group("")
	api.Use(middleware.Auth(ctrl.Sessions()))
	{
		api.GET("/todos", ctrl.ListTodos)
		api.POST("/todos", ctrl.CreateTodo)
		api.PUT("/todos/:id", ctrl.UpdateTodo)
		api.DELETE("/todos/:id", ctrl.DeleteTodo)
	}

	return router
}
