package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/registrar-api/api/swagger"
	"github.com/noah-isme/registrar-api/internal/bootstrap"
	"github.com/noah-isme/registrar-api/internal/handler"
	"github.com/noah-isme/registrar-api/internal/middleware"
	"github.com/noah-isme/registrar-api/internal/models"
	"github.com/noah-isme/registrar-api/pkg/config"
	"github.com/noah-isme/registrar-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/registrar-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/registrar-api/pkg/middleware/requestid"
)

func newRouter(app *bootstrap.App) *gin.Engine {
	cfg := app.Config

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(app.Logger, "/health", "/ready", "/metrics", cfg.APIPrefix+"/events", cfg.APIPrefix+"/events/ws"))
	r.Use(middleware.Metrics(app.Metrics, "/metrics", cfg.APIPrefix+"/events", cfg.APIPrefix+"/events/ws"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	checks := map[string]handler.Pinger{"database": app.Store}
	if app.Redis != nil {
		checks["cache"] = redisPinger{client: app.Redis}
	}
	metricsHandler := handler.NewMetricsHandler(app.Metrics, checks)
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	r.GET("/metrics/summary", metricsHandler.Summary)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	students := handler.NewStudentHandler(app.Students)
	courses := handler.NewCourseHandler(app.Courses)
	enrollments := handler.NewEnrollmentHandler(app.Enrollments)
	transfer := handler.NewTransferHandler(app.Exports, app.Imports)

	sg := api.Group("/students")
	sg.GET("", students.List)
	sg.POST("", students.Create)
	sg.GET("/export", transfer.Download(models.EntityStudent))
	sg.POST("/import", transfer.Import(models.EntityStudent))
	sg.GET("/:email", students.Get)
	sg.PUT("/:email", students.Update)
	sg.DELETE("/:email", students.Delete)

	cg := api.Group("/courses")
	cg.GET("", courses.List)
	cg.POST("", courses.Create)
	cg.GET("/export", transfer.Download(models.EntityCourse))
	cg.POST("/import", transfer.Import(models.EntityCourse))
	cg.GET("/:code", courses.Get)
	cg.PUT("/:code", courses.Update)
	cg.DELETE("/:code", courses.Delete)

	eg := api.Group("/enrollments")
	eg.GET("", enrollments.List)
	eg.POST("", enrollments.Enroll)
	eg.GET("/export", transfer.Download(models.EntityEnrollment))
	eg.POST("/import", transfer.Import(models.EntityEnrollment))
	eg.GET("/:id", enrollments.Get)
	eg.PUT("/:id", enrollments.Update)
	eg.DELETE("/:id", enrollments.Delete)

	api.POST("/exports", transfer.Store)
	api.GET("/exports/:token", transfer.Fetch)

	if cfg.Events.Enabled {
		eventsHandler := handler.NewEventsHandler(app.Hub, cfg.Events.Heartbeat, app.Logger)
		api.GET("/events", eventsHandler.Stream)
		api.GET("/events/ws", eventsHandler.Socket)
	}

	return r
}
