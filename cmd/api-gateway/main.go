package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/mygrades-api/api/swagger"
	"github.com/noah-isme/mygrades-api/internal/handler"
	"github.com/noah-isme/mygrades-api/internal/middleware"
	"github.com/noah-isme/mygrades-api/internal/models"
	"github.com/noah-isme/mygrades-api/internal/repository"
	"github.com/noah-isme/mygrades-api/internal/service"
	"github.com/noah-isme/mygrades-api/pkg/cache"
	"github.com/noah-isme/mygrades-api/pkg/config"
	"github.com/noah-isme/mygrades-api/pkg/database"
	"github.com/noah-isme/mygrades-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/mygrades-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/mygrades-api/pkg/middleware/requestid"
	"github.com/noah-isme/mygrades-api/pkg/storage"
)

// @title MyGrades API
// @version 0.1.0
// @description Grade aggregation, ledger, and export service
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The service degrades to uncached aggregation when Redis is
		// unreachable.
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	gradebookRepo := repository.NewGradebookRepository(db)
	recordRepo := repository.NewGradeRecordRepository(db)
	columnRepo := repository.NewColumnRepository(db)
	weightRepo := repository.NewAlteredWeightRepository(db)
	traceRepo := repository.NewTraceRepository(db)
	resitRepo := repository.NewResitRepository(db)
	enrolmentRepo := repository.NewEnrolmentRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	adminSvc := service.NewAdminGradeService(cfg.AdminGrades.DisplayOverrides, logr)
	engine := service.NewAggregationEngine(adminSvc, cfg.Aggregation.CompletionThreshold)
	aggregationSvc := service.NewAggregationService(
		gradebookRepo, recordRepo, columnRepo, weightRepo, traceRepo,
		cacheRepo, engine, adminSvc, cfg.Aggregation.ProvisionalCacheTTL, logr,
	)
	gradeSvc := service.NewGradeService(
		gradebookRepo, recordRepo, columnRepo, cacheRepo, adminSvc,
		aggregationSvc, validate, logr,
	).WithMetrics(metricsSvc)
	weightSvc := service.NewWeightService(gradebookRepo, weightRepo, cacheRepo, aggregationSvc, validate, logr)
	gradebookSvc := service.NewGradebookService(gradebookRepo, resitRepo, aggregationSvc, validate, logr)
	progressSvc := service.NewProgressService(cacheRepo, cfg.Aggregation.ProgressTTL, logr)
	recalcSvc := service.NewRecalcService(
		aggregationSvc, enrolmentRepo, progressSvc,
		cfg.Aggregation.WorkerConcurrency, cfg.Aggregation.WorkerRetries, logr,
	)
	cleanupSvc := service.NewCleanupService(recordRepo, cfg.Cleanup, logr)
	authSvc := service.NewAuthService(cfg.JWT)

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
	exportSvc := service.NewExportService(
		gradebookRepo, aggregationSvc, enrolmentRepo, exportStore, signer,
		cfg.Exports, logr, nil, nil,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	recalcSvc.Start(ctx)
	defer recalcSvc.Stop()
	cleanupSvc.Start(ctx)
	exportSvc.StartCleanup(ctx)

	aggregationHandler := handler.NewAggregationHandler(aggregationSvc, recalcSvc, progressSvc, metricsSvc)
	gradeHandler := handler.NewGradeHandler(gradeSvc, adminSvc)
	weightHandler := handler.NewWeightHandler(weightSvc)
	gradebookHandler := handler.NewGradebookHandler(gradebookSvc)
	exportHandler := handler.NewExportHandler(exportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", metricsHandler.Prometheus)

	// Download links carry their own HMAC token, so they sit outside
	// the JWT-protected group.
	r.GET("/exports/download/:token", exportHandler.Download)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.JWT(authSvc))

	api.GET("/admin-grades", gradeHandler.ListAdminGrades)
	api.PUT("/admin-grades/display", middleware.RequireRoles(models.RoleAdmin), gradeHandler.UpdateAdminDisplay)

	api.GET("/items/:itemID/columns", gradeHandler.Columns)
	api.GET("/items/:itemID/users/:userID/provisional", gradeHandler.Provisional)
	api.GET("/items/:itemID/users/:userID/history", gradeHandler.History)

	courses := api.Group("/courses/:courseID")
	courses.GET("/tree", gradebookHandler.Tree)
	courses.GET("/users/:userID/aggregation", aggregationHandler.GetUser)
	courses.GET("/categories/:categoryID/users/:userID/aggregation", aggregationHandler.GetCategory)
	courses.GET("/categories/:categoryID/users/:userID/explain", aggregationHandler.Explain)
	courses.GET("/progress", aggregationHandler.Progress)
	courses.GET("/items/:itemID/users/:userID/weight", weightHandler.Get)

	editing := courses.Group("")
	editing.Use(middleware.RequireGradeEditing())
	editing.POST("/grades", gradeHandler.Write)
	editing.POST("/overrides", gradeHandler.Override)
	editing.DELETE("/categories/:categoryID/users/:userID/override", gradeHandler.RemoveOverride)
	editing.POST("/recalculate", aggregationHandler.Recalculate)
	editing.PUT("/weights", weightHandler.Set)
	editing.DELETE("/items/:itemID/users/:userID/weight", weightHandler.Revert)
	editing.DELETE("/categories/:categoryID/users/:userID/weights", weightHandler.RevertCategory)
	editing.POST("/conversion-maps", gradebookHandler.ImportConversionMap)
	editing.PUT("/categories/:categoryID/resit", gradebookHandler.SetResit)
	editing.DELETE("/categories/:categoryID/resit", gradebookHandler.RemoveResit)
	editing.POST("/export", exportHandler.Export)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
