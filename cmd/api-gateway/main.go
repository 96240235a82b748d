package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/sma-uks-api/api/swagger"
	"github.com/noah-isme/sma-uks-api/internal/handler"
	"github.com/noah-isme/sma-uks-api/internal/middleware"
	"github.com/noah-isme/sma-uks-api/internal/models"
	"github.com/noah-isme/sma-uks-api/internal/repository"
	"github.com/noah-isme/sma-uks-api/internal/service"
	"github.com/noah-isme/sma-uks-api/pkg/cache"
	"github.com/noah-isme/sma-uks-api/pkg/config"
	"github.com/noah-isme/sma-uks-api/pkg/database"
	"github.com/noah-isme/sma-uks-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-uks-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-uks-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-uks-api/pkg/storage"
)

// @title SMA UKS API
// @version 1.0.0
// @description School health unit service: campaign consent and result lifecycle
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching and notifications disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	guardianRepo := repository.NewGuardianLinkRepository(db)
	campaignRepo := repository.NewCampaignRepository(db)
	consentRepo := repository.NewConsentRepository(db)
	resultRepo := repository.NewResultRepository(db)
	medicineRepo := repository.NewMedicineRequestRepository(db)

	var metricsSvc *service.MetricsService
	if cfg.Metrics.Enabled {
		metricsSvc = service.NewMetricsService()
	}

	var cacheSvc *service.CacheService
	if redisClient != nil {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Campaigns.SummaryCacheTTL, logr, true)
	}

	notifier := service.NewNotificationService(redisClient, cfg.Notifications, logr)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	notifier.Start(ctx)
	defer notifier.Stop()

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "sma-uks-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, validate, logr)
	campaignSvc := service.NewCampaignService(campaignRepo, studentRepo, consentRepo, resultRepo, notifier, cacheSvc, validate, logr)
	consentSvc := service.NewConsentService(consentRepo, campaignRepo, guardianRepo, studentRepo, cacheSvc, notifier, validate, logr)
	resultSvc := service.NewResultService(resultRepo, consentRepo, campaignRepo, notifier, cacheSvc, validate, logr)
	medicineSvc := service.NewMedicineRequestService(medicineRepo, guardianRepo, studentRepo, validate, logr)

	var exportSvc *service.ExportService
	if cfg.Campaigns.ExportEnabled {
		exportStore, err := storage.NewLocalStorage(cfg.Campaigns.ExportDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to prepare export storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.JWT.Secret, cfg.Campaigns.ExportTTL)
		exportSvc = service.NewExportService(campaignSvc, exportStore, signer, service.ExportConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Campaigns.ExportTTL,
		}, logr)
		go func() {
			ticker := time.NewTicker(time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if _, err := exportSvc.Cleanup(0); err != nil {
						logr.Sugar().Warnw("export cleanup failed", "error", err)
					}
				}
			}
		}()
	}

	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	studentHandler := handler.NewStudentHandler(studentSvc)
	campaignHandler := handler.NewCampaignHandler(campaignSvc)
	consentHandler := handler.NewConsentHandler(consentSvc)
	resultHandler := handler.NewResultHandler(resultSvc)
	medicineHandler := handler.NewMedicineRequestHandler(medicineSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	var exportHandler *handler.ExportHandler
	if exportSvc != nil {
		exportHandler = handler.NewExportHandler(exportSvc)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.WithResponseMeta())
	if metricsSvc != nil {
		r.Use(middleware.Metrics(metricsSvc))
	}

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	if cfg.Metrics.Enabled {
		r.GET("/metrics", metricsHandler.Prometheus)
	}
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group("/api/v1")

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)

		authed := auth.Group("", middleware.JWT(authSvc))
		authed.POST("/logout", authHandler.Logout)
		authed.POST("/change-password", authHandler.ChangePassword)
		authed.GET("/me", authHandler.Me)
	}

	users := api.Group("/users", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	{
		users.GET("", userHandler.List)
		users.GET("/:id", userHandler.Get)
		users.POST("", userHandler.Create)
		users.PUT("/:id", userHandler.Update)
		users.DELETE("/:id", userHandler.Delete)
	}

	staff := middleware.RequireRoles(models.RoleAdmin, models.RoleMedicalStaff)

	students := api.Group("/students", middleware.JWT(authSvc))
	{
		students.GET("", staff, studentHandler.List)
		students.POST("", middleware.RequireRoles(models.RoleAdmin), studentHandler.Create)
		students.GET("/:id", middleware.RBAC(string(models.RoleAdmin), string(models.RoleMedicalStaff), "SELF"), studentHandler.Get)
		students.PUT("/:id", middleware.RequireRoles(models.RoleAdmin), studentHandler.Update)
		students.GET("/:id/consents", middleware.RBAC(string(models.RoleAdmin), string(models.RoleMedicalStaff), "SELF"), consentHandler.ListByStudent)
		students.GET("/:id/results", middleware.RBAC(string(models.RoleAdmin), string(models.RoleMedicalStaff), "SELF"), resultHandler.ListByStudent)
	}

	campaigns := api.Group("/campaigns", middleware.JWT(authSvc))
	{
		campaigns.GET("", campaignHandler.List)
		campaigns.GET("/:id", campaignHandler.Get)
		campaigns.POST("", staff, middleware.Audit(userRepo, models.AuditActionCampaignCreate, "campaigns"), campaignHandler.Create)
		campaigns.PUT("/:id", staff, campaignHandler.Update)
		campaigns.POST("/:id/transition", staff, middleware.Audit(userRepo, models.AuditActionCampaignTransition, "campaigns"), campaignHandler.Transition)
		campaigns.GET("/:id/eligibility", staff, campaignHandler.Eligibility)
		campaigns.GET("/:id/summary", staff, campaignHandler.Summary)
		if exportHandler != nil {
			campaigns.GET("/:id/consents/export", staff, campaignHandler.ExportRoster)
			campaigns.POST("/:id/consents/export", staff, exportHandler.Generate)
		}
		campaigns.GET("/:id/results", staff, resultHandler.ListByCampaign)
		campaigns.GET("/:id/follow-ups", staff, resultHandler.ListOpenFollowUps)

		campaigns.GET("/:id/my-consents", middleware.RequireRoles(models.RoleParent), consentHandler.ListMine)
		campaigns.POST("/:id/students/:studentId/consent", middleware.RequireRoles(models.RoleParent),
			middleware.Audit(userRepo, models.AuditActionConsentRecord, "consents"), consentHandler.Record)
		campaigns.GET("/:id/students/:studentId/consent", consentHandler.Status)

		campaigns.POST("/:id/students/:studentId/result", staff,
			middleware.Audit(userRepo, models.AuditActionResultRecord, "results"), resultHandler.Record)
		campaigns.GET("/:id/students/:studentId/result", staff, resultHandler.Get)
	}

	results := api.Group("/results", middleware.JWT(authSvc), staff)
	{
		results.PUT("/:id/follow-up", middleware.Audit(userRepo, models.AuditActionFollowUpUpdate, "results"), resultHandler.UpdateFollowUp)
	}

	if exportHandler != nil {
		// download links carry their own signed, expiring token
		api.GET("/export/:token", exportHandler.Download)
	}

	medicine := api.Group("/medicine-requests", middleware.JWT(authSvc))
	{
		medicine.POST("", middleware.RequireRoles(models.RoleParent), medicineHandler.Create)
		medicine.GET("", medicineHandler.List)
		medicine.GET("/:id", medicineHandler.Get)
		medicine.POST("/:id/review", staff, medicineHandler.Review)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
