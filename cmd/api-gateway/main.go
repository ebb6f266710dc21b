package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/noah-isme/homeroom-api/api/swagger"
	"github.com/noah-isme/homeroom-api/internal/handler"
	"github.com/noah-isme/homeroom-api/internal/repository"
	"github.com/noah-isme/homeroom-api/internal/service"
	"github.com/noah-isme/homeroom-api/pkg/cache"
	"github.com/noah-isme/homeroom-api/pkg/config"
	"github.com/noah-isme/homeroom-api/pkg/database"
	"github.com/noah-isme/homeroom-api/pkg/llm"
	"github.com/noah-isme/homeroom-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/homeroom-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/homeroom-api/pkg/middleware/requestid"
	"github.com/noah-isme/homeroom-api/pkg/storage"
)

// @title Homeroom API
// @version 1.0.0
// @description Conduct ledger, weekly reporting and grade book for homeroom management
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
	sugar := logr.Sugar()

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		sugar.Fatalw("failed to connect database", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		sugar.Warnw("redis unavailable, report caching disabled", "error", err)
		redisClient = nil
	}
	if !cfg.Reports.CacheEnabled {
		redisClient = nil
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close()

	validate := validator.New()

	studentRepo := repository.NewStudentRepository(db)
	conductRepo := repository.NewConductRepository(db)
	configRepo := repository.NewConfigRepository(db)
	archiveRepo := repository.NewArchiveRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	classRepo := repository.NewClassRoomRepository(db)
	subjectRepo := repository.NewSubjectRepository(db)
	gradeRepo := repository.NewGradeRepository(db)
	teacherRepo := repository.NewTeacherRepository(db)
	changeLogRepo := repository.NewChangeLogRepository(db)
	chatRepo := repository.NewChatRepository(db)

	metricsSvc := service.NewMetricsService()
	accessSvc := service.NewAccessService()
	authSvc := service.NewAuthService(teacherRepo, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
	})
	auditSvc := service.NewAuditService(changeLogRepo, logr)
	ledgerSvc := service.NewLedgerService(studentRepo, conductRepo, configRepo, changeLogRepo, cacheRepo, accessSvc, validate, logr)
	rolloverSvc := service.NewRolloverService(studentRepo, conductRepo, archiveRepo, configRepo, changeLogRepo, cacheRepo, logr)
	reportSvc := service.NewReportService(studentRepo, conductRepo, classRepo, archiveRepo, rolloverSvc, cacheRepo, cfg.Reports.CacheTTL, logr)
	studentSvc := service.NewStudentService(studentRepo, classRepo, accessSvc, validate, logr)
	catalogSvc := service.NewCatalogService(catalogRepo, validate, logr)
	classSvc := service.NewClassRoomService(classRepo, studentRepo, validate, logr)
	subjectSvc := service.NewSubjectService(subjectRepo, validate, logr)
	gradeSvc := service.NewGradeService(gradeRepo, subjectRepo, studentRepo, accessSvc, validate, logr)
	importSvc := service.NewImportService(ledgerSvc, studentSvc, cfg.Import.MaxRows, logr)
	exportSvc := service.NewExportService(archiveRepo, studentRepo, conductRepo, reportSvc, logr)

	exportStore, err := storage.NewFileStore(cfg.Export.Dir)
	if err != nil {
		sugar.Fatalw("failed to prepare export storage", "error", err)
	}
	exportSigner := storage.NewDownloadSigner(cfg.JWT.Secret, cfg.Export.DownloadTTL)
	exportJobSvc := service.NewExportJobService(exportSvc, exportStore, exportSigner, logr)
	exportJobSvc.Start(context.Background())
	defer exportJobSvc.Stop()
	exportJobSvc.CleanupExpired(cfg.Export.FileTTL)

	llmClient := llm.NewOllamaClient(cfg.LLM.Host, cfg.LLM.Model, cfg.LLM.VisionModel, cfg.LLM.Timeout)
	chatSvc := service.NewChatService(llmClient, chatRepo, studentSvc, conductRepo, reportSvc, gradeSvc, accessSvc, cfg.Chat.HistoryLimit, logr)

	if cfg.Admin.Password != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := authSvc.SeedAdmin(ctx, cfg.Admin.Username, cfg.Admin.Password); err != nil {
			sugar.Warnw("admin seed failed", "error", err)
		}
		cancel()
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	handlers := handler.Handlers{
		Auth:     handler.NewAuthHandler(authSvc),
		Students: handler.NewStudentHandler(studentSvc, reportSvc, auditSvc),
		Conduct:  handler.NewConductHandler(ledgerSvc, studentSvc, accessSvc, metricsSvc),
		Rollover: handler.NewRolloverHandler(rolloverSvc, metricsSvc),
		Reports:  handler.NewReportHandler(reportSvc, metricsSvc),
		Grades:   handler.NewGradeHandler(gradeSvc),
		Catalog:  handler.NewCatalogHandler(catalogSvc),
		Classes:  handler.NewClassRoomHandler(classSvc),
		Subjects: handler.NewSubjectHandler(subjectSvc),
		Chat:     handler.NewChatHandler(chatSvc),
		Transfer: handler.NewTransferHandler(importSvc, exportSvc, exportJobSvc, studentSvc),
		Metrics:  handler.NewMetricsHandler(metricsSvc, db),
	}
	handler.RegisterRoutes(r, handlers, authSvc, metricsSvc)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		sugar.Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		sugar.Errorw("graceful shutdown failed", "error", err)
	}
	sugar.Infow("server stopped")
}
