package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/homeroom-api/internal/middleware"
	"github.com/noah-isme/homeroom-api/internal/models"
	"github.com/noah-isme/homeroom-api/internal/service"
)

// Handlers bundles every HTTP handler for route registration.
type Handlers struct {
	Auth     *AuthHandler
	Students *StudentHandler
	Conduct  *ConductHandler
	Rollover *RolloverHandler
	Reports  *ReportHandler
	Grades   *GradeHandler
	Catalog  *CatalogHandler
	Classes  *ClassRoomHandler
	Subjects *SubjectHandler
	Chat     *ChatHandler
	Transfer *TransferHandler
	Metrics  *MetricsHandler
}

// RegisterRoutes mounts all API routes on the engine. Everything under
// /api/v1 except /auth/login requires a valid token; write endpoints are
// additionally gated by role.
func RegisterRoutes(r *gin.Engine, h Handlers, auth *service.AuthService, metrics *service.MetricsService) {
	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	v1 := r.Group("/api/v1")
	v1.Use(middleware.Metrics(metrics))

	v1.POST("/auth/login", h.Auth.Login)

	authed := v1.Group("")
	authed.Use(middleware.JWT(auth))

	authed.GET("/auth/me", h.Auth.Me)
	authed.POST("/auth/teachers", middleware.RBAC(models.RoleAdmin), h.Auth.CreateTeacher)

	ledgerWriters := middleware.RBAC(models.RoleAdmin, models.RoleHomeroom)
	adminOnly := middleware.RBAC(models.RoleAdmin)

	students := authed.Group("/students")
	{
		students.GET("", h.Students.List)
		students.GET("/:id", h.Students.Get)
		students.GET("/:id/timeline", h.Students.Timeline)
		students.GET("/:id/audit", h.Students.AuditTrail)
		students.POST("", ledgerWriters, h.Students.Create)
		students.PUT("/:id", ledgerWriters, h.Students.Update)
		students.DELETE("/:id", ledgerWriters, h.Students.Delete)

		students.GET("/:id/grades", h.Grades.ListByStudent)
		students.GET("/:id/transcript", h.Grades.Transcript)
	}

	conduct := authed.Group("/conduct")
	{
		conduct.GET("/events", h.Conduct.ListEvents)
		conduct.POST("/events", ledgerWriters, h.Conduct.Apply)
		conduct.DELETE("/events/:kind/:id", ledgerWriters, h.Conduct.Revert)
		conduct.POST("/events/multi", ledgerWriters, h.Conduct.MultiApply)
		conduct.POST("/events/by-codes", ledgerWriters, h.Conduct.ApplyByCodes)
		conduct.POST("/recompute/:id", adminOnly, h.Conduct.Recompute)
		conduct.POST("/recompute", adminOnly, h.Conduct.RecomputeAll)
	}

	weeks := authed.Group("/weeks")
	{
		weeks.GET("/status", h.Rollover.Status)
		weeks.POST("/end", adminOnly, h.Rollover.EndWeek)
		weeks.PUT("/current", adminOnly, h.Rollover.SetWeek)
	}

	reports := authed.Group("/reports")
	{
		reports.GET("/histogram", h.Reports.Histogram)
		reports.GET("/rankings", h.Reports.Rankings)
		reports.GET("/weekly", h.Reports.Weekly)
		reports.GET("/weeks", h.Reports.Weeks)
		reports.GET("/week-stats", h.Reports.WeekStats)
		reports.GET("/metrics", adminOnly, h.Reports.Metrics)
	}

	authed.PUT("/grades", h.Grades.Upsert)
	authed.DELETE("/grades/:id", h.Grades.Delete)

	catalog := authed.Group("")
	{
		catalog.GET("/violation-types", h.Catalog.ListViolationTypes)
		catalog.POST("/violation-types", adminOnly, h.Catalog.CreateViolationType)
		catalog.PUT("/violation-types/:id", adminOnly, h.Catalog.UpdateViolationType)
		catalog.DELETE("/violation-types/:id", adminOnly, h.Catalog.DeleteViolationType)
		catalog.GET("/bonus-types", h.Catalog.ListBonusTypes)
		catalog.POST("/bonus-types", adminOnly, h.Catalog.CreateBonusType)
		catalog.PUT("/bonus-types/:id", adminOnly, h.Catalog.UpdateBonusType)
		catalog.DELETE("/bonus-types/:id", adminOnly, h.Catalog.DeleteBonusType)
	}

	classes := authed.Group("/classes")
	{
		classes.GET("", h.Classes.List)
		classes.POST("", adminOnly, h.Classes.Create)
		classes.PUT("/:id", adminOnly, h.Classes.Rename)
		classes.DELETE("/:id", adminOnly, h.Classes.Delete)
	}

	subjects := authed.Group("/subjects")
	{
		subjects.GET("", h.Subjects.List)
		subjects.GET("/:id", h.Subjects.Get)
		subjects.POST("", adminOnly, h.Subjects.Create)
		subjects.PUT("/:id", adminOnly, h.Subjects.Update)
		subjects.DELETE("/:id", adminOnly, h.Subjects.Delete)
	}

	chat := authed.Group("/chat")
	{
		chat.POST("/ask", h.Chat.Ask)
		chat.POST("/parent-report", h.Chat.ParentReport)
		chat.POST("/class-trends", h.Chat.ClassTrends)
		chat.POST("/read-codes", h.Chat.ReadCodes)
	}

	imports := authed.Group("/import", ledgerWriters)
	{
		imports.POST("/violations", h.Transfer.ImportViolations)
		imports.POST("/roster", h.Transfer.ImportRoster)
		imports.GET("/violations/template", h.Transfer.ViolationTemplate)
	}

	exports := authed.Group("/export")
	{
		exports.GET("/week-scores", h.Transfer.ExportWeekScores)
		exports.GET("/rankings", h.Transfer.ExportRankings)
		exports.GET("/students/:studentId/report", h.Transfer.ExportStudentReport)
		exports.POST("/jobs", h.Transfer.CreateExportJob)
		exports.GET("/jobs/:id", h.Transfer.ExportJobStatus)
	}

	// Token carries its own authorization; download links must work from a
	// plain browser tab without the bearer header.
	v1.GET("/export/download", h.Transfer.DownloadExport)
}
