package main

import (
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/barber-academy-api/internal/handler"
	"github.com/noah-isme/barber-academy-api/internal/middleware"
	"github.com/noah-isme/barber-academy-api/internal/models"
	"github.com/noah-isme/barber-academy-api/pkg/config"
	"github.com/noah-isme/barber-academy-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/barber-academy-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/barber-academy-api/pkg/middleware/requestid"
)

const (
	admin      = models.RoleAdmin
	staff      = models.RoleStaff
	instructor = models.RoleInstructor
	student    = models.RoleStudent
)

func newRouter(cfg *config.Config, app *application, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(app.metrics, "/metrics"))
	r.Use(middleware.WithResponseMeta())

	health := handler.NewHealthHandler(app.metrics.Handler(), 2*time.Second, app.probes...)
	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	r.GET("/metrics", health.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	authHandler := handler.NewAuthHandler(app.auth)
	api.POST("/auth/login", authHandler.Login)

	webhookHandler := handler.NewWebhookHandler(app.funnel, cfg.Webhooks.CallAnalyticsSecret, logr)
	api.POST("/webhooks/call-analytics", webhookHandler.CallAnalytics)

	documentHandler := handler.NewDocumentHandler(app.documents)
	api.GET("/documents/download/:token", documentHandler.Download)

	sequenceHandler := handler.NewSequenceHandler(app.sequences)
	api.POST("/sequences/process-due",
		middleware.InvokerOrRoles(cfg.Sequences.InvokerToken, app.auth, admin),
		sequenceHandler.ProcessDue)

	secured := api.Group("")
	secured.Use(middleware.JWT(app.auth))
	secured.GET("/auth/me", authHandler.Me)

	lookupHandler := handler.NewLookupHandler(app.lookups)
	secured.GET("/programs", lookupHandler.Programs)
	secured.GET("/campuses", lookupHandler.Campuses)

	userHandler := handler.NewUserHandler(app.users)
	users := secured.Group("/users", middleware.RBAC(admin))
	users.GET("", userHandler.List)
	users.POST("", userHandler.Create)
	users.GET("/:id", userHandler.Get)
	users.PUT("/:id", userHandler.Update)
	users.DELETE("/:id", userHandler.Deactivate)

	registerStudentRoutes(secured, app)
	registerAttendanceRoutes(secured, app)
	registerFinanceRoutes(secured, app)
	registerFunnelRoutes(secured, app, sequenceHandler)

	secured.POST("/documents/:kind", middleware.RBAC(admin, staff, student), documentHandler.Generate)

	importHandler := handler.NewImportHandler(app.imports, cfg.Imports.MaxUploadBytes)
	imports := secured.Group("/imports", middleware.RBAC(admin, staff))
	imports.POST("/students", importHandler.Students)
	imports.POST("/attendance", importHandler.Attendance)

	reportHandler := handler.NewReportHandler(app.reports)
	reports := secured.Group("/reports",
		middleware.RBAC(admin, staff, instructor),
		middleware.Audit(app.audit, models.AuditActionReportExport, "attendance_report"))
	reports.GET("/attendance.csv", reportHandler.AttendanceCSV)
	reports.GET("/attendance.xlsx", reportHandler.AttendanceXLSX)

	if cfg.Dashboard.Enabled {
		dashboardHandler := handler.NewDashboardHandler(app.dashboard)
		secured.GET("/dashboard", middleware.RBAC(admin, staff), dashboardHandler.Summary)
	}

	return r
}

func registerStudentRoutes(rg *gin.RouterGroup, app *application) {
	h := handler.NewStudentHandler(app.students, app.sap)
	rg.GET("/students", middleware.RBAC(admin, staff, instructor), h.List)
	rg.POST("/students", middleware.RBAC(admin, staff), h.Create)
	rg.GET("/students/:id", middleware.RBAC(admin, staff, instructor, middleware.SelfStudent), h.Get)
	rg.PUT("/students/:id", middleware.RBAC(admin, staff), h.Update)
	rg.PATCH("/students/:id/status", middleware.RBAC(admin, staff), h.UpdateStatus)
	rg.GET("/students/:id/milestones", middleware.RBAC(admin, staff, instructor, middleware.SelfStudent), h.Milestones)
	rg.POST("/students/:id/sap-evaluations", middleware.RBAC(admin, staff), h.EvaluateSAP)
	rg.GET("/students/:id/sap-evaluations", middleware.RBAC(admin, staff, middleware.SelfStudent), h.SAPHistory)
}

func registerAttendanceRoutes(rg *gin.RouterGroup, app *application) {
	h := handler.NewAttendanceHandler(app.attend)
	rg.POST("/attendance/clock-in", middleware.RBAC(admin, staff, instructor, student), h.ClockIn)
	rg.POST("/attendance/:id/clock-out", middleware.RBAC(admin, staff, instructor, student), h.ClockOut)
	rg.POST("/attendance/corrections", middleware.RBAC(admin, staff, instructor, student), h.RequestCorrection)
	rg.POST("/attendance/corrections/:id/approve", middleware.RBAC(admin, staff), h.ApproveCorrection)
	rg.POST("/attendance/corrections/:id/reject", middleware.RBAC(admin, staff), h.RejectCorrection)
	rg.GET("/attendance", middleware.RBAC(admin, staff, instructor), h.List)
	rg.GET("/attendance/:id", middleware.RBAC(admin, staff, instructor), h.Get)
	rg.GET("/students/:id/attendance/today", middleware.RBAC(admin, staff, instructor, middleware.SelfStudent), h.OpenSession)
}

func registerFinanceRoutes(rg *gin.RouterGroup, app *application) {
	ledger := handler.NewLedgerHandler(app.ledger)
	rg.GET("/students/:id/account", middleware.RBAC(admin, staff, middleware.SelfStudent), ledger.Account)
	rg.POST("/students/:id/charges", middleware.RBAC(admin, staff), ledger.PostCharge)
	rg.POST("/students/:id/payments", middleware.RBAC(admin, staff), ledger.RecordPayment)
	rg.POST("/charges/:id/void", middleware.RBAC(admin, staff), ledger.VoidCharge)
	rg.PATCH("/payments/:id/status", middleware.RBAC(admin, staff), ledger.UpdatePaymentStatus)
	rg.POST("/accounts/:id/recalculate", middleware.RBAC(admin), ledger.Recalculate)

	aid := handler.NewFinancialAidHandler(app.aid)
	rg.POST("/students/:id/aid-records", middleware.RBAC(admin, staff), aid.CreateRecord)
	rg.GET("/students/:id/aid-records", middleware.RBAC(admin, staff, middleware.SelfStudent), aid.ListRecords)
	aidGroup := rg.Group("", middleware.RBAC(admin, staff))
	aidGroup.GET("/aid-records/:id", aid.GetPackage)
	aidGroup.POST("/aid-records/:id/awards", aid.AddAward)
	aidGroup.POST("/awards/:id/package", aid.TransitionAward("package"))
	aidGroup.POST("/awards/:id/accept", aid.TransitionAward("accept"))
	aidGroup.POST("/awards/:id/cancel", aid.TransitionAward("cancel"))
	aidGroup.POST("/awards/:id/disbursements", aid.ScheduleDisbursement)
	aidGroup.POST("/disbursements/:id/release", aid.ReleaseDisbursement)
}

func registerFunnelRoutes(rg *gin.RouterGroup, app *application, sequences *handler.SequenceHandler) {
	funnel := handler.NewFunnelHandler(app.funnel)
	admissions := rg.Group("", middleware.RBAC(admin, staff))
	admissions.POST("/leads", funnel.CreateLead)
	admissions.GET("/leads", funnel.ListLeads)
	admissions.GET("/leads/:id", funnel.GetLead)
	admissions.PATCH("/leads/:id/status", funnel.UpdateLeadStatus)
	admissions.POST("/applications", funnel.CreateApplication)
	admissions.GET("/applications", funnel.ListApplications)
	admissions.GET("/applications/:id", funnel.GetApplication)
	admissions.POST("/applications/:id/submit", funnel.SubmitApplication)
	admissions.POST("/applications/:id/decision", funnel.DecideApplication)
	admissions.POST("/applications/:id/enroll", funnel.EnrollApplication)

	admissions.POST("/sequences/enrollments", sequences.Enroll)
	admissions.POST("/sequences/enrollments/:id/process", sequences.Process)
	admissions.POST("/sequences/enrollments/:id/pause", sequences.Pause)
	admissions.POST("/sequences/enrollments/:id/resume", sequences.Resume)
	admissions.POST("/sequences/unsubscribe", sequences.Unsubscribe)
}
