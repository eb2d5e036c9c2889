package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/barber-academy-api/api/swagger"
	"github.com/noah-isme/barber-academy-api/internal/handler"
	"github.com/noah-isme/barber-academy-api/internal/repository"
	"github.com/noah-isme/barber-academy-api/internal/service"
	"github.com/noah-isme/barber-academy-api/pkg/cache"
	"github.com/noah-isme/barber-academy-api/pkg/config"
	"github.com/noah-isme/barber-academy-api/pkg/database"
	"github.com/noah-isme/barber-academy-api/pkg/export"
	"github.com/noah-isme/barber-academy-api/pkg/jobs"
	"github.com/noah-isme/barber-academy-api/pkg/logger"
	"github.com/noah-isme/barber-academy-api/pkg/mailer"
	"github.com/noah-isme/barber-academy-api/pkg/storage"
)

// @title Barber Academy API
// @version 1.0.0
// @description Attendance, ledger, financial aid, admissions funnel and email sequences for a barber school.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg, "api-gateway")
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect database", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db, logr); err != nil {
			logr.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	app, err := buildApp(ctx, cfg, db, logr)
	if err != nil {
		logr.Fatal("failed to build application", zap.Error(err))
	}
	defer app.close()
	// Shutdown flushes the audit queue after the HTTP server stops.
	app.audit.Start(context.Background())

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	router := newRouter(cfg, app, logr)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("server shutdown", zap.Error(err))
	}
	app.audit.Shutdown(shutdownCtx)
}

type application struct {
	probes    []handler.Probe
	metrics   *service.MetricsService
	audit     *service.AuditSink
	auth      *service.AuthService
	users     *service.UserService
	lookups   *repository.LookupRepository
	students  *service.StudentService
	sap       *service.SAPService
	attend    *service.AttendanceService
	ledger    *service.LedgerService
	aid       *service.FinancialAidService
	funnel    *service.FunnelService
	sequences *service.SequenceService
	imports   *service.ImportService
	documents *service.DocumentService
	reports   *service.ReportService
	dashboard *service.DashboardService
	closers   []func() error
}

func (a *application) close() {
	for _, fn := range a.closers {
		_ = fn()
	}
}

func buildApp(ctx context.Context, cfg *config.Config, db *sqlx.DB, logr *zap.Logger) (*application, error) {
	location, err := time.LoadLocation(cfg.Attendance.Timezone)
	if err != nil {
		logr.Warn("unknown attendance timezone, using UTC", zap.String("timezone", cfg.Attendance.Timezone))
		location = time.UTC
	}
	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	lookupRepo := repository.NewLookupRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	attendanceRepo := repository.NewAttendanceRepository(db)
	milestoneRepo := repository.NewMilestoneRepository(db)
	ledgerRepo := repository.NewLedgerRepository(db)
	aidRepo := repository.NewFinancialAidRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	applicationRepo := repository.NewApplicationRepository(db)
	sequenceRepo := repository.NewSequenceRepository(db)
	sapRepo := repository.NewSAPRepository(db)

	audit := service.NewAuditSink(repository.NewAuditRepository(db), jobs.Config{
		Workers:     cfg.Audit.Workers,
		BufferSize:  cfg.Audit.BufferSize,
		MaxAttempts: 3,
		Backoff:     time.Second,
	}, metrics, logr)

	probes := []handler.Probe{{Name: "database", Check: db.PingContext}}
	var closers []func() error
	cacheSvc, redisClient := newCache(ctx, cfg, metrics, logr)
	if redisClient != nil {
		closers = append(closers, redisClient.Close)
		probes = append(probes, handler.Probe{
			Name:     "redis",
			Check:    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
			Optional: true,
		})
	}

	sender, err := mailer.New(cfg.Email, logr)
	if err != nil {
		return nil, fmt.Errorf("mailer: %w", err)
	}

	store, err := newDocumentStore(ctx, cfg.Documents)
	if err != nil {
		return nil, fmt.Errorf("document storage: %w", err)
	}

	milestones := service.NewMilestoneChecker(milestoneRepo, logr)
	ledger := service.NewLedgerService(ledgerRepo, studentRepo, db, audit, metrics, validate, logr)
	sequences := service.NewSequenceService(sequenceRepo, service.NewTemplateRegistry(), sender, db, audit, metrics, validate, logr,
		service.SequenceConfig{
			AppName:     cfg.Email.AppName,
			BatchSize:   cfg.Sequences.BatchSize,
			RetryDelay:  cfg.Sequences.RetryDelay,
			MaxFailures: cfg.Sequences.MaxFailures,
		})
	dashboard := service.NewDashboardService(service.DashboardServiceParams{
		Leads:        leadRepo,
		Applications: applicationRepo,
		Students:     studentRepo,
		Attendance:   attendanceRepo,
		Sequences:    sequenceRepo,
		Ledger:       ledgerRepo,
		Cache:        cacheSvc,
		Logger:       logr,
	})

	return &application{
		probes:   probes,
		metrics:  metrics,
		audit:    audit,
		lookups:  lookupRepo,
		users:    service.NewUserService(userRepo, studentRepo, audit, validate, logr),
		students: service.NewStudentService(studentRepo, lookupRepo, milestones, audit, validate, logr),
		sap:      service.NewSAPService(sapRepo, studentRepo, db, audit, validate, logr),
		auth: service.NewAuthService(userRepo, audit, validate, logr, service.AuthConfig{
			AccessTokenSecret: cfg.JWT.Secret,
			AccessTokenExpiry: cfg.JWT.Expiration,
			Issuer:            cfg.JWT.Issuer,
		}),
		attend: service.NewAttendanceService(attendanceRepo, studentRepo, lookupRepo, milestones, db, audit, metrics, validate, logr,
			service.AttendanceConfig{Location: location, DefaultTheoryRatio: cfg.Attendance.DefaultTheoryRatio}),
		ledger: ledger,
		aid:    service.NewFinancialAidService(aidRepo, studentRepo, ledger, db, audit, validate, logr),
		funnel: service.NewFunnelService(service.FunnelServiceParams{
			Leads:        leadRepo,
			Applications: applicationRepo,
			Students:     studentRepo,
			Lookups:      lookupRepo,
			Accounts:     ledger,
			Sequences:    sequences,
			Tx:           db,
			Audit:        audit,
			Validator:    validate,
			Logger:       logr,
		}),
		sequences: sequences,
		imports: service.NewImportService(studentRepo, lookupRepo, attendanceRepo, milestones, db, cacheSvc, audit, metrics, logr,
			service.ImportConfig{MaxRows: cfg.Imports.MaxRows, Location: location, DefaultTheoryRatio: cfg.Attendance.DefaultTheoryRatio}),
		documents: service.NewDocumentService(service.DocumentServiceParams{
			Students:   studentRepo,
			Attendance: attendanceRepo,
			Milestones: milestones,
			Statements: ledger,
			PDF:        export.NewPDFExporter(cfg.Email.AppName),
			Store:      store,
			Signer:     storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL),
			Audit:      audit,
			Metrics:    metrics,
			Logger:     logr,
			Config:     service.DocumentConfig{APIPrefix: cfg.APIPrefix, Institution: cfg.Email.AppName, Location: location},
		}),
		reports: service.NewReportService(attendanceRepo, location, logr,
			export.NewCSVExporter(true), export.NewXLSXExporter("Attendance")),
		dashboard: dashboard,
		closers:   closers,
	}, nil
}

// newCache falls back to an always-miss cache when the dashboard is off or Redis is
// unreachable. The client is nil in that case.
func newCache(ctx context.Context, cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) (*service.CacheService, *redis.Client) {
	if !cfg.Dashboard.Enabled {
		return service.NewCacheService(nil, metrics, cfg.Dashboard.CacheTTL, logr), nil
	}
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, dashboard cache disabled", zap.Error(err))
		return service.NewCacheService(nil, metrics, cfg.Dashboard.CacheTTL, logr), nil
	}
	repo := repository.NewCacheRepository(client, cfg.Redis.KeyPrefix, logr)
	return service.NewCacheService(repo, metrics, cfg.Dashboard.CacheTTL, logr), client
}

func newDocumentStore(ctx context.Context, cfg config.DocumentsConfig) (storage.BlobStore, error) {
	switch cfg.Backend {
	case "s3":
		return storage.NewS3Storage(ctx, cfg.S3Bucket, cfg.S3Region, cfg.S3Prefix)
	case "", "local":
		return storage.NewLocalStorage(cfg.StorageDir)
	default:
		return nil, fmt.Errorf("unsupported documents backend %q", cfg.Backend)
	}
}
