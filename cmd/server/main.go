package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	appsync "github.com/dentalab/erpsync/internal/application/sync"
	"github.com/dentalab/erpsync/internal/domain/sync"
	"github.com/dentalab/erpsync/internal/infrastructure/config"
	"github.com/dentalab/erpsync/internal/infrastructure/erp"
	"github.com/dentalab/erpsync/internal/infrastructure/lock"
	"github.com/dentalab/erpsync/internal/infrastructure/logger"
	"github.com/dentalab/erpsync/internal/infrastructure/persistence"
	"github.com/dentalab/erpsync/internal/infrastructure/scheduler"
	"github.com/dentalab/erpsync/internal/interfaces/http/handler"
	"github.com/dentalab/erpsync/internal/interfaces/http/middleware"
	"github.com/dentalab/erpsync/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting ERP Sync",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	// Initialize database connection with custom logger
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Initialize the run locker. Redis coordinates multiple instances;
	// the in-process locker is enough for a single one.
	var locker sync.RunLocker
	if cfg.Sync.UseRedisLock {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Error("Error closing redis client", zap.Error(err))
			}
		}()

		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			cancel()
			log.Fatal("Failed to connect to redis", zap.Error(err))
		}
		cancel()

		locker = lock.NewRedisRunLocker(rdb, cfg.Sync.LockTTL)
		log.Info("Using redis run locker", zap.String("addr", cfg.Redis.Addr()))
	} else {
		locker = lock.NewLocalRunLocker()
	}

	// Initialize the Odoo client and verify the connection before serving
	odooCfg := erp.NewOdooConfig(cfg.Odoo.URL, cfg.Odoo.Database, cfg.Odoo.Username, cfg.Odoo.Password)
	odooCfg.TimeoutSeconds = cfg.Odoo.TimeoutSeconds
	odooCfg.PageSize = cfg.Odoo.PageSize
	odooCfg.MaxRetries = cfg.Odoo.MaxRetries
	odooCfg.RetryBaseDelayMillis = cfg.Odoo.RetryBaseDelayMillis

	odooClient, err := erp.NewOdooClient(odooCfg, log)
	if err != nil {
		log.Fatal("Failed to create Odoo client", zap.Error(err))
	}

	checkCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := odooClient.CheckCapabilities(checkCtx); err != nil {
		cancel()
		log.Fatal("Odoo connection check failed", zap.Error(err))
	}
	cancel()
	log.Info("Odoo connection verified", zap.String("url", cfg.Odoo.URL), zap.String("database", cfg.Odoo.Database))

	// Initialize repositories
	clinicRepo := persistence.NewGormClinicRepository(db.DB)
	serviceRepo := persistence.NewGormServiceRepository(db.DB)
	staffRepo := persistence.NewGormStaffRepository(db.DB)
	invoiceRepo := persistence.NewGormInvoiceRepository(db.DB)
	mappingRepo := persistence.NewGormIdentityMappingRepository(db.DB)
	runRepo := persistence.NewGormSyncRunRepository(db.DB)

	// Initialize synchronizers and the orchestrator
	synchronizers := []appsync.Synchronizer{
		appsync.NewClinicSynchronizer(odooClient, mappingRepo, clinicRepo, log),
		appsync.NewStaffSynchronizer(odooClient, mappingRepo, staffRepo, log),
		appsync.NewServiceSynchronizer(odooClient, mappingRepo, serviceRepo, log),
		appsync.NewInvoiceSynchronizer(odooClient, mappingRepo, invoiceRepo, log),
	}
	orchestrator := appsync.NewOrchestrator(synchronizers, runRepo, locker, cfg.Sync.RunTimeout, log)
	repairService := appsync.NewRepairService(odooClient, mappingRepo, clinicRepo, log)

	defaultTenant := uuid.Nil
	if cfg.Sync.TenantID != "" {
		defaultTenant, err = uuid.Parse(cfg.Sync.TenantID)
		if err != nil {
			log.Fatal("Invalid sync.tenant_id", zap.String("tenant_id", cfg.Sync.TenantID), zap.Error(err))
		}
	}

	// Initialize the background scheduler
	schedModules := make([]sync.Module, 0, len(cfg.Sync.Modules))
	for _, name := range cfg.Sync.Modules {
		schedModules = append(schedModules, sync.Module(name))
	}
	syncScheduler, err := scheduler.NewSyncScheduler(orchestrator, scheduler.SyncSchedulerConfig{
		Enabled:  cfg.Sync.Enabled,
		Interval: cfg.Sync.Interval,
		Modules:  schedModules,
		TenantID: defaultTenant,
	}, log)
	if err != nil {
		log.Fatal("Failed to create sync scheduler", zap.Error(err))
	}
	if cfg.Sync.Enabled {
		if err := syncScheduler.Start(context.Background()); err != nil {
			log.Fatal("Failed to start sync scheduler", zap.Error(err))
		}
		log.Info("Sync scheduler started", zap.Duration("interval", cfg.Sync.Interval))
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())

	corsCfg := middleware.DefaultCORSConfig()
	if len(cfg.HTTP.CORSAllowOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	}
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORSWithConfig(corsCfg))

	tenantCfg := middleware.DefaultTenantConfig()
	tenantCfg.DefaultTenantID = defaultTenant
	engine.Use(middleware.TenantMiddleware(tenantCfg))

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db))

	// Register routes
	syncHandler := handler.NewSyncHandler(orchestrator, repairService, defaultTenant, log)
	systemHandler := handler.NewSystemHandler(db)

	router.NewRouter(engine).
		Register(syncHandler).
		Register(systemHandler).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if syncScheduler.IsRunning() {
		if err := syncScheduler.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping sync scheduler", zap.Error(err))
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
}

// healthHandler returns a handler for health check endpoints
func healthHandler(db *persistence.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(c.Request.Context()); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		})
	}
}
