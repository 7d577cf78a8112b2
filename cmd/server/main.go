package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/karlutxo/zk-tools/internal/admin"
	"github.com/karlutxo/zk-tools/internal/attendance"
	"github.com/karlutxo/zk-tools/internal/audit"
	"github.com/karlutxo/zk-tools/internal/auth"
	"github.com/karlutxo/zk-tools/internal/employee/cache"
	"github.com/karlutxo/zk-tools/internal/enrich"
	"github.com/karlutxo/zk-tools/internal/payroll"
	"github.com/karlutxo/zk-tools/internal/platform/config"
	"github.com/karlutxo/zk-tools/internal/platform/httpserver"
	"github.com/karlutxo/zk-tools/internal/platform/logger"
	"github.com/karlutxo/zk-tools/internal/platform/metrics"
	"github.com/karlutxo/zk-tools/internal/platform/middleware"
	platformredis "github.com/karlutxo/zk-tools/internal/platform/redis"
	"github.com/karlutxo/zk-tools/internal/terminal"
	"github.com/karlutxo/zk-tools/internal/terminal/driver"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "zk-tools: %v\n", err)
		os.Exit(1)
	}
}

// run wires the dependency graph and keeps the server lifecycle in one
// place. Business logic lives in the internal packages.
func run() error {
	envPath := flag.String("env", ".env", "optional env file seeding the environment")
	flag.Parse()

	cfg, err := config.New(*envPath)
	if err != nil {
		return err
	}
	log := logger.New(logger.ParseLevel(cfg.LogLevel))
	m := metrics.New()

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		log.Info("payroll snapshot cache enabled")
	}

	payrollClient := payroll.New(cfg.PayrollURL, cfg.PayrollTimeout, cfg.PayrollCacheTTL, log,
		payroll.WithSnapshot(redisClient),
		payroll.WithMetrics(m),
	)

	var attendanceStore *attendance.Store
	if cfg.AttendanceDSN != "" {
		db, err := attendance.Open(cfg.AttendanceDSN)
		if err != nil {
			return fmt.Errorf("connect attendance database: %w", err)
		}
		defer db.Close()
		attendanceStore = attendance.New(db, log, attendance.WithMetrics(m))
		log.Info("attendance database enabled")
	}

	known, err := terminal.LoadKnownTerminals(cfg.TerminalsFile)
	if err != nil {
		return fmt.Errorf("load terminal list: %w", err)
	}
	log.Info("terminal list loaded", "path", cfg.TerminalsFile, "count", len(known))

	connector := terminal.NewConnector(driver.New(log), cfg.ConnectRetries, cfg.ConnectDelay, cfg.DeviceTimeout, log)
	terminals := terminal.NewService(connector, log,
		terminal.WithMetrics(m),
		terminal.WithDriftWarn(cfg.ClockDriftWarn),
	)

	auditPublisher := audit.NewPublisher(log, cfg.KafkaBrokers, cfg.KafkaTopic)
	if auditPublisher != nil {
		defer auditPublisher.Close()
		log.Info("audit trail enabled", "topic", cfg.KafkaTopic)
	}

	enrichService := enrich.New(payrollClient, log, enrich.WithAttendance(attendanceStore))
	authService := auth.New(cfg.JWTSigningKey, cfg.AdminUser, cfg.AdminPasswordHash, cfg.SessionTTL)

	adminService := admin.NewService(terminals, cache.New(), payrollClient, enrichService, log,
		admin.WithAttendance(attendanceStore),
		admin.WithAudit(auditPublisher),
		admin.WithKnownTerminals(known),
		admin.WithCardWebhook(cfg.PayrollWebhookURL),
	)
	handler := admin.NewHandler(adminService, authService, log)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recovery(log))
	router.Use(middleware.Logger(log))
	router.Handle("/metrics", promhttp.Handler())
	handler.RegisterPublic(router)
	router.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(authService, log))
		handler.Register(r)
	})

	srv := httpserver.New(cfg.HTTPAddr, router)
	serverErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
