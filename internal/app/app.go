package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"inteliroute/internal/classifier"
	"inteliroute/internal/config"
	"inteliroute/internal/database"
	"inteliroute/internal/forwarder"
	"inteliroute/internal/handlers"
	"inteliroute/internal/mailsource"
	"inteliroute/internal/metrics"
	"inteliroute/internal/model"
	"inteliroute/internal/repository"
	"inteliroute/internal/server"
	"inteliroute/internal/worker"
)

// Run initializes and starts the application
func Run() error {
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	logrus.Info("Starting InteliRoute")

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	db, err := database.Init(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	m := metrics.NewMetrics()

	mailboxRepo := repository.NewMailboxRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	departmentRepo := repository.NewDepartmentRepository(db)
	eventRepo := repository.NewRouteEventRepository(db)

	var source mailsource.Source
	switch cfg.Source.Kind {
	case "imap":
		source = mailsource.NewIMAPSource(cfg.Source.IMAP)
		logrus.Info("Using IMAP mail source")
	default:
		source = mailsource.NewGmailSource(cfg.Source.Gmail)
		logrus.Info("Using Gmail API mail source")
	}

	cls := classifier.NewClient(cfg.Classifier)
	fwd := forwarder.NewSMTPForwarder(cfg.Smtp)

	fetchWorker := worker.NewFetchWorker(cfg.Fetch, mailboxRepo, messageRepo, source, m)
	routingWorker := worker.NewRoutingWorker(cfg.Routing, cfg.Classifier,
		messageRepo, departmentRepo, eventRepo, cls, fwd, m)

	h := handlers.NewHandlers(db, mailboxRepo, messageRepo, departmentRepo, eventRepo,
		fetchWorker, routingWorker, m)
	router := server.SetupRouter(h)
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	if err := fetchWorker.Start(); err != nil {
		return fmt.Errorf("failed to start fetch worker: %w", err)
	}
	if err := routingWorker.Start(); err != nil {
		return fmt.Errorf("failed to start routing worker: %w", err)
	}

	gauges := startGaugeRefresh(messageRepo, departmentRepo, m)

	go func() {
		logrus.Infof("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("HTTP server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	gauges.Stop()

	if err := fetchWorker.Stop(); err != nil {
		logrus.Errorf("Failed to stop fetch worker: %v", err)
	}
	if err := routingWorker.Stop(); err != nil {
		logrus.Errorf("Failed to stop routing worker: %v", err)
	}
	fetchWorker.Wait()
	routingWorker.Wait()

	if err := srv.Shutdown(ctx); err != nil {
		logrus.Errorf("HTTP server shutdown error: %v", err)
	}

	logrus.Info("Server stopped gracefully")
	return nil
}

// startGaugeRefresh keeps the pending-messages and enabled-departments
// gauges current on a fixed schedule.
func startGaugeRefresh(messages *repository.MessageRepository, departments *repository.DepartmentRepository, m *metrics.Metrics) *cron.Cron {
	c := cron.New()
	refresh := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if pending, err := messages.CountByStatus(ctx, model.StatusNew); err == nil {
			m.PendingMessages.Set(float64(pending))
		} else {
			logrus.Warnf("Failed to refresh pending gauge: %v", err)
		}
		if enabled, err := departments.CountEnabled(ctx); err == nil {
			m.EnabledDepartments.Set(float64(enabled))
		} else {
			logrus.Warnf("Failed to refresh department gauge: %v", err)
		}
	}
	refresh()
	c.AddFunc("@every 1m", refresh)
	c.Start()
	return c
}
