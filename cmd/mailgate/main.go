package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/znz-systems/mailgate/internal/config"
	"github.com/znz-systems/mailgate/internal/database"
	"github.com/znz-systems/mailgate/internal/health"
	"github.com/znz-systems/mailgate/internal/inbound"
	"github.com/znz-systems/mailgate/internal/logging"
	"github.com/znz-systems/mailgate/internal/mail"
	"github.com/znz-systems/mailgate/internal/mailbox"
	"github.com/znz-systems/mailgate/internal/metrics"
	"github.com/znz-systems/mailgate/internal/ratelimit"
	"github.com/znz-systems/mailgate/internal/store/postgres"
	"github.com/znz-systems/mailgate/internal/tasks"
	"github.com/znz-systems/mailgate/internal/web"
	"github.com/znz-systems/mailgate/internal/web/handlers"
	"github.com/znz-systems/mailgate/migrations"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("mailgate exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger, logCloser := logging.New(cfg)
	defer logCloser.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Database
	db, err := postgres.NewDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Migrations
	if err := database.RunMigrations(migrations.FS, cfg.DatabaseURL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Stores
	mailboxStore := postgres.NewMailboxStore(db)
	inboxStore := postgres.NewInboxStore(db)

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Forwarding
	forwarder, err := mail.NewForwarder(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to configure forwarder: %w", err)
	}
	slog.Info("forwarder configured", "provider", forwarder.Name(), "fallback", cfg.FallbackAddress)

	// Services
	background := tasks.NewGroup()
	pipeline := inbound.NewPipeline(inboxStore, mailboxStore, forwarder, background, m, inbound.PipelineConfig{
		FallbackAddress: cfg.FallbackAddress,
		MaxBodyChars:    cfg.MaxBodyChars,
	})
	mailboxService := mailbox.NewService(mailboxStore, inboxStore, cfg)

	// Rate limiter
	limiter := ratelimit.NewLimiter(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst)

	// Router
	router := web.NewRouter(web.RouterDeps{
		MailboxAPI: handlers.NewMailboxAPIHandler(mailboxService, m),
		InboundAPI: handlers.NewInboundAPIHandler(pipeline, cfg.InboundAPIToken, 0),
		Limiter:    limiter,
		Metrics:    m.Handler(),
		Health:     health.NewHandler(db.DB),
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var smtpSrv *inbound.Server
	if cfg.InboundSMTPAddr != "" {
		smtpSrv = inbound.NewServer(cfg.InboundSMTPAddr, cfg.InboundSMTPDomain, pipeline)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		slog.Info("mailgate starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if smtpSrv != nil {
		group.Go(func() error {
			slog.Info("inbound SMTP server starting", "addr", smtpSrv.Addr(), "domain", cfg.InboundSMTPDomain)
			if err := smtpSrv.Start(); err != nil {
				return fmt.Errorf("inbound SMTP server: %w", err)
			}
			return nil
		})
	}

	// Graceful shutdown
	group.Go(func() error {
		<-groupCtx.Done()
		slog.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("http shutdown error", "error", err)
		}
		if smtpSrv != nil {
			if err := smtpSrv.Shutdown(shutdownCtx); err != nil {
				slog.Error("smtp shutdown error", "error", err)
			}
		}
		if err := background.Wait(shutdownCtx); err != nil {
			slog.Warn("abandoning pending forwards", "error", err)
		}
		return nil
	})

	return group.Wait()
}
