package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"propdial/internal/audit"
	"propdial/internal/auth"
	"propdial/internal/campaigns"
	"propdial/internal/config"
	"propdial/internal/httpapi"
	"propdial/internal/migrations"
	"propdial/internal/phone"
	"propdial/internal/reporting"
	"propdial/internal/voice"
	"propdial/pkg/logger"
	"propdial/pkg/utils"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	db, err := utils.OpenPostgres(rootCtx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
	if err != nil {
		log.Error("postgres init failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if cfg.DB.AutoMigrate {
		if err := migrations.Up(rootCtx, db, log); err != nil {
			log.Error("migrations failed", "err", err)
			os.Exit(1)
		}
	}

	var sessionCap voice.Limiter
	if cfg.RedisEnabled() && cfg.Dialer.MaxLiveSessionsPerOrg > 0 {
		rdb, err := utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr()})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		// Slots outlive the longest call so a crash cannot pin them for long.
		sessionCap = utils.NewSessionCap(rdb, cfg.Dialer.MaxLiveSessionsPerOrg, cfg.Dialer.SessionMaxDuration+time.Minute)
	}

	phones, err := phone.NewValidator(cfg.Dialer.DefaultCountryCode)
	if err != nil {
		log.Error("phone validator init failed", "err", err)
		os.Exit(1)
	}
	loc, err := time.LoadLocation(cfg.Dialer.DefaultTimeZone)
	if err != nil {
		log.Error("default time zone invalid", "err", err)
		os.Exit(1)
	}

	store := campaigns.NewPostgresStore(db)
	auditor := audit.NewService(audit.NewPostgresRepo(db))

	campaignSvc, err := campaigns.NewService(campaigns.Options{
		Store:           store,
		Auditor:         auditor,
		Phones:          phones,
		DefaultLocation: loc,
		RealCalls:       cfg.Dialer.EnableRealCalls,
	})
	if err != nil {
		log.Error("campaign service init failed", "err", err)
		os.Exit(1)
	}

	bridge, err := voice.NewBridge(voice.Options{
		Store: store,
		Dialer: voice.RealtimeDialer{
			URL:    cfg.AI.RealtimeURL,
			Model:  cfg.AI.Model,
			APIKey: cfg.AI.APIKey,
		},
		Auditor:     auditor,
		Limiter:     sessionCap,
		Defaults:    voice.Defaults{Voice: cfg.AI.DefaultVoice},
		IdleTimeout: cfg.Dialer.SessionIdleTimeout,
		MaxDuration: cfg.Dialer.SessionMaxDuration,
	})
	if err != nil {
		log.Error("voice bridge init failed", "err", err)
		os.Exit(1)
	}

	// Gin router
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	registerRoutes(r, routeDeps{
		cfg:    cfg,
		db:     db,
		authMW: auth.RequireAccessToken(authManager),
		handlers: httpapi.Handlers{
			Auth:      authManager,
			Campaigns: campaignSvc,
			Reports:   reporting.NewService(reporting.NewPostgresRepo(db)),
		},
		completer: campaignSvc,
		media:     voice.NewHandler(bridge),
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", srv.Addr, "env", cfg.App.Env, "real_calls", cfg.Dialer.EnableRealCalls)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated", "live_sessions", bridge.ActiveSessions())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	// Hijacked media-stream connections are invisible to srv.Shutdown.
	if err := bridge.CloseAll(shutdownCtx, "server shutting down"); err != nil {
		log.Error("live sessions did not drain", "err", err)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
