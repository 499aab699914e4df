package main // Entry point package

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/studio-booking/internal/config"
	"github.com/iliyamo/studio-booking/internal/database"
	"github.com/iliyamo/studio-booking/internal/handler"
	"github.com/iliyamo/studio-booking/internal/media"
	"github.com/iliyamo/studio-booking/internal/middleware"
	"github.com/iliyamo/studio-booking/internal/obs"
	"github.com/iliyamo/studio-booking/internal/payment"
	"github.com/iliyamo/studio-booking/internal/queue"
	"github.com/iliyamo/studio-booking/internal/repository"
	"github.com/iliyamo/studio-booking/internal/router"
	"github.com/iliyamo/studio-booking/internal/service"
)

func newLogger(env string) *slog.Logger {
	if env == "prod" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	logger := newLogger(cfg.Env)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, cfg.Tracing.Endpoint, cfg.Tracing.ServiceName, cfg.Env)
	if err != nil {
		logger.Warn("tracing disabled", "err", err)
		shutdownTracer = func(context.Context) error { return nil }
	}

	db, err := database.Open(ctx, cfg.Database())
	if err != nil {
		logger.Error("database open failed", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		logger.Error("migration failed", "err", err)
		os.Exit(1)
	}

	rule, err := cfg.Schedule.Rule()
	if err != nil {
		logger.Error("invalid schedule", "err", err)
		os.Exit(1)
	}

	// Redis backs the rate limiter and the response cache; both are
	// skipped when it is unreachable.
	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		logger.Warn("redis unreachable, rate limit and cache disabled", "addr", cfg.Redis.Address())
	} else {
		defer rdb.Close()
	}

	var events service.EventPublisher
	if cfg.Broker.Enabled {
		pub, err := queue.NewPublisher(cfg.Broker.URL, cfg.Broker.Exchange)
		if err != nil {
			logger.Warn("broker unreachable, booking events disabled", "err", err)
		} else {
			defer pub.Close()
			events = pub
		}
	}

	var (
		charges  service.ChargeFetcher
		payments service.ChargeCreator
	)
	if gw, err := payment.NewOmiseGateway(cfg.Payment.OmisePublicKey, cfg.Payment.OmiseSecretKey); err == nil {
		charges, payments = gw, gw
	} else if !errors.Is(err, payment.ErrNotConfigured) {
		logger.Warn("payment gateway disabled", "err", err)
	}

	users := repository.NewUserRepo(db)
	alloc := service.NewAllocator(rule, repository.NewSlotRepo(db), logger)
	life := service.NewLifecycle(service.LifecycleDeps{
		Allocator: alloc,
		Bookings:  repository.NewBookingRepo(db),
		Packages:  repository.NewPackageRepo(db),
		Verifier:  payment.NewSignatureVerifier(cfg.Payment.SigningSecret),
		Charges:   charges,
		Payments:  payments,
		Events:    events,
		Currency:  cfg.Payment.Currency,
		ReturnURI: cfg.Payment.ReturnURI,
		Logger:    logger,
	})

	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		life.RunSweeper(ctx, cfg.SweepInterval, cfg.PendingTTL)
	}()
	if cfg.Broker.Enabled {
		consumer := &queue.LogConsumer{URL: cfg.Broker.URL, Exchange: cfg.Broker.Exchange, Path: "logs/booking.log", Log: logger}
		workers.Add(1)
		go func() {
			defer workers.Done()
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("booking consumer stopped", "err", err)
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []any{"method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "ip", v.RemoteIP}
			if v.Error != nil {
				logger.Error("request", append(attrs, "err", v.Error)...)
				return nil
			}
			logger.Info("request", attrs...)
			return nil
		},
	}))

	router.Register(e, router.Handlers{
		Auth:     handler.NewAuthHandler(cfg, users, repository.NewTokenRepo(db)),
		Slots:    handler.NewSlotHandler(alloc),
		Bookings: handler.NewBookingHandler(life, alloc),
		Payments: handler.NewPaymentHandler(life),
		Catalog: &handler.CatalogHandler{
			Packages: repository.NewPackageRepo(db),
			Gallery:  repository.NewGalleryRepo(db),
			Media:    media.NewStore(cfg.UploadDir, "/uploads"),
			Invalidate: func(ctx context.Context) error {
				return middleware.InvalidatePrefix(ctx, rdb, cfg.Cache.Prefix)
			},
		},
		Contact:   &handler.ContactHandler{Contacts: repository.NewContactRepo(db)},
		Admin:     &handler.AdminHandler{Alloc: alloc, Users: users},
		Health:    handler.Health(db),
		JWTSecret: cfg.JWTSecret,
		UploadDir: cfg.UploadDir,
		RateLimit: middleware.NewTokenBucket(cfg.RateLimit, rdb, logger),
		Cache:     middleware.NewRedisCache(cfg.Cache, rdb, logger),
	})

	go func() {
		addr := ":" + cfg.Port
		logger.Info("listening", "addr", addr, "env", cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		logger.Error("server shutdown failed", "err", err)
	}
	workers.Wait()
	if err := shutdownTracer(sctx); err != nil {
		logger.Warn("tracer shutdown failed", "err", err)
	}
	logger.Info("server exited")
}
