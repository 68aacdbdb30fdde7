package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"consult-booking/core/broker"
	"consult-booking/core/cache"
	"consult-booking/core/config"
	"consult-booking/core/database"
	"consult-booking/core/logger"
	appMiddleware "consult-booking/core/middleware"
	"consult-booking/core/queue"
	"consult-booking/core/storage"
	"consult-booking/modules/availability"
	"consult-booking/modules/booking"
	"consult-booking/modules/calendar"
	"consult-booking/modules/notification"
	paymentService "consult-booking/modules/payment/service"

	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Run wires every module onto one echo instance and blocks until SIGINT or SIGTERM.
func Run() error {
	cfg := config.Get()

	db, err := database.InitDB(cfg.Database)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	defer db.Close()

	var c cache.Cache = cache.Noop{}
	if redisCache, err := cache.NewRedisCache(cfg.Redis); err != nil {
		logger.Warn("Server:Run:Redis unavailable, running without cache", "error", err)
	} else {
		c = redisCache
	}
	defer c.Close()

	var publisher broker.Publisher = broker.Noop{}
	if cfg.Broker.URL != "" {
		amqpPublisher, err := broker.NewAMQPPublisher(cfg.Broker.URL, cfg.Broker.Exchange)
		if err != nil {
			logger.Warn("Server:Run:Broker unavailable, booking events will not be published", "error", err)
		} else {
			publisher = amqpPublisher
		}
	}
	defer publisher.Close()

	var store storage.ObjectStore
	if cfg.Storage.Bucket != "" {
		store = storage.NewS3Store(cfg.Storage)
	}

	var gateway paymentService.Gateway
	if gw, err := paymentService.NewGateway(cfg.Payment); err != nil {
		if cfg.Booking.PaymentRequired {
			return fmt.Errorf("init payment gateway: %w", err)
		}
		logger.Warn("Server:Run:Payment gateway disabled", "error", err)
	} else {
		gateway = gw
	}

	var (
		enqueuer    queue.Enqueuer
		queueClient *asynq.Client
	)
	if cfg.Queue.Enabled {
		queueClient = queue.NewClient(cfg.Redis, cfg.Queue)
		enqueuer = queueClient
		defer queueClient.Close()
	}

	mw := appMiddleware.NewMiddleware(cfg.JWT.Secret)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())

	e.GET("/health", func(ctx echo.Context) error {
		return ctx.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	api := e.Group("/api/v1")
	slots := availability.Init(api, db, mw)
	notifier := notification.Init(api, db, c, mw)
	reminders := booking.Init(api, db, mw, booking.Options{
		Slots:     slots,
		Notifier:  notifier,
		Gateway:   gateway,
		Calendar:  calendar.Init(cfg.Calendar),
		Publisher: publisher,
		Enqueuer:  enqueuer,
		Cache:     c,
		Store:     store,
		Config:    cfg,
	})

	var worker *asynq.Server
	if cfg.Queue.Enabled {
		worker = queue.NewServer(cfg.Redis, cfg.Queue)
		mux := asynq.NewServeMux()
		reminders.Register(mux)
		if err := worker.Start(mux); err != nil {
			return fmt.Errorf("start task worker: %w", err)
		}
		defer worker.Shutdown()
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server:Run:Listening", "addr", addr, "env", cfg.App.Env)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("start http server: %w", err)
	case sig := <-quit:
		logger.Info("Server:Run:Shutting down", "signal", sig.String())
	}

	timeout := cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	logger.Info("Server:Run:Stopped")
	return nil
}
