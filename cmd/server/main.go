package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/iliyamo/ims-api/internal/auth"
	"github.com/iliyamo/ims-api/internal/config"
	"github.com/iliyamo/ims-api/internal/database"
	"github.com/iliyamo/ims-api/internal/handler"
	"github.com/iliyamo/ims-api/internal/logging"
	"github.com/iliyamo/ims-api/internal/metrics"
	"github.com/iliyamo/ims-api/internal/middleware"
	"github.com/iliyamo/ims-api/internal/queue"
	"github.com/iliyamo/ims-api/internal/repository"
	"github.com/iliyamo/ims-api/internal/router"
	"github.com/iliyamo/ims-api/internal/worker"
)

func main() {
	cfg := config.Load()
	logging.Setup(cfg.Env, cfg.LogLevel)

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("database unavailable")
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tables := repository.NewTables(cfg.TablePrefix)
	users := repository.NewUserRepo(db, tables)
	roles := repository.NewRoleRepo(db, tables)
	sessions := repository.NewSessionRepo(db, tables)
	customers := repository.NewCustomerRepo(db, tables)
	stats := repository.NewDashboardRepo(db, tables)

	authSvc := auth.NewService(users, sessions, auth.Options{Secret: cfg.SessionSecret, TTL: cfg.SessionTTL})
	reg := metrics.NewRegistry()

	// Redis is optional; a nil client turns the limiter and cache into no-ops.
	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)
	cache := middleware.NewRedisCache(config.LoadCacheConfig(), rdb)

	var pub queue.Publisher = queue.NopPublisher{}
	auditCfg := config.LoadAuditConfig()
	if auditCfg.Enabled {
		amqpPub := queue.NewAMQPPublisher(auditCfg.URL, auditCfg.Queue, 0)
		go amqpPub.Run(ctx)
		pub = amqpPub
		if auditCfg.ConsumerEnabled {
			go queue.NewConsumer(auditCfg.URL, auditCfg.Queue, auditCfg.LogDir).Run(ctx)
		}
		log.Info().Str("queue", auditCfg.Queue).Bool("consumer", auditCfg.ConsumerEnabled).Msg("audit publishing enabled")
	}
	audit := handler.NewAuditor(pub)

	worker.StartSessionSweeper(ctx, worker.SweeperConfig{
		Sessions:  sessions,
		Interval:  cfg.SweepInterval,
		Retention: cfg.SweepRetention,
		Swept:     reg.SessionsSwept,
	})

	handler.SetRequestTimeout(cfg.RequestTimeout)

	e := router.New(reg)
	router.RegisterRoutes(e, db, reg)

	api := e.Group(cfg.BasePath)
	router.RegisterAuth(api, handler.NewAuthHandler(authSvc, audit, reg.Logins), authSvc, limiter)
	router.RegisterUsers(api,
		handler.NewUserHandler(users, roles, sessions, audit, cfg.BcryptCost),
		handler.NewRoleHandler(roles),
		authSvc)
	router.RegisterCustomers(api, handler.NewCustomerHandler(customers, audit), authSvc)
	router.RegisterDashboard(api, handler.NewDashboardHandler(stats), cache)

	addr := ":" + cfg.Port
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Str("base", cfg.BasePath).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
