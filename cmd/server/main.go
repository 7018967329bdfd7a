package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/rbac-backend/internal/config"
	"github.com/iliyamo/rbac-backend/internal/database"
	"github.com/iliyamo/rbac-backend/internal/handler"
	"github.com/iliyamo/rbac-backend/internal/logging"
	"github.com/iliyamo/rbac-backend/internal/mail"
	"github.com/iliyamo/rbac-backend/internal/middleware"
	"github.com/iliyamo/rbac-backend/internal/queue"
	"github.com/iliyamo/rbac-backend/internal/rbac"
	"github.com/iliyamo/rbac-backend/internal/repository"
	"github.com/iliyamo/rbac-backend/internal/router"
	"github.com/iliyamo/rbac-backend/internal/sandbox"
	"github.com/iliyamo/rbac-backend/internal/service"
	"github.com/iliyamo/rbac-backend/internal/utils"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.Env, cfg.LogLevel)
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	db, err := database.Open(database.Options{
		User:    cfg.DBUser,
		Pass:    cfg.DBPass,
		Host:    cfg.DBHost,
		Port:    cfg.DBPort,
		Name:    cfg.DBName,
		MaxOpen: cfg.DBPool,
	})
	if err != nil {
		logger.WithError(err).Fatal("database connection failed")
	}
	defer db.Close()

	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb == nil {
		logger.Warn("redis unavailable; rate limiting and catalog cache disabled")
	} else {
		defer rdb.Close()
	}

	issuer, err := utils.NewTokenIssuer(utils.TokenConfig{
		Secret:        cfg.JWTSecret,
		Algorithm:     cfg.JWTAlgorithm,
		AccessTTL:     time.Duration(cfg.AccessTTLMin) * time.Minute,
		RefreshTTL:    time.Duration(cfg.RefreshTTLDays) * 24 * time.Hour,
		RefreshSecret: cfg.RefreshTokenSecret,
	})
	if err != nil {
		logger.WithError(err).Fatal("token issuer")
	}

	// Optional modules register their capabilities before any request is
	// served; the catalog never changes afterwards.
	registry := rbac.NewRegistry(rbac.BaseModules()...)
	registry.Register(sandbox.Module())

	users := repository.NewUserRepo(db)
	roles := repository.NewRoleRepo(db)
	tokens := repository.NewTokenRepo(db)
	checker := rbac.NewChecker(roles)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, ctx := errgroup.WithContext(ctx)

	mailer, consumer := buildMailer(cfg, logger)
	if consumer != nil {
		g.Go(func() error {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	var metrics *middleware.Metrics
	if cfg.MetricsEnabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewDBStatsCollector(db, cfg.DBName))
		metrics = middleware.NewMetrics(reg)
	}

	base := handler.NewBase(cfg, logger)
	e := echo.New()
	e.HideBanner = true
	router.RegisterRoutes(e, router.Deps{
		DB:        db,
		Redis:     rdb,
		Logger:    logger,
		Metrics:   metrics,
		RateLimit: config.LoadRateLimitConfig(),
		Cache:     config.LoadCacheConfig(),
		Tokens:    issuer,
		Users:     users,
		Authz:     checker,
		Auth:      handler.NewAuthHandler(base, service.NewAuthService(db, users, tokens, issuer, mailer, logger, cfg)),
		Account:   handler.NewAccountHandler(base, service.NewAccountService(db, users, roles, tokens, issuer, cfg)),
		Roles:     handler.NewRoleHandler(base, service.NewRoleService(db, roles, users, registry)),
		UserMgr:   handler.NewUserHandler(base, service.NewUserService(db, users, roles, tokens, mailer, logger, cfg)),
		Sandbox:   sandbox.NewHandler(base, sandbox.NewService(db, sandbox.NewRepo(db))),
	})

	addr := ":" + cfg.Port
	g.Go(func() error {
		logger.WithFields(logrus.Fields{"addr": addr, "env": cfg.Env}).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		logger.Info("shutting down")
		return e.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Fatal("server stopped")
	}
}

// buildMailer picks the delivery path.  With RABBITMQ_URL set, services
// publish to the queue and a consumer delivers over SMTP; otherwise mail is
// sent inline.  A nil Mailer disables mail.
func buildMailer(cfg config.Config, logger *logrus.Logger) (mail.Mailer, *queue.Consumer) {
	sender, err := mail.NewSMTPSender(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPassword,
		From:     cfg.MailSender,
	})
	if err != nil {
		logger.WithError(err).Warn("smtp not configured; outbound mail disabled")
		return nil, nil
	}
	if cfg.RabbitMQURL == "" {
		return sender, nil
	}
	consumer := &queue.Consumer{URL: cfg.RabbitMQURL, Queue: cfg.MailQueue, Sender: sender, Logger: logger}
	return queue.NewPublisher(cfg.RabbitMQURL, cfg.MailQueue, logger), consumer
}
