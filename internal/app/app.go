package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/derlev/sandwich-spawnpoint/internal/config"
	"github.com/derlev/sandwich-spawnpoint/internal/database"
	"github.com/derlev/sandwich-spawnpoint/internal/middleware"
	"github.com/derlev/sandwich-spawnpoint/internal/modules/appconfig"
	"github.com/derlev/sandwich-spawnpoint/internal/modules/bruteforce"
	"github.com/derlev/sandwich-spawnpoint/internal/pkg/cron"
	"github.com/derlev/sandwich-spawnpoint/internal/pkg/jwt"
	"github.com/derlev/sandwich-spawnpoint/internal/pkg/password"
	pkgredis "github.com/derlev/sandwich-spawnpoint/internal/pkg/redis"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	db     *gorm.DB
	redis  *pkgredis.Client
	logger *zap.Logger
	cancel context.CancelFunc
	sched  *cron.Scheduler
	issuer *jwt.Issuer
	store  *appconfig.Store
	ledger *bruteforce.Ledger
}

// Deps are the connections New opens. Tests supply their own.
type Deps struct {
	DB     *gorm.DB
	Redis  *pkgredis.Client // optional
	Hasher appconfig.Hasher // defaults to Argon2id with production parameters
}

// New initializes the application: config → DB → Redis → routes.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	var rc *pkgredis.Client
	if cfg.RedisURL != "" {
		rc, err = pkgredis.Connect(context.Background(), cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
	} else {
		logger.Info("redis_url is empty, config cache and rate limiting are disabled")
	}

	return Build(logger, cfg, Deps{DB: db, Redis: rc})
}

// Build wires the application on top of already opened connections.
func Build(logger *zap.Logger, cfg *config.AppConfig, deps Deps) (*App, error) {
	issuer, err := jwt.NewIssuer(cfg.AppSecret)
	if err != nil {
		return nil, err
	}

	hasher := deps.Hasher
	if hasher == nil {
		hasher = password.NewHasher(password.DefaultParams())
	}
	storeOpts := []appconfig.Option{appconfig.WithLogger(logger.Named("ConfigStore"))}
	if deps.Redis != nil {
		storeOpts = append(storeOpts, appconfig.WithCache(appconfig.NewRedisCache(deps.Redis)))
	}
	store := appconfig.NewStore(deps.DB, appconfig.Schema(cfg.AdminPassword), hasher, storeOpts...)
	if err := store.Reconcile(context.Background()); err != nil {
		return nil, fmt.Errorf("could not validate/create app config: %w", err)
	}

	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.Logger(logger))
	router.Use(cors.New(corsConfig(cfg)))
	if deps.Redis != nil && cfg.RateLimit.Max > 0 {
		router.Use(middleware.RateLimit(deps.Redis.Raw(), cfg.RateLimit.Max, cfg.RateLimit.Window, logger))
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		cfg:    cfg,
		router: router,
		db:     deps.DB,
		redis:  deps.Redis,
		logger: logger,
		cancel: cancel,
		sched:  cron.New(logger.Named("CronService")),
		issuer: issuer,
		store:  store,
		ledger: bruteforce.NewLedger(deps.DB, bruteforce.Policy{
			Window:        cfg.Bruteforce.Window,
			UserThreshold: cfg.Bruteforce.UserThreshold,
			IPThreshold:   cfg.Bruteforce.IPThreshold,
		}),
	}
	if err := a.registerRoutes(); err != nil {
		cancel()
		return nil, err
	}
	a.registerCronJobs()
	a.sched.Start(ctx)

	return a, nil
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf(":%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops the scheduler and releases connections.
func (a *App) Shutdown() {
	a.cancel()
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("closing redis", zap.Error(err))
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.logger.Warn("closing database", zap.Error(err))
		}
	}
}
