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

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.mongodb.org/mongo-driver/mongo"
	mongooptions "go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"dealscout/investor-portal/portal-backend/internal/auth"
	"dealscout/investor-portal/portal-backend/internal/config"
	"dealscout/investor-portal/portal-backend/internal/digest"
	"dealscout/investor-portal/portal-backend/internal/generation"
	"dealscout/investor-portal/portal-backend/internal/onboarding"
	"dealscout/investor-portal/portal-backend/internal/preferences"
	"dealscout/investor-portal/portal-backend/internal/realtime"
	"dealscout/investor-portal/portal-backend/internal/roadmap"
	"dealscout/investor-portal/portal-backend/internal/session"
	"dealscout/investor-portal/portal-backend/internal/setup"
)

func main() {
	configPath := flag.String("config", "config.json", "path to the JSON config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("Server exited with error", zap.Error(err))
	}
	logger.Info("Server exiting")
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = lvl
	return zcfg.Build()
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	// Connect to database
	logger.Info("Connecting to database",
		zap.String("host", cfg.Database.Host),
		zap.String("db", cfg.Database.DBName))
	db, err := sqlx.Connect("postgres", cfg.Database.GetDatabaseURL())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()
	db.SetMaxOpenConns(cfg.Database.MaxConnections)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db.DB}), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("open gorm: %w", err)
	}

	prefsRepo, closeRepo, err := newPreferenceRepository(ctx, cfg, db, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	roadmapRepo := roadmap.NewGormRepository(gormDB)
	if err := roadmapRepo.AutoMigrate(ctx); err != nil {
		return fmt.Errorf("migrate roadmaps: %w", err)
	}

	// Realtime hub
	hub := realtime.NewManager(cfg.Server.AllowedOrigin, logger)
	defer hub.Close()

	// Session-scoped state
	coordinators := session.NewCache[*setup.Coordinator](cfg.Session.TTL, cfg.Session.SweepInterval)
	defer coordinators.Stop()
	runs := session.NewCache[*onboarding.Wizard](cfg.Session.TTL, cfg.Session.SweepInterval)
	defer runs.Stop()

	// Services
	prefsService := preferences.NewService(prefsRepo, hub, logger)
	roadmapService := roadmap.NewService(roadmapRepo, hub, logger)
	generator := generation.NewClient(generation.Config{
		BaseURL: cfg.Generation.BaseURL,
		APIKey:  cfg.Generation.APIKey,
		Timeout: cfg.Generation.Timeout,
	}, logger)
	setupService := setup.NewService(prefsService, coordinators, logger)
	onboardingService := onboarding.NewService(prefsService, generator, roadmapService, hub, runs, coordinators, logger)

	verifier := auth.NewVerifier(cfg.Security.JWTSecret, cfg.Security.JWTIssuer)
	requireAuth := auth.Middleware(verifier)

	router := newRouter(cfg, logger, requireAuth, hub,
		auth.NewHandler(),
		preferences.NewHandler(prefsService, logger),
		setup.NewHandler(setupService, logger),
		onboarding.NewHandler(onboardingService, logger),
		roadmap.NewHandler(roadmapService, logger),
	)

	if cfg.Digest.Enabled {
		scheduler, err := digest.NewScheduler(digest.Config{
			Specs: map[preferences.NotificationFrequency]string{
				preferences.FrequencyDaily:   cfg.Digest.DailySpec,
				preferences.FrequencyWeekly:  cfg.Digest.WeeklySpec,
				preferences.FrequencyMonthly: cfg.Digest.MonthlySpec,
			},
		}, prefsService, roadmapService, hub, logger)
		if err != nil {
			return err
		}
		if err := scheduler.Start(); err != nil {
			return err
		}
		defer scheduler.Stop()
	}

	srv := &http.Server{
		Addr:         cfg.Server.GetServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// newPreferenceRepository opens the configured preference store. The returned
// func releases whatever the store opened.
func newPreferenceRepository(ctx context.Context, cfg *config.Config, db *sqlx.DB, logger *zap.Logger) (preferences.Repository, func(), error) {
	switch cfg.Storage.PreferencesDriver {
	case "mongo":
		client, err := mongo.Connect(ctx, mongooptions.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return nil, nil, fmt.Errorf("connect mongo: %w", err)
		}
		disconnect := func() {
			dctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(dctx); err != nil {
				logger.Warn("Mongo disconnect failed", zap.Error(err))
			}
		}
		repo := preferences.NewMongoRepository(client.Database(cfg.Mongo.Database))
		if err := repo.EnsureIndexes(ctx); err != nil {
			disconnect()
			return nil, nil, fmt.Errorf("ensure preference indexes: %w", err)
		}
		logger.Info("Preferences stored in mongo", zap.String("database", cfg.Mongo.Database))
		return repo, disconnect, nil
	default:
		repo := preferences.NewPostgresRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return nil, nil, fmt.Errorf("ensure preference schema: %w", err)
		}
		return repo, func() {}, nil
	}
}

type routeRegistrar interface {
	RegisterRoutes(router *gin.RouterGroup)
}

func newRouter(cfg *config.Config, logger *zap.Logger, requireAuth gin.HandlerFunc, hub *realtime.Manager, authHandler *auth.Handler, handlers ...routeRegistrar) *gin.Engine {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), cors(cfg.Server.AllowedOrigin))

	api := router.Group("/api/v1")
	auth.RegisterRoutes(api, authHandler, requireAuth)

	protected := api.Group("", requireAuth)
	for _, h := range handlers {
		h.RegisterRoutes(protected)
	}

	router.GET("/ws", requireAuth, hub.ServeWS)

	// Health Check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "healthy",
			"timestamp":   time.Now(),
			"connections": hub.ConnectionCount(""),
		})
	})
	return router
}

func cors(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, PATCH, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
