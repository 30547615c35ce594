package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/civic-report-api/api/swagger"
	"github.com/noah-isme/civic-report-api/internal/handler"
	internalmiddleware "github.com/noah-isme/civic-report-api/internal/middleware"
	"github.com/noah-isme/civic-report-api/internal/models"
	"github.com/noah-isme/civic-report-api/internal/repository"
	"github.com/noah-isme/civic-report-api/internal/service"
	"github.com/noah-isme/civic-report-api/pkg/cache"
	"github.com/noah-isme/civic-report-api/pkg/config"
	"github.com/noah-isme/civic-report-api/pkg/database"
	"github.com/noah-isme/civic-report-api/pkg/imageenc"
	"github.com/noah-isme/civic-report-api/pkg/logger"
	"github.com/noah-isme/civic-report-api/pkg/middleware/requestid"
	"github.com/noah-isme/civic-report-api/pkg/realtime"
)

// @title Civic Report API
// @version 1.0.0
// @description Citizens report civic issues with a photo and location; administrators track them on a live dashboard.
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @securityDefinitions.apikey APIKey
// @in header
// @name apikey

const feedStatePoll = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metricsSvc := service.NewMetricsService()
	validate := validator.New()
	encoder := imageenc.New(cfg.Issues.PhotoMaxBytes)

	var (
		db          *sqlx.DB
		redisClient *redis.Client
		hub         *realtime.Hub
	)
	configured := cfg.Backend.Configured()
	if configured {
		db, err = database.NewPostgres(cfg.Backend, cfg.Database)
		if err != nil {
			logr.Fatal("failed to connect to database", zap.Error(err))
		}
		defer db.Close()

		if cfg.Database.MigrateOnStart {
			if err := database.MigrateUp(db); err != nil {
				logr.Fatal("failed to apply migrations", zap.Error(err))
			}
		}

		hub, err = realtime.Listen(cfg.Backend.URL, database.IssueChangeChannel, cfg.Feed, logr)
		if err != nil {
			logr.Warn("change feed unavailable, dashboards will not update live", zap.Error(err))
		} else {
			defer hub.Close() //nolint:errcheck
			go mirrorFeedState(ctx, hub, metricsSvc)
		}
	} else {
		logr.Warn("BACKEND_URL or BACKEND_API_KEY missing, starting without a backend")
	}

	redisClient, err = cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, caching disabled", zap.Error(err))
		redisClient = nil
	}

	cacheRepo := repository.NewCacheRepository(redisClient, "civic:", logr)
	defer cacheRepo.Close() //nolint:errcheck
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Geocode.CacheTTL, logr, cacheRepo.Enabled())
	geocodeSvc := service.NewGeocodeService(cfg.Geocode, &http.Client{Timeout: cfg.Geocode.Timeout}, cacheSvc, logr)

	var (
		authenticator service.Authenticator
		adminLookup   service.AdminLookup
		auditRecorder internalmiddleware.AuditRecorder
		issueRepo     *repository.IssueRepository
	)
	if db != nil {
		userRepo := repository.NewUserRepository(db)
		profileRepo := repository.NewProfileRepository(db)
		issueRepo = repository.NewIssueRepository(db, encoder)

		authenticator = service.NewAuthService(userRepo, profileRepo, validate, logr, service.AuthConfig{
			AccessTokenSecret:        cfg.JWT.Secret,
			AccessTokenExpiry:        cfg.JWT.Expiration,
			RefreshTokenExpiry:       cfg.JWT.RefreshExpiration,
			Issuer:                   cfg.JWT.Issuer,
			RequireEmailConfirmation: cfg.Auth.RequireEmailConfirmation,
		})
		adminLookup = profileRepo
		auditRecorder = userRepo
	}

	sessions := service.NewSessionService(authenticator, adminLookup, cfg.Auth.MinPasswordLength, logr)
	issueSvc := service.NewIssueService(issueRepo, geocodeSvc, encoder, models.ParseTransitionPolicy(cfg.Issues.TransitionPolicy), metricsSvc, logr)

	var feed service.ChangeSource
	if hub != nil {
		feed = hub
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestid.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(cors.New(corsConfig(cfg.CORS.AllowedOrigins)))
	r.Use(internalmiddleware.Metrics(metricsSvc))

	r.GET("/ready", readiness(db, cacheRepo))
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.Routes{
		APIPrefix:         cfg.APIPrefix,
		BackendConfigured: configured,
		APIKey:            cfg.Backend.APIKey,
		Identifier:        sessions,
		AuditRecorder:     auditRecorder,
		Logger:            logr,
		Auth:              handler.NewAuthHandler(sessions),
		Issues:            handler.NewIssueHandler(issueSvc, validate, cfg.Issues.PhotoMaxBytes),
		Dashboard:         handler.NewDashboardHandler(issueSvc, feed, metricsSvc, logr, cfg.CORS.AllowedOrigins),
		Geocode:           handler.NewGeocodeHandler(geocodeSvc),
		Metrics:           handler.NewMetricsHandler(metricsSvc),
	}.Register(r)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "backend", configured)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization", "apikey", "X-API-Key", requestid.Header)
	cfg.ExposeHeaders = []string{requestid.Header, "Content-Disposition"}
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func readiness(db *sqlx.DB, cacheRepo *repository.CacheRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		checks := gin.H{"database": "skipped", "cache": "skipped"}
		status := http.StatusOK
		if db != nil {
			checks["database"] = "ok"
			if err := db.PingContext(ctx); err != nil {
				checks["database"] = err.Error()
				status = http.StatusServiceUnavailable
			}
		}
		if cacheRepo.Enabled() {
			checks["cache"] = "ok"
			if err := cacheRepo.Ping(ctx); err != nil {
				checks["cache"] = err.Error()
			}
		}
		c.JSON(status, gin.H{"status": http.StatusText(status), "checks": checks})
	}
}

// mirrorFeedState copies the listener's connection state into metrics.
func mirrorFeedState(ctx context.Context, hub *realtime.Hub, metrics *service.MetricsService) {
	ticker := time.NewTicker(feedStatePoll)
	defer ticker.Stop()
	metrics.SetFeedConnected(hub.Connected())
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			metrics.SetFeedConnected(hub.Connected())
		}
	}
}
