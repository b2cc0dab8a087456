package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ridelink/internal/config"
	"ridelink/internal/handlers"
	"ridelink/internal/repositories/mongodb"
	"ridelink/internal/services"
	"ridelink/pkg/cache"
	"ridelink/pkg/database"
	"ridelink/pkg/logger"
	"ridelink/pkg/maps"
	"ridelink/pkg/push"
	"ridelink/pkg/websocket"
	"ridelink/routes"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(&logger.Config{
		Level:      logger.LogLevel(cfg.App.LogLevel),
		Format:     cfg.App.LogFormat,
		Output:     "stdout",
		TimeFormat: time.RFC3339,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	log.WithFields(map[string]interface{}{
		"name":        cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	}).Info("starting server")

	// Storage
	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to mongodb")
	}
	defer db.Close()

	indexCtx, cancelIndexes := context.WithTimeout(context.Background(), 30*time.Second)
	if err := database.EnsureIndexes(indexCtx, db.Database); err != nil {
		log.WithError(err).Fatal("failed to ensure indexes")
	}
	cancelIndexes()

	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		log.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisCache.Close()

	cacheService := services.NewCacheService(redisCache)

	// Repositories
	rideRepo := mongodb.NewRideRepository(db.Database, cacheService)
	driverRepo := mongodb.NewDriverRepository(db.Database, cacheService)
	categoryRepo := mongodb.NewCategoryRepository(db.Database, cacheService)
	userRepo := mongodb.NewUserRepository(db.Database, cacheService)

	// External providers
	mapsProvider := buildMapsProvider(cfg, log)
	pushProvider := buildPushProvider(cfg, log)

	// Realtime hub
	hub := websocket.NewHub()
	go hub.Run()

	// Services
	notifier := services.NewNotificationService(hub, pushProvider, userRepo, driverRepo, log)
	pricing := services.NewPricingService(mapsProvider, nil, log)
	presence := services.NewPresenceService(driverRepo, cacheService, cfg.Dispatch, log)
	dispatch := services.NewDispatchService(rideRepo, driverRepo, categoryRepo, userRepo, pricing, notifier, cacheService, cfg.Dispatch, log)
	rides := services.NewRideService(rideRepo, driverRepo, notifier, log)
	driverSvc := services.NewDriverService(driverRepo, log)
	categories := services.NewCategoryService(categoryRepo, log)

	// Standing pending-rides feed for connected drivers.
	feedCtx, stopFeed := context.WithCancel(context.Background())
	defer stopFeed()
	feed := services.NewRideFeedService(rideRepo, hub, log)
	go feed.Run(feedCtx)

	// A driver whose last connection drops goes offline rather than
	// lingering as a stale match candidate.
	hub.OnDisconnect = func(userID primitive.ObjectID, userType string) {
		if userType != "driver" {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		driver, err := driverSvc.GetByUserID(ctx, userID)
		if err != nil {
			return
		}
		if err := presence.GoOffline(ctx, driver.ID); err != nil {
			log.WithError(err).WithDriverID(driver.ID).Warn("failed to set driver offline on disconnect")
		}
	}

	// HTTP
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	routes.Setup(router, &routes.Handlers{
		Rides:       handlers.NewRideHandler(dispatch, rides, presence, log),
		Drivers:     handlers.NewDriverHandler(driverSvc, dispatch, rides, presence, log),
		Categories:  handlers.NewCategoryHandler(categories, log),
		Admin:       handlers.NewAdminHandler(driverSvc, log),
		WebSocket:   handlers.NewWebSocketHandler(hub, driverSvc, presence, log),
		HealthCheck: db.Ping,
	}, cfg, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 6 * time.Minute, // AwaitAssignment can hold a request up to the wait cap
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("forced shutdown")
	}

	log.Info("server stopped")
}

func buildMapsProvider(cfg *config.Config, log *logger.Logger) maps.Provider {
	if cfg.Maps.APIKey == "" {
		log.Warn("no maps api key configured, using straight-line estimates")
		return nil
	}

	provider, err := maps.NewGoogleMapsProvider(cfg.Maps.APIKey)
	if err != nil {
		log.WithError(err).Warn("failed to initialize maps provider, using straight-line estimates")
		return nil
	}
	return provider
}

func buildPushProvider(cfg *config.Config, log *logger.Logger) push.PushProvider {
	var fcm, apns push.PushProvider

	if cfg.Push.FCMCredentialsFile != "" {
		provider, err := push.NewFCMProvider(cfg.Push.FCMCredentialsFile)
		if err != nil {
			log.WithError(err).Warn("failed to initialize fcm")
		} else {
			fcm = provider
		}
	}

	if cfg.Push.APNSKeyFile != "" {
		provider, err := push.NewAPNSProvider(cfg.Push.APNSKeyFile, cfg.Push.APNSKeyID, cfg.Push.APNSTeamID, cfg.Push.APNSTopic, cfg.Push.APNSProduction)
		if err != nil {
			log.WithError(err).Warn("failed to initialize apns")
		} else {
			apns = provider
		}
	}

	if fcm == nil && apns == nil {
		log.Warn("no push providers configured, push notifications disabled")
		return nil
	}

	return push.NewMultiProvider(fcm, apns)
}
