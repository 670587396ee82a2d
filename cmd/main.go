package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/chingu-voyage4/Bears-Team-0/internal/cache"
	"github.com/chingu-voyage4/Bears-Team-0/internal/config"
	mongodb "github.com/chingu-voyage4/Bears-Team-0/internal/database/mongo"
	"github.com/chingu-voyage4/Bears-Team-0/internal/event"
	"github.com/chingu-voyage4/Bears-Team-0/internal/handlers"
	"github.com/chingu-voyage4/Bears-Team-0/internal/repository"
	"github.com/chingu-voyage4/Bears-Team-0/internal/service"
	"github.com/chingu-voyage4/Bears-Team-0/pkg/discovery"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// setupLogging writes to a dated file under logDir as well as stdout. When
// the directory cannot be used it logs to stdout only.
func setupLogging(logDir string) (*os.File, error) {
	log.SetFormatter(&log.JSONFormatter{})
	log.SetOutput(os.Stdout)

	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logFileName := fmt.Sprintf("log_%s.log", time.Now().Format("2006-01-02"))
	file, err := os.OpenFile(filepath.Join(logDir, logFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	log.SetOutput(io.MultiWriter(os.Stdout, file))
	return file, nil
}

func mongoConfig(cfg config.MongoDBConfig, database string) mongodb.MongoConfig {
	return mongodb.MongoConfig{
		URI:               cfg.URI,
		Database:          database,
		ConnectTimeout:    cfg.Timeout,
		MaxPoolSize:       cfg.PoolSize,
		MinPoolSize:       cfg.MinPoolSize,
		MaxConnIdleTime:   cfg.MaxConnIdleTime,
		MaxConnecting:     cfg.MaxConnecting,
		EnableCompression: cfg.EnableCompression,
		RetryWrites:       true,
		RetryReads:        true,
	}
}

func main() {
	cfg := config.Load()

	logFile, err := setupLogging(cfg.Server.LogDir)
	if err != nil {
		log.Warnf("File logging disabled: %v", err)
	} else {
		defer logFile.Close()
	}

	quizDB := mongodb.NewManager(mongoConfig(cfg.MongoDB, cfg.MongoDB.QuizDatabase))
	userDB := mongodb.NewManager(mongoConfig(cfg.MongoDB, cfg.MongoDB.UserDatabase))

	hasher := service.NewBcryptHasher(cfg.Auth.BcryptCost)
	quizRepo := repository.NewQuizRepository(quizDB)
	userRepo := repository.NewUserRepository(userDB, hasher)

	// Index creation dials both databases; a failed dial is retried on first use.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.MongoDB.Timeout)
	if err := quizRepo.EnsureIndexes(ctx); err != nil {
		log.Warnf("Quiz indexes not ensured: %v", err)
	}
	if err := userRepo.EnsureIndexes(ctx); err != nil {
		log.Warnf("User indexes not ensured: %v", err)
	}
	cancel()

	var popular cache.PopularCache = cache.Nop{}
	if cfg.Redis.Address != "" {
		redisCache := cache.NewRedisCache(cache.RedisConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Cache.PopularTTL,
		})
		defer redisCache.Close()
		if err := redisCache.Ping(context.Background()); err != nil {
			log.Warnf("Redis unreachable at startup, popular quizzes will miss until it answers: %v", err)
		}
		popular = redisCache
	} else {
		log.Info("Redis not configured, popular quizzes will not be cached")
	}

	var publisher event.Publisher
	eventPublisher, err := event.NewEventPublisher(cfg.RabbitMQ.URI)
	if err != nil {
		log.Errorf("Failed to connect to RabbitMQ, events will not be published: %v", err)
	} else {
		defer eventPublisher.Close()
		publisher = eventPublisher
	}

	quizService := service.NewQuizService(quizRepo, popular, publisher)
	userService := service.NewUserService(userRepo, hasher, publisher)
	auth := handlers.NewAuth(cfg.Auth.JWTSecret)

	gin.SetMode(cfg.Server.GinMode)
	r := gin.New()
	r.Use(handlers.RequestLogger(), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Content-Length", "Accept-Encoding", "Authorization", "accept", "origin", "Cache-Control", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	handlers.RegisterRoutes(r, handlers.NewQuizHandler(quizService), handlers.NewUserHandler(userService, auth), auth)
	handlers.RegisterOps(r, cfg.Server.ServiceName, func(ctx context.Context) bool {
		return quizDB.IsConnected(ctx) && userDB.IsConnected(ctx)
	})

	var registry *discovery.ServiceRegistry
	if cfg.Consul.Enabled {
		registry, err = discovery.NewServiceRegistry(cfg.Consul, cfg.Server)
		if err != nil {
			log.Errorf("Service discovery disabled: %v", err)
		} else if err := registry.Register(); err != nil {
			log.Errorf("Service registration failed: %v", err)
			registry = nil
		}
	}

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	shutdownChan := make(chan os.Signal, 1)
	signal.Notify(shutdownChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Infof("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Error starting server: %v", err)
		}
	}()

	<-shutdownChan
	log.Info("Shutting down server...")

	if registry != nil {
		if err := registry.Deregister(); err != nil {
			log.Warnf("Error deregistering service: %v", err)
		}
	}

	ctx, cancel = context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Errorf("Error shutting down server: %v", err)
	}

	quizDB.Disconnect(ctx)
	userDB.Disconnect(ctx)
	log.Info("Server exited, goodbye!")
}
