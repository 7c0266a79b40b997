package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/spf13/pflag"

	"modelgate/internal/auth"
	"modelgate/internal/catalog"
	"modelgate/internal/config"
	"modelgate/internal/domain/repositories"
	"modelgate/internal/domain/services"
	"modelgate/internal/handler"
	"modelgate/internal/middleware"
	"modelgate/internal/registry"
	"modelgate/internal/repository/memory"
	"modelgate/internal/repository/mongo"
	"modelgate/internal/repository/postgres"
	"modelgate/internal/repository/redis"
	authService "modelgate/internal/service/auth"
	"modelgate/internal/service/gateway"
)

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	// Load configuration, flags win over the environment
	cfg := config.Load()
	pflag.StringVarP(&cfg.Port, "port", "p", cfg.Port, "HTTP listen port")
	pflag.StringVar(&cfg.ModelsFile, "models", cfg.ModelsFile, "model catalog YAML (embedded catalog when empty)")
	pflag.StringVar(&cfg.Storage, "storage", cfg.Storage, "storage backend: memory, postgres or mongo")
	pflag.Parse()

	// Setup structured logging
	logger, closeLog, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to setup logging: %v", err)
	}
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"storage", cfg.Storage,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load model catalog
	cat, err := catalog.Load(cfg.ModelsFile)
	if err != nil {
		log.Fatalf("Failed to load model catalog: %v", err)
	}

	// Open storage and bind every model to its store
	factory, closeStorage, err := openStorage(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer closeStorage()

	models, err := registry.New(ctx, cat, factory, logger)
	if err != nil {
		log.Fatalf("Failed to build model registry: %v", err)
	}
	logger.Info("models registered", "models", models.Names())

	// Activity stamps go to redis when configured, to the user model otherwise
	var activity services.ActivityRecorder
	if cfg.RedisURL != "" {
		client, err := redis.Open(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer client.Close()
		activity = redis.NewActivityRecorder(client)
	} else {
		activity = gateway.NewStoreActivity(models, "user")
	}

	// Create services
	gw := gateway.NewService(
		models,
		authService.NewPermissionAuthorizer(cat),
		authService.NewProjectionPolicy(cat),
		logger,
		gateway.WithActivity(activity),
		gateway.WithFanout(config.DefaultFanout),
	)

	// Create JWT verifier; without one every caller is anonymous
	var verifier auth.JWTVerifier
	if cfg.JWKSURL != "" {
		verifier, err = auth.NewJWTVerifier(ctx, cfg.JWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		defer verifier.Close()
	} else {
		logger.Warn("JWKS_URL not set, all requests are anonymous")
	}

	// Create handlers
	gatewayHandler := handler.NewGatewayHandler(gw, logger)
	changesHandler := handler.NewChangesHandler(gw, logger)
	healthHandler := handler.NewHealthHandler(models)

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", healthHandler.Health)

	// Changes feed, with optional window bounds
	mux.HandleFunc("GET /api/{model}/changes/{type}/{projection}", changesHandler.Changes)
	mux.HandleFunc("GET /api/{model}/changes/{type}/{projection}/{from}", changesHandler.Changes)
	mux.HandleFunc("GET /api/{model}/changes/{type}/{projection}/{from}/{to}", changesHandler.Changes)

	// Action dispatcher
	mux.HandleFunc("POST /api/{model}/{action}", gatewayHandler.Dispatch)

	// Build middleware chain
	var h http.Handler = mux

	// Order: CORS → Recovery → Auth → Routes
	h = middleware.AuthMiddleware(verifier, logger)(h)
	h = middleware.Recovery(logger)(h)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-running change streams
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("server listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("Failed to start server: %v", err)
	}
	logger.Info("server stopped")
}

// openStorage returns the store factory for cfg.Storage and a function
// releasing its connections.
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repositories.StoreFactory, func(), error) {
	switch cfg.Storage {
	case config.StorageMemory:
		logger.Warn("using in-memory storage, data is lost on restart")
		return memory.NewFactory(), func() {}, nil

	case config.StoragePostgres:
		pool, err := postgres.CreateConnectionPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("database connected", "table_prefix", cfg.TablePrefix)
		factory := postgres.NewStoreFactory(&postgres.RepositoryConfig{
			Pool:   pool,
			Tables: postgres.NewTableNames(cfg.TablePrefix),
			Logger: logger,
		})
		return factory, pool.Close, nil

	case config.StorageMongo:
		client, err := mongo.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("mongo connected", "database", cfg.MongoDatabase)
		factory := mongo.NewStoreFactory(&mongo.RepositoryConfig{
			Database: client.Database(cfg.MongoDatabase),
			Logger:   logger,
		})
		closeClient := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				logger.Error("mongo disconnect failed", "error", err)
			}
		}
		return factory, closeClient, nil
	}
	return nil, nil, fmt.Errorf("unknown storage %q", cfg.Storage)
}
