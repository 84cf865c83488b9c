// @title           Virtual Try-On Backend API
// @version         1.0.0
// @description     Backend API for virtual try-on. Dresses a stored person photo in a stored garment photo using either a local diffusion runtime or a hosted generative model, and serves the results.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"virtual-tryon-backend/internal/config"
	"virtual-tryon-backend/internal/database"
	"virtual-tryon-backend/internal/handlers"
	"virtual-tryon-backend/internal/logger"
	"virtual-tryon-backend/internal/middleware"
	"virtual-tryon-backend/internal/storage"
	"virtual-tryon-backend/internal/supabase"
	"virtual-tryon-backend/internal/tryon"
	"virtual-tryon-backend/internal/vton"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment, cfg.LogLevel)
	ctx := log.WithContext(context.Background())

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	// Set Gin mode
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.NewMigrator(db, log).Run(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	log.Info().Msg("migrations completed successfully")

	dbClient := supabase.NewDatabaseClient(db)

	// Supabase is optional unless it backs storage; it also carries realtime events.
	var supabaseClient *supabase.Client
	if cfg.SupabaseURL != "" && cfg.SupabaseServiceKey != "" {
		supabaseClient, err = supabase.NewClient(cfg)
		if err != nil {
			return err
		}
	}

	store, err := newStore(ctx, cfg, supabaseClient)
	if err != nil {
		return err
	}
	log.Info().Str("storage", cfg.StorageBackend).Msg("storage initialized")

	backend, err := vton.NewBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize synthesis backend: %w", err)
	}
	if local, ok := backend.(*vton.LocalBackend); ok && cfg.VTONWarmup {
		if err := local.Warmup(ctx); err != nil {
			// The model is loaded again on first use.
			log.Warn().Err(err).Msg("model warmup failed")
		} else {
			log.Info().Msg("model warmed up")
		}
	}
	log.Info().Str("backend", backend.Name()).Msg("synthesis backend ready")

	service := tryon.NewService(dbClient, store, dbClient, backend)
	if supabaseClient != nil {
		service.WithEvents(supabase.NewRealtimeClient(supabaseClient))
	}

	healthHandler := handlers.NewHealthHandler(dbClient, backend.Name())
	tryonHandler := handlers.NewTryonHandler(service, cfg.TryonMaxAttempts, cfg.TryonTimeout)
	resultsHandler := handlers.NewResultsHandler(dbClient, store)

	// Setup router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.Middleware(log))

	// Health check (no auth)
	router.GET("/health", healthHandler.Health)

	// Result filenames are unguessable and served without auth.
	router.GET("/results/image/:filename", resultsHandler.Image)

	// API routes
	api := router.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(cfg))
	api.POST("/tryon", tryonHandler.Tryon)
	api.GET("/results", resultsHandler.List)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		return err
	case <-sigCtx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newStore(ctx context.Context, cfg *config.Config, sb *supabase.Client) (tryon.ByteStore, error) {
	switch cfg.StorageBackend {
	case config.StorageSupabase:
		if sb == nil {
			return nil, errors.New("supabase storage requires SUPABASE_URL and SUPABASE_SERVICE_ROLE_KEY")
		}
		return supabase.NewStorageClient(sb, cfg.SupabaseStorageBucket), nil
	case config.StorageS3:
		return storage.NewS3StoreFromEnv(ctx, cfg.AWSRegion, cfg.AWSBucket)
	default:
		fs, err := storage.NewFileStore(cfg.StorageLocalDir)
		if err != nil {
			return nil, err
		}
		zerolog.Ctx(ctx).Info().Str("path", fs.BasePath()).Msg("using local file storage")
		return fs, nil
	}
}
