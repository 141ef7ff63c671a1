package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hygiene-log-backend/internal/config"
	"hygiene-log-backend/internal/handlers"
	"hygiene-log-backend/internal/middleware"
	"hygiene-log-backend/internal/repository"
	"hygiene-log-backend/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	// Connect to database
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	// Connect to the local device key-value store
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping local store")
	}
	log.Info().Msg("Local store connection established")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	profileRepo := repository.NewProfileRepository(db)
	teamRepo := repository.NewTeamRepository(db)
	recordRepo := repository.NewRecordRepository(db)
	localStore := repository.NewLocalStore(redisClient)

	// Initialize services
	hub := services.NewHub()
	resolver := services.NewScopeResolver(profileRepo)
	backends := func(identity services.Identity, res services.Resolution) services.Backend {
		if !identity.Authenticated() {
			return services.NewLocalBackend(localStore, identity.DeviceID)
		}
		return services.NewRemoteBackend(recordRepo, hub, res.ScopeID)
	}
	recordService := services.NewRecordService(resolver, backends)
	teamService := services.NewTeamService(teamRepo, profileRepo)
	userService := services.NewUserService(userRepo, profileRepo, localStore, cfg.JWT.Secret)
	exportService, err := services.NewExportService(
		cfg.AWS.Region,
		cfg.AWS.S3Bucket,
		cfg.AWS.AccessKey,
		cfg.AWS.SecretKey,
		cfg.AWS.Endpoint,
	)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create export service")
	}

	// Initialize handlers
	userHandler := handlers.NewUserHandler(userService)
	recordHandler := handlers.NewRecordHandler(recordService)
	teamHandler := handlers.NewTeamHandler(teamService)
	exportHandler := handlers.NewExportHandler(exportService, recordService, userService, resolver)
	wsHandler := handlers.NewWebSocketHandler(hub, userService, resolver, backends)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/users", userHandler.Register)
		r.Post("/sessions", userHandler.Login)

		// Routes available to both signed-in users and anonymous devices
		r.Group(func(r chi.Router) {
			r.Use(middleware.Identity(userService))
			r.Post("/records", recordHandler.CreateRecord)
			r.Get("/records", recordHandler.ListRecords)
			r.Patch("/records/{record_id}", recordHandler.UpdateRecord)
			r.Delete("/records/{record_id}", recordHandler.DeleteRecord)
			r.Get("/statistics", recordHandler.GetStatistics)
			r.Post("/exports/{format}", exportHandler.Export)
			r.Post("/device/reset", userHandler.ResetDevice)

			// Routes requiring an authenticated user
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireAuth)
				r.Get("/profile", userHandler.GetProfile)
				r.Put("/profile", userHandler.SaveProfile)
				r.Post("/teams", teamHandler.CreateTeam)
				r.Get("/teams/{team_id}", teamHandler.GetTeam)
				r.Post("/teams/{team_id}/join", teamHandler.JoinTeam)
				r.Post("/teams/leave", teamHandler.LeaveTeam)
			})
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Device-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
