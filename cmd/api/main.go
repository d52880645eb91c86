//	@title			Musicbox API
//	@version		1.0
//	@description	Upload, catalog and stream audio files.
//
//	@host		localhost:5000
//	@BasePath	/api
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				JWT Bearer token. Format: **Bearer {token}**

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/musicbox/service/internal/auth"
	"github.com/musicbox/service/internal/config"
	"github.com/musicbox/service/internal/db"
	"github.com/musicbox/service/internal/identity"
	"github.com/musicbox/service/internal/logger"
	appMiddleware "github.com/musicbox/service/internal/middleware"
	"github.com/musicbox/service/internal/music"
	"github.com/musicbox/service/internal/response"
	"github.com/musicbox/service/internal/storage"
	"github.com/musicbox/service/internal/user"

	_ "github.com/musicbox/service/docs/swagger"
)

type healthResponse struct {
	Status    string    `json:"status"    example:"OK"`
	Message   string    `json:"message"   example:"Backend is running"`
	Timestamp time.Time `json:"timestamp"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("invalid configuration")
	}
	log := logger.New(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	pool, err := db.Connect(ctx, cfg.DatabaseURL, log)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("database connection failed")
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL, log); err != nil {
		log.Fatal().Err(err).Msg("database migration failed")
	}

	gateway, err := storage.NewMinioGateway(storage.Options{
		Endpoint:       cfg.StorageAddr(),
		UseSSL:         cfg.StorageUseSSL,
		PublicEndpoint: cfg.StoragePublicAddr(),
		PublicUseSSL:   cfg.StoragePublicUseSSL,
		AccessKey:      cfg.StorageAccessKey,
		SecretKey:      cfg.StorageSecretKey,
		Bucket:         cfg.StorageBucket,
		Region:         cfg.StorageRegion,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("object storage init failed")
	}
	ctx, cancel = context.WithTimeout(context.Background(), 30*time.Second)
	err = gateway.EnsureBucket(ctx)
	cancel()
	if err != nil {
		log.Fatal().Err(err).Msg("object storage bucket setup failed")
	}

	tokens := identity.NewJWTProvider(cfg.JWTSecret, cfg.TokenTTL)

	// Wire dependencies: repository → service → handler
	userSvc := user.NewService(user.NewRepository(pool))
	userHandler := user.NewHandler(userSvc)

	authSvc := auth.NewService(userSvc, tokens)
	authHandler := auth.NewHandler(authSvc, log)

	musicSvc := music.NewService(music.NewRepository(pool), gateway, cfg, log)
	musicHandler := music.NewHandler(musicSvc, log)

	// Router
	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(appMiddleware.Logger(log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	// Swagger UI at /swagger/
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", health)

		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(appMiddleware.RequireAuth(tokens, log))
			r.Get("/me", userHandler.GetMe)
			musicHandler.Mount(r)
		})
	})

	// Uploads of up to 100 MiB need a generous write window.
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", srv.Addr).Str("env", cfg.AppEnv).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-quit
	log.Info().Msg("shutting down gracefully")

	ctx, cancel = context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("forced shutdown")
		return
	}

	log.Info().Msg("server stopped")
}

// health godoc
//
//	@Summary	Health check
//	@Tags		system
//	@Produce	json
//	@Success	200	{object}	healthResponse
//	@Router		/health [get]
func health(w http.ResponseWriter, _ *http.Request) {
	response.OK(w, healthResponse{
		Status:    "OK",
		Message:   "Backend is running",
		Timestamp: time.Now().UTC(),
	})
}
