package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lumina/internal/ai"
	"lumina/internal/auth"
	"lumina/internal/config"
	"lumina/internal/handlers"
	"lumina/internal/media"
	"lumina/internal/middleware"
	"lumina/internal/prefs"
	"lumina/internal/realtime"
	"lumina/internal/repository"
	"lumina/internal/services"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect to database
	db, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	if cfg.Database.Migrate {
		if err := repository.Migrate(ctx, db); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply migrations")
		}
	}

	// Local preference store
	store, err := prefs.Open(cfg.Prefs.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Prefs.Path).Msg("Failed to open preference store")
	}
	defer store.Close()

	// Initialize repositories
	profileRepo := repository.NewProfileRepository(db)
	postRepo := repository.NewPostRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	storyRepo := repository.NewStoryRepository(db)
	messageRepo := repository.NewMessageRepository(db)

	// External clients
	authClient := auth.NewClient(cfg.Backend.URL, cfg.Backend.AnonKey)
	verifier := auth.NewVerifier(cfg.Backend.JWTSecret)
	aiClient, err := ai.NewClient(ctx, ai.Options{
		BaseURL:      cfg.AI.BaseURL,
		APIKey:       cfg.AI.APIKey,
		CaptionModel: cfg.AI.CaptionModel,
		ImageModel:   cfg.AI.ImageModel,
		Timeout:      cfg.AI.Timeout,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create generative client")
	}
	if cfg.AI.APIKey == "" {
		log.Warn().Msg("No generative API key configured, studio features are disabled")
	}

	var uploader services.MediaUploader
	var presigner handlers.UploadPresigner
	if cfg.AWS.S3Bucket != "" {
		mediaStore, err := media.NewStore(ctx, media.Options{
			Region:        cfg.AWS.Region,
			Bucket:        cfg.AWS.S3Bucket,
			AccessKey:     cfg.AWS.AccessKey,
			SecretKey:     cfg.AWS.SecretKey,
			Endpoint:      cfg.AWS.Endpoint,
			PublicBaseURL: cfg.AWS.PublicBaseURL,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create media store")
		}
		uploader = mediaStore
		presigner = mediaStore
	} else {
		log.Warn().Msg("No media bucket configured, generated images are returned inline")
	}

	// Initialize services
	wsHub := services.NewWSHub()
	sessionService := services.NewSessionService(profileRepo, authClient, verifier, store, cfg.Session.ProfileTimeout)
	alertService := services.NewAlertService(wsHub)
	feedService := services.NewFeedService(postRepo, commentRepo, store, sessionService, alertService, wsHub)
	conversationService := services.NewConversationService(messageRepo, profileRepo, sessionService, alertService, wsHub)
	storyService := services.NewStoryService(storyRepo, sessionService, wsHub)
	communityService := services.NewCommunityService(profileRepo, store, sessionService, alertService, wsHub)
	settingsService := services.NewSettingsService(store, wsHub)
	studioService := services.NewStudioService(aiClient, aiClient, uploader, sessionService)

	realtimeEndpoint := cfg.Backend.RealtimeEndpoint()
	coordinator := services.NewCoordinator(
		sessionService,
		feedService,
		conversationService,
		storyService,
		communityService,
		alertService,
		func(accessToken string) services.ChangeSubscriber {
			return realtime.NewSubscriber(realtimeEndpoint, cfg.Backend.AnonKey, accessToken)
		},
		wsHub,
	)
	coordinator.Start(ctx)
	go sessionService.KeepFresh(ctx)

	if identity, err := sessionService.Resume(ctx); err != nil {
		log.Error().Err(err).Msg("Failed to resume session")
	} else if identity != nil {
		log.Info().Str("user_id", identity.ID).Msg("Session resumed")
	}

	// Initialize handlers
	sessionHandler := handlers.NewSessionHandler(sessionService)
	feedHandler := handlers.NewFeedHandler(feedService)
	storyHandler := handlers.NewStoryHandler(storyService)
	conversationHandler := handlers.NewConversationHandler(conversationService)
	alertHandler := handlers.NewAlertHandler(alertService)
	communityHandler := handlers.NewCommunityHandler(communityService)
	studioHandler := handlers.NewStudioHandler(studioService, presigner)
	settingsHandler := handlers.NewSettingsHandler(settingsService)
	wsHandler := handlers.NewWebSocketHandler(wsHub, sessionService, alertService, conversationService)

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
		r.Post("/auth/register", sessionHandler.Register)
		r.Post("/auth/login", sessionHandler.Login)
		r.Get("/settings/theme", settingsHandler.GetTheme)
		r.Put("/settings/theme", settingsHandler.SetTheme)
		r.Post("/settings/theme/toggle", settingsHandler.ToggleTheme)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(sessionService))
			r.Post("/auth/logout", sessionHandler.Logout)
			r.Get("/session", sessionHandler.Current)
			r.Patch("/profile", sessionHandler.UpdateProfile)

			r.Get("/feed", feedHandler.GetFeed)
			r.Get("/saved", feedHandler.GetSaved)
			r.Post("/posts", feedHandler.CreatePost)
			r.Patch("/posts/{post_id}", feedHandler.UpdatePost)
			r.Delete("/posts/{post_id}", feedHandler.DeletePost)
			r.Post("/posts/{post_id}/like", feedHandler.Like)
			r.Delete("/posts/{post_id}/like", feedHandler.Unlike)
			r.Post("/posts/{post_id}/save", feedHandler.Save)
			r.Get("/posts/{post_id}/comments", feedHandler.GetComments)
			r.Post("/posts/{post_id}/comments", feedHandler.AddComment)

			r.Get("/stories", storyHandler.GetStories)
			r.Post("/stories", storyHandler.CreateStory)
			r.Post("/stories/{story_id}/viewed", storyHandler.MarkViewed)

			r.Get("/conversations", conversationHandler.ListConversations)
			r.Get("/conversations/open", conversationHandler.Transcript)
			r.Delete("/conversations/open", conversationHandler.Close)
			r.Get("/conversations/{peer_id}", conversationHandler.Open)
			r.Post("/conversations/{peer_id}/messages", conversationHandler.Send)

			r.Get("/alerts", alertHandler.GetAlerts)
			r.Post("/alerts/read", alertHandler.MarkAllRead)
			r.Delete("/alerts", alertHandler.Clear)

			r.Get("/community", communityHandler.Directory)
			r.Get("/community/search", communityHandler.Search)
			r.Get("/users/{user_id}", communityHandler.GetUser)
			r.Post("/users/{user_id}/follow", communityHandler.ToggleFollow)
			r.Get("/following", communityHandler.Following)

			r.Post("/studio/caption", studioHandler.Caption)
			r.Post("/studio/image", studioHandler.MagicImage)
			r.Post("/media/uploads", studioHandler.Upload)
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
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
	<-ctx.Done()

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	coordinator.Stop()
	wsHub.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
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
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
