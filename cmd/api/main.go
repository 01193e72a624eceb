package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/option"

	fbapp "firebase.google.com/go/v4"

	"chatcore/internal/adapter/api"
	"chatcore/internal/adapter/api/handler"
	apimiddleware "chatcore/internal/adapter/api/middleware"
	"chatcore/internal/adapter/api/router"
	"chatcore/internal/adapter/repository"
	"chatcore/internal/domain/service"
	"chatcore/internal/infrastructure/cache"
	"chatcore/internal/infrastructure/crypto"
	"chatcore/internal/infrastructure/firebase"
	"chatcore/internal/infrastructure/giphy"
	"chatcore/internal/infrastructure/ratelimit"
	"chatcore/internal/infrastructure/storage"
	"chatcore/internal/infrastructure/websocket"
	"chatcore/internal/usecase"
	"chatcore/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var opt option.ClientOption
	if cfg.ServiceAccountJSON != "" {
		log.Printf("Using Firebase service account from environment variable")
		opt = option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON))
	} else {
		serviceAccountPath := cfg.ServiceAccountPath
		if serviceAccountPath == "" {
			serviceAccountPath = "./firebase-service-account.json"
		}
		if _, err := os.Stat(serviceAccountPath); os.IsNotExist(err) {
			log.Fatalf("Service account file does not exist: %s", serviceAccountPath)
		}

		log.Printf("Using Firebase service account from file: %s", serviceAccountPath)
		opt = option.WithCredentialsFile(serviceAccountPath)
	}

	firebaseApp, err := fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject}, opt)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase: %v", err)
	}

	authClient, err := firebaseApp.Auth(ctx)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase Auth: %v", err)
	}

	firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opt)
	if err != nil {
		log.Fatalf("Failed to create Firestore client: %v", err)
	}
	defer firestoreClient.Close()

	storageClient, err := storage.NewCloudStorageClient(ctx, cfg.StorageBucket, opt)
	if err != nil {
		log.Fatalf("Failed to initialize Cloud Storage: %v", err)
	}
	defer storageClient.Close()

	var mediaCache service.MediaCache
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedisMediaCache(ctx, cfg.RedisURL)
		if err != nil {
			log.Printf("Media cache disabled: %v", err)
		} else {
			defer redisCache.Close()
			mediaCache = redisCache
			log.Printf("Media cache enabled")
		}
	}

	if cfg.GiphyAPIKey == "" {
		log.Printf("GIPHY_API_KEY is not set, media search will fail")
	}
	giphyClient := giphy.NewClient(cfg.GiphyAPIKey, cfg.GiphyRatePerMinute)

	chatRepo := repository.NewFirestoreChatRepository(firestoreClient)
	callRepo := repository.NewFirestoreCallRepository(firestoreClient)
	userRepo := repository.NewFirestoreUserRepository(firestoreClient)

	firebaseAuthClient := firebase.NewFirebaseAuthClient(authClient)
	cipher := crypto.NewPassphraseCipher(cfg.MessageEncryptionKey)

	rateLimiter := ratelimit.NewRateLimiter()
	rateLimiter.StartCleanupRoutine(ctx.Done())

	wsManager := websocket.NewManager()
	wsManager.Start(ctx)

	mediaUseCase := usecase.NewMediaUseCase(storageClient, giphyClient, mediaCache, rateLimiter, usecase.MediaOptions{
		MaxImageBytes: cfg.MaxImageBytes,
		CacheTTL:      cfg.MediaCacheTTL,
	})
	sessionUseCase := usecase.NewChatSessionUseCase(chatRepo, userRepo)
	messageUseCase := usecase.NewMessageUseCase(chatRepo, cipher, mediaUseCase, rateLimiter)
	typingUseCase := usecase.NewTypingUseCase(chatRepo, usecase.SystemClock, cfg.TypingQuietPeriod, rateLimiter)
	callUseCase := usecase.NewCallUseCase(callRepo, usecase.SystemClock, rateLimiter)
	viewUseCase := usecase.NewChatViewUseCase(sessionUseCase, messageUseCase, typingUseCase)

	e := echo.New()

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	validator := api.NewValidator()
	e.Validator = validator

	authMiddleware := apimiddleware.NewAuthMiddleware(firebaseAuthClient)
	ipLimiter := apimiddleware.NewIPRateLimiter(60, time.Minute)
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ipLimiter.Cleanup(2 * time.Hour)
			case <-ctx.Done():
				return
			}
		}
	}()

	router.Setup(e, router.Handlers{
		Chat:  handler.NewChatHandler(sessionUseCase, messageUseCase, firebaseAuthClient, cfg.MaxImageBytes),
		Media: handler.NewMediaHandler(mediaUseCase),
		WebSocket: handler.NewWebSocketHandler(
			wsManager,
			firebaseAuthClient,
			viewUseCase,
			callUseCase,
			mediaUseCase,
			validator,
			cfg.MediaSearchDebounce,
		),
		Health: handler.NewHealthHandler(firebaseAuthClient, wsManager),
	}, authMiddleware, ipLimiter)

	go func() {
		log.Printf("Starting server on port %s...", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil {
			log.Printf("Server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}
}
