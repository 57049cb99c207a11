package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	fbapp "firebase.google.com/go/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"instapro/internal/adapter/api"
	"instapro/internal/adapter/api/handler"
	apimiddleware "instapro/internal/adapter/api/middleware"
	"instapro/internal/adapter/api/router"
	"instapro/internal/adapter/repository"
	domainrepo "instapro/internal/domain/repository"
	"instapro/internal/domain/service"
	"instapro/internal/infrastructure/firebase"
	"instapro/internal/infrastructure/metrics"
	"instapro/internal/infrastructure/ratelimit"
	"instapro/internal/infrastructure/storage"
	"instapro/internal/infrastructure/websocket"
	"instapro/internal/usecase"
	"instapro/pkg/config"
	"instapro/pkg/logger"
)

// stores groups the repositories of one backend.
type stores struct {
	users         domainrepo.UserRepository
	presence      domainrepo.PresenceRepository
	messages      domainrepo.MessageRepository
	conversations domainrepo.ConversationRepository
	files         domainrepo.FileMetadataRepository
	seeder        handler.ProfileSeeder
	check         handler.StoreCheck
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration: %v", err)
	}
	logger.Init(cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	needsGoogle := !cfg.UsesMemoryStore() || cfg.AuthMode == "firebase" || cfg.StorageBucket != ""
	var opts []option.ClientOption
	var firebaseApp *fbapp.App
	if needsGoogle {
		opts = credentialOptions(cfg)
		firebaseApp, err = fbapp.NewApp(ctx, &fbapp.Config{ProjectID: cfg.FirebaseProject, StorageBucket: cfg.StorageBucket}, opts...)
		if err != nil {
			logger.Fatal("Failed to initialize Firebase: %v", err)
		}
	}

	var st stores
	if cfg.UsesMemoryStore() {
		logger.Info("Using in-memory store")
		users := repository.NewMemoryUserRepository()
		st = stores{
			users:         users,
			presence:      users,
			messages:      repository.NewMemoryMessageRepository(),
			conversations: repository.NewMemoryConversationRepository(),
			files:         repository.NewMemoryFileMetadataRepository(),
			seeder:        users,
		}
	} else {
		firestoreClient, err := firestore.NewClient(ctx, cfg.FirebaseProject, opts...)
		if err != nil {
			logger.Fatal("Failed to create Firestore client: %v", err)
		}
		defer firestoreClient.Close()

		st = stores{
			users:         repository.NewFirestoreUserRepository(firestoreClient),
			presence:      repository.NewFirestorePresenceRepository(firestoreClient),
			messages:      repository.NewFirestoreMessageRepository(firestoreClient),
			conversations: repository.NewFirestoreConversationRepository(firestoreClient),
			files:         repository.NewFirestoreFileMetadataRepository(firestoreClient),
			check:         firestoreCheck(firestoreClient),
		}
	}

	var objectStorage service.ObjectStorage
	if cfg.StorageBucket != "" {
		gcs, err := storage.NewCloudStorageClient(ctx, cfg.StorageBucket, cfg.UploadChunkSize, opts...)
		if err != nil {
			logger.Fatal("Failed to initialize Cloud Storage: %v", err)
		}
		objectStorage = gcs
	} else {
		logger.Warn("STORAGE_BUCKET not set, uploads are kept in memory")
		objectStorage = storage.NewMemoryStorage(cfg.PublicBaseURL+"/media", cfg.UploadChunkSize)
	}
	defer objectStorage.Close()

	var verifier service.TokenVerifier
	var devTokens *firebase.DevTokenVerifier
	if cfg.AuthMode == "jwt" {
		devTokens = firebase.NewDevTokenVerifier(cfg.JWTSecret)
		verifier = devTokens
	} else {
		authClient, err := firebaseApp.Auth(ctx)
		if err != nil {
			logger.Fatal("Failed to initialize Firebase Auth: %v", err)
		}
		verifier = firebase.NewFirebaseAuthClient(authClient)
	}

	var push service.PushSender = firebase.LogPushSender{}
	if firebaseApp != nil {
		messagingClient, err := firebaseApp.Messaging(ctx)
		if err != nil {
			logger.Warn("Firebase Messaging unavailable, pushes are only logged: %v", err)
		} else {
			push = firebase.NewMessagingClient(messagingClient)
		}
	}

	directoryUseCase := usecase.NewDirectoryUseCase(st.users)
	presenceUseCase := usecase.NewPresenceUseCase(st.presence)
	notificationUseCase := usecase.NewNotificationUseCase(st.users, push, cfg.PublicBaseURL)
	messageUseCase := usecase.NewMessageUseCase(st.messages, cfg.MessagePageSize)
	conversationUseCase := usecase.NewConversationUseCase(st.conversations, st.users, notificationUseCase)
	uploadUseCase := usecase.NewUploadUseCase(objectStorage, st.files)
	sendPipeline := usecase.NewSendPipeline(uploadUseCase, messageUseCase, conversationUseCase, notificationUseCase)

	limiter := ratelimit.NewRateLimiter()
	limiter.StartCleanupRoutine(ctx.Done())

	wsManager := websocket.NewManager(directoryUseCase, conversationUseCase, messageUseCase, sendPipeline, presenceUseCase, limiter)
	wsManager.Start(ctx)

	handler.Setup(directoryUseCase, presenceUseCase, uploadUseCase)
	handler.SetupHealthHandler(cfg.StoreBackend, st.check)
	if devTokens != nil {
		handler.SetupDevTokenHandler(devTokens, directoryUseCase, st.seeder)
	}

	e := echo.New()
	e.HideBanner = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(metrics.EchoMiddleware())

	e.Validator = api.NewValidator()

	authMiddleware := apimiddleware.NewAuthMiddleware(verifier, directoryUseCase)
	chatHandler := handler.NewChatHandler(conversationUseCase, messageUseCase, sendPipeline, wsManager)
	wsHandler := handler.NewWebSocketHandler(wsManager, cfg.AllowedOrigins)

	router.Setup(e, authMiddleware, limiter)
	router.SetupDevRouter(e, cfg.Environment)
	router.SetupChatRouter(e, chatHandler, authMiddleware, limiter)
	router.SetupWebSocketRouter(e, wsHandler, authMiddleware)

	go func() {
		logger.Info("Starting server on port %s...", cfg.ServerPort)
		if err := e.Start(":" + cfg.ServerPort); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server stopped: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown Error: %v", err)
	}
	select {
	case <-wsManager.Done():
	case <-shutdownCtx.Done():
		logger.Warn("Shutdown Error: websocket clients still closing")
	}
}

// credentialOptions prefers inline service account JSON over a file path
// and falls back to application default credentials.
func credentialOptions(cfg *config.Config) []option.ClientOption {
	if cfg.ServiceAccountJSON != "" {
		logger.Info("Using Firebase service account from environment variable")
		return []option.ClientOption{option.WithCredentialsJSON([]byte(cfg.ServiceAccountJSON))}
	}
	if cfg.ServiceAccountPath != "" {
		if _, err := os.Stat(cfg.ServiceAccountPath); os.IsNotExist(err) {
			logger.Fatal("Service account file does not exist: %s", cfg.ServiceAccountPath)
		}
		logger.Info("Using Firebase service account from file: %s", cfg.ServiceAccountPath)
		return []option.ClientOption{option.WithCredentialsFile(cfg.ServiceAccountPath)}
	}
	logger.Info("Using application default credentials")
	return nil
}

func firestoreCheck(client *firestore.Client) handler.StoreCheck {
	return func(ctx context.Context) error {
		_, err := client.Collection("profile").Limit(1).Documents(ctx).Next()
		if err == iterator.Done {
			return nil
		}
		return err
	}
}
