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
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"eduadvise-backend/internal/call"
	"eduadvise-backend/internal/chat"
	authhandler "eduadvise-backend/internal/handler/http/auth"
	callhandler "eduadvise-backend/internal/handler/http/call"
	chathandler "eduadvise-backend/internal/handler/http/chat"
	filehandler "eduadvise-backend/internal/handler/http/file"
	userhandler "eduadvise-backend/internal/handler/http/user"
	wshandler "eduadvise-backend/internal/handler/ws"
	"eduadvise-backend/internal/middleware"
	"eduadvise-backend/internal/realtime"
	"eduadvise-backend/internal/repository/cached"
	cassandrarepo "eduadvise-backend/internal/repository/cassandra"
	cockroachrepo "eduadvise-backend/internal/repository/cockroach"
	redisrepo "eduadvise-backend/internal/repository/redis"
	authservice "eduadvise-backend/internal/service/auth"
	storageservice "eduadvise-backend/internal/service/storage"
	"eduadvise-backend/pkg/config"
	"eduadvise-backend/pkg/database"
	"eduadvise-backend/pkg/email"
	"eduadvise-backend/pkg/jwt"
	"eduadvise-backend/pkg/lockout"
	"eduadvise-backend/pkg/logger"
	"eduadvise-backend/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(&logger.Config{
		Level:    cfg.Log.Level,
		Format:   cfg.Log.Format,
		Output:   cfg.Log.Output,
		FilePath: cfg.Log.FilePath,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Fatal("service exited", zap.Error(err))
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Storage backends
	crdb, err := database.NewCockroachDB(ctx, &database.CockroachConfig{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return fmt.Errorf("cockroachdb: %w", err)
	}
	defer crdb.Close()

	cass, err := database.NewCassandraDB(&database.CassandraConfig{
		Hosts:    cfg.Cassandra.Hosts,
		Keyspace: cfg.Cassandra.Keyspace,
		Username: cfg.Cassandra.Username,
		Password: cfg.Cassandra.Password,
		Timeout:  cfg.Cassandra.Timeout,
	})
	if err != nil {
		return fmt.Errorf("cassandra: %w", err)
	}
	defer cass.Close()

	redisClient, err := database.NewRedisClient(ctx, &database.RedisConfig{
		Host:     cfg.Redis.Host,
		Port:     cfg.Redis.Port,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
		Timeout:  cfg.Redis.Timeout,
	})
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer redisClient.Close()

	objectStore, err := storageservice.NewMinioStore(ctx, &storageservice.MinioConfig{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		UseSSL:    cfg.MinIO.UseSSL,
	})
	if err != nil {
		return fmt.Errorf("minio: %w", err)
	}

	// Repositories
	userRepo := cockroachrepo.NewUserRepository(crdb.Pool)
	userDirectory := cached.NewUserDirectory(userRepo)
	conversationRepo := cockroachrepo.NewConversationRepository(crdb.Pool)
	callRepo := cockroachrepo.NewCallRepository(crdb.Pool)
	fileRepo := cockroachrepo.NewFileRepository(crdb.Pool)
	messageRepo := cassandrarepo.NewMessageRepository(cass.Session)
	presenceRepo := redisrepo.NewPresenceRepository(redisClient)
	revocationRepo := redisrepo.NewRevocationRepository(redisClient)

	// Outbound email for users who are offline when events arrive
	var sender email.Sender = &email.MockSender{}
	if cfg.SMTP.Enabled {
		sender = email.NewSMTPSender(&email.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
		})
	}
	mailer := email.NewService(sender)

	// Realtime core
	registry := realtime.NewRegistry()
	router := realtime.NewRouter(registry)

	// Domain services
	jwtManager := jwt.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpiry, cfg.JWT.RefreshTokenExpiry)
	authSvc := authservice.NewService(userRepo, lockout.NewManager(redisClient), revocationRepo, mailer, jwtManager)
	chatSvc := chat.NewService(messageRepo, conversationRepo, userDirectory, router, mailer)
	callManager := call.NewManager(callRepo, userDirectory, router, mailer, cfg.Call.RingTimeout)
	storageSvc := storageservice.NewService(objectStore, fileRepo)

	// HTTP and WebSocket handlers
	authH := authhandler.NewHandler(authSvc)
	userH := userhandler.NewHandler(userRepo, presenceRepo, userDirectory)
	chatH := chathandler.NewHandler(chatSvc, conversationRepo)
	callH := callhandler.NewHandler(callManager, callRepo, cfg.WebRTC)
	fileH := filehandler.NewHandler(storageSvc)
	wsH := wshandler.NewHandler(registry, chatSvc, presenceRepo)

	engine := buildRouter(cfg, authSvc, jwtManager, crdb, redisClient, authH, userH, chatH, callH, fileH, wsH)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening",
			zap.Int("port", cfg.Server.Port),
			zap.String("env", cfg.Server.Environment))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	registry.CloseAll()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func buildRouter(
	cfg *config.Config,
	authSvc *authservice.Service,
	jwtManager *jwt.JWTManager,
	crdb *database.CockroachDB,
	redisClient *redis.Client,
	authH *authhandler.Handler,
	userH *userhandler.Handler,
	chatH *chathandler.Handler,
	callH *callhandler.Handler,
	fileH *filehandler.Handler,
	wsH *wshandler.Handler,
) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	m := metrics.NewMetrics(cfg.Server.ServiceName)

	engine := gin.New()
	engine.Use(
		middleware.Recovery(),
		middleware.RequestLogger(),
		middleware.CORS(cfg.Server.AllowedOrigins),
		middleware.HTTPMetrics(m),
	)

	engine.GET("/health", func(c *gin.Context) {
		status := "healthy"
		code := http.StatusOK
		if err := crdb.Ping(c.Request.Context()); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		} else if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}
		c.JSON(code, gin.H{"status": status, "service": cfg.Server.ServiceName})
	})
	engine.GET("/metrics", middleware.MetricsHandler(m))

	requireAuth := middleware.Auth(jwtManager, authSvc)

	api := engine.Group("/api")
	{
		authGroup := api.Group("/auth")
		{
			authGroup.POST("/register", authH.Register)
			authGroup.POST("/login", authH.Login)
			authGroup.POST("/refresh", authH.Refresh)
			authGroup.POST("/logout", requireAuth, authH.Logout)
			authGroup.POST("/change-password", requireAuth, authH.ChangePassword)
		}

		users := api.Group("/users", requireAuth)
		{
			users.GET("/me", userH.Me)
			users.PUT("/me", userH.UpdateProfile)
			users.GET("/counselors", userH.ListCounselors)
			users.GET("/:user_id", userH.Get)
		}

		api.POST("/messages", requireAuth, chatH.SendMessage)
		conversations := api.Group("/conversations", requireAuth)
		{
			conversations.GET("", chatH.ListConversations)
			conversations.GET("/unread", chatH.UnreadTotal)
			conversations.GET("/:conversation_id/messages", chatH.GetMessages)
			conversations.POST("/:conversation_id/read", chatH.MarkRead)
		}

		calls := api.Group("/calls", requireAuth)
		{
			calls.POST("", callH.Initiate)
			calls.GET("", callH.History)
			calls.GET("/webrtc-config", callH.WebRTCConfig)
			calls.GET("/:call_id", callH.Get)
			calls.PUT("/:call_id/status", callH.UpdateStatus)
			calls.POST("/:call_id/signal", callH.Signal)
		}

		files := api.Group("/files", requireAuth)
		{
			files.POST("", fileH.Upload)
			files.GET("/:file_id", fileH.Get)
			files.DELETE("/:file_id", fileH.Delete)
		}
	}

	engine.GET("/ws/:user_id", requireAuth, wsH.Serve)

	return engine
}
