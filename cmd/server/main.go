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

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/consertja/consertja/internal/api"
	"github.com/consertja/consertja/internal/auth"
	"github.com/consertja/consertja/internal/chat"
	"github.com/consertja/consertja/internal/config"
	"github.com/consertja/consertja/internal/database"
	"github.com/consertja/consertja/internal/directory"
	"github.com/consertja/consertja/internal/logger"
	"github.com/consertja/consertja/internal/realtime"
	"github.com/consertja/consertja/internal/schedule"
	"github.com/consertja/consertja/internal/websocket"
)

var log = logger.New("server")

func main() {
	if err := run(); err != nil {
		log.Error("%v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logFile, err := logger.Setup(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logFile.Close()
	log.Info("Server logging initialized (level %s, file %q)", cfg.LogLevel, cfg.LogFile)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET environment variable is required")
	}
	auth.InitJWTKey([]byte(cfg.JWTSecret))

	dsn, err := cfg.DSN()
	if err != nil {
		return err
	}

	dbType := database.DatabaseType(cfg.DBType)
	db, err := database.NewDatabase(dbType, dsn, database.WithNotifyChannel(cfg.NotifyChannel))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()
	log.Info("Connected to %s database successfully", dbType)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx); err != nil {
			return err
		}
	}

	broker := realtime.NewBroker()
	if err := realtime.Start(ctx, broker, cfg.FeedOptions(dsn)); err != nil {
		return err
	}

	chatService := chat.NewService(db, broker, chat.WithPollInterval(cfg.PollInterval))
	wsManager := websocket.NewManager(chatService, cfg.Origins()...)
	go wsManager.Run(ctx)

	router := gin.Default()
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Origins(),
		AllowAllOrigins:  len(cfg.Origins()) == 0,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: len(cfg.Origins()) > 0,
		MaxAge:           12 * time.Hour,
	}))

	api.RegisterRoutes(router, api.Handlers{
		Auth:      api.NewAuthHandler(db),
		Messages:  api.NewMessageHandler(chatService),
		Schedule:  api.NewScheduleHandler(schedule.NewService(db)),
		Directory: api.NewDirectoryHandler(directory.NewService(db)),
		WebSocket: wsManager.HandleWebSocket,
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"connections": wsManager.Clients(),
			"subscribers": broker.Subscribers(),
		})
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("Server starting on port %d", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start server: %w", err)
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info("Server exited properly")
	return nil
}
