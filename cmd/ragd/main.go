package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/xxxsen/common/logger"
	"github.com/xxxsen/common/logutil"
	"github.com/xxxsen/common/webapi"
	"go.uber.org/zap"

	"github.com/caldershaw/ragd/internal/ai"
	"github.com/caldershaw/ragd/internal/config"
	"github.com/caldershaw/ragd/internal/embedcache"
	"github.com/caldershaw/ragd/internal/filestore"
	"github.com/caldershaw/ragd/internal/handler"
	"github.com/caldershaw/ragd/internal/ingest"
	"github.com/caldershaw/ragd/internal/job"
	"github.com/caldershaw/ragd/internal/middleware"
	"github.com/caldershaw/ragd/internal/pkg/jwt"
	"github.com/caldershaw/ragd/internal/pkg/retry"
	"github.com/caldershaw/ragd/internal/querycache"
	"github.com/caldershaw/ragd/internal/repo"
	"github.com/caldershaw/ragd/internal/retrieval"
	"github.com/caldershaw/ragd/internal/schedule"
	"github.com/caldershaw/ragd/internal/service"
	"github.com/caldershaw/ragd/internal/vecstore"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "ragd",
		Short: "retrieval-augmented chat server",
	}

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "run the server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			logger.Init(
				cfg.LogConfig.File,
				cfg.LogConfig.Level,
				int(cfg.LogConfig.FileCount),
				int(cfg.LogConfig.FileSize),
				int(cfg.LogConfig.KeepDays),
				cfg.LogConfig.Console,
			)
			logutil.GetLogger(context.Background()).Info("config loaded", zap.String("config", configPath))

			db, err := repo.Open(cfg.Database)
			if err != nil {
				return fmt.Errorf("open db: %w", err)
			}
			if err := repo.ApplyMigrations(db); err != nil {
				return fmt.Errorf("migrations: %w", err)
			}
			return runServer(cfg, db)
		},
	}
	runCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	rootCmd.AddCommand(runCmd)

	var tokenClientID string
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "mint an access token for the configured jwt secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.Auth.JWTSecret == "" {
				return fmt.Errorf("auth.jwt_secret is not configured")
			}
			ttl := time.Duration(cfg.Auth.TTLHours) * time.Hour
			token, err := jwt.GenerateToken(tokenClientID, []byte(cfg.Auth.JWTSecret), ttl)
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
	tokenCmd.Flags().StringVar(&configPath, "config", "", "path to config.json")
	tokenCmd.Flags().StringVar(&tokenClientID, "client-id", "cli", "client id to embed in the token")
	rootCmd.AddCommand(tokenCmd)

	if err := rootCmd.Execute(); err != nil {
		logutil.GetLogger(context.Background()).Fatal("startup error", zap.Error(err))
	}
}

func runServer(cfg *config.Config, db *sql.DB) error {
	logutil.GetLogger(context.Background()).Info("starting server",
		zap.Int("port", cfg.Port),
		zap.String("ai_provider", cfg.AI.Provider),
		zap.String("collection", cfg.Retrieval.Collection),
	)

	embedProvider, err := ai.NewEmbedProvider(cfg.AI.EmbedProvider, cfg.AI.EmbedData)
	if err != nil {
		return fmt.Errorf("init embed provider: %w", err)
	}
	embedder := ai.NewEmbedder(embedProvider, cfg.AI.EmbedModel)
	embedCacheRepo := repo.NewEmbeddingCacheRepo(db)
	if cfg.EmbedCache.Persist {
		embedder = embedcache.WrapDBCacheToEmbedder(embedder, embedCacheRepo)
	}
	embedder = embedcache.WrapLruCacheToEmbedder(embedder, cfg.EmbedCache.Size,
		time.Duration(cfg.EmbedCache.TTLMin)*time.Minute)

	conn, err := ai.NewConnection(ai.ConnectionConfig{
		Provider:     cfg.AI.Provider,
		ProviderArgs: cfg.AI.Data,
		Model:        cfg.AI.Model,
		Options: ai.ChatOptions{
			Temperature: cfg.AI.Options.Temperature,
			TopP:        cfg.AI.Options.TopP,
			NumCtx:      cfg.AI.Options.NumCtx,
			MaxTokens:   cfg.AI.Options.MaxTokens,
		},
		Timeout:    time.Duration(cfg.AI.TimeoutSeconds) * time.Second,
		StreamIdle: time.Duration(cfg.AI.StreamIdleSeconds) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("init ai connection: %w", err)
	}

	store := vecstore.NewPgStore(sqlx.NewDb(db, "postgres"), embedder)
	if err := store.EnsureCollection(context.Background(), cfg.Retrieval.Collection); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}
	cache := querycache.New(cfg.Retrieval.CacheSize, time.Duration(cfg.Retrieval.CacheTTLMin)*time.Minute)
	engine := retrieval.NewEngine(store, cache, retrieval.Config{
		Collection:    cfg.Retrieval.Collection,
		TopK:          cfg.Retrieval.TopK,
		MaxQueryChars: cfg.Retrieval.MaxQueryChars,
		Retry: retry.Policy{
			Attempts: cfg.Retrieval.RetryAttempts,
			Base:     time.Duration(cfg.Retrieval.RetryBaseMs) * time.Millisecond,
		},
		MMREnable: cfg.Retrieval.MMR.Enable,
		MMRLambda: cfg.Retrieval.MMR.Lambda,
	})

	conversationStore := service.NewConversationStore(repo.NewConversationRepo(db))
	chatService := service.NewChatService(engine, conn, conversationStore, service.ChatConfig{
		HistoryWindow:  cfg.Chat.HistoryWindow,
		MaxPromptChars: cfg.Chat.MaxPromptChars,
		SystemPrompt:   cfg.Chat.SystemPrompt,
	})
	documentService := service.NewDocumentService(store, cfg.Retrieval.Collection,
		ingest.NewChunker(0), engine.ClearCache)

	var fileStore filestore.Store
	if cfg.FileStore.Type != "" {
		fileStore, err = filestore.New(cfg.FileStore.Type, cfg.FileStore.Data)
		if err != nil {
			return fmt.Errorf("init file store: %w", err)
		}
	}
	exportService := service.NewExportService(conversationStore, fileStore)

	scheduler := schedule.NewCronScheduler()
	if cfg.Warmup.Enable {
		warmup := job.NewWarmupJob(conn, cfg.Warmup.Models)
		if err := scheduler.AddJob(warmup, schedule.EverySpec(cfg.Warmup.IntervalMin)); err != nil {
			return fmt.Errorf("schedule warmup: %w", err)
		}
	}
	if cfg.EmbedCache.Persist && cfg.EmbedCache.CleanupHourly {
		cleanup := job.NewEmbeddingCacheCleanupJob(embedCacheRepo, cfg.EmbedCache.KeepDays)
		if err := scheduler.AddJob(cleanup, "@every 1h"); err != nil {
			return fmt.Errorf("schedule embedding cache cleanup: %w", err)
		}
	}

	deps := handler.RouterDeps{
		Chat:          handler.NewChatHandler(chatService),
		Documents:     handler.NewDocumentHandler(documentService),
		Conversations: handler.NewConversationHandler(conversationStore, exportService),
		Health:        handler.NewHealthHandler(db),
		AuthEnable:    cfg.Auth.Enable,
		JWTSecret:     []byte(cfg.Auth.JWTSecret),
	}

	engineHTTP, err := webapi.NewEngine(
		"/api/v1",
		fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		webapi.WithRegister(func(group *gin.RouterGroup) {
			handler.RegisterRoutes(group, deps)
		}),
		webapi.WithExtraMiddlewares(
			middleware.CORS(cfg.CORSAllowlist),
			// SSE must not pass through the gzip buffer
			gzip.Gzip(gzip.DefaultCompression,
				gzip.WithExcludedPaths([]string{"/api/v1/chat/stream"})),
		),
	)
	if err != nil {
		return fmt.Errorf("init web engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler.Start(ctx)
	if cfg.Warmup.Enable {
		scheduler.Kick("model_warmup")
	}

	go func() {
		if err := engineHTTP.Run(); err != nil && err != http.ErrServerClosed {
			logutil.GetLogger(context.Background()).Error("server error", zap.Error(err))
		}
	}()
	logutil.GetLogger(context.Background()).Info("http server listening",
		zap.String("addr", fmt.Sprintf("0.0.0.0:%d", cfg.Port)))

	<-ctx.Done()
	logutil.GetLogger(context.Background()).Info("server stopping...")
	scheduler.Stop()
	return nil
}
