package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"thinktank-service/internal/app"
	"thinktank-service/internal/config"
	"thinktank-service/internal/infra/memory"
	pgstore "thinktank-service/internal/infra/postgres"
	redisstore "thinktank-service/internal/infra/redis"
	"thinktank-service/internal/security"
	transport "thinktank-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the learning service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	// Backend preference: postgres, then redis, then in-memory with a
	// sample catalog for local development.
	var store app.DocumentStore
	switch {
	case pool != nil:
		store = pgstore.NewDocStore(pool)
	case redisClient != nil:
		store = redisstore.NewDocStore(redisClient)
	default:
		memStore := memory.NewDocStore()
		if err := seedCatalog(ctx, memStore); err != nil {
			return err
		}
		log.Printf("no backend configured, serving sample catalog from memory")
		store = memStore
	}

	catalog := app.NewCatalogSource(store)

	cacheTTL := config.TTLDuration(cfg.Quiz.CacheTTL, 10*time.Minute)
	var questions app.QuestionSource
	if redisClient != nil {
		questions = redisstore.NewQuestionCache(redisClient, catalog, cacheTTL)
	} else {
		questions = memory.NewQuestionCache(catalog, cacheTTL)
	}

	progress := app.NewProgressService(store)
	questionTime := config.TTLDuration(cfg.Quiz.QuestionTime, 30*time.Second)
	quizService := app.NewQuizService(questions, progress, questionTime)
	chatService := app.NewChatService(store)
	userService := app.NewUserService(store)

	var verifier *security.TokenVerifier
	if cfg.Auth.Secret != "" {
		verifier = security.NewTokenVerifier(cfg.Auth.Secret)
	} else {
		log.Printf("auth secret not configured, trusting X-User-ID (dev mode)")
	}

	handler := transport.NewHandler(userService, catalog, progress, quizService, chatService, verifier)
	wsHandler := transport.NewWSHandler(chatService, handler.Identify)

	mux := http.NewServeMux()
	handler.Register(mux)
	mux.HandleFunc("GET /ws/chat", wsHandler.ServeWS)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting thinktank service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
