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

	"quizmaster/internal/app"
	"quizmaster/internal/assist"
	"quizmaster/internal/config"
	"quizmaster/internal/domain"
	"quizmaster/internal/infra/memory"
	pgloader "quizmaster/internal/infra/postgres"
	redisinfra "quizmaster/internal/infra/redis"
	"quizmaster/internal/store"
	transport "quizmaster/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz room server",
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
	baseURL := cfg.Server.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:" + finalPort
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	}
	roomTTL := config.TTLDuration(cfg.Redis.TTL, 2*time.Hour)
	sessionTTL := config.TTLDuration(cfg.Session.TTL, 2*time.Hour)

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
	}

	static := memory.NewStaticQuizLoader(sampleQuizzes())
	var loader memory.QuizLoader = static
	var lister transport.QuizLister = static
	if pool != nil {
		pg := pgloader.NewQuizLoader(pool)
		loader, lister = pg, pg
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	var rooms store.RoomStore
	var sessions store.SessionStore
	if redisClient != nil {
		rooms = redisinfra.NewRoomStore(redisClient, roomTTL)
		sessions = redisinfra.NewSessionStore(redisClient, sessionTTL)
	} else {
		rooms = memory.NewRoomStore()
		sessions = memory.NewSessionStore()
	}

	service := app.NewRoomService(rooms, sessions, quizRepo)

	var assistProxy http.Handler
	if cfg.Assist.Upstream != "" {
		client := assist.NewClient(cfg.Assist.Upstream, cfg.Assist.APIKey)
		assistProxy = assist.NewProxy(client, cfg.Assist.AllowedOrigins)
	}

	mux := transport.NewRouter(service, assistProxy, lister, baseURL)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quizmaster on :%s", finalPort)
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

// sampleQuizzes seeds the library when no Postgres is configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"capitals": {
			Title: "World Capitals",
			Questions: []domain.Question{
				{
					Question: "What is the capital of France?",
					Options:  []string{"Paris", "Lyon", "Marseille", "Nice"},
					Correct:  0,
				},
				{
					Question: "What is the capital of Japan?",
					Options:  []string{"Osaka", "Kyoto", "Tokyo", "Nagoya"},
					Correct:  2,
				},
			},
		},
	}
}
