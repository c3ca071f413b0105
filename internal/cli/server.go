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

	"livequiz-service/internal/app"
	"livequiz-service/internal/config"
	"livequiz-service/internal/domain"
	"livequiz-service/internal/infra/memory"
	pginfra "livequiz-service/internal/infra/postgres"
	redisinfra "livequiz-service/internal/infra/redis"
	"livequiz-service/internal/transport/ws"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the live quiz server",
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
		defer pool.Close()
	}

	var loader memory.QuizLoader = memory.NewStaticQuizLoader(sampleQuizzes())
	if pool != nil {
		loader = pginfra.NewQuizLoader(pool)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var quizRepo app.QuizRepository
	if redisClient != nil {
		quizRepo = redisinfra.NewQuizRepository(redisClient, loader, quizTTL)
	} else {
		quizRepo = memory.NewQuizRepository(loader, quizTTL)
	}

	sessionTTL := config.TTLDuration(cfg.Session.TTL, 2*time.Hour)
	reapInterval := config.TTLDuration(cfg.Session.ReapInterval, time.Minute)
	var registry app.SessionRegistry
	if redisClient != nil {
		r := redisinfra.NewSessionRegistry(redisClient, sessionTTL, reapInterval)
		defer r.Close()
		registry = r
	} else {
		r := memory.NewSessionRegistry(sessionTTL, reapInterval)
		defer r.Close()
		registry = r
	}

	var answers *app.AnswerWorker
	if pool != nil {
		answers = app.NewAnswerWorker(pginfra.NewAnswerLog(pool), cfg.Answers.QueueSize)
		defer answers.Close()
	}

	hub := ws.NewHub()
	engine := app.NewEngine(registry, quizRepo, hub, answers)
	handler := ws.NewHandler(engine, hub)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws/host", handler.ServeHost)
	mux.HandleFunc("/ws/join", handler.ServeJoin)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting live quiz service on :%s", finalPort)
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

// sampleQuizzes provides demo content when no Postgres is configured.
func sampleQuizzes() map[string]domain.Quiz {
	return map[string]domain.Quiz{
		"demo-capitals": {
			ID:    "demo-capitals",
			Title: "European Capitals",
			Type:  domain.QuizTypeQuiz,
			Questions: []domain.Question{
				{
					Text:          "What is the capital of France?",
					Options:       []string{"Paris", "London", "Berlin", "Madrid"},
					CorrectAnswer: "Paris",
					TimeLimit:     10,
				},
				{
					Text:          "What is the capital of Spain?",
					Options:       []string{"Lisbon", "Madrid", "Rome"},
					CorrectAnswer: "Madrid",
					TimeLimit:     10,
				},
			},
		},
		"demo-lunch": {
			ID:    "demo-lunch",
			Title: "Where should we eat?",
			Type:  domain.QuizTypePoll,
			Questions: []domain.Question{
				{
					Text:      "Pick a place",
					Options:   []string{"Pizza", "Sushi", "Tacos"},
					TimeLimit: 20,
				},
			},
		},
	}
}
