package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"classquiz-service/internal/app"
	"classquiz-service/internal/config"
	"classquiz-service/internal/domain"
	"classquiz-service/internal/infra/memory"
	pgstore "classquiz-service/internal/infra/postgres"
	redisinfra "classquiz-service/internal/infra/redis"
	transport "classquiz-service/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz game server",
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

	// Question bank, results archive, and the admin surface over the bank.
	var (
		loader     interface{ LoadQuestions(context.Context) ([]domain.Question, error) }
		admin      transport.QuestionAdmin
		archive    app.ResultsArchive
		dashboards transport.DashboardSource
	)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		store := pgstore.NewQuestionStore(pool)
		loader, admin = store, store

		pgArchive := pgstore.NewResultsArchive(newBunDB(cfg.Postgres.URL))
		archive, dashboards = pgArchive, pgArchive
	} else {
		bankPath := cfg.Questions.Path
		if bankPath == "" {
			bankPath = "data/questions.json"
		}
		bank, err := memory.NewQuestionBank(bankPath)
		if err != nil {
			return err
		}
		if qs, _ := bank.Questions(ctx); len(qs) == 0 {
			bank.Seed(sampleQuestions())
		}
		loader, admin = bank, bank

		archivePath := cfg.Archive.Path
		if archivePath == "" {
			archivePath = "data/students.json"
		}
		memArchive, err := memory.NewResultsArchive(archivePath)
		if err != nil {
			return err
		}
		archive, dashboards = memArchive, memArchive
	}

	// A read-through cache in front of the bank keeps game starts cheap;
	// Redis-backed when configured so multiple processes share a warm copy.
	questionTTL := config.TTLDuration(cfg.Questions.TTL, 10*time.Minute)
	var (
		bank       app.QuestionBank
		invalidate func(context.Context)
	)
	if redisClient != nil {
		if cfg.Redis.TTL != "" {
			questionTTL = config.TTLDuration(cfg.Redis.TTL, questionTTL)
		}
		cache := redisinfra.NewQuestionCache(redisClient, loader, questionTTL)
		bank, invalidate = cache, cache.Invalidate
	} else {
		cache := memory.NewQuestionCache(loader, questionTTL)
		bank, invalidate = cache, cache.Invalidate
	}

	service := app.NewGameService(bank, archive, app.Options{
		QuestionsPerGame: cfg.Game.QuestionsPerGame,
		DisconnectGrace:  config.TTLDuration(cfg.Game.DisconnectGrace, 30*time.Second),
	})

	wsHandler := transport.NewWSHandler(service)
	adminHandler := transport.NewAdminHandler(admin, invalidate)
	dashboardHandler := transport.NewDashboardHandler(service, dashboards)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	mux.HandleFunc("/api/admin/questions", adminHandler.Collection)
	mux.HandleFunc("/api/admin/questions/", adminHandler.Item)
	mux.HandleFunc("/api/teacher/dashboard", dashboardHandler.Dashboard)
	mux.HandleFunc("/api/get-leaderboard", dashboardHandler.Leaderboard)
	mux.HandleFunc("/api/server-info", dashboardHandler.ServerInfo)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting quiz game server on :%s", finalPort)
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

// sampleQuestions seeds an empty bank so a fresh checkout can host a game
// without touching the admin view first.
func sampleQuestions() []domain.Question {
	return []domain.Question{
		{
			ID:     "q-sample-1",
			Prompt: "What is 2 + 2?",
			Options: []domain.Option{
				{ID: "a", Text: "3"},
				{ID: "b", Text: "4", Correct: true},
				{ID: "c", Text: "5"},
			},
		},
		{
			ID:     "q-sample-2",
			Prompt: "Which planet is known as the Red Planet?",
			Options: []domain.Option{
				{ID: "a", Text: "Venus"},
				{ID: "b", Text: "Jupiter"},
				{ID: "c", Text: "Mars", Correct: true},
			},
		},
		{
			ID:     "q-sample-3",
			Prompt: "How many continents are there?",
			Options: []domain.Option{
				{ID: "a", Text: "5"},
				{ID: "b", Text: "6"},
				{ID: "c", Text: "7", Correct: true},
			},
		},
	}
}
