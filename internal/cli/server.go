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

	"puzzle-quiz-service/internal/broadcast"
	"puzzle-quiz-service/internal/config"
	"puzzle-quiz-service/internal/game"
	"puzzle-quiz-service/internal/infra/memory"
	"puzzle-quiz-service/internal/infra/postgres"
	redisstore "puzzle-quiz-service/internal/infra/redis"
	"puzzle-quiz-service/internal/quiz"
	"puzzle-quiz-service/internal/registry"
	"puzzle-quiz-service/internal/telemetry"
	"puzzle-quiz-service/internal/transport/ws"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
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

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

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

	var sink telemetry.Sink = telemetry.Nop{}
	telemetryDone := make(chan struct{})
	if pool != nil {
		async := telemetry.NewAsync(postgres.NewEventWriter(pool), cfg.Telemetry.Buffer)
		go func() {
			async.Run(runCtx)
			close(telemetryDone)
		}()
		sink = async
	} else {
		close(telemetryDone)
	}

	configTTL := config.TTLDuration(cfg.Games.ConfigTTL, 10*time.Minute)
	games := game.NewConfigRepository(cfg.Games.Root, configTTL)
	reg := registry.New(games)
	hub := ws.NewHub()

	var stateStore broadcast.StateStore = memory.NewStateStore()
	if redisClient != nil {
		stateStore = redisstore.NewStateStore(redisClient)
	}

	var scheduler *broadcast.Scheduler
	schedulerDone := make(chan struct{})
	if cfg.Daily.Game != "" && cfg.Daily.At != "" {
		dailyCfg, err := games.Get(cfg.Daily.Game)
		if err != nil {
			return err
		}
		kernel, err := quiz.NewSession(games.Dir(cfg.Daily.Game), dailyCfg, 0)
		if err != nil {
			return err
		}
		scheduler, err = broadcast.New(kernel, hub, hub, stateStore, reg, cfg.Daily.At)
		if err != nil {
			return err
		}
		go func() {
			scheduler.RunDaily(runCtx)
			close(schedulerDone)
		}()
	} else {
		close(schedulerDone)
	}

	handler := ws.NewHandler(hub, reg, scheduler, sink, cfg.Games.Root, cfg.Games.Default, cfg.Games.AuthorGame)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", handler.ServeWS)

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	go func() {
		log.Printf("starting puzzle quiz service on :%s", finalPort)
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

	// The scheduler persists its state before acknowledging cancellation;
	// wait for that ack so a restart can still retract yesterday's puzzle.
	cancel()
	<-schedulerDone
	<-telemetryDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return server.Shutdown(shutdownCtx)
}
