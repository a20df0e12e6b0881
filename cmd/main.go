package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ootdcast/pushhub/internal/dispatch"
	"github.com/ootdcast/pushhub/internal/infrastructure/config"
	"github.com/ootdcast/pushhub/internal/infrastructure/logger"
	"github.com/ootdcast/pushhub/internal/infrastructure/push"
	"github.com/ootdcast/pushhub/internal/infrastructure/server"
	"github.com/ootdcast/pushhub/internal/infrastructure/storage"
)

func main() {
	ctx := context.Background()
	sctx := WithSignal(ctx)

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.NewLogrusLogger(loggerConfig(cfg))

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	store := storage.NewNotificationStore(db)
	users := storage.NewUserDirectory(db)

	registry := push.NewRegistry(log)
	buffer := push.NewReplayBuffer(cfg.ReplayCapacity)
	orchestrator := push.NewOrchestrator(registry, buffer, cfg.HeartbeatInterval, log)

	dispatcher := dispatch.New(
		orchestrator, store, users, db,
		cfg.DispatchWorkers, cfg.DispatchQueueSize,
		log,
	)

	router := InitRouter(cfg, orchestrator, dispatcher, db, store, log)
	httpSrv := server.NewHTTPServer(cfg.HTTPAddr, router)

	app := newApplication(log, httpSrv, orchestrator, dispatcher)
	if err := app.Run(sctx); err != nil {
		log.Errorf("failed to run application: %v", err)
	}
}

type Application struct {
	logger       logger.Logger
	httpSrv      server.Server
	orchestrator *push.Orchestrator
	dispatcher   *dispatch.Dispatcher
}

func newApplication(
	log logger.Logger,
	httpSrv server.Server,
	orchestrator *push.Orchestrator,
	dispatcher *dispatch.Dispatcher,
) *Application {
	return &Application{
		logger:       log.WithField("app", "pushhub"),
		httpSrv:      httpSrv,
		orchestrator: orchestrator,
		dispatcher:   dispatcher,
	}
}

func (app *Application) Run(ctx context.Context) error {
	bgCtx, cancelBackground := context.WithCancel(context.Background())
	app.dispatcher.Start(bgCtx)

	eg := errgroup.Group{}

	eg.Go(func() error {
		return app.httpSrv.Start(ctx)
	})

	eg.Go(func() error {
		return app.orchestrator.RunHeartbeat(bgCtx)
	})

	eg.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(
			context.Background(),
			5*time.Second,
		)
		defer cancel()

		app.orchestrator.Shutdown()
		cancelBackground()
		app.dispatcher.Wait()

		return app.httpSrv.Stop(shutdownCtx)
	})

	return eg.Wait()
}

func loggerConfig(cfg *config.Config) *logger.Config {
	lcfg := logger.NewDefaultConfig()
	lcfg.Format = cfg.LogFormat
	lcfg.Output = cfg.LogOutput
	lcfg.FilePath = cfg.LogFilePath

	switch cfg.LogLevel {
	case "debug":
		lcfg.Level = logger.LevelDebug
	case "warn":
		lcfg.Level = logger.LevelWarn
	case "error":
		lcfg.Level = logger.LevelError
	default:
		lcfg.Level = logger.LevelInfo
	}
	return lcfg
}

func WithSignal(pctx context.Context) context.Context {
	ctx, cancel := context.WithCancel(pctx)

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)

		<-sigc

		cancel()
	}()

	return ctx
}
