package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/boltdb/bolt"
	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

type AppProvider interface {
	Run() error
	Serve() func() error
	Stop(context.Context, context.Context) func() error
}

// worker is a long running background routine bound to the app lifetime.
type worker struct {
	name string
	run  func(context.Context) error
}

type App struct {
	logger        *zap.Logger
	config        *Config
	server        *http.Server
	gatewayServer *http.Server
	redisClient   *redis.Client
	boltClient    *bolt.DB
	sqlDB         *sql.DB
	cleanups      []func()
	workers       []worker
}

// NewApp provides an instance of App.
func NewApp() (AppProvider, error) {
	config, err := LoadAndInitConfigs(GitCommit, GitTag, BuildTime)
	if err != nil {
		return nil, fmt.Errorf("failed to setup app configuration: %s", err)
	}

	// ensure the logs folder exists and setup the logging module.
	if err = os.MkdirAll(config.LogFolder, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create logging folder: %s", err)
	}
	clock := NewTickClock(NewClock(config.IsProduction))
	logsWriter := NewLogWriter(config, clock)
	logger, level, flusher := SetupLogging(config, logsWriter, clock)
	cleanups := []func(){
		func() {
			if ferr := flusher(); ferr != nil {
				fmt.Println("error during flushing of logs: ", ferr)
			}
		},
		func() {
			if cerr := logsWriter.Close(); cerr != nil {
				fmt.Println("error during closing of log file: ", cerr)
			}
		},
	}

	// Setup the connections to redis, boltDB and the sql database.
	redisClient, err := GetRedisClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis server: %s", err)
	}

	if err = os.MkdirAll(filepath.Dir(config.BoltDB.FilePath), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data folder: %s", err)
	}
	boltDBClient, err := GetBoltDBClient(config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to boltDB server: %s", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := GetSQLDB(ctx, &config.SQL)
	if err != nil {
		return nil, fmt.Errorf("failed to setup sql database: %s", err)
	}

	ids := NewIDsHandler()

	// Setup the repositories.
	redisBookStorage := NewRedisBookStorage(logger, redisClient)
	boltBookStorage := NewBoltBookStorage(logger, &config.BoltDB, boltDBClient)
	notificationStorage := NewBoltNotificationStorage(&config.BoltDB, boltDBClient)
	catalogStorage := NewSQLCatalogStorage(logger, sqlDB, config.SQL.Driver)
	reviewStorage := NewSQLReviewStorage(sqlDB, config.SQL.Driver)
	outboxStorage := NewSQLOutboxStorage(sqlDB, config.SQL.Driver)
	reviewCache := NewRedisReviewCache(redisClient, config.Cache.KeyPrefix)
	redisQueue := NewRedisQueue(redisClient)

	// Setup the domain services.
	notificationService := NewNotificationService(
		logger,
		&config.Notification,
		clock,
		ids,
		notificationStorage,
		redisQueue,
		NewLogSender(logger),
		NewEmailSender(logger),
		NewWebhookSender(logger, &config.Notification),
	)
	tokens := NewTokenManager(&config.Auth, clock)
	services := APIServices{
		Books:         NewBookService(logger, config, clock, ids, redisBookStorage, redisQueue),
		Catalog:       NewCatalogService(logger, clock, ids, catalogStorage),
		Reviews:       NewReviewService(logger, config, clock, ids, reviewStorage, reviewCache),
		Notifications: notificationService,
		Auth:          tokens,
	}

	relay := NewOutboxRelay(logger, &config.Outbox, clock, outboxStorage, redisQueue)

	apiService := NewAPIHandler(
		logger,
		config,
		&Statistics{
			version:   config.GitTag,
			container: IsAppRunningInDocker(),
			started:   clock.Now(),
			runtime:   runtime.Version(),
			platform:  runtime.GOOS + "/" + runtime.GOARCH,
		},
		clock,
		ids,
		services,
	).WithWorkers(relay, redisQueue).WithLogLevel(level)

	// Use git commit in case the tag is not set.
	if config.GitTag == "" {
		apiService.stats.version = config.GitCommit
	}

	// Build the map of middlewares stacks.
	middlewaresPublic, middlewaresProtected, middlewaresOps := apiService.MiddlewaresStacks()

	// Configure the endpoints with their handlers and middlewares.
	router := apiService.SetupRoutes(httprouter.New(),
		&MiddlewareMap{
			public:    middlewaresPublic.Chain,
			protected: middlewaresProtected.Chain,
			ops:       middlewaresOps.Chain,
		},
	)

	// Build the api server definition.
	srv := &http.Server{
		Addr:           fmt.Sprintf("%s:%s", config.Server.Host, config.Server.Port),
		Handler:        router,
		ReadTimeout:    config.Server.ReadTimeout,
		WriteTimeout:   config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // Max headers size : 1MB
		ConnContext:    SaveConnInContext,
	}

	boltDBConsumer := NewBoltDBConsumer(logger, redisQueue, boltBookStorage)
	notificationConsumer := NewNotificationConsumer(logger, redisQueue, notificationService)
	eventsConsumer := NewEventsConsumer(logger, redisQueue, notificationService)

	app := &App{
		logger:      logger,
		config:      config,
		server:      srv,
		redisClient: redisClient,
		boltClient:  boltDBClient,
		sqlDB:       sqlDB,
		cleanups:    cleanups,
		workers: []worker{
			{"bolt-replica-consumer", func(ctx context.Context) error {
				return boltDBConsumer.Consume(ctx, CreateQueue, UpdateQueue, DeleteQueue)
			}},
			{"notifications-consumer", func(ctx context.Context) error {
				return notificationConsumer.Consume(ctx, NotificationQueue)
			}},
			{"events-consumer", func(ctx context.Context) error {
				return eventsConsumer.Consume(ctx, EventsQueue)
			}},
			{"outbox-relay", relay.Run},
		},
	}

	if config.Gateway.Enable {
		var recorder RateLimitRecorder
		if config.Gateway.RateLimit.StatsEnable {
			recorder = NewRedisRateLimitStats(redisClient, &config.Gateway.RateLimit, clock)
		}
		gateway, err := NewGateway(logger, config, clock, ids, tokens, recorder, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to setup gateway: %s", err)
		}
		app.gatewayServer = &http.Server{
			Addr:           fmt.Sprintf("%s:%s", config.Gateway.Host, config.Gateway.Port),
			Handler:        gateway.Handler(),
			ReadTimeout:    config.Server.ReadTimeout,
			WriteTimeout:   config.Server.WriteTimeout,
			MaxHeaderBytes: 1 << 20,
		}
		app.workers = append(app.workers, worker{"rate-limiter-janitor", gateway.Limiter().RunJanitor})
	}

	return app, nil
}

// Run starts the web servers, the background workers and a goroutine
// which is responsible to stop them.
func (app *App) Run() error {
	defer app.Clean()
	nCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gCtx := errgroup.WithContext(nCtx)

	for _, w := range app.workers {
		w := w
		g.Go(func() error {
			app.logger.Info("worker starting", zap.String("worker", w.name))
			err := w.run(gCtx)
			app.logger.Info("worker stopped", zap.String("worker", w.name), zap.Error(err))
			return err
		})
	}
	g.Go(app.Serve())
	if app.gatewayServer != nil {
		g.Go(app.ServeGateway())
	}
	g.Go(app.Stop(nCtx, gCtx))

	err := g.Wait()
	app.logger.Info("api server stopped",
		zap.String("app.host", app.config.Server.Host),
		zap.String("app.port", app.config.Server.Port),
		zap.Error(err),
	)
	return err
}

// Clean calls all registered cleanups functions.
func (app *App) Clean() {
	for _, f := range app.cleanups {
		f()
	}
}

// Serve starts the api web server. It returned error
// will be caught by the errorgroup.
func (app *App) Serve() func() error {
	return func() error {
		app.logger.Info("api server starting",
			zap.String("app.host", app.config.Server.Host),
			zap.String("app.port", app.config.Server.Port),
		)
		err := app.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return err
	}
}

// ServeGateway starts the gateway web server.
func (app *App) ServeGateway() func() error {
	return func() error {
		app.logger.Info("gateway server starting",
			zap.String("gateway.host", app.config.Gateway.Host),
			zap.String("gateway.port", app.config.Gateway.Port),
			zap.String("gateway.upstream", app.config.Gateway.UpstreamURL),
		)
		err := app.gatewayServer.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		return err
	}
}

// Stop listens for the group context and triggers the servers graceful shutdown.
// It states the reason of its call. We proceed with a brutal shutdown if the
// the graceful did not complete successfully. We explicitly return `nil` to
// allow the errorgroup catches only the `Serve` methods results.
func (app *App) Stop(nCtx, gCtx context.Context) func() error {
	return func() error {
		<-gCtx.Done()

		if nCtx.Err() != nil {
			app.logger.Info("servers stopping. reason: requested to stop")
		} else {
			app.logger.Info("servers stopping. reason: errored at running")
		}

		sCtx, cancel := context.WithTimeout(context.Background(), app.config.Server.ShutdownTimeout)
		defer cancel()

		if app.gatewayServer != nil {
			app.shutdown(sCtx, "gateway", app.gatewayServer)
		}
		app.shutdown(sCtx, "api", app.server)

		if err := app.redisClient.Close(); err != nil {
			app.logger.Error("failed to close redis client", zap.Error(err))
		}
		if err := app.boltClient.Close(); err != nil {
			app.logger.Error("failed to close boltdb client", zap.Error(err))
		}
		if err := app.sqlDB.Close(); err != nil {
			app.logger.Error("failed to close sql database", zap.Error(err))
		}
		return nil
	}
}

func (app *App) shutdown(ctx context.Context, name string, srv *http.Server) {
	err := srv.Shutdown(ctx)
	switch {
	case err == nil, errors.Is(err, http.ErrServerClosed):
		app.logger.Info(name + " server graceful shutdown succeeded")
		return
	case errors.Is(err, context.DeadlineExceeded):
		app.logger.Info(name + " server graceful shutdown timed out")
	default:
		app.logger.Info(name+" server graceful shutdown failed", zap.Error(err))
	}
	app.logger.Info(name+" server going to force shutdown", zap.Error(srv.Close()))
}
