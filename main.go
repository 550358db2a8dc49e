package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"content-pipeline/domain/model"
	"content-pipeline/domain/repository"
	"content-pipeline/infrastructure/cache"
	"content-pipeline/infrastructure/clients/sheetsbest"
	"content-pipeline/infrastructure/configuration"
	"content-pipeline/infrastructure/feed"
	"content-pipeline/infrastructure/filecsv"
	"content-pipeline/infrastructure/googlesheet"
	"content-pipeline/infrastructure/logger"
	"content-pipeline/infrastructure/persistence"
	"content-pipeline/infrastructure/pubsub"
	"content-pipeline/infrastructure/realtime"
	"content-pipeline/infrastructure/servicebus"
	"content-pipeline/infrastructure/utils"
	httpHandler "content-pipeline/interfaces/http"
	"content-pipeline/server"
	"content-pipeline/usecase"

	"golang.org/x/sync/errgroup"
)

func recoverPanic() {
	if err := recover(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Application panic recovered")
	}
}

func main() {
	tokenSubject := flag.String("token", "", "print an admin bearer token for this subject and exit")
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "lifetime of the token printed by -token, 0 for none")
	flag.Parse()

	defer recoverPanic()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	// Load env from files (non-destructive; OS env still has precedence)
	if n := configuration.LoadEnvFromFile("config.env", ".env"); n > 0 {
		logger.GetLogger().WithField("vars", n).Info("Loaded environment from file")
	}

	cfg, err := configuration.Load()
	if err != nil {
		logger.GetLogger().WithField("error", err.Error()).Error("Invalid configuration")
		os.Exit(1)
	}
	logger.Configure(cfg.Logger.Format, cfg.Logger.Level)

	if *tokenSubject != "" {
		if err := printAdminToken(cfg.App.SecretKey, *tokenSubject, *tokenTTL); err != nil {
			logger.GetLogger().WithField("error", err.Error()).Error("Unable to mint admin token")
			os.Exit(1)
		}
		return
	}

	policy := utils.RetryPolicy{Retries: cfg.Retry.Retries, Backoff: cfg.Retry.Backoff, Timeout: cfg.Retry.Timeout}

	store, closeStore, err := InitiateStore(ctx, cfg, policy)
	if err != nil {
		logger.GetLogger().WithField("driver", cfg.Store.Driver).WithField("error", err.Error()).Error("Record store initialization failed")
		os.Exit(1)
	}
	defer closeStore()
	if cfg.Ingestion.SourcesFile != "" {
		logger.GetLogger().WithField("file", cfg.Ingestion.SourcesFile).Info("Reading sources from local CSV")
		store = filecsv.OverrideSources(store, filecsv.NewSourceFile(cfg.Ingestion.SourcesFile))
	}

	publisher, closePublisher, err := InitiatePublisher(ctx, cfg)
	if err != nil {
		logger.GetLogger().WithField("driver", cfg.Publisher.Driver).WithField("error", err.Error()).Error("Publisher initialization failed")
		os.Exit(1)
	}
	defer closePublisher()

	runLock := InitiateRunLock(ctx, cfg)

	fetcher := feed.NewHTTPFetcher(&http.Client{}, policy, cfg.Ingestion.FetchInterval, cfg.Ingestion.UserAgent)
	audit := usecase.NewAuditTrail(store, utils.GetCurrentTime)

	ingestion := usecase.NewIngestionUsecase(store, store, store, fetcher, audit, usecase.IngestionConfig{
		MaxItemsPerSource: cfg.Ingestion.MaxItemsPerSource,
		MaxNewPostsTotal:  cfg.Ingestion.MaxNewPostsTotal,
		QueueLead:         time.Duration(cfg.Ingestion.QueueLeadMinutes) * time.Minute,
		DefaultPlatform:   cfg.Ingestion.DefaultPlatform,
		DefaultStatus:     model.PostStatus(cfg.Ingestion.DefaultStatus),
		BodyContainment:   cfg.Dedup.BodyContainment,
	}, utils.GetCurrentTime)
	publish := usecase.NewPublishUsecase(store, publisher, audit, utils.GetCurrentTime)

	hub := realtime.NewJobHub()
	scheduler := usecase.NewScheduler(runLock, utils.GetCurrentTime,
		usecase.ScheduledJob{Name: usecase.JobIngestion, Minute: cfg.Schedule.IngestionMinute, Runner: ingestion},
		usecase.ScheduledJob{Name: usecase.JobPublish, Minute: cfg.Schedule.PublishMinute, Runner: publish},
	).WithReporter(hub.Broadcast)

	adminHandler := httpHandler.NewAdminHandler(store, scheduler, audit, hub, cfg.Store.Driver)
	router := server.InitiateRouter(adminHandler, cfg.App.SecretKey, cfg.App.AllowOrigins)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Schedule.Enabled {
		g.Go(func() error {
			if err := scheduler.Start(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	} else {
		logger.GetLogger().Info("Scheduler disabled; jobs run only on manual trigger")
	}

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.GetLogger().WithFields(map[string]interface{}{
		"port":      cfg.App.Port,
		"tls":       cfg.App.TLSEnabled,
		"store":     cfg.Store.Driver,
		"publisher": cfg.Publisher.Driver,
	}).Info("Starting application")
	g.Go(func() error {
		var err error
		if cfg.App.TLSEnabled && cfg.App.TLSCertFile != "" && cfg.App.TLSKeyFile != "" {
			err = httpServer.ListenAndServeTLS(cfg.App.TLSCertFile, cfg.App.TLSKeyFile)
		} else {
			if cfg.App.TLSEnabled {
				logger.GetLogger().Error("TLS enabled but cert or key path empty; falling back to HTTP")
			}
			err = httpServer.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	select {
	case <-interrupt:
		logger.GetLogger().Info("Application shutdown requested")
	case <-ctx.Done():
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = httpServer.Shutdown(shutdownCtx)

	if err := g.Wait(); err != nil {
		logger.GetLogger().WithField("error", err).Error("Server returned an error")
		os.Exit(2)
	}
}

// InitiateStore opens the configured record store. The returned func
// releases its connections.
func printAdminToken(secretKey, subject string, ttl time.Duration) error {
	if secretKey == "" {
		return errors.New("app.secretKey is not set")
	}
	token, err := utils.AdminToken(subject, secretKey, ttl, utils.GetCurrentTime())
	if err != nil {
		return err
	}
	fmt.Println(token)
	return nil
}

func InitiateStore(ctx context.Context, cfg *configuration.Config, policy utils.RetryPolicy) (repository.IRecordStore, func(), error) {
	noop := func() {}
	switch cfg.Store.Driver {
	case configuration.StoreSheetsBest:
		sb := cfg.Store.SheetsBest
		return sheetsbest.NewClient(&http.Client{}, sb.APIKey, sheetsbest.Endpoints{
			Sources: sb.SourcesURL,
			Posts:   sb.PostsURL,
			Queue:   sb.QueueURL,
			Logs:    sb.LogsURL,
			Revenue: sb.RevenueURL,
		}, policy, sb.PageSize), noop, nil

	case configuration.StoreGoogleSheets:
		gs := cfg.GoogleSheet
		svc, err := googlesheet.NewService(ctx, gs.CredentialsFile)
		if err != nil {
			return nil, noop, err
		}
		return googlesheet.NewSheetStore(svc, gs.SpreadsheetId, googlesheet.Tabs{
			Sources: gs.SourcesTab,
			Posts:   gs.PostsTab,
			Queue:   gs.QueueTab,
			Logs:    gs.LogsTab,
			Revenue: gs.RevenueTab,
		}, policy), noop, nil

	case configuration.StorePostgres, configuration.StoreMSSQL:
		open, dialect, dbCfg := persistence.NewPostgreSQLDB, persistence.Postgres, cfg.Database.Psql
		if cfg.Store.Driver == configuration.StoreMSSQL {
			open, dialect, dbCfg = persistence.NewMSSQLDB, persistence.MSSQL, cfg.Database.Mssql
		}
		db, err := open(dbCfg)
		if err != nil {
			return nil, noop, err
		}
		if err := persistence.EnsureSchema(ctx, db, dialect); err != nil {
			_ = db.Close()
			return nil, noop, err
		}
		logger.GetLogger().WithField("dialect", dialect.Name).Info("Database connected.")
		return persistence.NewSQLStore(db, dialect), func() { _ = db.Close() }, nil

	case configuration.StoreMongo:
		client, err := persistence.NewMongoDb(ctx, cfg.Database.Mongo)
		if err != nil {
			return nil, noop, err
		}
		logger.GetLogger().Info("MongoDB connected successfully")
		return persistence.NewMongoStore(client, cfg.Database.Mongo.Name), func() { _ = client.Disconnect(context.Background()) }, nil
	}
	return nil, noop, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
}

func InitiatePublisher(ctx context.Context, cfg *configuration.Config) (repository.IPublisher, func(), error) {
	noop := func() {}
	switch cfg.Publisher.Driver {
	case configuration.PublisherPubSub:
		client, err := pubsub.NewPubSub(ctx, cfg.Pubsub.ProjectID)
		if err != nil {
			return nil, noop, err
		}
		p := pubsub.NewPublisher(client, cfg.Pubsub.TopicID)
		return p, func() { p.Close(); _ = client.Close() }, nil

	case configuration.PublisherServiceBus:
		client, err := servicebus.NewServiceBus(cfg.ServiceBus.ConnectionString, cfg.ServiceBus.Namespace)
		if err != nil {
			return nil, noop, err
		}
		return servicebus.NewPublisher(client, cfg.ServiceBus.QueueName), func() { _ = client.Close(context.Background()) }, nil

	case configuration.PublisherNoop, "":
		return usecase.NoopPublisher{}, noop, nil
	}
	return nil, noop, fmt.Errorf("unknown publisher driver %q", cfg.Publisher.Driver)
}

// InitiateRunLock shares the job lock through Redis when it is reachable,
// so several replicas never run the same job at once.
func InitiateRunLock(ctx context.Context, cfg *configuration.Config) repository.IRunLock {
	addr := cfg.RedisClient.Addr()
	if addr == "" {
		return cache.NewLocalRunLock()
	}
	client, err := cache.NewCache(ctx, addr, cfg.RedisClient.Username, cfg.RedisClient.Password)
	if err != nil {
		logger.GetLogger().WithField("error", err).Warn("Redis not available - falling back to in-process job lock")
		return cache.NewLocalRunLock()
	}
	return cache.NewRedisRunLock(client, "content-pipeline:lock:", cfg.Schedule.LockTTL)
}
