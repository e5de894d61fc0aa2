package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"post-purge/internal/models/ports"
	"post-purge/internal/pkg/config"
	"post-purge/internal/pkg/postgres"
	"post-purge/internal/repository/jsonfile"
	"post-purge/internal/repository/natsbus"
	repo "post-purge/internal/repository/postgres"
	"post-purge/internal/repository/twitter"
	"post-purge/internal/scheduler"
	"post-purge/internal/usecase"
)

// App связывает слои приложения для HTTP- и CLI-хостов
type App struct {
	Purger  *usecase.Purger
	closers []func()
}

// New собирает шлюз, приемники журнала, планировщик и сервис удаления
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	if err := cfg.ValidateCredentials(); err != nil {
		return nil, err
	}

	httpClient := twitter.NewHTTPClient(twitter.Credentials{
		ConsumerKey:       cfg.ConsumerKey,
		ConsumerSecret:    cfg.ConsumerSecret,
		AccessToken:       cfg.AccessToken,
		AccessTokenSecret: cfg.AccessTokenSecret,
	}, cfg.APITimeout)
	gateway := twitter.NewGateway(httpClient, log.Named("twitter"))

	return NewWithGateway(ctx, cfg, gateway, log)
}

// NewWithGateway собирает приложение поверх готового шлюза
func NewWithGateway(ctx context.Context, cfg *config.Config, gateway ports.PostGateway, log *zap.Logger) (*App, error) {
	a := &App{}

	sinks, err := a.buildSinks(ctx, cfg, log)
	if err != nil {
		a.Close()
		return nil, err
	}

	clock := scheduler.NewRealClock()
	handler := scheduler.NewRateLimitHandler(gateway, cfg.RateLimitPolicy(), clock, log.Named("ratelimit"))

	sched, err := scheduler.NewScheduler(cfg.BatchConfig(), handler, clock, log.Named("scheduler"))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("scheduler: %w", err)
	}

	a.Purger = usecase.NewPurger(gateway, sched, sinks, clock, usecase.Options{
		MaxItemsPerRun: cfg.MaxItemsPerRun,
		MaxListLimit:   cfg.MaxListLimit,
	}, log.Named("usecase"))

	return a, nil
}

// Close освобождает соединения в обратном порядке
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) buildSinks(ctx context.Context, cfg *config.Config, log *zap.Logger) ([]ports.OutcomeSink, error) {
	sinks := make([]ports.OutcomeSink, 0, len(cfg.OutcomeSinks))

	for _, name := range cfg.OutcomeSinks {
		switch name {
		case config.SinkJSON:
			sinks = append(sinks, jsonfile.NewSink(cfg.OutcomeLogPath, log.Named("jsonfile")))

		case config.SinkPostgres:
			dbLog := log.Named("postgres")
			db, err := postgres.NewPostgresDB(ctx, cfg, dbLog)
			if err != nil {
				return nil, fmt.Errorf("connect to database: %w", err)
			}
			a.closers = append(a.closers, func() { postgres.CloseDB(db, dbLog) })

			sink, err := repo.NewOutcomeRepository(db, cfg.OutcomeTable, dbLog)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, sink)

		case config.SinkNATS:
			natsLog := log.Named("nats")
			nc, err := natsbus.Connect(cfg.NATSURL, natsLog)
			if err != nil {
				return nil, err
			}
			a.closers = append(a.closers, func() {
				if err := nc.Drain(); err != nil {
					natsLog.Error("Error draining NATS connection", zap.Error(err))
				}
			})
			sinks = append(sinks, natsbus.NewPublisher(nc, cfg.NATSSubject, natsLog))

		default:
			return nil, fmt.Errorf("unknown outcome sink %q", name)
		}
	}

	log.Info("Outcome sinks configured", zap.Strings("sinks", cfg.OutcomeSinks))

	return sinks, nil
}
