package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/matthewbaird/adbatch/internal/activity"
	"github.com/matthewbaird/adbatch/internal/batch"
	"github.com/matthewbaird/adbatch/internal/config"
	"github.com/matthewbaird/adbatch/internal/eventbus"
	"github.com/matthewbaird/adbatch/internal/fieldschema"
	"github.com/matthewbaird/adbatch/internal/migrate"
	"github.com/matthewbaird/adbatch/internal/persist"
	"github.com/matthewbaird/adbatch/internal/server"
	"github.com/matthewbaird/adbatch/internal/stage"
	"github.com/matthewbaird/adbatch/internal/validate"

	_ "modernc.org/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(".env")
	if err != nil {
		logrus.Fatalf("loading config: %v", err)
	}
	logger, err := newLogger(cfg)
	if err != nil {
		logrus.Fatalf("configuring logger: %v", err)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("server error")
	}
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	registry := fieldschema.LoadOrFallback(cfg.SchemaPath, logger)
	templates := fieldschema.Templates{}
	if cfg.TemplatesPath != "" {
		t, err := fieldschema.LoadTemplates(cfg.TemplatesPath)
		if err != nil {
			logger.WithError(err).Warn("default templates unavailable, rows start blank")
		} else {
			templates = t
		}
	}

	be, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer be.close()

	bus := eventbus.New(256, logger)
	bus.Subscribe("log", eventbus.NewLogConsumer(logger))
	bus.Subscribe("activity", activity.NewIndexer(be.activity, logger))
	if cfg.KafkaEnabled() {
		writer, err := eventbus.NewKafkaWriter(cfg.KafkaBrokers)
		if err != nil {
			return err
		}
		defer writer.Close()
		bus.Subscribe("kafka", eventbus.NewKafkaConsumer(writer, cfg.KafkaTopic))
		logger.WithField("topic", cfg.KafkaTopic).Info("forwarding batch events to kafka")
	}
	bus.Start(ctx)
	defer bus.Stop()

	store, err := batch.Open(ctx, be.persister, cfg.Platform, cfg.AdvertiserID,
		batch.WithPublisher(bus),
		batch.WithLogger(logger),
		batch.WithLegacyKeys(cfg.LegacyKeys...),
	)
	switch {
	case errors.Is(err, migrate.ErrUnrecognized):
		logger.WithError(err).Warn("persisted batch discarded")
	case err != nil:
		logger.WithError(err).Warn("batch restore incomplete")
	}

	mode := validate.ParseMode(cfg.ValidationMode)
	stager := stage.New(stage.Config{
		Store:     store,
		Registry:  registry,
		Templates: templates,
		Validator: validate.New(mode),
		Platform:  cfg.Platform,
		Logger:    logger,
	})
	logger.WithFields(logrus.Fields{
		"platform":      cfg.Platform,
		"advertiser_id": cfg.AdvertiserID,
		"backend":       cfg.StoreBackend,
		"validation":    mode.String(),
	}).Info("batch staging ready")

	return server.Run(ctx, server.Config{
		Port:         cfg.Port,
		Platform:     cfg.Platform,
		Stager:       stager,
		Store:        store,
		Registry:     registry,
		Bus:          bus,
		Activity:     be.activity,
		RateLimitRPS: cfg.RateLimitRPS,
		Logger:       logger,
	})
}

func newLogger(cfg config.Config) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger.SetLevel(level)
	if cfg.LogFormat == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}

// backend is the storage behind one process: the batch persister and the
// activity history, plus a func releasing their connections.
type backend struct {
	persister persist.Persister
	activity  activity.Store
	close     func()
}

func openBackend(ctx context.Context, cfg config.Config, logger logrus.FieldLogger) (backend, error) {
	switch cfg.StoreBackend {
	case "memory":
		logger.Warn("memory store backend: the batch is lost on restart")
		return backend{
			persister: persist.NewMemoryPersister(),
			activity:  activity.NewMemoryStore(),
			close:     func() {},
		}, nil

	case "redis":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return backend{}, fmt.Errorf("parsing REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return backend{}, fmt.Errorf("connecting to redis: %w", err)
		}
		// History stays in process; redis only holds the batch.
		return backend{
			persister: persist.NewRedisPersister(client, "", 0),
			activity:  activity.NewMemoryStore(),
			close:     func() { client.Close() },
		}, nil

	default:
		db, err := sql.Open("sqlite", cfg.DatabaseURL)
		if err != nil {
			return backend{}, fmt.Errorf("opening database: %w", err)
		}
		db.SetMaxOpenConns(1)
		p := persist.NewSQLitePersister(db)
		if err := p.CreateTable(ctx); err != nil {
			db.Close()
			return backend{}, err
		}
		history := activity.NewSQLiteStore(db)
		if err := history.CreateTable(ctx); err != nil {
			db.Close()
			return backend{}, err
		}
		logger.WithField("dsn", cfg.DatabaseURL).Info("sqlite store ready")
		return backend{persister: p, activity: history, close: func() { db.Close() }}, nil
	}
}
