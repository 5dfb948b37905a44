package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/twmb/franz-go/pkg/kgo"

	"emissions/internal/audit"
	"emissions/internal/platform/config"
	"emissions/internal/platform/httpserver"
	"emissions/internal/platform/kafka"
	"emissions/internal/platform/logger"
	"emissions/internal/platform/postgres"
	"emissions/internal/platform/redis"
	httptransport "emissions/internal/transport/http"
)

// main wires infrastructure, builds the bounded contexts and runs the HTTP
// server until SIGINT or SIGTERM.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat, cfg.IsDevelopment())

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	infra, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer infra.close(log)

	publisher := audit.NewPublisher(infra.auditSink(log),
		audit.WithAsyncBuffer(cfg.AuditBufferSize),
		audit.WithPublisherLogger(log),
	)
	defer publisher.Close()

	a, err := build(ctx, cfg, log, infra, publisher)
	if err != nil {
		return err
	}
	if infra.db != nil {
		// Other instances may replace the snapshot; poll for newer versions.
		go a.thresholds.Run(ctx, cfg.Thresholds.RefreshInterval)
	}

	router := httptransport.NewRouter(a.routes(log, infra.healthChecks()))
	log.Info("starting emissions server",
		"addr", cfg.Addr,
		"environment", cfg.Environment,
		"version", config.APIVersion,
		"persistent", infra.db != nil,
	)
	err = httpserver.New(cfg.Addr, router, httpserver.DefaultTimeouts()).Serve(ctx)
	log.Info("server stopped")
	return err
}

// infrastructure holds the optional external connections. Nil fields mean
// the dependency is not configured.
type infrastructure struct {
	db    *sql.DB
	redis *redis.Client
	kafka *kgo.Client
	topic string
}

func connect(ctx context.Context, cfg config.Server, log *slog.Logger) (*infrastructure, error) {
	infra := &infrastructure{topic: cfg.Kafka.AuditTopic}

	if cfg.Database.URL != "" {
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		infra.db = db
		log.Info("postgres connected")
	} else {
		log.Warn("DATABASE_URL not set; using in-memory stores")
	}

	rc, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		infra.close(log)
		return nil, err
	}
	infra.redis = rc

	kc, err := kafka.New(cfg.Kafka)
	if err != nil {
		infra.close(log)
		return nil, err
	}
	if kc != nil {
		if err := kafka.EnsureTopic(ctx, kc, cfg.Kafka.AuditTopic, cfg.Kafka.Partitions); err != nil {
			// The broker may forbid topic creation; publishing still works
			// when the topic was provisioned out of band.
			log.Warn("could not ensure audit topic", "topic", cfg.Kafka.AuditTopic, "error", err)
		}
		infra.kafka = kc
	}
	return infra, nil
}

func (i *infrastructure) auditSink(log *slog.Logger) audit.Sink {
	sinks := audit.FanOut{audit.NewLogSink(log)}
	if i.kafka != nil {
		sinks = append(sinks, audit.NewKafkaSink(i.kafka, i.topic))
	}
	return sinks
}

func (i *infrastructure) healthChecks() map[string]httptransport.HealthCheck {
	checks := map[string]httptransport.HealthCheck{}
	if i.db != nil {
		checks["postgres"] = i.db.PingContext
	}
	if i.redis != nil {
		checks["redis"] = i.redis.Health
	}
	if i.kafka != nil {
		client := i.kafka
		checks["kafka"] = func(ctx context.Context) error { return kafka.Health(ctx, client) }
	}
	return checks
}

func (i *infrastructure) close(log *slog.Logger) {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Warn("closing redis", "error", err)
		}
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			log.Warn("closing postgres", "error", err)
		}
	}
}
