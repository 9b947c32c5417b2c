// Command worker consumes submitted-document events, mines each stored
// document and publishes the outcome.  It also serves the HTTP API, the
// health probes and the Prometheus metrics.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/turtacn/opinion-miner/internal/application/mining"
	"github.com/turtacn/opinion-miner/internal/config"
	"github.com/turtacn/opinion-miner/internal/infrastructure/database/redis"
	"github.com/turtacn/opinion-miner/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/opinion-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/opinion-miner/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/opinion-miner/internal/infrastructure/storage/minio"
	"github.com/turtacn/opinion-miner/internal/intelligence/opinion"
	httpapi "github.com/turtacn/opinion-miner/internal/interfaces/http"
	"github.com/turtacn/opinion-miner/internal/interfaces/http/handlers"
	"github.com/turtacn/opinion-miner/pkg/errors"
)

const (
	defaultConfigPath = "configs/opminer.yaml"
	topicSetupTimeout = 30 * time.Second
)

// Build-time variables injected via ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	workers := flag.Int("workers", 0, "number of concurrent consumers (default: worker.concurrency)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *workers > 0 {
		cfg.Worker.Concurrency = *workers
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)

	config.Watch(*configPath, func(next *config.Config) {
		if logging.SetLevel(logger, next.Log.Level) {
			logger.Info("log level updated", logging.String("level", next.Log.Level))
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("worker stopped with error", logging.Err(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

func run(ctx context.Context, cfg *config.Config, logger logging.Logger) error {
	logger.Info("starting opinion miner worker",
		logging.String("version", version),
		logging.Int("consumers", cfg.Worker.Concurrency),
		logging.Strings("brokers", cfg.Kafka.Brokers),
	)

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Metrics.Namespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		return err
	}
	metrics := prometheus.NewAppMetrics(collector)

	infra, err := initInfrastructure(cfg, logger)
	if err != nil {
		return err
	}
	defer infra.Close()

	ensureTopics(ctx, cfg.Kafka, logger)

	minerOpts := []opinion.MinerOption{opinion.WithMinerMetrics(metrics)}
	if infra.entities != nil {
		minerOpts = append(minerOpts, opinion.WithEntityStore(infra.entities))
	}
	miner, err := opinion.MinerFromConfig(cfg, "", logger, minerOpts...)
	if err != nil {
		return err
	}

	deps := mining.Dependencies{
		Repository: infra.documents,
		Miner:      miner,
		Publisher:  infra.producer,
		Metrics:    metrics,
		Logger:     logger,
	}
	for _, c := range infra.consumers {
		deps.Subscribers = append(deps.Subscribers, c)
	}
	if infra.locks != nil {
		deps.Locks = infra.locks
	}
	svc, err := mining.NewService(mining.Config{
		SubmittedTopic: cfg.Kafka.SubmittedTopic,
		AnnotatedTopic: cfg.Kafka.AnnotatedTopic,
	}, deps)
	if err != nil {
		return err
	}

	routerCfg := httpapi.RouterConfig{
		Mode:            cfg.Server.Mode,
		OpinionHandler:  handlers.NewOpinionHandler(miner, cfg.Server.MaxBodySize, logger),
		DocumentHandler: handlers.NewDocumentHandler(svc),
		HealthHandler:   handlers.NewHealthHandler(version, infra.healthCheckers()...),
		Logger:          logger,
		HTTPMetrics:     metrics,
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsHandler = collector.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}
	server := httpapi.NewServer(cfg.Server, httpapi.NewRouter(routerCfg), logger)

	return serve(ctx, server, svc, logger)
}

// serve runs the HTTP server and the mining service until ctx ends or either
// of them fails, then stops both.
func serve(ctx context.Context, server *httpapi.Server, svc *mining.Service, logger logging.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() { errCh <- server.Start() }()
	go func() { errCh <- svc.Run(ctx) }()

	pending := 2
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case runErr = <-errCh:
		pending--
	}

	cancel()
	if err := server.Stop(context.Background()); err != nil {
		logger.Warn("HTTP server did not stop cleanly", logging.Err(err))
	}
	for ; pending > 0; pending-- {
		if err := <-errCh; err != nil && runErr == nil {
			runErr = err
		}
	}
	logger.Info("worker stopped")
	return runErr
}

// ensureTopics creates missing topics.  Brokers that forbid topic creation
// are tolerated; the topics are then expected to exist already.
func ensureTopics(ctx context.Context, cfg config.KafkaConfig, logger logging.Logger) {
	tm, err := kafka.NewTopicManager(cfg.Brokers, logger)
	if err != nil {
		logger.Warn("topic manager unavailable, skipping topic creation", logging.Err(err))
		return
	}
	defer tm.Close()

	ctx, cancel := context.WithTimeout(ctx, topicSetupTimeout)
	defer cancel()
	if err := tm.EnsureTopics(ctx, kafka.DefaultTopics(cfg)); err != nil {
		logger.Warn("failed to ensure topics", logging.Err(err))
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Infrastructure
// ─────────────────────────────────────────────────────────────────────────────

type infrastructure struct {
	minio     *minio.MinIOClient
	documents *minio.DocumentRepository
	redis     *redis.Client
	entities  *redis.EntityStore
	locks     *redis.LockFactory
	producer  *kafka.Producer
	consumers []*kafka.Consumer
	logger    logging.Logger
}

func initInfrastructure(cfg *config.Config, logger logging.Logger) (*infrastructure, error) {
	infra := &infrastructure{logger: logger}

	mc, err := minio.NewMinIOClient(cfg.MinIO, logger)
	if err != nil {
		return nil, err
	}
	infra.minio = mc
	infra.documents = minio.NewDocumentRepository(mc, logger)

	if cfg.Redis.Enabled {
		rc, err := redis.NewClient(cfg.Redis, logger)
		if err != nil {
			infra.Close()
			return nil, err
		}
		infra.redis = rc
		infra.entities = redis.NewEntityStore(rc, cfg.Redis.EntityTTL, logger)
		infra.locks = redis.NewLockFactory(rc, logger, redis.WithLockTTL(cfg.Redis.LockTTL), redis.WithWatchdog(true))
	}

	producer, err := kafka.NewProducer(kafka.ProducerConfigFrom(cfg.Kafka), logger)
	if err != nil {
		infra.Close()
		return nil, err
	}
	infra.producer = producer

	consumerCfg := kafka.ConsumerConfigFrom(cfg.Kafka)
	for i := 0; i < cfg.Worker.Concurrency; i++ {
		c, err := kafka.NewConsumer(consumerCfg, producer, logger.With(logging.Int("consumer", i)))
		if err != nil {
			infra.Close()
			return nil, err
		}
		infra.consumers = append(infra.consumers, c)
	}
	return infra, nil
}

func (i *infrastructure) healthCheckers() []handlers.HealthChecker {
	checkers := []handlers.HealthChecker{
		handlers.CheckFunc{ComponentName: "minio", Fn: func(ctx context.Context) error {
			status, err := i.minio.HealthCheck(ctx)
			if err != nil {
				return err
			}
			if !status.Healthy {
				return errors.New(errors.ErrCodeStorage, status.Error)
			}
			return nil
		}},
	}
	if i.redis != nil {
		checkers = append(checkers, handlers.CheckFunc{ComponentName: "redis", Fn: i.redis.Ping})
	}
	return checkers
}

// Close releases every connection that was opened.  Consumers already
// closed by the mining service are skipped.
func (i *infrastructure) Close() {
	for _, c := range i.consumers {
		if err := c.Close(); err != nil {
			i.logger.Warn("failed to close kafka consumer", logging.Err(err))
		}
	}
	if i.producer != nil {
		if err := i.producer.Close(); err != nil {
			i.logger.Warn("failed to close kafka producer", logging.Err(err))
		}
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			i.logger.Warn("failed to close redis client", logging.Err(err))
		}
	}
	if i.minio != nil {
		_ = i.minio.Close()
	}
}
