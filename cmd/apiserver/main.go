// Command apiserver serves the synchronous opinion mining API: annotation
// documents are posted, mined in-process and returned.  It needs neither
// object storage nor Kafka.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/turtacn/opinion-miner/internal/config"
	"github.com/turtacn/opinion-miner/internal/infrastructure/database/redis"
	"github.com/turtacn/opinion-miner/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/opinion-miner/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/opinion-miner/internal/intelligence/opinion"
	httpserver "github.com/turtacn/opinion-miner/internal/interfaces/http"
	"github.com/turtacn/opinion-miner/internal/interfaces/http/handlers"
)

const defaultConfigPath = "configs/opminer.yaml"

var version = "dev"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	httpPort := flag.Int("http-port", 0, "HTTP server port (overrides config)")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if *httpPort > 0 {
		cfg.Server.Port = *httpPort
	}

	logger, err := logging.NewLogger(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	logging.SetDefault(logger)
	defer logger.Sync()

	logger.Info("starting opinion miner API server",
		logging.String("version", version),
		logging.Int("http_port", cfg.Server.Port),
	)

	collector, err := prometheus.NewMetricsCollector(prometheus.CollectorConfig{
		Namespace:            cfg.Metrics.Namespace,
		EnableProcessMetrics: true,
		EnableGoMetrics:      true,
	}, logger)
	if err != nil {
		logger.Fatal("failed to create metrics collector", logging.Err(err))
	}
	metrics := prometheus.NewAppMetrics(collector)

	minerOpts := []opinion.MinerOption{opinion.WithMinerMetrics(metrics)}
	var checkers []handlers.HealthChecker
	if cfg.Redis.Enabled {
		rc, err := redis.NewClient(cfg.Redis, logger)
		if err != nil {
			logger.Fatal("failed to connect to redis", logging.Err(err))
		}
		defer rc.Close()
		minerOpts = append(minerOpts, opinion.WithEntityStore(redis.NewEntityStore(rc, cfg.Redis.EntityTTL, logger)))
		checkers = append(checkers, &redisHealthAdapter{client: rc})
	}

	miner, err := opinion.MinerFromConfig(cfg, "", logger, minerOpts...)
	if err != nil {
		logger.Fatal("failed to build miner", logging.Err(err))
	}

	routerCfg := httpserver.RouterConfig{
		Mode:           cfg.Server.Mode,
		OpinionHandler: handlers.NewOpinionHandler(miner, cfg.Server.MaxBodySize, logger),
		HealthHandler:  handlers.NewHealthHandler(version, checkers...),
		Logger:         logger,
		HTTPMetrics:    metrics,
	}
	if cfg.Metrics.Enabled {
		routerCfg.MetricsHandler = collector.Handler()
		routerCfg.MetricsPath = cfg.Metrics.Path
	}
	srv := httpserver.NewServer(cfg.Server, httpserver.NewRouter(routerCfg), logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info("shutting down server...")
		if err := srv.Stop(context.Background()); err != nil {
			logger.Error("HTTP server shutdown error", logging.Err(err))
		}
	case err := <-errCh:
		if err != nil {
			logger.Error("HTTP server error", logging.Err(err))
		}
	}
	logger.Info("server stopped")
}

// loadConfig reads path when it exists and falls back to OPMINER_*
// environment variables otherwise.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.LoadFromEnv()
	}
	return config.Load(path)
}
