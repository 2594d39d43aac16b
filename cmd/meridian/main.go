// cmd/meridian/main.go
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cloudfront"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/FairForge/meridian/internal/alerting"
	"github.com/FairForge/meridian/internal/api"
	"github.com/FairForge/meridian/internal/cascade"
	"github.com/FairForge/meridian/internal/config"
	"github.com/FairForge/meridian/internal/events"
	"github.com/FairForge/meridian/internal/failover"
	"github.com/FairForge/meridian/internal/metrics"
	"github.com/FairForge/meridian/internal/probe"
	"github.com/FairForge/meridian/internal/routing"
)

func main() {
	configPath := flag.String("config", "", "path to yaml config file")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			panic(err)
		}
		cfg = loaded
	}
	config.LoadFromEnv(cfg)
	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	logger := newLogger(cfg.Server.LogLevel)
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// One SDK config per region; probes, routing and scaling all reuse them.
	regionCfgs := make(map[string]aws.Config, len(cfg.Regions))
	probes := make(map[string]probe.Set, len(cfg.Regions))
	for _, rc := range cfg.Regions {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(rc.ID))
		if err != nil {
			logger.Fatal("load aws config",
				zap.String("region", rc.ID), zap.Error(err))
		}
		regionCfgs[rc.ID] = awsCfg
		probes[rc.ID] = probe.NewAWSSet(awsCfg, logger.With(zap.String("region", rc.ID)))
	}

	// Route 53 and CloudFront are global services, any region's config works.
	globalCfg := regionCfgs[cfg.PrimaryRegion()]
	router := routing.NewRoute53Router(route53.NewFromConfig(globalCfg), logger)
	cdn := routing.NewCloudFrontRouter(cloudfront.NewFromConfig(globalCfg), logger)
	scaler := routing.NewAWSScaler(regionCfgs, cfg.Orchestrator.MaxTasksPerService, logger)

	m := metrics.New()
	alerts := alerting.NewManager(logger)

	sink := events.Sink(events.NewLogSink(logger))
	if dsn := cfg.Events.PostgresDSN; dsn != "" {
		pg, err := events.NewPostgresSink(dsn, logger)
		if err != nil {
			logger.Fatal("connect event store", zap.Error(err))
		}
		defer func() { _ = pg.Close() }()
		sink = events.NewMultiSink(events.NewLogSink(logger), pg)
	}

	aggregator := failover.NewAggregator(probes, cfg.Monitor, logger)
	orchestrator := failover.NewOrchestrator(router, cdn, scaler, aggregator,
		cfg.Orchestrator, cfg.Thresholds, logger)
	assessor := cascade.NewAssessor(cascade.DefaultGraph(), []string{"dynamodb", "rds"}, logger)

	manager := failover.NewManager(cfg, failover.ManagerDeps{
		Health:   aggregator,
		Executor: orchestrator,
		Assessor: assessor,
		Alerts:   alerts,
		Sink:     sink,
		Metrics:  m,
		Logger:   logger,
	})

	if *configPath != "" {
		watcher, err := config.NewWatcher(*configPath, func(next *config.Config) {
			manager.ApplyThresholds(next.Thresholds)
			orchestrator.SetThresholds(next.Thresholds)
		}, logger)
		if err != nil {
			logger.Warn("config watcher disabled", zap.Error(err))
		} else {
			go watcher.Run(ctx)
		}
	}

	scheduler := failover.NewScheduler(manager, cfg.Monitor, logger)
	go scheduler.Run(ctx)

	server := api.NewServer(cfg.Server.Port, manager, alerts, m.Registry(), logger)
	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("meridian started",
		zap.Int("port", cfg.Server.Port),
		zap.String("primary_region", cfg.PrimaryRegion()),
		zap.Int("regions", len(cfg.Regions)))

	if err := server.Start(); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

func newLogger(level string) *zap.Logger {
	zapCfg := zap.NewProductionConfig()
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		zapCfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	logger, err := zapCfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}
