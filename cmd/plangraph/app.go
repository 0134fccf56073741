package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/plangraph/config"
	"github.com/BaSui01/plangraph/dsl"
	"github.com/BaSui01/plangraph/engine"
	"github.com/BaSui01/plangraph/history"
	"github.com/BaSui01/plangraph/internal/logging"
	"github.com/BaSui01/plangraph/internal/metrics"
	"github.com/BaSui01/plangraph/internal/server"
	"github.com/BaSui01/plangraph/internal/telemetry"
)

// =============================================================================
// 🧩 运行环境装配
// =============================================================================

// app 持有一次命令调用所需的全部组件
type app struct {
	cfg    *config.Config
	logger *zap.Logger

	registry  *prometheus.Registry
	collector *metrics.Collector
	providers *telemetry.Providers
	store     history.Store
	redis     redis.UniversalClient
	ops       *server.OpsServer
}

// loadConfig 加载并校验配置
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newApp 按配置初始化日志、遥测、指标、历史存储与运维服务器
func newApp(cfg *config.Config) (*app, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	a.providers, err = telemetry.Init(cfg.Telemetry, Version, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	a.registry = prometheus.NewRegistry()
	if cfg.Metrics.Enabled {
		a.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	a.collector = metrics.NewCollector(cfg.Metrics.Namespace, a.registry, logger)

	if err := a.openHistory(); err != nil {
		a.close()
		return nil, err
	}

	if cfg.Metrics.Enabled {
		a.ops = server.NewOpsServer(cfg.Metrics.Addr, server.NewHandler(a.registry, a.store, logger), logger)
		if err := a.ops.Start(); err != nil {
			a.close()
			return nil, fmt.Errorf("start ops server: %w", err)
		}
	}
	return a, nil
}

// openHistory 根据 history.backend 打开历史存储
func (a *app) openHistory() error {
	hc := a.cfg.History
	switch hc.Backend {
	case "", "none":
		return nil
	case "memory":
		a.store = history.Observe(history.NewMemoryStore(), a.collector.RecordHistoryOp)
		return nil
	case "redis":
		a.redis = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{hc.Redis.Addr},
			Password: hc.Redis.Password,
			DB:       hc.Redis.DB,
			PoolSize: hc.Redis.PoolSize,
		})
		rs := history.NewRedisStore(a.redis, history.RedisOptions{
			KeyPrefix: hc.Redis.KeyPrefix,
			TTL:       hc.Redis.TTL,
		}, a.logger)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rs.Ping(ctx); err != nil {
			return fmt.Errorf("connect history redis %s: %w", hc.Redis.Addr, err)
		}
		a.store = history.Observe(rs, a.collector.RecordHistoryOp)
		return nil
	default:
		return fmt.Errorf("unknown history backend %q", hc.Backend)
	}
}

// parser 返回挂接了委托指标的计划解析器
func (a *app) parser() *dsl.Parser {
	return dsl.NewParser(nil, a.logger,
		dsl.WithRetryHook(a.collector.RecordDelegateRetry),
		dsl.WithBreakerHook(a.collector.RecordBreakerEvent),
	)
}

// executorOptions 将配置、日志、遥测、指标与历史存储转换为执行器选项
func (a *app) executorOptions(workflow string) []engine.Option {
	opts := []engine.Option{
		engine.FromConfig(a.cfg.Engine),
		engine.WithLogger(a.logger),
		engine.WithMetrics(a.collector),
		engine.WithTracer(a.providers.Tracer("github.com/BaSui01/plangraph/engine")),
		engine.WithMeterProvider(a.providers.MeterProvider()),
		engine.WithWorkflowName(workflow),
	}
	if a.store != nil {
		opts = append(opts, engine.WithHistory(a.store))
	}
	return opts
}

// close 按启动的逆序释放资源
func (a *app) close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var errs []error
	if a.ops != nil {
		if err := a.ops.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if err := a.providers.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}
