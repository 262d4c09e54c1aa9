package di

import (
	"context"
	"io"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/hr-notifier/internal/adapters/cache"
	"github.com/mikey/hr-notifier/internal/config"
	"github.com/mikey/hr-notifier/internal/core"
	"github.com/mikey/hr-notifier/internal/factory"
	"github.com/mikey/hr-notifier/internal/handler"
	"github.com/mikey/hr-notifier/internal/logging"
	"github.com/mikey/hr-notifier/internal/metrics"
	"github.com/mikey/hr-notifier/internal/ports"
	"github.com/mikey/hr-notifier/internal/routing"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register metrics registry with the runtime collectors
	if err := container.Provide(func() *prometheus.Registry {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		return reg
	}); err != nil {
		return nil, err
	}

	if err := registerPipeline(container, os.Stdout); err != nil {
		return nil, err
	}

	// Register HTTP surface
	if err := container.Provide(handler.NewHandler); err != nil {
		return nil, err
	}
	if err := container.Provide(func(
		h *handler.Handler,
		reg *prometheus.Registry,
		cfg *config.Config,
		logger *zap.Logger,
	) (http.Handler, error) {
		serverCfg, err := cfg.GetServer()
		if err != nil {
			return nil, err
		}
		var metricsHandler http.Handler
		if serverCfg.MetricsEnabled {
			metricsHandler = metrics.Handler(reg)
		}
		return handler.NewRouter(h, metricsHandler, logger), nil
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(cfg *config.Config, router http.Handler, logger *zap.Logger) (ports.Service, error) {
		serverCfg, err := cfg.GetServer()
		if err != nil {
			return nil, err
		}
		return handler.NewServer(handler.ServerConfig{
			ListenAddress: serverCfg.ListenAddress,
			ReadTimeout:   serverCfg.ReadTimeout,
			WriteTimeout:  serverCfg.WriteTimeout,
		}, router, logger), nil
	}); err != nil {
		return nil, err
	}

	return container, nil
}

// registerPipeline registers everything from the metrics collector down to the
// reminder service. The container must already provide the config, logger and
// Prometheus registry.
func registerPipeline(container *dig.Container, out io.Writer) error {
	providers := []any{
		core.SystemClock,

		// Metrics
		func(reg *prometheus.Registry) *metrics.Collector {
			return metrics.NewCollector(reg)
		},
		func(c *metrics.Collector) core.MetricsRecorder { return c },
		func(c *metrics.Collector) cache.Recorder { return c },

		// Factories
		factory.NewMapperFactory,
		factory.NewSourceFactory,
		factory.NewCacheFactory,
		factory.NewLedgerFactory,
		func(cfg *config.Config, clock core.Clock, logger *zap.Logger) *factory.NotifierFactory {
			return factory.NewNotifierFactory(cfg, clock, out, logger)
		},

		// Record source behind the snapshot cache
		func(sf *factory.SourceFactory, cf *factory.CacheFactory) (*cache.SnapshotCache, error) {
			source, err := sf.CreateSource()
			if err != nil {
				return nil, err
			}
			return cf.CreateSnapshotCache(source)
		},
		func(c *cache.SnapshotCache) core.RecordSource { return c },

		// Ledger, probed once
		func(f *factory.LedgerFactory) core.LedgerRepository {
			return f.CreateLedger(context.Background())
		},
		func(repo core.LedgerRepository, clock core.Clock, cfg *config.Config, logger *zap.Logger) (*core.DuplicateGuard, error) {
			reminderCfg, err := cfg.GetReminder()
			if err != nil {
				return nil, err
			}
			return core.NewDuplicateGuard(repo, clock, reminderCfg.Location, logger), nil
		},

		// Routing
		func(cfg *config.Config, logger *zap.Logger) (core.CCRouter, error) {
			routingCfg, err := cfg.GetRouting()
			if err != nil {
				return nil, err
			}
			table := routing.NewTable(routingCfg.DepartmentCC, routingCfg.ConstantCC, logger)
			logger.Debug("Loaded department CC routes", zap.Strings("departments", table.Departments()))
			return table, nil
		},

		// Notifier
		func(f *factory.NotifierFactory) (core.Notifier, error) {
			return f.CreateNotifier()
		},

		// Reminder service
		serviceOptions,
		core.NewReminderService,
		func(s *core.ReminderService) ports.ReminderRunner { return s },
	}

	for _, p := range providers {
		if err := container.Provide(p); err != nil {
			return err
		}
	}
	return nil
}

func serviceOptions(cfg *config.Config, logger *zap.Logger) (core.ServiceOptions, error) {
	reminderCfg, err := cfg.GetReminder()
	if err != nil {
		return core.ServiceOptions{}, err
	}
	routingCfg, err := cfg.GetRouting()
	if err != nil {
		return core.ServiceOptions{}, err
	}

	if routingCfg.VendorEmail == "" {
		logger.Warn("routing.vendor_email is not set, separation notices are disabled")
	}

	return core.ServiceOptions{
		Window: core.Window{
			MinDays: reminderCfg.WindowMinDays,
			MaxDays: reminderCfg.WindowMaxDays,
		},
		Location:               reminderCfg.Location,
		VendorEmail:            routingCfg.VendorEmail,
		HREmail:                routingCfg.HREmail,
		SeparationLookbackDays: reminderCfg.SeparationLookbackDays,
	}, nil
}
