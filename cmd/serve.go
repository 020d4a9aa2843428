package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/devopsext/proflog/common"
	"github.com/devopsext/proflog/config"
	"github.com/devopsext/proflog/counters"
	"github.com/devopsext/proflog/provider"
	"github.com/spf13/cobra"
)

const runtimeInterval = time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Export process counters on the admin socket and to the configured backends",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd)
		},
	}
}

func newStdout(cfg config.LoggingConfig) *provider.Stdout {

	s := provider.NewStdout(provider.StdoutOptions{
		Format:          cfg.Format,
		Level:           cfg.Level,
		Template:        cfg.Template,
		TimestampFormat: cfg.TimestampFormat,
		TextColors:      cfg.TextColors,
	})
	s.SetCallerOffset(2)
	return s
}

func newRegistry(cfg config.AdminSocketConfig) (*counters.Registry, error) {

	format, err := counters.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	mode, err := cfg.FileMode()
	if err != nil {
		return nil, err
	}

	return counters.NewRegistry(logs,
		counters.WithFormat(format),
		counters.WithSocketMode(mode),
		counters.WithWriteTimeout(cfg.WriteTimeout),
	), nil
}

// newPublishers builds every backend enabled in cfg. Pull endpoints are
// started in mainWG.
func newPublishers(cfg *config.Config, source common.Source) *common.Publishers {

	publishers := common.NewPublishers()

	prometheus := provider.NewPrometheus(provider.PrometheusOptions{
		URL:    cfg.Prometheus.URL,
		Listen: cfg.Prometheus.Listen,
		Prefix: cfg.Prometheus.Prefix,
	}, source, logs, stdout)
	if prometheus != nil {
		prometheus.StartInWaitGroup(&mainWG)
		publishers.Register(prometheus)
	}

	victoria := provider.NewVictoria(provider.VictoriaOptions{
		URL:    cfg.Victoria.URL,
		Listen: cfg.Victoria.Listen,
		Prefix: cfg.Victoria.Prefix,
	}, source, logs, stdout)
	if victoria != nil {
		victoria.StartInWaitGroup(&mainWG)
		publishers.Register(victoria)
	}

	datadog := provider.NewDataDogMeter(provider.DataDogMeterOptions{
		DataDogOptions: provider.DataDogOptions{
			ServiceName: "proflog",
			Environment: cfg.Environment,
			Version:     VERSION,
			Tags:        cfg.DataDog.Tags,
		},
		AgentHost: cfg.DataDog.Host,
		AgentPort: cfg.DataDog.Port,
		Prefix:    cfg.DataDog.Prefix,
	}, logs, stdout)
	if datadog != nil {
		publishers.Register(datadog)
	}

	newrelic := provider.NewNewRelicMeter(provider.NewRelicMeterOptions{
		NewRelicOptions: provider.NewRelicOptions{
			ApiKey:      cfg.NewRelic.APIKey,
			ServiceName: "proflog",
			Environment: cfg.Environment,
			Version:     VERSION,
			Attributes:  cfg.NewRelic.Attributes,
			Timeout:     cfg.NewRelic.Timeout,
			Debug:       cfg.Logging.Level == "debug",
		},
		Endpoint: cfg.NewRelic.Endpoint,
		Prefix:   cfg.NewRelic.Prefix,
	}, logs, stdout)
	if newrelic != nil {
		publishers.Register(newrelic)
	}

	return publishers
}

func serve(cmd *cobra.Command) error {

	v, cfg, err := config.Load(rootOptions.Config, cmd.Flags())
	if err != nil {
		return err
	}

	stdout = newStdout(cfg.Logging)
	logs.Register(stdout)
	logs.Info("Booting proflog %s...", VERSION)

	registry, err := newRegistry(cfg.AdminSocket)
	if err != nil {
		return err
	}

	rt := newRuntimeCounters()
	registry.Add(rt.set)
	registry.HandleConfigChange(cfg.AdminSocket.Path)

	watcher := config.NewWatcher(v, cfg, logs)
	watcher.Observe([]string{config.KeyAdminSocketPath}, func(c *config.Config, changed []string) {
		registry.HandleConfigChange(c.AdminSocket.Path)
	})
	watcher.Start()

	publishers := newPublishers(cfg, registry)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	mainWG.Add(1)
	go func() {
		defer mainWG.Done()
		rt.run(ctx, runtimeInterval)
	}()

	logs.Info("Wait until it will be interrupted...")
	publishers.Run(ctx, registry, cfg.Publish.Interval)

	logs.Info("Exiting...")
	registry.Close()
	publishers.Stop()
	mainWG.Wait()
	return nil
}
