package provider

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/devopsext/proflog/common"
	"github.com/devopsext/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type PrometheusOptions struct {
	URL    string
	Listen string
	Prefix string
}

// PrometheusCollector is an unchecked prometheus.Collector over a source:
// the set of series depends on what is registered at scrape time.
type PrometheusCollector struct {
	prefix string
	source common.Source
	logger common.Logger
}

// Prometheus serves a PrometheusCollector with client_golang.
type Prometheus struct {
	options   PrometheusOptions
	logger    common.Logger
	registry  *prometheus.Registry
	collector *PrometheusCollector

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	stopped  bool
}

func (pc *PrometheusCollector) Describe(ch chan<- *prometheus.Desc) {}

// Collect emits one series per sample, two for tracked ones. A family keeps
// the type of its first series and every series is sent once per scrape;
// anything colliding with that is dropped, since the registry would fail the
// whole gather for it.
func (pc *PrometheusCollector) Collect(ch chan<- prometheus.Metric) {

	families := make(map[string]prometheus.ValueType)
	seen := make(map[string]bool)

	emit := func(name, set string, vt prometheus.ValueType, value float64) {

		if t, ok := families[name]; ok && t != vt {
			pc.logger.Debug("Prometheus series %s of set %s conflicts with another type, skipped", name, set)
			return
		}
		key := name + "\xff" + set
		if seen[key] {
			pc.logger.Debug("Prometheus series %s of set %s is duplicated, skipped", name, set)
			return
		}
		families[name] = vt
		seen[key] = true

		desc := prometheus.NewDesc(name, name, nil, prometheus.Labels{"set": set})
		ch <- prometheus.MustNewConstMetric(desc, vt, value)
	}

	for _, s := range pc.source.Samples() {

		if !s.Tracked {
			emit(common.SanitizeName(pc.prefix, s.Name), s.Set, prometheus.GaugeValue, s.Value())
			continue
		}
		emit(common.SanitizeName(pc.prefix, s.Name, "count"), s.Set, prometheus.CounterValue, float64(s.Count))
		emit(common.SanitizeName(pc.prefix, s.Name, "sum"), s.Set, prometheus.GaugeValue, s.Value())
	}
}

func NewPrometheusCollector(prefix string, source common.Source, logger common.Logger) *PrometheusCollector {

	if logger == nil {
		logger = common.NewLogs()
	}
	return &PrometheusCollector{prefix: prefix, source: source, logger: logger}
}

// Publish does nothing, values are pulled on scrape.
func (p *Prometheus) Publish(samples []common.Sample) {}

func (p *Prometheus) Start() bool {

	p.logger.Info("Start prometheus endpoint...")

	listener, err := net.Listen("tcp", p.options.Listen)
	if err != nil {
		p.logger.Error(err)
		return false
	}

	mux := http.NewServeMux()
	mux.Handle(p.options.URL, promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{}))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		listener.Close()
		p.logger.Debug("Prometheus endpoint was stopped before serving")
		return true
	}
	p.listener = listener
	p.server = server
	p.mu.Unlock()

	p.logger.Info("Prometheus is up. Listening on %s...", listener.Addr())
	err = server.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		p.logger.Error(err)
		return false
	}
	return true
}

func (p *Prometheus) StartInWaitGroup(wg *sync.WaitGroup) {

	wg.Add(1)

	go func(wg *sync.WaitGroup) {

		defer wg.Done()
		p.Start()
	}(wg)
}

func (p *Prometheus) Addr() net.Addr {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.listener == nil {
		return nil
	}
	return p.listener.Addr()
}

// Stop shuts the endpoint down. A Start that has not served yet will not.
func (p *Prometheus) Stop() {
	p.mu.Lock()
	p.stopped = true
	server := p.server
	p.mu.Unlock()

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}
}

func NewPrometheus(options PrometheusOptions, source common.Source, logger common.Logger, stdout *Stdout) *Prometheus {

	if logger == nil {
		logger = stdout
	}

	if utils.IsEmpty(options.Listen) {
		stdout.Debug("Prometheus endpoint is disabled.")
		return nil
	}

	if utils.IsEmpty(options.URL) {
		options.URL = "/metrics"
	}

	collector := NewPrometheusCollector(options.Prefix, source, logger)
	registry := prometheus.NewRegistry()
	if err := registry.Register(collector); err != nil {
		logger.Error(err)
		return nil
	}

	return &Prometheus{
		options:   options,
		logger:    logger,
		registry:  registry,
		collector: collector,
	}
}
