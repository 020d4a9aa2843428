package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/devopsext/proflog/common"
	"github.com/devopsext/utils"
)

type VictoriaOptions struct {
	URL    string
	Listen string
	Prefix string
}

// Victoria exposes the samples of a source in Prometheus text format using
// VictoriaMetrics/metrics. Values are read on every scrape.
type Victoria struct {
	options VictoriaOptions
	logger  common.Logger
	source  common.Source

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	stopped  bool
}

func (v *Victoria) ident(s common.Sample, suffix string) string {

	name := common.SanitizeName(v.options.Prefix, s.Name, suffix)
	return fmt.Sprintf(`%s{set=%q}`, name, s.Set)
}

// buildSet turns the current samples into a fresh metrics set. Tracked slots
// become a _count and a _sum series.
func (v *Victoria) buildSet(samples []common.Sample) *metrics.Set {

	set := metrics.NewSet()
	for _, s := range samples {

		value := s.Value()
		if !s.Tracked {
			set.GetOrCreateGauge(v.ident(s, ""), func() float64 { return value })
			continue
		}

		count := float64(s.Count)
		set.GetOrCreateGauge(v.ident(s, "count"), func() float64 { return count })
		set.GetOrCreateGauge(v.ident(s, "sum"), func() float64 { return value })
	}
	return set
}

func (v *Victoria) ServeHTTP(w http.ResponseWriter, req *http.Request) {

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	v.buildSet(v.source.Samples()).WritePrometheus(w)
}

// Publish does nothing, values are pulled on scrape.
func (v *Victoria) Publish(samples []common.Sample) {}

// Start listens and serves until Stop. It returns false when the endpoint
// could not be started or stopped with an error.
func (v *Victoria) Start() bool {

	v.logger.Info("Start victoria endpoint...")

	listener, err := net.Listen("tcp", v.options.Listen)
	if err != nil {
		v.logger.Error(err)
		return false
	}

	mux := http.NewServeMux()
	mux.Handle(v.options.URL, v)
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	v.mu.Lock()
	if v.stopped {
		v.mu.Unlock()
		listener.Close()
		v.logger.Debug("Victoria endpoint was stopped before serving")
		return true
	}
	v.listener = listener
	v.server = server
	v.mu.Unlock()

	v.logger.Info("Victoria is up. Listening on %s...", listener.Addr())
	err = server.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		v.logger.Error(err)
		return false
	}
	return true
}

func (v *Victoria) StartInWaitGroup(wg *sync.WaitGroup) {

	wg.Add(1)

	go func(wg *sync.WaitGroup) {

		defer wg.Done()
		v.Start()
	}(wg)
}

// Addr returns the bound address once Start is listening.
func (v *Victoria) Addr() net.Addr {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.listener == nil {
		return nil
	}
	return v.listener.Addr()
}

// Stop shuts the endpoint down. A Start that has not served yet will not.
func (v *Victoria) Stop() {
	v.mu.Lock()
	v.stopped = true
	server := v.server
	v.mu.Unlock()

	if server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}
}

func NewVictoria(options VictoriaOptions, source common.Source, logger common.Logger, stdout *Stdout) *Victoria {

	if logger == nil {
		logger = stdout
	}

	if utils.IsEmpty(options.Listen) {
		stdout.Debug("Victoria endpoint is disabled.")
		return nil
	}

	if utils.IsEmpty(options.URL) {
		options.URL = "/metrics"
	}

	return &Victoria{
		options: options,
		logger:  logger,
		source:  source,
	}
}
