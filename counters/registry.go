package counters

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/devopsext/proflog/common"
)

const (
	DefaultWriteTimeout = 5 * time.Second
	DefaultStopTimeout  = 2 * time.Second
)

type options struct {
	writeTimeout time.Duration
	stopTimeout  time.Duration
	socketMode   os.FileMode
	format       Format
}

type Option func(*options)

// WithWriteTimeout bounds the time spent writing one snapshot. Zero disables the deadline.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) { o.writeTimeout = d }
}

// WithStopTimeout bounds each wait for the exporter during Shutdown.
func WithStopTimeout(d time.Duration) Option {
	return func(o *options) { o.stopTimeout = d }
}

// WithSocketMode sets the permission bits of the socket file. Zero keeps the umask default.
func WithSocketMode(mode os.FileMode) Option {
	return func(o *options) { o.socketMode = mode }
}

func WithFormat(f Format) Option {
	return func(o *options) { o.format = f }
}

// Registry tracks the live counter sets and owns the exporter that serves
// them on a Unix socket.
//
// mu guards membership only. lifecycle serializes Init and Shutdown; the
// exporter never takes it, so Shutdown can wait for the exporter while
// holding it.
type Registry struct {
	logger  common.Logger
	options options

	mu      sync.Mutex
	members []*CounterSet
	index   map[*CounterSet]struct{}

	lifecycle sync.Mutex
	exporter  *exporter
	path      string
}

func NewRegistry(logger common.Logger, opts ...Option) *Registry {

	if logger == nil {
		logger = common.NewLogs()
	}

	o := options{
		writeTimeout: DefaultWriteTimeout,
		stopTimeout:  DefaultStopTimeout,
		format:       FormatV1,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	return &Registry{
		logger:  logger,
		options: o,
		index:   make(map[*CounterSet]struct{}),
	}
}

// Add registers s. Adding a set twice panics with ErrAlreadyMember.
func (r *Registry) Add(s *CounterSet) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[s]; ok {
		panic(ErrAlreadyMember)
	}
	r.index[s] = struct{}{}
	r.members = append(r.members, s)
}

// Remove unregisters s. Removing a set that is not registered panics with ErrNotMember.
func (r *Registry) Remove(s *CounterSet) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.index[s]; !ok {
		panic(ErrNotMember)
	}
	delete(r.index, s)
	for i, m := range r.members {
		if m == s {
			r.members = append(r.members[:i], r.members[i+1:]...)
			break
		}
	}
}

// Members returns the registered sets in registration order.
func (r *Registry) Members() []*CounterSet {
	r.mu.Lock()
	defer r.mu.Unlock()

	members := make([]*CounterSet, len(r.members))
	copy(members, r.members)
	return members
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.members)
}

// WriteSnapshot writes the document a socket client would receive.
func (r *Registry) WriteSnapshot(w io.Writer) error {
	return writeDocument(w, r.Members(), r.options.format)
}

func (r *Registry) Samples() []common.Sample {
	var samples []common.Sample
	for _, s := range r.Members() {
		samples = append(samples, s.Samples()...)
	}
	return samples
}

// Init replaces any running exporter with a new one listening on path.
// On error exporting stays disabled and nothing is left open.
func (r *Registry) Init(path string) error {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.shutdown()

	ln, err := listen(path, r.options.socketMode)
	if err != nil {
		return err
	}

	e := newExporter(ln, r)
	e.start()

	r.exporter = e
	r.path = path
	r.logger.Info("Exporting counters on %s...", path)
	return nil
}

// HandleConfigChange starts, restarts or stops the exporter for a new socket path.
func (r *Registry) HandleConfigChange(path string) {
	if common.IsEmpty(path) {
		r.Shutdown()
		return
	}
	if err := r.Init(path); err != nil {
		r.logger.Error("Initializing counters exporter failed: %v", err)
	}
}

func (r *Registry) Shutdown() {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	r.shutdown()
}

func (r *Registry) shutdown() {

	e := r.exporter
	if e == nil {
		return
	}
	r.exporter = nil

	if err := e.shutdown(r.options.stopTimeout); err != nil {
		r.logger.Error("Exporter on %s was abandoned: %v", r.path, err)
	} else if e.Err() != nil {
		r.logger.Warn("Exporter on %s had already failed: %v", r.path, e.Err())
	}
	r.logger.Debug("Exporter on %s is stopped", r.path)
	r.path = ""
}

// Running reports whether an exporter has been started and is still serving.
// An exporter that died on an accept error is not restarted.
func (r *Registry) Running() bool {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	return r.exporter != nil && r.exporter.State() != StateStopped
}

// State returns the exporter state, StateStopped when there is none.
func (r *Registry) State() State {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	if r.exporter == nil {
		return StateStopped
	}
	return r.exporter.State()
}

func (r *Registry) Path() string {
	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	return r.path
}

// Close stops exporting and drops every set that is still registered.
func (r *Registry) Close() {
	r.Shutdown()

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, s := range r.members {
		r.logger.Debug("Dropping counter set %s", s.Name())
	}
	r.members = nil
	r.index = make(map[*CounterSet]struct{})
}
