package counters

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/devopsext/proflog/common"
)

type State int32

const (
	StateWaiting State = iota
	StateAccepting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateAccepting:
		return "accepting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// exporter serves one snapshot per accepted connection until stopped.
type exporter struct {
	listener     *net.UnixListener
	registry     *Registry
	logger       common.Logger
	format       Format
	writeTimeout time.Duration

	state atomic.Int32
	err   error

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	mu     sync.Mutex
	active net.Conn
}

func newExporter(listener *net.UnixListener, registry *Registry) *exporter {
	return &exporter{
		listener:     listener,
		registry:     registry,
		logger:       registry.logger,
		format:       registry.options.format,
		writeTimeout: registry.options.writeTimeout,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

func (e *exporter) State() State {
	return State(e.state.Load())
}

func (e *exporter) setState(s State) {
	e.state.Store(int32(s))
}

// Err returns the error the exporter died with, if any. Only valid once done is closed.
func (e *exporter) Err() error {
	return e.err
}

func (e *exporter) start() {
	go e.run()
}

func (e *exporter) run() {

	conns := make(chan net.Conn)
	errs := make(chan error, 1)
	acceptDone := make(chan struct{})

	go func() {
		defer close(acceptDone)
		e.accept(conns, errs)
	}()

	defer func() {
		e.listener.Close()
		<-acceptDone
		e.setState(StateStopped)
		close(e.done)
	}()

	for {
		e.setState(StateWaiting)

		select {
		case <-e.stop:
			e.logger.Debug("Exporter on %s is stopping...", e.listener.Addr())
			return
		case err := <-errs:
			e.err = err
			e.logger.Error("Exporter on %s failed: %v", e.listener.Addr(), err)
			return
		case conn := <-conns:
			e.setState(StateAccepting)
			e.serve(conn)
		}
	}
}

// accept hands connections to run until the listener is closed or fails.
func (e *exporter) accept(conns chan<- net.Conn, errs chan<- error) {

	for {
		conn, err := e.listener.Accept()
		if err != nil {
			if retryable(err) {
				continue
			}
			select {
			case <-e.stop:
			default:
				errs <- err
			}
			return
		}

		select {
		case conns <- conn:
		case <-e.stop:
			conn.Close()
			return
		}
	}
}

func retryable(err error) bool {
	if errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.ECONNABORTED) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func (e *exporter) serve(conn net.Conn) {

	id := common.GetGuid()
	e.logger.Debug("Exporter connection %s accepted", id)

	e.mu.Lock()
	e.active = conn
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.active = nil
		e.mu.Unlock()
		conn.Close()
	}()

	doc := appendDocument(nil, e.registry.Members(), e.format)

	if e.writeTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(e.writeTimeout)); err != nil {
			e.logger.Warn("Exporter connection %s: %v", id, err)
			return
		}
	}

	n, err := conn.Write(doc)
	if err != nil {
		e.logger.Warn("Exporter connection %s: wrote %d of %d bytes: %v", id, n, len(doc), err)
		return
	}
	e.logger.Debug("Exporter connection %s served %d bytes", id, n)
}

// shutdown asks the exporter to stop and waits for it. When the exporter is
// still busy after timeout the in-flight connection is closed and it gets one
// more timeout to finish. ErrExporterStuck means the goroutine was abandoned.
func (e *exporter) shutdown(timeout time.Duration) error {

	e.stopOnce.Do(func() {
		close(e.stop)
		// unblocks a pending Accept
		e.listener.Close()
	})

	if e.wait(timeout) {
		return nil
	}

	e.mu.Lock()
	if e.active != nil {
		e.active.Close()
	}
	e.mu.Unlock()

	if e.wait(timeout) {
		return nil
	}
	return ErrExporterStuck
}

func (e *exporter) wait(timeout time.Duration) bool {
	if timeout <= 0 {
		<-e.done
		return true
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-e.done:
		return true
	case <-timer.C:
		return false
	}
}
