package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/devopsext/proflog/common"
)

// ChangeFunc receives the new configuration and the tracked keys whose values changed.
type ChangeFunc func(cfg *Config, changed []string)

type observer struct {
	keys []string
	fn   ChangeFunc
}

// Watcher reloads the configuration when its file changes and notifies
// observers whose tracked keys changed value.
type Watcher struct {
	v      *viper.Viper
	logger common.Logger

	mu        sync.Mutex
	current   *Config
	values    map[string]string
	observers []observer
}

func NewWatcher(v *viper.Viper, cfg *Config, logger common.Logger) *Watcher {

	if logger == nil {
		logger = common.NewLogs()
	}

	return &Watcher{
		v:       v,
		logger:  logger,
		current: cfg,
		values:  make(map[string]string),
	}
}

// Observe registers fn for keys. The current values become the baseline,
// fn is not called for them.
func (w *Watcher) Observe(keys []string, fn ChangeFunc) {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, k := range keys {
		w.values[k] = w.value(k)
	}
	w.observers = append(w.observers, observer{keys: keys, fn: fn})
}

func (w *Watcher) value(key string) string {
	return fmt.Sprint(w.v.Get(key))
}

func (w *Watcher) Current() *Config {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.current
}

// Start watches the config file in use, if any.
func (w *Watcher) Start() bool {

	file := w.v.ConfigFileUsed()
	if file == "" {
		w.logger.Debug("No config file in use, changes are not watched")
		return false
	}

	w.v.OnConfigChange(func(e fsnotify.Event) {
		w.logger.Info("Config file %s changed (%s)", e.Name, e.Op)
		if err := w.Reload(); err != nil {
			w.logger.Error(err)
		}
	})
	w.v.WatchConfig()
	w.logger.Info("Watching config file %s...", file)
	return true
}

// Reload decodes the current viper state and notifies observers. An invalid
// configuration is rejected and the previous one stays current.
func (w *Watcher) Reload() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	cfg, err := Decode(w.v)
	if err != nil {
		return err
	}
	w.current = cfg

	changed := make(map[string]bool)
	for k, old := range w.values {
		if v := w.value(k); v != old {
			w.values[k] = v
			changed[k] = true
		}
	}

	for _, o := range w.observers {
		var keys []string
		for _, k := range o.keys {
			if changed[k] {
				keys = append(keys, k)
			}
		}
		if len(keys) > 0 {
			o.fn(cfg, keys)
		}
	}
	return nil
}
