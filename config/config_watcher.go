package config

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

var _ Watcher = (*ConfigWatcher)(nil)

// ConfigWatcher reloads the configuration file when it changes on disk.
// A reload that fails to parse or validate is logged and discarded; the
// previous configuration stays current, so a bad edit never takes the
// gateway down.
type ConfigWatcher struct {
	current    atomic.Value
	configPath string
	watcher    *fsnotify.Watcher
	logger     *zap.Logger

	mu          sync.Mutex
	subscribers []chan<- *Config
	closed      bool
}

// NewConfigWatcher loads the file at configPath and starts watching it.
// The initial load must succeed; later reload failures only log.
func NewConfigWatcher(configPath string, logger *zap.Logger) (*ConfigWatcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	initial, err := LoadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load initial config: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(configPath); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch config file: %w", err)
	}

	cw := &ConfigWatcher{
		configPath: configPath,
		watcher:    watcher,
		logger:     logger,
	}
	cw.current.Store(initial)

	go cw.watch()
	return cw, nil
}

// Subscribe registers for reload notifications. Each successful reload is
// sent to every subscriber that is ready to receive.
func (cw *ConfigWatcher) Subscribe() <-chan *Config {
	ch := make(chan *Config, 1)
	cw.mu.Lock()
	cw.subscribers = append(cw.subscribers, ch)
	cw.mu.Unlock()
	return ch
}

// Current returns the most recently loaded valid configuration.
func (cw *ConfigWatcher) Current() *Config {
	return cw.current.Load().(*Config)
}

func (cw *ConfigWatcher) watch() {
	for {
		select {
		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			// Editors that write via rename emit Create rather than Write
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				cw.reload()
			}
		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			cw.logger.Error("Config watcher error", zap.Error(err))
		}
	}
}

// reload re-reads the config file and publishes it if valid. LoadFile
// already validates, so anything it returns is safe to store.
func (cw *ConfigWatcher) reload() {
	cw.logger.Info("Config file changed, reloading",
		zap.String("path", cw.configPath),
	)

	updated, err := LoadFile(cw.configPath)
	if err != nil {
		cw.logger.Error("Keeping previous config, reload failed", zap.Error(err))
		return
	}

	cw.current.Store(updated)

	cw.mu.Lock()
	defer cw.mu.Unlock()
	for _, sub := range cw.subscribers {
		select {
		case sub <- updated:
		default:
			// Subscriber has an unread update pending
		}
	}

	cw.logger.Info("Configuration reloaded")
}

// Close stops watching and closes all subscriber channels.
func (cw *ConfigWatcher) Close() error {
	cw.mu.Lock()
	if !cw.closed {
		cw.closed = true
		for _, sub := range cw.subscribers {
			close(sub)
		}
		cw.subscribers = nil
	}
	cw.mu.Unlock()
	return cw.watcher.Close()
}
