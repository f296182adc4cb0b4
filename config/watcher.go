package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/golang/glog"
)

// ChangeCallback is called when the configuration changes on disk.
type ChangeCallback func(oldConfig, newConfig *Config)

// Watcher watches a configuration file and reloads it on change.
type Watcher struct {
	configFile string
	loader     *Loader

	config   *Config
	configMu sync.RWMutex

	fsWatcher *fsnotify.Watcher

	callbacks   []ChangeCallback
	callbacksMu sync.RWMutex

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWatcher creates a watcher and loads the initial configuration.
func NewWatcher(configFile string, loader *Loader) (*Watcher, error) {
	if _, err := formatForFile(configFile); err != nil {
		return nil, err
	}
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fs watcher: %w", err)
	}

	config, err := loader.LoadFromFile(configFile)
	if err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("load initial config: %w", err)
	}

	return &Watcher{
		configFile: configFile,
		loader:     loader,
		config:     config,
		fsWatcher:  fsWatcher,
		stop:       make(chan struct{}),
	}, nil
}

// Start begins watching the configuration file.
func (w *Watcher) Start() error {
	if err := w.fsWatcher.Add(w.configFile); err != nil {
		return fmt.Errorf("watch config file: %w", err)
	}
	w.wg.Add(1)
	go w.watchLoop()
	return nil
}

// Stop stops watching. Safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stop)
		err = w.fsWatcher.Close()
		w.wg.Wait()
	})
	return err
}

// Config returns the currently loaded configuration.
func (w *Watcher) Config() *Config {
	w.configMu.RLock()
	defer w.configMu.RUnlock()
	return w.config
}

// OnChange registers a callback for configuration changes.
func (w *Watcher) OnChange(callback ChangeCallback) {
	w.callbacksMu.Lock()
	defer w.callbacksMu.Unlock()
	w.callbacks = append(w.callbacks, callback)
}

// Reload reloads the configuration immediately.
func (w *Watcher) Reload() error {
	return w.reload()
}

// watchLoop handles file system events with a debounce so editors that
// write in several steps trigger a single reload.
func (w *Watcher) watchLoop() {
	defer w.wg.Done()

	var debounce *time.Timer
	const debounceDelay = 200 * time.Millisecond

	for {
		select {
		case <-w.stop:
			if debounce != nil {
				debounce.Stop()
			}
			return

		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if ev.Name != w.configFile {
				continue
			}
			switch {
			case ev.Op&(fsnotify.Write|fsnotify.Create) != 0:
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(debounceDelay, func() {
					if err := w.reload(); err != nil {
						glog.Errorf("config reload failed: %v", err)
					}
				})
			case ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
				glog.Warningf("config file %s removed or renamed", w.configFile)
				// Re-add later in case the file comes back
				time.AfterFunc(time.Second, func() {
					w.fsWatcher.Add(w.configFile)
				})
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			glog.Errorf("config watcher error: %v", err)
		}
	}
}

// reload loads the file again and notifies the callbacks.
func (w *Watcher) reload() error {
	newConfig, err := w.loader.LoadFromFile(w.configFile)
	if err != nil {
		return err
	}

	w.configMu.Lock()
	oldConfig := w.config
	w.config = newConfig
	w.configMu.Unlock()

	w.callbacksMu.RLock()
	callbacks := make([]ChangeCallback, len(w.callbacks))
	copy(callbacks, w.callbacks)
	w.callbacksMu.RUnlock()

	for _, cb := range callbacks {
		cb(oldConfig, newConfig)
	}
	glog.V(1).Infof("configuration reloaded from %s", w.configFile)
	return nil
}
