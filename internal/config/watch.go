package config

import (
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/opencode-ai/agentcore/internal/logging"
)

// Watcher reloads configuration when the global or project config file
// changes on disk, notifying subscribers with the freshly merged Config.
type Watcher struct {
	watcher   *fsnotify.Watcher
	directory string
	onChange  func(*Config)
	stopCh    chan struct{}
	doneCh    chan struct{}
	mu        sync.Mutex
	started   bool
}

// NewWatcher creates a config file watcher for directory's project config
// plus the global config directory. onChange is invoked with the result of
// a fresh Load whenever either file is written.
func NewWatcher(directory string, onChange func(*Config)) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := w.Add(GetPaths().Config); err != nil {
		logging.Debug().Err(err).Msg("config: global config dir not watchable")
	}
	if directory != "" {
		if err := w.Add(directory + "/.agentcore"); err != nil {
			logging.Debug().Err(err).Msg("config: project config dir not watchable")
		}
	}

	return &Watcher{
		watcher:   w,
		directory: directory,
		onChange:  onChange,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return
	}
	w.started = true
	w.mu.Unlock()
	go w.run()
}

func (w *Watcher) run() {
	defer close(w.doneCh)
	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			cfg, err := Load(w.directory)
			if err != nil {
				logging.Error().Err(err).Msg("config: reload failed")
				continue
			}
			logging.Info().Str("path", ev.Name).Msg("config: reloaded")
			if w.onChange != nil {
				w.onChange(cfg)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Error().Err(err).Msg("config: watcher error")
		}
	}
}

// Stop stops the watcher and releases its underlying fsnotify handle.
func (w *Watcher) Stop() error {
	select {
	case <-w.stopCh:
	default:
		close(w.stopCh)
	}
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if started {
		<-w.doneCh
	}
	return w.watcher.Close()
}
