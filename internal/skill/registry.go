package skill

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/opencode-ai/agentcore/internal/logging"
)

// Registry holds the skills discovered under a directory tree (one
// ".md" document per skill) and hot-reloads them on change, the same
// watch-and-reparse shape internal/config uses for its own files.
type Registry struct {
	mu      sync.RWMutex
	dir     string
	skills  map[string]*Skill
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewRegistry loads every "*.md" skill document under dir and returns a
// Registry ready to serve Get/List. A malformed document is logged and
// skipped rather than failing the whole load.
func NewRegistry(dir string) (*Registry, error) {
	r := &Registry{dir: dir, skills: make(map[string]*Skill)}
	if err := r.reload(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) reload() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	loaded := make(map[string]*Skill)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		path := filepath.Join(r.dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			logging.Component("skill").Warn().Err(err).Str("path", path).Msg("skill: read failed")
			continue
		}
		s, err := Parse(string(data))
		if err != nil {
			logging.Component("skill").Warn().Err(err).Str("path", path).Msg("skill: parse failed")
			continue
		}
		loaded[s.Name] = s
	}

	r.mu.Lock()
	r.skills = loaded
	r.mu.Unlock()
	return nil
}

// Get returns the named skill, or (nil, false) if it is not loaded.
func (r *Registry) Get(name string) (*Skill, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.skills[name]
	return s, ok
}

// List returns every currently loaded skill.
func (r *Registry) List() []*Skill {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Skill, 0, len(r.skills))
	for _, s := range r.skills {
		out = append(out, s)
	}
	return out
}

// Put registers or replaces a single skill, used by the Agent Loop's
// metadata side-channel hot-load path (spec step (e)) when a tool call
// returns a skill to load without it existing on disk under dir.
func (r *Registry) Put(s *Skill) {
	r.mu.Lock()
	r.skills[s.Name] = s
	r.mu.Unlock()
}

// Watch starts a background goroutine that reloads the registry
// whenever dir changes on disk.
func (r *Registry) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(r.dir); err != nil {
		w.Close()
		return err
	}
	r.watcher = w
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	go r.run()
	return nil
}

func (r *Registry) run() {
	defer close(r.doneCh)
	for {
		select {
		case <-r.stopCh:
			return
		case ev, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := r.reload(); err != nil {
				logging.Component("skill").Error().Err(err).Msg("skill: reload failed")
			}
		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			logging.Component("skill").Error().Err(err).Msg("skill: watcher error")
		}
	}
}

// Close stops a started watcher, if any.
func (r *Registry) Close() error {
	if r.watcher == nil {
		return nil
	}
	select {
	case <-r.stopCh:
	default:
		close(r.stopCh)
	}
	<-r.doneCh
	return r.watcher.Close()
}
