// Package modelconfig loads per-model-pair overrides (mini-batch size,
// maximum sentence length, pivot slack) from a YAML file that can be edited and
// hot-reloaded without restarting the service, the way this codebase's
// ancestry hot-swaps its per-provider rate limit table.
package modelconfig

import (
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

// Override is the set of knobs a single model pair can override from the
// service-wide defaults.
type Override struct {
	MiniBatchWords int `yaml:"mini_batch_words"`
	MaxLengthBreak int `yaml:"max_length_break"`
	PivotSlack     int `yaml:"pivot_slack"`
}

type fileFormat struct {
	Models map[string]Override `yaml:"models"`
}

// Table is a hot-reloadable, read-mostly table of per-model overrides.
type Table struct {
	mu       sync.RWMutex
	overrides map[string]Override
	path     string
	watcher  *fsnotify.Watcher
}

var defaultPaths = []string{
	os.Getenv("MODELS_CONFIG_PATH"),
	"/app/config/models.yaml",
	"./config/models.yaml",
	"../../config/models.yaml",
	"../../../config/models.yaml",
}

// Load locates and parses a models.yaml from the first candidate path that
// exists, searching upward from the working directory if none of the fixed
// candidates are present. A missing file is not an error; Table then
// behaves as an empty table.
func Load() (*Table, error) {
	t := &Table{overrides: map[string]Override{}}
	path := findConfig()
	if path == "" {
		return t, nil
	}
	if err := t.loadFrom(path); err != nil {
		return nil, err
	}
	t.path = path
	return t, nil
}

func findConfig() string {
	for _, p := range defaultPaths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	wd, err := os.Getwd()
	if err != nil {
		return ""
	}
	for i := 0; i < 6; i++ {
		cand := filepath.Join(wd, "config", "models.yaml")
		if _, err := os.Stat(cand); err == nil {
			return cand
		}
		wd = filepath.Dir(wd)
	}
	return ""
}

func (t *Table) loadFrom(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return err
	}
	t.mu.Lock()
	t.overrides = f.Models
	t.mu.Unlock()
	return nil
}

// For returns the override for modelID and whether one was configured.
func (t *Table) For(modelID string) (Override, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	o, ok := t.overrides[modelID]
	return o, ok
}

// Watch starts an fsnotify watcher on the table's source file and reloads
// it on every write event. Calling Watch on a Table with no known source
// file is a no-op. The returned stop func closes the watcher; callers
// should defer it.
func (t *Table) Watch() (stop func(), err error) {
	if t.path == "" {
		return func() {}, nil
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(filepath.Dir(t.path)); err != nil {
		w.Close()
		return nil, err
	}
	t.watcher = w

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != filepath.Clean(t.path) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := t.loadFrom(t.path); err != nil {
					log.Printf("modelconfig: reload %s failed: %v", t.path, err)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Printf("modelconfig: watch error: %v", err)
			case <-done:
				return
			}
		}
	}()

	return func() {
		close(done)
		w.Close()
	}, nil
}
