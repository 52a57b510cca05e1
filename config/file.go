package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentkit/core"
	"github.com/hupe1980/agentkit/logging"
)

// Document is the declarative YAML configuration file.
//
//	models:
//	  fast: openai:gpt-5-mini
//	agents:
//	  - name: researcher
//	    capability: reasoning
//	    agent_type: react
//	    tools: [search]
//	experiments:
//	  writer:
//	    writer_v1: 0.8
//	    writer_v2: 0.2
type Document struct {
	Models      map[core.Capability]string    `yaml:"models,omitempty"`
	Agents      []core.AgentConfig            `yaml:"agents,omitempty"`
	Experiments map[string]map[string]float64 `yaml:"experiments,omitempty"`
}

// Agent returns the named agent of the document.
func (d *Document) Agent(name string) (core.AgentConfig, bool) {
	for _, a := range d.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return core.AgentConfig{}, false
}

// ParseDocument decodes and validates a YAML document. Agents with fatal
// validation findings or duplicate names are rejected.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	seen := map[string]bool{}
	var errs []error
	for _, a := range doc.Agents {
		if seen[a.Name] {
			errs = append(errs, fmt.Errorf("duplicate agent %q", a.Name))
		}
		seen[a.Name] = true
		if err := core.Validate(a).Err(); err != nil {
			errs = append(errs, err)
		}
		if err := core.ValidateWorkflow(a); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &doc, nil
}

// LoadFile reads and parses a YAML document.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return ParseDocument(data)
}

// FileSourceOptions configures a FileSource.
type FileSourceOptions struct {
	Logger logging.Logger
	// OnReload is called with every successfully (re)loaded document.
	OnReload func(doc *Document)
}

// FileSource serves a YAML document as a CentralSource. Watch keeps it in
// sync with the file; a reload that fails to parse keeps the previous document.
type FileSource struct {
	path     string
	logger   logging.Logger
	onReload func(doc *Document)

	mu  sync.RWMutex
	doc *Document
}

// NewFileSource loads path and returns a FileSource serving it.
func NewFileSource(path string, optFns ...func(o *FileSourceOptions)) (*FileSource, error) {
	opts := FileSourceOptions{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	s := &FileSource{path: path, logger: logging.OrNoOp(opts.Logger), onReload: opts.OnReload}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// AgentConfig implements CentralSource.
func (s *FileSource) AgentConfig(_ context.Context, name string) (*core.AgentConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.doc.Agent(name)
	if !ok {
		return nil, nil
	}
	c := cfg.Clone()
	return &c, nil
}

// Document returns the current document.
func (s *FileSource) Document() *Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc
}

// Reload re-reads the file.
func (s *FileSource) Reload() error {
	doc, err := LoadFile(s.path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.doc = doc
	s.mu.Unlock()
	s.logger.Info("config.file.loaded", "path", s.path, "agents", len(doc.Agents))
	if s.onReload != nil {
		s.onReload(doc)
	}
	return nil
}

// Watch reloads the document whenever the file changes until ctx is done.
// The parent directory is watched so editors that replace the file by
// rename are handled.
func (s *FileSource) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch %s: %w", s.path, err)
	}
	target := filepath.Clean(s.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if err := s.Reload(); err != nil {
				s.logger.Warn("config.file.reload_failed", "path", s.path, "error", err.Error())
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("config.file.watch_error", "error", err.Error())
		}
	}
}
