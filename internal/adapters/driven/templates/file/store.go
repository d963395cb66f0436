// Package file loads instruction texts from user-editable files on
// disk, with embedded defaults and optional live reload via fsnotify.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/copilot-core/internal/core/ports/driven"
	"github.com/custodia-labs/copilot-core/internal/logger"
)

// Ensure TemplateStore implements the interface.
var _ driven.TemplateStore = (*TemplateStore)(nil)

// TemplateStore loads instruction texts from a configurable directory
// with fallback to embedded defaults.
//
// The store uses lazy initialisation - files are only created when
// first accessed, not in the constructor. This makes testing easier
// and avoids unexpected I/O.
type TemplateStore struct {
	mu       sync.RWMutex
	dir      string
	cache    map[string]string
	initOnce sync.Once
	initErr  error
}

// defaultInstructions contains embedded default texts. These are used
// when user files don't exist and as the initial content for new files.
var defaultInstructions = map[string]string{
	driven.InstructionSystem: `You are a knowledge copilot. Answer questions using only the provided
document context. If the context does not contain the answer, say so
plainly instead of guessing.`,

	driven.InstructionClarify: `The retrieved context is not strong enough to answer confidently.
Do NOT answer the question. Instead, ask one short clarifying question
that would help narrow the request down, and mention which of the
available documents look closest to the topic.`,

	driven.InstructionCitation: `Cite every fact with its source in the form [filename#chunk].
List the sources you used at the end of the answer.`,
}

// NewTemplateStore creates a new file-based instruction store.
// If dir is empty, defaults to ~/.copilot/instructions/.
//
// The constructor does not perform any I/O - directory creation and
// file writes happen lazily on first Load() call.
func NewTemplateStore(dir string) (*TemplateStore, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("get home directory: %w", err)
		}
		dir = filepath.Join(home, ".copilot", "instructions")
	}

	return &TemplateStore{
		dir:   dir,
		cache: make(map[string]string),
	}, nil
}

// Load returns the instruction text for the given name.
// On first call, initialises the directory and creates default files.
// Returns cached value if available, otherwise loads from file.
// Falls back to the embedded default if the file doesn't exist.
func (s *TemplateStore) Load(name string) (string, error) {
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		// Fall back to embedded defaults if init failed
		if text, ok := defaultInstructions[name]; ok {
			return text, nil
		}
		return "", fmt.Errorf("instruction store init failed: %w", s.initErr)
	}

	s.mu.RLock()
	if text, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return text, nil
	}
	s.mu.RUnlock()

	// Load from file (no lock held during I/O)
	text, err := s.loadFromFile(name)
	if err != nil {
		if fallback, ok := defaultInstructions[name]; ok {
			return fallback, nil
		}
		return "", fmt.Errorf("load instruction %q: %w", name, err)
	}

	s.mu.Lock()
	if cached, ok := s.cache[name]; ok {
		// Another goroutine loaded it first, use their value
		text = cached
	} else {
		s.cache[name] = text
	}
	s.mu.Unlock()

	return text, nil
}

// Reload clears the cache, forcing fresh loads from disk.
func (s *TemplateStore) Reload() {
	s.mu.Lock()
	s.cache = make(map[string]string)
	s.mu.Unlock()
}

// Dir returns the instruction directory path.
func (s *TemplateStore) Dir() string {
	return s.dir
}

// Watch reloads the store whenever a file in the instruction directory
// changes. Blocks until the context is cancelled.
func (s *TemplateStore) Watch(ctx context.Context) error {
	s.initOnce.Do(s.initialise)
	if s.initErr != nil {
		return fmt.Errorf("instruction store init failed: %w", s.initErr)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(s.dir); err != nil {
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				logger.Debug("instruction file changed: %s", event.Name)
				s.Reload()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("instruction watcher: %v", err)
		}
	}
}

// initialise creates the instruction directory and default files.
// Called once via sync.Once on first Load().
func (s *TemplateStore) initialise() {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		s.initErr = fmt.Errorf("create instruction directory: %w", err)
		return
	}

	// Create default files (only if they don't exist)
	for name, content := range defaultInstructions {
		path := filepath.Join(s.dir, name+".txt")
		if _, err := os.Stat(path); os.IsNotExist(err) {
			if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
				s.initErr = fmt.Errorf("create default instruction %q: %w", name, err)
				return
			}
		}
	}
}

// loadFromFile reads an instruction text from disk.
func (s *TemplateStore) loadFromFile(name string) (string, error) {
	path := filepath.Join(s.dir, name+".txt")
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}
