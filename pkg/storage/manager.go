package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Policy decides what happens when two items map to the same file name
type Policy string

const (
	// PolicyOverwrite lets a later item replace the earlier file
	PolicyOverwrite Policy = "overwrite"
	// PolicySuffix appends _2, _3, ... until the name is free
	PolicySuffix Policy = "suffix"
)

const partSuffix = ".part"

// Options configures a Manager
type Options struct {
	Dir         string
	FallbackDir string
	Extension   string
	Policy      Policy
}

// Manager handles the destination directory and file naming for one crawl
type Manager struct {
	dir      string
	ext      string
	policy   Policy
	fellBack bool
	reserved map[string]bool
	saved    int
	mu       sync.RWMutex
}

// NewManager creates the destination directory, falling back to
// opts.FallbackDir when the primary cannot be created or written.
func NewManager(opts Options) (*Manager, error) {
	ext := strings.TrimPrefix(opts.Extension, ".")
	if ext == "" {
		ext = "mp4"
	}
	policy := opts.Policy
	if policy == "" {
		policy = PolicySuffix
	}

	dir, fellBack, err := prepareDir(opts.Dir, opts.FallbackDir)
	if err != nil {
		return nil, err
	}

	return &Manager{
		dir:      dir,
		ext:      ext,
		policy:   policy,
		fellBack: fellBack,
		reserved: make(map[string]bool),
	}, nil
}

func prepareDir(primary, fallback string) (string, bool, error) {
	primaryErr := ensureWritable(primary)
	if primaryErr == nil {
		return primary, false, nil
	}
	if fallback == "" || fallback == primary {
		return "", false, fmt.Errorf("output directory %s is not writable: %w", primary, primaryErr)
	}
	if err := ensureWritable(fallback); err != nil {
		return "", false, fmt.Errorf("no writable output directory: %w", errors.Join(primaryErr, err))
	}
	return fallback, true, nil
}

func ensureWritable(dir string) error {
	if dir == "" {
		return errors.New("empty directory path")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	check, err := os.CreateTemp(dir, ".dycrawler-writecheck-*")
	if err != nil {
		return err
	}
	name := check.Name()
	check.Close()
	return os.Remove(name)
}

// Dir returns the directory files are written to
func (m *Manager) Dir() string {
	return m.dir
}

// UsedFallback reports whether the fallback directory was chosen
func (m *Manager) UsedFallback() bool {
	return m.fellBack
}

// Reserve returns the destination path for a sanitized title and claims it
// for this run. Under PolicySuffix a name already reserved in this run or
// present on disk gets a numeric suffix; under PolicyOverwrite the plain
// name is always returned.
func (m *Manager) Reserve(title string) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := title + "." + m.ext
	if m.policy == PolicySuffix {
		for n := 2; m.taken(name); n++ {
			name = fmt.Sprintf("%s_%d.%s", title, n, m.ext)
		}
	}
	m.reserved[name] = true
	return filepath.Join(m.dir, name)
}

func (m *Manager) taken(name string) bool {
	if m.reserved[name] {
		return true
	}
	_, err := os.Stat(filepath.Join(m.dir, name))
	return err == nil
}

// Create opens a partial file for path. The data only appears at path once
// Commit succeeds.
func (m *Manager) Create(path string) (*PartialFile, error) {
	tmp := path + partSuffix
	f, err := os.Create(tmp)
	if err != nil {
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	return &PartialFile{File: f, final: path, manager: m}, nil
}

// Saved returns the number of files committed through this manager
func (m *Manager) Saved() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saved
}

// PartialFile is an in-progress download
type PartialFile struct {
	*os.File
	final   string
	manager *Manager
	done    bool
}

// Path returns the final destination
func (p *PartialFile) Path() string {
	return p.final
}

// Commit closes the partial file and atomically renames it into place
func (p *PartialFile) Commit() error {
	if p.done {
		return errors.New("partial file already finished")
	}
	p.done = true

	tmp := p.File.Name()
	if err := p.File.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(tmp, p.final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	p.manager.mu.Lock()
	p.manager.saved++
	p.manager.mu.Unlock()
	return nil
}

// Discard closes and removes the partial file
func (p *PartialFile) Discard() {
	if p.done {
		return
	}
	p.done = true
	tmp := p.File.Name()
	p.File.Close()
	os.Remove(tmp)
}

// Abandon closes the partial file and leaves it on disk
func (p *PartialFile) Abandon() {
	if p.done {
		return
	}
	p.done = true
	p.File.Close()
}
