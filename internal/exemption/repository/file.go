package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	exemptiondomain "github.com/smallbiznis/labdesk/internal/exemption/domain"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// FileStore keeps exemptions in a YAML file that operators may also edit by hand.
// Reads are cached until the file changes on disk.
type FileStore struct {
	path string
	log  *zap.Logger

	mu     sync.RWMutex
	cache  []exemptiondomain.Exemption
	loaded bool
	// gen counts invalidations; a read only fills the cache if none happened meanwhile.
	gen uint64

	afterRead func()
}

func NewFileStore(path string, log *zap.Logger) *FileStore {
	return &FileStore{path: path, log: log}
}

func (f *FileStore) Load(ctx context.Context) ([]exemptiondomain.Exemption, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.RLock()
	if f.loaded {
		out := append([]exemptiondomain.Exemption(nil), f.cache...)
		f.mu.RUnlock()
		return out, nil
	}
	gen := f.gen
	f.mu.RUnlock()

	items, err := f.read()
	if err != nil {
		return nil, err
	}
	if f.afterRead != nil {
		f.afterRead()
	}

	f.mu.Lock()
	if f.gen == gen {
		f.cache = items
		f.loaded = true
	}
	f.mu.Unlock()
	return append([]exemptiondomain.Exemption(nil), items...), nil
}

func (f *FileStore) Save(ctx context.Context, items []exemptiondomain.Exemption) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := yaml.Marshal(exemptiondomain.Document{Exemptions: items})
	if err != nil {
		return fmt.Errorf("encode exemptions: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create exemption dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".exemptions-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write exemptions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace exemptions: %w", err)
	}

	f.mu.Lock()
	f.cache = append([]exemptiondomain.Exemption(nil), items...)
	f.loaded = true
	f.gen++
	f.mu.Unlock()
	return nil
}

// Invalidate drops the cached copy so the next Load reads the file again.
func (f *FileStore) Invalidate() {
	f.mu.Lock()
	f.loaded = false
	f.cache = nil
	f.gen++
	f.mu.Unlock()
}

// Watch invalidates the cache whenever the file is written, created or replaced.
// It returns when ctx is cancelled.
func (f *FileStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		return err
	}

	target := filepath.Clean(f.path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				f.Invalidate()
				f.log.Info("exemption file changed", zap.String("path", f.path), zap.String("op", event.Op.String()))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			f.log.Warn("exemption watcher error", zap.Error(err))
		}
	}
}

func (f *FileStore) read() ([]exemptiondomain.Exemption, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []exemptiondomain.Exemption{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read exemptions: %w", err)
	}

	var doc exemptiondomain.Document
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode exemptions %s: %w", f.path, err)
	}
	if doc.Exemptions == nil {
		doc.Exemptions = []exemptiondomain.Exemption{}
	}
	return doc.Exemptions, nil
}
