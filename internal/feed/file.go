package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/mrcode/loopchart/internal/models"
)

// ErrEmptySnapshot is returned for a snapshot file without content, usually
// one caught between truncate and write
var ErrEmptySnapshot = errors.New("snapshot file is empty")

// ReadSnapshot decodes a snapshot file, YAML for .yaml/.yml and JSON otherwise
func ReadSnapshot(path string) (*models.Snapshot, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Input path is chosen by the operator
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptySnapshot
	}

	var snap models.Snapshot
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &snap)
	default:
		err = json.Unmarshal(data, &snap)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing snapshot %s: %w", path, err)
	}
	return &snap, nil
}

// FileWatcher pushes a snapshot file into a sink whenever it changes
type FileWatcher struct {
	path string
	p    *pusher
}

// NewFileWatcher creates a watcher for path
func NewFileWatcher(path string, sink Sink, opts ...Option) *FileWatcher {
	return &FileWatcher{
		path: filepath.Clean(path),
		p:    newPusher("file", sink, newOptions(opts)),
	}
}

// Load reads the file once and pushes what changed
func (w *FileWatcher) Load(ctx context.Context) error {
	snap, err := ReadSnapshot(w.path)
	if err != nil {
		w.p.opts.metrics.FeedFailed(w.p.name)
		return err
	}
	_, err = w.p.push(ctx, snap)
	return err
}

// Run loads the file and then reloads it after every settled write until
// ctx is done. The parent directory is watched so editors that replace the
// file are followed. Read errors are logged; the next write retries.
func (w *FileWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed creating file watcher: %w", err)
	}
	defer func() {
		_ = watcher.Close()
	}()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watching %s: %w", w.path, err)
	}

	log := w.p.opts.logger.With(slog.String("file", w.path))
	if err := w.Load(ctx); err != nil {
		log.Warn("Initial snapshot load failed", slog.Any("error", err))
	}

	var settle <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			settle = time.After(w.p.opts.debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("File watcher error", slog.Any("error", err))
		case <-settle:
			settle = nil
			if err := w.Load(ctx); err != nil {
				log.Warn("Snapshot reload failed", slog.Any("error", err))
			}
		}
	}
}
