package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// TemplateWatcher keeps Live's report template in sync with a file on disk.
type TemplateWatcher struct {
	path   string
	live   *Live
	logger logrus.FieldLogger
}

// NewTemplateWatcher creates a watcher for path that publishes into live.
func NewTemplateWatcher(path string, live *Live, logger logrus.FieldLogger) *TemplateWatcher {
	return &TemplateWatcher{
		path:   filepath.Clean(path),
		live:   live,
		logger: logger.WithField("component", "template-watcher"),
	}
}

// Load reads the template file once and publishes it.
func (w *TemplateWatcher) Load() error {
	b, err := os.ReadFile(w.path)
	if err != nil {
		return fmt.Errorf("read report template %s: %w", w.path, err)
	}
	content := string(b)
	w.live.Update(func(c *ModuleConfig) { c.ReportTemplate = content })
	return nil
}

// Start loads the file and reloads it on every change until ctx is done.
// The parent directory is watched so editors that replace the file are handled.
func (w *TemplateWatcher) Start(ctx context.Context) error {
	if err := w.Load(); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	w.logger.WithField("path", w.path).Info("Watching report template")

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != w.path {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := w.Load(); err != nil {
					w.logger.WithError(err).Warn("Report template reload failed, keeping previous template")
					continue
				}
				w.logger.WithField("path", w.path).Info("Report template reloaded")
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				w.logger.WithError(err).Warn("Template watcher error")
			}
		}
	}()
	return nil
}
