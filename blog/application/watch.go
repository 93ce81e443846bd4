package application

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/dfryer1193/selfblog/blog/domain"
)

const defaultWatchDebounce = 300 * time.Millisecond

// DraftWatcher re-renders the preview of the open draft whenever its source
// or the page template changes.
type DraftWatcher struct {
	engine       *Engine
	draft        *domain.CurrentDraft
	templatePath string
	debounce     time.Duration

	// OnPreview, when set, is called after every preview attempt.
	OnPreview func(path string, err error)
}

func NewDraftWatcher(engine *Engine, draft *domain.CurrentDraft, templatePath string) *DraftWatcher {
	return &DraftWatcher{
		engine:       engine,
		draft:        draft,
		templatePath: templatePath,
		debounce:     defaultWatchDebounce,
	}
}

// SetDebounce sets how long the watcher waits for writes to settle.
func (w *DraftWatcher) SetDebounce(d time.Duration) {
	if d > 0 {
		w.debounce = d
	}
}

// Run renders an initial preview and then watches until ctx is cancelled.
func (w *DraftWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	// Editors often replace files by rename, so watch directories.
	watched := map[string]bool{
		filepath.Clean(w.draft.MarkdownPath): true,
	}
	dirs := []string{filepath.Dir(w.draft.MarkdownPath)}
	if w.templatePath != "" {
		watched[filepath.Clean(w.templatePath)] = true
		if dir := filepath.Dir(w.templatePath); dir != dirs[0] {
			dirs = append(dirs, dir)
		}
	}
	for _, dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	log.Info().Int("postID", w.draft.ID).Str("path", w.draft.MarkdownPath).Msg("Watching draft")
	w.render()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !watched[filepath.Clean(event.Name)] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			log.Debug().Str("path", event.Name).Str("op", event.Op.String()).Msg("Change detected")
			timer.Reset(w.debounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("Draft watcher error")
		case <-timer.C:
			w.render()
		}
	}
}

func (w *DraftWatcher) render() {
	path, err := w.engine.Preview(w.draft)
	if err != nil {
		log.Error().Err(err).Int("postID", w.draft.ID).Msg("Failed to render preview")
	} else {
		log.Info().Str("path", path).Msg("Preview updated")
	}
	if w.OnPreview != nil {
		w.OnPreview(path, err)
	}
}
