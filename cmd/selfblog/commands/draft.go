package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/dfryer1193/selfblog/blog/application"
)

type NewCmd struct {
	Title       string `arg:"" help:"Post title"`
	Description string `arg:"" optional:"" help:"One-line post description"`
}

func (n *NewCmd) Run(root *CLI) error {
	a, err := root.open()
	if err != nil {
		return err
	}
	defer a.Close()

	draft, err := a.engine.Create(context.Background(), n.Title, n.Description)
	if err != nil {
		return err
	}

	root.printf("Opened draft %d: edit %s\n", draft.ID, relPath(draft.MarkdownPath))
	return nil
}

type ReadyCmd struct{}

func (r *ReadyCmd) Run(root *CLI) error {
	a, err := root.open()
	if err != nil {
		return err
	}
	defer a.Close()

	draft, err := a.engine.CurrentDraft()
	if err != nil {
		return err
	}
	if err := a.engine.Ready(context.Background(), draft); err != nil {
		return err
	}

	root.printf("Draft %d is ready to publish\n", draft.ID)
	return nil
}

type PublishCmd struct{}

func (p *PublishCmd) Run(root *CLI) error {
	a, err := root.open()
	if err != nil {
		return err
	}
	defer a.Close()

	draft, err := a.engine.CurrentDraft()
	if err != nil {
		return err
	}
	if err := a.engine.Publish(context.Background(), draft); err != nil {
		return err
	}

	root.printf("Published post %d at %s\n", draft.ID, relPath(draft.RenderedPath))
	return nil
}

type PreviewCmd struct{}

func (p *PreviewCmd) Run(root *CLI) error {
	a, err := root.open()
	if err != nil {
		return err
	}
	defer a.Close()

	draft, err := a.engine.CurrentDraft()
	if err != nil {
		return err
	}
	path, err := a.engine.Preview(draft)
	if err != nil {
		return err
	}

	root.printf("%s\n", path)
	return nil
}

type WatchCmd struct {
	Debounce int `help:"Milliseconds to wait for edits to settle" default:"300"`
}

func (w *WatchCmd) Run(root *CLI) error {
	a, err := root.open()
	if err != nil {
		return err
	}
	defer a.Close()

	draft, err := a.engine.CurrentDraft()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher := application.NewDraftWatcher(a.engine, draft, a.cfg.Template)
	watcher.SetDebounce(millis(w.Debounce))
	watcher.OnPreview = func(path string, err error) {
		if err != nil {
			log.Error().Err(err).Int("postID", draft.ID).Msg("Preview failed")
			return
		}
		root.printf("Preview updated: %s\n", path)
	}

	log.Info().Int("postID", draft.ID).Msg("Watching draft, press Ctrl-C to stop")
	return watcher.Run(ctx)
}
