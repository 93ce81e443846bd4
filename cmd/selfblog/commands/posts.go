package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"
)

type UpdateCmd struct {
	ID int `arg:"" help:"Id of the published post"`
}

func (u *UpdateCmd) Run(root *CLI) error {
	a, err := root.open()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.engine.Update(context.Background(), u.ID); err != nil {
		return err
	}

	root.printf("Updated post %d\n", u.ID)
	return nil
}

type DeleteCmd struct {
	ID int `arg:"" help:"Id of the published post"`
}

func (d *DeleteCmd) Run(root *CLI) error {
	a, err := root.open()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.engine.Delete(context.Background(), d.ID); err != nil {
		return err
	}

	root.printf("Unpublished post %d, source kept\n", d.ID)
	return nil
}

type StatusCmd struct{}

func (s *StatusCmd) Run(root *CLI) error {
	a, err := root.open()
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.engine.Status()
	if err != nil {
		return err
	}

	root.printf("State: %s\n", report.State)
	if report.Draft != nil {
		root.printf("Draft: %d %q\n", report.Draft.ID, report.Draft.Title)
		root.printf("Source: %s\n", relPath(report.Draft.MarkdownPath))
	}
	return nil
}

type ListCmd struct{}

func (l *ListCmd) Run(root *CLI) error {
	a, err := root.open()
	if err != nil {
		return err
	}
	defer a.Close()

	posts, err := a.engine.List(context.Background())
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		root.printf("No published posts\n")
		return nil
	}

	w := tabwriter.NewWriter(root.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tTITLE\tDESCRIPTION")
	for _, p := range posts {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.ID, p.Date.Format(time.DateOnly), p.Title, p.Description)
	}
	return w.Flush()
}

func millis(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}
