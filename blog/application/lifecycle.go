package application

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dfryer1193/selfblog/blog/domain"
	"github.com/dfryer1193/selfblog/shared/fsutil"
)

// Operation names reported to an OperationObserver.
const (
	OpCreate  = "create"
	OpReady   = "ready"
	OpPublish = "publish"
	OpUpdate  = "update"
	OpDelete  = "delete"
	OpPreview = "preview"
)

// OperationObserver is told about every finished lifecycle operation.
type OperationObserver interface {
	ObserveOperation(op string, duration time.Duration, err error)
}

// EngineOption configures optional collaborators of an Engine.
type EngineOption func(*Engine)

// WithCatalog mirrors lifecycle transitions into repo.
func WithCatalog(repo domain.PostRepository) EngineOption {
	return func(e *Engine) { e.catalog = repo }
}

// WithClock replaces time.Now as the source of post dates.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithObserver reports operation outcomes to o.
func WithObserver(o OperationObserver) EngineOption {
	return func(e *Engine) { e.observer = o }
}

// Engine drives a post through create, ready and publish, and edits
// published posts with update and delete. Lock files in the state directory
// are the only state kept between invocations.
type Engine struct {
	layout     Layout
	renderer   MarkdownRenderer
	compositor *TemplateCompositor
	index      *IndexPatcher
	meta       domain.MetadataStore

	catalog  domain.PostRepository
	observer OperationObserver
	now      func() time.Time
}

func NewEngine(
	layout Layout,
	renderer MarkdownRenderer,
	compositor *TemplateCompositor,
	index *IndexPatcher,
	meta domain.MetadataStore,
	opts ...EngineOption,
) *Engine {
	e := &Engine{
		layout:     layout,
		renderer:   renderer,
		compositor: compositor,
		index:      index,
		meta:       meta,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Layout() Layout {
	return e.layout
}

// Create opens a new draft. It fails with a ConflictError while another
// draft is open.
func (e *Engine) Create(ctx context.Context, title, description string) (_ *domain.CurrentDraft, err error) {
	defer e.observe(OpCreate, e.now())(&err)

	lockPath := e.layout.DraftLockPath()
	if err := e.requireAbsent("create", lockPath, "a draft is already open"); err != nil {
		return nil, err
	}

	id, err := e.layout.NextDraftID()
	if err != nil {
		return nil, err
	}

	post := e.layout.Post(id)
	post.Title = title
	post.Description = description

	if err := e.requireAbsent("create", post.MarkdownPath, "post source already exists"); err != nil {
		return nil, err
	}

	log.Debug().Int("postID", id).Str("path", post.MarkdownPath).Msg("Creating post source")
	f, err := os.OpenFile(post.MarkdownPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		return nil, &domain.IOError{Op: "create", Path: post.MarkdownPath, Err: err}
	}
	if err := f.Close(); err != nil {
		return nil, &domain.IOError{Op: "create", Path: post.MarkdownPath, Err: err}
	}

	// A failed create must not leave a half-made pair behind: the pair count
	// is the id counter.
	created := []string{post.MarkdownPath}
	defer func() {
		if err == nil {
			return
		}
		for i := len(created) - 1; i >= 0; i-- {
			if rmErr := fsutil.RemoveIfExists(created[i]); rmErr != nil {
				log.Error().Err(rmErr).Str("path", created[i]).Msg("Failed to roll back create")
			}
		}
	}()

	// With no draft open, a leftover pointer is stale.
	if err := fsutil.RemoveIfExists(e.layout.LastPostPath()); err != nil {
		return nil, &domain.IOError{Op: "create", Path: e.layout.LastPostPath(), Err: err}
	}
	if err := fsutil.Link(post.MarkdownPath, e.layout.LastPostPath()); err != nil {
		return nil, &domain.IOError{Op: "create", Path: e.layout.LastPostPath(), Err: err}
	}
	created = append(created, e.layout.LastPostPath())

	meta := &domain.PostMeta{ID: id, Title: title, Description: description}
	if err := e.meta.Write(post.MetadataPath, meta); err != nil {
		return nil, err
	}
	created = append(created, post.MetadataPath)

	if err := fsutil.Link(post.MetadataPath, lockPath); err != nil {
		return nil, &domain.IOError{Op: "create", Path: lockPath, Err: err}
	}
	created = append(created, lockPath)

	now := e.now()
	e.record(ctx, "create", id, func(c domain.PostRepository) error {
		return c.UpsertPost(ctx, &domain.CatalogEntry{
			ID:          id,
			Title:       title,
			Description: description,
			Status:      domain.StatusDraft,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	})

	log.Info().Int("postID", id).Str("path", post.MarkdownPath).Msg("Draft opened")
	return &domain.CurrentDraft{Post: post}, nil
}

// CurrentDraft recovers the open draft from the draft lock. It fails with a
// NotFoundError when no draft is open.
func (e *Engine) CurrentDraft() (*domain.CurrentDraft, error) {
	lockPath := e.layout.DraftLockPath()

	meta, err := e.meta.Read(lockPath)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, &domain.NotFoundError{Op: "current draft", Artifact: lockPath, Reason: "no open draft"}
		}
		return nil, err
	}

	id := meta.ID
	if id < 1 {
		// Locks written without an id belong to the newest post source.
		if id, err = e.layout.CountPosts(); err != nil {
			return nil, err
		}
		if id < 1 {
			return nil, &domain.NotFoundError{Op: "current draft", Artifact: e.layout.MarkdownDir, Reason: "draft lock has no post source"}
		}
	}

	post := e.layout.Post(id)
	post.Title = meta.Title
	post.Description = meta.Description
	return &domain.CurrentDraft{Post: post}, nil
}

// Ready renders the open draft into the template and stores the page as the
// ready marker.
func (e *Engine) Ready(ctx context.Context, draft *domain.CurrentDraft) (err error) {
	defer e.observe(OpReady, e.now())(&err)

	if err := e.requireOpen("ready", draft); err != nil {
		return err
	}
	readyPath := e.layout.ReadyPath()
	if err := e.requireAbsent("ready", readyPath, "draft is already ready"); err != nil {
		return err
	}

	now := e.now()
	page, rendered, err := e.renderPage(draft.Post, now)
	if err != nil {
		return err
	}

	log.Debug().Int("postID", draft.ID).Str("path", readyPath).Msg("Writing ready page")
	if err := fsutil.WriteFileAtomic(readyPath, []byte(page), 0644); err != nil {
		return &domain.IOError{Op: "ready", Path: readyPath, Err: err}
	}

	e.record(ctx, "ready", draft.ID, func(c domain.PostRepository) error {
		return c.SetStatus(ctx, draft.ID, domain.StatusReady, now)
	})

	log.Info().Int("postID", draft.ID).Str("title", rendered.Title).Msg("Draft ready")
	return nil
}

// Publish composes the ready draft into the site against the publish date,
// links it from the index and returns the draft cycle to idle. The page and
// the index entry come from one render, the same one Update performs. Locks
// are only released once both are in place, so a failed publish can be re-run.
func (e *Engine) Publish(ctx context.Context, draft *domain.CurrentDraft) (err error) {
	defer e.observe(OpPublish, e.now())(&err)

	readyPath := e.layout.ReadyPath()
	if err := e.requirePresent("publish", readyPath, "draft is not ready"); err != nil {
		return err
	}
	if err := e.requireOpen("publish", draft); err != nil {
		return err
	}

	now := e.now()
	page, rendered, err := e.renderPage(draft.Post, now)
	if err != nil {
		return err
	}

	target := draft.RenderedPath
	log.Debug().Int("postID", draft.ID).Str("path", target).Msg("Writing page into site")
	if err := os.MkdirAll(e.layout.PostsDir(), 0755); err != nil {
		return &domain.IOError{Op: "publish", Path: e.layout.PostsDir(), Err: err}
	}
	if err := fsutil.WriteFileAtomic(target, []byte(page), 0644); err != nil {
		return &domain.IOError{Op: "publish", Path: target, Err: err}
	}

	log.Debug().Int("postID", draft.ID).Str("path", e.index.Path()).Msg("Editing index")
	if err := e.index.Insert(domain.PostSummary{
		ID:          draft.ID,
		Title:       rendered.Title,
		Description: rendered.Description,
		Date:        now,
	}); err != nil {
		return fmt.Errorf("page %s written but not linked: %w", target, err)
	}

	for _, lock := range []string{e.layout.DraftLockPath(), readyPath, e.layout.LastPostPath()} {
		log.Debug().Str("path", lock).Msg("Removing lock")
		if err := fsutil.RemoveIfExists(lock); err != nil {
			return &domain.IOError{Op: "publish", Path: lock, Err: err}
		}
	}

	e.record(ctx, "publish", draft.ID, func(c domain.PostRepository) error {
		return c.SetStatus(ctx, draft.ID, domain.StatusPublished, now)
	})

	log.Info().Int("postID", draft.ID).Str("path", target).Msg("Post published")
	return nil
}

// Update re-renders a published post from its current source and metadata,
// overwriting the page and refreshing its index entry in place. The draft
// cycle is not touched.
func (e *Engine) Update(ctx context.Context, id int) (err error) {
	defer e.observe(OpUpdate, e.now())(&err)

	post := e.layout.Post(id)
	if err := e.requirePresent("update", post.RenderedPath, "post is not published"); err != nil {
		return err
	}

	date := e.publishDate(ctx, id)
	page, rendered, err := e.renderPage(post, date)
	if err != nil {
		return err
	}

	log.Debug().Int("postID", id).Str("path", post.RenderedPath).Msg("Overwriting published page")
	if err := fsutil.WriteFileAtomic(post.RenderedPath, []byte(page), 0644); err != nil {
		return &domain.IOError{Op: "update", Path: post.RenderedPath, Err: err}
	}

	summary := domain.PostSummary{ID: id, Title: rendered.Title, Description: rendered.Description, Date: date}
	replaced, err := e.index.Replace(summary)
	if err != nil {
		return err
	}
	if !replaced {
		log.Warn().Int("postID", id).Msg("Index had no entry for post, inserting one")
		if err := e.index.Insert(summary); err != nil {
			return err
		}
	}

	now := e.now()
	e.record(ctx, "update", id, func(c domain.PostRepository) error {
		return c.UpsertPost(ctx, &domain.CatalogEntry{
			ID:          id,
			Title:       rendered.Title,
			Description: rendered.Description,
			Status:      domain.StatusPublished,
			CreatedAt:   date,
			PublishedAt: date,
			UpdatedAt:   now,
		})
	})

	log.Info().Int("postID", id).Msg("Post updated")
	return nil
}

// Delete unpublishes a post: its page and index entry are removed, its
// source and metadata are kept.
func (e *Engine) Delete(ctx context.Context, id int) (err error) {
	defer e.observe(OpDelete, e.now())(&err)

	post := e.layout.Post(id)
	if err := e.requirePresent("delete", post.RenderedPath, "post is not published"); err != nil {
		return err
	}

	log.Debug().Int("postID", id).Str("path", post.RenderedPath).Msg("Removing published page")
	if err := os.Remove(post.RenderedPath); err != nil {
		return &domain.IOError{Op: "delete", Path: post.RenderedPath, Err: err}
	}

	removed, err := e.index.Remove(id)
	if err != nil {
		return err
	}
	if !removed {
		log.Warn().Int("postID", id).Str("path", e.index.Path()).Msg("Index had no entry for post")
	}

	e.record(ctx, "delete", id, func(c domain.PostRepository) error {
		return c.SetStatus(ctx, id, domain.StatusUnpublished, e.now())
	})

	log.Info().Int("postID", id).Msg("Post deleted")
	return nil
}

// Preview renders the open draft to the preview page without touching any
// lock. It returns the preview path.
func (e *Engine) Preview(draft *domain.CurrentDraft) (_ string, err error) {
	defer e.observe(OpPreview, e.now())(&err)

	if err := e.requireOpen("preview", draft); err != nil {
		return "", err
	}

	page, _, err := e.renderPage(draft.Post, e.now())
	if err != nil {
		return "", err
	}

	previewPath := e.layout.PreviewPath()
	if err := fsutil.WriteFileAtomic(previewPath, []byte(page), 0644); err != nil {
		return "", &domain.IOError{Op: "preview", Path: previewPath, Err: err}
	}

	log.Debug().Int("postID", draft.ID).Str("path", previewPath).Msg("Preview written")
	return previewPath, nil
}

// StatusReport describes the draft cycle.
type StatusReport struct {
	State domain.DraftState
	Draft *domain.CurrentDraft
}

func (e *Engine) Status() (*StatusReport, error) {
	report := &StatusReport{State: domain.StateIdle}

	draft, err := e.CurrentDraft()
	switch {
	case err == nil:
		report.Draft = draft
		report.State = domain.StateDraftOpen
	case !domain.IsNotFound(err):
		return nil, err
	}

	ready, err := fsutil.Exists(e.layout.ReadyPath())
	if err != nil {
		return nil, &domain.IOError{Op: "status", Path: e.layout.ReadyPath(), Err: err}
	}
	if ready {
		report.State = domain.StateReady
	}

	return report, nil
}

// ListedPost is an index entry with its catalog record, when one exists.
type ListedPost struct {
	domain.PostSummary
	Catalog *domain.CatalogEntry
}

// List returns the published posts in index order.
func (e *Engine) List(ctx context.Context) ([]ListedPost, error) {
	entries, err := e.index.Entries()
	if err != nil {
		return nil, err
	}

	posts := make([]ListedPost, 0, len(entries))
	for _, entry := range entries {
		posts = append(posts, e.listed(ctx, entry))
	}
	return posts, nil
}

// Page returns up to limit published posts starting at offset, newest first,
// and the number of published posts. The catalog serves the page when it
// tracks exactly the posts the index links; otherwise the index is paged.
func (e *Engine) Page(ctx context.Context, limit, offset int) ([]ListedPost, int, error) {
	entries, err := e.index.Entries()
	if err != nil {
		return nil, 0, err
	}
	total := len(entries)
	offset = max(offset, 0)
	if limit < 1 {
		limit = max(total, 1)
	}

	if e.catalog != nil {
		if page, ok := e.catalogPage(ctx, entries, limit, offset); ok {
			return page, total, nil
		}
	}

	if offset >= total {
		return []ListedPost{}, total, nil
	}
	end := min(offset+limit, total)
	page := make([]ListedPost, 0, end-offset)
	for _, entry := range entries[offset:end] {
		page = append(page, e.listed(ctx, entry))
	}
	return page, total, nil
}

func (e *Engine) catalogPage(ctx context.Context, entries []domain.PostSummary, limit, offset int) ([]ListedPost, bool) {
	count, err := e.catalog.CountPublishedPosts(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to count catalog posts, paging the index")
		return nil, false
	}
	if count != len(entries) {
		log.Debug().Int("catalog", count).Int("index", len(entries)).Msg("Catalog out of step with index, paging the index")
		return nil, false
	}

	rows, err := e.catalog.ListPublishedPosts(ctx, limit, offset)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list catalog posts, paging the index")
		return nil, false
	}

	byID := make(map[int]domain.PostSummary, len(entries))
	for _, entry := range entries {
		byID[entry.ID] = entry
	}

	page := make([]ListedPost, 0, len(rows))
	for _, row := range rows {
		summary, ok := byID[row.ID]
		if !ok {
			log.Debug().Int("postID", row.ID).Msg("Catalog post missing from index, paging the index")
			return nil, false
		}
		page = append(page, ListedPost{PostSummary: summary, Catalog: row})
	}
	return page, true
}

func (e *Engine) listed(ctx context.Context, entry domain.PostSummary) ListedPost {
	listed := ListedPost{PostSummary: entry}
	if e.catalog == nil {
		return listed
	}
	c, err := e.catalog.GetPost(ctx, entry.ID)
	switch {
	case err == nil:
		listed.Catalog = c
	case !domain.IsNotFound(err):
		log.Warn().Err(err).Int("postID", entry.ID).Msg("Failed to read catalog entry")
	}
	return listed
}

// renderedPost is a post's source rendered to HTML. Front matter takes
// precedence over the stored title and description; when both are empty the
// first heading and the opening paragraph stand in.
type renderedPost struct {
	Title       string
	Description string
	Body        string
}

func (e *Engine) render(post domain.Post) (*renderedPost, error) {
	meta, err := e.postMeta(post)
	if err != nil {
		return nil, err
	}

	source, err := os.ReadFile(post.MarkdownPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &domain.NotFoundError{Op: "render", Artifact: post.MarkdownPath, Reason: "post source does not exist"}
		}
		return nil, &domain.IOError{Op: "render", Path: post.MarkdownPath, Err: err}
	}

	log.Debug().Int("postID", post.ID).Str("path", post.MarkdownPath).Msg("Rendering post source")
	result := e.renderer.Render(source)

	rendered := &renderedPost{
		Title:       firstNonEmpty(result.Title, meta.Title, result.Heading),
		Description: firstNonEmpty(result.Description, meta.Description, result.Snippet),
		Body:        string(result.HTMLContent),
	}
	return rendered, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (e *Engine) renderPage(post domain.Post, date time.Time) (string, *renderedPost, error) {
	rendered, err := e.render(post)
	if err != nil {
		return "", nil, err
	}

	page, err := e.compositor.Compose(rendered.Title, date, rendered.Body)
	if err != nil {
		return "", nil, err
	}
	return page, rendered, nil
}

func (e *Engine) postMeta(post domain.Post) (*domain.PostMeta, error) {
	meta, err := e.meta.Read(post.MetadataPath)
	if err != nil {
		return nil, err
	}
	if meta.ID != 0 && meta.ID != post.ID {
		return nil, &domain.ConflictError{
			Op:       "read metadata",
			Artifact: post.MetadataPath,
			Reason:   fmt.Sprintf("metadata belongs to post %d", meta.ID),
		}
	}
	return meta, nil
}

// publishDate keeps the date a post was first published: the catalog's
// record, else the index entry, else today.
func (e *Engine) publishDate(ctx context.Context, id int) time.Time {
	if e.catalog != nil {
		if c, err := e.catalog.GetPost(ctx, id); err == nil && !c.PublishedAt.IsZero() {
			return c.PublishedAt
		}
	}

	if entries, err := e.index.Entries(); err == nil {
		for _, entry := range entries {
			if entry.ID == id && !entry.Date.IsZero() {
				return entry.Date
			}
		}
	}

	return e.now()
}

// requireOpen checks that draft is the draft currently holding the lock.
func (e *Engine) requireOpen(op string, draft *domain.CurrentDraft) error {
	open, err := e.CurrentDraft()
	if err != nil {
		if domain.IsNotFound(err) {
			return &domain.NotFoundError{Op: op, Artifact: e.layout.DraftLockPath(), Reason: "no open draft"}
		}
		return err
	}
	if draft == nil {
		return &domain.NotFoundError{Op: op, Artifact: e.layout.DraftLockPath(), Reason: "no draft given"}
	}
	if draft.ID != open.ID {
		return &domain.ConflictError{
			Op:       op,
			Artifact: e.layout.DraftLockPath(),
			Reason:   fmt.Sprintf("open draft is post %d, not %d", open.ID, draft.ID),
		}
	}
	return nil
}

func (e *Engine) requireAbsent(op, path, reason string) error {
	exists, err := fsutil.Exists(path)
	if err != nil {
		return &domain.IOError{Op: op, Path: path, Err: err}
	}
	if exists {
		return &domain.ConflictError{Op: op, Artifact: path, Reason: reason}
	}
	return nil
}

func (e *Engine) requirePresent(op, path, reason string) error {
	exists, err := fsutil.Exists(path)
	if err != nil {
		return &domain.IOError{Op: op, Path: path, Err: err}
	}
	if !exists {
		return &domain.NotFoundError{Op: op, Artifact: path, Reason: reason}
	}
	return nil
}

// record mirrors a transition into the catalog. The filesystem is
// authoritative, so catalog failures are only logged.
func (e *Engine) record(ctx context.Context, op string, id int, fn func(domain.PostRepository) error) {
	if e.catalog == nil {
		return
	}
	if err := fn(e.catalog); err != nil {
		log.Warn().Err(err).Str("op", op).Int("postID", id).Msg("Failed to record transition in catalog")
	}
}

func (e *Engine) observe(op string, start time.Time) func(*error) {
	return func(errp *error) {
		if e.observer == nil {
			return
		}
		e.observer.ObserveOperation(op, e.now().Sub(start), *errp)
	}
}
