package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dfryer1193/selfblog/blog/domain"
	"github.com/dfryer1193/selfblog/shared/db"
)

var _ domain.PostRepository = (*SQLitePostRepository)(nil)

// SQLitePostRepository implements domain.PostRepository using SQL database (SQLite)
type SQLitePostRepository struct {
	db *sql.DB
}

// NewPostRepository creates a new SQLitePostRepository from a standard sql.DB
func NewPostRepository(db *sql.DB) *SQLitePostRepository {
	return &SQLitePostRepository{
		db: db,
	}
}

const upsertPostQuery = `
	INSERT INTO posts (id, title, description, status, created_at, ready_at, published_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		description = excluded.description,
		status = excluded.status,
		ready_at = COALESCE(excluded.ready_at, posts.ready_at),
		published_at = COALESCE(excluded.published_at, posts.published_at),
		updated_at = excluded.updated_at,
		created_at = COALESCE(posts.created_at, excluded.created_at)
`

// UpsertPost inserts or refreshes the catalog row for a post. Zero timestamps
// never clear values already recorded.
func (r *SQLitePostRepository) UpsertPost(ctx context.Context, e *domain.CatalogEntry) error {
	if e == nil {
		return fmt.Errorf("post cannot be nil")
	}

	if e.ID < 1 {
		return fmt.Errorf("post ID must be positive, got %d", e.ID)
	}

	status := e.Status
	if status == "" {
		status = domain.StatusDraft
	}

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	executor := db.GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, upsertPostQuery,
		e.ID,
		e.Title,
		e.Description,
		string(status),
		createdAt,
		nullableTime(e.ReadyAt),
		nullableTime(e.PublishedAt),
		nullableTime(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert post %d: %w", e.ID, err)
	}

	return nil
}

const getPostQuery = `
	SELECT id, title, description, status, created_at, ready_at, published_at, updated_at
	FROM posts
	WHERE id = ?
`

// GetPost retrieves a single post by ID
func (r *SQLitePostRepository) GetPost(ctx context.Context, id int) (*domain.CatalogEntry, error) {
	var row postRow
	err := db.GetExecutor(ctx, r.db).QueryRowContext(ctx, getPostQuery, id).Scan(
		&row.ID,
		&row.Title,
		&row.Description,
		&row.Status,
		&row.CreatedAt,
		&row.ReadyAt,
		&row.PublishedAt,
		&row.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{Op: "get post", Artifact: "catalog post " + strconv.Itoa(id), Reason: "post not in catalog"}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get post %d: %w", id, err)
	}

	return row.toDomain(), nil
}

const listPublishedPostsQuery = `
	SELECT id, title, description, status, created_at, ready_at, published_at, updated_at
	FROM posts
	WHERE status = 'published'
	ORDER BY published_at DESC, id DESC
	LIMIT ? OFFSET ?
`

// ListPublishedPosts retrieves published posts ordered by publish date descending
func (r *SQLitePostRepository) ListPublishedPosts(ctx context.Context, limit, offset int) ([]*domain.CatalogEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := db.GetExecutor(ctx, r.db).QueryContext(ctx, listPublishedPostsQuery, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list published posts: %w", err)
	}
	defer rows.Close()

	posts := make([]*domain.CatalogEntry, 0)
	for rows.Next() {
		var row postRow
		err := rows.Scan(
			&row.ID,
			&row.Title,
			&row.Description,
			&row.Status,
			&row.CreatedAt,
			&row.ReadyAt,
			&row.PublishedAt,
			&row.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post row: %w", err)
		}
		posts = append(posts, row.toDomain())
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating post rows: %w", err)
	}

	return posts, nil
}

const countPublishedPostsQuery = `SELECT COUNT(*) FROM posts WHERE status = 'published'`

// CountPublishedPosts returns the number of posts currently published.
func (r *SQLitePostRepository) CountPublishedPosts(ctx context.Context) (int, error) {
	var count int
	if err := db.GetExecutor(ctx, r.db).QueryRowContext(ctx, countPublishedPostsQuery).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count published posts: %w", err)
	}
	return count, nil
}

const (
	setStatusQuery = `
		UPDATE posts SET status = ?, updated_at = ? WHERE id = ?
	`
	setReadyQuery = `
		UPDATE posts SET status = ?, updated_at = ?, ready_at = ? WHERE id = ?
	`
	setPublishedQuery = `
		UPDATE posts SET status = ?, updated_at = ?, published_at = ? WHERE id = ?
	`
	setUnpublishedQuery = `
		UPDATE posts SET status = ?, updated_at = ?, published_at = NULL WHERE id = ?
	`
)

// SetStatus records a lifecycle transition at the given time.
func (r *SQLitePostRepository) SetStatus(ctx context.Context, id int, status domain.PostStatus, at time.Time) error {
	var (
		query string
		args  []any
	)

	switch status {
	case domain.StatusReady:
		query, args = setReadyQuery, []any{string(status), at, at, id}
	case domain.StatusPublished:
		query, args = setPublishedQuery, []any{string(status), at, at, id}
	case domain.StatusUnpublished:
		query, args = setUnpublishedQuery, []any{string(status), at, id}
	case domain.StatusDraft:
		query, args = setStatusQuery, []any{string(status), at, id}
	default:
		return fmt.Errorf("unknown post status %q", status)
	}

	return db.RunInTransaction(ctx, r.db, func(txCtx context.Context) error {
		res, err := db.GetExecutor(txCtx, r.db).ExecContext(txCtx, query, args...)
		if err != nil {
			return fmt.Errorf("failed to set status of post %d to %s: %w", id, status, err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if affected == 0 {
			return &domain.NotFoundError{Op: "set status", Artifact: "catalog post " + strconv.Itoa(id), Reason: "post not in catalog"}
		}

		return nil
	})
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// postRow is a private struct used to scan database rows
type postRow struct {
	ID          int          `db:"id"`
	Title       string       `db:"title"`
	Description string       `db:"description"`
	Status      string       `db:"status"`
	CreatedAt   sql.NullTime `db:"created_at"`
	ReadyAt     sql.NullTime `db:"ready_at"`
	PublishedAt sql.NullTime `db:"published_at"`
	UpdatedAt   sql.NullTime `db:"updated_at"`
}

// toDomain converts a postRow to a domain.CatalogEntry, handling nullable times
func (pr *postRow) toDomain() *domain.CatalogEntry {
	e := &domain.CatalogEntry{
		ID:          pr.ID,
		Title:       pr.Title,
		Description: pr.Description,
		Status:      domain.PostStatus(pr.Status),
	}

	if pr.CreatedAt.Valid {
		e.CreatedAt = pr.CreatedAt.Time
	}
	if pr.ReadyAt.Valid {
		e.ReadyAt = pr.ReadyAt.Time
	}
	if pr.PublishedAt.Valid {
		e.PublishedAt = pr.PublishedAt.Time
	}
	if pr.UpdatedAt.Valid {
		e.UpdatedAt = pr.UpdatedAt.Time
	}

	return e
}
