package domain

import (
	"context"
	"time"
)

// PostMeta is the author-supplied metadata persisted next to a post's markdown.
// ID is stored so an open draft can be recovered from the draft lock alone.
type PostMeta struct {
	ID          int    `yaml:"id"`
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// Post identifies a post and the artifacts derived from its id.
type Post struct {
	ID           int
	Title        string
	Description  string
	MarkdownPath string
	MetadataPath string
	RenderedPath string
}

// CurrentDraft is the post occupying the single draft slot. It is returned by
// Create and passed explicitly to Ready and Publish.
type CurrentDraft struct {
	Post
}

// PostSummary is one entry of the site's index page.
type PostSummary struct {
	ID          int
	Title       string
	Description string
	Date        time.Time
}

// DraftState is the position of the draft cycle.
type DraftState int

const (
	StateIdle DraftState = iota
	StateDraftOpen
	StateReady
)

func (s DraftState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraftOpen:
		return "draft-open"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// PostStatus is the lifecycle status recorded in the catalog.
type PostStatus string

const (
	StatusDraft       PostStatus = "draft"
	StatusReady       PostStatus = "ready"
	StatusPublished   PostStatus = "published"
	StatusUnpublished PostStatus = "unpublished"
)

// CatalogEntry is the catalog's record of a post.
type CatalogEntry struct {
	ID          int
	Title       string
	Description string
	Status      PostStatus
	CreatedAt   time.Time
	ReadyAt     time.Time
	PublishedAt time.Time
	UpdatedAt   time.Time
}

// MetadataStore reads and writes the per-post metadata artifact.
type MetadataStore interface {
	Read(path string) (*PostMeta, error)
	Write(path string, meta *PostMeta) error
}

// PostRepository records lifecycle transitions. The filesystem stays the
// source of truth; the catalog only mirrors it for listing and the API.
type PostRepository interface {
	UpsertPost(ctx context.Context, e *CatalogEntry) error
	GetPost(ctx context.Context, id int) (*CatalogEntry, error)
	ListPublishedPosts(ctx context.Context, limit int, offset int) ([]*CatalogEntry, error)
	CountPublishedPosts(ctx context.Context) (int, error)

	SetStatus(ctx context.Context, id int, status PostStatus, at time.Time) error
}
