package rest

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dfryer1193/selfblog/api"
	"github.com/dfryer1193/selfblog/blog/application"
	"github.com/dfryer1193/selfblog/internal/middleware"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PostLister lists published posts, newest first.
type PostLister interface {
	List(ctx context.Context) ([]application.ListedPost, error)
	Page(ctx context.Context, limit, offset int) ([]application.ListedPost, int, error)
}

type PostsHandler struct {
	posts PostLister
}

func NewPostsHandler(posts PostLister) *PostsHandler {
	return &PostsHandler{posts: posts}
}

func (h *PostsHandler) GetPosts(c *gin.Context) {
	limit, ok := queryInt(c, "limit", defaultPageSize)
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset", 0)
	if !ok {
		return
	}
	if limit < 1 || limit > maxPageSize {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	listed, total, err := h.posts.Page(c.Request.Context(), limit, offset)
	if err != nil {
		h.fail(c, err)
		return
	}

	page := api.PostList{Posts: make([]api.Post, 0, len(listed)), Total: total, Limit: limit, Offset: offset}
	for _, p := range listed {
		page.Posts = append(page.Posts, toAPIPost(p))
	}

	c.JSON(http.StatusOK, page)
}

func (h *PostsHandler) GetPost(c *gin.Context) {
	postID, err := strconv.Atoi(c.Param("postId"))
	if err != nil || postID < 1 {
		c.JSON(http.StatusBadRequest, api.Error{Error: "invalid post id", RequestID: middleware.RequestID(c)})
		return
	}

	listed, err := h.posts.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	for _, p := range listed {
		if p.ID == postID {
			c.JSON(http.StatusOK, toAPIPost(p))
			return
		}
	}

	c.JSON(http.StatusNotFound, api.Error{Error: "post not found", RequestID: middleware.RequestID(c)})
}

func (h *PostsHandler) fail(c *gin.Context, err error) {
	log.Error().Err(err).Str("requestID", middleware.RequestID(c)).Msg("Failed to list posts")
	c.JSON(http.StatusInternalServerError, api.Error{Error: "failed to list posts", RequestID: middleware.RequestID(c)})
}

func queryInt(c *gin.Context, key string, fallback int) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return fallback, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.Error{Error: "invalid " + key, RequestID: middleware.RequestID(c)})
		return 0, false
	}
	return v, true
}

func toAPIPost(p application.ListedPost) api.Post {
	out := api.Post{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		URL:         "/" + application.PostHref(p.ID),
	}
	if !p.Date.IsZero() {
		out.Date = p.Date.Format(time.DateOnly)
	}
	if p.Catalog != nil {
		out.Status = string(p.Catalog.Status)
		if !p.Catalog.PublishedAt.IsZero() {
			published := p.Catalog.PublishedAt
			out.PublishedAt = &published
		}
		if !p.Catalog.UpdatedAt.IsZero() {
			updated := p.Catalog.UpdatedAt
			out.UpdatedAt = &updated
		}
	}
	return out
}
