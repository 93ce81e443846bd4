package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfryer1193/selfblog/api"
	"github.com/dfryer1193/selfblog/blog/application"
	"github.com/dfryer1193/selfblog/blog/domain"
)

type fakeLister struct {
	posts []application.ListedPost
	err   error
	pages [][2]int
}

func (f *fakeLister) List(context.Context) ([]application.ListedPost, error) {
	return f.posts, f.err
}

func (f *fakeLister) Page(_ context.Context, limit, offset int) ([]application.ListedPost, int, error) {
	f.pages = append(f.pages, [2]int{limit, offset})
	if f.err != nil {
		return nil, 0, f.err
	}
	if offset >= len(f.posts) {
		return nil, len(f.posts), nil
	}
	return f.posts[offset:min(offset+limit, len(f.posts))], len(f.posts), nil
}

func listed(id int, title string) application.ListedPost {
	return application.ListedPost{PostSummary: domain.PostSummary{
		ID:          id,
		Title:       title,
		Description: "about " + title,
		Date:        time.Date(2024, time.May, id, 0, 0, 0, 0, time.UTC),
	}}
}

func newTestRouter(lister PostLister, siteDir string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewApi(r, NewPostsHandler(lister))
	if siteDir != "" {
		ServeSite(r, siteDir)
	}
	return r
}

func get(t *testing.T, r http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestGetPosts(t *testing.T) {
	published := time.Date(2024, time.May, 3, 10, 0, 0, 0, time.UTC)
	newest := listed(3, "three")
	newest.Catalog = &domain.CatalogEntry{ID: 3, Status: domain.StatusPublished, PublishedAt: published}

	lister := &fakeLister{posts: []application.ListedPost{newest, listed(2, "two"), listed(1, "one")}}
	r := newTestRouter(lister, "")

	tests := []struct {
		name    string
		target  string
		wantIDs []int
	}{
		{name: "Defaults", target: "/api/posts/v1", wantIDs: []int{3, 2, 1}},
		{name: "Trailing slash", target: "/api/posts/v1/", wantIDs: []int{3, 2, 1}},
		{name: "Limit", target: "/api/posts/v1?limit=2", wantIDs: []int{3, 2}},
		{name: "Offset", target: "/api/posts/v1?limit=2&offset=2", wantIDs: []int{1}},
		{name: "Offset past end", target: "/api/posts/v1?offset=10", wantIDs: []int{}},
		{name: "Oversized limit falls back", target: "/api/posts/v1?limit=1000", wantIDs: []int{3, 2, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, r, tt.target)
			require.Equal(t, http.StatusOK, rec.Code)

			var page api.PostList
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &page))
			assert.Equal(t, 3, page.Total)

			ids := []int{}
			for _, p := range page.Posts {
				ids = append(ids, p.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}

	var page api.PostList
	require.NoError(t, json.Unmarshal(get(t, r, "/api/posts/v1").Body.Bytes(), &page))
	first := page.Posts[0]
	assert.Equal(t, "/posts/post-3.html", first.URL)
	assert.Equal(t, "2024-05-03", first.Date)
	assert.Equal(t, "published", first.Status)
	require.NotNil(t, first.PublishedAt)
	assert.True(t, published.Equal(*first.PublishedAt))
	assert.Nil(t, page.Posts[1].PublishedAt)
}

func TestGetPosts_PagesThroughLister(t *testing.T) {
	lister := &fakeLister{posts: []application.ListedPost{listed(1, "one")}}
	r := newTestRouter(lister, "")

	get(t, r, "/api/posts/v1?limit=5&offset=3")
	get(t, r, "/api/posts/v1?limit=1000&offset=-4")

	assert.Equal(t, [][2]int{{5, 3}, {defaultPageSize, 0}}, lister.pages)
}

func TestGetPosts_BadQuery(t *testing.T) {
	r := newTestRouter(&fakeLister{}, "")
	assert.Equal(t, http.StatusBadRequest, get(t, r, "/api/posts/v1?limit=abc").Code)
}

func TestGetPosts_ListError(t *testing.T) {
	r := newTestRouter(&fakeLister{err: errors.New("index unreadable")}, "")
	assert.Equal(t, http.StatusInternalServerError, get(t, r, "/api/posts/v1").Code)
}

func TestGetPost(t *testing.T) {
	r := newTestRouter(&fakeLister{posts: []application.ListedPost{listed(2, "two"), listed(1, "one")}}, "")

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantTitle  string
	}{
		{name: "Found", target: "/api/posts/v1/1", wantStatus: http.StatusOK, wantTitle: "one"},
		{name: "Missing", target: "/api/posts/v1/9", wantStatus: http.StatusNotFound},
		{name: "Not a number", target: "/api/posts/v1/abc", wantStatus: http.StatusBadRequest},
		{name: "Zero", target: "/api/posts/v1/0", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, r, tt.target)
			require.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantTitle != "" {
				var post api.Post
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &post))
				assert.Equal(t, tt.wantTitle, post.Title)
			}
		})
	}
}

func TestServeSite(t *testing.T) {
	siteDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(siteDir, "posts"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(siteDir, "index.html"), []byte("<html>index</html>"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(siteDir, "posts", "post-1.html"), []byte("<html>one</html>"), 0644))

	r := newTestRouter(&fakeLister{}, siteDir)

	rec := get(t, r, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "index")

	rec = get(t, r, "/posts/post-1.html")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "one")

	assert.Equal(t, http.StatusNotFound, get(t, r, "/posts/post-2.html").Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/index.html", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
