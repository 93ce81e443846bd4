package application

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/dfryer1193/selfblog/blog/domain"
)

const (
	draftLockName = "new_post.lock"
	lastPostName  = "last_post"
	readyName     = "post_ready"
	previewName   = "preview.html"
	indexName     = "index.html"
	postsDirName  = "posts"
)

var markdownNameRegex = regexp.MustCompile(`^post-(\d+)\.md$`)

// PostHref is the index-relative link to a published post.
func PostHref(id int) string {
	return fmt.Sprintf("%s/post-%d.html", postsDirName, id)
}

// ParseMarkdownName extracts the id from a markdown artifact name such as
// "post-12.md". Directories in name are ignored.
func ParseMarkdownName(name string) (int, bool) {
	m := markdownNameRegex.FindStringSubmatch(filepath.Base(name))
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}

// Layout derives every artifact path from a post id and the configured
// directories.
type Layout struct {
	StateDir    string
	MarkdownDir string
	SiteDir     string
}

func (l Layout) DraftLockPath() string { return filepath.Join(l.StateDir, draftLockName) }
func (l Layout) LastPostPath() string  { return filepath.Join(l.StateDir, lastPostName) }
func (l Layout) ReadyPath() string     { return filepath.Join(l.StateDir, readyName) }
func (l Layout) PreviewPath() string   { return filepath.Join(l.StateDir, previewName) }
func (l Layout) IndexPath() string     { return filepath.Join(l.SiteDir, indexName) }
func (l Layout) PostsDir() string      { return filepath.Join(l.SiteDir, postsDirName) }

func (l Layout) MarkdownPath(id int) string {
	return filepath.Join(l.MarkdownDir, fmt.Sprintf("post-%d.md", id))
}

func (l Layout) MetadataPath(id int) string {
	return filepath.Join(l.MarkdownDir, fmt.Sprintf(".post-%d", id))
}

func (l Layout) RenderedPath(id int) string {
	return filepath.Join(l.SiteDir, PostHref(id))
}

// Post returns the post handle for id with all derived paths filled in.
func (l Layout) Post(id int) domain.Post {
	return domain.Post{
		ID:           id,
		MarkdownPath: l.MarkdownPath(id),
		MetadataPath: l.MetadataPath(id),
		RenderedPath: l.RenderedPath(id),
	}
}

// CountPosts counts markdown artifacts in the source directory. Each post
// owns exactly one post-{id}.md next to its .post-{id} metadata file.
func (l Layout) CountPosts() (int, error) {
	entries, err := os.ReadDir(l.MarkdownDir)
	if err != nil {
		return 0, &domain.IOError{Op: "count posts", Path: l.MarkdownDir, Err: err}
	}

	count := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := ParseMarkdownName(e.Name()); ok {
			count++
		}
	}
	return count, nil
}

// NextDraftID is the id the next created post receives: post count + 1.
func (l Layout) NextDraftID() (int, error) {
	count, err := l.CountPosts()
	if err != nil {
		return 0, err
	}
	return count + 1, nil
}
