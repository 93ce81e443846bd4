package application

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dfryer1193/selfblog/blog/domain"
)

const (
	TitlePlaceholder = "[selfblog_main_title]"
	PostPlaceholder  = "[selfblog_post]"
)

// FormatHeader renders the date/title line shown at the top of a post.
func FormatHeader(title string, date time.Time) string {
	return fmt.Sprintf("<p>%d-%02d-%02d: %s</p>", date.Year(), int(date.Month()), date.Day(), title)
}

// Compose substitutes every occurrence of both placeholders. A template
// without placeholders passes through unchanged.
func Compose(template string, title string, date time.Time, bodyHTML string) string {
	out := strings.ReplaceAll(template, TitlePlaceholder, FormatHeader(title, date))
	return strings.ReplaceAll(out, PostPlaceholder, bodyHTML)
}

// TemplateCompositor reads the page template from disk and composes posts
// into it.
type TemplateCompositor struct {
	path string
}

func NewTemplateCompositor(path string) *TemplateCompositor {
	return &TemplateCompositor{path: path}
}

func (c *TemplateCompositor) Compose(title string, date time.Time, bodyHTML string) (string, error) {
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return "", &domain.TemplateError{Path: c.path, Err: err}
	}

	return Compose(string(raw), title, date, bodyHTML), nil
}
