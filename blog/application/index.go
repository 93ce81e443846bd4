package application

import (
	"errors"
	"fmt"
	"html"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dfryer1193/selfblog/blog/domain"
	"github.com/dfryer1193/selfblog/shared/fsutil"
)

// IndexMarker is the comment line new summary blocks are inserted after.
const IndexMarker = "<!-- [new_post_redirect] -->"

// summaryBlockLines is the number of lines a summary block occupies,
// starting with its <a> line.
const summaryBlockLines = 4

var (
	anchorIDRegex      = regexp.MustCompile(`^<a\s+title="post-(\d+)"`)
	titleLineRegex     = regexp.MustCompile(`^<p class="[^"]*">(\d{4})-(\d{2})-(\d{2}): (.*)</p>$`)
	descriptionLineRex = regexp.MustCompile(`^<p class="[^"]*">Description: (.*)</p>$`)
)

// CSSClasses are the class names applied to generated summary markup.
type CSSClasses struct {
	Title       string
	Description string
}

// SummaryBlock renders the lines of an index entry linking to posts/post-{id}.html.
func SummaryBlock(entry domain.PostSummary, classes CSSClasses) []string {
	d := entry.Date
	return []string{
		fmt.Sprintf(`<a title="post-%d" href="%s">`, entry.ID, PostHref(entry.ID)),
		fmt.Sprintf(`<p class="%s">%d-%02d-%02d: %s</p>`, classes.Title, d.Year(), int(d.Month()), d.Day(), html.EscapeString(entry.Title)),
		fmt.Sprintf(`<p class="%s">Description: %s</p>`, classes.Description, html.EscapeString(entry.Description)),
		"</a>",
	}
}

// InsertEntry places a summary block directly after every marker line, so
// the newest post is listed first. An existing block for the same id is
// dropped first; inserting twice never duplicates an entry.
func InsertEntry(content string, entry domain.PostSummary, classes CSSClasses) (string, error) {
	content, _ = RemoveEntry(content, entry.ID)

	lines, trailingNewline := splitLines(content)
	block := SummaryBlock(entry, classes)

	out := make([]string, 0, len(lines)+len(block))
	found := false
	for _, line := range lines {
		out = append(out, line)
		if strings.TrimSpace(line) == IndexMarker {
			out = append(out, block...)
			found = true
		}
	}

	if !found {
		return content, &domain.NotFoundError{
			Op:       "index insert",
			Artifact: IndexMarker,
			Reason:   "marker comment not found in index",
		}
	}

	return joinLines(out, trailingNewline), nil
}

// RemoveEntry drops the block whose anchor line matches id: the anchor line
// and the three lines after it. It reports whether anything was removed.
func RemoveEntry(content string, id int) (string, bool) {
	lines, trailingNewline := splitLines(content)

	out := make([]string, 0, len(lines))
	removed := false
	skip := 0
	for _, line := range lines {
		if skip > 0 {
			skip--
			continue
		}
		if isAnchorFor(line, id) {
			skip = summaryBlockLines - 1
			removed = true
			continue
		}
		out = append(out, line)
	}

	if !removed {
		return content, false
	}
	return joinLines(out, trailingNewline), true
}

// ReplaceEntry rewrites the block for entry.ID in place, keeping its position.
func ReplaceEntry(content string, entry domain.PostSummary, classes CSSClasses) (string, bool) {
	lines, trailingNewline := splitLines(content)
	block := SummaryBlock(entry, classes)

	out := make([]string, 0, len(lines))
	replaced := false
	skip := 0
	for _, line := range lines {
		if skip > 0 {
			skip--
			continue
		}
		if isAnchorFor(line, entry.ID) {
			out = append(out, block...)
			skip = summaryBlockLines - 1
			replaced = true
			continue
		}
		out = append(out, line)
	}

	if !replaced {
		return content, false
	}
	return joinLines(out, trailingNewline), true
}

// ParseIndex reads the summary entries of an index page in display order.
// Fields that cannot be parsed are left zero.
func ParseIndex(content string) []domain.PostSummary {
	lines, _ := splitLines(content)

	var entries []domain.PostSummary
	for i, line := range lines {
		m := anchorIDRegex.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		id, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}

		entry := domain.PostSummary{ID: id}
		if i+1 < len(lines) {
			if tm := titleLineRegex.FindStringSubmatch(strings.TrimSpace(lines[i+1])); tm != nil {
				entry.Title = html.UnescapeString(tm[4])
				if date, err := time.Parse("2006-01-02", tm[1]+"-"+tm[2]+"-"+tm[3]); err == nil {
					entry.Date = date
				}
			}
		}
		if i+2 < len(lines) {
			if dm := descriptionLineRex.FindStringSubmatch(strings.TrimSpace(lines[i+2])); dm != nil {
				entry.Description = html.UnescapeString(dm[1])
			}
		}
		entries = append(entries, entry)
	}

	return entries
}

func isAnchorFor(line string, id int) bool {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, "<a") {
		return false
	}
	if strings.HasPrefix(trimmed, fmt.Sprintf(`<a title="post-%d"`, id)) {
		return true
	}
	return strings.Contains(trimmed, fmt.Sprintf(`href="%s"`, PostHref(id)))
}

func splitLines(content string) ([]string, bool) {
	if content == "" {
		return nil, false
	}
	trailingNewline := strings.HasSuffix(content, "\n")
	content = strings.TrimSuffix(content, "\n")
	return strings.Split(content, "\n"), trailingNewline
}

func joinLines(lines []string, trailingNewline bool) string {
	out := strings.Join(lines, "\n")
	if trailingNewline {
		out += "\n"
	}
	return out
}

// IndexPatcher applies entry edits to the index page on disk. Every edit
// rewrites the whole file.
type IndexPatcher struct {
	path    string
	classes CSSClasses
}

func NewIndexPatcher(path string, classes CSSClasses) *IndexPatcher {
	return &IndexPatcher{path: path, classes: classes}
}

func (p *IndexPatcher) Path() string {
	return p.path
}

func (p *IndexPatcher) Insert(entry domain.PostSummary) error {
	content, err := p.read("index insert")
	if err != nil {
		return err
	}

	updated, err := InsertEntry(content, entry, p.classes)
	if err != nil {
		var nf *domain.NotFoundError
		if errors.As(err, &nf) {
			nf.Artifact = p.path
		}
		return err
	}

	return p.write("index insert", updated)
}

func (p *IndexPatcher) Remove(id int) (bool, error) {
	content, err := p.read("index remove")
	if err != nil {
		return false, err
	}

	updated, removed := RemoveEntry(content, id)
	if !removed {
		return false, nil
	}

	return true, p.write("index remove", updated)
}

func (p *IndexPatcher) Replace(entry domain.PostSummary) (bool, error) {
	content, err := p.read("index replace")
	if err != nil {
		return false, err
	}

	updated, replaced := ReplaceEntry(content, entry, p.classes)
	if !replaced {
		return false, nil
	}

	return true, p.write("index replace", updated)
}

func (p *IndexPatcher) Entries() ([]domain.PostSummary, error) {
	content, err := p.read("index parse")
	if err != nil {
		return nil, err
	}
	return ParseIndex(content), nil
}

func (p *IndexPatcher) read(op string) (string, error) {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", &domain.NotFoundError{Op: op, Artifact: p.path, Reason: "index page does not exist"}
		}
		return "", &domain.IOError{Op: op, Path: p.path, Err: err}
	}
	return string(raw), nil
}

func (p *IndexPatcher) write(op string, content string) error {
	if err := fsutil.WriteFileAtomic(p.path, []byte(content), 0644); err != nil {
		return &domain.IOError{Op: op, Path: p.path, Err: err}
	}
	return nil
}
