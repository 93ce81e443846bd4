package application

import (
	"bytes"
	"html"
	"strings"

	"github.com/adrg/frontmatter"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"
)

const maxSnippetLength = 200

// MarkdownProcessingResult contains the results of processing a markdown file
type MarkdownProcessingResult struct {
	// Title and Description come from an optional front matter block.
	Title       string
	Description string
	// Heading is the first "# " line of the body, if any.
	Heading     string
	Snippet     string
	HTMLContent []byte
}

type postFrontMatter struct {
	Title       string `yaml:"title"`
	Description string `yaml:"description"`
}

// markdownLinkTransformer points relative links at sibling markdown posts
// ("post-3.md") to their rendered pages ("post-3.html").
type markdownLinkTransformer struct{}

func (t *markdownLinkTransformer) Transform(node *ast.Document, reader text.Reader, pc parser.Context) {
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		link, ok := n.(*ast.Link)
		if !ok {
			return ast.WalkContinue, nil
		}

		dest := string(link.Destination)
		if !isRelativeLink(dest) {
			return ast.WalkContinue, nil
		}

		base, fragment, _ := strings.Cut(dest, "#")
		if !strings.HasSuffix(base, ".md") {
			return ast.WalkContinue, nil
		}

		rewritten := strings.TrimSuffix(base, ".md") + ".html"
		if fragment != "" {
			rewritten += "#" + fragment
		}
		link.Destination = []byte(rewritten)

		return ast.WalkContinue, nil
	})
}

func isRelativeLink(dest string) bool {
	if dest == "" || strings.HasPrefix(dest, "#") {
		return false
	}

	if strings.HasPrefix(dest, "/") {
		return !strings.HasPrefix(dest, "//")
	}

	if strings.HasPrefix(dest, "./") || strings.HasPrefix(dest, "../") {
		return true
	}

	if strings.Contains(dest, ":") {
		return false
	}

	return true
}

// MarkdownRenderer defines the interface for converting markdown to HTML.
// Rendering is total: malformed input still yields best-effort HTML.
type MarkdownRenderer interface {
	Render(markdown []byte) *MarkdownProcessingResult
}

type MarkdownRendererImpl struct {
	renderer goldmark.Markdown
}

// NewMarkdownRenderer builds a CommonMark renderer with every optional syntax
// extension enabled so re-renders of the same source are identical.
func NewMarkdownRenderer() MarkdownRenderer {
	renderer := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Table,
			extension.Strikethrough,
			extension.TaskList,
			extension.Footnote,
			extension.DefinitionList,
			extension.Typographer,
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
			parser.WithAttribute(),
			parser.WithASTTransformers(
				util.Prioritized(&markdownLinkTransformer{}, 100),
			),
		),
		goldmark.WithRendererOptions(
			gmhtml.WithUnsafe(),
		),
	)

	return &MarkdownRendererImpl{
		renderer: renderer,
	}
}

func (r *MarkdownRendererImpl) Render(markdown []byte) *MarkdownProcessingResult {
	var meta postFrontMatter
	body, err := frontmatter.Parse(bytes.NewReader(markdown), &meta)
	if err != nil {
		// Not valid front matter; render the whole source as the body.
		log.Debug().Err(err).Msg("Ignoring unparsable front matter")
		body = markdown
		meta = postFrontMatter{}
	}

	var buf bytes.Buffer
	if err := r.renderer.Convert(body, &buf); err != nil {
		log.Error().Err(err).Msg("Markdown conversion failed, emitting escaped source")
		buf.Reset()
		buf.WriteString("<pre>")
		buf.WriteString(html.EscapeString(string(body)))
		buf.WriteString("</pre>\n")
	}

	return &MarkdownProcessingResult{
		Title:       strings.TrimSpace(meta.Title),
		Description: strings.TrimSpace(meta.Description),
		Heading:     extractHeading(body),
		Snippet:     extractSnippet(body),
		HTMLContent: buf.Bytes(),
	}
}

func extractHeading(markdown []byte) string {
	lines := strings.SplitN(string(markdown), "\n", 2)
	firstLine := strings.TrimSpace(lines[0])
	title, found := strings.CutPrefix(firstLine, "# ")
	if !found {
		return ""
	}

	return strings.TrimSpace(title)
}

func extractSnippet(markdown []byte) string {
	lines := strings.Split(string(markdown), "\n")
	var paragraphLines []string

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)

		// Skip headings before we find content
		if strings.HasPrefix(trimmed, "#") {
			if len(paragraphLines) > 0 {
				break
			}
			continue
		}

		if trimmed == "" {
			if len(paragraphLines) > 0 {
				break
			}
			continue
		}

		// Stop at code blocks, horizontal rules, lists, tables
		if strings.HasPrefix(trimmed, "```") ||
			strings.HasPrefix(trimmed, "---") ||
			strings.HasPrefix(trimmed, "***") ||
			strings.HasPrefix(trimmed, "- ") ||
			strings.HasPrefix(trimmed, "* ") ||
			strings.HasPrefix(trimmed, "+ ") ||
			strings.HasPrefix(trimmed, "|") {
			if len(paragraphLines) > 0 {
				break
			}
			continue
		}

		paragraphLines = append(paragraphLines, trimmed)
	}

	if len(paragraphLines) == 0 {
		return ""
	}

	snippet := strings.Join(paragraphLines, " ")

	if len(snippet) > maxSnippetLength {
		snippet = snippet[:maxSnippetLength]
		if lastSpace := strings.LastIndexAny(snippet, " \t"); lastSpace > 0 {
			snippet = snippet[:lastSpace]
		}
		snippet += "..."
	}

	return snippet
}
