package application

import (
	"strings"
	"testing"
)

func TestExtractHeading(t *testing.T) {
	tests := []struct {
		name     string
		markdown []byte
		expected string
	}{
		{
			name:     "Valid heading",
			markdown: []byte("# My Blog Post\nSome content"),
			expected: "My Blog Post",
		},
		{
			name:     "Heading with extra spaces",
			markdown: []byte("#   Title with spaces   \nContent"),
			expected: "Title with spaces",
		},
		{
			name:     "No heading",
			markdown: []byte("Some content without title"),
			expected: "",
		},
		{
			name:     "Empty markdown",
			markdown: []byte(""),
			expected: "",
		},
		{
			name:     "Hash without space",
			markdown: []byte("#NoSpace\nContent"),
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractHeading(tt.markdown)
			if result != tt.expected {
				t.Errorf("extractHeading() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestExtractSnippet(t *testing.T) {
	tests := []struct {
		name     string
		markdown []byte
		expected string
	}{
		{
			name:     "First paragraph after title",
			markdown: []byte("# Title\nThis is the first paragraph\n\nMore content"),
			expected: "This is the first paragraph",
		},
		{
			name:     "Multi-line first paragraph",
			markdown: []byte("# Title\nFirst line of paragraph.\nSecond line of paragraph.\n\nSecond paragraph"),
			expected: "First line of paragraph. Second line of paragraph.",
		},
		{
			name:     "Stop at code block",
			markdown: []byte("# Title\nFirst paragraph\n```\ncode\n```"),
			expected: "First paragraph",
		},
		{
			name:     "Stop at list",
			markdown: []byte("# Title\nIntro text\n- List item"),
			expected: "Intro text",
		},
		{
			name:     "Stop at table",
			markdown: []byte("# Title\nIntro\n| Col1 | Col2 |"),
			expected: "Intro",
		},
		{
			name:     "Truncate long paragraph",
			markdown: []byte("# Title\nThis is a very long paragraph that exceeds the maximum length limit and should be truncated at a word boundary to ensure that the snippet looks clean and professional without cutting words in the middle which would look unprofessional."),
			expected: "This is a very long paragraph that exceeds the maximum length limit and should be truncated at a word boundary to ensure that the snippet looks clean and professional without cutting words in the...",
		},
		{
			name:     "Only title, no content",
			markdown: []byte("# Title"),
			expected: "",
		},
		{
			name:     "Empty markdown",
			markdown: []byte(""),
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := extractSnippet(tt.markdown)
			if result != tt.expected {
				t.Errorf("extractSnippet() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestMarkdownRendererImpl_Render_HTMLOutput(t *testing.T) {
	renderer := NewMarkdownRenderer()

	tests := []struct {
		name           string
		markdown       []byte
		expectedInHTML []string
	}{
		{
			name:           "Bold text conversion",
			markdown:       []byte("**bold text**"),
			expectedInHTML: []string{"<strong>bold text</strong>"},
		},
		{
			name:           "Link conversion",
			markdown:       []byte("[Link](https://example.com)"),
			expectedInHTML: []string{`<a href="https://example.com">Link</a>`},
		},
		{
			name:           "Strikethrough",
			markdown:       []byte("~~strikethrough~~"),
			expectedInHTML: []string{"<del>strikethrough</del>"},
		},
		{
			name: "Table",
			markdown: []byte(`| Header1 | Header2 |
|---------|---------|
| Cell1   | Cell2   |`),
			expectedInHTML: []string{"<table>", "<thead>", "<tbody>"},
		},
		{
			name:           "Task list",
			markdown:       []byte("- [ ] Task 1\n- [x] Task 2"),
			expectedInHTML: []string{`type="checkbox"`, "checked"},
		},
		{
			name:           "Footnote",
			markdown:       []byte("Claim.[^1]\n\n[^1]: Source."),
			expectedInHTML: []string{"footnote-ref", "Source."},
		},
		{
			name:           "Smart punctuation",
			markdown:       []byte(`"quoted"`),
			expectedInHTML: []string{"&ldquo;quoted&rdquo;"},
		},
		{
			name:           "Definition list",
			markdown:       []byte("Term\n: Definition"),
			expectedInHTML: []string{"<dl>", "<dt>Term</dt>"},
		},
		{
			name:           "Raw HTML passes through",
			markdown:       []byte("<div class=\"note\">hi</div>"),
			expectedInHTML: []string{`<div class="note">hi</div>`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := renderer.Render(tt.markdown)

			htmlStr := string(result.HTMLContent)
			for _, expected := range tt.expectedInHTML {
				if !strings.Contains(htmlStr, expected) {
					t.Errorf("HTML does not contain expected string %q\nHTML:\n%s", expected, htmlStr)
				}
			}
		})
	}
}

func TestMarkdownRendererImpl_Render_Deterministic(t *testing.T) {
	renderer := NewMarkdownRenderer()
	source := []byte("# Title\n\nSome *text* with a footnote[^a].\n\n[^a]: note")

	first := renderer.Render(source)
	second := renderer.Render(source)

	if string(first.HTMLContent) != string(second.HTMLContent) {
		t.Errorf("re-rendering produced different HTML:\n%s\n---\n%s", first.HTMLContent, second.HTMLContent)
	}
}

func TestMarkdownRendererImpl_Render_Empty(t *testing.T) {
	result := NewMarkdownRenderer().Render(nil)
	if result == nil {
		t.Fatal("Render returned nil result")
	}
	if len(result.HTMLContent) != 0 {
		t.Errorf("HTMLContent = %q, want empty", result.HTMLContent)
	}
}

func TestMarkdownRendererImpl_Render_FrontMatter(t *testing.T) {
	source := []byte("---\ntitle: From Front Matter\ndescription: Short summary\n---\n# Heading\n\nFirst paragraph.")
	result := NewMarkdownRenderer().Render(source)

	if result.Title != "From Front Matter" {
		t.Errorf("Title = %q, want %q", result.Title, "From Front Matter")
	}
	if result.Description != "Short summary" {
		t.Errorf("Description = %q, want %q", result.Description, "Short summary")
	}
	if result.Heading != "Heading" {
		t.Errorf("Heading = %q, want %q", result.Heading, "Heading")
	}
	if result.Snippet != "First paragraph." {
		t.Errorf("Snippet = %q, want %q", result.Snippet, "First paragraph.")
	}
	if strings.Contains(string(result.HTMLContent), "title:") {
		t.Errorf("front matter leaked into HTML:\n%s", result.HTMLContent)
	}
}

func TestIsRelativeLink(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		expected bool
	}{
		{name: "Absolute HTTPS URL", url: "https://example.com/page", expected: false},
		{name: "Protocol-relative URL", url: "//example.com/page", expected: false},
		{name: "Mailto link", url: "mailto:user@example.com", expected: false},
		{name: "Fragment only", url: "#section", expected: false},
		{name: "Empty string", url: "", expected: false},
		{name: "Absolute path", url: "/about/contact", expected: true},
		{name: "Relative path with ./", url: "./post-2.md", expected: true},
		{name: "Relative path with ../", url: "../docs/readme.md", expected: true},
		{name: "Simple filename", url: "post-3.md", expected: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := isRelativeLink(tt.url)
			if result != tt.expected {
				t.Errorf("isRelativeLink(%q) = %v, want %v", tt.url, result, tt.expected)
			}
		})
	}
}

func TestMarkdownLinkTransformer(t *testing.T) {
	renderer := NewMarkdownRenderer()

	tests := []struct {
		name           string
		markdown       string
		expectedInHTML []string
		notInHTML      []string
	}{
		{
			name:           "Sibling post link",
			markdown:       "[Previous](post-2.md)",
			expectedInHTML: []string{`href="post-2.html"`},
			notInHTML:      []string{"post-2.md"},
		},
		{
			name:           "Sibling post link with fragment",
			markdown:       "[Previous](./post-2.md#intro)",
			expectedInHTML: []string{`href="./post-2.html#intro"`},
		},
		{
			name:           "Absolute markdown link unchanged",
			markdown:       "[Readme](https://example.com/README.md)",
			expectedInHTML: []string{`href="https://example.com/README.md"`},
		},
		{
			name:           "Non-markdown relative link unchanged",
			markdown:       "[About](/about)",
			expectedInHTML: []string{`href="/about"`},
		},
		{
			name:           "Image unchanged",
			markdown:       "![Alt](photo.md)",
			expectedInHTML: []string{`src="photo.md"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			html := string(renderer.Render([]byte(tt.markdown)).HTMLContent)

			for _, expected := range tt.expectedInHTML {
				if !strings.Contains(html, expected) {
					t.Errorf("HTML does not contain expected string %q\nHTML:\n%s", expected, html)
				}
			}
			for _, notExpected := range tt.notInHTML {
				if strings.Contains(html, notExpected) {
					t.Errorf("HTML contains unexpected string %q\nHTML:\n%s", notExpected, html)
				}
			}
		})
	}
}
