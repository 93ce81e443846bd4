package application

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"

	"github.com/dfryer1193/selfblog/blog/domain"
	"github.com/dfryer1193/selfblog/shared/fsutil"
)

// DefaultTemplate is the page template written by Scaffold.
const DefaultTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>selfblog</title>
  <link rel="stylesheet" href="../style.css">
</head>
<body>
  <a href="../index.html">Home</a>
  ` + TitlePlaceholder + `
  <article>
` + PostPlaceholder + `
  </article>
</body>
</html>
`

// DefaultIndex is the index page written by Scaffold.
const DefaultIndex = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>selfblog</title>
  <link rel="stylesheet" href="style.css">
</head>
<body>
  <h1>Posts</h1>
  ` + IndexMarker + `
</body>
</html>
`

// Scaffold creates the directories of layout and writes the default template
// and index page. Existing files are left alone. It returns the files it
// created.
func Scaffold(layout Layout, templatePath string) ([]string, error) {
	for _, dir := range []string{layout.StateDir, layout.MarkdownDir, layout.PostsDir(), filepath.Dir(templatePath)} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, &domain.IOError{Op: "init", Path: dir, Err: err}
		}
	}

	var created []string
	files := []struct {
		path    string
		content string
	}{
		{templatePath, DefaultTemplate},
		{layout.IndexPath(), DefaultIndex},
	}
	for _, f := range files {
		exists, err := fsutil.Exists(f.path)
		if err != nil {
			return created, &domain.IOError{Op: "init", Path: f.path, Err: err}
		}
		if exists {
			log.Debug().Str("path", f.path).Msg("Keeping existing file")
			continue
		}
		if err := fsutil.WriteFileAtomic(f.path, []byte(f.content), 0644); err != nil {
			return created, &domain.IOError{Op: "init", Path: f.path, Err: err}
		}
		created = append(created, f.path)
	}

	return created, nil
}
