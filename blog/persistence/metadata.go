package persistence

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/dfryer1193/selfblog/blog/domain"
	"github.com/dfryer1193/selfblog/shared/fsutil"
)

var _ domain.MetadataStore = (*YAMLMetadataStore)(nil)

// YAMLMetadataStore persists post metadata artifacts as small YAML documents:
//
//	id: 3
//	title: Hello
//	description: World
type YAMLMetadataStore struct{}

func NewMetadataStore() *YAMLMetadataStore {
	return &YAMLMetadataStore{}
}

func (s *YAMLMetadataStore) Read(path string) (*domain.PostMeta, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &domain.NotFoundError{Op: "read metadata", Artifact: path, Reason: "post metadata does not exist"}
		}
		return nil, &domain.IOError{Op: "read metadata", Path: path, Err: err}
	}

	var meta domain.PostMeta
	if err := yaml.Unmarshal(raw, &meta); err != nil {
		return nil, &domain.IOError{Op: "parse metadata", Path: path, Err: err}
	}

	return &meta, nil
}

func (s *YAMLMetadataStore) Write(path string, meta *domain.PostMeta) error {
	if meta == nil {
		return fmt.Errorf("metadata cannot be nil")
	}

	raw, err := yaml.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to encode metadata: %w", err)
	}

	if err := fsutil.WriteFileAtomic(path, raw, 0644); err != nil {
		return &domain.IOError{Op: "write metadata", Path: path, Err: err}
	}

	return nil
}
