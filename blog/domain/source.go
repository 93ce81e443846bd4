package domain

import (
	"context"

	"github.com/google/go-github/v75/github"
)

// SourceRepository gives access to the remote repository holding the markdown
// source tree (e.g. GitHub). Only the sync service uses it.
type SourceRepository interface {
	GetCommitsInRange(ctx context.Context, baseCommit string, headCommit string) ([]*github.RepositoryCommit, error)
	GetCommit(ctx context.Context, sha string) (*github.RepositoryCommit, error)
	GetFileContents(ctx context.Context, path string, ref string) ([]byte, error)
	GetDefaultBranchName(ctx context.Context) (string, error)
	GetRepoFullName() string
}
