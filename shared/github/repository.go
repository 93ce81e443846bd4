package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/go-github/v75/github"

	"github.com/dfryer1193/selfblog/blog/domain"
)

var _ domain.SourceRepository = (*SourceRepository)(nil)

// SourceRepository reads post sources from a GitHub repository.
type SourceRepository struct {
	client  *github.Client
	owner   string
	gitRepo string
}

// NewClient builds a GitHub API client. An empty token gives an
// unauthenticated client, which only works for public repositories.
func NewClient(token string) *github.Client {
	client := github.NewClient(&http.Client{Timeout: 30 * time.Second})
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return client
}

func NewSourceRepository(client *github.Client, owner string, gitRepo string) *SourceRepository {
	return &SourceRepository{
		client:  client,
		owner:   owner,
		gitRepo: gitRepo,
	}
}

// GetCommitsInRange fetches commits between baseCommit and headCommit (inclusive).
func (g *SourceRepository) GetCommitsInRange(ctx context.Context, baseCommit string, headCommit string) ([]*github.RepositoryCommit, error) {
	op := fmt.Sprintf("comparing commits %s...%s", baseCommit, headCommit)
	comparison, _, err := g.client.Repositories.CompareCommits(ctx, g.owner, g.gitRepo, baseCommit, headCommit, nil)
	if err != nil {
		return nil, handleGithubError(op, err)
	}
	return comparison.Commits, nil
}

// GetCommit fetches a single commit, including its changed files.
func (g *SourceRepository) GetCommit(ctx context.Context, sha string) (*github.RepositoryCommit, error) {
	op := fmt.Sprintf("getting commit %s", sha)
	commit, _, err := g.client.Repositories.GetCommit(ctx, g.owner, g.gitRepo, sha, nil)
	if err != nil {
		return nil, handleGithubError(op, err)
	}
	return commit, nil
}

// GetFileContents fetches a file at a ref (branch, tag, or commit SHA).
func (g *SourceRepository) GetFileContents(ctx context.Context, path string, ref string) ([]byte, error) {
	op := fmt.Sprintf("getting file %s at ref %s", path, ref)
	fileContent, _, _, err := g.client.Repositories.GetContents(ctx, g.owner, g.gitRepo, path, &github.RepositoryContentGetOptions{
		Ref: ref,
	})
	if err != nil {
		return nil, handleGithubError(op, err)
	}

	if fileContent == nil {
		return nil, fmt.Errorf("github: %s: path is a directory", op)
	}

	content, err := fileContent.GetContent()
	if err != nil {
		return nil, fmt.Errorf("github: %s failed to decode content: %w", op, err)
	}

	return []byte(content), nil
}

func (g *SourceRepository) GetRepoFullName() string {
	return fmt.Sprintf("%s/%s", g.owner, g.gitRepo)
}

// GetDefaultBranchName returns the branch pushes are published from.
func (g *SourceRepository) GetDefaultBranchName(ctx context.Context) (string, error) {
	op := fmt.Sprintf("getting repository info for %s", g.GetRepoFullName())
	repo, _, err := g.client.Repositories.Get(ctx, g.owner, g.gitRepo)
	if err != nil {
		return "", handleGithubError(op, err)
	}
	return repo.GetDefaultBranch(), nil
}

func handleGithubError(op string, err error) error {
	if err == nil {
		return nil
	}

	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		return fmt.Errorf("github: %s failed with status %d: %s", op, errResp.Response.StatusCode, errResp.Message)
	}

	return fmt.Errorf("github: %s failed: %w", op, err)
}
