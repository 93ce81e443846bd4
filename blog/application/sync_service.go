package application

import (
	"context"
	"fmt"
	"path"
	"strings"
	"sync"

	"github.com/google/go-github/v75/github"
	"github.com/rs/zerolog/log"

	"github.com/dfryer1193/selfblog/blog/domain"
	"github.com/dfryer1193/selfblog/shared/fsutil"
)

const zeroSHA = "0000000000000000000000000000000000000000"

// SyncService mirrors post sources pushed to a remote repository into the
// local markdown directory and refreshes the published pages built from them.
type SyncService struct {
	sourceRepo     domain.SourceRepository
	engine         *Engine
	prefix         string
	mainBranchName string

	// Service lifecycle context - cancelled when Close() is called
	ctx    context.Context
	cancel context.CancelFunc
	wg     *sync.WaitGroup

	// Engine operations rewrite the index page; one at a time.
	mu sync.Mutex
}

// NewSyncService watches files named post-{id}.md under prefix in the remote
// repository. An empty prefix means the repository root.
func NewSyncService(engine *Engine, sourceRepo domain.SourceRepository, prefix string, mainBranchName string) *SyncService {
	ctx, cancel := context.WithCancel(context.Background())
	prefix = strings.Trim(prefix, "/")
	return &SyncService{
		sourceRepo:     sourceRepo,
		engine:         engine,
		prefix:         prefix,
		mainBranchName: mainBranchName,
		ctx:            ctx,
		cancel:         cancel,
		wg:             &sync.WaitGroup{},
	}
}

// Close cancels in-flight syncs and waits for them to finish.
func (s *SyncService) Close() error {
	s.cancel()
	s.wg.Wait()

	return nil
}

// Wait blocks until every sync started so far has finished.
func (s *SyncService) Wait() {
	s.wg.Wait()
}

// HandlePushEvent validates the push and hands the changed post sources to a
// background worker. Pushes to branches other than the main branch are
// ignored.
func (s *SyncService) HandlePushEvent(evt *github.PushEvent) error {
	if evt.GetRef() != "refs/heads/"+s.mainBranchName {
		log.Debug().Str("ref", evt.GetRef()).Msg("Ignoring push to non-main branch")
		return nil
	}

	var commits []*github.RepositoryCommit
	if evt.GetBefore() != "" && evt.GetBefore() != zeroSHA {
		var err error
		commits, err = s.sourceRepo.GetCommitsInRange(s.ctx, evt.GetBefore(), evt.GetAfter())
		if err != nil {
			return fmt.Errorf("failed to get commits in range %s...%s: %w", evt.GetBefore(), evt.GetAfter(), err)
		}
	} else {
		// New branch or first commit - just get the head commit
		headCommit, err := s.sourceRepo.GetCommit(s.ctx, evt.GetAfter())
		if err != nil {
			return fmt.Errorf("failed to get commit %s: %w", evt.GetAfter(), err)
		}
		commits = []*github.RepositoryCommit{headCommit}
	}

	changes, err := s.analyzeCommitFiles(commits)
	if err != nil {
		return fmt.Errorf("failed to analyze commits: %w", err)
	}

	if len(changes.updated) == 0 && len(changes.removed) == 0 {
		return nil
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.apply(changes)
	}()

	return nil
}

// sourceChanges is the net effect of a range of commits on post sources.
type sourceChanges struct {
	// updated maps a remote path to the SHA of the commit that last touched it.
	updated map[string]string
	removed map[string]struct{}
}

func (s *SyncService) analyzeCommitFiles(commits []*github.RepositoryCommit) (*sourceChanges, error) {
	changes := &sourceChanges{
		updated: make(map[string]string),
		removed: make(map[string]struct{}),
	}

	for _, commitSummary := range commits {
		fullCommit, err := s.sourceRepo.GetCommit(s.ctx, commitSummary.GetSHA())
		if err != nil {
			return nil, fmt.Errorf("failed to get full commit %s: %w", commitSummary.GetSHA(), err)
		}

		for _, file := range fullCommit.Files {
			s.handleCommitFile(changes, file.GetFilename(), file.GetStatus(), file.GetPreviousFilename(), fullCommit.GetSHA())
		}
	}
	return changes, nil
}

// handleCommitFile folds one file change into changes. Later commits win.
func (s *SyncService) handleCommitFile(changes *sourceChanges, filePath, status, previousPath, sha string) {
	currentIsPost := s.isPostFile(filePath)
	previousIsPost := s.isPostFile(previousPath)

	if !currentIsPost && !previousIsPost {
		return
	}

	switch status {
	case "added", "modified", "changed":
		if currentIsPost {
			changes.updated[filePath] = sha
			delete(changes.removed, filePath)
		}
	case "removed":
		if currentIsPost {
			changes.removed[filePath] = struct{}{}
			delete(changes.updated, filePath)
		}
	case "renamed":
		if previousIsPost {
			changes.removed[previousPath] = struct{}{}
			delete(changes.updated, previousPath)
		}
		if currentIsPost {
			changes.updated[filePath] = sha
			delete(changes.removed, filePath)
		}
	}
}

func (s *SyncService) apply(changes *sourceChanges) {
	for filePath := range changes.removed {
		if err := s.removePost(filePath); err != nil {
			log.Error().Err(err).Str("path", filePath).Msg("Failed to unpublish removed post")
		}
	}

	for filePath, sha := range changes.updated {
		if s.ctx.Err() != nil {
			return
		}
		if err := s.syncPost(s.ctx, filePath, sha); err != nil {
			log.Error().Err(err).Str("path", filePath).Str("commitSHA", sha).Msg("Failed to sync post")
		}
	}
}

// syncPost writes the remote version of a post source over the local one and
// re-renders the page if the post is published. Only posts opened locally are
// synced: a source without its metadata would shift every later id.
func (s *SyncService) syncPost(ctx context.Context, filePath, sha string) error {
	id, ok := ParseMarkdownName(filePath)
	if !ok {
		return nil
	}

	layout := s.engine.Layout()
	known, err := fsutil.Exists(layout.MetadataPath(id))
	if err != nil {
		return err
	}
	if !known {
		log.Warn().Int("postID", id).Str("path", filePath).Msg("Skipping post without local metadata")
		return nil
	}

	content, err := s.sourceRepo.GetFileContents(ctx, filePath, sha)
	if err != nil {
		return fmt.Errorf("failed to get file contents: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target := layout.MarkdownPath(id)
	if err := fsutil.WriteFileAtomic(target, content, 0644); err != nil {
		return &domain.IOError{Op: "sync", Path: target, Err: err}
	}
	log.Info().Int("postID", id).Str("commitSHA", sha).Msg("Post source synced")

	published, err := fsutil.Exists(layout.RenderedPath(id))
	if err != nil {
		return err
	}
	if !published {
		return nil
	}

	return s.engine.Update(ctx, id)
}

func (s *SyncService) removePost(filePath string) error {
	id, ok := ParseMarkdownName(filePath)
	if !ok {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	published, err := fsutil.Exists(s.engine.Layout().RenderedPath(id))
	if err != nil || !published {
		return err
	}
	return s.engine.Delete(s.ctx, id)
}

// isPostFile reports whether a remote path is a post source under the
// configured prefix.
func (s *SyncService) isPostFile(filePath string) bool {
	if filePath == "" {
		return false
	}
	if path.Dir(filePath) != s.dir() {
		return false
	}
	_, ok := ParseMarkdownName(filePath)
	return ok
}

func (s *SyncService) dir() string {
	if s.prefix == "" {
		return "."
	}
	return s.prefix
}
