// Package gitrepo provides the local git operations needed to push
// dependency fix commits to pull request branches.
package gitrepo

import (
	"context"
	"fmt"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

const (
	commitAuthorName  = "renowatch"
	commitAuthorEmail = "renowatch@localhost"
)

// Checkout is a local clone of a single branch of a remote repository.
type Checkout struct {
	repo *git.Repository
	auth *githttp.BasicAuth

	// Dir is the directory containing the worktree.
	Dir string
}

// Clone creates a shallow single-branch clone of the repository in dir.
// cloneURL must be an HTTPS URL, apiToken is used for authentication.
func Clone(ctx context.Context, dir, cloneURL, branch, apiToken string) (*Checkout, error) {
	auth := &githttp.BasicAuth{
		Username: "x-access-token",
		Password: apiToken,
	}

	repo, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           cloneURL,
		Auth:          auth,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
		SingleBranch:  true,
		Depth:         1,
	})
	if err != nil {
		return nil, fmt.Errorf("cloning %s branch %s failed: %w", cloneURL, branch, err)
	}

	return &Checkout{repo: repo, auth: auth, Dir: dir}, nil
}

// HasChanges reports whether the worktree contains uncommitted changes.
func (c *Checkout) HasChanges() (bool, error) {
	worktree, err := c.repo.Worktree()
	if err != nil {
		return false, err
	}

	status, err := worktree.Status()
	if err != nil {
		return false, fmt.Errorf("reading worktree status failed: %w", err)
	}

	return !status.IsClean(), nil
}

// CommitAll stages all changes in the worktree and commits them.
func (c *Checkout) CommitAll(message string) error {
	worktree, err := c.repo.Worktree()
	if err != nil {
		return err
	}

	if err := worktree.AddWithOptions(&git.AddOptions{All: true}); err != nil {
		return fmt.Errorf("staging changes failed: %w", err)
	}

	_, err = worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  commitAuthorName,
			Email: commitAuthorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return fmt.Errorf("committing changes failed: %w", err)
	}

	return nil
}

// Push pushes the local branch to the remote.
func (c *Checkout) Push(ctx context.Context) error {
	err := c.repo.PushContext(ctx, &git.PushOptions{Auth: c.auth})
	if err != nil {
		return fmt.Errorf("pushing changes failed: %w", err)
	}

	return nil
}
