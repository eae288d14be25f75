package gitrepo

import (
	"errors"
	"fmt"
	"strings"

	git2go "github.com/libgit2/git2go/v34"
)

// ErrNoBranches is returned for repositories with no commits on any branch.
var ErrNoBranches = errors.New("repository has no branches")

// Repository wraps a libgit2 repository opened from a local clone.
type Repository struct {
	repo *git2go.Repository
	path string
}

// Open opens the repository at path.
func Open(path string) (*Repository, error) {
	repo, err := git2go.OpenRepository(path)
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	return &Repository{repo: repo, path: path}, nil
}

// Path returns the worktree path.
func (r *Repository) Path() string { return r.path }

// Free releases the repository resources.
func (r *Repository) Free() {
	if r.repo != nil {
		r.repo.Free()
		r.repo = nil
	}
}

// ResolveDefaultBranch picks the judging branch: the first candidate that
// exists locally or on origin, else the first branch found. The worktree is
// checked out to the result.
func (r *Repository) ResolveDefaultBranch(candidates []string) (string, error) {
	if empty, err := r.repo.IsEmpty(); err == nil && empty {
		return "", ErrNoBranches
	}

	for _, name := range candidates {
		if branch, err := r.repo.LookupBranch(name, git2go.BranchLocal); err == nil {
			branch.Free()
			if err := r.checkoutLocal(name); err != nil {
				return "", err
			}
			return name, nil
		}
		if branch, err := r.repo.LookupBranch("origin/"+name, git2go.BranchRemote); err == nil {
			target := branch.Target()
			branch.Free()
			if err := r.checkoutRemote(name, target); err != nil {
				return "", err
			}
			return name, nil
		}
	}

	first, err := r.firstLocalBranch()
	if err != nil {
		return "", err
	}
	if err := r.checkoutLocal(first); err != nil {
		return "", err
	}
	return first, nil
}

func (r *Repository) firstLocalBranch() (string, error) {
	iter, err := r.repo.NewBranchIterator(git2go.BranchLocal)
	if err != nil {
		return "", fmt.Errorf("iterate branches: %w", err)
	}
	defer iter.Free()

	var first string
	stop := errors.New("stop")
	err = iter.ForEach(func(b *git2go.Branch, _ git2go.BranchType) error {
		name, nameErr := b.Name()
		if nameErr != nil {
			return nil
		}
		first = name
		return stop
	})
	if err != nil && !errors.Is(err, stop) {
		return "", fmt.Errorf("iterate branches: %w", err)
	}
	if first == "" {
		return "", ErrNoBranches
	}
	return first, nil
}

func (r *Repository) checkoutLocal(name string) error {
	if err := r.repo.SetHead("refs/heads/" + name); err != nil {
		return fmt.Errorf("set HEAD to %s: %w", name, err)
	}
	return r.forceCheckout()
}

// checkoutRemote creates a local branch tracking the origin commit and
// checks it out.
func (r *Repository) checkoutRemote(name string, target *git2go.Oid) error {
	commit, err := r.repo.LookupCommit(target)
	if err != nil {
		return fmt.Errorf("lookup origin/%s tip: %w", name, err)
	}
	defer commit.Free()

	branch, err := r.repo.CreateBranch(name, commit, false)
	if err != nil && !strings.Contains(err.Error(), "exists") {
		return fmt.Errorf("create branch %s: %w", name, err)
	}
	if branch != nil {
		branch.Free()
	}
	return r.checkoutLocal(name)
}

func (r *Repository) forceCheckout() error {
	if err := r.repo.CheckoutHead(&git2go.CheckoutOptions{Strategy: git2go.CheckoutForce}); err != nil {
		return fmt.Errorf("checkout HEAD: %w", err)
	}
	return nil
}

// BranchCount counts local branches plus remote branches without a local
// counterpart.
func (r *Repository) BranchCount() (int, error) {
	iter, err := r.repo.NewBranchIterator(git2go.BranchAll)
	if err != nil {
		return 0, fmt.Errorf("iterate branches: %w", err)
	}
	defer iter.Free()

	seen := map[string]bool{}
	err = iter.ForEach(func(b *git2go.Branch, _ git2go.BranchType) error {
		name, nameErr := b.Name()
		if nameErr != nil {
			return nil
		}
		name = strings.TrimPrefix(name, "origin/")
		if name != "HEAD" {
			seen[name] = true
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("iterate branches: %w", err)
	}
	return len(seen), nil
}
