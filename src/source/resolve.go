package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Resolver materializes descriptors into local directories.
type Resolver struct {
	Logger *slog.Logger

	// Progress receives git transfer progress when set.
	Progress io.Writer
}

func (r *Resolver) logger() *slog.Logger {
	if r != nil && r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Resolve returns a local directory holding the application tree described
// by d. Remote repositories are cloned into scratch, which must be an empty
// or missing directory owned by the caller.
func (r *Resolver) Resolve(ctx context.Context, d Descriptor, scratch string) (string, error) {
	switch src := d.(type) {
	case Git:
		return r.resolveGit(ctx, src, scratch)
	case GitDirectory:
		return r.resolveGitDirectory(src)
	case Directory:
		return resolveDirectory(src)
	default:
		return "", fmt.Errorf("%w: %T", ErrUnknownDescriptor, d)
	}
}

func (r *Resolver) resolveGit(ctx context.Context, src Git, scratch string) (string, error) {
	fail := func(err error) (string, error) {
		return "", &ResolutionError{Kind: KindGit, Target: src.URI, Err: err}
	}

	if scratch == "" {
		return fail(errors.New("no scratch directory for clone"))
	}

	r.logger().Info("cloning repository", "uri", src.URI, "ref", src.Ref)

	// Refs name either a branch or a tag; branches win when both exist.
	var errs []error
	for _, name := range []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(src.Ref),
		plumbing.NewTagReferenceName(src.Ref),
	} {
		if err := os.RemoveAll(scratch); err != nil {
			return fail(err)
		}
		_, err := git.PlainCloneContext(ctx, scratch, false, &git.CloneOptions{
			URL:           src.URI,
			ReferenceName: name,
			SingleBranch:  true,
			Depth:         1,
			Progress:      r.Progress,
		})
		if err == nil {
			return scratch, nil
		}
		if ctx.Err() != nil {
			return fail(ctx.Err())
		}
		errs = append(errs, fmt.Errorf("%s: %w", name, err))
	}

	return fail(errors.Join(errs...))
}

func (r *Resolver) resolveGitDirectory(src GitDirectory) (string, error) {
	fail := func(err error) (string, error) {
		return "", &ResolutionError{Kind: KindGitDirectory, Target: src.Path, Err: err}
	}

	dir, err := filepath.Abs(src.Path)
	if err != nil {
		return fail(err)
	}

	repo, err := git.PlainOpen(dir)
	if err != nil {
		return fail(err)
	}

	hash, err := resolveRef(repo, src.Ref)
	if err != nil {
		return fail(err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fail(err)
	}

	r.logger().Info("checking out working copy", "path", dir, "ref", src.Ref, "commit", hash.String())

	opts := &git.CheckoutOptions{Hash: hash}
	if local := plumbing.NewBranchReferenceName(src.Ref); refExists(repo, local) {
		opts = &git.CheckoutOptions{Branch: local}
	}
	if err := wt.Checkout(opts); err != nil {
		return fail(fmt.Errorf("checkout %s: %w", src.Ref, err))
	}

	return dir, nil
}

// resolveRef looks the ref up as a local branch, a remote branch of origin
// and a tag, in that order.
func resolveRef(repo *git.Repository, ref string) (plumbing.Hash, error) {
	candidates := []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(ref),
		plumbing.NewRemoteReferenceName("origin", ref),
		plumbing.NewTagReferenceName(ref),
	}
	for _, name := range candidates {
		hash, err := repo.ResolveRevision(plumbing.Revision(name))
		if err == nil {
			return *hash, nil
		}
	}
	return plumbing.ZeroHash, fmt.Errorf("ref %q: %w", ref, plumbing.ErrReferenceNotFound)
}

func refExists(repo *git.Repository, name plumbing.ReferenceName) bool {
	_, err := repo.Reference(name, true)
	return err == nil
}

func resolveDirectory(src Directory) (string, error) {
	dir, err := filepath.Abs(src.Path)
	if err != nil {
		return "", &ResolutionError{Kind: KindDirectory, Target: src.Path, Err: err}
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", &ResolutionError{Kind: KindDirectory, Target: src.Path, Err: err}
	}
	if !info.IsDir() {
		return "", &ResolutionError{Kind: KindDirectory, Target: src.Path, Err: errors.New("not a directory")}
	}
	return dir, nil
}
