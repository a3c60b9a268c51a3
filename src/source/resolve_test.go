package source

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func commitFile(t *testing.T, repo *git.Repository, dir, name, content string) plumbing.Hash {
	t.Helper()

	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	wt, err := repo.Worktree()
	require.NoError(t, err)
	_, err = wt.Add(name)
	require.NoError(t, err)
	hash, err := wt.Commit("update "+name, &git.CommitOptions{
		Author: &object.Signature{Name: "vdist", Email: "vdist@example.test", When: time.Now()},
	})
	require.NoError(t, err)
	return hash
}

func TestResolveDirectory(t *testing.T) {
	dir := t.TempDir()

	got, err := (&Resolver{}).Resolve(context.Background(), Directory{Path: dir}, "")
	require.NoError(t, err)
	assert.Equal(t, dir, got)
}

func TestResolveDirectoryMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope")

	_, err := (&Resolver{}).Resolve(context.Background(), Directory{Path: missing}, "")
	require.Error(t, err)

	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, KindDirectory, resErr.Kind)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestResolveDirectoryRejectsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o644))

	_, err := (&Resolver{}).Resolve(context.Background(), Directory{Path: file}, "")
	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
}

func TestResolveGitDirectoryChecksOutBranch(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	first := commitFile(t, repo, dir, "app.py", "one")
	require.NoError(t, repo.Storer.SetReference(
		plumbing.NewHashReference(plumbing.NewBranchReferenceName("release"), first)))
	commitFile(t, repo, dir, "app.py", "two")

	got, err := (&Resolver{}).Resolve(context.Background(), GitDirectory{Path: dir, Ref: "release"}, "")
	require.NoError(t, err)
	assert.Equal(t, dir, got)

	data, err := os.ReadFile(filepath.Join(got, "app.py"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestResolveGitDirectoryChecksOutTag(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	first := commitFile(t, repo, dir, "app.py", "one")
	_, err = repo.CreateTag("v1.0", first, nil)
	require.NoError(t, err)
	commitFile(t, repo, dir, "app.py", "two")

	got, err := (&Resolver{}).Resolve(context.Background(), GitDirectory{Path: dir, Ref: "v1.0"}, "")
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(got, "app.py"))
	require.NoError(t, err)
	assert.Equal(t, "one", string(data))
}

func TestResolveGitDirectoryUnknownRef(t *testing.T) {
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	commitFile(t, repo, dir, "app.py", "one")

	_, err = (&Resolver{}).Resolve(context.Background(), GitDirectory{Path: dir, Ref: "missing"}, "")
	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, KindGitDirectory, resErr.Kind)
	assert.ErrorIs(t, err, plumbing.ErrReferenceNotFound)
}

func TestResolveGitDirectoryNotARepository(t *testing.T) {
	_, err := (&Resolver{}).Resolve(context.Background(), GitDirectory{Path: t.TempDir(), Ref: "main"}, "")
	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.ErrorIs(t, err, git.ErrRepositoryNotExists)
}

func TestResolveGitCloneFailure(t *testing.T) {
	scratch := filepath.Join(t.TempDir(), "clone")
	src := Git{URI: filepath.Join(t.TempDir(), "no-such-repo"), Ref: "main"}

	_, err := (&Resolver{}).Resolve(context.Background(), src, scratch)
	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	assert.Equal(t, KindGit, resErr.Kind)
	assert.Equal(t, src.URI, resErr.Target)
}

func TestResolveGitRequiresScratch(t *testing.T) {
	_, err := (&Resolver{}).Resolve(context.Background(), Git{URI: "https://example.test/repo", Ref: "main"}, "")
	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
}

type bogus struct{ Directory }

func TestResolveUnknownDescriptor(t *testing.T) {
	_, err := (&Resolver{}).Resolve(context.Background(), bogus{}, "")
	assert.ErrorIs(t, err, ErrUnknownDescriptor)
}
