package builder

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"lukechampine.com/blake3"
)

// Artifact is a package copied to the output folder.
type Artifact struct {
	Path string
	Size int64
	// Digest is the hex BLAKE3-256 of the file contents.
	Digest string
}

// findArtifacts returns the non-empty regular files in dir matching
// pattern, sorted by name.
func findArtifacts(dir, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("matching %s: %w", pattern, err)
	}
	var found []string
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			return nil, err
		}
		if info.Mode().IsRegular() && info.Size() > 0 {
			found = append(found, m)
		}
	}
	sort.Strings(found)
	return found, nil
}

// copyArtifact copies src into dir and digests it on the way.
func copyArtifact(src, dir string) (a Artifact, err error) {
	in, err := os.Open(src)
	if err != nil {
		return Artifact{}, err
	}
	defer in.Close()

	dst := filepath.Join(dir, filepath.Base(src))
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return Artifact{}, err
	}
	defer func() {
		err = errors.Join(err, out.Close())
	}()

	h := blake3.New(32, nil)
	n, err := io.Copy(io.MultiWriter(out, h), in)
	if err != nil {
		return Artifact{}, fmt.Errorf("copying %s: %w", filepath.Base(src), err)
	}
	return Artifact{Path: dst, Size: n, Digest: hex.EncodeToString(h.Sum(nil))}, nil
}

// Digest returns the hex BLAKE3-256 of a file.
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := blake3.New(32, nil)
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
