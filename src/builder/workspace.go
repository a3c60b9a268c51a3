package builder

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
)

// LockFile marks a build directory as owned by a running build.
const LockFile = ".vdist.lock"

// Name prefixes of the directories a build creates under the build root.
const (
	BuildDirPrefix  = "vdist-build-"
	SourceDirPrefix = "vdist-source-"
)

// workspace is a locked build directory.
type workspace struct {
	dir       string
	temporary bool
	logger    *slog.Logger
}

// acquire locks dir, or a fresh directory under root when dir is empty.
func acquire(root, dir string, logger *slog.Logger) (*workspace, error) {
	ws := &workspace{dir: dir, logger: logger}
	if dir == "" {
		if root != "" {
			if err := os.MkdirAll(root, 0o755); err != nil {
				return nil, fmt.Errorf("creating build root: %w", err)
			}
		}
		tmp, err := os.MkdirTemp(root, BuildDirPrefix)
		if err != nil {
			return nil, fmt.Errorf("creating build directory: %w", err)
		}
		ws.dir, ws.temporary = tmp, true
	} else if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating build directory: %w", err)
	}

	f, err := os.OpenFile(ws.lockPath(), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if ws.temporary {
			os.RemoveAll(ws.dir)
		}
		if errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("%s: %w", ws.dir, ErrBuildDirBusy)
		}
		return nil, fmt.Errorf("locking build directory: %w", err)
	}
	_, werr := f.WriteString(strconv.Itoa(os.Getpid()) + "\n")
	if err := errors.Join(werr, f.Close()); err != nil {
		ws.release()
		return nil, fmt.Errorf("locking build directory: %w", err)
	}
	return ws, nil
}

func (w *workspace) lockPath() string { return filepath.Join(w.dir, LockFile) }

// reset removes what a previous build left in a reused directory.
func (w *workspace) reset(names ...string) error {
	for _, n := range names {
		if err := os.RemoveAll(filepath.Join(w.dir, n)); err != nil {
			return fmt.Errorf("cleaning build directory: %w", err)
		}
	}
	return nil
}

// release drops the lock and removes a temporary directory. Failures are
// logged only.
func (w *workspace) release() {
	if w.temporary {
		if err := os.RemoveAll(w.dir); err != nil {
			w.logger.Warn("removing build directory", "dir", w.dir, "error", err)
		}
		return
	}
	if err := os.Remove(w.lockPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		w.logger.Warn("releasing build directory lock", "dir", w.dir, "error", err)
	}
}
