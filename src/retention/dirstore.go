package retention

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// DirStore exposes the directories under Root whose names start with one
// of Prefixes. A directory holding a LockFile whose process is still alive
// belongs to a running build and is never listed.
type DirStore struct {
	Root     string
	Prefixes []string
	LockFile string
}

// List returns the matching directories, timestamped by modification time.
// A missing root is empty.
func (s *DirStore) List(ctx context.Context) ([]Item, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var items []Item
	for _, e := range entries {
		if !e.IsDir() || !s.matches(e.Name()) {
			continue
		}
		if s.inUse(filepath.Join(s.Root, e.Name())) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		items = append(items, Item{Name: e.Name(), CreatedAt: info.ModTime()})
	}
	return items, nil
}

// Delete removes the named directory and everything in it.
func (s *DirStore) Delete(ctx context.Context, name string) error {
	if name != filepath.Base(name) || !s.matches(name) {
		return fmt.Errorf("refusing to delete %q", name)
	}
	return os.RemoveAll(filepath.Join(s.Root, name))
}

func (s *DirStore) matches(name string) bool {
	for _, p := range s.Prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// inUse reports whether dir carries a lock written by a live process.
func (s *DirStore) inUse(dir string) bool {
	if s.LockFile == "" {
		return false
	}
	data, err := os.ReadFile(filepath.Join(dir, s.LockFile))
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		// Unreadable lock: leave the directory alone.
		return true
	}
	return processAlive(pid)
}

func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = p.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}
