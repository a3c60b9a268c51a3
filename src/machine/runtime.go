package machine

import (
	"context"
	"io"
)

// Sandbox layout inside the container.
const (
	MountPoint = "/build"
	ScriptPath = MountPoint + "/buildscript.sh"
)

// ContainerSpec describes the one container a sandbox runs.
type ContainerSpec struct {
	Name  string
	Image string
	// BuildDir is the host directory bound read-write at MountPoint.
	BuildDir string
	Command  []string
}

// Runtime is the container engine a sandbox drives. Containers are
// addressed by ContainerSpec.Name.
type Runtime interface {
	ImageExists(ctx context.Context, image string) (bool, error)
	PullImage(ctx context.Context, image string) error
	Create(ctx context.Context, spec ContainerSpec) error
	// Start runs the container and returns its combined stdout and stderr.
	// The stream ends when the container exits.
	Start(ctx context.Context, name string) (io.ReadCloser, error)
	Wait(ctx context.Context, name string) (int, error)
	Stop(ctx context.Context, name string) error
	Remove(ctx context.Context, name string) error
}
