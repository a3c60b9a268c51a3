package machine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"syscall"

	containerd "github.com/containerd/containerd/v2/client"
	"github.com/containerd/containerd/v2/pkg/cio"
	"github.com/containerd/containerd/v2/pkg/oci"
	"github.com/containerd/errdefs"
	"github.com/distribution/reference"
	specs "github.com/opencontainers/runtime-spec/specs-go"
)

// Containerd defaults.
const (
	DefaultContainerdAddress   = "/run/containerd/containerd.sock"
	DefaultContainerdNamespace = "vdist"
	defaultSnapshotter         = "overlayfs"
)

// ContainerdRuntime drives containers through a containerd daemon.
type ContainerdRuntime struct {
	client      *containerd.Client
	snapshotter string
	logger      *slog.Logger

	mu    sync.Mutex
	tasks map[string]*taskHandle
}

// taskHandle tracks a started task until its exit is collected.
type taskHandle struct {
	task containerd.Task
	done chan struct{}
	code int
	err  error
}

// NewContainerdRuntime connects to the containerd socket at address. All
// operations are scoped to namespace. Close the runtime when done.
func NewContainerdRuntime(address, namespace string, logger *slog.Logger) (*ContainerdRuntime, error) {
	if address == "" {
		address = DefaultContainerdAddress
	}
	if namespace == "" {
		namespace = DefaultContainerdNamespace
	}
	if logger == nil {
		logger = slog.Default()
	}
	client, err := containerd.New(address, containerd.WithDefaultNamespace(namespace))
	if err != nil {
		return nil, fmt.Errorf("connecting to containerd at %s: %w", address, err)
	}
	return &ContainerdRuntime{
		client:      client,
		snapshotter: defaultSnapshotter,
		logger:      logger,
		tasks:       map[string]*taskHandle{},
	}, nil
}

// Close closes the containerd client connection.
func (r *ContainerdRuntime) Close() error {
	return r.client.Close()
}

// normalizeImage expands a short docker-style reference to the fully
// qualified name containerd stores images under.
func normalizeImage(image string) (string, error) {
	named, err := reference.ParseDockerRef(image)
	if err != nil {
		return "", fmt.Errorf("parsing image reference %q: %w", image, err)
	}
	return named.String(), nil
}

func (r *ContainerdRuntime) ImageExists(ctx context.Context, image string) (bool, error) {
	name, err := normalizeImage(image)
	if err != nil {
		return false, err
	}
	if _, err := r.client.GetImage(ctx, name); err != nil {
		if errdefs.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *ContainerdRuntime) PullImage(ctx context.Context, image string) error {
	name, err := normalizeImage(image)
	if err != nil {
		return err
	}
	_, err = r.client.Pull(ctx, name,
		containerd.WithPullUnpack,
		containerd.WithPullSnapshotter(r.snapshotter),
	)
	return err
}

func (r *ContainerdRuntime) Create(ctx context.Context, spec ContainerSpec) error {
	name, err := normalizeImage(spec.Image)
	if err != nil {
		return err
	}
	image, err := r.client.GetImage(ctx, name)
	if err != nil {
		return err
	}

	_, err = r.client.NewContainer(ctx, spec.Name,
		containerd.WithImage(image),
		containerd.WithSnapshotter(r.snapshotter),
		containerd.WithNewSnapshot(spec.Name, image),
		containerd.WithNewSpec(
			oci.WithImageConfig(image),
			oci.WithHostNamespace(specs.NetworkNamespace),
			oci.WithHostResolvconf,
			oci.WithProcessArgs(spec.Command...),
			oci.WithProcessCwd(MountPoint),
			oci.WithMounts([]specs.Mount{{
				Destination: MountPoint,
				Type:        "bind",
				Source:      spec.BuildDir,
				Options:     []string{"rbind", "rw"},
			}}),
		),
	)
	return err
}

// Start creates and starts the container's task with stdout and stderr
// merged into the returned stream. The stream is closed once the task has
// exited and its output has been flushed.
func (r *ContainerdRuntime) Start(ctx context.Context, name string) (io.ReadCloser, error) {
	ctr, err := r.client.LoadContainer(ctx, name)
	if err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	task, err := ctr.NewTask(ctx, cio.NewCreator(cio.WithStreams(nil, pw, pw)))
	if err != nil {
		pw.Close()
		return nil, err
	}

	// Wait must be registered before Start so a fast exit is not missed.
	statusC, err := task.Wait(context.WithoutCancel(ctx))
	if err != nil {
		task.Delete(ctx)
		pw.Close()
		return nil, err
	}
	if err := task.Start(ctx); err != nil {
		task.Delete(ctx)
		pw.Close()
		return nil, err
	}

	h := &taskHandle{task: task, done: make(chan struct{})}
	r.mu.Lock()
	r.tasks[name] = h
	r.mu.Unlock()

	go func() {
		status := <-statusC
		code, _, err := status.Result()
		h.code, h.err = int(code), err
		if tio := task.IO(); tio != nil {
			tio.Wait()
		}
		pw.Close()
		close(h.done)
	}()
	return pr, nil
}

func (r *ContainerdRuntime) Wait(ctx context.Context, name string) (int, error) {
	r.mu.Lock()
	h, ok := r.tasks[name]
	r.mu.Unlock()
	if !ok {
		return -1, fmt.Errorf("container %s: %w", name, errdefs.ErrNotFound)
	}
	select {
	case <-h.done:
		return h.code, h.err
	case <-ctx.Done():
		return -1, ctx.Err()
	}
}

// Stop kills and deletes the container's task. A container or task that
// no longer exists is not an error.
func (r *ContainerdRuntime) Stop(ctx context.Context, name string) error {
	ctr, err := r.client.LoadContainer(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return err
	}
	task, err := ctr.Task(ctx, nil)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return err
	}

	if err := task.Kill(ctx, syscall.SIGKILL); err != nil && !errdefs.IsNotFound(err) {
		r.logger.Debug("killing task", "container", name, "error", err)
	}
	if _, err := task.Delete(ctx, containerd.WithProcessKill); err != nil && !errdefs.IsNotFound(err) {
		return err
	}
	return nil
}

// Remove deletes the container along with its snapshot.
func (r *ContainerdRuntime) Remove(ctx context.Context, name string) error {
	r.mu.Lock()
	delete(r.tasks, name)
	r.mu.Unlock()

	ctr, err := r.client.LoadContainer(ctx, name)
	if err != nil {
		if errdefs.IsNotFound(err) {
			return nil
		}
		return err
	}
	if err := ctr.Delete(ctx, containerd.WithSnapshotCleanup); err != nil && !errdefs.IsNotFound(err) {
		return err
	}
	return nil
}
