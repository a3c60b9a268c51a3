// Package machine runs a generated build script inside a disposable
// container and streams its output back to the caller.
package machine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultTeardownTimeout bounds stop and remove during teardown.
const DefaultTeardownTimeout = 30 * time.Second

// ErrAlreadyLaunched is returned by a second Launch on the same sandbox.
var ErrAlreadyLaunched = errors.New("sandbox already launched")

// Sandbox is one container session for one build. It is launched once and
// torn down exactly once.
type Sandbox struct {
	runtime         Runtime
	image           string
	logger          *slog.Logger
	teardownTimeout time.Duration

	mu        sync.Mutex
	lifecycle *lifecycle
	name      string

	teardownOnce sync.Once
}

// Option configures a Sandbox.
type Option func(*Sandbox)

// WithLogger sets the sandbox logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Sandbox) { s.logger = l }
}

// WithTeardownTimeout bounds the stop and remove calls made on teardown.
func WithTeardownTimeout(d time.Duration) Option {
	return func(s *Sandbox) { s.teardownTimeout = d }
}

// New returns an idle sandbox for image.
func New(runtime Runtime, image string, opts ...Option) *Sandbox {
	s := &Sandbox{
		runtime:         runtime,
		image:           image,
		teardownTimeout: DefaultTeardownTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	s.logger = s.logger.With("image", image)
	s.lifecycle = newLifecycle(s.logger)
	return s
}

// Image returns the image the sandbox runs.
func (s *Sandbox) Image() string { return s.image }

// State returns the current lifecycle state.
func (s *Sandbox) State() State {
	return s.lifecycle.state()
}

// Name returns the container name, or "" before a container was requested.
func (s *Sandbox) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *Sandbox) transition(to State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	from, err := s.lifecycle.transition(to)
	if err != nil {
		return err
	}
	s.logger.Debug("sandbox state", "from", from, "to", to)
	return nil
}

// Launch makes sure the image is present, creates a container with buildDir
// bound at MountPoint, starts the build script and attaches to its output.
// Any failure tears the sandbox down before returning a *SandboxError.
// Image pulls are bounded only by ctx.
func (s *Sandbox) Launch(ctx context.Context, buildDir string) (*Execution, error) {
	if s.State() != StateIdle {
		return nil, &SandboxError{Op: "launch", Image: s.image, Err: ErrAlreadyLaunched}
	}

	exists, err := s.runtime.ImageExists(ctx, s.image)
	if err != nil {
		return nil, s.abort(ctx, "inspect image", err)
	}
	if !exists {
		s.logger.Info("pulling image")
		start := time.Now()
		if err := s.runtime.PullImage(ctx, s.image); err != nil {
			return nil, s.abort(ctx, "pull image", err)
		}
		s.logger.Info("image pulled", "elapsed", time.Since(start).Round(time.Millisecond))
	}
	if err := s.transition(StateImageVerified); err != nil {
		return nil, s.abort(ctx, "launch", err)
	}

	abs, err := filepath.Abs(buildDir)
	if err != nil {
		return nil, s.abort(ctx, "create container", err)
	}
	spec := ContainerSpec{
		Name:     "vdist-" + uuid.NewString(),
		Image:    s.image,
		BuildDir: abs,
		Command:  []string{ScriptPath},
	}
	s.mu.Lock()
	s.name = spec.Name
	s.mu.Unlock()

	if err := s.runtime.Create(ctx, spec); err != nil {
		return nil, s.abort(ctx, "create container", err)
	}
	s.logger.Debug("container created", "container", spec.Name, "build_dir", abs)

	out, err := s.runtime.Start(ctx, spec.Name)
	if err != nil {
		return nil, s.abort(ctx, "start container", err)
	}
	if err := s.transition(StateStarted); err != nil {
		out.Close()
		return nil, s.abort(ctx, "launch", err)
	}

	e := newExecution(ctx, s, out)
	if err := s.transition(StateRunning); err != nil {
		return nil, s.abort(ctx, "launch", err)
	}
	s.logger.Info("build script started", "container", spec.Name)
	return e, nil
}

func (s *Sandbox) abort(ctx context.Context, op string, err error) error {
	s.teardown(ctx)
	return &SandboxError{Op: op, Image: s.image, Err: err}
}

// Shutdown stops and removes the container. It is safe to call any number
// of times and from any state; only the first call does anything. Teardown
// errors are logged, not returned.
func (s *Sandbox) Shutdown(ctx context.Context) {
	s.teardown(ctx)
}

func (s *Sandbox) teardown(parent context.Context) {
	s.teardownOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.teardownTimeout)
		defer cancel()

		if name := s.Name(); name != "" {
			if err := s.runtime.Stop(ctx, name); err != nil {
				s.logger.Warn("stopping container", "container", name, "error", err)
			}
			if err := s.runtime.Remove(ctx, name); err != nil {
				s.logger.Warn("removing container", "container", name, "error", err)
			}
			s.logger.Debug("container removed", "container", name)
		}
		if err := s.transition(StateTornDown); err != nil {
			s.logger.Error("tearing down", "error", fmt.Errorf("unexpected: %w", err))
		}
	})
}
