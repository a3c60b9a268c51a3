// Package machinetest provides an in-memory machine.Runtime for tests.
package machinetest

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/androiddrew/vdist/src/machine"
)

// Runtime operation names, as recorded in Calls and used as FailOn keys.
const (
	OpImageExists = "image-exists"
	OpPull        = "pull"
	OpCreate      = "create"
	OpStart       = "start"
	OpWait        = "wait"
	OpStop        = "stop"
	OpRemove      = "remove"
)

// Runtime is a scripted fake container engine. Start runs OnStart, if set,
// against the container spec and then replays Output.
type Runtime struct {
	Images   map[string]bool
	FailOn   map[string]error
	Output   []string
	ExitCode int
	OnStart  func(spec machine.ContainerSpec) error
	// Hold keeps the output stream open after Output until Stop, the way
	// a container that never exits behaves.
	Hold bool

	mu         sync.Mutex
	calls      []string
	containers map[string]machine.ContainerSpec
	held       map[string]*io.PipeWriter
}

// New returns a fake runtime that already has the given images.
func New(images ...string) *Runtime {
	r := &Runtime{Images: map[string]bool{}, FailOn: map[string]error{}}
	for _, img := range images {
		r.Images[img] = true
	}
	return r
}

func (r *Runtime) record(op string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, op)
	return r.FailOn[op]
}

// Calls returns the operations invoked so far, in order.
func (r *Runtime) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

// Count returns how many times op was invoked.
func (r *Runtime) Count(op string) int {
	n := 0
	for _, c := range r.Calls() {
		if c == op {
			n++
		}
	}
	return n
}

// Spec returns the spec a container was created with.
func (r *Runtime) Spec(name string) (machine.ContainerSpec, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.containers[name]
	return s, ok
}

// Specs returns every created container spec.
func (r *Runtime) Specs() []machine.ContainerSpec {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]machine.ContainerSpec, 0, len(r.containers))
	for _, s := range r.containers {
		out = append(out, s)
	}
	return out
}

func (r *Runtime) ImageExists(_ context.Context, image string) (bool, error) {
	if err := r.record(OpImageExists); err != nil {
		return false, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Images[image], nil
}

func (r *Runtime) PullImage(_ context.Context, image string) error {
	if err := r.record(OpPull); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Images[image] = true
	return nil
}

func (r *Runtime) Create(_ context.Context, spec machine.ContainerSpec) error {
	if err := r.record(OpCreate); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.containers == nil {
		r.containers = map[string]machine.ContainerSpec{}
	}
	r.containers[spec.Name] = spec
	return nil
}

func (r *Runtime) Start(_ context.Context, name string) (io.ReadCloser, error) {
	if err := r.record(OpStart); err != nil {
		return nil, err
	}
	spec, ok := r.Spec(name)
	if !ok {
		return nil, errors.New("no such container: " + name)
	}
	if r.OnStart != nil {
		if err := r.OnStart(spec); err != nil {
			return nil, err
		}
	}
	text := strings.Join(r.Output, "\n")
	if !r.Hold {
		return io.NopCloser(strings.NewReader(text)), nil
	}

	pr, pw := io.Pipe()
	r.mu.Lock()
	if r.held == nil {
		r.held = map[string]*io.PipeWriter{}
	}
	r.held[name] = pw
	r.mu.Unlock()
	if text != "" {
		go io.WriteString(pw, text+"\n")
	}
	return pr, nil
}

func (r *Runtime) Wait(ctx context.Context, _ string) (int, error) {
	if err := r.record(OpWait); err != nil {
		return -1, err
	}
	if err := ctx.Err(); err != nil {
		return -1, err
	}
	return r.ExitCode, nil
}

// Stop ends a held output stream.
func (r *Runtime) Stop(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	if pw, ok := r.held[name]; ok {
		pw.Close()
		delete(r.held, name)
	}
	r.mu.Unlock()
	return r.record(OpStop)
}

// Remove only records the call; created specs stay inspectable.
func (r *Runtime) Remove(ctx context.Context, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.record(OpRemove)
}
