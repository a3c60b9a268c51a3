package machine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// DockerRuntime drives containers through the docker CLI.
type DockerRuntime struct {
	// Binary is the docker executable. Defaults to "docker".
	Binary      string
	Verbose     bool
	Stderr      io.Writer
	StopTimeout time.Duration
}

// NewDockerRuntime creates a DockerRuntime writing diagnostics to stderr.
func NewDockerRuntime(verbose bool) *DockerRuntime {
	return &DockerRuntime{
		Binary:      "docker",
		Verbose:     verbose,
		Stderr:      os.Stderr,
		StopTimeout: 10 * time.Second,
	}
}

func (d *DockerRuntime) command(ctx context.Context, args ...string) *exec.Cmd {
	bin := d.Binary
	if bin == "" {
		bin = "docker"
	}
	if d.Verbose && d.Stderr != nil {
		fmt.Fprintf(d.Stderr, "exec: %s %s\n", bin, strings.Join(args, " "))
	}
	return exec.CommandContext(ctx, bin, args...)
}

// run executes a docker command and returns its trimmed stdout. On failure
// the command's stderr is folded into the error.
func (d *DockerRuntime) run(ctx context.Context, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := d.command(ctx, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &dockerError{Args: args, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return strings.TrimSpace(stdout.String()), nil
}

type dockerError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *dockerError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("docker %s: %v: %s", e.Args[0], e.Err, e.Stderr)
	}
	return fmt.Sprintf("docker %s: %v", e.Args[0], e.Err)
}

func (e *dockerError) Unwrap() error { return e.Err }

func (d *DockerRuntime) ImageExists(ctx context.Context, image string) (bool, error) {
	_, err := d.run(ctx, "image", "inspect", "--format", "{{.Id}}", image)
	if err == nil {
		return true, nil
	}
	var de *dockerError
	var exitErr *exec.ExitError
	if errors.As(err, &de) && errors.As(err, &exitErr) && strings.Contains(strings.ToLower(de.Stderr), "no such image") {
		return false, nil
	}
	return false, err
}

func (d *DockerRuntime) PullImage(ctx context.Context, image string) error {
	cmd := d.command(ctx, "pull", image)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if d.Verbose && d.Stderr != nil {
		cmd.Stdout = d.Stderr
	}
	if err := cmd.Run(); err != nil {
		return &dockerError{Args: []string{"pull", image}, Stderr: strings.TrimSpace(stderr.String()), Err: err}
	}
	return nil
}

func (d *DockerRuntime) Create(ctx context.Context, spec ContainerSpec) error {
	_, err := d.run(ctx, createArgs(spec)...)
	return err
}

// createArgs constructs the docker create argument list.
func createArgs(spec ContainerSpec) []string {
	args := []string{
		"create",
		"--name", spec.Name,
		"--volume", spec.BuildDir + ":" + MountPoint,
		"--workdir", MountPoint,
		spec.Image,
	}
	return append(args, spec.Command...)
}

// Start starts the container and follows its logs. The returned stream
// ends when the container exits.
func (d *DockerRuntime) Start(ctx context.Context, name string) (io.ReadCloser, error) {
	if _, err := d.run(ctx, "start", name); err != nil {
		return nil, err
	}

	pr, pw := io.Pipe()
	cmd := d.command(ctx, "logs", "--follow", name)
	cmd.Stdout = pw
	cmd.Stderr = pw
	if err := cmd.Start(); err != nil {
		pw.Close()
		return nil, fmt.Errorf("docker logs: %w", err)
	}
	go func() {
		pw.CloseWithError(cmd.Wait())
	}()
	return pr, nil
}

func (d *DockerRuntime) Wait(ctx context.Context, name string) (int, error) {
	out, err := d.run(ctx, "wait", name)
	if err != nil {
		return -1, err
	}
	lines := strings.Fields(out)
	if len(lines) == 0 {
		return -1, fmt.Errorf("docker wait %s: no exit code", name)
	}
	code, err := strconv.Atoi(lines[len(lines)-1])
	if err != nil {
		return -1, fmt.Errorf("docker wait %s: parsing exit code %q: %w", name, out, err)
	}
	return code, nil
}

func (d *DockerRuntime) Stop(ctx context.Context, name string) error {
	secs := int(d.StopTimeout / time.Second)
	_, err := d.run(ctx, "stop", "--time", strconv.Itoa(secs), name)
	return err
}

func (d *DockerRuntime) Remove(ctx context.Context, name string) error {
	_, err := d.run(ctx, "rm", "--force", "--volumes", name)
	return err
}
