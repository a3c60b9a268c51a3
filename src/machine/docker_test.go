package machine

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDocker installs a shell script standing in for the docker CLI and
// returns the runtime plus the file the script logs its arguments to.
func fakeDocker(t *testing.T, hasImage bool) (*DockerRuntime, string) {
	t.Helper()
	dir := t.TempDir()
	logFile := filepath.Join(dir, "calls.log")

	inspect := `echo "Error: No such image: $5" >&2; exit 1`
	if hasImage {
		inspect = `echo sha256:abc`
	}
	script := `#!/bin/sh
echo "$@" >> ` + logFile + `
case "$1" in
  image) ` + inspect + ` ;;
  pull) echo "pulled $2" ;;
  create) echo 0123456789ab ;;
  start) echo "$2" ;;
  logs) echo "building"; echo "warning: slow" >&2; echo "done" ;;
  wait) echo 3 ;;
  stop|rm) echo "$@" ;;
  *) exit 64 ;;
esac
`
	bin := filepath.Join(dir, "docker")
	require.NoError(t, os.WriteFile(bin, []byte(script), 0o755))
	return &DockerRuntime{Binary: bin, Stderr: io.Discard}, logFile
}

func calls(t *testing.T, logFile string) []string {
	t.Helper()
	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(data)), "\n")
}

func TestDockerRuntimeLifecycle(t *testing.T) {
	d, logFile := fakeDocker(t, false)
	ctx := context.Background()

	exists, err := d.ImageExists(ctx, "example/img:1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, d.PullImage(ctx, "example/img:1"))
	require.NoError(t, d.Create(ctx, ContainerSpec{
		Name:     "vdist-test",
		Image:    "example/img:1",
		BuildDir: "/tmp/build",
		Command:  []string{ScriptPath},
	}))

	out, err := d.Start(ctx, "vdist-test")
	require.NoError(t, err)
	data, err := io.ReadAll(out)
	require.NoError(t, err)
	require.NoError(t, out.Close())
	assert.Contains(t, string(data), "building\n")
	assert.Contains(t, string(data), "warning: slow\n")
	assert.Contains(t, string(data), "done\n")

	code, err := d.Wait(ctx, "vdist-test")
	require.NoError(t, err)
	assert.Equal(t, 3, code)

	require.NoError(t, d.Stop(ctx, "vdist-test"))
	require.NoError(t, d.Remove(ctx, "vdist-test"))

	assert.Equal(t, []string{
		"image inspect --format {{.Id}} example/img:1",
		"pull example/img:1",
		"create --name vdist-test --volume /tmp/build:/build --workdir /build example/img:1 /build/buildscript.sh",
		"start vdist-test",
		"logs --follow vdist-test",
		"wait vdist-test",
		"stop --time 0 vdist-test",
		"rm --force --volumes vdist-test",
	}, calls(t, logFile))
}

func TestDockerImageExists(t *testing.T) {
	d, _ := fakeDocker(t, true)
	exists, err := d.ImageExists(context.Background(), "example/img:1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDockerMissingBinary(t *testing.T) {
	d := &DockerRuntime{Binary: filepath.Join(t.TempDir(), "nope")}
	_, err := d.ImageExists(context.Background(), "example/img:1")
	assert.Error(t, err)
}

func TestNormalizeImage(t *testing.T) {
	tests := map[string]string{
		"dantesignal31/vdist:ubuntu-lts": "docker.io/dantesignal31/vdist:ubuntu-lts",
		"ubuntu":                         "docker.io/library/ubuntu:latest",
		"ghcr.io/org/img:1.0":            "ghcr.io/org/img:1.0",
	}
	for in, want := range tests {
		got, err := normalizeImage(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := normalizeImage("UPPER/case")
	assert.Error(t, err)
}
