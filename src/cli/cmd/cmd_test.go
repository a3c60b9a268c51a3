package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/adrg/xdg"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/androiddrew/vdist/src/config"
)

const buildFile = `
profiles:
  debian-bookworm:
    distribution_family: debian
    base_image: example/vdist:bookworm
    package_format: deb

builds:
  geolocate:
    app: geolocate
    version: "1.0"
    profile: ubuntu-lts
    source:
      type: directory
      path: src
    output_folder: dist
    compile_python: true
    python_version: 3.9.0
  geolocate-bookworm:
    app: geolocate
    version: "1.0"
    profile: debian-bookworm
    source:
      type: directory
      path: src
    output_folder: dist
    compile_python: false
    python_basedir: /root/custom_python
`

// execute runs the root command with args against an isolated
// configuration home and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(xdg.Reload)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("NO_COLOR", "1")
	xdg.Reload()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { rootCmd.SetOut(nil) })

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func writeBuildFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".vdist.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestValidateCommand(t *testing.T) {
	path := writeBuildFile(t, buildFile)

	out, err := execute(t, "--config", path, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "geolocate 1.0 on ubuntu-lts")
	assert.Contains(t, out, "geolocate 1.0 on debian-bookworm")
}

func TestValidateCommandReportsViolations(t *testing.T) {
	path := writeBuildFile(t, `
builds:
  broken:
    app: geolocate
    profile: ubuntu-lts
    source: {type: directory, path: src}
    compile_python: true
`)

	out, err := execute(t, "--config", path, "validate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 build(s) failed validation")
	assert.Contains(t, out, "broken")
	assert.Contains(t, out, config.KeyVersion)
	assert.Contains(t, out, config.KeyPythonVersion)
}

func TestValidateCommandUnknownBuild(t *testing.T) {
	path := writeBuildFile(t, buildFile)

	_, err := execute(t, "--config", path, "validate", "nope")
	assert.ErrorContains(t, err, "unknown build(s): nope")
}

func TestProfilesCommand(t *testing.T) {
	path := writeBuildFile(t, buildFile)

	out, err := execute(t, "--config", path, "profiles")
	require.NoError(t, err)
	assert.Contains(t, out, "archlinux")
	assert.Contains(t, out, "example/vdist:bookworm")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "vdist dev")
}

func TestManualRaw(t *testing.T) {
	fs := pflag.NewFlagSet("manual", pflag.ContinueOnError)
	addManualFlags(fs)
	require.NoError(t, fs.Parse([]string{
		"--app", "geolocate",
		"--version", "1.0",
		"--profile", "centos",
		"--compile-python",
		"--python-version", "3.9.0",
		"--runtime-deps", "openssl",
		"--runtime-deps", "python3 (>= 3.6)",
		"--source-git", "https://github.com/objectified/geolocate.git",
		"--source-ref", "master",
		"--output-folder", "/tmp/dist",
	}))

	raw, err := manualRaw(fs)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		config.KeyApp:           "geolocate",
		config.KeyVersion:       "1.0",
		config.KeyProfile:       "centos",
		config.KeyCompilePython: true,
		config.KeyPythonVersion: "3.9.0",
		config.KeyRuntimeDeps:   []string{"openssl", "python3 (>= 3.6)"},
		config.KeyOutputFolder:  "/tmp/dist",
		config.KeySource: map[string]any{
			"type": "git",
			"uri":  "https://github.com/objectified/geolocate.git",
			"ref":  "master",
		},
	}, raw)
}

func TestManualSourceFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"two sources", []string{"--source-git", "https://example.test/a.git", "--source-directory", "/src"}, "only one of"},
		{"ref on directory", []string{"--source-directory", "/src", "--source-ref", "main"}, "does not apply"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := pflag.NewFlagSet("manual", pflag.ContinueOnError)
			addManualFlags(fs)
			require.NoError(t, fs.Parse(tt.args))

			_, err := manualRaw(fs)
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestManualRawWithoutSource(t *testing.T) {
	fs := pflag.NewFlagSet("manual", pflag.ContinueOnError)
	addManualFlags(fs)
	require.NoError(t, fs.Parse([]string{"--app", "geolocate"}))

	raw, err := manualRaw(fs)
	require.NoError(t, err)
	assert.NotContains(t, raw, config.KeySource)
}

func TestNewRuntimeUnknown(t *testing.T) {
	old := runtimeName
	t.Cleanup(func() { runtimeName = old })
	runtimeName = "podman"

	_, _, err := newRuntime()
	assert.ErrorContains(t, err, `unknown runtime "podman"`)
}

func TestPruneCommand(t *testing.T) {
	root := t.TempDir()
	stale := filepath.Join(root, "vdist-build-stale")
	require.NoError(t, os.Mkdir(stale, 0o755))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))
	require.NoError(t, os.Mkdir(filepath.Join(root, "vdist-source-fresh"), 0o755))

	path := writeBuildFile(t, buildFile)
	out, err := execute(t, "--config", path, "prune", "--build-root", root, "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "would remove vdist-build-stale")
	assert.NotContains(t, out, "vdist-source-fresh")
	assert.DirExists(t, stale)

	_, err = execute(t, "--config", path, "prune", "--build-root", root, "--dry-run=false")
	require.NoError(t, err)
	assert.NoDirExists(t, stale)
	assert.DirExists(t, filepath.Join(root, "vdist-source-fresh"))
}
