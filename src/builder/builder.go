// Package builder runs one build end to end: fetch the source, render the
// build script, run it in a sandbox and collect the packages it produced.
package builder

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/androiddrew/vdist/src/config"
	"github.com/androiddrew/vdist/src/machine"
	"github.com/androiddrew/vdist/src/script"
	"github.com/androiddrew/vdist/src/source"
)

// Names inside a build directory.
const (
	outputDir = "output"
)

// SourceResolver materializes a source descriptor as a local directory.
type SourceResolver interface {
	Resolve(ctx context.Context, d source.Descriptor, scratch string) (string, error)
}

// Builder runs builds against a container runtime.
type Builder struct {
	Logger    *slog.Logger
	Resolver  SourceResolver
	Generator *script.Generator
	Runtime   machine.Runtime

	// BuildRoot holds fresh build directories. Empty means the system
	// temporary directory.
	BuildRoot string
	// BuildDir, when set, is reused instead of a fresh directory.
	BuildDir string

	TeardownTimeout time.Duration
}

// Result describes a finished build.
type Result struct {
	App       string
	Version   string
	Profile   string
	Artifacts []Artifact
	// Script is where the build script was saved, if output_script was set.
	Script   string
	Duration time.Duration
}

func (b *Builder) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}

func (b *Builder) resolver() SourceResolver {
	if b.Resolver != nil {
		return b.Resolver
	}
	return &source.Resolver{Logger: b.Logger}
}

func (b *Builder) generator() *script.Generator {
	if b.Generator != nil {
		return b.Generator
	}
	return &script.Generator{Logger: b.Logger}
}

func (b *Builder) sandbox(image string, logger *slog.Logger) *machine.Sandbox {
	opts := []machine.Option{machine.WithLogger(logger)}
	if b.TeardownTimeout > 0 {
		opts = append(opts, machine.WithTeardownTimeout(b.TeardownTimeout))
	}
	return machine.New(b.Runtime, image, opts...)
}

// resolve fetches the source into a scratch directory. The returned
// cleanup removes the scratch directory.
func (b *Builder) resolve(ctx context.Context, cfg *config.Configuration) (string, func(), error) {
	if b.BuildRoot != "" {
		if err := os.MkdirAll(b.BuildRoot, 0o755); err != nil {
			return "", nil, fmt.Errorf("creating build root: %w", err)
		}
	}
	scratch, err := os.MkdirTemp(b.BuildRoot, SourceDirPrefix)
	if err != nil {
		return "", nil, fmt.Errorf("creating scratch directory: %w", err)
	}
	cleanup := func() {
		if err := os.RemoveAll(scratch); err != nil {
			b.logger().Warn("removing scratch directory", "dir", scratch, "error", err)
		}
	}

	dir, err := b.resolver().Resolve(ctx, cfg.Source(), scratch)
	if err != nil {
		cleanup()
		return "", nil, err
	}
	return dir, cleanup, nil
}

// Build runs cfg to completion. Errors are, in pipeline order, a
// *source.ResolutionError, a *machine.SandboxError, a *BuildScriptFailure
// or an *ArtifactMissingError. The sandbox is always torn down and
// temporary directories removed.
func (b *Builder) Build(ctx context.Context, cfg *config.Configuration) (*Result, error) {
	start := time.Now()
	p := cfg.Profile()
	logger := b.logger().With("app", cfg.App(), "version", cfg.Version(), "profile", p.Name)

	logger.Info("resolving source", "source", cfg.Source().String())
	srcDir, cleanup, err := b.resolve(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	ws, err := acquire(b.BuildRoot, b.BuildDir, logger)
	if err != nil {
		return nil, err
	}
	defer ws.release()
	if err := ws.reset(cfg.App(), outputDir, script.FileName); err != nil {
		return nil, err
	}
	logger.Debug("build directory acquired", "dir", ws.dir)

	appDir := filepath.Join(ws.dir, cfg.App())
	if err := source.CopyTree(srcDir, appDir); err != nil {
		return nil, fmt.Errorf("copying source into build directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(ws.dir, outputDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	s, err := b.generator().Generate(cfg, p, appDir)
	if err != nil {
		return nil, err
	}
	scriptPath := filepath.Join(ws.dir, script.FileName)
	if err := writeScript(scriptPath, s.Text); err != nil {
		return nil, err
	}
	logger.Info("build script ready", "scenario", s.Scenario.String(), "paths", s.Paths)

	sb := b.sandbox(p.BaseImage, logger)
	defer sb.Shutdown(ctx)

	exec, err := sb.Launch(ctx, ws.dir)
	if err != nil {
		return nil, err
	}
	for line := range exec.Lines() {
		logger.Info(line, "stream", "sandbox")
	}
	outcome, err := exec.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if !outcome.Success() {
		return nil, &BuildScriptFailure{ExitCode: outcome.ExitCode, Tail: outcome.Tail}
	}

	res := &Result{App: cfg.App(), Version: cfg.Version(), Profile: p.Name}
	res.Artifacts, err = b.collect(cfg, filepath.Join(ws.dir, outputDir))
	if err != nil {
		return nil, err
	}
	for _, a := range res.Artifacts {
		logger.Info("package built", "path", a.Path, "size", a.Size, "blake3", a.Digest)
	}

	if cfg.OutputScript() {
		res.Script = filepath.Join(cfg.OutputFolder(), cfg.ScriptFilename())
		if err := writeScript(res.Script, s.Text); err != nil {
			return nil, err
		}
	}
	res.Duration = time.Since(start)
	return res, nil
}

// collect copies the profile's packages from dir into the output folder.
func (b *Builder) collect(cfg *config.Configuration, dir string) ([]Artifact, error) {
	pattern := cfg.Profile().ArtifactPattern(cfg.App(), cfg.Version())
	found, err := findArtifacts(dir, pattern)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, &ArtifactMissingError{Dir: dir, Pattern: pattern}
	}

	if err := os.MkdirAll(cfg.OutputFolder(), 0o755); err != nil {
		return nil, fmt.Errorf("creating output folder: %w", err)
	}
	artifacts := make([]Artifact, 0, len(found))
	for _, f := range found {
		a, err := copyArtifact(f, cfg.OutputFolder())
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, nil
}

// RenderScript generates the build script without running it and saves it
// to the output folder. It returns the script's path.
func (b *Builder) RenderScript(ctx context.Context, cfg *config.Configuration) (string, error) {
	srcDir, cleanup, err := b.resolve(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer cleanup()

	s, err := b.generator().Generate(cfg, cfg.Profile(), srcDir)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(cfg.OutputFolder(), 0o755); err != nil {
		return "", fmt.Errorf("creating output folder: %w", err)
	}
	dst := filepath.Join(cfg.OutputFolder(), cfg.ScriptFilename())
	if err := writeScript(dst, s.Text); err != nil {
		return "", err
	}
	b.logger().Info("build script written", "app", cfg.App(), "path", dst, "scenario", s.Scenario.String())
	return dst, nil
}

func writeScript(path, text string) error {
	if err := os.WriteFile(path, []byte(text), 0o755); err != nil {
		return fmt.Errorf("writing build script: %w", err)
	}
	// WriteFile honours umask; the sandbox needs the exec bit.
	return os.Chmod(path, 0o755)
}
