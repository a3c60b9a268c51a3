// Package script renders the shell script that runs inside the build
// sandbox. The script is assembled from embedded fragments chosen by the
// build scenario: whether the application ships a Python manifest and
// whether the interpreter is compiled or prebuilt.
package script

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/Masterminds/semver/v3"
	"github.com/kballard/go-shellquote"

	"github.com/androiddrew/vdist/src/config"
	"github.com/androiddrew/vdist/src/profile"
)

// Sandbox layout. The build directory is bound at MountPoint.
const (
	MountPoint = "/build"
	OutputDir  = MountPoint + "/output"
	FileName   = "buildscript.sh"
)

// Manifests recognised at the application root, in lookup order.
var Manifests = []string{"setup.py", "pyproject.toml"}

// ErrUnreachableScenario is returned when the fragment table has no entry
// for a scenario. It indicates a bug, not a user error.
var ErrUnreachableScenario = errors.New("no script fragments for scenario")

//go:embed fragments/*.sh.tmpl
var fragmentFS embed.FS

var fragments = template.Must(
	template.New("").Funcs(template.FuncMap{
		"quote":    func(s string) string { return shellquote.Join(s) },
		"quoteAll": func(s []string) string { return shellquote.Join(s...) },
	}).ParseFS(fragmentFS, "fragments/*.sh.tmpl"),
)

// Scenario is the manifest × interpreter-strategy combination.
type Scenario struct {
	Manifest bool
	Compile  bool
}

func (s Scenario) String() string {
	m, c := "no-manifest", "prebuilt"
	if s.Manifest {
		m = "manifest"
	}
	if s.Compile {
		c = "compile"
	}
	return m + "+" + c
}

// Script is a rendered build script.
type Script struct {
	Text     string
	Scenario Scenario
	// Paths are the absolute sandbox paths handed to fpm.
	Paths []string
}

type plan struct {
	interpreter string
	install     string
	// baseDir is where the interpreter lives in the package.
	baseDir func(c *config.Configuration) string
	paths   func(c *config.Configuration) []string
}

func configuredBaseDir(c *config.Configuration) string { return c.PythonBaseDir() }

// plans maps each scenario to its fragments. A manifest install lands
// inside the interpreter tree, so only that tree is packaged; a compiled
// interpreter then takes the install path itself, giving
// package_install_root/app/bin/app. Without a manifest the copied
// application tree is packaged next to the interpreter.
var plans = map[Scenario]plan{
	{Manifest: true, Compile: true}: {
		interpreter: "python_compile",
		install:     "install_manifest",
		baseDir:     func(c *config.Configuration) string { return c.InstallPath() },
		paths:       func(c *config.Configuration) []string { return []string{c.InstallPath()} },
	},
	{Manifest: false, Compile: true}: {
		interpreter: "python_compile",
		install:     "install_tree",
		baseDir:     configuredBaseDir,
		paths:       func(c *config.Configuration) []string { return []string{c.InstallPath(), c.PythonBaseDir()} },
	},
	{Manifest: true, Compile: false}: {
		interpreter: "python_prebuilt",
		install:     "install_manifest",
		baseDir:     configuredBaseDir,
		paths:       func(c *config.Configuration) []string { return []string{c.PythonBaseDir()} },
	},
	{Manifest: false, Compile: false}: {
		interpreter: "python_prebuilt",
		install:     "install_tree",
		baseDir:     configuredBaseDir,
		paths:       func(c *config.Configuration) []string { return []string{c.InstallPath(), c.PythonBaseDir()} },
	},
}

var prepFragments = map[string]string{
	profile.FamilyDebian:    "prep_debian",
	profile.FamilyRedHat:    "prep_redhat",
	profile.FamilyArchLinux: "prep_archlinux",
}

// Generator renders build scripts.
type Generator struct {
	Logger *slog.Logger
}

func (g *Generator) logger() *slog.Logger {
	if g.Logger != nil {
		return g.Logger
	}
	return slog.Default()
}

// Generate renders the script for cfg on profile p. sourceDir is the host
// copy of the application source; it is only read to detect a manifest.
func (g *Generator) Generate(cfg *config.Configuration, p profile.Profile, sourceDir string) (*Script, error) {
	appRoot := filepath.Join(sourceDir, filepath.FromSlash(cfg.WorkingDir()))
	manifest, err := FindManifest(appRoot)
	if err != nil {
		return nil, err
	}

	scenario := Scenario{Manifest: manifest != "", Compile: cfg.CompilePython()}
	pl, ok := plans[scenario]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnreachableScenario, scenario)
	}
	prep, ok := prepFragments[p.DistributionFamily]
	if !ok {
		return nil, fmt.Errorf("%w %s on family %q", ErrUnreachableScenario, scenario, p.DistributionFamily)
	}

	paths := pl.paths(cfg)
	d, err := newData(cfg, p, scenario, manifest, pl.baseDir(cfg), paths)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for _, name := range []string{"header", prep, pl.interpreter, pl.install, "package_fpm", "output"} {
		if err := fragments.ExecuteTemplate(&buf, name+".sh.tmpl", d); err != nil {
			return nil, fmt.Errorf("rendering %s fragment: %w", name, err)
		}
	}

	g.logger().Debug("build script generated",
		"app", cfg.App(),
		"profile", p.Name,
		"scenario", scenario.String(),
		"paths", paths,
	)
	return &Script{Text: buf.String(), Scenario: scenario, Paths: paths}, nil
}

// FindManifest returns the name of the first manifest present in dir, or
// "" when there is none.
func FindManifest(dir string) (string, error) {
	for _, name := range Manifests {
		info, err := os.Stat(filepath.Join(dir, name))
		switch {
		case err == nil && !info.IsDir():
			return name, nil
		case err == nil, errors.Is(err, fs.ErrNotExist):
			continue
		default:
			return "", fmt.Errorf("checking for %s: %w", name, err)
		}
	}
	return "", nil
}

// data is the template context shared by all fragments.
type data struct {
	App           string
	Version       string
	Profile       string
	Scenario      string
	Format        string
	Compile       bool
	Manifest      string
	SourceDir     string
	AppRoot       string
	InstallPath   string
	PythonBaseDir string
	PythonVersion string
	PythonMajor   uint64
	PythonURL     string
	Requirements  string
	OutputDir     string
	BuildDeps     []string
	FPM           string
}

func newData(cfg *config.Configuration, p profile.Profile, s Scenario, manifest, baseDir string, paths []string) (data, error) {
	srcDir := SourceDir(cfg.App())
	d := data{
		App:           cfg.App(),
		Version:       cfg.Version(),
		Profile:       p.Name,
		Scenario:      s.String(),
		Format:        p.PackageFormat,
		Compile:       cfg.CompilePython(),
		Manifest:      manifest,
		SourceDir:     srcDir,
		AppRoot:       path.Join(srcDir, cfg.WorkingDir()),
		InstallPath:   cfg.InstallPath(),
		PythonBaseDir: baseDir,
		Requirements:  path.Join(srcDir, cfg.RequirementsPath()),
		OutputDir:     OutputDir,
		BuildDeps:     cfg.BuildDeps(),
	}
	if cfg.CompilePython() {
		v, err := semver.StrictNewVersion(cfg.PythonVersion())
		if err != nil {
			return d, fmt.Errorf("python_version: %w", err)
		}
		d.PythonVersion = v.String()
		d.PythonMajor = v.Major()
		d.PythonURL = fmt.Sprintf("https://www.python.org/ftp/python/%s/Python-%s.tgz", v, v)
	}
	d.FPM = fpmCommand(cfg, p, srcDir, paths)
	return d, nil
}

// SourceDir is where the application tree is mounted inside the sandbox.
func SourceDir(app string) string {
	return path.Join(MountPoint, app)
}

// fpmCommand renders the fpm invocation. fpm_args is inserted verbatim so
// its own quoting survives; everything else is quoted here.
func fpmCommand(cfg *config.Configuration, p profile.Profile, srcDir string, paths []string) string {
	args := []string{
		"fpm", "-s", "dir", "-t", p.PackageFormat,
		"-n", cfg.App(), "-v", cfg.Version(),
		"-a", "native", "-p", OutputDir, "-f",
	}
	for _, dep := range cfg.RuntimeDeps() {
		args = append(args, "--depends", dep)
	}
	if p.PackageFormat == profile.FormatDeb {
		for _, dep := range cfg.BuildDeps() {
			args = append(args, "--deb-build-depends", dep)
		}
	}
	if cfg.AfterInstall() != "" {
		args = append(args, "--after-install", path.Join(srcDir, cfg.AfterInstall()))
	}
	if cfg.AfterRemove() != "" {
		args = append(args, "--after-remove", path.Join(srcDir, cfg.AfterRemove()))
	}

	lines := []string{shellquote.Join(args...)}
	if raw := strings.TrimSpace(cfg.FPMArgs()); raw != "" {
		lines = append(lines, raw)
	}
	lines = append(lines, shellquote.Join(paths...))
	return strings.Join(lines, " \\\n    ")
}
