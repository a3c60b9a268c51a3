// Package config turns raw build parameters into a validated, immutable
// build configuration.
package config

import (
	"fmt"
	"path"
	"slices"

	"github.com/androiddrew/vdist/src/profile"
	"github.com/androiddrew/vdist/src/source"
)

// Raw configuration keys.
const (
	KeyApp                = "app"
	KeyVersion            = "version"
	KeySource             = "source"
	KeyProfile            = "profile"
	KeyOutputFolder       = "output_folder"
	KeyCompilePython      = "compile_python"
	KeyPythonVersion      = "python_version"
	KeyPythonBaseDir      = "python_basedir"
	KeyPackageInstallRoot = "package_install_root"
	KeyBuildDeps          = "build_deps"
	KeyRuntimeDeps        = "runtime_deps"
	KeyFPMArgs            = "fpm_args"
	KeyAfterInstall       = "after_install"
	KeyAfterRemove        = "after_remove"
	KeyRequirementsPath   = "requirements_path"
	KeyWorkingDir         = "working_dir"
	KeyOutputScript       = "output_script"
)

// Defaults applied when a key is absent.
const (
	DefaultPackageInstallRoot = "/opt"
	DefaultRequirementsPath   = "requirements.txt"
)

// Configuration is a validated build. It is built once by New and never
// changes afterwards.
type Configuration struct {
	app          string
	version      string
	source       source.Descriptor
	profile      profile.Profile
	outputFolder string

	compilePython bool
	pythonVersion string
	pythonBaseDir string

	packageInstallRoot string
	installPath        string

	buildDeps   []string
	runtimeDeps []string
	fpmArgs     string

	afterInstall     string
	afterRemove      string
	requirementsPath string
	workingDir       string
	outputScript     bool
}

func (c *Configuration) App() string               { return c.app }
func (c *Configuration) Version() string           { return c.version }
func (c *Configuration) Source() source.Descriptor { return c.source }
func (c *Configuration) Profile() profile.Profile  { return c.profile }
func (c *Configuration) OutputFolder() string      { return c.outputFolder }
func (c *Configuration) CompilePython() bool       { return c.compilePython }
func (c *Configuration) PythonVersion() string     { return c.pythonVersion }
func (c *Configuration) PackageInstallRoot() string {
	return c.packageInstallRoot
}

// InstallPath is package_install_root/app.
func (c *Configuration) InstallPath() string { return c.installPath }

// PythonBaseDir is the interpreter tree inside the sandbox: a fresh
// package_install_root/app-python when compiling, python_basedir otherwise.
func (c *Configuration) PythonBaseDir() string { return c.pythonBaseDir }

func (c *Configuration) BuildDeps() []string   { return slices.Clone(c.buildDeps) }
func (c *Configuration) RuntimeDeps() []string { return slices.Clone(c.runtimeDeps) }
func (c *Configuration) FPMArgs() string       { return c.fpmArgs }

// AfterInstall, AfterRemove, RequirementsPath and WorkingDir are relative
// to the application source tree.
func (c *Configuration) AfterInstall() string     { return c.afterInstall }
func (c *Configuration) AfterRemove() string      { return c.afterRemove }
func (c *Configuration) RequirementsPath() string { return c.requirementsPath }
func (c *Configuration) WorkingDir() string       { return c.workingDir }
func (c *Configuration) OutputScript() bool       { return c.outputScript }

// ScriptFilename is the name the generated script is saved under in the
// output folder.
func (c *Configuration) ScriptFilename() string {
	return fmt.Sprintf("%s-%s-buildscript.sh", c.app, c.version)
}

// Map returns the configuration in raw form. Passing it back to New yields
// an equal configuration.
func (c *Configuration) Map() map[string]any {
	m := map[string]any{
		KeyApp:                c.app,
		KeyVersion:            c.version,
		KeySource:             c.source,
		KeyProfile:            c.profile.Name,
		KeyOutputFolder:       c.outputFolder,
		KeyCompilePython:      c.compilePython,
		KeyPackageInstallRoot: c.packageInstallRoot,
		KeyRequirementsPath:   c.requirementsPath,
		KeyOutputScript:       c.outputScript,
	}
	if c.compilePython {
		m[KeyPythonVersion] = c.pythonVersion
	} else {
		m[KeyPythonBaseDir] = c.pythonBaseDir
	}
	if len(c.buildDeps) > 0 {
		m[KeyBuildDeps] = c.BuildDeps()
	}
	if len(c.runtimeDeps) > 0 {
		m[KeyRuntimeDeps] = c.RuntimeDeps()
	}
	optional := map[string]string{
		KeyFPMArgs:      c.fpmArgs,
		KeyAfterInstall: c.afterInstall,
		KeyAfterRemove:  c.afterRemove,
		KeyWorkingDir:   c.workingDir,
	}
	for k, v := range optional {
		if v != "" {
			m[k] = v
		}
	}
	return m
}

func compiledBaseDir(installRoot, app string) string {
	return path.Join(installRoot, app+"-python")
}
