package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/kballard/go-shellquote"

	"github.com/androiddrew/vdist/src/profile"
)

var knownKeys = map[string]bool{
	KeyApp: true, KeyVersion: true, KeySource: true, KeyProfile: true,
	KeyOutputFolder: true, KeyCompilePython: true, KeyPythonVersion: true,
	KeyPythonBaseDir: true, KeyPackageInstallRoot: true, KeyBuildDeps: true,
	KeyRuntimeDeps: true, KeyFPMArgs: true, KeyAfterInstall: true,
	KeyAfterRemove: true, KeyRequirementsPath: true, KeyWorkingDir: true,
	KeyOutputScript: true,
}

// New validates raw build parameters against the profile registry and
// returns the resulting configuration. All violations are collected and
// returned together as a *ConfigurationError. New touches the filesystem
// only to inspect output_folder. A nil registry means the built-in
// profiles.
func New(raw map[string]any, profiles *profile.Registry) (*Configuration, error) {
	if profiles == nil {
		builtin, err := profile.NewRegistry()
		if err != nil {
			return nil, err
		}
		profiles = builtin
	}
	v := &validator{raw: raw}
	c := &Configuration{}

	// ── Rule 0: keys and types ────────────────────────────────────────────

	unknown := make([]string, 0)
	for k := range raw {
		if !knownKeys[k] {
			unknown = append(unknown, k)
		}
	}
	sort.Strings(unknown)
	for _, k := range unknown {
		v.fail(RuleKnownKeys, k, "unknown key")
	}

	app := v.str(KeyApp)
	version := v.str(KeyVersion)
	profileName := v.str(KeyProfile)
	outputFolder := v.str(KeyOutputFolder)
	compile, compileSet := v.boolean(KeyCompilePython)
	pythonVersion := v.str(KeyPythonVersion)
	pythonBaseDir := v.str(KeyPythonBaseDir)
	installRoot := v.str(KeyPackageInstallRoot)
	buildDeps := v.list(KeyBuildDeps)
	runtimeDeps := v.list(KeyRuntimeDeps)
	fpmArgs := v.str(KeyFPMArgs)
	afterInstall := v.str(KeyAfterInstall)
	afterRemove := v.str(KeyAfterRemove)
	requirements := v.str(KeyRequirementsPath)
	workingDir := v.str(KeyWorkingDir)
	outputScript, _ := v.boolean(KeyOutputScript)

	// ── Rule 1: required fields ───────────────────────────────────────────

	required := []struct{ key, val string }{
		{KeyApp, app},
		{KeyVersion, version},
		{KeyProfile, profileName},
		{KeyOutputFolder, outputFolder},
	}
	for _, r := range required {
		if r.val == "" && !v.typeError[r.key] {
			v.fail(RuleRequired, r.key, "is required")
		}
	}
	if _, ok := raw[KeySource]; !ok {
		v.fail(RuleRequired, KeySource, "is required")
	}
	if strings.ContainsAny(version, " \t\n/") {
		v.fail(RuleRequired, KeyVersion, fmt.Sprintf("%q must not contain whitespace or slashes", version))
	}
	if profileName != "" {
		p, err := profiles.Lookup(profileName)
		if err != nil {
			v.fail(RuleRequired, KeyProfile, err.Error())
		}
		c.profile = p
	}
	if outputFolder != "" {
		abs, err := checkOutputFolder(outputFolder)
		if err != nil {
			v.fail(RuleRequired, KeyOutputFolder, err.Error())
		}
		c.outputFolder = abs
	}

	// ── Rule 2: interpreter strategy ──────────────────────────────────────

	if !compileSet {
		compile = true
	}
	if compile {
		if pythonBaseDir != "" {
			v.fail(RuleInterpreter, KeyPythonBaseDir, "cannot be combined with compile_python=true")
		}
		switch {
		case pythonVersion == "" && !v.typeError[KeyPythonVersion]:
			v.fail(RuleInterpreter, KeyPythonVersion, "is required when compile_python is true")
		case pythonVersion != "":
			if err := checkPythonVersion(pythonVersion); err != nil {
				v.fail(RuleInterpreter, KeyPythonVersion, err.Error())
			}
		}
	} else {
		if pythonVersion != "" {
			v.fail(RuleInterpreter, KeyPythonVersion, "has no effect when compile_python is false")
		}
		switch {
		case pythonBaseDir == "" && !v.typeError[KeyPythonBaseDir]:
			v.fail(RuleInterpreter, KeyPythonBaseDir, "is required when compile_python is false")
		case pythonBaseDir != "" && !path.IsAbs(pythonBaseDir):
			v.fail(RuleInterpreter, KeyPythonBaseDir, fmt.Sprintf("%q must be an absolute path", pythonBaseDir))
		}
	}

	// ── Rule 3: source ────────────────────────────────────────────────────

	if rawSource, ok := raw[KeySource]; ok {
		src, problems := parseSource(rawSource)
		for _, p := range problems {
			v.fail(RuleSource, KeySource, p)
		}
		c.source = src
	}

	// ── Rule 4: dependency lists ──────────────────────────────────────────

	v.checkList(KeyBuildDeps, buildDeps)
	v.checkList(KeyRuntimeDeps, runtimeDeps)

	// ── Rule 5: install path ──────────────────────────────────────────────

	if installRoot == "" {
		installRoot = DefaultPackageInstallRoot
	}
	if !path.IsAbs(installRoot) {
		v.fail(RuleInstallPath, KeyPackageInstallRoot, fmt.Sprintf("%q must be an absolute path", installRoot))
	}
	if app != "" && (strings.Contains(app, "/") || app == "." || app == "..") {
		v.fail(RuleInstallPath, KeyApp, fmt.Sprintf("%q must be a single path element", app))
	}

	// ── Rule 6: fpm arguments and source-relative paths ───────────────────

	if fpmArgs != "" {
		if _, err := shellquote.Split(fpmArgs); err != nil {
			v.fail(RulePaths, KeyFPMArgs, fmt.Sprintf("not a valid shell word list: %v", err))
		}
	}
	if requirements == "" {
		requirements = DefaultRequirementsPath
	}
	c.afterInstall = v.relative(KeyAfterInstall, afterInstall, false)
	c.afterRemove = v.relative(KeyAfterRemove, afterRemove, false)
	c.requirementsPath = v.relative(KeyRequirementsPath, requirements, false)
	c.workingDir = v.relative(KeyWorkingDir, workingDir, true)

	if len(v.violations) > 0 {
		return nil, &ConfigurationError{Violations: v.violations}
	}

	c.app = app
	c.version = version
	c.compilePython = compile
	c.packageInstallRoot = path.Clean(installRoot)
	c.installPath = path.Join(c.packageInstallRoot, app)
	if compile {
		c.pythonVersion = pythonVersion
		c.pythonBaseDir = compiledBaseDir(c.packageInstallRoot, app)
	} else {
		c.pythonBaseDir = path.Clean(pythonBaseDir)
	}
	c.buildDeps = buildDeps
	c.runtimeDeps = runtimeDeps
	c.fpmArgs = fpmArgs
	c.outputScript = outputScript
	return c, nil
}

// validator accumulates violations while reading typed values out of the
// raw mapping.
type validator struct {
	raw        map[string]any
	violations []Violation
	typeError  map[string]bool
}

func (v *validator) fail(rule int, field, msg string) {
	v.violations = append(v.violations, Violation{Rule: rule, Field: field, Message: msg})
}

func (v *validator) wrongType(key, want string, got any) {
	if v.typeError == nil {
		v.typeError = map[string]bool{}
	}
	v.typeError[key] = true
	v.fail(RuleKnownKeys, key, fmt.Sprintf("expected %s, got %T", want, got))
}

func (v *validator) str(key string) string {
	val, ok := v.raw[key]
	if !ok || val == nil {
		return ""
	}
	s, ok := val.(string)
	if !ok {
		v.wrongType(key, "string", val)
		return ""
	}
	return strings.TrimSpace(s)
}

func (v *validator) boolean(key string) (value, set bool) {
	val, ok := v.raw[key]
	if !ok || val == nil {
		return false, false
	}
	b, ok := val.(bool)
	if !ok {
		v.wrongType(key, "bool", val)
		return false, false
	}
	return b, true
}

// list reads a sequence of strings. Order and duplicates are kept.
func (v *validator) list(key string) []string {
	val, ok := v.raw[key]
	if !ok || val == nil {
		return nil
	}
	var out []string
	switch items := val.(type) {
	case []string:
		out = append(out, items...)
	case []any:
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				v.wrongType(fmt.Sprintf("%s[%d]", key, i), "string", item)
				continue
			}
			out = append(out, s)
		}
	default:
		v.wrongType(key, "list of strings", val)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func (v *validator) checkList(key string, items []string) {
	for i, item := range items {
		if strings.TrimSpace(item) == "" {
			v.fail(RuleDependencies, fmt.Sprintf("%s[%d]", key, i), "must not be empty")
		}
	}
}

// relative normalizes a path inside the source tree. A leading slash is
// dropped. dirOK allows the tree root itself, returned as "".
func (v *validator) relative(key, p string, dirOK bool) string {
	if p == "" {
		return ""
	}
	clean := path.Clean(strings.TrimLeft(p, "/"))
	switch {
	case clean == ".." || strings.HasPrefix(clean, "../"):
		v.fail(RulePaths, key, fmt.Sprintf("%q escapes the source tree", p))
		return ""
	case clean == ".":
		if !dirOK {
			v.fail(RulePaths, key, fmt.Sprintf("%q does not name a file", p))
		}
		return ""
	}
	return clean
}

func checkPythonVersion(raw string) error {
	ver, err := semver.StrictNewVersion(raw)
	if err != nil {
		return fmt.Errorf("%q is not a MAJOR.MINOR.PATCH version: %v", raw, err)
	}
	if ver.Prerelease() != "" || ver.Metadata() != "" {
		return fmt.Errorf("%q must be a final release without suffixes", raw)
	}
	if ver.Major() < 2 {
		return fmt.Errorf("%q is not a supported Python version", raw)
	}
	return nil
}

// checkOutputFolder accepts an existing directory, or a missing one whose
// nearest existing ancestor is a directory.
func checkOutputFolder(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for p := abs; ; p = filepath.Dir(p) {
		info, err := os.Stat(p)
		if err == nil {
			if !info.IsDir() {
				if p == abs {
					return abs, fmt.Errorf("%s is not a directory", abs)
				}
				return abs, fmt.Errorf("cannot create %s: %s is not a directory", abs, p)
			}
			return abs, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return abs, err
		}
		if filepath.Dir(p) == p {
			return abs, fmt.Errorf("cannot create %s", abs)
		}
	}
}
