package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/androiddrew/vdist/src/config"
	"github.com/androiddrew/vdist/src/source"
)

// Flags of the manual command that are not plain build keys.
const (
	flagSourceGit          = "source-git"
	flagSourceGitDirectory = "source-git-directory"
	flagSourceDirectory    = "source-directory"
	flagSourceRef          = "source-ref"
)

var manualCmd = &cobra.Command{
	Use:   "manual",
	Short: "Run a single build described by flags",
	Long: `Run one build without a build file. Every build key has a flag of the
same name with dashes, for example --python-version for python_version.

Exactly one of --source-git, --source-git-directory and --source-directory
selects the source.`,
	Example: `  vdist manual --app geolocate --version 1.0 --profile ubuntu-lts \
    --source-git https://github.com/objectified/geolocate.git --source-ref master \
    --compile-python --python-version 3.9.0 --output-folder dist`,
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := manualRaw(cmd.Flags())
		if err != nil {
			return err
		}
		name, _ := raw[config.KeyApp].(string)
		if name == "" {
			name = "manual"
		}
		jobs, err := validateBuilds(cmd.OutOrStdout(), []config.Build{{Name: name, Raw: raw}})
		if err != nil {
			return err
		}
		return runJobs(cmd, jobs, 1)
	},
}

// Build keys taken verbatim from string, bool and list flags.
var (
	manualStrings = []string{
		config.KeyApp, config.KeyVersion, config.KeyProfile,
		config.KeyPythonVersion, config.KeyPythonBaseDir, config.KeyPackageInstallRoot,
		config.KeyFPMArgs, config.KeyAfterInstall, config.KeyAfterRemove,
		config.KeyRequirementsPath, config.KeyWorkingDir,
	}
	manualBools = []string{config.KeyCompilePython, config.KeyOutputScript}
	manualLists = []string{config.KeyBuildDeps, config.KeyRuntimeDeps}
)

func init() {
	addManualFlags(manualCmd.Flags())
	addRunFlags(manualCmd)
	rootCmd.AddCommand(manualCmd)
}

// flagName maps a build key to its flag: python_version → python-version.
func flagName(key string) string {
	return strings.ReplaceAll(key, "_", "-")
}

func addManualFlags(fs *pflag.FlagSet) {
	for _, key := range manualStrings {
		fs.String(flagName(key), "", key)
	}
	for _, key := range manualBools {
		fs.Bool(flagName(key), false, key)
	}
	for _, key := range manualLists {
		fs.StringArray(flagName(key), nil, key+" (repeatable)")
	}
	fs.String(flagName(config.KeyOutputFolder), "", "directory receiving the packages")
	fs.String(flagSourceGit, "", "git repository URI to build")
	fs.String(flagSourceGitDirectory, "", "local git checkout to build")
	fs.String(flagSourceDirectory, "", "plain directory to build")
	fs.String(flagSourceRef, "", "git ref to check out")
}

// manualRaw builds a raw build mapping from the flags that were set. Unset
// flags leave their key absent so defaults apply.
func manualRaw(fs *pflag.FlagSet) (map[string]any, error) {
	raw := map[string]any{}
	for _, key := range manualStrings {
		if f := fs.Lookup(flagName(key)); f != nil && f.Changed {
			raw[key] = f.Value.String()
		}
	}
	for _, key := range manualBools {
		if f := fs.Lookup(flagName(key)); f != nil && f.Changed {
			v, err := fs.GetBool(flagName(key))
			if err != nil {
				return nil, err
			}
			raw[key] = v
		}
	}
	for _, key := range manualLists {
		if f := fs.Lookup(flagName(key)); f != nil && f.Changed {
			v, err := fs.GetStringArray(flagName(key))
			if err != nil {
				return nil, err
			}
			raw[key] = v
		}
	}
	if f := fs.Lookup(flagName(config.KeyOutputFolder)); f != nil && f.Changed {
		abs, err := filepath.Abs(f.Value.String())
		if err != nil {
			return nil, err
		}
		raw[config.KeyOutputFolder] = abs
	}

	src, err := manualSource(fs)
	if err != nil {
		return nil, err
	}
	if src != nil {
		raw[config.KeySource] = src
	}
	return raw, nil
}

func manualSource(fs *pflag.FlagSet) (map[string]any, error) {
	get := func(name string) string {
		v, _ := fs.GetString(name)
		return v
	}
	ref := get(flagSourceRef)

	var sources []map[string]any
	if uri := get(flagSourceGit); uri != "" {
		sources = append(sources, map[string]any{"type": string(source.KindGit), "uri": uri, "ref": ref})
	}
	if dir := get(flagSourceGitDirectory); dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		sources = append(sources, map[string]any{"type": string(source.KindGitDirectory), "path": abs, "ref": ref})
	}
	if dir := get(flagSourceDirectory); dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return nil, err
		}
		sources = append(sources, map[string]any{"type": string(source.KindDirectory), "path": abs})
		if ref != "" {
			return nil, fmt.Errorf("--%s does not apply to --%s", flagSourceRef, flagSourceDirectory)
		}
	}

	switch len(sources) {
	case 0:
		return nil, nil
	case 1:
		return sources[0], nil
	}
	return nil, fmt.Errorf("only one of --%s, --%s and --%s may be set", flagSourceGit, flagSourceGitDirectory, flagSourceDirectory)
}
