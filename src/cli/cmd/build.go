package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/androiddrew/vdist/src/builder"
	"github.com/androiddrew/vdist/src/config"
	"github.com/androiddrew/vdist/src/output"
	"github.com/androiddrew/vdist/src/paths"
)

var (
	bParallel int
	bBuildDir string
	bJUnitDir string
)

var buildCmd = &cobra.Command{
	Use:   "build [names...]",
	Short: "Run builds from the build file",
	Long: `Run the named builds from the build file, or all of them.

Every build is validated before any sandbox starts. Builds run independently:
one failing does not stop the others, and the command fails if any did.`,
	RunE: runBuild,
}

func init() {
	addRunFlags(buildCmd)
	buildCmd.Flags().IntVarP(&bParallel, "parallel", "j", 1, "number of builds to run at once")
	rootCmd.AddCommand(buildCmd)
}

// addRunFlags registers the flags shared by commands that start sandboxes.
func addRunFlags(c *cobra.Command) {
	c.Flags().StringVar(&bBuildDir, "build-dir", "", "reuse this build directory instead of a fresh one")
	c.Flags().StringVar(&bJUnitDir, "junit-dir", "", "write a JUnit report of the builds to this directory")
}

func runBuild(cmd *cobra.Command, args []string) error {
	builds, err := project.Select(args...)
	if err != nil {
		return err
	}
	if len(builds) == 0 {
		return fmt.Errorf("no builds defined in %s", buildFileName())
	}

	jobs, err := validateBuilds(cmd.OutOrStdout(), builds)
	if err != nil {
		return err
	}
	return runJobs(cmd, jobs, bParallel)
}

func buildFileName() string {
	if project != nil && project.Path != "" {
		return project.Path
	}
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultFile
}

// validateBuilds turns raw builds into jobs. Every invalid build is
// reported before an error is returned.
func validateBuilds(w io.Writer, builds []config.Build) ([]builder.Job, error) {
	color := output.UseColor()
	jobs := make([]builder.Job, 0, len(builds))
	invalid := 0
	for _, b := range builds {
		c, err := config.New(b.Raw, profiles)
		if err != nil {
			invalid++
			var cfgErr *config.ConfigurationError
			if errors.As(err, &cfgErr) {
				output.SectionViolations(w, b.Name, cfgErr, color)
				continue
			}
			fmt.Fprintf(w, "    %s %s: %v\n", output.StatusIcon(output.StatusFailed, color), b.Name, err)
			continue
		}
		jobs = append(jobs, builder.Job{Name: b.Name, Config: c})
	}
	if invalid > 0 {
		return nil, fmt.Errorf("%d of %d build(s) failed validation", invalid, len(builds))
	}
	return jobs, nil
}

// runJobs runs jobs in sandboxes and renders the summary.
func runJobs(cmd *cobra.Command, jobs []builder.Job, parallel int) error {
	rt, release, err := newRuntime()
	if err != nil {
		return err
	}
	defer release()

	w := cmd.OutOrStdout()
	color := output.UseColor()
	start := time.Now()

	output.CIHeader(w)

	b := &builder.Builder{
		Logger:    logger,
		Runtime:   rt,
		BuildRoot: paths.BuildRoot(),
		BuildDir:  bBuildDir,
	}

	output.SectionStartCollapsed(w, "vdist_build", "Building packages")
	reports := b.RunAll(cmd.Context(), jobs, parallel)
	output.SectionEnd(w, "vdist_build")

	output.FailureTails(w, reports, color)

	elapsed := time.Since(start)
	output.BuildSummary(w, reports, elapsed, color)

	if bJUnitDir != "" {
		if err := output.WriteBuildJUnit(bJUnitDir, reports, elapsed); err != nil {
			fmt.Fprintf(os.Stderr, "warning: junit report: %v\n", err)
		}
	}

	if failed := builder.Failed(reports); len(failed) > 0 {
		return fmt.Errorf("%d of %d build(s) failed", len(failed), len(reports))
	}
	return nil
}
