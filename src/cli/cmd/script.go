package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/androiddrew/vdist/src/builder"
	"github.com/androiddrew/vdist/src/output"
	"github.com/androiddrew/vdist/src/paths"
)

var scriptCmd = &cobra.Command{
	Use:   "script [names...]",
	Short: "Write build scripts without running them",
	Long: `Resolve each build's source and write the generated build script to its
output folder. No sandbox is started.`,
	RunE: func(cmd *cobra.Command, args []string) error {
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

		w := cmd.OutOrStdout()
		color := output.UseColor()
		b := &builder.Builder{Logger: logger, BuildRoot: paths.BuildRoot()}

		sec := output.NewSection(w, "Scripts", 0, color)
		failed := 0
		for _, job := range jobs {
			path, err := b.RenderScript(cmd.Context(), job.Config)
			if err != nil {
				failed++
				sec.Row("%s %-20s %v", output.StatusIcon(output.StatusFailed, color), job.Name, err)
				continue
			}
			sec.Row("%s %-20s %s", output.StatusIcon(output.StatusSuccess, color), job.Name, path)
		}
		sec.Close()

		if failed > 0 {
			return fmt.Errorf("%d of %d script(s) failed", failed, len(jobs))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scriptCmd)
}
