package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/androiddrew/vdist/src/output"
)

var validateCmd = &cobra.Command{
	Use:   "validate [names...]",
	Short: "Check builds without running them",
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

		color := output.UseColor()
		sec := output.NewSection(cmd.OutOrStdout(), "Builds", 0, color)
		for _, job := range jobs {
			c := job.Config
			sec.Row("%s %-20s %s %s on %s", output.StatusIcon(output.StatusSuccess, color),
				job.Name, c.App(), c.Version(), c.Profile().Name)
		}
		sec.Close()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
