package cmd

import (
	"github.com/spf13/cobra"

	"github.com/androiddrew/vdist/src/output"
	"github.com/androiddrew/vdist/src/profile"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the available build profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		names := profiles.Names()
		list := make([]profile.Profile, 0, len(names))
		for _, name := range names {
			p, err := profiles.Lookup(name)
			if err != nil {
				return err
			}
			list = append(list, p)
		}
		output.ProfileTable(cmd.OutOrStdout(), list, output.UseColor())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}
