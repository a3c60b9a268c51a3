package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/androiddrew/vdist/src/builder"
	"github.com/androiddrew/vdist/src/output"
	"github.com/androiddrew/vdist/src/paths"
	"github.com/androiddrew/vdist/src/retention"
)

var (
	pPolicy retention.Policy
	pRoot   string
	pDryRun bool
)

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove build directories left behind by interrupted builds",
	Long: `Remove build and source directories under the build root that no running
build owns. Builds clean up after themselves; leftovers come from builds
that were killed.

Retention rules are additive: a directory survives if any rule keeps it.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		root := pRoot
		if root == "" {
			root = paths.BuildRoot()
		}
		store := &retention.DirStore{
			Root:     root,
			Prefixes: []string{builder.BuildDirPrefix, builder.SourceDirPrefix},
			LockFile: builder.LockFile,
		}

		start := time.Now()
		res, err := retention.Apply(cmd.Context(), store, pPolicy, start, pDryRun)
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		color := output.UseColor()
		output.ContextBlock(w, []output.KV{
			{Key: "root", Value: root},
			{Key: "matched", Value: fmt.Sprint(res.Matched)},
			{Key: "kept", Value: fmt.Sprint(res.Kept)},
		})
		sec := output.NewSection(w, "Prune", time.Since(start), color)
		verb := "removed"
		if pDryRun {
			verb = "would remove"
		}
		for _, name := range res.Deleted {
			sec.Row("%s %s %s", output.StatusIcon(output.StatusSuccess, color), verb, name)
		}
		for _, err := range res.Errors {
			sec.Row("%s %v", output.StatusIcon(output.StatusFailed, color), err)
		}
		sec.Close()

		if len(res.Errors) > 0 {
			return fmt.Errorf("%d director(ies) could not be removed", len(res.Errors))
		}
		return nil
	},
}

func init() {
	pruneCmd.Flags().StringVar(&pRoot, "build-root", "", "build root to prune (default: the cache directory)")
	pruneCmd.Flags().IntVar(&pPolicy.KeepLast, "keep-last", 0, "keep the N most recent directories")
	pruneCmd.Flags().IntVar(&pPolicy.KeepDaily, "keep-daily", 0, "keep the newest directory of each of the last N days")
	pruneCmd.Flags().IntVar(&pPolicy.KeepWeekly, "keep-weekly", 0, "keep the newest directory of each of the last N weeks")
	pruneCmd.Flags().DurationVar(&pPolicy.KeepWithin, "keep-within", 24*time.Hour, "keep directories younger than this")
	pruneCmd.Flags().BoolVar(&pDryRun, "dry-run", false, "list what would be removed")
	rootCmd.AddCommand(pruneCmd)
}
