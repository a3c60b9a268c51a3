package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/androiddrew/vdist/src/config"
	"github.com/androiddrew/vdist/src/logging"
	"github.com/androiddrew/vdist/src/paths"
	"github.com/androiddrew/vdist/src/profile"
)

var (
	cfgFile           string
	verbose           bool
	logFormat         string
	runtimeName       string
	containerdAddress string

	logger   *slog.Logger
	project  *config.File
	profiles *profile.Registry
)

var rootCmd = &cobra.Command{
	Use:   "vdist",
	Short: "Build OS packages from Python applications",
	Long: `vdist builds deb, rpm and pacman packages for Python applications.

Each build runs inside a throwaway container for the target distribution,
optionally compiles its own Python interpreter, installs the application and
packages the result with fpm.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := "info"
		if verbose {
			level = "debug"
		}
		var err error
		logger, err = logging.New(level, logFormat, os.Stderr)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)

		// Skip config loading for commands that don't need it.
		if cmd.Name() == "version" {
			return nil
		}
		return loadProject()
	},
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "build file (default: "+config.DefaultFile+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", logging.FormatText, "log format: text or json")
	rootCmd.PersistentFlags().StringVar(&runtimeName, "runtime", runtimeDocker, "container runtime: docker or containerd")
	rootCmd.PersistentFlags().StringVar(&containerdAddress, "containerd-address", "", "containerd socket (default: /run/containerd/containerd.sock)")
}

// loadProject reads the build file and builds the profile registry from
// the built-in profiles, the user's profiles file and the build file's own
// profiles, later ones winning.
func loadProject() error {
	var err error
	project, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading build file: %w", err)
	}

	custom, err := profile.LoadFile(paths.ProfilesFile())
	if err != nil {
		return fmt.Errorf("loading %s: %w", paths.ProfilesFile(), err)
	}
	custom = append(custom, project.Profiles...)

	profiles, err = profile.NewRegistry(custom...)
	if err != nil {
		return fmt.Errorf("loading profiles: %w", err)
	}
	return nil
}

// Execute runs the root command. SIGINT and SIGTERM cancel the running
// builds, which still tear down their sandboxes.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return err
	}
	return nil
}
