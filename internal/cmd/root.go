// Package cmd provides CLI command implementations.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/opmodel/lto2/internal/config"
	oerrors "github.com/opmodel/lto2/internal/errors"
	"github.com/opmodel/lto2/internal/output"
	"github.com/opmodel/lto2/internal/version"
)

// availableSubcommands is printed when no known subcommand is given.
const availableSubcommands = "Available subcommands: dump-symtab run"

var (
	// Global flags
	configFlag  string
	verboseFlag bool

	// Loaded configuration (set during PersistentPreRunE, may be nil)
	lto2Config *config.Config
)

// NewRootCmd creates the root command for lto2.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "lto2",
		Short: "Resolution-based LTO driver",
		Long: `lto2 links LTO modules using symbol resolutions supplied on the
command line, the way a linker would supply them.

Every symbol of every input module must be given exactly one -r resolution
and every resolution must be used. Regular modules are merged into task 0;
each ThinLTO module becomes its own task.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initializeGlobals(cmd)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.ErrOrStderr(), availableSubcommands)
			return &oerrors.ExitError{Code: oerrors.ExitGeneralError, Printed: true}
		},
	}

	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "Path to config file (env: LTO2_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose output")

	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewDumpSymtabCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// initializeGlobals loads configuration and sets up logging.
func initializeGlobals(_ *cobra.Command) error {
	loaded, err := config.NewLoader().Load(configFlag)
	if err != nil {
		// Commands that do not need configuration still work.
		output.Debug("config load error", "error", err)
	}
	lto2Config = loaded

	logCfg := output.LogConfig{Verbose: verboseFlag}
	if lto2Config != nil && lto2Config.Log.Timestamps != nil {
		logCfg.Timestamps = lto2Config.Log.Timestamps
	}
	output.SetupLogging(logCfg)

	if _, err := maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		output.Debug(fmt.Sprintf(format, args...))
	})); err != nil {
		output.Debug("could not apply CPU quota", "error", err)
	}

	info := version.GetInfo()
	output.Debug("lto2 started", "version", info.Version, "config", configFlag)
	return nil
}

// GetConfig returns the loaded configuration, or nil if none was loaded.
func GetConfig() *config.Config {
	return lto2Config
}
