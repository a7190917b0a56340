package cmd

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	oerrors "github.com/opmodel/lto2/internal/errors"
	"github.com/opmodel/lto2/internal/module"
	"github.com/opmodel/lto2/internal/output"
)

// NewDumpSymtabCmd creates the dump-symtab command.
func NewDumpSymtabCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump-symtab <input files>...",
		Short: "Print the symbol tables of LTO modules",
		Long: `Print the symbol table of each input module in enumeration order.

Each symbol line starts with its visibility (H hidden, P protected,
D default) followed by the flags U (undefined), C (common), W (weak),
I (indirect), O (omittable from the symbol table), T (TLS) and
X (executable), '-' marking an unset flag.

Examples:
  # Inspect a module before writing resolutions for it
  lto2 dump-symtab foo.bc`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDumpSymtab(cmd, afero.NewOsFs(), args)
		},
	}
}

func runDumpSymtab(cmd *cobra.Command, fs afero.Fs, paths []string) error {
	loader, err := module.NewLoader(fs)
	if err != nil {
		return oerrors.NewExitError(err, oerrors.ExitGeneralError)
	}

	style := output.HeaderRenderer()
	for _, path := range paths {
		f, err := loader.Open(path)
		if err != nil {
			output.Error(err.Error())
			return &oerrors.ExitError{Code: oerrors.ExitGeneralError, Err: err, Printed: true}
		}
		if err := module.Dump(cmd.OutOrStdout(), f, style); err != nil {
			return oerrors.NewExitError(err, oerrors.ExitGeneralError)
		}
	}
	return nil
}
