package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/opmodel/lto2/internal/config"
	"github.com/opmodel/lto2/internal/driver"
	"github.com/opmodel/lto2/internal/engine"
	oerrors "github.com/opmodel/lto2/internal/errors"
	"github.com/opmodel/lto2/internal/output"
)

// runOptions holds the flags of the run command.
type runOptions struct {
	output      string
	optLevel    string
	cgOptLevel  string
	cacheDir    string
	optPipeline string
	aaPipeline  string
	saveTemps   bool

	distributed bool
	emitImports bool
	threads     int

	overrideTriple string
	defaultTriple  string
	mcpu           string
	mattr          []string
	relocModel     string
	codeModel      string
	fileType       string
	prefixReplace  string

	remarksOutput  string
	remarksHotness bool

	resolutions []string

	// fs overrides the filesystem in tests.
	fs afero.Fs
}

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [flags] <input files>...",
		Short: "Link LTO modules",
		Long: `Link LTO modules with the given symbol resolutions.

Each -r flag resolves one symbol occurrence of one module:

  -r file,symbol,flags

where flags is any combination of
  p  the definition prevails over all others
  l  the definition is final in this linkage unit
  x  the symbol is visible to regular object files

A symbol enumerated several times by the same module needs one -r per
occurrence; they are consumed in order. Task N is written to <output>.N.

Examples:
  # Link a regular module with one ThinLTO module
  lto2 run -o out -r main.o,main,px -r main.o,foo, -r foo.bc,foo,p main.o foo.bc

  # Write summary indexes for a distributed build instead of objects
  lto2 run --thinlto-distributed-indexes -o out -r foo.bc,foo,px foo.bc`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(cmd, opts, args)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "", "Output base name (required)")
	f.StringVarP(&opts.optLevel, "opt-level", "O", config.DefaultOptLevel, "Optimization level 0-3")
	f.StringVar(&opts.cgOptLevel, "cg-opt-level", config.DefaultCGOptLevel, "Code generator optimization level 0-3")
	f.StringVar(&opts.cacheDir, "cache-dir", "", "Object cache directory (env: LTO2_CACHE_DIR)")
	f.StringVar(&opts.optPipeline, "opt-pipeline", "", "Optimizer pipeline description")
	f.StringVar(&opts.aaPipeline, "aa-pipeline", "", "Alias analysis pipeline description")
	f.BoolVar(&opts.saveTemps, "save-temps", false, "Save temporary files next to the output")
	f.BoolVar(&opts.distributed, "thinlto-distributed-indexes", false, "Write ThinLTO index files instead of objects")
	f.BoolVar(&opts.emitImports, "thinlto-emit-imports", true, "Write .imports files with distributed indexes")
	f.IntVar(&opts.threads, "thinlto-threads", 0, "ThinLTO worker count (default: host CPUs)")
	f.StringVar(&opts.overrideTriple, "override-triple", "", "Replace the target triple of every module")
	f.StringVar(&opts.defaultTriple, "default-triple", "", "Target triple for modules without one")
	f.StringVar(&opts.mcpu, "mcpu", "", "Target CPU")
	f.StringSliceVar(&opts.mattr, "mattr", nil, "Target features (repeatable, comma separated)")
	f.StringVar(&opts.relocModel, "relocation-model", "", "Relocation model")
	f.StringVar(&opts.codeModel, "code-model", "", "Code model: tiny, small, kernel, medium or large")
	f.StringVar(&opts.fileType, "filetype", "obj", "Output file type: obj or asm")
	f.StringVar(&opts.prefixReplace, "thinlto-prefix-replace", "", "Rewrite distributed index paths: old;new")
	f.StringVar(&opts.remarksOutput, "pass-remarks-output", "", "Write optimization remarks to this file")
	f.BoolVar(&opts.remarksHotness, "pass-remarks-with-hotness", false, "Include profile hotness in remarks")
	f.StringArrayVarP(&opts.resolutions, "resolution", "r", nil, "Symbol resolution file,symbol,flags (repeatable)")

	return cmd
}

func runRun(cmd *cobra.Command, opts *runOptions, inputs []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := GetConfig()
	if cfg != nil {
		validator, err := config.NewValidator()
		if err != nil {
			return reportRunError(err)
		}
		if err := validator.Validate(cfg.WithDefaults()); err != nil {
			return reportRunError(&oerrors.DetailError{
				Type:     "invalid configuration",
				Message:  strings.TrimSpace(err.Error()),
				Location: configFlag,
				Cause:    err,
				Kind:     oerrors.ErrParse,
			})
		}
	}

	flags := cmd.Flags()
	resolved := config.ResolveRun(config.ResolveRunOptions{
		OptLevel:    config.FlagValue{Value: opts.optLevel, Changed: flags.Changed("opt-level")},
		CGOptLevel:  config.FlagValue{Value: opts.cgOptLevel, Changed: flags.Changed("cg-opt-level")},
		CacheDir:    config.FlagValue{Value: opts.cacheDir, Changed: flags.Changed("cache-dir")},
		Threads:     config.FlagValue{Value: strconv.Itoa(opts.threads), Changed: flags.Changed("thinlto-threads")},
		Config:      cfg,
		HostThreads: engine.HostConcurrency(),
	})
	config.LogResolvedValues(resolved.Values())

	threads, err := strconv.Atoi(resolved.Threads.Value)
	if err != nil {
		return reportRunError(oerrors.NewParseError("invalid thread count: "+resolved.Threads.Value, ""))
	}

	driverOpts := driver.Options{
		Inputs:             inputs,
		Resolutions:        opts.resolutions,
		Output:             opts.output,
		OptLevel:           resolved.OptLevel.Value,
		CGOptLevel:         resolved.CGOptLevel.Value,
		CacheDir:           resolved.CacheDir.Value,
		Threads:            threads,
		Distributed:        opts.distributed,
		EmitImports:        opts.emitImports,
		SaveTemps:          opts.saveTemps,
		CPU:                opts.mcpu,
		MAttrs:             opts.mattr,
		RelocModel:         opts.relocModel,
		CodeModel:          opts.codeModel,
		FileType:           opts.fileType,
		PrefixReplace:      opts.prefixReplace,
		OverrideTriple:     opts.overrideTriple,
		DefaultTriple:      opts.defaultTriple,
		OptPipeline:        opts.optPipeline,
		AAPipeline:         opts.aaPipeline,
		RemarksFilename:    opts.remarksOutput,
		RemarksWithHotness: opts.remarksHotness,
		FS:                 opts.fs,
	}
	if driverOpts.CacheDir != "" {
		if driverOpts.CacheDir, err = config.ExpandPath(driverOpts.CacheDir); err != nil {
			return reportRunError(oerrors.NewIOError(resolved.CacheDir.Value, "expanding cache path", err))
		}
	}

	var result *driver.Result
	err = output.RunWithSpinner(func() error {
		var runErr error
		result, runErr = driver.Run(ctx, driverOpts)
		return runErr
	}, output.WithTitle(fmt.Sprintf("Linking %d modules", len(inputs))), output.WithEnabled(!verboseFlag))
	if err != nil {
		return reportRunError(err)
	}

	logResult(result, opts.distributed)
	return nil
}

// reportRunError prints err unless the driver already printed it and
// returns it as an ExitError.
func reportRunError(err error) error {
	var exitErr *oerrors.ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	output.Error(err.Error())
	return &oerrors.ExitError{Code: oerrors.ExitGeneralError, Err: err, Printed: true}
}

func logResult(r *driver.Result, distributed bool) {
	if distributed {
		output.Info(output.StyleSummary.Render("wrote index files"),
			"modules", r.Modules,
			"files", r.IndexFiles,
		)
		return
	}

	keyvals := []interface{}{
		"modules", r.Modules,
		"tasks", r.Tasks,
		"size", humanize.Bytes(uint64(r.Bytes)),
	}
	if r.CacheHits+r.CacheMisses > 0 {
		keyvals = append(keyvals,
			"cache", fmt.Sprintf("%s %s",
				output.StatusStyle(output.StatusHit).Render(fmt.Sprintf("%d %s", r.CacheHits, output.StatusHit)),
				output.StatusStyle(output.StatusMiss).Render(fmt.Sprintf("%d %s", r.CacheMisses, output.StatusMiss)),
			),
		)
	}
	output.Info(output.StyleSummary.Render("link complete"), keyvals...)

	if verboseFlag && len(r.Outputs) > 0 {
		output.Println(taskTable(r.Outputs).String())
	}
}

// taskTable lists the written task files.
func taskTable(outputs []driver.TaskOutput) *output.Table {
	tbl := output.NewTable("TASK", "OUTPUT", "SIZE", "CACHE")
	for _, o := range outputs {
		status := o.Cache
		if status == "" {
			status = "-"
		} else {
			status = output.StatusStyle(status).Render(status)
		}
		tbl.Row(strconv.Itoa(o.Task), output.StyleNoun.Render(o.Path), humanize.Bytes(uint64(o.Bytes)), status)
	}
	return tbl
}
