// Package driver runs a link: it parses the resolution table, loads the
// input modules, reconciles their symbols with the table and drives the LTO
// engine to produce one output per task.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/spf13/afero"

	"github.com/opmodel/lto2/internal/cache"
	"github.com/opmodel/lto2/internal/engine"
	oerrors "github.com/opmodel/lto2/internal/errors"
	"github.com/opmodel/lto2/internal/module"
	"github.com/opmodel/lto2/internal/output"
	"github.com/opmodel/lto2/internal/resolution"
)

// Options configures a link.
type Options struct {
	// Inputs are the module paths, in link order.
	Inputs []string

	// Resolutions are the -r specifiers, "file,symbol,flags".
	Resolutions []string

	// Output is the base name; task N is written to "<Output>.<N>".
	Output string

	// OptLevel and CGOptLevel are "0" to "3".
	OptLevel   string
	CGOptLevel string

	// CacheDir enables the object cache when set.
	CacheDir string

	// Threads bounds in-process code generation; 0 uses the host estimate.
	Threads int

	// Distributed selects the index-writing backend.
	Distributed bool
	EmitImports bool

	// PrefixReplace is "old;new". Distributed index and import paths that
	// start with old are rewritten to start with new.
	PrefixReplace string

	SaveTemps bool

	CPU            string
	MAttrs         []string
	RelocModel     string
	CodeModel      string
	// FileType is "obj" or "asm"; empty means "obj".
	FileType       string
	OverrideTriple string
	DefaultTriple  string
	OptPipeline    string
	AAPipeline     string

	RemarksFilename    string
	RemarksWithHotness bool

	// FS is the filesystem everything is read from and written to.
	// Defaults to the OS filesystem.
	FS afero.Fs
}

// Result summarizes a successful link.
type Result struct {
	Backend     string
	Modules     int
	Tasks       int
	Bytes       int64
	CacheHits   int64
	CacheMisses int64
	IndexFiles  int

	// Outputs lists the written task files in task order.
	Outputs []TaskOutput
}

// TaskOutput describes one written task file.
type TaskOutput struct {
	Task  int
	Path  string
	Bytes int64

	// Cache is cache.StatusHit or cache.StatusMiss when the cache was used.
	Cache string
}

// Run performs the link described by opts. Nothing is written unless every
// symbol of every module was matched with exactly the resolutions given.
func Run(ctx context.Context, opts Options) (*Result, error) {
	fs := opts.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}

	conf, err := engineConfig(opts)
	if err != nil {
		return nil, err
	}

	var indexFiles atomic.Int64
	backend, err := SelectBackend(opts, fs, func(string) { indexFiles.Add(1) })
	if err != nil {
		return nil, err
	}

	table, err := resolution.ParseTable(opts.Resolutions)
	if err != nil {
		return nil, err
	}
	output.Debug("parsed resolutions", "count", len(opts.Resolutions), "keys", table.Len())
	eng := engine.New(conf, backend, fs)

	loader, err := module.NewLoader(fs)
	if err != nil {
		return nil, err
	}

	matcher := resolution.NewMatcher(table)
	for _, path := range opts.Inputs {
		f, err := loader.Open(path)
		if err != nil {
			return nil, err
		}

		res, err := matcher.Match(f.Path, f.SymbolNames())
		if err != nil || matcher.Failed() {
			continue
		}
		if err := eng.Add(f, res); err != nil {
			return nil, err
		}
	}

	if err := matcher.Finish(); err != nil {
		if !table.Empty() {
			output.Debug("unused resolutions", "pending", table.String())
		}
		printDiagnostics(err)
		return nil, &oerrors.ExitError{Err: err, Code: oerrors.ExitGeneralError, Printed: true}
	}

	sinks := newSinks(fs, opts.Output)

	var objCache engine.Cache
	var c *cache.Cache
	if opts.CacheDir != "" && !opts.Distributed {
		c, err = cache.New(fs, opts.CacheDir, sinks.AddBuffer)
		if err != nil {
			return nil, err
		}
		defer c.Close()
		objCache = c
	}

	output.Debug("running lto", "backend", backend.Name(), "modules", len(opts.Inputs), "tasks", eng.NumTasks())
	if err := eng.Run(ctx, sinks.AddStream, objCache); err != nil {
		return nil, oerrors.NewEngineError("", "run failed", err)
	}

	result := &Result{
		Backend:    backend.Name(),
		Modules:    len(opts.Inputs),
		Tasks:      int(sinks.tasks.Load()),
		Bytes:      sinks.bytes.Load(),
		IndexFiles: int(indexFiles.Load()),
		Outputs:    sinks.outputs(),
	}
	if c != nil {
		s := c.Stats()
		result.CacheHits = s.Hits
		result.CacheMisses = s.Misses
		for i := range result.Outputs {
			result.Outputs[i].Cache = c.TaskStatus(result.Outputs[i].Task)
		}
	}
	return result, nil
}

// SelectBackend picks the backend for opts. onIndex is called for every
// index file the distributed backend writes.
func SelectBackend(opts Options, fs afero.Fs, onIndex func(path string)) (engine.Backend, error) {
	oldPrefix, newPrefix, err := ParsePrefixReplace(opts.PrefixReplace)
	if err != nil {
		return nil, err
	}
	if opts.Distributed {
		return engine.NewWriteIndexesBackend(fs, engine.WriteIndexesOptions{
			OldPrefix:   oldPrefix,
			NewPrefix:   newPrefix,
			EmitImports: opts.EmitImports,
			OnWrite:     onIndex,
		}), nil
	}
	return engine.NewInProcessBackend(opts.Threads), nil
}

// ParsePrefixReplace splits an "old;new" prefix replacement. An empty
// string disables replacement.
func ParsePrefixReplace(s string) (oldPrefix, newPrefix string, err error) {
	if s == "" {
		return "", "", nil
	}
	oldPrefix, newPrefix, ok := strings.Cut(s, ";")
	if !ok {
		return "", "", oerrors.NewParseError("invalid prefix replacement: "+s, "expected old;new")
	}
	return oldPrefix, newPrefix, nil
}

func engineConfig(opts Options) (engine.Config, error) {
	if opts.Output == "" {
		return engine.Config{}, oerrors.NewParseError("no output file specified", "pass -o <base name>")
	}

	optLevel, err := ParseOptLevel(opts.OptLevel)
	if err != nil {
		return engine.Config{}, err
	}
	cgLevel, err := engine.ParseCodeGenOptLevel(opts.CGOptLevel)
	if err != nil {
		return engine.Config{}, oerrors.NewParseError(err.Error(), "")
	}

	fileType := engine.FileTypeObject
	if opts.FileType != "" {
		if fileType, err = engine.ParseFileType(opts.FileType); err != nil {
			return engine.Config{}, oerrors.NewParseError(err.Error(), "use obj or asm")
		}
	}
	codeModel, err := engine.ParseCodeModel(opts.CodeModel)
	if err != nil {
		return engine.Config{}, oerrors.NewParseError(err.Error(), "")
	}

	conf := engine.Config{
		OptLevel:           optLevel,
		CGOptLevel:         cgLevel,
		CPU:                opts.CPU,
		MAttrs:             opts.MAttrs,
		RelocModel:         opts.RelocModel,
		CodeModel:          codeModel,
		FileType:           fileType,
		OverrideTriple:     opts.OverrideTriple,
		DefaultTriple:      opts.DefaultTriple,
		OptPipeline:        opts.OptPipeline,
		AAPipeline:         opts.AAPipeline,
		RemarksFilename:    opts.RemarksFilename,
		RemarksWithHotness: opts.RemarksWithHotness,
	}
	if opts.SaveTemps {
		conf.SaveTempsPrefix = opts.Output + "."
	}
	return conf, nil
}

// ParseOptLevel maps "0".."3" to an optimizer level.
func ParseOptLevel(s string) (int, error) {
	if len(s) == 1 && s[0] >= '0' && s[0] <= '3' {
		return int(s[0] - '0'), nil
	}
	return 0, oerrors.NewParseError("invalid optimization level: "+s, "")
}

func printDiagnostics(err error) {
	var multi interface{ Unwrap() []error }
	if errors.As(err, &multi) {
		for _, d := range multi.Unwrap() {
			output.Error(d.Error())
		}
		return
	}
	output.Error(err.Error())
}

// sinks opens task outputs next to the output base name.
type sinks struct {
	fs   afero.Fs
	base string

	tasks atomic.Int64
	bytes atomic.Int64

	mu      sync.Mutex
	written map[int]*TaskOutput
}

func newSinks(fs afero.Fs, base string) *sinks {
	return &sinks{fs: fs, base: base, written: make(map[int]*TaskOutput)}
}

func (s *sinks) outputs() []TaskOutput {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TaskOutput, 0, len(s.written))
	for _, o := range s.written {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Task < out[j].Task })
	return out
}

// AddStream creates or truncates "<base>.<task>".
func (s *sinks) AddStream(task int) (io.WriteCloser, error) {
	path := fmt.Sprintf("%s.%d", s.base, task)
	f, err := s.fs.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, oerrors.NewIOError(path, "could not open file", err)
	}
	s.tasks.Add(1)

	o := &TaskOutput{Task: task, Path: path}
	s.mu.Lock()
	s.written[task] = o
	s.mu.Unlock()
	return &countingWriter{f: f, path: path, total: &s.bytes, task: o, mu: &s.mu}, nil
}

// AddBuffer writes a complete task object through a fresh stream.
func (s *sinks) AddBuffer(task int, data []byte) error {
	w, err := s.AddStream(task)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

type countingWriter struct {
	f     afero.File
	path  string
	total *atomic.Int64
	once  sync.Once

	mu   *sync.Mutex
	task *TaskOutput
}

func (w *countingWriter) Write(p []byte) (int, error) {
	n, err := w.f.Write(p)
	w.total.Add(int64(n))
	w.mu.Lock()
	w.task.Bytes += int64(n)
	w.mu.Unlock()
	if err != nil {
		return n, oerrors.NewIOError(w.path, "writing output", err)
	}
	return n, nil
}

func (w *countingWriter) Close() error {
	var err error
	w.once.Do(func() {
		if cerr := w.f.Close(); cerr != nil {
			err = oerrors.NewIOError(w.path, "closing output", cerr)
		}
	})
	return err
}
