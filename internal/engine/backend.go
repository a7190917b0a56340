package engine

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"
	"sigs.k8s.io/yaml"

	oerrors "github.com/opmodel/lto2/internal/errors"
	"github.com/opmodel/lto2/internal/output"
)

// CodeGenFunc generates and emits the object for one job.
type CodeGenFunc func(ctx context.Context, job Job) error

// Backend decides what happens to the jobs of a link.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string

	// Run processes every job. It returns the first error encountered.
	Run(ctx context.Context, jobs []Job, codegen CodeGenFunc) error
}

// HostConcurrency estimates how many heavyweight jobs the host can run at
// once. Callers are expected to have applied the container CPU quota to
// GOMAXPROCS beforehand.
func HostConcurrency() int {
	return runtime.GOMAXPROCS(0)
}

type inProcessBackend struct {
	threads int
}

// NewInProcessBackend returns a backend that generates objects in this
// process, running at most threads jobs at a time. threads <= 0 selects
// HostConcurrency.
func NewInProcessBackend(threads int) Backend {
	if threads <= 0 {
		threads = HostConcurrency()
	}
	return &inProcessBackend{threads: threads}
}

func (b *inProcessBackend) Name() string { return "in-process" }

func (b *inProcessBackend) Run(ctx context.Context, jobs []Job, codegen CodeGenFunc) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(b.threads)

	for _, job := range jobs {
		g.Go(func() error {
			output.Debug("generating object", "task", job.Task, "modules", len(job.Summaries))
			return codegen(ctx, job)
		})
	}
	return g.Wait()
}

// WriteIndexesOptions configures the distributed index backend.
type WriteIndexesOptions struct {
	// OldPrefix is replaced by NewPrefix in every path the backend writes
	// or records.
	OldPrefix string
	NewPrefix string

	// EmitImports enables the <path>.imports files.
	EmitImports bool

	// OnWrite, if set, is called with the path of every file written.
	OnWrite func(path string)
}

type writeIndexesBackend struct {
	fs   afero.Fs
	opts WriteIndexesOptions
}

// NewWriteIndexesBackend returns a backend for distributed builds. It
// writes a summary index next to every module, plus an imports file when
// enabled, and never generates objects.
func NewWriteIndexesBackend(fs afero.Fs, opts WriteIndexesOptions) Backend {
	return &writeIndexesBackend{fs: fs, opts: opts}
}

func (b *writeIndexesBackend) Name() string { return "write-indexes" }

func (b *writeIndexesBackend) Run(_ context.Context, jobs []Job, _ CodeGenFunc) error {
	for _, job := range jobs {
		for _, sum := range job.Summaries {
			if err := b.writeIndex(sum); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *writeIndexesBackend) writeIndex(sum *Summary) error {
	base := b.rewrite(sum.Module)

	index := *sum
	index.Imports = make([]string, len(sum.Imports))
	for i, p := range sum.Imports {
		index.Imports[i] = b.rewrite(p)
	}
	data, err := yaml.Marshal(&index)
	if err != nil {
		return oerrors.NewIOError(base+".thinlto.yaml", "encoding index", err)
	}
	if err := b.write(base+".thinlto.yaml", data); err != nil {
		return err
	}

	if !b.opts.EmitImports {
		return nil
	}
	var sb strings.Builder
	for _, p := range index.Imports {
		sb.WriteString(p)
		sb.WriteByte('\n')
	}
	return b.write(base+".imports", []byte(sb.String()))
}

func (b *writeIndexesBackend) write(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := b.fs.MkdirAll(dir, 0o755); err != nil {
			return oerrors.NewIOError(dir, "creating index directory", err)
		}
	}
	if err := afero.WriteFile(b.fs, path, data, 0o644); err != nil {
		return oerrors.NewIOError(path, "writing index", err)
	}
	output.Debug("wrote index file", "path", path)
	if b.opts.OnWrite != nil {
		b.opts.OnWrite(path)
	}
	return nil
}

func (b *writeIndexesBackend) rewrite(path string) string {
	if b.opts.OldPrefix == "" && b.opts.NewPrefix == "" {
		return path
	}
	if rest, ok := strings.CutPrefix(path, b.opts.OldPrefix); ok {
		return b.opts.NewPrefix + rest
	}
	return path
}
