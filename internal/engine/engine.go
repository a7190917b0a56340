// Package engine is a resolution-based LTO engine.
//
// Modules are added one at a time together with one resolution per
// enumerated symbol. Regular modules are merged into a single partition
// that is emitted as task 0; each ThinLTO module is emitted as its own task,
// numbered from 1 in the order the modules were added. The engine decides
// the final linkage of every symbol from the resolutions and hands the
// resulting jobs to a Backend, which either generates objects in process or
// writes index files for a distributed build.
package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"

	"github.com/spf13/afero"

	oerrors "github.com/opmodel/lto2/internal/errors"
	"github.com/opmodel/lto2/internal/module"
	"github.com/opmodel/lto2/internal/output"
	"github.com/opmodel/lto2/internal/resolution"
)

// AddStreamFunc opens the output for a task. The engine closes the returned
// writer. It must be safe to call concurrently for distinct tasks.
type AddStreamFunc func(task int) (io.WriteCloser, error)

// Cache serves previously generated objects. Fetch either hands stored bytes
// for key to its output sink or calls produce and stores the result before
// emitting it. It must be safe to call concurrently for distinct tasks.
type Cache interface {
	Fetch(task int, key string, produce func() ([]byte, error)) error
}

// input is a module accepted by Add.
type input struct {
	file   *module.File
	res    []resolution.Descriptor
	triple string
	hash   string
	// partition is 0 for regular modules and the task number for thin ones.
	partition int
}

// Engine accumulates modules and runs LTO over them. Add must not be called
// concurrently or after Run.
type Engine struct {
	conf    Config
	backend Backend
	fs      afero.Fs

	inputs []*input
	thin   int
	triple string

	// prevailing maps a symbol name to the module holding its prevailing
	// definition.
	prevailing map[string]string
}

// New creates an engine. fs receives temporaries and remarks.
func New(conf Config, backend Backend, fs afero.Fs) *Engine {
	return &Engine{
		conf:       conf,
		backend:    backend,
		fs:         fs,
		prevailing: make(map[string]string),
	}
}

// Add registers a module with its resolutions, one per entry of f.Symbols
// and in the same order.
func (e *Engine) Add(f *module.File, res []resolution.Descriptor) error {
	if len(res) != len(f.Symbols) {
		return oerrors.NewEngineError(f.Path,
			fmt.Sprintf("got %d resolutions for %d symbols", len(res), len(f.Symbols)), nil)
	}

	triple := f.TargetTriple
	if e.conf.OverrideTriple != "" {
		triple = e.conf.OverrideTriple
	} else if triple == "" {
		triple = e.conf.DefaultTriple
	}
	if triple == "" {
		return oerrors.NewEngineError(f.Path, "module has no target triple and no default triple was given", nil)
	}
	if e.triple != "" && triple != e.triple {
		return &oerrors.DetailError{
			Type:     "lto failed",
			Message:  "linking modules of different target triples",
			Location: f.Path,
			Context:  map[string]string{"triple": triple, "expected": e.triple},
			Kind:     oerrors.ErrEngine,
		}
	}

	for i, sym := range f.Symbols {
		if sym.Undefined || !res[i].Prevailing {
			continue
		}
		if prev, ok := e.prevailing[sym.Name]; ok && prev != f.Path {
			return &oerrors.DetailError{
				Type:     "lto failed",
				Message:  "multiple prevailing definitions of " + sym.Name,
				Location: f.Path,
				Context:  map[string]string{"first": prev},
				Hint:     "only one module may resolve a symbol with p",
				Kind:     oerrors.ErrEngine,
			}
		}
	}
	for i, sym := range f.Symbols {
		if !sym.Undefined && res[i].Prevailing {
			e.prevailing[sym.Name] = f.Path
		}
	}

	sum := sha256.Sum256(f.Data)
	in := &input{
		file:   f,
		res:    res,
		triple: triple,
		hash:   hex.EncodeToString(sum[:]),
	}
	if f.Kind == module.KindThin {
		e.thin++
		in.partition = e.thin
	}
	e.triple = triple
	e.inputs = append(e.inputs, in)

	output.Debug("added module", "path", f.Path, "lto", f.Kind, "task", in.partition)
	return nil
}

// NumTasks returns one more than the highest task number Run can emit.
func (e *Engine) NumTasks() int {
	return e.thin + 1
}

// Run links the added modules and hands the resulting jobs to the backend.
// addStream opens task outputs; cache may be nil.
func (e *Engine) Run(ctx context.Context, addStream AddStreamFunc, cache Cache) error {
	if e.conf.SaveTempsPrefix != "" {
		if err := e.writeResolutionFile(); err != nil {
			return err
		}
	}

	jobs, remarks := e.plan()

	if e.conf.RemarksFilename != "" {
		if err := writeRemarks(e.fs, e.conf.RemarksFilename, remarks, e.conf.RemarksWithHotness); err != nil {
			return err
		}
	}

	codegen := func(ctx context.Context, job Job) error {
		return e.codegen(ctx, job, addStream, cache)
	}
	return e.backend.Run(ctx, jobs, codegen)
}

// codegen generates the object for one job and emits it through the cache
// or directly to the task's stream.
func (e *Engine) codegen(_ context.Context, job Job, addStream AddStreamFunc, cache Cache) error {
	produce := func() ([]byte, error) {
		obj := buildObject(e.conf, job)
		data, err := obj.Encode()
		if err != nil {
			return nil, fmt.Errorf("encoding object for task %d: %w", job.Task, err)
		}
		if e.conf.SaveTempsPrefix != "" {
			path := fmt.Sprintf("%s%d.opt.yaml", e.conf.SaveTempsPrefix, job.Task)
			if err := afero.WriteFile(e.fs, path, data, 0o644); err != nil {
				return nil, oerrors.NewIOError(path, "saving temporary", err)
			}
		}
		return data, nil
	}

	if cache != nil {
		return cache.Fetch(job.Task, CacheKey(e.conf, job), produce)
	}

	data, err := produce()
	if err != nil {
		return err
	}
	w, err := addStream(job.Task)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("writing task %d: %w", job.Task, err)
	}
	return w.Close()
}
