package module

import (
	_ "embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	oerrors "github.com/opmodel/lto2/internal/errors"
	"github.com/opmodel/lto2/internal/output"
)

//go:embed schema.cue
var schemaCUE []byte

// Loader reads modules from a filesystem and validates them against the
// embedded schema. A Loader is not safe for concurrent use.
type Loader struct {
	fs     afero.Fs
	ctx    *cue.Context
	schema cue.Value
}

// NewLoader creates a Loader reading from fs.
func NewLoader(fs afero.Fs) (*Loader, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compiling module schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Module"))
	if err := def.Err(); err != nil {
		return nil, fmt.Errorf("looking up #Module: %w", err)
	}

	return &Loader{fs: fs, ctx: ctx, schema: def}, nil
}

// Open reads and validates the module at path.
func (l *Loader) Open(path string) (*File, error) {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, oerrors.NewIOError(path, "reading module", err)
	}

	f, err := l.Parse(path, data)
	if err != nil {
		return nil, err
	}

	output.ModuleLogger(path).Debug("loaded module",
		"triple", f.TargetTriple,
		"lto", f.Kind,
		"symbols", len(f.Symbols),
	)
	return f, nil
}

// Parse decodes and validates module content. path is only used to label
// the result and any error.
func (l *Loader) Parse(path string, data []byte) (*File, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, invalidModule(path, "not a module document", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	if _, ok := raw.(map[string]any); !ok {
		return nil, invalidModule(path, "module document must be a mapping", nil)
	}

	v := l.schema.Unify(l.ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, invalidModule(path, strings.TrimSpace(cueerrors.Details(err, nil)), err)
	}

	var f File
	if err := v.Decode(&f); err != nil {
		return nil, invalidModule(path, "decoding module", err)
	}

	for _, s := range f.Symbols {
		if s.Comdat != "" && f.ComdatIndex(s) < 0 {
			return nil, invalidModule(path, fmt.Sprintf("symbol %s refers to unknown comdat %s", s.Name, s.Comdat), nil)
		}
	}

	f.Path = path
	f.Data = data
	return &f, nil
}

func invalidModule(path, msg string, cause error) error {
	return &oerrors.DetailError{
		Type:     "invalid module",
		Message:  msg,
		Location: path,
		Cause:    cause,
		Kind:     oerrors.ErrParse,
	}
}
