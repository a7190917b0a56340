package driver

import (
	"context"
	"errors"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opmodel/lto2/internal/cache"
	oerrors "github.com/opmodel/lto2/internal/errors"
	"github.com/opmodel/lto2/internal/testutil"
)

const moduleA = `
triple: x86_64-unknown-linux-gnu
lto: thin
symbols:
  - name: main
    body: "call   foo"
  - name: foo
    undefined: true
`

const moduleB = `
triple: x86_64-unknown-linux-gnu
lto: thin
symbols:
  - name: foo
    body: "ret"
`

var baseResolutions = []string{
	"a.bc,main,px",
	"a.bc,foo,",
	"b.bc,foo,p",
}

func newFS(t *testing.T) afero.Fs {
	t.Helper()
	return testutil.MemFS(t, map[string]string{"a.bc": moduleA, "b.bc": moduleB})
}

func baseOptions(fs afero.Fs) Options {
	return Options{
		Inputs:      []string{"a.bc", "b.bc"},
		Resolutions: append([]string(nil), baseResolutions...),
		Output:      "out",
		OptLevel:    "2",
		CGOptLevel:  "2",
		Threads:     2,
		EmitImports: true,
		FS:          fs,
	}
}

func assertNoOutputs(t *testing.T, fs afero.Fs) {
	t.Helper()
	testutil.AssertMissing(t, fs, "out.0", "out.1", "out.2", "out.resolution.txt")
}

func TestRun_Success(t *testing.T) {
	fs := newFS(t)
	result, err := Run(context.Background(), baseOptions(fs))
	require.NoError(t, err)

	assert.Equal(t, "in-process", result.Backend)
	assert.Equal(t, 2, result.Modules)
	assert.Equal(t, 2, result.Tasks)
	assert.Positive(t, result.Bytes)

	require.Len(t, result.Outputs, 2)
	assert.Equal(t, 1, result.Outputs[0].Task)
	assert.Equal(t, "out.1", result.Outputs[0].Path)
	assert.Equal(t, 2, result.Outputs[1].Task)
	assert.Equal(t, result.Bytes, result.Outputs[0].Bytes+result.Outputs[1].Bytes)
	assert.Empty(t, result.Outputs[0].Cache)

	testutil.AssertExists(t, fs, "out.1", "out.2")
	testutil.AssertMissing(t, fs, "out.0")
}

func TestRun_DuplicateSymbolsConsumeInOrder(t *testing.T) {
	fs := testutil.MemFS(t, map[string]string{"a.bc": `
triple: x86_64-unknown-linux-gnu
symbols:
  - name: dup
  - name: dup
`})

	opts := baseOptions(fs)
	opts.Inputs = []string{"a.bc"}
	opts.Resolutions = []string{"a.bc,dup,px", "a.bc,dup,"}

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Tasks)

	testutil.AssertExists(t, fs, "out.0")
}

func TestRun_MissingResolution(t *testing.T) {
	fs := newFS(t)
	opts := baseOptions(fs)
	opts.Resolutions = opts.Resolutions[:2]

	_, err := Run(context.Background(), opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, oerrors.ErrReconcile))
	assert.Contains(t, err.Error(), "missing symbol resolution for b.bc,foo")

	var exitErr *oerrors.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.True(t, exitErr.Printed)
	assert.Equal(t, oerrors.ExitGeneralError, exitErr.Code)

	assertNoOutputs(t, fs)
}

func TestRun_UnusedResolution(t *testing.T) {
	fs := newFS(t)
	opts := baseOptions(fs)
	opts.Resolutions = append(opts.Resolutions, "c.bc,bar,p", "a.bc,main,px")

	_, err := Run(context.Background(), opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, oerrors.ErrReconcile))
	assert.Contains(t, err.Error(), "unused symbol resolution for a.bc,main")
	assert.Contains(t, err.Error(), "unused symbol resolution for c.bc,bar")
	assertNoOutputs(t, fs)
}

func TestRun_MissingAndUnusedReportedTogether(t *testing.T) {
	fs := newFS(t)
	opts := baseOptions(fs)
	opts.Resolutions = []string{"a.bc,main,px", "b.bc,foo,p", "b.bc,bar,"}

	_, err := Run(context.Background(), opts)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 symbol resolution errors")
	assert.Contains(t, err.Error(), "missing symbol resolution for a.bc,foo")
	assert.Contains(t, err.Error(), "unused symbol resolution for b.bc,bar")
	assertNoOutputs(t, fs)
}

func TestRun_InvalidArguments(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
		want   string
	}{
		{
			name:   "bad resolution flag",
			modify: func(o *Options) { o.Resolutions = []string{"a.bc,main,pz"} },
			want:   "invalid character z in resolution: a.bc,main,pz",
		},
		{
			name:   "resolution without symbol",
			modify: func(o *Options) { o.Resolutions = []string{"a.bc"} },
			want:   "invalid resolution: a.bc",
		},
		{
			name:   "prefix replacement",
			modify: func(o *Options) { o.PrefixReplace = "no-separator" },
			want:   "invalid prefix replacement: no-separator",
		},
		{
			name:   "file type",
			modify: func(o *Options) { o.FileType = "elf" },
			want:   "invalid file type: elf",
		},
		{
			name:   "code model",
			modify: func(o *Options) { o.CodeModel = "huge" },
			want:   "invalid code model: huge",
		},
		{
			name:   "opt level",
			modify: func(o *Options) { o.OptLevel = "4" },
			want:   "invalid optimization level: 4",
		},
		{
			name:   "cg opt level",
			modify: func(o *Options) { o.CGOptLevel = "fast" },
			want:   "invalid cg optimization level: fast",
		},
		{
			name:   "no output",
			modify: func(o *Options) { o.Output = "" },
			want:   "no output file specified",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			opts := baseOptions(fs)
			tt.modify(&opts)

			_, err := Run(context.Background(), opts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, oerrors.ErrParse))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRun_ResolutionWithoutFlagsField(t *testing.T) {
	fs := newFS(t)
	opts := baseOptions(fs)
	opts.Resolutions = []string{"a.bc,main,px", "a.bc,foo", "b.bc,foo,p"}

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Tasks)
	testutil.AssertExists(t, fs, "out.1", "out.2")
}

func TestRun_ModuleErrors(t *testing.T) {
	t.Run("unreadable module", func(t *testing.T) {
		fs := newFS(t)
		opts := baseOptions(fs)
		opts.Inputs = []string{"a.bc", "missing.bc"}

		_, err := Run(context.Background(), opts)
		require.Error(t, err)
		assert.True(t, errors.Is(err, oerrors.ErrIO))
		assert.Contains(t, err.Error(), "missing.bc")
		assertNoOutputs(t, fs)
	})

	t.Run("invalid module", func(t *testing.T) {
		fs := newFS(t)
		require.NoError(t, afero.WriteFile(fs, "b.bc", []byte("lto: fat\n"), 0o644))

		_, err := Run(context.Background(), baseOptions(fs))
		require.Error(t, err)
		assert.True(t, errors.Is(err, oerrors.ErrParse))
		assert.Contains(t, err.Error(), "b.bc")
	})

	t.Run("engine rejects module", func(t *testing.T) {
		fs := newFS(t)
		opts := baseOptions(fs)
		opts.Resolutions = []string{"a.bc,main,px", "a.bc,foo,p", "b.bc,foo,p"}
		require.NoError(t, afero.WriteFile(fs, "a.bc", []byte(`
triple: x86_64-unknown-linux-gnu
lto: thin
symbols:
  - name: main
  - name: foo
`), 0o644))

		_, err := Run(context.Background(), opts)
		require.Error(t, err)
		assert.True(t, errors.Is(err, oerrors.ErrEngine))
		assert.Contains(t, err.Error(), "multiple prevailing definitions of foo")
		assertNoOutputs(t, fs)
	})
}

func TestRun_CacheSecondRunHits(t *testing.T) {
	fs := newFS(t)
	opts := baseOptions(fs)
	opts.CacheDir = "/cache"

	first, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, int64(0), first.CacheHits)
	assert.Equal(t, int64(2), first.CacheMisses)

	out1, err := afero.ReadFile(fs, "out.1")
	require.NoError(t, err)
	require.NoError(t, fs.Remove("out.1"))

	second, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.CacheHits)
	assert.Equal(t, int64(0), second.CacheMisses)
	assert.Equal(t, 2, second.Tasks)
	require.Len(t, second.Outputs, 2)
	assert.Equal(t, cache.StatusHit, second.Outputs[0].Cache)

	again, err := afero.ReadFile(fs, "out.1")
	require.NoError(t, err)
	assert.Equal(t, out1, again)
}

func TestRun_CacheMissOnConfigChange(t *testing.T) {
	fs := newFS(t)
	opts := baseOptions(fs)
	opts.CacheDir = "/cache"

	_, err := Run(context.Background(), opts)
	require.NoError(t, err)

	opts.OptLevel = "0"
	result, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, int64(0), result.CacheHits)
}

func TestRun_CacheDirCreateFailure(t *testing.T) {
	fs := afero.NewReadOnlyFs(newFS(t))
	opts := baseOptions(fs)
	opts.CacheDir = "/cache"

	_, err := Run(context.Background(), opts)
	require.Error(t, err)
	assert.True(t, errors.Is(err, oerrors.ErrIO))
	assert.Contains(t, err.Error(), "failed to create cache")
}

func TestRun_DistributedWritesIndexesOnly(t *testing.T) {
	fs := newFS(t)
	opts := baseOptions(fs)
	opts.Distributed = true

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, "write-indexes", result.Backend)
	assert.Equal(t, 0, result.Tasks)
	assert.Equal(t, 4, result.IndexFiles)

	testutil.AssertExists(t, fs, "a.bc.thinlto.yaml", "a.bc.imports", "b.bc.thinlto.yaml", "b.bc.imports")
	imports, err := afero.ReadFile(fs, "a.bc.imports")
	require.NoError(t, err)
	assert.Equal(t, "b.bc\n", string(imports))

	assertNoOutputs(t, fs)
}

func TestRun_DistributedWithoutImports(t *testing.T) {
	fs := newFS(t)
	opts := baseOptions(fs)
	opts.Distributed = true
	opts.EmitImports = false

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 2, result.IndexFiles)

	testutil.AssertMissing(t, fs, "a.bc.imports")
}

func TestRun_DistributedPrefixReplace(t *testing.T) {
	fs := testutil.MemFS(t, map[string]string{"src/a.bc": moduleA, "src/b.bc": moduleB})
	opts := baseOptions(fs)
	opts.Inputs = []string{"src/a.bc", "src/b.bc"}
	opts.Resolutions = []string{"src/a.bc,main,px", "src/a.bc,foo,", "src/b.bc,foo,p"}
	opts.Distributed = true
	opts.PrefixReplace = "src/;dist/"

	result, err := Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 4, result.IndexFiles)

	testutil.AssertExists(t, fs, "dist/a.bc.thinlto.yaml", "dist/a.bc.imports", "dist/b.bc.thinlto.yaml")
	testutil.AssertMissing(t, fs, "src/a.bc.thinlto.yaml")
	imports, err := afero.ReadFile(fs, "dist/a.bc.imports")
	require.NoError(t, err)
	assert.Equal(t, "dist/b.bc\n", string(imports))
}

func TestRun_CodegenTargetOptions(t *testing.T) {
	fs := newFS(t)
	opts := baseOptions(fs)
	opts.FileType = "asm"
	opts.CodeModel = "large"

	_, err := Run(context.Background(), opts)
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, "out.1")
	require.NoError(t, err)
	assert.Contains(t, string(data), "fileType: asm")
	assert.Contains(t, string(data), "codeModel: large")
}

func TestParsePrefixReplace(t *testing.T) {
	oldPrefix, newPrefix, err := ParsePrefixReplace("/src/;/obj/")
	require.NoError(t, err)
	assert.Equal(t, "/src/", oldPrefix)
	assert.Equal(t, "/obj/", newPrefix)

	oldPrefix, newPrefix, err = ParsePrefixReplace("")
	require.NoError(t, err)
	assert.Empty(t, oldPrefix)
	assert.Empty(t, newPrefix)

	_, _, err = ParsePrefixReplace("/src/")
	require.Error(t, err)
	assert.True(t, errors.Is(err, oerrors.ErrParse))
	assert.Contains(t, err.Error(), "invalid prefix replacement: /src/")
}

func TestRun_SaveTempsAndRemarks(t *testing.T) {
	fs := newFS(t)
	opts := baseOptions(fs)
	opts.SaveTemps = true
	opts.RemarksFilename = "remarks.yaml"

	_, err := Run(context.Background(), opts)
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, "out.resolution.txt")
	require.NoError(t, err)
	assert.Equal(t, "a.bc\n-r=a.bc,main,px\n-r=a.bc,foo,\nb.bc\n-r=b.bc,foo,p\n", string(data))

	testutil.AssertExists(t, fs, "out.1.opt.yaml", "out.2.opt.yaml", "remarks.yaml")
}

func TestParseOptLevel(t *testing.T) {
	for s, want := range map[string]int{"0": 0, "1": 1, "2": 2, "3": 3} {
		got, err := ParseOptLevel(s)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	for _, s := range []string{"", "4", "-1", "02", "O2"} {
		_, err := ParseOptLevel(s)
		assert.Error(t, err, s)
	}
}
