package resolution

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	oerrors "github.com/opmodel/lto2/internal/errors"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		wantKey Key
		want    Descriptor
	}{
		{
			name:    "prevailing and local",
			spec:    "a.bc,foo,pl",
			wantKey: Key{File: "a.bc", Symbol: "foo"},
			want:    Descriptor{Prevailing: true, FinalDefinitionInLinkageUnit: true},
		},
		{
			name:    "all flags",
			spec:    "a.bc,foo,plx",
			wantKey: Key{File: "a.bc", Symbol: "foo"},
			want:    Descriptor{Prevailing: true, FinalDefinitionInLinkageUnit: true, VisibleToRegularObj: true},
		},
		{
			name:    "empty flags",
			spec:    "a.bc,foo,",
			wantKey: Key{File: "a.bc", Symbol: "foo"},
		},
		{
			name:    "no flag separator",
			spec:    "a.bc,foo",
			wantKey: Key{File: "a.bc", Symbol: "foo"},
		},
		{
			name:    "flags field omitted means no flags",
			spec:    "a.bc,main",
			wantKey: Key{File: "a.bc", Symbol: "main"},
			want:    Descriptor{},
		},
		{
			name:    "flags in any order",
			spec:    "a.bc,bar,xp",
			wantKey: Key{File: "a.bc", Symbol: "bar"},
			want:    Descriptor{Prevailing: true, VisibleToRegularObj: true},
		},
		{
			name:    "repeated flag",
			spec:    "a.bc,bar,pp",
			wantKey: Key{File: "a.bc", Symbol: "bar"},
			want:    Descriptor{Prevailing: true},
		},
		{
			name:    "path with directories",
			spec:    "out/obj/a.o,_ZN3foo3barEv,x",
			wantKey: Key{File: "out/obj/a.o", Symbol: "_ZN3foo3barEv"},
			want:    Descriptor{VisibleToRegularObj: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k, d, err := Parse(tt.spec)
			require.NoError(t, err)
			assert.Equal(t, tt.wantKey, k)
			assert.Equal(t, tt.want, d)
		})
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		spec    string
		wantMsg string
	}{
		{
			name:    "invalid flag character",
			spec:    "a.bc,foo,q",
			wantMsg: "invalid character q in resolution: a.bc,foo,q",
		},
		{
			name:    "invalid character after valid ones",
			spec:    "a.bc,foo,pxz",
			wantMsg: "invalid character z in resolution: a.bc,foo,pxz",
		},
		{
			name:    "no comma",
			spec:    "a.bc",
			wantMsg: "invalid resolution: a.bc",
		},
		{
			name:    "trailing comma only",
			spec:    "a.bc,",
			wantMsg: "invalid resolution: a.bc,",
		},
		{
			name:    "empty",
			spec:    "",
			wantMsg: "invalid resolution: ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Parse(tt.spec)
			require.Error(t, err)
			assert.Equal(t, tt.wantMsg, err.Error())
			assert.True(t, errors.Is(err, oerrors.ErrParse))

			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.spec, perr.Spec)
		})
	}
}

func TestParseTable_FIFOPerKey(t *testing.T) {
	table, err := ParseTable([]string{
		"a.bc,foo,p",
		"b.bc,foo,x",
		"a.bc,foo,l",
		"a.bc,bar,",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, table.Len())
	assert.Equal(t, []Descriptor{{Prevailing: true}, {FinalDefinitionInLinkageUnit: true}},
		table.Pending(Key{File: "a.bc", Symbol: "foo"}))
	assert.Equal(t, []Descriptor{{VisibleToRegularObj: true}},
		table.Pending(Key{File: "b.bc", Symbol: "foo"}))
}

func TestParseTable_StopsAtFirstError(t *testing.T) {
	table, err := ParseTable([]string{"a.bc,foo,p", "a.bc,bar,y", "broken"})
	require.Error(t, err)
	assert.Nil(t, table)
	assert.Contains(t, err.Error(), "invalid character y")
}

func TestParseTable_Idempotent(t *testing.T) {
	specs := []string{"a.bc,foo,px", "a.bc,foo,l", "b.bc,main,plx", "b.bc,printf,"}

	first, err := ParseTable(specs)
	require.NoError(t, err)
	second, err := ParseTable(specs)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second, cmp.AllowUnexported(Table{}, queue{})); diff != "" {
		t.Errorf("tables differ (-first +second):\n%s", diff)
	}
	assert.Equal(t, first.String(), second.String())
}

func TestTable_String(t *testing.T) {
	table, err := ParseTable([]string{"b.bc,foo,x", "a.bc,foo,lp", "a.bc,foo,"})
	require.NoError(t, err)

	assert.Equal(t, "a.bc,foo,pl\na.bc,foo,\nb.bc,foo,x\n", table.String())
}

func TestTable_PopRemovesDrainedKey(t *testing.T) {
	table := NewTable()
	k := Key{File: "a.bc", Symbol: "foo"}
	table.Push(k, Descriptor{Prevailing: true})
	table.Push(k, Descriptor{VisibleToRegularObj: true})

	d, ok := table.Pop(k)
	require.True(t, ok)
	assert.Equal(t, Descriptor{Prevailing: true}, d)
	assert.False(t, table.Empty())

	d, ok = table.Pop(k)
	require.True(t, ok)
	assert.Equal(t, Descriptor{VisibleToRegularObj: true}, d)
	assert.True(t, table.Empty())

	_, ok = table.Pop(k)
	assert.False(t, ok)
}
