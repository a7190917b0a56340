package resolution

import "strings"

// Descriptor is the linker's resolution of one symbol occurrence.
// The three facets are independent.
type Descriptor struct {
	// Prevailing is set when this definition wins among duplicates.
	Prevailing bool `json:"prevailing"`

	// FinalDefinitionInLinkageUnit is set when the definition cannot be
	// preempted at runtime and is resolved within this linkage unit.
	FinalDefinitionInLinkageUnit bool `json:"finalDefinitionInLinkageUnit"`

	// VisibleToRegularObj is set when code outside the LTO unit may
	// reference the symbol.
	VisibleToRegularObj bool `json:"visibleToRegularObj"`
}

// Flags renders the descriptor in the "plx" flag syntax.
func (d Descriptor) Flags() string {
	var b strings.Builder
	if d.Prevailing {
		b.WriteByte('p')
	}
	if d.FinalDefinitionInLinkageUnit {
		b.WriteByte('l')
	}
	if d.VisibleToRegularObj {
		b.WriteByte('x')
	}
	return b.String()
}

// Key identifies the resolutions given for one symbol of one module.
type Key struct {
	File   string
	Symbol string
}

// String renders the key as "file,symbol".
func (k Key) String() string {
	return k.File + "," + k.Symbol
}

func (k Key) less(o Key) bool {
	if k.File != o.File {
		return k.File < o.File
	}
	return k.Symbol < o.Symbol
}
