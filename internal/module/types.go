// Package module reads LTO input modules and exposes their symbol tables.
//
// A module is a YAML document describing a compiled translation unit: its
// target triple, whether it carries a ThinLTO summary, and the symbols it
// defines or references in the order the compiler emitted them. Documents
// are checked against an embedded CUE schema before use.
package module

import "strings"

// Kind selects how the engine links a module.
type Kind string

const (
	// KindRegular modules are merged into a single combined partition.
	KindRegular Kind = "regular"

	// KindThin modules carry a summary and are code-generated independently.
	KindThin Kind = "thin"
)

// Visibility is the ELF-style visibility of a symbol.
type Visibility string

const (
	VisibilityDefault   Visibility = "default"
	VisibilityHidden    Visibility = "hidden"
	VisibilityProtected Visibility = "protected"
)

// Common describes the size and alignment of a common symbol.
type Common struct {
	Size  uint64 `json:"size"`
	Align uint32 `json:"align"`
}

// Symbol is one entry of a module's symbol table.
type Symbol struct {
	Name       string     `json:"name"`
	Visibility Visibility `json:"visibility"`
	Undefined  bool       `json:"undefined"`
	Weak       bool       `json:"weak"`
	Indirect   bool       `json:"indirect"`
	// OmitFromSymtab is set for linkonce_odr symbols whose address is not
	// significant.
	OmitFromSymtab bool    `json:"omitFromSymtab"`
	TLS            bool    `json:"tls"`
	Executable     bool    `json:"executable"`
	Common         *Common `json:"common,omitempty"`
	Comdat         string  `json:"comdat,omitempty"`
	// Fallback is the COFF weak external fallback symbol.
	Fallback string `json:"fallback,omitempty"`
	// Hotness is the profile count used for optimization remarks.
	Hotness uint64 `json:"hotness,omitempty"`
	// Body is the symbol's code or initializer, opaque to the driver.
	Body string `json:"body,omitempty"`
}

// IsCommon reports whether the symbol is a common symbol.
func (s Symbol) IsCommon() bool {
	return s.Common != nil
}

// File is a loaded input module.
type File struct {
	// Path is the path the module was loaded from. Resolutions refer to
	// modules by this path.
	Path string `json:"-"`

	// Data is the module's raw content.
	Data []byte `json:"-"`

	TargetTriple   string   `json:"triple"`
	SourceFileName string   `json:"sourceFilename"`
	Kind           Kind     `json:"lto"`
	LinkerOpts     string   `json:"linkerOpts,omitempty"`
	ComdatTable    []string `json:"comdats,omitempty"`
	Symbols        []Symbol `json:"symbols"`
}

// SymbolNames returns the symbol names in enumeration order, duplicates
// included.
func (f *File) SymbolNames() []string {
	names := make([]string, len(f.Symbols))
	for i, s := range f.Symbols {
		names[i] = s.Name
	}
	return names
}

// ComdatIndex returns the index of the symbol's comdat in ComdatTable, or -1.
func (f *File) ComdatIndex(s Symbol) int {
	if s.Comdat == "" {
		return -1
	}
	for i, c := range f.ComdatTable {
		if c == s.Comdat {
			return i
		}
	}
	return -1
}

// IsCOFF reports whether triple names a Windows target that uses the COFF
// object format.
func IsCOFF(triple string) bool {
	parts := strings.Split(triple, "-")
	if len(parts) < 3 {
		return false
	}
	if !strings.HasPrefix(parts[2], "windows") && !strings.HasPrefix(parts[2], "win32") {
		return false
	}
	return !strings.HasSuffix(triple, "-elf") && !strings.HasSuffix(triple, "-macho")
}
