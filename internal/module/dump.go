package module

import (
	"fmt"
	"io"
	"strings"
)

// HeaderStyle renders the per-module header lines of a symbol table dump.
// The identity function leaves them unstyled.
type HeaderStyle func(string) string

// Dump writes a human-readable listing of f's symbol table to w.
//
// Each symbol is printed as its visibility (H, P or D) followed by the
// flags U (undefined), C (common), W (weak), I (indirect), O (can be
// omitted from the symbol table), T (TLS) and X (executable), with '-'
// for an unset flag, then the symbol name.
func Dump(w io.Writer, f *File, style HeaderStyle) error {
	if style == nil {
		style = func(s string) string { return s }
	}
	var b strings.Builder

	b.WriteString(style("target triple: "+f.TargetTriple) + "\n")
	b.WriteString(style("source filename: "+f.SourceFileName) + "\n")

	coff := IsCOFF(f.TargetTriple)
	if coff {
		b.WriteString(style("linker opts: "+f.LinkerOpts) + "\n")
	}

	for _, sym := range f.Symbols {
		switch sym.Visibility {
		case VisibilityHidden:
			b.WriteByte('H')
		case VisibilityProtected:
			b.WriteByte('P')
		default:
			b.WriteByte('D')
		}

		flag := func(c byte, set bool) {
			if set {
				b.WriteByte(c)
			} else {
				b.WriteByte('-')
			}
		}
		flag('U', sym.Undefined)
		flag('C', sym.IsCommon())
		flag('W', sym.Weak)
		flag('I', sym.Indirect)
		flag('O', sym.OmitFromSymtab)
		flag('T', sym.TLS)
		flag('X', sym.Executable)
		b.WriteByte(' ')
		b.WriteString(sym.Name)
		b.WriteByte('\n')

		if sym.IsCommon() {
			fmt.Fprintf(&b, "         size %d align %d\n", sym.Common.Size, sym.Common.Align)
		}
		if idx := f.ComdatIndex(sym); idx != -1 {
			fmt.Fprintf(&b, "         comdat %s\n", f.ComdatTable[idx])
		}
		if coff && sym.Weak && sym.Indirect {
			fmt.Fprintf(&b, "         fallback %s\n", sym.Fallback)
		}
	}
	b.WriteByte('\n')

	_, err := io.WriteString(w, b.String())
	return err
}
