package resolution

import (
	"fmt"
	"strings"

	oerrors "github.com/opmodel/lto2/internal/errors"
)

// ParseError reports a malformed resolution specifier.
type ParseError struct {
	// Spec is the specifier as given on the command line.
	Spec string

	// Char is the offending flag character, or zero when the specifier is
	// missing its symbol part.
	Char rune
}

func (e *ParseError) Error() string {
	if e.Char != 0 {
		return fmt.Sprintf("invalid character %c in resolution: %s", e.Char, e.Spec)
	}
	return fmt.Sprintf("invalid resolution: %s", e.Spec)
}

// Is classifies every ParseError as errors.ErrParse.
func (e *ParseError) Is(target error) bool {
	return target == oerrors.ErrParse
}

// Parse parses a single "file,symbol,flags" specifier.
func Parse(spec string) (Key, Descriptor, error) {
	file, rest, _ := strings.Cut(spec, ",")
	if rest == "" {
		return Key{}, Descriptor{}, &ParseError{Spec: spec}
	}
	symbol, flags, _ := strings.Cut(rest, ",")

	var d Descriptor
	for _, c := range flags {
		switch c {
		case 'p':
			d.Prevailing = true
		case 'l':
			d.FinalDefinitionInLinkageUnit = true
		case 'x':
			d.VisibleToRegularObj = true
		default:
			return Key{}, Descriptor{}, &ParseError{Spec: spec, Char: c}
		}
	}

	return Key{File: file, Symbol: symbol}, d, nil
}

// ParseTable parses specs in order into a Table. It stops at the first
// malformed specifier.
func ParseTable(specs []string) (*Table, error) {
	t := NewTable()
	for _, spec := range specs {
		k, d, err := Parse(spec)
		if err != nil {
			return nil, err
		}
		t.Push(k, d)
	}
	return t, nil
}
