package engine

import (
	"strings"

	"github.com/spf13/afero"

	oerrors "github.com/opmodel/lto2/internal/errors"
)

// writeResolutionFile records every module's symbol resolutions in -r
// syntax, in add order.
func (e *Engine) writeResolutionFile() error {
	var sb strings.Builder
	for _, in := range e.inputs {
		sb.WriteString(in.file.Path)
		sb.WriteByte('\n')
		for i, sym := range in.file.Symbols {
			sb.WriteString("-r=")
			sb.WriteString(in.file.Path)
			sb.WriteByte(',')
			sb.WriteString(sym.Name)
			sb.WriteByte(',')
			sb.WriteString(in.res[i].Flags())
			sb.WriteByte('\n')
		}
	}

	path := e.conf.SaveTempsPrefix + "resolution.txt"
	if err := afero.WriteFile(e.fs, path, []byte(sb.String()), 0o644); err != nil {
		return oerrors.NewIOError(path, "saving temporary", err)
	}
	return nil
}
