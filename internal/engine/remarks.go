package engine

import (
	"bytes"
	"strconv"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	oerrors "github.com/opmodel/lto2/internal/errors"
)

// remark is an optimization remark about one symbol.
type remark struct {
	Pass     string
	Name     string
	Function string
	Module   string
	Hotness  uint64
}

// node renders the remark as a tagged YAML mapping.
func (r remark) node(withHotness bool) *yaml.Node {
	n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!Passed"}
	add := func(k, v string) {
		n.Content = append(n.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: k},
			&yaml.Node{Kind: yaml.ScalarNode, Value: v},
		)
	}
	add("Pass", r.Pass)
	add("Name", r.Name)
	add("Function", r.Function)
	if withHotness {
		n.Content = append(n.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: "Hotness"},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatUint(r.Hotness, 10)},
		)
	}

	args := &yaml.Node{Kind: yaml.SequenceNode}
	args.Content = append(args.Content, &yaml.Node{
		Kind: yaml.MappingNode,
		Content: []*yaml.Node{
			{Kind: yaml.ScalarNode, Value: "Module"},
			{Kind: yaml.ScalarNode, Value: r.Module},
		},
	})
	n.Content = append(n.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: "Args"}, args)
	return n
}

// writeRemarks writes remarks as a YAML document stream to path. No remarks
// leaves an empty file.
func writeRemarks(fs afero.Fs, path string, remarks []remark, withHotness bool) error {
	if len(remarks) == 0 {
		if err := afero.WriteFile(fs, path, nil, 0o644); err != nil {
			return oerrors.NewIOError(path, "writing remarks", err)
		}
		return nil
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	for _, r := range remarks {
		if err := enc.Encode(r.node(withHotness)); err != nil {
			return oerrors.NewIOError(path, "encoding remarks", err)
		}
	}
	if err := enc.Close(); err != nil {
		return oerrors.NewIOError(path, "encoding remarks", err)
	}
	if err := afero.WriteFile(fs, path, buf.Bytes(), 0o644); err != nil {
		return oerrors.NewIOError(path, "writing remarks", err)
	}
	return nil
}
