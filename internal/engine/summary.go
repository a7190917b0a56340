package engine

import (
	"sort"

	"github.com/opmodel/lto2/internal/module"
)

// Linkage is the linkage a symbol ends up with after resolution.
type Linkage string

const (
	LinkageExternal  Linkage = "external"
	LinkageWeak      Linkage = "weak"
	LinkageCommon    Linkage = "common"
	LinkageInternal  Linkage = "internal"
	LinkageUndefined Linkage = "undefined"
	// LinkageDiscarded marks a definition that lost to another module's.
	LinkageDiscarded Linkage = "discarded"
)

// SymbolSummary is the resolved state of one symbol occurrence.
type SymbolSummary struct {
	Name       string            `json:"name"`
	Resolution string            `json:"resolution"`
	Linkage    Linkage           `json:"linkage"`
	DSOLocal   bool              `json:"dsoLocal,omitempty"`
	Visibility module.Visibility `json:"visibility,omitempty"`
}

// Summary describes one module after the whole-program resolution step.
// It is what a distributed backend writes as the module's index.
type Summary struct {
	Module  string          `json:"module"`
	Hash    string          `json:"hash"`
	Triple  string          `json:"triple"`
	Kind    module.Kind     `json:"lto"`
	Task    int             `json:"task"`
	Symbols []SymbolSummary `json:"symbols"`
	// Imports lists the ThinLTO modules whose definitions this module
	// references, sorted by path.
	Imports []string `json:"imports,omitempty"`
	// Exports lists the definitions referenced from other partitions.
	Exports []string `json:"exports,omitempty"`

	file         *module.File
	importHashes []string
}

// Job is one unit of backend work. A job produces exactly one task output.
type Job struct {
	Task      int
	Summaries []*Summary
}

// plan resolves the linkage of every symbol and groups the modules into
// jobs: one for the regular partition if any regular module was added,
// then one per thin module in add order.
func (e *Engine) plan() ([]Job, []remark) {
	// Partitions that reference each symbol without defining it.
	refs := make(map[string]map[int]bool)
	byPath := make(map[string]*input, len(e.inputs))
	for _, in := range e.inputs {
		byPath[in.file.Path] = in
		for _, sym := range in.file.Symbols {
			if !sym.Undefined {
				continue
			}
			if refs[sym.Name] == nil {
				refs[sym.Name] = make(map[int]bool)
			}
			refs[sym.Name][in.partition] = true
		}
	}

	exported := func(name string, partition int) bool {
		for p := range refs[name] {
			if p != partition {
				return true
			}
		}
		return false
	}

	var remarks []remark
	var regular []*Summary
	var thin []*Summary

	for _, in := range e.inputs {
		f := in.file
		sum := &Summary{
			Module:  f.Path,
			Hash:    in.hash,
			Triple:  in.triple,
			Kind:    f.Kind,
			Task:    in.partition,
			Symbols: make([]SymbolSummary, len(f.Symbols)),
			file:    f,
		}
		imports := make(map[string]bool)
		exports := make(map[string]bool)

		for i, sym := range f.Symbols {
			r := in.res[i]
			ss := SymbolSummary{
				Name:       sym.Name,
				Resolution: r.Flags(),
				Visibility: sym.Visibility,
			}

			switch {
			case sym.Undefined:
				ss.Linkage = LinkageUndefined
				if def, ok := e.prevailing[sym.Name]; ok && in.partition != 0 {
					if d := byPath[def]; d.partition != 0 && d.partition != in.partition {
						imports[def] = true
					}
				}
			case !r.Prevailing:
				ss.Linkage = LinkageDiscarded
				remarks = append(remarks, remark{
					Pass: "lto", Name: "Discarded", Function: sym.Name,
					Module: f.Path, Hotness: sym.Hotness,
				})
			case !r.VisibleToRegularObj && !exported(sym.Name, in.partition):
				ss.Linkage = LinkageInternal
				ss.DSOLocal = true
				remarks = append(remarks, remark{
					Pass: "internalize", Name: "Internalized", Function: sym.Name,
					Module: f.Path, Hotness: sym.Hotness,
				})
			default:
				ss.Linkage = definedLinkage(sym)
				ss.DSOLocal = r.FinalDefinitionInLinkageUnit
				if exported(sym.Name, in.partition) {
					exports[sym.Name] = true
				}
			}
			sum.Symbols[i] = ss
		}

		sum.Imports = sortedSet(imports)
		sum.Exports = sortedSet(exports)
		for _, p := range sum.Imports {
			sum.importHashes = append(sum.importHashes, byPath[p].hash)
		}

		if in.partition == 0 {
			regular = append(regular, sum)
		} else {
			thin = append(thin, sum)
		}
	}

	jobs := make([]Job, 0, len(thin)+1)
	if len(regular) > 0 {
		jobs = append(jobs, Job{Task: 0, Summaries: regular})
	}
	for _, s := range thin {
		jobs = append(jobs, Job{Task: s.Task, Summaries: []*Summary{s}})
	}
	return jobs, remarks
}

func definedLinkage(sym module.Symbol) Linkage {
	switch {
	case sym.IsCommon():
		return LinkageCommon
	case sym.Weak:
		return LinkageWeak
	default:
		return LinkageExternal
	}
}

func sortedSet(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
