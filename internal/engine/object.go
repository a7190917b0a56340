package engine

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/opmodel/lto2/internal/module"
)

// Object is the native object emitted for a task.
type Object struct {
	Triple     string         `yaml:"triple"`
	OptLevel   int            `yaml:"optLevel"`
	CodeGen    string         `yaml:"codegen"`
	CPU        string         `yaml:"cpu,omitempty"`
	Features   []string       `yaml:"features,omitempty"`
	RelocModel string         `yaml:"relocModel,omitempty"`
	CodeModel  string         `yaml:"codeModel,omitempty"`
	FileType   string         `yaml:"fileType"`
	Pipeline   string         `yaml:"pipeline,omitempty"`
	AAPipeline string         `yaml:"aaPipeline,omitempty"`
	Modules    []string       `yaml:"modules"`
	Imports    []string       `yaml:"imports,omitempty"`
	Symbols    []ObjectSymbol `yaml:"symbols"`
}

// ObjectSymbol is a symbol table entry of an Object.
type ObjectSymbol struct {
	Name       string  `yaml:"name"`
	Linkage    Linkage `yaml:"linkage"`
	Visibility string  `yaml:"visibility,omitempty"`
	DSOLocal   bool    `yaml:"dsoLocal,omitempty"`
	TLS        bool    `yaml:"tls,omitempty"`
	Size       uint64  `yaml:"size,omitempty"`
	Align      uint32  `yaml:"align,omitempty"`
	Comdat     string  `yaml:"comdat,omitempty"`
	Body       string  `yaml:"body,omitempty"`
}

// Encode serializes the object. The encoding is deterministic.
func (o *Object) Encode() ([]byte, error) {
	return yaml.Marshal(o)
}

// buildObject generates the object for a job. Discarded definitions are
// dropped, a symbol defined more than once in the partition keeps its first
// definition, and references resolved inside the partition are not listed
// as undefined.
func buildObject(conf Config, job Job) *Object {
	obj := &Object{
		OptLevel:   conf.OptLevel,
		CodeGen:    conf.CGOptLevel.String(),
		CPU:        conf.CPU,
		Features:   conf.MAttrs,
		RelocModel: conf.RelocModel,
		CodeModel:  conf.CodeModel,
		FileType:   conf.FileType.String(),
		Pipeline:   conf.OptPipeline,
		AAPipeline: conf.AAPipeline,
		Symbols:    []ObjectSymbol{},
	}

	defined := make(map[string]bool)
	var undefined []string
	seenRef := make(map[string]bool)

	for _, sum := range job.Summaries {
		if obj.Triple == "" {
			obj.Triple = sum.Triple
		}
		obj.Modules = append(obj.Modules, sum.Module)
		obj.Imports = append(obj.Imports, sum.Imports...)

		for i, ss := range sum.Symbols {
			sym := sum.file.Symbols[i]
			switch ss.Linkage {
			case LinkageDiscarded:
				continue
			case LinkageUndefined:
				if !seenRef[ss.Name] {
					seenRef[ss.Name] = true
					undefined = append(undefined, ss.Name)
				}
				continue
			}
			if defined[ss.Name] {
				continue
			}
			defined[ss.Name] = true

			osym := ObjectSymbol{
				Name:     ss.Name,
				Linkage:  ss.Linkage,
				DSOLocal: ss.DSOLocal,
				TLS:      sym.TLS,
				Comdat:   sym.Comdat,
				Body:     optimizeBody(sym.Body, conf.OptLevel),
			}
			if sym.Visibility != "" && sym.Visibility != module.VisibilityDefault {
				osym.Visibility = string(sym.Visibility)
			}
			if sym.Common != nil {
				osym.Size = sym.Common.Size
				osym.Align = sym.Common.Align
			}
			obj.Symbols = append(obj.Symbols, osym)
		}
	}

	for _, name := range undefined {
		if defined[name] {
			continue
		}
		obj.Symbols = append(obj.Symbols, ObjectSymbol{Name: name, Linkage: LinkageUndefined})
	}
	return obj
}

// optimizeBody canonicalizes whitespace above -O0.
func optimizeBody(body string, optLevel int) string {
	if optLevel == 0 {
		return body
	}
	return strings.Join(strings.Fields(body), " ")
}
