package engine

import (
	"fmt"
	"slices"
	"strconv"
)

// CodeGenOptLevel is the optimization level used by the code generator.
type CodeGenOptLevel int

const (
	CodeGenNone CodeGenOptLevel = iota
	CodeGenLess
	CodeGenDefault
	CodeGenAggressive
)

func (l CodeGenOptLevel) String() string {
	switch l {
	case CodeGenNone:
		return "none"
	case CodeGenLess:
		return "less"
	case CodeGenDefault:
		return "default"
	case CodeGenAggressive:
		return "aggressive"
	default:
		return "CodeGenOptLevel(" + strconv.Itoa(int(l)) + ")"
	}
}

// ParseCodeGenOptLevel maps "0".."3" to a CodeGenOptLevel.
func ParseCodeGenOptLevel(s string) (CodeGenOptLevel, error) {
	switch s {
	case "0":
		return CodeGenNone, nil
	case "1":
		return CodeGenLess, nil
	case "2":
		return CodeGenDefault, nil
	case "3":
		return CodeGenAggressive, nil
	}
	return 0, fmt.Errorf("invalid cg optimization level: %s", s)
}

// FileType selects what the code generator emits.
type FileType int

const (
	FileTypeObject FileType = iota
	FileTypeAssembly
)

func (t FileType) String() string {
	if t == FileTypeAssembly {
		return "asm"
	}
	return "obj"
}

// ParseFileType maps "obj" or "asm" to a FileType.
func ParseFileType(s string) (FileType, error) {
	switch s {
	case "obj":
		return FileTypeObject, nil
	case "asm":
		return FileTypeAssembly, nil
	}
	return 0, fmt.Errorf("invalid file type: %s", s)
}

var codeModels = []string{"tiny", "small", "kernel", "medium", "large"}

// ParseCodeModel checks a code model name. The empty string leaves the
// choice to the target.
func ParseCodeModel(s string) (string, error) {
	if s == "" || slices.Contains(codeModels, s) {
		return s, nil
	}
	return "", fmt.Errorf("invalid code model: %s", s)
}

// Config holds every setting that affects what the engine produces.
type Config struct {
	// OptLevel is the optimizer level, 0-3.
	OptLevel int

	CGOptLevel CodeGenOptLevel

	// CPU, MAttrs and RelocModel are passed to the code generator.
	CPU        string
	MAttrs     []string
	RelocModel string
	// CodeModel is empty for the target default.
	CodeModel string
	FileType  FileType

	// OverrideTriple replaces the target triple of every module.
	OverrideTriple string

	// DefaultTriple is used for modules that do not name a triple.
	DefaultTriple string

	// OptPipeline and AAPipeline replace the default optimizer and alias
	// analysis pipelines when set.
	OptPipeline string
	AAPipeline  string

	// RemarksFilename receives optimization remarks when set.
	RemarksFilename    string
	RemarksWithHotness bool

	// SaveTempsPrefix enables saving temporaries; files are named by
	// appending to the prefix.
	SaveTempsPrefix string
}
