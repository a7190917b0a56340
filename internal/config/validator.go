package config

import (
	"embed"
	"fmt"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema.cue
var schemaFS embed.FS

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}

	var sb strings.Builder
	sb.WriteString("config validation failed:\n")
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  %s: %s\n", err.Field, err.Message))
	}
	return sb.String()
}

// fieldCheck pairs a schema field with the message reported when the
// configured value does not unify with it.
type fieldCheck struct {
	field   string
	message string
	value   func(cfg *Config) (any, bool)
}

var fieldChecks = []fieldCheck{
	{
		field:   "optLevel",
		message: "must be one of 0, 1, 2, 3",
		value:   func(cfg *Config) (any, bool) { return cfg.OptLevel, cfg.OptLevel != "" },
	},
	{
		field:   "cgOptLevel",
		message: "must be one of 0, 1, 2, 3",
		value:   func(cfg *Config) (any, bool) { return cfg.CGOptLevel, cfg.CGOptLevel != "" },
	},
	{
		field:   "threads",
		message: "must not be negative",
		value:   func(cfg *Config) (any, bool) { return cfg.Threads, true },
	},
	{
		field:   "cacheDir",
		message: "must not be empty or whitespace only",
		value:   func(cfg *Config) (any, bool) { return cfg.CacheDir, cfg.CacheDir != "" },
	},
}

// Validator validates configuration against the embedded CUE schema.
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewValidator creates a new configuration validator.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()

	// Read the embedded schema
	schemaData, err := schemaFS.ReadFile("schema.cue")
	if err != nil {
		return nil, fmt.Errorf("reading embedded schema: %w", err)
	}

	// Compile the schema
	schema := ctx.CompileBytes(schemaData, cue.Filename("schema.cue"))
	if schema.Err() != nil {
		return nil, fmt.Errorf("compiling schema: %w", schema.Err())
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	if def.Err() != nil {
		return nil, fmt.Errorf("looking up #Config: %w", def.Err())
	}

	return &Validator{
		ctx:    ctx,
		schema: def,
	}, nil
}

// Validate checks every set field of cfg against the schema and reports
// all violations in field order.
func (v *Validator) Validate(cfg *Config) error {
	var errs ValidationErrors

	for _, check := range fieldChecks {
		val, set := check.value(cfg)
		if !set {
			continue
		}
		field := v.schema.LookupPath(cue.ParsePath(check.field))
		unified := field.Unify(v.ctx.Encode(val))
		if unified.Validate(cue.Concrete(true)) != nil {
			errs = append(errs, ValidationError{Field: check.field, Message: check.message})
		}
	}

	if len(errs) > 0 {
		return errs
	}

	return nil
}
