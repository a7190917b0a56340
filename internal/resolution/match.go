package resolution

import (
	"fmt"
	"strings"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	oerrors "github.com/opmodel/lto2/internal/errors"
)

// MissingResolutionError reports a symbol enumerated by a module for which no
// resolution was given.
type MissingResolutionError struct {
	Key
}

func (e *MissingResolutionError) Error() string {
	return fmt.Sprintf("missing symbol resolution for %s", e.Key)
}

// UnusedResolutionError reports a resolution left over after every module was
// matched.
type UnusedResolutionError struct {
	Key
}

func (e *UnusedResolutionError) Error() string {
	return fmt.Sprintf("unused symbol resolution for %s", e.Key)
}

// Matcher hands out resolutions from a Table module by module. Modules must
// be matched sequentially in input order.
type Matcher struct {
	table   *Table
	missing []error
}

// NewMatcher returns a Matcher that consumes t.
func NewMatcher(t *Table) *Matcher {
	return &Matcher{table: t}
}

// Match returns one descriptor per entry of symbols, positionally aligned.
// Every symbol without a resolution is recorded; the returned
// *ReconcileError aggregates the ones found in this module. Scanning never stops early so
// that all missing resolutions are reported together.
func (m *Matcher) Match(file string, symbols []string) ([]Descriptor, error) {
	res := make([]Descriptor, 0, len(symbols))
	var missing []error
	for _, name := range symbols {
		k := Key{File: file, Symbol: name}
		d, ok := m.table.Pop(k)
		if !ok {
			missing = append(missing, &MissingResolutionError{Key: k})
			continue
		}
		res = append(res, d)
	}
	if len(missing) > 0 {
		m.missing = append(m.missing, missing...)
		return nil, &ReconcileError{Diagnostics: utilerrors.NewAggregate(missing)}
	}
	return res, nil
}

// Failed reports whether any module matched so far had a missing resolution.
// Once failed, no further module should be handed to the engine.
func (m *Matcher) Failed() bool {
	return len(m.missing) > 0
}

// Finish reports every diagnostic of the run: the missing resolutions
// recorded by Match followed by one UnusedResolutionError per key left in
// the table, sorted by key. It returns nil only if every symbol was resolved
// and every resolution consumed.
func (m *Matcher) Finish() error {
	if !m.Failed() && m.table.Empty() {
		return nil
	}
	errs := make([]error, 0, len(m.missing)+m.table.Len())
	errs = append(errs, m.missing...)
	for _, k := range m.table.Keys() {
		errs = append(errs, &UnusedResolutionError{Key: k})
	}
	if len(errs) == 0 {
		return nil
	}
	return &ReconcileError{Diagnostics: utilerrors.NewAggregate(errs)}
}

// ReconcileError carries every diagnostic of a failed reconciliation.
type ReconcileError struct {
	Diagnostics utilerrors.Aggregate
}

func (e *ReconcileError) Error() string {
	errs := e.Diagnostics.Errors()
	if len(errs) == 1 {
		return errs[0].Error()
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d symbol resolution errors: [%s]", len(errs), strings.Join(msgs, ", "))
}

// Unwrap exposes the individual diagnostics to errors.As.
func (e *ReconcileError) Unwrap() []error {
	return e.Diagnostics.Errors()
}

// Is classifies every ReconcileError as errors.ErrReconcile.
func (e *ReconcileError) Is(target error) bool {
	return target == oerrors.ErrReconcile
}
