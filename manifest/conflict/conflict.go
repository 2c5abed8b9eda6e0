// Package conflict holds the overridable reasons a manifest import can be
// rejected for, the set of reasons a caller pre-authorized, and the error
// that carries the unresolved ones.
package conflict

import (
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// Conflict is a named, pre-authorizable reason an import would be rejected.
type Conflict string

// Known conflicts
const (
	// ManifestOld means the manifest is older than the last one applied.
	ManifestOld Conflict = "MANIFEST_OLD"
	// ManifestSame means the manifest was already applied.
	ManifestSame Conflict = "MANIFEST_SAME"
	// DistributorConflict means the owner is bound to another upstream consumer.
	DistributorConflict Conflict = "DISTRIBUTOR_CONFLICT"
	// SignatureConflict means the archive signature could not be verified.
	SignatureConflict Conflict = "SIGNATURE_CONFLICT"
)

var all = []Conflict{ManifestOld, ManifestSame, DistributorConflict, SignatureConflict}

// All returns every known conflict.
func All() []Conflict {
	out := make([]Conflict, len(all))
	copy(out, all)
	return out
}

// Parse returns the conflict named by token.
func Parse(token string) (Conflict, error) {
	c := Conflict(strings.ToUpper(strings.TrimSpace(token)))
	for _, known := range all {
		if c == known {
			return c, nil
		}
	}
	return "", errors.Errorf("unknown conflict '%s'", token)
}

// Overrides is the immutable set of conflicts a caller allows an import to
// proceed past.
type Overrides struct {
	forced map[Conflict]struct{}
}

// NewOverrides returns the set holding the passed conflicts.
func NewOverrides(conflicts ...Conflict) Overrides {
	o := Overrides{forced: make(map[Conflict]struct{}, len(conflicts))}
	for _, c := range conflicts {
		o.forced[c] = struct{}{}
	}
	return o
}

// ParseOverrides builds overrides from trigger tokens. A single "true"
// forces MANIFEST_OLD and a single "false" forces nothing, as older clients
// send a boolean force flag.
func ParseOverrides(tokens []string) (Overrides, error) {
	if len(tokens) == 1 {
		switch strings.ToLower(strings.TrimSpace(tokens[0])) {
		case "true":
			return NewOverrides(ManifestOld), nil
		case "false", "":
			return NewOverrides(), nil
		}
	}
	conflicts := make([]Conflict, 0, len(tokens))
	for _, t := range tokens {
		if strings.TrimSpace(t) == "" {
			continue
		}
		c, err := Parse(t)
		if err != nil {
			return Overrides{}, err
		}
		conflicts = append(conflicts, c)
	}
	return NewOverrides(conflicts...), nil
}

// IsForced reports whether c was pre-authorized.
func (o Overrides) IsForced(c Conflict) bool {
	_, ok := o.forced[c]
	return ok
}

// IsEmpty reports whether nothing was pre-authorized.
func (o Overrides) IsEmpty() bool {
	return len(o.forced) == 0
}

// List returns the forced conflicts in a stable order.
func (o Overrides) List() []Conflict {
	out := make([]Conflict, 0, len(o.forced))
	for c := range o.forced {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ImportConflictError is raised when one or more conflicts were detected and
// not overridden. Messages and Conflicts are index aligned.
type ImportConflictError struct {
	Messages  []string
	Conflicts []Conflict
}

// NewImportConflictError returns an error for a single conflict.
func NewImportConflictError(message string, c Conflict) *ImportConflictError {
	return &ImportConflictError{
		Messages:  []string{message},
		Conflicts: []Conflict{c},
	}
}

// Aggregate merges several conflict errors into one, in order. It returns
// nil when nothing was passed.
func Aggregate(errs ...*ImportConflictError) *ImportConflictError {
	var out *ImportConflictError
	for _, e := range errs {
		if e == nil {
			continue
		}
		if out == nil {
			out = &ImportConflictError{}
		}
		out.Messages = append(out.Messages, e.Messages...)
		out.Conflicts = append(out.Conflicts, e.Conflicts...)
	}
	return out
}

// Error implements the error interface
func (e *ImportConflictError) Error() string {
	return strings.Join(e.Messages, "\n")
}

// Has reports whether c is among the conflicts.
func (e *ImportConflictError) Has(c Conflict) bool {
	for _, have := range e.Conflicts {
		if have == c {
			return true
		}
	}
	return false
}

// Tokens returns the conflicts in string form.
func (e *ImportConflictError) Tokens() []string {
	out := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		out[i] = string(c)
	}
	return out
}
