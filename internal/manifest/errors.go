package manifest

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSyntax              = errors.New("manifest: syntax error")
	ErrMissingSection      = errors.New("manifest: missing section")
	ErrMissingField        = errors.New("manifest: missing field")
	ErrUnsupportedLanguage = errors.New("manifest: unsupported language")
	ErrMismatchedOptions   = errors.New("manifest: mismatched options section")
	ErrInvalidValue        = errors.New("manifest: invalid value")
)

// Error is one structural problem found in a manifest. Key names the
// offending section or dotted field path.
type Error struct {
	Kind   error
	Key    string
	Value  string
	Detail string
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrMissingSection:
		return fmt.Sprintf("missing section [%s]", e.Key)
	case ErrMissingField:
		return fmt.Sprintf("missing field %s", e.Key)
	case ErrUnsupportedLanguage:
		return fmt.Sprintf("unsupported language %q at %s", e.Value, e.Key)
	case ErrMismatchedOptions:
		return fmt.Sprintf("options section [%s] does not match webapp.lang=%q", e.Key, e.Value)
	case ErrSyntax:
		return fmt.Sprintf("syntax error: %s", e.Detail)
	default:
		if e.Detail != "" {
			return fmt.Sprintf("invalid value for %s: %s", e.Key, e.Detail)
		}
		return fmt.Sprintf("invalid value for %s: %q", e.Key, e.Value)
	}
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func MissingSection(section string) *Error {
	return &Error{Kind: ErrMissingSection, Key: section}
}

func MissingField(key string) *Error {
	return &Error{Kind: ErrMissingField, Key: key}
}

func UnsupportedLanguage(key, value string) *Error {
	return &Error{Kind: ErrUnsupportedLanguage, Key: key, Value: value}
}

func MismatchedOptionsSection(section, lang string) *Error {
	return &Error{Kind: ErrMismatchedOptions, Key: section, Value: lang}
}

// Errors is the ordered, non-empty batch returned when parsing fails.
type Errors []*Error

func (es Errors) Error() string {
	var b strings.Builder
	noun := "problems"
	if len(es) == 1 {
		noun = "problem"
	}
	fmt.Fprintf(&b, "manifest invalid (%d %s):", len(es), noun)
	for _, e := range es {
		b.WriteString("\n  - ")
		b.WriteString(e.Error())
	}
	return b.String()
}

func (es Errors) Unwrap() []error {
	out := make([]error, 0, len(es))
	for _, e := range es {
		out = append(out, e)
	}
	return out
}

// Has reports whether any accumulated error is of the given kind.
func (es Errors) Has(kind error) bool {
	for _, e := range es {
		if e.Kind == kind {
			return true
		}
	}
	return false
}
