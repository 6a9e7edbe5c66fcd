package analysis

import (
	"fmt"
	"strings"
)

const maxExcerpt = 200

// ParseError means the model output contained no usable JSON. Always fatal.
type ParseError struct {
	Msg     string
	Excerpt string
	Err     error
}

func (e *ParseError) Error() string {
	if e.Excerpt != "" {
		return fmt.Sprintf("%s: %q", e.Msg, e.Excerpt)
	}
	return e.Msg
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// SchemaValidationError lists every schema violation. Only returned in strict mode.
type SchemaValidationError struct {
	Violations []string
}

func (e *SchemaValidationError) Error() string {
	return "response failed schema validation: " + strings.Join(e.Violations, "; ")
}

func excerpt(s string) string {
	r := []rune(s)
	if len(r) <= maxExcerpt {
		return s
	}
	return string(r[:maxExcerpt])
}
