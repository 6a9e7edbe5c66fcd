package analysis

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vietddude/nutriscan/internal/core/domain"
	"github.com/vietddude/nutriscan/internal/metrics"
)

// Options controls Parse.
type Options struct {
	// Strict turns schema violations into a *SchemaValidationError.
	Strict bool
	// RequireVerdict demands traffic_light and verdict_title.
	RequireVerdict bool
	// RequireAnswer demands answer.
	RequireAnswer bool
	Logger        *slog.Logger
}

// Result is the non-failing form of Parse.
type Result struct {
	Success bool
	Data    *domain.ParsedAnalysis
	Err     error
	Raw     string
}

// Parse extracts the JSON object embedded in a model response and validates
// it. Malformed JSON always fails. Schema violations fail only in strict mode;
// otherwise they are logged and attached to the result.
func Parse(text string, opts Options) (*domain.ParsedAnalysis, error) {
	cleaned := stripFences(text)

	obj, ok := ExtractJSONObject(cleaned)
	if !ok {
		return nil, &ParseError{
			Msg:     "no valid JSON object found in model response",
			Excerpt: excerpt(cleaned),
		}
	}

	var fields map[string]any
	if err := json.Unmarshal([]byte(obj), &fields); err != nil {
		return nil, &ParseError{
			Msg:     "invalid JSON in model response",
			Excerpt: excerpt(obj),
			Err:     err,
		}
	}

	result, violations := validate(fields, opts)
	if len(violations) > 0 {
		if opts.Strict {
			return nil, &SchemaValidationError{Violations: violations}
		}
		log := opts.Logger
		if log == nil {
			log = slog.Default()
		}
		log.Warn("Model response failed schema validation, using best-effort data",
			"violations", strings.Join(violations, "; "),
		)
		metrics.ParseWarnings.Inc()
		result.ValidationErrors = violations
	}
	return &result, nil
}

// SafeParse is Parse without an error return.
func SafeParse(text string, opts Options) Result {
	data, err := Parse(text, opts)
	if err != nil {
		return Result{Success: false, Err: err, Raw: text}
	}
	return Result{Success: true, Data: data, Raw: text}
}

func validate(fields map[string]any, opts Options) (domain.ParsedAnalysis, []string) {
	var (
		out        domain.ParsedAnalysis
		violations []string
	)

	if v, ok := fields["traffic_light"]; ok && v != nil {
		s, isString := v.(string)
		switch {
		case !isString:
			violations = append(violations, "traffic_light must be a string")
		case !domain.TrafficLight(s).Valid():
			violations = append(violations,
				fmt.Sprintf("invalid traffic_light %q: must be one of green, yellow, red", s))
			out.TrafficLight = domain.TrafficLight(s)
		default:
			out.TrafficLight = domain.TrafficLight(s)
		}
	} else if opts.RequireVerdict {
		violations = append(violations, "missing required field traffic_light")
	}

	var vs []string
	out.VerdictTitle, vs = nonEmpty(fields, "verdict_title", opts.RequireVerdict)
	violations = append(violations, vs...)
	out.Answer, vs = nonEmpty(fields, "answer", opts.RequireAnswer)
	violations = append(violations, vs...)
	out.Reason, vs = optionalString(fields, "reason")
	violations = append(violations, vs...)
	out.Suggestion, vs = optionalString(fields, "suggestion")
	violations = append(violations, vs...)

	return out, violations
}

// nonEmpty treats null like an absent key. Non-string values are reported
// and dropped.
func nonEmpty(fields map[string]any, key string, required bool) (string, []string) {
	v, ok := fields[key]
	if !ok || v == nil {
		if required {
			return "", []string{"missing required field " + key}
		}
		return "", nil
	}
	s, isString := v.(string)
	if !isString {
		return "", []string{key + " must be a string"}
	}
	if strings.TrimSpace(s) == "" {
		return s, []string{key + " must not be empty"}
	}
	return s, nil
}

func optionalString(fields map[string]any, key string) (string, []string) {
	v, ok := fields[key]
	if !ok || v == nil {
		return "", nil
	}
	s, isString := v.(string)
	if !isString {
		return "", []string{key + " must be a string"}
	}
	return s, nil
}
