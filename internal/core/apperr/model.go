package apperr

import (
	"log/slog"
	"strings"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vietddude/nutriscan/internal/infra/transport"
)

// ModelSource is the source name used for AI model errors.
const ModelSource = "AI model"

// modelRule maps a message marker onto a Kind. Markers are matched
// case-insensitively, first match wins.
type modelRule struct {
	marker string
	kind   Kind
}

// The model API does not expose structured error codes on every path, so
// its errors are matched on message text. Keep all markers in this table.
var modelRules = []modelRule{
	{"api_key", KindInvalidCredential},
	{"api key", KindInvalidCredential},
	{"resource_exhausted", KindRateLimit},
	{"quota", KindRateLimit},
	{"deadline_exceeded", KindTimeout},
	{"deadline exceeded", KindTimeout},
	{"invalid_argument", KindValidation},
}

// modelStatusKinds is consulted when no marker matched but the error carries
// a status code parsed from the upstream error body.
var modelStatusKinds = map[codes.Code]Kind{
	codes.Unauthenticated:   KindInvalidCredential,
	codes.PermissionDenied:  KindInvalidCredential,
	codes.ResourceExhausted: KindRateLimit,
	codes.DeadlineExceeded:  KindTimeout,
	codes.InvalidArgument:   KindValidation,
}

// ClassifyModel maps an AI model failure onto an Error.
func ClassifyModel(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}

	details := map[string]any{
		"api":       ModelSource,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	kind, matched := modelKind(err, details)
	var classified *Error
	if !matched {
		classified = NewGeneric(CodeModel, "AI model request failed", 0, details)
	} else {
		classified = newModelError(kind, details)
	}

	slog.Warn("AI model call failed", "code", classified.Code, "error", err)
	return classified.WithCause(err)
}

func modelKind(err error, details map[string]any) (Kind, bool) {
	code, resp := transport.Inspect(err)
	if resp == nil && code == transport.CodeAborted {
		return KindTimeout, true
	}
	if resp != nil {
		details["status"] = resp.Status
	}

	msg := strings.ToLower(err.Error())
	for _, rule := range modelRules {
		if strings.Contains(msg, rule.marker) {
			return rule.kind, true
		}
	}

	if c := status.Code(err); c != codes.OK && c != codes.Unknown {
		details["grpcCode"] = c.String()
		if kind, ok := modelStatusKinds[c]; ok {
			return kind, true
		}
	}
	return KindGeneric, false
}

func newModelError(kind Kind, details map[string]any) *Error {
	switch kind {
	case KindInvalidCredential:
		return NewInvalidCredential("Invalid API key for AI model", details)
	case KindRateLimit:
		return NewRateLimit("AI model quota exceeded. Please try again later.", details)
	case KindTimeout:
		return NewTimeout("AI model request timed out", details)
	case KindValidation:
		return NewValidation("Invalid request to AI model", details)
	default:
		return NewGeneric(CodeModel, "AI model request failed", 0, details)
	}
}
