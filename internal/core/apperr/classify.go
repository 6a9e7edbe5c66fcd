package apperr

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/nutriscan/internal/infra/transport"
)

// ClassifyTransport maps a failed HTTP call against source onto an Error.
// Already classified errors are returned unchanged.
func ClassifyTransport(err error, source string) *Error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		return e
	}

	code, resp := transport.Inspect(err)
	details := map[string]any{
		"api":       source,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if resp == nil {
		if code != "" {
			details["code"] = code
		}
		var classified *Error
		switch code {
		case transport.CodeAborted:
			classified = NewTimeout(fmt.Sprintf("Request to %s timed out", source), details)
		case transport.CodeDNS, transport.CodeRefused:
			classified = NewNetwork(fmt.Sprintf("Unable to connect to %s", source), details)
		default:
			classified = NewNetwork(
				fmt.Sprintf("Network error while contacting %s: %s", source, err.Error()),
				details,
			)
		}
		logClassified(classified, err, "")
		return classified.WithCause(err)
	}

	details["status"] = resp.Status
	upstream := resp.UpstreamMessage()

	var classified *Error
	switch {
	case resp.Status == http.StatusTooManyRequests:
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			details["retryAfter"] = ra
		}
		classified = NewRateLimit(
			fmt.Sprintf("%s rate limit exceeded. Please try again later.", source),
			details,
		)
	case resp.Status == http.StatusUnauthorized || resp.Status == http.StatusForbidden:
		classified = NewInvalidCredential(fmt.Sprintf("Invalid API key for %s", source), details)
	case resp.Status == http.StatusBadRequest:
		msg := upstream
		if msg == "" {
			msg = fmt.Sprintf("Invalid request to %s", source)
		}
		classified = NewValidation(msg, details)
	case resp.Status >= 500:
		classified = NewServer(
			fmt.Sprintf("%s is temporarily unavailable", source),
			resp.Status,
			details,
		)
	default:
		msg := upstream
		if msg == "" {
			msg = http.StatusText(resp.Status)
		}
		classified = NewGeneric(
			CodeAPI,
			fmt.Sprintf("%s request failed: %s", source, msg),
			resp.Status,
			details,
		)
	}

	logClassified(classified, err, string(resp.Body))
	return classified.WithCause(err)
}

func logClassified(e *Error, cause error, body string) {
	attrs := []any{"code", e.Code, "status", e.StatusCode, "error", cause}
	if api, ok := e.Details["api"]; ok {
		attrs = append(attrs, "api", api)
	}
	if body != "" {
		if len(body) > 512 {
			body = body[:512]
		}
		attrs = append(attrs, "upstream_body", body)
	}
	slog.Warn("Upstream call failed", attrs...)
}
