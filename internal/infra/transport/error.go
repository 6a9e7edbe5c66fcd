// Package transport describes the raw failure shape of outbound HTTP calls.
//
// Errors produced here are unclassified. They carry the low-level signals that
// both the retry layer and the error classifier inspect independently:
//   - Code: a connection-level code when no response was received
//   - Response: status, headers and body when the upstream answered
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"syscall"
)

// Low-level transport codes, set only when no response was received.
const (
	CodeAborted  = "ECONNABORTED"
	CodeTimedOut = "ETIMEDOUT"
	CodeDNS      = "ENOTFOUND"
	CodeRefused  = "ECONNREFUSED"
)

// Response is the upstream answer attached to a failed call.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Data decodes the body as a JSON object. Returns nil for non-JSON bodies.
func (r *Response) Data() map[string]any {
	if r == nil || len(r.Body) == 0 {
		return nil
	}
	var data map[string]any
	if err := json.Unmarshal(r.Body, &data); err != nil {
		return nil
	}
	return data
}

// UpstreamMessage extracts the error text the upstream put in its body.
// Checks error.message, error (string) and message, in that order.
func (r *Response) UpstreamMessage() string {
	data := r.Data()
	if data == nil {
		return ""
	}
	switch e := data["error"].(type) {
	case map[string]any:
		if msg, ok := e["message"].(string); ok && msg != "" {
			return msg
		}
	case string:
		if e != "" {
			return e
		}
	}
	if msg, ok := data["message"].(string); ok {
		return msg
	}
	return ""
}

// Error is a failed outbound call.
type Error struct {
	Op       string
	Code     string
	Response *Response
	Err      error
}

func (e *Error) Error() string {
	if e.Response != nil {
		if e.Err != nil {
			return fmt.Sprintf("%s: http %d: %v", e.Op, e.Response.Status, e.Err)
		}
		return fmt.Sprintf("%s: http %d", e.Op, e.Response.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Coder is implemented by errors that carry a transport code without being
// an *Error (e.g. per-attempt timeouts).
type Coder interface {
	TransportCode() string
}

// FromErr wraps a client-side failure where no response was received.
func FromErr(op string, err error) *Error {
	return &Error{Op: op, Code: CodeOf(err), Err: err}
}

// FromResponse builds an error for a non-success HTTP response.
func FromResponse(op string, resp *http.Response, body []byte, cause error) *Error {
	if cause == nil {
		cause = errors.New(strings.TrimSpace(http.StatusText(resp.StatusCode)))
	}
	return &Error{
		Op: op,
		Response: &Response{
			Status: resp.StatusCode,
			Header: resp.Header.Clone(),
			Body:   body,
		},
		Err: cause,
	}
}

// CodeOf maps a Go network error onto a transport code.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CodeAborted
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CodeDNS
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return CodeRefused
	}
	if errors.Is(err, syscall.ETIMEDOUT) {
		return CodeTimedOut
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return CodeAborted
	}
	return ""
}

// Inspect returns the transport code and response carried by err.
// For plain errors the code is derived with CodeOf.
func Inspect(err error) (code string, resp *Response) {
	var te *Error
	if errors.As(err, &te) {
		return te.Code, te.Response
	}
	var c Coder
	if errors.As(err, &c) {
		return c.TransportCode(), nil
	}
	return CodeOf(err), nil
}
