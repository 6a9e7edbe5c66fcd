package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vietddude/nutriscan/internal/infra/transport"
)

func TestClient_Generate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1beta/models/test-model:generateContent" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "secret" {
			t.Errorf("missing api key header")
		}

		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Contents) != 1 || len(req.Contents[0].Parts) != 2 {
			t.Fatalf("expected prompt and image parts, got %+v", req.Contents)
		}
		img := req.Contents[0].Parts[1].InlineData
		if img == nil || img.MimeType != "image/jpeg" || img.Data != "AQID" {
			t.Errorf("unexpected inline data %+v", img)
		}
		if req.GenerationConfig == nil || req.GenerationConfig.ResponseMimeType != "application/json" {
			t.Errorf("expected json response mime type")
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{\"food_name\":"},{"text":"\"apple\"}"}]},"finishReason":"STOP"}]}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "secret", BaseURL: server.URL + "/", Model: "test-model"})
	defer client.Close()

	resp, err := client.Generate(context.Background(), Content{
		Prompt:   "What is this?",
		Image:    []byte{1, 2, 3},
		MimeType: "image/jpeg",
		JSON:     true,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if resp.Text != `{"food_name":"apple"}` {
		t.Errorf("unexpected text %q", resp.Text)
	}
	if resp.FinishReason != "STOP" {
		t.Errorf("unexpected finish reason %q", resp.FinishReason)
	}
}

func TestClient_Generate_ErrorBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429,"message":"Quota exceeded for metric","status":"RESOURCE_EXHAUSTED"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	_, err := client.Generate(context.Background(), Content{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error")
	}

	var te *transport.Error
	if !errors.As(err, &te) || te.Response == nil {
		t.Fatalf("expected transport error with response, got %v", err)
	}
	if te.Response.Status != 429 || te.Response.Header.Get("Retry-After") != "7" {
		t.Errorf("unexpected response %+v", te.Response)
	}
	if got := status.Code(err); got != codes.ResourceExhausted {
		t.Errorf("status.Code = %v, want ResourceExhausted", got)
	}
}

func TestClient_Generate_Blocked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer server.Close()

	client := NewClient(Config{APIKey: "k", BaseURL: server.URL})
	_, err := client.Generate(context.Background(), Content{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected error for blocked prompt")
	}
}

func TestStatusFromBody(t *testing.T) {
	err := statusFromBody(400, []byte(`{"error":{"code":400,"message":"API key not valid.","status":"INVALID_ARGUMENT"}}`))
	if status.Code(err) != codes.InvalidArgument {
		t.Errorf("expected InvalidArgument, got %v", status.Code(err))
	}

	err = statusFromBody(502, []byte(`<html>bad gateway</html>`))
	if err.Error() != "Bad Gateway" {
		t.Errorf("unexpected message %q", err.Error())
	}
}
