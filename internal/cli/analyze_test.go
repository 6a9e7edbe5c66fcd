package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/vietddude/nutriscan/internal/core/config"
)

func testUpstreams(t *testing.T, geminiStatus int, geminiBody string) *config.AppConfig {
	t.Helper()
	model := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(geminiStatus)
		w.Write([]byte(geminiBody))
	}))
	t.Cleanup(model.Close)
	ninjas := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"name":"apple","calories":53,"serving_size_g":100}]`))
	}))
	t.Cleanup(ninjas.Close)

	noRetries := 0
	cfg := config.Default()
	cfg.Redis.URL = ""
	cfg.Gemini.APIKey = "k"
	cfg.Gemini.BaseURL = model.URL
	cfg.Nutrition.APIKey = "k"
	cfg.Nutrition.BaseURL = ninjas.URL
	cfg.Retry.MaxRetries = &noRetries
	return cfg
}

func TestExecuteAnalyze(t *testing.T) {
	verdict := `{"candidates":[{"content":{"parts":[{"text":"{\"traffic_light\":\"green\",\"verdict_title\":\"Fine\"}"}]},"finishReason":"STOP"}]}`
	cfg := testUpstreams(t, http.StatusOK, verdict)

	var out bytes.Buffer
	code := executeAnalyze(context.Background(), cfg, analyzeInput{Food: "apple", Conditions: []string{"diabetes"}}, &out)
	if code != 0 {
		t.Fatalf("expected exit code 0, got %d: %s", code, out.String())
	}

	var result struct {
		FoodName string `json:"food_name"`
		Verdict  struct {
			TrafficLight string `json:"traffic_light"`
		} `json:"verdict"`
	}
	if err := json.Unmarshal(out.Bytes(), &result); err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if result.FoodName != "apple" || result.Verdict.TrafficLight != "green" {
		t.Errorf("unexpected result %+v", result)
	}
}

func TestExecuteAnalyze_Failures(t *testing.T) {
	t.Run("upstream error", func(t *testing.T) {
		cfg := testUpstreams(t, http.StatusBadRequest,
			`{"error":{"code":400,"message":"API key not valid.","status":"INVALID_ARGUMENT"}}`)

		var out bytes.Buffer
		if code := executeAnalyze(context.Background(), cfg, analyzeInput{Food: "apple"}, &out); code != 1 {
			t.Fatalf("expected exit code 1, got %d", code)
		}
		var resp struct {
			Success bool `json:"success"`
			Error   struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
			t.Fatalf("decode output: %v", err)
		}
		if resp.Success || resp.Error.Code != "INVALID_API_KEY" {
			t.Errorf("unexpected error body %s", out.String())
		}
	})

	t.Run("missing image", func(t *testing.T) {
		cfg := testUpstreams(t, http.StatusOK, `{}`)

		var out bytes.Buffer
		in := analyzeInput{ImagePath: filepath.Join(t.TempDir(), "nope.jpg")}
		if code := executeAnalyze(context.Background(), cfg, in, &out); code != 1 {
			t.Fatalf("expected exit code 1, got %d", code)
		}
		if out.Len() != 0 {
			t.Errorf("expected no output, got %s", out.String())
		}
	})
}
