package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vietddude/nutriscan/internal/core/apperr"
	"github.com/vietddude/nutriscan/internal/core/domain"
	"github.com/vietddude/nutriscan/internal/infra/cache"
	"github.com/vietddude/nutriscan/internal/infra/gemini"
	"github.com/vietddude/nutriscan/internal/infra/resilience"
	"github.com/vietddude/nutriscan/internal/infra/transport"
)

type fakeModel struct {
	mu      sync.Mutex
	calls   []gemini.Content
	respond func(call int, in gemini.Content) (string, error)
}

func (m *fakeModel) Generate(_ context.Context, in gemini.Content) (*gemini.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, in)
	n := len(m.calls)
	m.mu.Unlock()

	text, err := m.respond(n, in)
	if err != nil {
		return nil, err
	}
	return &gemini.Response{Text: text, FinishReason: "STOP"}, nil
}

type fakeLookup struct {
	calls   atomic.Int32
	delay   time.Duration
	records []domain.NutritionRecord
	err     error
}

func (l *fakeLookup) Lookup(ctx context.Context, _ string) ([]domain.NutritionRecord, error) {
	l.calls.Add(1)
	if l.delay > 0 {
		select {
		case <-time.After(l.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return l.records, l.err
}

type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("connection reset")
}
func (failingStore) Set(context.Context, string, string, time.Duration) error {
	return errors.New("connection reset")
}
func (failingStore) Ping(context.Context) error { return errors.New("down") }
func (failingStore) Close() error               { return nil }

func testConfig() Config {
	return Config{
		Retry: resilience.RetryConfig{
			MaxRetries:           2,
			InitialDelay:         time.Millisecond,
			MaxDelay:             2 * time.Millisecond,
			BackoffMultiplier:    2,
			RetryableStatusCodes: resilience.DefaultRetryableStatusCodes,
		},
		ModelTimeout:     time.Second,
		NutritionTimeout: time.Second,
	}
}

func statusErr(status int, body string) error {
	return transport.FromResponse("test",
		&http.Response{StatusCode: status, Header: http.Header{}},
		[]byte(body), nil)
}

// modelErr mirrors what the Gemini client returns for an error body.
func modelErr(httpStatus int, c codes.Code, msg string) error {
	return transport.FromResponse("gemini generateContent",
		&http.Response{StatusCode: httpStatus, Header: http.Header{}},
		nil, status.Error(c, msg))
}

var apple = []domain.NutritionRecord{{Name: "apple", Calories: 53, ServingSizeG: 100, SugarG: 10.3}}

func newTestAnalyzer(t *testing.T, model Model, lookup NutritionLookup, cfg Config) (*Analyzer, *cache.MemoryStore) {
	t.Helper()
	store, err := cache.NewMemoryStore(16)
	require.NoError(t, err)
	return NewAnalyzer(model, lookup, store, cfg, nil), store
}

func TestAnalyze_ImageFlow(t *testing.T) {
	model := &fakeModel{respond: func(call int, in gemini.Content) (string, error) {
		if call == 1 {
			return "```json\n{\"food_name\":\"Apple\",\"confidence\":0.9,\"is_food\":true}\n```", nil
		}
		return `Here you go: {"traffic_light":"green","verdict_title":"Great snack","reason":"Fiber","suggestion":"Pair with nuts"}`, nil
	}}
	lookup := &fakeLookup{records: apple}
	a, _ := newTestAnalyzer(t, model, lookup, testConfig())

	res, err := a.Analyze(context.Background(), AnalyzeRequest{
		RequestID:  "req-1",
		Image:      []byte{0xff, 0xd8, 0xff},
		MimeType:   "image/jpeg",
		Conditions: []string{"Diabetes", "diabetes"},
	})
	require.NoError(t, err)

	assert.Equal(t, "req-1", res.RequestID)
	assert.Equal(t, "Apple", res.FoodName)
	assert.Equal(t, []domain.HealthCondition{domain.ConditionDiabetes}, res.Conditions)
	assert.Equal(t, apple, res.Nutrition)
	assert.Equal(t, domain.TrafficLightGreen, res.Verdict.TrafficLight)
	assert.Empty(t, res.Warnings)

	require.Len(t, model.calls, 2)
	assert.NotEmpty(t, model.calls[0].Image)
	assert.Contains(t, model.calls[1].Prompt, "Diabetes")
	assert.Contains(t, model.calls[1].Prompt, "53 kcal")
}

func TestAnalyze_NotFood(t *testing.T) {
	model := &fakeModel{respond: func(int, gemini.Content) (string, error) {
		return `{"is_food": false}`, nil
	}}
	a, _ := newTestAnalyzer(t, model, &fakeLookup{}, testConfig())

	_, err := a.Analyze(context.Background(), AnalyzeRequest{Image: []byte{1}})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, CodeNotFood, e.Code)
	assert.Equal(t, 422, e.StatusCode)
}

func TestAnalyze_Validation(t *testing.T) {
	a, _ := newTestAnalyzer(t, &fakeModel{}, &fakeLookup{}, testConfig())

	_, err := a.Analyze(context.Background(), AnalyzeRequest{})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, e.Kind)

	_, err = a.Analyze(context.Background(), AnalyzeRequest{FoodName: "apple", Conditions: []string{"vampirism"}})
	e, ok = apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, e.Kind)
	assert.Contains(t, e.Message, "vampirism")
}

func TestAnalyze_NonStrictWarnings(t *testing.T) {
	model := &fakeModel{respond: func(int, gemini.Content) (string, error) {
		return `{"traffic_light":"orange","verdict_title":"Hmm"}`, nil
	}}
	a, _ := newTestAnalyzer(t, model, &fakeLookup{}, testConfig())

	res, err := a.Analyze(context.Background(), AnalyzeRequest{FoodName: "mystery stew"})
	require.NoError(t, err)
	assert.Equal(t, domain.TrafficLight("orange"), res.Verdict.TrafficLight)
	assert.Contains(t, res.Warnings, "No nutrition data found for mystery stew")
	assert.Contains(t, res.Warnings, `invalid traffic_light "orange": must be one of green, yellow, red`)
}

func TestAnalyze_StrictRejectsSchemaViolations(t *testing.T) {
	model := &fakeModel{respond: func(int, gemini.Content) (string, error) {
		return `{"traffic_light":"orange"}`, nil
	}}
	cfg := testConfig()
	cfg.Strict = true
	a, _ := newTestAnalyzer(t, model, &fakeLookup{records: apple}, cfg)

	_, err := a.Analyze(context.Background(), AnalyzeRequest{FoodName: "apple"})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, CodeModelResponseInvalid, e.Code)
	assert.Equal(t, 502, e.StatusCode)
	assert.Contains(t, e.Details["violations"], "missing required field verdict_title")
}

func TestAnalyze_UnparsableModelAnswer(t *testing.T) {
	model := &fakeModel{respond: func(int, gemini.Content) (string, error) {
		return "I'm sorry, I can't judge that.", nil
	}}
	a, _ := newTestAnalyzer(t, model, &fakeLookup{records: apple}, testConfig())

	_, err := a.Analyze(context.Background(), AnalyzeRequest{FoodName: "apple"})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, CodeModelResponse, e.Code)
}

func TestAnalyze_ModelErrorsClassified(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCode  string
		wantCalls int
	}{
		{
			name:      "quota is retried then classified",
			err:       modelErr(429, codes.ResourceExhausted, "Quota exceeded"),
			wantCode:  apperr.CodeRateLimit,
			wantCalls: 3,
		},
		{
			name:      "bad key fails fast",
			err:       modelErr(400, codes.InvalidArgument, "API key not valid"),
			wantCode:  apperr.CodeInvalidAPIKey,
			wantCalls: 1,
		},
		{
			name:      "unknown error is generic",
			err:       errors.New("boom"),
			wantCode:  apperr.CodeModel,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &fakeModel{respond: func(int, gemini.Content) (string, error) {
				return "", tt.err
			}}
			a, _ := newTestAnalyzer(t, model, &fakeLookup{records: apple}, testConfig())

			_, err := a.Analyze(context.Background(), AnalyzeRequest{FoodName: "apple"})
			e, ok := apperr.As(err)
			require.True(t, ok, "expected classified error, got %v", err)
			assert.Equal(t, tt.wantCode, e.Code)
			assert.Len(t, model.calls, tt.wantCalls)
		})
	}
}

func TestNutrition_CachesByNormalizedKey(t *testing.T) {
	lookup := &fakeLookup{records: apple}
	a, store := newTestAnalyzer(t, &fakeModel{}, lookup, testConfig())
	ctx := context.Background()

	first, err := a.Nutrition(ctx, "  Apple ")
	require.NoError(t, err)
	second, err := a.Nutrition(ctx, "apple")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), lookup.calls.Load())

	raw, ok, err := store.Get(ctx, "nutrition:apple")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, strings.HasPrefix(raw, `[{"name":"apple"`))
}

func TestNutrition_CacheFailureIgnored(t *testing.T) {
	lookup := &fakeLookup{records: apple}
	a := NewAnalyzer(&fakeModel{}, lookup, failingStore{}, testConfig(), nil)

	records, err := a.Nutrition(context.Background(), "apple")
	require.NoError(t, err)
	assert.Equal(t, apple, records)
}

func TestNutrition_UpstreamErrorClassified(t *testing.T) {
	lookup := &fakeLookup{err: statusErr(401, `{"error":"Invalid API Key."}`)}
	a, _ := newTestAnalyzer(t, &fakeModel{}, lookup, testConfig())

	_, err := a.Nutrition(context.Background(), "apple")
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.CodeInvalidAPIKey, e.Code)
	assert.Equal(t, NutritionSource, e.Details["api"])
	assert.Equal(t, int32(1), lookup.calls.Load())
}

func TestNutrition_Coalesce(t *testing.T) {
	lookup := &fakeLookup{records: apple, delay: 50 * time.Millisecond}
	cfg := testConfig()
	cfg.Coalesce = true
	a := NewAnalyzer(&fakeModel{}, lookup, nil, cfg, nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			records, err := a.Nutrition(context.Background(), "apple")
			assert.NoError(t, err)
			assert.Equal(t, apple, records)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), lookup.calls.Load())
}

func TestAsk(t *testing.T) {
	model := &fakeModel{respond: func(int, gemini.Content) (string, error) {
		return `{"answer":"Yes, half a cup is fine.","traffic_light":"yellow"}`, nil
	}}
	a, _ := newTestAnalyzer(t, model, &fakeLookup{records: apple}, testConfig())

	ans, err := a.Ask(context.Background(), AskRequest{
		FoodName:   "apple",
		Question:   "Can I eat it at night?",
		Conditions: []string{"weight-loss"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, ans.RequestID)
	assert.Equal(t, "Yes, half a cup is fine.", ans.Answer.Answer)
	assert.Contains(t, model.calls[0].Prompt, "Can I eat it at night?")
	assert.Contains(t, model.calls[0].Prompt, "Weight loss")

	_, err = a.Ask(context.Background(), AskRequest{FoodName: "apple"})
	e, ok := apperr.As(err)
	require.True(t, ok)
	assert.Equal(t, apperr.KindValidation, e.Kind)
}

func TestConditions_Sorted(t *testing.T) {
	a := NewAnalyzer(nil, nil, nil, Config{}, nil)
	got := a.Conditions()
	require.Len(t, got, len(domain.KnownConditions))
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].ID, got[i].ID)
	}
}
