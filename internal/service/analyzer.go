// Package service runs food scans: it identifies the food, looks up its
// nutrition facts and asks the model for a verdict against the user's health
// profile. Every upstream call goes through resilience.Run and every failure
// leaves this package as an *apperr.Error.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/vietddude/nutriscan/internal/analysis"
	"github.com/vietddude/nutriscan/internal/core/apperr"
	"github.com/vietddude/nutriscan/internal/core/domain"
	"github.com/vietddude/nutriscan/internal/infra/cache"
	"github.com/vietddude/nutriscan/internal/infra/gemini"
	"github.com/vietddude/nutriscan/internal/infra/resilience"
	"github.com/vietddude/nutriscan/internal/metrics"
)

// NutritionSource names the nutrition API in errors, logs and metrics.
const NutritionSource = "Nutrition API"

// Error codes for model answers that could not be used.
const (
	CodeModelResponse        = "MODEL_RESPONSE_ERROR"
	CodeModelResponseInvalid = "MODEL_RESPONSE_INVALID"
	CodeNotFood              = "NOT_FOOD"
)

// Model generates text from a prompt and an optional image.
type Model interface {
	Generate(ctx context.Context, in gemini.Content) (*gemini.Response, error)
}

// NutritionLookup returns nutrition records for a food query.
type NutritionLookup interface {
	Lookup(ctx context.Context, query string) ([]domain.NutritionRecord, error)
}

// Config tunes the Analyzer.
type Config struct {
	Retry            resilience.RetryConfig
	ModelTimeout     time.Duration
	NutritionTimeout time.Duration
	CacheTTL         time.Duration
	// Coalesce shares one nutrition lookup between concurrent cache misses
	// for the same key.
	Coalesce bool
	// Strict rejects model answers with schema violations.
	Strict bool
}

// AnalyzeRequest is one scan. Either Image or FoodName must be set; when both
// are, FoodName wins and identification is skipped.
type AnalyzeRequest struct {
	RequestID  string
	Image      []byte
	MimeType   string
	FoodName   string
	Conditions []string
}

// AskRequest is a follow-up question about a scanned food.
type AskRequest struct {
	RequestID  string
	FoodName   string
	Question   string
	Conditions []string
}

// ConditionInfo describes one selectable health condition.
type ConditionInfo struct {
	ID    domain.HealthCondition `json:"id"`
	Label string                 `json:"label"`
}

// Analyzer orchestrates a scan. Safe for concurrent use.
type Analyzer struct {
	model     Model
	nutrition NutritionLookup
	store     cache.Store
	cfg       Config
	log       *slog.Logger
	group     singleflight.Group
}

// NewAnalyzer creates an Analyzer. store may be nil to disable caching.
func NewAnalyzer(model Model, nutrition NutritionLookup, store cache.Store, cfg Config, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}
	return &Analyzer{
		model:     model,
		nutrition: nutrition,
		store:     store,
		cfg:       cfg,
		log:       logger,
	}
}

// Identify asks the model what food is in the image.
func (a *Analyzer) Identify(ctx context.Context, image []byte, mimeType string) (domain.FoodIdentification, error) {
	if len(image) == 0 {
		return domain.FoodIdentification{}, apperr.NewValidation("Image is required", nil)
	}

	text, err := a.generate(ctx, gemini.Content{
		Prompt:   identifyPrompt,
		Image:    image,
		MimeType: mimeType,
		JSON:     true,
	})
	if err != nil {
		return domain.FoodIdentification{}, err
	}

	id, err := analysis.ParseFoodIdentification(text)
	if err != nil {
		return domain.FoodIdentification{}, modelResponseError(err)
	}
	return id, nil
}

// Nutrition returns nutrition records for food, from cache when possible.
// Cache failures are logged and otherwise ignored.
func (a *Analyzer) Nutrition(ctx context.Context, food string) ([]domain.NutritionRecord, error) {
	if strings.TrimSpace(food) == "" {
		return nil, apperr.NewValidation("Food name is required", nil)
	}
	key := cache.NutritionKey(food)

	if records, ok := a.cached(ctx, key); ok {
		return records, nil
	}

	if !a.cfg.Coalesce {
		return a.fetchNutrition(ctx, key, cache.Normalize(food))
	}

	v, err, shared := a.group.Do(key, func() (any, error) {
		return a.fetchNutrition(ctx, key, cache.Normalize(food))
	})
	if shared {
		a.log.Debug("Nutrition lookup shared", "key", key)
	}
	if err != nil {
		return nil, err
	}
	return v.([]domain.NutritionRecord), nil
}

func (a *Analyzer) cached(ctx context.Context, key string) ([]domain.NutritionRecord, bool) {
	if a.store == nil {
		return nil, false
	}
	raw, ok, err := a.store.Get(ctx, key)
	if err != nil {
		a.log.Warn("Cache read failed", "key", key, "error", err)
		metrics.CacheRequests.WithLabelValues("error").Inc()
		return nil, false
	}
	if !ok {
		metrics.CacheRequests.WithLabelValues("miss").Inc()
		return nil, false
	}

	var records []domain.NutritionRecord
	if err := json.Unmarshal([]byte(raw), &records); err != nil {
		a.log.Warn("Discarding corrupt cache entry", "key", key, "error", err)
		metrics.CacheRequests.WithLabelValues("error").Inc()
		return nil, false
	}
	metrics.CacheRequests.WithLabelValues("hit").Inc()
	return records, true
}

func (a *Analyzer) fetchNutrition(ctx context.Context, key, query string) ([]domain.NutritionRecord, error) {
	records, err := resilience.Run(ctx, func(ctx context.Context) ([]domain.NutritionRecord, error) {
		return a.nutrition.Lookup(ctx, query)
	}, resilience.RunOptions{
		Config:  a.cfg.Retry,
		Timeout: a.cfg.NutritionTimeout,
		Source:  NutritionSource,
		Logger:  a.log,
	})
	if err != nil {
		return nil, apperr.ClassifyTransport(err, NutritionSource)
	}

	if a.store != nil {
		data, err := json.Marshal(records)
		if err == nil {
			err = a.store.Set(ctx, key, string(data), a.cfg.CacheTTL)
		}
		if err != nil {
			a.log.Warn("Cache write failed", "key", key, "error", err)
		}
	}
	return records, nil
}

// Analyze runs a full scan and returns the verdict.
func (a *Analyzer) Analyze(ctx context.Context, req AnalyzeRequest) (*domain.AnalysisResult, error) {
	conditions, err := ParseConditions(req.Conditions)
	if err != nil {
		return nil, err
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	log := a.log.With("request_id", requestID)

	food := strings.TrimSpace(req.FoodName)
	if food == "" {
		if len(req.Image) == 0 {
			return nil, apperr.NewValidation("Either an image or a food name is required", nil)
		}
		id, err := a.Identify(ctx, req.Image, req.MimeType)
		if err != nil {
			return nil, err
		}
		if !id.IsFood {
			return nil, apperr.NewGeneric(CodeNotFood, "No food was detected in the image", 422, nil)
		}
		food = id.Name
		log.Debug("Food identified", "food", food, "confidence", id.Confidence)
	}

	records, err := a.Nutrition(ctx, food)
	if err != nil {
		return nil, err
	}

	var warnings []string
	if len(records) == 0 {
		warnings = append(warnings, "No nutrition data found for "+food)
	}

	text, err := a.generate(ctx, gemini.Content{
		Prompt: verdictPrompt(food, conditions, records),
		JSON:   true,
	})
	if err != nil {
		return nil, err
	}

	verdict, err := analysis.Parse(text, analysis.Options{
		Strict:         a.cfg.Strict,
		RequireVerdict: true,
		Logger:         log,
	})
	if err != nil {
		return nil, modelResponseError(err)
	}
	warnings = append(warnings, verdict.ValidationErrors...)

	log.Info("Scan analyzed", "food", food, "traffic_light", verdict.TrafficLight)

	return &domain.AnalysisResult{
		RequestID:  requestID,
		FoodName:   food,
		Conditions: conditions,
		Nutrition:  records,
		Verdict:    *verdict,
		Warnings:   warnings,
	}, nil
}

// Ask answers a follow-up question about a food.
func (a *Analyzer) Ask(ctx context.Context, req AskRequest) (*domain.FollowUpAnswer, error) {
	food := strings.TrimSpace(req.FoodName)
	question := strings.TrimSpace(req.Question)
	if food == "" || question == "" {
		return nil, apperr.NewValidation("Food name and question are required", nil)
	}
	conditions, err := ParseConditions(req.Conditions)
	if err != nil {
		return nil, err
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	log := a.log.With("request_id", requestID)

	records, err := a.Nutrition(ctx, food)
	if err != nil {
		return nil, err
	}

	text, err := a.generate(ctx, gemini.Content{
		Prompt: askPrompt(food, question, conditions, records),
		JSON:   true,
	})
	if err != nil {
		return nil, err
	}

	answer, err := analysis.Parse(text, analysis.Options{
		Strict:        a.cfg.Strict,
		RequireAnswer: true,
		Logger:        log,
	})
	if err != nil {
		return nil, modelResponseError(err)
	}

	return &domain.FollowUpAnswer{
		RequestID: requestID,
		FoodName:  food,
		Question:  question,
		Answer:    *answer,
		Warnings:  answer.ValidationErrors,
	}, nil
}

// Conditions lists the selectable health conditions sorted by id.
func (a *Analyzer) Conditions() []ConditionInfo {
	out := make([]ConditionInfo, 0, len(domain.KnownConditions))
	for id, label := range domain.KnownConditions {
		out = append(out, ConditionInfo{ID: id, Label: label})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ParseConditions normalizes condition names and rejects unknown ones.
// Duplicates are dropped.
func ParseConditions(raw []string) ([]domain.HealthCondition, error) {
	out := make([]domain.HealthCondition, 0, len(raw))
	seen := make(map[domain.HealthCondition]bool, len(raw))
	var unknown []string
	for _, s := range raw {
		c, ok := domain.ParseCondition(s)
		if !ok {
			unknown = append(unknown, s)
			continue
		}
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	if len(unknown) > 0 {
		return nil, apperr.NewValidation(
			"Unknown health condition: "+strings.Join(unknown, ", "),
			map[string]any{"conditions": unknown},
		)
	}
	return out, nil
}

func (a *Analyzer) generate(ctx context.Context, in gemini.Content) (string, error) {
	resp, err := resilience.Run(ctx, func(ctx context.Context) (*gemini.Response, error) {
		return a.model.Generate(ctx, in)
	}, resilience.RunOptions{
		Config:  a.cfg.Retry,
		Timeout: a.cfg.ModelTimeout,
		Source:  apperr.ModelSource,
		Logger:  a.log,
	})
	if err != nil {
		return "", apperr.ClassifyModel(err)
	}
	return resp.Text, nil
}

// modelResponseError wraps a parse failure of a model answer.
func modelResponseError(err error) error {
	details := map[string]any{
		"api":       apperr.ModelSource,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	var se *analysis.SchemaValidationError
	if errors.As(err, &se) {
		details["violations"] = se.Violations
		return apperr.NewGeneric(CodeModelResponseInvalid,
			"AI model returned an incomplete analysis", 502, details).WithCause(err)
	}

	var pe *analysis.ParseError
	if errors.As(err, &pe) && pe.Excerpt != "" {
		details["excerpt"] = pe.Excerpt
	}
	return apperr.NewGeneric(CodeModelResponse,
		"AI model returned an unreadable response", 502, details).WithCause(err)
}
