package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/vietddude/nutriscan/internal/core/apperr"
	"github.com/vietddude/nutriscan/internal/core/domain"
	"github.com/vietddude/nutriscan/internal/metrics"
	"github.com/vietddude/nutriscan/internal/service"
)

type analyzeRequest struct {
	// Image is base64, optionally as a data URL ("data:image/jpeg;base64,...").
	Image      string   `json:"image"`
	MimeType   string   `json:"mime_type"`
	FoodName   string   `json:"food_name"`
	Conditions []string `json:"conditions"`
}

type askRequest struct {
	FoodName   string   `json:"food_name"`
	Question   string   `json:"question"`
	Conditions []string `json:"conditions"`
}

type nutritionResponse struct {
	Query   string                   `json:"query"`
	Records []domain.NutritionRecord `json:"records"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

const (
	statusHealthy  = "healthy"
	statusDegraded = "degraded"
)

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	image, mime, err := decodeImage(req.Image)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.MimeType != "" {
		mime = req.MimeType
	}

	result, err := s.analyzer.Analyze(r.Context(), service.AnalyzeRequest{
		RequestID:  RequestID(r.Context()),
		Image:      image,
		MimeType:   mime,
		FoodName:   req.FoodName,
		Conditions: req.Conditions,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	answer, err := s.analyzer.Ask(r.Context(), service.AskRequest{
		RequestID:  RequestID(r.Context()),
		FoodName:   req.FoodName,
		Question:   req.Question,
		Conditions: req.Conditions,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

func (s *Server) handleNutrition(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		s.writeError(w, r, apperr.NewValidation("Query parameter 'query' is required", nil))
		return
	}

	records, err := s.analyzer.Nutrition(r.Context(), query)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if records == nil {
		records = []domain.NutritionRecord{}
	}
	writeJSON(w, http.StatusOK, nutritionResponse{Query: query, Records: records})
}

func (s *Server) handleConditions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.analyzer.Conditions())
}

// handleHealth reports degraded, not unhealthy, when the cache is down:
// scans still work without it.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: statusHealthy}
	if s.cache != nil {
		ctx := r.Context()
		if err := s.cache.Ping(ctx); err != nil {
			s.log.Warn("Cache health check failed", "error", err)
			resp.Status = statusDegraded
			resp.Checks = map[string]string{"cache": err.Error()}
		} else {
			resp.Checks = map[string]string{"cache": "ok"}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// writeError is the only place errors become HTTP responses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	resp := apperr.ToClientResponse(err)
	metrics.ClassifiedErrors.WithLabelValues(resp.Error.Code).Inc()

	attrs := []any{
		"request_id", RequestID(r.Context()),
		"path", r.URL.Path,
		"code", resp.Error.Code,
		"status", resp.StatusCode,
		"error", err,
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		s.log.Error("Request failed", attrs...)
	} else {
		s.log.Info("Request rejected", attrs...)
	}

	writeJSON(w, resp.StatusCode, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.NewGeneric("PAYLOAD_TOO_LARGE", "Request body is too large", http.StatusRequestEntityTooLarge,
				map[string]any{"limit": tooLarge.Limit})
		}
		return apperr.NewValidation("Request body must be valid JSON", map[string]any{
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		}).WithCause(err)
	}
	return nil
}

// decodeImage accepts raw base64 or a data URL and returns the bytes and the
// mime type named in the data URL, if any.
func decodeImage(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, "", nil
	}

	var mime string
	if rest, ok := strings.CutPrefix(s, "data:"); ok {
		meta, data, found := strings.Cut(rest, ",")
		if !found || !strings.HasSuffix(meta, ";base64") {
			return nil, "", apperr.NewValidation("Image data URL must be base64 encoded", nil)
		}
		mime = strings.TrimSuffix(meta, ";base64")
		s = data
	}

	img, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, "", apperr.NewValidation("Image must be base64 encoded", nil).WithCause(err)
	}
	return img, mime, nil
}
