package analysis

import (
	"encoding/json"
	"strings"

	"github.com/vietddude/nutriscan/internal/core/domain"
)

// notFoodMarkers are plain-text answers meaning nothing edible was seen.
var notFoodMarkers = []string{"not_food", "not food", "none", "unknown"}

// ParseFoodIdentification reads the identification answer. The model is asked
// for {"food_name": ..., "confidence": ..., "is_food": ...} but plain text is
// accepted too, in which case the first non-empty line is the name.
func ParseFoodIdentification(text string) (domain.FoodIdentification, error) {
	cleaned := stripFences(text)

	if obj, ok := ExtractJSONObject(cleaned); ok {
		var raw struct {
			FoodName   string  `json:"food_name"`
			Name       string  `json:"name"`
			Confidence float64 `json:"confidence"`
			IsFood     *bool   `json:"is_food"`
		}
		if err := json.Unmarshal([]byte(obj), &raw); err != nil {
			return domain.FoodIdentification{}, &ParseError{
				Msg:     "invalid JSON in identification response",
				Excerpt: excerpt(obj),
				Err:     err,
			}
		}
		if raw.IsFood != nil && !*raw.IsFood {
			return domain.FoodIdentification{IsFood: false, Confidence: raw.Confidence}, nil
		}
		name := strings.TrimSpace(raw.FoodName)
		if name == "" {
			name = strings.TrimSpace(raw.Name)
		}
		if name == "" {
			return domain.FoodIdentification{}, &ParseError{
				Msg:     "identification response has no food_name",
				Excerpt: excerpt(obj),
			}
		}
		return domain.FoodIdentification{Name: name, Confidence: raw.Confidence, IsFood: true}, nil
	}

	line := firstLine(cleaned)
	if line == "" {
		return domain.FoodIdentification{}, &ParseError{Msg: "empty identification response"}
	}
	lower := strings.ToLower(line)
	for _, m := range notFoodMarkers {
		if lower == m {
			return domain.FoodIdentification{IsFood: false}, nil
		}
	}
	return domain.FoodIdentification{Name: line, IsFood: true}, nil
}

func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		line = strings.Trim(strings.TrimSpace(line), "\"'*.`")
		if line != "" {
			return line
		}
	}
	return ""
}
