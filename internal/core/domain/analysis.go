package domain

// TrafficLight is the verdict color for a food given the user's conditions.
type TrafficLight string

const (
	TrafficLightGreen  TrafficLight = "green"
	TrafficLightYellow TrafficLight = "yellow"
	TrafficLightRed    TrafficLight = "red"
)

// TrafficLights lists the valid verdict colors.
var TrafficLights = []TrafficLight{TrafficLightGreen, TrafficLightYellow, TrafficLightRed}

// Valid reports whether t is one of the known colors.
func (t TrafficLight) Valid() bool {
	switch t {
	case TrafficLightGreen, TrafficLightYellow, TrafficLightRed:
		return true
	}
	return false
}

// ParsedAnalysis is the structured model answer for a verdict or a
// follow-up question. It is never mutated after validation.
type ParsedAnalysis struct {
	TrafficLight TrafficLight `json:"traffic_light,omitempty"`
	VerdictTitle string       `json:"verdict_title,omitempty"`
	Answer       string       `json:"answer,omitempty"`
	Reason       string       `json:"reason,omitempty"`
	Suggestion   string       `json:"suggestion,omitempty"`

	// ValidationErrors holds schema violations accepted in non-strict mode.
	ValidationErrors []string `json:"-"`
}

// FoodIdentification is the model's answer to "what food is in this photo".
type FoodIdentification struct {
	Name       string  `json:"food_name"`
	Confidence float64 `json:"confidence,omitempty"`
	IsFood     bool    `json:"is_food"`
}

// AnalysisResult is returned to clients for a scan.
type AnalysisResult struct {
	RequestID  string            `json:"request_id"`
	FoodName   string            `json:"food_name"`
	Conditions []HealthCondition `json:"conditions"`
	Nutrition  []NutritionRecord `json:"nutrition"`
	Verdict    ParsedAnalysis    `json:"verdict"`
	Warnings   []string          `json:"warnings,omitempty"`
}

// FollowUpAnswer is returned to clients for a follow-up question.
type FollowUpAnswer struct {
	RequestID string         `json:"request_id"`
	FoodName  string         `json:"food_name"`
	Question  string         `json:"question"`
	Answer    ParsedAnalysis `json:"answer"`
	Warnings  []string       `json:"warnings,omitempty"`
}
