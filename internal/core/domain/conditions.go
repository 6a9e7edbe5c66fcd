package domain

import "strings"

// HealthCondition is a condition the user selected in their health profile.
type HealthCondition string

const (
	ConditionDiabetes           HealthCondition = "diabetes"
	ConditionHypertension       HealthCondition = "hypertension"
	ConditionHeartDisease       HealthCondition = "heart_disease"
	ConditionKidneyDisease      HealthCondition = "kidney_disease"
	ConditionCeliac             HealthCondition = "celiac"
	ConditionLactoseIntolerance HealthCondition = "lactose_intolerance"
	ConditionHighCholesterol    HealthCondition = "high_cholesterol"
	ConditionGout               HealthCondition = "gout"
	ConditionPregnancy          HealthCondition = "pregnancy"
	ConditionWeightLoss         HealthCondition = "weight_loss"
)

// KnownConditions maps each condition to its display label.
var KnownConditions = map[HealthCondition]string{
	ConditionDiabetes:           "Diabetes",
	ConditionHypertension:       "High blood pressure",
	ConditionHeartDisease:       "Heart disease",
	ConditionKidneyDisease:      "Kidney disease",
	ConditionCeliac:             "Celiac disease",
	ConditionLactoseIntolerance: "Lactose intolerance",
	ConditionHighCholesterol:    "High cholesterol",
	ConditionGout:               "Gout",
	ConditionPregnancy:          "Pregnancy",
	ConditionWeightLoss:         "Weight loss",
}

// ParseCondition normalizes s ("Heart Disease", "heart-disease") and reports
// whether it names a known condition.
func ParseCondition(s string) (HealthCondition, bool) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "_", "-", "_").Replace(norm)
	c := HealthCondition(norm)
	_, ok := KnownConditions[c]
	return c, ok
}

// Label returns the display label, or the raw value for unknown conditions.
func (c HealthCondition) Label() string {
	if l, ok := KnownConditions[c]; ok {
		return l
	}
	return string(c)
}
