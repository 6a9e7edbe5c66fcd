package service

import (
	"fmt"
	"strings"

	"github.com/vietddude/nutriscan/internal/core/domain"
)

const identifyPrompt = `Identify the food in this photo.
Respond with JSON only: {"food_name": string, "confidence": number between 0 and 1, "is_food": boolean}.
Use a short common name a nutrition database would recognise, e.g. "grilled chicken breast".
If the photo does not show food, respond {"is_food": false}.`

const verdictSchema = `{"traffic_light": "green" | "yellow" | "red", "verdict_title": string, "reason": string, "suggestion": string}`

const answerSchema = `{"answer": string, "traffic_light": "green" | "yellow" | "red" (optional), "reason": string (optional)}`

func verdictPrompt(food string, conditions []domain.HealthCondition, records []domain.NutritionRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A user with the following health profile is about to eat %q.\n", food)
	writeProfile(&b, conditions)
	writeNutrition(&b, records)
	b.WriteString("Decide whether this food suits the profile. Green means a good choice, ")
	b.WriteString("yellow means eat in moderation, red means avoid.\n")
	b.WriteString("Respond with JSON only, no prose: " + verdictSchema + "\n")
	return b.String()
}

func askPrompt(food, question string, conditions []domain.HealthCondition, records []domain.NutritionRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "A user is asking about %q.\n", food)
	writeProfile(&b, conditions)
	writeNutrition(&b, records)
	fmt.Fprintf(&b, "Question: %s\n", question)
	b.WriteString("Answer briefly for this user. Respond with JSON only, no prose: " + answerSchema + "\n")
	return b.String()
}

func writeProfile(b *strings.Builder, conditions []domain.HealthCondition) {
	if len(conditions) == 0 {
		b.WriteString("Health profile: no specific conditions.\n")
		return
	}
	labels := make([]string, len(conditions))
	for i, c := range conditions {
		labels[i] = c.Label()
	}
	b.WriteString("Health profile: " + strings.Join(labels, ", ") + ".\n")
}

func writeNutrition(b *strings.Builder, records []domain.NutritionRecord) {
	if len(records) == 0 {
		b.WriteString("Nutrition facts: unavailable, use general knowledge.\n")
		return
	}
	b.WriteString("Nutrition facts:\n")
	for _, r := range records {
		fmt.Fprintf(b,
			"- %s (%.0fg): %.0f kcal, carbs %.1fg, sugar %.1fg, fiber %.1fg, protein %.1fg, fat %.1fg (saturated %.1fg), sodium %.0fmg, potassium %.0fmg, cholesterol %.0fmg\n",
			r.Name, r.ServingSizeG, r.Calories, r.CarbohydratesTotalG, r.SugarG, r.FiberG,
			r.ProteinG, r.FatTotalG, r.FatSaturatedG, r.SodiumMg, r.PotassiumMg, r.CholesterolMg,
		)
	}
}
