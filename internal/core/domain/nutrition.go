package domain

// NutritionRecord is one item returned by the nutrition API.
// Values are per serving of ServingSizeG grams.
type NutritionRecord struct {
	Name                string  `json:"name"`
	Calories            float64 `json:"calories"`
	ServingSizeG        float64 `json:"serving_size_g"`
	FatTotalG           float64 `json:"fat_total_g"`
	FatSaturatedG       float64 `json:"fat_saturated_g"`
	ProteinG            float64 `json:"protein_g"`
	SodiumMg            float64 `json:"sodium_mg"`
	PotassiumMg         float64 `json:"potassium_mg"`
	CholesterolMg       float64 `json:"cholesterol_mg"`
	CarbohydratesTotalG float64 `json:"carbohydrates_total_g"`
	FiberG              float64 `json:"fiber_g"`
	SugarG              float64 `json:"sugar_g"`
}
