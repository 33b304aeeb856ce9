package generation

import (
	"alcyxob/meal-planner/internal/domain"
	"alcyxob/meal-planner/internal/llm"
)

// Stage names double as the tool names the model is forced to call.
const (
	StageIngredients = "propose_ingredients"
	StageMeals       = "compose_week"
	StagePrep        = "plan_prep"
)

func str(desc string) *llm.Schema { return &llm.Schema{Type: "string", Description: desc} }
func num(desc string) *llm.Schema { return &llm.Schema{Type: "number", Description: desc} }

func dayEnum() []string {
	out := make([]string, len(domain.WeekDays))
	for i, d := range domain.WeekDays {
		out[i] = string(d)
	}
	return out
}

var ingredientsTool = llm.Tool{
	Name:        StageIngredients,
	Description: "Propose the ingredient pool for a week of meals.",
	Parameters: &llm.Schema{
		Type: "object",
		Properties: map[string]*llm.Schema{
			"ingredients": {
				Type: "array",
				Items: &llm.Schema{
					Type: "object",
					Properties: map[string]*llm.Schema{
						"name":       str("ingredient name"),
						"category":   str("grocery aisle, e.g. produce, meat, dairy, pantry"),
						"is_protein": {Type: "boolean"},
					},
					Required: []string{"name", "category", "is_protein"},
				},
			},
		},
		Required: []string{"ingredients"},
	},
}

func mealsTool(mealTypes []domain.MealType) llm.Tool {
	types := make([]string, len(mealTypes))
	for i, mt := range mealTypes {
		types[i] = string(mt)
	}
	ingredient := &llm.Schema{
		Type: "object",
		Properties: map[string]*llm.Schema{
			"name":     str("ingredient name"),
			"amount":   str("amount for all servings, e.g. 6, 1 1/2"),
			"unit":     str("unit, e.g. oz, cup, g"),
			"category": str("grocery aisle"),
			"calories": num("per serving"),
			"protein":  num("grams per serving"),
			"carbs":    num("grams per serving"),
			"fat":      num("grams per serving"),
		},
		Required: []string{"name", "amount", "unit", "category", "calories", "protein", "carbs", "fat"},
	}
	meal := &llm.Schema{
		Type: "object",
		Properties: map[string]*llm.Schema{
			"meal_type":    {Type: "string", Enum: types},
			"name":         str("meal name"),
			"cuisine":      str("cuisine"),
			"prep_minutes": {Type: "integer"},
			"cook_minutes": {Type: "integer"},
			"instructions": {Type: "array", Items: str("step")},
			"ingredients":  {Type: "array", Items: ingredient},
			"calories":     num("per serving, sum of ingredients"),
			"protein":      num("per serving, sum of ingredients"),
			"carbs":        num("per serving, sum of ingredients"),
			"fat":          num("per serving, sum of ingredients"),
		},
		Required: []string{"meal_type", "name", "prep_minutes", "cook_minutes", "instructions", "ingredients", "calories", "protein", "carbs", "fat"},
	}
	return llm.Tool{
		Name:        StageMeals,
		Description: "Return every meal of the week.",
		Parameters: &llm.Schema{
			Type: "object",
			Properties: map[string]*llm.Schema{
				"title": str("short title for the week"),
				"days": {
					Type: "array",
					Items: &llm.Schema{
						Type: "object",
						Properties: map[string]*llm.Schema{
							"day":   {Type: "string", Enum: dayEnum()},
							"meals": {Type: "array", Items: meal},
						},
						Required: []string{"day", "meals"},
					},
				},
			},
			Required: []string{"title", "days"},
		},
	}
}

var prepTool = llm.Tool{
	Name:        StagePrep,
	Description: "Return the weekly prep schedule.",
	Parameters: &llm.Schema{
		Type: "object",
		Properties: map[string]*llm.Schema{
			"tasks": {
				Type: "array",
				Items: &llm.Schema{
					Type: "object",
					Properties: map[string]*llm.Schema{
						"day":   {Type: "string", Enum: dayEnum()},
						"title": str("what this session is"),
						"steps": {Type: "array", Items: str("step")},
						"meals": {Type: "array", Items: str("meal name")},
					},
					Required: []string{"day", "title", "steps"},
				},
			},
		},
		Required: []string{"tasks"},
	},
}
