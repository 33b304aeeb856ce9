package generation

import (
	"bytes"
	_ "embed"
	"math"
	"strconv"
	"text/template"

	"alcyxob/meal-planner/internal/domain"
)

//go:embed ingredients_prompt.md
var ingredientsPrompt string

//go:embed meals_prompt.md
var mealsPrompt string

//go:embed prep_prompt.md
var prepPrompt string

var (
	ingredientsTmpl = template.Must(template.New("ingredients").Parse(ingredientsPrompt))
	mealsTmpl       = template.Must(template.New("meals").Parse(mealsPrompt))
	prepTmpl        = template.Must(template.New("prep").Parse(prepPrompt))
)

type mealTypeLine struct {
	Type       domain.MealType
	Complexity domain.Complexity
}

type servingsLine struct {
	Day      domain.DayOfWeek
	MealType domain.MealType
	Servings string
}

type poolLine struct {
	Name     string
	Category string
}

type promptData struct {
	WeekStart    string
	MealsPerDay  int
	Targets      domain.Macros
	MealTypes    []mealTypeLine
	Restrictions []string
	Disliked     []string
	Theme        string
	ProteinFocus *domain.ProteinFocus
	Pool         []poolLine
	Servings     []servingsLine
	Feedback     []string
}

type prepPromptData struct {
	WeekStart string
	Days      []domain.DayPlan
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// formatServings is the only place a multiplier gets rounded.
func formatServings(m float64) string {
	return strconv.FormatFloat(math.Round(m*100)/100, 'f', -1, 64)
}
