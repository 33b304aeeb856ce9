package generation

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"

	"alcyxob/meal-planner/internal/domain"
)

// Required fields are pointers so a missing value is distinguishable from zero.

type rawPoolIngredient struct {
	Name      *string `json:"name"`
	Category  *string `json:"category"`
	IsProtein *bool   `json:"is_protein"`
}

type rawPool struct {
	Ingredients []rawPoolIngredient `json:"ingredients"`
}

// looseText accepts either a JSON string or number; models are inconsistent about amounts.
type looseText string

func (t *looseText) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*t = looseText(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*t = looseText(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

type rawIngredient struct {
	Name     *string    `json:"name"`
	Amount   *looseText `json:"amount"`
	Unit     *string    `json:"unit"`
	Category *string    `json:"category"`
	Calories *float64   `json:"calories"`
	Protein  *float64   `json:"protein"`
	Carbs    *float64   `json:"carbs"`
	Fat      *float64   `json:"fat"`
}

type rawMeal struct {
	MealType     string          `json:"meal_type"`
	Name         *string         `json:"name"`
	Cuisine      string          `json:"cuisine"`
	PrepMinutes  *float64        `json:"prep_minutes"`
	CookMinutes  *float64        `json:"cook_minutes"`
	Instructions []string        `json:"instructions"`
	Ingredients  []rawIngredient `json:"ingredients"`
	Calories     *float64        `json:"calories"`
	Protein      *float64        `json:"protein"`
	Carbs        *float64        `json:"carbs"`
	Fat          *float64        `json:"fat"`
}

type rawDay struct {
	Day   string    `json:"day"`
	Meals []rawMeal `json:"meals"`
}

type rawWeek struct {
	Title *string  `json:"title"`
	Days  []rawDay `json:"days"`
}

type rawPrepTask struct {
	Day   string   `json:"day"`
	Title string   `json:"title"`
	Steps []string `json:"steps"`
	Meals []string `json:"meals"`
}

type rawPrep struct {
	Tasks []rawPrepTask `json:"tasks"`
}

func missing(fields map[string]*float64) []string {
	var out []string
	for _, name := range []string{"calories", "protein", "carbs", "fat", "prep_minutes", "cook_minutes"} {
		if v, ok := fields[name]; ok && v == nil {
			out = append(out, name)
		}
	}
	return out
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func decodePool(args json.RawMessage) ([]rawPoolIngredient, []string) {
	var pool rawPool
	if err := json.Unmarshal(args, &pool); err != nil {
		return nil, []string{"output is not valid JSON for " + StageIngredients + ": " + err.Error()}
	}
	var violations []string
	if len(pool.Ingredients) == 0 {
		violations = append(violations, "ingredient pool is empty")
	}
	for i, ing := range pool.Ingredients {
		if ing.Name == nil || strings.TrimSpace(*ing.Name) == "" {
			violations = append(violations, fmt.Sprintf("ingredient %d has no name", i+1))
			continue
		}
		if blank(ing.Category) {
			violations = append(violations, fmt.Sprintf("ingredient %q has no category", *ing.Name))
		}
		if ing.IsProtein == nil {
			violations = append(violations, fmt.Sprintf("ingredient %q is missing is_protein", *ing.Name))
		}
	}
	return pool.Ingredients, violations
}

// decodeWeek checks the shape of the compose_week output: required fields,
// known days and meal types. Cross-field rules live in validateWeek.
func decodeWeek(args json.RawMessage) (*rawWeek, []string) {
	var week rawWeek
	if err := json.Unmarshal(args, &week); err != nil {
		return nil, []string{"output is not valid JSON for " + StageMeals + ": " + err.Error()}
	}
	var violations []string
	if blank(week.Title) {
		violations = append(violations, "week has no title")
	}
	if len(week.Days) == 0 {
		violations = append(violations, "no days returned")
	}
	for _, d := range week.Days {
		day, ok := domain.ParseDayOfWeek(d.Day)
		if !ok {
			violations = append(violations, fmt.Sprintf("unknown day %q", d.Day))
			continue
		}
		for j, m := range d.Meals {
			where := fmt.Sprintf("%s meal %d", day, j+1)
			if m.Name == nil || strings.TrimSpace(*m.Name) == "" {
				violations = append(violations, where+" has no name")
			} else {
				where = fmt.Sprintf("%s %q", day, *m.Name)
			}
			if !domain.MealType(strings.ToLower(m.MealType)).IsValid() {
				violations = append(violations, fmt.Sprintf("%s has unknown meal type %q", where, m.MealType))
			}
			if fields := missing(map[string]*float64{
				"calories": m.Calories, "protein": m.Protein, "carbs": m.Carbs, "fat": m.Fat,
				"prep_minutes": m.PrepMinutes, "cook_minutes": m.CookMinutes,
			}); len(fields) > 0 {
				violations = append(violations, fmt.Sprintf("%s is missing %s", where, strings.Join(fields, ", ")))
			}
			if len(m.Instructions) == 0 {
				violations = append(violations, where+" has no instructions")
			}
			if len(m.Ingredients) == 0 {
				violations = append(violations, where+" has no ingredients")
			}
			for _, ing := range m.Ingredients {
				if ing.Name == nil || strings.TrimSpace(*ing.Name) == "" {
					violations = append(violations, where+" has an ingredient without a name")
					continue
				}
				if ing.Amount == nil {
					violations = append(violations, fmt.Sprintf("%s ingredient %q is missing amount", where, *ing.Name))
				}
				// "2 eggs" has an empty unit, so only its presence is required.
				if ing.Unit == nil {
					violations = append(violations, fmt.Sprintf("%s ingredient %q is missing unit", where, *ing.Name))
				}
				if blank(ing.Category) {
					violations = append(violations, fmt.Sprintf("%s ingredient %q has no category", where, *ing.Name))
				}
				if fields := missing(map[string]*float64{
					"calories": ing.Calories, "protein": ing.Protein, "carbs": ing.Carbs, "fat": ing.Fat,
				}); len(fields) > 0 {
					violations = append(violations, fmt.Sprintf("%s ingredient %q is missing %s", where, *ing.Name, strings.Join(fields, ", ")))
				}
			}
		}
	}
	return &week, violations
}

// weekRules are the post-generation checks that trigger a repair retry.
type weekRules struct {
	mealTypes      []domain.MealType
	mealsPerDay    int
	disliked       []string
	macroTolerance float64
}

func validateWeek(week *rawWeek, rules weekRules) []string {
	var violations []string

	seen := make(map[domain.DayOfWeek]bool)
	for _, d := range week.Days {
		day, _ := domain.ParseDayOfWeek(d.Day)
		if seen[day] {
			violations = append(violations, fmt.Sprintf("%s appears more than once", day))
		}
		seen[day] = true

		present := make(map[domain.MealType]bool)
		for _, m := range d.Meals {
			present[domain.MealType(strings.ToLower(m.MealType))] = true
			violations = append(violations, checkMacros(day, m, rules.macroTolerance)...)
			violations = append(violations, checkDisliked(day, m, rules.disliked)...)
		}
		for _, mt := range rules.mealTypes {
			if !present[mt] {
				violations = append(violations, fmt.Sprintf("%s has no %s", day, mt))
			}
		}
		if rules.mealsPerDay > 0 && len(d.Meals) > rules.mealsPerDay {
			violations = append(violations, fmt.Sprintf("%s has %d meals, at most %d allowed", day, len(d.Meals), rules.mealsPerDay))
		}
	}
	for _, day := range domain.WeekDays {
		if !seen[day] {
			violations = append(violations, fmt.Sprintf("%s is missing", day))
		}
	}
	if len(week.Days) != len(domain.WeekDays) {
		violations = append(violations, fmt.Sprintf("expected 7 days, got %d", len(week.Days)))
	}
	return violations
}

func checkMacros(day domain.DayOfWeek, m rawMeal, tolerance float64) []string {
	var sum domain.Macros
	for _, ing := range m.Ingredients {
		sum = sum.Add(domain.Macros{
			Calories: *ing.Calories, Protein: *ing.Protein, Carbs: *ing.Carbs, Fat: *ing.Fat,
		})
	}
	var out []string
	for _, c := range []struct {
		name       string
		stated, is float64
	}{
		{"calories", *m.Calories, sum.Calories},
		{"protein", *m.Protein, sum.Protein},
		{"carbs", *m.Carbs, sum.Carbs},
		{"fat", *m.Fat, sum.Fat},
	} {
		if math.Abs(c.stated-c.is) > tolerance+1e-9 {
			out = append(out, fmt.Sprintf("%s %q states %s %.1f but its ingredients add up to %.1f",
				day, *m.Name, c.name, c.stated, c.is))
		}
	}
	return out
}

func checkDisliked(day domain.DayOfWeek, m rawMeal, disliked []string) []string {
	var out []string
	for _, ing := range m.Ingredients {
		for _, d := range disliked {
			if containsTerm(*ing.Name, d) {
				out = append(out, fmt.Sprintf("%s %q contains %q, which the user does not eat", day, *m.Name, *ing.Name))
				break
			}
		}
	}
	return out
}

// containsTerm reports whether the words of term appear consecutively in
// name. Words match exactly or as a plural, so "egg" hits "eggs" but not
// "eggplant".
func containsTerm(name, term string) bool {
	want := words(term)
	have := words(name)
	if len(want) == 0 {
		return false
	}
	for i := 0; i+len(want) <= len(have); i++ {
		matched := true
		for j, w := range want {
			if !sameWord(have[i+j], w) {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

func words(s string) []string {
	return strings.FieldsFunc(domain.NormalizeIngredientName(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func sameWord(have, want string) bool {
	if have == want {
		return true
	}
	for _, suffix := range []string{"s", "es"} {
		if have == want+suffix || want == have+suffix {
			return true
		}
	}
	return false
}

func decodePrep(args json.RawMessage) ([]domain.PrepTask, []string) {
	var prep rawPrep
	if err := json.Unmarshal(args, &prep); err != nil {
		return nil, []string{"output is not valid JSON for " + StagePrep + ": " + err.Error()}
	}
	var (
		tasks      []domain.PrepTask
		violations []string
	)
	for i, t := range prep.Tasks {
		day, ok := domain.ParseDayOfWeek(t.Day)
		if !ok {
			violations = append(violations, fmt.Sprintf("prep task %d has unknown day %q", i+1, t.Day))
		}
		if strings.TrimSpace(t.Title) == "" || len(t.Steps) == 0 {
			violations = append(violations, fmt.Sprintf("prep task %d needs a title and steps", i+1))
		}
		tasks = append(tasks, domain.PrepTask{Day: day, Title: t.Title, Steps: t.Steps, Meals: t.Meals})
	}
	return tasks, violations
}
