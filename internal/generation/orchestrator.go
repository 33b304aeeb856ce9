// Package generation drives the staged, schema-checked generation of a weekly meal plan.
package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"text/template"
	"time"

	"alcyxob/meal-planner/internal/domain"
	"alcyxob/meal-planner/internal/household"
	"alcyxob/meal-planner/internal/llm"
)

var (
	ErrSchemaViolation       = errors.New("generated plan did not pass validation")
	ErrGenerationUnavailable = errors.New("meal generation service is unavailable")
)

// OutcomeKind tags the result of one stage attempt.
type OutcomeKind int

const (
	OutcomeOK OutcomeKind = iota
	OutcomeSchemaViolation
	OutcomeUnavailable
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeOK:
		return "ok"
	case OutcomeSchemaViolation:
		return "schema_violation"
	case OutcomeUnavailable:
		return "unavailable"
	}
	return "unknown"
}

// Outcome is the tagged result of calling one stage.
type Outcome struct {
	Kind       OutcomeKind
	Violations []string // set for OutcomeSchemaViolation
	Err        error    // set for OutcomeUnavailable
}

// Options tune retries and validation.
type Options struct {
	SchemaRetries  int
	RepairRetries  int
	MacroTolerance float64
	ChildWeight    float64
}

// ProgressFunc is called before each stage starts. An error aborts the run.
type ProgressFunc func(ctx context.Context, status domain.JobStatus) error

// Input is everything a run needs besides the model.
type Input struct {
	Request domain.GenerationRequest
	Profile domain.UserProfile
}

// Result is the validated plan content. It is not persisted here.
type Result struct {
	Title        string
	Days         []domain.DayPlan
	PrepSchedule []domain.PrepTask
	Metrics      []domain.StageMetric
}

// Orchestrator runs the ingredient, meal and prep stages against a StructuredGenerator.
type Orchestrator struct {
	gen    llm.StructuredGenerator
	scaler household.Scaler
	opts   Options
}

func NewOrchestrator(gen llm.StructuredGenerator, opts Options) *Orchestrator {
	if opts.SchemaRetries < 0 {
		opts.SchemaRetries = 0
	}
	if opts.RepairRetries < 0 {
		opts.RepairRetries = 0
	}
	if opts.MacroTolerance <= 0 {
		opts.MacroTolerance = 1
	}
	return &Orchestrator{gen: gen, scaler: household.NewScaler(opts.ChildWeight), opts: opts}
}

// Run generates a full week. Intermediate outputs that fail validation are never returned.
func (o *Orchestrator) Run(ctx context.Context, in Input, progress ProgressFunc, tr *Transcript) (*Result, error) {
	if progress == nil {
		progress = func(context.Context, domain.JobStatus) error { return nil }
	}
	req := in.Request
	hh := req.Household
	if hh == nil {
		hh = in.Profile.Household
	}
	targets := in.Profile.MacroTargets
	if req.MacroTargets != nil {
		targets = *req.MacroTargets
	}
	disliked := make([]string, 0, len(in.Profile.DislikedIngredients))
	for _, d := range in.Profile.DislikedIngredients {
		if n := domain.NormalizeIngredientName(d); n != "" {
			disliked = append(disliked, n)
		}
	}

	data := promptData{
		WeekStart:    req.WeekStart,
		MealsPerDay:  req.MealsPerDay,
		Targets:      targets,
		Restrictions: in.Profile.DietaryRestrictions,
		Disliked:     disliked,
		Theme:        req.Theme,
		ProteinFocus: req.ProteinFocus,
	}
	for _, mt := range req.MealTypes {
		data.MealTypes = append(data.MealTypes, mealTypeLine{Type: mt, Complexity: req.ComplexityFor(mt)})
	}
	result := &Result{}

	// Stage 1: ingredient pool.
	if err := progress(ctx, domain.JobStatusGeneratingIngredients); err != nil {
		return nil, err
	}
	var pool []rawPoolIngredient
	metric, err := o.callStage(ctx, ingredientsTool, ingredientsTmpl, data, tr, func(args json.RawMessage) []string {
		var violations []string
		pool, violations = decodePool(args)
		return violations
	})
	result.Metrics = append(result.Metrics, metric)
	if err != nil {
		return nil, err
	}
	for _, p := range pool {
		data.Pool = append(data.Pool, poolLine{Name: *p.Name, Category: *p.Category})
	}

	// Stage 2: meals, with bounded repair on semantic violations.
	if err := progress(ctx, domain.JobStatusGeneratingMeals); err != nil {
		return nil, err
	}
	for _, day := range domain.WeekDays {
		for _, mt := range req.MealTypes {
			data.Servings = append(data.Servings, servingsLine{
				Day:      day,
				MealType: mt,
				Servings: formatServings(o.scaler.Multiplier(hh, day, mt)),
			})
		}
	}
	rules := weekRules{
		mealTypes:      req.MealTypes,
		mealsPerDay:    req.MealsPerDay,
		disliked:       disliked,
		macroTolerance: o.opts.MacroTolerance,
	}
	tool := mealsTool(req.MealTypes)
	var week *rawWeek
	for repair := 0; ; repair++ {
		metric, err := o.callStage(ctx, tool, mealsTmpl, data, tr, func(args json.RawMessage) []string {
			var violations []string
			week, violations = decodeWeek(args)
			return violations
		})
		result.Metrics = append(result.Metrics, metric)
		if err != nil {
			return nil, err
		}
		violations := validateWeek(week, rules)
		if len(violations) == 0 {
			break
		}
		log.Printf("WARN: %s output failed validation (repair %d/%d): %s",
			StageMeals, repair, o.opts.RepairRetries, strings.Join(violations, "; "))
		tr.add(TranscriptEntry{Stage: StageMeals, Outcome: "repair_requested", Detail: violations, At: time.Now().UTC()})
		if repair >= o.opts.RepairRetries {
			return nil, fmt.Errorf("%w: %s", ErrSchemaViolation, summarize(violations))
		}
		data.Feedback = violations
	}
	result.Title = strings.TrimSpace(*week.Title)
	result.Days = o.buildDays(week, hh)

	// Stage 3: prep schedule.
	if err := progress(ctx, domain.JobStatusGeneratingPrep); err != nil {
		return nil, err
	}
	metric, err = o.callStage(ctx, prepTool, prepTmpl, prepPromptData{WeekStart: req.WeekStart, Days: result.Days}, tr,
		func(args json.RawMessage) []string {
			var violations []string
			result.PrepSchedule, violations = decodePrep(args)
			return violations
		})
	result.Metrics = append(result.Metrics, metric)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// callStage issues one stage call, retrying SchemaViolation and Unavailable
// outcomes up to SchemaRetries extra times. decode fills the caller's target and
// returns the shape violations it found.
func (o *Orchestrator) callStage(
	ctx context.Context,
	tool llm.Tool,
	tmpl *template.Template,
	data any,
	tr *Transcript,
	decode func(json.RawMessage) []string,
) (domain.StageMetric, error) {
	metric := domain.StageMetric{Stage: tool.Name}
	start := time.Now()
	done := func(err error) (domain.StageMetric, error) {
		metric.Latency = time.Since(start)
		return metric, err
	}

	prompt, err := render(tmpl, data)
	if err != nil {
		return done(fmt.Errorf("rendering %s prompt: %w", tool.Name, err))
	}

	var last Outcome
	for attempt := 0; attempt <= o.opts.SchemaRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			last = Outcome{Kind: OutcomeUnavailable, Err: err}
			break
		}
		metric.Attempts++
		resp, err := o.gen.GenerateStructured(ctx, llm.StructuredRequest{Prompt: prompt, Tool: tool})
		metric.PromptTokens += resp.Usage.PromptTokens
		metric.CompletionTokens += resp.Usage.CompletionTokens

		switch {
		case errors.Is(err, llm.ErrMalformedOutput):
			last = Outcome{Kind: OutcomeSchemaViolation, Violations: []string{err.Error()}}
		case err != nil:
			last = Outcome{Kind: OutcomeUnavailable, Err: err}
		default:
			if v := decode(resp.Arguments); len(v) > 0 {
				last = Outcome{Kind: OutcomeSchemaViolation, Violations: v}
			} else {
				last = Outcome{Kind: OutcomeOK}
			}
		}

		entry := TranscriptEntry{
			Stage: tool.Name, Attempt: attempt + 1, Prompt: prompt, Arguments: resp.Arguments,
			Outcome: last.Kind.String(), Detail: last.Violations, At: time.Now().UTC(),
		}
		if last.Err != nil {
			entry.Detail = []string{last.Err.Error()}
		}
		tr.add(entry)

		if last.Kind == OutcomeOK {
			metric.Outcome = last.Kind.String()
			return done(nil)
		}
		log.Printf("WARN: %s attempt %d/%d: %s", tool.Name, attempt+1, o.opts.SchemaRetries+1, last.Kind)
	}

	metric.Outcome = last.Kind.String()
	if last.Kind == OutcomeSchemaViolation {
		return done(fmt.Errorf("%w: %s: %s", ErrSchemaViolation, tool.Name, summarize(last.Violations)))
	}
	return done(fmt.Errorf("%w: %s: %v", ErrGenerationUnavailable, tool.Name, last.Err))
}

func (o *Orchestrator) buildDays(week *rawWeek, hh domain.HouseholdServingsConfig) []domain.DayPlan {
	byDay := make(map[domain.DayOfWeek]rawDay, len(week.Days))
	for _, d := range week.Days {
		day, _ := domain.ParseDayOfWeek(d.Day)
		byDay[day] = d
	}

	days := make([]domain.DayPlan, 0, len(domain.WeekDays))
	for _, day := range domain.WeekDays {
		raw := byDay[day]
		plan := domain.DayPlan{Day: day, Meals: make([]domain.MealSlot, 0, len(raw.Meals))}
		for _, m := range raw.Meals {
			mt := domain.MealType(strings.ToLower(m.MealType))
			meal := domain.Meal{
				Name:         strings.TrimSpace(*m.Name),
				Cuisine:      m.Cuisine,
				Instructions: m.Instructions,
				Macros:       domain.Macros{Calories: *m.Calories, Protein: *m.Protein, Carbs: *m.Carbs, Fat: *m.Fat},
				PrepMinutes:  int(*m.PrepMinutes),
				CookMinutes:  int(*m.CookMinutes),
				Servings:     o.scaler.Multiplier(hh, day, mt),
			}
			for _, ing := range m.Ingredients {
				meal.Ingredients = append(meal.Ingredients, domain.Ingredient{
					Name:           strings.TrimSpace(*ing.Name),
					NameNormalized: domain.NormalizeIngredientName(*ing.Name),
					Amount:         string(*ing.Amount),
					Unit:           *ing.Unit,
					Category:       strings.ToLower(strings.TrimSpace(*ing.Category)),
					Macros:         domain.Macros{Calories: *ing.Calories, Protein: *ing.Protein, Carbs: *ing.Carbs, Fat: *ing.Fat},
				})
			}
			plan.Meals = append(plan.Meals, domain.MealSlot{MealType: mt, Meal: meal, CookingStatus: domain.CookingStatusPlanned})
		}
		days = append(days, plan)
	}
	return days
}

func summarize(violations []string) string {
	const limit = 5
	if len(violations) <= limit {
		return strings.Join(violations, "; ")
	}
	return fmt.Sprintf("%s; and %d more", strings.Join(violations[:limit], "; "), len(violations)-limit)
}
