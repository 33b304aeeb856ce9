package domain

import (
	"errors"
	"fmt"
	"time"
)

// WeekStartLayout is the wire and storage format of a plan week.
const WeekStartLayout = "2006-01-02"

// Complexity is how much effort a meal type may take.
type Complexity string

const (
	ComplexityQuick     Complexity = "quick"
	ComplexityModerate  Complexity = "moderate"
	ComplexityElaborate Complexity = "elaborate"
)

func (c Complexity) IsValid() bool {
	return c == ComplexityQuick || c == ComplexityModerate || c == ComplexityElaborate
}

// ProteinFocus asks for a protein to feature in a number of meals of one type.
type ProteinFocus struct {
	MealType    MealType `bson:"mealType" json:"mealType"`
	Protein     string   `bson:"protein" json:"protein"`
	MealCount   int      `bson:"mealCount" json:"mealCount"`
	VaryCuisine bool     `bson:"varyCuisine" json:"varyCuisine"`
}

// GenerationRequest is what the user asked for. It is snapshotted on the job.
type GenerationRequest struct {
	WeekStart    string                  `bson:"weekStart" json:"weekStart"`
	MealsPerDay  int                     `bson:"mealsPerDay" json:"mealsPerDay"`
	MealTypes    []MealType              `bson:"mealTypes" json:"mealTypes"`
	Complexity   map[MealType]Complexity `bson:"complexity,omitempty" json:"complexity,omitempty"`
	Theme        string                  `bson:"theme,omitempty" json:"theme,omitempty"`
	ProteinFocus *ProteinFocus           `bson:"proteinFocus,omitempty" json:"proteinFocus,omitempty"`
	Household    HouseholdServingsConfig `bson:"household,omitempty" json:"household,omitempty"`
	MacroTargets *Macros                 `bson:"macroTargets,omitempty" json:"macroTargets,omitempty"`
	Regenerate   bool                    `bson:"regenerate" json:"regenerate"`
}

// Validate checks the request shape. Profile-dependent checks happen in the job service.
func (r *GenerationRequest) Validate() error {
	if _, err := time.Parse(WeekStartLayout, r.WeekStart); err != nil {
		return fmt.Errorf("weekStart must be YYYY-MM-DD: %w", err)
	}
	if r.MealsPerDay < 1 || r.MealsPerDay > 6 {
		return errors.New("mealsPerDay must be between 1 and 6")
	}
	if len(r.MealTypes) == 0 {
		return errors.New("at least one meal type must be selected")
	}
	seen := make(map[MealType]bool, len(r.MealTypes))
	for _, mt := range r.MealTypes {
		if !mt.IsValid() {
			return fmt.Errorf("unknown meal type %q", mt)
		}
		if seen[mt] {
			return fmt.Errorf("meal type %q selected twice", mt)
		}
		seen[mt] = true
	}
	if len(r.MealTypes) > r.MealsPerDay {
		return errors.New("more meal types selected than meals per day")
	}
	for mt, c := range r.Complexity {
		if !mt.IsValid() || !c.IsValid() {
			return fmt.Errorf("invalid complexity %q for %q", c, mt)
		}
	}
	if pf := r.ProteinFocus; pf != nil {
		if pf.Protein == "" {
			return errors.New("protein focus needs a protein")
		}
		if !seen[pf.MealType] {
			return fmt.Errorf("protein focus meal type %q is not selected", pf.MealType)
		}
		if pf.MealCount < 1 || pf.MealCount > 7 {
			return errors.New("protein focus meal count must be between 1 and 7")
		}
	}
	if r.MacroTargets != nil && !r.MacroTargets.AllPositive() {
		return errors.New("macro targets must be greater than zero")
	}
	if err := r.Household.Validate(); err != nil {
		return fmt.Errorf("household: %w", err)
	}
	return nil
}

// AllPositive reports whether every macro target is > 0.
func (m Macros) AllPositive() bool {
	return m.Calories > 0 && m.Protein > 0 && m.Carbs > 0 && m.Fat > 0
}

// ComplexityFor falls back to moderate when the user did not choose.
func (r *GenerationRequest) ComplexityFor(mt MealType) Complexity {
	if c, ok := r.Complexity[mt]; ok {
		return c
	}
	return ComplexityModerate
}
