// Package household turns household composition into serving multipliers.
package household

import (
	"alcyxob/meal-planner/internal/domain"
)

// DefaultChildWeight is how much of an adult portion a child eats.
const DefaultChildWeight = 0.6

// Scaler computes serving multipliers with a configurable child weight.
type Scaler struct {
	ChildWeight float64
}

// NewScaler returns a Scaler; a non-positive weight falls back to DefaultChildWeight.
func NewScaler(childWeight float64) Scaler {
	if childWeight <= 0 {
		childWeight = DefaultChildWeight
	}
	return Scaler{ChildWeight: childWeight}
}

// Multiplier is 1 (the owner) + adults + children*ChildWeight for the slot.
// The result is not rounded; rounding only happens when it is shown to the model.
func (s Scaler) Multiplier(cfg domain.HouseholdServingsConfig, day domain.DayOfWeek, mealType domain.MealType) float64 {
	sv := cfg.Lookup(day, mealType.Bucket())
	adults, children := sv.Adults, sv.Children
	if adults < 0 {
		adults = 0
	}
	if children < 0 {
		children = 0
	}
	return 1 + float64(adults) + float64(children)*s.ChildWeight
}

// ComputeMultiplier uses DefaultChildWeight.
func ComputeMultiplier(cfg domain.HouseholdServingsConfig, day domain.DayOfWeek, mealType domain.MealType) float64 {
	return NewScaler(DefaultChildWeight).Multiplier(cfg, day, mealType)
}
