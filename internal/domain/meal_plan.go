package domain

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DayOfWeek names a calendar day of the plan week.
type DayOfWeek string

const (
	Monday    DayOfWeek = "monday"
	Tuesday   DayOfWeek = "tuesday"
	Wednesday DayOfWeek = "wednesday"
	Thursday  DayOfWeek = "thursday"
	Friday    DayOfWeek = "friday"
	Saturday  DayOfWeek = "saturday"
	Sunday    DayOfWeek = "sunday"
)

// WeekDays lists the days in calendar order.
var WeekDays = []DayOfWeek{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// ParseDayOfWeek accepts any casing and surrounding whitespace.
func ParseDayOfWeek(s string) (DayOfWeek, bool) {
	d := DayOfWeek(strings.ToLower(strings.TrimSpace(s)))
	return d, d.Index() >= 0
}

// Index is the zero-based position of d in the week, or -1.
func (d DayOfWeek) Index() int {
	for i, wd := range WeekDays {
		if wd == d {
			return i
		}
	}
	return -1
}

// MealType is the slot a meal occupies in a day.
type MealType string

const (
	MealTypeBreakfast   MealType = "breakfast"
	MealTypeLunch       MealType = "lunch"
	MealTypeDinner      MealType = "dinner"
	MealTypeSnack       MealType = "snack"
	MealTypePreWorkout  MealType = "pre_workout"
	MealTypePostWorkout MealType = "post_workout"
)

var mealTypes = []MealType{
	MealTypeBreakfast, MealTypeLunch, MealTypeDinner,
	MealTypeSnack, MealTypePreWorkout, MealTypePostWorkout,
}

// IsValid reports whether t is a known meal type.
func (t MealType) IsValid() bool {
	for _, mt := range mealTypes {
		if mt == t {
			return true
		}
	}
	return false
}

// CookingStatus tracks whether the user actually cooked a planned meal.
type CookingStatus string

const (
	CookingStatusPlanned CookingStatus = "planned"
	CookingStatusCooked  CookingStatus = "cooked"
	CookingStatusSkipped CookingStatus = "skipped"
)

func (s CookingStatus) IsValid() bool {
	return s == CookingStatusPlanned || s == CookingStatusCooked || s == CookingStatusSkipped
}

// Macros are nutrition totals for an ingredient or meal.
type Macros struct {
	Calories float64 `bson:"calories" json:"calories"`
	Protein  float64 `bson:"protein" json:"protein"`
	Carbs    float64 `bson:"carbs" json:"carbs"`
	Fat      float64 `bson:"fat" json:"fat"`
}

// Add returns the component-wise sum.
func (m Macros) Add(o Macros) Macros {
	return Macros{
		Calories: m.Calories + o.Calories,
		Protein:  m.Protein + o.Protein,
		Carbs:    m.Carbs + o.Carbs,
		Fat:      m.Fat + o.Fat,
	}
}

// Ingredient is one line of a meal's ingredient list.
// Amount and Unit are free text and may not be numeric.
type Ingredient struct {
	Name           string `bson:"name" json:"name"`
	NameNormalized string `bson:"nameNormalized" json:"nameNormalized"`
	Amount         string `bson:"amount" json:"amount"`
	Unit           string `bson:"unit" json:"unit"`
	Macros         Macros `bson:"macros" json:"macros"`
	Category       string `bson:"category" json:"category"`
}

// NormalizeIngredientName is the grouping key used for ingredients.
func NormalizeIngredientName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// Meal is a single recipe, with amounts already scaled to Servings.
type Meal struct {
	Name         string       `bson:"name" json:"name"`
	Cuisine      string       `bson:"cuisine,omitempty" json:"cuisine,omitempty"`
	Ingredients  []Ingredient `bson:"ingredients" json:"ingredients"`
	Instructions []string     `bson:"instructions" json:"instructions"`
	Macros       Macros       `bson:"macros" json:"macros"`
	PrepMinutes  int          `bson:"prepMinutes" json:"prepMinutes"`
	CookMinutes  int          `bson:"cookMinutes" json:"cookMinutes"`
	Servings     float64      `bson:"servings" json:"servings"`
}

type MealSlot struct {
	MealType      MealType      `bson:"mealType" json:"mealType"`
	Meal          Meal          `bson:"meal" json:"meal"`
	CookingStatus CookingStatus `bson:"cookingStatus" json:"cookingStatus"`
}

type DayPlan struct {
	Day   DayOfWeek  `bson:"day" json:"day"`
	Meals []MealSlot `bson:"meals" json:"meals"`
}

// PrepTask is one entry of the weekly prep schedule.
type PrepTask struct {
	Day   DayOfWeek `bson:"day" json:"day"`
	Title string    `bson:"title" json:"title"`
	Steps []string  `bson:"steps" json:"steps"`
	Meals []string  `bson:"meals,omitempty" json:"meals,omitempty"`
}

// MealPlan is a generated week of meals. It is stored as a single document.
// After creation it only changes through swap, favorite and cooking-status updates.
type MealPlan struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OwnerID      primitive.ObjectID `bson:"ownerId" json:"ownerId"`
	JobID        primitive.ObjectID `bson:"jobId" json:"jobId"`
	WeekStart    string             `bson:"weekStart" json:"weekStart"`
	Title        string             `bson:"title" json:"title"`
	Theme        string             `bson:"theme,omitempty" json:"theme,omitempty"`
	Days         []DayPlan          `bson:"days" json:"days"`
	PrepSchedule []PrepTask         `bson:"prepSchedule,omitempty" json:"prepSchedule,omitempty"`
	Favorite     bool               `bson:"favorite" json:"favorite"`
	Version      int64              `bson:"version" json:"version"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// FindSlot returns the first slot of the given meal type on the given day.
func (p *MealPlan) FindSlot(day DayOfWeek, mealType MealType) (dayIdx, slotIdx int, ok bool) {
	for i := range p.Days {
		if p.Days[i].Day != day {
			continue
		}
		for j := range p.Days[i].Meals {
			if p.Days[i].Meals[j].MealType == mealType {
				return i, j, true
			}
		}
	}
	return -1, -1, false
}
