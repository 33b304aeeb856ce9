package domain

// AggregationKind says how a grocery item's total was obtained.
type AggregationKind string

const (
	AggregationExact     AggregationKind = "exact"     // every occurrence shared one unit
	AggregationMajority  AggregationKind = "majority"  // a dominant unit was summed, the rest listed
	AggregationAmbiguous AggregationKind = "ambiguous" // no total
)

// Quantity is a parsed amount with its canonical unit.
type Quantity struct {
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
}

// MealReference points back at one ingredient occurrence in the plan.
type MealReference struct {
	Day             DayOfWeek `json:"day"`
	MealType        MealType  `json:"mealType"`
	MealName        string    `json:"mealName"`
	Amount          string    `json:"amount"`
	Unit            string    `json:"unit"`
	IncludedInTotal bool      `json:"includedInTotal"`
}

// GroceryItem is one deduplicated line of the weekly shopping list.
type GroceryItem struct {
	Key         string          `json:"key"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	References  []MealReference `json:"references"`
	Total       *Quantity       `json:"total,omitempty"`
	Display     string          `json:"display,omitempty"`
	Aggregation AggregationKind `json:"aggregation"`
}
