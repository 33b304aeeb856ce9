package grocery

import (
	"math"
	"sort"
	"strconv"

	"alcyxob/meal-planner/internal/domain"
)

// DefaultMajorityThreshold is the share of a group's occurrences one unit must
// cover before its amounts are summed.
const DefaultMajorityThreshold = 0.6

const epsilon = 1e-9

// Aggregator merges a plan's ingredients into grocery items. It holds no state
// and is safe for concurrent use.
type Aggregator struct {
	MajorityThreshold float64
}

// NewAggregator returns an Aggregator; a threshold outside (0,1] falls back to the default.
func NewAggregator(threshold float64) *Aggregator {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultMajorityThreshold
	}
	return &Aggregator{MajorityThreshold: threshold}
}

// BuildGroceryList aggregates with DefaultMajorityThreshold.
func BuildGroceryList(plan *domain.MealPlan) []domain.GroceryItem {
	return NewAggregator(DefaultMajorityThreshold).Build(plan)
}

type occurrence struct {
	ingredient domain.Ingredient
	ref        domain.MealReference
	qty        domain.Quantity
	numeric    bool
}

type unitBucket struct {
	unit  string
	count int
	sum   float64
}

// Build produces one item per normalized ingredient name, sorted by category then key.
func (a *Aggregator) Build(plan *domain.MealPlan) []domain.GroceryItem {
	if plan == nil {
		return []domain.GroceryItem{}
	}

	groups := make(map[string][]occurrence)
	var keys []string
	for _, day := range calendarOrder(plan.Days) {
		for _, slot := range day.Meals {
			for _, ing := range slot.Meal.Ingredients {
				key := ing.NameNormalized
				if key == "" {
					key = domain.NormalizeIngredientName(ing.Name)
				}
				if key == "" {
					continue
				}
				occ := occurrence{
					ingredient: ing,
					ref: domain.MealReference{
						Day:      day.Day,
						MealType: slot.MealType,
						MealName: slot.Meal.Name,
						Amount:   ing.Amount,
						Unit:     ing.Unit,
					},
				}
				if q, err := Normalize(ing.Amount, ing.Unit); err == nil {
					occ.qty, occ.numeric = q, true
				}
				if _, seen := groups[key]; !seen {
					keys = append(keys, key)
				}
				groups[key] = append(groups[key], occ)
			}
		}
	}

	items := make([]domain.GroceryItem, 0, len(keys))
	for _, key := range keys {
		items = append(items, a.aggregateGroup(key, groups[key]))
	}

	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Category != items[j].Category {
			return items[i].Category < items[j].Category
		}
		return items[i].Key < items[j].Key
	})
	return items
}

func (a *Aggregator) aggregateGroup(key string, occs []occurrence) domain.GroceryItem {
	last := occs[len(occs)-1].ingredient
	item := domain.GroceryItem{
		Key:         key,
		Name:        last.Name,
		Category:    last.Category,
		References:  make([]domain.MealReference, len(occs)),
		Aggregation: domain.AggregationAmbiguous,
	}

	var buckets []*unitBucket
	byUnit := make(map[string]*unitBucket)
	for _, o := range occs {
		if !o.numeric {
			continue
		}
		b, ok := byUnit[o.qty.Unit]
		if !ok {
			b = &unitBucket{unit: o.qty.Unit}
			byUnit[o.qty.Unit] = b
			buckets = append(buckets, b)
		}
		b.count++
		b.sum += o.qty.Amount
	}

	var best *unitBucket
	for _, b := range buckets {
		if best == nil || b.count > best.count {
			best = b
		}
	}

	total := len(occs)
	summable := best != nil &&
		2*best.count > total &&
		float64(best.count)/float64(total) >= a.MajorityThreshold-epsilon

	for i, o := range occs {
		item.References[i] = o.ref
		if summable && o.numeric && o.qty.Unit == best.unit {
			item.References[i].IncludedInTotal = true
		}
	}

	if summable {
		item.Total = &domain.Quantity{Amount: best.sum, Unit: best.unit}
		item.Display = FormatQuantity(*item.Total)
		if best.count == total {
			item.Aggregation = domain.AggregationExact
		} else {
			item.Aggregation = domain.AggregationMajority
		}
	}
	return item
}

// FormatQuantity renders an amount rounded to two decimals, e.g. "12 oz".
func FormatQuantity(q domain.Quantity) string {
	s := strconv.FormatFloat(math.Round(q.Amount*100)/100, 'f', -1, 64)
	if q.Unit == "" {
		return s
	}
	return s + " " + q.Unit
}

func calendarOrder(days []domain.DayPlan) []domain.DayPlan {
	ordered := make([]domain.DayPlan, len(days))
	copy(ordered, days)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Day.Index() < ordered[j].Day.Index()
	})
	return ordered
}
