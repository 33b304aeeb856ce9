package domain

import "fmt"

// MealBucket groups meal types for household configuration.
type MealBucket string

const (
	BucketBreakfast MealBucket = "breakfast"
	BucketLunch     MealBucket = "lunch"
	BucketDinner    MealBucket = "dinner"
	BucketSnack     MealBucket = "snack"
)

// Bucket maps a meal type to its household bucket. Workout meals count as snacks.
func (t MealType) Bucket() MealBucket {
	switch t {
	case MealTypeBreakfast:
		return BucketBreakfast
	case MealTypeLunch:
		return BucketLunch
	case MealTypeDinner:
		return BucketDinner
	default:
		return BucketSnack
	}
}

// Servings counts the people eating besides the plan owner.
type Servings struct {
	Adults   int `bson:"adults" json:"adults"`
	Children int `bson:"children" json:"children"`
}

// HouseholdServingsConfig holds per-day, per-bucket extra eaters.
// The owner is always one implicit adult and is not stored here.
type HouseholdServingsConfig map[DayOfWeek]map[MealBucket]Servings

// Lookup returns the configured servings, or zero when absent.
func (h HouseholdServingsConfig) Lookup(day DayOfWeek, bucket MealBucket) Servings {
	if h == nil {
		return Servings{}
	}
	return h[day][bucket]
}

// Validate rejects unknown days/buckets and negative counts.
func (h HouseholdServingsConfig) Validate() error {
	for day, buckets := range h {
		if day.Index() < 0 {
			return fmt.Errorf("unknown day %q", day)
		}
		for bucket, s := range buckets {
			switch bucket {
			case BucketBreakfast, BucketLunch, BucketDinner, BucketSnack:
			default:
				return fmt.Errorf("unknown meal bucket %q on %s", bucket, day)
			}
			if s.Adults < 0 || s.Children < 0 {
				return fmt.Errorf("negative servings for %s %s", day, bucket)
			}
		}
	}
	return nil
}
