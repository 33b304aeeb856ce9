package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// UserProfile is owned by the profile service; this module only reads it.
type UserProfile struct {
	ID                  primitive.ObjectID      `bson:"_id,omitempty" json:"id"`
	UserID              primitive.ObjectID      `bson:"userId" json:"userId"`
	MacroTargets        Macros                  `bson:"macroTargets" json:"macroTargets"`
	DietaryRestrictions []string                `bson:"dietaryRestrictions,omitempty" json:"dietaryRestrictions,omitempty"`
	DislikedIngredients []string                `bson:"dislikedIngredients,omitempty" json:"dislikedIngredients,omitempty"`
	Household           HouseholdServingsConfig `bson:"household,omitempty" json:"household,omitempty"`
	UpdatedAt           time.Time               `bson:"updatedAt" json:"updatedAt"`
}
