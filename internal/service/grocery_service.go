package service

import (
	"alcyxob/meal-planner/internal/domain"
	"alcyxob/meal-planner/internal/grocery"
	"alcyxob/meal-planner/internal/repository"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GroceryList is the shopping list derived from one plan. It is never stored.
type GroceryList struct {
	PlanID      string               `json:"planId"`
	WeekStart   string               `json:"weekStart"`
	PlanVersion int64                `json:"planVersion"`
	Items       []domain.GroceryItem `json:"items"`
	GeneratedAt time.Time            `json:"generatedAt"`
}

type GroceryService interface {
	GetGroceryList(ctx context.Context, planID, userID primitive.ObjectID) (*GroceryList, error)
}

type groceryService struct {
	planRepo   repository.MealPlanRepository
	aggregator *grocery.Aggregator
}

// NewGroceryService creates a new GroceryService.
func NewGroceryService(planRepo repository.MealPlanRepository, aggregator *grocery.Aggregator) GroceryService {
	if aggregator == nil {
		aggregator = grocery.NewAggregator(grocery.DefaultMajorityThreshold)
	}
	return &groceryService{planRepo: planRepo, aggregator: aggregator}
}

// GetGroceryList aggregates the ingredients of the user's plan.
func (s *groceryService) GetGroceryList(ctx context.Context, planID, userID primitive.ObjectID) (*GroceryList, error) {
	plan, err := ownedPlan(ctx, s.planRepo, planID, userID)
	if err != nil {
		return nil, err
	}
	items := s.aggregator.Build(plan)
	if items == nil {
		items = []domain.GroceryItem{}
	}
	return &GroceryList{
		PlanID:      plan.ID.Hex(),
		WeekStart:   plan.WeekStart,
		PlanVersion: plan.Version,
		Items:       items,
		GeneratedAt: time.Now().UTC(),
	}, nil
}
