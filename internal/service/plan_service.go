package service

import (
	"alcyxob/meal-planner/internal/domain"
	"alcyxob/meal-planner/internal/repository"
	"context"
	"errors"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	ErrPlanNotFound  = errors.New("meal plan not found")
	ErrSlotNotFound  = errors.New("meal slot not found in plan")
	ErrInvalidUpdate = errors.New("invalid meal plan update")
	ErrPlanModified  = errors.New("meal plan was modified concurrently, reload and try again")
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// SlotRef addresses one meal in a plan.
type SlotRef struct {
	Day      domain.DayOfWeek `json:"day" binding:"required"`
	MealType domain.MealType  `json:"mealType" binding:"required"`
}

// PlanService reads and edits stored plans on behalf of their owner.
type PlanService interface {
	GetPlan(ctx context.Context, planID, userID primitive.ObjectID) (*domain.MealPlan, error)
	ListPlans(ctx context.Context, userID primitive.ObjectID, limit int64) ([]domain.MealPlan, error)
	SetFavorite(ctx context.Context, planID, userID primitive.ObjectID, favorite bool) (*domain.MealPlan, error)
	SetCookingStatus(ctx context.Context, planID, userID primitive.ObjectID, slot SlotRef, status domain.CookingStatus) (*domain.MealPlan, error)
	// SwapMeals exchanges the meals of two slots. Each slot keeps its meal type.
	SwapMeals(ctx context.Context, planID, userID primitive.ObjectID, first, second SlotRef) (*domain.MealPlan, error)
}

type planService struct {
	planRepo repository.MealPlanRepository
}

// NewPlanService creates a new PlanService.
func NewPlanService(planRepo repository.MealPlanRepository) PlanService {
	return &planService{planRepo: planRepo}
}

func (s *planService) GetPlan(ctx context.Context, planID, userID primitive.ObjectID) (*domain.MealPlan, error) {
	return ownedPlan(ctx, s.planRepo, planID, userID)
}

func (s *planService) ListPlans(ctx context.Context, userID primitive.ObjectID, limit int64) ([]domain.MealPlan, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	plans, err := s.planRepo.ListByOwner(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if plans == nil {
		plans = []domain.MealPlan{}
	}
	return plans, nil
}

func (s *planService) SetFavorite(ctx context.Context, planID, userID primitive.ObjectID, favorite bool) (*domain.MealPlan, error) {
	if err := s.planRepo.SetFavorite(ctx, planID, userID, favorite); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	return ownedPlan(ctx, s.planRepo, planID, userID)
}

func (s *planService) SetCookingStatus(ctx context.Context, planID, userID primitive.ObjectID, slot SlotRef, status domain.CookingStatus) (*domain.MealPlan, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: unknown cooking status %q", ErrInvalidUpdate, status)
	}
	plan, err := ownedPlan(ctx, s.planRepo, planID, userID)
	if err != nil {
		return nil, err
	}
	d, m, err := locateSlot(plan, slot)
	if err != nil {
		return nil, err
	}
	plan.Days[d].Meals[m].CookingStatus = status
	if err := s.saveDays(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *planService) SwapMeals(ctx context.Context, planID, userID primitive.ObjectID, first, second SlotRef) (*domain.MealPlan, error) {
	if first == second {
		return nil, fmt.Errorf("%w: cannot swap a meal with itself", ErrInvalidUpdate)
	}
	plan, err := ownedPlan(ctx, s.planRepo, planID, userID)
	if err != nil {
		return nil, err
	}
	d1, m1, err := locateSlot(plan, first)
	if err != nil {
		return nil, err
	}
	d2, m2, err := locateSlot(plan, second)
	if err != nil {
		return nil, err
	}
	a := &plan.Days[d1].Meals[m1]
	b := &plan.Days[d2].Meals[m2]
	a.Meal, b.Meal = b.Meal, a.Meal
	a.CookingStatus, b.CookingStatus = b.CookingStatus, a.CookingStatus
	if err := s.saveDays(ctx, plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (s *planService) saveDays(ctx context.Context, plan *domain.MealPlan) error {
	if err := s.planRepo.UpdateDays(ctx, plan); err != nil {
		if errors.Is(err, repository.ErrStaleWrite) {
			log.Printf("WARN: Concurrent edit on meal plan %s rejected", plan.ID.Hex())
			return ErrPlanModified
		}
		return err
	}
	return nil
}

func locateSlot(plan *domain.MealPlan, slot SlotRef) (int, int, error) {
	d, m, ok := plan.FindSlot(slot.Day, slot.MealType)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %s %s", ErrSlotNotFound, slot.Day, slot.MealType)
	}
	return d, m, nil
}

// ownedPlan loads a plan and hides plans of other users behind ErrPlanNotFound.
func ownedPlan(ctx context.Context, repo repository.MealPlanRepository, planID, userID primitive.ObjectID) (*domain.MealPlan, error) {
	plan, err := repo.GetByID(ctx, planID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlanNotFound
		}
		return nil, err
	}
	if plan.OwnerID != userID {
		return nil, ErrPlanNotFound
	}
	return plan, nil
}
