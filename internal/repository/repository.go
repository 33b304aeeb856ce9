package repository

import (
	"alcyxob/meal-planner/internal/domain"
	"context"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Error constants for repository layer
var (
	ErrNotFound   = RepositoryError("not found")
	ErrDuplicate  = RepositoryError("duplicate key")
	ErrStaleWrite = RepositoryError("record changed concurrently")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// JobRepository persists generation jobs. Every status change is conditional on
// the current status, so a terminal job is never written again.
type JobRepository interface {
	// Create inserts a pending job. ErrDuplicate means another job for the
	// same user and week is still in flight.
	Create(ctx context.Context, job *domain.GenerationJob) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.GenerationJob, error)
	GetActiveForWeek(ctx context.Context, userID primitive.ObjectID, weekStart string) (*domain.GenerationJob, error)
	GetLatestForWeek(ctx context.Context, userID primitive.ObjectID, weekStart string) (*domain.GenerationJob, error)
	// Transition moves from -> to. ErrStaleWrite if the job is no longer in from.
	Transition(ctx context.Context, id primitive.ObjectID, from, to domain.JobStatus) error
	// Complete moves a saving job to completed with its plan.
	Complete(ctx context.Context, id primitive.ObjectID, planID primitive.ObjectID, stages []domain.StageMetric) error
	// Fail closes a job that is still active. ErrStaleWrite if it already finished.
	Fail(ctx context.Context, id primitive.ObjectID, message string) error
	SetTranscriptKey(ctx context.Context, id primitive.ObjectID, key string) error
}

// MealPlanRepository persists generated plans, one document per plan.
type MealPlanRepository interface {
	Create(ctx context.Context, plan *domain.MealPlan) (primitive.ObjectID, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*domain.MealPlan, error)
	ListByOwner(ctx context.Context, ownerID primitive.ObjectID, limit int64) ([]domain.MealPlan, error)
	ExistsForWeek(ctx context.Context, ownerID primitive.ObjectID, weekStart string) (bool, error)
	SetFavorite(ctx context.Context, id, ownerID primitive.ObjectID, favorite bool) error
	// UpdateDays replaces the days if the stored version still matches plan.Version,
	// and bumps the version. ErrStaleWrite otherwise.
	UpdateDays(ctx context.Context, plan *domain.MealPlan) error
	Delete(ctx context.Context, id primitive.ObjectID) error
}

// ProfileRepository reads user profiles owned by the profile service.
type ProfileRepository interface {
	GetByUserID(ctx context.Context, userID primitive.ObjectID) (*domain.UserProfile, error)
}
