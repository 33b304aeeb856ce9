// internal/repository/mongo/meal_plan_repo.go
package mongo

import (
	"alcyxob/meal-planner/internal/domain"
	"alcyxob/meal-planner/internal/repository"
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

const mealPlanCollectionName = "meal_plans"

// mongoMealPlanRepository implements repository.MealPlanRepository
type mongoMealPlanRepository struct {
	collection *mongo.Collection
}

// NewMongoMealPlanRepository creates a new meal plan repository.
// Writes are majority-acknowledged: a job is only marked completed after its plan is durable.
func NewMongoMealPlanRepository(db *mongo.Database) repository.MealPlanRepository {
	collOpts := options.Collection().SetWriteConcern(writeconcern.Majority())
	return &mongoMealPlanRepository{
		collection: db.Collection(mealPlanCollectionName, collOpts),
	}
}

// Create inserts the whole plan, days and slots included, as one document.
func (r *mongoMealPlanRepository) Create(ctx context.Context, plan *domain.MealPlan) (primitive.ObjectID, error) {
	if plan.OwnerID == primitive.NilObjectID || plan.WeekStart == "" {
		return primitive.NilObjectID, errors.New("meal plan requires ownerId and weekStart")
	}
	if len(plan.Days) != len(domain.WeekDays) {
		return primitive.NilObjectID, errors.New("meal plan must have exactly 7 days")
	}
	plan.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	plan.CreatedAt = now
	plan.UpdatedAt = now
	plan.Version = 1

	result, err := r.collection.InsertOne(ctx, plan)
	if err != nil {
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted meal plan ID")
	}
	return insertedID, nil
}

// GetByID retrieves a single plan by its ID.
func (r *mongoMealPlanRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.MealPlan, error) {
	var plan domain.MealPlan
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&plan)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &plan, nil
}

// ListByOwner returns the owner's plans, newest week first.
func (r *mongoMealPlanRepository) ListByOwner(ctx context.Context, ownerID primitive.ObjectID, limit int64) ([]domain.MealPlan, error) {
	plans := []domain.MealPlan{}
	findOptions := options.Find().
		SetSort(bson.D{{Key: "weekStart", Value: -1}, {Key: "createdAt", Value: -1}}).
		SetProjection(bson.M{"prepSchedule": 0})
	if limit > 0 {
		findOptions.SetLimit(limit)
	}

	cursor, err := r.collection.Find(ctx, bson.M{"ownerId": ownerID}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	if err = cursor.All(ctx, &plans); err != nil {
		return nil, err
	}
	return plans, nil
}

// ExistsForWeek reports whether the owner already has a plan for the week.
func (r *mongoMealPlanRepository) ExistsForWeek(ctx context.Context, ownerID primitive.ObjectID, weekStart string) (bool, error) {
	count, err := r.collection.CountDocuments(ctx,
		bson.M{"ownerId": ownerID, "weekStart": weekStart},
		options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SetFavorite flags or unflags a plan owned by ownerID.
func (r *mongoMealPlanRepository) SetFavorite(ctx context.Context, id, ownerID primitive.ObjectID, favorite bool) error {
	filter := bson.M{"_id": id, "ownerId": ownerID}
	update := bson.M{"$set": bson.M{"favorite": favorite, "updatedAt": time.Now().UTC()}}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// UpdateDays writes plan.Days if nobody else changed the plan since it was read.
func (r *mongoMealPlanRepository) UpdateDays(ctx context.Context, plan *domain.MealPlan) error {
	filter := bson.M{"_id": plan.ID, "ownerId": plan.OwnerID, "version": plan.Version}
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{"days": plan.Days, "updatedAt": now},
		"$inc": bson.M{"version": 1},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrStaleWrite
	}
	plan.Version++
	plan.UpdatedAt = now
	return nil
}

// Delete removes a plan. Used to clean up a plan whose job could not be completed.
func (r *mongoMealPlanRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureMealPlanIndexes creates necessary indexes. Call during startup.
func EnsureMealPlanIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "ownerId", Value: 1}, {Key: "weekStart", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "jobId", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
