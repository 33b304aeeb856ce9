// internal/repository/mongo/job_repo.go
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
)

const jobCollectionName = "generation_jobs"

// mongoJobRepository implements repository.JobRepository
type mongoJobRepository struct {
	collection *mongo.Collection
}

// NewMongoJobRepository creates a new generation job repository.
func NewMongoJobRepository(db *mongo.Database) repository.JobRepository {
	return &mongoJobRepository{
		collection: db.Collection(jobCollectionName),
	}
}

// Create inserts a new pending job.
func (r *mongoJobRepository) Create(ctx context.Context, job *domain.GenerationJob) (primitive.ObjectID, error) {
	if job.UserID == primitive.NilObjectID || job.WeekStart == "" {
		return primitive.NilObjectID, errors.New("job requires userId and weekStart")
	}
	job.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now
	job.Status = domain.JobStatusPending
	job.ProgressMessage = domain.ProgressMessageFor(domain.JobStatusPending)
	job.Active = true

	result, err := r.collection.InsertOne(ctx, job)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}
	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted job ID")
	}
	return insertedID, nil
}

// GetByID retrieves a single job by its ID.
func (r *mongoJobRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.GenerationJob, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetActiveForWeek returns the in-flight job for the user's week, if any.
func (r *mongoJobRepository) GetActiveForWeek(ctx context.Context, userID primitive.ObjectID, weekStart string) (*domain.GenerationJob, error) {
	return r.findOne(ctx, bson.M{"userId": userID, "weekStart": weekStart, "active": true})
}

// GetLatestForWeek returns the most recently created job for the user's week.
func (r *mongoJobRepository) GetLatestForWeek(ctx context.Context, userID primitive.ObjectID, weekStart string) (*domain.GenerationJob, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.findOne(ctx, bson.M{"userId": userID, "weekStart": weekStart}, opts)
}

func (r *mongoJobRepository) findOne(ctx context.Context, filter bson.M, opts ...*options.FindOneOptions) (*domain.GenerationJob, error) {
	var job domain.GenerationJob
	err := r.collection.FindOne(ctx, filter, opts...).Decode(&job)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &job, nil
}

// Transition advances the job only if it is still in the expected state.
func (r *mongoJobRepository) Transition(ctx context.Context, id primitive.ObjectID, from, to domain.JobStatus) error {
	if !from.CanTransitionTo(to) || to.IsTerminal() {
		return errors.New("illegal job transition " + string(from) + " -> " + string(to))
	}
	filter := bson.M{"_id": id, "status": from}
	update := bson.M{"$set": bson.M{
		"status":          to,
		"progressMessage": domain.ProgressMessageFor(to),
		"updatedAt":       time.Now().UTC(),
	}}
	return r.conditionalUpdate(ctx, filter, update)
}

// Complete records the plan and closes a job that reached saving.
func (r *mongoJobRepository) Complete(ctx context.Context, id primitive.ObjectID, planID primitive.ObjectID, stages []domain.StageMetric) error {
	now := time.Now().UTC()
	filter := bson.M{"_id": id, "status": domain.JobStatusSaving}
	update := bson.M{"$set": bson.M{
		"status":          domain.JobStatusCompleted,
		"progressMessage": domain.ProgressMessageFor(domain.JobStatusCompleted),
		"resultPlanId":    planID,
		"active":          false,
		"stages":          stages,
		"updatedAt":       now,
		"completedAt":     now,
	}}
	return r.conditionalUpdate(ctx, filter, update)
}

// Fail closes any still-active job with an error message.
func (r *mongoJobRepository) Fail(ctx context.Context, id primitive.ObjectID, message string) error {
	now := time.Now().UTC()
	filter := bson.M{"_id": id, "active": true}
	update := bson.M{"$set": bson.M{
		"status":          domain.JobStatusFailed,
		"progressMessage": domain.ProgressMessageFor(domain.JobStatusFailed),
		"errorMessage":    message,
		"active":          false,
		"updatedAt":       now,
		"completedAt":     now,
	}}
	return r.conditionalUpdate(ctx, filter, update)
}

// SetTranscriptKey links the archived transcript. It may be set after the job finished.
func (r *mongoJobRepository) SetTranscriptKey(ctx context.Context, id primitive.ObjectID, key string) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{"transcriptKey": key}})
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *mongoJobRepository) conditionalUpdate(ctx context.Context, filter, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrStaleWrite
	}
	return nil
}

// EnsureJobIndexes creates necessary indexes. Call during startup.
// The partial unique index is what guarantees one in-flight job per user and week.
func EnsureJobIndexes(ctx context.Context, collection *mongo.Collection) {
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "weekStart", Value: 1}},
			Options: options.Index().
				SetName("one_active_job_per_week").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"active": true}),
		},
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "weekStart", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		log.Printf("WARN: Failed to create indexes for collection %s: %v", collection.Name(), err)
	}
}
