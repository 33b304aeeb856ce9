package service

import (
	"alcyxob/meal-planner/internal/domain"
	"alcyxob/meal-planner/internal/generation"
	"alcyxob/meal-planner/internal/repository"
	"context"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// memJobRepo mirrors the conditional-write semantics of the mongo repository.
type memJobRepo struct {
	mu   sync.Mutex
	jobs map[primitive.ObjectID]*domain.GenerationJob
	now  func() time.Time
}

func newMemJobRepo(now func() time.Time) *memJobRepo {
	return &memJobRepo{jobs: map[primitive.ObjectID]*domain.GenerationJob{}, now: now}
}

func (r *memJobRepo) Create(_ context.Context, job *domain.GenerationJob) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.Active && j.UserID == job.UserID && j.WeekStart == job.WeekStart {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
	}
	job.ID = primitive.NewObjectID()
	job.CreatedAt = r.now()
	job.UpdatedAt = job.CreatedAt
	job.Status = domain.JobStatusPending
	job.ProgressMessage = domain.ProgressMessageFor(domain.JobStatusPending)
	job.Active = true
	stored := *job
	r.jobs[job.ID] = &stored
	return job.ID, nil
}

func (r *memJobRepo) insert(job domain.GenerationJob) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobs[job.ID] = &job
}

func (r *memJobRepo) get(id primitive.ObjectID) domain.GenerationJob {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.jobs[id]
}

func (r *memJobRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.GenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *j
	return &c, nil
}

func (r *memJobRepo) GetActiveForWeek(_ context.Context, userID primitive.ObjectID, weekStart string) (*domain.GenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, j := range r.jobs {
		if j.Active && j.UserID == userID && j.WeekStart == weekStart {
			c := *j
			return &c, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memJobRepo) GetLatestForWeek(_ context.Context, userID primitive.ObjectID, weekStart string) (*domain.GenerationJob, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matches []*domain.GenerationJob
	for _, j := range r.jobs {
		if j.UserID == userID && j.WeekStart == weekStart {
			matches = append(matches, j)
		}
	}
	if len(matches) == 0 {
		return nil, repository.ErrNotFound
	}
	sort.Slice(matches, func(a, b int) bool { return matches[a].CreatedAt.After(matches[b].CreatedAt) })
	c := *matches[0]
	return &c, nil
}

func (r *memJobRepo) Transition(_ context.Context, id primitive.ObjectID, from, to domain.JobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status != from || !from.CanTransitionTo(to) {
		return repository.ErrStaleWrite
	}
	j.Status = to
	j.ProgressMessage = domain.ProgressMessageFor(to)
	return nil
}

func (r *memJobRepo) Complete(_ context.Context, id primitive.ObjectID, planID primitive.ObjectID, stages []domain.StageMetric) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || j.Status != domain.JobStatusSaving {
		return repository.ErrStaleWrite
	}
	j.Status = domain.JobStatusCompleted
	j.ResultPlanID = &planID
	j.Stages = stages
	j.Active = false
	return nil
}

func (r *memJobRepo) Fail(_ context.Context, id primitive.ObjectID, message string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok || !j.Active {
		return repository.ErrStaleWrite
	}
	j.Status = domain.JobStatusFailed
	j.ErrorMessage = &message
	j.Active = false
	return nil
}

func (r *memJobRepo) SetTranscriptKey(_ context.Context, id primitive.ObjectID, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.jobs[id]
	if !ok {
		return repository.ErrNotFound
	}
	j.TranscriptKey = key
	return nil
}

type memPlanRepo struct {
	mu        sync.Mutex
	plans     map[primitive.ObjectID]*domain.MealPlan
	createErr error
}

func newMemPlanRepo() *memPlanRepo {
	return &memPlanRepo{plans: map[primitive.ObjectID]*domain.MealPlan{}}
}

func (r *memPlanRepo) Create(_ context.Context, plan *domain.MealPlan) (primitive.ObjectID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return primitive.NilObjectID, r.createErr
	}
	plan.ID = primitive.NewObjectID()
	plan.Version = 1
	stored := *plan
	r.plans[plan.ID] = &stored
	return plan.ID, nil
}

func (r *memPlanRepo) GetByID(_ context.Context, id primitive.ObjectID) (*domain.MealPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *p
	c.Days = cloneDays(p.Days)
	return &c, nil
}

func (r *memPlanRepo) ListByOwner(_ context.Context, ownerID primitive.ObjectID, limit int64) ([]domain.MealPlan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.MealPlan
	for _, p := range r.plans {
		if p.OwnerID == ownerID && int64(len(out)) < limit {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r *memPlanRepo) ExistsForWeek(_ context.Context, ownerID primitive.ObjectID, weekStart string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.plans {
		if p.OwnerID == ownerID && p.WeekStart == weekStart {
			return true, nil
		}
	}
	return false, nil
}

func (r *memPlanRepo) SetFavorite(_ context.Context, id, ownerID primitive.ObjectID, favorite bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok || p.OwnerID != ownerID {
		return repository.ErrNotFound
	}
	p.Favorite = favorite
	return nil
}

func (r *memPlanRepo) UpdateDays(_ context.Context, plan *domain.MealPlan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[plan.ID]
	if !ok || p.OwnerID != plan.OwnerID || p.Version != plan.Version {
		return repository.ErrStaleWrite
	}
	p.Days = cloneDays(plan.Days)
	p.Version++
	plan.Version++
	return nil
}

func (r *memPlanRepo) Delete(_ context.Context, id primitive.ObjectID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plans[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.plans, id)
	return nil
}

func (r *memPlanRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.plans)
}

func cloneDays(days []domain.DayPlan) []domain.DayPlan {
	out := make([]domain.DayPlan, len(days))
	for i, d := range days {
		out[i] = domain.DayPlan{Day: d.Day, Meals: append([]domain.MealSlot(nil), d.Meals...)}
	}
	return out
}

type memProfileRepo struct {
	profiles map[primitive.ObjectID]*domain.UserProfile
}

func (r *memProfileRepo) GetByUserID(_ context.Context, userID primitive.ObjectID) (*domain.UserProfile, error) {
	p, ok := r.profiles[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	c := *p
	return &c, nil
}

// queueScheduler holds scheduled work until the test runs it.
type queueScheduler struct {
	mu    sync.Mutex
	queue []func(ctx context.Context)
}

func (q *queueScheduler) Go(fn func(ctx context.Context)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue = append(q.queue, fn)
}

func (q *queueScheduler) runAll(ctx context.Context) {
	q.mu.Lock()
	queue := q.queue
	q.queue = nil
	q.mu.Unlock()
	for _, fn := range queue {
		fn(ctx)
	}
}

// fakeGenerator walks the progress callbacks like the orchestrator does.
type fakeGenerator struct {
	result *generation.Result
	err    error
	panics bool
	// failAt stops the run with err once this stage is reported
	failAt domain.JobStatus
}

func (g *fakeGenerator) Run(ctx context.Context, _ generation.Input, progress generation.ProgressFunc, _ *generation.Transcript) (*generation.Result, error) {
	if g.panics {
		panic("model client exploded")
	}
	for _, st := range []domain.JobStatus{
		domain.JobStatusGeneratingIngredients,
		domain.JobStatusGeneratingMeals,
		domain.JobStatusGeneratingPrep,
	} {
		if err := progress(ctx, st); err != nil {
			return nil, err
		}
		if g.failAt == st {
			return nil, g.err
		}
	}
	if g.err != nil {
		return nil, g.err
	}
	return g.result, nil
}

type fakeStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	expires time.Duration // last presign lifetime requested
}

func (s *fakeStorage) PutObject(_ context.Context, key string, _ string, body []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.objects == nil {
		s.objects = map[string][]byte{}
	}
	s.objects[key] = body
	return nil
}

func (s *fakeStorage) GeneratePresignedDownloadURL(_ context.Context, key string, expires time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expires = expires
	return "https://storage.example/" + key + "?sig=1", nil
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}
