package service

import (
	"alcyxob/meal-planner/internal/domain"
	"alcyxob/meal-planner/internal/generation"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type jobFixture struct {
	svc      JobService
	jobs     *memJobRepo
	plans    *memPlanRepo
	profiles *memProfileRepo
	sched    *queueScheduler
	gen      *fakeGenerator
	store    *fakeStorage
	clock    *fakeClock
	userID   primitive.ObjectID
}

func newJobFixture(t *testing.T) *jobFixture {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	f := &jobFixture{
		jobs:   newMemJobRepo(clock.Now),
		plans:  newMemPlanRepo(),
		sched:  &queueScheduler{},
		gen:    &fakeGenerator{result: sampleResult()},
		store:  &fakeStorage{},
		clock:  clock,
		userID: primitive.NewObjectID(),
	}
	f.profiles = &memProfileRepo{profiles: map[primitive.ObjectID]*domain.UserProfile{
		f.userID: {
			UserID:       f.userID,
			MacroTargets: domain.Macros{Calories: 2200, Protein: 160, Carbs: 220, Fat: 70},
		},
	}}
	f.svc = NewJobService(f.jobs, f.plans, f.profiles, f.gen, f.sched, f.store, JobSettings{
		StaleAfter:         15 * time.Minute,
		RegenerateDebounce: time.Minute,
		TranscriptPrefix:   "transcripts",
		TranscriptURLTTL:   5 * time.Minute,
		Now:                clock.Now,
	})
	return f
}

func validRequest() domain.GenerationRequest {
	return domain.GenerationRequest{
		WeekStart:   "2025-03-03",
		MealsPerDay: 3,
		MealTypes:   []domain.MealType{domain.MealTypeBreakfast, domain.MealTypeLunch, domain.MealTypeDinner},
	}
}

func sampleResult() *generation.Result {
	res := &generation.Result{Title: "Mediterranean week"}
	for _, d := range domain.WeekDays {
		res.Days = append(res.Days, domain.DayPlan{Day: d, Meals: []domain.MealSlot{{
			MealType:      domain.MealTypeDinner,
			CookingStatus: domain.CookingStatusPlanned,
			Meal: domain.Meal{
				Name:        fmt.Sprintf("%s dinner", d),
				Ingredients: []domain.Ingredient{{Name: "Chicken breast", Amount: "8", Unit: "oz", Category: "meat"}},
			},
		}}})
	}
	res.Metrics = []domain.StageMetric{{Stage: "compose_week", Attempts: 1, Outcome: "ok"}}
	return res
}

func TestCreateJobReturnsPendingImmediately(t *testing.T) {
	f := newJobFixture(t)

	view, err := f.svc.CreateJob(context.Background(), f.userID, validRequest())
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	if view.Status != domain.JobStatusPending || view.MealPlanID != nil || view.ErrorMessage != nil {
		t.Errorf("unexpected view %+v", view)
	}
	if len(f.sched.queue) != 1 {
		t.Fatalf("expected one scheduled job, got %d", len(f.sched.queue))
	}
	id, _ := primitive.ObjectIDFromHex(view.JobID)
	if stored := f.jobs.get(id); stored.Status != domain.JobStatusPending || !stored.Active {
		t.Errorf("stored job not pending: %+v", stored)
	}
}

func TestJobStatusViewJSON(t *testing.T) {
	planID := "65f0c0ffee00000000000001"
	failure := "The model is unavailable."
	tests := []struct {
		name string
		view JobStatusView
		want []string
	}{
		{"pending", JobStatusView{Status: domain.JobStatusPending}, []string{`"mealPlanId":null`, `"errorMessage":null`}},
		{"completed", JobStatusView{Status: domain.JobStatusCompleted, MealPlanID: &planID}, []string{`"mealPlanId":"` + planID + `"`, `"errorMessage":null`}},
		{"failed", JobStatusView{Status: domain.JobStatusFailed, ErrorMessage: &failure}, []string{`"mealPlanId":null`, `"errorMessage":"` + failure + `"`}},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			b, err := json.Marshal(testCase.view)
			if err != nil {
				t.Fatal(err)
			}
			for _, want := range testCase.want {
				if !strings.Contains(string(b), want) {
					t.Errorf("%s does not contain %s", b, want)
				}
			}
		})
	}
}

func TestCreateJobValidation(t *testing.T) {
	zeroMacros := func(f *jobFixture) { f.profiles.profiles[f.userID].MacroTargets = domain.Macros{} }
	tests := []struct {
		name    string
		setup   func(f *jobFixture)
		mutate  func(r *domain.GenerationRequest)
		wantErr error
	}{
		{
			name:    "bad week start",
			mutate:  func(r *domain.GenerationRequest) { r.WeekStart = "03/03/2025" },
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "more meal types than meals",
			mutate:  func(r *domain.GenerationRequest) { r.MealsPerDay = 2 },
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "missing profile",
			setup:   func(f *jobFixture) { delete(f.profiles.profiles, f.userID) },
			wantErr: ErrInvalidRequest,
		},
		{
			name:    "profile without macro targets",
			setup:   zeroMacros,
			wantErr: ErrInvalidRequest,
		},
		{
			name:  "request overrides missing macro targets",
			setup: zeroMacros,
			mutate: func(r *domain.GenerationRequest) {
				r.MacroTargets = &domain.Macros{Calories: 1800, Protein: 120, Carbs: 180, Fat: 60}
			},
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			f := newJobFixture(t)
			if testCase.setup != nil {
				testCase.setup(f)
			}
			req := validRequest()
			if testCase.mutate != nil {
				testCase.mutate(&req)
			}
			_, err := f.svc.CreateJob(context.Background(), f.userID, req)
			if testCase.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, testCase.wantErr) {
				t.Fatalf("expected %v, got %v", testCase.wantErr, err)
			}
			if len(f.sched.queue) != 0 {
				t.Errorf("rejected request must not schedule work")
			}
		})
	}
}

func TestCreateJobConflictWhileActive(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreateJob(ctx, f.userID, validRequest())
	if err != nil {
		t.Fatalf("first CreateJob: %v", err)
	}
	firstID, _ := primitive.ObjectIDFromHex(first.JobID)
	if err := f.jobs.Transition(ctx, firstID, domain.JobStatusPending, domain.JobStatusGeneratingIngredients); err != nil {
		t.Fatal(err)
	}
	if err := f.jobs.Transition(ctx, firstID, domain.JobStatusGeneratingIngredients, domain.JobStatusGeneratingMeals); err != nil {
		t.Fatal(err)
	}
	before := f.jobs.get(firstID)

	f.clock.Advance(5 * time.Minute)
	if _, err := f.svc.CreateJob(ctx, f.userID, validRequest()); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
	after := f.jobs.get(firstID)
	if after.Status != domain.JobStatusGeneratingMeals || !after.Active || !after.UpdatedAt.Equal(before.UpdatedAt) {
		t.Errorf("in-flight job was touched by the rejected request: %+v", after)
	}
	if len(f.sched.queue) != 1 {
		t.Errorf("rejected request must not schedule work, queue has %d", len(f.sched.queue))
	}

	// another week is independent
	other := validRequest()
	other.WeekStart = "2025-03-10"
	if _, err := f.svc.CreateJob(ctx, f.userID, other); err != nil {
		t.Errorf("other week: %v", err)
	}
}

func TestCreateJobClosesStaleActiveJob(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()

	first, err := f.svc.CreateJob(ctx, f.userID, validRequest())
	if err != nil {
		t.Fatalf("first CreateJob: %v", err)
	}
	f.clock.Advance(16 * time.Minute)

	second, err := f.svc.CreateJob(ctx, f.userID, validRequest())
	if err != nil {
		t.Fatalf("CreateJob after stale job: %v", err)
	}
	if second.JobID == first.JobID {
		t.Fatal("expected a new job")
	}

	firstID, _ := primitive.ObjectIDFromHex(first.JobID)
	closed := f.jobs.get(firstID)
	if closed.Status != domain.JobStatusFailed || closed.ErrorMessage == nil || closed.Active {
		t.Errorf("stale job should be closed as failed: %+v", closed)
	}

	// the stale job's worker wakes up late and must not overwrite anything
	f.sched.runAll(ctx)
	if closed := f.jobs.get(firstID); closed.Status != domain.JobStatusFailed {
		t.Errorf("stale job was resurrected: %s", closed.Status)
	}
}

func TestGetStatusReportsStaleJobAsFailed(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()

	view, err := f.svc.CreateJob(ctx, f.userID, validRequest())
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	jobID, _ := primitive.ObjectIDFromHex(view.JobID)

	f.clock.Advance(10 * time.Minute)
	status, err := f.svc.GetStatus(ctx, jobID, f.userID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.Status != domain.JobStatusPending {
		t.Errorf("job within the stale window should still be pending, got %s", status.Status)
	}

	f.clock.Advance(6 * time.Minute)
	status, err = f.svc.GetStatus(ctx, jobID, f.userID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.Status != domain.JobStatusFailed || status.ErrorMessage == nil || status.MealPlanID != nil {
		t.Errorf("expected stale job reported failed, got %+v", status)
	}
	if stored := f.jobs.get(jobID); stored.Status != domain.JobStatusPending {
		t.Errorf("reading status must not write, stored status %s", stored.Status)
	}
}

func TestGetStatusHidesOtherUsersJobs(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()

	view, err := f.svc.CreateJob(ctx, f.userID, validRequest())
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	jobID, _ := primitive.ObjectIDFromHex(view.JobID)

	if _, err := f.svc.GetStatus(ctx, jobID, primitive.NewObjectID()); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound for another user, got %v", err)
	}
	if _, err := f.svc.GetStatus(ctx, primitive.NewObjectID(), f.userID); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound for unknown job, got %v", err)
	}
}

func TestExecuteCompletesJob(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()

	view, err := f.svc.CreateJob(ctx, f.userID, validRequest())
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	f.sched.runAll(ctx)

	jobID, _ := primitive.ObjectIDFromHex(view.JobID)
	status, err := f.svc.GetStatus(ctx, jobID, f.userID)
	if err != nil {
		t.Fatalf("GetStatus: %v", err)
	}
	if status.Status != domain.JobStatusCompleted || status.MealPlanID == nil || status.ErrorMessage != nil {
		t.Fatalf("unexpected final status %+v", status)
	}

	planID, _ := primitive.ObjectIDFromHex(*status.MealPlanID)
	plan, err := f.plans.GetByID(ctx, planID)
	if err != nil {
		t.Fatalf("plan not stored: %v", err)
	}
	if plan.OwnerID != f.userID || plan.JobID != jobID || plan.WeekStart != "2025-03-03" || len(plan.Days) != 7 {
		t.Errorf("unexpected plan %+v", plan)
	}
	if stored := f.jobs.get(jobID); len(stored.Stages) != 1 || stored.Active {
		t.Errorf("expected stage metrics on a closed job, got %+v", stored)
	}
}

func TestExecuteFailures(t *testing.T) {
	tests := []struct {
		name        string
		setup       func(f *jobFixture)
		wantMessage string
	}{
		{
			name: "model unavailable",
			setup: func(f *jobFixture) {
				f.gen.err = fmt.Errorf("stage meals: %w", generation.ErrGenerationUnavailable)
				f.gen.failAt = domain.JobStatusGeneratingMeals
			},
			wantMessage: unavailableMessage,
		},
		{
			name: "invalid output after retries",
			setup: func(f *jobFixture) {
				f.gen.err = fmt.Errorf("stage meals: %w", generation.ErrSchemaViolation)
			},
			wantMessage: invalidOutputMessage,
		},
		{
			name:        "generator panics",
			setup:       func(f *jobFixture) { f.gen.panics = true },
			wantMessage: internalErrorMessage,
		},
		{
			name:        "plan cannot be saved",
			setup:       func(f *jobFixture) { f.plans.createErr = errors.New("disk full") },
			wantMessage: internalErrorMessage,
		},
	}

	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			f := newJobFixture(t)
			testCase.setup(f)
			ctx := context.Background()

			view, err := f.svc.CreateJob(ctx, f.userID, validRequest())
			if err != nil {
				t.Fatalf("CreateJob: %v", err)
			}
			f.sched.runAll(ctx)

			jobID, _ := primitive.ObjectIDFromHex(view.JobID)
			status, err := f.svc.GetStatus(ctx, jobID, f.userID)
			if err != nil {
				t.Fatalf("GetStatus: %v", err)
			}
			if status.Status != domain.JobStatusFailed || status.MealPlanID != nil {
				t.Fatalf("expected failed job without plan, got %+v", status)
			}
			if status.ErrorMessage == nil || *status.ErrorMessage != testCase.wantMessage {
				t.Errorf("error message = %v, want %q", status.ErrorMessage, testCase.wantMessage)
			}
			if f.plans.count() != 0 {
				t.Errorf("failed job left %d plans behind", f.plans.count())
			}
			// the week is free again
			if _, err := f.svc.CreateJob(ctx, f.userID, validRequest()); err != nil {
				t.Errorf("retry after failure: %v", err)
			}
		})
	}
}

func TestRegenerateRules(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()

	if _, err := f.svc.CreateJob(ctx, f.userID, validRequest()); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	f.sched.runAll(ctx)

	if _, err := f.svc.CreateJob(ctx, f.userID, validRequest()); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("existing plan without regenerate: expected ErrInvalidRequest, got %v", err)
	}

	regen := validRequest()
	regen.Regenerate = true
	_, err := f.svc.CreateJob(ctx, f.userID, regen)
	if !errors.Is(err, ErrInvalidRequest) || !strings.Contains(err.Error(), "moments ago") {
		t.Errorf("regenerate inside debounce window: expected ErrInvalidRequest, got %v", err)
	}

	f.clock.Advance(2 * time.Minute)
	if _, err := f.svc.CreateJob(ctx, f.userID, regen); err != nil {
		t.Errorf("regenerate after debounce: %v", err)
	}
}

func TestGetLatestForWeek(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()

	if _, err := f.svc.GetLatestForWeek(ctx, f.userID, "2025-03-03"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound before any job, got %v", err)
	}
	if _, err := f.svc.GetLatestForWeek(ctx, f.userID, "next week"); !errors.Is(err, ErrInvalidRequest) {
		t.Errorf("expected ErrInvalidRequest for a bad date, got %v", err)
	}

	view, err := f.svc.CreateJob(ctx, f.userID, validRequest())
	if err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	latest, err := f.svc.GetLatestForWeek(ctx, f.userID, "2025-03-03")
	if err != nil {
		t.Fatalf("GetLatestForWeek: %v", err)
	}
	if latest.JobID != view.JobID {
		t.Errorf("latest job = %s, want %s", latest.JobID, view.JobID)
	}
}

func TestGetTranscriptURL(t *testing.T) {
	f := newJobFixture(t)
	ctx := context.Background()

	withKey := domain.GenerationJob{
		ID:            primitive.NewObjectID(),
		UserID:        f.userID,
		WeekStart:     "2025-03-03",
		Status:        domain.JobStatusFailed,
		TranscriptKey: "transcripts/abc/1.json",
		CreatedAt:     f.clock.Now(),
	}
	withoutKey := withKey
	withoutKey.ID = primitive.NewObjectID()
	withoutKey.TranscriptKey = ""
	f.jobs.insert(withKey)
	f.jobs.insert(withoutKey)

	url, err := f.svc.GetTranscriptURL(ctx, withKey.ID, f.userID)
	if err != nil {
		t.Fatalf("GetTranscriptURL: %v", err)
	}
	if !strings.Contains(url, "transcripts/abc/1.json") {
		t.Errorf("unexpected url %s", url)
	}
	if f.store.expires != 5*time.Minute {
		t.Errorf("presigned url lifetime = %s, want 5m", f.store.expires)
	}
	if _, err := f.svc.GetTranscriptURL(ctx, withoutKey.ID, f.userID); !errors.Is(err, ErrTranscriptUnavailable) {
		t.Errorf("expected ErrTranscriptUnavailable, got %v", err)
	}
	if _, err := f.svc.GetTranscriptURL(ctx, withKey.ID, primitive.NewObjectID()); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("expected ErrJobNotFound for another user, got %v", err)
	}
}

func TestFailureMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"unavailable", fmt.Errorf("x: %w", generation.ErrGenerationUnavailable), unavailableMessage},
		{"schema", fmt.Errorf("x: %w", generation.ErrSchemaViolation), invalidOutputMessage},
		{"deadline", context.DeadlineExceeded, staleJobMessage},
		{"other", errors.New("boom"), internalErrorMessage},
	}
	for _, testCase := range tests {
		t.Run(testCase.name, func(t *testing.T) {
			if got := failureMessage(testCase.err); got != testCase.want {
				t.Errorf("failureMessage() = %q, want %q", got, testCase.want)
			}
		})
	}
}
