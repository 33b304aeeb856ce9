package service

import (
	"alcyxob/meal-planner/internal/domain"
	"alcyxob/meal-planner/internal/generation"
	"alcyxob/meal-planner/internal/repository"
	"alcyxob/meal-planner/internal/storage"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// --- Error Definitions ---
var (
	ErrInvalidRequest        = errors.New("invalid generation request")
	ErrConflict              = errors.New("a meal plan is already being generated for this week")
	ErrJobNotFound           = errors.New("generation job not found")
	ErrTranscriptUnavailable = errors.New("no transcript archived for this job")
)

const (
	staleJobMessage       = "Generation timed out. Please try again."
	unavailableMessage    = "The meal generation service is unavailable right now. Please try again later."
	invalidOutputMessage  = "We couldn't generate a valid meal plan. Please try again."
	internalErrorMessage  = "Something went wrong while generating your meal plan."
	finalizeWriteDeadline = 15 * time.Second
)

// PlanGenerator produces the content of a week plan. *generation.Orchestrator satisfies it.
type PlanGenerator interface {
	Run(ctx context.Context, in generation.Input, progress generation.ProgressFunc, tr *generation.Transcript) (*generation.Result, error)
}

// JobStatusView is what clients poll. MealPlanID and ErrorMessage are exclusive.
type JobStatusView struct {
	JobID           string           `json:"jobId"`
	WeekStart       string           `json:"weekStart"`
	Status          domain.JobStatus `json:"status"`
	ProgressMessage string           `json:"progressMessage"`
	MealPlanID      *string          `json:"mealPlanId"`
	ErrorMessage    *string          `json:"errorMessage"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

// JobSettings holds the timing and archive knobs of the job service.
type JobSettings struct {
	StaleAfter         time.Duration
	RegenerateDebounce time.Duration
	TranscriptPrefix   string
	TranscriptURLTTL   time.Duration
	Now                func() time.Time // defaults to time.Now
}

// --- Service Interface ---
type JobService interface {
	CreateJob(ctx context.Context, userID primitive.ObjectID, req domain.GenerationRequest) (*JobStatusView, error)
	GetStatus(ctx context.Context, jobID, userID primitive.ObjectID) (*JobStatusView, error)
	GetLatestForWeek(ctx context.Context, userID primitive.ObjectID, weekStart string) (*JobStatusView, error)
	GetTranscriptURL(ctx context.Context, jobID, userID primitive.ObjectID) (string, error)
	// Execute runs a pending job to a terminal state. Called by the scheduler.
	Execute(ctx context.Context, jobID primitive.ObjectID)
}

// --- Service Implementation ---

type jobService struct {
	jobRepo     repository.JobRepository
	planRepo    repository.MealPlanRepository
	profileRepo repository.ProfileRepository
	generator   PlanGenerator
	scheduler   Scheduler
	transcripts storage.FileStorage
	settings    JobSettings
}

// NewJobService creates a new JobService.
func NewJobService(
	jobRepo repository.JobRepository,
	planRepo repository.MealPlanRepository,
	profileRepo repository.ProfileRepository,
	generator PlanGenerator,
	scheduler Scheduler,
	transcripts storage.FileStorage,
	settings JobSettings,
) JobService {
	if settings.Now == nil {
		settings.Now = time.Now
	}
	if transcripts == nil {
		transcripts = storage.NewDisabledStorage()
	}
	return &jobService{
		jobRepo:     jobRepo,
		planRepo:    planRepo,
		profileRepo: profileRepo,
		generator:   generator,
		scheduler:   scheduler,
		transcripts: transcripts,
		settings:    settings,
	}
}

// CreateJob validates the request, claims the week and schedules generation.
// It returns as soon as the pending job is stored.
func (s *jobService) CreateJob(ctx context.Context, userID primitive.ObjectID, req domain.GenerationRequest) (*JobStatusView, error) {
	// 1. Validate Input
	if userID == primitive.NilObjectID {
		return nil, fmt.Errorf("%w: user ID is required", ErrInvalidRequest)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	// 2. The profile must carry usable macro targets unless the request overrides them
	profile, err := s.profileRepo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%w: complete your profile before generating a meal plan", ErrInvalidRequest)
		}
		return nil, err
	}
	targets := profile.MacroTargets
	if req.MacroTargets != nil {
		targets = *req.MacroTargets
	}
	if !targets.AllPositive() {
		return nil, fmt.Errorf("%w: macro targets must be set before generating a meal plan", ErrInvalidRequest)
	}

	now := s.settings.Now()

	// 3. Only one in-flight job per week. A stale one is closed so it cannot block forever.
	active, err := s.jobRepo.GetActiveForWeek(ctx, userID, req.WeekStart)
	switch {
	case err == nil:
		if !active.IsStale(now, s.settings.StaleAfter) {
			return nil, ErrConflict
		}
		log.Printf("WARN: Closing stale generation job %s for user %s", active.ID.Hex(), userID.Hex())
		if err := s.jobRepo.Fail(ctx, active.ID, staleJobMessage); err != nil && !errors.Is(err, repository.ErrStaleWrite) {
			return nil, err
		}
	case !errors.Is(err, repository.ErrNotFound):
		return nil, err
	}

	// 4. An existing plan is only replaced on explicit request, and not too often
	exists, err := s.planRepo.ExistsForWeek(ctx, userID, req.WeekStart)
	if err != nil {
		return nil, err
	}
	if exists {
		if !req.Regenerate {
			return nil, fmt.Errorf("%w: a meal plan already exists for week %s, set regenerate to replace it", ErrInvalidRequest, req.WeekStart)
		}
		latest, err := s.jobRepo.GetLatestForWeek(ctx, userID, req.WeekStart)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		// Regenerate is rejected while the latest job for the week is younger
		// than RegenerateDebounce, whatever that job's outcome.
		if latest != nil && now.Sub(latest.CreatedAt) < s.settings.RegenerateDebounce {
			return nil, fmt.Errorf("%w: this week was regenerated moments ago, wait before trying again", ErrInvalidRequest)
		}
	}

	// 5. Claim the week. The unique index turns a lost race into ErrDuplicate.
	job := &domain.GenerationJob{
		UserID:    userID,
		WeekStart: req.WeekStart,
		Request:   req,
	}
	jobID, err := s.jobRepo.Create(ctx, job)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrConflict
		}
		return nil, err
	}
	job.ID = jobID

	s.scheduler.Go(func(ctx context.Context) {
		s.Execute(ctx, jobID)
	})

	log.Printf("INFO: Generation job %s created for user %s, week %s", jobID.Hex(), userID.Hex(), req.WeekStart)
	return s.viewOf(job, now), nil
}

// GetStatus returns the job as its owner sees it.
func (s *jobService) GetStatus(ctx context.Context, jobID, userID primitive.ObjectID) (*JobStatusView, error) {
	job, err := s.ownedJob(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}
	return s.viewOf(job, s.settings.Now()), nil
}

// GetLatestForWeek returns the most recent job for the week, so a client that
// lost its job ID can resume polling.
func (s *jobService) GetLatestForWeek(ctx context.Context, userID primitive.ObjectID, weekStart string) (*JobStatusView, error) {
	if _, err := time.Parse(domain.WeekStartLayout, weekStart); err != nil {
		return nil, fmt.Errorf("%w: weekStart must be a YYYY-MM-DD date", ErrInvalidRequest)
	}
	job, err := s.jobRepo.GetLatestForWeek(ctx, userID, weekStart)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return s.viewOf(job, s.settings.Now()), nil
}

// GetTranscriptURL returns a short-lived download link for the job's archived transcript.
func (s *jobService) GetTranscriptURL(ctx context.Context, jobID, userID primitive.ObjectID) (string, error) {
	job, err := s.ownedJob(ctx, jobID, userID)
	if err != nil {
		return "", err
	}
	if job.TranscriptKey == "" {
		return "", ErrTranscriptUnavailable
	}
	url, err := s.transcripts.GeneratePresignedDownloadURL(ctx, job.TranscriptKey, s.settings.TranscriptURLTTL)
	if err != nil {
		if errors.Is(err, storage.ErrStorageDisabled) {
			return "", ErrTranscriptUnavailable
		}
		return "", err
	}
	return url, nil
}

func (s *jobService) ownedJob(ctx context.Context, jobID, userID primitive.ObjectID) (*domain.GenerationJob, error) {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	// Someone else's job is reported exactly like a missing one.
	if job.UserID != userID {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// viewOf projects a job for clients. A job that stopped making progress is
// reported failed without touching the stored record.
func (s *jobService) viewOf(job *domain.GenerationJob, now time.Time) *JobStatusView {
	view := &JobStatusView{
		JobID:           job.ID.Hex(),
		WeekStart:       job.WeekStart,
		Status:          job.Status,
		ProgressMessage: job.ProgressMessage,
		CreatedAt:       job.CreatedAt,
		UpdatedAt:       job.UpdatedAt,
	}
	if job.IsStale(now, s.settings.StaleAfter) {
		msg := staleJobMessage
		view.Status = domain.JobStatusFailed
		view.ProgressMessage = domain.ProgressMessageFor(domain.JobStatusFailed)
		view.ErrorMessage = &msg
		return view
	}
	switch job.Status {
	case domain.JobStatusCompleted:
		if job.ResultPlanID != nil {
			id := job.ResultPlanID.Hex()
			view.MealPlanID = &id
		}
	case domain.JobStatusFailed:
		view.ErrorMessage = job.ErrorMessage
	}
	return view
}

// Execute drives one job through generation and persistence. Every exit path
// leaves the job terminal, unless another writer already closed it.
func (s *jobService) Execute(ctx context.Context, jobID primitive.ObjectID) {
	job, err := s.jobRepo.GetByID(ctx, jobID)
	if err != nil {
		log.Printf("ERROR: Generation job %s could not be loaded: %v", jobID.Hex(), err)
		return
	}
	if job.Status != domain.JobStatusPending {
		log.Printf("WARN: Generation job %s is %s, not pending; skipping", jobID.Hex(), job.Status)
		return
	}

	tr := &generation.Transcript{}
	defer s.archiveTranscript(ctx, jobID, tr)
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("ERROR: Generation job %s panicked: %v", jobID.Hex(), rec)
			s.failJob(ctx, jobID, internalErrorMessage)
		}
	}()

	profile, err := s.profileRepo.GetByUserID(ctx, job.UserID)
	if err != nil {
		log.Printf("ERROR: Generation job %s: loading profile: %v", jobID.Hex(), err)
		s.failJob(ctx, jobID, internalErrorMessage)
		return
	}

	current := job.Status
	progress := func(ctx context.Context, next domain.JobStatus) error {
		if err := s.jobRepo.Transition(ctx, jobID, current, next); err != nil {
			return fmt.Errorf("recording progress %s: %w", next, err)
		}
		current = next
		return nil
	}

	start := time.Now()
	result, err := s.generator.Run(ctx, generation.Input{Request: job.Request, Profile: *profile}, progress, tr)
	if err != nil {
		log.Printf("ERROR: Generation job %s failed after %s: %v", jobID.Hex(), time.Since(start).Round(time.Millisecond), err)
		s.failJob(ctx, jobID, failureMessage(err))
		return
	}

	if err := progress(ctx, domain.JobStatusSaving); err != nil {
		log.Printf("ERROR: Generation job %s: %v", jobID.Hex(), err)
		s.failJob(ctx, jobID, failureMessage(err))
		return
	}

	plan := &domain.MealPlan{
		OwnerID:      job.UserID,
		JobID:        jobID,
		WeekStart:    job.WeekStart,
		Title:        result.Title,
		Theme:        job.Request.Theme,
		Days:         result.Days,
		PrepSchedule: result.PrepSchedule,
	}
	planID, err := s.planRepo.Create(ctx, plan)
	if err != nil {
		log.Printf("ERROR: Generation job %s: saving meal plan: %v", jobID.Hex(), err)
		s.failJob(ctx, jobID, failureMessage(err))
		return
	}

	writeCtx, cancel := finalizeContext(ctx)
	defer cancel()
	if err := s.jobRepo.Complete(writeCtx, jobID, planID, result.Metrics); err != nil {
		// The job must never point at a plan it did not complete with.
		log.Printf("ERROR: Generation job %s: completing: %v; removing plan %s", jobID.Hex(), err, planID.Hex())
		if delErr := s.planRepo.Delete(writeCtx, planID); delErr != nil {
			log.Printf("ERROR: Failed to remove orphaned meal plan %s: %v", planID.Hex(), delErr)
		}
		s.failJob(ctx, jobID, internalErrorMessage)
		return
	}
	log.Printf("INFO: Generation job %s completed with plan %s in %s", jobID.Hex(), planID.Hex(), time.Since(start).Round(time.Millisecond))
}

// failJob closes the job even when ctx is already done. Losing the race to
// another writer is not an error.
func (s *jobService) failJob(ctx context.Context, jobID primitive.ObjectID, message string) {
	writeCtx, cancel := finalizeContext(ctx)
	defer cancel()
	if err := s.jobRepo.Fail(writeCtx, jobID, message); err != nil && !errors.Is(err, repository.ErrStaleWrite) {
		log.Printf("ERROR: Failed to mark generation job %s as failed: %v", jobID.Hex(), err)
	}
}

func (s *jobService) archiveTranscript(ctx context.Context, jobID primitive.ObjectID, tr *generation.Transcript) {
	if tr.Len() == 0 {
		return
	}
	body, err := json.Marshal(tr)
	if err != nil {
		log.Printf("WARN: Could not encode transcript for job %s: %v", jobID.Hex(), err)
		return
	}
	writeCtx, cancel := finalizeContext(ctx)
	defer cancel()

	key := fmt.Sprintf("%s/%s/%s.json", s.settings.TranscriptPrefix, jobID.Hex(), uuid.NewString())
	if err := s.transcripts.PutObject(writeCtx, key, "application/json", body); err != nil {
		if !errors.Is(err, storage.ErrStorageDisabled) {
			log.Printf("WARN: Could not archive transcript for job %s: %v", jobID.Hex(), err)
		}
		return
	}
	if err := s.jobRepo.SetTranscriptKey(writeCtx, jobID, key); err != nil {
		log.Printf("WARN: Could not link transcript %s to job %s: %v", key, jobID.Hex(), err)
	}
}

// finalizeContext keeps ctx values but survives its cancellation, so terminal
// writes still happen after a job timeout.
func finalizeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), finalizeWriteDeadline)
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, generation.ErrGenerationUnavailable):
		return unavailableMessage
	case errors.Is(err, generation.ErrSchemaViolation):
		return invalidOutputMessage
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return staleJobMessage
	}
	return internalErrorMessage
}
