package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// JobStatus is the lifecycle state of a GenerationJob.
type JobStatus string

const (
	JobStatusPending               JobStatus = "pending"
	JobStatusGeneratingIngredients JobStatus = "generating_ingredients"
	JobStatusGeneratingMeals       JobStatus = "generating_meals"
	JobStatusGeneratingPrep        JobStatus = "generating_prep"
	JobStatusSaving                JobStatus = "saving"
	JobStatusCompleted             JobStatus = "completed"
	JobStatusFailed                JobStatus = "failed"
)

// successPath is the only order in which a job may advance; failed is reachable from any non-terminal state.
var successPath = []JobStatus{
	JobStatusPending,
	JobStatusGeneratingIngredients,
	JobStatusGeneratingMeals,
	JobStatusGeneratingPrep,
	JobStatusSaving,
	JobStatusCompleted,
}

// IsTerminal reports whether no further transitions are allowed.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// IsValid reports whether s is a known status.
func (s JobStatus) IsValid() bool {
	return s == JobStatusFailed || s.pathIndex() >= 0
}

func (s JobStatus) pathIndex() int {
	for i, st := range successPath {
		if st == s {
			return i
		}
	}
	return -1
}

// CanTransitionTo reports whether moving from s to next is legal.
// The success path never skips a state.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s.IsTerminal() || !s.IsValid() {
		return false
	}
	if next == JobStatusFailed {
		return true
	}
	from, to := s.pathIndex(), next.pathIndex()
	return to >= 0 && to == from+1
}

// StageMetric records what a single generation stage cost.
type StageMetric struct {
	Stage            string        `bson:"stage" json:"stage"`
	Attempts         int           `bson:"attempts" json:"attempts"`
	Outcome          string        `bson:"outcome" json:"outcome"`
	PromptTokens     int           `bson:"promptTokens" json:"promptTokens"`
	CompletionTokens int           `bson:"completionTokens" json:"completionTokens"`
	Latency          time.Duration `bson:"latency" json:"latency"`
}

// GenerationJob is the durable record of one asynchronous meal-plan generation.
// Once terminal, exactly one of ResultPlanID / ErrorMessage is set.
type GenerationJob struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	UserID          primitive.ObjectID  `bson:"userId" json:"userId"`
	WeekStart       string              `bson:"weekStart" json:"weekStart"` // YYYY-MM-DD
	Status          JobStatus           `bson:"status" json:"status"`
	ProgressMessage string              `bson:"progressMessage" json:"progressMessage"`
	ResultPlanID    *primitive.ObjectID `bson:"resultPlanId,omitempty" json:"resultPlanId,omitempty"`
	ErrorMessage    *string             `bson:"errorMessage,omitempty" json:"errorMessage,omitempty"`
	Active          bool                `bson:"active" json:"-"` // true while non-terminal, backs the one-in-flight index
	Request         GenerationRequest   `bson:"request" json:"request"`
	Stages          []StageMetric       `bson:"stages,omitempty" json:"stages,omitempty"`
	TranscriptKey   string              `bson:"transcriptKey,omitempty" json:"-"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt       time.Time           `bson:"updatedAt" json:"updatedAt"`
	CompletedAt     *time.Time          `bson:"completedAt,omitempty" json:"completedAt,omitempty"`
}

// IsStale reports whether a non-terminal job has been running longer than staleAfter.
func (j *GenerationJob) IsStale(now time.Time, staleAfter time.Duration) bool {
	if j.Status.IsTerminal() || staleAfter <= 0 {
		return false
	}
	return now.Sub(j.CreatedAt) > staleAfter
}

// ProgressMessageFor is the user-facing text stored alongside each status.
func ProgressMessageFor(s JobStatus) string {
	switch s {
	case JobStatusPending:
		return "Queued"
	case JobStatusGeneratingIngredients:
		return "Choosing ingredients for your week"
	case JobStatusGeneratingMeals:
		return "Building your meals"
	case JobStatusGeneratingPrep:
		return "Planning your prep schedule"
	case JobStatusSaving:
		return "Saving your meal plan"
	case JobStatusCompleted:
		return "Your meal plan is ready"
	case JobStatusFailed:
		return "Generation failed"
	}
	return ""
}
