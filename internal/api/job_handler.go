package api

import (
	"alcyxob/meal-planner/internal/domain"
	"alcyxob/meal-planner/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

// JobHandler exposes meal plan generation and its progress.
type JobHandler struct {
	jobService service.JobService
}

// NewJobHandler creates a new JobHandler.
func NewJobHandler(jobService service.JobService) *JobHandler {
	return &JobHandler{jobService: jobService}
}

// --- DTOs ---

// GenerateMealPlanRequest is the body of a generation request.
type GenerateMealPlanRequest struct {
	WeekStart    string                                `json:"weekStart" binding:"required"`
	MealsPerDay  int                                   `json:"mealsPerDay" binding:"required,min=1,max=6"`
	MealTypes    []domain.MealType                     `json:"mealTypes" binding:"required,min=1,dive,required"`
	Complexity   map[domain.MealType]domain.Complexity `json:"complexity"`
	Theme        string                                `json:"theme" binding:"omitempty,max=200"`
	ProteinFocus *domain.ProteinFocus                  `json:"proteinFocus"`
	Household    domain.HouseholdServingsConfig        `json:"household"`
	MacroTargets *domain.Macros                        `json:"macroTargets"`
	Regenerate   bool                                  `json:"regenerate"`
}

func (r GenerateMealPlanRequest) toDomain() domain.GenerationRequest {
	return domain.GenerationRequest{
		WeekStart:    r.WeekStart,
		MealsPerDay:  r.MealsPerDay,
		MealTypes:    r.MealTypes,
		Complexity:   r.Complexity,
		Theme:        r.Theme,
		ProteinFocus: r.ProteinFocus,
		Household:    r.Household,
		MacroTargets: r.MacroTargets,
		Regenerate:   r.Regenerate,
	}
}

// TranscriptResponse carries a temporary download link.
type TranscriptResponse struct {
	URL string `json:"url"`
}

// --- Handler Methods ---

// GenerateMealPlan godoc
// @Summary Start generating a week plan
// @Description Accepts the request and returns immediately with a job to poll.
// @Tags Generation
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body GenerateMealPlanRequest true "Generation options"
// @Success 202 {object} service.JobStatusView
// @Failure 400 {object} gin.H "Invalid request or profile incomplete"
// @Failure 409 {object} gin.H "Generation already running for this week"
// @Router /meal-plans/generate [post]
func (h *JobHandler) GenerateMealPlan(c *gin.Context) {
	var req GenerateMealPlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	view, err := h.jobService.CreateJob(c.Request.Context(), userID, req.toDomain())
	if err != nil {
		respondServiceError(c, err, "Failed to start meal plan generation.")
		return
	}
	c.JSON(http.StatusAccepted, view)
}

// GetJobStatus godoc
// @Summary Poll a generation job
// @Tags Generation
// @Produce json
// @Security BearerAuth
// @Param jobId path string true "Job ID"
// @Success 200 {object} service.JobStatusView
// @Failure 404 {object} gin.H "Job not found"
// @Router /generation-jobs/{jobId} [get]
func (h *JobHandler) GetJobStatus(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	jobID, ok := pathObjectID(c, "jobId")
	if !ok {
		return
	}

	view, err := h.jobService.GetStatus(c.Request.Context(), jobID, userID)
	if err != nil {
		respondServiceError(c, err, "Failed to retrieve job status.")
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetLatestJob returns the newest job for ?weekStart=YYYY-MM-DD.
func (h *JobHandler) GetLatestJob(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	weekStart := c.Query("weekStart")
	if weekStart == "" {
		abortWithError(c, http.StatusBadRequest, "weekStart query parameter is required.")
		return
	}

	view, err := h.jobService.GetLatestForWeek(c.Request.Context(), userID, weekStart)
	if err != nil {
		respondServiceError(c, err, "Failed to retrieve job status.")
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetTranscript returns a presigned link to the job's model transcript.
func (h *JobHandler) GetTranscript(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	jobID, ok := pathObjectID(c, "jobId")
	if !ok {
		return
	}

	url, err := h.jobService.GetTranscriptURL(c.Request.Context(), jobID, userID)
	if err != nil {
		respondServiceError(c, err, "Failed to prepare transcript download.")
		return
	}
	c.JSON(http.StatusOK, TranscriptResponse{URL: url})
}
