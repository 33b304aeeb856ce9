package api

import (
	"alcyxob/meal-planner/internal/domain"
	"alcyxob/meal-planner/internal/service"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// MealPlanHandler serves stored plans and their grocery lists.
type MealPlanHandler struct {
	planService    service.PlanService
	groceryService service.GroceryService
}

// NewMealPlanHandler creates a new MealPlanHandler.
func NewMealPlanHandler(planService service.PlanService, groceryService service.GroceryService) *MealPlanHandler {
	return &MealPlanHandler{planService: planService, groceryService: groceryService}
}

// --- DTOs ---

// SetFavoriteRequest flags a plan.
type SetFavoriteRequest struct {
	// pointer so an explicit false passes "required"
	Favorite *bool `json:"favorite" binding:"required"`
}

// SetCookingStatusRequest updates one meal.
type SetCookingStatusRequest struct {
	Day      domain.DayOfWeek     `json:"day" binding:"required"`
	MealType domain.MealType      `json:"mealType" binding:"required"`
	Status   domain.CookingStatus `json:"status" binding:"required"`
}

// SwapMealsRequest exchanges two meals.
type SwapMealsRequest struct {
	First  service.SlotRef `json:"first" binding:"required"`
	Second service.SlotRef `json:"second" binding:"required"`
}

// --- Handler Methods ---

// ListMealPlans godoc
// @Summary List the caller's plans, newest week first
// @Tags MealPlans
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Max plans (default 20, max 100)"
// @Success 200 {array} domain.MealPlan
// @Router /meal-plans [get]
func (h *MealPlanHandler) ListMealPlans(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	var limit int64
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 {
			abortWithError(c, http.StatusBadRequest, "limit must be a positive integer.")
			return
		}
		limit = parsed
	}

	plans, err := h.planService.ListPlans(c.Request.Context(), userID, limit)
	if err != nil {
		respondServiceError(c, err, "Failed to retrieve meal plans.")
		return
	}
	c.JSON(http.StatusOK, plans)
}

// GetMealPlan godoc
// @Summary Get one plan
// @Tags MealPlans
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Success 200 {object} domain.MealPlan
// @Failure 404 {object} gin.H "Plan not found"
// @Router /meal-plans/{planId} [get]
func (h *MealPlanHandler) GetMealPlan(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	planID, ok := pathObjectID(c, "planId")
	if !ok {
		return
	}

	plan, err := h.planService.GetPlan(c.Request.Context(), planID, userID)
	if err != nil {
		respondServiceError(c, err, "Failed to retrieve meal plan.")
		return
	}
	c.JSON(http.StatusOK, plan)
}

// GetGroceryList godoc
// @Summary Aggregated shopping list for a plan
// @Tags MealPlans
// @Produce json
// @Security BearerAuth
// @Param planId path string true "Plan ID"
// @Success 200 {object} service.GroceryList
// @Failure 404 {object} gin.H "Plan not found"
// @Router /meal-plans/{planId}/grocery-list [get]
func (h *MealPlanHandler) GetGroceryList(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	planID, ok := pathObjectID(c, "planId")
	if !ok {
		return
	}

	list, err := h.groceryService.GetGroceryList(c.Request.Context(), planID, userID)
	if err != nil {
		respondServiceError(c, err, "Failed to build grocery list.")
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *MealPlanHandler) SetFavorite(c *gin.Context) {
	var req SetFavoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	planID, ok := pathObjectID(c, "planId")
	if !ok {
		return
	}

	plan, err := h.planService.SetFavorite(c.Request.Context(), planID, userID, *req.Favorite)
	if err != nil {
		respondServiceError(c, err, "Failed to update meal plan.")
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *MealPlanHandler) SetCookingStatus(c *gin.Context) {
	var req SetCookingStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	planID, ok := pathObjectID(c, "planId")
	if !ok {
		return
	}

	slot := service.SlotRef{Day: req.Day, MealType: req.MealType}
	plan, err := h.planService.SetCookingStatus(c.Request.Context(), planID, userID, slot, req.Status)
	if err != nil {
		respondServiceError(c, err, "Failed to update meal plan.")
		return
	}
	c.JSON(http.StatusOK, plan)
}

func (h *MealPlanHandler) SwapMeals(c *gin.Context) {
	var req SwapMealsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}
	userID, ok := currentUserID(c)
	if !ok {
		return
	}
	planID, ok := pathObjectID(c, "planId")
	if !ok {
		return
	}

	plan, err := h.planService.SwapMeals(c.Request.Context(), planID, userID, req.First, req.Second)
	if err != nil {
		respondServiceError(c, err, "Failed to update meal plan.")
		return
	}
	c.JSON(http.StatusOK, plan)
}
