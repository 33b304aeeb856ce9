package api

import (
	"alcyxob/meal-planner/internal/service"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	jobService service.JobService,
	planService service.PlanService,
	groceryService service.GroceryService,
) {
	jobHandler := NewJobHandler(jobService)
	mealPlanHandler := NewMealPlanHandler(planService, groceryService)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			userIDStr, err := getUserIDFromContext(c)
			if err != nil {
				abortWithError(c, http.StatusInternalServerError, "Failed to get user ID from token")
				return
			}
			c.JSON(http.StatusOK, gin.H{"userId": userIDStr})
		})

		// --- Meal Plan Routes ---
		planGroup := protected.Group("/meal-plans")
		{
			// POST /api/v1/meal-plans/generate - returns 202 with a job to poll
			planGroup.POST("/generate", jobHandler.GenerateMealPlan)
			planGroup.GET("", mealPlanHandler.ListMealPlans)
			planGroup.GET("/:planId", mealPlanHandler.GetMealPlan)
			planGroup.GET("/:planId/grocery-list", mealPlanHandler.GetGroceryList)
			planGroup.PUT("/:planId/favorite", mealPlanHandler.SetFavorite)
			planGroup.PUT("/:planId/cooking-status", mealPlanHandler.SetCookingStatus)
			planGroup.POST("/:planId/swap", mealPlanHandler.SwapMeals)
		}

		// --- Generation Job Routes ---
		jobGroup := protected.Group("/generation-jobs")
		{
			// GET /api/v1/generation-jobs/latest?weekStart=2025-03-03
			jobGroup.GET("/latest", jobHandler.GetLatestJob)
			jobGroup.GET("/:jobId", jobHandler.GetJobStatus)
			jobGroup.GET("/:jobId/transcript", jobHandler.GetTranscript)
		}
	}
}
