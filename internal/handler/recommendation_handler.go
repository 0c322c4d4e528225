package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"freelancehub/internal/service/recommend"
)

type RecommendationHandler struct {
	recommender *recommend.Service
	logger      *zap.Logger
}

func NewRecommendationHandler(recommender *recommend.Service, logger *zap.Logger) *RecommendationHandler {
	return &RecommendationHandler{recommender: recommender, logger: logger}
}

// Projects handles GET /api/recommendations/projects
func (h *RecommendationHandler) Projects(c *gin.Context) {
	caller, ok := mustIdentity(c)
	if !ok {
		return
	}
	result, err := h.recommender.GetRecommendations(c.Request.Context(), caller)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Preferences handles POST /api/recommendations/preferences
func (h *RecommendationHandler) Preferences(c *gin.Context) {
	caller, ok := mustIdentity(c)
	if !ok {
		return
	}

	var req struct {
		MinBudget           *float64 `json:"min_budget"`
		MaxBudget           *float64 `json:"max_budget"`
		ExpectedWorkHours   *int     `json:"expected_work_hours"`
		PreferredCategories []string `json:"preferred_categories"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	pref, err := h.recommender.SetPreferences(c.Request.Context(), caller, recommend.PreferenceInput{
		MinBudget:           req.MinBudget,
		MaxBudget:           req.MaxBudget,
		ExpectedWorkHours:   req.ExpectedWorkHours,
		PreferredCategories: req.PreferredCategories,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "preferences updated", "preferences": pref})
}
