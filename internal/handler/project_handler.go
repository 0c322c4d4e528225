package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"freelancehub/internal/service/catalog"
	"freelancehub/internal/service/lifecycle"
)

type ProjectHandler struct {
	engine  *lifecycle.Engine
	catalog *catalog.Service
	logger  *zap.Logger
}

func NewProjectHandler(engine *lifecycle.Engine, catalog *catalog.Service, logger *zap.Logger) *ProjectHandler {
	return &ProjectHandler{engine: engine, catalog: catalog, logger: logger}
}

// Create handles POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	caller, ok := mustIdentity(c)
	if !ok {
		return
	}

	var req struct {
		Title             string   `json:"title"`
		Description       string   `json:"description"`
		Budget            float64  `json:"budget"`
		Deadline          string   `json:"deadline"`
		ExpectedWorkHours *int     `json:"expected_work_hours"`
		Categories        []string `json:"categories"`
		SkillIDs          []int64  `json:"skill_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	project, err := h.engine.CreateProject(c.Request.Context(), caller, lifecycle.ProjectInput{
		Title:             req.Title,
		Description:       req.Description,
		Budget:            req.Budget,
		Deadline:          req.Deadline,
		ExpectedWorkHours: req.ExpectedWorkHours,
		Categories:        req.Categories,
		SkillIDs:          req.SkillIDs,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, project)
}

// Available handles GET /api/projects/available
func (h *ProjectHandler) Available(c *gin.Context) {
	caller, ok := mustIdentity(c)
	if !ok {
		return
	}

	var (
		f   catalog.AvailableFilter
		err error
	)
	if f.MinBudget, err = queryFloat(c, "min_budget"); err != nil {
		writeError(c, h.logger, err)
		return
	}
	if f.MaxBudget, err = queryFloat(c, "max_budget"); err != nil {
		writeError(c, h.logger, err)
		return
	}
	if f.MinWorkHours, err = queryInt(c, "min_work_hours"); err != nil {
		writeError(c, h.logger, err)
		return
	}
	if f.MaxWorkHours, err = queryInt(c, "max_work_hours"); err != nil {
		writeError(c, h.logger, err)
		return
	}
	if f.SkillIDs, err = queryIDs(c, "skills"); err != nil {
		writeError(c, h.logger, err)
		return
	}

	projects, err := h.catalog.ListAvailable(c.Request.Context(), caller, f)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// Mine handles GET /api/projects/client
func (h *ProjectHandler) Mine(c *gin.Context) {
	caller, ok := mustIdentity(c)
	if !ok {
		return
	}
	projects, err := h.catalog.ListClientProjects(c.Request.Context(), caller)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"projects": projects})
}

// Get handles GET /api/projects/:id
func (h *ProjectHandler) Get(c *gin.Context) {
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	project, err := h.catalog.GetProject(c.Request.Context(), id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// Proposals handles GET /api/projects/:id/proposals?sort=rating|price
func (h *ProjectHandler) Proposals(c *gin.Context) {
	caller, ok := mustIdentity(c)
	if !ok {
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	by, err := catalog.ParseSort(c.Query("sort"))
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	proposals, err := h.catalog.ListProjectProposals(c.Request.Context(), caller, id, by)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": proposals})
}

// Complete handles PUT /api/projects/:id/complete
func (h *ProjectHandler) Complete(c *gin.Context) {
	caller, ok := mustIdentity(c)
	if !ok {
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	project, err := h.engine.CompleteProject(c.Request.Context(), caller, id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, project)
}

// Rate handles POST /api/projects/:id/rating
func (h *ProjectHandler) Rate(c *gin.Context) {
	caller, ok := mustIdentity(c)
	if !ok {
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	var req struct {
		Score  int    `json:"score"`
		Review string `json:"review"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	rating, err := h.engine.RateFreelancer(c.Request.Context(), caller, id, req.Score, req.Review)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, rating)
}
