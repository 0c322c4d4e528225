package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"freelancehub/internal/service/catalog"
	"freelancehub/internal/service/lifecycle"
)

type ProposalHandler struct {
	engine  *lifecycle.Engine
	catalog *catalog.Service
	logger  *zap.Logger
}

func NewProposalHandler(engine *lifecycle.Engine, catalog *catalog.Service, logger *zap.Logger) *ProposalHandler {
	return &ProposalHandler{engine: engine, catalog: catalog, logger: logger}
}

// Submit handles POST /api/projects/:id/proposals
func (h *ProposalHandler) Submit(c *gin.Context) {
	caller, ok := mustIdentity(c)
	if !ok {
		return
	}
	projectID, err := pathID(c, "id")
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	var req struct {
		CoverLetter    string  `json:"cover_letter"`
		ProposedAmount float64 `json:"proposed_amount"`
		EstimatedDays  *int    `json:"estimated_days"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badBody(c, err)
		return
	}

	proposal, err := h.engine.SubmitProposal(c.Request.Context(), caller, lifecycle.ProposalInput{
		ProjectID:      projectID,
		CoverLetter:    req.CoverLetter,
		ProposedAmount: req.ProposedAmount,
		EstimatedDays:  req.EstimatedDays,
	})
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, proposal)
}

// Mine handles GET /api/proposals/my
func (h *ProposalHandler) Mine(c *gin.Context) {
	caller, ok := mustIdentity(c)
	if !ok {
		return
	}
	proposals, err := h.catalog.ListMyProposals(c.Request.Context(), caller)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"proposals": proposals})
}

// Accept handles PUT /api/proposals/:id/accept
func (h *ProposalHandler) Accept(c *gin.Context) {
	caller, ok := mustIdentity(c)
	if !ok {
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	result, err := h.engine.AcceptProposal(c.Request.Context(), caller, id)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Reject handles PUT /api/proposals/:id/reject with an optional {"reason"}.
func (h *ProposalHandler) Reject(c *gin.Context) {
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
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badBody(c, err)
			return
		}
	}

	proposal, err := h.engine.RejectProposal(c.Request.Context(), caller, id, req.Reason)
	if err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, proposal)
}

// Withdraw handles DELETE /api/proposals/:id
func (h *ProposalHandler) Withdraw(c *gin.Context) {
	caller, ok := mustIdentity(c)
	if !ok {
		return
	}
	id, err := pathID(c, "id")
	if err != nil {
		writeError(c, h.logger, err)
		return
	}

	if err := h.engine.WithdrawProposal(c.Request.Context(), caller, id); err != nil {
		writeError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "withdrawn", "proposal_id": id})
}
