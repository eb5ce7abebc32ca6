package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arena-oj/arena/internal/delivery/http/middleware"
	"github.com/arena-oj/arena/internal/domain"
	"github.com/arena-oj/arena/internal/usecase"
)

// SubmissionHandler serves runs, scored submissions and submission reads.
type SubmissionHandler struct {
	runUC    *usecase.RunCodeUsecase
	submitUC *usecase.SubmitSolutionUsecase
	getUC    *usecase.GetSubmissionUsecase
	logger   *zap.Logger
}

// NewSubmissionHandler creates a new SubmissionHandler.
func NewSubmissionHandler(runUC *usecase.RunCodeUsecase, submitUC *usecase.SubmitSolutionUsecase, getUC *usecase.GetSubmissionUsecase, logger *zap.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		runUC:    runUC,
		submitUC: submitUC,
		getUC:    getUC,
		logger:   logger,
	}
}

// Run handles POST /api/v1/problems/:id/run
func (h *SubmissionHandler) Run(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	res, err := h.runUC.Execute(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, "Run", err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// Submit handles POST /api/v1/problems/:id/submit
func (h *SubmissionHandler) Submit(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	res, err := h.submitUC.Execute(c.Request.Context(), middleware.GetUserID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, "Submit", err)
		return
	}

	c.JSON(http.StatusOK, res)
}

// GetByID handles GET /api/v1/submissions/:id
func (h *SubmissionHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid submission ID format", "code": "VALIDATION_ERROR"})
		return
	}

	sub, err := h.getUC.Execute(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		respondError(c, h.logger, "Get submission", err)
		return
	}

	c.JSON(http.StatusOK, sub)
}

func (h *SubmissionHandler) bind(c *gin.Context) (*domain.CodeRequest, bool) {
	var req domain.CodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		status, code, _ := classify(err)
		if status != http.StatusRequestEntityTooLarge {
			status, code = http.StatusBadRequest, "VALIDATION_ERROR"
		}
		c.JSON(status, gin.H{"error": "Invalid request body: " + err.Error(), "code": code})
		return nil, false
	}
	return &req, true
}
