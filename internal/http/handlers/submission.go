package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/yungbote/forfeit-backend/internal/domain"
	"github.com/yungbote/forfeit-backend/internal/grading"
	"github.com/yungbote/forfeit-backend/internal/http/response"
)

type SubmissionHandler struct {
	grading grading.Service
}

func NewSubmissionHandler(svc grading.Service) *SubmissionHandler {
	return &SubmissionHandler{grading: svc}
}

// POST /api/internal/submissions/:id/grade
func (h *SubmissionHandler) Grade(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_submission_id", err)
		return
	}
	sub, err := h.grading.Grade(c.Request.Context(), id)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"submission": sub})
}

type overrideRequest struct {
	Verdict string `json:"verdict" binding:"required"`
	Note    string `json:"note"`
}

// POST /api/internal/submissions/:id/override
func (h *SubmissionHandler) Override(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_submission_id", err)
		return
	}
	var req overrideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	sub, err := h.grading.Override(c.Request.Context(), id, types.SubmissionStatus(req.Verdict), req.Note)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"submission": sub})
}
