package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/forfeit-backend/internal/enforcement"
	"github.com/yungbote/forfeit-backend/internal/http/response"
)

// Runner is the batch surface the trigger endpoints drive.
type Runner interface {
	Run(ctx context.Context) enforcement.Summary
	RemindUpcoming(ctx context.Context) enforcement.ReminderSummary
}

type EnforcementHandler struct {
	runner Runner
}

func NewEnforcementHandler(runner Runner) *EnforcementHandler {
	return &EnforcementHandler{runner: runner}
}

// POST /api/internal/enforcement/run
func (h *EnforcementHandler) RunEnforcement(c *gin.Context) {
	sum := h.runner.Run(c.Request.Context())
	if sum.Locked {
		c.JSON(http.StatusConflict, sum)
		return
	}
	response.RespondOK(c, sum)
}

// POST /api/internal/reminders/run
func (h *EnforcementHandler) RunReminders(c *gin.Context) {
	sum := h.runner.RemindUpcoming(c.Request.Context())
	if sum.Locked {
		c.JSON(http.StatusConflict, sum)
		return
	}
	response.RespondOK(c, sum)
}
