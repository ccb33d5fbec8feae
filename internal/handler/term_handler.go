package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/campusops/enrollment-api/internal/service"
	"github.com/campusops/enrollment-api/pkg/response"
)

// TermHandler exposes the term administration endpoints.
type TermHandler struct {
	terms *service.TermCloseService
}

// NewTermHandler constructs the handler.
func NewTermHandler(terms *service.TermCloseService) *TermHandler {
	return &TermHandler{terms: terms}
}

// Close godoc
// @Summary Close the current term
// @Description Schedules completion of every active enrollment.
// @Tags Terms
// @Produce json
// @Success 202 {object} response.Envelope
// @Router /terms/close [post]
func (h *TermHandler) Close(c *gin.Context) {
	jobID, err := h.terms.Enqueue()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, gin.H{"job_id": jobID, "status": "scheduled"})
}
