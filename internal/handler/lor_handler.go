package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/service"
	"github.com/noah-isme/lms-api/pkg/response"
)

type lorService interface {
	Letter(ctx context.Context, callerID, teamID string) (*service.ExportFile, error)
}

// LORHandler serves letters of recommendation.
type LORHandler struct {
	service lorService
}

// NewLORHandler constructs the handler.
func NewLORHandler(svc lorService) *LORHandler {
	return &LORHandler{service: svc}
}

// Download godoc
// @Summary Download letter of recommendation
// @Tags Teams
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Team ID"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /teams/{id}/lor [get]
func (h *LORHandler) Download(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	file, err := h.service.Letter(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	sendFile(c, file)
}
