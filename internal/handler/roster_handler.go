package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/service"
	"github.com/noah-isme/lms-api/pkg/export"
	"github.com/noah-isme/lms-api/pkg/response"
)

type rosterService interface {
	GetStudentInfo(ctx context.Context, callerID string) (*dto.StudentInfoResponse, error)
	Export(ctx context.Context, callerID string, format export.Format) (*service.ExportFile, error)
}

// RosterHandler serves the aggregated student roster of leaders and team admins.
type RosterHandler struct {
	service rosterService
}

// NewRosterHandler constructs the handler.
func NewRosterHandler(svc rosterService) *RosterHandler {
	return &RosterHandler{service: svc}
}

// StudentInfo godoc
// @Summary Student roster
// @Description Aggregates every student across the teams the caller leads or administers
// @Tags Teams
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.StudentInfoResponse
// @Failure 401 {object} response.Envelope
// @Router /teams/student-info [get]
func (h *RosterHandler) StudentInfo(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	roster, err := h.service.GetStudentInfo(c.Request.Context(), caller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Raw(c, http.StatusOK, roster)
}

// Export godoc
// @Summary Export student roster
// @Tags Teams
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /teams/student-info/export [get]
func (h *RosterHandler) Export(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	format := export.Format(strings.ToLower(c.DefaultQuery("format", string(export.FormatCSV))))
	file, err := h.service.Export(c.Request.Context(), caller, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	sendFile(c, file)
}
