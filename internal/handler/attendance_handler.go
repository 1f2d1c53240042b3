package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/pkg/response"
)

type attendanceService interface {
	Mark(ctx context.Context, studentID string, req dto.MarkAttendanceRequest) (*models.Attendance, error)
	Mine(ctx context.Context, studentID string, filter dto.AttendanceFilter) (*dto.AttendanceSummary, error)
}

// AttendanceHandler records and lists session attendance.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler constructs the handler.
func NewAttendanceHandler(svc attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: svc}
}

// Mark godoc
// @Summary Mark attendance
// @Description Records a LOGIN or LOGOUT session for today
// @Tags Attendance
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.MarkAttendanceRequest true "Session"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	var req dto.MarkAttendanceRequest
	if !bindJSON(c, &req) {
		return
	}
	record, err := h.service.Mark(c.Request.Context(), caller, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Mine godoc
// @Summary My attendance
// @Tags Attendance
// @Produce json
// @Security BearerAuth
// @Param courseId query string false "Course filter"
// @Success 200 {object} response.Envelope
// @Router /attendance/me [get]
func (h *AttendanceHandler) Mine(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	summary, err := h.service.Mine(c.Request.Context(), caller, dto.AttendanceFilter{CourseID: c.Query("courseId")})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary)
}
