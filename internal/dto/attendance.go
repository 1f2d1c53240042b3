package dto

import "github.com/noah-isme/lms-api/internal/models"

// MarkAttendanceRequest records a session for the caller on the current date.
type MarkAttendanceRequest struct {
	CourseID string                   `json:"courseId" validate:"required"`
	Session  models.AttendanceSession `json:"session" validate:"required,oneof=LOGIN LOGOUT"`
}

// AttendanceFilter scopes attendance listings.
type AttendanceFilter struct {
	CourseID string
}

// AttendanceSummary returns records with the derived day-value total.
type AttendanceSummary struct {
	Records        []models.Attendance `json:"records"`
	AttendanceDays float64             `json:"attendanceDays"`
}
