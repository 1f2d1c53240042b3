package service

import (
	"context"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/repository"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

// DayValue converts the number of sessions recorded on one calendar date into
// attendance credit: none counts 0, one counts half a day, two or more a full day.
func DayValue(sessions int) float64 {
	switch {
	case sessions >= 2:
		return 1.0
	case sessions == 1:
		return 0.5
	default:
		return 0
	}
}

// AttendanceDays sums day values per student. Sessions are grouped by
// calendar date across every course.
func AttendanceDays(records []models.Attendance) map[string]float64 {
	perDay := make(map[string]map[string]int)
	for _, r := range records {
		days, ok := perDay[r.StudentID]
		if !ok {
			days = make(map[string]int)
			perDay[r.StudentID] = days
		}
		days[r.DateKey()]++
	}

	totals := make(map[string]float64, len(perDay))
	for studentID, days := range perDay {
		var total float64
		for _, sessions := range days {
			total += DayValue(sessions)
		}
		totals[studentID] = total
	}
	return totals
}

type attendanceRepository interface {
	Create(ctx context.Context, record *models.Attendance) error
	ListForStudent(ctx context.Context, studentID, courseID string) ([]models.Attendance, error)
}

// AttendanceService records sessions and reports attendance totals.
type AttendanceService struct {
	repo      attendanceRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAttendanceService constructs the service.
func NewAttendanceService(repo attendanceRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, cache: cache, validator: validate, logger: logger, now: time.Now}
}

// Mark records a session for the student on the current date.
func (s *AttendanceService) Mark(ctx context.Context, studentID string, req dto.MarkAttendanceRequest) (*models.Attendance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	now := s.now().UTC()
	record := &models.Attendance{
		StudentID: studentID,
		CourseID:  req.CourseID,
		Date:      time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC),
		Session:   req.Session,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "attendance already marked for this session")
		}
		return nil, appErrors.Internal(err, "failed to mark attendance")
	}
	s.cache.InvalidateRosters(ctx)

	s.logger.Debug("attendance marked",
		zap.String("student_id", studentID),
		zap.String("course_id", req.CourseID),
		zap.String("session", string(req.Session)),
	)
	return record, nil
}

// Mine lists the student's records with the derived day total.
func (s *AttendanceService) Mine(ctx context.Context, studentID string, filter dto.AttendanceFilter) (*dto.AttendanceSummary, error) {
	records, err := s.repo.ListForStudent(ctx, studentID, filter.CourseID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load attendance")
	}
	if records == nil {
		records = []models.Attendance{}
	}
	return &dto.AttendanceSummary{
		Records:        records,
		AttendanceDays: AttendanceDays(records)[studentID],
	}, nil
}
