package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/repository"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type attendanceRepoStub struct {
	records   []models.Attendance
	createErr error
	created   []*models.Attendance
}

func (s *attendanceRepoStub) Create(ctx context.Context, record *models.Attendance) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, record)
	return nil
}

func (s *attendanceRepoStub) ListForStudent(ctx context.Context, studentID, courseID string) ([]models.Attendance, error) {
	var out []models.Attendance
	for _, r := range s.records {
		if r.StudentID == studentID && (courseID == "" || r.CourseID == courseID) {
			out = append(out, r)
		}
	}
	return out, nil
}

func day(value string) time.Time {
	t, err := time.Parse(models.AttendanceDateLayout, value)
	if err != nil {
		panic(err)
	}
	return t
}

func session(student, course, date string, s models.AttendanceSession) models.Attendance {
	return models.Attendance{StudentID: student, CourseID: course, Date: day(date), Session: s}
}

func TestDayValue(t *testing.T) {
	assert.Equal(t, 0.0, DayValue(0))
	assert.Equal(t, 0.5, DayValue(1))
	assert.Equal(t, 1.0, DayValue(2))
	assert.Equal(t, 1.0, DayValue(5))
}

func TestAttendanceDaysGroupsByDateAcrossCourses(t *testing.T) {
	records := []models.Attendance{
		session("s1", "c1", "2024-01-01", models.SessionLogin),
		session("s1", "c1", "2024-01-01", models.SessionLogout),
		session("s1", "c1", "2024-01-02", models.SessionLogin),
		// another course on the same date does not push the day past 1.0
		session("s2", "c1", "2024-01-03", models.SessionLogin),
		session("s2", "c2", "2024-01-03", models.SessionLogin),
		session("s2", "c2", "2024-01-03", models.SessionLogout),
	}

	days := AttendanceDays(records)
	assert.Equal(t, 1.5, days["s1"])
	assert.Equal(t, 1.0, days["s2"])
	assert.Zero(t, days["missing"])
}

func TestAttendanceMarkDuplicateIsConflict(t *testing.T) {
	repo := &attendanceRepoStub{createErr: repository.ErrDuplicate}
	svc := NewAttendanceService(repo, nil, nil, nil)

	_, err := svc.Mark(context.Background(), "s1", dto.MarkAttendanceRequest{CourseID: "c1", Session: models.SessionLogin})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAttendanceMarkUsesCalendarDate(t *testing.T) {
	repo := &attendanceRepoStub{}
	svc := NewAttendanceService(repo, nil, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, 3, 5, 17, 45, 0, 0, time.UTC) }

	record, err := svc.Mark(context.Background(), "s1", dto.MarkAttendanceRequest{CourseID: "c1", Session: models.SessionLogout})
	require.NoError(t, err)
	assert.Equal(t, "2024-03-05", record.DateKey())
	assert.Equal(t, 0, record.Date.Hour())
	require.Len(t, repo.created, 1)
}

func TestAttendanceMarkRejectsUnknownSession(t *testing.T) {
	svc := NewAttendanceService(&attendanceRepoStub{}, nil, nil, nil)

	_, err := svc.Mark(context.Background(), "s1", dto.MarkAttendanceRequest{CourseID: "c1", Session: "LUNCH"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAttendanceMineSummarises(t *testing.T) {
	repo := &attendanceRepoStub{records: []models.Attendance{
		session("s1", "c1", "2024-01-01", models.SessionLogin),
		session("s1", "c1", "2024-01-01", models.SessionLogout),
		session("s1", "c2", "2024-01-02", models.SessionLogin),
	}}
	svc := NewAttendanceService(repo, nil, nil, nil)

	summary, err := svc.Mine(context.Background(), "s1", dto.AttendanceFilter{})
	require.NoError(t, err)
	assert.Len(t, summary.Records, 3)
	assert.Equal(t, 1.5, summary.AttendanceDays)

	filtered, err := svc.Mine(context.Background(), "s1", dto.AttendanceFilter{CourseID: "c2"})
	require.NoError(t, err)
	assert.Equal(t, 0.5, filtered.AttendanceDays)
}
