package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-api/internal/models"
)

// ErrDuplicate signals a unique constraint violation.
var ErrDuplicate = errors.New("duplicate record")

const attendanceColumns = `id, student_id, course_id, date, session, created_at`

// AttendanceRepository persists session attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// ListByStudents returns every attendance record of the given students.
func (r *AttendanceRepository) ListByStudents(ctx context.Context, studentIDs []string) ([]models.Attendance, error) {
	if len(studentIDs) == 0 {
		return []models.Attendance{}, nil
	}
	query := `SELECT ` + attendanceColumns + ` FROM attendance WHERE student_id = ANY($1) ORDER BY date ASC, session ASC`
	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, query, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("list attendance by students: %w", err)
	}
	return records, nil
}

// ListForStudent returns one student's records, optionally for a single course.
func (r *AttendanceRepository) ListForStudent(ctx context.Context, studentID, courseID string) ([]models.Attendance, error) {
	var b strings.Builder
	b.WriteString(`SELECT ` + attendanceColumns + ` FROM attendance WHERE student_id = $1`)
	args := []interface{}{studentID}
	if courseID != "" {
		args = append(args, courseID)
		fmt.Fprintf(&b, " AND course_id = $%d", len(args))
	}
	b.WriteString(" ORDER BY date DESC, session ASC")

	var records []models.Attendance
	if err := r.db.SelectContext(ctx, &records, b.String(), args...); err != nil {
		return nil, fmt.Errorf("list attendance for student: %w", err)
	}
	return records, nil
}

// Create stores a session record. A second record for the same student,
// course, date and session returns ErrDuplicate.
func (r *AttendanceRepository) Create(ctx context.Context, record *models.Attendance) error {
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attendance (id, student_id, course_id, date, session, created_at) VALUES (:id, :student_id, :course_id, :date, :session, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, record); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create attendance: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
