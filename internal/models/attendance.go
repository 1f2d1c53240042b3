package models

import "time"

// AttendanceSession is one of the two daily check points.
type AttendanceSession string

const (
	SessionLogin  AttendanceSession = "LOGIN"
	SessionLogout AttendanceSession = "LOGOUT"
)

// Valid returns true when the session is a supported value.
func (s AttendanceSession) Valid() bool {
	return s == SessionLogin || s == SessionLogout
}

// AttendanceDateLayout is the calendar-date form used for grouping.
const AttendanceDateLayout = "2006-01-02"

// Attendance is one session record. (StudentID, CourseID, Date, Session) is unique.
type Attendance struct {
	ID        string            `db:"id" json:"id"`
	StudentID string            `db:"student_id" json:"studentId"`
	CourseID  string            `db:"course_id" json:"courseId"`
	Date      time.Time         `db:"date" json:"date"`
	Session   AttendanceSession `db:"session" json:"session"`
	CreatedAt time.Time         `db:"created_at" json:"createdAt"`
}

// DateKey returns the calendar date of the record.
func (a Attendance) DateKey() string {
	return a.Date.Format(AttendanceDateLayout)
}
