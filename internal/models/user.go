package models

import (
	"time"

	"github.com/lib/pq"
)

// UserRole represents the platform-wide role of a user.
type UserRole string

const (
	RoleStudent  UserRole = "student"
	RoleEducator UserRole = "educator"
	RoleAdmin    UserRole = "admin"
)

// Valid reports whether the role is known.
func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleEducator, RoleAdmin:
		return true
	default:
		return false
	}
}

// User is an application user keyed by the identity provider's user id.
type User struct {
	ID               string         `db:"id" json:"id"`
	Name             string         `db:"name" json:"name"`
	Email            string         `db:"email" json:"email"`
	ImageURL         string         `db:"image_url" json:"imageUrl"`
	Role             UserRole       `db:"role" json:"role"`
	IsTeamLeader     bool           `db:"is_team_leader" json:"isTeamLeader"`
	EnrolledCourses  pq.StringArray `db:"enrolled_courses" json:"enrolledCourses"`
	AssignedProjects pq.StringArray `db:"assigned_projects" json:"assignedProjects"`
	CreatedAt        time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updatedAt"`
}

// Course is a catalog entry; its title is what rosters show as a project.
type Course struct {
	ID         string    `db:"id" json:"id"`
	Title      string    `db:"title" json:"title"`
	EducatorID *string   `db:"educator_id" json:"educatorId,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// DeviceToken is the single push token registered for a user.
type DeviceToken struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"userId"`
	Token     string    `db:"token" json:"token"`
	Platform  string    `db:"platform" json:"platform,omitempty"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}
