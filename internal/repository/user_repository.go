package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/pkg/database"
)

const userColumns = `id, name, email, image_url, role, is_team_leader, enrolled_courses, assigned_projects, created_at, updated_at`

// UserRepository provides database access for user profiles.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// FindByIDs returns the users that exist among ids. Missing ids are simply absent.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	if len(ids) == 0 {
		return []models.User{}, nil
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1)`
	var users []models.User
	if err := r.db.SelectContext(ctx, &users, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("find users by ids: %w", err)
	}
	return users, nil
}

// Create inserts a user unless a row with the same id already exists. It
// reports whether a row was written.
func (r *UserRepository) Create(ctx context.Context, user *models.User) (bool, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.EnrolledCourses == nil {
		user.EnrolledCourses = pq.StringArray{}
	}
	if user.AssignedProjects == nil {
		user.AssignedProjects = pq.StringArray{}
	}

	const query = `INSERT INTO users (id, name, email, image_url, role, is_team_leader, enrolled_courses, assigned_projects, created_at, updated_at) VALUES (:id, :name, :email, :image_url, :role, :is_team_leader, :enrolled_courses, :assigned_projects, :created_at, :updated_at) ON CONFLICT (id) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, user)
	if err != nil {
		return false, fmt.Errorf("create user: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create user rows affected: %w", err)
	}
	return affected > 0, nil
}

// UpdateProfile refreshes the identity-provider fields of a user.
func (r *UserRepository) UpdateProfile(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET name = :name, email = :email, image_url = :image_url, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("update user profile: %w", err)
	}
	return nil
}

// SetTeamLeader flags a user as leading at least one team.
func (r *UserRepository) SetTeamLeader(ctx context.Context, id string) error {
	const query = `UPDATE users SET is_team_leader = TRUE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("set team leader: %w", err)
	}
	return nil
}

// DeleteCascade removes a user and every row that belongs to them. Teams the
// user leads are removed together with their members, requests and messages.
func (r *UserRepository) DeleteCascade(ctx context.Context, id string) (map[string]int, error) {
	deleted := make(map[string]int)
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		steps := []sqlStep{
			{"teams", `DELETE FROM teams WHERE leader_id = $1`},
			{"team_members", `DELETE FROM team_members WHERE user_id = $1`},
			{"team_join_requests", `DELETE FROM team_join_requests WHERE user_id = $1`},
			{"team_messages", `DELETE FROM team_messages WHERE sender_id = $1`},
			{"attendance", `DELETE FROM attendance WHERE student_id = $1`},
			{"device_tokens", `DELETE FROM device_tokens WHERE user_id = $1`},
			{"project_progress", `DELETE FROM project_progress WHERE user_id = $1`},
		}
		for _, table := range userOwnedTables {
			steps = append(steps, sqlStep{table, fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1`, table)})
		}
		steps = append(steps, sqlStep{"users", `DELETE FROM users WHERE id = $1`})

		for _, step := range steps {
			n, err := execCount(ctx, tx, step.query, id)
			if err != nil {
				return fmt.Errorf("delete %s: %w", step.name, err)
			}
			deleted[step.name] = n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// CreateAuditLog stores an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at) VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

type sqlStep struct {
	name  string
	query string
}

func execCount(ctx context.Context, tx *sqlx.Tx, query string, args ...interface{}) (int, error) {
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
