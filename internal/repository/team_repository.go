package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/pkg/database"
)

const (
	teamColumns   = `t.id, t.name, t.leader_id, t.created_at`
	memberColumns = `team_id, user_id, role, progress, project_name, lor_unlocked, joined_at`
)

// MembershipUpdate lists the membership fields a progress update may change.
// Nil fields are left untouched.
type MembershipUpdate struct {
	Progress    *int
	ProjectName *string
	LORUnlocked *bool
}

// Empty reports whether the update carries no changes.
func (u MembershipUpdate) Empty() bool {
	return u.Progress == nil && u.ProjectName == nil && u.LORUnlocked == nil
}

// TeamRepository persists teams, memberships and join requests.
type TeamRepository struct {
	db *sqlx.DB
}

// NewTeamRepository constructs the repository.
func NewTeamRepository(db *sqlx.DB) *TeamRepository {
	return &TeamRepository{db: db}
}

// ListOverseen returns teams the caller leads or administers, members included,
// ordered by creation.
func (r *TeamRepository) ListOverseen(ctx context.Context, callerID string) ([]models.Team, error) {
	query := `
SELECT ` + teamColumns + `
FROM teams t
WHERE t.leader_id = $1
	OR EXISTS (
		SELECT 1 FROM team_members m
		WHERE m.team_id = t.id AND m.user_id = $1 AND m.role = 'admin'
	)
ORDER BY t.created_at ASC, t.id ASC`

	var teams []models.Team
	if err := r.db.SelectContext(ctx, &teams, query, callerID); err != nil {
		return nil, fmt.Errorf("list overseen teams: %w", err)
	}
	if err := r.attachMembers(ctx, teams); err != nil {
		return nil, err
	}
	return teams, nil
}

// ListForUser returns teams the user leads or belongs to.
func (r *TeamRepository) ListForUser(ctx context.Context, userID string) ([]models.Team, error) {
	query := `
SELECT ` + teamColumns + `
FROM teams t
WHERE t.leader_id = $1
	OR EXISTS (SELECT 1 FROM team_members m WHERE m.team_id = t.id AND m.user_id = $1)
ORDER BY t.created_at ASC, t.id ASC`

	var teams []models.Team
	if err := r.db.SelectContext(ctx, &teams, query, userID); err != nil {
		return nil, fmt.Errorf("list teams for user: %w", err)
	}
	if err := r.attachMembers(ctx, teams); err != nil {
		return nil, err
	}
	return teams, nil
}

// FindByID returns a team with its members and pending requests.
func (r *TeamRepository) FindByID(ctx context.Context, id string) (*models.Team, error) {
	query := `SELECT ` + teamColumns + ` FROM teams t WHERE t.id = $1 LIMIT 1`
	var team models.Team
	if err := r.db.GetContext(ctx, &team, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find team: %w", err)
	}
	teams := []models.Team{team}
	if err := r.attachMembers(ctx, teams); err != nil {
		return nil, err
	}
	return &teams[0], nil
}

func (r *TeamRepository) attachMembers(ctx context.Context, teams []models.Team) error {
	if len(teams) == 0 {
		return nil
	}
	ids := make([]string, len(teams))
	index := make(map[string]int, len(teams))
	for i := range teams {
		ids[i] = teams[i].ID
		index[teams[i].ID] = i
		teams[i].Members = []models.TeamMember{}
		teams[i].PendingRequests = []string{}
	}

	var members []models.TeamMember
	memberQuery := `SELECT ` + memberColumns + ` FROM team_members WHERE team_id = ANY($1) ORDER BY joined_at ASC, user_id ASC`
	if err := r.db.SelectContext(ctx, &members, memberQuery, pq.Array(ids)); err != nil {
		return fmt.Errorf("list team members: %w", err)
	}
	for _, m := range members {
		if i, ok := index[m.TeamID]; ok {
			teams[i].Members = append(teams[i].Members, m)
		}
	}

	var requests []struct {
		TeamID string `db:"team_id"`
		UserID string `db:"user_id"`
	}
	const requestQuery = `SELECT team_id, user_id FROM team_join_requests WHERE team_id = ANY($1) ORDER BY created_at ASC`
	if err := r.db.SelectContext(ctx, &requests, requestQuery, pq.Array(ids)); err != nil {
		return fmt.Errorf("list join requests: %w", err)
	}
	for _, req := range requests {
		if i, ok := index[req.TeamID]; ok {
			teams[i].PendingRequests = append(teams[i].PendingRequests, req.UserID)
		}
	}
	return nil
}

// Create inserts a new team.
func (r *TeamRepository) Create(ctx context.Context, team *models.Team) error {
	if team.ID == "" {
		team.ID = uuid.NewString()
	}
	if team.CreatedAt.IsZero() {
		team.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO teams (id, name, leader_id, created_at) VALUES (:id, :name, :leader_id, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, team); err != nil {
		return fmt.Errorf("create team: %w", err)
	}
	return nil
}

// AddJoinRequest records a pending request. It reports false when one already exists.
func (r *TeamRepository) AddJoinRequest(ctx context.Context, teamID, userID string) (bool, error) {
	const query = `INSERT INTO team_join_requests (team_id, user_id, created_at) VALUES ($1, $2, $3) ON CONFLICT (team_id, user_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, teamID, userID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("add join request: %w", err)
	}
	return affected(res)
}

// ListJoinRequests returns pending requests with whatever profile data exists.
func (r *TeamRepository) ListJoinRequests(ctx context.Context, teamID string) ([]dto.JoinRequestItem, error) {
	const query = `
SELECT jr.user_id, u.name, u.email, u.image_url
FROM team_join_requests jr
LEFT JOIN users u ON u.id = jr.user_id
WHERE jr.team_id = $1
ORDER BY jr.created_at ASC`
	var items []dto.JoinRequestItem
	if err := r.db.SelectContext(ctx, &items, query, teamID); err != nil {
		return nil, fmt.Errorf("list join requests: %w", err)
	}
	return items, nil
}

// AcceptJoinRequest turns a pending request into a member row. It reports
// false when no such request was pending.
func (r *TeamRepository) AcceptJoinRequest(ctx context.Context, teamID, userID string) (bool, error) {
	accepted := false
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		n, err := execCount(ctx, tx, `DELETE FROM team_join_requests WHERE team_id = $1 AND user_id = $2`, teamID, userID)
		if err != nil {
			return fmt.Errorf("delete join request: %w", err)
		}
		if n == 0 {
			return nil
		}
		const insert = `INSERT INTO team_members (team_id, user_id, role, progress, project_name, lor_unlocked, joined_at) VALUES ($1, $2, $3, 0, '', FALSE, $4) ON CONFLICT (team_id, user_id) DO NOTHING`
		if _, err := tx.ExecContext(ctx, insert, teamID, userID, models.MemberRoleMember, time.Now().UTC()); err != nil {
			return fmt.Errorf("insert team member: %w", err)
		}
		accepted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return accepted, nil
}

// RejectJoinRequest drops a pending request.
func (r *TeamRepository) RejectJoinRequest(ctx context.Context, teamID, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM team_join_requests WHERE team_id = $1 AND user_id = $2`, teamID, userID)
	if err != nil {
		return false, fmt.Errorf("reject join request: %w", err)
	}
	return affected(res)
}

// UpdateMemberRole changes a member's role.
func (r *TeamRepository) UpdateMemberRole(ctx context.Context, teamID, userID string, role models.MemberRole) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE team_members SET role = $3 WHERE team_id = $1 AND user_id = $2`, teamID, userID, role)
	if err != nil {
		return false, fmt.Errorf("update member role: %w", err)
	}
	return affected(res)
}

// RemoveMember deletes a membership row.
func (r *TeamRepository) RemoveMember(ctx context.Context, teamID, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM team_members WHERE team_id = $1 AND user_id = $2`, teamID, userID)
	if err != nil {
		return false, fmt.Errorf("remove member: %w", err)
	}
	return affected(res)
}

// UpdateMembership applies update to the student's membership in each of
// teamIDs and returns the number of rows changed.
func (r *TeamRepository) UpdateMembership(ctx context.Context, teamIDs []string, studentID string, update MembershipUpdate) (int, error) {
	if len(teamIDs) == 0 || update.Empty() {
		return 0, nil
	}

	var sets []string
	args := []interface{}{pq.Array(teamIDs), studentID}
	if update.Progress != nil {
		args = append(args, *update.Progress)
		sets = append(sets, fmt.Sprintf("progress = $%d", len(args)))
	}
	if update.ProjectName != nil {
		args = append(args, *update.ProjectName)
		sets = append(sets, fmt.Sprintf("project_name = $%d", len(args)))
	}
	if update.LORUnlocked != nil {
		args = append(args, *update.LORUnlocked)
		sets = append(sets, fmt.Sprintf("lor_unlocked = $%d", len(args)))
	}

	query := fmt.Sprintf(`UPDATE team_members SET %s WHERE team_id = ANY($1) AND user_id = $2`, strings.Join(sets, ", "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("update membership: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("update membership rows affected: %w", err)
	}
	return int(n), nil
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
