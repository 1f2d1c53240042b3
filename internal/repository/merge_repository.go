package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/pkg/database"
)

var (
	// ErrMergeWinnerMissing is returned when the surviving account does not exist.
	ErrMergeWinnerMissing = errors.New("merge target user not found")
	// ErrMergeLoserMissing is returned when the account to fold in does not exist.
	ErrMergeLoserMissing = errors.New("merge source user not found")
)

// Tables holding plain user_id references with no uniqueness rule.
var userOwnedTables = []string{
	"purchases",
	"tickets",
	"todos",
	"test_results",
	"calendar_events",
	"project_submissions",
}

type mergeUser struct {
	ID               string         `db:"id"`
	IsTeamLeader     bool           `db:"is_team_leader"`
	EnrolledCourses  pq.StringArray `db:"enrolled_courses"`
	AssignedProjects pq.StringArray `db:"assigned_projects"`
}

// MergeRepository folds one user account into another.
type MergeRepository struct {
	db *sqlx.DB
}

// NewMergeRepository constructs the repository.
func NewMergeRepository(db *sqlx.DB) *MergeRepository {
	return &MergeRepository{db: db}
}

// Merge moves every reference to oldID onto newID inside one transaction.
// Loser rows that would collide with a winner row on a unique key are
// discarded; the rest are repointed. The loser user row is deleted last.
func (r *MergeRepository) Merge(ctx context.Context, oldID, newID string) (*dto.MergeResult, error) {
	result := &dto.MergeResult{
		OldUserID: oldID,
		NewUserID: newID,
		Discarded: map[string]int{},
		Repointed: map[string]int{},
	}
	if oldID == newID {
		result.Skipped = true
		return result, nil
	}

	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		winner, err := lockMergeUser(ctx, tx, newID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrMergeWinnerMissing
			}
			return err
		}
		loser, err := lockMergeUser(ctx, tx, oldID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrMergeLoserMissing
			}
			return err
		}

		for _, step := range mergeSteps() {
			if step.discard != "" {
				n, err := execCount(ctx, tx, step.discard, oldID, newID)
				if err != nil {
					return fmt.Errorf("discard conflicting %s: %w", step.table, err)
				}
				result.Discarded[step.table] = n
			}
			n, err := execCount(ctx, tx, step.repoint, oldID, newID)
			if err != nil {
				return fmt.Errorf("repoint %s: %w", step.table, err)
			}
			result.Repointed[step.table] = n
		}

		const updateWinner = `UPDATE users SET enrolled_courses = $2, assigned_projects = $3, is_team_leader = $4, updated_at = $5 WHERE id = $1`
		_, err = tx.ExecContext(ctx, updateWinner,
			newID,
			pq.StringArray(UnionPreservingOrder(winner.EnrolledCourses, loser.EnrolledCourses)),
			pq.StringArray(UnionPreservingOrder(winner.AssignedProjects, loser.AssignedProjects)),
			winner.IsTeamLeader || loser.IsTeamLeader,
			time.Now().UTC(),
		)
		if err != nil {
			return fmt.Errorf("update merged user: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, oldID); err != nil {
			return fmt.Errorf("delete merged user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type mergeStep struct {
	table   string
	discard string
	repoint string
}

// mergeSteps lists per-table statements in execution order. Every statement
// takes $1 = loser id and $2 = winner id.
func mergeSteps() []mergeStep {
	steps := []mergeStep{
		{
			table: "attendance",
			discard: `DELETE FROM attendance l USING attendance w
WHERE l.student_id = $1 AND w.student_id = $2
	AND l.course_id = w.course_id AND l.date = w.date AND l.session = w.session`,
			repoint: `UPDATE attendance SET student_id = $2 WHERE student_id = $1`,
		},
		{
			table:   "device_tokens",
			discard: `DELETE FROM device_tokens WHERE user_id = $1 AND EXISTS (SELECT 1 FROM device_tokens WHERE user_id = $2)`,
			repoint: `UPDATE device_tokens SET user_id = $2 WHERE user_id = $1`,
		},
		{
			table: "project_progress",
			discard: `DELETE FROM project_progress l USING project_progress w
WHERE l.user_id = $1 AND w.user_id = $2 AND l.project_id = w.project_id`,
			repoint: `UPDATE project_progress SET user_id = $2 WHERE user_id = $1`,
		},
		{
			table: "team_members",
			discard: `DELETE FROM team_members l USING team_members w
WHERE l.user_id = $1 AND w.user_id = $2 AND l.team_id = w.team_id`,
			repoint: `UPDATE team_members SET user_id = $2 WHERE user_id = $1`,
		},
		{
			table: "team_join_requests",
			discard: `DELETE FROM team_join_requests l
WHERE l.user_id = $1 AND (
	EXISTS (SELECT 1 FROM team_join_requests w WHERE w.user_id = $2 AND w.team_id = l.team_id)
	OR EXISTS (SELECT 1 FROM team_members m WHERE m.user_id = $2 AND m.team_id = l.team_id)
)`,
			repoint: `UPDATE team_join_requests SET user_id = $2 WHERE user_id = $1`,
		},
		{table: "teams", repoint: `UPDATE teams SET leader_id = $2 WHERE leader_id = $1`},
		{table: "team_messages", repoint: `UPDATE team_messages SET sender_id = $2 WHERE sender_id = $1`},
		{table: "courses", repoint: `UPDATE courses SET educator_id = $2 WHERE educator_id = $1`},
	}
	for _, table := range userOwnedTables {
		steps = append(steps, mergeStep{
			table:   table,
			repoint: fmt.Sprintf(`UPDATE %s SET user_id = $2 WHERE user_id = $1`, table),
		})
	}
	return steps
}

func lockMergeUser(ctx context.Context, tx *sqlx.Tx, id string) (*mergeUser, error) {
	const query = `SELECT id, is_team_leader, enrolled_courses, assigned_projects FROM users WHERE id = $1 FOR UPDATE`
	var u mergeUser
	if err := tx.GetContext(ctx, &u, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock user %s: %w", id, err)
	}
	return &u, nil
}

// UnionPreservingOrder returns the entries of a followed by the entries of b
// not already present, without duplicates.
func UnionPreservingOrder(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}
