package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(upCreateCoreTables, downCreateCoreTables)
}

func upCreateCoreTables(ctx context.Context, tx *sql.Tx) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			image_url TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'student' CHECK (role IN ('student', 'educator', 'admin')),
			is_team_leader BOOLEAN NOT NULL DEFAULT false,
			enrolled_courses TEXT[] NOT NULL DEFAULT '{}',
			assigned_projects TEXT[] NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_users_email ON users (email)`,
		`CREATE TABLE IF NOT EXISTS courses (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			educator_id TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS teams (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			leader_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_teams_leader ON teams (leader_id)`,
		`CREATE TABLE IF NOT EXISTS team_members (
			team_id TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'member' CHECK (role IN ('member', 'admin')),
			progress INTEGER NOT NULL DEFAULT 0 CHECK (progress BETWEEN 0 AND 100),
			project_name TEXT NOT NULL DEFAULT '',
			lor_unlocked BOOLEAN NOT NULL DEFAULT false,
			joined_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (team_id, user_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_team_members_user ON team_members (user_id)`,
		`CREATE TABLE IF NOT EXISTS team_join_requests (
			team_id TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
			user_id TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (team_id, user_id)
		)`,
		`CREATE TABLE IF NOT EXISTS team_messages (
			id TEXT PRIMARY KEY,
			team_id TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
			sender_id TEXT NOT NULL,
			kind TEXT NOT NULL DEFAULT 'text' CHECK (kind IN ('text', 'file')),
			content TEXT NOT NULL DEFAULT '',
			file_url TEXT,
			file_name TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_team_messages_team_created ON team_messages (team_id, created_at DESC)`,
		`CREATE TABLE IF NOT EXISTS attendance (
			id TEXT PRIMARY KEY,
			student_id TEXT NOT NULL,
			course_id TEXT NOT NULL,
			date DATE NOT NULL,
			session TEXT NOT NULL CHECK (session IN ('LOGIN', 'LOGOUT')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT uq_attendance_session UNIQUE (student_id, course_id, date, session)
		)`,
		`CREATE TABLE IF NOT EXISTS device_tokens (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL UNIQUE,
			token TEXT NOT NULL,
			platform TEXT NOT NULL DEFAULT '',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE TABLE IF NOT EXISTS project_progress (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			project_id TEXT NOT NULL,
			percent INTEGER NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			CONSTRAINT uq_project_progress UNIQUE (user_id, project_id)
		)`,
		`CREATE TABLE IF NOT EXISTS audit_logs (
			id TEXT PRIMARY KEY,
			user_id TEXT,
			action TEXT NOT NULL,
			resource TEXT NOT NULL,
			resource_id TEXT,
			old_values JSONB,
			new_values JSONB,
			ip_address TEXT NOT NULL DEFAULT '',
			user_agent TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
	}
	for _, stmt := range statements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func downCreateCoreTables(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
	DROP TABLE IF EXISTS audit_logs;
	DROP TABLE IF EXISTS project_progress;
	DROP TABLE IF EXISTS device_tokens;
	DROP TABLE IF EXISTS attendance;
	DROP TABLE IF EXISTS team_messages;
	DROP TABLE IF EXISTS team_join_requests;
	DROP TABLE IF EXISTS team_members;
	DROP TABLE IF EXISTS teams;
	DROP TABLE IF EXISTS courses;
	DROP TABLE IF EXISTS users;
	`)
	return err
}
