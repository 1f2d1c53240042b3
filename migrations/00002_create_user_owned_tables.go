package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
)

// Tables owned by a single user that only need repointing or deleting when
// accounts are merged or removed.
var userOwnedTables = []string{
	"purchases",
	"tickets",
	"todos",
	"test_results",
	"calendar_events",
	"project_submissions",
}

func init() {
	goose.AddMigrationContext(upCreateUserOwnedTables, downCreateUserOwnedTables)
}

func upCreateUserOwnedTables(ctx context.Context, tx *sql.Tx) error {
	for _, table := range userOwnedTables {
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			payload JSONB NOT NULL DEFAULT '{}',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, table)
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
		index := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_user ON %s (user_id)`, table, table)
		if _, err := tx.ExecContext(ctx, index); err != nil {
			return err
		}
	}
	return nil
}

func downCreateUserOwnedTables(ctx context.Context, tx *sql.Tx) error {
	for i := len(userOwnedTables) - 1; i >= 0; i-- {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s`, userOwnedTables[i])); err != nil {
			return err
		}
	}
	return nil
}
