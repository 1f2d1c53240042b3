package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-api/internal/models"
)

// DeviceTokenRepository keeps the single push token of each user.
type DeviceTokenRepository struct {
	db *sqlx.DB
}

// NewDeviceTokenRepository constructs the repository.
func NewDeviceTokenRepository(db *sqlx.DB) *DeviceTokenRepository {
	return &DeviceTokenRepository{db: db}
}

// Upsert stores token as the user's only device token.
func (r *DeviceTokenRepository) Upsert(ctx context.Context, token *models.DeviceToken) error {
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	token.UpdatedAt = time.Now().UTC()
	const query = `INSERT INTO device_tokens (id, user_id, token, platform, updated_at) VALUES (:id, :user_id, :token, :platform, :updated_at)
ON CONFLICT (user_id) DO UPDATE SET token = EXCLUDED.token, platform = EXCLUDED.platform, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, token); err != nil {
		return fmt.Errorf("upsert device token: %w", err)
	}
	return nil
}

// FindByUserID returns the user's token or sql.ErrNoRows.
func (r *DeviceTokenRepository) FindByUserID(ctx context.Context, userID string) (*models.DeviceToken, error) {
	const query = `SELECT id, user_id, token, platform, updated_at FROM device_tokens WHERE user_id = $1 LIMIT 1`
	var token models.DeviceToken
	if err := r.db.GetContext(ctx, &token, query, userID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find device token: %w", err)
	}
	return &token, nil
}

// DeleteToken removes a token value that the push provider rejected.
func (r *DeviceTokenRepository) DeleteToken(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM device_tokens WHERE token = $1`, token); err != nil {
		return fmt.Errorf("delete device token: %w", err)
	}
	return nil
}
