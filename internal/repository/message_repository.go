package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 200
)

// MessageRepository stores team chat history.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository constructs the repository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create persists a message.
func (r *MessageRepository) Create(ctx context.Context, msg *models.TeamMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Kind == "" {
		msg.Kind = models.MessageKindText
	}
	const query = `INSERT INTO team_messages (id, team_id, sender_id, kind, content, file_url, file_name, created_at) VALUES (:id, :team_id, :sender_id, :kind, :content, :file_url, :file_name, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, msg); err != nil {
		return fmt.Errorf("create team message: %w", err)
	}
	return nil
}

// List returns the newest messages of a team, optionally older than filter.Before.
func (r *MessageRepository) List(ctx context.Context, teamID string, filter dto.MessageFilter) ([]models.TeamMessage, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultMessageLimit
	}
	if limit > maxMessageLimit {
		limit = maxMessageLimit
	}

	var b strings.Builder
	b.WriteString(`
SELECT m.id, m.team_id, m.sender_id, u.name AS sender_name, m.kind, m.content, m.file_url, m.file_name, m.created_at
FROM team_messages m
LEFT JOIN users u ON u.id = m.sender_id
WHERE m.team_id = $1`)
	args := []interface{}{teamID}
	if filter.Before != "" {
		args = append(args, filter.Before)
		fmt.Fprintf(&b, " AND m.created_at < (SELECT created_at FROM team_messages WHERE id = $%d)", len(args))
	}
	fmt.Fprintf(&b, "\nORDER BY m.created_at DESC LIMIT %d", limit)

	var messages []models.TeamMessage
	if err := r.db.SelectContext(ctx, &messages, b.String(), args...); err != nil {
		return nil, fmt.Errorf("list team messages: %w", err)
	}
	return messages, nil
}
