package models

import "time"

// MessageKind distinguishes plain chat from shared files.
type MessageKind string

const (
	MessageKindText MessageKind = "text"
	MessageKindFile MessageKind = "file"
)

// TeamMessage is a persisted chat message.
type TeamMessage struct {
	ID         string      `db:"id" json:"id"`
	TeamID     string      `db:"team_id" json:"teamId"`
	SenderID   string      `db:"sender_id" json:"senderId"`
	SenderName *string     `db:"sender_name" json:"senderName,omitempty"`
	Kind       MessageKind `db:"kind" json:"kind"`
	Content    string      `db:"content" json:"content"`
	FileURL    *string     `db:"file_url" json:"fileUrl,omitempty"`
	FileName   *string     `db:"file_name" json:"fileName,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"createdAt"`
}
