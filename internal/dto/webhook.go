package dto

import "encoding/json"

// Identity provider webhook event types.
const (
	IdentityEventUserDeleted = "user.deleted"
	IdentityEventUserMerged  = "user.merged"
)

// IdentityEvent is the envelope posted by the identity provider.
type IdentityEvent struct {
	Type string          `json:"type" validate:"required"`
	Data json.RawMessage `json:"data" validate:"required"`
}

// UserDeletedData is the payload of user.deleted.
type UserDeletedData struct {
	ID string `json:"id" validate:"required"`
}

// UserMergedData is the payload of user.merged.
type UserMergedData struct {
	OldUserID string `json:"oldUserId" validate:"required"`
	NewUserID string `json:"newUserId" validate:"required"`
}
