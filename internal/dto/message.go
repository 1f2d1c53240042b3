package dto

// SendMessageRequest posts a text message to a team.
type SendMessageRequest struct {
	Content string `json:"content" validate:"required,max=4000"`
}

// MessageFilter pages through team history, newest first.
type MessageFilter struct {
	Before string
	Limit  int
}
