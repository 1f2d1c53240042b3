package dto

// DeviceTokenRequest registers the caller's push token.
type DeviceTokenRequest struct {
	Token    string `json:"token" validate:"required,max=4096"`
	Platform string `json:"platform,omitempty" validate:"omitempty,oneof=web android ios"`
}

// LORUnlockedNotification is the job payload sent when a letter becomes available.
type LORUnlockedNotification struct {
	StudentID string `json:"studentId"`
	TeamID    string `json:"teamId"`
	TeamName  string `json:"teamName"`
}
