package dto

import "github.com/noah-isme/lms-api/internal/models"

// CreateTeamRequest creates a team led by the caller.
type CreateTeamRequest struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
}

// UpdateMemberRoleRequest promotes or demotes a team member.
type UpdateMemberRoleRequest struct {
	Role models.MemberRole `json:"role" validate:"required,oneof=admin member"`
}

// TeamView is a team as returned to a caller together with the caller's capability.
type TeamView struct {
	models.Team
	Capability models.TeamCapability `json:"capability"`
}

// JoinRequestItem is a pending join request with requester profile data.
type JoinRequestItem struct {
	UserID   string  `db:"user_id" json:"userId"`
	Name     *string `db:"name" json:"name,omitempty"`
	Email    *string `db:"email" json:"email,omitempty"`
	ImageURL *string `db:"image_url" json:"imageUrl,omitempty"`
}
