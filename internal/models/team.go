package models

import "time"

// MemberRole is the role a user holds inside one team.
type MemberRole string

const (
	MemberRoleMember MemberRole = "member"
	MemberRoleAdmin  MemberRole = "admin"
)

// Valid reports whether the member role is known.
func (r MemberRole) Valid() bool {
	return r == MemberRoleMember || r == MemberRoleAdmin
}

// Team groups students under a leader.
type Team struct {
	ID              string       `db:"id" json:"id"`
	Name            string       `db:"name" json:"name"`
	LeaderID        string       `db:"leader_id" json:"leaderId"`
	CreatedAt       time.Time    `db:"created_at" json:"createdAt"`
	Members         []TeamMember `db:"-" json:"members"`
	PendingRequests []string     `db:"-" json:"pendingRequests"`
}

// TeamMember is one user's membership in a team. Progress is tracked per team.
type TeamMember struct {
	TeamID      string     `db:"team_id" json:"teamId"`
	UserID      string     `db:"user_id" json:"userId"`
	Role        MemberRole `db:"role" json:"role"`
	Progress    int        `db:"progress" json:"progress"`
	ProjectName string     `db:"project_name" json:"projectName"`
	LORUnlocked bool       `db:"lor_unlocked" json:"lorUnlocked"`
	JoinedAt    time.Time  `db:"joined_at" json:"joinedAt"`
}

// Member returns the membership of userID, if any.
func (t *Team) Member(userID string) (*TeamMember, bool) {
	if t == nil {
		return nil, false
	}
	for i := range t.Members {
		if t.Members[i].UserID == userID {
			return &t.Members[i], true
		}
	}
	return nil, false
}

// HasPendingRequest reports whether userID asked to join the team.
func (t *Team) HasPendingRequest(userID string) bool {
	if t == nil {
		return false
	}
	for _, id := range t.PendingRequests {
		if id == userID {
			return true
		}
	}
	return false
}

// TeamCapability is what a caller may do with a team.
type TeamCapability string

const (
	CapabilityNone   TeamCapability = "none"
	CapabilityMember TeamCapability = "member"
	CapabilityAdmin  TeamCapability = "admin"
	CapabilityLeader TeamCapability = "leader"
)

// CanManage reports whether the capability grants administrative rights.
func (c TeamCapability) CanManage() bool {
	return c == CapabilityLeader || c == CapabilityAdmin
}

// CanView reports whether the capability grants read access to team content.
func (c TeamCapability) CanView() bool {
	return c != CapabilityNone
}

// Capability resolves the caller's rights over team. The leader always wins
// over any membership row they may also have.
func Capability(callerID string, team *Team) TeamCapability {
	if team == nil || callerID == "" {
		return CapabilityNone
	}
	if team.LeaderID == callerID {
		return CapabilityLeader
	}
	member, ok := team.Member(callerID)
	if !ok {
		return CapabilityNone
	}
	if member.Role == MemberRoleAdmin {
		return CapabilityAdmin
	}
	return CapabilityMember
}
