package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCapability(t *testing.T) {
	team := &Team{
		ID:       "team-1",
		LeaderID: "leader",
		Members: []TeamMember{
			{UserID: "leader", Role: MemberRoleMember},
			{UserID: "admin", Role: MemberRoleAdmin},
			{UserID: "student", Role: MemberRoleMember},
		},
	}

	assert.Equal(t, CapabilityLeader, Capability("leader", team))
	assert.Equal(t, CapabilityAdmin, Capability("admin", team))
	assert.Equal(t, CapabilityMember, Capability("student", team))
	assert.Equal(t, CapabilityNone, Capability("stranger", team))
	assert.Equal(t, CapabilityNone, Capability("", team))
	assert.Equal(t, CapabilityNone, Capability("leader", nil))

	assert.True(t, CapabilityLeader.CanManage())
	assert.True(t, CapabilityAdmin.CanManage())
	assert.False(t, CapabilityMember.CanManage())
	assert.True(t, CapabilityMember.CanView())
	assert.False(t, CapabilityNone.CanView())
}

func TestTeamPendingRequest(t *testing.T) {
	team := &Team{PendingRequests: []string{"u1"}}
	assert.True(t, team.HasPendingRequest("u1"))
	assert.False(t, team.HasPendingRequest("u2"))
}
