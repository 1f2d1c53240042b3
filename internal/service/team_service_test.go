package service

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

func newTeamFixture() (*TeamService, *teamRepoStub, *userRepoStub, *notifierStub) {
	teams := &teamRepoStub{teams: leaderFixture()}
	users := newUserRepoStub()
	notifier := &notifierStub{}
	return NewTeamService(teams, users, notifier, nil, nil, nil, nil), teams, users, notifier
}

func boolPtr(v bool) *bool { return &v }
func strPtr(v string) *string { return &v }

func TestUpdateStudentProgressAllOverseenTeams(t *testing.T) {
	svc, teams, users, _ := newTeamFixture()

	resp, err := svc.UpdateStudentProgress(context.Background(), "L", dto.UpdateProgressRequest{
		StudentID: "S1",
		Progress:  dto.NewProgress(75),
	}, RequestMeta{})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Updated)
	assert.Equal(t, "updated 2 team(s)", resp.Message)
	assert.Equal(t, []string{"team1", "team2"}, teams.lastTeamIDs)
	require.NotNil(t, teams.lastUpdate.Progress)
	assert.Equal(t, 75, *teams.lastUpdate.Progress)
	assert.Nil(t, teams.lastUpdate.LORUnlocked)
	require.Len(t, users.auditLogs, 1)
	assert.Equal(t, models.AuditActionProgressUpdate, users.auditLogs[0].Action)
}

func TestUpdateStudentProgressScopedToTeam(t *testing.T) {
	svc, teams, _, _ := newTeamFixture()

	resp, err := svc.UpdateStudentProgress(context.Background(), "L", dto.UpdateProgressRequest{
		StudentID:   "S1",
		ProjectName: strPtr("Capstone"),
		TeamID:      "team2",
	}, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Updated)
	assert.Equal(t, []string{"team2"}, teams.lastTeamIDs)
	assert.Equal(t, "Capstone", *teams.lastUpdate.ProjectName)
}

func TestUpdateStudentProgressOutOfRangeRejectedBeforeWrite(t *testing.T) {
	svc, teams, users, _ := newTeamFixture()

	for _, raw := range []string{`150`, `-1`, `"abc"`, `"NaN"`, `true`} {
		var req dto.UpdateProgressRequest
		require.NoError(t, json.Unmarshal([]byte(`{"studentId":"S1","progress":`+raw+`}`), &req), raw)

		_, err := svc.UpdateStudentProgress(context.Background(), "L", req, RequestMeta{})
		require.Error(t, err, raw)
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrValidation.Status, appErr.Status, raw)
		assert.Equal(t, "progress", appErr.Field, raw)
	}
	assert.Zero(t, teams.updateCalls)
	assert.Empty(t, users.auditLogs)
}

func TestUpdateStudentProgressAcceptsNumericString(t *testing.T) {
	svc, teams, _, _ := newTeamFixture()

	var req dto.UpdateProgressRequest
	require.NoError(t, json.Unmarshal([]byte(`{"studentId":"S1","progress":"42.6","teamId":"team1"}`), &req))

	_, err := svc.UpdateStudentProgress(context.Background(), "L", req, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 43, *teams.lastUpdate.Progress)
}

func TestUpdateStudentProgressBoundaryValues(t *testing.T) {
	svc, teams, _, _ := newTeamFixture()

	for _, v := range []float64{0, 100} {
		_, err := svc.UpdateStudentProgress(context.Background(), "L", dto.UpdateProgressRequest{StudentID: "S1", Progress: dto.NewProgress(v)}, RequestMeta{})
		require.NoError(t, err)
		assert.Equal(t, int(v), *teams.lastUpdate.Progress)
	}
}

func TestUpdateStudentProgressStudentNotInScope(t *testing.T) {
	svc, teams, _, _ := newTeamFixture()

	_, err := svc.UpdateStudentProgress(context.Background(), "L", dto.UpdateProgressRequest{StudentID: "S9", Progress: dto.NewProgress(10)}, RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	// team3 contains S1 but L does not oversee it
	_, err = svc.UpdateStudentProgress(context.Background(), "L", dto.UpdateProgressRequest{StudentID: "S1", Progress: dto.NewProgress(10), TeamID: "team3"}, RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	assert.Zero(t, teams.updateCalls)
}

func TestUpdateStudentProgressRequiresAField(t *testing.T) {
	svc, _, _, _ := newTeamFixture()

	_, err := svc.UpdateStudentProgress(context.Background(), "L", dto.UpdateProgressRequest{StudentID: "S1"}, RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestUpdateStudentProgressNotifiesNewlyUnlocked(t *testing.T) {
	svc, _, _, notifier := newTeamFixture()

	_, err := svc.UpdateStudentProgress(context.Background(), "L", dto.UpdateProgressRequest{StudentID: "S2", LORUnlocked: boolPtr(true)}, RequestMeta{})
	require.NoError(t, err)
	// S2 was already unlocked in team2
	assert.Empty(t, notifier.notifications)

	_, err = svc.UpdateStudentProgress(context.Background(), "L", dto.UpdateProgressRequest{StudentID: "S1", LORUnlocked: boolPtr(true)}, RequestMeta{})
	require.NoError(t, err)
	require.Len(t, notifier.notifications, 2)
	assert.Equal(t, "team1", notifier.notifications[0].TeamID)
	assert.Equal(t, "Team One", notifier.notifications[0].TeamName)
}

func TestCreateTeamFlagsLeader(t *testing.T) {
	svc, teams, users, _ := newTeamFixture()

	team, err := svc.Create(context.Background(), "L", dto.CreateTeamRequest{Name: "Rockets"}, RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "L", team.LeaderID)
	assert.Len(t, teams.created, 1)
	assert.Equal(t, []string{"L"}, users.leaders)
	require.Len(t, users.auditLogs, 1)
	assert.Equal(t, models.AuditActionTeamCreate, users.auditLogs[0].Action)
}

func TestCreateTeamValidatesName(t *testing.T) {
	svc, _, _, _ := newTeamFixture()

	_, err := svc.Create(context.Background(), "L", dto.CreateTeamRequest{Name: ""}, RequestMeta{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRequestJoin(t *testing.T) {
	svc, _, _, _ := newTeamFixture()

	require.NoError(t, svc.RequestJoin(context.Background(), "S5", "team1"))

	err := svc.RequestJoin(context.Background(), "S5", "team1")
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	err = svc.RequestJoin(context.Background(), "S1", "team1")
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	err = svc.RequestJoin(context.Background(), "S5", "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAcceptRequestRequiresManager(t *testing.T) {
	svc, teams, _, _ := newTeamFixture()
	teams.acceptResult = true

	err := svc.AcceptRequest(context.Background(), "S1", "team1", "S5", RequestMeta{})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.AcceptRequest(context.Background(), "L", "team2", "S5", RequestMeta{}))

	teams.acceptResult = false
	err = svc.AcceptRequest(context.Background(), "L", "team1", "S5", RequestMeta{})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUpdateMemberRoleLeaderOnly(t *testing.T) {
	svc, teams, _, _ := newTeamFixture()

	err := svc.UpdateMemberRole(context.Background(), "L", "team2", "S1", dto.UpdateMemberRoleRequest{Role: models.MemberRoleAdmin}, RequestMeta{})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.UpdateMemberRole(context.Background(), "L", "team1", "S1", dto.UpdateMemberRoleRequest{Role: models.MemberRoleAdmin}, RequestMeta{}))
	assert.Equal(t, models.MemberRoleAdmin, teams.roleUpdates["team1/S1"])

	err = svc.UpdateMemberRole(context.Background(), "L", "team1", "S1", dto.UpdateMemberRoleRequest{Role: "owner"}, RequestMeta{})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRemoveMemberRules(t *testing.T) {
	svc, teams, _, _ := newTeamFixture()

	err := svc.RemoveMember(context.Background(), "L", "team2", "X", RequestMeta{})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	err = svc.RemoveMember(context.Background(), "S2", "team2", "S1", RequestMeta{})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// team admin removes a plain member
	require.NoError(t, svc.RemoveMember(context.Background(), "L", "team2", "S2", RequestMeta{}))
	// member leaves on their own
	require.NoError(t, svc.RemoveMember(context.Background(), "S1", "team1", "S1", RequestMeta{}))
	assert.Equal(t, []string{"team2/S2", "team1/S1"}, teams.removed)
}

func TestListTeamsIncludesCapability(t *testing.T) {
	svc, _, _, _ := newTeamFixture()

	views, err := svc.List(context.Background(), "L")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, models.CapabilityLeader, views[0].Capability)
	assert.Equal(t, models.CapabilityAdmin, views[1].Capability)
}
