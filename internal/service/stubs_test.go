package service

import (
	"context"
	"database/sql"
	"sync"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/repository"
)

type teamRepoStub struct {
	teams        []models.Team
	requests     map[string][]dto.JoinRequestItem
	listErr      error
	updateCalls  int
	lastTeamIDs  []string
	lastStudent  string
	lastUpdate   repository.MembershipUpdate
	created      []*models.Team
	roleUpdates  map[string]models.MemberRole
	removed      []string
	acceptResult bool
}

func (s *teamRepoStub) find(id string) *models.Team {
	for i := range s.teams {
		if s.teams[i].ID == id {
			return &s.teams[i]
		}
	}
	return nil
}

func (s *teamRepoStub) ListOverseen(ctx context.Context, callerID string) ([]models.Team, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.Team
	for _, t := range s.teams {
		if models.Capability(callerID, &t).CanManage() {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *teamRepoStub) ListForUser(ctx context.Context, userID string) ([]models.Team, error) {
	var out []models.Team
	for _, t := range s.teams {
		if models.Capability(userID, &t).CanView() {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *teamRepoStub) FindByID(ctx context.Context, id string) (*models.Team, error) {
	if t := s.find(id); t != nil {
		copy := *t
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *teamRepoStub) Create(ctx context.Context, team *models.Team) error {
	if team.ID == "" {
		team.ID = "team-new"
	}
	s.created = append(s.created, team)
	return nil
}

func (s *teamRepoStub) AddJoinRequest(ctx context.Context, teamID, userID string) (bool, error) {
	t := s.find(teamID)
	if t == nil || t.HasPendingRequest(userID) {
		return false, nil
	}
	t.PendingRequests = append(t.PendingRequests, userID)
	return true, nil
}

func (s *teamRepoStub) ListJoinRequests(ctx context.Context, teamID string) ([]dto.JoinRequestItem, error) {
	return s.requests[teamID], nil
}

func (s *teamRepoStub) AcceptJoinRequest(ctx context.Context, teamID, userID string) (bool, error) {
	return s.acceptResult, nil
}

func (s *teamRepoStub) RejectJoinRequest(ctx context.Context, teamID, userID string) (bool, error) {
	return true, nil
}

func (s *teamRepoStub) UpdateMemberRole(ctx context.Context, teamID, userID string, role models.MemberRole) (bool, error) {
	if s.roleUpdates == nil {
		s.roleUpdates = map[string]models.MemberRole{}
	}
	s.roleUpdates[teamID+"/"+userID] = role
	return true, nil
}

func (s *teamRepoStub) RemoveMember(ctx context.Context, teamID, userID string) (bool, error) {
	s.removed = append(s.removed, teamID+"/"+userID)
	return true, nil
}

func (s *teamRepoStub) UpdateMembership(ctx context.Context, teamIDs []string, studentID string, update repository.MembershipUpdate) (int, error) {
	s.updateCalls++
	s.lastTeamIDs = teamIDs
	s.lastStudent = studentID
	s.lastUpdate = update
	return len(teamIDs), nil
}

type userRepoStub struct {
	mu        sync.Mutex
	users     map[string]*models.User
	findErr   error
	leaders   []string
	auditLogs []*models.AuditLog
	deleted   []string
	created   int
	updated   int
}

func newUserRepoStub(users ...models.User) *userRepoStub {
	stub := &userRepoStub{users: map[string]*models.User{}}
	for i := range users {
		u := users[i]
		stub.users[u.ID] = &u
	}
	return stub
}

func (s *userRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return nil, s.findErr
	}
	if u, ok := s.users[id]; ok {
		copy := *u
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (s *userRepoStub) FindByIDs(ctx context.Context, ids []string) ([]models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.User
	for _, id := range ids {
		if u, ok := s.users[id]; ok {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *userRepoStub) Create(ctx context.Context, user *models.User) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return false, nil
	}
	copy := *user
	s.users[user.ID] = &copy
	s.created++
	return true, nil
}

func (s *userRepoStub) UpdateProfile(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *user
	s.users[user.ID] = &copy
	s.updated++
	return nil
}

func (s *userRepoStub) SetTeamLeader(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaders = append(s.leaders, id)
	return nil
}

func (s *userRepoStub) DeleteCascade(ctx context.Context, id string) (map[string]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[id]; !ok {
		return map[string]int{"users": 0}, nil
	}
	delete(s.users, id)
	s.deleted = append(s.deleted, id)
	return map[string]int{"users": 1}, nil
}

func (s *userRepoStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auditLogs = append(s.auditLogs, log)
	return nil
}

type notifierStub struct {
	notifications []dto.LORUnlockedNotification
}

func (n *notifierStub) NotifyLORUnlocked(ctx context.Context, note dto.LORUnlockedNotification) error {
	n.notifications = append(n.notifications, note)
	return nil
}

// leaderFixture: L leads Team1 (S1@60) and admins Team2 (S1@80, S2@30).
func leaderFixture() []models.Team {
	return []models.Team{
		{
			ID:       "team1",
			Name:     "Team One",
			LeaderID: "L",
			Members: []models.TeamMember{
				{TeamID: "team1", UserID: "S1", Role: models.MemberRoleMember, Progress: 60},
			},
		},
		{
			ID:       "team2",
			Name:     "Team Two",
			LeaderID: "X",
			Members: []models.TeamMember{
				{TeamID: "team2", UserID: "L", Role: models.MemberRoleAdmin},
				{TeamID: "team2", UserID: "S1", Role: models.MemberRoleMember, Progress: 80},
				{TeamID: "team2", UserID: "S2", Role: models.MemberRoleMember, Progress: 30, LORUnlocked: true},
			},
		},
		{
			ID:       "team3",
			Name:     "Someone Else",
			LeaderID: "Y",
			Members: []models.TeamMember{
				{TeamID: "team3", UserID: "S1", Role: models.MemberRoleMember, Progress: 99},
			},
		},
	}
}
