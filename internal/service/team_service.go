package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/repository"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type teamRepository interface {
	ListOverseen(ctx context.Context, callerID string) ([]models.Team, error)
	ListForUser(ctx context.Context, userID string) ([]models.Team, error)
	FindByID(ctx context.Context, id string) (*models.Team, error)
	Create(ctx context.Context, team *models.Team) error
	AddJoinRequest(ctx context.Context, teamID, userID string) (bool, error)
	ListJoinRequests(ctx context.Context, teamID string) ([]dto.JoinRequestItem, error)
	AcceptJoinRequest(ctx context.Context, teamID, userID string) (bool, error)
	RejectJoinRequest(ctx context.Context, teamID, userID string) (bool, error)
	UpdateMemberRole(ctx context.Context, teamID, userID string, role models.MemberRole) (bool, error)
	RemoveMember(ctx context.Context, teamID, userID string) (bool, error)
	UpdateMembership(ctx context.Context, teamIDs []string, studentID string, update repository.MembershipUpdate) (int, error)
}

type teamUserRepository interface {
	SetTeamLeader(ctx context.Context, id string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// LORNotifier is told when a student's letter of recommendation becomes available.
type LORNotifier interface {
	NotifyLORUnlocked(ctx context.Context, n dto.LORUnlockedNotification) error
}

// RequestMeta carries request details recorded in audit entries.
type RequestMeta struct {
	IP        string
	UserAgent string
}

// TeamService manages teams, memberships and per-team student progress.
type TeamService struct {
	teams     teamRepository
	users     teamUserRepository
	notifier  LORNotifier
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTeamService constructs the service. notifier may be nil.
func NewTeamService(teams teamRepository, users teamUserRepository, notifier LORNotifier, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *TeamService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TeamService{
		teams:     teams,
		users:     users,
		notifier:  notifier,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// UpdateStudentProgress applies progress, project name and LOR changes to the
// student's membership in every team the caller oversees (or only req.TeamID).
// Invalid input is rejected before anything is written.
func (s *TeamService) UpdateStudentProgress(ctx context.Context, callerID string, req dto.UpdateProgressRequest, meta RequestMeta) (*dto.UpdateProgressResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid progress payload")
	}

	update := repository.MembershipUpdate{ProjectName: req.ProjectName, LORUnlocked: req.LORUnlocked}
	if req.Progress != nil {
		value, err := validateProgress(req.Progress)
		if err != nil {
			return nil, err
		}
		update.Progress = &value
	}
	if update.Empty() {
		return nil, appErrors.Validation("", "one of progress, projectName or lorUnlocked is required")
	}

	teams, err := s.teams.ListOverseen(ctx, callerID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load teams")
	}

	var targetIDs []string
	var unlocked []models.Team
	for _, team := range teams {
		if req.TeamID != "" && team.ID != req.TeamID {
			continue
		}
		member, ok := team.Member(req.StudentID)
		if !ok {
			continue
		}
		targetIDs = append(targetIDs, team.ID)
		if req.LORUnlocked != nil && *req.LORUnlocked && !member.LORUnlocked {
			unlocked = append(unlocked, team)
		}
	}
	if len(targetIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student is not a member of any team you manage")
	}

	updated, err := s.teams.UpdateMembership(ctx, targetIDs, req.StudentID, update)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to update progress")
	}
	if updated == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student is not a member of any team you manage")
	}

	s.metrics.AddProgressUpdates(updated)
	s.cache.InvalidateRosters(ctx)
	s.audit(ctx, callerID, models.AuditActionProgressUpdate, "team_member", req.StudentID, req, meta)

	for _, team := range unlocked {
		s.notifyLOR(ctx, dto.LORUnlockedNotification{StudentID: req.StudentID, TeamID: team.ID, TeamName: team.Name})
	}

	return &dto.UpdateProgressResponse{
		Success: true,
		Message: fmt.Sprintf("updated %d team(s)", updated),
		Updated: updated,
	}, nil
}

func validateProgress(p *dto.ProgressValue) (int, error) {
	const msg = "progress must be a number between 0 and 100"
	if !p.Parsed || math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
		return 0, appErrors.Validation("progress", msg)
	}
	if p.Value < 0 || p.Value > 100 {
		return 0, appErrors.Validation("progress", msg)
	}
	return int(math.Round(p.Value)), nil
}

func (s *TeamService) notifyLOR(ctx context.Context, n dto.LORUnlockedNotification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyLORUnlocked(ctx, n); err != nil {
		s.logger.Warn("failed to queue LOR notification",
			zap.String("student_id", n.StudentID),
			zap.String("team_id", n.TeamID),
			zap.Error(err),
		)
	}
}

// Create makes a new team led by callerID.
func (s *TeamService) Create(ctx context.Context, callerID string, req dto.CreateTeamRequest, meta RequestMeta) (*models.Team, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid team payload")
	}
	team := &models.Team{Name: req.Name, LeaderID: callerID}
	if err := s.teams.Create(ctx, team); err != nil {
		return nil, appErrors.Internal(err, "failed to create team")
	}
	if err := s.users.SetTeamLeader(ctx, callerID); err != nil {
		s.logger.Warn("failed to flag team leader", zap.String("user_id", callerID), zap.Error(err))
	}
	team.Members = []models.TeamMember{}
	team.PendingRequests = []string{}
	s.audit(ctx, callerID, models.AuditActionTeamCreate, "team", team.ID, req, meta)
	return team, nil
}

// List returns the teams callerID leads or belongs to.
func (s *TeamService) List(ctx context.Context, callerID string) ([]dto.TeamView, error) {
	teams, err := s.teams.ListForUser(ctx, callerID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list teams")
	}
	views := make([]dto.TeamView, 0, len(teams))
	for i := range teams {
		views = append(views, dto.TeamView{Team: teams[i], Capability: models.Capability(callerID, &teams[i])})
	}
	return views, nil
}

// Get returns a team visible to callerID.
func (s *TeamService) Get(ctx context.Context, callerID, teamID string) (*dto.TeamView, error) {
	team, capability, err := s.authorize(ctx, callerID, teamID)
	if err != nil {
		return nil, err
	}
	if !capability.CanView() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not a member of this team")
	}
	return &dto.TeamView{Team: *team, Capability: capability}, nil
}

// RequestJoin files a join request for callerID.
func (s *TeamService) RequestJoin(ctx context.Context, callerID, teamID string) error {
	_, capability, err := s.authorize(ctx, callerID, teamID)
	if err != nil {
		return err
	}
	if capability != models.CapabilityNone {
		return appErrors.Clone(appErrors.ErrConflict, "already a member of this team")
	}
	added, err := s.teams.AddJoinRequest(ctx, teamID, callerID)
	if err != nil {
		return appErrors.Internal(err, "failed to request join")
	}
	if !added {
		return appErrors.Clone(appErrors.ErrConflict, "join request already pending")
	}
	return nil
}

// ListRequests returns pending join requests to a leader or team admin.
func (s *TeamService) ListRequests(ctx context.Context, callerID, teamID string) ([]dto.JoinRequestItem, error) {
	if _, err := s.requireManage(ctx, callerID, teamID); err != nil {
		return nil, err
	}
	items, err := s.teams.ListJoinRequests(ctx, teamID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to list join requests")
	}
	if items == nil {
		items = []dto.JoinRequestItem{}
	}
	return items, nil
}

// AcceptRequest admits userID as a member.
func (s *TeamService) AcceptRequest(ctx context.Context, callerID, teamID, userID string, meta RequestMeta) error {
	if _, err := s.requireManage(ctx, callerID, teamID); err != nil {
		return err
	}
	ok, err := s.teams.AcceptJoinRequest(ctx, teamID, userID)
	if err != nil {
		return appErrors.Internal(err, "failed to accept join request")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "join request not found")
	}
	s.cache.InvalidateRosters(ctx)
	s.audit(ctx, callerID, models.AuditActionTeamMembership, "team", teamID, map[string]string{"accepted": userID}, meta)
	return nil
}

// RejectRequest drops userID's pending request.
func (s *TeamService) RejectRequest(ctx context.Context, callerID, teamID, userID string) error {
	if _, err := s.requireManage(ctx, callerID, teamID); err != nil {
		return err
	}
	ok, err := s.teams.RejectJoinRequest(ctx, teamID, userID)
	if err != nil {
		return appErrors.Internal(err, "failed to reject join request")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "join request not found")
	}
	return nil
}

// UpdateMemberRole lets the leader promote or demote a member.
func (s *TeamService) UpdateMemberRole(ctx context.Context, callerID, teamID, userID string, req dto.UpdateMemberRoleRequest, meta RequestMeta) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid role payload")
	}
	team, capability, err := s.authorize(ctx, callerID, teamID)
	if err != nil {
		return err
	}
	if capability != models.CapabilityLeader {
		return appErrors.Clone(appErrors.ErrForbidden, "only the team leader can change roles")
	}
	if _, ok := team.Member(userID); !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "member not found")
	}
	if _, err := s.teams.UpdateMemberRole(ctx, teamID, userID, req.Role); err != nil {
		return appErrors.Internal(err, "failed to update member role")
	}
	s.cache.InvalidateRosters(ctx)
	s.audit(ctx, callerID, models.AuditActionTeamMembership, "team", teamID, map[string]string{"member": userID, "role": string(req.Role)}, meta)
	return nil
}

// RemoveMember removes userID from the team. Members may remove themselves;
// admins may remove plain members; the leader may remove anyone but themself.
func (s *TeamService) RemoveMember(ctx context.Context, callerID, teamID, userID string, meta RequestMeta) error {
	team, capability, err := s.authorize(ctx, callerID, teamID)
	if err != nil {
		return err
	}
	if userID == team.LeaderID {
		return appErrors.Clone(appErrors.ErrForbidden, "the team leader cannot be removed")
	}
	target, ok := team.Member(userID)
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, "member not found")
	}

	switch {
	case callerID == userID:
	case capability == models.CapabilityLeader:
	case capability == models.CapabilityAdmin && target.Role == models.MemberRoleMember:
	default:
		return appErrors.Clone(appErrors.ErrForbidden, "not allowed to remove this member")
	}

	if _, err := s.teams.RemoveMember(ctx, teamID, userID); err != nil {
		return appErrors.Internal(err, "failed to remove member")
	}
	s.cache.InvalidateRosters(ctx)
	s.audit(ctx, callerID, models.AuditActionTeamMembership, "team", teamID, map[string]string{"removed": userID}, meta)
	return nil
}

func (s *TeamService) authorize(ctx context.Context, callerID, teamID string) (*models.Team, models.TeamCapability, error) {
	team, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.CapabilityNone, appErrors.Clone(appErrors.ErrNotFound, "team not found")
		}
		return nil, models.CapabilityNone, appErrors.Internal(err, "failed to load team")
	}
	return team, models.Capability(callerID, team), nil
}

func (s *TeamService) requireManage(ctx context.Context, callerID, teamID string) (*models.Team, error) {
	team, capability, err := s.authorize(ctx, callerID, teamID)
	if err != nil {
		return nil, err
	}
	if !capability.CanManage() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "team leader or admin required")
	}
	return team, nil
}

func (s *TeamService) audit(ctx context.Context, callerID, action, resource, resourceID string, values interface{}, meta RequestMeta) {
	payload, err := json.Marshal(values)
	if err != nil {
		payload = nil
	}
	entry := &models.AuditLog{
		UserID:     &callerID,
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
		NewValues:  payload,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}
	if err := s.users.CreateAuditLog(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
