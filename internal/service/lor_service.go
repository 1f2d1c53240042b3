package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/export"
)

type lorUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type letterRenderer interface {
	RenderLetter(l export.Letter) ([]byte, error)
}

// LORService issues letters of recommendation to students whose letter was unlocked.
type LORService struct {
	teams    chatTeamRepository
	users    lorUserRepository
	renderer letterRenderer
	logger   *zap.Logger
	now      func() time.Time
}

// NewLORService constructs the service.
func NewLORService(teams chatTeamRepository, users lorUserRepository, renderer letterRenderer, logger *zap.Logger) *LORService {
	if renderer == nil {
		renderer = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LORService{teams: teams, users: users, renderer: renderer, logger: logger, now: time.Now}
}

// Letter renders the caller's letter for teamID.
func (s *LORService) Letter(ctx context.Context, callerID, teamID string) (*ExportFile, error) {
	team, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "team not found")
		}
		return nil, appErrors.Internal(err, "failed to load team")
	}

	member, ok := team.Member(callerID)
	if !ok || !member.LORUnlocked {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "letter of recommendation is not unlocked")
	}

	student, err := s.users.FindByID(ctx, callerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Internal(err, "failed to load user")
	}

	letter := export.Letter{
		StudentName: student.Name,
		TeamName:    team.Name,
		ProjectName: member.ProjectName,
		Progress:    member.Progress,
		IssuedAt:    s.now().UTC(),
	}
	if letter.StudentName == "" {
		letter.StudentName = student.Email
	}
	if leader, err := s.users.FindByID(ctx, team.LeaderID); err == nil {
		letter.LeaderName = leader.Name
	} else if !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("failed to load team leader for letter", zap.String("team_id", teamID), zap.Error(err))
	}

	data, err := s.renderer.RenderLetter(letter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render letter")
	}

	return &ExportFile{
		Filename:    fmt.Sprintf("lor-%s.pdf", team.ID),
		ContentType: export.FormatPDF.ContentType(),
		Data:        data,
	}, nil
}
