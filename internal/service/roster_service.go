package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/export"
)

// UnknownStudentName labels roster rows whose profile no longer exists.
const UnknownStudentName = "Unknown Student"

const noTeamsMessage = "no teams led or administered"

type rosterTeamRepository interface {
	ListOverseen(ctx context.Context, callerID string) ([]models.Team, error)
}

type rosterUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

type rosterAttendanceRepository interface {
	ListByStudents(ctx context.Context, studentIDs []string) ([]models.Attendance, error)
}

type rosterCourseRepository interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Course, error)
}

// ExportFile is a rendered roster document.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

// RosterService builds the cross-team student roster for leaders and team admins.
type RosterService struct {
	teams      rosterTeamRepository
	users      rosterUserRepository
	attendance rosterAttendanceRepository
	courses    rosterCourseRepository
	cache      *CacheService
	cacheTTL   time.Duration
	metrics    *MetricsService
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	logger     *zap.Logger
}

// RosterServiceConfig wires RosterService dependencies.
type RosterServiceConfig struct {
	Teams      rosterTeamRepository
	Users      rosterUserRepository
	Attendance rosterAttendanceRepository
	Courses    rosterCourseRepository
	Cache      *CacheService
	CacheTTL   time.Duration
	Metrics    *MetricsService
	Logger     *zap.Logger
}

// NewRosterService constructs the service.
func NewRosterService(cfg RosterServiceConfig) *RosterService {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &RosterService{
		teams:      cfg.Teams,
		users:      cfg.Users,
		attendance: cfg.Attendance,
		courses:    cfg.Courses,
		cache:      cfg.Cache,
		cacheTTL:   cfg.CacheTTL,
		metrics:    cfg.Metrics,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		logger:     cfg.Logger,
	}
}

// GetStudentInfo aggregates every student across the teams callerID leads or
// administers. A caller overseeing no teams gets an empty, successful result.
func (s *RosterService) GetStudentInfo(ctx context.Context, callerID string) (*dto.StudentInfoResponse, error) {
	if callerID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing caller identity")
	}

	var cached dto.StudentInfoResponse
	if hit, _ := s.cache.Get(ctx, rosterCacheKey(callerID), &cached); hit {
		return &cached, nil
	}

	teams, err := s.teams.ListOverseen(ctx, callerID)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load teams")
	}
	if len(teams) == 0 {
		return &dto.StudentInfoResponse{
			Success:  true,
			Message:  noTeamsMessage,
			Teams:    []dto.TeamRef{},
			Students: []dto.StudentInfo{},
		}, nil
	}

	studentIDs := CollectStudentIDs(teams, callerID)

	records, err := s.attendance.ListByStudents(ctx, studentIDs)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load attendance")
	}
	profiles, err := s.loadProfiles(ctx, studentIDs)
	if err != nil {
		return nil, err
	}
	projects, err := s.loadProjects(ctx, callerID, profiles)
	if err != nil {
		return nil, err
	}

	resp := &dto.StudentInfoResponse{
		Success:  true,
		Teams:    TeamRefs(teams),
		Students: AggregateRoster(teams, callerID, profiles, AttendanceDays(records), projects),
	}
	s.metrics.ObserveRoster(len(resp.Students))
	_ = s.cache.Set(ctx, rosterCacheKey(callerID), resp, s.cacheTTL)
	return resp, nil
}

func (s *RosterService) loadProfiles(ctx context.Context, ids []string) (map[string]models.User, error) {
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load student profiles")
	}
	profiles := make(map[string]models.User, len(users))
	for _, u := range users {
		profiles[u.ID] = u
	}
	return profiles, nil
}

// loadProjects resolves enrolled course titles per student, restricted to the
// caller's assigned projects when the caller has any.
func (s *RosterService) loadProjects(ctx context.Context, callerID string, profiles map[string]models.User) (map[string][]string, error) {
	var assigned map[string]struct{}
	caller, err := s.users.FindByID(ctx, callerID)
	switch {
	case err == nil:
		if len(caller.AssignedProjects) > 0 {
			assigned = make(map[string]struct{}, len(caller.AssignedProjects))
			for _, id := range caller.AssignedProjects {
				assigned[id] = struct{}{}
			}
		}
	case errors.Is(err, sql.ErrNoRows):
	default:
		return nil, appErrors.Internal(err, "failed to load caller profile")
	}

	var courseIDs []string
	seen := make(map[string]struct{})
	for _, u := range profiles {
		for _, id := range u.EnrolledCourses {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			courseIDs = append(courseIDs, id)
		}
	}

	titles := make(map[string]string)
	if len(courseIDs) > 0 {
		courses, err := s.courses.FindByIDs(ctx, courseIDs)
		if err != nil {
			return nil, appErrors.Internal(err, "failed to load courses")
		}
		for _, c := range courses {
			titles[c.ID] = c.Title
		}
	}

	projects := make(map[string][]string, len(profiles))
	for id, u := range profiles {
		list := []string{}
		for _, courseID := range u.EnrolledCourses {
			title, ok := titles[courseID]
			if !ok {
				continue
			}
			if assigned != nil {
				if _, ok := assigned[courseID]; !ok {
					continue
				}
			}
			list = append(list, title)
		}
		projects[id] = list
	}
	return projects, nil
}

// CollectStudentIDs returns member ids across teams, excluding the caller,
// de-duplicated in first-seen order.
func CollectStudentIDs(teams []models.Team, callerID string) []string {
	seen := make(map[string]struct{})
	ids := []string{}
	for _, team := range teams {
		for _, m := range team.Members {
			if m.UserID == callerID {
				continue
			}
			if _, ok := seen[m.UserID]; ok {
				continue
			}
			seen[m.UserID] = struct{}{}
			ids = append(ids, m.UserID)
		}
	}
	return ids
}

// TeamRefs projects teams to id and name pairs.
func TeamRefs(teams []models.Team) []dto.TeamRef {
	refs := make([]dto.TeamRef, 0, len(teams))
	for _, t := range teams {
		refs = append(refs, dto.TeamRef{ID: t.ID, Name: t.Name})
	}
	return refs
}

// AggregateRoster folds team memberships into one row per student. Progress
// is the maximum across teams and lorUnlocked is true when any team set it.
func AggregateRoster(teams []models.Team, callerID string, profiles map[string]models.User, days map[string]float64, projects map[string][]string) []dto.StudentInfo {
	index := make(map[string]int)
	students := []dto.StudentInfo{}

	for _, team := range teams {
		for _, m := range team.Members {
			if m.UserID == callerID {
				continue
			}
			i, ok := index[m.UserID]
			if !ok {
				students = append(students, newStudentInfo(m.UserID, profiles, days, projects))
				i = len(students) - 1
				index[m.UserID] = i
			}
			st := &students[i]
			if m.Progress > st.Progress {
				st.Progress = m.Progress
			}
			st.LORUnlocked = st.LORUnlocked || m.LORUnlocked
			st.Teams = append(st.Teams, dto.StudentTeamProgress{
				TeamID:      team.ID,
				TeamName:    team.Name,
				Progress:    m.Progress,
				LORUnlocked: m.LORUnlocked,
			})
		}
	}
	return students
}

func newStudentInfo(id string, profiles map[string]models.User, days map[string]float64, projects map[string][]string) dto.StudentInfo {
	info := dto.StudentInfo{
		UserID:         id,
		Name:           UnknownStudentName,
		Role:           string(models.RoleStudent),
		AttendanceDays: days[id],
		Projects:       []string{},
		Teams:          []dto.StudentTeamProgress{},
	}
	if p, ok := profiles[id]; ok {
		if p.Name != "" {
			info.Name = p.Name
		}
		info.Email = p.Email
		info.ImageURL = p.ImageURL
		if p.Role != "" {
			info.Role = string(p.Role)
		}
	}
	if list, ok := projects[id]; ok {
		info.Projects = list
	}
	return info
}

// Export renders the caller's roster as CSV or PDF.
func (s *RosterService) Export(ctx context.Context, callerID string, format export.Format) (*ExportFile, error) {
	if format == "" {
		format = export.FormatCSV
	}
	if !format.Valid() {
		return nil, appErrors.Validation("format", "format must be csv or pdf")
	}

	roster, err := s.GetStudentInfo(ctx, callerID)
	if err != nil {
		return nil, err
	}
	dataset := rosterDataset(roster.Students)

	var data []byte
	switch format {
	case export.FormatPDF:
		data, err = s.pdf.Render(dataset, "Student roster")
	default:
		data, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Internal(err, "failed to render roster")
	}

	return &ExportFile{
		Filename:    fmt.Sprintf("roster-%s.%s", time.Now().UTC().Format("20060102"), format),
		ContentType: format.ContentType(),
		Data:        data,
	}, nil
}

var rosterHeaders = []string{"Student ID", "Name", "Email", "Progress", "Attendance Days", "LOR Unlocked", "Projects", "Teams"}

func rosterDataset(students []dto.StudentInfo) export.Dataset {
	rows := make([]map[string]string, 0, len(students))
	for _, st := range students {
		teamNames := make([]string, 0, len(st.Teams))
		for _, t := range st.Teams {
			teamNames = append(teamNames, fmt.Sprintf("%s (%d%%)", t.TeamName, t.Progress))
		}
		rows = append(rows, map[string]string{
			"Student ID":      st.UserID,
			"Name":            st.Name,
			"Email":           st.Email,
			"Progress":        strconv.Itoa(st.Progress),
			"Attendance Days": strconv.FormatFloat(st.AttendanceDays, 'f', -1, 64),
			"LOR Unlocked":    strconv.FormatBool(st.LORUnlocked),
			"Projects":        strings.Join(st.Projects, "; "),
			"Teams":           strings.Join(teamNames, "; "),
		})
	}
	return export.Dataset{Headers: rosterHeaders, Rows: rows}
}
