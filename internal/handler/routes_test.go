package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

type tokenStub struct{}

func (tokenStub) ValidateToken(token string) (*models.JWTClaims, error) {
	switch token {
	case "student":
		return &models.JWTClaims{UserID: "S1", Role: models.RoleStudent}, nil
	case "admin":
		return &models.JWTClaims{UserID: "A1", Role: models.RoleAdmin}, nil
	}
	return nil, appErrors.ErrUnauthorized
}

type provisionStub struct{}

func (provisionStub) EnsureUser(ctx context.Context, claims *models.JWTClaims) (*models.User, error) {
	return &models.User{ID: claims.CallerID(), Role: claims.Role}, nil
}

type auditNoop struct{}

func (auditNoop) CreateAuditLog(ctx context.Context, log *models.AuditLog) error { return nil }

type fakeUserSrv struct{}

func (fakeUserSrv) Get(ctx context.Context, id string) (*models.User, error) {
	return &models.User{ID: id}, nil
}

func newTestRouter() *gin.Engine {
	engine := gin.New()
	Router{
		Auth:    tokenStub{},
		Users:   provisionStub{},
		Audit:   auditNoop{},
		Roster:  NewRosterHandler(&fakeRosterSrv{resp: &dto.StudentInfoResponse{Success: true}}),
		Team:    NewTeamHandler(&fakeTeamSrv{}),
		Chat:    NewChatHandler(&fakeChatSrv{}, nil, nil, nil),
		User:    NewUserHandler(fakeUserSrv{}),
		Webhook: NewWebhookHandler(&fakeWebhookSrv{}),
		Metrics: NewMetricsHandler(nil, "test", nil),
	}.Register(engine.Group("/api"))
	return engine
}

func TestRouterGuards(t *testing.T) {
	router := newTestRouter()

	cases := []struct {
		name  string
		path  string
		token string
		want  int
	}{
		{"roster without token", "/api/teams/student-info", "", http.StatusUnauthorized},
		{"roster with token", "/api/teams/student-info", "student", http.StatusOK},
		{"own profile", "/api/users/S1", "student", http.StatusOK},
		{"other profile as student", "/api/users/S2", "student", http.StatusForbidden},
		{"other profile as admin", "/api/users/S2", "admin", http.StatusOK},
		{"me", "/api/users/me", "student", http.StatusOK},
		{"admin metrics as student", "/api/admin/metrics", "student", http.StatusForbidden},
		{"admin metrics as admin", "/api/admin/metrics", "admin", http.StatusOK},
		{"messages", "/api/teams/team1/messages", "student", http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestRouterWebhookIsPublic(t *testing.T) {
	router := newTestRouter()
	req := httptest.NewRequest(http.MethodPost, "/api/webhooks/identity", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
