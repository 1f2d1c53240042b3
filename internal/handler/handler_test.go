package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/middleware"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/service"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/export"
)

type responseEnvelope struct {
	Success bool                   `json:"success"`
	Message string                 `json:"message"`
	Data    json.RawMessage        `json:"data"`
	Error   map[string]interface{} `json:"error"`
}

func init() {
	gin.SetMode(gin.TestMode)
}

func testContext(method, target string, body io.Reader, callerID string) (*gin.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(method, target, body)
	if body != nil {
		c.Request.Header.Set("Content-Type", "application/json")
	}
	if callerID != "" {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: callerID, Role: models.RoleEducator})
	}
	return c, rec
}

type fakeRosterSrv struct {
	caller string
	format export.Format
	resp   *dto.StudentInfoResponse
	err    error
}

func (f *fakeRosterSrv) GetStudentInfo(ctx context.Context, callerID string) (*dto.StudentInfoResponse, error) {
	f.caller = callerID
	return f.resp, f.err
}

func (f *fakeRosterSrv) Export(ctx context.Context, callerID string, format export.Format) (*service.ExportFile, error) {
	f.format = format
	if f.err != nil {
		return nil, f.err
	}
	return &service.ExportFile{Filename: "roster.csv", ContentType: format.ContentType(), Data: []byte("a,b\n")}, nil
}

func TestRosterHandlerStudentInfo(t *testing.T) {
	srv := &fakeRosterSrv{resp: &dto.StudentInfoResponse{
		Success:  true,
		Teams:    []dto.TeamRef{{ID: "team1", Name: "Team One"}},
		Students: []dto.StudentInfo{{UserID: "S1", Name: "Sam", Progress: 80, AttendanceDays: 1.5}},
	}}
	h := NewRosterHandler(srv)

	c, rec := testContext(http.MethodGet, "/teams/student-info", nil, "L")
	h.StudentInfo(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "L", srv.caller)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	teams := body["teams"].([]interface{})
	assert.Equal(t, "team1", teams[0].(map[string]interface{})["_id"])
	student := body["students"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, 1.5, student["attendanceDays"])
}

func TestRosterHandlerRequiresCaller(t *testing.T) {
	h := NewRosterHandler(&fakeRosterSrv{})
	c, rec := testContext(http.MethodGet, "/teams/student-info", nil, "")
	h.StudentInfo(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRosterHandlerExport(t *testing.T) {
	srv := &fakeRosterSrv{}
	h := NewRosterHandler(srv)

	c, rec := testContext(http.MethodGet, "/teams/student-info/export?format=CSV", nil, "L")
	h.Export(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, export.FormatCSV, srv.format)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "roster.csv")
	assert.Equal(t, "a,b\n", rec.Body.String())
}

type fakeTeamSrv struct {
	teamService
	req  dto.UpdateProgressRequest
	resp *dto.UpdateProgressResponse
	err  error
}

func (f *fakeTeamSrv) UpdateStudentProgress(ctx context.Context, callerID string, req dto.UpdateProgressRequest, meta service.RequestMeta) (*dto.UpdateProgressResponse, error) {
	f.req = req
	return f.resp, f.err
}

func (f *fakeTeamSrv) RemoveMember(ctx context.Context, callerID, teamID, userID string, meta service.RequestMeta) error {
	return f.err
}

func TestTeamHandlerUpdateProgress(t *testing.T) {
	srv := &fakeTeamSrv{resp: &dto.UpdateProgressResponse{Success: true, Message: "updated 2 team(s)", Updated: 2}}
	h := NewTeamHandler(srv)

	body := bytes.NewBufferString(`{"studentId":"S1","progress":"85","lorUnlocked":true}`)
	c, rec := testContext(http.MethodPut, "/teams/update-progress", body, "L")
	h.UpdateProgress(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "S1", srv.req.StudentID)
	require.NotNil(t, srv.req.Progress)
	assert.Equal(t, 85.0, srv.req.Progress.Value)
	require.NotNil(t, srv.req.LORUnlocked)
	assert.True(t, *srv.req.LORUnlocked)

	var resp dto.UpdateProgressResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Updated)
}

func TestTeamHandlerUpdateProgressErrors(t *testing.T) {
	h := NewTeamHandler(&fakeTeamSrv{err: appErrors.Validation("progress", "progress must be between 0 and 100")})

	c, rec := testContext(http.MethodPut, "/teams/update-progress", bytes.NewBufferString(`{"studentId":"S1","progress":150}`), "L")
	h.UpdateProgress(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var env responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.Equal(t, "progress", env.Error["field"])

	c, rec = testContext(http.MethodPut, "/teams/update-progress", bytes.NewBufferString(`{`), "L")
	h.UpdateProgress(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTeamHandlerRemoveMember(t *testing.T) {
	h := NewTeamHandler(&fakeTeamSrv{})
	c, rec := testContext(http.MethodDelete, "/teams/team1/members/S1", nil, "L")
	c.Params = gin.Params{{Key: "id", Value: "team1"}, {Key: "userId", Value: "S1"}}
	h.RemoveMember(c)
	c.Writer.WriteHeaderNow() // gin engine flushes lazily-set status after handlers; mimic it here
	assert.Equal(t, http.StatusNoContent, rec.Code)

	h = NewTeamHandler(&fakeTeamSrv{err: appErrors.ErrForbidden})
	c, rec = testContext(http.MethodDelete, "/teams/team1/members/L", nil, "S1")
	h.RemoveMember(c)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

type fakeChatSrv struct {
	chatService
	uploaded string
	size     int64
	content  []byte
}

func (f *fakeChatSrv) Upload(ctx context.Context, callerID, teamID, filename, contentType string, size int64, r io.Reader) (*models.TeamMessage, error) {
	f.uploaded = filename
	f.size = size
	f.content, _ = io.ReadAll(r)
	url := "https://cdn.example.com/" + filename
	return &models.TeamMessage{ID: "m1", TeamID: teamID, Kind: models.MessageKindFile, FileURL: &url}, nil
}

func (f *fakeChatSrv) List(ctx context.Context, callerID, teamID string, filter dto.MessageFilter) ([]models.TeamMessage, error) {
	return []models.TeamMessage{}, nil
}

func TestChatHandlerUpload(t *testing.T) {
	srv := &fakeChatSrv{}
	h := NewChatHandler(srv, nil, nil, nil)

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("hello"))
	require.NoError(t, writer.Close())

	c, rec := testContext(http.MethodPost, "/teams/team1/files", nil, "S1")
	c.Request = httptest.NewRequest(http.MethodPost, "/teams/team1/files", &buf)
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())
	c.Params = gin.Params{{Key: "id", Value: "team1"}}
	h.Upload(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "notes.txt", srv.uploaded)
	assert.Equal(t, int64(5), srv.size)
	assert.Equal(t, "hello", string(srv.content))
}

func TestChatHandlerListRejectsBadLimit(t *testing.T) {
	h := NewChatHandler(&fakeChatSrv{}, nil, nil, nil)
	c, rec := testContext(http.MethodGet, "/teams/team1/messages?limit=abc", nil, "S1")
	h.List(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChatHandlerSocketDisabled(t *testing.T) {
	h := NewChatHandler(&fakeChatSrv{}, nil, nil, nil)
	c, rec := testContext(http.MethodGet, "/teams/team1/ws", nil, "S1")
	h.Socket(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type fakeWebhookSrv struct {
	signature string
	body      []byte
	result    interface{}
	err       error
}

func (f *fakeWebhookSrv) Handle(ctx context.Context, body []byte, signature string) (interface{}, error) {
	f.body = body
	f.signature = signature
	return f.result, f.err
}

func TestWebhookHandler(t *testing.T) {
	srv := &fakeWebhookSrv{result: &dto.DeleteResult{UserID: "u1"}}
	h := NewWebhookHandler(srv)

	c, rec := testContext(http.MethodPost, "/webhooks/identity", bytes.NewBufferString(`{"type":"user.deleted"}`), "")
	c.Request.Header.Set(service.WebhookSignatureHeader, "abc")
	h.Identity(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", srv.signature)
	assert.JSONEq(t, `{"type":"user.deleted"}`, string(srv.body))

	srv.result = nil
	c, rec = testContext(http.MethodPost, "/webhooks/identity", bytes.NewBufferString(`{}`), "")
	h.Identity(c)
	require.Equal(t, http.StatusOK, rec.Code)
	var env responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "event ignored", env.Message)

	srv.err = appErrors.Clone(appErrors.ErrUnauthorized, "invalid webhook signature")
	c, rec = testContext(http.MethodPost, "/webhooks/identity", bytes.NewBufferString(`{}`), "")
	h.Identity(c)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	h := NewMetricsHandler(service.NewMetricsService(), "test", map[string]ReadinessCheck{
		"postgres": func(ctx context.Context) error { return nil },
	})
	c, rec := testContext(http.MethodGet, "/ready", nil, "")
	h.Ready(c)
	assert.Equal(t, http.StatusOK, rec.Code)

	h = NewMetricsHandler(nil, "test", map[string]ReadinessCheck{
		"redis": func(ctx context.Context) error { return appErrors.ErrUnavailable },
	})
	c, rec = testContext(http.MethodGet, "/ready", nil, "")
	h.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "redis")
}
