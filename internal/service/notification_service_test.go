package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/jobs"
	"github.com/noah-isme/lms-api/pkg/notify"
)

type queueStub struct {
	jobs     []jobs.Job
	handlers map[string]jobs.Handler
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *queueStub) Register(jobType string, handler jobs.Handler) {
	if q.handlers == nil {
		q.handlers = map[string]jobs.Handler{}
	}
	q.handlers[jobType] = handler
}

func (q *queueStub) drain(t *testing.T) {
	t.Helper()
	pending := q.jobs
	q.jobs = nil
	for _, job := range pending {
		handler, ok := q.handlers[job.Type]
		require.True(t, ok, job.Type)
		require.NoError(t, handler(context.Background(), job))
	}
}

type tokenRepoStub struct {
	tokens  map[string]models.DeviceToken
	deleted []string
}

func (s *tokenRepoStub) Upsert(ctx context.Context, token *models.DeviceToken) error {
	if s.tokens == nil {
		s.tokens = map[string]models.DeviceToken{}
	}
	s.tokens[token.UserID] = *token
	return nil
}

func (s *tokenRepoStub) FindByUserID(ctx context.Context, userID string) (*models.DeviceToken, error) {
	if tok, ok := s.tokens[userID]; ok {
		return &tok, nil
	}
	return nil, sql.ErrNoRows
}

func (s *tokenRepoStub) DeleteToken(ctx context.Context, token string) error {
	s.deleted = append(s.deleted, token)
	return nil
}

type pusherStub struct {
	sent []notify.PushMessage
	err  error
}

func (p *pusherStub) Push(ctx context.Context, msg notify.PushMessage) error {
	p.sent = append(p.sent, msg)
	return p.err
}

type mailerStub struct {
	sent []notify.MailMessage
}

func (m *mailerStub) Send(ctx context.Context, msg notify.MailMessage) error {
	m.sent = append(m.sent, msg)
	return nil
}

func TestNotifyLORUnlockedDeliversPushAndEmail(t *testing.T) {
	queue := &queueStub{}
	tokens := &tokenRepoStub{tokens: map[string]models.DeviceToken{"S1": {UserID: "S1", Token: "tok-1"}}}
	pusher := &pusherStub{}
	mailer := &mailerStub{}
	svc := NewNotificationService(NotificationServiceConfig{
		Tokens:     tokens,
		Users:      newUserRepoStub(models.User{ID: "S1", Name: "Sam", Email: "sam@example.com"}),
		Pusher:     pusher,
		Mailer:     mailer,
		Queue:      queue,
		AppBaseURL: "https://lms.example.com",
	})

	require.NoError(t, svc.NotifyLORUnlocked(context.Background(), dto.LORUnlockedNotification{StudentID: "S1", TeamID: "t1", TeamName: "Rockets"}))
	require.Len(t, queue.jobs, 2)
	queue.drain(t)

	require.Len(t, pusher.sent, 1)
	assert.Equal(t, "tok-1", pusher.sent[0].Token)
	assert.Equal(t, "t1", pusher.sent[0].Data["teamId"])
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "sam@example.com", mailer.sent[0].ToAddress)
	assert.Contains(t, mailer.sent[0].TextContent, "https://lms.example.com/teams/t1/lor")
}

func TestNotifyLORUnlockedDropsUnregisteredToken(t *testing.T) {
	queue := &queueStub{}
	tokens := &tokenRepoStub{tokens: map[string]models.DeviceToken{"S1": {UserID: "S1", Token: "stale"}}}
	svc := NewNotificationService(NotificationServiceConfig{
		Tokens: tokens,
		Users:  newUserRepoStub(),
		Pusher: &pusherStub{err: notify.ErrTokenUnregistered},
		Queue:  queue,
	})

	require.NoError(t, svc.NotifyLORUnlocked(context.Background(), dto.LORUnlockedNotification{StudentID: "S1", TeamID: "t1"}))
	require.Len(t, queue.jobs, 1)
	queue.drain(t)
	assert.Equal(t, []string{"stale"}, tokens.deleted)
}

func TestNotifyLORUnlockedWithoutChannels(t *testing.T) {
	queue := &queueStub{}
	svc := NewNotificationService(NotificationServiceConfig{Tokens: &tokenRepoStub{}, Users: newUserRepoStub(), Queue: queue})

	require.NoError(t, svc.NotifyLORUnlocked(context.Background(), dto.LORUnlockedNotification{StudentID: "S1"}))
	assert.Empty(t, queue.jobs)
}

func TestRegisterDeviceToken(t *testing.T) {
	tokens := &tokenRepoStub{}
	svc := NewNotificationService(NotificationServiceConfig{Tokens: tokens, Users: newUserRepoStub()})

	_, err := svc.RegisterDeviceToken(context.Background(), "S1", dto.DeviceTokenRequest{Token: "abc", Platform: "web"})
	require.NoError(t, err)
	assert.Equal(t, "abc", tokens.tokens["S1"].Token)

	_, err = svc.RegisterDeviceToken(context.Background(), "S1", dto.DeviceTokenRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}
