package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"html"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/jobs"
	"github.com/noah-isme/lms-api/pkg/notify"
)

// Background job types handled by NotificationService.
const (
	JobLORPush  = "lor_unlocked.push"
	JobLOREmail = "lor_unlocked.email"
)

type deviceTokenRepository interface {
	Upsert(ctx context.Context, token *models.DeviceToken) error
	FindByUserID(ctx context.Context, userID string) (*models.DeviceToken, error)
	DeleteToken(ctx context.Context, token string) error
}

type notificationUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Pusher delivers a push notification to one device.
type Pusher interface {
	Push(ctx context.Context, msg notify.PushMessage) error
}

// Mailer sends a transactional email.
type Mailer interface {
	Send(ctx context.Context, msg notify.MailMessage) error
}

// JobQueue accepts background jobs and routes them to registered handlers.
type JobQueue interface {
	Enqueue(job jobs.Job) error
	Register(jobType string, handler jobs.Handler)
}

// NotificationService stores device tokens and delivers student notifications
// through the job queue.
type NotificationService struct {
	tokens     deviceTokenRepository
	users      notificationUserRepository
	pusher     Pusher
	mailer     Mailer
	queue      JobQueue
	metrics    *MetricsService
	appBaseURL string
	validator  *validator.Validate
	logger     *zap.Logger
}

// NotificationServiceConfig wires NotificationService. Pusher and Mailer are
// optional; a missing one disables that channel.
type NotificationServiceConfig struct {
	Tokens     deviceTokenRepository
	Users      notificationUserRepository
	Pusher     Pusher
	Mailer     Mailer
	Queue      JobQueue
	Metrics    *MetricsService
	AppBaseURL string
	Validator  *validator.Validate
	Logger     *zap.Logger
}

// NewNotificationService constructs the service and registers its job handlers.
func NewNotificationService(cfg NotificationServiceConfig) *NotificationService {
	if cfg.Validator == nil {
		cfg.Validator = validator.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	s := &NotificationService{
		tokens:     cfg.Tokens,
		users:      cfg.Users,
		pusher:     cfg.Pusher,
		mailer:     cfg.Mailer,
		queue:      cfg.Queue,
		metrics:    cfg.Metrics,
		appBaseURL: cfg.AppBaseURL,
		validator:  cfg.Validator,
		logger:     cfg.Logger,
	}
	if s.queue != nil {
		s.queue.Register(JobLORPush, s.instrument(JobLORPush, s.handleLORPush))
		s.queue.Register(JobLOREmail, s.instrument(JobLOREmail, s.handleLOREmail))
	}
	return s
}

// RegisterDeviceToken stores token as the caller's only push token.
func (s *NotificationService) RegisterDeviceToken(ctx context.Context, userID string, req dto.DeviceTokenRequest) (*models.DeviceToken, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid device token payload")
	}
	token := &models.DeviceToken{UserID: userID, Token: req.Token, Platform: req.Platform}
	if err := s.tokens.Upsert(ctx, token); err != nil {
		return nil, appErrors.Internal(err, "failed to save device token")
	}
	return token, nil
}

// NotifyLORUnlocked queues a push and an email for the student. Each channel
// is a separate job so a retry of one never repeats the other.
func (s *NotificationService) NotifyLORUnlocked(ctx context.Context, n dto.LORUnlockedNotification) error {
	if s.queue == nil {
		return nil
	}
	var errs []error
	if s.pusher != nil {
		if err := s.queue.Enqueue(jobs.Job{Type: JobLORPush, Payload: n}); err != nil {
			errs = append(errs, err)
		}
	}
	if s.mailer != nil {
		if err := s.queue.Enqueue(jobs.Job{Type: JobLOREmail, Payload: n}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *NotificationService) instrument(jobType string, h jobs.Handler) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		err := h(ctx, job)
		s.metrics.RecordJob(jobType, err)
		return err
	}
}

func lorPayload(job jobs.Job) (dto.LORUnlockedNotification, error) {
	switch p := job.Payload.(type) {
	case dto.LORUnlockedNotification:
		return p, nil
	case *dto.LORUnlockedNotification:
		return *p, nil
	default:
		return dto.LORUnlockedNotification{}, fmt.Errorf("job %s: unexpected payload %T", job.ID, job.Payload)
	}
}

func (s *NotificationService) handleLORPush(ctx context.Context, job jobs.Job) error {
	n, err := lorPayload(job)
	if err != nil {
		s.logger.Error("dropping push job", zap.Error(err))
		return nil
	}
	token, err := s.tokens.FindByUserID(ctx, n.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}

	err = s.pusher.Push(ctx, notify.PushMessage{
		Token: token.Token,
		Title: "Letter of recommendation unlocked",
		Body:  fmt.Sprintf("You can now request your letter of recommendation for %s.", n.TeamName),
		Data:  map[string]string{"type": "lor_unlocked", "teamId": n.TeamID},
	})
	if errors.Is(err, notify.ErrTokenUnregistered) {
		s.logger.Info("removing unregistered device token", zap.String("user_id", n.StudentID))
		return s.tokens.DeleteToken(ctx, token.Token)
	}
	return err
}

func (s *NotificationService) handleLOREmail(ctx context.Context, job jobs.Job) error {
	n, err := lorPayload(job)
	if err != nil {
		s.logger.Error("dropping email job", zap.Error(err))
		return nil
	}
	user, err := s.users.FindByID(ctx, n.StudentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return err
	}
	if user.Email == "" {
		return nil
	}

	link := fmt.Sprintf("%s/teams/%s/lor", s.appBaseURL, n.TeamID)
	return s.mailer.Send(ctx, notify.MailMessage{
		ToName:    user.Name,
		ToAddress: user.Email,
		Subject:   "Your letter of recommendation is ready",
		TextContent: fmt.Sprintf("Hi %s,\n\nYour team leader in %s unlocked your letter of recommendation.\nDownload it at %s\n",
			user.Name, n.TeamName, link),
		HTMLContent: fmt.Sprintf("<p>Hi %s,</p><p>Your team leader in <strong>%s</strong> unlocked your letter of recommendation.</p><p><a href=\"%s\">Download it</a></p>",
			html.EscapeString(user.Name), html.EscapeString(n.TeamName), link),
	})
}
