package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/dto"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
)

// WebhookSignatureHeader carries the hex HMAC-SHA256 of the raw request body.
const WebhookSignatureHeader = "X-Webhook-Signature"

type userDeleter interface {
	Delete(ctx context.Context, id string) (*dto.DeleteResult, error)
}

type userMerger interface {
	Merge(ctx context.Context, oldUserID, newUserID string) (*dto.MergeResult, error)
}

// WebhookService applies identity provider events to local data.
type WebhookService struct {
	secret    []byte
	users     userDeleter
	merger    userMerger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewWebhookService constructs the service. An empty secret rejects every event.
func NewWebhookService(secret string, users userDeleter, merger userMerger, validate *validator.Validate, logger *zap.Logger) *WebhookService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookService{secret: []byte(secret), users: users, merger: merger, validator: validate, logger: logger}
}

// Sign returns the signature expected for body.
func (s *WebhookService) Sign(body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify checks signature against body. A "sha256=" prefix is accepted.
func (s *WebhookService) Verify(body []byte, signature string) error {
	if len(s.secret) == 0 {
		return appErrors.Clone(appErrors.ErrUnavailable, "identity webhooks are not configured")
	}
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	if signature == "" {
		return appErrors.Clone(appErrors.ErrUnauthorized, "missing webhook signature")
	}
	if !hmac.Equal([]byte(s.Sign(body)), []byte(strings.ToLower(signature))) {
		return appErrors.Clone(appErrors.ErrUnauthorized, "invalid webhook signature")
	}
	return nil
}

// Handle verifies and dispatches a raw webhook delivery. Unknown event types
// are acknowledged and ignored.
func (s *WebhookService) Handle(ctx context.Context, body []byte, signature string) (interface{}, error) {
	if err := s.Verify(body, signature); err != nil {
		return nil, err
	}

	var event dto.IdentityEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, appErrors.Validation("body", "invalid webhook payload")
	}
	if err := s.validator.Struct(event); err != nil {
		return nil, appErrors.Validation("type", "event type and data are required")
	}

	switch event.Type {
	case dto.IdentityEventUserDeleted:
		var data dto.UserDeletedData
		if err := s.decode(event.Data, &data); err != nil {
			return nil, err
		}
		return s.users.Delete(ctx, data.ID)
	case dto.IdentityEventUserMerged:
		var data dto.UserMergedData
		if err := s.decode(event.Data, &data); err != nil {
			return nil, err
		}
		return s.merger.Merge(ctx, data.OldUserID, data.NewUserID)
	default:
		s.logger.Info("ignoring identity event", zap.String("type", event.Type))
		return nil, nil
	}
}

func (s *WebhookService) decode(raw json.RawMessage, dst interface{}) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return appErrors.Validation("data", "invalid event data")
	}
	if err := s.validator.Struct(dst); err != nil {
		return appErrors.Validation("data", "event data is incomplete")
	}
	return nil
}
