package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/storage"
)

// ChatEventMessage is the event type pushed to sockets for every new message.
const ChatEventMessage = "message"

type chatTeamRepository interface {
	FindByID(ctx context.Context, id string) (*models.Team, error)
}

type messageRepository interface {
	Create(ctx context.Context, msg *models.TeamMessage) error
	List(ctx context.Context, teamID string, filter dto.MessageFilter) ([]models.TeamMessage, error)
}

// Broadcaster fans persisted chat events out to connected clients.
type Broadcaster interface {
	Broadcast(teamID, eventType string, data interface{})
}

// ChatServiceConfig wires ChatService.
type ChatServiceConfig struct {
	Teams       chatTeamRepository
	Messages    messageRepository
	Uploader    storage.Uploader
	Broadcaster Broadcaster
	MaxFileSize int64
	Validator   *validator.Validate
	Logger      *zap.Logger
}

// ChatService handles team chat history, new messages and shared files.
type ChatService struct {
	teams       chatTeamRepository
	messages    messageRepository
	uploader    storage.Uploader
	broadcaster Broadcaster
	maxFileSize int64
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewChatService constructs the service.
func NewChatService(cfg ChatServiceConfig) *ChatService {
	if cfg.Validator == nil {
		cfg.Validator = validator.New()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &ChatService{
		teams:       cfg.Teams,
		messages:    cfg.Messages,
		uploader:    cfg.Uploader,
		broadcaster: cfg.Broadcaster,
		maxFileSize: cfg.MaxFileSize,
		validator:   cfg.Validator,
		logger:      cfg.Logger,
	}
}

// Authorize ensures callerID can read and post in teamID.
func (s *ChatService) Authorize(ctx context.Context, callerID, teamID string) (*models.Team, error) {
	team, err := s.teams.FindByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "team not found")
		}
		return nil, appErrors.Internal(err, "failed to load team")
	}
	if !models.Capability(callerID, team).CanView() {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "team membership required")
	}
	return team, nil
}

// List returns chat history, newest first.
func (s *ChatService) List(ctx context.Context, callerID, teamID string, filter dto.MessageFilter) ([]models.TeamMessage, error) {
	if _, err := s.Authorize(ctx, callerID, teamID); err != nil {
		return nil, err
	}
	messages, err := s.messages.List(ctx, teamID, filter)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to load messages")
	}
	if messages == nil {
		messages = []models.TeamMessage{}
	}
	return messages, nil
}

// Send posts a text message and broadcasts it to the team.
func (s *ChatService) Send(ctx context.Context, callerID, teamID string, req dto.SendMessageRequest) (*models.TeamMessage, error) {
	req.Content = strings.TrimSpace(req.Content)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Validation("content", "content is required and at most 4000 characters")
	}
	if _, err := s.Authorize(ctx, callerID, teamID); err != nil {
		return nil, err
	}

	msg := &models.TeamMessage{
		TeamID:   teamID,
		SenderID: callerID,
		Kind:     models.MessageKindText,
		Content:  req.Content,
	}
	return s.persist(ctx, msg)
}

// HandleInbound persists a message received over the team socket.
func (s *ChatService) HandleInbound(ctx context.Context, teamID, userID, content string) error {
	_, err := s.Send(ctx, userID, teamID, dto.SendMessageRequest{Content: content})
	return err
}

// Upload stores a shared file and posts it to the team as a file message.
func (s *ChatService) Upload(ctx context.Context, callerID, teamID, filename, contentType string, size int64, r io.Reader) (*models.TeamMessage, error) {
	if s.uploader == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "file uploads are not configured")
	}
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." || filename == string(filepath.Separator) {
		return nil, appErrors.Validation("file", "file name is required")
	}
	if size <= 0 {
		return nil, appErrors.Validation("file", "file is empty")
	}
	if s.maxFileSize > 0 && size > s.maxFileSize {
		return nil, appErrors.Clone(appErrors.ErrTooLarge, fmt.Sprintf("file exceeds %d bytes", s.maxFileSize))
	}
	if _, err := s.Authorize(ctx, callerID, teamID); err != nil {
		return nil, err
	}

	obj, err := s.uploader.Upload(ctx, filename, contentType, r)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to store file")
	}

	url := obj.URL
	name := filename
	msg := &models.TeamMessage{
		TeamID:   teamID,
		SenderID: callerID,
		Kind:     models.MessageKindFile,
		Content:  filename,
		FileURL:  &url,
		FileName: &name,
	}
	return s.persist(ctx, msg)
}

func (s *ChatService) persist(ctx context.Context, msg *models.TeamMessage) (*models.TeamMessage, error) {
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, appErrors.Internal(err, "failed to save message")
	}
	if s.broadcaster != nil {
		s.broadcaster.Broadcast(msg.TeamID, ChatEventMessage, msg)
	}
	s.logger.Debug("team message stored", zap.String("team_id", msg.TeamID), zap.String("kind", string(msg.Kind)))
	return msg, nil
}
