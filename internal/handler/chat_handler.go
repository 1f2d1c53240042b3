package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/internal/realtime"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/response"
)

type chatService interface {
	Authorize(ctx context.Context, callerID, teamID string) (*models.Team, error)
	List(ctx context.Context, callerID, teamID string, filter dto.MessageFilter) ([]models.TeamMessage, error)
	Send(ctx context.Context, callerID, teamID string, req dto.SendMessageRequest) (*models.TeamMessage, error)
	Upload(ctx context.Context, callerID, teamID, filename, contentType string, size int64, r io.Reader) (*models.TeamMessage, error)
	HandleInbound(ctx context.Context, teamID, userID, content string) error
}

// ChatHandler serves team chat over HTTP and websockets.
type ChatHandler struct {
	service  chatService
	hub      *realtime.Hub
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewChatHandler constructs the handler. hub may be nil, which disables sockets.
func NewChatHandler(svc chatService, hub *realtime.Hub, allowedOrigins []string, logger *zap.Logger) *ChatHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatHandler{service: svc, hub: hub, upgrader: realtime.NewUpgrader(allowedOrigins), logger: logger}
}

// List godoc
// @Summary Team chat history
// @Tags Chat
// @Produce json
// @Security BearerAuth
// @Param id path string true "Team ID"
// @Param before query string false "Only messages older than this message id"
// @Param limit query int false "Page size (max 200)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /teams/{id}/messages [get]
func (h *ChatHandler) List(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	filter := dto.MessageFilter{Before: c.Query("before")}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			response.Error(c, appErrors.Validation("limit", "limit must be a positive integer"))
			return
		}
		filter.Limit = limit
	}
	messages, err := h.service.List(c.Request.Context(), caller, c.Param("id"), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, messages)
}

// Send godoc
// @Summary Post a chat message
// @Tags Chat
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Team ID"
// @Param payload body dto.SendMessageRequest true "Message"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /teams/{id}/messages [post]
func (h *ChatHandler) Send(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	var req dto.SendMessageRequest
	if !bindJSON(c, &req) {
		return
	}
	msg, err := h.service.Send(c.Request.Context(), caller, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}

// Upload godoc
// @Summary Share a file with the team
// @Tags Chat
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param id path string true "Team ID"
// @Param file formData file true "File"
// @Success 201 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /teams/{id}/files [post]
func (h *ChatHandler) Upload(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Validation("file", "multipart field \"file\" is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Internal(err, "failed to read upload"))
		return
	}
	defer file.Close()

	msg, err := h.service.Upload(c.Request.Context(), caller, c.Param("id"), header.Filename, header.Header.Get("Content-Type"), header.Size, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, msg)
}

// Socket godoc
// @Summary Team chat websocket
// @Description Upgrades to a websocket that receives every new team message. Text frames sent by the client are posted as messages.
// @Tags Chat
// @Security BearerAuth
// @Param id path string true "Team ID"
// @Param token query string false "Bearer token when headers cannot be set"
// @Success 101
// @Router /teams/{id}/ws [get]
func (h *ChatHandler) Socket(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	if h.hub == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrUnavailable, "chat sockets are disabled"))
		return
	}
	teamID := c.Param("id")
	if _, err := h.service.Authorize(c.Request.Context(), caller, teamID); err != nil {
		response.Error(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("team_id", teamID), zap.Error(err))
		return
	}
	h.hub.Serve(c.Request.Context(), conn, teamID, caller, h.service.HandleInbound)
}
