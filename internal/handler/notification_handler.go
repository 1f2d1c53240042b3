package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/dto"
	"github.com/noah-isme/lms-api/internal/models"
	"github.com/noah-isme/lms-api/pkg/response"
)

type notificationService interface {
	RegisterDeviceToken(ctx context.Context, userID string, req dto.DeviceTokenRequest) (*models.DeviceToken, error)
}

// NotificationHandler manages push registrations.
type NotificationHandler struct {
	service notificationService
}

// NewNotificationHandler constructs the handler.
func NewNotificationHandler(svc notificationService) *NotificationHandler {
	return &NotificationHandler{service: svc}
}

// RegisterDeviceToken godoc
// @Summary Register push token
// @Description Stores the caller's device token, replacing any previous one
// @Tags Notifications
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.DeviceTokenRequest true "Token"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /notifications/device-token [put]
func (h *NotificationHandler) RegisterDeviceToken(c *gin.Context) {
	caller, ok := callerID(c)
	if !ok {
		return
	}
	var req dto.DeviceTokenRequest
	if !bindJSON(c, &req) {
		return
	}
	token, err := h.service.RegisterDeviceToken(c.Request.Context(), caller, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, token)
}
