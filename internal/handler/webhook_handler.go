package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lms-api/internal/service"
	appErrors "github.com/noah-isme/lms-api/pkg/errors"
	"github.com/noah-isme/lms-api/pkg/response"
)

const maxWebhookBody = 1 << 20

type webhookService interface {
	Handle(ctx context.Context, body []byte, signature string) (interface{}, error)
}

// WebhookHandler receives identity provider events.
type WebhookHandler struct {
	service webhookService
}

// NewWebhookHandler constructs the handler.
func NewWebhookHandler(svc webhookService) *WebhookHandler {
	return &WebhookHandler{service: svc}
}

// Identity godoc
// @Summary Identity provider webhook
// @Description Handles user.deleted and user.merged events signed with HMAC-SHA256
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param X-Webhook-Signature header string true "hex HMAC-SHA256 of the body"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /webhooks/identity [post]
func (h *WebhookHandler) Identity(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody+1))
	if err != nil {
		response.Error(c, appErrors.Validation("body", "failed to read body"))
		return
	}
	if len(body) > maxWebhookBody {
		response.Error(c, appErrors.ErrTooLarge)
		return
	}

	result, err := h.service.Handle(c.Request.Context(), body, c.GetHeader(service.WebhookSignatureHeader))
	if err != nil {
		response.Error(c, err)
		return
	}
	if result == nil {
		response.Message(c, http.StatusOK, "event ignored")
		return
	}
	response.JSON(c, http.StatusOK, result)
}
