package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/rail-service/deposit_monitor/internal/domain/entities"
	"github.com/rail-service/deposit_monitor/pkg/logger"
)

// WebhookManager registers and removes deposit subscribers
type WebhookManager interface {
	Register(ctx context.Context, req *entities.RegisterWebhookRequest) (*entities.WebhookResponse, error)
	List(ctx context.Context) ([]*entities.WebhookResponse, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type WebhookHandlers struct {
	webhooks WebhookManager
	logger   *logger.Logger
}

func NewWebhookHandlers(webhooks WebhookManager, logger *logger.Logger) *WebhookHandlers {
	return &WebhookHandlers{webhooks: webhooks, logger: logger}
}

// Register handles POST /api/v1/webhooks
func (h *WebhookHandlers) Register(c *gin.Context) {
	var req entities.RegisterWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidRequest, MsgInvalidRequest, map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	resp, err := h.webhooks.Register(c.Request.Context(), &req)
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// List handles GET /api/v1/webhooks
func (h *WebhookHandlers) List(c *gin.Context) {
	hooks, err := h.webhooks.List(c.Request.Context())
	if err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"webhooks": hooks,
		"count":    len(hooks),
	})
}

// Delete handles DELETE /api/v1/webhooks/:id
func (h *WebhookHandlers) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, ErrCodeInvalidID, "Invalid webhook id", nil)
		return
	}

	if err := h.webhooks.Delete(c.Request.Context(), id); err != nil {
		handleServiceError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}
