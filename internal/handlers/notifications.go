package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/batterybuildsog1/Project-manager/internal/models"
	"github.com/batterybuildsog1/Project-manager/internal/services"
	"github.com/batterybuildsog1/Project-manager/pkg/response"
)

// NotificationHandler exposes HTTP endpoints for event intake, queue
// inspection and manual digest runs.
type NotificationHandler struct {
	router *services.RouterService
	digest *services.DigestService
	now    func() time.Time
}

// NewNotificationHandler constructs the handler.
func NewNotificationHandler(router *services.RouterService, digest *services.DigestService) *NotificationHandler {
	return &NotificationHandler{
		router: router,
		digest: digest,
		now:    time.Now,
	}
}

// Intake accepts one event and routes it through the engine.
func (h *NotificationHandler) Intake(c *gin.Context) {
	var payload struct {
		Priority       string         `json:"priority" validate:"required"`
		Message        string         `json:"message" validate:"required"`
		EventKind      string         `json:"event_kind"`
		SourceEntityID string         `json:"source_entity_id"`
		Metadata       map[string]any `json:"metadata"`
	}

	if !bindAndValidate(c, &payload) {
		return
	}

	result, err := h.router.Intake(requestContext(c), services.IntakeInput{
		Priority:       models.Priority(strings.ToLower(strings.TrimSpace(payload.Priority))),
		Message:        payload.Message,
		EventKind:      payload.EventKind,
		SourceEntityID: payload.SourceEntityID,
		Metadata:       payload.Metadata,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	status := http.StatusCreated
	if result.Outcome != services.OutcomeCreated {
		status = http.StatusOK
	}
	response.Success(c, status, result)
}

// List returns stored notifications, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	input := services.ListNotificationsInput{
		Priority: models.Priority(strings.TrimSpace(c.Query("priority"))),
		Limit:    parseIntQuery(c, "limit", 25),
		Offset:   parseIntQuery(c, "offset", 0),
	}

	switch strings.TrimSpace(c.Query("pending")) {
	case "true":
		pending := true
		input.Pending = &pending
	case "false":
		pending := false
		input.Pending = &pending
	}

	items, err := h.router.List(requestContext(c), input)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, items)
}

// RunBatch triggers a daily digest run immediately.
func (h *NotificationHandler) RunBatch(c *gin.Context) {
	count, err := h.digest.RunBatch(requestContext(c), h.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sent": count})
}

// RunWeekly triggers the weekly report run immediately.
func (h *NotificationHandler) RunWeekly(c *gin.Context) {
	sent, err := h.digest.RunWeekly(requestContext(c), h.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sent": sent})
}
