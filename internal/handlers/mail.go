package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/batterybuildsog1/Project-manager/internal/detectors"
	"github.com/batterybuildsog1/Project-manager/pkg/response"
)

// MailHandler receives inbound messages from an external mailbox poller and
// feeds them to the blocker matcher.
type MailHandler struct {
	detector *detectors.MailDetector
}

// NewMailHandler constructs the handler.
func NewMailHandler(detector *detectors.MailDetector) *MailHandler {
	return &MailHandler{detector: detector}
}

// Inbound processes one message against the open blockers.
func (h *MailHandler) Inbound(c *gin.Context) {
	var payload struct {
		From    string `json:"from" validate:"required"`
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}

	if !bindAndValidate(c, &payload) {
		return
	}

	matched, err := h.detector.Process(requestContext(c), detectors.InboundMessage{
		From:    payload.From,
		Subject: payload.Subject,
		Body:    payload.Body,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"matched": matched})
}
