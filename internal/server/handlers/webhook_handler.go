package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/argan/internal/domain/models"
	service "github.com/mamadbah2/argan/internal/service/whatsapp"
)

const (
	whatsAppObject  = "whatsapp_business_account"
	signatureHeader = "X-Hub-Signature-256"
)

// WebhookHandler exposes the chat surface: Meta's verification handshake,
// inbound command deliveries and operator notifications.
type WebhookHandler struct {
	svc       service.MessagingService
	appSecret []byte
	logger    *zap.Logger
}

// NewWebhookHandler constructs the HTTP handler adapter. Deliveries are
// only authenticated when appSecret is set.
func NewWebhookHandler(svc service.MessagingService, appSecret string, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &WebhookHandler{svc: svc, logger: logger}
	if appSecret != "" {
		h.appSecret = []byte(appSecret)
	}
	return h
}

// Verify responds to Meta's webhook verification challenge.
func (h *WebhookHandler) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	challenge, err := h.svc.VerifyWebhookToken(mode, c.Query("hub.verify_token"), c.Query("hub.challenge"))
	if err != nil {
		h.logger.Warn("webhook verification failed", zap.String("mode", mode), zap.Error(err))
		c.String(http.StatusForbidden, "verification failed")
		return
	}

	c.String(http.StatusOK, challenge)
}

// Receive runs the chat commands of a delivery. Once authenticated and
// decoded, a delivery is always acknowledged: its commands already reached
// the ledger and a redelivery would only be skipped.
func (h *WebhookHandler) Receive(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable payload"})
		return
	}

	if !h.signed(raw, c.GetHeader(signatureHeader)) {
		h.logger.Warn("rejecting unsigned webhook delivery", zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
		return
	}

	var payload models.WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		h.logger.Warn("invalid webhook payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	if payload.Object != "" && payload.Object != whatsAppObject {
		h.logger.Debug("ignoring webhook for other object", zap.String("object", payload.Object))
		c.Status(http.StatusOK)
		return
	}

	if err := h.svc.HandleWebhook(c.Request.Context(), payload); err != nil {
		h.logger.Error("chat delivery had failing commands", zap.Error(err))
	}

	c.Status(http.StatusOK)
}

// SendMessage pushes an operator notification to one chat.
func (h *WebhookHandler) SendMessage(c *gin.Context) {
	var req models.OutboundMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid outbound payload", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if err := h.svc.SendOutbound(c.Request.Context(), req); err != nil {
		h.logger.Error("failed sending outbound", zap.String("to", req.To), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "unable to send message"})
		return
	}

	c.Status(http.StatusAccepted)
}

// signed checks the "sha256=<hex hmac>" header Meta computes over the raw body.
func (h *WebhookHandler) signed(body []byte, header string) bool {
	if h.appSecret == nil {
		return true
	}
	digest, ok := strings.CutPrefix(header, "sha256=")
	if !ok {
		return false
	}
	got, err := hex.DecodeString(digest)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, h.appSecret)
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}
