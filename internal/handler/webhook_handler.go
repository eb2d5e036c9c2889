package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/barber-academy-api/internal/dto"
	appErrors "github.com/noah-isme/barber-academy-api/pkg/errors"
	"github.com/noah-isme/barber-academy-api/pkg/response"
)

const (
	// SignatureHeader carries the hex HMAC-SHA256 of the raw request body.
	SignatureHeader = "X-Webhook-Signature"
	callAnalyzed    = "call_analyzed"
	maxWebhookBody  = 1 << 20
)

type callLeadCreator interface {
	CreateLeadFromCall(ctx context.Context, call dto.CallAnalyticsCall) (*dto.LeadResult, error)
}

// WebhookHandler receives call analytics deliveries.
type WebhookHandler struct {
	funnel callLeadCreator
	secret []byte
	logger *zap.Logger
}

// NewWebhookHandler constructs WebhookHandler. An empty secret disables signature checks.
func NewWebhookHandler(funnel callLeadCreator, secret string, logger *zap.Logger) *WebhookHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookHandler{funnel: funnel, secret: []byte(secret), logger: logger}
}

// CallAnalytics godoc
// @Summary Receive a call analytics event
// @Description Creates a lead from the caller of an analysed call. Other events are acknowledged and ignored.
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param X-Webhook-Signature header string false "hex HMAC-SHA256 of the body"
// @Param payload body dto.CallAnalyticsEvent true "Event"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /webhooks/call-analytics [post]
func (h *WebhookHandler) CallAnalytics(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable body"))
		return
	}
	if !h.verify(body, c.GetHeader(SignatureHeader)) {
		h.logger.Warn("call analytics webhook signature mismatch", zap.String("ip", c.ClientIP()))
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid webhook signature"))
		return
	}

	var event dto.CallAnalyticsEvent
	if err := json.Unmarshal(body, &event); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if event.Event != callAnalyzed {
		response.JSON(c, http.StatusOK, dto.WebhookAck{Received: true, Ignored: true}, nil)
		return
	}

	result, err := h.funnel.CreateLeadFromCall(c.Request.Context(), event.Call)
	if err != nil {
		response.Error(c, err)
		return
	}
	leadID := result.Lead.ID
	response.JSON(c, http.StatusOK, dto.WebhookAck{Received: true, LeadID: &leadID, Created: result.Created}, nil)
}

func (h *WebhookHandler) verify(body []byte, signature string) bool {
	if len(h.secret) == 0 {
		return true
	}
	signature = strings.TrimPrefix(strings.TrimSpace(signature), "sha256=")
	provided, err := hex.DecodeString(signature)
	if err != nil || len(provided) == 0 {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	_, _ = mac.Write(body)
	return hmac.Equal(mac.Sum(nil), provided)
}
