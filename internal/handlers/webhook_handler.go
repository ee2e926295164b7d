package handlers

import (
	"errors"
	"net/http"
	"unibox/internal/models"
	"unibox/internal/services"
	"unibox/internal/utils"
)

const signatureHeader = "X-Twilio-Signature"

// WebhookHandler receives inbound provider callbacks. The provider account
// maps to a single tenant, so the tenant is fixed at construction instead
// of coming from the request.
type WebhookHandler struct {
	ingest     *services.IngestService
	tenantID   string
	webhookURL string
}

func NewWebhookHandler(ingest *services.IngestService, tenantID, webhookURL string) *WebhookHandler {
	return &WebhookHandler{
		ingest:     ingest,
		tenantID:   tenantID,
		webhookURL: webhookURL,
	}
}

// @Summary Inbound provider callback
// @Description Accepts the provider's form-encoded inbound message callback; responds with an empty body as the provider expects
// @Tags webhooks
// @Accept x-www-form-urlencoded
// @Success 200 {string} string ""
// @Failure 400 {object} models.APIResponse
// @Failure 403 {object} models.APIResponse
// @Router /webhooks/provider [post]
func (h *WebhookHandler) HandleInbound(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		models.RespondWithError(w, models.ErrMalformedWebhook)
		return
	}

	signature := r.Header.Get(signatureHeader)
	_, err := h.ingest.Ingest(h.tenantID, r.PostForm, signature, h.webhookURL)
	if err != nil {
		if errors.Is(err, models.ErrSignatureInvalid) {
			utils.LogWarning("rejected webhook with bad signature from %s", r.RemoteAddr)
		} else {
			utils.LogError("webhook ingest failed: %v", err)
		}
		models.RespondWithError(w, err)
		return
	}

	// The provider only wants a 2xx acknowledgement, no content.
	w.WriteHeader(http.StatusOK)
}
