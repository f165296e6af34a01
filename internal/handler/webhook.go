package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/demilade-ak/vaultbank/internal/domain"
	"github.com/demilade-ak/vaultbank/internal/logging"
)

type gatewayEventRepository interface {
	Create(ctx context.Context, event *domain.GatewayEvent) error
}

type WebhookHandler struct {
	events gatewayEventRepository
	secret string
}

func NewWebhookHandler(events gatewayEventRepository, secret string) *WebhookHandler {
	return &WebhookHandler{events: events, secret: secret}
}

type webhookPayload struct {
	EventID   string `json:"event_id"`
	Reference string `json:"reference"`
	Outcome   string `json:"outcome"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

func (p webhookPayload) validate() []FieldError {
	var errs []FieldError

	if p.EventID == "" {
		errs = append(errs, FieldError{Field: "event_id", Message: "required"})
	}
	if p.Reference == "" {
		errs = append(errs, FieldError{Field: "reference", Message: "required"})
	}
	if p.Outcome == "" {
		errs = append(errs, FieldError{Field: "outcome", Message: "required"})
	} else if p.Outcome != "success" && p.Outcome != "failed" {
		errs = append(errs, FieldError{Field: "outcome", Message: "must be success or failed"})
	}

	return errs
}

var ErrInvalidSignature = &AppError{http.StatusUnauthorized, "INVALID_SIGNATURE", "Webhook signature is invalid"}

// ReceiveGatewayWebhook verifies and stores the raw delivery; reconciliation
// happens later in the background processor. Duplicate deliveries are
// acknowledged with 200 so the gateway stops retrying.
func (h *WebhookHandler) ReceiveGatewayWebhook(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		log.Error("failed to read webhook body", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	sig := r.Header.Get("X-Webhook-Signature")
	if !verifyHMAC(body, sig, h.secret) {
		log.Warn("webhook signature verification failed")
		RespondAppError(w, ErrInvalidSignature, nil)
		return
	}

	var payload webhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		log.Warn("failed to parse webhook payload", "error", err)
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	if fields := payload.validate(); len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	event := &domain.GatewayEvent{
		ID:        uuid.New(),
		EventID:   payload.EventID,
		Reference: payload.Reference,
		Outcome:   payload.Outcome,
		Payload:   body,
		Status:    domain.GatewayEventStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	if err := h.events.Create(r.Context(), event); err != nil {
		if errors.Is(err, domain.ErrDuplicateReference) {
			log.Info("duplicate webhook received", "event_id", payload.EventID, "reference", payload.Reference)
			RespondSuccess(w, http.StatusOK, map[string]string{"status": "already_received"})
			return
		}
		log.Error("failed to store gateway event", "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	log.Info("gateway event stored",
		"gateway_event_id", event.ID,
		"provider_event_id", payload.EventID,
		"reference", payload.Reference,
		"outcome", payload.Outcome,
	)

	RespondSuccess(w, http.StatusOK, map[string]string{"status": "received"})
}

func verifyHMAC(body []byte, signature, secret string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}
