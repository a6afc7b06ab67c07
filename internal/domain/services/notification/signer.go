package notification

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rail-service/deposit_monitor/internal/domain/entities"
)

const (
	HeaderSignature = "X-Webhook-Signature"
	HeaderEvent     = "X-Webhook-Event"
	HeaderWebhookID = "X-Webhook-ID"

	signaturePrefix = "sha256="
)

// Sign returns the hex HMAC-SHA256 of message under secret
func Sign(message []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignatureHeader formats a signature for the X-Webhook-Signature header
func SignatureHeader(signature string) string {
	return signaturePrefix + signature
}

// VerifySignature checks signature (with or without the sha256= prefix)
// against message in constant time
func VerifySignature(message []byte, signature, secret string) bool {
	signature = strings.TrimPrefix(strings.TrimSpace(signature), signaturePrefix)
	if signature == "" {
		return false
	}
	expected := Sign(message, secret)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(signature)))
}

// SignPayload computes the signature over the payload without its signature
// field, stores it inline and returns the final request body
func SignPayload(payload *entities.WebhookPayload, secret string) ([]byte, string, error) {
	payload.Signature = ""
	unsigned, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	signature := Sign(unsigned, secret)
	payload.Signature = signature

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, "", fmt.Errorf("failed to marshal signed webhook payload: %w", err)
	}
	return body, signature, nil
}

// VerifyPayload is the subscriber-side check of a delivered body: it strips
// the inline signature, re-serialises the payload and verifies it
func VerifyPayload(body []byte, secret string) (*entities.WebhookPayload, error) {
	var payload entities.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("invalid webhook payload: %w", err)
	}

	signature := payload.Signature
	payload.Signature = ""
	unsigned, err := json.Marshal(&payload)
	if err != nil {
		return nil, err
	}
	if !VerifySignature(unsigned, signature, secret) {
		return nil, fmt.Errorf("signature mismatch")
	}

	payload.Signature = signature
	return &payload, nil
}
