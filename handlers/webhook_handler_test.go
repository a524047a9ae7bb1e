package handlers

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func signPayload(secret, svixID, svixTimestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%s.%s.%s", svixID, svixTimestamp, string(body))))
	return "v1," + hex.EncodeToString(mac.Sum(nil))
}

func TestHandleClerkWebhook_InvalidSignature(t *testing.T) {
	t.Setenv("CLERK_WEBHOOK_SECRET", "whsec_test")

	h := NewWebhookHandler(nil)

	body := []byte(`{"type":"user.created","data":{"id":"user_123"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(body))
	req.Header.Set("svix-id", "msg_1")
	req.Header.Set("svix-timestamp", "1700000000")
	req.Header.Set("svix-signature", "v1,deadbeef")

	rr := httptest.NewRecorder()
	h.HandleClerkWebhook(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandleClerkWebhook_MissingHeaders(t *testing.T) {
	t.Setenv("CLERK_WEBHOOK_SECRET", "whsec_test")

	h := NewWebhookHandler(nil)

	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader([]byte(`{}`)))
	rr := httptest.NewRecorder()
	h.HandleClerkWebhook(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandleClerkWebhook_UnhandledEventType(t *testing.T) {
	t.Setenv("CLERK_WEBHOOK_SECRET", "whsec_test")

	h := NewWebhookHandler(nil)

	// a correctly signed event of a type we don't process is acknowledged
	// without touching storage
	body := []byte(`{"type":"session.created","data":{"id":"sess_1"}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhooks/clerk", bytes.NewReader(body))
	req.Header.Set("svix-id", "msg_2")
	req.Header.Set("svix-timestamp", "1700000000")
	req.Header.Set("svix-signature", signPayload("whsec_test", "msg_2", "1700000000", body))

	rr := httptest.NewRecorder()
	h.HandleClerkWebhook(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestHandlersRejectUnauthenticated(t *testing.T) {
	ch := NewChallengeHandler(nil, nil, nil, nil)

	endpoints := []struct {
		name string
		fn   http.HandlerFunc
	}{
		{"GetChallenge", ch.GetChallenge},
		{"CheckChallenge", ch.CheckChallenge},
		{"GetDays", ch.GetDays},
		{"GetHabits", ch.GetHabits},
	}

	for _, ep := range endpoints {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/challenge", nil)
		rr := httptest.NewRecorder()
		ep.fn(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code, ep.name)
	}
}
