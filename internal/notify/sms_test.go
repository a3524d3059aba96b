package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendOTPPostsPayload(t *testing.T) {
	var (
		gotAuth string
		gotBody smsPayload
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender := NewSMSSender(SMSConfig{
		Endpoint: srv.URL,
		APIKey:   "test-key",
		Sender:   "VENDOOR",
	})

	if err := sender.SendOTP(context.Background(), "+15550100", "A1B2C3"); err != nil {
		t.Fatalf("SendOTP: %v", err)
	}
	if gotAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotBody.To != "+15550100" || gotBody.From != "VENDOOR" {
		t.Fatalf("unexpected payload: %+v", gotBody)
	}
	if !strings.Contains(gotBody.Body, "A1B2C3") {
		t.Fatalf("payload does not carry the code: %q", gotBody.Body)
	}
}

func TestSendOTPProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	sender := NewSMSSender(SMSConfig{Endpoint: srv.URL, APIKey: "test-key"})
	err := sender.SendOTP(context.Background(), "+15550100", "A1B2C3")
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected provider error, got %v", err)
	}
}

func TestSendOTPRequiresNumber(t *testing.T) {
	sender := NewSMSSender(SMSConfig{Endpoint: "http://127.0.0.1:0", APIKey: "k"})
	if err := sender.SendOTP(context.Background(), " ", "A1B2C3"); err == nil {
		t.Fatal("expected error for missing phone number")
	}
}
