package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	logx "salonbot/pkg/logx"
)

func TestGatewaySend(t *testing.T) {
	t.Parallel()

	var got struct {
		Number  string `json:"number"`
		Message string `json:"message"`
	}
	var auth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	d, err := newGateway(GatewayConfig{URL: ts.URL, Token: "sekrit"}, logx.Nop())
	if err != nil {
		t.Fatalf("newGateway: %v", err)
	}
	if err := d.Send(context.Background(), "+15551234567", "hello"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Number != "+15551234567" || got.Message != "hello" {
		t.Fatalf("payload = %+v", got)
	}
	if auth != "Bearer sekrit" {
		t.Fatalf("auth header = %q", auth)
	}
}

func TestGatewaySendNon2xx(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session expired", http.StatusBadGateway)
	}))
	defer ts.Close()

	d, err := newGateway(GatewayConfig{URL: ts.URL}, logx.Nop())
	if err != nil {
		t.Fatalf("newGateway: %v", err)
	}
	if err := d.Send(context.Background(), "+15551234567", "hello"); err == nil {
		t.Fatal("expected error on 502 response")
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()

	if _, err := Open(Config{Driver: "carrier-pigeon"}, logx.Nop(), nil); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}
