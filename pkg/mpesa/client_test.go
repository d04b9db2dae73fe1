package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/sasabothq/sasabot-backend/pkg/config"
	"github.com/sasabothq/sasabot-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{
		ServiceName: "mpesa-test",
		Level:       zerolog.Disabled,
		Output:      io.Discard,
	})
}

func TestInitiateSTKPush(t *testing.T) {
	fixedNow := time.Date(2025, 9, 3, 14, 30, 5, 0, time.UTC)

	var tokenCalls, pushCalls int
	var pushBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			tokenCalls++
			auth := r.Header.Get("Authorization")
			want := "Basic " + base64.StdEncoding.EncodeToString([]byte("key:secret"))
			if auth != want {
				t.Errorf("oauth auth = %s, want %s", auth, want)
			}
			_, _ = w.Write([]byte(`{"access_token":"daraja-token","expires_in":"3599"}`))
		case "/mpesa/stkpush/v1/processrequest":
			pushCalls++
			if got := r.Header.Get("Authorization"); got != "Bearer daraja-token" {
				t.Errorf("push auth = %s", got)
			}
			raw, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(raw, &pushBody)
			_, _ = w.Write([]byte(`{"MerchantRequestID":"mr-1","CheckoutRequestID":"ws_CO_123","ResponseCode":"0","CustomerMessage":"Success"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client, err := NewClient(config.MpesaConfig{
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
		CallbackURL:    "https://bot.example.com/webhooks/mpesa",
		BaseURL:        server.URL,
		HTTPTimeout:    5 * time.Second,
	}, testLogger())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	client.now = func() time.Time { return fixedNow }

	resp, err := client.InitiateSTKPush(context.Background(), STKPushRequest{
		Phone:            "254712345678",
		Amount:           decimal.RequireFromString("1500.00"),
		AccountReference: "ORD000042",
		Description:      "SasaBot order",
	})
	if err != nil {
		t.Fatalf("InitiateSTKPush() error = %v", err)
	}
	if resp.CheckoutRequestID != "ws_CO_123" {
		t.Fatalf("CheckoutRequestID = %s", resp.CheckoutRequestID)
	}

	wantTimestamp := "20250903143005"
	if pushBody["Timestamp"] != wantTimestamp {
		t.Fatalf("Timestamp = %v, want %s", pushBody["Timestamp"], wantTimestamp)
	}
	wantPassword := base64.StdEncoding.EncodeToString([]byte("174379" + "passkey" + wantTimestamp))
	if pushBody["Password"] != wantPassword {
		t.Fatalf("Password = %v, want %s", pushBody["Password"], wantPassword)
	}
	if pushBody["Amount"] != "1500" {
		t.Fatalf("Amount = %v, want 1500", pushBody["Amount"])
	}
	if pushBody["PhoneNumber"] != "254712345678" {
		t.Fatalf("PhoneNumber = %v", pushBody["PhoneNumber"])
	}

	// A second push reuses the cached token.
	if _, err := client.InitiateSTKPush(context.Background(), STKPushRequest{
		Phone:            "254712345678",
		Amount:           decimal.NewFromInt(100),
		AccountReference: "ORD000043",
		Description:      "SasaBot order",
	}); err != nil {
		t.Fatalf("second InitiateSTKPush() error = %v", err)
	}
	if tokenCalls != 1 {
		t.Fatalf("token calls = %d, want 1", tokenCalls)
	}
	if pushCalls != 2 {
		t.Fatalf("push calls = %d, want 2", pushCalls)
	}
}

func TestInitiateSTKPush_GatewayRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			_, _ = w.Write([]byte(`{"access_token":"t","expires_in":"3599"}`))
			return
		}
		_, _ = w.Write([]byte(`{"ResponseCode":"1","CustomerMessage":"Insufficient funds"}`))
	}))
	defer server.Close()

	client, err := NewClient(config.MpesaConfig{
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey",
		BaseURL:        server.URL,
		HTTPTimeout:    5 * time.Second,
	}, testLogger())
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}

	if _, err := client.InitiateSTKPush(context.Background(), STKPushRequest{
		Phone:  "254712345678",
		Amount: decimal.NewFromInt(50),
	}); err == nil {
		t.Fatal("expected error for non-zero response code")
	}
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(config.MpesaConfig{}, testLogger()); err == nil {
		t.Fatal("expected error for missing consumer credentials")
	}
	if _, err := NewClient(config.MpesaConfig{ConsumerKey: "k", ConsumerSecret: "s"}, testLogger()); err == nil {
		t.Fatal("expected error for missing shortcode")
	}
	if _, err := NewClient(config.MpesaConfig{ConsumerKey: "k", ConsumerSecret: "s", ShortCode: "1", Passkey: "p"}, nil); err == nil {
		t.Fatal("expected error for nil logger")
	}
}
