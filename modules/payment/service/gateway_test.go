package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"consult-booking/core/config"
	"consult-booking/core/errors"
	"consult-booking/modules/payment/dto"
)

func TestNewGatewaySelectsProvider(t *testing.T) {
	g, err := NewGateway(config.PaymentConfig{Provider: "paystack"})
	if err != nil || g.Provider() != ProviderPaystack {
		t.Fatalf("expected paystack gateway, got %v, %v", g, err)
	}
	g, err = NewGateway(config.PaymentConfig{})
	if err != nil || g.Provider() != ProviderChapa {
		t.Fatalf("expected chapa default, got %v, %v", g, err)
	}
	if _, err := NewGateway(config.PaymentConfig{Provider: "cash"}); !errors.Is(err, errors.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestMissingSecretIsConfigurationError(t *testing.T) {
	for _, g := range []Gateway{
		NewChapaGateway(config.PaymentConfig{}, nil),
		NewPaystackGateway(config.PaymentConfig{}, nil),
	} {
		_, err := g.InitializeTransaction(context.Background(), dto.InitializeRequest{Amount: 10, Payer: dto.PayerContact{Email: "a@b.c"}})
		if !errors.Is(err, errors.ErrConfiguration) {
			t.Errorf("%s: expected configuration error, got %v", g.Provider(), err)
		}
		if _, err := g.VerifyTransaction(context.Background(), "BK-1"); !errors.Is(err, errors.ErrConfiguration) {
			t.Errorf("%s: expected configuration error on verify, got %v", g.Provider(), err)
		}
	}
}

func TestChapaInitializeAndVerify(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/transaction/initialize":
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			_, _ = w.Write([]byte(`{"status":"success","message":"Hosted Link","data":{"checkout_url":"https://checkout.chapa.co/x"}}`))
		case r.Method == http.MethodGet && r.URL.Path == "/transaction/verify/BK-PAID":
			_, _ = w.Write([]byte(`{"status":"success","data":{"status":"success","amount":"250.00","currency":"ETB","tx_ref":"BK-PAID"}}`))
		case r.Method == http.MethodGet && r.URL.Path == "/transaction/verify/BK-PENDING":
			_, _ = w.Write([]byte(`{"status":"success","data":{"status":"pending","amount":"250.00","currency":"ETB","tx_ref":"BK-PENDING"}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	g := NewChapaGateway(config.PaymentConfig{SecretKey: "sk_test", BaseURL: srv.URL, CallbackURL: "https://api/cb"}, srv.Client())

	res, err := g.InitializeTransaction(context.Background(), dto.InitializeRequest{
		Amount:   250,
		Currency: "ETB",
		Payer:    dto.PayerContact{Email: "client@example.com", FirstName: "Ada"},
	})
	if err != nil {
		t.Fatalf("InitializeTransaction() error = %v", err)
	}
	if res.CheckoutURL != "https://checkout.chapa.co/x" || !strings.HasPrefix(res.TransactionRef, "BK-") {
		t.Fatalf("unexpected result %+v", res)
	}
	if gotAuth != "Bearer sk_test" {
		t.Fatalf("unexpected auth header %q", gotAuth)
	}
	if gotBody["tx_ref"] != res.TransactionRef || gotBody["amount"] != "250.00" || gotBody["callback_url"] != "https://api/cb" {
		t.Fatalf("unexpected body %v", gotBody)
	}

	paid, err := g.VerifyTransaction(context.Background(), "BK-PAID")
	if err != nil || !paid.Paid || paid.Amount != 250 {
		t.Fatalf("VerifyTransaction(paid) = %+v, %v", paid, err)
	}
	pending, err := g.VerifyTransaction(context.Background(), "BK-PENDING")
	if err != nil || pending.Paid {
		t.Fatalf("VerifyTransaction(pending) = %+v, %v", pending, err)
	}
}

func TestUpstreamFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.URL.Path, "slow") {
			time.Sleep(200 * time.Millisecond)
		}
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewPaystackGateway(config.PaymentConfig{SecretKey: "sk", BaseURL: srv.URL}, nil)
	_, err := g.InitializeTransaction(context.Background(), dto.InitializeRequest{Amount: 5, Payer: dto.PayerContact{Email: "a@b.c"}})
	if !errors.Is(err, errors.ErrUpstream) {
		t.Fatalf("expected upstream error on 502, got %v", err)
	}

	timeoutGateway := NewPaystackGateway(config.PaymentConfig{SecretKey: "sk", BaseURL: srv.URL, Timeout: 20 * time.Millisecond}, nil)
	if _, err := timeoutGateway.VerifyTransaction(context.Background(), "slow"); !errors.Is(err, errors.ErrUpstream) {
		t.Fatalf("expected upstream error on timeout, got %v", err)
	}

	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()
	unreachable := NewChapaGateway(config.PaymentConfig{SecretKey: "sk", BaseURL: closed.URL}, nil)
	if _, err := unreachable.VerifyTransaction(context.Background(), "BK-1"); !errors.Is(err, errors.ErrUpstream) {
		t.Fatalf("expected upstream error when unreachable, got %v", err)
	}
}

func TestPaystackInitializeUsesMinorUnits(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"status":true,"message":"ok","data":{"authorization_url":"https://checkout.paystack.com/abc","reference":"BK-REF"}}`))
	}))
	defer srv.Close()

	g := NewPaystackGateway(config.PaymentConfig{SecretKey: "sk", BaseURL: srv.URL}, nil)
	res, err := g.InitializeTransaction(context.Background(), dto.InitializeRequest{
		TransactionRef: "BK-REF",
		Amount:         12.5,
		Currency:       "NGN",
		Payer:          dto.PayerContact{Email: "client@example.com"},
	})
	if err != nil {
		t.Fatalf("InitializeTransaction() error = %v", err)
	}
	if gotBody["amount"] != float64(1250) {
		t.Fatalf("expected amount in minor units, got %v", gotBody["amount"])
	}
	if res.TransactionRef != "BK-REF" || res.CheckoutURL == "" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"reference":"BK-1"}}`)

	mac := hmac.New(sha512.New, []byte("sk"))
	mac.Write(body)
	paystackSig := hex.EncodeToString(mac.Sum(nil))

	ps := NewPaystackGateway(config.PaymentConfig{SecretKey: "sk"}, nil)
	if !ps.VerifySignature(http.Header{"X-Paystack-Signature": []string{paystackSig}}, body) {
		t.Fatal("expected valid paystack signature")
	}
	if ps.VerifySignature(http.Header{"X-Paystack-Signature": []string{"deadbeef"}}, body) {
		t.Fatal("expected invalid paystack signature")
	}

	mac = hmac.New(sha256.New, []byte("whsec"))
	mac.Write(body)
	chapaSig := hex.EncodeToString(mac.Sum(nil))

	ch := NewChapaGateway(config.PaymentConfig{SecretKey: "sk", WebhookSecret: "whsec"}, nil)
	if !ch.VerifySignature(http.Header{"Chapa-Signature": []string{chapaSig}}, body) {
		t.Fatal("expected valid chapa signature")
	}
	if ch.VerifySignature(http.Header{}, body) {
		t.Fatal("missing chapa signature should fail")
	}

	open := NewChapaGateway(config.PaymentConfig{SecretKey: "sk"}, nil)
	if !open.VerifySignature(http.Header{}, body) {
		t.Fatal("no webhook secret means no signature check")
	}
}
