package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"math"
	"net/http"
	"net/url"

	"consult-booking/core/config"
	"consult-booking/core/errors"
	"consult-booking/core/logger"
	"consult-booking/modules/payment/dto"
)

const (
	ProviderPaystack       = "paystack"
	paystackDefaultBaseURL = "https://api.paystack.co"
)

type PaystackGateway struct {
	httpGateway
	webhookSecret string
	callbackURL   string
}

type paystackInitializeResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    struct {
		AuthorizationURL string `json:"authorization_url"`
		Reference        string `json:"reference"`
	} `json:"data"`
}

type paystackVerifyResponse struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type paystackTransaction struct {
	Status    string `json:"status"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	Reference string `json:"reference"`
}

func NewPaystackGateway(cfg config.PaymentConfig, client *http.Client) *PaystackGateway {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = paystackDefaultBaseURL
	}
	secret := cfg.WebhookSecret
	if secret == "" {
		secret = cfg.SecretKey
	}
	return &PaystackGateway{
		httpGateway:   newHTTPGateway("Paystack", baseURL, cfg.SecretKey, cfg.Timeout, client),
		webhookSecret: secret,
		callbackURL:   cfg.CallbackURL,
	}
}

func (g *PaystackGateway) Provider() string {
	return ProviderPaystack
}

// InitializeTransaction sends the amount in the currency's minor unit.
func (g *PaystackGateway) InitializeTransaction(ctx context.Context, req dto.InitializeRequest) (*dto.InitializeResult, error) {
	if err := g.ensureConfigured(); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, errors.NewAppError(errors.ErrValidation, "Payment amount must be positive", nil)
	}
	if req.Payer.Email == "" {
		return nil, errors.NewAppError(errors.ErrValidation, "Payer email is required", nil)
	}
	ref, err := g.ensureRef(req.TransactionRef)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"email":     req.Payer.Email,
		"amount":    int64(math.Round(req.Amount * 100)),
		"currency":  req.Currency,
		"reference": ref,
	}
	if g.callbackURL != "" {
		payload["callback_url"] = g.callbackURL
	}
	if len(req.Metadata) > 0 {
		payload["metadata"] = req.Metadata
	}

	var resp paystackInitializeResponse
	if err := g.doJSON(ctx, http.MethodPost, "/transaction/initialize", payload, &resp); err != nil {
		return nil, err
	}
	if !resp.Status || resp.Data.AuthorizationURL == "" {
		logger.Error("PaystackGateway:InitializeTransaction:Rejected", "reference", ref, "message", resp.Message)
		return nil, errors.NewAppError(errors.ErrUpstream, "Paystack did not return an authorization url", nil)
	}
	if resp.Data.Reference != "" {
		ref = resp.Data.Reference
	}

	logger.Info("PaystackGateway:InitializeTransaction:Success", "reference", ref)
	return &dto.InitializeResult{CheckoutURL: resp.Data.AuthorizationURL, TransactionRef: ref}, nil
}

func (g *PaystackGateway) VerifyTransaction(ctx context.Context, transactionRef string) (*dto.VerifyResult, error) {
	if err := g.ensureConfigured(); err != nil {
		return nil, err
	}
	if transactionRef == "" {
		return nil, errors.NewAppError(errors.ErrValidation, "Transaction reference is required", nil)
	}

	var resp paystackVerifyResponse
	if err := g.doJSON(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(transactionRef), nil, &resp); err != nil {
		return nil, err
	}

	result := &dto.VerifyResult{Raw: resp.Data}
	if !resp.Status || len(resp.Data) == 0 || string(resp.Data) == "null" {
		return result, nil
	}

	var tx paystackTransaction
	if err := json.Unmarshal(resp.Data, &tx); err != nil {
		return nil, errors.NewAppError(errors.ErrUpstream, "Malformed Paystack transaction", err)
	}
	result.Status = tx.Status
	result.Amount = float64(tx.Amount) / 100
	result.Currency = tx.Currency
	result.Paid = tx.Status == "success" && (tx.Reference == "" || tx.Reference == transactionRef)
	return result, nil
}

func (g *PaystackGateway) VerifySignature(header http.Header, body []byte) bool {
	if g.webhookSecret == "" {
		return true
	}
	sig := header.Get("X-Paystack-Signature")
	if sig == "" {
		return false
	}
	mac := hmac.New(sha512.New, []byte(g.webhookSecret))
	mac.Write(body)
	return hmac.Equal([]byte(hex.EncodeToString(mac.Sum(nil))), []byte(sig))
}
