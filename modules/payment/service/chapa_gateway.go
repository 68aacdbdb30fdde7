package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"consult-booking/core/config"
	"consult-booking/core/errors"
	"consult-booking/core/logger"
	"consult-booking/modules/payment/dto"
)

const (
	ProviderChapa       = "chapa"
	chapaDefaultBaseURL = "https://api.chapa.co/v1"
)

type ChapaGateway struct {
	httpGateway
	webhookSecret string
	callbackURL   string
	returnURL     string
}

type chapaInitializeResponse struct {
	Status  string `json:"status"`
	Message any    `json:"message"`
	Data    struct {
		CheckoutURL string `json:"checkout_url"`
	} `json:"data"`
}

type chapaVerifyResponse struct {
	Status  string          `json:"status"`
	Message any             `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type chapaTransaction struct {
	Status   string      `json:"status"`
	Amount   json.Number `json:"amount"`
	Currency string      `json:"currency"`
	TxRef    string      `json:"tx_ref"`
}

func NewChapaGateway(cfg config.PaymentConfig, client *http.Client) *ChapaGateway {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = chapaDefaultBaseURL
	}
	return &ChapaGateway{
		httpGateway:   newHTTPGateway("Chapa", baseURL, cfg.SecretKey, cfg.Timeout, client),
		webhookSecret: cfg.WebhookSecret,
		callbackURL:   cfg.CallbackURL,
		returnURL:     cfg.ReturnURL,
	}
}

func (g *ChapaGateway) Provider() string {
	return ProviderChapa
}

func (g *ChapaGateway) InitializeTransaction(ctx context.Context, req dto.InitializeRequest) (*dto.InitializeResult, error) {
	if err := g.ensureConfigured(); err != nil {
		return nil, err
	}
	if req.Amount <= 0 {
		return nil, errors.NewAppError(errors.ErrValidation, "Payment amount must be positive", nil)
	}
	ref, err := g.ensureRef(req.TransactionRef)
	if err != nil {
		return nil, err
	}

	payload := map[string]any{
		"amount":     strconv.FormatFloat(req.Amount, 'f', 2, 64),
		"currency":   req.Currency,
		"email":      req.Payer.Email,
		"first_name": req.Payer.FirstName,
		"last_name":  req.Payer.LastName,
		"tx_ref":     ref,
	}
	if g.callbackURL != "" {
		payload["callback_url"] = g.callbackURL
	}
	if g.returnURL != "" {
		payload["return_url"] = g.returnURL
	}
	if len(req.Metadata) > 0 {
		payload["meta"] = req.Metadata
	}

	var resp chapaInitializeResponse
	if err := g.doJSON(ctx, http.MethodPost, "/transaction/initialize", payload, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" || resp.Data.CheckoutURL == "" {
		logger.Error("ChapaGateway:InitializeTransaction:Rejected", "tx_ref", ref, "message", resp.Message)
		return nil, errors.NewAppError(errors.ErrUpstream, "Chapa did not return a checkout link", nil)
	}

	logger.Info("ChapaGateway:InitializeTransaction:Success", "tx_ref", ref)
	return &dto.InitializeResult{CheckoutURL: resp.Data.CheckoutURL, TransactionRef: ref}, nil
}

func (g *ChapaGateway) VerifyTransaction(ctx context.Context, transactionRef string) (*dto.VerifyResult, error) {
	if err := g.ensureConfigured(); err != nil {
		return nil, err
	}
	if transactionRef == "" {
		return nil, errors.NewAppError(errors.ErrValidation, "Transaction reference is required", nil)
	}

	var resp chapaVerifyResponse
	if err := g.doJSON(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(transactionRef), nil, &resp); err != nil {
		return nil, err
	}

	result := &dto.VerifyResult{Raw: resp.Data, Status: resp.Status}
	if resp.Status != "success" || len(resp.Data) == 0 || string(resp.Data) == "null" {
		return result, nil
	}

	var tx chapaTransaction
	if err := json.Unmarshal(resp.Data, &tx); err != nil {
		return nil, errors.NewAppError(errors.ErrUpstream, "Malformed Chapa transaction", err)
	}
	amount, _ := tx.Amount.Float64()
	result.Status = tx.Status
	result.Amount = amount
	result.Currency = tx.Currency
	result.Paid = tx.Status == "success" && (tx.TxRef == "" || tx.TxRef == transactionRef)
	return result, nil
}

func (g *ChapaGateway) VerifySignature(header http.Header, body []byte) bool {
	if g.webhookSecret == "" {
		return true
	}
	sig := header.Get("Chapa-Signature")
	if sig == "" {
		sig = header.Get("X-Chapa-Signature")
	}
	if sig == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(g.webhookSecret))
	mac.Write(body)
	return hmac.Equal([]byte(hex.EncodeToString(mac.Sum(nil))), []byte(sig))
}
