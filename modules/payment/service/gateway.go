package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"consult-booking/core/config"
	"consult-booking/core/errors"
	"consult-booking/core/logger"
	"consult-booking/core/utils"
	"consult-booking/modules/payment/dto"
)

const defaultTimeout = 15 * time.Second

// Gateway wraps a transaction-based payment provider.
type Gateway interface {
	Provider() string
	InitializeTransaction(ctx context.Context, req dto.InitializeRequest) (*dto.InitializeResult, error)
	// VerifyTransaction only reads provider state and may be called any number of times.
	VerifyTransaction(ctx context.Context, transactionRef string) (*dto.VerifyResult, error)
	// VerifySignature checks a webhook body against the provider signature header.
	// It returns true when no webhook secret is configured.
	VerifySignature(header http.Header, body []byte) bool
}

// NewGateway picks the provider named in cfg.Provider.
func NewGateway(cfg config.PaymentConfig) (Gateway, error) {
	switch cfg.Provider {
	case "", ProviderChapa:
		return NewChapaGateway(cfg, nil), nil
	case ProviderPaystack:
		return NewPaystackGateway(cfg, nil), nil
	default:
		return nil, errors.NewAppError(errors.ErrConfiguration, "Unknown payment provider: "+cfg.Provider, nil)
	}
}

type httpGateway struct {
	name      string
	baseURL   string
	secretKey string
	client    *http.Client
}

func newHTTPGateway(name, baseURL, secretKey string, timeout time.Duration, client *http.Client) httpGateway {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return httpGateway{name: name, baseURL: baseURL, secretKey: secretKey, client: client}
}

func (g *httpGateway) ensureConfigured() error {
	if g.secretKey == "" {
		return errors.NewAppError(errors.ErrConfiguration, g.name+" secret key is not configured", nil)
	}
	return nil
}

func (g *httpGateway) ensureRef(ref string) (string, error) {
	if ref != "" {
		return ref, nil
	}
	ref, err := utils.GenerateTransactionRef("bk")
	if err != nil {
		return "", errors.NewAppError(errors.ErrInternalServer, "Failed to generate transaction reference", err)
	}
	return ref, nil
}

// doJSON sends payload (if any) as JSON and decodes the provider response into out.
// Transport failures and non-2xx responses become upstream errors.
func (g *httpGateway) doJSON(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return errors.NewAppError(errors.ErrInternalServer, "Failed to encode payment request", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return errors.NewAppError(errors.ErrInternalServer, "Failed to build payment request", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		logger.Error("PaymentGateway:Request:Error", "provider", g.name, "path", path, "error", err)
		return errors.NewAppError(errors.ErrUpstream, g.name+" is unreachable", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.NewAppError(errors.ErrUpstream, "Failed to read "+g.name+" response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		logger.Error("PaymentGateway:Request:Rejected", "provider", g.name, "path", path, "status", resp.StatusCode, "body", string(raw))
		return errors.NewAppError(errors.ErrUpstream, fmt.Sprintf("%s rejected the request (status %d)", g.name, resp.StatusCode), nil)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return errors.NewAppError(errors.ErrUpstream, "Malformed "+g.name+" response", err)
	}
	return nil
}
