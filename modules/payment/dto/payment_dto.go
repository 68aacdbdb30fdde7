package dto

import "encoding/json"

type PayerContact struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type InitializeRequest struct {
	TransactionRef string
	Amount         float64
	Currency       string
	Payer          PayerContact
	Metadata       map[string]any
}

type InitializeResult struct {
	CheckoutURL    string `json:"checkout_url"`
	TransactionRef string `json:"transaction_ref"`
}

type VerifyResult struct {
	Paid     bool            `json:"paid"`
	Status   string          `json:"status"`
	Amount   float64         `json:"amount"`
	Currency string          `json:"currency"`
	Raw      json.RawMessage `json:"raw,omitempty"`
}
