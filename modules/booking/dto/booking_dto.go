package dto

import (
	"time"

	"consult-booking/modules/booking/entity"

	"github.com/google/uuid"
)

type CreateBookingRequest struct {
	ConsultantID string `json:"consultant_id"`
	SlotID       string `json:"slot_id"`
	Notes        string `json:"notes"`
}

type ChangeStatusRequest struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

// BookingResult is returned from a booking request. CheckoutURL is set only when
// the booking needs payment.
type BookingResult struct {
	Booking     *entity.Booking `json:"booking"`
	CheckoutURL string          `json:"checkout_url,omitempty"`
}

type ListBookingsQuery struct {
	UserID       *uuid.UUID
	ConsultantID *uuid.UUID
	Status       string
	Limit        int
	Offset       int
}

// BookingEvent is published to the broker after a lifecycle change commits.
type BookingEvent struct {
	BookingID    uuid.UUID            `json:"booking_id"`
	UserID       uuid.UUID            `json:"user_id"`
	ConsultantID uuid.UUID            `json:"consultant_id"`
	SlotID       *uuid.UUID           `json:"slot_id,omitempty"`
	Status       entity.BookingStatus `json:"status"`
	Paid         bool                 `json:"paid"`
	OccurredAt   time.Time            `json:"occurred_at"`
}

func NewBookingEvent(b *entity.Booking, at time.Time) BookingEvent {
	return BookingEvent{
		BookingID:    b.ID,
		UserID:       b.UserID,
		ConsultantID: b.ConsultantID,
		SlotID:       b.SlotID,
		Status:       b.Status,
		Paid:         b.IsPaid(),
		OccurredAt:   at.UTC(),
	}
}

type PaymentCallbackRequest struct {
	TxRef     string `json:"tx_ref"`
	TrxRef    string `json:"trx_ref"`
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Data      struct {
		TxRef     string `json:"tx_ref"`
		Reference string `json:"reference"`
		Status    string `json:"status"`
	} `json:"data"`
}

// Ref returns the first transaction reference present in the payload.
func (r PaymentCallbackRequest) Ref() string {
	for _, v := range []string{r.TxRef, r.TrxRef, r.Reference, r.Data.TxRef, r.Data.Reference} {
		if v != "" {
			return v
		}
	}
	return ""
}

func (r PaymentCallbackRequest) StatusHint() string {
	if r.Status != "" {
		return r.Status
	}
	return r.Data.Status
}

// ReconciliationRecord is archived when a payment callback could not be processed.
type ReconciliationRecord struct {
	TransactionRef string    `json:"transaction_ref"`
	StatusHint     string    `json:"status_hint,omitempty"`
	Provider       string    `json:"provider"`
	Code           string    `json:"code"`
	Error          string    `json:"error"`
	ReceivedAt     time.Time `json:"received_at"`
}
