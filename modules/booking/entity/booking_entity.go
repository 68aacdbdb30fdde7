package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"consult-booking/core/entity"

	"github.com/google/uuid"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusAccepted  BookingStatus = "accepted"
	BookingStatusDeclined  BookingStatus = "declined"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusCompleted BookingStatus = "completed"
)

// transitions is the booking lifecycle graph. Statuses absent from the map are terminal.
var transitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:  {BookingStatusAccepted, BookingStatusDeclined, BookingStatusCancelled},
	BookingStatusAccepted: {BookingStatusCompleted, BookingStatusCancelled},
}

func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusPending, BookingStatusAccepted, BookingStatusDeclined,
		BookingStatusCancelled, BookingStatusCompleted:
		return true
	}
	return false
}

func (s BookingStatus) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// ReleasesSlot reports whether entering s hands the slot back to the consultant.
func (s BookingStatus) ReleasesSlot() bool {
	return s == BookingStatusDeclined || s == BookingStatusCancelled
}

func CanTransition(from, to BookingStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
)

// PaymentMetadata is stored in the bookings.payment jsonb column.
type PaymentMetadata struct {
	Provider    string        `json:"provider,omitempty"`
	Status      PaymentStatus `json:"status"`
	Amount      float64       `json:"amount"`
	Currency    string        `json:"currency"`
	CheckoutURL string        `json:"checkout_url,omitempty"`
	PaidAt      *time.Time    `json:"paid_at,omitempty"`
}

func (p PaymentMetadata) Value() (driver.Value, error) {
	return json.Marshal(p)
}

func (p *PaymentMetadata) Scan(value any) error {
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, p)
}

type Booking struct {
	UserID           uuid.UUID        `db:"user_id" json:"user_id"`
	ConsultantID     uuid.UUID        `db:"consultant_id" json:"consultant_id"`
	SlotID           *uuid.UUID       `db:"slot_id" json:"slot_id,omitempty"`
	AppointmentStart time.Time        `db:"appointment_start" json:"appointment_start"`
	AppointmentEnd   time.Time        `db:"appointment_end" json:"appointment_end"`
	Timezone         string           `db:"timezone" json:"timezone"`
	Status           BookingStatus    `db:"status" json:"status"`
	Notes            *string          `db:"notes" json:"notes,omitempty"`
	StatusNote       *string          `db:"status_note" json:"status_note,omitempty"`
	TransactionRef   *string          `db:"transaction_ref" json:"transaction_ref,omitempty"`
	MeetingLink      *string          `db:"meeting_link" json:"meeting_link,omitempty"`
	ExternalEventID  *string          `db:"external_event_id" json:"external_event_id,omitempty"`
	Payment          *PaymentMetadata `db:"payment" json:"payment,omitempty"`
	entity.BaseEntity
}

func (b Booking) IsPaid() bool {
	return b.Payment != nil && b.Payment.Status == PaymentStatusPaid
}

// RequiresPayment reports whether the booking was created with a payment transaction.
func (b Booking) RequiresPayment() bool {
	return b.Payment != nil || b.TransactionRef != nil
}
