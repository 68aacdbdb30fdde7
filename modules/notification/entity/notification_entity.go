package entity

import (
	"consult-booking/core/entity"

	"github.com/google/uuid"
)

type NotificationType string

const (
	TypeBookingRequest NotificationType = "booking_request"
	TypeBookingUpdate  NotificationType = "booking_update"
	TypeSystem         NotificationType = "system"
)

func (t NotificationType) Valid() bool {
	switch t {
	case TypeBookingRequest, TypeBookingUpdate, TypeSystem:
		return true
	}
	return false
}

type Notification struct {
	RecipientID uuid.UUID        `db:"recipient_id" json:"recipient_id"`
	BookingID   *uuid.UUID       `db:"booking_id" json:"booking_id,omitempty"`
	Type        NotificationType `db:"type" json:"type"`
	Message     string           `db:"message" json:"message"`
	Metadata    entity.JSONB     `db:"metadata" json:"metadata"`
	IsRead      bool             `db:"is_read" json:"is_read"`
	entity.BaseEntity
}

type PaginatedNotificationEntity = entity.Pagination[Notification]
