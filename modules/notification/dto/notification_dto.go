package dto

import (
	"consult-booking/modules/notification/entity"

	"github.com/google/uuid"
)

type MarkAsReadRequest struct {
	IDs []string `json:"ids"`
}

type EmitRequest struct {
	RecipientID uuid.UUID
	BookingID   *uuid.UUID
	Type        entity.NotificationType
	Message     string
	Metadata    map[string]any
}
