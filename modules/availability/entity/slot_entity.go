package entity

import (
	"time"

	"consult-booking/core/entity"

	"github.com/google/uuid"
)

type SlotStatus string

const (
	SlotStatusOpen     SlotStatus = "open"
	SlotStatusPending  SlotStatus = "pending"
	SlotStatusBooked   SlotStatus = "booked"
	SlotStatusArchived SlotStatus = "archived"
)

func (s SlotStatus) Valid() bool {
	switch s {
	case SlotStatusOpen, SlotStatusPending, SlotStatusBooked, SlotStatusArchived:
		return true
	}
	return false
}

// Slot is a consultant-published bookable time window.
type Slot struct {
	ConsultantID uuid.UUID    `db:"consultant_id" json:"consultant_id"`
	SlotStart    time.Time    `db:"slot_start" json:"slot_start"`
	SlotEnd      time.Time    `db:"slot_end" json:"slot_end"`
	Timezone     string       `db:"timezone" json:"timezone"`
	Status       SlotStatus   `db:"status" json:"status"`
	Metadata     entity.JSONB `db:"metadata" json:"metadata"`
	entity.BaseEntity
}
