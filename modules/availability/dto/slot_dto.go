package dto

import "time"

type CreateSlotRequest struct {
	ConsultantID string         `json:"consultant_id"`
	SlotStart    time.Time      `json:"slot_start"`
	SlotEnd      time.Time      `json:"slot_end"`
	Timezone     string         `json:"timezone"`
	Metadata     map[string]any `json:"metadata"`
}

// UpdateSlotRequest is a partial update; nil fields are left unchanged.
type UpdateSlotRequest struct {
	SlotStart *time.Time     `json:"slot_start"`
	SlotEnd   *time.Time     `json:"slot_end"`
	Timezone  *string        `json:"timezone"`
	Status    *string        `json:"status"`
	Metadata  map[string]any `json:"metadata"`
}
