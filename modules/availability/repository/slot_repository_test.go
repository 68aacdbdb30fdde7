package repository

import (
	"context"
	"strings"
	"testing"

	"consult-booking/core/database"
	"consult-booking/core/errors"
	"consult-booking/modules/availability/entity"

	"github.com/google/uuid"
)

// rowDB serves a single availability_slots row and counts the statements run against it.
type rowDB struct {
	database.IDatabase
	slot    entity.Slot
	locks   int
	updates int
}

func (d *rowDB) GetContext(_ context.Context, dest any, query string, args ...any) error {
	out := dest.(*entity.Slot)
	switch {
	case strings.Contains(query, "FOR UPDATE"):
		d.locks++
	case strings.Contains(query, "UPDATE availability_slots"):
		d.updates++
		d.slot.Status = args[1].(entity.SlotStatus)
	}
	*out = d.slot
	return nil
}

func newRowDB(status entity.SlotStatus) *rowDB {
	slot := entity.Slot{Status: status}
	slot.ID = uuid.New()
	return &rowDB{slot: slot}
}

func TestReleaseLocksRowOnce(t *testing.T) {
	for _, status := range []entity.SlotStatus{entity.SlotStatusPending, entity.SlotStatusBooked} {
		db := newRowDB(status)
		slot, err := NewSlotRepository(db).Release(context.Background(), db.slot.ID)
		if err != nil {
			t.Fatalf("Release(%s) error = %v", status, err)
		}
		if slot.Status != entity.SlotStatusOpen {
			t.Fatalf("Release(%s) status = %s, want open", status, slot.Status)
		}
		if db.locks != 1 || db.updates != 1 {
			t.Fatalf("Release(%s): %d locks / %d updates, want 1 / 1", status, db.locks, db.updates)
		}
	}
}

func TestReleaseLeavesOpenAndArchivedSlots(t *testing.T) {
	for _, status := range []entity.SlotStatus{entity.SlotStatusOpen, entity.SlotStatusArchived} {
		db := newRowDB(status)
		slot, err := NewSlotRepository(db).Release(context.Background(), db.slot.ID)
		if err != nil {
			t.Fatalf("Release(%s) error = %v", status, err)
		}
		if slot.Status != status || db.updates != 0 {
			t.Fatalf("Release(%s) changed the slot to %s (%d updates)", status, slot.Status, db.updates)
		}
	}
}

func TestReserveAndConfirmCheckLockedStatus(t *testing.T) {
	db := newRowDB(entity.SlotStatusBooked)
	repo := NewSlotRepository(db)

	if _, err := repo.Reserve(context.Background(), db.slot.ID); !errors.Is(err, errors.ErrConflict) {
		t.Fatalf("Reserve(booked) expected conflict, got %v", err)
	}
	if _, err := repo.Confirm(context.Background(), db.slot.ID); !errors.Is(err, errors.ErrConflict) {
		t.Fatalf("Confirm(booked) expected conflict, got %v", err)
	}
	if db.locks != 2 || db.updates != 0 {
		t.Fatalf("expected one lock per call and no updates, got %d / %d", db.locks, db.updates)
	}
}
