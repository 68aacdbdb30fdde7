package repository

import (
	"context"
	"database/sql"
	"fmt"

	"consult-booking/core/database"
	"consult-booking/core/errors"
	"consult-booking/core/logger"
	"consult-booking/modules/availability/entity"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const slotColumns = `id, consultant_id, slot_start, slot_end, timezone, status, metadata, created_at, updated_at`

type SlotRepository interface {
	WithTx(tx database.IDatabase) SlotRepository

	Create(ctx context.Context, slot *entity.Slot) (*entity.Slot, error)
	// GetByID and GetByIDForUpdate return nil, nil when the slot does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Slot, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Slot, error)
	ListByConsultant(ctx context.Context, consultantID uuid.UUID, status *entity.SlotStatus) ([]entity.Slot, error)
	Update(ctx context.Context, slot *entity.Slot) (*entity.Slot, error)

	// Status transitions. Each locks the row with FOR UPDATE, so callers must hold a transaction.
	Reserve(ctx context.Context, id uuid.UUID) (*entity.Slot, error)
	Release(ctx context.Context, id uuid.UUID) (*entity.Slot, error)
	Confirm(ctx context.Context, id uuid.UUID) (*entity.Slot, error)
}

type slotRepository struct {
	db database.IDatabase
}

func NewSlotRepository(db database.IDatabase) SlotRepository {
	return &slotRepository{db: db}
}

func (r *slotRepository) WithTx(tx database.IDatabase) SlotRepository {
	return &slotRepository{db: tx}
}

func (r *slotRepository) Create(ctx context.Context, slot *entity.Slot) (*entity.Slot, error) {
	query := `
		INSERT INTO availability_slots (consultant_id, slot_start, slot_end, timezone, status, metadata)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + slotColumns

	var created entity.Slot
	err := r.db.GetContext(ctx, &created, query,
		slot.ConsultantID, slot.SlotStart, slot.SlotEnd, slot.Timezone, slot.Status, slot.Metadata)
	if err != nil {
		logger.Error("SlotRepository:Create:Error", "consultant_id", slot.ConsultantID, "error", err)
		return nil, err
	}
	return &created, nil
}

func (r *slotRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Slot, error) {
	return r.get(ctx, `SELECT `+slotColumns+` FROM availability_slots WHERE id = $1`, id)
}

func (r *slotRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Slot, error) {
	return r.get(ctx, `SELECT `+slotColumns+` FROM availability_slots WHERE id = $1 FOR UPDATE`, id)
}

func (r *slotRepository) get(ctx context.Context, query string, id uuid.UUID) (*entity.Slot, error) {
	var slot entity.Slot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		logger.Error("SlotRepository:Get:Error", "slot_id", id, "error", err)
		return nil, err
	}
	return &slot, nil
}

func (r *slotRepository) ListByConsultant(ctx context.Context, consultantID uuid.UUID, status *entity.SlotStatus) ([]entity.Slot, error) {
	query := `SELECT ` + slotColumns + ` FROM availability_slots WHERE consultant_id = $1`
	args := []any{consultantID}
	if status != nil {
		query += ` AND status = $2`
		args = append(args, *status)
	}
	query += ` ORDER BY slot_start ASC`

	slots := []entity.Slot{}
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		logger.Error("SlotRepository:ListByConsultant:Error", "consultant_id", consultantID, "error", err)
		return nil, err
	}
	return slots, nil
}

func (r *slotRepository) Update(ctx context.Context, slot *entity.Slot) (*entity.Slot, error) {
	query := `
		UPDATE availability_slots
		SET slot_start = $2, slot_end = $3, timezone = $4, status = $5, metadata = $6, updated_at = now()
		WHERE id = $1
		RETURNING ` + slotColumns

	var updated entity.Slot
	err := r.db.GetContext(ctx, &updated, query,
		slot.ID, slot.SlotStart, slot.SlotEnd, slot.Timezone, slot.Status, slot.Metadata)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewAppError(errors.ErrNotFound, "Slot not found", nil)
		}
		logger.Error("SlotRepository:Update:Error", "slot_id", slot.ID, "error", err)
		return nil, err
	}
	return &updated, nil
}

func (r *slotRepository) Reserve(ctx context.Context, id uuid.UUID) (*entity.Slot, error) {
	current, err := r.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.move(ctx, current, entity.SlotStatusPending, entity.SlotStatusOpen)
}

// Release reopens a pending or booked slot. Open and archived slots are returned
// unchanged, so a slot the consultant withdrew stays withdrawn.
func (r *slotRepository) Release(ctx context.Context, id uuid.UUID) (*entity.Slot, error) {
	current, err := r.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == entity.SlotStatusOpen || current.Status == entity.SlotStatusArchived {
		return current, nil
	}
	return r.move(ctx, current, entity.SlotStatusOpen, entity.SlotStatusPending, entity.SlotStatusBooked)
}

func (r *slotRepository) Confirm(ctx context.Context, id uuid.UUID) (*entity.Slot, error) {
	current, err := r.lock(ctx, id)
	if err != nil {
		return nil, err
	}
	return r.move(ctx, current, entity.SlotStatusBooked, entity.SlotStatusPending)
}

func (r *slotRepository) lock(ctx context.Context, id uuid.UUID) (*entity.Slot, error) {
	current, err := r.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "Slot not found", nil)
	}
	return current, nil
}

// move checks the locked row against from, then applies a conditional update so a
// concurrent writer can never be overwritten silently.
func (r *slotRepository) move(ctx context.Context, current *entity.Slot, to entity.SlotStatus, from ...entity.SlotStatus) (*entity.Slot, error) {
	if !statusIn(current.Status, from) {
		return nil, errors.NewAppError(errors.ErrConflict,
			fmt.Sprintf("Slot is %s and cannot become %s", current.Status, to), nil)
	}

	allowed := make([]string, len(from))
	for i, s := range from {
		allowed[i] = string(s)
	}

	query := `
		UPDATE availability_slots
		SET status = $2, updated_at = now()
		WHERE id = $1 AND status = ANY($3)
		RETURNING ` + slotColumns

	var updated entity.Slot
	if err := r.db.GetContext(ctx, &updated, query, current.ID, to, pq.Array(allowed)); err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewAppError(errors.ErrConflict, "Slot is no longer available", nil)
		}
		logger.Error("SlotRepository:Transition:Error", "slot_id", current.ID, "to", to, "error", err)
		return nil, err
	}

	logger.Debug("SlotRepository:Transition", "slot_id", current.ID, "from", current.Status, "to", to)
	return &updated, nil
}

func statusIn(s entity.SlotStatus, set []entity.SlotStatus) bool {
	for _, candidate := range set {
		if s == candidate {
			return true
		}
	}
	return false
}
