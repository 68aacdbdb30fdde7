package service

import (
	"context"
	"strings"
	"time"

	"consult-booking/core/access"
	"consult-booking/core/constants"
	"consult-booking/core/database"
	coreEntity "consult-booking/core/entity"
	"consult-booking/core/errors"
	"consult-booking/core/logger"
	accountRepository "consult-booking/modules/account/repository"
	"consult-booking/modules/availability/dto"
	"consult-booking/modules/availability/entity"
	"consult-booking/modules/availability/repository"

	"github.com/google/uuid"
)

type SlotService interface {
	CreateSlot(ctx context.Context, consultantID uuid.UUID, start, end time.Time, timezone string, meta map[string]any) (*entity.Slot, error)
	ListSlots(ctx context.Context, consultantID uuid.UUID, status string) ([]entity.Slot, error)
	UpdateSlot(ctx context.Context, actor access.Identity, slotID uuid.UUID, patch dto.UpdateSlotRequest) (*entity.Slot, error)
}

type slotService struct {
	db    database.Transactor
	repo  repository.SlotRepository
	users accountRepository.UserRepository
}

func NewSlotService(db database.Transactor, repo repository.SlotRepository, users accountRepository.UserRepository) SlotService {
	return &slotService{db: db, repo: repo, users: users}
}

func (s *slotService) CreateSlot(ctx context.Context, consultantID uuid.UUID, start, end time.Time, timezone string, meta map[string]any) (*entity.Slot, error) {
	if consultantID == uuid.Nil {
		return nil, errors.NewAppError(errors.ErrValidation, "consultant_id is required", nil)
	}
	timezone, err := normalizeTimezone(timezone)
	if err != nil {
		return nil, err
	}
	if err := validateWindow(start, end); err != nil {
		return nil, err
	}

	consultant, err := s.users.GetByID(ctx, consultantID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load consultant", err)
	}
	if consultant == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "Consultant not found", nil)
	}
	if consultant.AccessRole() != access.RoleConsultant {
		return nil, errors.NewAppError(errors.ErrRoleMismatch, "Availability can only be published for consultants", nil)
	}

	slot, err := s.repo.Create(ctx, &entity.Slot{
		ConsultantID: consultantID,
		SlotStart:    start.UTC(),
		SlotEnd:      end.UTC(),
		Timezone:     timezone,
		Status:       entity.SlotStatusOpen,
		Metadata:     coreEntity.JSONB(meta),
	})
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to create slot", err)
	}

	logger.Info("SlotService:CreateSlot:Success", "slot_id", slot.ID, "consultant_id", consultantID)
	return slot, nil
}

func (s *slotService) ListSlots(ctx context.Context, consultantID uuid.UUID, status string) ([]entity.Slot, error) {
	if consultantID == uuid.Nil {
		return nil, errors.NewAppError(errors.ErrValidation, "consultant_id is required", nil)
	}

	var filter *entity.SlotStatus
	if status != "" {
		st := entity.SlotStatus(status)
		if !st.Valid() {
			return nil, errors.NewAppError(errors.ErrValidation, "Unknown slot status: "+status, nil)
		}
		filter = &st
	}

	slots, err := s.repo.ListByConsultant(ctx, consultantID, filter)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to list slots", err)
	}
	return slots, nil
}

// UpdateSlot applies patch under a row lock. Slots holding an active booking
// (pending or booked) may only be archived; their window is frozen.
func (s *slotService) UpdateSlot(ctx context.Context, actor access.Identity, slotID uuid.UUID, patch dto.UpdateSlotRequest) (*entity.Slot, error) {
	var updated *entity.Slot

	err := s.db.WithTx(ctx, func(tx database.IDatabase) error {
		repo := s.repo.WithTx(tx)

		slot, err := repo.GetByIDForUpdate(ctx, slotID)
		if err != nil {
			return errors.NewAppError(errors.ErrInternalServer, "Failed to load slot", err)
		}
		if slot == nil {
			return errors.NewAppError(errors.ErrNotFound, "Slot not found", nil)
		}
		if slot.ConsultantID != actor.ID && !access.Can(actor.Role, access.ActionManageAnySlots) {
			return errors.NewAppError(errors.ErrForbidden, "You can only update your own availability", nil)
		}

		if err := applyPatch(slot, patch); err != nil {
			return err
		}

		updated, err = repo.Update(ctx, slot)
		if err != nil {
			if errors.CodeOf(err) != errors.ErrInternalServer {
				return err
			}
			return errors.NewAppError(errors.ErrInternalServer, "Failed to update slot", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("SlotService:UpdateSlot:Success", "slot_id", slotID, "status", updated.Status)
	return updated, nil
}

func applyPatch(slot *entity.Slot, patch dto.UpdateSlotRequest) error {
	active := slot.Status == entity.SlotStatusPending || slot.Status == entity.SlotStatusBooked
	windowChange := patch.SlotStart != nil || patch.SlotEnd != nil || patch.Timezone != nil

	if active && windowChange {
		return errors.NewAppError(errors.ErrConflict, "Slot has an active booking and its window cannot change", nil)
	}

	if patch.SlotStart != nil {
		slot.SlotStart = patch.SlotStart.UTC()
	}
	if patch.SlotEnd != nil {
		slot.SlotEnd = patch.SlotEnd.UTC()
	}
	if patch.Timezone != nil {
		tz, err := normalizeTimezone(*patch.Timezone)
		if err != nil {
			return err
		}
		slot.Timezone = tz
	}
	if err := validateWindow(slot.SlotStart, slot.SlotEnd); err != nil {
		return err
	}

	if patch.Status != nil {
		next := entity.SlotStatus(*patch.Status)
		switch next {
		case entity.SlotStatusArchived:
		case entity.SlotStatusOpen:
			if active {
				return errors.NewAppError(errors.ErrConflict, "Slot has an active booking; change the booking instead", nil)
			}
		default:
			return errors.NewAppError(errors.ErrValidation, "Slot status can only be set to open or archived", nil)
		}
		slot.Status = next
	}

	if patch.Metadata != nil {
		slot.Metadata = coreEntity.JSONB(patch.Metadata)
	}
	return nil
}

func validateWindow(start, end time.Time) error {
	if start.IsZero() || end.IsZero() {
		return errors.NewAppError(errors.ErrValidation, "slot_start and slot_end are required", nil)
	}
	if !end.After(start) {
		return errors.NewAppError(errors.ErrValidation, "slot_end must be after slot_start", nil)
	}
	return nil
}

func normalizeTimezone(tz string) (string, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return constants.DefaultTimezone, nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return "", errors.NewAppError(errors.ErrValidation, "Unknown timezone: "+tz, err)
	}
	return tz, nil
}
