package repository

import (
	"context"
	"database/sql"
	goerrors "errors"
	"fmt"
	"strings"
	"time"

	"consult-booking/core/database"
	"consult-booking/core/errors"
	"consult-booking/core/logger"
	"consult-booking/modules/booking/entity"

	"github.com/google/uuid"
)

const bookingColumns = `id, user_id, consultant_id, slot_id, appointment_start, appointment_end, timezone, status,
	notes, status_note, transaction_ref, meeting_link, external_event_id, payment, created_at, updated_at`

// ListFilter narrows List. PartyID matches bookings where the user is either the
// requester or the consultant.
type ListFilter struct {
	UserID       *uuid.UUID
	ConsultantID *uuid.UUID
	PartyID      *uuid.UUID
	Status       *entity.BookingStatus
	Limit        int
	Offset       int
}

// TransitionPatch carries the optional columns written together with a status change.
// Nil fields keep their stored value.
type TransitionPatch struct {
	StatusNote      *string
	MeetingLink     *string
	ExternalEventID *string
}

type BookingRepository interface {
	WithTx(tx database.IDatabase) BookingRepository

	Create(ctx context.Context, booking *entity.Booking) (*entity.Booking, error)
	// The Get variants return nil, nil when no booking matches.
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	GetByTransactionRefForUpdate(ctx context.Context, ref string) (*entity.Booking, error)
	List(ctx context.Context, filter ListFilter) ([]entity.Booking, error)

	Transition(ctx context.Context, id uuid.UUID, from, to entity.BookingStatus, patch TransitionPatch) (*entity.Booking, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) (*entity.Booking, error)
}

type bookingRepository struct {
	db database.IDatabase
}

func NewBookingRepository(db database.IDatabase) BookingRepository {
	return &bookingRepository{db: db}
}

func (r *bookingRepository) WithTx(tx database.IDatabase) BookingRepository {
	return &bookingRepository{db: tx}
}

func (r *bookingRepository) Create(ctx context.Context, b *entity.Booking) (*entity.Booking, error) {
	query := `
		INSERT INTO bookings (user_id, consultant_id, slot_id, appointment_start, appointment_end, timezone,
			status, notes, transaction_ref, payment)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + bookingColumns

	var created entity.Booking
	err := r.db.GetContext(ctx, &created, query,
		b.UserID, b.ConsultantID, b.SlotID, b.AppointmentStart, b.AppointmentEnd, b.Timezone,
		entity.BookingStatusPending, b.Notes, b.TransactionRef, b.Payment)
	if err != nil {
		logger.Error("BookingRepository:Create:Error", "user_id", b.UserID, "consultant_id", b.ConsultantID, "error", err)
		return nil, err
	}
	return &created, nil
}

func (r *bookingRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	return r.get(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
}

func (r *bookingRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	return r.get(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`, id)
}

func (r *bookingRepository) GetByTransactionRefForUpdate(ctx context.Context, ref string) (*entity.Booking, error) {
	return r.get(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE transaction_ref = $1 FOR UPDATE`, ref)
}

func (r *bookingRepository) get(ctx context.Context, query string, arg any) (*entity.Booking, error) {
	var b entity.Booking
	if err := r.db.GetContext(ctx, &b, query, arg); err != nil {
		if goerrors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		logger.Error("BookingRepository:Get:Error", "key", arg, "error", err)
		return nil, err
	}
	return &b, nil
}

func (r *bookingRepository) List(ctx context.Context, filter ListFilter) ([]entity.Booking, error) {
	var (
		where []string
		args  []any
	)
	if filter.UserID != nil {
		args = append(args, *filter.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.ConsultantID != nil {
		args = append(args, *filter.ConsultantID)
		where = append(where, fmt.Sprintf("consultant_id = $%d", len(args)))
	}
	if filter.PartyID != nil {
		args = append(args, *filter.PartyID)
		where = append(where, fmt.Sprintf("(user_id = $%[1]d OR consultant_id = $%[1]d)", len(args)))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY appointment_start ASC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	bookings := []entity.Booking{}
	if err := r.db.SelectContext(ctx, &bookings, query, args...); err != nil {
		logger.Error("BookingRepository:List:Error", "error", err)
		return nil, err
	}
	return bookings, nil
}

// Transition moves a booking from -> to along the lifecycle graph. The update is
// conditional on the stored status still being from, so a lost race surfaces as a conflict.
func (r *bookingRepository) Transition(ctx context.Context, id uuid.UUID, from, to entity.BookingStatus, patch TransitionPatch) (*entity.Booking, error) {
	if !entity.CanTransition(from, to) {
		return nil, errors.NewAppError(errors.ErrConflict,
			fmt.Sprintf("Booking cannot move from %s to %s", from, to), nil)
	}

	query := `
		UPDATE bookings
		SET status = $3,
			status_note = COALESCE($4, status_note),
			meeting_link = COALESCE($5, meeting_link),
			external_event_id = COALESCE($6, external_event_id),
			updated_at = now()
		WHERE id = $1 AND status = $2
		RETURNING ` + bookingColumns

	var updated entity.Booking
	err := r.db.GetContext(ctx, &updated, query, id, from, to, patch.StatusNote, patch.MeetingLink, patch.ExternalEventID)
	if err != nil {
		if goerrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewAppError(errors.ErrConflict, "Booking status changed concurrently", nil)
		}
		logger.Error("BookingRepository:Transition:Error", "booking_id", id, "to", to, "error", err)
		return nil, err
	}

	logger.Debug("BookingRepository:Transition", "booking_id", id, "from", from, "to", to)
	return &updated, nil
}

// MarkPaid stamps payment.status = paid. It is a conflict to mark an already paid booking.
func (r *bookingRepository) MarkPaid(ctx context.Context, id uuid.UUID, paidAt time.Time) (*entity.Booking, error) {
	query := `
		UPDATE bookings
		SET payment = jsonb_set(
				jsonb_set(COALESCE(payment, '{}'::jsonb), '{status}', to_jsonb($2::text)),
				'{paid_at}', to_jsonb($3::text)),
			updated_at = now()
		WHERE id = $1 AND COALESCE(payment->>'status', '') <> $2
		RETURNING ` + bookingColumns

	var updated entity.Booking
	err := r.db.GetContext(ctx, &updated, query, id, string(entity.PaymentStatusPaid), paidAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if goerrors.Is(err, sql.ErrNoRows) {
			return nil, errors.NewAppError(errors.ErrConflict, "Booking is already paid", nil)
		}
		logger.Error("BookingRepository:MarkPaid:Error", "booking_id", id, "error", err)
		return nil, err
	}
	return &updated, nil
}
