package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"consult-booking/core/database"
	"consult-booking/core/logger"
	"consult-booking/modules/booking/entity"
	"consult-booking/modules/booking/repository"
	notificationDto "consult-booking/modules/notification/dto"
	notificationEntity "consult-booking/modules/notification/entity"
	notificationService "consult-booking/modules/notification/service"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const TypeBookingReminder = "booking:reminder"

type ReminderPayload struct {
	BookingID uuid.UUID `json:"booking_id"`
}

// NewReminderTask schedules a reminder for fireAt. The task id is derived from the
// booking so a booking accepted twice cannot queue two reminders.
func NewReminderTask(bookingID uuid.UUID, fireAt time.Time) (*asynq.Task, []asynq.Option, error) {
	b, err := json.Marshal(ReminderPayload{BookingID: bookingID})
	if err != nil {
		return nil, nil, err
	}
	task := asynq.NewTask(TypeBookingReminder, b)
	opts := []asynq.Option{
		asynq.ProcessAt(fireAt),
		asynq.TaskID("reminder:" + bookingID.String()),
		asynq.MaxRetry(3),
	}
	return task, opts, nil
}

type ReminderHandler struct {
	db       database.Transactor
	bookings repository.BookingRepository
	notifier notificationService.Emitter
}

func NewReminderHandler(db database.Transactor, bookings repository.BookingRepository, notifier notificationService.Emitter) *ReminderHandler {
	return &ReminderHandler{db: db, bookings: bookings, notifier: notifier}
}

// Register mounts the handler on mux.
func (h *ReminderHandler) Register(mux *asynq.ServeMux) {
	mux.Handle(TypeBookingReminder, h)
}

// ProcessTask notifies both parties of an upcoming session. Bookings that are no
// longer accepted are skipped without error.
func (h *ReminderHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	var p ReminderPayload
	if err := json.Unmarshal(task.Payload(), &p); err != nil {
		logger.Error("ReminderHandler:ProcessTask:InvalidPayload", "error", err)
		return fmt.Errorf("%w: %v", asynq.SkipRetry, err)
	}

	booking, err := h.bookings.GetByID(ctx, p.BookingID)
	if err != nil {
		return err
	}
	if booking == nil || booking.Status != entity.BookingStatusAccepted {
		logger.Info("ReminderHandler:ProcessTask:Skipped", "booking_id", p.BookingID)
		return nil
	}

	message := fmt.Sprintf("Reminder: your session starts at %s", booking.AppointmentStart.UTC().Format(time.RFC3339))
	metadata := map[string]any{"appointment_start": booking.AppointmentStart}
	if booking.MeetingLink != nil {
		metadata["meeting_link"] = *booking.MeetingLink
	}

	// Both reminders commit or roll back together.
	err = h.db.WithTx(ctx, func(tx database.IDatabase) error {
		for _, recipient := range []uuid.UUID{booking.UserID, booking.ConsultantID} {
			_, err := h.notifier.Emit(ctx, tx, notificationDto.EmitRequest{
				RecipientID: recipient,
				BookingID:   &booking.ID,
				Type:        notificationEntity.TypeSystem,
				Message:     message,
				Metadata:    metadata,
			})
			if err != nil {
				logger.Error("ReminderHandler:ProcessTask:Emit:Error", "booking_id", booking.ID, "recipient_id", recipient, "error", err)
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	h.notifier.InvalidateUnread(ctx, booking.UserID, booking.ConsultantID)

	logger.Info("ReminderHandler:ProcessTask:Sent", "booking_id", booking.ID)
	return nil
}
