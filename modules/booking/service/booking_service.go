package service

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"consult-booking/core/access"
	"consult-booking/core/broker"
	"consult-booking/core/config"
	"consult-booking/core/constants"
	"consult-booking/core/database"
	"consult-booking/core/errors"
	"consult-booking/core/logger"
	"consult-booking/core/queue"
	"consult-booking/core/utils"
	accountEntity "consult-booking/modules/account/entity"
	accountRepository "consult-booking/modules/account/repository"
	slotEntity "consult-booking/modules/availability/entity"
	slotRepository "consult-booking/modules/availability/repository"
	"consult-booking/modules/booking/dto"
	"consult-booking/modules/booking/entity"
	"consult-booking/modules/booking/repository"
	"consult-booking/modules/booking/worker"
	calendarDto "consult-booking/modules/calendar/dto"
	calendarService "consult-booking/modules/calendar/service"
	notificationDto "consult-booking/modules/notification/dto"
	notificationEntity "consult-booking/modules/notification/entity"
	notificationService "consult-booking/modules/notification/service"
	paymentDto "consult-booking/modules/payment/dto"
	paymentService "consult-booking/modules/payment/service"

	"github.com/google/uuid"
)

const publishTimeout = 5 * time.Second

// StatusChange describes a requested booking transition.
type StatusChange struct {
	Next entity.BookingStatus
	Note string
	// ActingConsultantID, when set, must match the booking's consultant.
	ActingConsultantID *uuid.UUID
	// Actor, when set, is checked against the role capability table and the booking's parties.
	Actor *access.Identity
}

type BookingService interface {
	RequestBooking(ctx context.Context, userID, consultantID, slotID uuid.UUID, notes string) (*dto.BookingResult, error)
	VerifyPayment(ctx context.Context, transactionRef string) (*entity.Booking, error)
	ChangeBookingStatus(ctx context.Context, bookingID uuid.UUID, change StatusChange) (*entity.Booking, error)
	ListBookings(ctx context.Context, actor access.Identity, query dto.ListBookingsQuery) ([]entity.Booking, error)
	GetBooking(ctx context.Context, actor access.Identity, bookingID uuid.UUID) (*entity.Booking, error)
	// PaymentProvider is empty when no gateway is configured.
	PaymentProvider() string
	VerifyCallbackSignature(header http.Header, body []byte) bool
}

// Deps are the collaborators of the booking orchestrator. Gateway, Calendar,
// Publisher and Enqueuer may be nil.
type Deps struct {
	DB        database.Transactor
	Bookings  repository.BookingRepository
	Slots     slotRepository.SlotRepository
	Users     accountRepository.UserRepository
	Gateway   paymentService.Gateway
	Calendar  calendarService.Calendar
	Notifier  notificationService.Emitter
	Publisher broker.Publisher
	Enqueuer  queue.Enqueuer
	Booking   config.BookingConfig
	Payment   config.PaymentConfig
}

type bookingService struct {
	db        database.Transactor
	bookings  repository.BookingRepository
	slots     slotRepository.SlotRepository
	users     accountRepository.UserRepository
	gateway   paymentService.Gateway
	calendar  calendarService.Calendar
	notifier  notificationService.Emitter
	publisher broker.Publisher
	enqueuer  queue.Enqueuer
	booking   config.BookingConfig
	payment   config.PaymentConfig
	now       func() time.Time
}

func NewBookingService(d Deps) BookingService {
	publisher := d.Publisher
	if publisher == nil {
		publisher = broker.Noop{}
	}
	return &bookingService{
		db:        d.DB,
		bookings:  d.Bookings,
		slots:     d.Slots,
		users:     d.Users,
		gateway:   d.Gateway,
		calendar:  d.Calendar,
		notifier:  d.Notifier,
		publisher: publisher,
		enqueuer:  d.Enqueuer,
		booking:   d.Booking,
		payment:   d.Payment,
		now:       time.Now,
	}
}

// RequestBooking reserves the slot and records a pending booking in one transaction.
// When payment is required a checkout is opened with the provider; if that fails the
// slot goes back to open and nothing is persisted.
func (s *bookingService) RequestBooking(ctx context.Context, userID, consultantID, slotID uuid.UUID, notes string) (*dto.BookingResult, error) {
	if userID == uuid.Nil || consultantID == uuid.Nil || slotID == uuid.Nil {
		return nil, errors.NewAppError(errors.ErrValidation, "user_id, consultant_id and slot_id are required", nil)
	}
	if userID == consultantID {
		return nil, errors.NewAppError(errors.ErrSelfBooking, "You cannot book your own availability", nil)
	}
	notes = strings.TrimSpace(notes)
	if utf8.RuneCountInString(notes) > constants.MaxBookingNotesLength {
		return nil, errors.NewAppError(errors.ErrValidation,
			fmt.Sprintf("notes must be at most %d characters", constants.MaxBookingNotesLength), nil)
	}

	result := &dto.BookingResult{}

	err := s.db.WithTx(ctx, func(tx database.IDatabase) error {
		users := s.users.WithTx(tx)
		slots := s.slots.WithTx(tx)
		bookings := s.bookings.WithTx(tx)

		consultant, err := users.GetByID(ctx, consultantID)
		if err != nil {
			return errors.NewAppError(errors.ErrInternalServer, "Failed to load consultant", err)
		}
		if consultant == nil {
			return errors.NewAppError(errors.ErrNotFound, "Consultant not found", nil)
		}
		if consultant.AccessRole() != access.RoleConsultant {
			return errors.NewAppError(errors.ErrRoleMismatch, "Selected user is not a consultant", nil)
		}

		requester, err := users.GetByID(ctx, userID)
		if err != nil {
			return errors.NewAppError(errors.ErrInternalServer, "Failed to load requester", err)
		}
		if requester == nil {
			return errors.NewAppError(errors.ErrNotFound, "Requester not found", nil)
		}

		slot, err := slots.GetByIDForUpdate(ctx, slotID)
		if err != nil {
			return errors.NewAppError(errors.ErrInternalServer, "Failed to load slot", err)
		}
		if slot == nil {
			return errors.NewAppError(errors.ErrNotFound, "Slot not found", nil)
		}
		if slot.ConsultantID != consultantID {
			return errors.NewAppError(errors.ErrValidation, "Slot does not belong to this consultant", nil)
		}

		reserved, err := slots.Reserve(ctx, slotID)
		if err != nil {
			return storeErr(err, "Failed to reserve slot")
		}

		booking := &entity.Booking{
			UserID:           userID,
			ConsultantID:     consultantID,
			SlotID:           &reserved.ID,
			AppointmentStart: reserved.SlotStart,
			AppointmentEnd:   reserved.SlotEnd,
			Timezone:         reserved.Timezone,
		}
		if notes != "" {
			booking.Notes = &notes
		}

		if s.booking.PaymentRequired {
			checkout, payment, err := s.initializePayment(ctx, requester, reserved)
			if err != nil {
				if _, relErr := slots.Release(ctx, slotID); relErr != nil {
					logger.Error("BookingService:RequestBooking:Release:Error", "slot_id", slotID, "error", relErr)
				}
				return err
			}
			booking.TransactionRef = &checkout.TransactionRef
			booking.Payment = payment
			result.CheckoutURL = checkout.CheckoutURL
		}

		created, err := bookings.Create(ctx, booking)
		if err != nil {
			return errors.NewAppError(errors.ErrInternalServer, "Failed to create booking", err)
		}

		_, err = s.notifier.Emit(ctx, tx, notificationDto.EmitRequest{
			RecipientID: consultantID,
			BookingID:   &created.ID,
			Type:        notificationEntity.TypeBookingRequest,
			Message: fmt.Sprintf("New booking request from %s for %s",
				requester.DisplayName(), reserved.SlotStart.UTC().Format(time.RFC3339)),
			Metadata: map[string]any{
				"slot_id": reserved.ID,
				"user_id": userID,
			},
		})
		if err != nil {
			return err
		}

		result.Booking = created
		return nil
	})
	if err != nil {
		logger.Warn("BookingService:RequestBooking:Failed", "user_id", userID, "slot_id", slotID, "error", err)
		return nil, err
	}

	logger.Info("BookingService:RequestBooking:Success", "booking_id", result.Booking.ID, "slot_id", slotID)
	s.afterCommit(ctx, result.Booking, "booking.requested", consultantID)
	return result, nil
}

func (s *bookingService) initializePayment(ctx context.Context, payer *accountEntity.User, slot *slotEntity.Slot) (*paymentDto.InitializeResult, *entity.PaymentMetadata, error) {
	if s.gateway == nil {
		return nil, nil, errors.NewAppError(errors.ErrConfiguration, "Payment provider is not configured", nil)
	}

	amount, currency := s.priceFor(slot)
	if amount <= 0 {
		return nil, nil, errors.NewAppError(errors.ErrConfiguration, "Booking price is not configured", nil)
	}

	ref, err := utils.GenerateTransactionRef("BK")
	if err != nil {
		return nil, nil, errors.NewAppError(errors.ErrInternalServer, "Failed to generate transaction reference", err)
	}

	first, last := splitName(payer.FullName)
	checkout, err := s.gateway.InitializeTransaction(ctx, paymentDto.InitializeRequest{
		TransactionRef: ref,
		Amount:         amount,
		Currency:       currency,
		Payer: paymentDto.PayerContact{
			Email:     payer.Email,
			FirstName: first,
			LastName:  last,
		},
		Metadata: map[string]any{
			"slot_id":       slot.ID.String(),
			"consultant_id": slot.ConsultantID.String(),
		},
	})
	if err != nil {
		return nil, nil, err
	}
	if checkout.TransactionRef == "" {
		checkout.TransactionRef = ref
	}

	return checkout, &entity.PaymentMetadata{
		Provider:    s.gateway.Provider(),
		Status:      entity.PaymentStatusPending,
		Amount:      amount,
		Currency:    currency,
		CheckoutURL: checkout.CheckoutURL,
	}, nil
}

// priceFor reads "price" and "currency" from the slot metadata, falling back to the
// configured defaults.
func (s *bookingService) priceFor(slot *slotEntity.Slot) (float64, string) {
	amount, currency := s.payment.Amount, s.payment.Currency

	switch v := slot.Metadata["price"].(type) {
	case float64:
		amount = v
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			amount = f
		}
	}
	if c, ok := slot.Metadata["currency"].(string); ok && c != "" {
		currency = strings.ToUpper(c)
	}
	return amount, currency
}

// VerifyPayment re-checks a transaction with the provider and marks the booking paid.
// Repeated calls for an already paid booking return it unchanged.
func (s *bookingService) VerifyPayment(ctx context.Context, transactionRef string) (*entity.Booking, error) {
	transactionRef = strings.TrimSpace(transactionRef)
	if transactionRef == "" {
		return nil, errors.NewAppError(errors.ErrValidation, "transaction reference is required", nil)
	}
	if s.gateway == nil {
		return nil, errors.NewAppError(errors.ErrConfiguration, "Payment provider is not configured", nil)
	}

	verified, err := s.gateway.VerifyTransaction(ctx, transactionRef)
	if err != nil {
		return nil, err
	}
	if !verified.Paid {
		return nil, errors.NewAppError(errors.ErrValidation, "Payment has not been completed", nil)
	}

	var (
		booking *entity.Booking
		changed bool
	)
	err = s.db.WithTx(ctx, func(tx database.IDatabase) error {
		bookings := s.bookings.WithTx(tx)

		current, err := bookings.GetByTransactionRefForUpdate(ctx, transactionRef)
		if err != nil {
			return errors.NewAppError(errors.ErrInternalServer, "Failed to load booking", err)
		}
		if current == nil {
			return errors.NewAppError(errors.ErrNotFound, "No booking matches this transaction", nil)
		}
		if current.IsPaid() {
			booking = current
			return nil
		}

		updated, err := bookings.MarkPaid(ctx, current.ID, s.now())
		if err != nil {
			return storeErr(err, "Failed to record payment")
		}

		_, err = s.notifier.Emit(ctx, tx, notificationDto.EmitRequest{
			RecipientID: updated.ConsultantID,
			BookingID:   &updated.ID,
			Type:        notificationEntity.TypeSystem,
			Message:     fmt.Sprintf("Payment received for booking %s", updated.ID),
			Metadata: map[string]any{
				"transaction_ref": transactionRef,
				"amount":          verified.Amount,
				"currency":        verified.Currency,
			},
		})
		if err != nil {
			return err
		}

		booking = updated
		changed = true
		return nil
	})
	if err != nil {
		logger.Warn("BookingService:VerifyPayment:Failed", "transaction_ref", transactionRef, "error", err)
		return nil, err
	}

	if changed {
		logger.Info("BookingService:VerifyPayment:Paid", "booking_id", booking.ID, "transaction_ref", transactionRef)
		s.afterCommit(ctx, booking, "booking.paid", booking.ConsultantID)
	} else {
		logger.Debug("BookingService:VerifyPayment:AlreadyPaid", "booking_id", booking.ID)
	}
	return booking, nil
}

// ChangeBookingStatus moves a booking along its lifecycle. Accepting books the slot
// and tries to create a calendar event; a calendar failure leaves the meeting link
// empty and does not block the transition. Declining or cancelling reopens the slot.
func (s *bookingService) ChangeBookingStatus(ctx context.Context, bookingID uuid.UUID, change StatusChange) (*entity.Booking, error) {
	if !change.Next.Valid() {
		return nil, errors.NewAppError(errors.ErrValidation, "Unknown booking status: "+string(change.Next), nil)
	}
	note := strings.TrimSpace(change.Note)
	if utf8.RuneCountInString(note) > constants.MaxBookingNotesLength {
		return nil, errors.NewAppError(errors.ErrValidation,
			fmt.Sprintf("note must be at most %d characters", constants.MaxBookingNotesLength), nil)
	}

	var updated *entity.Booking

	err := s.db.WithTx(ctx, func(tx database.IDatabase) error {
		bookings := s.bookings.WithTx(tx)
		slots := s.slots.WithTx(tx)

		current, err := bookings.GetByIDForUpdate(ctx, bookingID)
		if err != nil {
			return errors.NewAppError(errors.ErrInternalServer, "Failed to load booking", err)
		}
		if current == nil {
			return errors.NewAppError(errors.ErrNotFound, "Booking not found", nil)
		}
		if change.ActingConsultantID != nil && *change.ActingConsultantID != current.ConsultantID {
			return errors.NewAppError(errors.ErrForbidden, "Only the booking's consultant can change this booking", nil)
		}
		if change.Actor != nil {
			if err := authorize(*change.Actor, current, change.Next); err != nil {
				return err
			}
		}
		if !entity.CanTransition(current.Status, change.Next) {
			return errors.NewAppError(errors.ErrConflict,
				fmt.Sprintf("Booking cannot move from %s to %s", current.Status, change.Next), nil)
		}

		patch := repository.TransitionPatch{}
		if note != "" {
			patch.StatusNote = &note
		}

		switch {
		case change.Next == entity.BookingStatusAccepted:
			if s.booking.RequirePaymentBeforeAccept && current.RequiresPayment() && !current.IsPaid() {
				return errors.NewAppError(errors.ErrConflict, "Payment has not been verified for this booking", nil)
			}
			if current.SlotID == nil {
				return errors.NewAppError(errors.ErrValidation, "Booking has no slot to confirm", nil)
			}
			slot, err := slots.GetByIDForUpdate(ctx, *current.SlotID)
			if err != nil {
				return errors.NewAppError(errors.ErrInternalServer, "Failed to load slot", err)
			}
			if slot == nil {
				return errors.NewAppError(errors.ErrValidation, "Booking slot no longer exists", nil)
			}

			s.attachMeeting(ctx, s.users.WithTx(tx), current, &patch)

			if _, err := slots.Confirm(ctx, slot.ID); err != nil {
				return storeErr(err, "Failed to confirm slot")
			}

		case change.Next.ReleasesSlot() && current.SlotID != nil:
			if _, err := slots.Release(ctx, *current.SlotID); err != nil {
				return storeErr(err, "Failed to release slot")
			}
		}

		updated, err = bookings.Transition(ctx, current.ID, current.Status, change.Next, patch)
		if err != nil {
			return storeErr(err, "Failed to update booking")
		}

		metadata := map[string]any{"status": updated.Status}
		if note != "" {
			metadata["note"] = note
		}
		if updated.MeetingLink != nil {
			metadata["meeting_link"] = *updated.MeetingLink
		}

		messages := []struct {
			recipient uuid.UUID
			message   string
		}{
			{updated.UserID, fmt.Sprintf("Your booking was %s", updated.Status)},
			{updated.ConsultantID, fmt.Sprintf("Booking %s", updated.Status)},
		}
		for _, m := range messages {
			_, err := s.notifier.Emit(ctx, tx, notificationDto.EmitRequest{
				RecipientID: m.recipient,
				BookingID:   &updated.ID,
				Type:        notificationEntity.TypeBookingUpdate,
				Message:     m.message,
				Metadata:    metadata,
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logger.Warn("BookingService:ChangeBookingStatus:Failed", "booking_id", bookingID, "next", change.Next, "error", err)
		return nil, err
	}

	logger.Info("BookingService:ChangeBookingStatus:Success", "booking_id", bookingID, "status", updated.Status)
	s.afterCommit(ctx, updated, "booking."+string(updated.Status), updated.UserID, updated.ConsultantID)
	if updated.Status == entity.BookingStatusAccepted {
		s.scheduleReminder(updated)
	}
	return updated, nil
}

func (s *bookingService) attachMeeting(ctx context.Context, users accountRepository.UserRepository, b *entity.Booking, patch *repository.TransitionPatch) {
	summary := "Consultation session"
	var attendees []string
	for _, id := range []uuid.UUID{b.UserID, b.ConsultantID} {
		u, err := users.GetByID(ctx, id)
		if err != nil || u == nil {
			continue
		}
		attendees = append(attendees, u.Email)
		if id == b.ConsultantID {
			summary = "Consultation with " + u.DisplayName()
		}
	}

	description := ""
	if b.Notes != nil {
		description = *b.Notes
	}

	res := calendarService.TryCreateEvent(ctx, s.calendar, calendarDto.CreateEventRequest{
		Summary:     summary,
		Description: description,
		Start:       b.AppointmentStart,
		End:         b.AppointmentEnd,
		Timezone:    b.Timezone,
		Attendees:   attendees,
	})
	if !res.Ok() {
		logger.Warn("BookingService:ChangeBookingStatus:CalendarDegraded", "booking_id", b.ID, "error", res.Err)
		return
	}

	patch.ExternalEventID = &res.Value.EventID
	if res.Value.JoinLink != "" {
		patch.MeetingLink = &res.Value.JoinLink
	}
}

func authorize(actor access.Identity, b *entity.Booking, next entity.BookingStatus) error {
	switch {
	case access.Can(actor.Role, access.ActionActOnAnyBooking):
		return nil
	case actor.ID == b.ConsultantID && access.Can(actor.Role, access.ActionDecideBooking):
		return nil
	case actor.ID == b.UserID && next == entity.BookingStatusCancelled && access.Can(actor.Role, access.ActionCancelOwnBooking):
		return nil
	}
	return errors.NewAppError(errors.ErrForbidden, "You cannot change this booking", nil)
}

func (s *bookingService) ListBookings(ctx context.Context, actor access.Identity, query dto.ListBookingsQuery) ([]entity.Booking, error) {
	filter := repository.ListFilter{Limit: query.Limit, Offset: query.Offset}
	if query.Status != "" {
		status := entity.BookingStatus(query.Status)
		if !status.Valid() {
			return nil, errors.NewAppError(errors.ErrValidation, "Unknown booking status: "+query.Status, nil)
		}
		filter.Status = &status
	}

	switch {
	case access.Can(actor.Role, access.ActionViewAnyBooking):
		filter.UserID = query.UserID
		filter.ConsultantID = query.ConsultantID
	case access.Can(actor.Role, access.ActionDecideBooking):
		filter.PartyID = &actor.ID
	case access.Can(actor.Role, access.ActionRequestBooking):
		filter.UserID = &actor.ID
	default:
		return nil, errors.NewAppError(errors.ErrForbidden, "You cannot list bookings", nil)
	}

	bookings, err := s.bookings.List(ctx, filter)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to list bookings", err)
	}
	return bookings, nil
}

func (s *bookingService) GetBooking(ctx context.Context, actor access.Identity, bookingID uuid.UUID) (*entity.Booking, error) {
	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, errors.NewAppError(errors.ErrInternalServer, "Failed to load booking", err)
	}
	if booking == nil {
		return nil, errors.NewAppError(errors.ErrNotFound, "Booking not found", nil)
	}
	if actor.ID != booking.UserID && actor.ID != booking.ConsultantID && !access.Can(actor.Role, access.ActionViewAnyBooking) {
		return nil, errors.NewAppError(errors.ErrForbidden, "You cannot view this booking", nil)
	}
	return booking, nil
}

func (s *bookingService) PaymentProvider() string {
	if s.gateway == nil {
		return ""
	}
	return s.gateway.Provider()
}

func (s *bookingService) VerifyCallbackSignature(header http.Header, body []byte) bool {
	if s.gateway == nil {
		return true
	}
	return s.gateway.VerifySignature(header, body)
}

// afterCommit runs the side effects of a committed change. Failures are logged only.
func (s *bookingService) afterCommit(ctx context.Context, b *entity.Booking, routingKey string, recipients ...uuid.UUID) {
	ctx = context.WithoutCancel(ctx)

	s.notifier.InvalidateUnread(ctx, recipients...)

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.publisher.PublishJSON(pubCtx, routingKey, dto.NewBookingEvent(b, s.now())); err != nil {
		logger.Warn("BookingService:Publish:Error", "booking_id", b.ID, "routing_key", routingKey, "error", err)
	}
}

func (s *bookingService) scheduleReminder(b *entity.Booking) {
	if s.enqueuer == nil || s.booking.ReminderLeadTime <= 0 {
		return
	}
	fireAt := b.AppointmentStart.Add(-s.booking.ReminderLeadTime)
	if !fireAt.After(s.now()) {
		return
	}

	task, opts, err := worker.NewReminderTask(b.ID, fireAt)
	if err != nil {
		logger.Warn("BookingService:ScheduleReminder:Task:Error", "booking_id", b.ID, "error", err)
		return
	}
	if _, err := s.enqueuer.Enqueue(task, opts...); err != nil {
		logger.Warn("BookingService:ScheduleReminder:Enqueue:Error", "booking_id", b.ID, "error", err)
		return
	}
	logger.Debug("BookingService:ScheduleReminder", "booking_id", b.ID, "fire_at", fireAt)
}

// storeErr keeps coded store errors (conflict, not found) and wraps anything else.
func storeErr(err error, message string) error {
	if errors.CodeOf(err) != errors.ErrInternalServer {
		return err
	}
	return errors.NewAppError(errors.ErrInternalServer, message, err)
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
