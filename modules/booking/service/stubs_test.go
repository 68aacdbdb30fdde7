package service

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"consult-booking/core/database"
	"consult-booking/core/errors"
	accountEntity "consult-booking/modules/account/entity"
	accountRepository "consult-booking/modules/account/repository"
	slotEntity "consult-booking/modules/availability/entity"
	slotRepository "consult-booking/modules/availability/repository"
	"consult-booking/modules/booking/entity"
	"consult-booking/modules/booking/repository"
	calendarDto "consult-booking/modules/calendar/dto"
	notificationDto "consult-booking/modules/notification/dto"
	notificationEntity "consult-booking/modules/notification/entity"
	paymentDto "consult-booking/modules/payment/dto"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// memStore is an in-memory stand-in for the database. WithTx serialises
// transactions and restores the previous state when fn fails.
type memStore struct {
	mu            sync.Mutex
	slots         map[uuid.UUID]slotEntity.Slot
	bookings      map[uuid.UUID]entity.Booking
	users         map[uuid.UUID]*accountEntity.User
	notifications []notificationDto.EmitRequest
	invalidated   []uuid.UUID
	txCalls       int
}

func newMemStore() *memStore {
	return &memStore{
		slots:    map[uuid.UUID]slotEntity.Slot{},
		bookings: map[uuid.UUID]entity.Booking{},
		users:    map[uuid.UUID]*accountEntity.User{},
	}
}

func (m *memStore) WithTx(_ context.Context, fn func(tx database.IDatabase) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txCalls++

	slots := make(map[uuid.UUID]slotEntity.Slot, len(m.slots))
	for k, v := range m.slots {
		slots[k] = v
	}
	bookings := make(map[uuid.UUID]entity.Booking, len(m.bookings))
	for k, v := range m.bookings {
		bookings[k] = v
	}
	notified := len(m.notifications)

	if err := fn(nil); err != nil {
		m.slots = slots
		m.bookings = bookings
		m.notifications = m.notifications[:notified]
		return err
	}
	return nil
}

func (m *memStore) addUser(role, name, email string) uuid.UUID {
	id := uuid.New()
	m.users[id] = &accountEntity.User{FullName: name, Email: email, Role: role}
	m.users[id].ID = id
	return id
}

func (m *memStore) addSlot(consultantID uuid.UUID, start, end time.Time, status slotEntity.SlotStatus, meta map[string]any) uuid.UUID {
	id := uuid.New()
	slot := slotEntity.Slot{
		ConsultantID: consultantID,
		SlotStart:    start,
		SlotEnd:      end,
		Timezone:     "UTC",
		Status:       status,
		Metadata:     meta,
	}
	slot.ID = id
	m.slots[id] = slot
	return id
}

func (m *memStore) slotStatus(id uuid.UUID) slotEntity.SlotStatus {
	return m.slots[id].Status
}

func (m *memStore) notificationsOf(t notificationEntity.NotificationType) []notificationDto.EmitRequest {
	var out []notificationDto.EmitRequest
	for _, n := range m.notifications {
		if n.Type == t {
			out = append(out, n)
		}
	}
	return out
}

type memUsers struct{ m *memStore }

func (u memUsers) WithTx(database.IDatabase) accountRepository.UserRepository { return u }

func (u memUsers) GetByID(_ context.Context, id uuid.UUID) (*accountEntity.User, error) {
	return u.m.users[id], nil
}

type memSlots struct{ m *memStore }

func (s memSlots) WithTx(database.IDatabase) slotRepository.SlotRepository { return s }

func (s memSlots) Create(_ context.Context, slot *slotEntity.Slot) (*slotEntity.Slot, error) {
	created := *slot
	created.ID = uuid.New()
	s.m.slots[created.ID] = created
	return &created, nil
}

func (s memSlots) GetByID(_ context.Context, id uuid.UUID) (*slotEntity.Slot, error) {
	slot, ok := s.m.slots[id]
	if !ok {
		return nil, nil
	}
	return &slot, nil
}

func (s memSlots) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*slotEntity.Slot, error) {
	return s.GetByID(ctx, id)
}

func (s memSlots) ListByConsultant(context.Context, uuid.UUID, *slotEntity.SlotStatus) ([]slotEntity.Slot, error) {
	return nil, nil
}

func (s memSlots) Update(_ context.Context, slot *slotEntity.Slot) (*slotEntity.Slot, error) {
	s.m.slots[slot.ID] = *slot
	return slot, nil
}

func (s memSlots) Reserve(_ context.Context, id uuid.UUID) (*slotEntity.Slot, error) {
	return s.move(id, slotEntity.SlotStatusPending, slotEntity.SlotStatusOpen)
}

func (s memSlots) Release(_ context.Context, id uuid.UUID) (*slotEntity.Slot, error) {
	if slot, ok := s.m.slots[id]; ok && (slot.Status == slotEntity.SlotStatusOpen || slot.Status == slotEntity.SlotStatusArchived) {
		return &slot, nil
	}
	return s.move(id, slotEntity.SlotStatusOpen, slotEntity.SlotStatusPending, slotEntity.SlotStatusBooked)
}

func (s memSlots) Confirm(_ context.Context, id uuid.UUID) (*slotEntity.Slot, error) {
	return s.move(id, slotEntity.SlotStatusBooked, slotEntity.SlotStatusPending)
}

func (s memSlots) move(id uuid.UUID, to slotEntity.SlotStatus, from ...slotEntity.SlotStatus) (*slotEntity.Slot, error) {
	slot, ok := s.m.slots[id]
	if !ok {
		return nil, errors.NewAppError(errors.ErrNotFound, "Slot not found", nil)
	}
	for _, f := range from {
		if slot.Status == f {
			slot.Status = to
			s.m.slots[id] = slot
			return &slot, nil
		}
	}
	return nil, errors.NewAppError(errors.ErrConflict, "Slot is no longer available", nil)
}

type memBookings struct{ m *memStore }

func (b memBookings) WithTx(database.IDatabase) repository.BookingRepository { return b }

func (b memBookings) Create(_ context.Context, booking *entity.Booking) (*entity.Booking, error) {
	created := *booking
	created.ID = uuid.New()
	created.Status = entity.BookingStatusPending
	b.m.bookings[created.ID] = created
	return &created, nil
}

func (b memBookings) GetByID(_ context.Context, id uuid.UUID) (*entity.Booking, error) {
	booking, ok := b.m.bookings[id]
	if !ok {
		return nil, nil
	}
	return &booking, nil
}

func (b memBookings) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	return b.GetByID(ctx, id)
}

func (b memBookings) GetByTransactionRefForUpdate(_ context.Context, ref string) (*entity.Booking, error) {
	for _, booking := range b.m.bookings {
		if booking.TransactionRef != nil && *booking.TransactionRef == ref {
			return &booking, nil
		}
	}
	return nil, nil
}

func (b memBookings) List(_ context.Context, filter repository.ListFilter) ([]entity.Booking, error) {
	out := []entity.Booking{}
	for _, booking := range b.m.bookings {
		if filter.UserID != nil && booking.UserID != *filter.UserID {
			continue
		}
		if filter.ConsultantID != nil && booking.ConsultantID != *filter.ConsultantID {
			continue
		}
		if filter.PartyID != nil && booking.UserID != *filter.PartyID && booking.ConsultantID != *filter.PartyID {
			continue
		}
		if filter.Status != nil && booking.Status != *filter.Status {
			continue
		}
		out = append(out, booking)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AppointmentStart.Before(out[j].AppointmentStart) })
	return out, nil
}

func (b memBookings) Transition(_ context.Context, id uuid.UUID, from, to entity.BookingStatus, patch repository.TransitionPatch) (*entity.Booking, error) {
	booking, ok := b.m.bookings[id]
	if !ok || booking.Status != from || !entity.CanTransition(from, to) {
		return nil, errors.NewAppError(errors.ErrConflict, "Booking status changed concurrently", nil)
	}
	booking.Status = to
	if patch.StatusNote != nil {
		booking.StatusNote = patch.StatusNote
	}
	if patch.MeetingLink != nil {
		booking.MeetingLink = patch.MeetingLink
	}
	if patch.ExternalEventID != nil {
		booking.ExternalEventID = patch.ExternalEventID
	}
	b.m.bookings[id] = booking
	return &booking, nil
}

func (b memBookings) MarkPaid(_ context.Context, id uuid.UUID, paidAt time.Time) (*entity.Booking, error) {
	booking, ok := b.m.bookings[id]
	if !ok || booking.IsPaid() {
		return nil, errors.NewAppError(errors.ErrConflict, "Booking is already paid", nil)
	}
	payment := entity.PaymentMetadata{}
	if booking.Payment != nil {
		payment = *booking.Payment
	}
	payment.Status = entity.PaymentStatusPaid
	payment.PaidAt = &paidAt
	booking.Payment = &payment
	b.m.bookings[id] = booking
	return &booking, nil
}

type memNotifier struct{ m *memStore }

func (n memNotifier) Emit(_ context.Context, _ database.IDatabase, req notificationDto.EmitRequest) (*notificationEntity.Notification, error) {
	n.m.notifications = append(n.m.notifications, req)
	notif := &notificationEntity.Notification{RecipientID: req.RecipientID, Type: req.Type, Message: req.Message}
	notif.ID = uuid.New()
	return notif, nil
}

func (n memNotifier) InvalidateUnread(_ context.Context, recipientIDs ...uuid.UUID) {
	n.m.invalidated = append(n.m.invalidated, recipientIDs...)
}

type stubGateway struct {
	initErr     error
	verify      *paymentDto.VerifyResult
	verifyErr   error
	lastInit    paymentDto.InitializeRequest
	initCalls   int
	signatureOK bool
}

func (g *stubGateway) Provider() string { return "chapa" }

func (g *stubGateway) InitializeTransaction(_ context.Context, req paymentDto.InitializeRequest) (*paymentDto.InitializeResult, error) {
	g.initCalls++
	g.lastInit = req
	if g.initErr != nil {
		return nil, g.initErr
	}
	return &paymentDto.InitializeResult{
		CheckoutURL:    "https://checkout.example.com/" + req.TransactionRef,
		TransactionRef: req.TransactionRef,
	}, nil
}

func (g *stubGateway) VerifyTransaction(context.Context, string) (*paymentDto.VerifyResult, error) {
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	return g.verify, nil
}

func (g *stubGateway) VerifySignature(http.Header, []byte) bool { return g.signatureOK }

type stubCalendar struct {
	event *calendarDto.Event
	err   error
	last  calendarDto.CreateEventRequest
	calls int
}

func (c *stubCalendar) CreateEvent(_ context.Context, req calendarDto.CreateEventRequest) (*calendarDto.Event, error) {
	c.calls++
	c.last = req
	if c.err != nil {
		return nil, c.err
	}
	return c.event, nil
}

type stubPublisher struct {
	mu   sync.Mutex
	keys []string
}

func (p *stubPublisher) PublishJSON(_ context.Context, key string, _ any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	return nil
}

func (p *stubPublisher) Close() error { return nil }

type stubEnqueuer struct {
	tasks []*asynq.Task
}

func (e *stubEnqueuer) Enqueue(task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	e.tasks = append(e.tasks, task)
	return &asynq.TaskInfo{ID: "reminder"}, nil
}
