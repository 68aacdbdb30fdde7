package service

import (
	"context"
	"testing"
	"time"

	"consult-booking/core/cache"
	"consult-booking/core/database"
	"consult-booking/core/errors"
	"consult-booking/core/params"
	"consult-booking/modules/notification/dto"
	"consult-booking/modules/notification/entity"
	"consult-booking/modules/notification/repository"

	"github.com/google/uuid"
)

type stubRepo struct {
	created    []*entity.Notification
	boundTo    database.IDatabase
	readIDs    map[uuid.UUID]bool
	owner      map[uuid.UUID]uuid.UUID
	countCalls int
	unread     int
	lastLimit  int
	lastOffset int
	lastUnread bool
}

func newStubRepo() *stubRepo {
	return &stubRepo{readIDs: map[uuid.UUID]bool{}, owner: map[uuid.UUID]uuid.UUID{}}
}

func (s *stubRepo) WithTx(tx database.IDatabase) repository.NotificationRepository {
	s.boundTo = tx
	return s
}

func (s *stubRepo) Create(_ context.Context, n *entity.Notification) error {
	n.ID = uuid.New()
	s.created = append(s.created, n)
	return nil
}

func (s *stubRepo) ListByRecipient(_ context.Context, _ uuid.UUID, limit, offset int, unreadOnly bool) (*entity.PaginatedNotificationEntity, error) {
	s.lastLimit, s.lastOffset, s.lastUnread = limit, offset, unreadOnly
	return &entity.PaginatedNotificationEntity{Items: []entity.Notification{}, Limit: limit, Offset: offset}, nil
}

func (s *stubRepo) MarkAsRead(_ context.Context, recipientID, id uuid.UUID) (*entity.Notification, error) {
	if s.owner[id] != recipientID {
		return nil, nil
	}
	s.readIDs[id] = true
	n := &entity.Notification{RecipientID: recipientID, IsRead: true}
	n.ID = id
	return n, nil
}

func (s *stubRepo) MarkManyAsRead(context.Context, uuid.UUID, []string) error { return nil }
func (s *stubRepo) MarkAllAsRead(context.Context, uuid.UUID) error            { return nil }

func (s *stubRepo) CountUnread(context.Context, uuid.UUID) (int, error) {
	s.countCalls++
	return s.unread, nil
}

type memCache struct {
	values map[string]string
}

func (m *memCache) Get(_ context.Context, key string) (string, error) {
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return "", cache.ErrCacheMiss
}

func (m *memCache) Set(_ context.Context, key, value string, _ time.Duration) error {
	m.values[key] = value
	return nil
}

func (m *memCache) SetNX(_ context.Context, key, value string, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value
	return true, nil
}

func (m *memCache) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func (m *memCache) Close() error { return nil }

type fakeTx struct{ database.IDatabase }

func TestEmitUsesCallerTransaction(t *testing.T) {
	repo := newStubRepo()
	svc := NewNotificationService(repo, nil)
	tx := &fakeTx{}
	bookingID := uuid.New()

	n, err := svc.Emit(context.Background(), tx, dto.EmitRequest{
		RecipientID: uuid.New(),
		BookingID:   &bookingID,
		Type:        entity.TypeBookingRequest,
		Message:     "New booking request",
	})
	if err != nil {
		t.Fatalf("Emit() error = %v", err)
	}
	if repo.boundTo != tx {
		t.Fatal("expected repository to be bound to the caller's transaction")
	}
	if n.IsRead || n.Type != entity.TypeBookingRequest || *n.BookingID != bookingID {
		t.Fatalf("unexpected notification %+v", n)
	}
}

func TestEmitValidates(t *testing.T) {
	svc := NewNotificationService(newStubRepo(), nil)

	cases := []dto.EmitRequest{
		{Type: entity.TypeSystem, Message: "hi"},
		{RecipientID: uuid.New(), Type: "promo", Message: "hi"},
		{RecipientID: uuid.New(), Type: entity.TypeSystem, Message: "  "},
	}
	for _, req := range cases {
		if _, err := svc.Emit(context.Background(), nil, req); !errors.Is(err, errors.ErrValidation) {
			t.Errorf("Emit(%+v) expected validation error, got %v", req, err)
		}
	}
}

func TestMarkReadIsIdempotentAndScoped(t *testing.T) {
	repo := newStubRepo()
	svc := NewNotificationService(repo, nil)
	recipient := uuid.New()
	id := uuid.New()
	repo.owner[id] = recipient

	for i := 0; i < 2; i++ {
		n, err := svc.MarkRead(context.Background(), recipient, id)
		if err != nil {
			t.Fatalf("MarkRead() call %d error = %v", i, err)
		}
		if !n.IsRead {
			t.Fatal("expected notification to be read")
		}
	}

	if _, err := svc.MarkRead(context.Background(), uuid.New(), id); !errors.Is(err, errors.ErrNotFound) {
		t.Fatalf("expected not found for another recipient, got %v", err)
	}
}

func TestGetMyNotificationsPassesPagination(t *testing.T) {
	repo := newStubRepo()
	svc := NewNotificationService(repo, nil)

	_, err := svc.GetMyNotifications(context.Background(), uuid.New(), params.QueryParams{Limit: 10, Offset: 5, UnreadOnly: true})
	if err != nil {
		t.Fatalf("GetMyNotifications() error = %v", err)
	}
	if repo.lastLimit != 10 || repo.lastOffset != 5 || !repo.lastUnread {
		t.Fatalf("unexpected pagination %d/%d/%v", repo.lastLimit, repo.lastOffset, repo.lastUnread)
	}
}

func TestCountUnreadIsCachedUntilInvalidated(t *testing.T) {
	repo := newStubRepo()
	repo.unread = 3
	c := &memCache{values: map[string]string{}}
	svc := NewNotificationService(repo, c)
	recipient := uuid.New()

	for i := 0; i < 2; i++ {
		n, err := svc.CountUnread(context.Background(), recipient)
		if err != nil || n != 3 {
			t.Fatalf("CountUnread() = %d, %v", n, err)
		}
	}
	if repo.countCalls != 1 {
		t.Fatalf("expected one repository call, got %d", repo.countCalls)
	}

	repo.unread = 4
	svc.InvalidateUnread(context.Background(), recipient)
	if n, _ := svc.CountUnread(context.Background(), recipient); n != 4 {
		t.Fatalf("expected fresh count 4, got %d", n)
	}
}

func TestMarkAsReadRejectsBadIDs(t *testing.T) {
	svc := NewNotificationService(newStubRepo(), nil)
	if err := svc.MarkAsRead(context.Background(), uuid.New(), []string{"not-an-id"}); !errors.Is(err, errors.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
