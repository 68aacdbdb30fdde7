package repository

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"consult-booking/core/database"
	"consult-booking/core/errors"
	"consult-booking/modules/booking/entity"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
)

func openTestDB(t *testing.T) *database.Database {
	t.Helper()
	_ = godotenv.Load("../../../.env")

	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		t.Skipf("DB_URL not set; skipping PostgreSQL integration test")
	}
	if err := database.Migrate(dbURL, "up"); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	conn, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return database.New(conn)
}

func seedUser(t *testing.T, db *database.Database, role string) uuid.UUID {
	t.Helper()
	var id uuid.UUID
	err := db.GetContext(context.Background(), &id,
		`INSERT INTO users (full_name, email, role) VALUES ($1, $2, $3) RETURNING id`,
		"Integration "+role, uuid.NewString()+"@example.com", role)
	if err != nil {
		t.Fatalf("seed %s: %v", role, err)
	}
	return id
}

func seedBooking(t *testing.T, db *database.Database, withPayment bool) *entity.Booking {
	t.Helper()
	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Minute)
	b := &entity.Booking{
		UserID:           seedUser(t, db, "client"),
		ConsultantID:     seedUser(t, db, "consultant"),
		AppointmentStart: start,
		AppointmentEnd:   start.Add(30 * time.Minute),
		Timezone:         "UTC",
	}
	if withPayment {
		ref := "BK-" + uuid.NewString()
		b.TransactionRef = &ref
		b.Payment = &entity.PaymentMetadata{
			Provider:    "chapa",
			Status:      entity.PaymentStatusPending,
			Amount:      150,
			Currency:    "ETB",
			CheckoutURL: "https://checkout.example.com/" + ref,
		}
	}

	created, err := NewBookingRepository(db).Create(context.Background(), b)
	if err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	if created.Status != entity.BookingStatusPending {
		t.Fatalf("expected pending booking, got %s", created.Status)
	}
	return created
}

func TestTransitionLosesRaceWithConflict(t *testing.T) {
	db := openTestDB(t)
	booking := seedBooking(t, db, false)
	repo := NewBookingRepository(db)

	targets := []entity.BookingStatus{entity.BookingStatusAccepted, entity.BookingStatusDeclined}
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		won      []entity.BookingStatus
		conflict int
	)
	for _, next := range targets {
		wg.Add(1)
		go func(next entity.BookingStatus) {
			defer wg.Done()
			err := db.WithTx(context.Background(), func(tx database.IDatabase) error {
				_, err := repo.WithTx(tx).Transition(context.Background(), booking.ID, entity.BookingStatusPending, next, TransitionPatch{})
				return err
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				won = append(won, next)
			case errors.Is(err, errors.ErrConflict):
				conflict++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(next)
	}
	wg.Wait()

	if len(won) != 1 || conflict != 1 {
		t.Fatalf("expected one winner and one conflict, got %v / %d", won, conflict)
	}
	stored, err := repo.GetByID(context.Background(), booking.ID)
	if err != nil || stored.Status != won[0] {
		t.Fatalf("expected stored status %s, got %+v (%v)", won[0], stored, err)
	}
}

func TestTransitionFromStaleStatus(t *testing.T) {
	db := openTestDB(t)
	booking := seedBooking(t, db, false)
	repo := NewBookingRepository(db)
	ctx := context.Background()

	note := "see you there"
	link := "https://meet.google.com/abc"
	accepted, err := repo.Transition(ctx, booking.ID, entity.BookingStatusPending, entity.BookingStatusAccepted,
		TransitionPatch{StatusNote: &note, MeetingLink: &link})
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if *accepted.StatusNote != note || *accepted.MeetingLink != link {
		t.Fatalf("patch not applied: %+v", accepted)
	}

	if _, err := repo.Transition(ctx, booking.ID, entity.BookingStatusPending, entity.BookingStatusDeclined, TransitionPatch{}); !errors.Is(err, errors.ErrConflict) {
		t.Fatalf("stale from status: expected conflict, got %v", err)
	}
	if _, err := repo.Transition(ctx, booking.ID, entity.BookingStatusAccepted, entity.BookingStatusPending, TransitionPatch{}); !errors.Is(err, errors.ErrConflict) {
		t.Fatalf("illegal edge: expected conflict, got %v", err)
	}

	completed, err := repo.Transition(ctx, booking.ID, entity.BookingStatusAccepted, entity.BookingStatusCompleted, TransitionPatch{})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.MeetingLink == nil || *completed.MeetingLink != link {
		t.Fatal("nil patch fields must keep stored values")
	}
}

func TestMarkPaidOnce(t *testing.T) {
	db := openTestDB(t)
	booking := seedBooking(t, db, true)
	repo := NewBookingRepository(db)
	ctx := context.Background()
	paidAt := time.Date(2025, 1, 10, 8, 15, 30, 123456789, time.UTC)

	paid, err := repo.MarkPaid(ctx, booking.ID, paidAt)
	if err != nil {
		t.Fatalf("MarkPaid() error = %v", err)
	}
	if !paid.IsPaid() || paid.Payment.PaidAt == nil || !paid.Payment.PaidAt.Equal(paidAt) {
		t.Fatalf("unexpected payment %+v", paid.Payment)
	}
	if paid.Payment.Amount != 150 || paid.Payment.Currency != "ETB" || paid.Payment.Provider != "chapa" {
		t.Fatalf("MarkPaid must keep the other payment fields, got %+v", paid.Payment)
	}

	if _, err := repo.MarkPaid(ctx, booking.ID, paidAt.Add(time.Minute)); !errors.Is(err, errors.ErrConflict) {
		t.Fatalf("second MarkPaid: expected conflict, got %v", err)
	}
	stored, err := repo.GetByID(ctx, booking.ID)
	if err != nil || !stored.Payment.PaidAt.Equal(paidAt) {
		t.Fatalf("paid_at must not move, got %+v (%v)", stored, err)
	}

	free := seedBooking(t, db, false)
	marked, err := repo.MarkPaid(ctx, free.ID, paidAt)
	if err != nil || !marked.IsPaid() {
		t.Fatalf("MarkPaid on a booking without payment data: %+v (%v)", marked, err)
	}
}

func TestGetByTransactionRefForUpdate(t *testing.T) {
	db := openTestDB(t)
	booking := seedBooking(t, db, true)
	repo := NewBookingRepository(db)

	err := db.WithTx(context.Background(), func(tx database.IDatabase) error {
		found, err := repo.WithTx(tx).GetByTransactionRefForUpdate(context.Background(), *booking.TransactionRef)
		if err != nil {
			return err
		}
		if found == nil || found.ID != booking.ID {
			t.Errorf("expected booking %s, got %+v", booking.ID, found)
		}

		missing, err := repo.WithTx(tx).GetByTransactionRefForUpdate(context.Background(), "BK-"+uuid.NewString())
		if err != nil {
			return err
		}
		if missing != nil {
			t.Errorf("expected nil for unknown reference, got %+v", missing)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx() error = %v", err)
	}
}

func TestListByParty(t *testing.T) {
	db := openTestDB(t)
	booking := seedBooking(t, db, false)
	repo := NewBookingRepository(db)

	for _, id := range []uuid.UUID{booking.UserID, booking.ConsultantID} {
		list, err := repo.List(context.Background(), ListFilter{PartyID: &id, Limit: 10})
		if err != nil || len(list) != 1 || list[0].ID != booking.ID {
			t.Fatalf("List(party %s) = %v, %v", id, list, err)
		}
	}
}
