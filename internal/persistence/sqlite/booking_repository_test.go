package sqlite

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/sqlite/migration"
)

var errSlotTaken = errors.New("slot taken")

func TestBookingRepository_CreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "user1", "instructor")
	seedRoom(t, store, "room1", 30)

	subject := "Mathematics"
	booking := persistence.Booking{
		ID:           "booking1",
		UserID:       "user1",
		RoomID:       "room1",
		Date:         "2024-01-08",
		StartTime:    "09:00",
		EndTime:      "10:30",
		Duration:     1.5,
		ClassName:    "Algebra",
		Subject:      &subject,
		StudentCount: 20,
		Status:       "pending",
		CreatedAt:    testTime,
		UpdatedAt:    testTime,
	}
	if err := store.Bookings.CreateBooking(ctx, booking, nil); err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}

	got, err := store.Bookings.GetBooking(ctx, "booking1")
	if err != nil {
		t.Fatalf("GetBooking failed: %v", err)
	}
	if got.Duration != 1.5 || got.ClassName != "Algebra" || got.StudentCount != 20 {
		t.Errorf("Unexpected booking: %+v", got)
	}
	if got.Subject == nil || *got.Subject != "Mathematics" {
		t.Errorf("Expected subject to round trip, got %v", got.Subject)
	}
	if got.Notes != nil {
		t.Errorf("Expected nil notes, got %v", *got.Notes)
	}
	if got.RoomName != "Room room1" || got.RoomCapacity != 30 || got.RoomLocation != "Building A" {
		t.Errorf("Expected joined room fields, got %+v", got)
	}
	if got.UserName != "User user1" || got.UserEmail != "user1@school.example" {
		t.Errorf("Expected joined owner fields, got %+v", got)
	}
}

func TestBookingRepository_CreateBooking_RejectsInvalidRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "user1", "instructor")
	seedRoom(t, store, "room1", 30)

	reversed := persistence.Booking{
		ID: "b1", UserID: "user1", RoomID: "room1", Date: "2024-01-08",
		StartTime: "10:00", EndTime: "09:00", Duration: 1, ClassName: "X", Status: "pending",
	}
	if err := store.Bookings.CreateBooking(ctx, reversed, nil); !errors.Is(err, persistence.ErrConstraintViolation) {
		t.Fatalf("Expected ErrConstraintViolation for reversed interval, got %v", err)
	}

	orphan := reversed
	orphan.ID, orphan.StartTime, orphan.EndTime, orphan.RoomID = "b2", "09:00", "10:00", "missing"
	if err := store.Bookings.CreateBooking(ctx, orphan, nil); !errors.Is(err, persistence.ErrForeignKeyViolation) {
		t.Fatalf("Expected ErrForeignKeyViolation for unknown room, got %v", err)
	}
}

func TestBookingRepository_SlotCheckSeesActiveBookings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "user1", "instructor")
	seedRoom(t, store, "room1", 30)
	seedRoom(t, store, "room2", 30)
	seedBooking(t, store, "morning", "user1", "room1", "2024-01-08", "09:00", "10:00", "confirmed")
	seedBooking(t, store, "dropped", "user1", "room1", "2024-01-08", "10:00", "11:00", "cancelled")
	seedBooking(t, store, "other-room", "user1", "room2", "2024-01-08", "09:00", "10:00", "pending")
	seedBooking(t, store, "other-day", "user1", "room1", "2024-01-09", "09:00", "10:00", "pending")

	var seen []string
	check := func(existing []persistence.Booking) error {
		for _, b := range existing {
			seen = append(seen, b.ID)
		}
		return errSlotTaken
	}

	candidate := persistence.Booking{
		ID: "candidate", UserID: "user1", RoomID: "room1", Date: "2024-01-08",
		StartTime: "09:30", EndTime: "10:30", Duration: 1, ClassName: "X", Status: "pending",
	}
	if err := store.Bookings.CreateBooking(ctx, candidate, check); !errors.Is(err, errSlotTaken) {
		t.Fatalf("Expected slot check error, got %v", err)
	}
	if len(seen) != 1 || seen[0] != "morning" {
		t.Fatalf("Expected only the active booking in the same room and day, got %v", seen)
	}
	if _, err := store.Bookings.GetBooking(ctx, "candidate"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("Expected rejected booking not to be stored, got %v", err)
	}

	active, err := store.Bookings.ListActiveBookings(ctx, "room1", "2024-01-08")
	if err != nil {
		t.Fatalf("ListActiveBookings failed: %v", err)
	}
	if len(active) != 1 || active[0].ID != "morning" {
		t.Fatalf("Unexpected active bookings: %+v", active)
	}
}

func TestBookingRepository_UpdateBooking(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "user1", "instructor")
	seedRoom(t, store, "room1", 30)
	seedBooking(t, store, "booking1", "user1", "room1", "2024-01-08", "09:00", "10:00", "pending")
	seedBooking(t, store, "booking2", "user1", "room1", "2024-01-08", "11:00", "12:00", "confirmed")

	notes := "bring laptops"
	err := store.Bookings.UpdateBooking(ctx, "booking1", func(current persistence.Booking, tx persistence.BookingReader) (persistence.Booking, error) {
		if current.Status != "pending" || current.RoomName != "Room room1" {
			t.Errorf("Unexpected current booking: %+v", current)
		}
		room, err := tx.GetRoom(current.RoomID)
		if err != nil {
			return persistence.Booking{}, err
		}
		if room.Capacity != 30 {
			t.Errorf("Expected capacity 30, got %d", room.Capacity)
		}
		active, err := tx.ActiveBookings(current.RoomID, current.Date)
		if err != nil {
			return persistence.Booking{}, err
		}
		if len(active) != 2 {
			t.Errorf("Expected 2 active bookings, got %d", len(active))
		}

		current.Status = "modified"
		current.StartTime = "13:00"
		current.EndTime = "15:00"
		current.Duration = 2
		current.Notes = &notes
		return current, nil
	})
	if err != nil {
		t.Fatalf("UpdateBooking failed: %v", err)
	}

	got, err := store.Bookings.GetBooking(ctx, "booking1")
	if err != nil {
		t.Fatalf("GetBooking failed: %v", err)
	}
	if got.Status != "modified" || got.StartTime != "13:00" || got.Duration != 2 {
		t.Errorf("Unexpected updated booking: %+v", got)
	}
	if got.Notes == nil || *got.Notes != notes {
		t.Errorf("Expected notes to be stored, got %v", got.Notes)
	}

	if _, err := (&txBookingReader{}).GetRoom(""); !errors.Is(err, persistence.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for an empty room id, got %v", err)
	}
}

func TestBookingRepository_UpdateBooking_MutationErrorKeepsRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "user1", "instructor")
	seedRoom(t, store, "room1", 30)
	seedBooking(t, store, "booking1", "user1", "room1", "2024-01-08", "09:00", "10:00", "pending")

	err := store.Bookings.UpdateBooking(ctx, "booking1", func(current persistence.Booking, _ persistence.BookingReader) (persistence.Booking, error) {
		return persistence.Booking{}, errSlotTaken
	})
	if !errors.Is(err, errSlotTaken) {
		t.Fatalf("Expected mutation error, got %v", err)
	}

	got, err := store.Bookings.GetBooking(ctx, "booking1")
	if err != nil {
		t.Fatalf("GetBooking failed: %v", err)
	}
	if got.Status != "pending" || got.StartTime != "09:00" {
		t.Errorf("Expected booking to be untouched, got %+v", got)
	}

	called := false
	err = store.Bookings.UpdateBooking(ctx, "ghost", func(current persistence.Booking, _ persistence.BookingReader) (persistence.Booking, error) {
		called = true
		return current, nil
	})
	if !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	if called {
		t.Fatalf("Expected mutation not to run for a missing booking")
	}
	if err := store.Bookings.UpdateBooking(ctx, "booking1", nil); err == nil {
		t.Fatalf("Expected an error for a nil mutation")
	}
}

func TestBookingRepository_ListBookings(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "user1", "instructor")
	seedUser(t, store, "user2", "instructor")
	seedRoom(t, store, "room1", 30)
	seedRoom(t, store, "room2", 30)
	seedBooking(t, store, "a", "user1", "room1", "2024-01-08", "09:00", "10:00", "pending")
	seedBooking(t, store, "b", "user1", "room2", "2024-01-09", "09:00", "10:00", "confirmed")
	seedBooking(t, store, "c", "user2", "room1", "2024-01-09", "11:00", "12:00", "pending")

	tests := []struct {
		name   string
		filter persistence.BookingFilter
		want   []string
	}{
		{name: "all newest first", want: []string{"c", "b", "a"}},
		{name: "by user", filter: persistence.BookingFilter{UserID: "user1"}, want: []string{"b", "a"}},
		{name: "by room", filter: persistence.BookingFilter{RoomID: "room1"}, want: []string{"c", "a"}},
		{name: "by status", filter: persistence.BookingFilter{Status: "pending"}, want: []string{"c", "a"}},
		{name: "by date and room", filter: persistence.BookingFilter{Date: "2024-01-09", RoomID: "room2"}, want: []string{"b"}},
		{name: "no match", filter: persistence.BookingFilter{Status: "cancelled"}, want: []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := store.Bookings.ListBookings(ctx, tt.filter)
			if err != nil {
				t.Fatalf("ListBookings failed: %v", err)
			}
			ids := make([]string, 0, len(got))
			for _, b := range got {
				ids = append(ids, b.ID)
			}
			if len(ids) != len(tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, ids)
			}
			for i := range ids {
				if ids[i] != tt.want[i] {
					t.Fatalf("Expected %v, got %v", tt.want, ids)
				}
			}
		})
	}
}

func TestBookingRepository_DeleteBooking(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedUser(t, store, "user1", "instructor")
	seedRoom(t, store, "room1", 30)
	seedBooking(t, store, "booking1", "user1", "room1", "2024-01-08", "09:00", "10:00", "cancelled")

	if err := store.Bookings.DeleteBooking(ctx, "booking1"); err != nil {
		t.Fatalf("DeleteBooking failed: %v", err)
	}
	if err := store.Bookings.DeleteBooking(ctx, "booking1"); !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

var bookingMockColumns = []string{
	"id", "user_id", "room_id", "date", "start_time", "end_time", "duration",
	"class_name", "subject", "student_count", "status", "notes",
	"created_at", "updated_at",
	"room_name", "room_capacity", "room_location", "user_name", "user_email",
}

func newMockBookingRepository(t *testing.T) (*BookingRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewBookingRepository(NewConnectionPoolFromDB(db, migration.InMemoryTestSQLiteConfig())), mock
}

func mockCandidate() persistence.Booking {
	return persistence.Booking{
		ID: "candidate", UserID: "user1", RoomID: "room1", Date: "2024-01-08",
		StartTime: "09:30", EndTime: "10:30", Duration: 1, ClassName: "Algebra", Status: "pending",
		CreatedAt: testTime, UpdatedAt: testTime,
	}
}

func TestBookingRepository_CreateBooking_RollsBackWhenCheckFails(t *testing.T) {
	repo, mock := newMockBookingRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE b.room_id = ? AND b.date = ? AND b.status != 'cancelled'")).
		WithArgs("room1", "2024-01-08").
		WillReturnRows(sqlmock.NewRows(bookingMockColumns).AddRow(
			"existing", "user2", "room1", "2024-01-08", "09:00", "10:00", 1.0,
			"Physics", nil, 12, "confirmed", nil,
			"2024-01-02T09:00:00Z", "2024-01-02T09:00:00Z",
			"Room 1", 30, "Building A", "Other", "other@school.example",
		))
	mock.ExpectRollback()

	var conflicts []persistence.Booking
	err := repo.CreateBooking(context.Background(), mockCandidate(), func(existing []persistence.Booking) error {
		conflicts = existing
		return errSlotTaken
	})
	if !errors.Is(err, errSlotTaken) {
		t.Fatalf("Expected slot check error, got %v", err)
	}
	if len(conflicts) != 1 || conflicts[0].ID != "existing" || conflicts[0].RoomName != "Room 1" {
		t.Fatalf("Unexpected bookings handed to check: %+v", conflicts)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBookingRepository_CreateBooking_CommitsAfterCheck(t *testing.T) {
	repo, mock := newMockBookingRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE b.room_id = ? AND b.date = ? AND b.status != 'cancelled'")).
		WithArgs("room1", "2024-01-08").
		WillReturnRows(sqlmock.NewRows(bookingMockColumns))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bookings")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	called := false
	err := repo.CreateBooking(context.Background(), mockCandidate(), func(existing []persistence.Booking) error {
		called = true
		if len(existing) != 0 {
			t.Errorf("Expected no existing bookings, got %d", len(existing))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("CreateBooking failed: %v", err)
	}
	if !called {
		t.Fatalf("Expected slot check to run")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBookingRepository_UpdateBooking_MapsMissingRow(t *testing.T) {
	repo, mock := newMockBookingRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE b.id = ?")).
		WithArgs("candidate").
		WillReturnRows(sqlmock.NewRows(bookingMockColumns))
	mock.ExpectRollback()

	err := repo.UpdateBooking(context.Background(), "candidate", func(current persistence.Booking, _ persistence.BookingReader) (persistence.Booking, error) {
		t.Errorf("mutation must not run for a missing booking")
		return current, nil
	})
	if !errors.Is(err, persistence.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBookingRepository_UpdateBooking_ReadsRowInsideTransaction(t *testing.T) {
	repo, mock := newMockBookingRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE b.id = ?")).
		WithArgs("candidate").
		WillReturnRows(sqlmock.NewRows(bookingMockColumns).AddRow(
			"candidate", "user1", "room1", "2024-01-08", "09:30", "10:30", 1.0,
			"Algebra", nil, 12, "cancelled", nil,
			"2024-01-02T09:00:00Z", "2024-01-02T09:00:00Z",
			"Room 1", 30, "Building A", "User 1", "user1@school.example",
		))
	mock.ExpectRollback()

	err := repo.UpdateBooking(context.Background(), "candidate", func(current persistence.Booking, _ persistence.BookingReader) (persistence.Booking, error) {
		if current.Status == "cancelled" {
			return persistence.Booking{}, errSlotTaken
		}
		return current, nil
	})
	if !errors.Is(err, errSlotTaken) {
		t.Fatalf("Expected mutation error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestBookingRepository_UpdateBooking_CommitsMutatedRow(t *testing.T) {
	repo, mock := newMockBookingRepository(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE b.id = ?")).
		WithArgs("candidate").
		WillReturnRows(sqlmock.NewRows(bookingMockColumns).AddRow(
			"candidate", "user1", "room1", "2024-01-08", "09:30", "10:30", 1.0,
			"Algebra", nil, 12, "pending", nil,
			"2024-01-02T09:00:00Z", "2024-01-02T09:00:00Z",
			"Room 1", 30, "Building A", "User 1", "user1@school.example",
		))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bookings")).
		WithArgs("room1", "2024-01-08", "09:30", "10:30", sqlmock.AnyArg(), "Algebra",
			sqlmock.AnyArg(), sqlmock.AnyArg(), "confirmed", sqlmock.AnyArg(), sqlmock.AnyArg(), "candidate").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.UpdateBooking(context.Background(), "candidate", func(current persistence.Booking, _ persistence.BookingReader) (persistence.Booking, error) {
		current.Status = "confirmed"
		return current, nil
	})
	if err != nil {
		t.Fatalf("UpdateBooking failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
