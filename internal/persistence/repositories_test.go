package persistence_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
	"github.com/example/room-booking/internal/testfixtures"
)

type dashboardScenario struct {
	harness *testfixtures.SQLiteHarness
	admin   testfixtures.UserFixture
	first   testfixtures.UserFixture
	second  testfixtures.UserFixture
	ids     map[string]string
}

// newDashboardScenario seeds three users, two rooms (one under maintenance) and
// five bookings spread around 2024-01-02.
func newDashboardScenario(t *testing.T) dashboardScenario {
	t.Helper()

	ctx := context.Background()
	harness := testfixtures.NewSQLiteHarness(t)

	admin := testfixtures.NewUserFixture(testfixtures.WithUserRole(scheduler.RoleAdmin))
	first := testfixtures.NewUserFixture()
	second := testfixtures.NewUserFixture()
	for _, u := range []testfixtures.UserFixture{admin, first, second} {
		if err := harness.Users.CreateUser(ctx, u.Persistence()); err != nil {
			t.Fatalf("CreateUser failed: %v", err)
		}
	}

	open := testfixtures.NewRoomFixture()
	closed := testfixtures.NewRoomFixture(testfixtures.WithRoomStatus("maintenance"))
	for _, r := range []testfixtures.RoomFixture{open, closed} {
		if err := harness.Rooms.CreateRoom(ctx, r.Persistence()); err != nil {
			t.Fatalf("CreateRoom failed: %v", err)
		}
	}

	seeds := []struct {
		key    string
		owner  string
		room   string
		date   string
		status scheduler.Status
	}{
		{"today", first.ID, open.ID, "2024-01-02", scheduler.StatusPending},
		{"later", first.ID, open.ID, "2024-01-05", scheduler.StatusConfirmed},
		{"past", first.ID, closed.ID, "2024-01-01", scheduler.StatusConfirmed},
		{"dropped", second.ID, open.ID, "2024-01-03", scheduler.StatusCancelled},
		{"next-week", second.ID, closed.ID, "2024-01-10", scheduler.StatusPending},
	}

	ids := make(map[string]string, len(seeds))
	for _, seed := range seeds {
		booking := testfixtures.NewBookingFixture(
			testfixtures.WithBookingOwner(seed.owner),
			testfixtures.WithBookingRoom(seed.room),
			testfixtures.WithBookingSlot(seed.date, "09:00", "10:00"),
			testfixtures.WithBookingStatus(seed.status),
		)
		if err := harness.Bookings.CreateBooking(ctx, booking.Persistence(), nil); err != nil {
			t.Fatalf("CreateBooking %s failed: %v", seed.key, err)
		}
		ids[seed.key] = booking.ID
	}

	return dashboardScenario{harness: harness, admin: admin, first: first, second: second, ids: ids}
}

func TestDashboardRepository(t *testing.T) {
	t.Parallel()

	t.Run("computes catalog totals", func(t *testing.T) {
		t.Parallel()

		s := newDashboardScenario(t)
		totals, err := s.harness.Dashboard.Totals(context.Background(), "2024-01-02")
		if err != nil {
			t.Fatalf("Totals failed: %v", err)
		}

		want := persistence.DashboardTotals{
			Rooms:             2,
			Users:             3,
			Bookings:          5,
			BookingsOnDate:    1,
			PendingBookings:   2,
			AvailableRooms:    1,
			ActiveInstructors: 2,
		}
		if totals != want {
			t.Fatalf("unexpected totals: got %+v want %+v", totals, want)
		}
	})

	t.Run("groups bookings by status", func(t *testing.T) {
		t.Parallel()

		s := newDashboardScenario(t)
		ctx := context.Background()

		all, err := s.harness.Dashboard.BookingsByStatus(ctx, "")
		if err != nil {
			t.Fatalf("BookingsByStatus failed: %v", err)
		}
		wantAll := []persistence.StatusCount{{Status: "cancelled", Count: 1}, {Status: "confirmed", Count: 2}, {Status: "pending", Count: 2}}
		if !slices.Equal(all, wantAll) {
			t.Fatalf("unexpected status counts: %+v", all)
		}

		mine, err := s.harness.Dashboard.BookingsByStatus(ctx, s.first.ID)
		if err != nil {
			t.Fatalf("BookingsByStatus failed: %v", err)
		}
		wantMine := []persistence.StatusCount{{Status: "confirmed", Count: 2}, {Status: "pending", Count: 1}}
		if !slices.Equal(mine, wantMine) {
			t.Fatalf("unexpected owner status counts: %+v", mine)
		}
	})

	t.Run("lists recent bookings newest first", func(t *testing.T) {
		t.Parallel()

		s := newDashboardScenario(t)
		recent, err := s.harness.Dashboard.RecentBookings(context.Background(), "", 2)
		if err != nil {
			t.Fatalf("RecentBookings failed: %v", err)
		}
		if len(recent) != 2 || recent[0].ID != s.ids["next-week"] || recent[1].ID != s.ids["dropped"] {
			t.Fatalf("unexpected recent bookings: %+v", recent)
		}
		if recent[0].UserEmail != s.second.Email {
			t.Fatalf("expected joined owner email, got %q", recent[0].UserEmail)
		}
	})

	t.Run("counts bookings per day within the range", func(t *testing.T) {
		t.Parallel()

		s := newDashboardScenario(t)
		days, err := s.harness.Dashboard.BookingsPerDay(context.Background(), "2024-01-01", "2024-01-07")
		if err != nil {
			t.Fatalf("BookingsPerDay failed: %v", err)
		}
		want := []persistence.DateCount{
			{Date: "2024-01-01", Count: 1},
			{Date: "2024-01-02", Count: 1},
			{Date: "2024-01-03", Count: 1},
			{Date: "2024-01-05", Count: 1},
		}
		if !slices.Equal(days, want) {
			t.Fatalf("unexpected daily counts: %+v", days)
		}
	})

	t.Run("summarises an instructor", func(t *testing.T) {
		t.Parallel()

		s := newDashboardScenario(t)
		ctx := context.Background()

		totals, err := s.harness.Dashboard.InstructorTotals(ctx, s.first.ID, "2024-01-02")
		if err != nil {
			t.Fatalf("InstructorTotals failed: %v", err)
		}
		want := persistence.InstructorTotals{Bookings: 3, Upcoming: 2, Confirmed: 2, Pending: 1}
		if totals != want {
			t.Fatalf("unexpected instructor totals: got %+v want %+v", totals, want)
		}

		next, err := s.harness.Dashboard.NextBooking(ctx, s.first.ID, "2024-01-02")
		if err != nil {
			t.Fatalf("NextBooking failed: %v", err)
		}
		if next.ID != s.ids["today"] {
			t.Fatalf("expected today's booking next, got %s", next.ID)
		}

		empty, err := s.harness.Dashboard.InstructorTotals(ctx, s.admin.ID, "2024-01-02")
		if err != nil {
			t.Fatalf("InstructorTotals failed: %v", err)
		}
		if empty != (persistence.InstructorTotals{}) {
			t.Fatalf("expected zero totals, got %+v", empty)
		}
		if _, err := s.harness.Dashboard.NextBooking(ctx, s.admin.ID, "2024-01-02"); !errors.Is(err, persistence.ErrNotFound) {
			t.Fatalf("expected persistence.ErrNotFound, got %v", err)
		}
	})
}

func TestRoomDeletionKeepsActiveBookings(t *testing.T) {
	t.Parallel()

	s := newDashboardScenario(t)
	ctx := context.Background()

	rooms, err := s.harness.Rooms.ListRooms(ctx)
	if err != nil {
		t.Fatalf("ListRooms failed: %v", err)
	}
	for _, room := range rooms {
		if err := s.harness.Rooms.DeleteRoom(ctx, room.ID); !errors.Is(err, persistence.ErrForeignKeyViolation) {
			t.Fatalf("expected room %s to be protected by its bookings, got %v", room.ID, err)
		}
	}
}
