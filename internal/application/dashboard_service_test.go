package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/room-booking/internal/persistence"
)

type dashboardRepoStub struct {
	totals    DashboardCounts
	byStatus  map[string]int
	recent    []Booking
	perDay    []DailyCount
	inst      InstructorCounts
	next      Booking
	nextErr   error
	perDayArg [2]string
	todayArg  string
	recentFor []string
}

func (d *dashboardRepoStub) Totals(ctx context.Context, today string) (DashboardCounts, error) {
	d.todayArg = today
	return d.totals, nil
}

func (d *dashboardRepoStub) BookingsByStatus(ctx context.Context, userID string) (map[string]int, error) {
	return d.byStatus, nil
}

func (d *dashboardRepoStub) RecentBookings(ctx context.Context, userID string, limit int) ([]Booking, error) {
	d.recentFor = append(d.recentFor, userID)
	if len(d.recent) > limit {
		return d.recent[:limit], nil
	}
	return d.recent, nil
}

func (d *dashboardRepoStub) BookingsPerDay(ctx context.Context, from, to string) ([]DailyCount, error) {
	d.perDayArg = [2]string{from, to}
	return d.perDay, nil
}

func (d *dashboardRepoStub) InstructorTotals(ctx context.Context, userID, today string) (InstructorCounts, error) {
	d.todayArg = today
	return d.inst, nil
}

func (d *dashboardRepoStub) NextBooking(ctx context.Context, userID, today string) (Booking, error) {
	if d.nextErr != nil {
		return Booking{}, d.nextErr
	}
	return d.next, nil
}

// Wednesday.
var dashboardNow = time.Date(2025, time.March, 12, 15, 0, 0, 0, time.UTC)

func TestDashboardService_AdminStats(t *testing.T) {
	t.Parallel()

	repo := &dashboardRepoStub{
		totals:   DashboardCounts{Rooms: 3, Users: 4, Bookings: 9, TodaysBookings: 2, PendingBookings: 5, AvailableRooms: 2, ActiveInstructors: 3},
		byStatus: map[string]int{"pending": 5, "confirmed": 4},
		recent:   []Booking{{ID: "1"}, {ID: "2"}, {ID: "3"}, {ID: "4"}, {ID: "5"}, {ID: "6"}},
		perDay:   []DailyCount{{Date: "2025-03-10", Count: 2}, {Date: "2025-03-12", Count: 1}},
	}
	svc := NewDashboardService(repo, func() time.Time { return dashboardNow }, nil)

	if _, err := svc.AdminStats(context.Background(), ownerPrincipal); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	stats, err := svc.AdminStats(context.Background(), adminPrincipal)
	if err != nil {
		t.Fatalf("AdminStats: %v", err)
	}
	if repo.todayArg != "2025-03-12" {
		t.Fatalf("expected today's date, got %q", repo.todayArg)
	}
	if stats.TotalBookings != 9 || stats.ActiveInstructors != 3 || stats.BookingsByStatus["pending"] != 5 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if len(stats.RecentBookings) != 5 {
		t.Fatalf("expected five recent bookings, got %d", len(stats.RecentBookings))
	}
	if repo.perDayArg != [2]string{"2025-03-09", "2025-03-15"} {
		t.Fatalf("expected Sunday-start week, got %v", repo.perDayArg)
	}
	if len(stats.WeeklyBookings) != 7 {
		t.Fatalf("expected seven days, got %d", len(stats.WeeklyBookings))
	}
	if stats.WeeklyBookings[1] != (DailyCount{Date: "2025-03-10", Count: 2}) || stats.WeeklyBookings[2].Count != 0 {
		t.Fatalf("unexpected weekly counts %+v", stats.WeeklyBookings)
	}
}

func TestDashboardService_InstructorStats(t *testing.T) {
	t.Parallel()

	t.Run("includes the next booking", func(t *testing.T) {
		t.Parallel()
		repo := &dashboardRepoStub{
			inst: InstructorCounts{Total: 4, Upcoming: 2, Confirmed: 1, Pending: 2},
			next: Booking{ID: "next"},
		}
		svc := NewDashboardService(repo, func() time.Time { return dashboardNow }, nil)

		stats, err := svc.InstructorStats(context.Background(), ownerPrincipal)
		if err != nil {
			t.Fatalf("InstructorStats: %v", err)
		}
		if stats.TotalBookings != 4 || stats.UpcomingBookings != 2 {
			t.Fatalf("unexpected stats %+v", stats)
		}
		if stats.NextBooking == nil || stats.NextBooking.ID != "next" {
			t.Fatalf("expected next booking, got %+v", stats.NextBooking)
		}
		if len(repo.recentFor) != 1 || repo.recentFor[0] != ownerPrincipal.UserID {
			t.Fatalf("expected recent bookings scoped to principal, got %v", repo.recentFor)
		}
	})

	t.Run("leaves next booking empty when there is none", func(t *testing.T) {
		t.Parallel()
		repo := &dashboardRepoStub{nextErr: persistence.ErrNotFound}
		svc := NewDashboardService(repo, func() time.Time { return dashboardNow }, nil)

		stats, err := svc.InstructorStats(context.Background(), ownerPrincipal)
		if err != nil {
			t.Fatalf("InstructorStats: %v", err)
		}
		if stats.NextBooking != nil {
			t.Fatalf("expected no next booking, got %+v", stats.NextBooking)
		}
	})

	t.Run("requires authentication", func(t *testing.T) {
		t.Parallel()
		svc := NewDashboardService(&dashboardRepoStub{}, nil, nil)

		if _, err := svc.InstructorStats(context.Background(), Principal{}); !errors.Is(err, ErrUnauthenticated) {
			t.Fatalf("expected ErrUnauthenticated, got %v", err)
		}
	})
}
