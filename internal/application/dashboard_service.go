package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/room-booking/internal/scheduler"
)

const recentBookingsLimit = 5

// DashboardCounts holds the catalog-wide counters for the admin dashboard.
type DashboardCounts struct {
	Rooms             int
	Users             int
	Bookings          int
	TodaysBookings    int
	PendingBookings   int
	AvailableRooms    int
	ActiveInstructors int
}

// InstructorCounts holds one owner's booking counters.
type InstructorCounts struct {
	Total     int
	Upcoming  int
	Confirmed int
	Pending   int
}

// DashboardRepository answers the aggregate queries behind the dashboards.
// An empty userID means every owner.
type DashboardRepository interface {
	Totals(ctx context.Context, today string) (DashboardCounts, error)
	BookingsByStatus(ctx context.Context, userID string) (map[string]int, error)
	RecentBookings(ctx context.Context, userID string, limit int) ([]Booking, error)
	BookingsPerDay(ctx context.Context, from, to string) ([]DailyCount, error)
	InstructorTotals(ctx context.Context, userID, today string) (InstructorCounts, error)
	NextBooking(ctx context.Context, userID, today string) (Booking, error)
}

// DashboardService builds the admin and instructor dashboards.
type DashboardService struct {
	stats  DashboardRepository
	now    func() time.Time
	logger *slog.Logger
}

// NewDashboardService constructs a dashboard service.
func NewDashboardService(stats DashboardRepository, now func() time.Time, logger *slog.Logger) *DashboardService {
	if now == nil {
		now = time.Now
	}
	return &DashboardService{stats: stats, now: now, logger: defaultLogger(logger)}
}

// AdminStats returns the administrator dashboard. Weekly counts cover the
// Sunday-start week containing today, one entry per day.
func (s *DashboardService) AdminStats(ctx context.Context, principal Principal) (stats AdminStats, err error) {
	if s == nil || s.stats == nil {
		err = fmt.Errorf("dashboard service not configured")
		return
	}
	if !principal.Authenticated() {
		err = ErrUnauthenticated
		return
	}
	if !principal.IsAdmin() {
		err = ErrForbidden
		return
	}

	logger := serviceLogger(ctx, s.logger, "DashboardService", "AdminStats", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to build admin stats", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	now := s.now()
	today := now.Format(scheduler.DateLayout)

	var counts DashboardCounts
	if counts, err = s.stats.Totals(ctx, today); err != nil {
		return
	}
	stats = AdminStats{
		TotalRooms:        counts.Rooms,
		TotalUsers:        counts.Users,
		TotalBookings:     counts.Bookings,
		TodaysBookings:    counts.TodaysBookings,
		PendingBookings:   counts.PendingBookings,
		AvailableRooms:    counts.AvailableRooms,
		ActiveInstructors: counts.ActiveInstructors,
	}

	if stats.BookingsByStatus, err = s.stats.BookingsByStatus(ctx, ""); err != nil {
		return
	}
	if stats.RecentBookings, err = s.stats.RecentBookings(ctx, "", recentBookingsLimit); err != nil {
		return
	}

	days := weekDays(now)
	var perDay []DailyCount
	if perDay, err = s.stats.BookingsPerDay(ctx, days[0], days[len(days)-1]); err != nil {
		return
	}
	stats.WeeklyBookings = fillDays(days, perDay)
	return
}

// InstructorStats returns the principal's own dashboard.
func (s *DashboardService) InstructorStats(ctx context.Context, principal Principal) (stats InstructorStats, err error) {
	if s == nil || s.stats == nil {
		err = fmt.Errorf("dashboard service not configured")
		return
	}
	if !principal.Authenticated() {
		err = ErrUnauthenticated
		return
	}

	logger := serviceLogger(ctx, s.logger, "DashboardService", "InstructorStats", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to build instructor stats", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	today := s.now().Format(scheduler.DateLayout)

	var counts InstructorCounts
	if counts, err = s.stats.InstructorTotals(ctx, principal.UserID, today); err != nil {
		return
	}
	stats = InstructorStats{
		TotalBookings:     counts.Total,
		UpcomingBookings:  counts.Upcoming,
		ConfirmedBookings: counts.Confirmed,
		PendingBookings:   counts.Pending,
	}

	next, nextErr := s.stats.NextBooking(ctx, principal.UserID, today)
	switch {
	case nextErr == nil:
		stats.NextBooking = &next
	case errors.Is(mapBookingRepoError(nextErr), ErrNotFound):
	default:
		err = nextErr
		return
	}

	stats.RecentBookings, err = s.stats.RecentBookings(ctx, principal.UserID, recentBookingsLimit)
	return
}

// weekDays lists the seven dates of the Sunday-start week containing now.
func weekDays(now time.Time) []string {
	start := now.AddDate(0, 0, -int(now.Weekday()))
	days := make([]string, 7)
	for i := range days {
		days[i] = start.AddDate(0, 0, i).Format(scheduler.DateLayout)
	}
	return days
}

func fillDays(days []string, counts []DailyCount) []DailyCount {
	byDate := make(map[string]int, len(counts))
	for _, c := range counts {
		byDate[c.Date] = c.Count
	}
	out := make([]DailyCount, len(days))
	for i, day := range days {
		out[i] = DailyCount{Date: day, Count: byDate[day]}
	}
	return out
}
