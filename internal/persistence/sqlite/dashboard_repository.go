package sqlite

import (
	"context"

	"github.com/example/room-booking/internal/persistence"
)

// DashboardRepository implements persistence.DashboardRepository using SQLite.
type DashboardRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewDashboardRepository creates a new SQLite dashboard repository.
func NewDashboardRepository(pool *ConnectionPool) *DashboardRepository {
	return &DashboardRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

type totalsRow struct {
	Rooms             int `db:"rooms"`
	Users             int `db:"users"`
	Bookings          int `db:"bookings"`
	BookingsOnDate    int `db:"bookings_on_date"`
	PendingBookings   int `db:"pending_bookings"`
	AvailableRooms    int `db:"available_rooms"`
	ActiveInstructors int `db:"active_instructors"`
}

// Totals returns catalog-wide counters; today selects the day counted in BookingsOnDate.
func (r *DashboardRepository) Totals(ctx context.Context, today string) (persistence.DashboardTotals, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM rooms) AS rooms,
			(SELECT COUNT(*) FROM users) AS users,
			(SELECT COUNT(*) FROM bookings) AS bookings,
			(SELECT COUNT(*) FROM bookings WHERE date = ?) AS bookings_on_date,
			(SELECT COUNT(*) FROM bookings WHERE status = 'pending') AS pending_bookings,
			(SELECT COUNT(*) FROM rooms WHERE status = 'available') AS available_rooms,
			(SELECT COUNT(DISTINCT user_id) FROM bookings WHERE status != 'cancelled') AS active_instructors`

	var row totalsRow
	if err := r.helper.Get(ctx, &row, query, today); err != nil {
		return persistence.DashboardTotals{}, r.mapper.MapError(err)
	}
	return persistence.DashboardTotals(row), nil
}

type statusCountRow struct {
	Status string `db:"status"`
	Count  int    `db:"count"`
}

// BookingsByStatus groups bookings by status. An empty userID counts every booking.
func (r *DashboardRepository) BookingsByStatus(ctx context.Context, userID string) ([]persistence.StatusCount, error) {
	query := `SELECT status, COUNT(*) AS count FROM bookings`
	var args []interface{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` GROUP BY status ORDER BY status`

	var rows []statusCountRow
	if err := r.helper.Select(ctx, &rows, query, args...); err != nil {
		return nil, r.mapper.MapError(err)
	}
	counts := make([]persistence.StatusCount, 0, len(rows))
	for _, row := range rows {
		counts = append(counts, persistence.StatusCount(row))
	}
	return counts, nil
}

// RecentBookings returns the most recently created bookings. An empty userID
// considers every owner.
func (r *DashboardRepository) RecentBookings(ctx context.Context, userID string, limit int) ([]persistence.Booking, error) {
	query := bookingSelect
	var args []interface{}
	if userID != "" {
		query += ` WHERE b.user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY b.created_at DESC, b.id ASC LIMIT ?`
	args = append(args, limit)

	var rows []bookingRow
	if err := r.helper.Select(ctx, &rows, query, args...); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return toBookings(rows)
}

type dateCountRow struct {
	Date  string `db:"date"`
	Count int    `db:"count"`
}

// BookingsPerDay counts bookings per date within [from, to]. Days without
// bookings are omitted.
func (r *DashboardRepository) BookingsPerDay(ctx context.Context, from, to string) ([]persistence.DateCount, error) {
	const query = `
		SELECT date, COUNT(*) AS count
		FROM bookings
		WHERE date BETWEEN ? AND ?
		GROUP BY date
		ORDER BY date`

	var rows []dateCountRow
	if err := r.helper.Select(ctx, &rows, query, from, to); err != nil {
		return nil, r.mapper.MapError(err)
	}
	counts := make([]persistence.DateCount, 0, len(rows))
	for _, row := range rows {
		counts = append(counts, persistence.DateCount(row))
	}
	return counts, nil
}

type instructorTotalsRow struct {
	Bookings  int `db:"bookings"`
	Upcoming  int `db:"upcoming"`
	Confirmed int `db:"confirmed"`
	Pending   int `db:"pending"`
}

// InstructorTotals returns the counters shown on an instructor's dashboard.
func (r *DashboardRepository) InstructorTotals(ctx context.Context, userID, today string) (persistence.InstructorTotals, error) {
	const query = `
		SELECT
			COUNT(*) AS bookings,
			COALESCE(SUM(CASE WHEN date >= ? AND status != 'cancelled' THEN 1 ELSE 0 END), 0) AS upcoming,
			COALESCE(SUM(CASE WHEN status = 'confirmed' THEN 1 ELSE 0 END), 0) AS confirmed,
			COALESCE(SUM(CASE WHEN status = 'pending' THEN 1 ELSE 0 END), 0) AS pending
		FROM bookings
		WHERE user_id = ?`

	var row instructorTotalsRow
	if err := r.helper.Get(ctx, &row, query, today, userID); err != nil {
		return persistence.InstructorTotals{}, r.mapper.MapError(err)
	}
	return persistence.InstructorTotals(row), nil
}

// NextBooking returns the owner's earliest non-cancelled booking on or after
// today, or persistence.ErrNotFound.
func (r *DashboardRepository) NextBooking(ctx context.Context, userID, today string) (persistence.Booking, error) {
	query := bookingSelect + `
		WHERE b.user_id = ? AND b.date >= ? AND b.status != 'cancelled'
		ORDER BY b.date ASC, b.start_time ASC
		LIMIT 1`

	var row bookingRow
	if err := r.helper.Get(ctx, &row, query, userID, today); err != nil {
		return persistence.Booking{}, r.mapper.MapError(err)
	}
	return row.toBooking()
}
