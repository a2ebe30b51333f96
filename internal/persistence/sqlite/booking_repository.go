package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/example/room-booking/internal/persistence"
	"github.com/jmoiron/sqlx"
)

// BookingRepository implements persistence.BookingRepository using SQLite.
type BookingRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewBookingRepository creates a new SQLite booking repository.
func NewBookingRepository(pool *ConnectionPool) *BookingRepository {
	return &BookingRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

// bookingRow mirrors the joined booking projection.
type bookingRow struct {
	ID           string         `db:"id"`
	UserID       string         `db:"user_id"`
	RoomID       string         `db:"room_id"`
	Date         string         `db:"date"`
	StartTime    string         `db:"start_time"`
	EndTime      string         `db:"end_time"`
	Duration     float64        `db:"duration"`
	ClassName    string         `db:"class_name"`
	Subject      sql.NullString `db:"subject"`
	StudentCount int            `db:"student_count"`
	Status       string         `db:"status"`
	Notes        sql.NullString `db:"notes"`
	CreatedAt    string         `db:"created_at"`
	UpdatedAt    string         `db:"updated_at"`
	RoomName     sql.NullString `db:"room_name"`
	RoomCapacity sql.NullInt64  `db:"room_capacity"`
	RoomLocation sql.NullString `db:"room_location"`
	UserName     sql.NullString `db:"user_name"`
	UserEmail    sql.NullString `db:"user_email"`
}

const bookingSelect = `
	SELECT
		b.id, b.user_id, b.room_id, b.date, b.start_time, b.end_time, b.duration,
		b.class_name, b.subject, b.student_count, b.status, b.notes,
		b.created_at, b.updated_at,
		r.name AS room_name, r.capacity AS room_capacity, r.location AS room_location,
		u.name AS user_name, u.email AS user_email
	FROM bookings b
	LEFT JOIN rooms r ON r.id = b.room_id
	LEFT JOIN users u ON u.id = b.user_id`

const activeSlotsQuery = bookingSelect + `
	WHERE b.room_id = ? AND b.date = ? AND b.status != 'cancelled'
	ORDER BY b.start_time ASC, b.id ASC`

const insertBookingSQL = `
	INSERT INTO bookings (
		id, user_id, room_id, date, start_time, end_time, duration,
		class_name, subject, student_count, status, notes, created_at, updated_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const updateBookingSQL = `
	UPDATE bookings
	SET room_id = ?, date = ?, start_time = ?, end_time = ?, duration = ?,
		class_name = ?, subject = ?, student_count = ?, status = ?, notes = ?, updated_at = ?
	WHERE id = ?`

// CreateBooking inserts a booking. When check is non-nil it is handed the active
// bookings of the same room and date inside the write transaction, and any
// error it returns rolls the insert back unchanged.
func (r *BookingRepository) CreateBooking(ctx context.Context, booking persistence.Booking, check persistence.SlotCheck) error {
	if booking.ID == "" || booking.UserID == "" || booking.RoomID == "" {
		return persistence.ErrConstraintViolation
	}

	return r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if err := r.runSlotCheck(ctx, tx, booking.RoomID, booking.Date, check); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, insertBookingSQL,
			booking.ID,
			booking.UserID,
			booking.RoomID,
			booking.Date,
			booking.StartTime,
			booking.EndTime,
			booking.Duration,
			booking.ClassName,
			nullableString(booking.Subject),
			booking.StudentCount,
			booking.Status,
			nullableString(booking.Notes),
			formatTime(booking.CreatedAt),
			formatTime(booking.UpdatedAt),
		)
		return r.mapper.MapError(err)
	})
}

// UpdateBooking reads the booking inside the write transaction, hands it to
// mutate and writes the returned row back. The lifecycle and slot rules applied
// by mutate therefore always see the committed state of the row.
func (r *BookingRepository) UpdateBooking(ctx context.Context, id string, mutate persistence.BookingMutation) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	if mutate == nil {
		return fmt.Errorf("booking mutation is required")
	}

	return r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		var row bookingRow
		if err := tx.GetContext(ctx, &row, bookingSelect+` WHERE b.id = ?`, id); err != nil {
			return r.mapper.MapError(err)
		}
		current, err := row.toBooking()
		if err != nil {
			return err
		}

		booking, err := mutate(current, &txBookingReader{ctx: ctx, tx: tx, repo: r})
		if err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx, updateBookingSQL,
			booking.RoomID,
			booking.Date,
			booking.StartTime,
			booking.EndTime,
			booking.Duration,
			booking.ClassName,
			nullableString(booking.Subject),
			booking.StudentCount,
			booking.Status,
			nullableString(booking.Notes),
			formatTime(booking.UpdatedAt),
			id,
		)
		if err != nil {
			return r.mapper.MapError(err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		if rowsAffected == 0 {
			return persistence.ErrNotFound
		}
		return nil
	})
}

// txBookingReader answers reads through the open write transaction.
type txBookingReader struct {
	ctx  context.Context
	tx   *sqlx.Tx
	repo *BookingRepository
}

func (t *txBookingReader) ActiveBookings(roomID, date string) ([]persistence.Booking, error) {
	return t.repo.activeBookings(t.ctx, t.tx, roomID, date)
}

func (t *txBookingReader) GetRoom(id string) (persistence.Room, error) {
	if id == "" {
		return persistence.Room{}, persistence.ErrNotFound
	}
	rooms := &RoomRepository{mapper: t.repo.mapper}
	return rooms.scanRoom(t.tx.QueryRowContext(t.ctx, `SELECT `+roomColumns+` FROM rooms WHERE id = ?`, id))
}

func (r *BookingRepository) activeBookings(ctx context.Context, tx *sqlx.Tx, roomID, date string) ([]persistence.Booking, error) {
	var rows []bookingRow
	if err := tx.SelectContext(ctx, &rows, activeSlotsQuery, roomID, date); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return toBookings(rows)
}

func (r *BookingRepository) runSlotCheck(ctx context.Context, tx *sqlx.Tx, roomID, date string, check persistence.SlotCheck) error {
	if check == nil {
		return nil
	}
	existing, err := r.activeBookings(ctx, tx, roomID, date)
	if err != nil {
		return err
	}
	return check(existing)
}

// GetBooking retrieves a booking with its room and owner display fields.
func (r *BookingRepository) GetBooking(ctx context.Context, id string) (persistence.Booking, error) {
	if id == "" {
		return persistence.Booking{}, persistence.ErrNotFound
	}
	var row bookingRow
	if err := r.helper.Get(ctx, &row, bookingSelect+` WHERE b.id = ?`, id); err != nil {
		return persistence.Booking{}, r.mapper.MapError(err)
	}
	return row.toBooking()
}

// ListBookings returns bookings matching filter, latest date and start first.
func (r *BookingRepository) ListBookings(ctx context.Context, filter persistence.BookingFilter) ([]persistence.Booking, error) {
	var clauses []string
	var args []interface{}
	if filter.UserID != "" {
		clauses = append(clauses, "b.user_id = ?")
		args = append(args, filter.UserID)
	}
	if filter.RoomID != "" {
		clauses = append(clauses, "b.room_id = ?")
		args = append(args, filter.RoomID)
	}
	if filter.Status != "" {
		clauses = append(clauses, "b.status = ?")
		args = append(args, filter.Status)
	}
	if filter.Date != "" {
		clauses = append(clauses, "b.date = ?")
		args = append(args, filter.Date)
	}

	query := bookingSelect
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY b.date DESC, b.start_time DESC, b.id ASC"

	var rows []bookingRow
	if err := r.helper.Select(ctx, &rows, query, args...); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return toBookings(rows)
}

// ListActiveBookings returns the non-cancelled bookings of a room on a date.
func (r *BookingRepository) ListActiveBookings(ctx context.Context, roomID, date string) ([]persistence.Booking, error) {
	var rows []bookingRow
	if err := r.helper.Select(ctx, &rows, activeSlotsQuery, roomID, date); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return toBookings(rows)
}

// DeleteBooking removes a booking whatever its status.
func (r *BookingRepository) DeleteBooking(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}
	result, err := r.helper.Exec(ctx, `DELETE FROM bookings WHERE id = ?`, id)
	if err != nil {
		return r.mapper.MapError(err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

func (row bookingRow) toBooking() (persistence.Booking, error) {
	booking := persistence.Booking{
		ID:           row.ID,
		UserID:       row.UserID,
		RoomID:       row.RoomID,
		Date:         row.Date,
		StartTime:    row.StartTime,
		EndTime:      row.EndTime,
		Duration:     row.Duration,
		ClassName:    row.ClassName,
		Subject:      stringPointer(row.Subject),
		StudentCount: row.StudentCount,
		Status:       row.Status,
		Notes:        stringPointer(row.Notes),
		RoomName:     row.RoomName.String,
		RoomCapacity: int(row.RoomCapacity.Int64),
		RoomLocation: row.RoomLocation.String,
		UserName:     row.UserName.String,
		UserEmail:    row.UserEmail.String,
	}

	var err error
	if booking.CreatedAt, err = parseTime("created_at", row.CreatedAt); err != nil {
		return persistence.Booking{}, err
	}
	if booking.UpdatedAt, err = parseTime("updated_at", row.UpdatedAt); err != nil {
		return persistence.Booking{}, err
	}
	return booking, nil
}

func toBookings(rows []bookingRow) ([]persistence.Booking, error) {
	bookings := make([]persistence.Booking, 0, len(rows))
	for _, row := range rows {
		booking, err := row.toBooking()
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, booking)
	}
	return bookings, nil
}
