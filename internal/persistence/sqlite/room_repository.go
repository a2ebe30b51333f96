package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/example/room-booking/internal/persistence"
	"github.com/jmoiron/sqlx"
)

// RoomRepository implements persistence.RoomRepository using SQLite.
type RoomRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
}

// NewRoomRepository creates a new SQLite room repository.
func NewRoomRepository(pool *ConnectionPool) *RoomRepository {
	return &RoomRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
	}
}

const roomColumns = `id, name, capacity, location, status, equipment, created_at, updated_at`

// CreateRoom inserts a new room.
func (r *RoomRepository) CreateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}

	equipment, err := encodeEquipment(room.Equipment)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO rooms (id, name, capacity, location, status, equipment, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.helper.Exec(ctx, query,
		room.ID,
		room.Name,
		room.Capacity,
		room.Location,
		roomStatusOrDefault(room.Status),
		equipment,
		formatTime(room.CreatedAt),
		formatTime(room.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// UpdateRoom overwrites the mutable columns of an existing room.
func (r *RoomRepository) UpdateRoom(ctx context.Context, room persistence.Room) error {
	if room.ID == "" || room.Capacity <= 0 {
		return persistence.ErrConstraintViolation
	}

	equipment, err := encodeEquipment(room.Equipment)
	if err != nil {
		return err
	}

	query := `
		UPDATE rooms
		SET name = ?, capacity = ?, location = ?, status = ?, equipment = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.helper.Exec(ctx, query,
		room.Name,
		room.Capacity,
		room.Location,
		roomStatusOrDefault(room.Status),
		equipment,
		formatTime(room.UpdatedAt),
		room.ID,
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
}

// GetRoom retrieves a room by ID.
func (r *RoomRepository) GetRoom(ctx context.Context, id string) (persistence.Room, error) {
	if id == "" {
		return persistence.Room{}, persistence.ErrNotFound
	}
	query := `SELECT ` + roomColumns + ` FROM rooms WHERE id = ?`
	return r.scanRoom(r.helper.QueryRow(ctx, query, id))
}

// ListRooms returns all rooms ordered by name then ID.
func (r *RoomRepository) ListRooms(ctx context.Context) ([]persistence.Room, error) {
	query := `SELECT ` + roomColumns + ` FROM rooms ORDER BY name ASC, id ASC`

	rows, err := r.helper.Query(ctx, query)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	var rooms []persistence.Room
	for rows.Next() {
		room, err := r.scanRoom(rows)
		if err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return rooms, nil
}

// CountActiveBookings counts the non-cancelled bookings that reference the room.
func (r *RoomRepository) CountActiveBookings(ctx context.Context, roomID string) (int, error) {
	var count int
	err := r.helper.QueryRow(ctx,
		`SELECT COUNT(*) FROM bookings WHERE room_id = ? AND status != 'cancelled'`, roomID,
	).Scan(&count)
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	return count, nil
}

// DeleteRoom removes a room together with its cancelled bookings. Rooms still
// referenced by active bookings fail with ErrForeignKeyViolation.
func (r *RoomRepository) DeleteRoom(ctx context.Context, id string) error {
	if id == "" {
		return persistence.ErrNotFound
	}

	return r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM bookings WHERE room_id = ? AND status = 'cancelled'`, id,
		); err != nil {
			return r.mapper.MapError(err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM rooms WHERE id = ?`, id)
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

func (r *RoomRepository) scanRoom(row rowScanner) (persistence.Room, error) {
	var room persistence.Room
	var location sql.NullString
	var equipment, createdAt, updatedAt string

	if err := row.Scan(
		&room.ID,
		&room.Name,
		&room.Capacity,
		&location,
		&room.Status,
		&equipment,
		&createdAt,
		&updatedAt,
	); err != nil {
		return persistence.Room{}, r.mapper.MapError(err)
	}

	if location.Valid {
		room.Location = location.String
	}
	if err := json.Unmarshal([]byte(equipment), &room.Equipment); err != nil {
		return persistence.Room{}, fmt.Errorf("failed to decode equipment for room %s: %w", room.ID, err)
	}

	var err error
	if room.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return persistence.Room{}, err
	}
	if room.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return persistence.Room{}, err
	}
	return room, nil
}

func encodeEquipment(equipment []string) (string, error) {
	if equipment == nil {
		equipment = []string{}
	}
	encoded, err := json.Marshal(equipment)
	if err != nil {
		return "", fmt.Errorf("failed to encode equipment: %w", err)
	}
	return string(encoded), nil
}

func roomStatusOrDefault(status string) string {
	if status == "" {
		return "available"
	}
	return status
}
