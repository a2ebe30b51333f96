package sqlite

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/example/room-booking/internal/persistence/sqlite/migration"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Store bundles the connection pool with every repository built on it.
type Store struct {
	pool *ConnectionPool

	Users     *UserRepository
	Rooms     *RoomRepository
	Bookings  *BookingRepository
	Dashboard *DashboardRepository
}

// Open connects to the database described by config and wires the repositories.
func Open(ctx context.Context, config migration.SQLiteConfig) (*Store, error) {
	pool, err := NewConnectionPool(ctx, config)
	if err != nil {
		return nil, err
	}
	return NewStore(pool), nil
}

// NewStore wires the repositories around an existing pool.
func NewStore(pool *ConnectionPool) *Store {
	return &Store{
		pool:      pool,
		Users:     NewUserRepository(pool),
		Rooms:     NewRoomRepository(pool),
		Bookings:  NewBookingRepository(pool),
		Dashboard: NewDashboardRepository(pool),
	}
}

// Pool exposes the underlying connection pool.
func (s *Store) Pool() *ConnectionPool {
	return s.pool
}

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.pool.Close()
}

// Migrate applies every embedded migration that has not been applied yet.
func (s *Store) Migrate(ctx context.Context, logger *slog.Logger) error {
	manager := migration.NewMigrationManager(
		migration.NewFileScanner(),
		migration.NewSQLiteExecutor(s.pool.DB()),
		migrationFiles,
		"migrations",
		logger,
	)
	if err := manager.RunMigrations(ctx); err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}
