package testfixtures

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/example/room-booking/internal/adapters"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/sqlite"
	"github.com/example/room-booking/internal/persistence/sqlite/migration"
)

// SQLiteHarness provides repository access backed by a temporary SQLite storage
// instance for integration-style persistence tests.
type SQLiteHarness struct {
	Store *sqlite.Store

	Users     persistence.UserRepository
	Rooms     persistence.RoomRepository
	Bookings  persistence.BookingRepository
	Dashboard persistence.DashboardRepository

	cleanup func()
}

// Close releases resources associated with the harness.
func (h *SQLiteHarness) Close() {
	if h != nil && h.cleanup != nil {
		h.cleanup()
		h.cleanup = nil
	}
}

// NewSQLiteHarness constructs a SQLiteHarness using a temporary file that is
// migrated automatically. Callers may optionally invoke Close, but the helper
// will also register a cleanup callback with the provided testing.TB.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "booking.db")
	ctx := context.Background()

	store, err := sqlite.Open(ctx, migration.TempFileTestSQLiteConfig(path))
	if err != nil {
		tb.Fatalf("failed to open storage: %v", err)
	}

	if err := store.Migrate(ctx, nil); err != nil {
		_ = store.Close()
		tb.Fatalf("failed to migrate storage: %v", err)
	}

	harness := &SQLiteHarness{
		Store:     store,
		Users:     store.Users,
		Rooms:     store.Rooms,
		Bookings:  store.Bookings,
		Dashboard: store.Dashboard,
		cleanup: func() {
			_ = store.Close()
		},
	}

	tb.Cleanup(harness.Close)
	return harness
}

// Repositories returns application-level views over the harness repositories.
func (h *SQLiteHarness) Repositories() (*adapters.UserRepository, *adapters.RoomRepository, *adapters.BookingRepository, *adapters.DashboardRepository) {
	return adapters.NewUserRepository(h.Users),
		adapters.NewRoomRepository(h.Rooms),
		adapters.NewBookingRepository(h.Bookings),
		adapters.NewDashboardRepository(h.Dashboard)
}
