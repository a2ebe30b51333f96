package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
)

// BookingRepository captures the persistence operations needed by the booking service.
// CreateBooking runs check and the insert as one atomic unit. UpdateBooking
// re-reads the row and applies mutate under the same write lock.
type BookingRepository interface {
	CreateBooking(ctx context.Context, booking Booking, check SlotCheck) (Booking, error)
	UpdateBooking(ctx context.Context, id string, mutate BookingMutation) (Booking, error)
	GetBooking(ctx context.Context, id string) (Booking, error)
	ListBookings(ctx context.Context, filter BookingFilter) ([]Booking, error)
	ListActiveBookings(ctx context.Context, roomID, date string) ([]Booking, error)
	DeleteBooking(ctx context.Context, id string) error
}

// RoomCatalog provides room lookups for the booking service.
type RoomCatalog interface {
	GetRoom(ctx context.Context, id string) (Room, error)
}

// BookingService orchestrates validation, conflict detection, lifecycle guards
// and persistence for bookings.
type BookingService struct {
	bookings    BookingRepository
	rooms       RoomCatalog
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewBookingService constructs a booking service with the provided dependencies.
func NewBookingService(bookings BookingRepository, rooms RoomCatalog, idGenerator func() string, now func() time.Time) *BookingService {
	return NewBookingServiceWithLogger(bookings, rooms, idGenerator, now, nil)
}

// NewBookingServiceWithLogger constructs a booking service with a specified logger.
func NewBookingServiceWithLogger(bookings BookingRepository, rooms RoomCatalog, idGenerator func() string, now func() time.Time, logger *slog.Logger) *BookingService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &BookingService{
		bookings:    bookings,
		rooms:       rooms,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *BookingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "BookingService", operation, attrs...)
}

func (s *BookingService) ready() error {
	if s == nil {
		return fmt.Errorf("BookingService is nil")
	}
	if s.bookings == nil || s.rooms == nil {
		return fmt.Errorf("booking service repositories not configured")
	}
	return nil
}

// CreateBooking validates the request, checks the slot and capacity, and
// persists a pending booking owned by the principal.
func (s *BookingService) CreateBooking(ctx context.Context, params CreateBookingParams) (booking Booking, err error) {
	if err = s.ready(); err != nil {
		return
	}

	input := params.Input
	logger := s.loggerWith(ctx, "CreateBooking",
		"principal_id", params.Principal.UserID,
		"room_id", input.RoomID,
		"date", input.Date,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("booking_id", booking.ID).InfoContext(ctx, "booking created")
	}()

	if !params.Principal.Authenticated() {
		err = ErrUnauthenticated
		return
	}

	date, interval, vErr := validateBookingInput(input)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if interval.Start >= interval.End {
		_, err = scheduler.NewInterval(interval.Start, interval.End)
		return
	}

	var room Room
	room, err = s.rooms.GetRoom(ctx, strings.TrimSpace(input.RoomID))
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}

	duration := interval.DurationHours()
	if input.Duration != nil {
		duration = *input.Duration
	}

	now := s.now()
	candidate := Booking{
		ID:           s.idGenerator(),
		UserID:       params.Principal.UserID,
		RoomID:       room.ID,
		Date:         date,
		StartTime:    interval.StartClock(),
		EndTime:      interval.EndClock(),
		Duration:     duration,
		ClassName:    strings.TrimSpace(input.ClassName),
		Subject:      normalizeOptionalString(input.Subject),
		StudentCount: input.StudentCount,
		Status:       scheduler.StatusPending,
		Notes:        normalizeOptionalString(input.Notes),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	check := func(existing []Booking) error {
		if err := checkSlot(existing, interval, ""); err != nil {
			return err
		}
		return checkCapacity(candidate.StudentCount, room)
	}

	booking, err = s.bookings.CreateBooking(ctx, candidate, check)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}
	return
}

// GetBooking returns a booking visible to the principal.
func (s *BookingService) GetBooking(ctx context.Context, principal Principal, bookingID string) (booking Booking, err error) {
	if err = s.ready(); err != nil {
		return
	}
	if !principal.Authenticated() {
		err = ErrUnauthenticated
		return
	}

	booking, err = s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		err = mapBookingRepoError(err)
		s.loggerWith(ctx, "GetBooking", "principal_id", principal.UserID, "booking_id", bookingID).
			ErrorContext(ctx, "failed to get booking", "error", err, "error_kind", ErrorKind(err))
		return Booking{}, err
	}
	if !scheduler.CanManage(principal.Actor(), booking.UserID) {
		return Booking{}, ErrForbidden
	}
	return booking, nil
}

// ListBookings lists bookings. Non-admin principals only ever see their own.
func (s *BookingService) ListBookings(ctx context.Context, params ListBookingsParams) (bookings []Booking, err error) {
	if err = s.ready(); err != nil {
		return
	}

	filter := params.Filter
	if !params.Principal.IsAdmin() {
		filter.UserID = params.Principal.UserID
	}

	logger := s.loggerWith(ctx, "ListBookings",
		"principal_id", params.Principal.UserID,
		"filter_user_id", filter.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list bookings", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(bookings)).InfoContext(ctx, "bookings listed")
	}()

	if !params.Principal.Authenticated() {
		err = ErrUnauthenticated
		return
	}

	filter, err = normalizeBookingFilter(filter)
	if err != nil {
		return
	}

	bookings, err = s.bookings.ListBookings(ctx, filter)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}
	return
}

// ListMyBookings lists the principal's own bookings, optionally filtered by status and date.
func (s *BookingService) ListMyBookings(ctx context.Context, principal Principal, filter BookingFilter) ([]Booking, error) {
	filter.UserID = principal.UserID
	return s.ListBookings(ctx, ListBookingsParams{Principal: principal, Filter: filter})
}

// UpdateBooking applies a partial update. Changing room, date or time re-runs
// the conflict check excluding the booking itself and moves it to modified.
// Every rule is evaluated against the row read inside the write transaction.
func (s *BookingService) UpdateBooking(ctx context.Context, params UpdateBookingParams) (booking Booking, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdateBooking",
		"principal_id", params.Principal.UserID,
		"booking_id", params.BookingID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update booking", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("status", booking.Status).InfoContext(ctx, "booking updated")
	}()

	if !params.Principal.Authenticated() {
		err = ErrUnauthenticated
		return
	}

	actor := params.Principal.Actor()
	booking, err = s.bookings.UpdateBooking(ctx, params.BookingID, func(current Booking, tx BookingTx) (Booking, error) {
		return s.planUpdate(current, params.Update, actor, tx)
	})
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}
	return
}

// planUpdate derives the row to store for a partial update of current.
func (s *BookingService) planUpdate(current Booking, update BookingUpdate, actor scheduler.Actor, tx BookingTx) (Booking, error) {
	if !scheduler.CanManage(actor, current.UserID) {
		return Booking{}, ErrForbidden
	}
	if update.IsEmpty() {
		return Booking{}, ErrNoFieldsProvided
	}

	merged, vErr := applyBookingUpdate(current, update)
	if vErr.HasErrors() {
		return Booking{}, vErr
	}

	var interval scheduler.Interval
	if update.TouchesSlot() {
		var err error
		if interval, err = merged.Interval(); err != nil {
			return Booking{}, err
		}
		merged.StartTime = interval.StartClock()
		merged.EndTime = interval.EndClock()
		if update.Duration == nil {
			merged.Duration = interval.DurationHours()
		}
	}

	slotChanged := merged.RoomID != current.RoomID || merged.Date != current.Date ||
		merged.StartTime != current.StartTime || merged.EndTime != current.EndTime
	if slotChanged && current.Status != scheduler.StatusModified {
		if err := scheduler.CheckTransition(current.Status, scheduler.StatusModified, actor, current.UserID); err != nil {
			return Booking{}, mapTransitionError(err)
		}
		merged.Status = scheduler.StatusModified
	}

	if update.TouchesSlot() && merged.Status.Active() {
		active, err := tx.ActiveBookings(merged.RoomID, merged.Date)
		if err != nil {
			return Booking{}, err
		}
		if err := checkSlot(active, interval, current.ID); err != nil {
			return Booking{}, err
		}
	}

	if update.StudentCount != nil || merged.RoomID != current.RoomID {
		room, err := tx.GetRoom(merged.RoomID)
		if err != nil {
			return Booking{}, err
		}
		if err := checkCapacity(merged.StudentCount, room); err != nil {
			return Booking{}, err
		}
	}

	merged.UpdatedAt = s.now()
	return merged, nil
}

// UpdateBookingStatus moves a booking through its lifecycle. The guard runs
// against the status stored at write time, and confirming re-checks the student
// count against the room capacity.
func (s *BookingService) UpdateBookingStatus(ctx context.Context, params UpdateBookingStatusParams) (booking Booking, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "UpdateBookingStatus",
		"principal_id", params.Principal.UserID,
		"booking_id", params.BookingID,
		"requested_status", params.Status,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update booking status", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("status", booking.Status).InfoContext(ctx, "booking status updated")
	}()

	if !params.Principal.Authenticated() {
		err = ErrUnauthenticated
		return
	}

	actor := params.Principal.Actor()
	booking, err = s.bookings.UpdateBooking(ctx, params.BookingID, func(current Booking, tx BookingTx) (Booking, error) {
		return s.planStatusChange(current, params.Status, actor, tx)
	})
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}
	return
}

func (s *BookingService) planStatusChange(current Booking, requested string, actor scheduler.Actor, tx BookingTx) (Booking, error) {
	target, err := scheduler.ParseStatus(requested)
	if err != nil {
		return Booking{}, err
	}
	if err := scheduler.CheckTransition(current.Status, target, actor, current.UserID); err != nil {
		return Booking{}, mapTransitionError(err)
	}

	// A booking re-entering the active set must still own its slot.
	if target.Active() && !current.Status.Active() {
		interval, err := current.Interval()
		if err != nil {
			return Booking{}, err
		}
		active, err := tx.ActiveBookings(current.RoomID, current.Date)
		if err != nil {
			return Booking{}, err
		}
		if err := checkSlot(active, interval, current.ID); err != nil {
			return Booking{}, err
		}
	}

	if target == scheduler.StatusConfirmed {
		room, err := tx.GetRoom(current.RoomID)
		if err != nil {
			return Booking{}, err
		}
		if err := checkCapacity(current.StudentCount, room); err != nil {
			return Booking{}, err
		}
	}

	next := current
	next.Status = target
	next.UpdatedAt = s.now()
	return next, nil
}

// DeleteBooking hard-deletes a booking whatever its status.
func (s *BookingService) DeleteBooking(ctx context.Context, principal Principal, bookingID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if !principal.Authenticated() {
		return ErrUnauthenticated
	}

	logger := s.loggerWith(ctx, "DeleteBooking",
		"principal_id", principal.UserID,
		"booking_id", bookingID,
	)

	existing, err := s.bookings.GetBooking(ctx, bookingID)
	if err != nil {
		err = mapBookingRepoError(err)
		logger.ErrorContext(ctx, "failed to delete booking", "error", err, "error_kind", ErrorKind(err))
		return err
	}
	if !scheduler.CanManage(principal.Actor(), existing.UserID) {
		logger.ErrorContext(ctx, "failed to delete booking", "error", ErrForbidden, "error_kind", ErrorKind(ErrForbidden))
		return ErrForbidden
	}

	if err := s.bookings.DeleteBooking(ctx, bookingID); err != nil {
		err = mapBookingRepoError(err)
		logger.ErrorContext(ctx, "failed to delete booking", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "booking deleted")
	return nil
}

// CheckAvailability reports whether a room is free for a slot, optionally
// ignoring one booking, along with the bookings that block it.
func (s *BookingService) CheckAvailability(ctx context.Context, params AvailabilityParams) (availability Availability, err error) {
	if err = s.ready(); err != nil {
		return
	}

	logger := s.loggerWith(ctx, "CheckAvailability",
		"principal_id", params.Principal.UserID,
		"room_id", params.RoomID,
		"date", params.Date,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to check availability", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("available", availability.Available).DebugContext(ctx, "availability checked")
	}()

	if !params.Principal.Authenticated() {
		err = ErrUnauthenticated
		return
	}

	vErr := &ValidationError{}
	date, dateErr := scheduler.ParseDate(params.Date)
	if dateErr != nil {
		vErr.add("date", "date must be YYYY-MM-DD")
	}
	interval, intervalErr := parseSlotTimes(params.StartTime, params.EndTime, vErr)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if intervalErr != nil {
		err = intervalErr
		return
	}

	var room Room
	room, err = s.rooms.GetRoom(ctx, params.RoomID)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}

	var active []Booking
	active, err = s.bookings.ListActiveBookings(ctx, room.ID, date)
	if err != nil {
		err = mapBookingRepoError(err)
		return
	}

	var conflicts []Booking
	conflicts, err = findConflictingBookings(active, interval, strings.TrimSpace(params.ExcludeBookingID))
	if err != nil {
		return
	}

	availability = Availability{Available: len(conflicts) == 0, Conflicts: conflicts}
	return
}

// findConflictingBookings runs the conflict detector over bookings and maps
// the matching slots back to their bookings.
func findConflictingBookings(bookings []Booking, candidate scheduler.Interval, excludeID string) ([]Booking, error) {
	slots := make([]scheduler.Slot, 0, len(bookings))
	byID := make(map[string]Booking, len(bookings))
	for _, b := range bookings {
		interval, err := b.Interval()
		if err != nil {
			return nil, fmt.Errorf("booking %s has an unreadable slot: %w", b.ID, err)
		}
		slots = append(slots, scheduler.Slot{BookingID: b.ID, Interval: interval, Status: b.Status})
		byID[b.ID] = b
	}

	matches := scheduler.FindConflicts(slots, candidate, excludeID)
	conflicts := make([]Booking, 0, len(matches))
	for _, slot := range matches {
		conflicts = append(conflicts, byID[slot.BookingID])
	}
	return conflicts, nil
}

func checkSlot(existing []Booking, candidate scheduler.Interval, excludeID string) error {
	conflicts, err := findConflictingBookings(existing, candidate, excludeID)
	if err != nil {
		return err
	}
	if len(conflicts) > 0 {
		return &SlotConflictError{Conflicts: conflicts}
	}
	return nil
}

func checkCapacity(studentCount int, room Room) error {
	if studentCount > room.Capacity {
		return fmt.Errorf("%w: %d students for %d seats in %s", ErrCapacityExceeded, studentCount, room.Capacity, room.Name)
	}
	return nil
}

func validateBookingInput(input BookingInput) (string, scheduler.Interval, *ValidationError) {
	vErr := &ValidationError{}

	if strings.TrimSpace(input.RoomID) == "" {
		vErr.add("room_id", "room is required")
	}
	if strings.TrimSpace(input.ClassName) == "" {
		vErr.add("class_name", "class name is required")
	}
	if input.StudentCount < 0 {
		vErr.add("student_count", "student count must not be negative")
	}
	if input.Duration != nil && *input.Duration <= 0 {
		vErr.add("duration", "duration must be positive")
	}

	var date string
	if strings.TrimSpace(input.Date) == "" {
		vErr.add("date", "date is required")
	} else if parsed, err := scheduler.ParseDate(input.Date); err != nil {
		vErr.add("date", "date must be YYYY-MM-DD")
	} else {
		date = parsed
	}

	var interval scheduler.Interval
	start, startOK := parseRequiredClock(vErr, "start_time", input.StartTime)
	end, endOK := parseRequiredClock(vErr, "end_time", input.EndTime)
	if startOK && endOK {
		interval = scheduler.Interval{Start: start, End: end}
	}
	return date, interval, vErr
}

// parseSlotTimes validates both clock values, recording format problems on
// vErr and returning an ErrInvalidInterval error for an empty or inverted range.
func parseSlotTimes(startValue, endValue string, vErr *ValidationError) (scheduler.Interval, error) {
	start, startOK := parseRequiredClock(vErr, "start_time", startValue)
	end, endOK := parseRequiredClock(vErr, "end_time", endValue)
	if !startOK || !endOK {
		return scheduler.Interval{}, nil
	}
	return scheduler.NewInterval(start, end)
}

func parseRequiredClock(vErr *ValidationError, field, value string) (int, bool) {
	if strings.TrimSpace(value) == "" {
		vErr.add(field, strings.ReplaceAll(field, "_", " ")+" is required")
		return 0, false
	}
	minute, err := scheduler.ParseClock(value)
	if err != nil {
		vErr.add(field, strings.ReplaceAll(field, "_", " ")+" must be HH:MM")
		return 0, false
	}
	return minute, true
}

func applyBookingUpdate(existing Booking, update BookingUpdate) (Booking, *ValidationError) {
	merged := existing
	vErr := &ValidationError{}

	if update.RoomID != nil {
		if roomID := strings.TrimSpace(*update.RoomID); roomID == "" {
			vErr.add("room_id", "room must not be empty")
		} else {
			merged.RoomID = roomID
		}
	}
	if update.Date != nil {
		if date, err := scheduler.ParseDate(*update.Date); err != nil {
			vErr.add("date", "date must be YYYY-MM-DD")
		} else {
			merged.Date = date
		}
	}
	if update.StartTime != nil {
		if _, err := scheduler.ParseClock(*update.StartTime); err != nil {
			vErr.add("start_time", "start time must be HH:MM")
		} else {
			merged.StartTime = strings.TrimSpace(*update.StartTime)
		}
	}
	if update.EndTime != nil {
		if _, err := scheduler.ParseClock(*update.EndTime); err != nil {
			vErr.add("end_time", "end time must be HH:MM")
		} else {
			merged.EndTime = strings.TrimSpace(*update.EndTime)
		}
	}
	if update.Duration != nil {
		if *update.Duration <= 0 {
			vErr.add("duration", "duration must be positive")
		} else {
			merged.Duration = *update.Duration
		}
	}
	if update.ClassName != nil {
		if name := strings.TrimSpace(*update.ClassName); name == "" {
			vErr.add("class_name", "class name must not be empty")
		} else {
			merged.ClassName = name
		}
	}
	if update.Subject != nil {
		merged.Subject = normalizeOptionalString(update.Subject)
	}
	if update.Notes != nil {
		merged.Notes = normalizeOptionalString(update.Notes)
	}
	if update.StudentCount != nil {
		if *update.StudentCount < 0 {
			vErr.add("student_count", "student count must not be negative")
		} else {
			merged.StudentCount = *update.StudentCount
		}
	}
	return merged, vErr
}

func normalizeBookingFilter(filter BookingFilter) (BookingFilter, error) {
	filter.UserID = strings.TrimSpace(filter.UserID)
	filter.RoomID = strings.TrimSpace(filter.RoomID)
	if strings.TrimSpace(filter.Status) != "" {
		status, err := scheduler.ParseStatus(strings.TrimSpace(filter.Status))
		if err != nil {
			return BookingFilter{}, err
		}
		filter.Status = string(status)
	} else {
		filter.Status = ""
	}
	if strings.TrimSpace(filter.Date) != "" {
		date, err := scheduler.ParseDate(filter.Date)
		if err != nil {
			vErr := &ValidationError{}
			vErr.add("date", "date must be YYYY-MM-DD")
			return BookingFilter{}, vErr
		}
		filter.Date = date
	} else {
		filter.Date = ""
	}
	return filter, nil
}

func mapTransitionError(err error) error {
	if errors.Is(err, scheduler.ErrTransitionForbidden) {
		return fmt.Errorf("%w: %w", ErrForbidden, err)
	}
	return err
}

func mapBookingRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return ErrNotFound
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("booking", "booking violates a storage constraint")
		return vErr
	}
	return err
}
