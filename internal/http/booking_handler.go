package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/metrics"
)

type bookingService interface {
	CreateBooking(ctx context.Context, params application.CreateBookingParams) (application.Booking, error)
	GetBooking(ctx context.Context, principal application.Principal, bookingID string) (application.Booking, error)
	ListBookings(ctx context.Context, params application.ListBookingsParams) ([]application.Booking, error)
	ListMyBookings(ctx context.Context, principal application.Principal, filter application.BookingFilter) ([]application.Booking, error)
	UpdateBooking(ctx context.Context, params application.UpdateBookingParams) (application.Booking, error)
	UpdateBookingStatus(ctx context.Context, params application.UpdateBookingStatusParams) (application.Booking, error)
	DeleteBooking(ctx context.Context, principal application.Principal, bookingID string) error
	CheckAvailability(ctx context.Context, params application.AvailabilityParams) (application.Availability, error)
}

type BookingHandler struct {
	service   bookingService
	responder responder
	logger    *slog.Logger
}

func NewBookingHandler(service bookingService, logger *slog.Logger) *BookingHandler {
	base := defaultLogger(logger)
	return &BookingHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *BookingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "BookingHandler", operation, attrs...)
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode booking request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID, "room_id", req.RoomID)

	booking, err := h.service.CreateBooking(r.Context(), application.CreateBookingParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		recordRejection(err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	metrics.RecordBookingCreated()
	logger.With("booking_id", booking.ID).InfoContext(r.Context(), "booking created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, bookingResponse{Booking: toBookingDTO(booking)})
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID, ok := pathID(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookingID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	booking, err := h.service.GetBooking(r.Context(), principal, bookingID)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(booking)})
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	filter := bookingFilterFromQuery(r)
	logger := h.log(r.Context(), "List", "principal_id", principal.UserID)

	bookings, err := h.service.ListBookings(r.Context(), application.ListBookingsParams{
		Principal: principal,
		Filter:    filter,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(bookings)).InfoContext(r.Context(), "bookings listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listBookingsResponse{Bookings: toBookingDTOs(bookings)})
}

func (h *BookingHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "ListMine", "principal_id", principal.UserID)

	bookings, err := h.service.ListMyBookings(r.Context(), principal, bookingFilterFromQuery(r))
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("result_count", len(bookings)).InfoContext(r.Context(), "own bookings listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listBookingsResponse{Bookings: toBookingDTOs(bookings)})
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID, ok := pathID(r)
	if !ok {
		h.log(r.Context(), "Update", "error_kind", "bad_request").WarnContext(r.Context(), "missing booking id for update")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookingID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req updateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "principal_id", principal.UserID, "booking_id", bookingID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode booking update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "booking_id", bookingID)

	booking, err := h.service.UpdateBooking(r.Context(), application.UpdateBookingParams{
		Principal: principal,
		BookingID: bookingID,
		Update:    req.toUpdate(),
	})
	if err != nil {
		recordRejection(err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("status", string(booking.Status)).InfoContext(r.Context(), "booking updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(booking)})
}

func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID, ok := pathID(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookingID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "UpdateStatus", "principal_id", principal.UserID, "booking_id", bookingID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode status request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "UpdateStatus", "principal_id", principal.UserID, "booking_id", bookingID, "target_status", req.Status)

	booking, err := h.service.UpdateBookingStatus(r.Context(), application.UpdateBookingStatusParams{
		Principal: principal,
		BookingID: bookingID,
		Status:    req.Status,
	})
	if err != nil {
		recordRejection(err)
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	metrics.RecordStatusTransition(string(booking.Status))
	logger.InfoContext(r.Context(), "booking status changed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, bookingResponse{Booking: toBookingDTO(booking)})
}

func (h *BookingHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	bookingID, ok := pathID(r)
	if !ok {
		h.log(r.Context(), "Delete", "error_kind", "bad_request").WarnContext(r.Context(), "missing booking id for delete")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidBookingID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "booking_id", bookingID)
	if err := h.service.DeleteBooking(r.Context(), principal, bookingID); err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "booking deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, messageResponse{Message: "予約を削除しました。"})
}

// Availability answers GET /api/rooms/{id}/availability.
func (h *BookingHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	roomID, ok := pathID(r)
	if !ok {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidRoomID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	params := application.AvailabilityParams{
		Principal:        principal,
		RoomID:           roomID,
		Date:             queryParam(r, "date"),
		StartTime:        queryParam(r, "startTime", "start_time"),
		EndTime:          queryParam(r, "endTime", "end_time"),
		ExcludeBookingID: queryParam(r, "excludeBookingId", "exclude_booking_id"),
	}
	logger := h.log(r.Context(), "Availability", "principal_id", principal.UserID, "room_id", roomID, "date", params.Date)

	availability, err := h.service.CheckAvailability(r.Context(), params)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	logger.With("available", availability.Available, "conflict_count", len(availability.Conflicts)).DebugContext(r.Context(), "availability checked")

	h.responder.writeJSON(r.Context(), w, http.StatusOK, availabilityResponse{
		Available: availability.Available,
		Conflicts: toBookingDTOs(availability.Conflicts),
	})
}

func recordRejection(err error) {
	switch {
	case errors.Is(err, application.ErrSlotUnavailable):
		metrics.RecordBookingRejected("slot")
	case errors.Is(err, application.ErrCapacityExceeded):
		metrics.RecordBookingRejected("capacity")
	}
}

func bookingFilterFromQuery(r *http.Request) application.BookingFilter {
	return application.BookingFilter{
		UserID: queryParam(r, "userId", "user_id"),
		RoomID: queryParam(r, "roomId", "room_id"),
		Status: queryParam(r, "status"),
		Date:   queryParam(r, "date"),
	}
}

// queryParam returns the first non-empty value among the given keys.
func queryParam(r *http.Request, keys ...string) string {
	query := r.URL.Query()
	for _, key := range keys {
		if v := strings.TrimSpace(query.Get(key)); v != "" {
			return v
		}
	}
	return ""
}

func pathID(r *http.Request) (string, bool) {
	id := strings.TrimSpace(r.PathValue("id"))
	return id, id != ""
}

type createBookingRequest struct {
	RoomID       string   `json:"room_id"`
	Date         string   `json:"date"`
	StartTime    string   `json:"start_time"`
	EndTime      string   `json:"end_time"`
	Duration     *float64 `json:"duration"`
	ClassName    string   `json:"class_name"`
	Subject      *string  `json:"subject"`
	StudentCount int      `json:"student_count"`
	Notes        *string  `json:"notes"`
}

func (r createBookingRequest) toInput() application.BookingInput {
	return application.BookingInput{
		RoomID:       r.RoomID,
		Date:         r.Date,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
		Duration:     r.Duration,
		ClassName:    r.ClassName,
		Subject:      r.Subject,
		StudentCount: r.StudentCount,
		Notes:        r.Notes,
	}
}

// updateBookingRequest uses pointers so absent keys are distinguishable from
// zero values.
type updateBookingRequest struct {
	RoomID       *string  `json:"room_id"`
	Date         *string  `json:"date"`
	StartTime    *string  `json:"start_time"`
	EndTime      *string  `json:"end_time"`
	Duration     *float64 `json:"duration"`
	ClassName    *string  `json:"class_name"`
	Subject      *string  `json:"subject"`
	StudentCount *int     `json:"student_count"`
	Notes        *string  `json:"notes"`
}

func (r updateBookingRequest) toUpdate() application.BookingUpdate {
	return application.BookingUpdate{
		RoomID:       r.RoomID,
		Date:         r.Date,
		StartTime:    r.StartTime,
		EndTime:      r.EndTime,
		Duration:     r.Duration,
		ClassName:    r.ClassName,
		Subject:      r.Subject,
		StudentCount: r.StudentCount,
		Notes:        r.Notes,
	}
}

type statusRequest struct {
	Status string `json:"status"`
}

type bookingResponse struct {
	Booking bookingDTO `json:"booking"`
}

type listBookingsResponse struct {
	Bookings []bookingDTO `json:"bookings"`
}

type availabilityResponse struct {
	Available bool         `json:"available"`
	Conflicts []bookingDTO `json:"conflicts"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type bookingDTO struct {
	ID           string  `json:"id"`
	UserID       string  `json:"user_id"`
	RoomID       string  `json:"room_id"`
	Date         string  `json:"date"`
	StartTime    string  `json:"start_time"`
	EndTime      string  `json:"end_time"`
	Duration     float64 `json:"duration"`
	ClassName    string  `json:"class_name"`
	Subject      *string `json:"subject"`
	StudentCount int     `json:"student_count"`
	Status       string  `json:"status"`
	Notes        *string `json:"notes"`
	RoomName     string  `json:"room_name,omitempty"`
	RoomCapacity int     `json:"room_capacity,omitempty"`
	RoomLocation string  `json:"room_location,omitempty"`
	UserName     string  `json:"user_name,omitempty"`
	UserEmail    string  `json:"user_email,omitempty"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

func toBookingDTO(booking application.Booking) bookingDTO {
	return bookingDTO{
		ID:           booking.ID,
		UserID:       booking.UserID,
		RoomID:       booking.RoomID,
		Date:         booking.Date,
		StartTime:    booking.StartTime,
		EndTime:      booking.EndTime,
		Duration:     booking.Duration,
		ClassName:    booking.ClassName,
		Subject:      booking.Subject,
		StudentCount: booking.StudentCount,
		Status:       string(booking.Status),
		Notes:        booking.Notes,
		RoomName:     booking.Room.Name,
		RoomCapacity: booking.Room.Capacity,
		RoomLocation: booking.Room.Location,
		UserName:     booking.Owner.Name,
		UserEmail:    booking.Owner.Email,
		CreatedAt:    formatTimestamp(booking.CreatedAt),
		UpdatedAt:    formatTimestamp(booking.UpdatedAt),
	}
}

// toBookingDTOs never returns nil so empty lists encode as [].
func toBookingDTOs(bookings []application.Booking) []bookingDTO {
	out := make([]bookingDTO, 0, len(bookings))
	for _, booking := range bookings {
		out = append(out, toBookingDTO(booking))
	}
	return out
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
