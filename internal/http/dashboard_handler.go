package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/example/room-booking/internal/application"
)

type dashboardService interface {
	AdminStats(ctx context.Context, principal application.Principal) (application.AdminStats, error)
	InstructorStats(ctx context.Context, principal application.Principal) (application.InstructorStats, error)
}

type DashboardHandler struct {
	service   dashboardService
	responder responder
	logger    *slog.Logger
}

func NewDashboardHandler(service dashboardService, logger *slog.Logger) *DashboardHandler {
	base := defaultLogger(logger)
	return &DashboardHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	stats, err := h.service.AdminStats(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	handlerLogger(r.Context(), h.logger, "DashboardHandler", "Stats", "principal_id", principal.UserID).
		DebugContext(r.Context(), "admin stats served")

	weekly := make([]dailyCountDTO, 0, len(stats.WeeklyBookings))
	for _, day := range stats.WeeklyBookings {
		weekly = append(weekly, dailyCountDTO{Date: day.Date, Count: day.Count})
	}
	byStatus := stats.BookingsByStatus
	if byStatus == nil {
		byStatus = map[string]int{}
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, adminStatsResponse{
		TotalRooms:        stats.TotalRooms,
		TotalUsers:        stats.TotalUsers,
		TotalBookings:     stats.TotalBookings,
		TodaysBookings:    stats.TodaysBookings,
		PendingBookings:   stats.PendingBookings,
		AvailableRooms:    stats.AvailableRooms,
		ActiveInstructors: stats.ActiveInstructors,
		BookingsByStatus:  byStatus,
		RecentBookings:    toBookingDTOs(stats.RecentBookings),
		WeeklyBookings:    weekly,
	})
}

func (h *DashboardHandler) InstructorStats(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	stats, err := h.service.InstructorStats(r.Context(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}
	handlerLogger(r.Context(), h.logger, "DashboardHandler", "InstructorStats", "principal_id", principal.UserID).
		DebugContext(r.Context(), "instructor stats served")

	resp := instructorStatsResponse{
		TotalBookings:     stats.TotalBookings,
		UpcomingBookings:  stats.UpcomingBookings,
		ConfirmedBookings: stats.ConfirmedBookings,
		PendingBookings:   stats.PendingBookings,
		RecentBookings:    toBookingDTOs(stats.RecentBookings),
	}
	if stats.NextBooking != nil {
		next := toBookingDTO(*stats.NextBooking)
		resp.NextBooking = &next
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

type dailyCountDTO struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type adminStatsResponse struct {
	TotalRooms        int             `json:"total_rooms"`
	TotalUsers        int             `json:"total_users"`
	TotalBookings     int             `json:"total_bookings"`
	TodaysBookings    int             `json:"todays_bookings"`
	PendingBookings   int             `json:"pending_bookings"`
	AvailableRooms    int             `json:"available_rooms"`
	ActiveInstructors int             `json:"active_instructors"`
	BookingsByStatus  map[string]int  `json:"bookings_by_status"`
	RecentBookings    []bookingDTO    `json:"recent_bookings"`
	WeeklyBookings    []dailyCountDTO `json:"weekly_bookings"`
}

type instructorStatsResponse struct {
	TotalBookings     int          `json:"total_bookings"`
	UpcomingBookings  int          `json:"upcoming_bookings"`
	ConfirmedBookings int          `json:"confirmed_bookings"`
	PendingBookings   int          `json:"pending_bookings"`
	NextBooking       *bookingDTO  `json:"next_booking"`
	RecentBookings    []bookingDTO `json:"recent_bookings"`
}
