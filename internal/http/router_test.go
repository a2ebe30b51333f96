package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-booking/internal/scheduler"
	"github.com/example/room-booking/internal/testfixtures"
)

const adminPassword = "admin-pass"

type routerEnv struct {
	handler    http.Handler
	adminToken string
	admin      testfixtures.UserFixture
}

func newRouterEnv(t *testing.T, limiter *RateLimiter) routerEnv {
	t.Helper()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	harness := testfixtures.NewSQLiteHarness(t)

	admin := testfixtures.NewUserFixture(
		testfixtures.WithUserRole(scheduler.RoleAdmin),
		testfixtures.WithUserPasswordHash("plain:"+adminPassword),
	)
	require.NoError(t, harness.Users.CreateUser(ctx, admin.Persistence()))

	users, rooms, bookings, dashboard := harness.Repositories()
	factory := testfixtures.NewServiceFactory()

	userSvc := factory.NewUserService(testfixtures.UserServiceDeps{Users: users, Logger: logger})
	authSvc, err := factory.NewAuthService(testfixtures.AuthServiceDeps{Credentials: users, Registrar: userSvc, Logger: logger})
	require.NoError(t, err)

	handler := NewRouter(RouterConfig{
		Auth:        NewAuthHandler(authSvc, logger),
		Bookings:    NewBookingHandler(factory.NewBookingService(testfixtures.BookingServiceDeps{Bookings: bookings, Rooms: rooms, Logger: logger}), logger),
		Rooms:       NewRoomHandler(factory.NewRoomService(testfixtures.RoomServiceDeps{Rooms: rooms, Logger: logger}), logger),
		Users:       NewUserHandler(userSvc, logger),
		Dashboard:   NewDashboardHandler(factory.NewDashboardService(testfixtures.DashboardServiceDeps{Stats: dashboard, Logger: logger}), logger),
		Health:      NewHealthHandler(harness.Store, logger),
		Validator:   authSvc,
		AuthLimiter: limiter,
		Logger:      logger,
		Middleware:  []func(http.Handler) http.Handler{RequestLogger(logger)},
	})

	env := routerEnv{handler: handler, admin: admin}
	env.adminToken = env.login(t, admin.Email, adminPassword)
	return env
}

func (e routerEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch v := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(v)
	default:
		buf, err := json.Marshal(v)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "198.51.100.7:40000"
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e routerEnv) login(t *testing.T, email, password string) string {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp authResponse
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (e routerEnv) register(t *testing.T, name, email string) (string, userDTO) {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name":     name,
		"email":    email,
		"password": "secret-pass",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp authResponse
	decode(t, rec, &resp)
	return resp.Token, resp.User
}

func (e routerEnv) createRoom(t *testing.T, name string, capacity int) roomDTO {
	t.Helper()

	rec := e.do(t, http.MethodPost, "/api/rooms", e.adminToken, map[string]any{
		"name":      name,
		"capacity":  capacity,
		"location":  "Building A",
		"equipment": []string{"projector"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp roomResponse
	decode(t, rec, &resp)
	return resp.Room
}

func bookingBody(roomID, start, end string, students int) map[string]any {
	return map[string]any{
		"room_id":       roomID,
		"date":          "2024-01-08",
		"start_time":    start,
		"end_time":      end,
		"class_name":    "Algebra",
		"student_count": students,
	}
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
}

func TestRouterHealthAndMetrics(t *testing.T) {
	env := newRouterEnv(t, nil)

	rec := env.do(t, http.MethodGet, "/api/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health healthResponse
	decode(t, rec, &health)
	assert.Equal(t, "ok", health.Status)
	_, err := time.Parse(time.RFC3339, health.Timestamp)
	assert.NoError(t, err)

	rec = env.do(t, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `room_booking_http_requests_total{method="GET",path="/api/health",status="200"}`)
}

func TestRouterUnknownRoutes(t *testing.T) {
	env := newRouterEnv(t, nil)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/nowhere", env.adminToken, nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, env.do(t, http.MethodDelete, "/api/health", "", nil).Code)
}

func TestRouterRequiresBearerToken(t *testing.T) {
	env := newRouterEnv(t, nil)

	paths := []string{"/api/bookings", "/api/bookings/my", "/api/rooms", "/api/users", "/api/auth/profile", "/api/dashboard/stats"}
	for _, path := range paths {
		rec := env.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec := env.do(t, http.MethodGet, "/api/bookings", "not-a-jwt", nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var body errorResponse
	decode(t, rec, &body)
	assert.Equal(t, "AUTH_TOKEN_INVALID", body.ErrorCode)
}

func TestRouterAuthFlow(t *testing.T) {
	env := newRouterEnv(t, nil)

	token, user := env.register(t, "Hanako Sato", "Hanako@School.example")
	assert.Equal(t, "instructor", user.Role)
	assert.Equal(t, "hanako@school.example", user.Email)
	assert.NotEmpty(t, token)

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Duplicate", "email": "hanako@school.example", "password": "another-pass",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	var dup errorResponse
	decode(t, rec, &dup)
	assert.Equal(t, "USER_ALREADY_EXISTS", dup.ErrorCode)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": "hanako@school.example", "password": "wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	var bad errorResponse
	decode(t, rec, &bad)
	assert.Equal(t, "AUTH_INVALID_CREDENTIALS", bad.ErrorCode)

	loginToken := env.login(t, "hanako@school.example", "secret-pass")

	rec = env.do(t, http.MethodGet, "/api/auth/profile", loginToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var profile userResponse
	decode(t, rec, &profile)
	assert.Equal(t, user.ID, profile.User.ID)
	assert.Equal(t, "Hanako Sato", profile.User.Name)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", "{not json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRouterBookingLifecycle(t *testing.T) {
	env := newRouterEnv(t, nil)
	room := env.createRoom(t, "Room 101", 30)
	ownerToken, owner := env.register(t, "Owner", "owner@school.example")
	otherToken, _ := env.register(t, "Other", "other@school.example")

	rec := env.do(t, http.MethodPost, "/api/bookings", ownerToken, bookingBody(room.ID, "09:00", "10:30", 20))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created bookingResponse
	decode(t, rec, &created)
	booking := created.Booking
	assert.Equal(t, "pending", booking.Status)
	assert.Equal(t, owner.ID, booking.UserID)
	assert.InDelta(t, 1.5, booking.Duration, 0.0001)
	assert.Equal(t, "Room 101", booking.RoomName)
	assert.Equal(t, "owner@school.example", booking.UserEmail)

	t.Run("overlap is rejected with conflicts", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/bookings", otherToken, bookingBody(room.ID, "10:00", "11:00", 5))
		require.Equal(t, http.StatusConflict, rec.Code)
		var body errorResponse
		decode(t, rec, &body)
		assert.Equal(t, "BOOKING_SLOT_UNAVAILABLE", body.ErrorCode)
		require.Len(t, body.Conflicts, 1)
		assert.Equal(t, booking.ID, body.Conflicts[0].ID)
	})

	t.Run("capacity is enforced", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/bookings", otherToken, bookingBody(room.ID, "13:00", "14:00", 31))
		require.Equal(t, http.StatusConflict, rec.Code)
		var body errorResponse
		decode(t, rec, &body)
		assert.Equal(t, "BOOKING_CAPACITY_EXCEEDED", body.ErrorCode)
	})

	t.Run("validation errors are localized", func(t *testing.T) {
		body := bookingBody(room.ID, "", "10:30", 5)
		rec := env.do(t, http.MethodPost, "/api/bookings", otherToken, body)
		require.Equal(t, http.StatusBadRequest, rec.Code)
		var resp errorResponse
		decode(t, rec, &resp)
		assert.Equal(t, "VALIDATION_FAILED", resp.ErrorCode)
		assert.Equal(t, "開始時刻は必須です。", resp.Errors["start_time"])
	})

	t.Run("availability reflects active bookings", func(t *testing.T) {
		path := "/api/rooms/" + room.ID + "/availability?date=2024-01-08&startTime=10:00&endTime=11:00"
		rec := env.do(t, http.MethodGet, path, otherToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var busy availabilityResponse
		decode(t, rec, &busy)
		assert.False(t, busy.Available)
		require.Len(t, busy.Conflicts, 1)

		path = "/api/rooms/" + room.ID + "/availability?date=2024-01-08&start_time=10:30&end_time=12:00"
		rec = env.do(t, http.MethodGet, path, otherToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var free availabilityResponse
		decode(t, rec, &free)
		assert.True(t, free.Available)
		assert.NotNil(t, free.Conflicts)
		assert.Empty(t, free.Conflicts)
	})

	t.Run("own listing only shows the caller's bookings", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/bookings/my", ownerToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var mine listBookingsResponse
		decode(t, rec, &mine)
		require.Len(t, mine.Bookings, 1)

		rec = env.do(t, http.MethodGet, "/api/bookings/my", otherToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var none listBookingsResponse
		decode(t, rec, &none)
		assert.Empty(t, none.Bookings)
	})

	t.Run("admin list filters by room", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/bookings?roomId="+room.ID+"&status=pending", env.adminToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var listed listBookingsResponse
		decode(t, rec, &listed)
		require.Len(t, listed.Bookings, 1)
		assert.Equal(t, booking.ID, listed.Bookings[0].ID)
	})

	t.Run("other instructors cannot read the booking", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/bookings/"+booking.ID, otherToken, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin confirms then owner cancels", func(t *testing.T) {
		rec := env.do(t, http.MethodPatch, "/api/bookings/"+booking.ID+"/status", env.adminToken, map[string]string{"status": "confirmed"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var confirmed bookingResponse
		decode(t, rec, &confirmed)
		assert.Equal(t, "confirmed", confirmed.Booking.Status)

		rec = env.do(t, http.MethodPatch, "/api/bookings/"+booking.ID+"/status", ownerToken, map[string]string{"status": "unknown"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = env.do(t, http.MethodPatch, "/api/bookings/"+booking.ID+"/status", ownerToken, map[string]string{"status": "cancelled"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var cancelled bookingResponse
		decode(t, rec, &cancelled)
		assert.Equal(t, "cancelled", cancelled.Booking.Status)
	})

	t.Run("cancelled slot can be booked again", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/bookings", otherToken, bookingBody(room.ID, "09:30", "10:00", 5))
		assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	})

	t.Run("owner deletes the booking", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/api/bookings/"+booking.ID, ownerToken, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		var msg messageResponse
		decode(t, rec, &msg)
		assert.NotEmpty(t, msg.Message)

		rec = env.do(t, http.MethodGet, "/api/bookings/"+booking.ID, ownerToken, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestRouterRoomManagement(t *testing.T) {
	env := newRouterEnv(t, nil)
	instructorToken, _ := env.register(t, "Instructor", "instructor@school.example")

	rec := env.do(t, http.MethodPost, "/api/rooms", instructorToken, map[string]any{"name": "Lab", "capacity": 10})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	room := env.createRoom(t, "Lab", 10)
	assert.Equal(t, "available", room.Status)
	assert.Equal(t, []string{"projector"}, room.Equipment)

	rec = env.do(t, http.MethodGet, "/api/rooms", instructorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed listRoomsResponse
	decode(t, rec, &listed)
	require.Len(t, listed.Rooms, 1)

	rec = env.do(t, http.MethodPut, "/api/rooms/"+room.ID, env.adminToken, map[string]any{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var empty errorResponse
	decode(t, rec, &empty)
	assert.Equal(t, "NO_FIELDS_PROVIDED", empty.ErrorCode)

	rec = env.do(t, http.MethodPut, "/api/rooms/"+room.ID, env.adminToken, map[string]any{"capacity": 12, "equipment": []string{}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated roomResponse
	decode(t, rec, &updated)
	assert.Equal(t, 12, updated.Room.Capacity)
	assert.Empty(t, updated.Room.Equipment)
	assert.Equal(t, "Lab", updated.Room.Name)

	rec = env.do(t, http.MethodPost, "/api/bookings", instructorToken, bookingBody(room.ID, "09:00", "10:00", 5))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodDelete, "/api/rooms/"+room.ID, env.adminToken, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var inUse errorResponse
	decode(t, rec, &inUse)
	assert.Equal(t, "ROOM_IN_USE", inUse.ErrorCode)

	rec = env.do(t, http.MethodGet, "/api/rooms/missing", instructorToken, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouterUserManagement(t *testing.T) {
	env := newRouterEnv(t, nil)
	instructorToken, _ := env.register(t, "Instructor", "instructor@school.example")

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/users", instructorToken, nil).Code)

	rec := env.do(t, http.MethodPost, "/api/users", env.adminToken, map[string]string{
		"name": "Second Admin", "email": "second@school.example", "password": "pw-12345", "role": "admin",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created userResponse
	decode(t, rec, &created)
	assert.Equal(t, "admin", created.User.Role)

	rec = env.do(t, http.MethodPost, "/api/users", env.adminToken, map[string]string{"name": "", "email": "bad", "password": "x", "role": "owner"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var invalid errorResponse
	decode(t, rec, &invalid)
	assert.Equal(t, "VALIDATION_FAILED", invalid.ErrorCode)
	assert.Contains(t, invalid.Errors, "email")
	assert.Contains(t, invalid.Errors, "role")

	rec = env.do(t, http.MethodGet, "/api/users", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var listed listUsersResponse
	decode(t, rec, &listed)
	assert.Len(t, listed.Users, 3)

	rec = env.do(t, http.MethodPut, "/api/users/"+created.User.ID, env.adminToken, map[string]string{"name": "Renamed"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated userResponse
	decode(t, rec, &updated)
	assert.Equal(t, "Renamed", updated.User.Name)
	assert.Equal(t, "second@school.example", updated.User.Email)

	rec = env.do(t, http.MethodDelete, "/api/users/"+env.admin.ID, env.adminToken, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var self errorResponse
	decode(t, rec, &self)
	assert.Equal(t, "USER_SELF_DELETION", self.ErrorCode)

	rec = env.do(t, http.MethodDelete, "/api/users/"+created.User.ID, env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/users/"+created.User.ID, env.adminToken, nil).Code)
}

func TestRouterDashboard(t *testing.T) {
	env := newRouterEnv(t, nil)
	room := env.createRoom(t, "Room 201", 40)
	instructorToken, _ := env.register(t, "Instructor", "instructor@school.example")

	rec := env.do(t, http.MethodPost, "/api/bookings", instructorToken, bookingBody(room.ID, "09:00", "10:00", 10))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, http.StatusForbidden, env.do(t, http.MethodGet, "/api/dashboard/stats", instructorToken, nil).Code)

	rec = env.do(t, http.MethodGet, "/api/dashboard/stats", env.adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var stats adminStatsResponse
	decode(t, rec, &stats)
	assert.Equal(t, 1, stats.TotalRooms)
	assert.Equal(t, 2, stats.TotalUsers)
	assert.Equal(t, 1, stats.TotalBookings)
	assert.Equal(t, 1, stats.PendingBookings)
	assert.Equal(t, 1, stats.BookingsByStatus["pending"])
	assert.Len(t, stats.WeeklyBookings, 7)
	assert.Len(t, stats.RecentBookings, 1)

	rec = env.do(t, http.MethodGet, "/api/dashboard/instructor-stats", instructorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var mine instructorStatsResponse
	decode(t, rec, &mine)
	assert.Equal(t, 1, mine.TotalBookings)
	assert.Equal(t, 1, mine.UpcomingBookings)
	assert.Equal(t, 1, mine.PendingBookings)
	require.NotNil(t, mine.NextBooking)
	assert.Equal(t, "2024-01-08", mine.NextBooking.Date)
}

func TestRouterThrottlesLogin(t *testing.T) {
	env := newRouterEnv(t, NewRateLimiter(0.001, 1, time.Minute))

	// The burst was spent by the admin login during setup.
	rec := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{"email": env.admin.Email, "password": adminPassword})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Authenticated routes are not throttled.
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/rooms", env.adminToken, nil).Code)
}
