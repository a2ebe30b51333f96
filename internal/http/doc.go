// Package http provides HTTP handlers and middleware for the room booking API.
//
// Every endpoint is mounted under /api and exchanges JSON. Login and register
// are public and rate limited per client address; every other /api route
// requires an `Authorization: Bearer <token>` header carrying a token issued
// by login or register.
//
//   - POST /api/auth/login, POST /api/auth/register: respond with
//     {"token","expires_at","user"}. GET /api/auth/profile returns the caller.
//   - /api/bookings: list (admin filters user_id, room_id, status, date),
//     create, get, partial update (PUT), status change (PATCH .../status) and
//     delete. GET /api/bookings/my lists the caller's own bookings.
//   - GET /api/rooms/{id}/availability?date&startTime&endTime&excludeBookingId
//     reports whether a slot is free and which bookings block it.
//   - /api/rooms and /api/users: catalog and account management. Mutations on
//     rooms and user creation, listing and deletion require the admin role.
//   - GET /api/dashboard/stats (admin) and GET /api/dashboard/instructor-stats.
//   - GET /api/health and GET /metrics (Prometheus exposition) are public.
//
// Errors use the body {"error_code","message","errors"}; slot conflicts also
// carry the blocking bookings under "conflicts". Request and response DTOs
// live alongside their handlers.
package http
