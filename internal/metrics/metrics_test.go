package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordHTTPRequest(t *testing.T) {
	HTTPRequestsTotal.Reset()
	HTTPRequestDuration.Reset()

	RecordHTTPRequest("POST", "/api/bookings", "201", 0.1)
	RecordHTTPRequest("POST", "/api/bookings", "201", 0.2)
	RecordHTTPRequest("POST", "/api/bookings", "409", 0.05)

	assert.Equal(t, float64(2), testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/api/bookings", "201")))
	assert.Equal(t, float64(1), testutil.ToFloat64(HTTPRequestsTotal.WithLabelValues("POST", "/api/bookings", "409")))
	assert.Equal(t, 1, testutil.CollectAndCount(HTTPRequestDuration))
}

func TestRecordBookingCreated(t *testing.T) {
	testCounter := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "room_booking_bookings_created_total_test",
		Help: "Total number of bookings created",
	})

	oldCounter := BookingsCreatedTotal
	BookingsCreatedTotal = testCounter
	defer func() { BookingsCreatedTotal = oldCounter }()

	RecordBookingCreated()
	RecordBookingCreated()

	assert.Equal(t, float64(2), testutil.ToFloat64(testCounter))
}

func TestRecordBookingRejected(t *testing.T) {
	BookingConflictsTotal.Reset()

	RecordBookingRejected("slot")
	RecordBookingRejected("slot")
	RecordBookingRejected("capacity")

	assert.Equal(t, float64(2), testutil.ToFloat64(BookingConflictsTotal.WithLabelValues("slot")))
	assert.Equal(t, float64(1), testutil.ToFloat64(BookingConflictsTotal.WithLabelValues("capacity")))
}

func TestRecordStatusTransition(t *testing.T) {
	StatusTransitionsTotal.Reset()

	RecordStatusTransition("confirmed")
	RecordStatusTransition("cancelled")
	RecordStatusTransition("confirmed")

	assert.Equal(t, float64(2), testutil.ToFloat64(StatusTransitionsTotal.WithLabelValues("confirmed")))
	assert.Equal(t, float64(1), testutil.ToFloat64(StatusTransitionsTotal.WithLabelValues("cancelled")))
}

func TestRecordRateLimited(t *testing.T) {
	RateLimitedTotal.Reset()

	RecordRateLimited("/api/auth/login")

	assert.Equal(t, float64(1), testutil.ToFloat64(RateLimitedTotal.WithLabelValues("/api/auth/login")))
}
