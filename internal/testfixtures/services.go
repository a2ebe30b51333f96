package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/room-booking/internal/application"
)

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

func (f *ServiceFactory) defaults(idGen func() string, now func() time.Time) (func() string, func() time.Time) {
	if idGen == nil {
		idGen = f.IDGenerator.NextFunc()
	}
	if now == nil {
		now = f.Clock.NowFunc()
	}
	return idGen, now
}

// BookingServiceDeps captures dependencies for constructing a booking service.
type BookingServiceDeps struct {
	Bookings    application.BookingRepository
	Rooms       application.RoomCatalog
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewBookingService builds a booking service using the supplied dependencies
// combined with the factory defaults.
func (f *ServiceFactory) NewBookingService(deps BookingServiceDeps) *application.BookingService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	return application.NewBookingServiceWithLogger(deps.Bookings, deps.Rooms, idGen, now, deps.Logger)
}

// RoomServiceDeps captures dependencies for constructing a room service.
type RoomServiceDeps struct {
	Rooms       application.RoomRepository
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewRoomService builds a room service using the supplied dependencies.
func (f *ServiceFactory) NewRoomService(deps RoomServiceDeps) *application.RoomService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	return application.NewRoomServiceWithLogger(deps.Rooms, idGen, now, deps.Logger)
}

// UserServiceDeps captures dependencies for constructing a user service.
// A nil Hasher stores passwords with a reversible "plain:" prefix.
type UserServiceDeps struct {
	Users       application.UserRepository
	Hasher      application.PasswordHasher
	IDGenerator func() string
	Now         func() time.Time
	Logger      *slog.Logger
}

// NewUserService builds a user service using the supplied dependencies.
func (f *ServiceFactory) NewUserService(deps UserServiceDeps) *application.UserService {
	idGen, now := f.defaults(deps.IDGenerator, deps.Now)
	hasher := deps.Hasher
	if hasher == nil {
		hasher = PlainHasher
	}
	return application.NewUserServiceWithLogger(deps.Users, hasher, idGen, now, deps.Logger)
}

// AuthServiceDeps captures dependencies for constructing an auth service.
type AuthServiceDeps struct {
	Credentials    application.CredentialStore
	Registrar      application.Registrar
	Tokens         application.TokenIssuer
	PasswordVerify application.PasswordVerifier
	Logger         *slog.Logger
}

// NewAuthService builds an auth service using the supplied dependencies. A nil
// token issuer is replaced by a JWT issuer driven by the factory clock, and a
// nil verifier by PlainVerifier.
func (f *ServiceFactory) NewAuthService(deps AuthServiceDeps) (*application.AuthService, error) {
	tokens := deps.Tokens
	if tokens == nil {
		issuer, err := application.NewJWTIssuer("testfixtures-secret", "room-booking-test", time.Hour, f.Clock.NowFunc())
		if err != nil {
			return nil, err
		}
		tokens = issuer
	}
	verify := deps.PasswordVerify
	if verify == nil {
		verify = PlainVerifier
	}
	return application.NewAuthServiceWithLogger(deps.Credentials, deps.Registrar, tokens, verify, deps.Logger), nil
}

// DashboardServiceDeps captures dependencies for constructing a dashboard service.
type DashboardServiceDeps struct {
	Stats  application.DashboardRepository
	Now    func() time.Time
	Logger *slog.Logger
}

// NewDashboardService builds a dashboard service using the supplied dependencies.
func (f *ServiceFactory) NewDashboardService(deps DashboardServiceDeps) *application.DashboardService {
	_, now := f.defaults(func() string { return "" }, deps.Now)
	return application.NewDashboardService(deps.Stats, now, deps.Logger)
}

// PlainHasher is a fast, insecure hasher for tests.
func PlainHasher(password string) (string, error) {
	return "plain:" + password, nil
}

// PlainVerifier accepts passwords hashed by PlainHasher.
func PlainVerifier(hash, password string) error {
	if hash != "plain:"+password {
		return application.ErrInvalidCredentials
	}
	return nil
}
