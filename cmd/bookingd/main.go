package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/example/room-booking/internal/adapters"
	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/config"
	httptransport "github.com/example/room-booking/internal/http"
	"github.com/example/room-booking/internal/logging"
	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/persistence/sqlite"
	"github.com/example/room-booking/internal/persistence/sqlite/migration"
	"github.com/example/room-booking/internal/scheduler"
)

type options struct {
	envFile     string
	migrateOnly bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (options, error) {
	var opts options
	flags := pflag.NewFlagSet("bookingd", pflag.ContinueOnError)
	flags.StringVar(&opts.envFile, "env-file", "", "dotenv file to load before reading the environment (default .env)")
	flags.BoolVar(&opts.migrateOnly, "migrate-only", false, "apply database migrations and exit")
	if err := flags.Parse(args); err != nil {
		return options{}, err
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	if err := config.LoadEnvFile(opts.envFile); err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	logger := logging.New(stdout, level)

	store, err := sqlite.Open(ctx, migration.DefaultSQLiteConfig(cfg.SQLitePath))
	if err != nil {
		logger.Error("failed to open storage", "error", err)
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	if err := store.Migrate(ctx, logger); err != nil {
		logger.Error("failed to apply migrations", "error", err)
		return err
	}
	if opts.migrateOnly {
		logger.Info("migrations applied", "path", cfg.SQLitePath)
		return nil
	}

	users := adapters.NewUserRepository(store.Users)
	if err := bootstrapAdmin(ctx, users, cfg, uuid.NewString, time.Now, logger); err != nil {
		logger.Error("failed to bootstrap admin account", "error", err)
		return err
	}

	limiter := httptransport.NewRateLimiter(cfg.LoginRate, cfg.LoginBurst, 10*time.Minute)
	go limiter.Run(ctx, time.Minute)

	handler, err := buildHandler(cfg, store, limiter, time.Now, logger)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("room booking API listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		return err
	}
	logger.Info("server stopped")
	return nil
}

// buildHandler wires repositories, services and handlers into the API router.
func buildHandler(cfg config.Config, store *sqlite.Store, limiter *httptransport.RateLimiter, now func() time.Time, logger *slog.Logger) (http.Handler, error) {
	users, rooms, bookings, dashboard := adapters.NewUserRepository(store.Users),
		adapters.NewRoomRepository(store.Rooms),
		adapters.NewBookingRepository(store.Bookings),
		adapters.NewDashboardRepository(store.Dashboard)

	issuer, err := application.NewJWTIssuer(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL, now)
	if err != nil {
		return nil, err
	}

	userService := application.NewUserServiceWithLogger(users, application.HashPassword, uuid.NewString, now, logger)
	roomService := application.NewRoomServiceWithLogger(rooms, uuid.NewString, now, logger)
	bookingService := application.NewBookingServiceWithLogger(bookings, rooms, uuid.NewString, now, logger)
	dashboardService := application.NewDashboardService(dashboard, now, logger)
	authService := application.NewAuthServiceWithLogger(users, userService, issuer, application.VerifyPassword, logger)

	return httptransport.NewRouter(httptransport.RouterConfig{
		Auth:        httptransport.NewAuthHandler(authService, logger),
		Bookings:    httptransport.NewBookingHandler(bookingService, logger),
		Rooms:       httptransport.NewRoomHandler(roomService, logger),
		Users:       httptransport.NewUserHandler(userService, logger),
		Dashboard:   httptransport.NewDashboardHandler(dashboardService, logger),
		Health:      httptransport.NewHealthHandler(store, logger),
		Validator:   authService,
		AuthLimiter: limiter,
		Logger:      logger,
		Middleware:  []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	}), nil
}

// bootstrapAdmin creates the configured admin account unless the email is
// already registered.
func bootstrapAdmin(ctx context.Context, users *adapters.UserRepository, cfg config.Config, idGen func() string, now func() time.Time, logger *slog.Logger) error {
	if !cfg.BootstrapAdmin() {
		return nil
	}

	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	_, err := users.GetUserCredentialsByEmail(ctx, email)
	switch {
	case err == nil:
		logger.Debug("admin account already present", "email", email)
		return nil
	case !errors.Is(err, persistence.ErrNotFound):
		return err
	}

	hash, err := application.HashPassword(cfg.AdminPassword)
	if err != nil {
		return err
	}

	ts := now().UTC()
	created, err := users.CreateUser(ctx, application.UserCredentials{
		User: application.User{
			ID:        idGen(),
			Name:      "Administrator",
			Email:     email,
			Role:      scheduler.RoleAdmin,
			CreatedAt: ts,
			UpdatedAt: ts,
		},
		PasswordHash: hash,
	})
	if err != nil {
		return err
	}

	logger.Info("admin account created", "user_id", created.ID, "email", created.Email)
	return nil
}
