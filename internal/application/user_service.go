package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/example/room-booking/internal/persistence"
	"github.com/example/room-booking/internal/scheduler"
)

// UserRepository captures the persistence operations needed by the user service.
type UserRepository interface {
	CreateUser(ctx context.Context, user UserCredentials) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	// UpdateUser stores user. An empty passwordHash keeps the stored hash.
	UpdateUser(ctx context.Context, user User, passwordHash string) (User, error)
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context) ([]User, error)
}

var validate = validator.New()

// UserService orchestrates validation, authorization, and persistence for users.
type UserService struct {
	users       UserRepository
	hash        PasswordHasher
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository, hash PasswordHasher, idGenerator func() string, now func() time.Time) *UserService {
	return NewUserServiceWithLogger(users, hash, idGenerator, now, nil)
}

// NewUserServiceWithLogger wires dependencies for the user service with a specified logger.
func NewUserServiceWithLogger(users UserRepository, hash PasswordHasher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if hash == nil {
		hash = HashPassword
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{users: users, hash: hash, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// CreateUser validates input and persists a new user for administrators.
func (s *UserService) CreateUser(ctx context.Context, params CreateUserParams) (user User, err error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if !params.Principal.Authenticated() {
		return User{}, ErrUnauthenticated
	}
	if !params.Principal.IsAdmin() {
		return User{}, ErrForbidden
	}

	logger := s.loggerWith(ctx, "CreateUser", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "user created")
	}()

	return s.create(ctx, params.Input)
}

// create is shared by administrator creation and self-registration.
func (s *UserService) create(ctx context.Context, input UserInput) (User, error) {
	normalized := normalizeUserInput(input)
	if normalized.Role == "" {
		normalized.Role = scheduler.RoleInstructor
	}
	vErr := validateUserInput(normalized)
	if vErr.HasErrors() {
		return User{}, vErr
	}

	hash, err := s.hash(normalized.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	user := User{
		ID:        s.idGenerator(),
		Name:      normalized.Name,
		Email:     normalized.Email,
		Role:      normalized.Role,
		CreatedAt: s.now(),
	}
	user.UpdatedAt = user.CreatedAt

	if s.users == nil {
		return user, nil
	}

	persisted, err := s.users.CreateUser(ctx, UserCredentials{User: user, PasswordHash: hash})
	if err != nil {
		return User{}, mapUserRepoError(err)
	}

	return persisted, nil
}

// GetUser returns a user to administrators or to the user themselves.
func (s *UserService) GetUser(ctx context.Context, principal Principal, userID string) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if !principal.Authenticated() {
		return User{}, ErrUnauthenticated
	}
	if !principal.IsAdmin() && principal.UserID != userID {
		return User{}, ErrForbidden
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}

	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return User{}, mapUserRepoError(err)
	}
	return user, nil
}

// UpdateUser applies the supplied fields. Users may edit themselves; only
// administrators may edit others or change a role.
func (s *UserService) UpdateUser(ctx context.Context, params UpdateUserParams) (user User, err error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if !params.Principal.Authenticated() {
		return User{}, ErrUnauthenticated
	}
	if !params.Principal.IsAdmin() && params.Principal.UserID != params.UserID {
		return User{}, ErrForbidden
	}
	if params.Update.Role != nil && !params.Principal.IsAdmin() {
		return User{}, fmt.Errorf("%w: only administrators may change roles", ErrForbidden)
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}

	logger := s.loggerWith(ctx, "UpdateUser",
		"principal_id", params.Principal.UserID,
		"user_id", params.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "user updated")
	}()

	existing, err := s.users.GetUser(ctx, params.UserID)
	if err != nil {
		return User{}, mapUserRepoError(err)
	}

	if params.Update.IsEmpty() {
		return User{}, ErrNoFieldsProvided
	}

	updated, password, vErr := applyUserUpdate(existing, params.Update)
	if vErr.HasErrors() {
		return User{}, vErr
	}

	var hash string
	if password != "" {
		hash, err = s.hash(password)
		if err != nil {
			return User{}, fmt.Errorf("hash password: %w", err)
		}
	}
	updated.UpdatedAt = s.now()

	persisted, err := s.users.UpdateUser(ctx, updated, hash)
	if err != nil {
		return User{}, mapUserRepoError(err)
	}

	return persisted, nil
}

// DeleteUser removes a user when requested by an administrator. The user's
// bookings go with it.
func (s *UserService) DeleteUser(ctx context.Context, principal Principal, userID string) error {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if !principal.Authenticated() {
		return ErrUnauthenticated
	}
	if !principal.IsAdmin() {
		return ErrForbidden
	}
	if principal.UserID == userID {
		return ErrSelfDeletion
	}
	if s.users == nil {
		return fmt.Errorf("user repository not configured")
	}

	if err := s.users.DeleteUser(ctx, userID); err != nil {
		err = mapUserRepoError(err)
		s.loggerWith(ctx, "DeleteUser", "principal_id", principal.UserID, "user_id", userID).
			ErrorContext(ctx, "failed to delete user", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	return nil
}

// ListUsers returns all users, newest first, for administrators.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) ([]User, error) {
	if s == nil {
		return nil, fmt.Errorf("UserService is nil")
	}
	if !principal.Authenticated() {
		return nil, ErrUnauthenticated
	}
	if !principal.IsAdmin() {
		return nil, ErrForbidden
	}
	if s.users == nil {
		return nil, nil
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]User, len(users))
	copy(out, users)
	return out, nil
}

func normalizeUserInput(input UserInput) UserInput {
	return UserInput{
		Name:     strings.TrimSpace(input.Name),
		Email:    normalizeEmail(input.Email),
		Password: input.Password,
		Role:     scheduler.Role(strings.ToLower(strings.TrimSpace(string(input.Role)))),
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateUserInput(input UserInput) *ValidationError {
	vErr := &ValidationError{}

	if input.Name == "" {
		vErr.add("name", "name is required")
	}
	validateEmail(vErr, input.Email)
	if input.Password == "" {
		vErr.add("password", "password is required")
	}
	if _, err := scheduler.ParseRole(string(input.Role)); err != nil {
		vErr.add("role", "role must be admin or instructor")
	}

	return vErr
}

func validateEmail(vErr *ValidationError, email string) {
	if email == "" {
		vErr.add("email", "email is required")
		return
	}
	if err := validate.Var(email, "email"); err != nil {
		vErr.add("email", "email is invalid")
	}
}

func applyUserUpdate(existing User, update UserUpdate) (User, string, *ValidationError) {
	updated := existing
	vErr := &ValidationError{}
	var password string

	if update.Name != nil {
		if name := strings.TrimSpace(*update.Name); name == "" {
			vErr.add("name", "name must not be empty")
		} else {
			updated.Name = name
		}
	}
	if update.Email != nil {
		email := normalizeEmail(*update.Email)
		validateEmail(vErr, email)
		updated.Email = email
	}
	if update.Password != nil {
		if *update.Password == "" {
			vErr.add("password", "password must not be empty")
		} else {
			password = *update.Password
		}
	}
	if update.Role != nil {
		role, err := scheduler.ParseRole(string(*update.Role))
		if err != nil {
			vErr.add("role", "role must be admin or instructor")
		} else {
			updated.Role = role
		}
	}

	return updated, password, vErr
}

func mapUserRepoError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("%w: email already registered", ErrAlreadyExists)
	case errors.Is(err, persistence.ErrConstraintViolation):
		vErr := &ValidationError{}
		vErr.add("role", "role must be admin or instructor")
		return vErr
	}
	return err
}

// Register creates an instructor account for an unauthenticated caller.
func (s *UserService) Register(ctx context.Context, params RegisterParams) (user User, err error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}

	logger := s.loggerWith(ctx, "Register", "email", normalizeEmail(params.Email))
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to register user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "user registered")
	}()

	return s.create(ctx, UserInput{
		Name:     params.Name,
		Email:    params.Email,
		Password: params.Password,
		Role:     scheduler.RoleInstructor,
	})
}
