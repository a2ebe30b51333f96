package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// CredentialStore exposes user credential lookup operations required by the auth service.
type CredentialStore interface {
	GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error)
	GetUser(ctx context.Context, id string) (User, error)
}

// Registrar creates self-registered accounts.
type Registrar interface {
	Register(ctx context.Context, params RegisterParams) (User, error)
}

// AuthService coordinates login, self-registration and bearer token validation.
type AuthService struct {
	credentials    CredentialStore
	registrar      Registrar
	tokens         TokenIssuer
	verifyPassword PasswordVerifier
	logger         *slog.Logger
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(credentials CredentialStore, registrar Registrar, tokens TokenIssuer, verify PasswordVerifier) *AuthService {
	return NewAuthServiceWithLogger(credentials, registrar, tokens, verify, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(credentials CredentialStore, registrar Registrar, tokens TokenIssuer, verify PasswordVerifier, logger *slog.Logger) *AuthService {
	if verify == nil {
		verify = VerifyPassword
	}
	return &AuthService{
		credentials:    credentials,
		registrar:      registrar,
		tokens:         tokens,
		verifyPassword: verify,
		logger:         defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Authenticate validates credentials and issues a signed token.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.credentials == nil || s.tokens == nil {
		err = fmt.Errorf("auth service dependencies not configured")
		return
	}

	email := normalizeEmail(params.Email)
	password := params.Password

	logger := s.loggerWith(ctx, "Authenticate",
		"email", email,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", result.User.ID).InfoContext(ctx, "authentication succeeded")
	}()

	if email == "" || password == "" {
		vErr := &ValidationError{}
		if email == "" {
			vErr.add("email", "email is required")
		}
		if password == "" {
			vErr.add("password", "password is required")
		}
		err = vErr
		return
	}

	var creds UserCredentials
	creds, err = s.credentials.GetUserCredentialsByEmail(ctx, email)
	if err != nil {
		if errors.Is(mapUserRepoError(err), ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}

	if err = s.verifyPassword(creds.PasswordHash, password); err != nil {
		err = ErrInvalidCredentials
		return
	}

	return s.issue(creds.User)
}

// Register creates an instructor account and signs a token for it.
func (s *AuthService) Register(ctx context.Context, params RegisterParams) (result AuthenticateResult, err error) {
	if s == nil {
		return AuthenticateResult{}, fmt.Errorf("AuthService is nil")
	}
	if s.registrar == nil || s.tokens == nil {
		return AuthenticateResult{}, fmt.Errorf("auth service dependencies not configured")
	}

	user, err := s.registrar.Register(ctx, params)
	if err != nil {
		return AuthenticateResult{}, err
	}
	return s.issue(user)
}

func (s *AuthService) issue(user User) (AuthenticateResult, error) {
	token, expiresAt, err := s.tokens.Issue(user)
	if err != nil {
		return AuthenticateResult{}, err
	}
	return AuthenticateResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// Profile returns the principal's current account.
func (s *AuthService) Profile(ctx context.Context, principal Principal) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("AuthService is nil")
	}
	if !principal.Authenticated() {
		return User{}, ErrUnauthenticated
	}
	if s.credentials == nil {
		return User{}, fmt.Errorf("credential store not configured")
	}

	user, err := s.credentials.GetUser(ctx, principal.UserID)
	if err != nil {
		return User{}, mapUserRepoError(err)
	}
	return user, nil
}

// ValidateToken verifies a bearer token and returns its principal.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.tokens == nil {
		err = fmt.Errorf("token issuer not configured")
		return
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "ValidateToken", "token_provided", trimmed != "")
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "token validation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("principal_id", principal.UserID).DebugContext(ctx, "token validated")
	}()

	if trimmed == "" {
		err = ErrUnauthenticated
		return
	}

	principal, err = s.tokens.Verify(trimmed)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrUnauthenticated, err)
		return
	}
	return
}
