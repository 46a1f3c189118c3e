package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"eduadvise-backend/internal/domain"
	"eduadvise-backend/pkg/errors"
	"eduadvise-backend/pkg/jwt"
	"eduadvise-backend/pkg/logger"
	"eduadvise-backend/pkg/password"
	"eduadvise-backend/pkg/sanitize"
)

// UserRepository is the persistence surface the auth service needs.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
	UpdatePassword(ctx context.Context, userID uuid.UUID, passwordHash string) error
	EmailExists(ctx context.Context, email string) (bool, error)
}

// LockoutManager throttles repeated failed logins per account.
type LockoutManager interface {
	RecordFailedAttempt(ctx context.Context, identifier string) error
	IsLocked(ctx context.Context, identifier string) (bool, error)
	Reset(ctx context.Context, identifier string) error
}

// TokenRevoker blocklists tokens on logout.
type TokenRevoker interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// WelcomeMailer greets freshly registered accounts.
type WelcomeMailer interface {
	SendWelcomeEmail(ctx context.Context, to, fullName string) error
}

// Service handles registration, login, logout and password changes.
type Service struct {
	users      UserRepository
	lockout    LockoutManager
	revoker    TokenRevoker
	mailer     WelcomeMailer
	jwtManager *jwt.JWTManager
}

// NewService creates a new auth service
func NewService(users UserRepository, lockout LockoutManager, revoker TokenRevoker, mailer WelcomeMailer, jwtManager *jwt.JWTManager) *Service {
	return &Service{
		users:      users,
		lockout:    lockout,
		revoker:    revoker,
		mailer:     mailer,
		jwtManager: jwtManager,
	}
}

// RegisterInput contains user registration data
type RegisterInput struct {
	Email    string
	Password string
	FullName string
	UserType string
	Phone    *string
	Country  *string
	Timezone *string
}

// AuthOutput is the result of a successful register or login
type AuthOutput struct {
	User         *domain.UserResponse
	AccessToken  string
	RefreshToken string
}

// Register creates a new account and returns a signed-in session.
func (s *Service) Register(ctx context.Context, input *RegisterInput) (*AuthOutput, error) {
	input.Email = sanitize.Email(input.Email)
	if input.Email == "" {
		return nil, errors.MissingFieldError("email")
	}
	if input.FullName == "" {
		return nil, errors.MissingFieldError("full_name")
	}
	switch input.UserType {
	case domain.UserTypeStudent, domain.UserTypeCounselor:
	case "":
		input.UserType = domain.UserTypeStudent
	default:
		return nil, errors.InvalidInputError("user_type must be student or counselor")
	}
	if err := password.Validate(input.Password); err != nil {
		return nil, err
	}

	exists, err := s.users.EmailExists(ctx, input.Email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, errors.EmailExistsError()
	}

	hash, err := password.Hash(input.Password)
	if err != nil {
		return nil, errors.InternalError("failed to hash password")
	}

	user := &domain.User{
		UserID:       uuid.New(),
		Email:        input.Email,
		PasswordHash: hash,
		FullName:     input.FullName,
		UserType:     input.UserType,
		Phone:        input.Phone,
		Country:      input.Country,
		Timezone:     input.Timezone,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	logger.Info("user registered",
		zap.String("user_id", user.UserID.String()),
		zap.String("user_type", user.UserType))

	if s.mailer != nil {
		if err := s.mailer.SendWelcomeEmail(ctx, user.Email, user.FullName); err != nil {
			logger.Warn("welcome email failed",
				zap.String("user_id", user.UserID.String()),
				zap.Error(err))
		}
	}

	return s.issueTokens(user)
}

// LoginInput contains login credentials
type LoginInput struct {
	Email    string
	Password string
}

// Login authenticates a user. Failed attempts feed the lockout counter;
// a locked account rejects even correct credentials until the lock expires.
func (s *Service) Login(ctx context.Context, input *LoginInput) (*AuthOutput, error) {
	email := sanitize.Email(input.Email)

	locked, err := s.lockout.IsLocked(ctx, email)
	if err != nil {
		logger.Warn("lockout check failed", zap.Error(err))
	} else if locked {
		return nil, errors.AccountLockedError()
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		// burn a bcrypt comparison so the timing does not reveal
		// whether the account exists
		password.Verify(input.Password, "$2a$12$00000000000000000000000000000000000000000000000000000")
		s.recordFailure(ctx, email)
		return nil, errors.InvalidCredentialsError()
	}

	if !password.Verify(input.Password, user.PasswordHash) {
		s.recordFailure(ctx, email)
		return nil, errors.InvalidCredentialsError()
	}
	if !user.IsActive {
		return nil, errors.ForbiddenError("Account is deactivated")
	}

	if err := s.lockout.Reset(ctx, email); err != nil {
		logger.Warn("lockout reset failed", zap.Error(err))
	}

	logger.Info("user logged in", zap.String("user_id", user.UserID.String()))
	return s.issueTokens(user)
}

// Refresh exchanges a valid refresh token for a fresh token pair.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*AuthOutput, error) {
	claims, err := s.jwtManager.ValidateToken(refreshToken)
	if err != nil {
		return nil, errors.InvalidTokenError("Invalid refresh token")
	}
	if claims.ID != "" {
		revoked, err := s.revoker.IsRevoked(ctx, claims.ID)
		if err == nil && revoked {
			return nil, errors.InvalidTokenError("Token has been revoked")
		}
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, errors.ForbiddenError("Account is deactivated")
	}
	return s.issueTokens(user)
}

// Logout blocklists the presented access token for its remaining lifetime.
func (s *Service) Logout(ctx context.Context, tokenString string) error {
	claims, err := s.jwtManager.ValidateToken(tokenString)
	if err != nil || claims.ID == "" {
		// nothing to revoke; an invalid token is already unusable
		return nil
	}
	remaining := time.Until(claims.ExpiresAt.Time)
	if err := s.revoker.Revoke(ctx, claims.ID, remaining); err != nil {
		logger.Warn("token revocation failed",
			zap.String("user_id", claims.UserID.String()),
			zap.Error(err))
		return err
	}
	return nil
}

// IsTokenRevoked reports whether the token id was blocklisted by a logout.
func (s *Service) IsTokenRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	return s.revoker.IsRevoked(ctx, tokenID)
}

// ChangePassword verifies the current password and stores a new hash.
func (s *Service) ChangePassword(ctx context.Context, userID uuid.UUID, current, next string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return err
	}
	if !password.Verify(current, user.PasswordHash) {
		return errors.InvalidCredentialsError()
	}
	if err := password.Validate(next); err != nil {
		return err
	}

	hash, err := password.Hash(next)
	if err != nil {
		return errors.InternalError("failed to hash password")
	}
	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return err
	}

	logger.Info("password changed", zap.String("user_id", userID.String()))
	return nil
}

func (s *Service) issueTokens(user *domain.User) (*AuthOutput, error) {
	accessToken, err := s.jwtManager.GenerateAccessToken(user.UserID, user.Email, user.UserType)
	if err != nil {
		return nil, errors.InternalError("failed to generate access token")
	}
	refreshToken, err := s.jwtManager.GenerateRefreshToken(user.UserID)
	if err != nil {
		return nil, errors.InternalError("failed to generate refresh token")
	}
	return &AuthOutput{
		User:         user.ToResponse(),
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (s *Service) recordFailure(ctx context.Context, email string) {
	if err := s.lockout.RecordFailedAttempt(ctx, email); err != nil {
		logger.Warn("failed to record login failure", zap.Error(err))
	}
}
