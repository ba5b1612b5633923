package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/letterstack/ms-go-account/app/entity"
	"github.com/letterstack/ms-go-account/app/password"
	"github.com/letterstack/ms-go-account/app/token"
	"github.com/letterstack/ms-go-account/config"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrAccountNotVerified  = errors.New("account not verified")
	ErrVerificationFailed  = errors.New("verification failed")
	ErrWeakPassword        = errors.New("password does not meet policy requirements")
	ErrInvalidResetToken   = errors.New("invalid or expired reset token")
	ErrTokenEmailMissing   = errors.New("reset token has no email claim")
	ErrInvalidRefreshToken = errors.New("invalid or expired refresh token")
)

type userRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	Update(ctx context.Context, user *entity.User) error
}

// Mailer sends account emails. Implementations report success as a bool and
// do their own error logging; callers never block a request on delivery.
type Mailer interface {
	AccountConfirmation(to, verificationToken string) bool
	PasswordReset(to, resetToken string) bool
}

type LoginResult struct {
	AccessToken  string
	RefreshToken string
	CSRFToken    string
}

type ResendResult struct {
	AlreadyVerified bool
}

type AuthService interface {
	Register(ctx context.Context, email, plainPassword string) (*entity.User, error)
	Verify(ctx context.Context, verificationToken string) error
	ResendVerification(ctx context.Context, email string) (*ResendResult, error)
	Login(ctx context.Context, email, plainPassword string) (*LoginResult, error)
	Refresh(refreshToken, csrfToken string) (string, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, resetToken, plainPassword string) error
}

type AsyncRunner func(task func())

type AuthServiceOption func(*authService)

type authService struct {
	userRepo    userRepository
	codec       *token.Codec
	hasher      password.Hasher
	mailer      Mailer
	cfg         *config.Config
	asyncRunner AsyncRunner
}

func NewAuthService(
	userRepo userRepository,
	codec *token.Codec,
	hasher password.Hasher,
	mailer Mailer,
	cfg *config.Config,
	opts ...AuthServiceOption,
) AuthService {
	svc := &authService{
		userRepo: userRepo,
		codec:    codec,
		hasher:   hasher,
		mailer:   mailer,
		cfg:      cfg,
		asyncRunner: func(task func()) {
			go task()
		},
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func WithAsyncRunner(runner AsyncRunner) AuthServiceOption {
	return func(s *authService) {
		if runner != nil {
			s.asyncRunner = runner
		}
	}
}

// Register creates an unverified account and sends the confirmation email in
// the background. A duplicate email surfaces as the database's unique
// violation, which the HTTP error handler turns into a conflict response.
func (s *authService) Register(ctx context.Context, email, plainPassword string) (*entity.User, error) {
	if err := s.cfg.Password.Policy.Validate(plainPassword); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	hashed, err := s.hasher.Hash(plainPassword)
	if err != nil {
		return nil, err
	}

	verificationToken, err := s.codec.MintVerification(email, s.cfg.Tokens.ConfirmTTL)
	if err != nil {
		return nil, err
	}

	user := &entity.User{
		Email:             email,
		PasswordHash:      hashed,
		Role:              entity.RoleUser,
		IsVerified:        false,
		VerificationToken: sql.NullString{String: verificationToken, Valid: true},
		CreatedAt:         time.Now(),
	}
	if err = s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	s.asyncRunner(func() {
		s.mailer.AccountConfirmation(user.Email, verificationToken)
	})

	return user, nil
}

// Verify consumes a confirmation token. Every failure collapses into
// ErrVerificationFailed so the response leaks nothing about whether the
// token was expired, forged or already replaced. Verifying an account that
// is already verified succeeds without touching the row.
func (s *authService) Verify(ctx context.Context, verificationToken string) error {
	claims, err := s.codec.ParseVerification(verificationToken)
	if err != nil {
		logrus.WithError(err).Warn("Rejected verification token")
		return ErrVerificationFailed
	}

	user, err := s.userRepo.FindByEmail(ctx, claims.Email)
	if err != nil {
		logrus.WithError(err).Warn("Failed to load user for verification")
		return ErrVerificationFailed
	}
	if user == nil {
		return ErrVerificationFailed
	}
	if user.IsVerified {
		return nil
	}

	// Only the most recently issued token is accepted; resending invalidates
	// everything minted before it.
	if !user.VerificationToken.Valid || user.VerificationToken.String != verificationToken {
		return ErrVerificationFailed
	}

	user.IsVerified = true
	user.VerificationToken = sql.NullString{Valid: false}
	if err = s.userRepo.Update(ctx, user); err != nil {
		logrus.WithError(err).WithField("user_id", user.ID).Warn("Failed to persist verification")
		return ErrVerificationFailed
	}
	return nil
}

func (s *authService) ResendVerification(ctx context.Context, email string) (*ResendResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if user.IsVerified {
		return &ResendResult{AlreadyVerified: true}, nil
	}

	verificationToken, err := s.codec.MintVerification(user.Email, s.cfg.Tokens.ConfirmTTL)
	if err != nil {
		return nil, err
	}

	user.VerificationToken = sql.NullString{String: verificationToken, Valid: true}
	if err = s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	s.asyncRunner(func() {
		s.mailer.AccountConfirmation(user.Email, verificationToken)
	})

	return &ResendResult{}, nil
}

func (s *authService) Login(ctx context.Context, email, plainPassword string) (*LoginResult, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidCredentials
	}

	if !s.hasher.Compare(plainPassword, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}

	if !user.IsVerified {
		return nil, ErrAccountNotVerified
	}

	csrfToken := uuid.New().String()

	accessToken, err := s.codec.MintAccess(user.ID, user.Email, s.cfg.JWT.AccessTTL)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.codec.MintRefresh(user.ID, user.Email, csrfToken, s.cfg.JWT.RefreshTTL)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		CSRFToken:    csrfToken,
	}, nil
}

// Refresh mints a new access token off a valid refresh token whose embedded
// CSRF token matches the one presented out of band. The refresh token itself
// is not rotated.
func (s *authService) Refresh(refreshToken, csrfToken string) (string, error) {
	claims, err := s.codec.ParseRefresh(refreshToken)
	if err != nil {
		return "", ErrInvalidRefreshToken
	}
	if csrfToken == "" || claims.CSRFToken != csrfToken {
		return "", ErrInvalidRefreshToken
	}

	return s.codec.MintAccess(claims.UserID, claims.Email, s.cfg.JWT.AccessTTL)
}

// ForgotPassword is deliberately silent about unknown emails so the endpoint
// cannot be used to probe which addresses have accounts.
func (s *authService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		return nil
	}

	resetToken, err := s.codec.MintReset(user.Email, s.cfg.Tokens.ResetTTL)
	if err != nil {
		return err
	}

	user.PasswordResetToken = sql.NullString{String: resetToken, Valid: true}
	if err = s.userRepo.Update(ctx, user); err != nil {
		return err
	}

	s.asyncRunner(func() {
		s.mailer.PasswordReset(user.Email, resetToken)
	})

	return nil
}

func (s *authService) ResetPassword(ctx context.Context, resetToken, plainPassword string) error {
	claims, err := s.codec.ParseReset(resetToken)
	if err != nil {
		if errors.Is(err, token.ErrEmailMissing) {
			return ErrTokenEmailMissing
		}
		return ErrInvalidResetToken
	}

	user, err := s.userRepo.FindByEmail(ctx, claims.Email)
	if err != nil {
		return err
	}
	if user == nil {
		return ErrInvalidResetToken
	}
	if !user.PasswordResetToken.Valid || user.PasswordResetToken.String != resetToken {
		return ErrInvalidResetToken
	}

	if err = s.cfg.Password.Policy.Validate(plainPassword); err != nil {
		return fmt.Errorf("%w: %s", ErrWeakPassword, err.Error())
	}

	hashed, err := s.hasher.Hash(plainPassword)
	if err != nil {
		return err
	}

	user.PasswordHash = hashed
	user.PasswordResetToken = sql.NullString{Valid: false}
	return s.userRepo.Update(ctx, user)
}
