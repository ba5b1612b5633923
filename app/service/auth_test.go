package service_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/letterstack/ms-go-account/app/entity"
	"github.com/letterstack/ms-go-account/app/password"
	"github.com/letterstack/ms-go-account/app/repository"
	"github.com/letterstack/ms-go-account/app/service"
	"github.com/letterstack/ms-go-account/app/token"
	"github.com/letterstack/ms-go-account/config"
)

var userColumns = []string{
	"id",
	"email",
	"password_hash",
	"role",
	"is_verified",
	"verification_token",
	"password_reset_token",
	"created_at",
}

const (
	insertUserQuery  = `(?s)INSERT INTO users \(email, password_hash, role, is_verified, verification_token, password_reset_token, created_at\)\s+VALUES \(\$1, \$2, \$3, \$4, \$5, \$6, \$7\)\s+RETURNING id`
	findByEmailQuery = `(?s)SELECT id, email, password_hash, role, is_verified, verification_token, password_reset_token, created_at\s+FROM users WHERE email = \$1`
	updateUserQuery  = `(?s)UPDATE users SET\s+password_hash = \$1,\s+is_verified = \$2,\s+verification_token = \$3,\s+password_reset_token = \$4\s+WHERE id = \$5`
)

type stubMailer struct {
	mu            sync.Mutex
	confirmations []string
	resets        []string
}

func (m *stubMailer) AccountConfirmation(to, _ string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.confirmations = append(m.confirmations, to)
	return true
}

func (m *stubMailer) PasswordReset(to, _ string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets = append(m.resets, to)
	return true
}

func (m *stubMailer) confirmationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.confirmations)
}

func (m *stubMailer) resetCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.resets)
}

type authFixture struct {
	svc    service.AuthService
	mock   sqlmock.Sqlmock
	codec  *token.Codec
	mailer *stubMailer
	cfg    *config.Config
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := &config.Config{
		JWT: config.JWTConfig{
			Secret:     "test-secret",
			Algorithm:  "HS256",
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
		},
		Tokens: config.TokenConfig{
			ConfirmTTL: time.Hour,
			ResetTTL:   time.Hour,
		},
		Password: config.PasswordConfig{
			Policy:     config.PasswordPolicy{MinLength: 1},
			BcryptCost: 4,
		},
	}

	codec, err := token.NewCodec(cfg.JWT.Secret, cfg.JWT.Algorithm)
	if err != nil {
		t.Fatalf("failed to create codec: %v", err)
	}

	mailer := &stubMailer{}
	svc := service.NewAuthService(
		repository.NewUserRepository(db),
		codec,
		password.NewHasher(cfg.Password.BcryptCost),
		mailer,
		cfg,
		// Run background tasks inline so assertions see them.
		service.WithAsyncRunner(func(task func()) { task() }),
	)

	return &authFixture{svc: svc, mock: mock, codec: codec, mailer: mailer, cfg: cfg}
}

func (f *authFixture) expectFindByEmail(email string, user *entity.User) {
	rows := sqlmock.NewRows(userColumns)
	if user != nil {
		rows.AddRow(
			user.ID,
			user.Email,
			user.PasswordHash,
			user.Role,
			user.IsVerified,
			user.VerificationToken,
			user.PasswordResetToken,
			user.CreatedAt,
		)
	}
	f.mock.ExpectQuery(findByEmailQuery).WithArgs(email).WillReturnRows(rows)
}

func (f *authFixture) hash(t *testing.T, plaintext string) string {
	t.Helper()

	hashed, err := password.NewHasher(4).Hash(plaintext)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	return hashed
}

func TestAuthService_Register_CreatesUserAndSendsEmail(t *testing.T) {
	f := newAuthFixture(t)

	f.mock.ExpectQuery(insertUserQuery).
		WithArgs("user@example.com", sqlmock.AnyArg(), entity.RoleUser, false, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	user, err := f.svc.Register(context.Background(), "user@example.com", "password")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if user.ID != 1 || user.IsVerified {
		t.Fatalf("unexpected user: %+v", user)
	}
	if !user.VerificationToken.Valid {
		t.Fatal("expected a stored verification token")
	}
	if f.mailer.confirmationCount() != 1 {
		t.Fatalf("expected one confirmation email, got %d", f.mailer.confirmationCount())
	}

	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuthService_Register_WeakPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.cfg.Password.Policy = config.PasswordPolicy{MinLength: 8}

	_, err := f.svc.Register(context.Background(), "user@example.com", "short")
	if !errors.Is(err, service.ErrWeakPassword) {
		t.Fatalf("expected ErrWeakPassword, got %v", err)
	}
	if f.mailer.confirmationCount() != 0 {
		t.Fatal("no email should be sent for a rejected registration")
	}
}

func TestAuthService_Verify_Succeeds(t *testing.T) {
	f := newAuthFixture(t)

	signed, err := f.codec.MintVerification("user@example.com", time.Hour)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	f.expectFindByEmail("user@example.com", &entity.User{
		ID:                1,
		Email:             "user@example.com",
		Role:              entity.RoleUser,
		VerificationToken: sql.NullString{String: signed, Valid: true},
		CreatedAt:         time.Now(),
	})
	f.mock.ExpectExec(updateUserQuery).
		WithArgs(sqlmock.AnyArg(), true, sql.NullString{Valid: false}, sqlmock.AnyArg(), uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := f.svc.Verify(context.Background(), signed); err != nil {
		t.Fatalf("verify failed: %v", err)
	}

	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuthService_Verify_AlreadyVerifiedIsIdempotent(t *testing.T) {
	f := newAuthFixture(t)

	signed, err := f.codec.MintVerification("user@example.com", time.Hour)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	f.expectFindByEmail("user@example.com", &entity.User{
		ID:         1,
		Email:      "user@example.com",
		Role:       entity.RoleUser,
		IsVerified: true,
		CreatedAt:  time.Now(),
	})

	if err := f.svc.Verify(context.Background(), signed); err != nil {
		t.Fatalf("expected verified account to verify cleanly, got %v", err)
	}
}

func TestAuthService_Verify_StaleTokenRejected(t *testing.T) {
	f := newAuthFixture(t)

	stale, err := f.codec.MintVerification("user@example.com", time.Hour)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	// The stored token differs, so the presented one was superseded.
	f.expectFindByEmail("user@example.com", &entity.User{
		ID:                1,
		Email:             "user@example.com",
		Role:              entity.RoleUser,
		VerificationToken: sql.NullString{String: "a-newer-token", Valid: true},
		CreatedAt:         time.Now(),
	})

	if err := f.svc.Verify(context.Background(), stale); !errors.Is(err, service.ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}
}

func TestAuthService_Verify_ExpiredToken(t *testing.T) {
	f := newAuthFixture(t)

	signed, err := f.codec.MintVerification("user@example.com", -time.Minute)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	if err := f.svc.Verify(context.Background(), signed); !errors.Is(err, service.ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}
}

func TestAuthService_Verify_LookupFailure(t *testing.T) {
	f := newAuthFixture(t)

	signed, err := f.codec.MintVerification("user@example.com", time.Hour)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	f.mock.ExpectQuery(findByEmailQuery).
		WithArgs("user@example.com").
		WillReturnError(errors.New("connection reset"))

	// A store failure must not leak past the verification boundary.
	if err := f.svc.Verify(context.Background(), signed); !errors.Is(err, service.ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}
}

func TestAuthService_ResendVerification(t *testing.T) {
	f := newAuthFixture(t)

	f.expectFindByEmail("user@example.com", &entity.User{
		ID:        1,
		Email:     "user@example.com",
		Role:      entity.RoleUser,
		CreatedAt: time.Now(),
	})
	f.mock.ExpectExec(updateUserQuery).
		WithArgs(sqlmock.AnyArg(), false, sqlmock.AnyArg(), sqlmock.AnyArg(), uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := f.svc.ResendVerification(context.Background(), "user@example.com")
	if err != nil {
		t.Fatalf("resend failed: %v", err)
	}
	if result.AlreadyVerified {
		t.Fatal("expected unverified account")
	}
	if f.mailer.confirmationCount() != 1 {
		t.Fatalf("expected one confirmation email, got %d", f.mailer.confirmationCount())
	}
}

func TestAuthService_ResendVerification_AlreadyVerified(t *testing.T) {
	f := newAuthFixture(t)

	f.expectFindByEmail("user@example.com", &entity.User{
		ID:         1,
		Email:      "user@example.com",
		Role:       entity.RoleUser,
		IsVerified: true,
		CreatedAt:  time.Now(),
	})

	result, err := f.svc.ResendVerification(context.Background(), "user@example.com")
	if err != nil {
		t.Fatalf("resend failed: %v", err)
	}
	if !result.AlreadyVerified {
		t.Fatal("expected AlreadyVerified")
	}
	if f.mailer.confirmationCount() != 0 {
		t.Fatal("no email should be sent to a verified account")
	}
}

func TestAuthService_ResendVerification_UnknownEmail(t *testing.T) {
	f := newAuthFixture(t)

	f.expectFindByEmail("missing@example.com", nil)

	if _, err := f.svc.ResendVerification(context.Background(), "missing@example.com"); !errors.Is(err, service.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestAuthService_Login_ReturnsTokens(t *testing.T) {
	f := newAuthFixture(t)

	f.expectFindByEmail("user@example.com", &entity.User{
		ID:           1,
		Email:        "user@example.com",
		PasswordHash: f.hash(t, "password"),
		Role:         entity.RoleUser,
		IsVerified:   true,
		CreatedAt:    time.Now(),
	})

	result, err := f.svc.Login(context.Background(), "user@example.com", "password")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if result.AccessToken == "" || result.RefreshToken == "" || result.CSRFToken == "" {
		t.Fatalf("expected all tokens to be set: %+v", result)
	}

	refreshClaims, err := f.codec.ParseRefresh(result.RefreshToken)
	if err != nil {
		t.Fatalf("refresh token does not parse: %v", err)
	}
	if refreshClaims.CSRFToken != result.CSRFToken {
		t.Fatal("refresh token must embed the issued CSRF token")
	}

	accessClaims, err := f.codec.ParseAccess(result.AccessToken)
	if err != nil {
		t.Fatalf("access token does not parse: %v", err)
	}
	if accessClaims.UserID != 1 || accessClaims.Email != "user@example.com" {
		t.Fatalf("unexpected access claims: %+v", accessClaims)
	}
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	f := newAuthFixture(t)

	f.expectFindByEmail("user@example.com", &entity.User{
		ID:           1,
		Email:        "user@example.com",
		PasswordHash: f.hash(t, "password"),
		Role:         entity.RoleUser,
		IsVerified:   true,
		CreatedAt:    time.Now(),
	})

	if _, err := f.svc.Login(context.Background(), "user@example.com", "wrong"); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	f := newAuthFixture(t)

	f.expectFindByEmail("missing@example.com", nil)

	if _, err := f.svc.Login(context.Background(), "missing@example.com", "password"); !errors.Is(err, service.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_Login_UnverifiedAccount(t *testing.T) {
	f := newAuthFixture(t)

	f.expectFindByEmail("user@example.com", &entity.User{
		ID:           1,
		Email:        "user@example.com",
		PasswordHash: f.hash(t, "password"),
		Role:         entity.RoleUser,
		CreatedAt:    time.Now(),
	})

	if _, err := f.svc.Login(context.Background(), "user@example.com", "password"); !errors.Is(err, service.ErrAccountNotVerified) {
		t.Fatalf("expected ErrAccountNotVerified, got %v", err)
	}
}

func TestAuthService_Refresh(t *testing.T) {
	f := newAuthFixture(t)

	refreshToken, err := f.codec.MintRefresh(1, "user@example.com", "csrf-value", time.Hour)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	accessToken, err := f.svc.Refresh(refreshToken, "csrf-value")
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}

	claims, err := f.codec.ParseAccess(accessToken)
	if err != nil {
		t.Fatalf("access token does not parse: %v", err)
	}
	if claims.UserID != 1 {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestAuthService_Refresh_CSRFMismatch(t *testing.T) {
	f := newAuthFixture(t)

	refreshToken, err := f.codec.MintRefresh(1, "user@example.com", "csrf-value", time.Hour)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	if _, err := f.svc.Refresh(refreshToken, "other-value"); !errors.Is(err, service.ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
	if _, err := f.svc.Refresh(refreshToken, ""); !errors.Is(err, service.ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken for empty CSRF, got %v", err)
	}
}

func TestAuthService_Refresh_ExpiredToken(t *testing.T) {
	f := newAuthFixture(t)

	refreshToken, err := f.codec.MintRefresh(1, "user@example.com", "csrf-value", -time.Minute)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	if _, err := f.svc.Refresh(refreshToken, "csrf-value"); !errors.Is(err, service.ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
}

func TestAuthService_ForgotPassword_SendsEmail(t *testing.T) {
	f := newAuthFixture(t)

	f.expectFindByEmail("user@example.com", &entity.User{
		ID:         1,
		Email:      "user@example.com",
		Role:       entity.RoleUser,
		IsVerified: true,
		CreatedAt:  time.Now(),
	})
	f.mock.ExpectExec(updateUserQuery).
		WithArgs(sqlmock.AnyArg(), true, sqlmock.AnyArg(), sqlmock.AnyArg(), uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := f.svc.ForgotPassword(context.Background(), "user@example.com"); err != nil {
		t.Fatalf("forgot password failed: %v", err)
	}
	if f.mailer.resetCount() != 1 {
		t.Fatalf("expected one reset email, got %d", f.mailer.resetCount())
	}
}

func TestAuthService_ForgotPassword_UnknownEmailIsSilent(t *testing.T) {
	f := newAuthFixture(t)

	f.expectFindByEmail("missing@example.com", nil)

	if err := f.svc.ForgotPassword(context.Background(), "missing@example.com"); err != nil {
		t.Fatalf("expected silence for unknown email, got %v", err)
	}
	if f.mailer.resetCount() != 0 {
		t.Fatal("no email should be sent for an unknown address")
	}
}

func TestAuthService_ResetPassword_Succeeds(t *testing.T) {
	f := newAuthFixture(t)

	resetToken, err := f.codec.MintReset("user@example.com", time.Hour)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	f.expectFindByEmail("user@example.com", &entity.User{
		ID:                 1,
		Email:              "user@example.com",
		PasswordHash:       f.hash(t, "old-password"),
		Role:               entity.RoleUser,
		IsVerified:         true,
		PasswordResetToken: sql.NullString{String: resetToken, Valid: true},
		CreatedAt:          time.Now(),
	})
	f.mock.ExpectExec(updateUserQuery).
		WithArgs(sqlmock.AnyArg(), true, sqlmock.AnyArg(), sql.NullString{Valid: false}, uint64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := f.svc.ResetPassword(context.Background(), resetToken, "new-password"); err != nil {
		t.Fatalf("reset failed: %v", err)
	}

	if err := f.mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestAuthService_ResetPassword_StaleTokenRejected(t *testing.T) {
	f := newAuthFixture(t)

	stale, err := f.codec.MintReset("user@example.com", time.Hour)
	if err != nil {
		t.Fatalf("mint failed: %v", err)
	}

	f.expectFindByEmail("user@example.com", &entity.User{
		ID:                 1,
		Email:              "user@example.com",
		Role:               entity.RoleUser,
		IsVerified:         true,
		PasswordResetToken: sql.NullString{String: "a-newer-token", Valid: true},
		CreatedAt:          time.Now(),
	})

	if err := f.svc.ResetPassword(context.Background(), stale, "new-password"); !errors.Is(err, service.ErrInvalidResetToken) {
		t.Fatalf("expected ErrInvalidResetToken, got %v", err)
	}
}

func TestAuthService_ResetPassword_TokenWithoutEmail(t *testing.T) {
	f := newAuthFixture(t)

	signed, err := f.codec.Sign(map[string]any{"sub": "no-email"}, time.Hour)
	if err != nil {
		t.Fatalf("sign failed: %v", err)
	}

	if err := f.svc.ResetPassword(context.Background(), signed, "new-password"); !errors.Is(err, service.ErrTokenEmailMissing) {
		t.Fatalf("expected ErrTokenEmailMissing, got %v", err)
	}
}

func TestAuthService_ResetPassword_GarbageToken(t *testing.T) {
	f := newAuthFixture(t)

	if err := f.svc.ResetPassword(context.Background(), "garbage", "new-password"); !errors.Is(err, service.ErrInvalidResetToken) {
		t.Fatalf("expected ErrInvalidResetToken, got %v", err)
	}
}
