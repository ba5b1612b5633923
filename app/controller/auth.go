package controller

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/letterstack/ms-go-account/app/apperror"
	httpdto "github.com/letterstack/ms-go-account/app/dto/http"
	"github.com/letterstack/ms-go-account/app/service"
)

const refreshCookieName = "refresh_token"

type AuthController struct {
	authService service.AuthService
	refreshTTL  time.Duration
}

func NewAuthController(authService service.AuthService, refreshTTL time.Duration) *AuthController {
	return &AuthController{authService: authService, refreshTTL: refreshTTL}
}

func (c *AuthController) Register(ctx echo.Context) error {
	req, err := httpdto.NewRegisterRequestFromContext(ctx)
	if err != nil {
		return apperror.New(apperror.KindBadRequest, "Invalid request body")
	}
	if err = req.Validate(); err != nil {
		return err
	}

	user, err := c.authService.Register(ctx.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, service.ErrWeakPassword) {
			return weakPasswordError(err)
		}
		return err
	}

	logrus.WithFields(logrus.Fields{"user_id": user.ID, "email": user.Email}).Info("User registered")
	return ctx.JSON(http.StatusCreated, httpdto.DataResponse{
		Data: httpdto.MessageData{Message: "User created successfully"},
	})
}

func (c *AuthController) Verify(ctx echo.Context) error {
	verificationToken := ctx.QueryParam("token")
	if verificationToken == "" {
		return apperror.New(apperror.KindBadRequest, "Failed to verify user")
	}

	if err := c.authService.Verify(ctx.Request().Context(), verificationToken); err != nil {
		if errors.Is(err, service.ErrVerificationFailed) {
			return apperror.New(apperror.KindBadRequest, "Failed to verify user")
		}
		return err
	}

	logrus.Info("User verified")
	return ctx.JSON(http.StatusOK, httpdto.DataResponse{
		Data: httpdto.VerifyData{Message: "User verified successfully", IsVerified: true},
	})
}

func (c *AuthController) ResendVerification(ctx echo.Context) error {
	req, err := httpdto.NewResendVerificationRequestFromContext(ctx)
	if err != nil {
		return apperror.New(apperror.KindBadRequest, "Invalid request body")
	}
	if err = req.Validate(); err != nil {
		return err
	}

	result, err := c.authService.ResendVerification(ctx.Request().Context(), req.Email)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			return apperror.New(apperror.KindNotFound, []string{"User not found"})
		}
		return err
	}

	if result.AlreadyVerified {
		return ctx.JSON(http.StatusOK, httpdto.DataResponse{
			Data: httpdto.MessageData{Message: "User is already verified"},
		})
	}

	logrus.WithField("email", req.Email).Info("Verification email resent")
	return ctx.JSON(http.StatusOK, httpdto.DataResponse{
		Data: httpdto.MessageData{Message: "Verification email sent successfully"},
	})
}

func (c *AuthController) Login(ctx echo.Context) error {
	req, err := httpdto.NewLoginRequestFromContext(ctx)
	if err != nil {
		return apperror.New(apperror.KindBadRequest, "Invalid request body")
	}
	if err = req.Validate(); err != nil {
		return err
	}

	result, err := c.authService.Login(ctx.Request().Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidCredentials):
			return apperror.New(apperror.KindUnauthorized, "Invalid email or password")
		case errors.Is(err, service.ErrAccountNotVerified):
			return apperror.New(apperror.KindForbidden,
				"Account not verified. Please verify your email or request a new verification link.")
		}
		return err
	}

	c.setRefreshCookie(ctx, result.RefreshToken)

	logrus.WithField("email", req.Email).Info("User logged in")
	return ctx.JSON(http.StatusOK, httpdto.DataResponse{
		Data: httpdto.LoginData{AccessToken: result.AccessToken, CSRFToken: result.CSRFToken},
	})
}

// Refresh reads the refresh token from its HttpOnly cookie and the CSRF
// token from the X-CSRF-Token header; presenting both proves the call came
// from the legitimate frontend rather than a forged cross-site request.
func (c *AuthController) Refresh(ctx echo.Context) error {
	cookie, err := ctx.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		return apperror.New(apperror.KindUnauthorized, []string{"Unauthorized"})
	}

	csrfToken := ctx.Request().Header.Get("X-CSRF-Token")

	accessToken, err := c.authService.Refresh(cookie.Value, csrfToken)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefreshToken) {
			return apperror.New(apperror.KindUnauthorized, []string{"Unauthorized"})
		}
		return err
	}

	return ctx.JSON(http.StatusOK, httpdto.DataResponse{
		Data: httpdto.RefreshData{AccessToken: accessToken},
	})
}

// Logout clears the refresh cookie. Without a cookie there is no session to
// end, which the API reports as Forbidden.
func (c *AuthController) Logout(ctx echo.Context) error {
	cookie, err := ctx.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		return apperror.New(apperror.KindForbidden, []string{"Forbidden"})
	}

	c.clearRefreshCookie(ctx)
	return ctx.NoContent(http.StatusNoContent)
}

func (c *AuthController) ForgotPassword(ctx echo.Context) error {
	req, err := httpdto.NewForgotPasswordRequestFromContext(ctx)
	if err != nil {
		return apperror.New(apperror.KindBadRequest, "Invalid request body")
	}
	if err = req.Validate(); err != nil {
		return err
	}

	if err = c.authService.ForgotPassword(ctx.Request().Context(), req.Email); err != nil {
		return err
	}

	// Same response whether or not the account exists.
	return ctx.JSON(http.StatusCreated, httpdto.DataResponse{
		Data: httpdto.MessageData{Message: "If an account is associated with this email, you will receive an email shortly."},
	})
}

func (c *AuthController) ResetPassword(ctx echo.Context) error {
	req, err := httpdto.NewResetPasswordRequestFromContext(ctx)
	if err != nil {
		return apperror.New(apperror.KindBadRequest, "Invalid request body")
	}
	if err = req.Validate(); err != nil {
		return err
	}

	if err = c.authService.ResetPassword(ctx.Request().Context(), req.Token, req.Password); err != nil {
		switch {
		case errors.Is(err, service.ErrTokenEmailMissing):
			return apperror.New(apperror.KindBadRequest, "Invalid token: Email missing")
		case errors.Is(err, service.ErrInvalidResetToken):
			return apperror.New(apperror.KindUnauthorized, "Unauthorized")
		case errors.Is(err, service.ErrWeakPassword):
			return weakPasswordError(err)
		}
		return err
	}

	logrus.Info("Password reset")
	return ctx.JSON(http.StatusOK, httpdto.DataResponse{
		Data: httpdto.MessageData{Message: "Password reset successful"},
	})
}

func (c *AuthController) setRefreshCookie(ctx echo.Context, refreshToken string) {
	ctx.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    refreshToken,
		Path:     "/",
		MaxAge:   int(c.refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (c *AuthController) clearRefreshCookie(ctx echo.Context) {
	ctx.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	})
}

func weakPasswordError(err error) error {
	message := strings.TrimPrefix(err.Error(), service.ErrWeakPassword.Error()+": ")
	return apperror.New(apperror.KindValidation, []apperror.FieldError{
		{Field: "password", Message: message},
	})
}
