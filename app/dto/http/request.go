package http

import (
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/letterstack/ms-go-account/app/apperror"
)

const (
	jobDescMinLength = 50
	jobDescMaxLength = 3000
)

type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func NewRegisterRequestFromContext(ctx echo.Context) (*RegisterRequest, error) {
	req := &RegisterRequest{}
	if err := ctx.Bind(req); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *RegisterRequest) Validate() error {
	fields := []apperror.FieldError{}
	if err := validEmail(r.Email); err != nil {
		fields = append(fields, *err)
	}
	if r.Password == "" {
		fields = append(fields, apperror.FieldError{Field: "password", Message: "Password is required"})
	} else if r.Password != r.ConfirmPassword {
		fields = append(fields, apperror.FieldError{Field: "confirm_password", Message: "Passwords do not match"})
	}
	if len(fields) > 0 {
		return apperror.New(apperror.KindValidation, fields)
	}
	return nil
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func NewLoginRequestFromContext(ctx echo.Context) (*LoginRequest, error) {
	req := &LoginRequest{}
	if err := ctx.Bind(req); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *LoginRequest) Validate() error {
	fields := []apperror.FieldError{}
	if err := validEmail(r.Email); err != nil {
		fields = append(fields, *err)
	}
	if r.Password == "" {
		fields = append(fields, apperror.FieldError{Field: "password", Message: "Password is required"})
	}
	if len(fields) > 0 {
		return apperror.New(apperror.KindValidation, fields)
	}
	return nil
}

type ResendVerificationRequest struct {
	Email string `json:"email"`
}

func NewResendVerificationRequestFromContext(ctx echo.Context) (*ResendVerificationRequest, error) {
	req := &ResendVerificationRequest{}
	if err := ctx.Bind(req); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *ResendVerificationRequest) Validate() error {
	if err := validEmail(r.Email); err != nil {
		return apperror.New(apperror.KindValidation, []apperror.FieldError{*err})
	}
	return nil
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

func NewForgotPasswordRequestFromContext(ctx echo.Context) (*ForgotPasswordRequest, error) {
	req := &ForgotPasswordRequest{}
	if err := ctx.Bind(req); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *ForgotPasswordRequest) Validate() error {
	if err := validEmail(r.Email); err != nil {
		return apperror.New(apperror.KindValidation, []apperror.FieldError{*err})
	}
	return nil
}

type ResetPasswordRequest struct {
	Token           string `json:"token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func NewResetPasswordRequestFromContext(ctx echo.Context) (*ResetPasswordRequest, error) {
	req := &ResetPasswordRequest{}
	if err := ctx.Bind(req); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *ResetPasswordRequest) Validate() error {
	fields := []apperror.FieldError{}
	if r.Token == "" {
		fields = append(fields, apperror.FieldError{Field: "token", Message: "Token is required"})
	}
	if r.Password == "" {
		fields = append(fields, apperror.FieldError{Field: "password", Message: "Password is required"})
	} else if r.Password != r.ConfirmPassword {
		fields = append(fields, apperror.FieldError{Field: "confirm_password", Message: "Passwords do not match"})
	}
	if len(fields) > 0 {
		return apperror.New(apperror.KindValidation, fields)
	}
	return nil
}

type GenerateLetterRequest struct {
	CVID    string `json:"cv_id"`
	JobDesc string `json:"job_desc"`
}

func NewGenerateLetterRequestFromContext(ctx echo.Context) (*GenerateLetterRequest, error) {
	req := &GenerateLetterRequest{}
	if err := ctx.Bind(req); err != nil {
		return nil, err
	}
	return req, nil
}

func (r *GenerateLetterRequest) Validate() error {
	fields := []apperror.FieldError{}
	if _, err := uuid.Parse(r.CVID); err != nil {
		fields = append(fields, apperror.FieldError{Field: "cv_id", Message: "cv_id must be a valid UUID"})
	}
	if n := len(strings.TrimSpace(r.JobDesc)); n < jobDescMinLength || n > jobDescMaxLength {
		fields = append(fields, apperror.FieldError{
			Field:   "job_desc",
			Message: "Job description must be between 50 and 3000 characters",
		})
	}
	if len(fields) > 0 {
		return apperror.New(apperror.KindValidation, fields)
	}
	return nil
}

func validEmail(email string) *apperror.FieldError {
	if email == "" {
		return &apperror.FieldError{Field: "email", Message: "Email is required"}
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return &apperror.FieldError{Field: "email", Message: "Email is not a valid email address"}
	}
	return nil
}
