// Package apperror classifies every failure the service can produce into a
// small taxonomy, maps each kind to an HTTP status, and renders the uniform
// {"errors": ...} envelope. Controllers return *Error values; the Echo error
// handler in this package does the logging and the response writing.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

type Kind int

const (
	KindValidation Kind = iota
	KindConflict
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindTooManyRequests
	KindBadRequest
	KindBadGateway
	KindInternal
)

// Status maps a kind to its HTTP status. Unknown kinds map to 500 so the
// mapper can never fail.
func (k Kind) Status() int {
	switch k {
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindTooManyRequests:
		return http.StatusTooManyRequests
	case KindBadRequest:
		return http.StatusBadRequest
	case KindBadGateway:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Error carries a classified failure. Errors is the envelope payload and may
// be a plain string, a list of strings, or a list of FieldError, the three
// shapes the API exposes.
type Error struct {
	Kind   Kind
	Errors any
}

func (e *Error) Error() string {
	return fmt.Sprintf("apperror(kind=%d): %v", e.Kind, e.Errors)
}

func New(kind Kind, errs any) *Error {
	return &Error{Kind: kind, Errors: errs}
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type Envelope struct {
	Errors any `json:"errors"`
}

const internalMessage = "An error occurred. Try again later!"

var uniqueViolationRe = regexp.MustCompile(`Key \((.+?)\)=\((.+?)\) already exists`)

// ParseUniqueViolation turns a Postgres unique-constraint violation into
// field-level "already taken" messages. The second return is false when err
// is not a unique violation at all; a unique violation whose detail cannot
// be parsed yields a single generic conflict message.
func ParseUniqueViolation(err error) ([]FieldError, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != "23505" {
		return nil, false
	}

	match := uniqueViolationRe.FindStringSubmatch(pqErr.Detail)
	if match == nil {
		return []FieldError{{Message: "Database integrity error"}}, true
	}

	fields := strings.Split(match[1], ", ")
	values := strings.Split(match[2], ", ")
	out := make([]FieldError, 0, len(fields))
	for i, field := range fields {
		value := ""
		if i < len(values) {
			value = values[i]
		}
		out = append(out, FieldError{Field: field, Message: fmt.Sprintf("%s is already taken", value)})
	}
	return out, true
}

// Handler is the Echo HTTPErrorHandler. Every failure is logged before the
// response goes out: 4xx at warn, 5xx at error. Unexpected errors become a
// generic 500 so internals never leak to the caller.
func Handler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	var payload any = []string{internalMessage}

	var appErr *Error
	var httpErr *echo.HTTPError
	switch {
	case errors.As(err, &appErr):
		status = appErr.Kind.Status()
		payload = appErr.Errors
	case errors.As(err, &httpErr):
		// Router-level errors: 404 route not found, 405, body too large.
		status = httpErr.Code
		payload = fmt.Sprintf("%v", httpErr.Message)
	default:
		if fields, ok := ParseUniqueViolation(err); ok {
			status = KindConflict.Status()
			payload = fields
		}
	}

	entry := logrus.WithFields(logrus.Fields{
		"method": c.Request().Method,
		"uri":    c.Request().RequestURI,
		"status": status,
	})
	if status >= http.StatusInternalServerError {
		entry.WithError(err).Error("Request failed")
	} else {
		entry.WithError(err).Warn("Request rejected")
	}

	if c.Request().Method == http.MethodHead {
		_ = c.NoContent(status)
		return
	}
	if jsonErr := c.JSON(status, Envelope{Errors: payload}); jsonErr != nil {
		logrus.WithError(jsonErr).Error("Failed to write error response")
	}
}
