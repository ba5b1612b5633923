// Package ratelimit provides fixed-window request limiting as Echo
// middleware. Counters live in a pluggable store so a single Redis instance
// can back every replica, with an in-memory store for tests and single-node
// deployments.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/letterstack/ms-go-account/app/apperror"
)

const limitExceededMessage = "Too many request please try again later!"

// Rate is a request budget per fixed window.
type Rate struct {
	Limit  int64
	Window time.Duration
}

var windowUnits = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
}

// Parse reads specs of the form "N/second", "N/minute", "N/hour" or "N/day".
func Parse(spec string) (Rate, error) {
	parts := strings.SplitN(spec, "/", 2)
	if len(parts) != 2 {
		return Rate{}, fmt.Errorf("invalid rate %q: expected N/unit", spec)
	}

	limit, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 64)
	if err != nil || limit <= 0 {
		return Rate{}, fmt.Errorf("invalid rate %q: limit must be a positive integer", spec)
	}

	window, ok := windowUnits[strings.TrimSpace(parts[1])]
	if !ok {
		return Rate{}, fmt.Errorf("invalid rate %q: unknown unit %q", spec, parts[1])
	}
	return Rate{Limit: limit, Window: window}, nil
}

// MustParse is Parse for configuration defaults known to be valid.
func MustParse(spec string) Rate {
	rate, err := Parse(spec)
	if err != nil {
		panic(err)
	}
	return rate
}

// CounterStore increments the counter for key inside the current fixed
// window and returns the new count.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// KeyFunc derives the client identity a counter is keyed by.
type KeyFunc func(c echo.Context) string

// ByRemoteAddr keys by client IP, honoring X-Forwarded-For when Echo is
// configured to trust it.
func ByRemoteAddr(c echo.Context) string {
	return c.RealIP()
}

// ByQueryParam keys by a query parameter value, falling back to the client
// IP when the parameter is absent.
func ByQueryParam(name string) KeyFunc {
	return func(c echo.Context) string {
		if v := c.QueryParam(name); v != "" {
			return v
		}
		return c.RealIP()
	}
}

type Limiter struct {
	store CounterStore
}

func NewLimiter(store CounterStore) *Limiter {
	return &Limiter{store: store}
}

// Limit returns middleware enforcing the given rate per key. Counters are
// additionally scoped by route path so two routes sharing a limiter never
// share a budget. When the store is unreachable the request is allowed
// through; availability wins over strict enforcement here.
func (l *Limiter) Limit(rate Rate, keyFn KeyFunc) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Path() + "|" + keyFn(c)

			count, err := l.store.Incr(c.Request().Context(), key, rate.Window)
			if err != nil {
				logrus.WithError(err).WithField("key", key).Warn("Rate limit store unavailable, allowing request")
				return next(c)
			}

			if count > rate.Limit {
				return apperror.New(apperror.KindTooManyRequests, []string{limitExceededMessage})
			}
			return next(c)
		}
	}
}
