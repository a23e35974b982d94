// Package ratelimit caps the request rate per client IP with an in-memory
// sliding window. A register terminal talks to one backend, so a local
// store is sufficient; swap the store for a shared one when fronting many
// lanes.
package ratelimit

import (
	"net/http"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
)

// Middleware returns a chi-compatible middleware limiting each client IP
// to perMinute requests. A non-positive limit disables limiting.
func Middleware(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	instance := limiter.New(memory.NewStore(), limiter.Rate{
		Period: time.Minute,
		Limit:  int64(perMinute),
	})
	mw := stdlib.NewMiddleware(instance)
	return mw.Handler
}
