// Package ratelimit caps requests per client per minute, either in process
// or across replicas through Redis.
package ratelimit

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"finanzas/internal/log"
)

// Store counts requests in fixed one-minute windows.
type Store interface {
	// Allow records a hit for key and reports whether it is within limit,
	// plus the time until the window resets.
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// Limiter is the in-process Store.
type Limiter struct {
	mu      sync.Mutex
	clients map[string]*window
	limit   int
	period  time.Duration
	now     func() time.Time
}

type window struct {
	start    time.Time
	requests int
}

type Config struct {
	RequestsPerMinute int
}

func DefaultConfig() Config {
	return Config{RequestsPerMinute: 60}
}

func NewLimiter(config Config) *Limiter {
	if config.RequestsPerMinute <= 0 {
		config = DefaultConfig()
	}
	return &Limiter{
		clients: make(map[string]*window),
		limit:   config.RequestsPerMinute,
		period:  time.Minute,
		now:     time.Now,
	}
}

func (l *Limiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.clients[key]
	if !ok || now.Sub(w.start) >= l.period {
		l.clients[key] = &window{start: now, requests: 1}
		return true, l.period, nil
	}
	w.requests++
	return w.requests <= l.limit, w.start.Add(l.period).Sub(now), nil
}

// Cleanup drops windows that ended before now and returns how many.
func (l *Limiter) Cleanup() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	cutoff := l.now().Add(-l.period)
	for key, w := range l.clients {
		if w.start.Before(cutoff) {
			delete(l.clients, key)
			removed++
		}
	}
	return removed
}

// CleanExpired lets the cache manager sweep the limiter.
func (l *Limiter) CleanExpired() int {
	return l.Cleanup()
}

func (l *Limiter) ActiveClients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Middleware rejects requests over the limit through onLimit. Store errors
// let the request through.
func Middleware(store Store, extractKey func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, reset, err := store.Allow(r.Context(), extractKey(r))
			if err != nil {
				slog.WarnContext(r.Context(), "Rate limiter unavailable", log.FieldComponent, log.ComponentRateLimit, log.FieldError, err)
				next.ServeHTTP(w, r)
				return
			}
			if !allowed {
				secs := int(reset.Round(time.Second) / time.Second)
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
