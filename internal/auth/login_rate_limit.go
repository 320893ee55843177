package auth

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"taskboard/internal/apperror"
)

// LoginRateLimiter is a fixed-window per-IP counter guarding the login route.
type LoginRateLimiter struct {
	mu        sync.Mutex
	maxHits   int
	window    time.Duration
	windows   map[string]*ipWindow
	maxMemory int
}

type ipWindow struct {
	startedAt time.Time
	hits      int
}

func NewLoginRateLimiter(maxHits int, window time.Duration) *LoginRateLimiter {
	if maxHits <= 0 {
		maxHits = 10
	}
	if window <= 0 {
		window = time.Minute
	}

	return &LoginRateLimiter{
		maxHits:   maxHits,
		window:    window,
		windows:   make(map[string]*ipWindow),
		maxMemory: 5000,
	}
}

func (l *LoginRateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, retryAfter := l.allow(clientIP(r), time.Now().UTC())
		if !allowed {
			w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Seconds())))
			apperror.Write(w, apperror.New(http.StatusTooManyRequests, "RATE_LIMITED", "too many login attempts"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (l *LoginRateLimiter) allow(ip string, now time.Time) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	win := l.windows[ip]
	if win == nil || now.Sub(win.startedAt) >= l.window {
		win = &ipWindow{startedAt: now}
		l.windows[ip] = win
	}

	if win.hits >= l.maxHits {
		retryAfter := win.startedAt.Add(l.window).Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		return false, retryAfter
	}

	win.hits++

	if len(l.windows) > l.maxMemory {
		threshold := now.Add(-l.window)
		for key, value := range l.windows {
			if value.startedAt.Before(threshold) {
				delete(l.windows, key)
			}
		}
	}

	return true, 0
}

func clientIP(r *http.Request) string {
	xForwardedFor := strings.TrimSpace(r.Header.Get("X-Forwarded-For"))
	if xForwardedFor != "" {
		parts := strings.Split(xForwardedFor, ",")
		if len(parts) > 0 {
			ip := strings.TrimSpace(parts[0])
			if ip != "" {
				return ip
			}
		}
	}

	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}

	return "unknown"
}
