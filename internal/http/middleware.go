package httpapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/skypost/mailing-service/internal/auth"
	"github.com/skypost/mailing-service/internal/core"
	"github.com/skypost/mailing-service/internal/metrics"
)

func instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		// Default to path; try to replace with the route pattern.
		handler := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if rp := rc.RoutePattern(); rp != "" {
				handler = rp
			}
		}

		start := time.Now()
		next.ServeHTTP(ww, r)
		elapsed := time.Since(start).Seconds()

		metrics.HTTPRequests.WithLabelValues(handler, r.Method, http.StatusText(ww.Status())).Inc()
		metrics.HTTPDuration.WithLabelValues(handler, r.Method).Observe(elapsed)
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

type ctxKey int

const userKey ctxKey = 0

func userFrom(ctx context.Context) *core.User {
	u, _ := ctx.Value(userKey).(*core.User)
	return u
}

// authenticate resolves the bearer token into the current user. The
// user row is re-read on every request so a blocked account loses
// access immediately, not at token expiry.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := s.resolveUser(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		if !u.IsActive {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "account_disabled"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

// resolveUser is the optional variant used by the public home page.
func (s *Server) resolveUser(r *http.Request) (*core.User, bool) {
	token := auth.ExtractToken(r)
	if token == "" {
		return nil, false
	}
	userID, err := auth.ParseToken(token, s.jwtSecret)
	if err != nil {
		return nil, false
	}
	u, err := s.Store.UserByID(r.Context(), userID)
	if err != nil {
		return nil, false
	}
	return u, true
}

func (s *Server) requireModerator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := userFrom(r.Context())
		if u == nil || !u.IsModerator {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ipLimiter throttles login attempts per remote address. This guards
// credential stuffing only; the dispatch path is never rate limited.
type ipLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newIPLimiter() *ipLimiter {
	return &ipLimiter{limiters: map[string]*rate.Limiter{}}
}

func (l *ipLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[ip]
	if !ok {
		lim = rate.NewLimiter(rate.Every(2*time.Second), 5)
		l.limiters[ip] = lim
	}
	return lim.Allow()
}

func (s *Server) throttleLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.loginLimiter.allow(r.RemoteAddr) {
			metrics.LoginTotal.WithLabelValues("throttled").Inc()
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "too_many_attempts"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
