package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"resumeai.app/resume-ai/internal/apperr"
	"resumeai.app/resume-ai/internal/auth"
	"resumeai.app/resume-ai/internal/session"
)

type contextKey int

const (
	sessionKey contextKey = iota
	decisionKey
)

// RequestLogger logs one line per request.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			logger.Info("http_request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status_code", status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// Recoverer turns a panic into a JSON internal error.
func Recoverer(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					logger.Error("panic_recovered",
						zap.Any("error", rec),
						zap.String("path", r.URL.Path),
						zap.String("method", r.Method),
						zap.Stack("stack"),
					)
					writeJSON(w, http.StatusInternalServerError, errorResponse{
						Error: errorBody{Code: apperr.CodeInternal, Message: "An unexpected error occurred"},
					}, logger)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// Authenticate resolves the bearer token to a live session, serialises the request with
// other requests of that session and evaluates the subscription gate.
func (h *APIHandler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			h.respondError(w, r, apperr.Unauthenticated(nil), session.ScreenLoggedOut)
			return
		}

		claims, err := h.tokens.ValidateJWT(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			h.respondError(w, r, apperr.Unauthenticated(err), session.ScreenLoggedOut)
			return
		}

		unlock := h.locks.Lock(claims.SessionID)
		defer unlock()

		// Loaded under the lock so concurrent requests see each other's writes.
		sess, err := h.sessions.Get(r.Context(), claims.SessionID)
		if err != nil {
			h.respondError(w, r, apperr.Internal(err), session.ScreenLoggedOut)
			return
		}
		if sess == nil || sess.UserID != claims.UserID {
			h.respondError(w, r, apperr.Unauthenticated(nil), session.ScreenLoggedOut)
			return
		}

		decision := h.gate.Check(r.Context(), sess.UserID)
		ctx := context.WithValue(r.Context(), sessionKey, sess)
		ctx = context.WithValue(ctx, decisionKey, decision)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireActive lets through only users whose subscription is active.
func (h *APIHandler) RequireActive(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		decision := decisionFrom(r)
		switch decision.Status {
		case auth.StatusActive:
			next.ServeHTTP(w, r)
		case auth.StatusNoProfile:
			h.respondError(w, r, apperr.ProfileUnavailable(nil), session.ScreenProfileError)
		case auth.StatusExpired:
			h.respondError(w, r, apperr.SubscriptionExpired(), session.ScreenExpired)
		default:
			h.respondError(w, r, apperr.Unauthenticated(nil), session.ScreenLoggedOut)
		}
	})
}

func sessionFrom(r *http.Request) *session.Session {
	sess, _ := r.Context().Value(sessionKey).(*session.Session)
	return sess
}

func decisionFrom(r *http.Request) auth.Decision {
	d, _ := r.Context().Value(decisionKey).(auth.Decision)
	return d
}
