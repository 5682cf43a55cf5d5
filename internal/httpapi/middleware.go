package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"stockpilot/backend/internal/apperr"
	"stockpilot/backend/internal/domain"
	"stockpilot/backend/internal/service"
)

const requestIDHeader = "X-Request-Id"

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	if r.status == 0 {
		r.status = status
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	return r.ResponseWriter.Write(b)
}

func (r *statusRecorder) Status() int {
	if r.status == 0 {
		return http.StatusOK
	}
	return r.status
}

func (a *API) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				err := fmt.Errorf("panic: %v", rec)
				a.writeError(w, r, apperr.Wrap(apperr.CodeInternal, err, "panic"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (a *API) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if reqID == "" || len(reqID) > 128 {
			reqID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, reqID)
		next.ServeHTTP(w, r.WithContext(a.log.WithRequestID(r.Context(), reqID)))
	})
}

func (a *API) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := a.log.WithFields(r.Context(), map[string]any{
			"method": r.Method,
			"path":   r.URL.Path,
		})
		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()

		next.ServeHTTP(rec, r.WithContext(ctx))

		ctx = a.log.WithFields(ctx, map[string]any{
			"status":      rec.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
		a.log.Info(ctx, "request.complete")
	})
}

// observe records request metrics under the matched route pattern so ids in
// paths do not explode label cardinality.
func (a *API) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w}
		start := time.Now()
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		a.metrics.ObserveHTTP(r.Method, route, rec.Status(), time.Since(start))
	})
}

func (a *API) securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		h.Set("Cross-Origin-Opener-Policy", "same-origin")
		h.Set("Access-Control-Allow-Origin", a.allowedOrigin)
		h.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token, X-Request-Id")
		h.Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
		h.Set("Access-Control-Expose-Headers", requestIDHeader)
		h.Set("Vary", "Origin")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Body != nil && isMutating(r.Method) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// checkCSRF enforces the hourly token on state-changing requests.
func (a *API) checkCSRF(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isMutating(r.Method) || isCSRFExempt(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}
		if !a.validateCSRFToken(strings.TrimSpace(r.Header.Get("X-CSRF-Token"))) {
			a.writeError(w, r, apperr.New(apperr.CodeForbidden, "missing or invalid CSRF token"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func isCSRFExempt(path string) bool {
	path = strings.TrimSuffix(path, "/")
	for _, exempt := range csrfExemptPaths {
		if path == exempt {
			return true
		}
	}
	return false
}

// requireAuth resolves the bearer token into the request actor and rejects
// roles outside the allowed set.
func (a *API) requireAuth(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authorization := strings.TrimSpace(r.Header.Get("Authorization"))
			if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
				a.writeError(w, r, apperr.New(apperr.CodeUnauthorized, "missing bearer token"))
				return
			}

			actor, err := a.auth.ParseToken(strings.TrimSpace(authorization[len("Bearer "):]))
			if err != nil {
				a.writeError(w, r, err)
				return
			}
			if !isRoleAllowed(actor.Role, roles) {
				a.writeError(w, r, apperr.New(apperr.CodeForbidden, "role is not allowed"))
				return
			}

			ctx := service.WithActor(r.Context(), actor)
			ctx = a.log.WithActor(ctx, actor.UserID, actor.OrganizationID, actor.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requireRole narrows an already authenticated route.
func (a *API) requireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := service.ActorFromContext(r.Context())
			if !ok {
				a.writeError(w, r, apperr.New(apperr.CodeUnauthorized, "authentication required"))
				return
			}
			if !isRoleAllowed(actor.Role, roles) {
				a.writeError(w, r, apperr.New(apperr.CodeForbidden, "role is not allowed"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	if len(allowed) == 0 {
		return role == domain.RoleOwner || role == domain.RoleEmployee
	}
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}
