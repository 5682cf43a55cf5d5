package httpapi

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"stockpilot/backend/internal/apperr"
	"stockpilot/backend/internal/domain"
	"stockpilot/backend/internal/logger"
	"stockpilot/backend/internal/metrics"
	"stockpilot/backend/internal/service"
)

const maxBodyBytes = 1 << 20

type Options struct {
	AllowedOrigin string
	Logger        *logger.Logger
	Metrics       *metrics.Metrics
	// Gatherer backs GET /metrics; nil leaves the endpoint unmounted.
	Gatherer prometheus.Gatherer
	// Ready is probed by /healthz when set.
	Ready func(ctx context.Context) error
}

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	log           *logger.Logger
	metrics       *metrics.Metrics
	gatherer      prometheus.Gatherer
	ready         func(ctx context.Context) error
	loginLimiter  *attemptLimiter
	signupLimiter *attemptLimiter
	csrfSecret    []byte
}

func New(svc *service.Service, auth *AuthManager, opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	return &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: opts.AllowedOrigin,
		log:           opts.Logger,
		metrics:       opts.Metrics,
		gatherer:      opts.Gatherer,
		ready:         opts.Ready,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		signupLimiter: newAttemptLimiter(10, time.Minute),
		csrfSecret:    csrfSecret,
	}
}

func (a *API) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(
		a.recoverer,
		a.requestID,
		a.requestLog,
		a.observe,
		a.securityHeaders,
		limitBody,
		a.checkCSRF,
	)

	r.Get("/healthz", a.handleHealth)
	if a.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/auth/csrf-token", a.handleCSRFToken)
		r.Post("/auth/signup", a.handleSignup)
		r.Post("/auth/login", a.handleLogin)
		r.Get("/organizations", a.handleOrganizations)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth(domain.RoleOwner, domain.RoleEmployee))

			r.Get("/me", a.handleMe)
			r.Get("/dashboard", a.handleDashboard)

			r.Route("/products", func(r chi.Router) {
				r.Get("/", a.handleListProducts)
				r.Post("/", a.handleCreateProduct)
				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", a.handleGetProduct)
					r.Patch("/", a.handleUpdateProduct)
					r.Delete("/", a.handleDeleteProduct)
					r.Post("/adjustments", a.handleAdjustStock)
					r.Get("/ledger", a.handleProductLedger)
					r.Get("/reconciliation", a.handleReconcile)
				})
			})

			r.Route("/sales", func(r chi.Router) {
				r.Get("/", a.handleListSales)
				r.Post("/", a.handleCheckout)
				r.Get("/{id}", a.handleGetSale)
			})

			r.Route("/transactions", func(r chi.Router) {
				r.Get("/", a.handleListTransactions)
				r.Post("/", a.handleCreateTransaction)
				r.With(a.requireRole(domain.RoleOwner)).Get("/totals", a.handleTransactionTotals)
			})

			r.Route("/assistant", func(r chi.Router) {
				r.Post("/session", a.handleAssistantSession)
				r.Get("/messages", a.handleAssistantTranscript)
				r.Post("/messages", a.handleAssistantMessage)
				r.Post("/insight", a.handleAssistantInsight)
			})
		})

		r.Route("/team", func(r chi.Router) {
			r.Use(a.requireAuth(domain.RoleOwner))
			r.Get("/members", a.handleMembers)
			r.Get("/invitations", a.handleListInvitations)
			r.Post("/invitations", a.handleCreateInvitation)
			r.Delete("/invitations/{id}", a.handleDeleteInvitation)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		a.writeError(w, r, apperr.New(apperr.CodeNotFound, "route not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorEnvelope{Error: apiError{
			Code:    "METHOD_NOT_ALLOWED",
			Message: "method not allowed",
		}})
	})
	return r
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	return a.csrfTokenForHour(time.Now().UTC().Truncate(time.Hour).Unix())
}

// validateCSRFToken accepts the current and the previous hour bucket.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	current := time.Now().UTC().Truncate(time.Hour).Unix()
	return hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current))) ||
		hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(current-3600)))
}

// csrfExemptPaths are called before the client holds a session.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
	"/api/v1/auth/signup",
}

type attemptLimiter struct {
	mu      sync.Mutex
	max     int
	window  time.Duration
	entries map[string][]time.Time
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{max: max, window: window, entries: make(map[string][]time.Time)}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	now := time.Now()
	cutoff := now.Add(-l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.entries[key]
	kept := make([]time.Time, 0, len(history)+1)
	for _, ts := range history {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.entries[key] = kept
		return false
	}
	l.entries[key] = append(kept, now)
	return true
}

func clientKey(r *http.Request) string {
	host := strings.TrimSpace(r.RemoteAddr)
	if host == "" {
		return "unknown"
	}
	if addr, err := netip.ParseAddrPort(host); err == nil {
		return addr.Addr().String()
	}
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		return host[:idx]
	}
	return host
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// decodeJSON reads a single JSON object into dest and runs its validate tags.
func decodeJSON(r *http.Request, dest any) error {
	defer func() {
		_, _ = io.Copy(io.Discard, r.Body)
	}()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperr.Wrap(apperr.CodeValidation, err, "request body is too large")
		}
		return apperr.Wrap(apperr.CodeValidation, err, "invalid request body").
			WithDetails(map[string]string{"body": err.Error()})
	}
	if err := validate.Struct(dest); err != nil {
		return validationError(err)
	}
	return nil
}

func validationError(err error) *apperr.Error {
	var errs validator.ValidationErrors
	if !errors.As(err, &errs) {
		return apperr.Wrap(apperr.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		details[fe.Field()] = validationMessage(fe)
	}
	return apperr.New(apperr.CodeValidation, "validation failed").WithDetails(details)
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email"
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	}
	return "is invalid"
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type errorEnvelope struct {
	Error apiError `json:"error"`
}

// writeError renders err in the error envelope. Messages of 5xx responses are
// replaced by the public text; the cause only reaches the log.
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	typed := service.Classify(err)
	meta := apperr.MetadataFor(typed.Code())

	msg := typed.Message()
	if meta.HTTPStatus >= http.StatusInternalServerError || msg == "" {
		msg = meta.PublicMessage
	}
	payload := errorEnvelope{Error: apiError{Code: string(typed.Code()), Message: msg}}
	if meta.DetailsAllowed {
		payload.Error.Details = typed.Details()
	}

	ctx := a.log.WithFields(r.Context(), map[string]any{
		"error_code": string(typed.Code()),
		"status":     meta.HTTPStatus,
	})
	if meta.HTTPStatus >= http.StatusInternalServerError {
		a.log.Error(ctx, "request.error", err)
	} else {
		a.log.Debug(a.log.WithField(ctx, "error", err.Error()), "request.rejected")
	}

	writeJSON(w, meta.HTTPStatus, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
