package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"shopdesk/backend/internal/dashboard"
	"shopdesk/backend/internal/domain"
	"shopdesk/backend/internal/metrics"
	"shopdesk/backend/internal/service"
	"shopdesk/backend/internal/store"
)

const serverErrorMessage = "Server error. Please try again later."

type Options struct {
	AllowedOrigin string
	AuthRequired  bool
	Logger        logrus.FieldLogger
	Metrics       *metrics.Metrics
	Location      *time.Location
	Now           func() time.Time
}

type API struct {
	service       *service.Service
	dashboard     *dashboard.Aggregator
	repo          store.Repository
	auth          *AuthManager
	metrics       *metrics.Metrics
	log           logrus.FieldLogger
	allowedOrigin string
	authRequired  bool
	loc           *time.Location
	now           func() time.Time
	loginLimiter  *attemptLimiter
	otpLimiter    *attemptLimiter
}

func New(svc *service.Service, dash *dashboard.Aggregator, repo store.Repository, auth *AuthManager, opts Options) *API {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &API{
		service:       svc,
		dashboard:     dash,
		repo:          repo,
		auth:          auth,
		metrics:       opts.Metrics,
		log:           opts.Logger,
		allowedOrigin: opts.AllowedOrigin,
		authRequired:  opts.AuthRequired,
		loc:           opts.Location,
		now:           opts.Now,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		otpLimiter:    newAttemptLimiter(5, time.Minute),
	}
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
	kept = append(kept, now)
	l.entries[key] = kept
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

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	a.route(mux, "/healthz", a.handleHealth)
	a.route(mux, "/api/health", a.handleHealth)
	a.route(mux, "/api/auth/login", a.handleLogin)
	a.route(mux, "/api/auth/change-password", a.handleChangePassword)
	a.route(mux, "/api/auth/forgot-password/send-otp", a.handleSendOTP)
	a.route(mux, "/api/auth/forgot-password/verify-otp", a.handleVerifyOTP)

	products := a.productsResource()
	a.route(mux, "/api/products", a.requireAuth(products.collection))
	a.route(mux, "/api/products/", a.requireAuth(products.item))
	categories := a.categoriesResource()
	a.route(mux, "/api/categories", a.requireAuth(categories.collection))
	a.route(mux, "/api/categories/", a.requireAuth(categories.item))
	repairs := a.repairsResource()
	a.route(mux, "/api/repairs", a.requireAuth(repairs.collection))
	a.route(mux, "/api/repairs/", a.requireAuth(repairs.item))
	others := a.othersResource()
	a.route(mux, "/api/others", a.requireAuth(others.collection))
	a.route(mux, "/api/others/", a.requireAuth(others.item))
	otherCategories := a.otherCategoriesResource()
	a.route(mux, "/api/other-categories", a.requireAuth(otherCategories.collection))
	a.route(mux, "/api/other-categories/", a.requireAuth(otherCategories.item))

	a.route(mux, "/api/billing", a.requireAuth(a.handleBills))
	a.route(mux, "/api/billing/", a.requireAuth(a.handleBillActions))
	a.route(mux, "/api/shop-settings", a.requireAuth(a.handleShopSettings))

	a.route(mux, "/api/dashboard/stats", a.requireAuth(a.handleDashboardStats))
	a.route(mux, "/api/dashboard/chart-data", a.requireAuth(a.handleChartData))
	a.route(mux, "/api/dashboard/download-excel", a.requireAuth(a.handleDownloadExcel))
	a.route(mux, "/api/dashboard/reset-all-data", a.requireAuth(a.handleResetAllData, "admin"))

	if a.metrics != nil {
		mux.Handle("/metrics", a.metrics.Handler())
	}

	return a.withMiddleware(mux)
}

// route registers h and records request metrics under the mux pattern, so
// item paths share one label.
func (a *API) route(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h(rec, r)
		if a.metrics != nil {
			a.metrics.ObserveRequest(r.Method, pattern, rec.status, time.Since(startedAt))
		}
	})
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !a.authRequired {
			actor := domain.Actor{Username: "anonymous", Role: "admin"}
			next(w, r.WithContext(service.WithActor(r.Context(), actor)))
			return
		}

		authorization := strings.TrimSpace(r.Header.Get("Authorization"))
		if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
			a.writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}

		token := strings.TrimSpace(authorization[len("Bearer "):])
		actor, err := a.auth.ParseToken(token)
		if err != nil {
			a.writeError(w, http.StatusUnauthorized, err)
			return
		}

		if len(roles) > 0 && !isRoleAllowed(actor.Role, roles) {
			a.writeError(w, http.StatusForbidden, errors.New("forbidden role"))
			return
		}

		next(w, r.WithContext(service.WithActor(r.Context(), actor)))
	}
}

func isRoleAllowed(role string, allowed []string) bool {
	for _, allow := range allowed {
		if role == allow {
			return true
		}
	}
	return false
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "OK",
		"message": "Server is running",
		"at":      time.Now().UTC().Format(time.RFC3339),
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")
		w.Header().Set("Vary", "Origin")

		if (r.Method == http.MethodPost || r.Method == http.MethodPatch || r.Method == http.MethodPut) && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		a.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     rec.status,
			"duration":   time.Since(startedAt).String(),
		}).Info("request")
	})
}

// decodeJSON tolerates unknown fields; the web client posts extra display
// data alongside requests.
func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(dest); err != nil {
		return badRequest("Invalid request body")
	}
	return nil
}

func (a *API) writeMethodNotAllowed(w http.ResponseWriter) {
	a.writeError(w, http.StatusMethodNotAllowed, errors.New("Method not allowed"))
}

// writeServiceError picks the status from the error kind. Locked data files
// keep their message so the user knows to close the workbook.
func (a *API) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		a.writeError(w, http.StatusUnauthorized, err)
	case errors.Is(err, store.ErrNotFound):
		a.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrInvalid), errors.Is(err, store.ErrConflict):
		a.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, store.ErrLocked):
		a.log.WithError(err).Error("data file locked")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"success": false, "message": store.ErrLocked.Error()})
	default:
		a.writeError(w, http.StatusInternalServerError, err)
	}
}

func (a *API) writeError(w http.ResponseWriter, status int, err error) {
	// 5xx bodies stay generic; the cause goes to the log.
	msg := err.Error()
	if status >= 500 {
		a.log.WithError(err).WithField("status", status).Error("internal error")
		msg = serverErrorMessage
	}
	writeJSON(w, status, map[string]any{
		"success": false,
		"message": msg,
	})
}

func writeData(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

func writeMessage(w http.ResponseWriter, message string, data any) {
	payload := map[string]any{"success": true, "message": message}
	if data != nil {
		payload["data"] = data
	}
	writeJSON(w, http.StatusOK, payload)
}

// writeJSON encodes before writing the header so an unencodable payload is
// reported as a 500 instead of an empty 200.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	body, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).Error("encode response")
		status = http.StatusInternalServerError
		body, _ = json.Marshal(map[string]any{"success": false, "message": serverErrorMessage})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(append(body, '\n'))
}
