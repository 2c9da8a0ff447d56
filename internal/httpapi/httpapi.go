package httpapi

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/netip"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"thredvault/backend/internal/domain"
	"thredvault/backend/internal/logging"
	"thredvault/backend/internal/metrics"
	"thredvault/backend/internal/service"
)

const (
	RoleAdmin  = "admin"
	RoleViewer = "viewer"
)

type API struct {
	service       *service.Service
	auth          *AuthManager
	allowedOrigin string
	loginLimiter  *attemptLimiter
	csrfSecret    []byte
	validate      *validator.Validate
	metrics       *metrics.Metrics
	logger        *logrus.Logger
}

type Option func(*API)

func WithLogger(l *logrus.Logger) Option {
	return func(a *API) { a.logger = l }
}

// WithMetrics records every request and exposes the registry on /metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *API) { a.metrics = m }
}

func New(svc *service.Service, auth *AuthManager, allowedOrigin string, opts ...Option) *API {
	csrfSecret := make([]byte, 32)
	if _, err := rand.Read(csrfSecret); err != nil {
		csrfSecret = []byte("csrf-fallback-secret-change-me!!")
	}
	a := &API{
		service:       svc,
		auth:          auth,
		allowedOrigin: allowedOrigin,
		loginLimiter:  newAttemptLimiter(5, time.Minute),
		csrfSecret:    csrfSecret,
		validate:      newValidator(),
		logger:        logging.Discard(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// newValidator reports field names as they appear in the JSON body.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// csrfTokenForHour computes an HMAC-SHA256 token for the given hour bucket
// (expressed as Unix time truncated to the hour). The token is hex-encoded.
func (a *API) csrfTokenForHour(hourBucket int64) string {
	h := hmac.New(sha256.New, a.csrfSecret)
	fmt.Fprintf(h, "%d", hourBucket)
	return hex.EncodeToString(h.Sum(nil))
}

func (a *API) generateCSRFToken() string {
	bucket := time.Now().UTC().Truncate(time.Hour).Unix()
	return a.csrfTokenForHour(bucket)
}

// validateCSRFToken accepts the token of the current or the previous hour.
func (a *API) validateCSRFToken(token string) bool {
	if token == "" {
		return false
	}
	current := time.Now().UTC().Truncate(time.Hour).Unix()
	for _, bucket := range []int64{current, current - 3600} {
		if hmac.Equal([]byte(token), []byte(a.csrfTokenForHour(bucket))) {
			return true
		}
	}
	return false
}

// attemptLimiter keeps one token bucket per client: max attempts may be
// spent at once, then one more is earned every window/max.
type attemptLimiter struct {
	mu       sync.Mutex
	max      int
	every    rate.Limit
	limiters map[string]*rate.Limiter
}

func newAttemptLimiter(max int, window time.Duration) *attemptLimiter {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &attemptLimiter{
		max:      max,
		every:    rate.Every(window / time.Duration(max)),
		limiters: make(map[string]*rate.Limiter),
	}
}

func (l *attemptLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	limiter, ok := l.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(l.every, l.max)
		l.limiters[key] = limiter
	}
	l.mu.Unlock()
	return limiter.Allow()
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
	read := []string{RoleAdmin, RoleViewer}

	mux.HandleFunc("GET /healthz", a.handleHealth)
	if a.metrics != nil {
		mux.Handle("GET /metrics", a.metrics.Handler())
	}
	mux.HandleFunc("POST /api/v1/auth/login", a.handleLogin)
	mux.HandleFunc("GET /api/v1/auth/csrf-token", a.handleCSRFToken)

	mux.HandleFunc("GET /api/v1/catalog", a.requireAuth(a.handleCatalog, read...))

	mux.HandleFunc("GET /api/v1/inventory", a.requireAuth(a.handleInventory, read...))
	mux.HandleFunc("POST /api/v1/inventory/receive", a.requireAuth(a.handleReceiveStock, RoleAdmin))
	mux.HandleFunc("POST /api/v1/inventory/quantity", a.requireAuth(a.handleSetQuantity, RoleAdmin))
	mux.HandleFunc("POST /api/v1/inventory/purge", a.requireAuth(a.handlePurge, RoleAdmin))
	mux.HandleFunc("POST /api/v1/inventory/rebuild", a.requireAuth(a.handleRebuild, RoleAdmin))
	mux.HandleFunc("POST /api/v1/inventory/groups/{group}/recompute", a.requireAuth(a.handleRecomputeGroup, RoleAdmin))
	mux.HandleFunc("POST /api/v1/inventory/groups/{group}/cost", a.requireAuth(a.handleSetGroupCost, RoleAdmin))

	mux.HandleFunc("GET /api/v1/orders", a.requireAuth(a.handleListOrders, read...))
	mux.HandleFunc("POST /api/v1/orders", a.requireAuth(a.handleCreateOrder, RoleAdmin))
	mux.HandleFunc("GET /api/v1/orders/{id}", a.requireAuth(a.handleGetOrder, read...))
	mux.HandleFunc("DELETE /api/v1/orders/{id}", a.requireAuth(a.handleDeleteOrder, RoleAdmin))
	mux.HandleFunc("POST /api/v1/orders/{id}/payment", a.requireAuth(a.handleAdjustPayment, RoleAdmin))
	mux.HandleFunc("POST /api/v1/orders/{id}/lines/{group}/receive", a.requireAuth(a.handleReceiveLine, RoleAdmin))
	mux.HandleFunc("POST /api/v1/orders/{id}/lines/{group}/close", a.requireAuth(a.handleCloseLine, RoleAdmin))
	mux.HandleFunc("DELETE /api/v1/orders/{id}/lines/{group}", a.requireAuth(a.handleDeleteLine, RoleAdmin))

	mux.HandleFunc("GET /api/v1/sales", a.requireAuth(a.handleListSales, read...))
	mux.HandleFunc("POST /api/v1/sales", a.requireAuth(a.handleRecordSale, RoleAdmin))
	mux.HandleFunc("POST /api/v1/sales/{id}/price", a.requireAuth(a.handleEditSalePrice, RoleAdmin))
	mux.HandleFunc("POST /api/v1/sales/{id}/complete", a.requireAuth(a.handleCompleteSale, RoleAdmin))
	mux.HandleFunc("POST /api/v1/sales/{id}/return", a.requireAuth(a.handleReturnSale, RoleAdmin))

	mux.HandleFunc("GET /api/v1/ledger", a.requireAuth(a.handleLedger, read...))
	mux.HandleFunc("GET /api/v1/ledger/events", a.requireAuth(a.handleLedgerEvents, read...))
	mux.HandleFunc("GET /api/v1/ledger/verify", a.requireAuth(a.handleVerifyLedger, read...))
	mux.HandleFunc("POST /api/v1/ledger/cash", a.requireAuth(a.handleSetCash, RoleAdmin))
	mux.HandleFunc("POST /api/v1/ledger/payables", a.requireAuth(a.handleSetPayables, RoleAdmin))
	mux.HandleFunc("POST /api/v1/backups", a.requireAuth(a.handleBackup, RoleAdmin))

	mux.HandleFunc("GET /api/v1/reports/dashboard", a.requireAuth(a.handleDashboard, read...))
	mux.HandleFunc("GET /api/v1/reports/period", a.requireAuth(a.handlePeriod, read...))
	mux.HandleFunc("GET /api/v1/reports/groups", a.requireAuth(a.handleGroupReport, read...))
	mux.HandleFunc("GET /api/v1/reports/cost-basis", a.requireAuth(a.handleCostBasis, read...))
	mux.HandleFunc("GET /api/v1/reports/packing-list", a.requireAuth(a.handlePackingList, read...))
	mux.HandleFunc("GET /api/v1/reports/export.xlsx", a.requireAuth(a.handleExport, read...))

	return a.withMiddleware(mux)
}

func (a *API) requireAuth(next http.HandlerFunc, roles ...string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
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

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok": true,
		"at": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !a.loginLimiter.Allow(clientKey(r)) {
		a.writeError(w, http.StatusTooManyRequests, errors.New("too many login attempts"))
		return
	}

	var req domain.LoginRequest
	if err := a.decode(r, &req); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return
	}

	resp, err := a.auth.Login(r.Context(), req)
	if err != nil {
		a.writeError(w, http.StatusUnauthorized, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleCSRFToken returns a stateless CSRF token valid for the current hour bucket.
// Clients must include this token in the X-CSRF-Token header for all mutating requests.
func (a *API) handleCSRFToken(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"csrf_token": a.generateCSRFToken(),
	})
}

// Login is called before a token can be fetched.
var csrfExemptPaths = []string{
	"/api/v1/auth/login",
}

// checkCSRF enforces the token on state-changing methods and writes the
// error response itself when it fails.
func (a *API) checkCSRF(w http.ResponseWriter, r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return true
	}
	for _, exempt := range csrfExemptPaths {
		if r.URL.Path == exempt {
			return true
		}
	}
	token := strings.TrimSpace(r.Header.Get("X-CSRF-Token"))
	if !a.validateCSRFToken(token) {
		a.writeError(w, http.StatusForbidden, errors.New("missing or invalid CSRF token"))
		return false
	}
	return true
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
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("Cross-Origin-Opener-Policy", "same-origin")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		if !a.checkCSRF(w, r) {
			return
		}

		startedAt := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		elapsed := time.Since(startedAt)

		// The matched pattern keeps ids out of the metric labels.
		pattern := r.Pattern
		if pattern == "" {
			pattern = "unmatched"
		}
		a.metrics.RecordHTTPRequest(r.Method, pattern, rec.status, elapsed)
		a.logger.WithFields(logrus.Fields{
			"module":   "http",
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": elapsed.String(),
		}).Debug("request served")
	})
}

// decode reads a JSON body, rejecting unknown fields, then applies the
// request type's validation tags.
func (a *API) decode(r *http.Request, dest any) error {
	if err := decodeJSON(r, dest); err != nil {
		return err
	}
	if err := a.validate.Struct(dest); err != nil {
		var invalid validator.ValidationErrors
		if errors.As(err, &invalid) {
			fields := make([]string, 0, len(invalid))
			for _, fe := range invalid {
				fields = append(fields, fe.Namespace()+" "+fe.Tag())
			}
			return fmt.Errorf("%w: %s", domain.ErrInvalidInput, strings.Join(fields, ", "))
		}
		return err
	}
	return nil
}

func decodeJSON(r *http.Request, dest any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		return err
	}
	return nil
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

func pathID(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.PathValue("id"))
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("%w: bad id %q", domain.ErrInvalidInput, raw)
	}
	return id, nil
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrItemNotFound),
		errors.Is(err, domain.ErrOrderNotFound),
		errors.Is(err, domain.ErrLineNotFound),
		errors.Is(err, domain.ErrSaleNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrOutOfStock), errors.Is(err, domain.ErrLineClosed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrBackupUnsupported):
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) fail(w http.ResponseWriter, err error) {
	a.writeError(w, statusFor(err), err)
}

// writeError hides the message of 5xx responses; 4xx messages are meant
// for the caller.
func (a *API) writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		a.logger.WithField("module", "http").WithField("status", status).WithError(err).Error("internal error")
		msg = "internal server error"
	}
	writeJSON(w, status, map[string]any{
		"error": msg,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
