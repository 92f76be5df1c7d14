package hooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Ashfaaq98/cortex-analyzer/internal/ratelimit"
)

// HTTPOptions controls the hook intake server.
type HTTPOptions struct {
	// Bind address, e.g. "127.0.0.1:8088"
	Bind string
	// Token for Authorization: Bearer <token>. Empty disables auth.
	Token string
	// RPS is max requests per second. 0 disables rate limiting.
	RPS int
	// Burst is the token bucket size. Defaults to RPS.
	Burst int
	// MaxBodyBytes caps request body size; defaults to 1 MiB.
	MaxBodyBytes int64
	// MaxIOCs caps the batch size of one request; defaults to 100.
	MaxIOCs int
}

// HookRequest is the body of POST /api/v1/hooks/{hook}.
type HookRequest struct {
	IOCs []IOC `json:"iocs" validate:"required,min=1,dive"`
}

// HookResponse lists the per-IOC outcomes in request order.
type HookResponse struct {
	RequestID string    `json:"request_id"`
	Hook      Hook      `json:"hook"`
	Outcomes  []Outcome `json:"outcomes"`
}

type errorResponse struct {
	RequestID string   `json:"request_id,omitempty"`
	Error     string   `json:"error"`
	Details   []string `json:"details,omitempty"`
}

// HTTPServer exposes the dispatcher over HTTP.
type HTTPServer struct {
	srv        *http.Server
	opts       HTTPOptions
	dispatcher *Dispatcher
	limiter    *ratelimit.Limiter
	validate   *validator.Validate
	logger     logrus.FieldLogger
	started    int32
}

type ctxKey uint8

const requestIDKey ctxKey = iota

// NewHTTPServer builds the router; call Start to listen.
func NewHTTPServer(opts HTTPOptions, d *Dispatcher, logger logrus.FieldLogger) *HTTPServer {
	if opts.Bind == "" {
		opts.Bind = "127.0.0.1:8088"
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = 1 << 20
	}
	if opts.MaxIOCs <= 0 {
		opts.MaxIOCs = 100
	}
	h := &HTTPServer{
		opts:       opts,
		dispatcher: d,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     logger.WithField("component", "http-hooks"),
	}
	if opts.RPS > 0 {
		h.limiter = ratelimit.New(opts.RPS, opts.Burst, time.Second)
	}

	h.srv = &http.Server{
		Addr:              opts.Bind,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return h
}

// Routes returns the chi router.
func (h *HTTPServer) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(h.requestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", h.handleHealth)
	r.Group(func(r chi.Router) {
		r.Use(h.authenticate)
		r.Use(h.rateLimit)
		r.Post("/api/v1/hooks/{hook}", h.handleHook)
	})
	return r
}

// Start binds the listener and serves until ctx is done.
func (h *HTTPServer) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&h.started, 0, 1) {
		return errors.New("http hook server already started")
	}
	ln, err := net.Listen("tcp", h.opts.Bind)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", h.opts.Bind, err)
	}
	h.logger.WithFields(logrus.Fields{
		"bind":  h.opts.Bind,
		"rps":   h.opts.RPS,
		"burst": h.opts.Burst,
		"auth":  h.opts.Token != "",
	}).Info("HTTP hook intake listening")

	go func() {
		if err := h.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			h.logger.WithError(err).Error("HTTP server error")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := h.srv.Shutdown(shutdownCtx); err != nil {
			h.logger.WithError(err).Warn("Graceful shutdown failed")
		}
		h.Close()
	}()
	return nil
}

// Close releases the rate limiter.
func (h *HTTPServer) Close() {
	if h.limiter != nil {
		h.limiter.Close()
	}
}

func (h *HTTPServer) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))
	})
}

func (h *HTTPServer) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.opts.Token != "" {
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")) != h.opts.Token {
				w.Header().Set("WWW-Authenticate", `Bearer realm="cortex-analyzer"`)
				h.writeError(w, r, http.StatusUnauthorized, "unauthorized")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *HTTPServer) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter != nil {
			if err := h.limiter.Wait(r.Context()); err != nil {
				h.writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPServer) handleHook(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	hook, err := ParseHook(chi.URLParam(r, "hook"))
	if err != nil {
		h.writeError(w, r, http.StatusNotFound, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes)
	defer r.Body.Close()
	var req HookRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.writeValidationError(w, r, err)
		return
	}
	if len(req.IOCs) > h.opts.MaxIOCs {
		h.writeError(w, r, http.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d iocs per request", h.opts.MaxIOCs))
		return
	}

	outcomes, err := h.dispatcher.Handle(r.Context(), hook, req.IOCs)
	switch {
	case errors.Is(err, ErrHookDisabled):
		h.writeError(w, r, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}

	rid, _ := r.Context().Value(requestIDKey).(string)
	writeJSON(w, http.StatusOK, HookResponse{RequestID: rid, Hook: hook, Outcomes: outcomes})
	h.logger.WithFields(logrus.Fields{
		"request_id": rid,
		"hook":       hook,
		"iocs":       len(req.IOCs),
		"remote":     remoteIP(r.RemoteAddr),
		"dur":        time.Since(start).String(),
	}).Info("Hook handled")
}

func (h *HTTPServer) writeValidationError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		h.writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	details := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
	}
	rid, _ := r.Context().Value(requestIDKey).(string)
	writeJSON(w, http.StatusUnprocessableEntity, errorResponse{RequestID: rid, Error: "validation failed", Details: details})
}

func (h *HTTPServer) writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	rid, _ := r.Context().Value(requestIDKey).(string)
	writeJSON(w, status, errorResponse{RequestID: rid, Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func remoteIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
