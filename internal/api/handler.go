// internal/api/handler.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"libraryledger/internal/library"
	"libraryledger/internal/membership"
)

// Store persists the library after each successful mutation.
type Store interface {
	Save(ctx context.Context, lib *library.Library) error
}

// Handler serves the library over HTTP. Requests are handled one at a time
// against the shared library.
type Handler struct {
	mu      sync.Mutex
	lib     *library.Library
	store   Store
	logger  *slog.Logger
	limiter *rate.Limiter
}

// NewHandler creates a handler. A nil limiter lets every write through and a
// nil logger discards output.
func NewHandler(lib *library.Library, store Store, logger *slog.Logger, limiter *rate.Limiter) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 0)
	}
	return &Handler{
		lib:     lib,
		store:   store,
		logger:  logger.With("component", "api"),
		limiter: limiter,
	}
}

// NewLimiter allows perMinute writes per minute with the given burst.
func NewLimiter(perMinute, burst int) *rate.Limiter {
	if perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)
}

// Routes builds the router.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.logRequests)

	r.Get("/stats", h.handleStats)
	r.Get("/members", h.handleListMembers)
	r.Get("/members/{last}/{first}", h.handleGetMember)
	r.Get("/members/{last}/{first}/loans", h.handleMemberLoans)
	r.Get("/items", h.handleListItems)
	r.Get("/items/search", h.handleSearchItems)
	r.Get("/items/{id}", h.handleGetItem)
	r.Get("/books", h.handleListBooks)
	r.Get("/loans", h.handleListLoans)

	r.Group(func(r chi.Router) {
		r.Use(h.limitWrites)
		r.Post("/members", h.handleAddMember)
		r.Delete("/members/{last}/{first}", h.handleRemoveMember)
		r.Post("/items", h.handleAddItem)
		r.Delete("/items/{id}", h.handleRemoveItem)
		r.Post("/loans", h.handleCreateLoan)
		r.Post("/loans/{id}/prolong", h.handleProlongLoan)
		r.Post("/returns", h.handleReturnLoan)
	})
	return r
}

func (h *Handler) limitWrites(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.logger.Info("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

type memberRequest struct {
	LastName  string `json:"last_name"`
	FirstName string `json:"first_name"`
	Email     string `json:"email"`
}

func (req memberRequest) member() (*membership.Member, error) {
	if req.LastName == "" || req.FirstName == "" {
		return nil, badRequest("last_name and first_name are required")
	}
	if err := checkFields(map[string]string{
		"last_name":  req.LastName,
		"first_name": req.FirstName,
		"email":      req.Email,
	}); err != nil {
		return nil, err
	}
	return &membership.Member{LastName: req.LastName, FirstName: req.FirstName, Email: req.Email}, nil
}

// persist saves the library. The caller must hold h.mu.
func (h *Handler) persist(ctx context.Context) error {
	if h.store == nil {
		return nil
	}
	if err := h.store.Save(ctx, h.lib); err != nil {
		h.logger.Error("persist library", "error", err)
		return err
	}
	return nil
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	writeJSON(w, http.StatusOK, h.lib.Statistics())
}

func (h *Handler) handleListMembers(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	writeJSON(w, http.StatusOK, nonNil(h.lib.Members()))
}

func (h *Handler) handleGetMember(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, err := h.memberFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (h *Handler) handleMemberLoans(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, err := h.memberFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.loanResponses(h.lib.LoansForMember(m)))
}

func (h *Handler) handleAddMember(w http.ResponseWriter, r *http.Request) {
	var req memberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	m, err := req.member()
	if err != nil {
		writeError(w, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.lib.AddMember(m); err != nil {
		writeError(w, err)
		return
	}
	if err := h.persist(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (h *Handler) handleRemoveMember(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()

	m, err := h.memberFromPath(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := h.lib.RemoveMember(m); err != nil {
		writeError(w, err)
		return
	}
	if err := h.persist(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// memberFromPath resolves the {last}/{first} URL parameters.
func (h *Handler) memberFromPath(r *http.Request) (*membership.Member, error) {
	last, err := url.PathUnescape(chi.URLParam(r, "last"))
	if err != nil {
		return nil, badRequest("invalid last name")
	}
	first, err := url.PathUnescape(chi.URLParam(r, "first"))
	if err != nil {
		return nil, badRequest("invalid first name")
	}
	m := h.lib.FindMember(last, first)
	if m == nil {
		return nil, library.ErrMemberNotFound
	}
	return m, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// checkFields rejects values the comma-separated data files cannot hold.
func checkFields(fields map[string]string) error {
	for name, value := range fields {
		if strings.ContainsAny(value, ",\r\n") {
			return badRequest(name + " must not contain commas or line breaks")
		}
	}
	return nil
}

var errBadRequest = errors.New("bad request")

func badRequest(msg string) error {
	return &requestError{msg: msg}
}

type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }
func (e *requestError) Unwrap() error { return errBadRequest }
