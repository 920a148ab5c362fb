package api

import (
	"context"
	"crypto/subtle"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"meddispense/m/domain"
)

//go:embed templates/index.html
var templatesFS embed.FS

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

// Dispenser runs one batch against the robot.
type Dispenser interface {
	Dispense(ctx context.Context, items []domain.RequestItem) ([]string, error)
}

// CatalogReader lists the medication catalog.
type CatalogReader interface {
	List(ctx context.Context) ([]domain.Medication, error)
}

// LogReader lists recorded dispenses.
type LogReader interface {
	Recent(ctx context.Context, limit int) ([]domain.DispenseEvent, error)
}

// Options carries the HTTP layer's configuration.
type Options struct {
	Secret               string
	OperatorUser         string
	OperatorPasswordHash string
}

// Handler bundles dependencies for HTTP handlers.
type Handler struct {
	dispenser Dispenser
	catalog   CatalogReader
	log       LogReader
	flash     *flashStore
	opts      Options
	logger    *zap.Logger
	index     *template.Template
}

type indexView struct {
	Messages    []string
	Medications []domain.Medication
}

// New constructs a Handler.
func New(dispenser Dispenser, catalog CatalogReader, log LogReader, opts Options, logger *zap.Logger) (*Handler, error) {
	tmpl, err := template.ParseFS(templatesFS, "templates/index.html")
	if err != nil {
		return nil, err
	}
	return &Handler{
		dispenser: dispenser,
		catalog:   catalog,
		log:       log,
		flash:     newFlashStore(opts.Secret),
		opts:      opts,
		logger:    logger,
		index:     tmpl,
	}, nil
}

// Router wires up the HTTP endpoints.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.health)

	r.Group(func(pr chi.Router) {
		pr.Use(h.authMiddleware)

		pr.Get("/", h.showForm)
		pr.Post("/dispense", h.dispense)

		pr.Route("/api", func(r chi.Router) {
			r.Get("/medications", h.listMedications)
			r.Get("/dispensing-log", h.listDispenses)
		})
	})

	return r
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// authMiddleware requires the operator's basic-auth credentials when a
// password hash is configured.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.opts.OperatorPasswordHash == "" {
			next.ServeHTTP(w, r)
			return
		}
		user, password, ok := r.BasicAuth()
		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(h.opts.OperatorUser)) == 1
		if !ok || !userOK || bcrypt.CompareHashAndPassword([]byte(h.opts.OperatorPasswordHash), []byte(password)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="dispenser", charset="UTF-8"`)
			respondError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) showForm(w http.ResponseWriter, r *http.Request) {
	view := indexView{Messages: h.flash.pop(w, r)}

	meds, err := h.catalog.List(r.Context())
	if err != nil {
		h.logger.Warn("unable to list catalog for form", zap.Error(err))
	}
	view.Medications = meds

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.index.Execute(w, view); err != nil {
		h.logger.Error("unable to render form", zap.Error(err))
	}
}

func (h *Handler) dispense(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.flashAndRedirect(w, r, "Invalid form submission.")
		return
	}
	items, err := parseItems(r.PostForm)
	if err != nil {
		h.flashAndRedirect(w, r, err.Error())
		return
	}

	messages, err := h.dispenser.Dispense(r.Context(), items)
	if err != nil {
		messages = append(messages, "Dispensing aborted: "+err.Error())
	}
	h.flashAndRedirect(w, r, messages...)
}

func (h *Handler) flashAndRedirect(w http.ResponseWriter, r *http.Request, messages ...string) {
	if err := h.flash.add(w, r, messages...); err != nil {
		h.logger.Error("unable to queue flash messages", zap.Error(err))
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) listMedications(w http.ResponseWriter, r *http.Request) {
	meds, err := h.catalog.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to list medications")
		return
	}
	respondJSON(w, http.StatusOK, meds)
}

func (h *Handler) listDispenses(w http.ResponseWriter, r *http.Request) {
	limit := defaultLogLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, maxLogLimit)
	}

	events, err := h.log.Recent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load dispensing log")
		return
	}
	respondJSON(w, http.StatusOK, events)
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	_ = encoder.Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
