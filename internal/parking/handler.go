package parking

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/citypark/citypark/internal/auth"
	"github.com/citypark/citypark/internal/platform/httpx"
	"github.com/citypark/citypark/internal/shared"
)

var platePattern = regexp.MustCompile(`^[A-Z]{3}-[0-9]{4}$`)

// Handler exposes the ledger and slot pool over HTTP.
type Handler struct {
	logger       *slog.Logger
	ledger       *SessionLedger
	directory    ClientDirectory
	money        MoneyFormatter
	validator    *validator.Validate
	checkInLimit int
	idempotency  Idempotency
}

// Idempotency remembers which receipt a client supplied request key produced.
// *shared.IdempotencyStore satisfies it.
type Idempotency interface {
	Begin(ctx context.Context, module, key string) (result string, done bool, err error)
	Complete(ctx context.Context, module, key, result string) error
	Delete(ctx context.Context, module, key string) error
}

const maxIdempotencyKeyLen = 128

// HandlerConfig groups optional handler settings.
type HandlerConfig struct {
	Money MoneyFormatter
	// CheckInLimit caps check-ins per client IP per minute; zero disables it.
	CheckInLimit int
	// Idempotency enables the Idempotency-Key header on check-in; nil disables it.
	Idempotency Idempotency
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, ledger *SessionLedger, directory ClientDirectory, cfg HandlerConfig) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("plate", func(fl validator.FieldLevel) bool {
		return platePattern.MatchString(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
	})
	return &Handler{
		logger:       logger,
		ledger:       ledger,
		directory:    directory,
		money:        cfg.Money,
		validator:    v,
		checkInLimit: cfg.CheckInLimit,
		idempotency:  cfg.Idempotency,
	}
}

// MountRoutes registers parking and slot routes. Callers must already be
// authenticated.
func (h *Handler) MountRoutes(r chi.Router) {
	admin := auth.RequireRole(shared.RoleAdmin)
	anyone := auth.RequireRole(shared.RoleAdmin, shared.RoleClient)
	client := auth.RequireRole(shared.RoleClient)

	r.Route("/parking", func(r chi.Router) {
		checkIn := r.With(admin)
		if h.checkInLimit > 0 {
			checkIn = checkIn.With(httprate.Limit(h.checkInLimit, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint)))
		}
		checkIn.Post("/check-in", h.handleCheckIn)
		r.With(anyone).Get("/check-in/{receipt}", h.handleGetSession)
		r.With(admin).Put("/check-out/{receipt}", h.handleCheckOut)
		r.With(admin).Get("/clients/{document}", h.handleListByClient)
		r.With(client).Get("/", h.handleListMine)
	})
	r.Route("/slots", func(r chi.Router) {
		r.Use(admin)
		r.Post("/", h.handleProvisionSlot)
		r.Get("/", h.handleOccupancy)
		r.Get("/{code}", h.handleGetSlot)
	})
}

func (h *Handler) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	var req CheckInRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if fields := h.validate(req); len(fields) > 0 {
		httpx.ValidationProblem(w, r, fields)
		return
	}
	key := strings.TrimSpace(r.Header.Get("Idempotency-Key"))
	if len(key) > maxIdempotencyKeyLen {
		httpx.ValidationProblem(w, r, map[string]string{"Idempotency-Key": "must be at most 128 characters"})
		return
	}
	if key == "" || h.idempotency == nil {
		session, err := h.ledger.CheckIn(r.Context(), req.Input())
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		h.writeCheckIn(w, session)
		return
	}
	h.checkInOnce(w, r, key, req.Input())
}

// checkInOnce runs a check-in at most once per caller and key. Repeats of a
// completed key replay the original session.
func (h *Handler) checkInOnce(w http.ResponseWriter, r *http.Request, key string, in CheckInInput) {
	ctx := r.Context()
	scope := "parking.check-in"
	if caller, ok := shared.CallerFromContext(ctx); ok {
		scope += ":" + strconv.FormatInt(caller.UserID, 10)
	}

	receipt, done, err := h.idempotency.Begin(ctx, scope, key)
	switch {
	case errors.Is(err, shared.ErrIdempotencyConflict):
		httpx.Problem(w, r, http.StatusConflict, "Request In Progress", err.Error())
		return
	case err != nil:
		h.logger.Warn("idempotency unavailable, checking in without it", slog.Any("error", err))
		session, err := h.ledger.CheckIn(ctx, in)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		h.writeCheckIn(w, session)
		return
	case done:
		session, err := h.ledger.FindByReceipt(ctx, receipt)
		if err != nil {
			h.respondError(w, r, err)
			return
		}
		w.Header().Set("Idempotent-Replayed", "true")
		h.writeCheckIn(w, session)
		return
	}

	detached := context.WithoutCancel(ctx)
	session, err := h.ledger.CheckIn(ctx, in)
	if err != nil {
		if derr := h.idempotency.Delete(detached, scope, key); derr != nil {
			h.logger.Warn("release idempotency key", slog.Any("error", derr))
		}
		h.respondError(w, r, err)
		return
	}
	if err := h.idempotency.Complete(detached, scope, key, session.Receipt); err != nil {
		h.logger.Warn("complete idempotency key", slog.String("receipt", session.Receipt), slog.Any("error", err))
	}
	h.writeCheckIn(w, session)
}

func (h *Handler) writeCheckIn(w http.ResponseWriter, session Session) {
	w.Header().Set("Location", "/api/v1/parking/check-in/"+session.Receipt)
	httpx.JSON(w, http.StatusCreated, ToSessionResponse(session, h.money))
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := h.ledger.FindByReceipt(r.Context(), chi.URLParam(r, "receipt"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if !h.visibleTo(r.Context(), session) {
		h.respondError(w, r, ErrSessionNotFound)
		return
	}
	httpx.JSON(w, http.StatusOK, ToSessionResponse(session, h.money))
}

// visibleTo hides other clients' sessions from CLIENT callers.
func (h *Handler) visibleTo(ctx context.Context, s Session) bool {
	caller, ok := shared.CallerFromContext(ctx)
	if !ok {
		return false
	}
	if caller.Role == shared.RoleAdmin {
		return true
	}
	client, err := h.directory.FindByUserID(ctx, caller.UserID)
	if err != nil {
		return false
	}
	return client.DocumentID == s.DocumentID
}

func (h *Handler) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	session, err := h.ledger.CheckOut(r.Context(), chi.URLParam(r, "receipt"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ToSessionResponse(session, h.money))
}

func (h *Handler) handleListByClient(w http.ResponseWriter, r *http.Request) {
	page, fields := parsePage(r)
	if len(fields) > 0 {
		httpx.ValidationProblem(w, r, fields)
		return
	}
	result, err := h.ledger.ListByClient(r.Context(), chi.URLParam(r, "document"), page)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ToSessionPageResponse(result, h.money))
}

func (h *Handler) handleListMine(w http.ResponseWriter, r *http.Request) {
	page, fields := parsePage(r)
	if len(fields) > 0 {
		httpx.ValidationProblem(w, r, fields)
		return
	}
	result, err := h.ledger.ListForCurrentClient(r.Context(), page)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ToSessionPageResponse(result, h.money))
}

func (h *Handler) handleProvisionSlot(w http.ResponseWriter, r *http.Request) {
	var req ProvisionSlotRequest
	if err := httpx.DecodeJSON(w, r, &req); err != nil {
		httpx.RespondError(w, r, err)
		return
	}
	if fields := h.validate(req); len(fields) > 0 {
		httpx.ValidationProblem(w, r, fields)
		return
	}
	slot, err := h.ledger.Slots().Provision(r.Context(), req.Code)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/slots/"+slot.Code)
	httpx.JSON(w, http.StatusCreated, ToSlotResponse(slot))
}

func (h *Handler) handleGetSlot(w http.ResponseWriter, r *http.Request) {
	slot, err := h.ledger.Slots().FindByCode(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ToSlotResponse(slot))
}

func (h *Handler) handleOccupancy(w http.ResponseWriter, r *http.Request) {
	occ, err := h.ledger.Slots().Occupancy(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ToOccupancyResponse(occ))
}

func (h *Handler) validate(payload any) map[string]string {
	fields := make(map[string]string)
	err := h.validator.Struct(payload)
	if err == nil {
		return fields
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		fields["body"] = err.Error()
		return fields
	}
	for _, fieldErr := range verrs {
		fields[fieldErr.Field()] = describe(fieldErr)
	}
	return fields
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	case "numeric":
		return "must contain only digits"
	case "plate":
		return "must match AAA-0000"
	default:
		return fe.Error()
	}
}

func parsePage(r *http.Request) (PageRequest, map[string]string) {
	fields := make(map[string]string)
	var page PageRequest
	q := r.URL.Query()
	if raw := q.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			fields["page"] = "must be a non-negative integer"
		}
		page.Number = n
	}
	if raw := q.Get("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > MaxPageSize {
			fields["size"] = "must be between 1 and " + strconv.Itoa(MaxPageSize)
		}
		page.Size = n
	}
	return page.Normalize(), fields
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		httpx.ValidationProblem(w, r, verr.Fields)
	case errors.Is(err, ErrClientNotFound):
		httpx.Problem(w, r, http.StatusNotFound, "Client Not Found", err.Error())
	case errors.Is(err, ErrSessionNotFound):
		httpx.Problem(w, r, http.StatusNotFound, "Session Not Found", err.Error())
	case errors.Is(err, ErrNoFreeSlot):
		httpx.Problem(w, r, http.StatusNotFound, "No Free Slot", err.Error())
	case errors.Is(err, ErrSlotNotFound):
		httpx.Problem(w, r, http.StatusNotFound, "Slot Not Found", err.Error())
	case errors.Is(err, ErrInvalidState):
		httpx.Problem(w, r, http.StatusConflict, "Invalid State", err.Error())
	case errors.Is(err, ErrReceiptCollision):
		httpx.Problem(w, r, http.StatusConflict, "Receipt Collision", err.Error())
	case errors.Is(err, ErrDuplicateSlot):
		httpx.Problem(w, r, http.StatusConflict, "Duplicate Slot", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		httpx.Problem(w, r, http.StatusServiceUnavailable, "Timeout", "request deadline exceeded")
	default:
		h.logger.Error("parking request failed",
			slog.String("path", r.URL.Path), slog.String("method", r.Method), slog.Any("error", err))
		httpx.RespondError(w, r, err)
	}
}
