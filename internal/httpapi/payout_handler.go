package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ruralpay/ledger/internal/events"
	"github.com/ruralpay/ledger/internal/money"
	"github.com/ruralpay/ledger/internal/payout"
	"github.com/ruralpay/ledger/internal/realtime"
)

// PayoutHandler serves the payout intake, lookup, and history endpoints.
type PayoutHandler struct {
	machine   *payout.Machine
	events    *events.Log
	publisher realtime.Publisher
	validator *ValidationHelper
}

// NewPayoutHandler constructs a PayoutHandler. publisher may be
// realtime.NoopPublisher{} when no broadcast channel is wired.
func NewPayoutHandler(machine *payout.Machine, eventLog *events.Log, publisher realtime.Publisher) *PayoutHandler {
	return &PayoutHandler{
		machine:   machine,
		events:    eventLog,
		publisher: publisher,
		validator: NewValidationHelper(),
	}
}

// Create handles POST /api/payouts/.
// @Summary Create a payout
// @Description Intake a payout by idempotency key; replays return the stored payout unchanged
// @Tags Payouts
// @Accept json
// @Produce json
// @Param request body createPayoutRequest true "Payout intake request"
// @Success 201 {object} payoutResponse
// @Success 200 {object} payoutResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /payouts [post]
func (h *PayoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createPayoutRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "invalid request body", http.StatusBadRequest, nil)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "validation failed", http.StatusBadRequest, err)
		return
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = "USD"
	}
	amount, err := money.Parse(req.Amount, currency)
	if err != nil || !amount.IsPositive() {
		SendErrorResponse(w, "amount must be a positive decimal string", http.StatusBadRequest, nil)
		return
	}

	p, created, err := h.machine.Intake(r.Context(), payout.Request{
		IdempotencyKey:   req.IdempotencyKey,
		AmountCents:      amount.Cents,
		Currency:         currency,
		RecipientAccount: req.RecipientAccount,
		RecipientName:    req.RecipientName,
		Description:      req.Description,
		Metadata:         payout.Metadata(req.Metadata),
	})
	if err != nil {
		writePayoutError(w, err)
		return
	}

	if created {
		h.publisher.Publish(r.Context(), "payout", toPayoutResponse(p))
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, toPayoutResponse(p))
}

// Get handles GET /api/payouts/{id}.
// @Summary Fetch a payout
// @Tags Payouts
// @Produce json
// @Param id path string true "Payout id"
// @Success 200 {object} payoutResponse
// @Failure 404 {object} ErrorResponse
// @Router /payouts/{id} [get]
func (h *PayoutHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.machine.Get(r.Context(), id)
	if err != nil {
		writePayoutError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayoutResponse(p))
}

// History handles GET /api/payouts/{id}/events.
// @Summary Fetch a payout's event trail
// @Tags Payouts
// @Produce json
// @Param id path string true "Payout id"
// @Success 200 {array} eventResponse
// @Router /payouts/{id}/events [get]
func (h *PayoutHandler) History(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	hist, err := h.machine.History(r.Context(), id)
	if err != nil {
		SendErrorResponse(w, "failed to read history", http.StatusInternalServerError, nil)
		return
	}
	out := make([]eventResponse, 0, len(hist))
	for _, e := range hist {
		out = append(out, toEventResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

// List handles GET /api/payouts?since=<created_at>,<id>&limit=<n>.
// @Summary List payouts by creation cursor
// @Tags Payouts
// @Produce json
// @Param since query string false "cursor as RFC3339 timestamp,id"
// @Param limit query int false "page size, default 50, max 200"
// @Success 200 {array} payoutResponse
// @Router /payouts [get]
func (h *PayoutHandler) List(w http.ResponseWriter, r *http.Request) {
	sinceCreatedAt, sinceID, err := parseCursor(r.URL.Query().Get("since"))
	if err != nil {
		SendErrorResponse(w, "invalid since cursor", http.StatusBadRequest, nil)
		return
	}
	limit := parseLimit(r.URL.Query().Get("limit"))

	payouts, err := h.machine.List(r.Context(), sinceCreatedAt, sinceID, limit)
	if err != nil {
		SendErrorResponse(w, "failed to list payouts", http.StatusInternalServerError, nil)
		return
	}
	out := make([]payoutResponse, 0, len(payouts))
	for i := range payouts {
		out = append(out, toPayoutResponse(&payouts[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

func writePayoutError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, payout.ErrValidation):
		SendErrorResponse(w, err.Error(), http.StatusBadRequest, nil)
	case errors.Is(err, payout.ErrIdempotencyConflict):
		SendErrorResponse(w, err.Error(), http.StatusConflict, nil)
	case errors.Is(err, payout.ErrConflict):
		SendErrorResponse(w, err.Error(), http.StatusConflict, nil)
	case errors.Is(err, payout.ErrIllegalTransition):
		SendErrorResponse(w, err.Error(), http.StatusUnprocessableEntity, nil)
	case errors.Is(err, payout.ErrNotFound):
		SendErrorResponse(w, err.Error(), http.StatusNotFound, nil)
	default:
		SendErrorResponse(w, "internal error", http.StatusInternalServerError, nil)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func parseLimit(raw string) int {
	const defaultLimit = 50
	const maxLimit = 200
	if raw == "" {
		return defaultLimit
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

// parseCursor decodes a "<RFC3339 timestamp>,<id>" cursor. An empty string
// starts from the beginning.
func parseCursor(raw string) (time.Time, string, error) {
	if raw == "" {
		return time.Time{}, "", nil
	}
	ts, id, ok := strings.Cut(raw, ",")
	if !ok {
		return time.Time{}, "", errors.New("httpapi: cursor must be '<timestamp>,<id>'")
	}
	parsed, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return time.Time{}, "", err
	}
	return parsed, id, nil
}
