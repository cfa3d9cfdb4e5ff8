package httpapi

import (
	"net/http"
	"strconv"

	"github.com/ruralpay/ledger/internal/events"
)

// EventHandler serves the global event-log read endpoint.
type EventHandler struct {
	log *events.Log
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(log *events.Log) *EventHandler {
	return &EventHandler{log: log}
}

// List handles GET /api/events?since=<seq>&limit=<n>.
// @Summary List events since a sequence number
// @Tags Events
// @Produce json
// @Param since query int false "sequence number watermark, default 0"
// @Param limit query int false "page size, default 50, max 200"
// @Success 200 {array} eventResponse
// @Router /events [get]
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	since := parseSequence(r.URL.Query().Get("since"))
	limit := parseLimit(r.URL.Query().Get("limit"))

	evs, err := h.log.ReadEvents(r.Context(), since, limit)
	if err != nil {
		SendErrorResponse(w, "failed to read events", http.StatusInternalServerError, nil)
		return
	}
	out := make([]eventResponse, 0, len(evs))
	for _, e := range evs {
		out = append(out, toEventResponse(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func parseSequence(raw string) int64 {
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
