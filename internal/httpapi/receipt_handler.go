package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ruralpay/ledger/internal/payout"
	"github.com/ruralpay/ledger/internal/receipt"
)

// ReceiptHandler renders a scannable reconciliation receipt for a payout in
// any status; the transaction id is empty until the payout is Completed.
type ReceiptHandler struct {
	machine  *payout.Machine
	renderer *receipt.Renderer
}

// NewReceiptHandler constructs a ReceiptHandler.
func NewReceiptHandler(machine *payout.Machine, renderer *receipt.Renderer) *ReceiptHandler {
	return &ReceiptHandler{machine: machine, renderer: renderer}
}

type receiptResponse struct {
	PayoutID            string `json:"payout_id"`
	LedgerTransactionID string `json:"ledger_transaction_id,omitempty"`
	Status              string `json:"status"`
	QRImage             string `json:"qr_image"`
}

// Get handles GET /api/payouts/{id}/receipt. It encodes the payout id and
// its linked ledger transaction id (if any) into a QR code that
// reconciliation tooling can scan.
// @Summary Fetch a payout's reconciliation receipt
// @Tags Payouts
// @Produce json
// @Param id path string true "Payout id"
// @Success 200 {object} receiptResponse
// @Failure 404 {object} ErrorResponse
// @Router /payouts/{id}/receipt [get]
func (h *ReceiptHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, err := h.machine.Get(r.Context(), id)
	if err != nil {
		writePayoutError(w, err)
		return
	}

	transactionID := ""
	if p.LinkedTransactionID != nil {
		transactionID = *p.LinkedTransactionID
	}

	qrImage, err := h.renderer.Render(r.Context(), p.ID, transactionID)
	if err != nil {
		SendErrorResponse(w, "failed to render receipt", http.StatusInternalServerError, nil)
		return
	}

	writeJSON(w, http.StatusOK, receiptResponse{
		PayoutID:            p.ID,
		LedgerTransactionID: transactionID,
		Status:              string(p.Status),
		QRImage:             qrImage,
	})
}
