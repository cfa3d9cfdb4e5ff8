package httpapi

import (
	"net/http"

	"github.com/ruralpay/ledger/internal/audit"
	"github.com/ruralpay/ledger/internal/bootstrap"
	"github.com/ruralpay/ledger/internal/ledger"
)

// AdminHandler serves operator-only routes. Every route here must sit
// behind middleware.AuthMiddleware in the router.
type AdminHandler struct {
	ledger *ledger.Service
	audit  *audit.Logger
}

// NewAdminHandler constructs an AdminHandler.
func NewAdminHandler(ledgerSvc *ledger.Service, auditLog *audit.Logger) *AdminHandler {
	return &AdminHandler{ledger: ledgerSvc, audit: auditLog}
}

// Bootstrap handles POST /api/admin/bootstrap.
// @Summary Create the cash and payout-liability accounts if absent
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{cash_account=string,liability_account=string}
// @Failure 401 {object} ErrorResponse
// @Router /admin/bootstrap [post]
func (h *AdminHandler) Bootstrap(w http.ResponseWriter, r *http.Request) {
	result, err := bootstrap.BootstrapAccounts(r.Context(), h.ledger, h.audit)
	if err != nil {
		SendErrorResponse(w, "bootstrap failed", http.StatusInternalServerError, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"cash_account":      result.CashAccount.ID,
		"liability_account": result.LiabilityAccount.ID,
	})
}
