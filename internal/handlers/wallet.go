package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/benefitmart/internal/handlers/render"
	"github.com/nkiryanov/benefitmart/internal/handlers/userctx"
	"github.com/nkiryanov/benefitmart/internal/logger"
)

func handleCurrentWallet(walletService walletService, l logger.Logger) http.Handler {
	type response struct {
		ID        uuid.UUID `json:"id"`
		Period    string    `json:"period"`
		Balance   int64     `json:"balance"`
		Reserved  int64     `json:"reserved"`
		Available int64     `json:"available"`
		ExpiresAt time.Time `json:"expires_at"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		wallet, err := walletService.Current(r.Context(), caller)
		if err != nil {
			renderError(w, r, err, l, "Failed to get wallet")
			return
		}

		render.JSON(w, response{
			ID:        wallet.ID,
			Period:    wallet.Period,
			Balance:   wallet.Balance,
			Reserved:  wallet.Reserved,
			Available: wallet.Available(),
			ExpiresAt: utc(wallet.ExpiresAt),
		})
	})
}

func handleWalletLedger(walletService walletService, l logger.Logger) http.Handler {
	type entry struct {
		ID          uuid.UUID  `json:"id"`
		OrderID     *uuid.UUID `json:"order_id,omitempty"`
		Type        string     `json:"type"`
		Amount      int64      `json:"amount"`
		Description string     `json:"description"`
		CreatedAt   time.Time  `json:"created_at"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		wallet, err := walletService.Current(r.Context(), caller)
		if err != nil {
			renderError(w, r, err, l, "Failed to get wallet")
			return
		}

		entries, err := walletService.Ledger(r.Context(), caller, wallet.ID)
		if err != nil {
			renderError(w, r, err, l, "Failed to list ledger")
			return
		}

		res := make([]entry, 0, len(entries))
		for _, e := range entries {
			res = append(res, entry{
				ID:          e.ID,
				OrderID:     e.OrderID,
				Type:        e.Type,
				Amount:      e.Amount,
				Description: e.Description,
				CreatedAt:   utc(e.CreatedAt),
			})
		}
		render.JSON(w, res)
	})
}

func handleReconcile(walletService walletService, l logger.Logger) http.Handler {
	type response struct {
		WalletID       uuid.UUID `json:"wallet_id"`
		Balance        int64     `json:"balance"`
		Reserved       int64     `json:"reserved"`
		LedgerBalance  int64     `json:"ledger_balance"`
		LedgerReserved int64     `json:"ledger_reserved"`
		Consistent     bool      `json:"consistent"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		walletID, ok := urlID(w, chi.URLParam(r, "walletID"), "wallet id")
		if !ok {
			return
		}

		report, err := walletService.Reconcile(r.Context(), caller, walletID)
		if err != nil {
			renderError(w, r, err, l, "Failed to reconcile wallet")
			return
		}

		render.JSON(w, response{
			WalletID:       report.WalletID,
			Balance:        report.Balance,
			Reserved:       report.Reserved,
			LedgerBalance:  report.LedgerBalance,
			LedgerReserved: report.LedgerReserved,
			Consistent:     report.Consistent(),
		})
	})
}
