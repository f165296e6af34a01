package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type Middleware func(http.Handler) http.Handler

type RouterDeps struct {
	Health        *HealthHandler
	Wallets       *WalletHandler
	Transfers     *TransferHandler
	Loans         *LoanHandler
	TransferCodes *TransferCodeHandler
	Funding       *FundingHandler
	Webhooks      *WebhookHandler

	Auth         Middleware
	RequireAdmin Middleware
	Idempotency  Middleware
}

// NewRouter assembles the full route tree. Webhook intake sits outside auth;
// admin decisions sit behind the role gate; money-moving user mutations run
// through the idempotency cache.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health/live", deps.Health.Liveness)
	r.Get("/health/ready", deps.Health.Readiness)

	r.Post("/api/v1/webhooks/gateway", deps.Webhooks.ReceiveGatewayWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(deps.Auth)

		r.Get("/wallets", deps.Wallets.List)
		r.Get("/wallets/{walletID}", deps.Wallets.Get)
		r.Get("/wallets/{walletID}/transactions", deps.Wallets.History)
		r.Get("/wallets/{walletID}/transfers", deps.Transfers.ListForWallet)
		r.Delete("/transactions/{entryID}", deps.Wallets.PruneEntry)

		r.Get("/transfers/{transferID}", deps.Transfers.Get)
		r.Get("/loans", deps.Loans.List)
		r.Get("/loans/{loanID}/summary", deps.Loans.Summary)
		r.Get("/loans/{loanID}/offers", deps.Loans.ListOffers)
		r.Get("/transfer-codes", deps.TransferCodes.List)
		r.Get("/payments/{reference}", deps.Funding.Get)

		r.Group(func(r chi.Router) {
			r.Use(deps.Idempotency)

			r.Post("/transfers", deps.Transfers.Create)
			r.Post("/loans", deps.Loans.Apply)
			r.Post("/loans/{loanID}/repay", deps.Loans.Repay)
			r.Post("/loans/{loanID}/fee-proof", deps.Loans.SubmitFeeProof)
			r.Post("/loan-offers/{offerID}/accept", deps.Loans.AcceptOffer)
			r.Post("/loan-offers/{offerID}/decline", deps.Loans.DeclineOffer)
			r.Post("/transfer-codes/verify", deps.TransferCodes.Verify)
			r.Post("/deposits", deps.Funding.Deposit)
			r.Post("/withdrawals", deps.Funding.Withdraw)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(deps.RequireAdmin)

			r.Get("/transfers/pending", deps.Transfers.ListPending)
			r.Post("/transfers/{transferID}/approve", deps.Transfers.Approve)
			r.Post("/transfers/{transferID}/reject", deps.Transfers.Reject)

			r.Post("/loans/{loanID}/request-fee", deps.Loans.RequestFee)
			r.Post("/loans/{loanID}/approve", deps.Loans.Approve)
			r.Post("/loans/{loanID}/reject", deps.Loans.Reject)
			r.Post("/loans/{loanID}/disburse", deps.Loans.Disburse)
			r.Post("/loans/{loanID}/offers", deps.Loans.ProposeOffer)

			r.Post("/transfer-codes/issue", deps.TransferCodes.Issue)
		})
	})

	return r
}
