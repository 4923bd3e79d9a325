package api

import (
	"net/http"

	"bankflow-server/src/handlers"
	"bankflow-server/src/middleware"
	"bankflow-server/src/models"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

type Dependencies struct {
	Log         zerolog.Logger
	Ingester    handlers.Ingester
	Receiver    handlers.RecordIngester
	Searcher    handlers.Searcher
	Overrider   handlers.Overrider
	Rules       handlers.RuleStore
	RuleCache   handlers.RuleCache
	Reclassify  handlers.Reclassifier
	Cache       handlers.CacheClearer
	RemoteAuth  models.AuthContext
	AccountID   string
	Token       handlers.TokenConfig
	CORSOrigins []string
	ReadOnly    bool
}

func NewRouter(d Dependencies) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.RequestLogger(d.Log))
	r.Use(middleware.Recoverer)
	r.Use(middleware.CORSMiddleware(d.CORSOrigins))
	r.Use(middleware.ReadOnlyMiddleware(d.ReadOnly))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/token", handlers.IssueToken(d.Token))

		// Protected routes
		r.With(middleware.JWTAuthMiddleware(d.Token.JWTSecret)).Group(func(r chi.Router) {
			// Transactions
			r.Post("/transactions/download", handlers.DownloadTransactions(d.Ingester, d.RemoteAuth, d.AccountID))
			r.Post("/transactions/webhook", handlers.ReceiveTransactions(d.Receiver, d.AccountID))
			r.Get("/transactions", handlers.SearchTransactions(d.Searcher, d.AccountID))
			r.Put("/transactions/{external_id}/category", handlers.SetTransactionCategory(d.Overrider))
			r.Delete("/transactions/{external_id}/category", handlers.ClearTransactionCategory(d.Overrider))

			// Classification Rules
			r.Post("/rules", handlers.CreateClassificationRule(d.Rules, d.RuleCache))
			r.Post("/rules/reclassify", handlers.ReclassifyTransactions(d.Reclassify))
			r.Get("/rules", handlers.GetAllClassificationRules(d.Rules))
			r.Get("/rules/{rule_id}", handlers.GetClassificationRuleByID(d.Rules))
			r.Put("/rules/{rule_id}", handlers.UpdateClassificationRule(d.Rules, d.RuleCache))
			r.Delete("/rules/{rule_id}", handlers.DeleteClassificationRule(d.Rules, d.RuleCache))

			// Cache
			r.Post("/admin/cache/clear/{cache_name}", handlers.ClearCache(d.Cache))
		})
	})

	return r
}
