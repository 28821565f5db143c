package app

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// Users
	r.HandleFunc("/api/user", deps.UserHandler.CreateUser).Methods("POST")
	r.HandleFunc("/api/user/current", deps.UserHandler.CurrentUser).Methods("GET")

	// Wallets
	r.HandleFunc("/api/wallets", deps.WalletHandler.List).Methods("GET")
	r.HandleFunc("/api/wallets", deps.WalletHandler.Create).Methods("POST")
	r.HandleFunc("/api/wallets/{id}", deps.WalletHandler.Get).Methods("GET")
	r.HandleFunc("/api/wallets/{id}/default", deps.WalletHandler.SetDefault).Methods("PUT")
	r.HandleFunc("/api/wallets/{id}/shares", deps.WalletHandler.Share).Methods("PUT")
	r.HandleFunc("/api/wallets/{walletId}/transactions", deps.TransactionHandler.List).Methods("GET")

	// Categories
	r.HandleFunc("/api/categories", deps.CategoryHandler.List).Methods("GET")
	r.HandleFunc("/api/categories", deps.CategoryHandler.Create).Methods("POST")

	// Transactions
	r.HandleFunc("/api/transactions", deps.TransactionHandler.Create).Methods("POST")
	r.HandleFunc("/api/transactions/duplicates", deps.TransactionHandler.Duplicates).Methods("POST")
	r.HandleFunc("/api/transactions/{id}", deps.TransactionHandler.Get).Methods("GET")
	r.HandleFunc("/api/transactions/{id}", deps.TransactionHandler.Update).Methods("PUT")
	r.HandleFunc("/api/transactions/{id}", deps.TransactionHandler.Delete).Methods("DELETE")
	r.HandleFunc("/api/transfers", deps.TransactionHandler.Transfer).Methods("POST")

	// Budgets
	r.HandleFunc("/api/budgets", deps.BudgetHandler.GetAll).Methods("GET")
	r.HandleFunc("/api/budgets", deps.BudgetHandler.Register).Methods("POST")
	r.HandleFunc("/api/budgets/{id}", deps.BudgetHandler.Get).Methods("GET")
	r.HandleFunc("/api/budgets/{id}", deps.BudgetHandler.Update).Methods("PUT")
	r.HandleFunc("/api/budgets/{id}", deps.BudgetHandler.Delete).Methods("DELETE")
	r.HandleFunc("/api/budgets/{id}/alerts", deps.BudgetHandler.ResetAlerts).Methods("DELETE")
	r.HandleFunc("/api/budgets/{id}/recalculate", deps.BudgetHandler.Recalculate).Methods("POST")

	// Recurring rules
	r.HandleFunc("/api/recurring", deps.RecurringHandler.List).Methods("GET")
	r.HandleFunc("/api/recurring", deps.RecurringHandler.Create).Methods("POST")
	r.HandleFunc("/api/recurring/{id}", deps.RecurringHandler.Get).Methods("GET")
	r.HandleFunc("/api/recurring/{id}/deactivate", deps.RecurringHandler.Deactivate).Methods("POST")
	r.HandleFunc("/api/recurring/{id}", deps.RecurringHandler.Delete).Methods("DELETE")

	// Notifications
	r.HandleFunc("/api/notifications", deps.NotificationHandler.List).Methods("GET")
	r.HandleFunc("/api/notifications/{id}/read", deps.NotificationHandler.MarkRead).Methods("PUT")

	// Jobs
	r.HandleFunc("/api/jobs/daily", deps.DailyJob.Handle).Methods("POST")

	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler()).Methods("GET")
	}
}
