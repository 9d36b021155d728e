package app

import (
	"github.com/gorilla/mux"
	"github.com/percal/percal/internal/auth"
)

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {

	// Subscription management, behind the forwarded-identity check
	sub := r.PathPrefix("/api/subscription").Subrouter()
	sub.Use(auth.Middleware)
	sub.HandleFunc("", deps.SubscriptionHandler.GetSubscription).Methods("GET")
	sub.HandleFunc("/calendar", deps.SubscriptionHandler.AddCalendar).Methods("POST")
	sub.HandleFunc("/frequency", deps.SubscriptionHandler.ChangeFrequency).Methods("PUT")

	// Google authorization. The callback is hit by Google's redirect and
	// carries no identity headers.
	r.HandleFunc("/api/admin/google/auth/login", deps.GoogleAuth.OAuthLogin).Methods("GET")
	r.HandleFunc("/api/admin/google/auth/callback", deps.GoogleAuth.OAuthCallback).Methods("GET")

	// Manual trigger for the current interval's syncs
	r.HandleFunc("/api/admin/sync/run", deps.SubscriptionHandler.TriggerDueSyncs).Methods("POST")
}
