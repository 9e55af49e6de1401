package routes

import (
	"encrypted_match/controllers"
	"encrypted_match/services"

	"github.com/gorilla/mux"
)

// RegisterRoutes sets up the health and welcome routes
func RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", controllers.HealthCheckHandler).Methods("GET")
	r.HandleFunc("/", controllers.WelcomeHandler).Methods("GET")
	r.HandleFunc("/privacy-policy", PrivacyPolicyHandler).Methods("GET")
}

// RegisterSessionRoutes sets up routes for match sessions under /api/sessions
func RegisterSessionRoutes(r *mux.Router, sessions *services.MatchSessionService, receipts *services.ReceiptArchive) {
	controller := controllers.NewSessionController(sessions, receipts)

	sessionRouter := r.PathPrefix("/api/sessions").Subrouter()
	sessionRouter.HandleFunc("", controller.CreateSession).Methods("POST")
	sessionRouter.HandleFunc("/{sessionKey}", controller.GetSession).Methods("GET")
	sessionRouter.HandleFunc("/{sessionKey}/likes", controller.SubmitLike).Methods("POST")
	sessionRouter.HandleFunc("/{sessionKey}/check", controller.CheckMatch).Methods("POST")
	sessionRouter.HandleFunc("/{sessionKey}/receipt", controller.GetReceipt).Methods("GET")

	r.HandleFunc("/api/engine/publicKey", controller.GetEnginePublicKey).Methods("GET")
}
