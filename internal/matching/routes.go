package matching

import (
	"github.com/gorilla/mux"

	"github.com/emberdate/ember-backend/internal/auth"
)

func RegisterRoutes(router *mux.Router, handler *Handler, authMiddleware *auth.Middleware) {
	api := router.PathPrefix("/api/v1/match").Subrouter()
	api.Use(authMiddleware.Authenticate)

	// Swipes
	api.HandleFunc("/swipes", handler.RecordSwipe).Methods("POST")

	// Recommendations & explainability
	api.HandleFunc("/recommendations", handler.GetRecommendations).Methods("GET")
	api.HandleFunc("/factors/{userId}", handler.GetMatchFactors).Methods("GET")

	// Matches
	api.HandleFunc("/matches", handler.GetMatches).Methods("GET")

	// Realtime match events
	api.HandleFunc("/ws", handler.ServeWS).Methods("GET")
}
