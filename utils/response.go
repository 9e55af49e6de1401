package utils

import (
	"encoding/json"
	"log"
	"net/http"
)

// WriteJSON writes payload as a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("❌ Failed to encode response: %v", err)
	}
}

// WriteJSONError writes {"error": message} plus any extra fields
func WriteJSONError(w http.ResponseWriter, status int, message string, extra map[string]interface{}) {
	body := map[string]interface{}{"error": message}
	for k, v := range extra {
		body[k] = v
	}
	WriteJSON(w, status, body)
}
