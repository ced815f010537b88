package auth

import (
	"encoding/json"
	"net/http"
)

type AuthHandler struct {
	service *Service
}

func NewAuthHandler(service *Service) *AuthHandler {
	return &AuthHandler{
		service: service,
	}
}

// Guest hands out a signed guest identity for the websocket endpoint.
func (h *AuthHandler) Guest(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	token, playerID, err := h.service.IssueGuestToken(req.Name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp := struct {
		Token    string `json:"token"`
		PlayerID string `json:"playerId"`
		Name     string `json:"name"`
	}{
		Token:    token,
		PlayerID: playerID,
		Name:     req.Name,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
