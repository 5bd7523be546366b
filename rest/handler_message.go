package rest

import (
	"encoding/json"
	"net/http"

	"github.com/chatwright/chatwright/logger"
	"go.uber.org/zap"
)

type messageRequest struct {
	SessionId string `json:"sessionId"`
	Text      string `json:"text"`
}

func (s *Server) HandleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()
	if req.SessionId == "" {
		respondWithError(w, http.StatusBadRequest, "sessionId is required")
		return
	}
	payload, err := s.orchestrator.HandleMessage(r.Context(), req.SessionId, req.Text)
	if err != nil {
		logger.Error("error handling message", zap.String("sessionId", req.SessionId), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error handling message")
		return
	}
	respondOK(w, map[string]any{"fragments": payload})
}
