package rest

import (
	"encoding/json"
	"net/http"

	"github.com/chatwright/chatwright/logger"
	"github.com/chatwright/chatwright/model"
	"github.com/chatwright/chatwright/persistence"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

func (s *Server) HandlePublishFlow(w http.ResponseWriter, r *http.Request) {
	var def model.FlowDefinition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	defer r.Body.Close()
	if err := s.catalog.Publish(r.Context(), def); err != nil {
		logger.Error("error publishing flow", zap.String("flow", def.Id), zap.Error(err))
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondOK(w, map[string]any{"published": true})
}

func (s *Server) HandleGetFlow(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	def, err := s.catalog.GetFlow(r.Context(), id)
	if err == persistence.ErrNotFound {
		respondWithError(w, http.StatusNotFound, "flow does not exist")
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "error loading flow")
		return
	}
	respondWithJSON(w, http.StatusOK, def)
}

func (s *Server) HandleListFlows(w http.ResponseWriter, r *http.Request) {
	defs, err := s.catalog.ListFlows(r.Context())
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "error listing flows")
		return
	}
	respondWithJSON(w, http.StatusOK, defs)
}

func (s *Server) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := vars["id"]
	run, err := s.runStore.Load(r.Context(), id)
	if err == persistence.ErrNotFound {
		respondWithError(w, http.StatusNotFound, "run does not exist")
		return
	}
	if err != nil {
		respondWithError(w, http.StatusInternalServerError, "error loading run")
		return
	}
	respondWithJSON(w, http.StatusOK, run)
}

func (s *Server) HandleCancelRun(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	sessionId := vars["id"]
	err := s.orchestrator.CancelRun(r.Context(), sessionId)
	if err == persistence.ErrNotFound {
		respondWithError(w, http.StatusNotFound, "no active run for session")
		return
	}
	if err != nil {
		logger.Error("error cancelling run", zap.String("sessionId", sessionId), zap.Error(err))
		respondWithError(w, http.StatusInternalServerError, "error cancelling run")
		return
	}
	respondOK(w, map[string]any{"cancelled": true})
}
