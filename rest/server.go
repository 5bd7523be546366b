package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chatwright/chatwright/catalog"
	"github.com/chatwright/chatwright/logger"
	"github.com/chatwright/chatwright/orchestrator"
	"github.com/chatwright/chatwright/persistence"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Server struct {
	http.Server
	Port         int
	orchestrator *orchestrator.Orchestrator
	catalog      catalog.Service
	runStore     persistence.RunStore
}

func NewServer(httpPort int, orch *orchestrator.Orchestrator, catalogService catalog.Service, runStore persistence.RunStore, registry *prometheus.Registry) (*Server, error) {
	s := &Server{
		Server: http.Server{
			Addr: fmt.Sprintf(":%d", httpPort),
		},
		Port:         httpPort,
		orchestrator: orch,
		catalog:      catalogService,
		runStore:     runStore,
	}

	router := mux.NewRouter()
	router.HandleFunc("/message", s.HandleMessage).Methods(http.MethodPost)
	router.HandleFunc("/flow", s.HandlePublishFlow).Methods(http.MethodPost)
	router.HandleFunc("/flows", s.HandleListFlows).Methods(http.MethodGet)
	router.HandleFunc("/flow/{id}", s.HandleGetFlow).Methods(http.MethodGet)
	router.HandleFunc("/run/{id}", s.HandleGetRun).Methods(http.MethodGet)
	router.HandleFunc("/session/{id}/run", s.HandleCancelRun).Methods(http.MethodDelete)
	if registry != nil {
		router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}
	router.Use(loggingMiddleware)
	s.Handler = router
	return s, nil
}

func (s *Server) Start() error {
	logger.Info("starting http server", zap.Int("port", s.Port))
	if err := s.ListenAndServe(); err != nil {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	logger.Info("stopping http server")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	err := s.Shutdown(ctx)
	if err != nil {
		logger.Error("error shutting down http server")
	}
	return nil
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger.Info(r.RequestURI)
		next.ServeHTTP(w, r)
	})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

func respondOK(w http.ResponseWriter, payload any) {
	respondWithJSON(w, http.StatusOK, payload)
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}
