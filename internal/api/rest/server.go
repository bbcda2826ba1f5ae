package rest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Server represents the REST API server
type Server struct {
	port    string
	server  *http.Server
	handler *Handler
}

// NewServer creates a new REST API server
func NewServer(port string, deps Deps) *Server {
	handler := NewHandler(deps)

	return &Server{
		port:    port,
		handler: handler,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%s", port),
			Handler:           NewRouter(handler),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// NewRouter builds the route table
func NewRouter(handler *Handler) *mux.Router {
	router := mux.NewRouter()

	// Apply middleware
	router.Use(RecoveryMiddleware)
	router.Use(LoggingMiddleware)
	router.Use(CORSMiddleware)

	// CORS preflight for every path
	router.Methods(http.MethodOptions).HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Health check
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// Imports
	api.HandleFunc("/imports", handler.ImportWorkbook).Methods("POST")

	// Seasons and periods
	api.HandleFunc("/seasons", handler.ListSeasons).Methods("GET")
	api.HandleFunc("/seasons/{year}/periods", handler.ListPeriods).Methods("GET")
	api.HandleFunc("/seasons/{year}/standings", handler.GetSeasonStandings).Methods("GET")
	api.HandleFunc("/seasons/{year}/resolve", handler.ReresolveSeason).Methods("POST")
	api.HandleFunc("/periods/{periodID}/dates", handler.SetPeriodDates).Methods("PUT")
	api.HandleFunc("/periods/{periodID}/stats", handler.GetPeriodStats).Methods("GET")
	api.HandleFunc("/periods/{periodID}/standings", handler.GetPeriodStandings).Methods("GET")

	// Identity review
	api.HandleFunc("/identity/reports", handler.ListIdentityReports).Methods("GET")

	// Refresh jobs
	api.HandleFunc("/refresh", handler.EnqueueRefresh).Methods("POST")
	api.HandleFunc("/refresh/status", handler.RefreshStatus).Methods("GET")

	return router
}

// Start starts the REST API server
func (s *Server) Start() error {
	httpLog.Infof("REST API listening on :%s", s.port)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
