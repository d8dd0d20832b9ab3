package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/crossedpaths/crossedpaths/server/internal/api/recovery"
	"github.com/crossedpaths/crossedpaths/server/internal/crossedpaths"
	"github.com/crossedpaths/crossedpaths/server/internal/metrics"
)

// Deps are the services the HTTP layer is wired to.
type Deps struct {
	Recorder *crossedpaths.Recorder
	Reader   *crossedpaths.Reader
	Health   HealthFunc
	Metrics  *metrics.Metrics
	Log      zerolog.Logger
}

// NewRouter creates the HTTP router with all API routes.
func NewRouter(d Deps) *mux.Router {
	router := mux.NewRouter()

	// Global middlewares
	router.Use(recovery.New(d.Log))
	router.Use(RequestID)
	router.Use(ForwardAccessToken)
	if d.Metrics != nil {
		router.Use(Instrument(d.Metrics))
	}

	healthHandler := NewHealthHandler(d.Health)
	placeHandler := NewPlaceHandler()
	cpHandler := NewCrossedPathsHandler(d.Recorder, d.Reader, d.Log)

	router.HandleFunc("/api/health", healthHandler.CheckHealth).Methods(http.MethodGet)
	if d.Metrics != nil {
		router.Handle("/metrics", d.Metrics.Handler()).Methods(http.MethodGet)
	}

	router.HandleFunc("/api/places/resolve", placeHandler.Resolve).Methods(http.MethodPost)

	// Recording
	router.HandleFunc("/api/users/{userId}/visits", cpHandler.RecordVisit).Methods(http.MethodPost)
	router.HandleFunc("/api/users/{userId}/crossed-paths", cpHandler.RecordCrossedPaths).Methods(http.MethodPost)

	// Reading
	router.HandleFunc("/api/users/{userId}/crossed-paths", cpHandler.ListCrossedPaths).Methods(http.MethodGet)
	router.HandleFunc("/api/users/{userId}/crossed-paths/groups", cpHandler.ListGroups).Methods(http.MethodGet)
	router.HandleFunc("/api/users/{userId}/crossed-paths/groups/{dayKey}/{placeKey}/people", cpHandler.ListPeople).Methods(http.MethodGet)
	router.HandleFunc("/api/users/{userId}/crossed-paths/history", cpHandler.History).Methods(http.MethodGet)

	return router
}
