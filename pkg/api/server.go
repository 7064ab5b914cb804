package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/specdock/specdock/pkg/contextkeys"
	"github.com/specdock/specdock/pkg/httputil"
	"github.com/specdock/specdock/pkg/observability"
	"github.com/specdock/specdock/pkg/query"
	"github.com/specdock/specdock/pkg/registry"
	"github.com/specdock/specdock/pkg/swagger"
)

// identityHeader carries the authenticated username, resolved by the
// fronting proxy before the request reaches this server.
const identityHeader = "X-SpecDock-User"

// Server represents the registry API server
type Server struct {
	registry *registry.Registry
	planner  *query.Planner
	router   *mux.Router
	log      *observability.Logger
	metrics  *observability.Metrics
}

// NewServer creates a new API server
func NewServer(reg *registry.Registry, planner *query.Planner, log *observability.Logger, metrics *observability.Metrics) *Server {
	if log == nil {
		log = observability.NewNopLogger()
	}
	s := &Server{
		registry: reg,
		planner:  planner,
		router:   mux.NewRouter(),
		log:      log.WithField("component", "api"),
		metrics:  metrics,
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	// Registration routes
	s.router.HandleFunc("/api/registrations", s.createRegistration).Methods("POST")
	s.router.HandleFunc("/api/registrations", s.listRegistrations).Methods("GET")
	s.router.HandleFunc("/api/registration/{name}", s.getRegistration).Methods("GET")
	s.router.HandleFunc("/api/registration/{id}", s.deleteRegistration).Methods("DELETE")

	// Slug routes
	s.router.HandleFunc("/api/registration/{id}/slug", s.setSlug).Methods("PUT")
	s.router.HandleFunc("/api/registration/{id}/slug", s.deleteSlug).Methods("DELETE")

	// Refresh routes
	s.router.HandleFunc("/api/registration/{id}/refresh", s.refreshRegistration).Methods("PUT")
	s.router.HandleFunc("/api/refresh", s.refreshAll).Methods("POST")

	// Search routes
	s.router.HandleFunc("/api/query", s.search).Methods("GET")
	s.router.HandleFunc("/api/suggestion", s.suggest).Methods("GET")

	// Operational routes
	s.router.HandleFunc("/healthz", s.healthz).Methods("GET")
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")
	}

	// The registry serves its own API description
	swagger.NewHandlers().RegisterRoutes(s.router)
}

// Handler returns the router wrapped in the standard middleware chain.
func (s *Server) Handler(maxBodyBytes int64) http.Handler {
	return httputil.Chain(
		httputil.RequestIDMiddleware,
		identityContext,
		httputil.RecoveryMiddleware(s.log),
		httputil.LoggingMiddleware(s.log, s.metrics),
		httputil.MaxBytesMiddleware(maxBodyBytes),
	)(s.router)
}

// identityContext stores the pre-resolved username in the request context
// so downstream logging can attribute the request.
func identityContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user := r.Header.Get(identityHeader); user != "" {
			r = r.WithContext(contextkeys.WithUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	})
}

// ServeHTTP implements http.Handler, without middleware. Tests use it
// directly.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, map[string]string{"status": "ok"})
}

// identity extracts the pre-resolved username, or writes a 401.
func (s *Server) identity(w http.ResponseWriter, r *http.Request) (string, bool) {
	user := r.Header.Get(identityHeader)
	if user == "" {
		httputil.WriteUnauthorized(w, "missing identity")
		return "", false
	}
	return user, true
}
