package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yegors/atcsim/internal/config"
	"github.com/yegors/atcsim/internal/sim"
	"github.com/yegors/atcsim/pkg/logger"
)

// Router is the API router
type Router struct {
	handler    *Handler
	middleware *Middleware
	config     config.ServerConfig
	gatherer   prometheus.Gatherer
	logger     *logger.Logger
}

// NewRouter creates a new API router. gatherer may be nil, which leaves
// /metrics unrouted.
func NewRouter(s *sim.Simulation, hub *Hub, gatherer prometheus.Gatherer, cfg config.ServerConfig, logger *logger.Logger) *Router {
	return &Router{
		handler:    NewHandler(s, hub, logger),
		middleware: NewMiddleware(logger),
		config:     cfg,
		gatherer:   gatherer,
		logger:     logger.Named("api-router"),
	}
}

// Routes returns the API routes
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(r.middleware.RequestID)
	router.Use(r.middleware.Logger)
	router.Use(r.middleware.Recoverer)
	router.Use(r.middleware.CORS(r.config.CORSAllowedOrigins))

	router.Route("/api/v1", func(router chi.Router) {
		// Simulation lifecycle
		router.Post("/simulation/start", r.handler.StartSimulation)
		router.Post("/simulation/stop", r.handler.StopSimulation)

		// Controller routes
		router.Get("/controllers", r.handler.GetControllers)
		router.Get("/controllers/{name}/roster", r.handler.GetControllerRoster)
		router.Get("/controllers/{name}/messages", r.handler.GetControllerMessages)
		router.Post("/controllers/{name}/start", r.handler.StartController)
		router.Post("/controllers/{name}/stop", r.handler.StopController)

		// Aircraft routes
		router.Get("/aircraft", r.handler.GetAllAircraft)
		router.Get("/aircraft/{id}", r.handler.GetAircraft)
		router.Delete("/aircraft/{id}", r.handler.RemoveFlight)
		router.Post("/aircraft/{id}/emergency", r.handler.DeclareEmergency)
		router.Post("/flights", r.handler.CreateFlight)

		// Messages
		router.Get("/messages", r.handler.GetMessages)
		router.Get("/ws", r.handler.HandleWebSocket)

		router.Get("/status", r.handler.GetStatus)
		router.Get("/health", r.handler.GetHealth)
	})

	if r.config.MetricsEnabled && r.gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))
	}

	return router
}
