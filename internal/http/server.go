package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/example/driver-hiring/internal/auth"
	"github.com/example/driver-hiring/internal/mirror"
	"github.com/example/driver-hiring/internal/payments"
	"github.com/example/driver-hiring/internal/storage"
)

// adminListLimit caps GET /api/admin/drivers.
const adminListLimit = 500

// Deps are the collaborators the API orchestrates. They are built once at
// startup and shared by all requests.
type Deps struct {
	Store    storage.Store
	Verifier auth.Verifier
	Mirror   mirror.Mirror
	Payments payments.Gateway
	// Hub, when set, is served at /ws/drivers.
	Hub    http.Handler
	Logger *zap.Logger

	Currency         string
	AdminRequireRole bool
	AllowedOrigins   []string

	Now func() time.Time
}

type Server struct {
	store    storage.Store
	verifier auth.Verifier
	mirror   mirror.Mirror
	payments payments.Gateway
	hub      http.Handler
	logger   *zap.Logger

	currency         string
	adminRequireRole bool
	now              func() time.Time

	mux     *mux.Router
	handler http.Handler
}

func NewServer(d Deps) *Server {
	s := &Server{
		store:            d.Store,
		verifier:         d.Verifier,
		mirror:           d.Mirror,
		payments:         d.Payments,
		hub:              d.Hub,
		logger:           d.Logger,
		currency:         d.Currency,
		adminRequireRole: d.AdminRequireRole,
		now:              d.Now,
		mux:              mux.NewRouter(),
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.mirror == nil {
		s.mirror = mirror.Nop{}
	}
	if s.currency == "" {
		s.currency = "INR"
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.registerMiddleware()
	s.routes()
	s.handler = corsHandler(d.AllowedOrigins)(s.mux)
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("/", s.handleRoot).Methods(http.MethodGet)
	s.mux.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.mux.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	s.mux.Handle("/metrics", promhttp.Handler())
	if s.hub != nil {
		s.mux.Handle("/ws/drivers", s.hub)
	}

	api := s.mux.PathPrefix("/api").Subrouter()
	api.HandleFunc("/drivers", s.handleListDrivers).Methods(http.MethodGet)
	api.HandleFunc("/drivers/{id:[0-9]+}", s.handleGetDriver).Methods(http.MethodGet)

	protected := api.NewRoute().Subrouter()
	protected.Use(s.authMiddleware)
	protected.HandleFunc("/auth/upsert", s.handleUpsertUser).Methods(http.MethodPost)
	protected.HandleFunc("/drivers/{id:[0-9]+}/availability", s.handleUpdateAvailability).Methods(http.MethodPost)
	protected.HandleFunc("/bookings", s.handleCreateBooking).Methods(http.MethodPost)
	protected.HandleFunc("/admin/drivers", s.handleAdminDrivers).Methods(http.MethodGet)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.handler.ServeHTTP(w, r) }
