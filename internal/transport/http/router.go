package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/openvenue/admission/internal/telemetry"
)

// Services bundles the handlers' dependencies for router construction.
type Services struct {
	Policies      interface {
		PolicyCreator
		CapacityReader
		CapacityIncreaser
	}
	Registrations Registrar
	Waitlist      Waitlister
	Groups        GroupBooker
	Analytics     SnapshotReader
}

// NewRouter wires the full HTTP surface.
func NewRouter(svcs Services, corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogger)

	r.Get("/health", HealthHandler)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/events/{eventID}", func(r chi.Router) {
		r.Post("/capacity", HandleCreatePolicy(svcs.Policies))
		r.Get("/capacity", HandleCapacityStatus(svcs.Policies))
		r.Post("/capacity/increase", HandleIncreaseCapacity(svcs.Policies))

		r.Post("/registrations", HandleRegister(svcs.Registrations))
		r.Post("/registrations/{registrationID}/confirm", HandleConfirmRegistration(svcs.Registrations))
		r.Post("/registrations/{registrationID}/cancel", HandleCancelRegistration(svcs.Registrations))

		r.Post("/waitlist", HandleJoinWaitlist(svcs.Waitlist))
		r.Get("/waitlist/position", HandleWaitlistPosition(svcs.Waitlist))
		r.Delete("/waitlist", HandleLeaveWaitlist(svcs.Waitlist))

		r.Post("/groups", HandleReserveGroup(svcs.Groups))
		r.Post("/groups/{groupID}/members", HandleAddGroupMember(svcs.Groups))
		r.Post("/groups/{groupID}/confirm", HandleConfirmGroup(svcs.Groups))
		r.Post("/groups/{groupID}/cancel", HandleCancelGroup(svcs.Groups))

		r.Get("/analytics", HandleAnalytics(svcs.Analytics))
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, codeMethodNotAllowed, "method not allowed")
	})

	return CORS(corsOrigins, r)
}
