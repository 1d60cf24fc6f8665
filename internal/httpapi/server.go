package httpapi

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"firstview-tracker/internal/firstview"
	"firstview-tracker/internal/geo"
	"firstview-tracker/internal/tracker"
	"firstview-tracker/internal/viewport"
)

type SessionService interface {
	SignIn(ctx context.Context, account, password string) error
	SignOut(ctx context.Context) error
	SignedIn() bool
	Account() string
}

type TrackerService interface {
	Snapshot() tracker.Snapshot
	Refresh() bool
	Focus(riderID string) (viewport.Plan, error)
	TrackVehicle(riderID string, index int) (viewport.Plan, error)
}

type NotificationSource interface {
	GetNotifications(ctx context.Context) (*firstview.NotificationResponse, error)
}

type RegionSource interface {
	Region() geo.Region
}

// Deps are the services behind the API. Map and Metrics are optional.
type Deps struct {
	Session       SessionService
	Tracker       TrackerService
	Notifications NotificationSource
	Viewport      RegionSource
	Map           http.Handler
	Metrics       http.Handler
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}
	if d.Map != nil {
		r.Handle("/ws", d.Map)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/session", GetSession(d.Session))
		r.Post("/session", SignIn(d.Session, d.Tracker))
		r.Delete("/session", SignOut(d.Session))

		r.Get("/riders", GetRiders(d.Tracker))
		r.Post("/refresh", Refresh(d.Tracker))
		r.Post("/riders/{riderID}/focus", FocusRider(d.Tracker))
		r.Post("/riders/{riderID}/vehicles/{index}/track", TrackVehicle(d.Tracker))
		r.Get("/viewport", GetViewport(d.Viewport))

		r.Get("/notifications", GetNotifications(d.Notifications))
	})
	return r
}

// Serve starts an HTTP server on addr in the background.
func Serve(addr string, h http.Handler) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server error: %v", err)
		}
	}()
	log.Printf("http api listening on %s", addr)
	return srv
}
