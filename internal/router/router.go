package router

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Cator197/checkauto-saas/internal/handler"
	"github.com/Cator197/checkauto-saas/internal/middleware"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler     *handler.Handler
	SyncHandler *handler.SyncHandler
}

// New creates and configures the loopback HTTP router. The agent binds
// to localhost; the PWA running in the browser is the only client, so
// CORS is open and there is no auth layer.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recovery)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}
	r.Handle("/metrics", promhttp.Handler())

	if cfg.SyncHandler != nil {
		r.Route("/api/v1", func(r chi.Router) {
			r.Route("/sync", func(r chi.Router) {
				r.Get("/status", cfg.SyncHandler.Status)
				r.Get("/queue", cfg.SyncHandler.Queue)
				r.Get("/checkins", cfg.SyncHandler.CheckIns)
				r.Post("/drain", cfg.SyncHandler.Drain)
			})

			r.Get("/vehicles", cfg.SyncHandler.Vehicles)
			r.Post("/checkins", cfg.SyncHandler.SubmitCheckIn)

			r.Route("/os/{os_id}", func(r chi.Router) {
				r.Patch("/", cfg.SyncHandler.PatchOS)
				r.Post("/fotos", cfg.SyncHandler.AddPhoto)
				r.Post("/observacao", cfg.SyncHandler.SaveObservation)
				r.Post("/avancar", cfg.SyncHandler.RequestAdvance)
			})
		})
	}

	return r
}
