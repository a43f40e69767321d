package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mercatolabs/cartsync/api/controllers"
	cartcontrollers "github.com/mercatolabs/cartsync/api/controllers/cart"
	"github.com/mercatolabs/cartsync/api/middleware"
	"github.com/mercatolabs/cartsync/internal/reconcile"
	"github.com/mercatolabs/cartsync/pkg/config"
	"github.com/mercatolabs/cartsync/pkg/logger"
	"github.com/mercatolabs/cartsync/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	redisClient *redis.Client,
	reconcileService reconcile.Service,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, redisClient))
	})

	r.Route("/api/cart", func(r chi.Router) {
		r.Post("/sync", cartcontrollers.Sync(reconcileService, logg))
		r.Get("/{cartID}", cartcontrollers.Fetch(reconcileService, logg))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	return r
}
