package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/elfernagomez/doya-management/internal/service"
	"github.com/elfernagomez/doya-management/internal/ws"
	"github.com/elfernagomez/doya-management/pkg/health"
	"github.com/elfernagomez/doya-management/pkg/middleware"
)

// NewRouter creates a chi router with all draft service routes registered.
func NewRouter(
	draftService *service.DraftService,
	hub *ws.Hub,
	healthHandler *health.Handler,
	logger *slog.Logger,
	pprofCIDRs []string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("draft"))
	r.Use(middleware.Tracing("draft"))
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	// Pprof debug endpoints with IP allowlist.
	middleware.RegisterPprof(r, pprofCIDRs, logger)

	// Draft API endpoints
	draftHandler := NewDraftHandler(draftService, hub, logger)

	r.Route("/api/v1/orders/{orderId}/draft", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		r.Use(UserIDFromHeader)

		r.Post("/", draftHandler.Open)
		r.Get("/", draftHandler.Get)
		r.Delete("/", draftHandler.Discard)

		r.Post("/items", draftHandler.AddItems)
		r.Patch("/items/{index}", draftHandler.EditItem)
		r.Delete("/items/{index}", draftHandler.DeleteItem)
		r.Put("/items/{index}/deletion", draftHandler.SetDeletion)
		r.Put("/items/{index}/product", draftHandler.SelectProduct)
		r.Post("/items/{index}/product", draftHandler.CreateProduct)

		r.Post("/save", draftHandler.Save)
	})

	// WebSocket subscription to the draft's snapshot stream. The upgrade
	// request cannot carry custom headers, so it stays outside the
	// X-User-ID middleware chain.
	r.Get("/ws/orders/{orderId}/draft", func(w http.ResponseWriter, req *http.Request) {
		orderID := chi.URLParam(req, "orderId")
		if orderID == "" {
			http.Error(w, "order id is required", http.StatusBadRequest)
			return
		}
		ws.ServeWS(hub, orderID, logger, w, req)
	})

	return r
}
