package rest

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hobby-app/marketplace/internal/config"
	"github.com/hobby-app/marketplace/internal/platform/metrics"
	"github.com/hobby-app/marketplace/internal/port/rest/middleware"
	"go.uber.org/zap"
)

type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
}

// NewServer wires the chi router. Feed and seller reads are public; listing
// mutations require a valid JWT.
func NewServer(
	cfg *config.Config,
	listingHandler *ListingHandler,
	sellerHandler *SellerHandler,
	mm *metrics.MetricsManager,
	logger *zap.Logger,
) *Server {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestLogger(logger, mm))

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, logger, http.StatusOK, map[string]string{"status": "ok"})
	})

	mux.Get("/listings/fetch-random-listings", listingHandler.HandleFetchRandomListings)
	mux.Get("/listings/{id}", listingHandler.HandleGetListing)
	mux.Get("/sellers/fetch-seller", sellerHandler.HandleFetchSeller)

	mux.Group(func(r chi.Router) {
		r.Use(middleware.JWTAuth(cfg.Auth.JWTSecret, logger))

		r.Post("/listings", listingHandler.HandleCreateListing)
		r.Patch("/listings/{id}", listingHandler.HandleUpdateListing)
		r.Post("/listings/{id}/like", listingHandler.HandleLikeListing)
		r.Delete("/listings/{id}/like", listingHandler.HandleUnlikeListing)
		r.Post("/listings/{id}/bid", listingHandler.HandlePlaceBid)
		r.Patch("/listings/{id}/sold", listingHandler.HandleMarkSold)
		r.Post("/listings/{id}/images", listingHandler.HandleUploadImage)
		r.Put("/sellers/profile", sellerHandler.HandleUpsertSeller)
	})

	return &Server{
		httpServer: &http.Server{
			Addr:         ":" + cfg.HTTP.Port,
			Handler:      mux,
			ReadTimeout:  cfg.HTTP.ReadTimeout,
			WriteTimeout: cfg.HTTP.WriteTimeout,
		},
		logger: logger,
	}
}

func (s *Server) Run() error {
	s.logger.Info("HTTP server starting", zap.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("HTTP server shutting down")
	return s.httpServer.Shutdown(ctx)
}
