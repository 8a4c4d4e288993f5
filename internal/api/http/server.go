package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	appHistory "github.com/haggle-hub/haggle-hub/internal/application/history"
	appNegotiation "github.com/haggle-hub/haggle-hub/internal/application/negotiation"
	appNotification "github.com/haggle-hub/haggle-hub/internal/application/notification"
	"github.com/haggle-hub/haggle-hub/internal/domain/notification"
	"github.com/haggle-hub/haggle-hub/internal/domain/offer"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Server holds dependencies for HTTP handlers.
type Server struct {
	negotiationSvc  *appNegotiation.Service
	historySvc      *appHistory.Service
	notificationSvc *appNotification.Service
	sseHub          notification.SSEHub
	tokens          *TokenAuth
	limiter         *RateLimiter
	health          HealthCheck
	requestTimeout  time.Duration
	logger          zerolog.Logger
}

func NewServer(
	negotiationSvc *appNegotiation.Service,
	historySvc *appHistory.Service,
	notificationSvc *appNotification.Service,
	sseHub notification.SSEHub,
	tokens *TokenAuth,
	limiter *RateLimiter,
	health HealthCheck,
	requestTimeout time.Duration,
	logger zerolog.Logger,
) *Server {
	if requestTimeout <= 0 {
		requestTimeout = 30 * time.Second
	}
	return &Server{
		negotiationSvc:  negotiationSvc,
		historySvc:      historySvc,
		notificationSvc: notificationSvc,
		sseHub:          sseHub,
		tokens:          tokens,
		limiter:         limiter,
		health:          health,
		requestTimeout:  requestTimeout,
		logger:          logger.With().Str("component", "http").Logger(),
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.healthz)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.requireAuth)
		if s.limiter != nil {
			r.Use(s.limiter.Middleware)
		}

		// The stream outlives any request timeout.
		r.Get("/stream", s.sseEndpoint)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(s.requestTimeout))

			r.Route("/items", func(r chi.Router) {
				r.Post("/", s.createItem)
				r.Get("/{itemId}", s.getItem)
				r.Post("/{itemId}/offers", s.createOffer)
				r.Get("/{itemId}/offers", s.listOffers)
				r.Post("/{itemId}/sweep", s.sweepItem)
			})

			r.Route("/offers", func(r chi.Router) {
				r.Get("/{offerId}", s.getOffer)
				r.Post("/{offerId}/transitions", s.transitionOffer)
				r.Get("/{offerId}/history", s.getOfferHistory)
				r.Get("/{offerId}/messages", s.getOfferMessages)
				r.Get("/{offerId}/transaction", s.getOfferTransaction)
			})
		})
	})

	return r
}

// Helpers
func respondJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, map[string]interface{}{
		"error":   code,
		"message": message,
	})
}

// respondDomainError maps negotiation errors to a status, a stable code and a message the
// client can show as is.
func (s *Server) respondDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, offer.ErrNotFound):
		respondError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, offer.ErrUnauthorized):
		respondError(w, http.StatusForbidden, "FORBIDDEN", "you are not allowed to perform this action on this offer")
	case errors.Is(err, offer.ErrInvalidInput):
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
	case errors.Is(err, offer.ErrDuplicateActiveOffer):
		respondError(w, http.StatusConflict, "DUPLICATE_ACTIVE_OFFER", "you already have an active offer on this item")
	case errors.Is(err, offer.ErrConflictAlreadyResolved):
		respondError(w, http.StatusConflict, "ALREADY_RESOLVED", "offer no longer available, refresh and try again")
	case errors.Is(err, offer.ErrOfferExpired):
		respondError(w, http.StatusConflict, "OFFER_EXPIRED", "this offer has expired")
	case errors.Is(err, offer.ErrItemUnavailable):
		respondError(w, http.StatusConflict, "ITEM_UNAVAILABLE", "this item is no longer accepting offers")
	case errors.Is(err, offer.ErrInvalidTransition):
		respondError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, offer.ErrDependencyFailure):
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("dependency failure")
		respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "service temporarily unavailable, try again shortly")
	default:
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("unexpected error")
		respondError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
	}
}

func parseUUIDParam(r *http.Request, key string) (uuid.UUID, error) {
	val := chi.URLParam(r, key)
	return uuid.Parse(val)
}

func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.health(ctx); err != nil {
			respondError(w, http.StatusServiceUnavailable, "UNAVAILABLE", err.Error())
			return
		}
	}
	clients := 0
	if s.sseHub != nil {
		clients = s.sseHub.GetClientCount()
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "ok",
		"sseClients": clients,
	})
}
