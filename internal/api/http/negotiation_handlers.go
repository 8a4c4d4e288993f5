package httpapi

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	appNegotiation "github.com/haggle-hub/haggle-hub/internal/application/negotiation"
	"github.com/haggle-hub/haggle-hub/internal/domain/item"
	"github.com/haggle-hub/haggle-hub/internal/domain/offer"
)

// Data types for requests

type itemCreateRequest struct {
	Title       string          `json:"title"`
	AskingPrice decimal.Decimal `json:"asking_price"`
}

type offerCreateRequest struct {
	Amount        *decimal.Decimal `json:"amount"`
	ExpiryMinutes *int             `json:"expiry_minutes,omitempty"`
}

type transitionRequest struct {
	Action        string           `json:"action"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	ExpiryMinutes *int             `json:"expiry_minutes,omitempty"`
}

type transitionResponse struct {
	OfferID    uuid.UUID    `json:"offer_id"`
	Status     offer.Status `json:"status"`
	ItemStatus item.Status  `json:"item_status"`
	Offer      *offer.Offer `json:"offer"`
	Rejected   []uuid.UUID  `json:"auto_rejected,omitempty"`
}

// Item handlers
func (s *Server) createItem(w http.ResponseWriter, r *http.Request) {
	var req itemCreateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	it, err := s.negotiationSvc.CreateItem(r.Context(), actorFromRequest(r), req.Title, req.AskingPrice)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, it)
}

func (s *Server) getItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "itemId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid itemId")
		return
	}
	it, offers, err := s.negotiationSvc.ItemView(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"item":   it,
		"offers": offers,
	})
}

func (s *Server) listOffers(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "itemId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid itemId")
		return
	}
	_, offers, err := s.negotiationSvc.ItemView(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"offers": offers})
}

func (s *Server) sweepItem(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "itemId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid itemId")
		return
	}
	report, err := s.negotiationSvc.SweepExpired(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// Offer handlers
func (s *Server) createOffer(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "itemId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid itemId")
		return
	}
	var req offerCreateRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	if req.Amount == nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "amount required")
		return
	}
	o, err := s.negotiationSvc.CreateOffer(r.Context(), actorFromRequest(r), appNegotiation.CreateOfferInput{
		ItemID:        id,
		Amount:        *req.Amount,
		ExpiryMinutes: req.ExpiryMinutes,
	})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, o)
}

func (s *Server) getOffer(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "offerId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid offerId")
		return
	}
	o, err := s.negotiationSvc.GetOffer(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, o)
}

func (s *Server) transitionOffer(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "offerId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid offerId")
		return
	}
	var req transitionRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", err.Error())
		return
	}
	action, err := offer.ParseAction(req.Action)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	res, err := s.negotiationSvc.Apply(r.Context(), appNegotiation.Command{
		OfferID:       id,
		Action:        action,
		Actor:         actorFromRequest(r),
		Amount:        req.Amount,
		ExpiryMinutes: req.ExpiryMinutes,
	})
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}

	resp := transitionResponse{
		OfferID:    res.Offer.ID,
		Status:     res.Offer.Status,
		ItemStatus: res.Item.Status,
		Offer:      res.Offer,
	}
	for _, o := range res.Rejected {
		resp.Rejected = append(resp.Rejected, o.ID)
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) getOfferHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.visibleOffer(w, r)
	if !ok {
		return
	}
	entries, err := s.historySvc.List(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"history": entries})
}

func (s *Server) getOfferMessages(w http.ResponseWriter, r *http.Request) {
	id, ok := s.visibleOffer(w, r)
	if !ok {
		return
	}
	msgs, err := s.notificationSvc.ListMessages(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

func (s *Server) getOfferTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseUUIDParam(r, "offerId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid offerId")
		return
	}
	t, err := s.negotiationSvc.GetTransaction(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

// visibleOffer parses the offer id and resolves the offer first, sweeping its item, so
// the history and messages of an expired offer are complete when read.
func (s *Server) visibleOffer(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := parseUUIDParam(r, "offerId")
	if err != nil {
		respondError(w, http.StatusBadRequest, "INVALID_PARAM", "invalid offerId")
		return uuid.Nil, false
	}
	if _, err := s.negotiationSvc.GetOffer(r.Context(), id); err != nil {
		s.respondDomainError(w, r, err)
		return uuid.Nil, false
	}
	return id, true
}
