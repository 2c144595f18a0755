package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/app/negotiation"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/feed"
)

type ChipHandlers struct {
	svc *negotiation.Service
	hub *feed.Hub
}

func NewChipHandlers(svc *negotiation.Service, hub *feed.Hub) *ChipHandlers {
	return &ChipHandlers{svc: svc, hub: hub}
}

// StatusForKind maps a wire errorKind to the HTTP status of a failed call.
func StatusForKind(kind string) int {
	switch kind {
	case "":
		return http.StatusOK
	case "stage_not_found":
		return http.StatusNotFound
	case "duplicate_transaction", "already_resolved", "stage_exists":
		return http.StatusConflict
	case "concurrent_write_conflict":
		return http.StatusServiceUnavailable
	case "internal_error":
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeCommand(w http.ResponseWriter, op string, res *negotiation.CommandResult, err error) {
	metricCommandRequests.Add(op, 1)
	if res == nil {
		res = &negotiation.CommandResult{Success: false, ErrorKind: negotiation.ErrorKind(err)}
	}
	if err != nil {
		metricCommandFailures.Add(op, 1)
		writeJSON(w, StatusForKind(res.ErrorKind), res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeQueryErr(w http.ResponseWriter, err error) {
	kind := negotiation.ErrorKind(err)
	WriteHTTPError(w, StatusForKind(kind), kind)
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(negotiation.ErrInvalidRequest, err)
	}
	return nil
}

func (h *ChipHandlers) Start() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in negotiation.StartInput
		if err := decodeBody(r, &in); err != nil {
			writeCommand(w, negotiation.OpStart, nil, err)
			return
		}
		in.Key = StageKeyFromContext(r.Context())
		res, err := h.svc.StartStage(r.Context(), in)
		writeCommand(w, negotiation.OpStart, res, err)
	}
}

func (h *ChipHandlers) SubmitOffer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in negotiation.OfferInput
		if err := decodeBody(r, &in); err != nil {
			writeCommand(w, negotiation.OpSubmitOffer, nil, err)
			return
		}
		in.Key = StageKeyFromContext(r.Context())
		if in.ParticipantID == "" {
			in.ParticipantID = ParticipantFromRequest(r)
		}
		res, err := h.svc.SubmitOffer(r.Context(), in)
		writeCommand(w, negotiation.OpSubmitOffer, res, err)
	}
}

func (h *ChipHandlers) SubmitResponse() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in negotiation.ResponseInput
		if err := decodeBody(r, &in); err != nil {
			writeCommand(w, negotiation.OpRespond, nil, err)
			return
		}
		in.Key = StageKeyFromContext(r.Context())
		if in.ParticipantID == "" {
			in.ParticipantID = ParticipantFromRequest(r)
		}
		res, err := h.svc.SubmitResponse(r.Context(), in)
		writeCommand(w, negotiation.OpRespond, res, err)
	}
}

func (h *ChipHandlers) ForceResolve() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in negotiation.ForceResolveInput
		if err := decodeBody(r, &in); err != nil {
			writeCommand(w, negotiation.OpForceResolve, nil, err)
			return
		}
		in.Key = StageKeyFromContext(r.Context())
		res, err := h.svc.ForceResolve(r.Context(), in)
		writeCommand(w, negotiation.OpForceResolve, res, err)
	}
}

func (h *ChipHandlers) SkipTurn() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in negotiation.SkipTurnInput
		if err := decodeBody(r, &in); err != nil {
			writeCommand(w, negotiation.OpSkipTurn, nil, err)
			return
		}
		in.Key = StageKeyFromContext(r.Context())
		res, err := h.svc.SkipTurn(r.Context(), in)
		writeCommand(w, negotiation.OpSkipTurn, res, err)
	}
}
