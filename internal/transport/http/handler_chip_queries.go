package httptransport

import (
	"net/http"
	"strconv"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/app/negotiation"
)

func (h *ChipHandlers) State() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := h.svc.State(r.Context(), StageKeyFromContext(r.Context()), ParticipantFromRequest(r))
		if err != nil {
			writeQueryErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func (h *ChipHandlers) OfferCheck() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		buyQty, err1 := parseQty(q.Get("buy_qty"))
		sellQty, err2 := parseQty(q.Get("sell_qty"))
		if err1 != nil || err2 != nil {
			WriteHTTPError(w, http.StatusBadRequest, negotiation.ErrInvalidRequest.Error())
			return
		}
		out, err := h.svc.CheckOffer(r.Context(), StageKeyFromContext(r.Context()), ParticipantFromRequest(r), q.Get("buy_type"), buyQty, q.Get("sell_type"), sellQty)
		if err != nil {
			writeQueryErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func parseQty(v string) (int64, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.ParseInt(v, 10, 64)
}

func (h *ChipHandlers) Transcript() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := h.svc.Transcript(r.Context(), StageKeyFromContext(r.Context()), ParticipantFromRequest(r))
		if err != nil {
			writeQueryErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

func (h *ChipHandlers) Payout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := h.svc.Payout(r.Context(), StageKeyFromContext(r.Context()), ParticipantFromRequest(r))
		if err != nil {
			writeQueryErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (h *ChipHandlers) Payouts() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := h.svc.PayoutSummary(r.Context(), StageKeyFromContext(r.Context()))
		if err != nil {
			writeQueryErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

func (h *ChipHandlers) Answer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ans, err := h.svc.ParticipantAnswer(r.Context(), StageKeyFromContext(r.Context()), ParticipantFromRequest(r))
		if err != nil {
			writeQueryErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, ans)
	}
}

func (h *ChipHandlers) Log() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		afterSeq, limit, ok := ParseEventPage(r)
		if !ok {
			WriteHTTPError(w, http.StatusBadRequest, negotiation.ErrInvalidRequest.Error())
			return
		}
		items, err := h.svc.Events(r.Context(), StageKeyFromContext(r.Context()), afterSeq, limit)
		if err != nil {
			writeQueryErr(w, err)
			return
		}
		var next int64 = afterSeq
		if len(items) > 0 {
			next = items[len(items)-1].Seq
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "after_seq": afterSeq, "next_after_seq": next})
	}
}
