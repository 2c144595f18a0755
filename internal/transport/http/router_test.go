package httptransport

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/app/negotiation"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/chip"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/config"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/feed"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/store"

	"github.com/shopspring/decimal"
)

const (
	adminKey  = "admin-secret"
	stagePath = "/api/experiments/exp/cohorts/cohort/stages/chips"
)

func testStartBody() negotiation.StartInput {
	return negotiation.StartInput{
		Config: chip.StageConfig{
			ID:        "chips",
			NumRounds: 2,
			TurnSeed:  7,
			Chips: []chip.ChipItem{
				{ID: "red", Name: "red", Avatar: "🔴", StartingQuantity: 5},
				{ID: "blue", Name: "blue", Avatar: "🔵", StartingQuantity: 5},
			},
			ParticipantChipValues: map[string]map[string]decimal.Decimal{
				"pub-a": {"red": decimal.RequireFromString("0.1"), "blue": decimal.RequireFromString("0.3")},
				"pub-b": {"red": decimal.RequireFromString("0.3"), "blue": decimal.RequireFromString("0.1")},
			},
		},
		Participants: []store.Member{
			{PrivateID: "priv-a", PublicID: "pub-a", Name: "Ana"},
			{PrivateID: "priv-b", PublicID: "pub-b", Name: "Bo"},
		},
	}
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := config.ServerConfig{AdminAPIKey: adminKey, CommitMaxRetries: 3, FeedBufferSize: 16}
	hub := feed.NewHub(cfg.FeedBufferSize)
	t.Cleanup(hub.Close)
	svc := negotiation.NewService(store.NewMemory(), hub, cfg)
	return NewRouter(svc, hub, cfg, nil)
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func startStage(t *testing.T, h http.Handler) {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, stagePath, testStartBody(), map[string]string{"X-Admin-Key": adminKey})
	if rec.Code != http.StatusOK {
		t.Fatalf("start stage status=%d body=%s", rec.Code, rec.Body.String())
	}
}

func getState(t *testing.T, h http.Handler, participant string) negotiation.StateView {
	t.Helper()
	headers := map[string]string{}
	if participant != "" {
		headers[participantHeader] = participant
	}
	rec := doJSON(t, h, http.MethodGet, stagePath+"/state", nil, headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("state status=%d body=%s", rec.Code, rec.Body.String())
	}
	var view negotiation.StateView
	if err := json.NewDecoder(rec.Body).Decode(&view); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return view
}

func decodeResult(t *testing.T, rec *httptest.ResponseRecorder) negotiation.CommandResult {
	t.Helper()
	var res negotiation.CommandResult
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		t.Fatalf("decode result: %v body=%s", err, rec.Body.String())
	}
	return res
}

func senderAndResponder(view negotiation.StateView) (string, string) {
	if view.Public.CurrentTurn == "pub-a" {
		return "priv-a", "priv-b"
	}
	return "priv-b", "priv-a"
}

func offerBody(participant, requestID string) map[string]any {
	return map[string]any{
		"participant_id": participant,
		"request_id":     requestID,
		"buy":            map[string]int64{"blue": 1},
		"sell":           map[string]int64{"red": 1},
	}
}

func TestStartRequiresAdminKey(t *testing.T) {
	h := newTestRouter(t)
	rec := doJSON(t, h, http.MethodPost, stagePath, testStartBody(), nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	startStage(t, h)
	rec = doJSON(t, h, http.MethodPost, stagePath, testStartBody(), map[string]string{"Authorization": "Bearer " + adminKey})
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second start, got %d", rec.Code)
	}
	if res := decodeResult(t, rec); res.ErrorKind != "stage_exists" {
		t.Fatalf("expected stage_exists, got %+v", res)
	}
}

func TestOfferAcceptFlowOverHTTP(t *testing.T) {
	h := newTestRouter(t)
	startStage(t, h)
	view := getState(t, h, "")
	sender, responder := senderAndResponder(view)

	rec := doJSON(t, h, http.MethodPost, stagePath+"/offers", offerBody(sender, "req-1"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("offer status=%d body=%s", rec.Code, rec.Body.String())
	}
	res := decodeResult(t, rec)
	if !res.Success || res.Version != 2 {
		t.Fatalf("unexpected offer result: %+v", res)
	}

	rec = doJSON(t, h, http.MethodPost, stagePath+"/offers", offerBody(sender, "req-1"), nil)
	if replay := decodeResult(t, rec); !replay.Success || !replay.Replayed || replay.Version != 2 {
		t.Fatalf("expected replayed success, got %+v", replay)
	}

	self := getState(t, h, responder).Self
	if self == nil || len(self.Pending) != 1 {
		t.Fatalf("expected one pending offer for responder, got %+v", self)
	}
	respBody := map[string]any{
		"participant_id": responder,
		"request_id":     "req-2",
		"round":          0,
		"sender_id":      view.Public.CurrentTurn,
		"response":       true,
	}
	rec = doJSON(t, h, http.MethodPost, stagePath+"/responses", respBody, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("response status=%d body=%s", rec.Code, rec.Body.String())
	}
	after := getState(t, h, "")
	tx := after.Public.ParticipantOfferMap[0][view.Public.CurrentTurn]
	if tx.Status != chip.StatusAccepted {
		t.Fatalf("expected accepted transaction, got %+v", tx)
	}

	rec = doJSON(t, h, http.MethodGet, stagePath+"/transcript", nil, map[string]string{participantHeader: responder})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Deal made") {
		t.Fatalf("expected deal in transcript, status=%d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodGet, stagePath+"/log?after_seq=0&limit=100", nil, nil)
	var page struct {
		Items        []chip.Event `json:"items"`
		NextAfterSeq int64        `json:"next_after_seq"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&page); err != nil {
		t.Fatalf("decode log: %v", err)
	}
	if len(page.Items) == 0 || page.NextAfterSeq != page.Items[len(page.Items)-1].Seq {
		t.Fatalf("unexpected log page: %+v", page)
	}
}

func TestCommandErrorStatuses(t *testing.T) {
	h := newTestRouter(t)
	rec := doJSON(t, h, http.MethodGet, stagePath+"/state", nil, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown stage, got %d", rec.Code)
	}
	startStage(t, h)
	view := getState(t, h, "")
	sender, responder := senderAndResponder(view)

	rec = doJSON(t, h, http.MethodPost, stagePath+"/offers", offerBody(responder, "req-early"), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 out of turn, got %d", rec.Code)
	}
	if res := decodeResult(t, rec); res.ErrorKind != "out_of_turn" {
		t.Fatalf("expected out_of_turn, got %+v", res)
	}

	big := offerBody(sender, "req-big")
	big["sell"] = map[string]int64{"red": 99}
	rec = doJSON(t, h, http.MethodPost, stagePath+"/offers", big, nil)
	res := decodeResult(t, rec)
	if rec.Code != http.StatusBadRequest || res.ErrorKind != "invalid_offer" || len(res.Errors) == 0 {
		t.Fatalf("expected invalid_offer with message, status=%d res=%+v", rec.Code, res)
	}

	rec = doJSON(t, h, http.MethodPost, stagePath+"/offers", offerBody(sender, "req-ok"), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("offer status=%d", rec.Code)
	}
	rec = doJSON(t, h, http.MethodPost, stagePath+"/offers", offerBody(sender, "req-dup"), nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 duplicate, got %d body=%s", rec.Code, rec.Body.String())
	}

	rec = doJSON(t, h, http.MethodPost, stagePath+"/offers", map[string]any{"bogus": true}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rec.Code)
	}

	rec = doJSON(t, h, http.MethodGet, "/api/experiments/exp/cohorts/cohort/stages/chips/log?after_seq=-1", nil, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for negative after_seq, got %d", rec.Code)
	}
}

func TestAdminResolveAndPayouts(t *testing.T) {
	h := newTestRouter(t)
	startStage(t, h)
	view := getState(t, h, "")
	sender, _ := senderAndResponder(view)
	if rec := doJSON(t, h, http.MethodPost, stagePath+"/offers", offerBody(sender, "req-1"), nil); rec.Code != http.StatusOK {
		t.Fatalf("offer status=%d", rec.Code)
	}
	body := map[string]any{"request_id": "req-resolve", "round": 0, "sender_id": view.Public.CurrentTurn}
	if rec := doJSON(t, h, http.MethodPost, stagePath+"/resolve", body, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without admin key, got %d", rec.Code)
	}
	rec := doJSON(t, h, http.MethodPost, stagePath+"/resolve", body, map[string]string{"X-Admin-Key": adminKey})
	if rec.Code != http.StatusOK {
		t.Fatalf("resolve status=%d body=%s", rec.Code, rec.Body.String())
	}
	tx := getState(t, h, "").Public.ParticipantOfferMap[0][view.Public.CurrentTurn]
	if tx.Status != chip.StatusRejected {
		t.Fatalf("expected declined after force resolve, got %s", tx.Status)
	}

	rec = doJSON(t, h, http.MethodGet, stagePath+"/payouts", nil, map[string]string{"X-Admin-Key": adminKey})
	var out struct {
		Items []chip.ParticipantPayout `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("decode payouts: %v", err)
	}
	if len(out.Items) != 2 {
		t.Fatalf("expected two payouts, got %+v", out.Items)
	}
}

func TestHealthz(t *testing.T) {
	h := newTestRouter(t)
	rec := doJSON(t, h, http.MethodGet, "/healthz", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestEventsSSEReplayAndLive(t *testing.T) {
	h := newTestRouter(t)
	startStage(t, h)
	srv := httptest.NewServer(h)
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodGet, srv.URL+stagePath+"/events", nil)
	req.Header.Set("Accept", "text/event-stream")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("open sse: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected Content-Type text/event-stream, got %q", ct)
	}
	rd := bufio.NewReader(resp.Body)
	first := readSSEEventWithTimeout(t, rd, time.Second)
	if first.ID != "1" || first.Event != feed.EventSnapshot {
		t.Fatalf("expected snapshot 1, got %+v", first)
	}

	sender, _ := senderAndResponder(getState(t, h, ""))
	if rec := doJSON(t, h, http.MethodPost, stagePath+"/offers", offerBody(sender, "req-live"), nil); rec.Code != http.StatusOK {
		t.Fatalf("offer status=%d", rec.Code)
	}
	live := readSSEEventWithTimeout(t, rd, time.Second)
	if live.ID != "2" {
		t.Fatalf("expected live snapshot 2, got %+v", live)
	}
	var u feed.Update
	if err := json.Unmarshal([]byte(live.Data), &u); err != nil {
		t.Fatalf("decode update: %v", err)
	}
	if len(u.Events) == 0 || u.Events[0].Type != chip.EventOffer {
		t.Fatalf("expected offer event in update, got %+v", u.Events)
	}

	req2, _ := http.NewRequest(http.MethodGet, srv.URL+stagePath+"/events", nil)
	req2.Header.Set("Last-Event-ID", "1")
	resp2, err := http.DefaultClient.Do(req2)
	if err != nil {
		t.Fatalf("open sse resume: %v", err)
	}
	defer resp2.Body.Close()
	resumed := readSSEEventWithTimeout(t, bufio.NewReader(resp2.Body), time.Second)
	if resumed.ID != "2" {
		t.Fatalf("expected resume at 2, got %+v", resumed)
	}
}

type sseEvent struct {
	ID    string
	Event string
	Data  string
}

func readSSEEventWithTimeout(t *testing.T, rd *bufio.Reader, timeout time.Duration) sseEvent {
	t.Helper()
	ch := make(chan sseEvent, 1)
	errCh := make(chan error, 1)
	go func() {
		ev, err := readSSEEvent(rd)
		if err != nil {
			errCh <- err
			return
		}
		ch <- ev
	}()
	select {
	case ev := <-ch:
		return ev
	case err := <-errCh:
		t.Fatalf("read event: %v", err)
	case <-time.After(timeout):
		t.Fatal("timeout waiting for sse event")
	}
	return sseEvent{}
}

func readSSEEvent(rd *bufio.Reader) (sseEvent, error) {
	ev := sseEvent{}
	for {
		line, err := rd.ReadString('\n')
		if err != nil {
			return ev, err
		}
		line = strings.TrimRight(line, "\n")
		if line == "" {
			return ev, nil
		}
		if strings.HasPrefix(line, "id: ") {
			ev.ID = strings.TrimPrefix(line, "id: ")
		}
		if strings.HasPrefix(line, "event: ") {
			ev.Event = strings.TrimPrefix(line, "event: ")
		}
		if strings.HasPrefix(line, "data: ") {
			ev.Data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestBodyCaptureMiddlewareKeepsRequestBody(t *testing.T) {
	body := `{"request_id":"req-1","sell":{"red":1},"buy":{"blue":1}}`
	var got string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		got = string(b)
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, stagePath+"/offers", strings.NewReader(body))
	BodyCaptureMiddleware(8)(handler).ServeHTTP(rec, req)

	if got != body {
		t.Fatalf("handler saw %q, want %q", got, body)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"success":true`) {
		t.Fatalf("unexpected response status=%d body=%s", rec.Code, rec.Body.String())
	}
}
