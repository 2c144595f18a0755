package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newTestHTTPClient(fn roundTripFunc) *HTTPClient {
	return &HTTPClient{inner: &http.Client{Transport: fn}}
}

func reply(code int) *http.Response {
	return &http.Response{StatusCode: code, Body: io.NopCloser(bytes.NewReader(nil)), Header: make(http.Header)}
}

func TestDiscordAdapterPayload(t *testing.T) {
	var got discordPayload
	client := newTestHTTPClient(func(r *http.Request) (*http.Response, error) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return reply(http.StatusNoContent), nil
	})

	err := NewDiscordAdapter(client).Send(context.Background(), "https://discord.example/webhook", "", Message{
		Title:     "Deal · chips",
		Text:      "pub-a traded with pub-b",
		Body:      "pub-a gave 1 blue for 2 red",
		Color:     12345,
		Timestamp: "2025-01-01T00:00:00Z",
		Footer:    "chip negotiation",
		Fields:    []Field{{Label: "Round", Value: "1", Short: true}},
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if got.Content != "pub-a traded with pub-b" || len(got.Embeds) != 1 {
		t.Fatalf("unexpected payload: %+v", got)
	}
	embed := got.Embeds[0]
	if embed.Color != 12345 || embed.Timestamp != "2025-01-01T00:00:00Z" || embed.Description == "" {
		t.Fatalf("unexpected embed: %+v", embed)
	}
	if embed.Footer == nil || embed.Footer.Text != "chip negotiation" {
		t.Fatalf("unexpected footer: %+v", embed.Footer)
	}
	if len(embed.Fields) != 1 || !embed.Fields[0].Inline {
		t.Fatalf("unexpected fields: %+v", embed.Fields)
	}
}

func TestStatusErrorRetryable(t *testing.T) {
	for code, want := range map[int]bool{
		http.StatusTooManyRequests:     true,
		http.StatusBadGateway:          true,
		http.StatusBadRequest:          false,
		http.StatusNotFound:            false,
		http.StatusInternalServerError: true,
	} {
		client := newTestHTTPClient(func(*http.Request) (*http.Response, error) { return reply(code), nil })
		err := NewDiscordAdapter(client).Send(context.Background(), "https://discord.example/webhook", "", Message{})
		var se *StatusError
		if !errors.As(err, &se) {
			t.Fatalf("status %d: expected StatusError, got %v", code, err)
		}
		if se.Retryable() != want {
			t.Fatalf("status %d: retryable=%v want %v", code, se.Retryable(), want)
		}
	}
}

func TestFeishuAdapterPayloadAndHeader(t *testing.T) {
	var got map[string]any
	var headerSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headerSig = r.Header.Get("X-Lark-Signature")
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := NewFeishuAdapter(NewHTTPClient(time.Second)).Send(context.Background(), srv.URL, "sig:sig-1", Message{
		Title:  "t",
		Text:   "summary",
		Fields: []Field{{Label: "Round", Value: "2", Short: true}},
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if headerSig != "sig-1" {
		t.Fatalf("unexpected signature header: %s", headerSig)
	}
	if got["msg_type"] != "interactive" {
		t.Fatalf("unexpected msg_type: %v", got["msg_type"])
	}
	card, _ := got["card"].(map[string]any)
	elements, _ := card["elements"].([]any)
	if len(elements) != 2 {
		t.Fatalf("expected summary plus one field, got %#v", elements)
	}
	first, _ := elements[0].(map[string]any)
	if first["text"] != "summary" {
		t.Fatalf("body should fall back to text, got %#v", first)
	}
}

func TestFeishuAdapterUnsignedWhenNoSecret(t *testing.T) {
	var sawHeader bool
	client := newTestHTTPClient(func(r *http.Request) (*http.Response, error) {
		_, sawHeader = r.Header["X-Lark-Signature"]
		return reply(http.StatusOK), nil
	})
	if err := NewFeishuAdapter(client).Send(context.Background(), "https://open.feishu.example/hook", "", Message{Title: "t"}); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if sawHeader {
		t.Fatal("expected no signature header")
	}
}
