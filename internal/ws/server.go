package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/PAIR-code/deliberate-lab-sub002/internal/chip"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/feed"
	"github.com/PAIR-code/deliberate-lab-sub002/internal/stage"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// LoadFunc returns the current public document of a stage.
type LoadFunc func(ctx context.Context, key stage.Key) (chip.PublicData, error)

type Server struct {
	hub          *feed.Hub
	load         LoadFunc
	upgrader     websocket.Upgrader
	writeTimeout time.Duration
	pingInterval time.Duration
}

func NewServer(hub *feed.Hub, load LoadFunc) *Server {
	return &Server{
		hub:          hub,
		load:         load,
		upgrader:     websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		writeTimeout: 5 * time.Second,
		pingInterval: 20 * time.Second,
	}
}

type client struct {
	conn *websocket.Conn
	send chan any
}

// ServeStage upgrades the request and pushes every snapshot of key newer
// than the after_version query parameter. The current snapshot goes first.
func (s *Server) ServeStage(w http.ResponseWriter, r *http.Request, key stage.Key) {
	pd, err := s.load(r.Context(), key)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	var after int64
	if v := r.URL.Query().Get("after_version"); v != "" {
		after, _ = strconv.ParseInt(v, 10, 64)
	}
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.hub.Publish(key, pd, nil)
	buf := s.hub.Buffer(key)
	updates := buf.Subscribe()
	defer buf.Unsubscribe(updates)

	c := &client{conn: conn, send: make(chan any, 16)}
	done := make(chan struct{})
	go s.writeLoop(c, done)
	defer func() {
		close(c.send)
		<-done
		_ = conn.Close()
	}()

	sent := after
	if u, ok := buf.Latest(); ok && u.Version > sent {
		c.send <- snapshot(u)
		sent = u.Version
	}

	reads := make(chan ClientMessage)
	stop := make(chan struct{})
	defer close(stop)
	go readLoop(conn, reads, stop)
	log.Debug().Str("stage_key", key.String()).Msg("ws client attached")
	for {
		select {
		case msg, ok := <-reads:
			if !ok {
				log.Debug().Str("stage_key", key.String()).Msg("ws client detached")
				return
			}
			if msg.Type == "ping" {
				c.send <- PongMessage{Type: TypePong, ProtocolVersion: ProtocolVersion}
			}
		case u, ok := <-updates:
			if !ok {
				return
			}
			if u.Version <= sent {
				continue
			}
			c.send <- snapshot(u)
			sent = u.Version
		}
	}
}

func snapshot(u feed.Update) SnapshotMessage {
	return SnapshotMessage{Type: TypeSnapshot, ProtocolVersion: ProtocolVersion, Update: u}
}

func readLoop(conn *websocket.Conn, out chan<- ClientMessage, stop <-chan struct{}) {
	defer close(out)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		select {
		case out <- msg:
		case <-stop:
			return
		}
	}
}

func (s *Server) writeLoop(c *client, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(s.writeTimeout))
				return
			}
			_ = c.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				drain(c.send)
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(s.writeTimeout)); err != nil {
				drain(c.send)
				return
			}
		}
	}
}

func drain(ch <-chan any) {
	for range ch {
	}
}
