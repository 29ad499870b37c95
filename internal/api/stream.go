package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"fibermig/internal/events"
)

var heartbeatInterval = 15 * time.Second

func streamTopic(r *http.Request) (string, bool) {
	switch t := r.URL.Query().Get("topic"); t {
	case "":
		return events.TopicWaves, true
	case events.TopicWaves, events.TopicTasks:
		return t, true
	default:
		return t, false
	}
}

// EventStreamHandler streams broker events of one topic as server-sent events.
func (s *Server) EventStreamHandler(w http.ResponseWriter, r *http.Request) {
	topic, ok := streamTopic(r)
	if !ok {
		badRequest(w, r, "unknown topic %q", topic)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeProblem(w, http.StatusInternalServerError, "Streaming unsupported", "", r.URL.Path)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := s.Broker.Subscribe(topic)
	defer s.Broker.Unsubscribe(topic, ch)

	heartbeat := func() {
		fmt.Fprintf(w, "event: heartbeat\ndata: {\"topic\":%q,\"ts\":%q}\n\n", topic, time.Now().UTC().Format(time.RFC3339))
		flusher.Flush()
	}
	heartbeat()
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt, open := <-ch:
			if !open {
				return
			}
			b, _ := json.Marshal(evt.Data)
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, b)
			flusher.Flush()
		case <-ticker.C:
			heartbeat()
		}
	}
}

var upgrader = websocket.Upgrader{CheckOrigin: func(_ *http.Request) bool { return true }}

type wsMessage struct {
	Type  string         `json:"type"`
	Topic string         `json:"topic,omitempty"`
	Event *events.Event  `json:"event,omitempty"`
	Error string         `json:"error,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// EventWSHandler serves broker events over a websocket. Clients send
// {"type":"subscribe","topic":...} and {"type":"unsubscribe","topic":...};
// the server answers "ping" with "pong" and pushes {"type":"event"} frames.
func (s *Server) EventWSHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer func() { _ = conn.Close() }()

	var writeMu sync.Mutex
	write := func(m wsMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(m)
	}

	subs := map[string]chan events.Event{}
	var fanout sync.WaitGroup
	defer func() {
		for topic, ch := range subs {
			s.Broker.Unsubscribe(topic, ch)
		}
		fanout.Wait()
	}()

	conn.SetReadLimit(1 << 16)
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(60 * time.Second)) })

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		switch msg.Type {
		case "ping":
			_ = write(wsMessage{Type: "pong"})
		case "subscribe":
			if msg.Topic != events.TopicWaves && msg.Topic != events.TopicTasks {
				_ = write(wsMessage{Type: "error", Topic: msg.Topic, Error: "unknown topic"})
				continue
			}
			if _, dup := subs[msg.Topic]; dup {
				continue
			}
			ch := s.Broker.Subscribe(msg.Topic)
			subs[msg.Topic] = ch
			fanout.Add(1)
			go func(topic string, ch chan events.Event) {
				defer fanout.Done()
				for evt := range ch {
					_ = write(wsMessage{Type: "event", Topic: topic, Event: &evt})
				}
			}(msg.Topic, ch)
			_ = write(wsMessage{Type: "subscribed", Topic: msg.Topic})
		case "unsubscribe":
			if ch, ok := subs[msg.Topic]; ok {
				s.Broker.Unsubscribe(msg.Topic, ch)
				delete(subs, msg.Topic)
			}
		default:
			_ = write(wsMessage{Type: "error", Error: fmt.Sprintf("unknown message type %q", msg.Type)})
		}
	}
}
