package webhooks

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"fibermig/internal/events"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestWorker(t *testing.T, srv *httptest.Server, attempts int) (*Worker, *events.Broker) {
	t.Helper()
	b := events.NewBroker()
	w := NewWorker(b, srv.URL, "secret", attempts, nil)
	w.HTTP = srv.Client()
	w.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return w, b
}

func TestWorkerDeliversSignedEvent(t *testing.T) {
	got := make(chan *http.Request, 1)
	bodies := make(chan []byte, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		got <- r
		bodies <- b
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	w, b := newTestWorker(t, srv, 3)
	w.Start()
	b.Publish(events.TopicWaves, events.Event{Type: events.WaveProgressUpdated, Data: map[string]any{"wave_id": "w1", "progress_percentage": 50}})

	select {
	case r := <-got:
		body := <-bodies
		assert.Equal(t, events.WaveProgressUpdated, r.Header.Get(HeaderEventType))
		assert.True(t, VerifyHMAC("secret", body, r.Header.Get(HeaderSignature)))
		var d Delivery
		require.NoError(t, json.Unmarshal(body, &d))
		assert.Equal(t, events.TopicWaves, d.Topic)
		assert.Equal(t, "w1", d.Data["wave_id"])
		assert.NotEmpty(t, d.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery")
	}
	w.Close()
}

func TestWorkerRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w, _ := newTestWorker(t, srv, 3)
	err := w.deliver(w.ctx, Delivery{ID: "e1", Type: events.TaskCompleted})
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
	w.Close()
}

func TestWorkerGivesUp(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w, _ := newTestWorker(t, srv, 2)
	assert.Error(t, w.deliver(w.ctx, Delivery{ID: "e1"}))
	assert.EqualValues(t, 2, calls.Load())
	w.Close()
}

func TestWorkerDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	w, _ := newTestWorker(t, srv, 5)
	assert.Error(t, w.deliver(w.ctx, Delivery{ID: "e1"}))
	assert.EqualValues(t, 1, calls.Load())
	w.Close()
}

func TestVerifyHMAC(t *testing.T) {
	sig := SignHMAC("k", []byte("body"))
	assert.True(t, VerifyHMAC("k", []byte("body"), sig))
	assert.False(t, VerifyHMAC("k", []byte("other"), sig))
	assert.False(t, VerifyHMAC("k", []byte("body"), "not-hex"))
}
