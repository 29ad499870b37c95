// Package webhooks forwards broker events to an external HTTP endpoint.
package webhooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"fibermig/internal/events"
	"fibermig/internal/metrics"
)

// Delivery is the JSON body posted for each event.
type Delivery struct {
	ID    string         `json:"id"`
	Type  string         `json:"type"`
	Topic string         `json:"topic"`
	TS    string         `json:"ts"`
	Data  map[string]any `json:"data"`
}

// Worker subscribes to broker topics and POSTs every event to URL, signed
// with Secret when one is set. Failed deliveries are retried with
// exponential backoff up to MaxAttempts and then dropped.
type Worker struct {
	URL         string
	Secret      string
	HTTP        *http.Client
	MaxAttempts int
	Topics      []string

	broker     events.EventBroker
	log        *zap.Logger
	newBackOff func() backoff.BackOff

	ctx    context.Context
	cancel context.CancelFunc
	subs   map[string]chan events.Event
	wg     sync.WaitGroup
}

func NewWorker(broker events.EventBroker, url, secret string, maxAttempts int, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		URL:         url,
		Secret:      secret,
		HTTP:        &http.Client{Timeout: 5 * time.Second},
		MaxAttempts: maxAttempts,
		Topics:      []string{events.TopicWaves, events.TopicTasks},
		broker:      broker,
		log:         log.Named("webhooks"),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 30 * time.Second
			return b
		},
		ctx:    ctx,
		cancel: cancel,
		subs:   map[string]chan events.Event{},
	}
}

// Start subscribes to every topic. Events of one topic are delivered in order.
func (w *Worker) Start() {
	for _, topic := range w.Topics {
		ch := w.broker.Subscribe(topic)
		w.subs[topic] = ch
		w.wg.Add(1)
		go func(topic string, ch chan events.Event) {
			defer w.wg.Done()
			for evt := range ch {
				w.process(topic, evt)
			}
		}(topic, ch)
	}
}

// Close unsubscribes, abandons pending retries and waits for the loops.
func (w *Worker) Close() {
	w.cancel()
	for topic, ch := range w.subs {
		w.broker.Unsubscribe(topic, ch)
	}
	w.wg.Wait()
}

func (w *Worker) process(topic string, evt events.Event) {
	d := Delivery{
		ID:    uuid.NewString(),
		Type:  evt.Type,
		Topic: topic,
		TS:    time.Now().UTC().Format(time.RFC3339),
		Data:  evt.Data,
	}
	if err := w.deliver(w.ctx, d); err != nil {
		metrics.WebhookDeliveries.WithLabelValues("failed").Inc()
		w.log.Warn("webhook delivery dropped", zap.String("event_id", d.ID), zap.String("type", d.Type), zap.Error(err))
		return
	}
	metrics.WebhookDeliveries.WithLabelValues("delivered").Inc()
}

func (w *Worker) deliver(ctx context.Context, d Delivery) error {
	body, err := json.Marshal(d)
	if err != nil {
		return backoff.Permanent(err)
	}
	attempt := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderEventType, d.Type)
		req.Header.Set(HeaderEventID, d.ID)
		if w.Secret != "" {
			req.Header.Set(HeaderSignature, SignHMAC(w.Secret, body))
		}
		resp, err := w.HTTP.Do(req)
		if err != nil {
			return err
		}
		_ = resp.Body.Close()
		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
			return backoff.Permanent(fmt.Errorf("webhook rejected: status %d", resp.StatusCode))
		default:
			return fmt.Errorf("webhook failed: status %d", resp.StatusCode)
		}
	}
	b := backoff.WithContext(backoff.WithMaxRetries(w.newBackOff(), uint64(w.MaxAttempts-1)), ctx)
	return backoff.RetryNotify(attempt, b, func(err error, wait time.Duration) {
		w.log.Debug("webhook retry", zap.String("event_id", d.ID), zap.Duration("wait", wait), zap.Error(err))
	})
}
