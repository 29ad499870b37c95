package events

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestRedisBrokerRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	b := newRedisBroker(redis.NewClient(&redis.Options{Addr: mr.Addr()}), zap.NewNop())
	defer b.Close()

	require.NoError(t, b.Ping(t.Context()))

	ch := b.Subscribe(TopicWaves)
	b.Publish(TopicWaves, Event{Type: WaveProgressUpdated, Data: map[string]any{"wave_id": "w1", "progress_percentage": 67}})

	select {
	case got := <-ch:
		assert.Equal(t, WaveProgressUpdated, got.Type)
		assert.Equal(t, "w1", got.Data["wave_id"])
		// JSON numbers decode as float64
		assert.Equal(t, float64(67), got.Data["progress_percentage"])
	case <-time.After(2 * time.Second):
		t.Fatal("timeout waiting for redis event")
	}

	b.Unsubscribe(TopicWaves, ch)
	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("channel not closed after unsubscribe")
	}
}
