package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient() *Client {
	return &Client{send: make(chan []byte, 1)}
}

func TestHubBroadcastDeliversToSubscriber(t *testing.T) {
	hub := NewHub()
	client := newTestClient()
	hub.Register("11111111", client)

	hub.BroadcastReading(ReadingUpdate{
		MeterNum:  "11111111",
		Units:     "377",
		UsedUnits: "123",
		At:        time.Now(),
	})

	select {
	case payload := <-client.send:
		var update ReadingUpdate
		require.NoError(t, json.Unmarshal(payload, &update))
		assert.Equal(t, "377", update.Units)
	default:
		t.Fatal("no payload delivered")
	}
}

func TestHubBroadcastIgnoresOtherMeters(t *testing.T) {
	hub := NewHub()
	client := newTestClient()
	hub.Register("11111111", client)

	hub.BroadcastReading(ReadingUpdate{MeterNum: "22222222", Units: "50"})

	assert.Empty(t, client.send)
}

func TestHubBroadcastSkipsSlowClient(t *testing.T) {
	hub := NewHub()
	client := newTestClient()
	hub.Register("11111111", client)

	// Fill the buffer; the next broadcast must drop rather than block
	hub.BroadcastReading(ReadingUpdate{MeterNum: "11111111", Units: "377"})
	hub.BroadcastReading(ReadingUpdate{MeterNum: "11111111", Units: "254"})

	assert.Len(t, client.send, 1)
}

func TestHubUnregisterClosesSend(t *testing.T) {
	hub := NewHub()
	client := newTestClient()
	hub.Register("11111111", client)

	hub.Unregister("11111111", client)

	_, ok := <-client.send
	assert.False(t, ok, "send channel must be closed on unregister")

	// Second unregister is a no-op, not a double close
	hub.Unregister("11111111", client)

	// Broadcasts after unregister must not reach the closed channel
	hub.BroadcastReading(ReadingUpdate{MeterNum: "11111111", Units: "377"})
}
