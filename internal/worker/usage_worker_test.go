package worker_test

import (
	"errors"
	"testing"
	"time"

	"github.com/metervend/internal/models"
	"github.com/metervend/internal/testutil"
	"github.com/metervend/internal/worker"
	"github.com/metervend/internal/ws"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type hubRecorder struct {
	updates []ws.ReadingUpdate
}

func (h *hubRecorder) BroadcastReading(update ws.ReadingUpdate) {
	h.updates = append(h.updates, update)
}

func TestSweepDecrementsAndRelays(t *testing.T) {
	meters := testutil.NewMeterStore()
	meters.Seed(1, "11111111", decimal.NewFromInt(500), decimal.Zero)
	relay := &testutil.RelayRecorder{}

	w := worker.NewUsageWorker(meters, relay, nil, nil, decimal.NewFromInt(123), time.Second)
	w.Sweep()

	meter, err := meters.GetByNum("11111111")
	require.NoError(t, err)
	assert.True(t, meter.Units.Equal(decimal.NewFromInt(377)), "units should be 377, got %s", meter.Units)

	// Exactly one relay send per firing, carrying the new reading
	assert.Equal(t, []string{"377"}, relay.Sent())
}

func TestSweepClampsUnitsAtZero(t *testing.T) {
	meters := testutil.NewMeterStore()
	meters.Seed(1, "11111111", decimal.NewFromInt(50), decimal.Zero)
	relay := &testutil.RelayRecorder{}

	w := worker.NewUsageWorker(meters, relay, nil, nil, decimal.NewFromInt(123), time.Second)
	w.Sweep()

	meter, err := meters.GetByNum("11111111")
	require.NoError(t, err)
	assert.True(t, meter.Units.IsZero(), "units must saturate at zero, got %s", meter.Units)
	assert.Equal(t, []string{"0"}, relay.Sent())
}

func TestSweepCoversEveryMeter(t *testing.T) {
	meters := testutil.NewMeterStore()
	meters.Seed(1, "11111111", decimal.NewFromInt(500), decimal.Zero)
	meters.Seed(2, "22222222", decimal.NewFromInt(200), decimal.Zero)
	relay := &testutil.RelayRecorder{}

	w := worker.NewUsageWorker(meters, relay, nil, nil, decimal.NewFromInt(123), time.Second)
	w.Sweep()

	first, _ := meters.GetByNum("11111111")
	second, _ := meters.GetByNum("22222222")
	assert.True(t, first.Units.Equal(decimal.NewFromInt(377)))
	assert.True(t, second.Units.Equal(decimal.NewFromInt(77)))
	assert.Equal(t, []string{"377", "77"}, relay.Sent())
}

func TestSweepContinuesPastRelayFailure(t *testing.T) {
	meters := testutil.NewMeterStore()
	meters.Seed(1, "11111111", decimal.NewFromInt(500), decimal.Zero)
	meters.Seed(2, "22222222", decimal.NewFromInt(200), decimal.Zero)
	relay := &testutil.RelayRecorder{Err: errors.New("controller unreachable")}

	w := worker.NewUsageWorker(meters, relay, nil, nil, decimal.NewFromInt(123), time.Second)
	w.Sweep()

	// The decrement is persisted even when the relay is down
	first, _ := meters.GetByNum("11111111")
	second, _ := meters.GetByNum("22222222")
	assert.True(t, first.Units.Equal(decimal.NewFromInt(377)))
	assert.True(t, second.Units.Equal(decimal.NewFromInt(77)))
}

func TestSweepBroadcastsReadings(t *testing.T) {
	meters := testutil.NewMeterStore()
	meters.Seed(1, "11111111", decimal.NewFromInt(500), decimal.Zero)
	relay := &testutil.RelayRecorder{}
	hub := &hubRecorder{}

	w := worker.NewUsageWorker(meters, relay, nil, hub, decimal.NewFromInt(123), time.Second)
	w.Sweep()

	require.Len(t, hub.updates, 1)
	assert.Equal(t, "11111111", hub.updates[0].MeterNum)
	assert.Equal(t, "377", hub.updates[0].Units)
	assert.Equal(t, "123", hub.updates[0].UsedUnits)
}

func TestSweepWritesUsageLog(t *testing.T) {
	meters := testutil.NewMeterStore()
	meters.Seed(1, "11111111", decimal.NewFromInt(500), decimal.Zero)
	relay := &testutil.RelayRecorder{}

	w := worker.NewUsageWorker(meters, relay, nil, nil, decimal.NewFromInt(123), time.Second)
	w.Sweep()

	require.Len(t, meters.Logs, 1)
	entry := meters.Logs[0]
	assert.Equal(t, models.ActivityUsage, entry.Activity)
	assert.True(t, entry.UsedUnits.Equal(decimal.NewFromInt(123)))
	assert.True(t, entry.RemainingUnits.Equal(decimal.NewFromInt(377)))
}

func TestStartStop(t *testing.T) {
	meters := testutil.NewMeterStore()
	meters.Seed(1, "11111111", decimal.NewFromInt(10000), decimal.Zero)
	relay := &testutil.RelayRecorder{}

	w := worker.NewUsageWorker(meters, relay, nil, nil, decimal.NewFromInt(1), 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		w.Start()
		close(done)
	}()

	time.Sleep(60 * time.Millisecond)
	w.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}

	assert.NotEmpty(t, relay.Sent())
}
