package worker

import (
	"context"
	"log"
	"time"

	"github.com/metervend/internal/device"
	"github.com/metervend/internal/models"
	"github.com/metervend/internal/ws"
	"github.com/shopspring/decimal"
)

// MeterSource is the slice of meter persistence the worker needs
type MeterSource interface {
	ListAll() ([]models.Meter, error)
	ApplyUsage(meterID uint, usage decimal.Decimal) (*models.Meter, decimal.Decimal, error)
}

// ReadingSink receives the freshest reading per meter (the redis cache)
type ReadingSink interface {
	SetLatest(ctx context.Context, meterNum, units, usedUnits string) error
}

// Broadcaster pushes reading updates to live subscribers
type Broadcaster interface {
	BroadcastReading(update ws.ReadingUpdate)
}

// UsageWorker decrements metered consumption from every meter on a fixed
// interval and forwards each new reading to the controller relay as a
// decimal string. One sweep entry per meter, keyed by meter id; there is no
// ambient "current session" target. Relay, cache and broadcast failures are
// logged and never stop the sweep.
type UsageWorker struct {
	meters   MeterSource
	relay    device.Relay
	readings ReadingSink
	hub      Broadcaster
	usage    decimal.Decimal
	interval time.Duration
	stopChan chan struct{}
}

// NewUsageWorker creates a new usage decrement worker
func NewUsageWorker(
	meters MeterSource,
	relay device.Relay,
	readings ReadingSink,
	hub Broadcaster,
	usage decimal.Decimal,
	interval time.Duration,
) *UsageWorker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &UsageWorker{
		meters:   meters,
		relay:    relay,
		readings: readings,
		hub:      hub,
		usage:    usage,
		interval: interval,
		stopChan: make(chan struct{}),
	}
}

// Start begins the decrement loop
func (w *UsageWorker) Start() {
	log.Printf("Usage worker started: %s units every %v", w.usage, w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Sweep()
		case <-w.stopChan:
			log.Println("Usage worker stopped")
			return
		}
	}
}

// Stop stops the decrement loop
func (w *UsageWorker) Stop() {
	close(w.stopChan)
}

// Sweep runs one decrement pass over every meter
func (w *UsageWorker) Sweep() {
	meters, err := w.meters.ListAll()
	if err != nil {
		log.Printf("Usage worker: failed to list meters: %v", err)
		return
	}

	for _, meter := range meters {
		updated, used, err := w.meters.ApplyUsage(meter.ID, w.usage)
		if err != nil {
			log.Printf("Usage worker: failed to decrement meter %s: %v", meter.Num, err)
			continue
		}

		reading := updated.Units.String()
		if err := w.relay.Send(reading); err != nil {
			log.Printf("Usage worker: relay send for meter %s: %v", updated.Num, err)
		}

		if w.readings != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			if err := w.readings.SetLatest(ctx, updated.Num, reading, used.String()); err != nil {
				log.Printf("Usage worker: reading cache for meter %s: %v", updated.Num, err)
			}
			cancel()
		}

		if w.hub != nil {
			w.hub.BroadcastReading(ws.ReadingUpdate{
				MeterNum:  updated.Num,
				Units:     reading,
				UsedUnits: used.String(),
				At:        time.Now(),
			})
		}
	}
}
