package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/metervend/internal/models"
	"github.com/metervend/internal/service"
	"github.com/metervend/internal/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

type ledgerFixture struct {
	svc     *service.LedgerService
	meters  *testutil.MeterStore
	offers  *testutil.OfferStore
	gateway *testutil.PaymentStub
	relay   *testutil.RelayRecorder
}

func newLedger() *ledgerFixture {
	meters := testutil.NewMeterStore()
	offers := &testutil.OfferStore{Offers: []models.EmergencyOffer{
		{ID: 1, Units: dec("10"), Price: dec("2")},
		{ID: 2, Units: dec("50"), Price: dec("10")},
	}}
	logs := &testutil.LogStore{Meters: meters}
	gateway := &testutil.PaymentStub{}
	relay := &testutil.RelayRecorder{}
	svc := service.NewLedgerService(meters, offers, logs, gateway, relay)
	return &ledgerFixture{svc: svc, meters: meters, offers: offers, gateway: gateway, relay: relay}
}

func TestTransferConservesUnits(t *testing.T) {
	f := newLedger()
	src := f.meters.Seed(1, "11111111", dec("500"), decimal.Zero)
	dest := f.meters.Seed(2, "12345678", dec("50"), decimal.Zero)

	before := src.Units.Add(dest.Units)

	updated, err := f.svc.Transfer(1, "12345678", dec("200"))
	require.NoError(t, err)
	assert.True(t, updated.Units.Equal(dec("300")), "source should hold 300, got %s", updated.Units)

	destAfter, err := f.meters.GetByNum("12345678")
	require.NoError(t, err)
	assert.True(t, destAfter.Units.Equal(dec("250")), "destination should hold 250, got %s", destAfter.Units)

	after := updated.Units.Add(destAfter.Units)
	assert.True(t, before.Equal(after), "transfer must conserve units: %s != %s", before, after)
}

func TestTransferInsufficientUnits(t *testing.T) {
	f := newLedger()
	f.meters.Seed(1, "11111111", dec("100"), decimal.Zero)
	f.meters.Seed(2, "12345678", dec("50"), decimal.Zero)

	_, err := f.svc.Transfer(1, "12345678", dec("100.01"))
	assert.ErrorIs(t, err, service.ErrInsufficientUnits)

	src, _ := f.meters.GetByNum("11111111")
	dest, _ := f.meters.GetByNum("12345678")
	assert.True(t, src.Units.Equal(dec("100")), "source must be unchanged")
	assert.True(t, dest.Units.Equal(dec("50")), "destination must be unchanged")
}

func TestTransferUnknownDestination(t *testing.T) {
	f := newLedger()
	f.meters.Seed(1, "11111111", dec("100"), decimal.Zero)

	_, err := f.svc.Transfer(1, "99999999", dec("10"))
	assert.ErrorIs(t, err, service.ErrUnknownDestination)

	src, _ := f.meters.GetByNum("11111111")
	assert.True(t, src.Units.Equal(dec("100")))
}

func TestTransferToOwnMeter(t *testing.T) {
	f := newLedger()
	f.meters.Seed(1, "11111111", dec("100"), decimal.Zero)

	_, err := f.svc.Transfer(1, "11111111", dec("10"))
	assert.ErrorIs(t, err, service.ErrSelfTransfer)
}

func TestTransferInvalidAmount(t *testing.T) {
	f := newLedger()
	f.meters.Seed(1, "11111111", dec("100"), decimal.Zero)
	f.meters.Seed(2, "12345678", dec("50"), decimal.Zero)

	for _, amount := range []string{"0", "-5"} {
		_, err := f.svc.Transfer(1, "12345678", dec(amount))
		assert.ErrorIs(t, err, service.ErrInvalidAmount, "amount %s", amount)
	}
}

func TestTransferWithoutMeter(t *testing.T) {
	f := newLedger()
	f.meters.Seed(2, "12345678", dec("50"), decimal.Zero)

	_, err := f.svc.Transfer(1, "12345678", dec("10"))
	assert.ErrorIs(t, err, service.ErrNoMeter)
}

func TestTopUpCreditsBalance(t *testing.T) {
	f := newLedger()
	f.meters.Seed(1, "11111111", decimal.Zero, dec("5"))

	meter, ref, err := f.svc.TopUp(context.Background(), 1, dec("20.50"), "0771234567", "home@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ref-0001", ref)
	assert.True(t, meter.Balance.Equal(dec("25.50")))
	assert.Equal(t, 1, f.gateway.Calls)

	// Top-up never converts balance into units
	assert.True(t, meter.Units.IsZero())
}

func TestTopUpPaymentDeclined(t *testing.T) {
	f := newLedger()
	f.meters.Seed(1, "11111111", decimal.Zero, dec("5"))
	f.gateway.Err = errors.New("gateway timeout")

	_, _, err := f.svc.TopUp(context.Background(), 1, dec("20"), "0771234567", "home@example.com")
	assert.ErrorIs(t, err, service.ErrPaymentFailed)

	meter, _ := f.meters.GetByNum("11111111")
	assert.True(t, meter.Balance.Equal(dec("5")), "balance must be unchanged on payment failure")
}

func TestTopUpInvalidAmount(t *testing.T) {
	f := newLedger()
	f.meters.Seed(1, "11111111", decimal.Zero, decimal.Zero)

	_, _, err := f.svc.TopUp(context.Background(), 1, dec("-1"), "0771234567", "home@example.com")
	assert.ErrorIs(t, err, service.ErrInvalidAmount)
	assert.Equal(t, 0, f.gateway.Calls)
}

func TestEmergencyCreditGrantsOffer(t *testing.T) {
	f := newLedger()
	f.meters.Seed(1, "11111111", decimal.Zero, dec("30"))

	meter, err := f.svc.EmergencyCredit(1, 2) // 50 units for 10.00
	require.NoError(t, err)

	assert.True(t, meter.Units.Equal(dec("50")), "units should be 50, got %s", meter.Units)
	assert.True(t, meter.Balance.Equal(dec("20")), "balance should be 20, got %s", meter.Balance)

	require.Len(t, f.meters.Logs, 1, "exactly one log row per grant")
	entry := f.meters.Logs[0]
	assert.Equal(t, models.ActivityEmergencyCredit, entry.Activity)
	assert.True(t, entry.UsedUnits.IsZero())
	assert.True(t, entry.RemainingUnits.Equal(dec("50")), "remaining_units records the unit count after the grant")
}

func TestEmergencyCreditRejectedAboveThreshold(t *testing.T) {
	f := newLedger()
	f.meters.Seed(1, "11111111", dec("5"), dec("30"))

	_, err := f.svc.EmergencyCredit(1, 2)
	assert.ErrorIs(t, err, service.ErrNotEmergency)

	meter, _ := f.meters.GetByNum("11111111")
	assert.True(t, meter.Units.Equal(dec("5")))
	assert.True(t, meter.Balance.Equal(dec("30")))
	assert.Empty(t, f.meters.Logs)
}

func TestEmergencyCreditAllowedAtThreshold(t *testing.T) {
	f := newLedger()
	f.meters.Seed(1, "11111111", dec("1"), dec("30"))

	meter, err := f.svc.EmergencyCredit(1, 1) // 10 units for 2.00
	require.NoError(t, err)
	assert.True(t, meter.Units.Equal(dec("11")))
}

func TestEmergencyCreditUnknownOffer(t *testing.T) {
	f := newLedger()
	f.meters.Seed(1, "11111111", decimal.Zero, dec("30"))

	_, err := f.svc.EmergencyCredit(1, 99)
	assert.ErrorIs(t, err, service.ErrUnknownOffer)
	assert.Empty(t, f.meters.Logs)
}

func TestEmergencyCreditConcurrentRequestsGrantOnce(t *testing.T) {
	f := newLedger()
	f.meters.Seed(1, "11111111", decimal.Zero, dec("30"))

	// Both requests read the meter at zero units before either grant lands.
	// The threshold guard runs inside the store's atomic apply, so exactly
	// one of them may succeed.
	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.EmergencyCredit(1, 1)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var granted, rejected int
	for err := range errs {
		if err == nil {
			granted++
		} else {
			assert.ErrorIs(t, err, service.ErrNotEmergency)
			rejected++
		}
	}
	assert.Equal(t, 1, granted)
	assert.Equal(t, 1, rejected)

	meter, _ := f.meters.GetByNum("11111111")
	assert.True(t, meter.Units.Equal(dec("10")), "only one grant may land, got %s units", meter.Units)
	assert.True(t, meter.Balance.Equal(dec("28")), "only one debit may land, got %s balance", meter.Balance)
	require.Len(t, f.meters.Logs, 1)
}

func TestEmergencyCreditMayDriveBalanceNegative(t *testing.T) {
	f := newLedger()
	f.meters.Seed(1, "11111111", decimal.Zero, dec("5"))

	meter, err := f.svc.EmergencyCredit(1, 2) // price 10.00 against balance 5.00
	require.NoError(t, err)
	assert.True(t, meter.Balance.Equal(dec("-5")), "the debt is intentional, got %s", meter.Balance)
}

func TestActivityReturnsLogRows(t *testing.T) {
	f := newLedger()
	f.meters.Seed(1, "11111111", decimal.Zero, dec("30"))

	_, err := f.svc.EmergencyCredit(1, 1)
	require.NoError(t, err)

	entries, err := f.svc.Activity(1, time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestSetSupply(t *testing.T) {
	f := newLedger()

	require.NoError(t, f.svc.SetSupply(true))
	require.NoError(t, f.svc.SetSupply(false))
	assert.Equal(t, []string{"1", "0"}, f.relay.Sent())
}

func TestSetSupplyRelayFailure(t *testing.T) {
	f := newLedger()
	f.relay.Err = errors.New("broken pipe")

	err := f.svc.SetSupply(true)
	assert.ErrorIs(t, err, service.ErrDeviceUnavailable)
}
