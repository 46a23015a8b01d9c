package service

import (
	"context"
	"errors"
	"time"

	"github.com/metervend/internal/device"
	"github.com/metervend/internal/models"
	"github.com/metervend/internal/payment"
	"github.com/metervend/internal/repository"
	"github.com/shopspring/decimal"
)

var (
	ErrNoMeter            = errors.New("this account has no meter specified")
	ErrUnknownDestination = errors.New("meter number does not exist")
	ErrSelfTransfer       = errors.New("cannot transfer units to your own meter")
	ErrInsufficientUnits  = errors.New("you have insufficient units to transfer")
	ErrInvalidAmount      = errors.New("amount must be a positive number")
	ErrUnknownOffer       = errors.New("emergency units not found")
	ErrNotEmergency       = errors.New("it is not an emergency situation yet")
	ErrPaymentFailed      = errors.New("could not complete transaction, try again later")
	ErrDeviceUnavailable  = errors.New("could not reach the meter controller")
)

// emergencyThreshold: emergency credit is only permitted while remaining
// units are at or below this.
var emergencyThreshold = decimal.NewFromInt(1)

// LedgerService performs all unit/balance arithmetic for a household's
// meter: transfers, top-ups, emergency credit, and supply activation.
type LedgerService struct {
	meters  MeterStore
	offers  OfferStore
	logs    LogStore
	gateway payment.Gateway
	relay   device.Relay
}

// NewLedgerService creates a new LedgerService
func NewLedgerService(
	meters MeterStore,
	offers OfferStore,
	logs LogStore,
	gateway payment.Gateway,
	relay device.Relay,
) *LedgerService {
	return &LedgerService{
		meters:  meters,
		offers:  offers,
		logs:    logs,
		gateway: gateway,
		relay:   relay,
	}
}

// GetMeter returns the meter bound to the authenticated user
func (s *LedgerService) GetMeter(userID uint) (*models.Meter, error) {
	meter, err := s.meters.GetByUserID(userID)
	if err != nil {
		if errors.Is(err, repository.ErrMeterNotFound) {
			return nil, ErrNoMeter
		}
		return nil, err
	}
	return meter, nil
}

// Transfer moves amount units from the caller's meter to the meter with the
// given number. Debit and credit land in one transaction; on any error both
// meters are left unchanged.
func (s *LedgerService) Transfer(userID uint, destNum string, amount decimal.Decimal) (*models.Meter, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, ErrInvalidAmount
	}

	src, err := s.GetMeter(userID)
	if err != nil {
		return nil, err
	}

	dest, err := s.meters.GetByNum(destNum)
	if err != nil {
		if errors.Is(err, repository.ErrMeterNotFound) {
			return nil, ErrUnknownDestination
		}
		return nil, err
	}
	if dest.ID == src.ID {
		return nil, ErrSelfTransfer
	}

	if src.Units.LessThan(amount) {
		return nil, ErrInsufficientUnits
	}

	if err := s.meters.TransferUnits(src.ID, dest.ID, amount); err != nil {
		switch {
		case errors.Is(err, repository.ErrInsufficientUnits):
			return nil, ErrInsufficientUnits
		case errors.Is(err, repository.ErrMeterNotFound):
			return nil, ErrUnknownDestination
		default:
			return nil, err
		}
	}

	return s.GetMeter(userID)
}

// TopUp authorizes amount with the payment gateway and credits it to the
// meter balance. Balance and units are independent; no conversion happens
// here. Returns the updated meter and the gateway payment reference.
func (s *LedgerService) TopUp(ctx context.Context, userID uint, amount decimal.Decimal, phone, email string) (*models.Meter, string, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, "", ErrInvalidAmount
	}

	meter, err := s.GetMeter(userID)
	if err != nil {
		return nil, "", err
	}

	ref, err := s.gateway.PayNow(ctx, amount, phone, email)
	if err != nil {
		return nil, "", ErrPaymentFailed
	}

	updated, err := s.meters.AddBalance(meter.ID, amount)
	if err != nil {
		return nil, "", err
	}
	return updated, ref, nil
}

// EmergencyCredit grants the selected offer when the meter is in an actual
// emergency (units <= 1). Units increase by offer.Units, balance decreases
// by offer.Price (possibly below zero, the debt is intentional) and exactly
// one activity log row is appended, all in one transaction. The threshold is
// checked by the store on the locked row, not on the snapshot read here, so
// concurrent requests cannot both be granted.
func (s *LedgerService) EmergencyCredit(userID uint, offerID uint) (*models.Meter, error) {
	meter, err := s.GetMeter(userID)
	if err != nil {
		return nil, err
	}

	offer, err := s.offers.GetByID(offerID)
	if err != nil {
		if errors.Is(err, repository.ErrOfferNotFound) {
			return nil, ErrUnknownOffer
		}
		return nil, err
	}

	updated, err := s.meters.ApplyEmergency(meter.ID, offer, emergencyThreshold)
	if err != nil {
		if errors.Is(err, repository.ErrNotEmergency) {
			return nil, ErrNotEmergency
		}
		return nil, err
	}
	return updated, nil
}

// Offers lists the emergency catalog
func (s *LedgerService) Offers() ([]models.EmergencyOffer, error) {
	return s.offers.List()
}

// Activity returns the caller's activity log rows within [from, to]
func (s *LedgerService) Activity(userID uint, from, to time.Time) ([]models.ActivityLog, error) {
	meter, err := s.GetMeter(userID)
	if err != nil {
		return nil, err
	}
	return s.logs.ListByMeter(meter.ID, from, to)
}

// SetSupply sends the activation flag to the meter controller. A failed
// relay write surfaces as an error like any other external collaborator.
func (s *LedgerService) SetSupply(active bool) error {
	cmd := device.CmdDeactivate
	if active {
		cmd = device.CmdActivate
	}
	if err := s.relay.Send(cmd); err != nil {
		return ErrDeviceUnavailable
	}
	return nil
}
