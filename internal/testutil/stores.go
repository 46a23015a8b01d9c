// Package testutil provides in-memory store and collaborator fakes for unit
// tests. They mirror the transactional semantics of the gorm repositories:
// guarded debits, atomic emergency grants, usage clamping at zero.
package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/metervend/internal/models"
	"github.com/metervend/internal/repository"
	"github.com/shopspring/decimal"
)

// UserStore is an in-memory user store
type UserStore struct {
	mu     sync.Mutex
	nextID uint
	users  map[uint]*models.User
}

// NewUserStore creates an empty user store
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[uint]*models.User)}
}

func (s *UserStore) Create(user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	user.ID = s.nextID
	user.CreatedAt = time.Now()
	clone := *user
	s.users[user.ID] = &clone
	return nil
}

func (s *UserStore) GetByID(id uint) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	clone := *user
	return &clone, nil
}

func (s *UserStore) GetByEmail(email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *UserStore) ExistsByEmail(email string) (bool, error) {
	_, err := s.GetByEmail(email)
	if err == nil {
		return true, nil
	}
	return false, nil
}

func (s *UserStore) Delete(id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, id)
	return nil
}

// Count returns the number of stored users
func (s *UserStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users)
}

// MeterStore is an in-memory meter store with the repository's atomicity
// semantics. It also captures the activity log rows the gorm repository
// writes inside its transactions. Setting CreateErr makes Create fail, for
// tests that exercise failure handling around meter allocation.
type MeterStore struct {
	mu        sync.Mutex
	nextID    uint
	meters    map[uint]*models.Meter
	Logs      []models.ActivityLog
	CreateErr error
}

// NewMeterStore creates an empty meter store
func NewMeterStore() *MeterStore {
	return &MeterStore{meters: make(map[uint]*models.Meter)}
}

func (s *MeterStore) Create(meter *models.Meter) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return s.CreateErr
	}
	for _, m := range s.meters {
		if m.Num == meter.Num {
			return repository.ErrDuplicateMeterNum
		}
	}
	s.nextID++
	meter.ID = s.nextID
	meter.CreatedAt = time.Now()
	clone := *meter
	s.meters[meter.ID] = &clone
	return nil
}

func (s *MeterStore) GetByUserID(userID uint) (*models.Meter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.meters {
		if m.UserID == userID {
			clone := *m
			return &clone, nil
		}
	}
	return nil, repository.ErrMeterNotFound
}

func (s *MeterStore) GetByNum(num string) (*models.Meter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.meters {
		if m.Num == num {
			clone := *m
			return &clone, nil
		}
	}
	return nil, repository.ErrMeterNotFound
}

func (s *MeterStore) ListAll() ([]models.Meter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	meters := make([]models.Meter, 0, len(s.meters))
	for id := uint(1); id <= s.nextID; id++ {
		if m, ok := s.meters[id]; ok {
			meters = append(meters, *m)
		}
	}
	return meters, nil
}

func (s *MeterStore) AddBalance(id uint, amount decimal.Decimal) (*models.Meter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meters[id]
	if !ok {
		return nil, repository.ErrMeterNotFound
	}
	m.Balance = m.Balance.Add(amount)
	clone := *m
	return &clone, nil
}

func (s *MeterStore) TransferUnits(srcID, destID uint, amount decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	src, ok := s.meters[srcID]
	if !ok {
		return repository.ErrMeterNotFound
	}
	dest, ok := s.meters[destID]
	if !ok {
		return repository.ErrMeterNotFound
	}
	if src.Units.LessThan(amount) {
		return repository.ErrInsufficientUnits
	}
	src.Units = src.Units.Sub(amount)
	dest.Units = dest.Units.Add(amount)
	return nil
}

func (s *MeterStore) ApplyEmergency(meterID uint, offer *models.EmergencyOffer, threshold decimal.Decimal) (*models.Meter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meters[meterID]
	if !ok {
		return nil, repository.ErrMeterNotFound
	}
	if m.Units.GreaterThan(threshold) {
		return nil, repository.ErrNotEmergency
	}
	m.Units = m.Units.Add(offer.Units)
	m.Balance = m.Balance.Sub(offer.Price)
	s.Logs = append(s.Logs, models.ActivityLog{
		MeterID:        m.ID,
		UsedUnits:      decimal.Zero,
		RemainingUnits: m.Units,
		Activity:       models.ActivityEmergencyCredit,
		CreatedAt:      time.Now(),
	})
	clone := *m
	return &clone, nil
}

func (s *MeterStore) ApplyUsage(meterID uint, usage decimal.Decimal) (*models.Meter, decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.meters[meterID]
	if !ok {
		return nil, decimal.Zero, repository.ErrMeterNotFound
	}
	used := usage
	if m.Units.LessThan(usage) {
		used = m.Units
	}
	m.Units = m.Units.Sub(used)
	s.Logs = append(s.Logs, models.ActivityLog{
		MeterID:        m.ID,
		UsedUnits:      used,
		RemainingUnits: m.Units,
		Activity:       models.ActivityUsage,
		CreatedAt:      time.Now(),
	})
	clone := *m
	return &clone, used, nil
}

// Seed inserts a meter directly and returns it
func (s *MeterStore) Seed(userID uint, num string, units, balance decimal.Decimal) *models.Meter {
	meter := &models.Meter{
		UserID:  userID,
		Num:     num,
		Units:   units,
		Balance: balance,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	meter.ID = s.nextID
	clone := *meter
	s.meters[meter.ID] = &clone
	return meter
}

// SetUnits overwrites a meter's unit count
func (s *MeterStore) SetUnits(id uint, units decimal.Decimal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.meters[id]; ok {
		m.Units = units
	}
}

// OfferStore is an in-memory emergency catalog
type OfferStore struct {
	Offers []models.EmergencyOffer
}

func (s *OfferStore) GetByID(id uint) (*models.EmergencyOffer, error) {
	for _, offer := range s.Offers {
		if offer.ID == id {
			clone := offer
			return &clone, nil
		}
	}
	return nil, repository.ErrOfferNotFound
}

func (s *OfferStore) List() ([]models.EmergencyOffer, error) {
	return append([]models.EmergencyOffer(nil), s.Offers...), nil
}

// LogStore is an in-memory activity log reader backed by a MeterStore's
// captured rows.
type LogStore struct {
	Meters *MeterStore
}

func (s *LogStore) ListByMeter(meterID uint, from, to time.Time) ([]models.ActivityLog, error) {
	var entries []models.ActivityLog
	for _, entry := range s.Meters.Logs {
		if entry.MeterID != meterID {
			continue
		}
		if !from.IsZero() && entry.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && entry.CreatedAt.After(to) {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// PaymentStub is a canned payment gateway
type PaymentStub struct {
	Err   error
	Calls int
}

func (p *PaymentStub) PayNow(ctx context.Context, amount decimal.Decimal, phone, email string) (string, error) {
	p.Calls++
	if p.Err != nil {
		return "", p.Err
	}
	return "ref-0001", nil
}

// RelayRecorder captures relay sends
type RelayRecorder struct {
	mu    sync.Mutex
	Err   error
	Sends []string
}

func (r *RelayRecorder) Send(cmd string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return r.Err
	}
	r.Sends = append(r.Sends, cmd)
	return nil
}

// Sent returns a copy of the recorded commands
func (r *RelayRecorder) Sent() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.Sends...)
}
