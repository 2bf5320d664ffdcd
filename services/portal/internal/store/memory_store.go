package store

import (
	"sort"
	"sync"
	"time"

	"ncapportal/pkg/domain"
)

// MemoryStore keeps all records in-process. It backs app and server tests
// and mirrors GormStore semantics, including the at-most-one-appeal
// guarantee on CreateAppeal.
type MemoryStore struct {
	mu              sync.RWMutex
	users           map[string]domain.User
	email           map[string]string // email -> user ID
	vehicles        map[string]domain.Vehicle
	violations      map[string]domain.Violation
	appeals         map[string]domain.Appeal
	appealsByViolID map[string]string // violation ID -> appeal ID
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:           make(map[string]domain.User),
		email:           make(map[string]string),
		vehicles:        make(map[string]domain.Vehicle),
		violations:      make(map[string]domain.Violation),
		appeals:         make(map[string]domain.Appeal),
		appealsByViolID: make(map[string]string),
	}
}

// SaveUser registers or replaces a user.
func (m *MemoryStore) SaveUser(u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	m.email[u.Email] = u.ID
	return nil
}

// HasUserEmail checks if email exists.
func (m *MemoryStore) HasUserEmail(email string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.email[email]
	return ok, nil
}

// GetUserByEmail looks up a user by email.
func (m *MemoryStore) GetUserByEmail(email string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.email[email]; ok {
		u, exists := m.users[id]
		return u, exists, nil
	}
	return domain.User{}, false, nil
}

// GetUserByID returns a user by ID.
func (m *MemoryStore) GetUserByID(id string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

// ListUsers returns all users ordered by creation time.
func (m *MemoryStore) ListUsers() ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		res = append(res, u)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

// SaveVehicle stores or replaces a vehicle.
func (m *MemoryStore) SaveVehicle(v domain.Vehicle) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[v.ID] = v
	return nil
}

// GetVehicle retrieves a vehicle by ID.
func (m *MemoryStore) GetVehicle(id string) (domain.Vehicle, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.vehicles[id]
	return v, ok, nil
}

// ListVehiclesByOwner returns the owner's vehicles ordered by creation time.
func (m *MemoryStore) ListVehiclesByOwner(ownerID string) ([]domain.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Vehicle, 0)
	for _, v := range m.vehicles {
		if v.OwnerID == ownerID {
			res = append(res, v)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].CreatedAt.Before(res[j].CreatedAt) })
	return res, nil
}

// ListVehiclesByPlate returns vehicles matching a normalized plate.
func (m *MemoryStore) ListVehiclesByPlate(plate string) ([]domain.Vehicle, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Vehicle, 0)
	for _, v := range m.vehicles {
		if v.PlateNumber == plate {
			res = append(res, v)
		}
	}
	return res, nil
}

// DeleteVehicle removes a vehicle record.
func (m *MemoryStore) DeleteVehicle(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vehicles, id)
	return nil
}

// SaveViolation stores or replaces a violation.
func (m *MemoryStore) SaveViolation(v domain.Violation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.violations[v.ID] = v
	return nil
}

// GetViolation retrieves a violation by ID.
func (m *MemoryStore) GetViolation(id string) (domain.Violation, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.violations[id]
	return v, ok, nil
}

// ListViolationsByPlate returns violations for one plate, date descending.
func (m *MemoryStore) ListViolationsByPlate(plate string) ([]domain.Violation, error) {
	return m.ListViolationsByPlates([]string{plate})
}

// ListViolationsByPlates returns violations across a plate set, date
// descending.
func (m *MemoryStore) ListViolationsByPlates(plates []string) ([]domain.Violation, error) {
	set := make(map[string]struct{}, len(plates))
	for _, p := range plates {
		set[p] = struct{}{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Violation, 0)
	for _, v := range m.violations {
		if _, ok := set[v.PlateNumber]; ok {
			res = append(res, v)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Date > res[j].Date })
	return res, nil
}

// SetViolationPaid marks a violation settled and records the timestamp.
func (m *MemoryStore) SetViolationPaid(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.violations[id]
	if !ok {
		return nil
	}
	now := time.Now().UTC()
	v.Status = domain.ViolationPaid
	v.PaidAt = &now
	v.UpdatedAt = now
	m.violations[id] = v
	return nil
}

// CreateAppeal inserts the appeal and flips the violation status under one
// lock, mirroring the GormStore transaction.
func (m *MemoryStore) CreateAppeal(appeal domain.Appeal, violationStatus domain.ViolationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.appealsByViolID[appeal.ViolationID]; exists {
		return ErrAppealExists
	}
	m.appeals[appeal.ID] = appeal
	m.appealsByViolID[appeal.ViolationID] = appeal.ID
	if v, ok := m.violations[appeal.ViolationID]; ok {
		v.Status = violationStatus
		v.UpdatedAt = time.Now().UTC()
		m.violations[appeal.ViolationID] = v
	}
	return nil
}

// GetAppeal retrieves an appeal by ID.
func (m *MemoryStore) GetAppeal(id string) (domain.Appeal, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appeals[id]
	return a, ok, nil
}

// GetAppealByViolation looks up the appeal referencing a violation.
func (m *MemoryStore) GetAppealByViolation(violationID string) (domain.Appeal, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.appealsByViolID[violationID]
	if !ok {
		return domain.Appeal{}, false, nil
	}
	a, ok := m.appeals[id]
	return a, ok, nil
}

// ListAppeals returns all appeals, most recently submitted first.
func (m *MemoryStore) ListAppeals() ([]domain.Appeal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Appeal, 0, len(m.appeals))
	for _, a := range m.appeals {
		res = append(res, a)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].SubmittedDate.After(res[j].SubmittedDate) })
	return res, nil
}

// ApplyDecision updates the appeal and violation status under one lock.
func (m *MemoryStore) ApplyDecision(appealID string, appealStatus domain.AppealStatus, violationStatus domain.ViolationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.appeals[appealID]
	if !ok {
		return nil
	}
	now := time.Now().UTC()
	a.Status = appealStatus
	a.UpdatedAt = now
	m.appeals[appealID] = a
	if v, ok := m.violations[a.ViolationID]; ok {
		v.Status = violationStatus
		v.UpdatedAt = now
		m.violations[a.ViolationID] = v
	}
	return nil
}
