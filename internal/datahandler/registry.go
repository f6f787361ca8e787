package datahandler

import (
	"errors"
	"fmt"
	"sync"

	"github.com/tcspecial/tcs/internal/wire"
)

// DefaultMaxDataHandlers is the registry's default capacity.
const DefaultMaxDataHandlers = 8

// ErrNotFound is returned by Activate/Stop/Stats when the id is absent.
var ErrNotFound = errors.New("datahandler: not found")

// ErrAlreadyExists is returned by Create when the id is already
// registered, whatever that registration's configuration.
var ErrAlreadyExists = errors.New("datahandler: already exists")

// Manager is the DHManager registry: an ordered, mutex-guarded map of
// DataHandlers bounded by MaxDataHandlers. The mutex is held only for
// O(1) bookkeeping; Stop releases it before joining relay goroutines.
type Manager struct {
	mu             sync.Mutex
	order          []uint32
	handlers       map[uint32]*DataHandler
	MaxDataHandlers int
}

// NewManager builds an empty registry. max<=0 selects
// DefaultMaxDataHandlers.
func NewManager(max int) *Manager {
	if max <= 0 {
		max = DefaultMaxDataHandlers
	}

	return &Manager{
		handlers:        make(map[uint32]*DataHandler),
		MaxDataHandlers: max,
	}
}

// Create allocates a new DataHandler and registers it in state Created.
//
// If id is already present, the CI dispatcher's duplicate-StartDH policy
// (idempotent success when type+name match, else DHAlreadyExists) is
// implemented by the CI's StartDH handler, not here: Create always fails
// ErrAlreadyExists on a present id, matching DHManager's documented
// contract; the idempotency decision belongs to the command handler,
// which can inspect Get first.
func (m *Manager) Create(id uint32, typ wire.DHType, name string, cfg Config) (*DataHandler, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.handlers[id]; ok {
		return nil, fmt.Errorf("%w: dh %d", ErrAlreadyExists, id)
	}

	if len(m.handlers) >= m.MaxDataHandlers {
		return nil, fmt.Errorf("%w: dh %d", ErrResourceAllocationFailed, id)
	}

	dh, err := New(id, typ, name, cfg)
	if err != nil {
		return nil, err
	}

	m.handlers[id] = dh
	m.order = append(m.order, id)

	return dh, nil
}

// Get returns the DataHandler registered under id, if any, without
// taking it out of the registry.
func (m *Manager) Get(id uint32) (*DataHandler, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	dh, ok := m.handlers[id]

	return dh, ok
}

// Activate looks up id and activates it against ocHost:ocPort.
func (m *Manager) Activate(id uint32, ocHost string, ocPort int) error {
	dh, ok := m.Get(id)
	if !ok {
		return fmt.Errorf("%w: dh %d", ErrNotFound, id)
	}

	return dh.Activate(ocHost, ocPort)
}

// Stop stops and removes id from the registry. Per §4.D, stop on an
// absent id reports ErrNotFound so the caller can map it to the
// idempotent-success reply StopDH documents; the lock is not held
// across the join.
func (m *Manager) Stop(id uint32) error {
	m.mu.Lock()
	dh, ok := m.handlers[id]
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: dh %d", ErrNotFound, id)
	}

	err := dh.Stop()

	m.mu.Lock()
	delete(m.handlers, id)

	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	return err
}

// Stats returns id's current snapshot.
func (m *Manager) Stats(id uint32) (wire.Statistics, error) {
	dh, ok := m.Get(id)
	if !ok {
		return wire.Statistics{}, fmt.Errorf("%w: dh %d", ErrNotFound, id)
	}

	return dh.Stats(), nil
}

// StopAll stops every registered DH in insertion order, for CI
// shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	ids := append([]uint32(nil), m.order...)
	m.mu.Unlock()

	for _, id := range ids {
		_ = m.Stop(id)
	}
}

// Len reports the current number of registered DHs.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.handlers)
}
