package db

import (
	"sort"
	"sync"

	"github.com/vpnda/statement-relay/pkg/models"
)

// MockDB is a mock implementation of the DB for testing
type MockDB struct {
	mu sync.Mutex

	// Mock data storage
	Entries map[string]*models.CacheEntry

	// Call counters
	Puts int

	// Error values to return
	GetEntryErr     error
	PutEntryErr     error
	DeleteEntryErr  error
	ClearEntriesErr error
}

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{
		Entries: make(map[string]*models.CacheEntry),
	}
}

// GetEntry returns the stored entry for key
func (m *MockDB) GetEntry(key string) (*models.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetEntryErr != nil {
		return nil, m.GetEntryErr
	}

	entry, ok := m.Entries[key]
	if !ok {
		return nil, nil
	}
	cp := *entry
	return &cp, nil
}

// PutEntry stores entry under key
func (m *MockDB) PutEntry(key string, entry *models.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PutEntryErr != nil {
		return m.PutEntryErr
	}

	cp := *entry
	m.Entries[key] = &cp
	m.Puts++
	return nil
}

// DeleteEntry removes key from the mock database
func (m *MockDB) DeleteEntry(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteEntryErr != nil {
		return m.DeleteEntryErr
	}

	delete(m.Entries, key)
	return nil
}

// ClearEntries empties the mock database
func (m *MockDB) ClearEntries() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ClearEntriesErr != nil {
		return m.ClearEntriesErr
	}

	m.Entries = make(map[string]*models.CacheEntry)
	return nil
}

// ListKeys returns the stored keys in order
func (m *MockDB) ListKeys() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.Entries))
	for k := range m.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Initialize is a no-op for the mock database
func (m *MockDB) Initialize() error {
	return nil
}

// Close is a no-op for the mock database
func (m *MockDB) Close() error {
	return nil
}
