package bank

import (
	"context"
	"sync"

	"github.com/vpnda/statement-relay/pkg/models"
)

// MockAdapter is a configurable Adapter for testing
type MockAdapter struct {
	mu sync.Mutex

	BankID   string
	BankName string

	// Mock data to return
	Session             string
	Profiles            map[string]models.Profile
	AccountList         []models.Account
	StatementsByAccount map[string][]models.Statement
	Content             []byte

	// Error values to return
	SessionErr    error
	ProfileErr    error
	AccountsErr   error
	StatementsErr error
	DownloadErr   error

	// Calls counts invocations per operation
	Calls map[string]int
}

// NewMockAdapter creates a mock adapter for bank id with a logged in session
func NewMockAdapter(id, session string) *MockAdapter {
	return &MockAdapter{
		BankID:              id,
		BankName:            id + " bank",
		Session:             session,
		Profiles:            map[string]models.Profile{},
		StatementsByAccount: map[string][]models.Statement{},
		Calls:               map[string]int{},
	}
}

func (m *MockAdapter) record(op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls[op]++
}

// CallCount returns how often op was invoked
func (m *MockAdapter) CallCount(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[op]
}

// SetSession switches the logged in session, as a re-login in the tab would
func (m *MockAdapter) SetSession(session string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Session = session
}

func (m *MockAdapter) ID() string   { return m.BankID }
func (m *MockAdapter) Name() string { return m.BankName }

func (m *MockAdapter) SessionID() (string, error) {
	m.record("SessionID")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SessionErr != nil {
		return "", m.SessionErr
	}
	return m.Session, nil
}

func (m *MockAdapter) Profile(ctx context.Context, sessionID string) (models.Profile, error) {
	m.record("Profile")
	if m.ProfileErr != nil {
		return models.Profile{}, m.ProfileErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.Profiles[sessionID]; ok {
		return p, nil
	}
	return models.Profile{SessionID: sessionID, ProfileID: "profile-" + sessionID, ProfileName: "Test User"}, nil
}

func (m *MockAdapter) Accounts(ctx context.Context, profile models.Profile) ([]models.Account, error) {
	m.record("Accounts")
	if m.AccountsErr != nil {
		return nil, m.AccountsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	accounts := make([]models.Account, len(m.AccountList))
	for i, a := range m.AccountList {
		a.Profile = profile
		accounts[i] = a
	}
	return accounts, nil
}

func (m *MockAdapter) Statements(ctx context.Context, account models.Account) ([]models.Statement, error) {
	m.record("Statements")
	if m.StatementsErr != nil {
		return nil, m.StatementsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	statements := make([]models.Statement, 0, len(m.StatementsByAccount[account.AccountID]))
	for _, s := range m.StatementsByAccount[account.AccountID] {
		s.Account = account
		statements = append(statements, s)
	}
	return statements, nil
}

func (m *MockAdapter) DownloadStatement(ctx context.Context, statement models.Statement) ([]byte, error) {
	m.record("DownloadStatement")
	if m.DownloadErr != nil {
		return nil, m.DownloadErr
	}
	return m.Content, nil
}

var _ Adapter = (*MockAdapter)(nil)
