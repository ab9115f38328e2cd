package db

import (
	"github.com/vpnda/statement-relay/pkg/models"
)

// DBInterface defines the interface for cache storage operations
type DBInterface interface {
	Initialize() error
	Close() error
	GetEntry(key string) (*models.CacheEntry, error)
	PutEntry(key string, entry *models.CacheEntry) error
	DeleteEntry(key string) error
	ClearEntries() error
	ListKeys() ([]string, error)
}

// Ensure DB implements DBInterface
var _ DBInterface = (*DB)(nil)

// Ensure MockDB implements DBInterface
var _ DBInterface = (*MockDB)(nil)
