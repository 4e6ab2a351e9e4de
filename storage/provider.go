// Package storage is the wallet's secure storage collaborator: a small
// key-value surface the queue and scanner persist their durable state
// through, with interchangeable backends.
package storage

// Provider abstracts the low-level storage operations so wallet components
// can work with different backends without knowing the implementation.
type Provider interface {
	// LoadData retrieves the value stored under key. A key that has never
	// been written is not an error: it returns (nil, nil).
	LoadData(key string) ([]byte, error)

	// StoreData persists data under key, replacing any previous value.
	StoreData(key string, data []byte) error

	// Close closes the underlying backend.
	Close() error
}
