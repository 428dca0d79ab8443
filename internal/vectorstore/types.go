package vectorstore

import "errors"

// ErrNotFound is returned when a record id is unknown.
var ErrNotFound = errors.New("vectorstore: record not found")

// Record is one stored vector with its metadata.
type Record struct {
	ID       string         `json:"id"`
	Seq      uint64         `json:"seq"`
	Vector   []float32      `json:"vector"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Match is one search hit.
type Match struct {
	ID         string
	Similarity float64
	Metadata   map[string]any
}

// Backend persists records. Implementations must be safe for use by one
// writer at a time; the Store serializes mutations.
type Backend interface {
	Put(rec Record) error
	Delete(id string) error
	LoadAll() ([]Record, error)
	Close() error
}

// NopBackend keeps nothing. The store is then purely in-memory.
type NopBackend struct{}

func (NopBackend) Put(Record) error { return nil }

func (NopBackend) Delete(string) error { return nil }

func (NopBackend) LoadAll() ([]Record, error) { return nil, nil }

func (NopBackend) Close() error { return nil }
