// Package memory provides an in-memory ddnsync.Provider so a Reconciler can be
// exercised without provider credentials.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/Travis-Britz/ddnsync"
)

// Provider keeps records in a map keyed by zone, type and name.
type Provider struct {
	mu      sync.Mutex
	records map[string]ddnsync.Record
	nextID  int

	// FindErr and UpdateErr, when set, are returned by the matching calls.
	FindErr   error
	UpdateErr error

	finds   int
	updates []ddnsync.Record
}

func New() *Provider {
	return &Provider{records: make(map[string]ddnsync.Record)}
}

func key(zone, recordType, name string) string {
	return strings.ToLower(zone + "|" + recordType + "|" + strings.TrimSuffix(name, "."))
}

// Put inserts or replaces a record and returns it with its assigned ID.
func (p *Provider) Put(record ddnsync.Record) ddnsync.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	if record.ID == "" {
		p.nextID++
		record.ID = fmt.Sprintf("rec-%d", p.nextID)
	}
	p.records[key(record.Zone, record.Type, record.Name)] = record
	return record
}

// Get returns the stored record, if any.
func (p *Provider) Get(zone, recordType, name string) (ddnsync.Record, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.records[key(zone, recordType, name)]
	return r, ok
}

// FindRecord implements ddnsync.Provider.
func (p *Provider) FindRecord(_ context.Context, zone, recordType, name string) (ddnsync.Record, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.finds++
	if p.FindErr != nil {
		return ddnsync.Record{}, ddnsync.ProviderError("memory", p.FindErr)
	}
	r, ok := p.records[key(zone, recordType, name)]
	if !ok {
		return ddnsync.Record{}, ddnsync.NotFound(zone, recordType, name)
	}
	return r, nil
}

// UpdateRecord implements ddnsync.Provider.
func (p *Provider) UpdateRecord(_ context.Context, record ddnsync.Record) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updates = append(p.updates, record)
	if p.UpdateErr != nil {
		return ddnsync.ProviderError("memory", p.UpdateErr)
	}
	k := key(record.Zone, record.Type, record.Name)
	existing, ok := p.records[k]
	if !ok || existing.ID != record.ID {
		return ddnsync.ProviderError("memory", fmt.Errorf("no record with id %q", record.ID))
	}
	p.records[k] = record
	return nil
}

// Finds returns how many times FindRecord was called.
func (p *Provider) Finds() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.finds
}

// Updates returns a copy of every record passed to UpdateRecord, in call order.
func (p *Provider) Updates() []ddnsync.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ddnsync.Record(nil), p.updates...)
}
