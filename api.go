package ddnsync

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
)

// Resolver looks up the current public IP address of this host.
type Resolver interface {
	Resolve(context.Context) (netip.Addr, error)
}

// ResolverFunc adapts an ordinary function to the Resolver interface.
type ResolverFunc func(context.Context) (netip.Addr, error)

// Resolve implements Resolver.
func (f ResolverFunc) Resolve(ctx context.Context) (netip.Addr, error) {
	return f(ctx)
}

// Provider finds and updates a single record at a DNS provider.
//
// FindRecord must return an error wrapping ErrRecordNotFound when no record matches,
// and an error wrapping ErrProvider for any other failure.
// UpdateRecord must return an error wrapping ErrProvider when the update was not confirmed.
type Provider interface {
	FindRecord(ctx context.Context, zone, recordType, name string) (Record, error)
	UpdateRecord(ctx context.Context, record Record) error
}

// Store persists the last IP address written to (or observed in) the DNS record.
//
// Load reports ok == false when nothing usable is cached,
// either because the backing file does not exist or because it was invalidated.
type Store interface {
	Load(ctx context.Context) (ip string, ok bool, err error)
	Save(ctx context.Context, ip string) error
}

// Record is a provider-side DNS record.
type Record struct {
	ID      string
	Zone    string
	Type    string
	Name    string
	Content string
	TTL     int
	// Meta carries provider-specific fields that must survive from FindRecord to UpdateRecord.
	Meta map[string]string
}

var (
	ErrResolution     = errors.New("ip resolution failed")
	ErrRecordNotFound = errors.New("dns record not found")
	ErrProvider       = errors.New("dns provider error")
	ErrStoreRead      = errors.New("state read failed")
	ErrStoreWrite     = errors.New("state write failed")
)

// StageError records the reconciliation state a pass failed in.
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// ProviderError wraps err with ErrProvider unless it already carries one of the provider kinds.
// It is meant for Provider implementations outside this package.
func ProviderError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrProvider) || errors.Is(err, ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, ErrProvider, err)
}

// NotFound builds an ErrRecordNotFound error for the given record coordinates.
func NotFound(zone, recordType, name string) error {
	return fmt.Errorf("%w: %s record %q in zone %q", ErrRecordNotFound, recordType, name, zone)
}

// RecordType returns the record type that holds addr.
func RecordType(addr netip.Addr) string {
	if addr.Unmap().Is4() {
		return "A"
	}
	return "AAAA"
}
