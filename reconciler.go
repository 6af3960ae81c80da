package ddnsync

import (
	"context"
	"errors"
	"fmt"
	"net/netip"

	"go.uber.org/zap"
)

// State is a step of a reconciliation pass.
type State int

const (
	Idle State = iota
	Resolving
	ComparingCache
	FetchingRecord
	ComparingRecord
	Updating
	Persisting
	Done
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Resolving:
		return "resolving"
	case ComparingCache:
		return "comparing cache"
	case FetchingRecord:
		return "fetching record"
	case ComparingRecord:
		return "comparing record"
	case Updating:
		return "updating"
	case Persisting:
		return "persisting"
	case Done:
		return "done"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Outcome is how a successful pass ended.
type Outcome int

const (
	// Unchanged means the resolved IP matched the cache and no provider call was made.
	Unchanged Outcome = iota + 1
	// InSync means the record already held the resolved IP.
	InSync
	// Updated means the record was rewritten and the cache saved.
	Updated
)

func (o Outcome) String() string {
	switch o {
	case Unchanged:
		return "unchanged"
	case InSync:
		return "in sync"
	case Updated:
		return "updated"
	}
	return "unknown"
}

// Result describes a completed pass.
type Result struct {
	Outcome  Outcome
	Previous string // cached IP at the start of the pass, empty if none
	Current  string
	Record   Record // zero when the provider was not consulted
}

func (r Result) String() string {
	switch r.Outcome {
	case Unchanged:
		return fmt.Sprintf("IP %s matches cached IP, nothing to do", r.Current)
	case InSync:
		return fmt.Sprintf("%s record %s already points to %s", r.Record.Type, r.Record.Name, r.Current)
	case Updated:
		return fmt.Sprintf("%s record %s updated to %s", r.Record.Type, r.Record.Name, r.Current)
	}
	return "no result"
}

// Reconciler keeps one DNS record pointed at the host's public IP.
//
// Only one Reconciler may use a given Store at a time.
// Construct it with New.
type Reconciler struct {
	Resolver
	Provider
	Store
	logger      *zap.Logger
	zone        string
	name        string
	recordType  string
	driftResync bool
}

// Reconcile runs a single pass: the resolved IP is checked against the cache,
// then against the live record, and the record is only updated when both differ.
//
// Any failure after the IP was resolved invalidates the cache so the next pass
// goes back to the provider instead of trusting it.
func (r *Reconciler) Reconcile(ctx context.Context) (Result, error) {
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	logger := r.logger.With(zap.String("zone", r.zone), zap.String("name", r.name))

	cached, ok, err := r.Load(ctx)
	if err != nil {
		logger.Error("could not load cached IP", zap.Error(err))
		return Result{}, &StageError{Stage: Idle, Err: kind(err, ErrStoreRead)}
	}
	res := Result{Previous: cached}

	addr, err := r.Resolve(ctx)
	if err != nil {
		logger.Error("could not resolve current IP", zap.Error(err))
		return res, &StageError{Stage: Resolving, Err: kind(err, ErrResolution)}
	}
	current := addr.String()
	res.Current = current
	logger = logger.With(zap.String("ip", current), zap.String("cached", cached))

	if r.recordType != "" && r.recordType != RecordType(addr) {
		err := fmt.Errorf("%w: resolved %s cannot be stored in a %s record", ErrResolution, current, r.recordType)
		logger.Error("resolved IP does not match the record type", zap.Error(err))
		return res, &StageError{Stage: ComparingCache, Err: err}
	}

	if ok && current == cached {
		logger.Debug("resolved IP matches cached IP")
		res.Outcome = Unchanged
		return res, nil
	}

	recordType := r.recordType
	if recordType == "" {
		recordType = RecordType(addr)
	}
	logger = logger.With(zap.String("type", recordType))
	logger.Info("resolved IP differs from cache, looking up record")

	record, err := r.FindRecord(ctx, r.zone, recordType, r.name)
	if err != nil {
		return res, r.fail(ctx, logger, FetchingRecord, kind(err, ErrProvider, ErrRecordNotFound))
	}
	res.Record = record
	logger = logger.With(zap.String("record_id", record.ID), zap.String("content", record.Content))

	if sameAddr(record.Content, addr) {
		res.Outcome = InSync
		if !r.driftResync {
			logger.Info("record already points to resolved IP")
			return res, nil
		}
		logger.Info("record already points to resolved IP, resyncing cache")
		if err := r.Save(ctx, current); err != nil {
			return res, r.fail(ctx, logger, Persisting, kind(err, ErrStoreWrite))
		}
		return res, nil
	}

	record.Content = current
	if err := r.UpdateRecord(ctx, record); err != nil {
		return res, r.fail(ctx, logger, Updating, kind(err, ErrProvider))
	}
	res.Record = record
	logger.Info("record updated")

	if err := r.Save(ctx, current); err != nil {
		return res, r.fail(ctx, logger, Persisting, kind(err, ErrStoreWrite))
	}
	logger.Info("new IP written to state")
	res.Outcome = Updated
	return res, nil
}

// fail invalidates the cache and returns err tagged with the stage it happened in.
// The invalidation is best effort; its error is logged and dropped.
func (r *Reconciler) fail(ctx context.Context, logger *zap.Logger, stage State, err error) error {
	logger.Error("reconciliation failed, invalidating cached IP", zap.Stringer("stage", stage), zap.Error(err))
	if serr := r.Save(ctx, ""); serr != nil {
		logger.Error("could not invalidate cached IP", zap.Error(serr))
	}
	return &StageError{Stage: stage, Err: err}
}

// kind makes sure err matches at least one of kinds, wrapping it in the first one otherwise.
func kind(err error, kinds ...error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", kinds[0], err)
}

func sameAddr(content string, addr netip.Addr) bool {
	if content == addr.String() {
		return true
	}
	a, err := netip.ParseAddr(content)
	if err != nil {
		return false
	}
	return a.Unmap() == addr.Unmap()
}
