package ddnsync_test

import (
	"context"
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Travis-Britz/ddnsync"
	"github.com/Travis-Britz/ddnsync/provider/memory"
)

const (
	zone = "example.com"
	name = "home.example.com"
)

// recordingStore wraps a FileStore and records every Save.
type recordingStore struct {
	*ddnsync.FileStore
	saves   []string
	saveErr error
}

func (s *recordingStore) Save(ctx context.Context, ip string) error {
	s.saves = append(s.saves, ip)
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.FileStore.Save(ctx, ip)
}

type fixture struct {
	provider *memory.Provider
	store    *recordingStore
	path     string
	resolves int
}

// newFixture seeds the state file with cached (nil for a missing file) and,
// when content is not empty, a provider record holding content.
func newFixture(t *testing.T, cached *string, content string) *fixture {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ipaddress")
	if cached != nil {
		require.NoError(t, os.WriteFile(path, []byte(*cached), 0o644))
	}
	f := &fixture{
		provider: memory.New(),
		store:    &recordingStore{FileStore: ddnsync.NewFileStore(path)},
		path:     path,
	}
	if content != "" {
		f.provider.Put(ddnsync.Record{Zone: zone, Type: "A", Name: name, Content: content, TTL: 60})
	}
	return f
}

func (f *fixture) reconciler(t *testing.T, resolved string, opts ...ddnsync.Option) *ddnsync.Reconciler {
	t.Helper()
	resolver := ddnsync.ResolverFunc(func(context.Context) (netip.Addr, error) {
		f.resolves++
		return netip.ParseAddr(resolved)
	})
	opts = append([]ddnsync.Option{
		ddnsync.UsingProvider(f.provider),
		ddnsync.UsingStore(f.store),
		ddnsync.UsingResolver(resolver),
		ddnsync.WithLogger(zap.NewNop()),
	}, opts...)
	r, err := ddnsync.New(zone, name, opts...)
	require.NoError(t, err)
	return r
}

func (f *fixture) stateFile(t *testing.T) string {
	t.Helper()
	data, err := os.ReadFile(f.path)
	require.NoError(t, err)
	return string(data)
}

func ptr(s string) *string { return &s }

func TestReconcileFastPath(t *testing.T) {
	t.Parallel()

	f := newFixture(t, ptr("1.2.3.4"), "9.9.9.9")
	res, err := f.reconciler(t, "1.2.3.4").Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ddnsync.Unchanged, res.Outcome)
	assert.Equal(t, 0, f.provider.Finds(), "provider must not be consulted")
	assert.Empty(t, f.provider.Updates())
	assert.Empty(t, f.store.saves, "state file must not be rewritten")
	assert.Equal(t, "1.2.3.4", f.stateFile(t))
}

func TestReconcileRecordAlreadyCorrect(t *testing.T) {
	t.Parallel()

	t.Run("without resync", func(t *testing.T) {
		f := newFixture(t, ptr("1.2.3.4"), "5.6.7.8")
		res, err := f.reconciler(t, "5.6.7.8", ddnsync.WithoutDriftResync()).Reconcile(context.Background())
		require.NoError(t, err)

		assert.Equal(t, ddnsync.InSync, res.Outcome)
		assert.Equal(t, 1, f.provider.Finds())
		assert.Empty(t, f.provider.Updates())
		assert.Empty(t, f.store.saves)
		assert.Equal(t, "1.2.3.4", f.stateFile(t))
	})

	t.Run("with resync", func(t *testing.T) {
		f := newFixture(t, ptr("1.2.3.4"), "5.6.7.8")
		res, err := f.reconciler(t, "5.6.7.8").Reconcile(context.Background())
		require.NoError(t, err)

		assert.Equal(t, ddnsync.InSync, res.Outcome)
		assert.Empty(t, f.provider.Updates())
		assert.Equal(t, []string{"5.6.7.8"}, f.store.saves)
		assert.Equal(t, "5.6.7.8", f.stateFile(t))
	})
}

func TestReconcileUpdate(t *testing.T) {
	t.Parallel()

	f := newFixture(t, ptr("1.2.3.4"), "1.2.3.4")
	res, err := f.reconciler(t, "5.6.7.8").Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ddnsync.Updated, res.Outcome)
	assert.Equal(t, "1.2.3.4", res.Previous)
	assert.Equal(t, "5.6.7.8", res.Current)

	updates := f.provider.Updates()
	require.Len(t, updates, 1)
	assert.Equal(t, "5.6.7.8", updates[0].Content)
	assert.Equal(t, 60, updates[0].TTL, "other record fields are preserved")

	stored, ok := f.provider.Get(zone, "A", name)
	require.True(t, ok)
	assert.Equal(t, "5.6.7.8", stored.Content)
	assert.Equal(t, "5.6.7.8", f.stateFile(t))
}

func TestReconcileFirstRun(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, "0.0.0.0")
	res, err := f.reconciler(t, "9.9.9.9").Reconcile(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ddnsync.Updated, res.Outcome)
	assert.Equal(t, "", res.Previous)
	require.Len(t, f.provider.Updates(), 1)
	assert.Equal(t, "9.9.9.9", f.provider.Updates()[0].Content)
	assert.Equal(t, "9.9.9.9", f.stateFile(t))
}

func TestReconcileInvalidatedCacheNeverMatches(t *testing.T) {
	t.Parallel()

	f := newFixture(t, ptr(""), "1.1.1.1")
	res, err := f.reconciler(t, "1.1.1.1", ddnsync.WithoutDriftResync()).Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ddnsync.InSync, res.Outcome)
	assert.Equal(t, 1, f.provider.Finds())
}

func TestReconcileUpdateFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, ptr("1.2.3.4"), "1.2.3.4")
	f.provider.UpdateErr = errors.New("authentication error")

	_, err := f.reconciler(t, "5.6.7.8").Reconcile(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ddnsync.ErrProvider)

	var stageErr *ddnsync.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, ddnsync.Updating, stageErr.Stage)

	assert.Len(t, f.provider.Updates(), 1)
	assert.Equal(t, "", f.stateFile(t), "cache must be invalidated")
}

func TestReconcileFindFailures(t *testing.T) {
	t.Parallel()

	t.Run("not found", func(t *testing.T) {
		f := newFixture(t, ptr("1.2.3.4"), "")
		_, err := f.reconciler(t, "5.6.7.8").Reconcile(context.Background())
		assert.ErrorIs(t, err, ddnsync.ErrRecordNotFound)
		assert.Empty(t, f.provider.Updates())
		assert.Equal(t, "", f.stateFile(t))
	})

	t.Run("provider error", func(t *testing.T) {
		f := newFixture(t, ptr("1.2.3.4"), "1.2.3.4")
		f.provider.FindErr = errors.New("rate limited")
		_, err := f.reconciler(t, "5.6.7.8").Reconcile(context.Background())
		assert.ErrorIs(t, err, ddnsync.ErrProvider)

		var stageErr *ddnsync.StageError
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, ddnsync.FetchingRecord, stageErr.Stage)
		assert.Empty(t, f.provider.Updates())
		assert.Equal(t, "", f.stateFile(t))
	})
}

func TestReconcilePersistFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, ptr("1.2.3.4"), "1.2.3.4")
	f.store.saveErr = errors.New("disk full")

	_, err := f.reconciler(t, "5.6.7.8").Reconcile(context.Background())
	assert.ErrorIs(t, err, ddnsync.ErrStoreWrite)

	var stageErr *ddnsync.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, ddnsync.Persisting, stageErr.Stage)

	// the provider side was still updated, and invalidation was attempted
	require.Len(t, f.provider.Updates(), 1)
	assert.Equal(t, []string{"5.6.7.8", ""}, f.store.saves)
	assert.Equal(t, "1.2.3.4", f.stateFile(t))
}

func TestReconcileResolveFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t, ptr("1.2.3.4"), "1.2.3.4")
	r, err := ddnsync.New(zone, name,
		ddnsync.UsingProvider(f.provider),
		ddnsync.UsingStore(f.store),
		ddnsync.UsingResolver(ddnsync.ResolverFunc(func(context.Context) (netip.Addr, error) {
			return netip.Addr{}, errors.New("lookup service unreachable")
		})),
	)
	require.NoError(t, err)

	_, err = r.Reconcile(context.Background())
	assert.ErrorIs(t, err, ddnsync.ErrResolution)
	assert.Equal(t, 0, f.provider.Finds())
	assert.Empty(t, f.store.saves)
	assert.Equal(t, "1.2.3.4", f.stateFile(t))
}

func TestReconcileLoadFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	p := memory.New()
	r, err := ddnsync.New(zone, name,
		ddnsync.UsingProvider(p),
		// a directory cannot be read as a file
		ddnsync.UsingStateFile(dir),
		ddnsync.UsingResolver(ddnsync.ResolverFunc(func(context.Context) (netip.Addr, error) {
			t.Fatal("resolver must not be called")
			return netip.Addr{}, nil
		})),
	)
	require.NoError(t, err)

	_, err = r.Reconcile(context.Background())
	assert.ErrorIs(t, err, ddnsync.ErrStoreRead)
	assert.Equal(t, 0, p.Finds())
}

func TestReconcileIPv6DerivesRecordType(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, "")
	f.provider.Put(ddnsync.Record{Zone: zone, Type: "AAAA", Name: name, Content: "2001:db8::1"})

	res, err := f.reconciler(t, "2001:db8::2").Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ddnsync.Updated, res.Outcome)
	assert.Equal(t, "AAAA", res.Record.Type)
	assert.Equal(t, "2001:db8::2", f.stateFile(t))
}

func TestReconcileEquivalentContent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil, "")
	f.provider.Put(ddnsync.Record{Zone: zone, Type: "AAAA", Name: name, Content: "2001:DB8:0::1"})

	res, err := f.reconciler(t, "2001:db8::1").Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ddnsync.InSync, res.Outcome)
	assert.Empty(t, f.provider.Updates())
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := ddnsync.New("", name, ddnsync.UsingProvider(memory.New()))
	assert.Error(t, err)
	_, err = ddnsync.New(zone, "", ddnsync.UsingProvider(memory.New()))
	assert.Error(t, err)
	_, err = ddnsync.New(zone, name)
	assert.Error(t, err, "a provider is required")
	_, err = ddnsync.New(zone, name, ddnsync.UsingProvider(memory.New()), ddnsync.WithRecordType("CNAME"))
	assert.Error(t, err)
	_, err = ddnsync.New(zone, name, ddnsync.UsingProvider(memory.New()))
	assert.NoError(t, err)
}

func TestResultString(t *testing.T) {
	t.Parallel()

	r := ddnsync.Result{Outcome: ddnsync.Updated, Current: "5.6.7.8", Record: ddnsync.Record{Type: "A", Name: name}}
	assert.Equal(t, "A record home.example.com updated to 5.6.7.8", r.String())
	assert.Equal(t, "updating", ddnsync.Updating.String())
}

func TestReconcileRecordTypeMismatch(t *testing.T) {
	t.Parallel()

	f := newFixture(t, ptr("1.2.3.4"), "1.2.3.4")
	_, err := f.reconciler(t, "2001:db8::1", ddnsync.WithRecordType("A")).Reconcile(context.Background())
	assert.ErrorIs(t, err, ddnsync.ErrResolution)

	var stageErr *ddnsync.StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, ddnsync.ComparingCache, stageErr.Stage)

	assert.Equal(t, 0, f.provider.Finds(), "provider must not be consulted")
	assert.Empty(t, f.provider.Updates())
	stored, ok := f.provider.Get(zone, "A", name)
	require.True(t, ok)
	assert.Equal(t, "1.2.3.4", stored.Content)
	assert.Empty(t, f.store.saves)
}

func TestReconcileZeroValueLogger(t *testing.T) {
	t.Parallel()

	f := newFixture(t, ptr("1.2.3.4"), "")
	r := &ddnsync.Reconciler{
		Resolver: ddnsync.ResolverFunc(func(context.Context) (netip.Addr, error) {
			return netip.MustParseAddr("1.2.3.4"), nil
		}),
		Provider: f.provider,
		Store:    f.store,
	}
	var res ddnsync.Result
	var err error
	require.NotPanics(t, func() { res, err = r.Reconcile(context.Background()) })
	require.NoError(t, err)
	assert.Equal(t, ddnsync.Unchanged, res.Outcome)
}
