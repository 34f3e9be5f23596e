// internal/enginetest/harness.go
//
// Package enginetest provides in-memory implementations of the engine's
// storage collaborators. It replaces the ad-hoc debug hooks the production
// surface must not carry: tests exercise the engine only through these
// explicit fakes.
package enginetest

import (
	"context"
	"errors"
	"sync"
	"time"

	"propshare-wallet/internal/domain"
	"propshare-wallet/internal/util"
)

// MemRepo is an in-memory wallet record repository with the same optimistic
// version semantics as the postgres implementation. It also implements
// repository.OwnerCollection for the wallet-record collection, so cleanup
// really removes records in tests.
type MemRepo struct {
	mu          sync.Mutex
	recs        map[string]*domain.WalletRecord
	txs         []domain.TransactionRecord
	createCalls int
	failReads   error
	failWrites  error
}

// NewMemRepo creates an empty MemRepo.
func NewMemRepo() *MemRepo {
	return &MemRepo{recs: make(map[string]*domain.WalletRecord)}
}

// FailWrites makes every write fail with err (nil restores writes).
func (m *MemRepo) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failWrites = err
}

// FailReads makes every read fail with err (nil restores reads).
func (m *MemRepo) FailReads(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failReads = err
}

// CreateCalls returns how many records were created.
func (m *MemRepo) CreateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls
}

// Transactions returns a copy of all recorded transaction history entries.
func (m *MemRepo) Transactions() []domain.TransactionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.TransactionRecord(nil), m.txs...)
}

// Stored returns a copy of the raw stored record, bypassing failure modes.
func (m *MemRepo) Stored(ownerID string) *domain.WalletRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[ownerID]
	if !ok {
		return nil
	}
	cp := *rec
	return &cp
}

func (m *MemRepo) Create(ctx context.Context, rec *domain.WalletRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites != nil {
		return m.failWrites
	}
	m.createCalls++
	cp := *rec
	m.recs[rec.OwnerID] = &cp
	return nil
}

func (m *MemRepo) Get(ctx context.Context, ownerID string) (*domain.WalletRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReads != nil {
		return nil, m.failReads
	}
	rec, ok := m.recs[ownerID]
	if !ok {
		return nil, util.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (m *MemRepo) Update(ctx context.Context, rec *domain.WalletRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites != nil {
		return m.failWrites
	}
	stored, ok := m.recs[rec.OwnerID]
	if !ok {
		return util.ErrNotFound
	}
	if stored.Version != rec.Version {
		return util.ErrVersionConflict
	}
	cp := *rec
	cp.Version++
	cp.LastUpdated = time.Now().UTC()
	cp.CreatedAt = stored.CreatedAt           // immutable
	cp.StrikePriceUSD = stored.StrikePriceUSD // immutable
	m.recs[rec.OwnerID] = &cp
	rec.Version = cp.Version
	rec.LastUpdated = cp.LastUpdated
	return nil
}

func (m *MemRepo) ApplyBalanceChange(ctx context.Context, rec *domain.WalletRecord, txRec *domain.TransactionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWrites != nil {
		return m.failWrites
	}
	stored, ok := m.recs[rec.OwnerID]
	if !ok {
		return util.ErrNotFound
	}
	if stored.Version != rec.Version {
		return util.ErrVersionConflict
	}
	stored.BalanceUnits = rec.BalanceUnits
	stored.Version++
	stored.LastUpdated = time.Now().UTC()
	m.txs = append(m.txs, *txRec)
	rec.Version = stored.Version
	rec.LastUpdated = stored.LastUpdated
	return nil
}

func (m *MemRepo) Deactivate(ctx context.Context, ownerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[ownerID]
	if !ok {
		return util.ErrNotFound
	}
	rec.Active = false
	rec.Version++
	return nil
}

// OwnerCollection side of MemRepo.

func (m *MemRepo) Name() string { return "wallet_records" }

func (m *MemRepo) DeleteAllForOwner(ctx context.Context, ownerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[ownerID]; !ok {
		return 0, nil
	}
	delete(m.recs, ownerID)
	return 1, nil
}

func (m *MemRepo) CountForOwner(ctx context.Context, ownerID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.recs[ownerID]; ok {
		return 1, nil
	}
	return 0, nil
}

// MemCache is an in-memory scratch cache.
type MemCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemCache creates an empty MemCache.
func NewMemCache() *MemCache {
	return &MemCache{data: make(map[string][]byte)}
}

func (c *MemCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *MemCache) Set(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func (c *MemCache) Remove(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

// Has reports whether key is present.
func (c *MemCache) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.data[key]
	return ok
}

// FailingCollection is an owner collection whose delete always fails.
type FailingCollection struct {
	CollectionName string
	Remaining      int64
}

func (f *FailingCollection) Name() string { return f.CollectionName }

func (f *FailingCollection) DeleteAllForOwner(ctx context.Context, ownerID string) (int64, error) {
	return 0, errors.New("store unreachable")
}

func (f *FailingCollection) CountForOwner(ctx context.Context, ownerID string) (int64, error) {
	return f.Remaining, nil
}

// BlockingCollection blocks DeleteAllForOwner until Release is closed, to
// hold a disconnect in flight while a test probes concurrent operations.
type BlockingCollection struct {
	Entered chan struct{}
	Release chan struct{}
}

// NewBlockingCollection creates a BlockingCollection with fresh channels.
func NewBlockingCollection() *BlockingCollection {
	return &BlockingCollection{Entered: make(chan struct{}), Release: make(chan struct{})}
}

func (b *BlockingCollection) Name() string { return "investment_records" }

func (b *BlockingCollection) DeleteAllForOwner(ctx context.Context, ownerID string) (int64, error) {
	close(b.Entered)
	<-b.Release
	return 0, nil
}

func (b *BlockingCollection) CountForOwner(ctx context.Context, ownerID string) (int64, error) {
	return 0, nil
}
