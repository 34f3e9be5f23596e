// internal/engine/engine.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"propshare-wallet/internal/broadcast"
	"propshare-wallet/internal/cache"
	"propshare-wallet/internal/cleanup"
	"propshare-wallet/internal/domain"
	"propshare-wallet/internal/pricefeed"
	"propshare-wallet/internal/repository"
	"propshare-wallet/internal/util"
	"propshare-wallet/internal/valuation"
)

// State is the engine lifecycle state.
type State string

const (
	StateDisconnected  State = "disconnected"
	StateConnecting    State = "connecting"
	StateConnected     State = "connected"
	StateRefreshing    State = "refreshing" // transient sub-state of connected
	StateDisconnecting State = "disconnecting"
)

// ConnectParams carries the caller-supplied initial values for Connect.
// Zero-valued optional fields take engine defaults.
type ConnectParams struct {
	Address         string          `json:"address"`           // empty: generated
	BalanceUnits    decimal.Decimal `json:"balance_units"`
	StrikePriceUSD  decimal.Decimal `json:"strike_price_usd"`  // zero: current feed quote
	InitialValueUSD decimal.Decimal `json:"initial_value_usd"` // zero: balance × strike
	DisplayName     string          `json:"display_name"`
}

// Deps bundles the collaborators an Engine needs.
type Deps struct {
	Repo         repository.WalletRecordRepository
	Interactions repository.InteractionRepository
	Cache        cache.ScratchCache
	Feed         pricefeed.Feed
	Broadcaster  *broadcast.Broadcaster
	Cleaner      *cleanup.Coordinator
	Logger       *slog.Logger
}

// Engine is the per-instance simulated-wallet lifecycle manager. It mediates
// between the scratch cache and the durable repository, owns the migration
// of legacy local-only records, and keeps sibling instances in sync through
// the broadcaster.
//
// All lifecycle operations serialize on the state machine: Connect and
// Disconnect are rejected with util.ErrBusy while another transition is in
// flight, closing the interleaving races of the original design.
type Engine struct {
	id      string // instance identity, used to skip own broadcast emissions
	ownerID string

	deps  Deps
	subID int

	mu         sync.Mutex // guards the fields below
	state      State
	rec        *domain.WalletRecord
	lastErr    error
	generation uint64 // bumped on disconnect so superseded async refreshes drop out
}

// New creates an engine for ownerID (may be empty before authentication) and
// subscribes it to the broadcaster. Call Close on teardown.
func New(ownerID string, deps Deps) *Engine {
	e := &Engine{
		id:      uuid.NewString(),
		ownerID: ownerID,
		deps:    deps,
		state:   StateDisconnected,
	}
	e.subID = deps.Broadcaster.Subscribe(e.onBroadcast)
	return e
}

// Close unsubscribes the engine from the broadcaster.
func (e *Engine) Close() {
	e.deps.Broadcaster.Unsubscribe(e.subID)
}

// storeFailure wraps an error coming back from the durable store. Domain
// sentinels pass through so callers can branch on them; anything else is an
// infrastructure fault and is marked util.ErrUnavailable for transports to
// map.
func storeFailure(op string, err error) error {
	switch {
	case errors.Is(err, util.ErrNotFound),
		errors.Is(err, util.ErrVersionConflict),
		errors.Is(err, util.ErrInsufficientFunds):
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, util.ErrUnavailable, err)
}

// lock acquires the state mutex.
func (e *Engine) lock() { e.mu.Lock() }

// unlock releases the state mutex.
func (e *Engine) unlock() { e.mu.Unlock() }

// begin moves the engine into the transitional state op if the current state
// is one of allowed, otherwise returns util.ErrBusy. The caller must follow
// up with finish.
func (e *Engine) begin(op State, allowed ...State) error {
	e.lock()
	defer e.unlock()
	for _, s := range allowed {
		if e.state == s {
			e.state = op
			return nil
		}
	}
	return util.ErrBusy
}

// finish leaves the transitional state, recording the new record (which may
// be nil for disconnected) and the surfaced error.
func (e *Engine) finish(next State, rec *domain.WalletRecord, err error) {
	e.lock()
	defer e.unlock()
	e.state = next
	e.rec = rec
	e.lastErr = err
}

// Connect provisions or re-activates the durable record for the owner. When
// a record already exists the call is an idempotent upsert that preserves
// CreatedAt and StrikePriceUSD; otherwise a record is created with the
// current feed quote as its price basis. Any legacy local-only cached record
// is cleared and a fresh local copy is cached.
func (e *Engine) Connect(ctx context.Context, p ConnectParams) error {
	// Validation happens before any state transition or I/O.
	if p.Address != "" && !domain.ValidAddress(p.Address) {
		return util.ErrInvalidAddress
	}
	if p.BalanceUnits.IsNegative() {
		return util.ErrInvalidInput
	}
	if e.OwnerID() == "" {
		return util.ErrInvalidInput
	}
	if err := e.begin(StateConnecting, StateDisconnected, StateConnected); err != nil {
		return err
	}

	rec, err := e.connectLocked(ctx, p)
	if err != nil {
		// Degrade: keep whatever record we last had, surface the error.
		e.finish(e.stateAfterFailure(), e.currentRecord(), err)
		return err
	}

	// Legacy local-only state is stale the moment a durable record exists.
	e.clearLegacyCache(ctx)
	e.cacheRecord(ctx, rec)
	e.appendInteraction(ctx, "connect")
	e.finish(StateConnected, rec, nil)
	e.deps.Broadcaster.Emit(broadcast.Event{OwnerID: e.ownerID, SourceID: e.id, Kind: "connect"})
	return nil
}

// connectLocked runs the read-then-create-or-update sequence.
func (e *Engine) connectLocked(ctx context.Context, p ConnectParams) (*domain.WalletRecord, error) {
	existing, err := e.deps.Repo.Get(ctx, e.ownerID)
	switch {
	case err == nil:
		return e.upsertExisting(ctx, existing, p)
	case errors.Is(err, util.ErrNotFound):
		// Not yet provisioned; absence triggers the creation path.
		return e.createRecord(ctx, p)
	default:
		return nil, storeFailure("connect: failed to read durable record", err)
	}
}

// upsertExisting updates the mutable fields of an existing record. Retries
// once through a re-read when another writer advanced the version.
func (e *Engine) upsertExisting(ctx context.Context, existing *domain.WalletRecord, p ConnectParams) (*domain.WalletRecord, error) {
	applyParams := func(rec *domain.WalletRecord) {
		if p.Address != "" {
			rec.PublicAddress = p.Address
		}
		if p.DisplayName != "" {
			rec.DisplayName = p.DisplayName
		}
		if !p.BalanceUnits.IsZero() {
			rec.BalanceUnits = p.BalanceUnits
		}
		if !p.InitialValueUSD.IsZero() {
			rec.InitialValueUSD = p.InitialValueUSD
		}
		rec.Active = true
	}

	applyParams(existing)
	err := e.deps.Repo.Update(ctx, existing)
	if errors.Is(err, util.ErrVersionConflict) {
		fresh, getErr := e.deps.Repo.Get(ctx, e.ownerID)
		if getErr != nil {
			return nil, storeFailure("connect: conflict re-read failed", getErr)
		}
		applyParams(fresh)
		if err = e.deps.Repo.Update(ctx, fresh); err == nil {
			return fresh, nil
		}
	}
	if err != nil {
		return nil, storeFailure("connect: failed to upsert durable record", err)
	}
	return existing, nil
}

// createRecord provisions a brand-new durable record.
func (e *Engine) createRecord(ctx context.Context, p ConnectParams) (*domain.WalletRecord, error) {
	address := p.Address
	if address == "" {
		address = domain.GenerateAddress()
	}
	strike := p.StrikePriceUSD
	if strike.LessThanOrEqual(decimal.Zero) {
		strike = e.deps.Feed.Current(ctx).PriceUSD
	}
	initialValue := p.InitialValueUSD
	if initialValue.IsZero() {
		initialValue = p.BalanceUnits.Mul(strike)
	}
	rec := domain.NewWalletRecord(e.ownerID, address, p.BalanceUnits, strike, initialValue, p.DisplayName)
	if err := e.deps.Repo.Create(ctx, rec); err != nil {
		return nil, storeFailure("connect: failed to create durable record", err)
	}
	return rec, nil
}

// Restore hydrates engine state on (re)initialization. A known owner id
// makes the durable record authoritative; without one, a legacy local-only
// simulation record is migrated into the durable store exactly once, or kept
// as an in-memory pre-authentication fallback when it names no owner.
// Absence of any record is a normal outcome, never an error.
func (e *Engine) Restore(ctx context.Context) error {
	if err := e.begin(StateConnecting, StateDisconnected); err != nil {
		return err
	}

	rec, err := e.restoreLocked(ctx)
	if err != nil {
		e.finish(StateDisconnected, nil, err)
		return err
	}
	if rec == nil {
		e.finish(StateDisconnected, nil, nil)
		return nil
	}
	e.finish(StateConnected, rec, nil)
	return nil
}

func (e *Engine) restoreLocked(ctx context.Context) (*domain.WalletRecord, error) {
	if e.ownerID != "" {
		rec, err := e.deps.Repo.Get(ctx, e.ownerID)
		if err == nil {
			// Durable record wins; the cache is only refreshed, never trusted.
			e.cacheRecord(ctx, rec)
			return rec, nil
		}
		if !errors.Is(err, util.ErrNotFound) {
			return nil, storeFailure("restore: failed to read durable record", err)
		}
		// No durable record yet: a legacy local-only record for this owner
		// may still be waiting for migration.
		return e.migrateLegacy(ctx, e.ownerID)
	}

	// No owner identity: the scratch cache is the only tier available.
	legacy, ok, err := e.loadLegacy(ctx)
	if err != nil || !ok {
		return nil, err
	}
	if legacy.OwnerID != "" && legacy.Simulation {
		e.lock()
		e.ownerID = legacy.OwnerID
		e.unlock()
		return e.migrateLegacy(ctx, legacy.OwnerID)
	}
	// Pre-authentication fallback: display-only hydration, no durable tier.
	return legacy.toRecord(), nil
}

// migrateLegacy copies a legacy local-only record into the durable store
// exactly once. The durable store always wins over legacy local state, and
// the local copy is deleted after a successful migration, which is what
// makes re-running this path idempotent.
func (e *Engine) migrateLegacy(ctx context.Context, ownerID string) (*domain.WalletRecord, error) {
	legacy, ok, err := e.loadLegacy(ctx)
	if err != nil || !ok {
		return nil, err
	}
	if !legacy.Simulation || (legacy.OwnerID != "" && legacy.OwnerID != ownerID) {
		return nil, nil
	}

	durable, err := e.deps.Repo.Get(ctx, ownerID)
	if err == nil {
		// Migration never overwrites an existing durable record.
		e.clearLegacyCache(ctx)
		return durable, nil
	}
	if !errors.Is(err, util.ErrNotFound) {
		return nil, storeFailure("restore: migration pre-read failed", err)
	}

	rec := legacy.toRecord()
	rec.OwnerID = ownerID
	if err := e.deps.Repo.Create(ctx, rec); err != nil {
		return nil, storeFailure("restore: failed to migrate legacy record", err)
	}
	e.clearLegacyCache(ctx)
	e.cacheRecord(ctx, rec)
	e.deps.Logger.Info("migrated legacy local wallet record", "owner_id", ownerID)
	return rec, nil
}

// Refresh re-fetches the durable record and recomputes derived state. No-op
// when disconnected. A read failure keeps the last-known record and surfaces
// through Err.
func (e *Engine) Refresh(ctx context.Context) error {
	if e.OwnerID() == "" {
		return nil
	}
	if err := e.begin(StateRefreshing, StateConnected); err != nil {
		e.lock()
		disconnected := e.state == StateDisconnected
		e.unlock()
		if disconnected {
			return nil // no-op per the lifecycle contract
		}
		return err
	}

	rec, err := e.deps.Repo.Get(ctx, e.ownerID)
	switch {
	case err == nil:
		e.cacheRecord(ctx, rec)
		e.finish(StateConnected, rec, nil)
		return nil
	case errors.Is(err, util.ErrNotFound):
		// Another instance tore the wallet down; mirror it locally.
		e.clearOwnerCache(ctx)
		e.finish(StateDisconnected, nil, nil)
		return nil
	default:
		wrapped := storeFailure("refresh: failed to read durable record", err)
		e.finish(StateConnected, e.currentRecord(), wrapped)
		return wrapped
	}
}

// Disconnect tears the wallet down: best-effort deactivation of the durable
// record, cascading cleanup of every owner-scoped collection, cache clear,
// and an unconditional reset to the empty state. The returned report carries
// per-collection cleanup outcomes; disconnect itself only fails when another
// connect/disconnect is in flight.
func (e *Engine) Disconnect(ctx context.Context) (cleanup.Report, error) {
	e.lock()
	if e.state == StateDisconnected {
		e.unlock()
		return cleanup.Report{}, nil
	}
	if e.state != StateConnected && e.state != StateRefreshing {
		e.unlock()
		return cleanup.Report{}, util.ErrBusy
	}
	e.state = StateDisconnecting
	e.generation++
	e.unlock()

	ownerID := e.OwnerID()
	var report cleanup.Report
	if ownerID != "" {
		if err := e.deps.Repo.Deactivate(ctx, ownerID); err != nil && !errors.Is(err, util.ErrNotFound) {
			e.deps.Logger.Warn("best-effort deactivation failed", "owner_id", ownerID, "error", err)
		}
		report = e.deps.Cleaner.ClearAllUserData(ctx, ownerID)
		if remaining, err := e.deps.Cleaner.VerifyCleanup(ctx, ownerID); err == nil {
			for name, count := range remaining {
				if count > 0 {
					e.deps.Logger.Warn("cleanup left documents behind",
						"collection", name, "owner_id", ownerID, "remaining", count)
				}
			}
		}
	}
	e.clearOwnerCache(ctx)
	e.clearLegacyCache(ctx)

	// Display state resets regardless of cleanup outcome.
	e.finish(StateDisconnected, nil, nil)
	if ownerID != "" {
		e.deps.Broadcaster.Emit(broadcast.Event{OwnerID: ownerID, SourceID: e.id, Kind: "disconnect"})
	}
	return report, nil
}

// Credit adds units to the balance, commits durably, then notifies sibling
// instances.
func (e *Engine) Credit(ctx context.Context, units decimal.Decimal) error {
	return e.applyBalanceChange(ctx, units, domain.TransactionTypeCredit)
}

// Debit removes units from the balance. Debits beyond the available balance
// are rejected with util.ErrInsufficientFunds and leave state unchanged.
func (e *Engine) Debit(ctx context.Context, units decimal.Decimal) error {
	return e.applyBalanceChange(ctx, units, domain.TransactionTypeDebit)
}

func (e *Engine) applyBalanceChange(ctx context.Context, units decimal.Decimal, txType domain.TransactionType) error {
	if units.LessThanOrEqual(decimal.Zero) {
		return util.ErrInvalidInput
	}
	if e.OwnerID() == "" {
		return util.ErrNotConnected
	}
	if err := e.begin(StateRefreshing, StateConnected); err != nil {
		e.lock()
		disconnected := e.state == StateDisconnected
		e.unlock()
		if disconnected {
			return util.ErrNotConnected
		}
		return err
	}

	prev := e.currentRecord()
	rec, err := e.mutateBalance(ctx, prev, units, txType)
	if err != nil {
		e.finish(StateConnected, prev, err)
		return err
	}
	e.cacheRecord(ctx, rec)
	e.finish(StateConnected, rec, nil)
	// Emit only after the durable commit above.
	e.deps.Broadcaster.Emit(broadcast.Event{OwnerID: e.ownerID, SourceID: e.id, Kind: "balance"})
	return nil
}

// mutateBalance applies the balance change with a version-checked write,
// retrying once through a re-read when a sibling writer won the race.
func (e *Engine) mutateBalance(ctx context.Context, prev *domain.WalletRecord, units decimal.Decimal, txType domain.TransactionType) (*domain.WalletRecord, error) {
	if prev == nil {
		return nil, util.ErrNotConnected
	}
	quote := e.deps.Feed.Current(ctx)

	attempt := func(base *domain.WalletRecord) (*domain.WalletRecord, error) {
		next := *base
		switch txType {
		case domain.TransactionTypeDebit:
			if units.GreaterThan(next.BalanceUnits) {
				return nil, util.ErrInsufficientFunds
			}
			next.BalanceUnits = next.BalanceUnits.Sub(units)
		default:
			next.BalanceUnits = next.BalanceUnits.Add(units)
		}
		txRec := domain.NewTransactionRecord(e.ownerID, txType, units, quote.PriceUSD, "")
		if err := e.deps.Repo.ApplyBalanceChange(ctx, &next, txRec); err != nil {
			return nil, err
		}
		return &next, nil
	}

	rec, err := attempt(prev)
	if errors.Is(err, util.ErrVersionConflict) {
		fresh, getErr := e.deps.Repo.Get(ctx, e.ownerID)
		if getErr != nil {
			return nil, storeFailure("balance change: conflict re-read failed", getErr)
		}
		rec, err = attempt(fresh)
	}
	if err != nil {
		if errors.Is(err, util.ErrInsufficientFunds) {
			return nil, err
		}
		return nil, storeFailure("balance change", err)
	}
	return rec, nil
}

// HasSufficientBalance reports whether the balance covers units. The
// boundary is inclusive: units equal to the balance is sufficient.
func (e *Engine) HasSufficientBalance(units decimal.Decimal) bool {
	e.lock()
	defer e.unlock()
	if e.rec == nil {
		return false
	}
	return units.LessThanOrEqual(e.rec.BalanceUnits)
}

// Valuation computes a fresh snapshot from the current record and a live
// feed quote. The snapshot inherits the quote's staleness flag.
func (e *Engine) Valuation(ctx context.Context) (valuation.Snapshot, error) {
	rec := e.currentRecord()
	if rec == nil {
		return valuation.Snapshot{}, util.ErrNotConnected
	}
	quote := e.deps.Feed.Current(ctx)
	snap := valuation.Compute(rec, quote.PriceUSD, time.Now().UTC())
	snap.Stale = quote.Stale
	return snap, nil
}

// ValuationAt computes a snapshot against a caller-supplied price, for
// display collaborators that already hold a quote.
func (e *Engine) ValuationAt(priceUSD decimal.Decimal) (valuation.Snapshot, error) {
	rec := e.currentRecord()
	if rec == nil {
		return valuation.Snapshot{}, util.ErrNotConnected
	}
	return valuation.Compute(rec, priceUSD, time.Now().UTC()), nil
}

// IsConnected reports whether the engine holds a hydrated record.
func (e *Engine) IsConnected() bool {
	e.lock()
	defer e.unlock()
	return e.rec != nil && (e.state == StateConnected || e.state == StateRefreshing)
}

// IsLoading reports whether a lifecycle transition is in flight.
func (e *Engine) IsLoading() bool {
	e.lock()
	defer e.unlock()
	return e.state == StateConnecting || e.state == StateRefreshing || e.state == StateDisconnecting
}

// Address returns the public display address, empty when disconnected.
func (e *Engine) Address() string {
	e.lock()
	defer e.unlock()
	if e.rec == nil {
		return ""
	}
	return e.rec.PublicAddress
}

// BalanceUnits returns the current balance, zero when disconnected.
func (e *Engine) BalanceUnits() decimal.Decimal {
	e.lock()
	defer e.unlock()
	if e.rec == nil {
		return decimal.Zero
	}
	return e.rec.BalanceUnits
}

// Err returns the last surfaced operation error, nil when healthy.
func (e *Engine) Err() error {
	e.lock()
	defer e.unlock()
	return e.lastErr
}

// OwnerID returns the owner this engine serves ("" before authentication).
func (e *Engine) OwnerID() string {
	e.lock()
	defer e.unlock()
	return e.ownerID
}

// Record returns a copy of the hydrated record, nil when disconnected.
func (e *Engine) Record() *domain.WalletRecord {
	e.lock()
	defer e.unlock()
	if e.rec == nil {
		return nil
	}
	cp := *e.rec
	return &cp
}

// currentRecord returns the live record pointer under lock.
func (e *Engine) currentRecord() *domain.WalletRecord {
	e.lock()
	defer e.unlock()
	return e.rec
}

// stateAfterFailure decides where a failed transition lands: engines that
// held a record degrade to connected-with-error, others fall back to
// disconnected.
func (e *Engine) stateAfterFailure() State {
	e.lock()
	defer e.unlock()
	if e.rec != nil {
		return StateConnected
	}
	return StateDisconnected
}

// onBroadcast reacts to sibling emissions for the same owner by re-fetching
// durable state. The generation check drops refreshes that a later
// disconnect has superseded.
func (e *Engine) onBroadcast(ev broadcast.Event) {
	if ev.SourceID == e.id || ev.OwnerID == "" {
		return
	}
	e.lock()
	match := ev.OwnerID == e.ownerID
	gen := e.generation
	e.unlock()
	if !match {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	e.lock()
	superseded := e.generation != gen
	e.unlock()
	if superseded {
		return
	}
	if err := e.Refresh(ctx); err != nil && !errors.Is(err, util.ErrBusy) {
		e.deps.Logger.Warn("broadcast-triggered refresh failed", "owner_id", ev.OwnerID, "error", err)
	}
}

// appendInteraction writes an activity-trail entry; failures are logged, not
// propagated.
func (e *Engine) appendInteraction(ctx context.Context, action string) {
	if e.deps.Interactions == nil {
		return
	}
	ev := domain.NewInteractionEvent(e.ownerID, action)
	if err := e.deps.Interactions.Append(ctx, ev); err != nil {
		e.deps.Logger.Warn("failed to append interaction event", "action", action, "error", err)
	}
}
