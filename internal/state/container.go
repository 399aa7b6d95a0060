// Package state holds the authoritative in-memory working set for a session
// and mirrors it to a remote store. Every mutation is a command method that
// applies atomically under one lock, then pushes the affected collection
// through the Gateway asynchronously: fire-and-forget, last writer wins,
// no rollback of local state on sync failure.
package state

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "folio/internal/errors"
	"folio/internal/models"
	"folio/internal/uuid"
)

// Container is the client-side state store for all entities the engine
// operates on.
type Container struct {
	mu          sync.RWMutex
	gw          Gateway
	log         *zap.SugaredLogger
	syncTimeout time.Duration
	inflight    sync.WaitGroup

	owners       []models.Owner
	portfolios   []models.Portfolio
	accounts     []models.Account
	groups       []models.CombinedGroup
	transactions []models.Transaction
	plans        []models.SellPlan
	completions  map[string]string // completion key -> plan id
	tracked      []models.TrackedSymbol
	snapshots    []models.AllocationSnapshot
}

// NewContainer creates an empty container backed by the given gateway.
func NewContainer(gw Gateway, log *zap.SugaredLogger, syncTimeout time.Duration) *Container {
	return &Container{
		gw:          gw,
		log:         log,
		syncTimeout: syncTimeout,
		completions: make(map[string]string),
	}
}

// Load hydrates the container from the remote store. Called once at startup;
// afterwards the container is the authority.
func (c *Container) Load(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var completions []models.PlanCompletion
	for _, dst := range []any{
		&c.owners, &c.portfolios, &c.accounts, &c.groups,
		&c.transactions, &c.plans, &completions, &c.tracked, &c.snapshots,
	} {
		if err := c.gw.FetchAll(ctx, dst); err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	c.completions = make(map[string]string, len(completions))
	for _, pc := range completions {
		c.completions[pc.Key] = pc.SellPlanID
	}
	return nil
}

// Flush waits for all in-flight remote syncs to finish. Used at shutdown
// and in tests; normal operation never blocks on the remote store.
func (c *Container) Flush() {
	c.inflight.Wait()
}

func (c *Container) stamp(b *models.Base) {
	if b.ID == "" {
		b.ID = uuid.New()
	}
	now := time.Now()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now
}

// syncAsync pushes one collection to the remote store without blocking the
// caller. Errors are logged, never surfaced: the local mutation already
// counts as the durable-enough result for this session.
func (c *Container) syncAsync(collection string, records any, tables ...any) {
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.syncTimeout)
		defer cancel()
		if err := c.gw.SyncAll(ctx, records, tables...); err != nil {
			c.log.Errorw("remote sync failed",
				"collection", collection,
				"error", err,
			)
		}
	}()
}

// --- owners ---

// AddOwner registers a new owner. Emails are unique, case-insensitively.
func (c *Container) AddOwner(owner models.Owner) (*models.Owner, error) {
	c.mu.Lock()
	for i := range c.owners {
		if strings.EqualFold(c.owners[i].Email, owner.Email) {
			c.mu.Unlock()
			return nil, apperrors.ErrDuplicateEmail
		}
	}
	c.stamp(&owner.Base)
	c.owners = append(c.owners, owner)
	records := cloneSlice(c.owners)
	c.mu.Unlock()

	c.syncAsync("owners", records, &models.Owner{})
	return &owner, nil
}

// OwnerByEmail finds an owner by email, case-insensitively.
func (c *Container) OwnerByEmail(email string) (*models.Owner, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.owners {
		if strings.EqualFold(c.owners[i].Email, email) {
			owner := c.owners[i]
			return &owner, nil
		}
	}
	return nil, apperrors.ErrOwnerNotFound
}

// OwnerByID finds an owner by id.
func (c *Container) OwnerByID(id string) (*models.Owner, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.owners {
		if c.owners[i].ID == id {
			owner := c.owners[i]
			return &owner, nil
		}
	}
	return nil, apperrors.ErrOwnerNotFound
}

// TouchLogin records a successful login.
func (c *Container) TouchLogin(ownerID string) {
	c.mu.Lock()
	now := time.Now()
	for i := range c.owners {
		if c.owners[i].ID == ownerID {
			c.owners[i].LastLoginAt = &now
			break
		}
	}
	records := cloneSlice(c.owners)
	c.mu.Unlock()

	c.syncAsync("owners", records, &models.Owner{})
}

// --- portfolios, accounts, groups ---

// AddPortfolio appends a portfolio.
func (c *Container) AddPortfolio(p models.Portfolio) (*models.Portfolio, error) {
	c.mu.Lock()
	c.stamp(&p.Base)
	c.portfolios = append(c.portfolios, p)
	records := cloneSlice(c.portfolios)
	c.mu.Unlock()

	c.syncAsync("portfolios", records, &models.Portfolio{})
	return &p, nil
}

// UpdatePortfolio replaces a portfolio's mutable fields.
func (c *Container) UpdatePortfolio(id, name string, ownerIDs []string, includeInCombined bool) (*models.Portfolio, error) {
	c.mu.Lock()
	var updated *models.Portfolio
	for i := range c.portfolios {
		if c.portfolios[i].ID == id {
			c.portfolios[i].Name = name
			c.portfolios[i].OwnerIDs = ownerIDs
			c.portfolios[i].IncludeInCombined = includeInCombined
			c.portfolios[i].UpdatedAt = time.Now()
			p := c.portfolios[i]
			updated = &p
			break
		}
	}
	records := cloneSlice(c.portfolios)
	c.mu.Unlock()

	if updated == nil {
		return nil, apperrors.ErrPortfolioNotFound
	}
	c.syncAsync("portfolios", records, &models.Portfolio{})
	return updated, nil
}

// AddAccount appends an account to a portfolio.
func (c *Container) AddAccount(a models.Account) (*models.Account, error) {
	c.mu.Lock()
	found := false
	for i := range c.portfolios {
		if c.portfolios[i].ID == a.PortfolioID {
			found = true
			break
		}
	}
	if !found {
		c.mu.Unlock()
		return nil, apperrors.ErrPortfolioNotFound
	}
	c.stamp(&a.Base)
	c.accounts = append(c.accounts, a)
	records := cloneSlice(c.accounts)
	c.mu.Unlock()

	c.syncAsync("accounts", records, &models.Account{})
	return &a, nil
}

// AddGroup appends a combined group.
func (c *Container) AddGroup(g models.CombinedGroup) (*models.CombinedGroup, error) {
	c.mu.Lock()
	c.stamp(&g.Base)
	c.groups = append(c.groups, g)
	records := cloneSlice(c.groups)
	c.mu.Unlock()

	c.syncAsync("groups", records, &models.CombinedGroup{})
	return &g, nil
}

// DeleteGroup removes a combined group. The underlying portfolios are
// untouched; a group is only a view.
func (c *Container) DeleteGroup(id string) error {
	c.mu.Lock()
	kept := c.groups[:0]
	found := false
	for _, g := range c.groups {
		if g.ID == id {
			found = true
			continue
		}
		kept = append(kept, g)
	}
	c.groups = kept
	records := cloneSlice(c.groups)
	c.mu.Unlock()

	if !found {
		return apperrors.ErrGroupNotFound
	}
	c.syncAsync("groups", records, &models.CombinedGroup{})
	return nil
}

// --- transactions ---

// AppendTransaction appends one transaction to the ledger.
func (c *Container) AppendTransaction(tx models.Transaction) (*models.Transaction, error) {
	if tx.Quantity <= 0 {
		return nil, apperrors.ErrInvalidQuantity
	}
	if tx.Price < 0 {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Price cannot be negative")
	}

	c.mu.Lock()
	c.stamp(&tx.Base)
	if tx.Date.IsZero() {
		tx.Date = time.Now()
	}
	if tx.Source == "" {
		tx.Source = models.SourceUser
	}
	c.transactions = append(c.transactions, tx)
	records := cloneSlice(c.transactions)
	c.mu.Unlock()

	c.syncAsync("transactions", records, &models.Transaction{})
	return &tx, nil
}

// DeleteTransaction removes a transaction by id. Deletion is the only
// mutation the append-only ledger allows.
func (c *Container) DeleteTransaction(id string) error {
	c.mu.Lock()
	kept := c.transactions[:0]
	found := false
	for _, tx := range c.transactions {
		if tx.ID == id {
			found = true
			continue
		}
		kept = append(kept, tx)
	}
	c.transactions = kept
	records := cloneSlice(c.transactions)
	c.mu.Unlock()

	if !found {
		return apperrors.ErrTransactionNotFound
	}
	c.syncAsync("transactions", records, &models.Transaction{})
	return nil
}

// --- sell plans & completions ---

// AddPlan persists a confirmed sell plan.
func (c *Container) AddPlan(plan models.SellPlan) (*models.SellPlan, error) {
	c.mu.Lock()
	c.stamp(&plan.Base)
	for i := range plan.AccountAllocations {
		alloc := &plan.AccountAllocations[i]
		c.stamp(&alloc.Base)
		alloc.SellPlanID = plan.ID
		for j := range alloc.BuyAllocations {
			buy := &alloc.BuyAllocations[j]
			c.stamp(&buy.Base)
			buy.AccountAllocationID = alloc.ID
		}
	}
	c.plans = append(c.plans, plan)
	records := cloneSlice(c.plans)
	c.mu.Unlock()

	c.syncPlans(records)
	return &plan, nil
}

// PlanByID returns a copy of a plan.
func (c *Container) PlanByID(id string) (*models.SellPlan, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := range c.plans {
		if c.plans[i].ID == id {
			plan := c.plans[i]
			return &plan, nil
		}
	}
	return nil, apperrors.ErrPlanNotFound
}

// DeletePlan discards a plan before completion: its completion keys are
// dropped and no transactions are emitted.
func (c *Container) DeletePlan(id string) error {
	c.mu.Lock()
	kept := c.plans[:0]
	found := false
	for _, p := range c.plans {
		if p.ID == id {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	c.plans = kept
	c.dropCompletionsLocked(id)
	planRecords := cloneSlice(c.plans)
	completionRecords := c.completionRecordsLocked()
	c.mu.Unlock()

	if !found {
		return apperrors.ErrPlanNotFound
	}
	c.syncPlans(planRecords)
	c.syncAsync("plan_completions", completionRecords, &models.PlanCompletion{})
	return nil
}

// HasCompletion reports whether a completion key has been recorded.
func (c *Container) HasCompletion(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.completions[key]
	return ok
}

// CompleteLeg records a completion key and the transaction the completed
// leg emits, as one atomic mutation. Returns false without side effects if
// the key was already present (idempotent re-invocation).
func (c *Container) CompleteLeg(planID, key string, tx models.Transaction) (bool, error) {
	if tx.Quantity <= 0 {
		return false, apperrors.ErrInvalidQuantity
	}

	c.mu.Lock()
	if _, done := c.completions[key]; done {
		c.mu.Unlock()
		return false, nil
	}
	c.completions[key] = planID
	c.stamp(&tx.Base)
	if tx.Date.IsZero() {
		tx.Date = time.Now()
	}
	c.transactions = append(c.transactions, tx)
	txRecords := cloneSlice(c.transactions)
	completionRecords := c.completionRecordsLocked()
	c.mu.Unlock()

	c.syncAsync("transactions", txRecords, &models.Transaction{})
	c.syncAsync("plan_completions", completionRecords, &models.PlanCompletion{})
	return true, nil
}

// ArchivePlan removes a fully completed plan, clears its completion keys
// and records the allocation snapshot, as one atomic mutation.
func (c *Container) ArchivePlan(planID string, snapshot models.AllocationSnapshot) error {
	c.mu.Lock()
	kept := c.plans[:0]
	found := false
	for _, p := range c.plans {
		if p.ID == planID {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		c.mu.Unlock()
		return apperrors.ErrPlanNotFound
	}
	c.plans = kept
	c.dropCompletionsLocked(planID)
	if snapshot.ID == "" {
		snapshot.ID = uuid.New()
	}
	if snapshot.RecordedAt.IsZero() {
		snapshot.RecordedAt = time.Now()
	}
	c.snapshots = append(c.snapshots, snapshot)

	planRecords := cloneSlice(c.plans)
	completionRecords := c.completionRecordsLocked()
	snapshotRecords := cloneSlice(c.snapshots)
	c.mu.Unlock()

	c.syncPlans(planRecords)
	c.syncAsync("plan_completions", completionRecords, &models.PlanCompletion{})
	c.syncAsync("allocation_snapshots", snapshotRecords, &models.AllocationSnapshot{})
	return nil
}

func (c *Container) dropCompletionsLocked(planID string) {
	for key, pid := range c.completions {
		if pid == planID {
			delete(c.completions, key)
		}
	}
}

func (c *Container) completionRecordsLocked() []models.PlanCompletion {
	records := make([]models.PlanCompletion, 0, len(c.completions))
	for key, planID := range c.completions {
		records = append(records, models.PlanCompletion{
			Base:       models.Base{ID: uuid.New()},
			SellPlanID: planID,
			Key:        key,
		})
	}
	return records
}

func (c *Container) syncPlans(records []models.SellPlan) {
	c.syncAsync("sell_plans", records,
		&models.BuyAllocation{}, &models.AccountAllocation{}, &models.SellPlan{})
}

// --- tracked symbols ---

// Track adds a watched symbol to a scope. Adding an already-tracked symbol
// is a no-op.
func (c *Container) Track(scopeKey, symbol string, assetType models.AssetType) error {
	c.mu.Lock()
	for i := range c.tracked {
		if c.tracked[i].ScopeKey == scopeKey && c.tracked[i].Symbol == symbol {
			c.mu.Unlock()
			return nil
		}
	}
	ts := models.TrackedSymbol{ScopeKey: scopeKey, Symbol: symbol, AssetType: assetType}
	c.stamp(&ts.Base)
	c.tracked = append(c.tracked, ts)
	records := cloneSlice(c.tracked)
	c.mu.Unlock()

	c.syncAsync("tracked_symbols", records, &models.TrackedSymbol{})
	return nil
}

// Untrack removes a watched symbol from a scope.
func (c *Container) Untrack(scopeKey, symbol string) error {
	c.mu.Lock()
	kept := c.tracked[:0]
	for _, ts := range c.tracked {
		if ts.ScopeKey == scopeKey && ts.Symbol == symbol {
			continue
		}
		kept = append(kept, ts)
	}
	c.tracked = kept
	records := cloneSlice(c.tracked)
	c.mu.Unlock()

	c.syncAsync("tracked_symbols", records, &models.TrackedSymbol{})
	return nil
}

// TrackedFor returns the tracked symbols for a scope key.
func (c *Container) TrackedFor(scopeKey string) []models.TrackedSymbol {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []models.TrackedSymbol
	for i := range c.tracked {
		if c.tracked[i].ScopeKey == scopeKey {
			out = append(out, c.tracked[i])
		}
	}
	return out
}

// --- snapshots ---

// SnapshotsFor returns the allocation snapshots recorded for a scope key,
// oldest first.
func (c *Container) SnapshotsFor(scopeKey string) []models.AllocationSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []models.AllocationSnapshot
	for i := range c.snapshots {
		if c.snapshots[i].ScopeKey == scopeKey {
			out = append(out, c.snapshots[i])
		}
	}
	return out
}

// --- snapshot reads ---

// Owners returns a copy of all owners.
func (c *Container) Owners() []models.Owner {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneSlice(c.owners)
}

// Portfolios returns a copy of all portfolios.
func (c *Container) Portfolios() []models.Portfolio {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneSlice(c.portfolios)
}

// Accounts returns a copy of all accounts.
func (c *Container) Accounts() []models.Account {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneSlice(c.accounts)
}

// Groups returns a copy of all combined groups.
func (c *Container) Groups() []models.CombinedGroup {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneSlice(c.groups)
}

// Transactions returns a copy of the full ledger.
func (c *Container) Transactions() []models.Transaction {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneSlice(c.transactions)
}

// Plans returns a copy of all active sell plans.
func (c *Container) Plans() []models.SellPlan {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return cloneSlice(c.plans)
}

func cloneSlice[T any](src []T) []T {
	out := make([]T, len(src))
	copy(out, src)
	return out
}
