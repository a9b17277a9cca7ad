// Package cascade recomputes costs downstream of a change. Each run is a job
// that locks its workspace, evaluates the affected entities leaves first,
// isolates per-entity failures and commits every changed value at once.
package cascade

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"menucost/internal/costing"
	"menucost/internal/log"
	"menucost/models"
)

// Store is the persistence the orchestrator reads from and commits to.
type Store interface {
	LoadSnapshot(ctx context.Context, workspaceID uint) (*costing.Snapshot, error)
	WorkspaceConfig(ctx context.Context, workspaceID uint) (costing.Config, error)
	Commit(ctx context.Context, workspaceID uint, changes *costing.Changeset) error
	SaveJob(ctx context.Context, job *models.RecalculationJob) error
}

type Options struct {
	// Workers bounds concurrent entity computations within one level.
	Workers int
	// LockTTL is the lease on the workspace lock.
	LockTTL time.Duration
	// LockWait is how long a job waits for a busy workspace.
	LockWait time.Duration
}

const (
	defaultWorkers  = 4
	defaultLockTTL  = 5 * time.Minute
	maxLockBackoff  = time.Second
	initLockBackoff = 50 * time.Millisecond
)

type Orchestrator struct {
	store  Store
	locker Locker
	opts   Options

	now   func() time.Time
	newID func() string
	// checkpoint runs before each entity; a non-nil error cancels the job.
	checkpoint func(ctx context.Context) error
}

func New(store Store, locker Locker, opts Options) *Orchestrator {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}
	if locker == nil {
		locker = NewLocalLocker()
	}
	return &Orchestrator{
		store:      store,
		locker:     locker,
		opts:       opts,
		now:        time.Now,
		newID:      uuid.NewString,
		checkpoint: func(ctx context.Context) error { return ctx.Err() },
	}
}

type plan struct {
	// scope is recomputed in dependency order.
	scope costing.NodeSet
	// variations lists ingredients whose variations are refreshed from
	// stored costs when the ingredient itself is not recomputed.
	variations []uint
	// sized lists products whose size costs and menu entries are refreshed
	// from stored costs when the product itself is not recomputed.
	sized   []uint
	primary map[string]bool
}

type planner func(snap *costing.Snapshot, graph *costing.Graph) plan

func (o *Orchestrator) run(ctx context.Context, workspaceID uint, kind string, planFn planner) (Result, error) {
	key := lockKey(workspaceID)
	token, err := o.acquire(ctx, key)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if err := o.locker.Unlock(context.WithoutCancel(ctx), key, token); err != nil {
			log.Error(ctx, "release workspace lock", "workspace", workspaceID, "error", err)
		}
	}()

	job := &models.RecalculationJob{
		ID:          o.newID(),
		WorkspaceID: workspaceID,
		Kind:        kind,
		State:       models.JobPending,
		CreatedAt:   o.now(),
	}
	if err := o.store.SaveJob(ctx, job); err != nil {
		return Result{}, fmt.Errorf("save job: %w", err)
	}
	started := o.now()
	job.State = models.JobRunning
	job.StartedAt = &started
	if err := o.store.SaveJob(ctx, job); err != nil {
		return Result{}, fmt.Errorf("save job: %w", err)
	}
	log.Info(ctx, "recalculation started", "workspace", workspaceID, "job", job.ID, "kind", kind)

	result, runErr := o.execute(ctx, workspaceID, job.ID, planFn)
	result.JobID = job.ID
	result.apply(job)
	finished := o.now()
	job.FinishedAt = &finished
	if err := o.store.SaveJob(context.WithoutCancel(ctx), job); err != nil {
		log.Error(ctx, "save finished job", "workspace", workspaceID, "job", job.ID, "error", err)
	}

	log.Info(ctx, "recalculation finished",
		"workspace", workspaceID,
		"job", job.ID,
		"kind", kind,
		"state", result.State,
		"updated", result.Updated,
		"unchanged", result.Unchanged,
		"failed", result.Failed,
		"duration", finished.Sub(started),
	)
	return result, runErr
}

func (o *Orchestrator) execute(ctx context.Context, workspaceID uint, jobID string, planFn planner) (Result, error) {
	snap, err := o.store.LoadSnapshot(ctx, workspaceID)
	if err != nil {
		return jobFailure(fmt.Errorf("load snapshot: %w", err))
	}
	cfg, err := o.store.WorkspaceConfig(ctx, workspaceID)
	if err != nil {
		return jobFailure(fmt.Errorf("load workspace config: %w", err))
	}

	graph := costing.BuildGraph(snap)
	p := planFn(snap, graph)
	r := newRunState(ctx, jobID, costing.NewCalculator(snap, cfg), graph)

	levels, cyclic := graph.Levels(p.scope)
	for _, node := range cyclic {
		r.failNode(node, fmt.Errorf("%w: %s", costing.ErrCyclicDependency, node))
	}

	for depth, level := range levels {
		group, gctx := errgroup.WithContext(ctx)
		group.SetLimit(o.opts.Workers)
		for _, node := range level {
			node := node
			group.Go(func() error {
				if err := o.checkpoint(gctx); err != nil {
					return err
				}
				r.computeNode(node)
				return nil
			})
		}
		if err := group.Wait(); err != nil {
			log.Warn(ctx, "recalculation cancelled", "workspace", workspaceID, "job", jobID, "level", depth, "error", err)
			result := r.summary(p.primary)
			result.State = models.JobCancelled
			return result, fmt.Errorf("%w: %v", ErrCancelled, err)
		}
	}

	for _, id := range p.variations {
		if err := o.checkpoint(ctx); err != nil {
			result := r.summary(p.primary)
			result.State = models.JobCancelled
			return result, fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		r.refreshVariations(id)
	}
	for _, id := range p.sized {
		if err := o.checkpoint(ctx); err != nil {
			result := r.summary(p.primary)
			result.State = models.JobCancelled
			return result, fmt.Errorf("%w: %v", ErrCancelled, err)
		}
		r.refreshProductDerived(id)
	}

	result := r.summary(p.primary)
	if !r.changes.Empty() {
		if err := o.store.Commit(ctx, workspaceID, &r.changes); err != nil {
			failure, ferr := jobFailure(fmt.Errorf("commit: %w", err))
			failure.Tally = result.Tally
			return failure, ferr
		}
		log.Debug(ctx, "changeset committed", "workspace", workspaceID, "job", jobID, "rows", r.changes.Len())
	}

	result.State = models.JobCompleted
	if len(result.Errors) > 0 {
		result.State = models.JobPartiallyFailed
	}
	return result, nil
}

// jobFailure reports an error that stopped the whole job before commit.
func jobFailure(err error) (Result, error) {
	result := newResult()
	result.State = models.JobPartiallyFailed
	result.Errors = append(result.Errors, EntityError{Kind: EntityJob, Reason: err.Error()})
	return result, err
}

func (o *Orchestrator) acquire(ctx context.Context, key string) (string, error) {
	token := o.newID()
	deadline := o.now().Add(o.opts.LockWait)
	backoff := initLockBackoff
	for {
		ok, err := o.locker.TryLock(ctx, key, token, o.opts.LockTTL)
		if err != nil {
			return "", fmt.Errorf("acquire workspace lock: %w", err)
		}
		if ok {
			log.Debug(ctx, "workspace lock acquired", "key", key)
			return token, nil
		}
		if !o.now().Before(deadline) {
			return "", fmt.Errorf("%w: %s", ErrWorkspaceBusy, key)
		}
		select {
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, maxLockBackoff)
	}
}

// runState accumulates the outcome of one job. Entities of one level run
// concurrently, so every write goes through mu.
type runState struct {
	ctx   context.Context
	jobID string
	calc  *costing.Calculator
	snap  *costing.Snapshot
	graph *costing.Graph

	mu          sync.Mutex
	result      Result
	changes     costing.Changeset
	failed      costing.NodeSet
	variationOK map[uint]bool
	derivedOK   map[uint]bool
}

func newRunState(ctx context.Context, jobID string, calc *costing.Calculator, graph *costing.Graph) *runState {
	return &runState{
		ctx:         ctx,
		jobID:       jobID,
		calc:        calc,
		snap:        calc.Snapshot(),
		graph:       graph,
		result:      newResult(),
		failed:      make(costing.NodeSet),
		variationOK: make(map[uint]bool),
		derivedOK:   make(map[uint]bool),
	}
}

func (r *runState) computeNode(node costing.Node) {
	for _, component := range r.graph.Components(node) {
		if r.isFailed(component) {
			r.failNode(node, fmt.Errorf("%w: %s", costing.ErrUpstreamFailed, component))
			return
		}
	}

	switch node.Kind {
	case models.ComponentIngredient:
		cost, err := r.calc.ResolveIngredient(node.ID)
		if err != nil {
			r.failNode(node, err)
			return
		}
		r.record(EntityIngredient, r.snap.IngredientChanged(cost), func(c *costing.Changeset) {
			c.Ingredients = append(c.Ingredients, cost)
		})
		r.refreshVariations(node.ID)
	case models.ComponentRecipe:
		cost, err := r.calc.RecalculateRecipe(node.ID)
		if err != nil {
			r.failNode(node, err)
			return
		}
		r.record(EntityRecipe, r.snap.RecipeChanged(cost), func(c *costing.Changeset) {
			c.Recipes = append(c.Recipes, cost)
		})
	case models.ComponentProduct:
		cost, err := r.calc.RecalculateProduct(node.ID)
		if err != nil {
			r.failNode(node, err)
			return
		}
		r.record(EntityProduct, r.snap.ProductChanged(cost), func(c *costing.Changeset) {
			c.Products = append(c.Products, cost)
		})
		r.refreshProductDerived(node.ID)
	default:
		r.failNode(node, fmt.Errorf("%w: %q", costing.ErrUnsupportedComponent, node.Kind))
	}
}

func (r *runState) refreshVariations(ingredientID uint) {
	r.mu.Lock()
	done := r.variationOK[ingredientID]
	r.variationOK[ingredientID] = true
	r.mu.Unlock()
	if done || r.isFailed(costing.Node{Kind: models.ComponentIngredient, ID: ingredientID}) {
		return
	}

	for _, id := range r.snap.VariationsOf(ingredientID) {
		cost, err := r.calc.VariationCost(id)
		if err != nil {
			r.fail(EntityVariation, id, err)
			continue
		}
		fresh := costing.VariationCost{VariationID: id, Cost: cost}
		r.record(EntityVariation, r.snap.VariationChanged(fresh), func(c *costing.Changeset) {
			c.Variations = append(c.Variations, fresh)
		})
	}
}

// refreshProductDerived rewrites the size costs and menu entries of a product
// from its latest cost.
func (r *runState) refreshProductDerived(productID uint) {
	r.mu.Lock()
	done := r.derivedOK[productID]
	r.derivedOK[productID] = true
	r.mu.Unlock()
	if done || r.isFailed(costing.Node{Kind: models.ComponentProduct, ID: productID}) {
		return
	}

	product, ok := r.snap.Products[productID]
	if !ok {
		return
	}
	if product.SizeGroupID != nil {
		group, ok := r.snap.SizeGroups[*product.SizeGroupID]
		if !ok {
			r.fail(EntitySizeCost, productID, fmt.Errorf("%w: size group %d", costing.ErrMissingComponent, *product.SizeGroupID))
		} else {
			for _, option := range group.Options {
				cost, err := r.calc.ProductCostForSize(productID, option.ID)
				if err != nil {
					r.fail(EntitySizeCost, productID, err)
					break
				}
				fresh := costing.SizeCost{ProductID: productID, SizeOptionID: option.ID, Cost: cost}
				r.record(EntitySizeCost, r.snap.SizeCostChanged(fresh), func(c *costing.Changeset) {
					c.SizeCosts = append(c.SizeCosts, fresh)
				})
			}
		}
	}

	for _, ref := range r.snap.MenuEntriesOf(productID) {
		price, err := r.calc.PriceMenuEntry(ref)
		if err != nil {
			r.fail(EntityMenuEntry, ref.Entry.ID, err)
			continue
		}
		r.record(EntityMenuEntry, r.snap.MenuEntryChanged(ref, price), func(c *costing.Changeset) {
			c.MenuEntries = append(c.MenuEntries, price)
		})
	}
}

func (r *runState) record(kind string, changed bool, add func(*costing.Changeset)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := r.result.counts(kind)
	if !changed {
		counts.Unchanged++
		return
	}
	counts.Updated++
	add(&r.changes)
}

func (r *runState) isFailed(node costing.Node) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failed.Has(node)
}

func (r *runState) failNode(node costing.Node, err error) {
	r.mu.Lock()
	r.failed.Add(node)
	r.mu.Unlock()
	r.fail(entityKind(node.Kind), node.ID, err)
}

func (r *runState) fail(kind string, id uint, err error) {
	level := log.Warn
	if errors.Is(err, costing.ErrUpstreamFailed) {
		level = log.Debug
	}
	level(r.ctx, "entity recalculation failed", "job", r.jobID, "kind", kind, "entity", id, "error", err)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.result.counts(kind).Failed++
	r.result.Errors = append(r.result.Errors, EntityError{Kind: kind, EntityID: id, Reason: err.Error()})
}

func (r *runState) summary(primary map[string]bool) Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.result
	out.Errors = append([]EntityError{}, r.result.Errors...)
	out.Tally = make(map[string]*Counts, len(r.result.Tally))
	for kind, c := range r.result.Tally {
		copied := *c
		out.Tally[kind] = &copied
	}
	out.sortErrors()
	out.summarize(primary)
	return out
}

func entityKind(kind models.ComponentKind) string {
	switch kind {
	case models.ComponentIngredient:
		return EntityIngredient
	case models.ComponentRecipe:
		return EntityRecipe
	case models.ComponentProduct:
		return EntityProduct
	}
	return string(kind)
}
