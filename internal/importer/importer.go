// Package importer orchestrates a catalog import run: it walks the category
// frontier from the checkpoint, drains product stubs into versioned records,
// and survives rate-limit pauses by resuming from the persisted frontier.
package importer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/acuervo/catalog-mirror/internal/catalog"
	"github.com/acuervo/catalog-mirror/internal/checkpoint"
	"github.com/acuervo/catalog-mirror/internal/identity"
	"github.com/acuervo/catalog-mirror/internal/progress"
	"github.com/acuervo/catalog-mirror/internal/record"
	"github.com/acuervo/catalog-mirror/internal/storage"
)

// API is the slice of the catalog client the engine needs.
type API interface {
	ListCategories(ctx context.Context) ([]int, error)
	ListCategoryProducts(ctx context.Context, categoryID int) ([]catalog.RawProduct, error)
	FetchProductDetail(ctx context.Context, productID string) (catalog.RawProduct, error)
	DoneRequests() int64
}

// Clock abstracts wall-clock time for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// EmptyCategoryPolicy decides what happens when a category listing comes
// back with no products.
type EmptyCategoryPolicy string

// Empty-category policies.
const (
	// EmptySkip drops the category from the frontier and continues.
	EmptySkip EmptyCategoryPolicy = "skip"
	// EmptyAbort stops the run, leaving the checkpoint intact so the
	// category is retried on the next run.
	EmptyAbort EmptyCategoryPolicy = "abort"
)

// ErrEmptyCategory is returned under the abort policy when a category
// listing contains no products.
var ErrEmptyCategory = errors.New("category listing returned no products")

// Config carries the import behavior knobs.
type Config struct {
	// Warehouse is the warehouse code this run imports.
	Warehouse string
	// RateLimitBackoff is how long the run pauses after a 429.
	RateLimitBackoff time.Duration
	// IncludeFullProduct fetches the product detail endpoint for products
	// seen for the first time.
	IncludeFullProduct bool
	// ReimportFullProduct fetches the detail endpoint for every product,
	// new or known.
	ReimportFullProduct bool
	// RefetchMissingEAN fetches the detail endpoint for known products
	// whose stored record has no ean field yet.
	RefetchMissingEAN bool
	// EmptyCategoryPolicy decides skip vs abort on empty listings.
	EmptyCategoryPolicy EmptyCategoryPolicy
}

// Deps are the engine's collaborators.
type Deps struct {
	API         API
	Checkpoints *checkpoint.Store
	Identities  *identity.Map
	Records     *record.Store
	Emitter     progress.Emitter
	Clock       Clock
	Sleep       SleepFunc
	Logger      *zap.Logger
}

// Engine runs one import for one warehouse. It is single-use: construct,
// Run, discard.
type Engine struct {
	cfg     Config
	api     API
	cps     *checkpoint.Store
	ids     *identity.Map
	records *record.Store
	emitter progress.Emitter
	clock   Clock
	sleep   SleepFunc
	logger  *zap.Logger

	runID   uuid.UUID
	start   time.Time
	startRC int64

	reviewed int64
	created  int64
	updated  int64
}

// New validates deps and returns an Engine for the given run id.
func New(runID uuid.UUID, cfg Config, deps Deps) (*Engine, error) {
	if runID == uuid.Nil {
		return nil, errors.New("run id is required")
	}
	if deps.API == nil {
		return nil, errors.New("catalog API is required")
	}
	if deps.Checkpoints == nil || deps.Records == nil || deps.Identities == nil {
		return nil, errors.New("checkpoint, record and identity stores are required")
	}
	if cfg.EmptyCategoryPolicy == "" {
		cfg.EmptyCategoryPolicy = EmptySkip
	}
	if cfg.EmptyCategoryPolicy != EmptySkip && cfg.EmptyCategoryPolicy != EmptyAbort {
		return nil, fmt.Errorf("unknown empty category policy %q", cfg.EmptyCategoryPolicy)
	}
	if deps.Emitter == nil {
		deps.Emitter = progress.NopEmitter{}
	}
	if deps.Clock == nil {
		deps.Clock = systemClock{}
	}
	if deps.Sleep == nil {
		deps.Sleep = contextSleep
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Engine{
		cfg:     cfg,
		api:     deps.API,
		cps:     deps.Checkpoints,
		ids:     deps.Identities,
		records: deps.Records,
		emitter: deps.Emitter,
		clock:   deps.Clock,
		sleep:   deps.Sleep,
		logger:  deps.Logger,
		runID:   runID,
	}, nil
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run executes the import until the frontier is empty. Rate-limit responses
// pause the run for the configured backoff and resume from the checkpoint;
// any other error ends the run.
func (e *Engine) Run(ctx context.Context) error {
	e.start = e.clock.Now()
	e.startRC = e.api.DoneRequests()
	e.reviewed, e.created, e.updated = 0, 0, 0
	e.emit(progress.Event{Kind: progress.KindRunStart})

	for {
		err := e.pass(ctx)
		if err == nil {
			e.summary()
			e.emit(progress.Event{Kind: progress.KindRunDone, Dur: e.elapsed()})
			return nil
		}
		if catalog.IsRateLimited(err) {
			e.logger.Warn("rate limited, pausing run",
				zap.String("warehouse", e.cfg.Warehouse),
				zap.Duration("backoff", e.cfg.RateLimitBackoff),
				zap.Error(err))
			e.emit(progress.Event{Kind: progress.KindError, Note: err.Error()})
			e.summary()
			e.emit(progress.Event{Kind: progress.KindRunPaused, Dur: e.cfg.RateLimitBackoff})
			if serr := e.sleep(ctx, e.cfg.RateLimitBackoff); serr != nil {
				e.emit(progress.Event{Kind: progress.KindRunError, Note: serr.Error(), Dur: e.elapsed()})
				return serr
			}
			continue
		}
		e.summary()
		e.emit(progress.Event{Kind: progress.KindRunError, Note: err.Error(), Dur: e.elapsed()})
		return err
	}
}

// pass processes the frontier until it is empty or an error interrupts it.
// A fresh warehouse seeds the frontier from the remote category tree first.
func (e *Engine) pass(ctx context.Context) error {
	cp, err := e.cps.Read(ctx, e.cfg.Warehouse)
	if err != nil {
		return err
	}
	if len(cp.Categories) == 0 {
		ids, err := e.api.ListCategories(ctx)
		switch {
		case catalog.IsRateLimited(err):
			return err
		case err != nil:
			// A failed tree fetch is an empty observation; the pass ends
			// with nothing to do and the next run retries.
			e.logger.Warn("category tree fetch failed, ending pass", zap.Error(err))
			e.emit(progress.Event{Kind: progress.KindError, Note: err.Error()})
			return nil
		case len(ids) == 0:
			return errors.New("remote category tree is empty")
		}
		cp, err = e.cps.SeedCategories(ctx, e.cfg.Warehouse, ids)
		if err != nil {
			return err
		}
	}
	for len(cp.Categories) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.drainCategory(ctx, cp, cp.Categories[0].ID); err != nil {
			return err
		}
	}
	return nil
}

// drainCategory lists the category if needed, processes every remaining
// stub, and finally removes the category from the frontier. Categories
// already drained on entry are removed without touching the remote.
func (e *Engine) drainCategory(ctx context.Context, cp *checkpoint.Checkpoint, categoryID int) error {
	cat := cp.Category(categoryID)
	if cat == nil {
		return fmt.Errorf("category %d vanished from frontier", categoryID)
	}

	if cat.State == checkpoint.StateUnlisted {
		products, err := e.api.ListCategoryProducts(ctx, categoryID)
		switch {
		case catalog.IsRateLimited(err):
			return err
		case err != nil:
			// A failed listing is an empty observation; only the 429
			// throttle interrupts the pass.
			return e.emptyCategory(ctx, cp, categoryID, err.Error())
		case len(products) == 0:
			return e.emptyCategory(ctx, cp, categoryID, "category listing returned no products")
		}
		if err := e.cps.SetCategoryProducts(ctx, cp, categoryID, products); err != nil {
			return err
		}
	}

	for {
		cat = cp.Category(categoryID)
		if cat == nil || len(cat.Products) == 0 {
			break
		}
		if err := e.drainProduct(ctx, cp, categoryID, cat.Products[0]); err != nil {
			return err
		}
	}
	return e.cps.RemoveCategory(ctx, cp, categoryID)
}

// emptyCategory applies the empty-category policy to a category whose
// listing yielded no products, whether genuinely empty or failed. Under
// skip the category leaves the frontier; under abort the pass stops with
// the checkpoint intact so the next run retries it.
func (e *Engine) emptyCategory(ctx context.Context, cp *checkpoint.Checkpoint, categoryID int, note string) error {
	if e.cfg.EmptyCategoryPolicy == EmptyAbort {
		return fmt.Errorf("category %d (%s): %w", categoryID, note, ErrEmptyCategory)
	}
	e.logger.Warn("skipping category", zap.Int("category", categoryID), zap.String("reason", note))
	e.emit(progress.Event{
		Kind:       progress.KindError,
		CategoryID: categoryID,
		Note:       note,
	})
	return e.cps.RemoveCategory(ctx, cp, categoryID)
}

// drainProduct imports one product stub end to end: load or create the
// record, optionally fetch the detail payload, merge, persist, register the
// identity, and clear the stub from the checkpoint.
func (e *Engine) drainProduct(ctx context.Context, cp *checkpoint.Checkpoint, categoryID int, stub checkpoint.ProductStub) error {
	productID := stub.Product.ID()
	if productID == "" {
		e.logger.Warn("dropping stub without product id", zap.Int("category", categoryID), zap.Int("key", stub.Key))
		e.emit(progress.Event{
			Kind:       progress.KindError,
			CategoryID: categoryID,
			Note:       fmt.Sprintf("stub %d has no product id", stub.Key),
		})
		return e.cps.RemoveProductStub(ctx, cp, categoryID, stub.Key)
	}
	e.reviewed++

	rec, err := e.records.Load(ctx, e.cfg.Warehouse, productID)
	creating := false
	now := e.clock.Now().Unix()
	switch {
	case errors.Is(err, storage.ErrNotFound):
		creating = true
		rec = record.NewRecord(now)
	case err != nil:
		return err
	}

	payload := map[string]any(stub.Product)
	if e.wantsDetail(creating, rec) {
		detail, derr := e.api.FetchProductDetail(ctx, productID)
		switch {
		case derr == nil:
			payload = map[string]any(detail)
		case catalog.IsRateLimited(derr):
			return derr
		default:
			// Listing stub is still a valid, if thinner, observation.
			e.logger.Warn("detail fetch failed, using listing payload",
				zap.String("product", productID), zap.Error(derr))
			e.emit(progress.Event{
				Kind:       progress.KindError,
				CategoryID: categoryID,
				ProductID:  productID,
				Note:       derr.Error(),
			})
		}
	}

	merger := record.Merger{Now: func() int64 { return now }}
	changes := merger.Merge(rec, payload)
	if !creating {
		for _, c := range changes {
			e.emit(progress.Event{
				Kind:      progress.KindProductChanged,
				ProductID: productID,
				Path:      c.Path,
			})
		}
		if len(changes) > 0 {
			rec.Touch(now)
		}
	}

	location, err := e.records.Save(ctx, e.cfg.Warehouse, productID, rec)
	if err != nil {
		return err
	}

	raw := catalog.RawProduct(payload)
	entry := identity.Entry{
		ID:   productID,
		EAN:  raw.StringField("ean"),
		Slug: raw.StringField("slug"),
		Name: raw.StringField("display_name"),
	}
	if entry.Name == "" {
		entry.Name = raw.StringField("name")
	}
	if err := e.ids.Upsert(ctx, entry, e.cfg.Warehouse); err != nil {
		return err
	}

	if err := e.cps.RemoveProductStub(ctx, cp, categoryID, stub.Key); err != nil {
		return err
	}

	switch {
	case creating:
		e.created++
		e.emit(progress.Event{
			Kind:      progress.KindProductCreated,
			ProductID: productID,
			Location:  location,
			Count:     int64(len(changes)),
		})
	case len(changes) > 0:
		e.updated++
		e.emit(progress.Event{
			Kind:      progress.KindProductUpdated,
			ProductID: productID,
			Location:  location,
			Count:     int64(len(changes)),
		})
	}
	return nil
}

// wantsDetail applies the full-detail fetch policy.
func (e *Engine) wantsDetail(creating bool, rec *record.Record) bool {
	if creating {
		return e.cfg.IncludeFullProduct || e.cfg.ReimportFullProduct
	}
	if e.cfg.ReimportFullProduct {
		return true
	}
	if e.cfg.RefetchMissingEAN {
		ean := rec.Product.Resolve("ean")
		return ean == nil || ean.Field() == nil
	}
	return false
}

// summary emits the counter snapshot events.
func (e *Engine) summary() {
	requests := e.api.DoneRequests() - e.startRC
	e.emit(progress.Event{Kind: progress.KindRequestsSubmitted, Count: requests})
	e.emit(progress.Event{
		Kind:     progress.KindImportStats,
		Reviewed: e.reviewed,
		Created:  e.created,
		Updated:  e.updated,
		Count:    requests,
	})
	e.emit(progress.Event{Kind: progress.KindRunningTime, Dur: e.elapsed()})
}

func (e *Engine) elapsed() time.Duration {
	return e.clock.Now().Sub(e.start)
}

func (e *Engine) emit(evt progress.Event) {
	evt.RunID = progress.UUIDToBytes(e.runID)
	evt.Warehouse = e.cfg.Warehouse
	evt.TS = e.clock.Now()
	e.emitter.Emit(evt)
}
