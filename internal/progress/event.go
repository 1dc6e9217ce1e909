package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind denotes the type of milestone represented by an Event.
type Kind string

// Supported progress kinds.
const (
	KindRunStart          Kind = "run.start"
	KindRunPaused         Kind = "run.paused"
	KindRunDone           Kind = "run.done"
	KindRunError          Kind = "run.error"
	KindCategoryAvailable Kind = "category.available"
	KindProductAvailable  Kind = "product.available"
	KindCategoryProducts  Kind = "category.products.available"
	KindProductCreated    Kind = "product.created"
	KindProductUpdated    Kind = "product.updated"
	KindProductChanged    Kind = "product.changed"
	KindError             Kind = "error"
	KindRequestsSubmitted Kind = "requests.submitted"
	KindImportStats       Kind = "import.stats"
	KindRunningTime       Kind = "running.time"
)

// Event captures a single milestone of import progress.
type Event struct {
	// RunID uniquely identifies an import run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Kind denotes which milestone occurred.
	Kind Kind
	// Warehouse scopes the event to a warehouse code when relevant.
	Warehouse string
	// CategoryID is set for category-scoped events.
	CategoryID int
	// ProductID is set for product-scoped events.
	ProductID string
	// Path is the dotted field path for product.changed events.
	Path string
	// Location is the persisted record location for created/updated events.
	Location string
	// Count carries category/product/request counts.
	Count int64
	// Reviewed, Created and Updated carry the import.stats counters.
	Reviewed int64
	Created  int64
	Updated  int64
	// Dur captures elapsed run time and pause lengths.
	Dur time.Duration
	// Note lets emitters attach low-volume context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Kind {
	case KindRunStart, KindRunPaused, KindRunDone, KindRunError:
	case KindCategoryAvailable, KindRequestsSubmitted, KindImportStats, KindRunningTime:
	case KindProductAvailable:
		if e.ProductID == "" {
			return errors.New("product.available requires product id")
		}
	case KindCategoryProducts:
		if e.CategoryID == 0 {
			return errors.New("category.products.available requires category id")
		}
	case KindProductCreated, KindProductUpdated:
		if e.ProductID == "" {
			return fmt.Errorf("%s requires product id", e.Kind)
		}
	case KindProductChanged:
		if e.ProductID == "" || e.Path == "" {
			return errors.New("product.changed requires product id and path")
		}
	case KindError:
		if e.Note == "" {
			return errors.New("error event requires note")
		}
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID for repositories.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}
