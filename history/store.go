package history

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/plangraph/types"
)

// ErrNotFound is returned when a run is not in the store.
var ErrNotFound = types.NewError(types.ErrRunNotFound, "run not found")

// ErrRunIDRequired is returned by Save for a nil run or a run without an id.
var ErrRunIDRequired = errors.New("run id is required")

// Store persists and queries run histories.
type Store interface {
	Save(ctx context.Context, run *Run) error
	Get(ctx context.Context, runID string) (*Run, error)
	ListByWorkflow(ctx context.Context, workflow string) ([]*Run, error)
	ListByStatus(ctx context.Context, status Status) ([]*Run, error)
	ListByTimeRange(ctx context.Context, start, end time.Time) ([]*Run, error)
	Delete(ctx context.Context, runID string) error
}

func notFound(runID string) error {
	return types.Errorf(types.ErrRunNotFound, "run %q not found", runID)
}
