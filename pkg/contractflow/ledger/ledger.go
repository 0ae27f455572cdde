package ledger

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/contractflow/pkg/contractflow"
)

// Ledger keeps a history of batch runs. It is write-mostly: nothing in the
// pipeline reads it back, so a run never resumes from a previous one.
type Ledger interface {
	Close() error

	RecordRun(ctx context.Context, run Run) error
	GetRun(ctx context.Context, id string) (Run, error)
	// ListRuns returns the most recent runs first, without entries.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
}

// Run is one invocation of the batch.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Total      int
	Succeeded  int
	Failed     int
	Entries    []contractflow.Entry
}

// IDs hands out lexically sortable run identifiers.
type IDs struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}

// NewIDs creates a run id generator.
func NewIDs() *IDs {
	return &IDs{entropy: ulid.Monotonic(rand.Reader, 0)}
}

// Next returns a new id stamped with t.
func (g *IDs) Next(t time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), g.entropy).String()
}
