package unsplash

import (
	"fmt"
	"math"
	"sync"

	"github.com/lumenfolio/portfolio-api/pkg/errs"
)

// Budget meters remote calls for one sync run. Each metered operation
// spends exactly one unit before touching the network, so a run can
// never consume more than the capacity it was given. A nil Budget means
// unmetered, which is what the serving path uses.
type Budget struct {
	mu       sync.Mutex
	capacity int
	used     int
}

// NewBudget creates a budget with the given capacity.
func NewBudget(capacity int) *Budget {
	return &Budget{capacity: capacity}
}

// Spend consumes one unit. When nothing remains it fails with the
// rate-limited kind and leaves the counter untouched.
func (b *Budget) Spend(op string) error {
	if b == nil {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.used >= b.capacity {
		return errs.RemoteRateLimited(op, fmt.Sprintf("call budget of %d exhausted", b.capacity))
	}
	b.used++
	return nil
}

// Used returns the units consumed so far.
func (b *Budget) Used() int {
	if b == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.used
}

// Remaining returns the units left to spend.
func (b *Budget) Remaining() int {
	if b == nil {
		return math.MaxInt
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.capacity - b.used
}

// Capacity returns the configured cap.
func (b *Budget) Capacity() int {
	if b == nil {
		return 0
	}
	return b.capacity
}
