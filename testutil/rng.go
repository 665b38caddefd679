package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/hupe1980/polyalloc/adapter"
	"github.com/hupe1980/polyalloc/catalog"
	"github.com/hupe1980/polyalloc/model"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)), // nolint gosec
		seed: seed,
	}
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Rows generates n rows for columns. The first column holds the row number,
// so it can serve as a primary key.
func (r *RNG) Rows(columns []catalog.LogicalColumn, n int) []adapter.Row {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows := make([]adapter.Row, n)
	for i := range n {
		row := make(adapter.Row, len(columns))
		for j, c := range columns {
			if j == 0 {
				row[c.ID] = int64(i + 1)
				continue
			}
			row[c.ID] = r.valueLocked(c.Type)
		}
		rows[i] = row
	}
	return rows
}

func (r *RNG) valueLocked(t model.PolyType) any {
	switch {
	case t.IsInteger():
		return r.rand.Int63n(1000)
	case t.IsNumeric():
		return r.rand.Float64() * 1000
	case t == model.TypeBoolean:
		return r.rand.Intn(2) == 1
	default:
		return fmt.Sprintf("v%04d", r.rand.Intn(10000))
	}
}

// Documents generates n documents with an _id and a numeric field.
func (r *RNG) Documents(n int) []adapter.Document {
	r.mu.Lock()
	defer r.mu.Unlock()

	docs := make([]adapter.Document, n)
	for i := range n {
		docs[i] = adapter.Document{"_id": fmt.Sprintf("d%04d", i), "n": r.rand.Int63n(1000)}
	}
	return docs
}

// Zipf generates a value in [0, n) following Zipf distribution.
// s=1.0 gives standard Zipf, s=1.5 gives heavy-tail (80/20 rule).
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}
	return n - 1
}

// AccessCounts draws n accesses over partitions with a Zipfian skew towards
// the first partitions and returns the count per partition.
func (r *RNG) AccessCounts(partitions []model.PartitionID, n int, s float64) map[model.PartitionID]int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := make(map[model.PartitionID]int64, len(partitions))
	for range n {
		counts[partitions[r.zipfLocked(len(partitions), s)]]++
	}
	return counts
}
