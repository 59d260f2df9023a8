// Package bonus implements count-based exploration bonuses. States are
// hashed with SimHash, a locality-sensitive hash, and the visit count of
// each hash key is used to compute a bonus reward.
package bonus

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"os"

	"github.com/samuelfneumann/rllaunch/utils/intutils"
	"github.com/samuelfneumann/rllaunch/utils/matutils"
	"github.com/samuelfneumann/rllaunch/utils/matutils/initializers/weights"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultBucketSizes are the table sizes used when none are given, six
// primes just below one million
var DefaultBucketSizes = []uint64{999931, 999953, 999959, 999961, 999979,
	999983}

// SimHash hashes items by the signs of a Gaussian random projection.
// Each bucket size defines one count table, and the count of an item is
// the minimum of its counts over all tables.
type SimHash struct {
	itemDim     int
	dimKey      int
	bucketSizes []uint64

	// projection is itemDim x dimKey
	projection *mat.Dense

	// mods[j][i] is 2^i mod bucketSizes[j]
	mods [][]uint64

	store CountStore
}

// NewSimHash returns a new SimHash hashing items of size itemDim into
// keys of dimKey bits. If bucketSizes is empty, DefaultBucketSizes are
// used. If store is nil, counts are kept in memory.
func NewSimHash(itemDim, dimKey int, bucketSizes []uint64, seed uint64,
	store CountStore) (*SimHash, error) {
	if itemDim < 1 || dimKey < 1 {
		return nil, fmt.Errorf("newSimHash: item dimension and key "+
			"dimension must be positive, got %v and %v", itemDim, dimKey)
	}

	projection := mat.NewDense(itemDim, dimKey, nil)
	normal := distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(seed)}
	weights.NewLinearUV(normal).Initialize(projection)

	return newSimHash(projection, bucketSizes, store)
}

func newSimHash(projection *mat.Dense, bucketSizes []uint64,
	store CountStore) (*SimHash, error) {
	if len(bucketSizes) == 0 {
		bucketSizes = DefaultBucketSizes
	}
	for _, b := range bucketSizes {
		if b == 0 {
			return nil, fmt.Errorf("newSimHash: bucket sizes must be " +
				"positive")
		}
	}
	if store == nil {
		store = NewMemoryStore()
	}

	itemDim, dimKey := projection.Dims()
	mods := make([][]uint64, len(bucketSizes))
	for j, b := range bucketSizes {
		mods[j] = make([]uint64, dimKey)
		mod := uint64(1) % b
		for i := range mods[j] {
			mods[j][i] = mod
			mod = (mod * 2) % b
		}
	}

	sizes := make([]uint64, len(bucketSizes))
	copy(sizes, bucketSizes)

	return &SimHash{
		itemDim:     itemDim,
		dimKey:      dimKey,
		bucketSizes: sizes,
		projection:  projection,
		mods:        mods,
		store:       store,
	}, nil
}

// ItemDim returns the dimension of hashed items
func (s *SimHash) ItemDim() int {
	return s.itemDim
}

// Tables returns the number of count tables
func (s *SimHash) Tables() int {
	return len(s.bucketSizes)
}

// Store returns the CountStore holding the tables
func (s *SimHash) Store() CountStore {
	return s.store
}

// Keys computes the hash keys of each row of items. The returned slice
// is indexed by table, then by item.
//
// The key of an item in table j is sum_i sign(p_i) * (2^i mod B_j)
// reduced modulo B_j, where p is the projected item and sign(0) = 0.
func (s *SimHash) Keys(items mat.Matrix) ([][]uint64, error) {
	n, dim := items.Dims()
	if dim != s.itemDim {
		return nil, fmt.Errorf("keys: expected items of dimension %v, "+
			"got %v", s.itemDim, dim)
	}

	var projected mat.Dense
	projected.Mul(items, s.projection)

	keys := make([][]uint64, len(s.bucketSizes))
	for j := range keys {
		keys[j] = make([]uint64, n)
	}
	for r := 0; r < n; r++ {
		signs := matutils.Sign(projected.RowView(r))
		for j, b := range s.bucketSizes {
			var sum int64
			for i, sign := range signs {
				sum += int64(sign) * int64(s.mods[j][i])
			}
			keys[j][r] = euclideanMod(sum, b)
		}
	}
	return keys, nil
}

func euclideanMod(a int64, b uint64) uint64 {
	m := a % int64(b)
	if m < 0 {
		m += int64(b)
	}
	return uint64(m)
}

// Inc increments the counts of each row of items
func (s *SimHash) Inc(ctx context.Context, items mat.Matrix) error {
	keys, err := s.Keys(items)
	if err != nil {
		return fmt.Errorf("inc: %w", err)
	}
	for j := range keys {
		if err := s.store.Inc(ctx, j, keys[j]); err != nil {
			return fmt.Errorf("inc: %w", err)
		}
	}
	return nil
}

// QueryCounts returns the count of each row of items, the minimum of
// its counts over all tables
func (s *SimHash) QueryCounts(ctx context.Context,
	items mat.Matrix) ([]int, error) {
	keys, err := s.Keys(items)
	if err != nil {
		return nil, fmt.Errorf("queryCounts: %w", err)
	}

	n, _ := items.Dims()
	perTable := make([][]int, len(keys))
	for j := range keys {
		if perTable[j], err = s.store.Counts(ctx, j, keys[j]); err != nil {
			return nil, fmt.Errorf("queryCounts: %w", err)
		}
	}

	counts := make([]int, n)
	column := make([]int, len(perTable))
	for r := range counts {
		for j := range perTable {
			column[j] = perTable[j][r]
		}
		counts[r] = intutils.Min(column...)
	}
	return counts, nil
}

// Distinct returns the number of distinct keys seen in the first table
func (s *SimHash) Distinct(ctx context.Context) (int, error) {
	return s.store.Distinct(ctx, 0)
}

type simHashData struct {
	Projection  []byte
	BucketSizes []uint64
	Tables      []map[uint64]int
}

// Save saves the projection of the SimHash to filename. If the counts
// are held in a MemoryStore, they are saved as well.
func (s *SimHash) Save(filename string) error {
	proj, err := s.projection.MarshalBinary()
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}
	data := simHashData{Projection: proj, BucketSizes: s.bucketSizes}
	if m, ok := s.store.(*MemoryStore); ok {
		data.Tables = m.Tables()
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(data); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if err := os.WriteFile(filename, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	return nil
}

// LoadSimHash loads a SimHash saved with Save. Saved counts are
// restored into a MemoryStore.
func LoadSimHash(filename string) (*SimHash, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("loadSimHash: %w", err)
	}

	var data simHashData
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&data); err != nil {
		return nil, fmt.Errorf("loadSimHash: %w", err)
	}
	var projection mat.Dense
	if err := projection.UnmarshalBinary(data.Projection); err != nil {
		return nil, fmt.Errorf("loadSimHash: %w", err)
	}

	store := NewMemoryStore()
	store.SetTables(data.Tables)
	return newSimHash(&projection, data.BucketSizes, store)
}
