package testutils

import (
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

var Seed uint64 //nolint:gochecknoglobals // intentionally global for test reproducibility

func init() { //nolint:gochecknoinits // intentionally using init to set seed
	Seed = uint64(time.Now().UnixNano()) //nolint:gosec // it's ok
	if envSeed := os.Getenv("TEST_SEED"); envSeed != "" {
		parsed, err := strconv.ParseUint(envSeed, 0, 64)
		if err == nil { // Only set using the env if it's valid
			Seed = parsed
		}
	}
	fmt.Printf("to reproduce: TEST_SEED=0x%x\n", Seed) //nolint:forbidigo // just for testing
}

func NewRand(t *testing.T) *rand.Rand {
	t.Helper()
	return rand.New(rand.NewPCG(Seed, Seed)) //nolint:gosec // weak RNG is fine for tests
}

// RandMapKey returns a random key from a map. Panics if the map is empty.
func RandMapKey[K comparable, V any](r *rand.Rand, m map[K]V) K {
	idx := r.IntN(len(m))
	for k := range m {
		if idx == 0 {
			return k
		}
		idx--
	}
	panic("unreachable")
}

// Weighted pairs an operation with its selection weight.
type Weighted[T any] struct {
	Op     T
	Weight int
}

// RandOpWeights assigns every operation a random weight in [1, 100].
func RandOpWeights[T any](r *rand.Rand, ops []T) []Weighted[T] {
	weights := make([]Weighted[T], len(ops))
	for i, op := range ops {
		weights[i] = Weighted[T]{Op: op, Weight: r.IntN(100) + 1}
	}
	return weights
}

// RandWeightedOp picks an operation with probability proportional to its weight.
func RandWeightedOp[T any](r *rand.Rand, weights []Weighted[T]) T {
	var total int
	for _, w := range weights {
		total += w.Weight
	}

	pick := r.IntN(total)
	for _, w := range weights {
		if pick < w.Weight {
			return w.Op
		}
		pick -= w.Weight
	}
	panic("unreachable")
}

// RandAddress returns a random account address.
func RandAddress(r *rand.Rand) common.Address {
	var addr common.Address
	for i := range addr {
		addr[i] = byte(r.IntN(256)) //nolint:gosec // always < 256
	}
	return addr
}
