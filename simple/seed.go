package simple

import (
	"math/rand"

	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/context/initializers"
)

// NewRand returns the random generator threaded through the split utility
// and the training loader. There is no process-wide RNG state: every
// consumer receives this handle explicitly.
func NewRand(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// seedContext makes parameter initialization and any in-graph randomness
// reproducible for a given seed. The simplego backend has no
// non-deterministic kernels to disable.
func seedContext(ctx *context.Context, seed int64) {
	ctx.SetParam(initializers.ParamInitialSeed, seed)
	ctx.RngStateFromSeed(seed)
}
