// Package chooser picks an index from a list of weights using cumulative
// weight sampling. It is independent of the cache and holds no state.
package chooser

import (
	"math"
	"math/rand/v2"
)

// Options 控制一次加权选择。
type Options struct {
	// Seed 固定伪随机数种子，相同种子与权重总是得到相同结果；nil 表示随机。
	Seed *uint64
	// DefaultWeight 用于 NaN 或负数权重（含 -Inf），nil 时为 1；取绝对值。
	// +Inf 权重原样参与累计，此时累计区间无法命中，结果为 -1。
	DefaultWeight *float64
}

// ChooseWeightedIndex 按权重选择一个下标，权重越大越容易被选中。
// weights 为空或所有权重均为 0 时返回 -1。
func ChooseWeightedIndex(weights []float64, opts Options) int {
	if len(weights) == 0 {
		return -1
	}

	defaultWeight := 1.0
	if opts.DefaultWeight != nil {
		defaultWeight = math.Abs(*opts.DefaultWeight)
	}

	// 例如 [5, 30, 10] 得到累计区间 [5, 35, 45]
	ranges := make([]float64, len(weights))
	cumulative := 0.0
	for i, w := range weights {
		if math.IsNaN(w) || w < 0 {
			w = defaultWeight
		}
		cumulative += w
		ranges[i] = cumulative
	}

	selected := newRand(opts.Seed).Float64() * cumulative
	for i, upper := range ranges {
		if selected < upper {
			return i
		}
	}
	return -1
}

func newRand(seed *uint64) *rand.Rand {
	if seed == nil {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(*seed, *seed))
}
