// Package montecarlo resamples a trade population with replacement to
// produce synthetic trading histories for robustness analysis.
package montecarlo

import (
	"fmt"

	"github.com/andywkff/grademark/internal/random"
	"github.com/andywkff/grademark/pkg/types"
)

// Options configures a resampling run.
type Options struct {
	RandomSeed int64 `json:"randomSeed,omitempty"`
}

// Resample draws numIterations samples, each of numSamples trades,
// uniformly with replacement from the input population. An empty input
// yields an empty output.
func Resample(trades []types.Trade, numIterations, numSamples int, opts Options) ([][]types.Trade, error) {
	if numIterations <= 0 {
		return nil, fmt.Errorf("montecarlo: number of iterations must be positive, got %d", numIterations)
	}
	if numSamples <= 0 {
		return nil, fmt.Errorf("montecarlo: number of samples must be positive, got %d", numSamples)
	}
	if len(trades) == 0 {
		return nil, nil
	}

	rng := random.New(opts.RandomSeed)

	samples := make([][]types.Trade, numIterations)
	for i := 0; i < numIterations; i++ {
		sample := make([]types.Trade, numSamples)
		for j := 0; j < numSamples; j++ {
			sample[j] = trades[rng.Intn(len(trades))]
		}
		samples[i] = sample
	}

	return samples, nil
}
