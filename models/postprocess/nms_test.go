package postprocess

import (
	"math/rand"
	"testing"

	"github.com/nvr-ai/go-linecount/images"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func result(x1, y1, x2, y2 int, score float32, class int) Result {
	box := images.Rect{X1: x1, Y1: y1, X2: x2, Y2: y2}
	return Result{Box: box, Center: box.Center(), Score: score, Class: class}
}

// Two heavily overlapping boxes keep only the more confident one.
func TestSuppress_KeepsHighestScore(t *testing.T) {
	results := []Result{
		result(0, 0, 100, 90, 0.6, 2),
		result(0, 0, 100, 100, 0.8, 2),
	}
	require.InDelta(t, 0.9, images.CalculateIoU(results[0].Box, results[1].Box), 1e-6)

	config := DefaultNMSConfig()
	keep := Suppress(results, &config)

	assert.Equal(t, []int{1}, keep)
}

func TestSuppress_ClassAgnosticByDefault(t *testing.T) {
	results := []Result{
		result(0, 0, 100, 100, 0.9, 7), // truck
		result(5, 5, 100, 100, 0.7, 2), // car under it
	}

	config := DefaultNMSConfig()
	assert.Equal(t, []int{0}, Suppress(results, &config))

	config.ClassAware = true
	assert.Equal(t, []int{0, 1}, Suppress(results, &config))
}

func TestSuppress_StableTies(t *testing.T) {
	results := []Result{
		result(200, 200, 300, 300, 0.7, 0),
		result(0, 0, 100, 100, 0.7, 0),
		result(0, 0, 100, 100, 0.7, 1),
	}

	config := DefaultNMSConfig()
	assert.Equal(t, []int{0, 1}, Suppress(results, &config))
}

func TestSuppress_ThresholdBoundary(t *testing.T) {
	// IoU exactly 0.5: not suppressed at 0.5, suppressed at 0.4.
	results := []Result{
		result(0, 0, 100, 100, 0.9, 0),
		result(0, 0, 100, 50, 0.8, 0),
	}
	require.InDelta(t, 0.5, images.CalculateIoU(results[0].Box, results[1].Box), 1e-6)

	config := DefaultNMSConfig()
	config.IoUThreshold = 0.5
	assert.Equal(t, []int{0, 1}, Suppress(results, &config))

	config.IoUThreshold = 0.4
	assert.Equal(t, []int{0}, Suppress(results, &config))
}

func TestSuppress_ScoreThreshold(t *testing.T) {
	results := []Result{
		result(0, 0, 10, 10, 0.5, 0),
		result(50, 50, 60, 60, 0.51, 0),
	}

	config := DefaultNMSConfig()
	assert.Equal(t, []int{1}, Suppress(results, &config))
}

func TestSuppress_Empty(t *testing.T) {
	config := DefaultNMSConfig()
	assert.Nil(t, Suppress(nil, &config))
	assert.Nil(t, ApplyNMS([]Result{}, &config))
}

func TestSuppress_ChainIsGreedy(t *testing.T) {
	// b overlaps a and c, a and c do not overlap. Greedy keeps a, drops b,
	// and then keeps c because its suppressor is gone.
	results := []Result{
		result(0, 0, 100, 100, 0.9, 0),   // a
		result(30, 0, 130, 100, 0.8, 0),  // b
		result(100, 0, 200, 100, 0.7, 0), // c
	}

	config := DefaultNMSConfig()
	assert.Equal(t, []int{0, 2}, Suppress(results, &config))
}

func randomResults(rng *rand.Rand, n int) []Result {
	results := make([]Result, n)
	for i := range results {
		x := rng.Intn(600)
		y := rng.Intn(400)
		w := 10 + rng.Intn(120)
		h := 10 + rng.Intn(120)
		results[i] = result(x, y, x+w, y+h, 0.5+rng.Float32()*0.5, rng.Intn(8))
	}
	return results
}

func TestApplyNMS_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for _, classAware := range []bool{false, true} {
		for trial := 0; trial < 50; trial++ {
			config := DefaultNMSConfig()
			config.ClassAware = classAware
			candidates := randomResults(rng, 60)

			kept := ApplyNMS(candidates, &config)

			// Overlap bound between every retained pair.
			for i := range kept {
				for j := i + 1; j < len(kept); j++ {
					if classAware && kept[i].Class != kept[j].Class {
						continue
					}
					assert.LessOrEqual(t, images.CalculateIoU(kept[i].Box, kept[j].Box), config.IoUThreshold)
				}
			}

			// Descending score order.
			for i := 1; i < len(kept); i++ {
				assert.GreaterOrEqual(t, kept[i-1].Score, kept[i].Score)
			}

			// Idempotence.
			assert.Equal(t, kept, ApplyNMS(kept, &config))
		}
	}
}

// The spatial index must not change the outcome of the plain O(n²) greedy pass.
func TestSuppress_MatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	config := DefaultNMSConfig()

	for trial := 0; trial < 50; trial++ {
		candidates := randomResults(rng, 40)
		assert.Equal(t, bruteForceNMS(candidates, config.IoUThreshold), ApplyNMS(candidates, &config))
	}
}

func bruteForceNMS(candidates []Result, iouThreshold float32) []Result {
	sorted := make([]Result, len(candidates))
	copy(sorted, candidates)
	// Insertion sort keeps ties stable.
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].Score > sorted[j-1].Score; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}

	var kept []Result
	used := make([]bool, len(sorted))
	for i := range sorted {
		if used[i] {
			continue
		}
		kept = append(kept, sorted[i])
		for j := i + 1; j < len(sorted); j++ {
			if !used[j] && images.CalculateIoU(sorted[i].Box, sorted[j].Box) > iouThreshold {
				used[j] = true
			}
		}
	}
	return kept
}
