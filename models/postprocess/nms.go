package postprocess

import (
	"sort"

	flatbush "github.com/bmharper/flatbush-go"
	"github.com/nvr-ai/go-linecount/images"
)

// NMSConfig defines parameters for Non-Maximum Suppression.
type NMSConfig struct {
	// IoUThreshold is the overlap above which the lower scored box is suppressed.
	IoUThreshold float32 `json:"iou_threshold" yaml:"iou_threshold"`
	// ScoreThreshold drops candidates scoring at or below it before suppression.
	ScoreThreshold float32 `json:"score_threshold" yaml:"score_threshold"`
	// ClassAware limits suppression to boxes of the same class. The counter
	// runs class-agnostic, so a "truck" box can suppress an overlapping "car".
	ClassAware bool `json:"class_aware" yaml:"class_aware"`
}

// DefaultNMSConfig returns the thresholds the counter was tuned with.
func DefaultNMSConfig() NMSConfig {
	return NMSConfig{
		IoUThreshold:   0.4,
		ScoreThreshold: 0.5,
		ClassAware:     false,
	}
}

// Suppress performs greedy Non-Maximum Suppression and returns the indices of
// the results to keep, in selection order (highest score first).
//
// Candidates are ordered by descending score with ties resolved by their
// position in results. The best remaining candidate is kept and every later
// candidate overlapping it by more than IoUThreshold is discarded, until no
// candidates remain. Overlap candidates are found through a spatial index so
// that only boxes that actually touch are compared.
//
// Arguments:
//   - results: Unsorted candidates, typically the output of Filter.
//   - config: NMS configuration.
//
// Returns:
//   - []int: Indices into results of the kept detections. Nil if none survive.
func Suppress(results []Result, config *NMSConfig) []int {
	order := make([]int, 0, len(results))
	for i, r := range results {
		if r.Score > config.ScoreThreshold {
			order = append(order, i)
		}
	}
	if len(order) == 0 {
		return nil
	}

	sort.SliceStable(order, func(a, b int) bool {
		return results[order[a]].Score > results[order[b]].Score
	})

	// Items are added in rank order, so a search hit is a rank.
	fb := flatbush.NewFlatbush[int32]()
	fb.Reserve(len(order))
	for _, idx := range order {
		b := results[idx].Box
		fb.Add(int32(b.X1), int32(b.Y1), int32(b.X2), int32(b.Y2))
	}
	fb.Finish()

	suppressed := make([]bool, len(order))
	keep := make([]int, 0, len(order))
	hits := []int{}

	for rank, idx := range order {
		if suppressed[rank] {
			continue
		}
		keep = append(keep, idx)

		anchor := results[idx]
		hits = fb.SearchFast(int32(anchor.Box.X1), int32(anchor.Box.Y1), int32(anchor.Box.X2), int32(anchor.Box.Y2), hits[:0])
		for _, other := range hits {
			if other <= rank || suppressed[other] {
				continue
			}
			candidate := results[order[other]]
			if config.ClassAware && candidate.Class != anchor.Class {
				continue
			}
			if images.CalculateIoU(anchor.Box, candidate.Box) > config.IoUThreshold {
				suppressed[other] = true
			}
		}
	}

	return keep
}

// ApplyNMS filters overlapping detections using Non-Maximum Suppression.
//
// Arguments:
//   - detections: Unsorted candidates.
//   - config: NMS configuration.
//
// Returns:
//   - Filtered slice of detections, highest score first. If no detections
//     survive, returns nil.
func ApplyNMS(detections []Result, config *NMSConfig) []Result {
	keep := Suppress(detections, config)
	if len(keep) == 0 {
		return nil
	}

	filtered := make([]Result, len(keep))
	for i, idx := range keep {
		filtered[i] = detections[idx]
	}
	return filtered
}
