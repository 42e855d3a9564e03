package images

import (
	"math/rand"
	"testing"
)

// BenchmarkIoU_NonOverlapping returns on the early exit.
func BenchmarkIoU_NonOverlapping(b *testing.B) {
	r1 := Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}
	r2 := Rect{X1: 200, Y1: 200, X2: 300, Y2: 300}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = CalculateIoU(r1, r2)
	}
}

// BenchmarkIoU_PartialOverlap is the common suppression case.
func BenchmarkIoU_PartialOverlap(b *testing.B) {
	r1 := Rect{X1: 0, Y1: 0, X2: 100, Y2: 100}
	r2 := Rect{X1: 50, Y1: 50, X2: 150, Y2: 150}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = CalculateIoU(r1, r2)
	}
}

// BenchmarkIoU_Clustered compares every pair of 100 boxes clustered the way a
// detector reports cars queued at a line.
func BenchmarkIoU_Clustered(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	clusters := []Point{{X: 500, Y: 900}, {X: 1200, Y: 920}, {X: 300, Y: 880}}

	boxes := make([]Rect, 100)
	for i := range boxes {
		c := clusters[i%len(clusters)]
		w, h := rng.Intn(200)+50, rng.Intn(120)+40
		x, y := c.X+rng.Intn(200)-100, c.Y+rng.Intn(80)-40
		boxes[i] = RectFromLTWH(x-w/2, y-h/2, w, h)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		var total float32
		for j := range boxes {
			for k := j + 1; k < len(boxes); k++ {
				total += CalculateIoU(boxes[j], boxes[k])
			}
		}
		_ = total
	}
}

func BenchmarkHorizontalDistance(b *testing.B) {
	p, q := Point{X: 120, Y: 280}, Point{X: 165, Y: 284}
	for i := 0; i < b.N; i++ {
		_ = p.HorizontalDistance(q)
	}
}
