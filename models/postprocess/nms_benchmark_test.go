package postprocess

import (
	"math/rand"
	"testing"

	"github.com/nvr-ai/go-linecount/images"
)

func benchmarkSuppress(b *testing.B, n int) {
	rng := rand.New(rand.NewSource(7))
	results := make([]Result, n)
	for i := range results {
		w, h := rng.Intn(120)+30, rng.Intn(80)+30
		box := images.RectFromLTWH(rng.Intn(1800), rng.Intn(1000), w, h)
		results[i] = Result{Box: box, Center: box.Center(), Score: 0.5 + rng.Float32()/2, Class: rng.Intn(8)}
	}
	config := DefaultNMSConfig()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Suppress(results, &config)
	}
}

func BenchmarkSuppress_50(b *testing.B)   { benchmarkSuppress(b, 50) }
func BenchmarkSuppress_500(b *testing.B)  { benchmarkSuppress(b, 500) }
func BenchmarkSuppress_5000(b *testing.B) { benchmarkSuppress(b, 5000) }
