package index

import (
	"fmt"
	"testing"
	"time"

	"github.com/appshell/engine/pkg/persistence"
	"github.com/appshell/engine/pkg/scheduler"
)

func benchIndex(b *testing.B, items int) *Index {
	b.Helper()
	idx := New(testConfig(), persistence.Namespaced(persistence.NewMemory(), "index"), scheduler.NewManual(), time.Second)
	terms := []string{"meeting", "project", "journal", "calendar", "budget", "report", "draft", "review"}
	for i := 0; i < items; i++ {
		title := fmt.Sprintf("%s %s notes", terms[i%len(terms)], terms[(i+1)%len(terms)])
		text := fmt.Sprintf("content about %s %s %s across modules",
			terms[i%len(terms)], terms[(i+2)%len(terms)], terms[(i+3)%len(terms)])
		idx.Add(Item{ID: fmt.Sprintf("item-%d", i), ModuleType: "notes", Title: title, SearchableText: text})
	}
	return idx
}

// BenchmarkIndexAdd measures per-item insert throughput.
func BenchmarkIndexAdd(b *testing.B) {
	idx := benchIndex(b, 0)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		idx.Add(Item{
			ID:             fmt.Sprintf("bench-%d", i),
			Title:          "benchmark title",
			SearchableText: "a benchmark item with several distinct terms for measuring insert throughput",
		})
	}
}

// BenchmarkIndexSearch measures single-term query latency at various corpus
// sizes.
func BenchmarkIndexSearch(b *testing.B) {
	for _, size := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("items_%d", size), func(b *testing.B) {
			idx := benchIndex(b, size)
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				results := idx.Search("meeting", SearchOptions{})
				_ = results
			}
		})
	}
}

// BenchmarkIndexSearchParallel measures concurrent read throughput.
func BenchmarkIndexSearchParallel(b *testing.B) {
	idx := benchIndex(b, 10000)
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			results := idx.Search("project", SearchOptions{MaxResults: 20})
			_ = results
		}
	})
}

func BenchmarkTokenize(b *testing.B) {
	text := `Weekly planning meeting covering the project budget review, open
	action items from the journal, and calendar scheduling for the next
	sprint across all mounted modules`
	stops := stopwordSet([]string{"the", "and", "for", "from", "all"})
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		tokens := tokenize(text, 2, stops, 100)
		_ = tokens
	}
}
