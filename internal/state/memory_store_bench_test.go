package state_test

import (
	"fmt"
	"testing"

	intstate "github.com/jobhunter-labs/jobhunter/internal/state"
)

// sink keeps benchmark results alive so the calls are not optimised away.
var sink interface{}

func nestedProfile(depth, width int) map[string]interface{} {
	if depth <= 0 {
		return map[string]interface{}{"skill": "go", "years": 5.0}
	}
	m := make(map[string]interface{}, width)
	for i := 0; i < width; i++ {
		m[fmt.Sprintf("section_d%d_w%d", depth, i)] = nestedProfile(depth-1, width)
	}
	return m
}

var largeProfile = nestedProfile(4, 8)

func BenchmarkRetrieve(b *testing.B) {
	s := intstate.NewMemoryStateStore()
	s.Store("career_profile_output", largeProfile, "app1", nil)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sink, _ = s.Retrieve("career_profile_output", "app1")
	}
}

func BenchmarkStore(b *testing.B) {
	s := intstate.NewMemoryStateStore()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Store("career_profile_output", largeProfile, "app1", nil)
	}
}

func BenchmarkSaveSession(b *testing.B) {
	s := intstate.NewMemoryStateStore()
	for i := 0; i < 10; i++ {
		s.Store("career_profile_output", largeProfile, fmt.Sprintf("app%d", i), nil)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		sink = s.SaveSession()
	}
}
