package rng

import "testing"

func TestSeededSourceIsDeterministic(t *testing.T) {
	a, b := New(42), New(42)
	for i := 0; i < 100; i++ {
		if x, y := a.IntN(1000), b.IntN(1000); x != y {
			t.Fatalf("draw %d differs: %d vs %d", i, x, y)
		}
	}
}

func TestFloat64Range(t *testing.T) {
	s := New(7)
	for i := 0; i < 10_000; i++ {
		v := s.Float64()
		if v < 0 || v >= 1 {
			t.Fatalf("Float64() = %v out of range", v)
		}
	}
}

func TestFixedCycles(t *testing.T) {
	f := NewFixed(0.1, 0.9)
	if f.Float64() != 0.1 || f.Float64() != 0.9 || f.Float64() != 0.1 {
		t.Fatal("fixed source did not cycle")
	}
	if got := f.IntN(10); got != 9 {
		t.Fatalf("IntN(10) = %d, want 9", got)
	}
}
