package prng

import "testing"

func TestNewRemapsFixedPoints(t *testing.T) {
	if New(0).seed != 1 {
		t.Fatalf("seed 0 should remap to 1")
	}
	if New(m).seed != 1 {
		t.Fatalf("seed 2^31-1 should remap to 1")
	}
}

func TestNextIsDeterministic(t *testing.T) {
	r1 := New(301)
	r2 := New(301)
	for i := 0; i < 1000; i++ {
		if got, want := r1.Next(), r2.Next(); got != want {
			t.Fatalf("iteration %d: got %d, want %d (generators seeded identically diverged)", i, got, want)
		}
	}
}

func TestNextStaysInRange(t *testing.T) {
	r := New(42)
	for i := 0; i < 100000; i++ {
		v := r.Next()
		if v == 0 || v > m {
			t.Fatalf("Next() produced out-of-range value %d", v)
		}
	}
}

func TestUniformBounds(t *testing.T) {
	r := New(7)
	for i := 0; i < 10000; i++ {
		v := r.Uniform(17)
		if v >= 17 {
			t.Fatalf("Uniform(17) produced %d", v)
		}
	}
}

func TestOneInProbability(t *testing.T) {
	r := New(99)
	hits := 0
	const trials = 100000
	for i := 0; i < trials; i++ {
		if r.OneIn(10) {
			hits++
		}
	}
	// Loose sanity bound, not a statistical proof: expect roughly trials/10.
	if hits < trials/20 || hits > trials/5 {
		t.Fatalf("OneIn(10) hit %d/%d times, well outside expected range", hits, trials)
	}
}

func TestSkewedBounds(t *testing.T) {
	r := New(12345)
	for i := 0; i < 10000; i++ {
		v := r.Skewed(10)
		if v >= 1<<10 {
			t.Fatalf("Skewed(10) produced %d, want < 1024", v)
		}
	}
}
