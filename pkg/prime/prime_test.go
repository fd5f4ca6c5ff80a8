package prime

import (
	"context"
	"testing"
)

// sieve returns composite[n] == false for every prime n < limit.
func sieve(limit int) []bool {
	composite := make([]bool, limit)
	composite[0], composite[1] = true, true
	for i := 2; i*i < limit; i++ {
		if composite[i] {
			continue
		}
		for j := i * i; j < limit; j += i {
			composite[j] = true
		}
	}
	return composite
}

func TestIsPrime(t *testing.T) {
	tests := []struct {
		n    int64
		want bool
	}{
		{-7, false},
		{-1, false},
		{0, false},
		{1, false},
		{2, true},
		{3, true},
		{4, false},
		{25, false},
		{961, false}, // 31*31
		{997, true},
		{999983, true},
		{999999, false}, // 3*3*3*7*11*13*37
		{2147483647, true},
	}
	for _, tc := range tests {
		if got := IsPrime(tc.n); got != tc.want {
			t.Errorf("IsPrime(%d): expected %v but was %v", tc.n, tc.want, got)
		}
		if got := IsPrime(tc.n); got != tc.want {
			t.Errorf("IsPrime(%d) second call: expected %v but was %v", tc.n, tc.want, got)
		}
	}
}

func TestIsPrimeMatchesSieve(t *testing.T) {
	const limit = 10000
	composite := sieve(limit)
	for n := 0; n < limit; n++ {
		if IsPrime(int64(n)) == composite[n] {
			t.Fatalf("IsPrime(%d) disagrees with sieve", n)
		}
	}
}

func TestIsPrimePerfectSquares(t *testing.T) {
	composite := sieve(1001)
	for p := int64(2); p <= 1000; p++ {
		if composite[p] {
			continue
		}
		if IsPrime(p * p) {
			t.Fatalf("IsPrime(%d) = true for the square of %d", p*p, p)
		}
	}
}

func TestSum(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping full summation in short mode")
	}
	const want = 37550402023
	if got := Sum(DefaultLimit); got != want {
		t.Fatalf("expected sum %d but was %d", int64(want), got)
	}
}

func TestSumSmall(t *testing.T) {
	tests := []struct {
		limit int64
		want  int64
	}{
		{-5, 0},
		{0, 0},
		{2, 0},
		{3, 2},
		{4, 5},
		{10, 17},
		{100, 1060},
		{1000, 76127},
	}
	for _, tc := range tests {
		if got := Sum(tc.limit); got != tc.want {
			t.Errorf("Sum(%d): expected %d but was %d", tc.limit, tc.want, got)
		}
	}
}

func TestSumRangeBoundaries(t *testing.T) {
	p := SumRange(999980, 1000000)
	if p.Count != 1 || p.Sum != 999983 || p.Largest != 999983 {
		t.Fatalf("expected only 999983 in [999980, 1000000); but was %+v", p)
	}
	p = SumRange(-10, 4)
	if p.Count != 2 || p.Sum != 5 || p.Largest != 3 {
		t.Fatalf("expected 2 and 3 in [-10, 4); but was %+v", p)
	}
	if p := SumRange(10, 10); p != (Partial{}) {
		t.Fatalf("expected empty partial, got %+v", p)
	}
}

func TestSplit(t *testing.T) {
	r := Split(2, 12, 3)
	want := []Range{{2, 6}, {6, 9}, {9, 12}}
	if len(r) != len(want) {
		t.Fatalf("expected %d ranges but was %d: %v", len(want), len(r), r)
	}
	for i := range want {
		if r[i] != want[i] {
			t.Errorf("range %d: expected %v but was %v", i, want[i], r[i])
		}
	}

	// more ranges than candidates: empty ranges are dropped
	r = Split(2, 5, 10)
	if len(r) != 3 {
		t.Fatalf("expected 3 ranges but was %d: %v", len(r), r)
	}
	if r := Split(5, 2, 4); len(r) != 0 {
		t.Fatalf("expected no ranges for an empty interval, got %v", r)
	}
}

func TestSplitCoversRange(t *testing.T) {
	for _, n := range []int{1, 2, 7, 100, 1000} {
		r := Split(2, 100003, n)
		next := int64(2)
		for _, x := range r {
			if x.Lo != next {
				t.Fatalf("n=%d: gap before %v", n, x)
			}
			next = x.Hi
		}
		if next != 100003 {
			t.Fatalf("n=%d: ranges end at %d", n, next)
		}
	}
}

func TestSumParallel(t *testing.T) {
	want := Sum(200000)
	for _, workers := range []int{0, 1, 2, 3, 8, 64} {
		got, err := SumParallel(context.Background(), 200000, workers)
		if err != nil {
			t.Fatalf("workers=%d: %v", workers, err)
		}
		if got.Sum != want {
			t.Errorf("workers=%d: expected %d but was %d", workers, want, got.Sum)
		}
		if got.Largest != 199999 {
			t.Errorf("workers=%d: expected largest prime 199999 but was %d", workers, got.Largest)
		}
	}
}

func TestSumParallelCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := SumParallel(ctx, DefaultLimit, 4); err != context.Canceled {
		t.Fatalf("expected context.Canceled but was %v", err)
	}
}

func BenchmarkIsPrime(b *testing.B) {
	for i := 0; i < b.N; i++ {
		IsPrime(999983)
	}
}

func BenchmarkSum(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Sum(100000)
	}
}
