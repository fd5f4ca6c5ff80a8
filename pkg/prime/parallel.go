package prime

import (
	"context"
	"runtime"
	"sync"

	"github.com/sumprime/sumprime/pkg/logflags"
)

// Range is a half-open interval of candidates [Lo, Hi).
type Range struct {
	Lo, Hi int64
}

// Len returns the number of candidates in r.
func (r Range) Len() int64 {
	if r.Hi <= r.Lo {
		return 0
	}
	return r.Hi - r.Lo
}

// Split divides [lo, hi) into at most n contiguous ranges whose lengths
// differ by at most one. The first ranges receive the remainder. Empty
// ranges are not returned.
func Split(lo, hi int64, n int) []Range {
	if n < 1 {
		n = 1
	}
	length := Range{lo, hi}.Len()
	base := length / int64(n)
	rem := length % int64(n)
	r := make([]Range, 0, n)
	start := lo
	for i := 0; i < n; i++ {
		size := base
		if int64(i) < rem {
			size++
		}
		end := start + size
		if start < end {
			r = append(r, Range{start, end})
		}
		start = end
	}
	return r
}

// batch is how many candidates a goroutine tests between checks of the
// context.
const batch = 4096

// SumParallel sums the primes below limit using the given number of
// goroutines. Each goroutine accumulates its own Partial and the partials
// are combined once all of them are done. If workers is 0 GOMAXPROCS is
// used, if it is 1 the summation runs on the calling goroutine.
func SumParallel(ctx context.Context, limit int64, workers int) (Partial, error) {
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	logger := logflags.PrimeLogger()
	ranges := Split(2, limit, workers)
	if logflags.Prime() {
		logger.Debugf("summing primes below %d over %d ranges", limit, len(ranges))
	}

	if len(ranges) <= 1 {
		return sumRangeContext(ctx, Range{2, limit})
	}

	partials := make([]Partial, len(ranges))
	errs := make([]error, len(ranges))
	var wg sync.WaitGroup
	for i := range ranges {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			partials[i], errs[i] = sumRangeContext(ctx, ranges[i])
		}(i)
	}
	wg.Wait()

	var total Partial
	for i := range partials {
		if errs[i] != nil {
			return Partial{}, errs[i]
		}
		if logflags.Prime() {
			logger.Debugf("range [%d, %d): %d primes, sum %d", ranges[i].Lo, ranges[i].Hi, partials[i].Count, partials[i].Sum)
		}
		total.Add(partials[i])
	}
	return total, nil
}

func sumRangeContext(ctx context.Context, r Range) (Partial, error) {
	var total Partial
	for lo := r.Lo; lo < r.Hi; lo += batch {
		if err := ctx.Err(); err != nil {
			return Partial{}, err
		}
		hi := lo + batch
		if hi > r.Hi {
			hi = r.Hi
		}
		total.Add(SumRange(lo, hi))
	}
	return total, nil
}
