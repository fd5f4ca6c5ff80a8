// Package prime implements trial division primality testing and the
// summation of primes over half-open ranges of candidates.
package prime

// DefaultLimit is the exclusive upper bound used when none is given.
const DefaultLimit int64 = 1000000

// MaxLimit is the largest exclusive upper bound accepted by the command
// line. The sum of all primes below it fits comfortably in an int64.
const MaxLimit int64 = 1 << 31

// IsPrime reports whether n is prime, by trial division with every integer
// from 2 up to floor(sqrt(n)).
func IsPrime(n int64) bool {
	if n <= 1 {
		return false
	}
	// i <= n/i is i*i <= n without the overflow.
	for i := int64(2); i <= n/i; i++ {
		if n%i == 0 {
			return false
		}
	}
	return true
}

// Partial is the result of summing the primes of a single range.
type Partial struct {
	Sum     int64
	Count   int64
	Largest int64
}

// Add folds q into p.
func (p *Partial) Add(q Partial) {
	p.Sum += q.Sum
	p.Count += q.Count
	if q.Largest > p.Largest {
		p.Largest = q.Largest
	}
}

// Sum returns the sum of all primes strictly less than limit.
func Sum(limit int64) int64 {
	return SumRange(2, limit).Sum
}

// SumRange sums the primes in [lo, hi). Candidates below 2 are skipped.
func SumRange(lo, hi int64) Partial {
	var p Partial
	if lo < 2 {
		lo = 2
	}
	for n := lo; n < hi; n++ {
		if IsPrime(n) {
			p.Sum += n
			p.Count++
			p.Largest = n
		}
	}
	return p
}
