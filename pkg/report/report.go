// Package report formats the outcome of a summation.
package report

import (
	"fmt"
	"io"
	"time"
)

// Result is the outcome of a summation run.
type Result struct {
	Sum     int64
	Elapsed time.Duration
}

// Write writes the two line report for r to w:
//
//	Sum: 37550402023
//	Time: 0.42 seconds
func Write(w io.Writer, r Result) error {
	_, err := fmt.Fprintf(w, "Sum: %d\nTime: %.2f seconds\n", r.Sum, r.Elapsed.Seconds())
	return err
}
