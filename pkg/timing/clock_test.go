package timing

import (
	"runtime"
	"testing"
	"time"
)

func TestParseClock(t *testing.T) {
	for _, name := range []string{"", "wall", "cpu"} {
		c, err := ParseClock(name)
		if err != nil {
			t.Fatalf("ParseClock(%q): %v", name, err)
		}
		want := name
		if want == "" {
			want = WallClockName
		}
		if c.Name() != want {
			t.Fatalf("ParseClock(%q): expected clock %q but was %q", name, want, c.Name())
		}
	}
	if _, err := ParseClock("sundial"); err == nil {
		t.Fatal("expected an error for an unknown clock")
	}
}

func TestMeasureWall(t *testing.T) {
	d, err := Measure(Wall, func() { time.Sleep(20 * time.Millisecond) })
	if err != nil {
		t.Fatal(err)
	}
	if d < 20*time.Millisecond {
		t.Fatalf("expected at least 20ms but was %v", d)
	}
}

func spin(d time.Duration) {
	deadline := time.Now().Add(d)
	x := 0
	for time.Now().Before(deadline) {
		x++
	}
	_ = x
}

func TestMeasureCPU(t *testing.T) {
	switch runtime.GOOS {
	case "linux", "darwin", "freebsd", "windows":
	default:
		t.Skip("no CPU clock on " + runtime.GOOS)
	}
	d, err := Measure(CPU, func() { spin(50 * time.Millisecond) })
	if err != nil {
		t.Fatal(err)
	}
	if d <= 0 {
		t.Fatalf("expected positive CPU time but was %v", d)
	}

	// Sleeping uses (almost) no CPU time.
	d, err = Measure(CPU, func() { time.Sleep(100 * time.Millisecond) })
	if err != nil {
		t.Fatal(err)
	}
	if d >= 100*time.Millisecond {
		t.Fatalf("expected sleeping to cost less than 100ms of CPU time, was %v", d)
	}
}
