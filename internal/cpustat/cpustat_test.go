package cpustat

import "testing"

func TestFractionFreshPIDIsZero(t *testing.T) {
	// "prior" and "current" identical models a first observation where the
	// caller passes the current snapshot as its own prior.
	s := Sample{User: 2, Kernel: 1, WallNS: 1_000_000_000}
	if got := Fraction(s, s, 4); got != 0 {
		t.Fatalf("Fraction() = %v, want 0", got)
	}
}

func TestFractionOneFullCoreOnFourCoreHost(t *testing.T) {
	prior := Sample{User: 0, Kernel: 0, WallNS: 0}
	current := Sample{User: 1, Kernel: 0, WallNS: 1_000_000_000}

	got := Fraction(prior, current, 4)
	want := 0.25
	if got != want {
		t.Fatalf("Fraction() = %v, want %v", got, want)
	}
}

func TestFractionZeroDenom(t *testing.T) {
	prior := Sample{User: 0, Kernel: 0, WallNS: 1_000_000_000}
	current := Sample{User: 1, Kernel: 0, WallNS: 1_000_000_000}

	if got := Fraction(prior, current, 4); got != 0 {
		t.Fatalf("Fraction() = %v, want 0 for zero denom", got)
	}
}

func TestFractionPIDReuseBackwardsUser(t *testing.T) {
	prior := Sample{User: 5, Kernel: 0, WallNS: 0}
	current := Sample{User: 1, Kernel: 0, WallNS: 1_000_000_000}

	if got := Fraction(prior, current, 4); got != 0 {
		t.Fatalf("Fraction() = %v, want 0 when user time goes backwards", got)
	}
}

func TestFractionPIDReuseBackwardsKernel(t *testing.T) {
	prior := Sample{User: 0, Kernel: 5, WallNS: 0}
	current := Sample{User: 1, Kernel: 1, WallNS: 1_000_000_000}

	if got := Fraction(prior, current, 4); got != 0 {
		t.Fatalf("Fraction() = %v, want 0 when kernel time goes backwards", got)
	}
}

func TestFractionCanExceedOneOverN(t *testing.T) {
	// Measurement skew: a process can legitimately look like it used more
	// than 1/N of the host briefly. No clamping at this layer.
	prior := Sample{User: 0, Kernel: 0, WallNS: 0}
	current := Sample{User: 2, Kernel: 0, WallNS: 1_000_000_000}

	got := Fraction(prior, current, 4)
	if got <= 0.25 {
		t.Fatalf("Fraction() = %v, want > 1/N (unclamped)", got)
	}
}

func TestFractionNonPositiveN(t *testing.T) {
	prior := Sample{User: 0, WallNS: 0}
	current := Sample{User: 1, WallNS: 1_000_000_000}

	got := Fraction(prior, current, 0)
	if got != 1 {
		t.Fatalf("Fraction() with n<=0 should behave as n=1, got %v", got)
	}
}
