package fixedpoint

import "testing"

func TestIntRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, -1, 59, -59, 1000} {
		if got := FromInt(n).ToIntTrunc(); got != n {
			t.Errorf("FromInt(%d).ToIntTrunc() = %d", n, got)
		}
	}
}

func TestRoundVsTrunc(t *testing.T) {
	// 59/60 in fixed point, Pintos' canonical load_avg coefficient.
	f := FromInt(59).Div(FromInt(60))
	if trunc := f.ToIntTrunc(); trunc != 0 {
		t.Errorf("trunc(59/60) = %d, want 0", trunc)
	}
	if round := f.ToIntRound(); round != 1 {
		t.Errorf("round(59/60) = %d, want 1", round)
	}
}

func TestArithmetic(t *testing.T) {
	a := FromInt(5)
	b := FromInt(2)

	if got := a.Add(b).ToIntTrunc(); got != 7 {
		t.Errorf("5+2 = %d, want 7", got)
	}
	if got := a.Sub(b).ToIntTrunc(); got != 3 {
		t.Errorf("5-2 = %d, want 3", got)
	}
	if got := a.Mul(b).ToIntTrunc(); got != 10 {
		t.Errorf("5*2 = %d, want 10", got)
	}
	if got := a.Div(b).ToIntRound(); got != 3 {
		t.Errorf("round(5/2) = %d, want 3", got)
	}
	if got := a.AddInt(3).ToIntTrunc(); got != 8 {
		t.Errorf("5+int(3) = %d, want 8", got)
	}
	if got := a.MulInt(4).ToIntTrunc(); got != 20 {
		t.Errorf("5*int(4) = %d, want 20", got)
	}
	if got := a.DivInt(5).ToIntTrunc(); got != 1 {
		t.Errorf("5/int(5) = %d, want 1", got)
	}
}

func TestNegative(t *testing.T) {
	neg := FromInt(-7)
	if got := neg.ToIntTrunc(); got != -7 {
		t.Errorf("FromInt(-7).ToIntTrunc() = %d", got)
	}
	if got := neg.Add(FromInt(2)).ToIntTrunc(); got != -5 {
		t.Errorf("-7+2 = %d, want -5", got)
	}
}

// Mirrors spec §4.7's recent_cpu formula shape, 2*load_avg/(2*load_avg+1).
func TestRecentCPUDecayCoefficient(t *testing.T) {
	loadAvg := FromInt(1) // load_avg == 1.0
	coeff := loadAvg.MulInt(2).Div(loadAvg.MulInt(2).AddInt(1))
	// 2/(2+1) = 0.666...
	if r := coeff.ToIntRound(); r != 1 {
		t.Errorf("round(2/3) = %d, want 1", r)
	}
	if got := coeff.ToIntTrunc(); got != 0 {
		t.Errorf("trunc(2/3) = %d, want 0", got)
	}
}
