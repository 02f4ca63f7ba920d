package math

import "testing"

func TestClamp(t *testing.T) {
	if got := Clamp(5, 0, 10); got != 5 {
		t.Errorf("Clamp(5, 0, 10) = %d", got)
	}
	if got := Clamp(-1, 0, 10); got != 0 {
		t.Errorf("Clamp(-1, 0, 10) = %d", got)
	}
	if got := Clamp(11, 0, 10); got != 10 {
		t.Errorf("Clamp(11, 0, 10) = %d", got)
	}
	if got := Clamp(uint32(7), uint32(8), uint32(9)); got != 8 {
		t.Errorf("Clamp(7, 8, 9) = %d", got)
	}
}

func TestLerp(t *testing.T) {
	if got := Lerp(0, 10, 0.5); got != 5 {
		t.Errorf("Lerp(0, 10, 0.5) = %f", got)
	}
	if got := Lerp(2, 4, 0); got != 2 {
		t.Errorf("Lerp(2, 4, 0) = %f", got)
	}
	if got := Lerp(2, 4, 1); got != 4 {
		t.Errorf("Lerp(2, 4, 1) = %f", got)
	}
}

func TestInverseLerp(t *testing.T) {
	if got := InverseLerp(0, 10, 5); got != 0.5 {
		t.Errorf("InverseLerp(0, 10, 5) = %f", got)
	}
	if got := InverseLerp(10, 20, 10); got != 0 {
		t.Errorf("InverseLerp(10, 20, 10) = %f", got)
	}
}
