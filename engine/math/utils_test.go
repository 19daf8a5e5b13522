package math

import "testing"

func TestClamp(t *testing.T) {
	tests := []struct {
		name         string
		v, low, high int32
		want         int32
	}{
		{"inside", 5, 0, 10, 5},
		{"below", -3, 0, 10, 0},
		{"above", 11, 0, 10, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clamp(tt.v, tt.low, tt.high); got != tt.want {
				t.Errorf("Clamp(%d, %d, %d) = %d, want %d", tt.v, tt.low, tt.high, got, tt.want)
			}
		})
	}
	if got := Clamp(1.5, 0.0, 1.0); got != 1.0 {
		t.Errorf("Clamp float = %v, want 1", got)
	}
}

func TestAbsDiff(t *testing.T) {
	if got := AbsDiff[uint32](3, 10); got != 7 {
		t.Errorf("AbsDiff(3, 10) = %d, want 7", got)
	}
	if got := AbsDiff[int32](-4, 4); got != 8 {
		t.Errorf("AbsDiff(-4, 4) = %d, want 8", got)
	}
}

func TestIsPowerOfTwo(t *testing.T) {
	for v, want := range map[uint32]bool{0: false, 1: true, 2: true, 3: false, 4: true, 64: true, 96: false} {
		if got := IsPowerOfTwo(v); got != want {
			t.Errorf("IsPowerOfTwo(%d) = %v, want %v", v, got, want)
		}
	}
}
