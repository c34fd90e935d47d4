package fixedpoint

import (
	"errors"
	"math"
	"testing"
)

func TestAddU64(t *testing.T) {
	cases := []struct {
		name    string
		a, b    uint64
		want    uint64
		wantErr error
	}{
		{"simple", 1, 2, 3, nil},
		{"zero", 0, 0, 0, nil},
		{"overflow", math.MaxUint64, 1, 0, ErrOverflow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := AddU64(tc.a, tc.b)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if err == nil && got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestSubU64(t *testing.T) {
	cases := []struct {
		name    string
		a, b    uint64
		want    uint64
		wantErr error
	}{
		{"simple", 5, 3, 2, nil},
		{"equal", 3, 3, 0, nil},
		{"underflow", 1, 2, 0, ErrOverflow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := SubU64(tc.a, tc.b)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if err == nil && got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestMulDivU64(t *testing.T) {
	cases := []struct {
		name       string
		a, b, c    uint64
		want       uint64
		wantErr    error
	}{
		{"simple", 10, 3, 2, 15, nil},
		{"floor-rounds-down", 10, 1, 3, 3, nil},
		{"divide-by-zero", 10, 1, 0, 0, ErrDivideByZero},
		{"large-no-overflow", math.MaxUint64, 1, math.MaxUint64, 1, nil},
		{"product-overflows-but-fits-after-div", math.MaxUint64, 2, 2, math.MaxUint64, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := MulDivU64(tc.a, tc.b, tc.c)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if err == nil && got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestBpOf(t *testing.T) {
	got, err := BpOf(1_000_000, 200)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 20_000 {
		t.Fatalf("got %d, want 20000", got)
	}
}
