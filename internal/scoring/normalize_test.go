package scoring

import (
	"encoding/json"
	"math"
	"testing"
)

func TestTo01(t *testing.T) {
	tests := []struct {
		name string
		raw  any
		def  float64
		want float64
	}{
		{"percent", 80.0, 0, 0.8},
		{"fraction", 0.8, 0, 0.8},
		{"nil uses default", nil, 0.4, 0.4},
		{"boundary stays fractional", 1.5, 0, 1.0},
		{"just above boundary is percent", 1.6, 0, 0.016},
		{"over 100 clamps", 150.0, 0, 1.0},
		{"negative clamps", -5.0, 0, 0},
		{"int", 65, 0, 0.65},
		{"string", "72.5", 0, 0.725},
		{"comma decimal", "0,75", 0, 0.75},
		{"comma percent", " 85,5 ", 0, 0.855},
		{"garbage", "n/a", 0.3, 0.3},
		{"empty string", "", 0.2, 0.2},
		{"percent default", nil, 40, 0.4},
		{"json number", json.Number("90"), 0, 0.9},
		{"pointer", float64Ptr(0.33), 0, 0.33},
		{"nil pointer", (*float64)(nil), 0.1, 0.1},
		{"nan", math.NaN(), 0.6, 0.6},
		{"unsupported type", struct{}{}, 0.5, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := To01(tt.raw, tt.def)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("To01(%v, %v) = %f, want %f", tt.raw, tt.def, got, tt.want)
			}
		})
	}
}

func TestParseFloat(t *testing.T) {
	if v, ok := ParseFloat("3,25"); !ok || v != 3.25 {
		t.Errorf("expected 3.25, got %f ok=%v", v, ok)
	}
	if _, ok := ParseFloat("abc"); ok {
		t.Error("expected failure for non-numeric string")
	}
	if _, ok := ParseFloat(math.Inf(1)); ok {
		t.Error("expected failure for infinity")
	}
	if FloatPtr("x") != nil {
		t.Error("expected nil pointer for unparsable input")
	}
	if p := FloatPtr("12"); p == nil || *p != 12 {
		t.Errorf("expected 12, got %v", p)
	}
}
