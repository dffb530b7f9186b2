package distribution

import (
	"math/big"
	"testing"
)

func TestRateConverterConvert(t *testing.T) {
	cases := []struct {
		name    string
		num     uint64
		den     uint64
		feeBps  uint64
		in      int64
		want    int64
		wantErr bool
	}{
		{name: "one to one", num: 1, den: 1, in: 500, want: 500},
		{name: "floor division", num: 1, den: 3, in: 100, want: 33},
		{name: "rate above one", num: 3, den: 2, in: 100, want: 150},
		{name: "fee retained", num: 1, den: 1, feeBps: 250, in: 10_000, want: 9_750},
		{name: "fee rounds down", num: 1, den: 1, feeBps: 1, in: 9_999, want: 9_999},
		{name: "zero input", num: 1, den: 1, in: 0, wantErr: true},
		{name: "output rounds to zero", num: 1, den: 100, in: 50, wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			converter, err := NewRateConverter(tc.num, tc.den, tc.feeBps)
			if err != nil {
				t.Fatalf("constructor: %v", err)
			}
			out, err := converter.Convert(big.NewInt(tc.in))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("Convert(%d) = %s, want error", tc.in, out)
				}
				return
			}
			if err != nil {
				t.Fatalf("Convert(%d): %v", tc.in, err)
			}
			if out.Cmp(big.NewInt(tc.want)) != 0 {
				t.Fatalf("Convert(%d) = %s, want %d", tc.in, out, tc.want)
			}
		})
	}
}

func TestNewRateConverterRejectsBadConfig(t *testing.T) {
	if _, err := NewRateConverter(0, 1, 0); err == nil {
		t.Fatalf("zero numerator accepted")
	}
	if _, err := NewRateConverter(1, 0, 0); err == nil {
		t.Fatalf("zero denominator accepted")
	}
	if _, err := NewRateConverter(1, 1, BpsDenominator); err == nil {
		t.Fatalf("full fee accepted")
	}
}
