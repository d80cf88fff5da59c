package core

import (
	"math"
	"testing"
)

func TestDefaultRates(t *testing.T) {
	rt := DefaultRates()
	if err := rt.Validate(); err != nil {
		t.Fatalf("DefaultRates() must validate, got %v", err)
	}
	if rt[USD] != 1 || rt[GBP] != 1.8 || rt[EURO] != 0.7 || rt[ILS] != 3.4 {
		t.Errorf("DefaultRates() = %v, want USD=1 GBP=1.8 EURO=0.7 ILS=3.4", rt)
	}
}

func TestRateTableValidate(t *testing.T) {
	tests := []struct {
		name    string
		table   RateTable
		wantErr bool
	}{
		{name: "complete", table: RateTable{USD: 1, GBP: 1.8, EURO: 0.7, ILS: 3.4}},
		{name: "extra keys tolerated", table: RateTable{USD: 1, GBP: 1.8, EURO: 0.7, ILS: 3.4, "JPY": 150}},
		{name: "missing token", table: RateTable{USD: 1, GBP: 1.8, EURO: 0.7}, wantErr: true},
		{name: "zero rate", table: RateTable{USD: 1, GBP: 0, EURO: 0.7, ILS: 3.4}, wantErr: true},
		{name: "negative rate", table: RateTable{USD: 1, GBP: -1.8, EURO: 0.7, ILS: 3.4}, wantErr: true},
		{name: "NaN rate", table: RateTable{USD: 1, GBP: math.NaN(), EURO: 0.7, ILS: 3.4}, wantErr: true},
		{name: "empty", table: RateTable{}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.table.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRound2(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{1.004, 1.00},
		{1.006, 1.01},
		{-1.006, -1.01},
		{255.5555, 255.56},
		{55.555555555555556, 55.56},
		{0, 0},
		{12.3, 12.3},
	}
	for i, tc := range cases {
		if got := Round2(tc.in); got != tc.want {
			t.Errorf("case %d Round2(%v) = %v, want %v", i, tc.in, got, tc.want)
		}
	}
}

func TestConvertIdentity(t *testing.T) {
	rt := DefaultRates()
	for _, c := range Currencies() {
		if got := Convert(123.45, c, c, rt); got != 123.45 {
			t.Errorf("Convert(123.45, %s, %s) = %v, want 123.45", c, c, got)
		}
	}
	// Same-token conversion never consults the table.
	if got := Convert(10, GBP, GBP, RateTable{}); got != 10 {
		t.Errorf("Convert with empty table = %v, want 10", got)
	}
}

func TestConvertThroughReference(t *testing.T) {
	rt := DefaultRates()
	cases := []struct {
		amount   float64
		from, to Currency
		want     float64
	}{
		{100, GBP, USD, 55.56},
		{100, USD, GBP, 180},
		{33.33, EURO, ILS, 161.89},
		{1, ILS, USD, 0.29},
	}
	for i, tc := range cases {
		if got := Convert(tc.amount, tc.from, tc.to, rt); got != tc.want {
			t.Errorf("case %d Convert(%v, %s, %s) = %v, want %v", i, tc.amount, tc.from, tc.to, got, tc.want)
		}
	}
}

func TestConvertRoundTrip(t *testing.T) {
	rt := DefaultRates()
	amounts := []float64{0.01, 0.17, 1, 2.5, 99.99, 1234.56}
	// Two rounded hops may drift, but never past two cents plus float noise.
	const tol = 0.02 + 1e-9
	for _, from := range Currencies() {
		for _, to := range Currencies() {
			for _, a := range amounts {
				back := Convert(Convert(a, from, to, rt), to, from, rt)
				if diff := math.Abs(back - Round2(a)); diff > tol {
					t.Errorf("round trip %v %s->%s->%s drifted %v (got %v)", a, from, to, from, diff, back)
				}
			}
		}
	}
}

func TestConvertMissingRate(t *testing.T) {
	partial := RateTable{USD: 1, GBP: 1.8}
	if got := Convert(10, EURO, USD, partial); got != 0 {
		t.Errorf("Convert from missing rate = %v, want 0", got)
	}
	if got := Convert(10, USD, EURO, partial); got != 0 {
		t.Errorf("Convert to missing rate = %v, want 0", got)
	}
	zeroed := RateTable{USD: 1, GBP: 0, EURO: 0.7, ILS: 3.4}
	if got := Convert(10, GBP, USD, zeroed); got != 0 {
		t.Errorf("Convert with zero rate = %v, want 0", got)
	}
}

func TestConvertBlankAndMixedCaseTokens(t *testing.T) {
	rt := DefaultRates()
	if got := Convert(100, "", GBP, rt); got != 180 {
		t.Errorf("blank from = %v, want 180 (blank means USD)", got)
	}
	if got := Convert(100, "gbp", "", rt); got != 55.56 {
		t.Errorf("blank to = %v, want 55.56", got)
	}
	if got := Convert(5, "", "", rt); got != 5 {
		t.Errorf("both blank = %v, want 5", got)
	}
	if got := Convert(100, " Gbp ", "usd", rt); got != 55.56 {
		t.Errorf("mixed case = %v, want 55.56", got)
	}
}

func TestConvertUnusableAmount(t *testing.T) {
	rt := DefaultRates()
	if got := Convert(math.NaN(), USD, GBP, rt); got != 0 {
		t.Errorf("Convert(NaN) = %v, want 0", got)
	}
	if got := Convert(math.Inf(1), USD, GBP, rt); got != 0 {
		t.Errorf("Convert(+Inf) = %v, want 0", got)
	}
}
