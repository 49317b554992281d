package services

import "testing"

func TestParseNumber(t *testing.T) {
	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"1.234,56", 1234.56, true},
		{"12,5", 12.5, true},
		{"12.5", 12.5, true},
		// Both separators: '.' is always the thousands separator.
		{"1,234.56", 1.23456, true},
		{"250 000 €", 250000, true},
		{"1 250 €", 1250, true},
		{"1 250", 1250, true},
		{"Loyer 850 € / mois", 850, true},
		{"-3", -3, true},
		{"42", 42, true},
		{"", 0, false},
		{"n/a", 0, false},
		{"€", 0, false},
		{"-", 0, false},
		{"1,2,3", 0, false},
		{"1-2", 0, false},
	}

	for _, tt := range tests {
		got := ParseNumber(tt.raw)
		if !tt.ok {
			if got != nil {
				t.Errorf("ParseNumber(%q) = %v; want nil", tt.raw, *got)
			}
			continue
		}
		if got == nil {
			t.Errorf("ParseNumber(%q) = nil; want %v", tt.raw, tt.want)
			continue
		}
		if *got != tt.want {
			t.Errorf("ParseNumber(%q) = %v; want %v", tt.raw, *got, tt.want)
		}
	}
}

func TestRound2(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{2000, 2000},
		{1234.5678, 1234.57},
		{3333.333333, 3333.33},
		{0.005, 0.01},
		{1e307, 1e307},
		{-1e307, -1e307},
	}
	for _, tt := range tests {
		if got := round2(tt.in); got != tt.want {
			t.Errorf("round2(%v) = %v; want %v", tt.in, got, tt.want)
		}
	}
}
