package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1000", "1000", false},
		{"1,23,456.5", "123456.5", false},
		{"₹ 99.99", "99.99", false},
		{".5", "0.5", false},
		{"  42 ", "42", false},
		{"12.345", "", true},
		{"0", "", true},
		{"-10", "", true},
		{"abc", "", true},
		{"", "", true},
		{"1e5", "", true},
		{"1234567890123", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				if err != ErrInvalidAmount {
					t.Fatalf("ParseAmount(%q) error = %v, want ErrInvalidAmount", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) unexpected error: %v", tt.in, err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestFormatRupees(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"0", "₹0.00"},
		{"5", "₹5.00"},
		{"999.5", "₹999.50"},
		{"1000", "₹1,000.00"},
		{"123456.5", "₹1,23,456.50"},
		{"12345678", "₹1,23,45,678.00"},
		{"-2500", "-₹2,500.00"},
		{"49.9995", "₹50.00"},
	}
	for _, tt := range tests {
		if got := FormatRupees(decimal.RequireFromString(tt.in)); got != tt.want {
			t.Errorf("FormatRupees(%s) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
