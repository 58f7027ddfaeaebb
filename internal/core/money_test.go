package core

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    string
		wantErr bool
	}{
		{name: "dot separator", in: "12.34", want: "12.34"},
		{name: "comma separator", in: "12,34", want: "12.34"},
		{name: "integer", in: "1000", want: "1000"},
		{name: "one fraction digit", in: "5.5", want: "5.5"},
		{name: "surrounding whitespace", in: "  42.00 ", want: "42"},
		{name: "empty", in: "", wantErr: true},
		{name: "negative", in: "-10", wantErr: true},
		{name: "explicit plus sign", in: "+10", wantErr: true},
		{name: "zero", in: "0", wantErr: true},
		{name: "three fraction digits", in: "12.345", wantErr: true},
		{name: "not a number", in: "abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseAmount(%q) = %v, want error", tt.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseAmount(%q) error: %v", tt.in, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestCentsRoundTrip(t *testing.T) {
	tests := []string{"0.01", "950", "1234.56", "0.99", "100000.10"}
	for _, s := range tests {
		d := decimal.RequireFromString(s)
		if got := FromCents(Cents(d)); !got.Equal(d) {
			t.Errorf("FromCents(Cents(%s)) = %s", s, got)
		}
	}
}

func TestSignedAmount(t *testing.T) {
	amount := decimal.RequireFromString("50.00")

	income := Transaction{Type: Income, Amount: amount}
	if got := income.SignedAmount(); !got.Equal(amount) {
		t.Errorf("income SignedAmount() = %s, want %s", got, amount)
	}

	expense := Transaction{Type: Expense, Amount: amount}
	if got := expense.SignedAmount(); !got.Equal(amount.Neg()) {
		t.Errorf("expense SignedAmount() = %s, want %s", got, amount.Neg())
	}
}
